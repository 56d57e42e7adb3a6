// Package notify sends a summary of a finalized run to chat webhooks.
package notify

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/abdul-hamid-achik/hitcontract/packages/reporter"
)

// NotifyOn specifies when to send notifications
type NotifyOn string

const (
	// NotifyAlways sends notifications for every run
	NotifyAlways NotifyOn = "always"
	// NotifyFailure sends notifications only when a test fails or errors
	NotifyFailure NotifyOn = "failure"
	// NotifySuccess sends notifications only when every test passes
	NotifySuccess NotifyOn = "success"
	// NotifyRecovery sends notifications on failure and on the first
	// passing run after one
	NotifyRecovery NotifyOn = "recovery"
)

// ParseNotifyOn validates a policy name.
func ParseNotifyOn(s string) (NotifyOn, error) {
	switch n := NotifyOn(strings.ToLower(strings.TrimSpace(s))); n {
	case NotifyAlways, NotifyFailure, NotifySuccess, NotifyRecovery:
		return n, nil
	}
	return "", fmt.Errorf("unknown notify policy %q (supported: always, failure, success, recovery)", s)
}

// RunSummary is what notifiers render
type RunSummary struct {
	RunID         string        `json:"run_id"`
	Suite         string        `json:"suite,omitempty"`
	TotalTests    int           `json:"total_tests"`
	PassedTests   int           `json:"passed_tests"`
	FailedTests   int           `json:"failed_tests"`
	ErroredTests  int           `json:"errored_tests"`
	Duration      time.Duration `json:"duration"`
	FailedResults []FailedTest  `json:"failed_results,omitempty"`
	IsRecovery    bool          `json:"is_recovery,omitempty"`
}

// Failed reports whether any test mismatched or errored.
func (s *RunSummary) Failed() bool {
	return s.FailedTests+s.ErroredTests > 0
}

// FailedTest is one test that did not pass
type FailedTest struct {
	Name     string   `json:"name"`
	Category string   `json:"category"`
	Errors   []string `json:"errors,omitempty"`
}

// Summarize builds the notification summary of run.
func Summarize(run *reporter.Run, suite string) *RunSummary {
	s := run.Summary()
	summary := &RunSummary{
		RunID:        run.ID.String(),
		Suite:        suite,
		TotalTests:   s.Total,
		PassedTests:  s.Passed,
		FailedTests:  s.Mismatch,
		ErroredTests: s.Errored,
		Duration:     run.Duration,
	}
	for _, e := range run.Entries {
		if e.Passed {
			continue
		}
		ft := FailedTest{Name: e.TestName, Category: string(e.Category)}
		if e.FailureDetail != "" {
			ft.Errors = strings.Split(e.FailureDetail, "\n")
		}
		summary.FailedResults = append(summary.FailedResults, ft)
	}
	return summary
}

// Notifier is the interface for notification services
type Notifier interface {
	// Notify sends a notification about test results
	Notify(summary *RunSummary) error

	// Name returns the name of the notifier
	Name() string
}

// Manager applies a policy to a set of notifiers. It is a reporter.Observer.
type Manager struct {
	notifiers []Notifier
	notifyOn  NotifyOn
	suite     string
	lastState bool // true if last run was successful
}

// NewManager creates a new notification manager
func NewManager(notifyOn NotifyOn, notifiers ...Notifier) *Manager {
	return &Manager{
		notifiers: notifiers,
		notifyOn:  notifyOn,
		lastState: true,
	}
}

// AddNotifier adds a notifier to the manager
func (m *Manager) AddNotifier(n Notifier) {
	m.notifiers = append(m.notifiers, n)
}

// SetSuite names the suite in messages.
func (m *Manager) SetSuite(name string) {
	m.suite = name
}

func (m *Manager) Name() string { return "notify" }

func (m *Manager) Flush(run *reporter.Run) error {
	return m.Notify(Summarize(run, m.suite))
}

// Notify sends notifications based on the configured policy
func (m *Manager) Notify(summary *RunSummary) error {
	shouldNotify := false
	currentSuccess := !summary.Failed()

	switch m.notifyOn {
	case NotifyAlways:
		shouldNotify = true
	case NotifyFailure:
		shouldNotify = !currentSuccess
	case NotifySuccess:
		shouldNotify = currentSuccess
	case NotifyRecovery:
		if !m.lastState && currentSuccess {
			shouldNotify = true
			summary.IsRecovery = true
		}
		if !currentSuccess {
			shouldNotify = true
		}
	}

	m.lastState = currentSuccess

	if !shouldNotify {
		return nil
	}

	var errs []error
	for _, n := range m.notifiers {
		if err := n.Notify(summary); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", n.Name(), err))
		}
	}
	return errors.Join(errs...)
}
