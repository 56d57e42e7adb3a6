package reporter

import (
	"time"

	"github.com/google/uuid"
)

// Category separates the three ways a test can end.
type Category string

const (
	CategoryPass     Category = "pass"
	CategoryMismatch Category = "mismatch"
	CategoryError    Category = "error"
)

// Entry is the outcome of one executed test.
type Entry struct {
	TestName      string
	Passed        bool
	Duration      time.Duration
	FailureDetail string
	Category      Category
	// ErrorKind narrows CategoryError, e.g. "timeout" or "transport".
	ErrorKind  string
	Method     string
	URL        string
	StatusCode int
}

func (e Entry) DurationMs() int64 {
	return e.Duration.Milliseconds()
}

// Run is the finalized collection handed to observers.
type Run struct {
	ID       uuid.UUID
	Started  time.Time
	Duration time.Duration
	Entries  []Entry
}

// Summary holds run totals by category.
type Summary struct {
	Total    int
	Passed   int
	Mismatch int
	Errored  int
}

// Failed counts every entry that did not pass.
func (s Summary) Failed() int {
	return s.Mismatch + s.Errored
}

func (r *Run) Summary() Summary {
	s := Summary{Total: len(r.Entries)}
	for _, e := range r.Entries {
		switch {
		case e.Category == CategoryError:
			s.Errored++
		case e.Passed:
			s.Passed++
		default:
			s.Mismatch++
		}
	}
	return s
}

// Failed reports whether any entry did not pass.
func (r *Run) Failed() bool {
	return r.Summary().Failed() > 0
}
