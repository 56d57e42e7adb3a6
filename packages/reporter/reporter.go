package reporter

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type State int

const (
	Uninitialized State = iota
	Collecting
	Finalized
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Collecting:
		return "collecting"
	case Finalized:
		return "finalized"
	}
	return "unknown"
}

// Observer receives the finalized run exactly once.
type Observer interface {
	Name() string
	Flush(run *Run) error
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(run *Run) error

func (f ObserverFunc) Name() string { return "func" }

func (f ObserverFunc) Flush(run *Run) error { return f(run) }

type Reporter struct {
	mu        sync.Mutex
	state     State
	observers []Observer
	entries   []Entry
	started   time.Time
	id        uuid.UUID
	log       zerolog.Logger
}

type Option func(*Reporter)

func WithLogger(log zerolog.Logger) Option {
	return func(r *Reporter) {
		r.log = log
	}
}

func New(opts ...Option) *Reporter {
	r := &Reporter{
		log: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var defaultReporter = New()

// Default returns the process-wide reporter shared by every client that
// does not set its own.
func Default() *Reporter {
	return defaultReporter
}

// Add registers an observer and starts collection.
func (r *Reporter) Add(o Observer) error {
	if o == nil {
		return errors.New("reporter: nil observer")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.state {
	case Finalized:
		return &LifecycleError{Op: "add", State: r.state}
	case Uninitialized:
		r.state = Collecting
		r.started = time.Now()
		r.id = uuid.New()
	}
	r.observers = append(r.observers, o)
	return nil
}

// Record appends e. Entries recorded before any observer exists are
// dropped since nothing could ever read them.
func (r *Reporter) Record(e Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.state {
	case Uninitialized:
		r.log.Debug().Str("test", e.TestName).Msg("no observers, entry dropped")
		return nil
	case Finalized:
		return &LifecycleError{Op: "record", State: r.state}
	}
	r.entries = append(r.entries, e)
	return nil
}

// End finalizes the run and flushes it to every observer in registration
// order. Only the first call has an effect.
func (r *Reporter) End() error {
	r.mu.Lock()
	if r.state == Finalized {
		r.mu.Unlock()
		return nil
	}
	wasCollecting := r.state == Collecting
	r.state = Finalized
	run := &Run{
		ID:       r.id,
		Started:  r.started,
		Duration: time.Since(r.started),
		Entries:  append([]Entry(nil), r.entries...),
	}
	observers := append([]Observer(nil), r.observers...)
	r.mu.Unlock()

	if !wasCollecting {
		return nil
	}

	r.log.Debug().Str("run_id", run.ID.String()).Int("entries", len(run.Entries)).Msg("run finalized")

	var errs []error
	for _, o := range observers {
		if err := o.Flush(run); err != nil {
			errs = append(errs, fmt.Errorf("observer %s: %w", o.Name(), err))
		}
	}
	return errors.Join(errs...)
}

func (r *Reporter) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}
