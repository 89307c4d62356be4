// Package autosave implements the debounced persistence cycle of an editing
// session: every change restarts a quiet-period timer and a single persist
// runs once the timer expires without further changes.
package autosave

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// DefaultQuietPeriod is the debounce delay applied when none is configured.
const DefaultQuietPeriod = 2 * time.Second

// ErrClosed is returned by Flush once the scheduler has been closed.
var ErrClosed = errors.New("autosave: scheduler closed")

// State is the debounce state of a scheduler.
type State int

// Scheduler states. Whether a persist is running is tracked separately by
// InFlight.
const (
	Idle State = iota
	PendingSave
)

func (s State) String() string {
	if s == PendingSave {
		return "pending"
	}
	return "idle"
}

// PersistFunc writes the latest snapshot. It must read the snapshot at call
// time; the scheduler never carries aggregate values.
type PersistFunc func(ctx context.Context) error

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock injects the time source.
func WithClock(c clock.Clock) Option {
	return func(s *Scheduler) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithQuietPeriod overrides the debounce delay. Non-positive values are ignored.
func WithQuietPeriod(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.quiet = d
		}
	}
}

// WithErrorHandler receives failures of timer-triggered persists. Manual
// flushes return their error to the caller as well.
func WithErrorHandler(fn func(error)) Option {
	return func(s *Scheduler) {
		if fn != nil {
			s.onError = fn
		}
	}
}

// WithPersistTimeout bounds each timer-triggered persist.
func WithPersistTimeout(d time.Duration) Option {
	return func(s *Scheduler) { s.timeout = d }
}

// Logger receives scheduler lifecycle events as a message with key-value
// pairs. The core service logger satisfies it.
type Logger interface {
	Debug(msg string, kv ...any)
	Warn(msg string, kv ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Warn(string, ...any)  {}

// WithLogger sets the logger used for lifecycle events.
func WithLogger(l Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.log = l
		}
	}
}

// Scheduler coalesces change notifications into debounced persist calls.
// At most one persist runs at any time. Changes that arrive while a persist
// is running are queued and start a fresh quiet period once it completes.
type Scheduler struct {
	persist PersistFunc
	clock   clock.Clock
	quiet   time.Duration
	timeout time.Duration
	onError func(error)
	log     Logger

	mu       sync.Mutex
	state    State
	timer    *clock.Timer
	gen      uint64
	inFlight bool
	done     chan struct{}
	queued   bool
	closed   bool
}

// New constructs a scheduler around persist.
func New(persist PersistFunc, opts ...Option) *Scheduler {
	s := &Scheduler{
		persist: persist,
		clock:   clock.New(),
		quiet:   DefaultQuietPeriod,
		onError: func(error) {},
		log:     nopLogger{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// QuietPeriod returns the configured debounce delay.
func (s *Scheduler) QuietPeriod() time.Duration { return s.quiet }

// State reports the debounce state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// InFlight reports whether a persist is running.
func (s *Scheduler) InFlight() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight
}

// Notify records a change. From Idle it arms the quiet-period timer; from
// PendingSave it restarts it.
func (s *Scheduler) Notify() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.state = PendingSave
	if s.inFlight {
		s.queued = true
		return
	}
	s.armLocked()
}

// Flush persists immediately from any state, cancelling a pending timer. When
// a persist is already running Flush waits for it and then persists again so
// the latest snapshot is written.
func (s *Scheduler) Flush(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.disarmLocked()
	for s.inFlight {
		done := s.done
		s.mu.Unlock()
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
		s.mu.Lock()
		s.disarmLocked()
	}
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.state = Idle
	s.queued = false
	s.beginLocked()
	s.mu.Unlock()

	s.log.Debug("autosave flush")
	err := s.persist(ctx)
	s.finish(err, false)
	return err
}

// Cancel drops any pending save without persisting. A running persist is not
// interrupted.
func (s *Scheduler) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disarmLocked()
	s.state = Idle
	s.queued = false
}

// Close cancels pending work, rejects further notifications and waits for a
// running persist to finish.
func (s *Scheduler) Close() {
	s.mu.Lock()
	s.disarmLocked()
	s.state = Idle
	s.queued = false
	s.closed = true
	var done chan struct{}
	if s.inFlight {
		done = s.done
	}
	s.mu.Unlock()
	if done != nil {
		<-done
	}
}

func (s *Scheduler) armLocked() {
	if s.timer != nil {
		s.timer.Stop()
	}
	s.gen++
	gen := s.gen
	s.timer = s.clock.AfterFunc(s.quiet, func() { s.fire(gen) })
}

func (s *Scheduler) disarmLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.gen++
}

func (s *Scheduler) beginLocked() {
	s.inFlight = true
	s.done = make(chan struct{})
}

func (s *Scheduler) fire(gen uint64) {
	s.mu.Lock()
	if gen != s.gen || s.closed || s.inFlight || s.state != PendingSave {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	s.state = Idle
	s.beginLocked()
	s.mu.Unlock()

	ctx := context.Background()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	s.log.Debug("autosave quiet period elapsed", "quiet", s.quiet)
	s.finish(s.persist(ctx), true)
}

func (s *Scheduler) finish(err error, report bool) {
	s.mu.Lock()
	s.inFlight = false
	close(s.done)
	if s.queued && !s.closed {
		s.queued = false
		s.state = PendingSave
		s.armLocked()
	}
	s.mu.Unlock()

	if err != nil {
		s.log.Warn("autosave persist failed", "error", err)
		if report {
			s.onError(err)
		}
	}
}
