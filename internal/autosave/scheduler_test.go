package autosave

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type persistCall struct {
	version int64
	at      time.Time
}

type recorder struct {
	mock    *clock.Mock
	version atomic.Int64
	calls   chan persistCall
	err     error
	block   chan struct{}
}

func newRecorder(mock *clock.Mock) *recorder {
	return &recorder{mock: mock, calls: make(chan persistCall, 16)}
}

func (r *recorder) persist(ctx context.Context) error {
	if r.block != nil {
		<-r.block
	}
	r.calls <- persistCall{version: r.version.Load(), at: r.mock.Now()}
	return r.err
}

func (r *recorder) edit(s *Scheduler, v int64) {
	r.version.Store(v)
	s.Notify()
}

func waitCall(t *testing.T, calls <-chan persistCall) persistCall {
	t.Helper()
	select {
	case c := <-calls:
		return c
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for persist")
	}
	return persistCall{}
}

func expectNoCall(t *testing.T, calls <-chan persistCall) {
	t.Helper()
	select {
	case c := <-calls:
		t.Fatalf("unexpected persist %+v", c)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestDebounceCoalescesEdits(t *testing.T) {
	mock := clock.NewMock()
	start := mock.Now()
	rec := newRecorder(mock)
	s := New(rec.persist, WithClock(mock), WithQuietPeriod(2*time.Second))
	defer s.Close()

	rec.edit(s, 1)
	mock.Add(500 * time.Millisecond)
	rec.edit(s, 2)
	mock.Add(500 * time.Millisecond)
	rec.edit(s, 3)
	if s.State() != PendingSave {
		t.Fatalf("expected pending state, got %v", s.State())
	}

	mock.Add(1900 * time.Millisecond)
	expectNoCall(t, rec.calls)

	mock.Add(100 * time.Millisecond)
	call := waitCall(t, rec.calls)
	if call.version != 3 {
		t.Fatalf("expected snapshot from last edit, got version %d", call.version)
	}
	if got := call.at.Sub(start); got != 3*time.Second {
		t.Fatalf("expected persist at 3s, got %v", got)
	}
	mock.Add(10 * time.Second)
	expectNoCall(t, rec.calls)
	if s.State() != Idle {
		t.Fatalf("expected idle after persist, got %v", s.State())
	}
}

func TestChangeDuringInFlightPersistStartsNewCycle(t *testing.T) {
	mock := clock.NewMock()
	rec := newRecorder(mock)
	rec.block = make(chan struct{})
	s := New(rec.persist, WithClock(mock), WithQuietPeriod(time.Second))
	defer s.Close()

	rec.edit(s, 1)
	mock.Add(time.Second)
	waitFor(t, s.InFlight)

	rec.edit(s, 2)
	if s.State() != PendingSave {
		t.Fatalf("queued change should leave state pending")
	}
	mock.Add(5 * time.Second)
	close(rec.block)
	if call := waitCall(t, rec.calls); call.version != 2 {
		t.Fatalf("first persist reads the snapshot at call time, got %d", call.version)
	}
	waitFor(t, func() bool { return !s.InFlight() })

	expectNoCall(t, rec.calls)
	mock.Add(time.Second)
	if call := waitCall(t, rec.calls); call.version != 2 {
		t.Fatalf("expected follow-up persist, got %d", call.version)
	}
}

func TestFlushPersistsImmediately(t *testing.T) {
	mock := clock.NewMock()
	rec := newRecorder(mock)
	s := New(rec.persist, WithClock(mock))
	defer s.Close()

	rec.edit(s, 7)
	if err := s.Flush(context.Background()); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if call := waitCall(t, rec.calls); call.version != 7 {
		t.Fatalf("unexpected version %d", call.version)
	}
	mock.Add(DefaultQuietPeriod * 2)
	expectNoCall(t, rec.calls)

	if err := s.Flush(context.Background()); err != nil {
		t.Fatalf("flush from idle: %v", err)
	}
	waitCall(t, rec.calls)
}

func TestFlushReturnsPersistError(t *testing.T) {
	mock := clock.NewMock()
	rec := newRecorder(mock)
	rec.err = errors.New("disk full")
	var handled atomic.Int32
	s := New(rec.persist, WithClock(mock), WithErrorHandler(func(error) { handled.Add(1) }))
	defer s.Close()

	if err := s.Flush(context.Background()); !errors.Is(err, rec.err) {
		t.Fatalf("expected persist error, got %v", err)
	}
	waitCall(t, rec.calls)
	if handled.Load() != 0 {
		t.Fatalf("flush errors are returned, not handled")
	}

	rec.edit(s, 1)
	mock.Add(DefaultQuietPeriod)
	waitCall(t, rec.calls)
	waitFor(t, func() bool { return handled.Load() == 1 })
}

type logLine struct {
	level string
	msg   string
	kv    []any
}

type captureLog struct {
	mu    sync.Mutex
	lines []logLine
}

func (c *captureLog) add(level, msg string, kv []any) {
	c.mu.Lock()
	c.lines = append(c.lines, logLine{level: level, msg: msg, kv: kv})
	c.mu.Unlock()
}

func (c *captureLog) Debug(msg string, kv ...any) { c.add("debug", msg, kv) }
func (c *captureLog) Warn(msg string, kv ...any)  { c.add("warn", msg, kv) }

func (c *captureLog) find(level, msg string) (logLine, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, l := range c.lines {
		if l.level == level && l.msg == msg {
			return l, true
		}
	}
	return logLine{}, false
}

func TestLoggerReceivesLifecycleEvents(t *testing.T) {
	mock := clock.NewMock()
	rec := newRecorder(mock)
	rec.err = errors.New("disk full")
	log := &captureLog{}
	s := New(rec.persist, WithClock(mock), WithLogger(log), WithLogger(nil))
	defer s.Close()

	_ = s.Flush(context.Background())
	waitCall(t, rec.calls)
	if _, ok := log.find("debug", "autosave flush"); !ok {
		t.Fatalf("flush not logged: %+v", log.lines)
	}
	failed, ok := log.find("warn", "autosave persist failed")
	if !ok || len(failed.kv) != 2 || failed.kv[0] != "error" || !errors.Is(failed.kv[1].(error), rec.err) {
		t.Fatalf("unexpected failure entry %+v", failed)
	}

	rec.err = nil
	rec.edit(s, 1)
	mock.Add(DefaultQuietPeriod)
	waitCall(t, rec.calls)
	waitFor(t, func() bool {
		_, ok := log.find("debug", "autosave quiet period elapsed")
		return ok
	})
}

func TestCancelDropsPendingSave(t *testing.T) {
	mock := clock.NewMock()
	rec := newRecorder(mock)
	s := New(rec.persist, WithClock(mock))
	defer s.Close()

	rec.edit(s, 1)
	s.Cancel()
	mock.Add(time.Minute)
	expectNoCall(t, rec.calls)
	if s.State() != Idle {
		t.Fatalf("expected idle after cancel")
	}
}

func TestCloseWaitsForInFlightAndRejectsFlush(t *testing.T) {
	mock := clock.NewMock()
	rec := newRecorder(mock)
	rec.block = make(chan struct{})
	s := New(rec.persist, WithClock(mock))

	rec.edit(s, 1)
	mock.Add(DefaultQuietPeriod)
	waitFor(t, s.InFlight)

	var wg sync.WaitGroup
	closed := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.Close()
		close(closed)
	}()
	select {
	case <-closed:
		t.Fatalf("close returned while persist in flight")
	case <-time.After(20 * time.Millisecond):
	}
	close(rec.block)
	waitCall(t, rec.calls)
	wg.Wait()

	if err := s.Flush(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	s.Notify()
	if s.State() != Idle {
		t.Fatalf("notify after close should be ignored")
	}
}

func TestFlushHonoursContextWhileWaiting(t *testing.T) {
	mock := clock.NewMock()
	rec := newRecorder(mock)
	rec.block = make(chan struct{})
	s := New(rec.persist, WithClock(mock))

	rec.edit(s, 1)
	mock.Add(DefaultQuietPeriod)
	waitFor(t, s.InFlight)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Flush(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context error, got %v", err)
	}
	close(rec.block)
	waitCall(t, rec.calls)
	s.Close()
}

func TestDefaults(t *testing.T) {
	s := New(func(context.Context) error { return nil }, WithQuietPeriod(-time.Second))
	defer s.Close()
	if s.QuietPeriod() != DefaultQuietPeriod {
		t.Fatalf("expected default quiet period, got %v", s.QuietPeriod())
	}
	if Idle.String() != "idle" || PendingSave.String() != "pending" {
		t.Fatalf("unexpected state names")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("condition not met before deadline")
		}
		time.Sleep(time.Millisecond)
	}
}
