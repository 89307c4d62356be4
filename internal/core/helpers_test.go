package core

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"charsheet/internal/infra/persistence/memory"
	"charsheet/pkg/domain"
)

type metricsCall struct {
	op       string
	success  bool
	duration time.Duration
}

type captureMetricsRecorder struct {
	mu    sync.Mutex
	calls []metricsCall
}

func (c *captureMetricsRecorder) Observe(_ context.Context, op string, success bool, duration time.Duration) {
	c.mu.Lock()
	c.calls = append(c.calls, metricsCall{op: op, success: success, duration: duration})
	c.mu.Unlock()
}

func (c *captureMetricsRecorder) has(op string, success bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, call := range c.calls {
		if call.op == op && call.success == success {
			return true
		}
	}
	return false
}

type spanRecord struct {
	op  string
	id  string
	err error
}

type captureTracer struct {
	mu    sync.Mutex
	ended []spanRecord
}

func (c *captureTracer) Start(ctx context.Context, op string) (context.Context, TraceSpan) {
	return ctx, &captureSpan{tracer: c, op: op, id: CharacterIDFromContext(ctx)}
}

func (c *captureTracer) has(op string, success bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, record := range c.ended {
		if record.op == op && (record.err == nil) == success {
			return true
		}
	}
	return false
}

type captureSpan struct {
	tracer *captureTracer
	op     string
	id     string
}

func (s *captureSpan) End(err error) {
	s.tracer.mu.Lock()
	s.tracer.ended = append(s.tracer.ended, spanRecord{op: s.op, id: s.id, err: err})
	s.tracer.mu.Unlock()
}

type logEntry struct {
	level string
	msg   string
	kv    []any
}

type captureLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (l *captureLogger) add(level, msg string, kv []any) {
	l.mu.Lock()
	l.entries = append(l.entries, logEntry{level: level, msg: msg, kv: kv})
	l.mu.Unlock()
}

func (l *captureLogger) Debug(msg string, kv ...any) { l.add("debug", msg, kv) }
func (l *captureLogger) Info(msg string, kv ...any)  { l.add("info", msg, kv) }
func (l *captureLogger) Warn(msg string, kv ...any)  { l.add("warn", msg, kv) }
func (l *captureLogger) Error(msg string, kv ...any) { l.add("error", msg, kv) }

// value returns the value logged under key by the first entry with msg.
func (l *captureLogger) value(msg, key string) (any, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.entries {
		if e.msg != msg {
			continue
		}
		for i := 0; i+1 < len(e.kv); i += 2 {
			if e.kv[i] == key {
				return e.kv[i+1], true
			}
		}
	}
	return nil, false
}

func (l *captureLogger) has(level, msg string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.entries {
		if e.level == level && e.msg == msg {
			return true
		}
	}
	return false
}

var errStoreDown = errors.New("store unavailable")

// flakyStore wraps the memory store and fails selected calls on demand.
type flakyStore struct {
	domain.RecordStore
	mock       *clock.Mock
	failWrites atomic.Bool
	failReads  atomic.Bool
	replaced   chan replaceCall
}

type replaceCall struct {
	character domain.Character
	at        time.Time
}

func newFlakyStore(mock *clock.Mock) *flakyStore {
	return &flakyStore{
		RecordStore: memory.NewStore(),
		mock:        mock,
		replaced:    make(chan replaceCall, 32),
	}
}

func (f *flakyStore) ListCharacters(ctx context.Context) ([]domain.Character, error) {
	if f.failReads.Load() {
		return nil, errStoreDown
	}
	return f.RecordStore.ListCharacters(ctx)
}

func (f *flakyStore) ReplaceCharacter(ctx context.Context, id string, c domain.Character) error {
	if f.failWrites.Load() {
		return errStoreDown
	}
	if err := f.RecordStore.ReplaceCharacter(ctx, id, c); err != nil {
		return err
	}
	f.replaced <- replaceCall{character: c, at: f.mock.Now()}
	return nil
}

type fixture struct {
	mock     *clock.Mock
	store    *flakyStore
	notes    *NotificationLog
	metrics  *captureMetricsRecorder
	tracer   *captureTracer
	logger   *captureLogger
	svc      *Service
	original domain.Character
}

func newFixture(t *testing.T, opts ...ServiceOption) *fixture {
	t.Helper()
	f := &fixture{
		mock:    clock.NewMock(),
		notes:   &NotificationLog{},
		metrics: &captureMetricsRecorder{},
		tracer:  &captureTracer{},
		logger:  &captureLogger{},
	}
	f.store = newFlakyStore(f.mock)
	base := []ServiceOption{
		WithClock(f.mock),
		WithQuietPeriod(2 * time.Second),
		WithNotifier(f.notes),
		WithMetricsRecorder(f.metrics),
		WithTracer(f.tracer),
		WithLogger(f.logger),
	}
	f.svc = NewService(f.store, append(base, opts...)...)
	t.Cleanup(f.svc.Close)
	c, err := f.svc.CreateCharacter(context.Background(), "Morwen")
	if err != nil {
		t.Fatalf("create character: %v", err)
	}
	f.original = c
	f.notes.Drain()
	return f
}

func (f *fixture) open(t *testing.T) *Session {
	t.Helper()
	sess, err := f.svc.Open(context.Background(), f.original.ID)
	if err != nil || sess == nil {
		t.Fatalf("open: %v %v", sess, err)
	}
	t.Cleanup(sess.Close)
	return sess
}

func (f *fixture) stored(t *testing.T) domain.Character {
	t.Helper()
	c, ok, err := f.store.GetCharacter(context.Background(), f.original.ID)
	if err != nil || !ok {
		t.Fatalf("get stored character: %v %v", ok, err)
	}
	return c
}

func (f *fixture) notified(level NotificationLevel) []Notification {
	var out []Notification
	for _, n := range f.notes.Entries() {
		if n.Level == level {
			out = append(out, n)
		}
	}
	return out
}

func waitReplace(t *testing.T, ch <-chan replaceCall) replaceCall {
	t.Helper()
	select {
	case c := <-ch:
		return c
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for persist")
	}
	return replaceCall{}
}

func expectNoReplace(t *testing.T, ch <-chan replaceCall) {
	t.Helper()
	select {
	case c := <-ch:
		t.Fatalf("unexpected persist of %q", c.character.Name)
	case <-time.After(20 * time.Millisecond):
	}
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}
