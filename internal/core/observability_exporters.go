package core

import (
	"context"
	"encoding/json"
	"expvar"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
)

var expvarSeq uint64

type characterIDKey struct{}

// ContextWithCharacterID tags ctx with the character an operation works on.
func ContextWithCharacterID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, characterIDKey{}, id)
}

// CharacterIDFromContext returns the character tagged by ContextWithCharacterID.
func CharacterIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(characterIDKey{}).(string)
	return id
}

// ExpvarMetricsRecorder publishes per-operation latency totals, worst-case
// latency and result counters via expvar.
type ExpvarMetricsRecorder struct {
	name      string
	mu        sync.Mutex
	durations map[string]float64
	slowest   map[string]float64
	results   map[string]map[string]int64
}

// ExpvarMetricsSnapshot captures a read-only view of the recorded metrics.
type ExpvarMetricsSnapshot struct {
	DurationsMS map[string]float64          `json:"durations_ms_total"`
	SlowestMS   map[string]float64          `json:"durations_ms_max"`
	Results     map[string]map[string]int64 `json:"results_total"`
	RecordedAt  time.Time                   `json:"recorded_at"`
}

// NewExpvarMetricsRecorder constructs an expvar-backed recorder and publishes it
// under the supplied name. When name is empty, a unique identifier is generated.
func NewExpvarMetricsRecorder(name string) *ExpvarMetricsRecorder {
	if name == "" {
		id := atomic.AddUint64(&expvarSeq, 1)
		name = fmt.Sprintf("charsheet_metrics_%d", id)
	}
	rec := &ExpvarMetricsRecorder{
		name:      name,
		durations: make(map[string]float64),
		slowest:   make(map[string]float64),
		results:   make(map[string]map[string]int64),
	}
	expvar.Publish(name, expvar.Func(func() any {
		return rec.Snapshot()
	}))
	return rec
}

// Name returns the expvar export name associated with the recorder.
func (r *ExpvarMetricsRecorder) Name() string {
	return r.name
}

// Snapshot returns an immutable copy of the aggregated metrics.
func (r *ExpvarMetricsRecorder) Snapshot() ExpvarMetricsSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	durations := make(map[string]float64, len(r.durations))
	for op, total := range r.durations {
		durations[op] = total
	}
	slowest := make(map[string]float64, len(r.slowest))
	for op, ms := range r.slowest {
		slowest[op] = ms
	}
	results := make(map[string]map[string]int64, len(r.results))
	for op, statusCounts := range r.results {
		cpy := make(map[string]int64, len(statusCounts))
		for status, count := range statusCounts {
			cpy[status] = count
		}
		results[op] = cpy
	}

	return ExpvarMetricsSnapshot{
		DurationsMS: durations,
		SlowestMS:   slowest,
		Results:     results,
		RecordedAt:  time.Now().UTC(),
	}
}

// Observe records an operation outcome.
func (r *ExpvarMetricsRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	ms := float64(duration) / float64(time.Millisecond)

	r.mu.Lock()
	r.durations[operation] += ms
	if ms > r.slowest[operation] {
		r.slowest[operation] = ms
	}
	if _, ok := r.results[operation]; !ok {
		r.results[operation] = make(map[string]int64, 2)
	}
	r.results[operation][outcome(success)]++
	r.mu.Unlock()
}

// JSONTraceEntry represents a serialized trace span emitted by JSONTraceTracer.
type JSONTraceEntry struct {
	Operation   string    `json:"operation"`
	CharacterID string    `json:"character_id,omitempty"`
	Status      string    `json:"status"`
	DurationMS  float64   `json:"duration_ms"`
	Error       string    `json:"error,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	EndedAt     time.Time `json:"ended_at"`
}

// JSONTraceTracer writes spans as JSON lines and retains them for inspection.
type JSONTraceTracer struct {
	mu      sync.Mutex
	entries []JSONTraceEntry
	enc     *json.Encoder
	clock   clock.Clock
}

// NewJSONTracer constructs a tracer writing to w. A nil writer only retains spans.
func NewJSONTracer(w io.Writer) *JSONTraceTracer {
	var enc *json.Encoder
	if w != nil {
		enc = json.NewEncoder(w)
	}
	return &JSONTraceTracer{enc: enc, clock: clock.New()}
}

// WithClock replaces the tracer's time source and returns the tracer.
func (t *JSONTraceTracer) WithClock(c clock.Clock) *JSONTraceTracer {
	if c != nil {
		t.clock = c
	}
	return t
}

// Entries returns a copy of all recorded spans.
func (t *JSONTraceTracer) Entries() []JSONTraceEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]JSONTraceEntry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Start implements the Tracer interface.
func (t *JSONTraceTracer) Start(ctx context.Context, operation string) (context.Context, TraceSpan) {
	span := &jsonTraceSpan{
		tracer:      t,
		operation:   operation,
		characterID: CharacterIDFromContext(ctx),
		started:     t.clock.Now().UTC(),
	}
	return ctx, span
}

type jsonTraceSpan struct {
	tracer      *JSONTraceTracer
	operation   string
	characterID string
	started     time.Time
}

func (s *jsonTraceSpan) End(err error) {
	var errMsg string
	if err != nil {
		errMsg = err.Error()
	}
	ended := s.tracer.clock.Now().UTC()
	entry := JSONTraceEntry{
		Operation:   s.operation,
		CharacterID: s.characterID,
		Status:      outcome(err == nil),
		DurationMS:  float64(ended.Sub(s.started)) / float64(time.Millisecond),
		Error:       errMsg,
		StartedAt:   s.started,
		EndedAt:     ended,
	}

	s.tracer.mu.Lock()
	s.tracer.entries = append(s.tracer.entries, entry)
	if s.tracer.enc != nil {
		_ = s.tracer.enc.Encode(entry)
	}
	s.tracer.mu.Unlock()
}

func outcome(success bool) string {
	if success {
		return "success"
	}
	return "error"
}
