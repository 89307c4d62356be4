package core

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"expvar"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestExpvarMetricsRecorder(t *testing.T) {
	rec := NewExpvarMetricsRecorder("")
	if expvar.Get(rec.Name()) == nil {
		t.Fatalf("recorder not published under %s", rec.Name())
	}
	ctx := context.Background()
	rec.Observe(ctx, OpPersist, true, 40*time.Millisecond)
	rec.Observe(ctx, OpPersist, false, 10*time.Millisecond)
	rec.Observe(ctx, "", true, time.Second)

	snap := rec.Snapshot()
	if snap.DurationsMS[OpPersist] != 50 || snap.SlowestMS[OpPersist] != 40 {
		t.Fatalf("unexpected durations %+v", snap)
	}
	if snap.Results[OpPersist]["success"] != 1 || snap.Results[OpPersist]["error"] != 1 {
		t.Fatalf("unexpected results %+v", snap.Results)
	}
	if len(snap.Results) != 1 {
		t.Fatalf("empty operation recorded: %+v", snap.Results)
	}
}

func TestJSONTraceTracer(t *testing.T) {
	mock := clock.NewMock()
	var buf bytes.Buffer
	tracer := NewJSONTracer(&buf).WithClock(mock)

	ctx := ContextWithCharacterID(context.Background(), "c1")
	_, span := tracer.Start(ctx, OpExport)
	mock.Add(250 * time.Millisecond)
	span.End(errors.New("render failed"))

	entries := tracer.Entries()
	if len(entries) != 1 {
		t.Fatalf("expected one span, got %d", len(entries))
	}
	e := entries[0]
	if e.Operation != OpExport || e.CharacterID != "c1" || e.Status != "error" || e.DurationMS != 250 || e.Error != "render failed" {
		t.Fatalf("unexpected entry %+v", e)
	}
	var decoded JSONTraceEntry
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &decoded); err != nil {
		t.Fatalf("decode line: %v", err)
	}
	if decoded.Operation != OpExport {
		t.Fatalf("unexpected json line %s", buf.String())
	}
}

func TestPrometheusMetricsRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, err := NewPrometheusMetricsRecorder(reg)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	ctx := context.Background()
	rec.Observe(ctx, OpPersist, true, 30*time.Millisecond)
	rec.Observe(ctx, OpPersist, true, 10*time.Millisecond)
	rec.Observe(ctx, OpPersist, false, 10*time.Millisecond)

	if got := promtest.ToFloat64(rec.results.WithLabelValues(OpPersist, "success")); got != 2 {
		t.Fatalf("success count %v, want 2", got)
	}
	if got := promtest.CollectAndCount(rec.latency); got != 1 {
		t.Fatalf("latency series %d, want 1", got)
	}
	if _, err := NewPrometheusMetricsRecorder(reg); err == nil {
		t.Fatalf("duplicate registration should fail")
	}
}

func TestZapLoggerBackedService(t *testing.T) {
	obs, logs := observer.New(zapcore.DebugLevel)
	f := newFixture(t, WithZapLogger(zap.New(obs)))
	sess := f.open(t)

	if _, err := sess.SetScalar(context.Background(), "notes", "zap"); err != nil {
		t.Fatalf("edit: %v", err)
	}
	if err := sess.Save(context.Background()); err != nil {
		t.Fatalf("save: %v", err)
	}
	saved := logs.FilterMessage("character saved").All()
	if len(saved) != 1 || saved[0].ContextMap()["id"] != f.original.ID {
		t.Fatalf("expected a structured save entry, got %+v", logs.All())
	}
	if logs.FilterMessage("autosave flush").FilterField(zap.String("character_id", f.original.ID)).Len() != 1 {
		t.Fatalf("scheduler did not log through the session logger")
	}
	if NewZapLogger(nil) != (noopLogger{}) {
		t.Fatalf("nil zap logger should be a no-op")
	}
}

func TestSchedulerLogsThroughServiceLogger(t *testing.T) {
	f := newFixture(t)
	sess := f.open(t)
	if _, err := sess.SetScalar(context.Background(), "notes", "plain"); err != nil {
		t.Fatalf("edit: %v", err)
	}
	if err := sess.Save(context.Background()); err != nil {
		t.Fatalf("save: %v", err)
	}
	if id, ok := f.logger.value("autosave flush", "character_id"); !ok || id != f.original.ID {
		t.Fatalf("scheduler entry without character id: %v %v", id, ok)
	}
}

func TestNotificationLogDrain(t *testing.T) {
	var log NotificationLog
	var forwarded []string
	sink := NotifierFunc(func(n Notification) {
		forwarded = append(forwarded, n.Message)
		log.Notify(n)
	})
	sink.Notify(Notification{Level: NotifyInfo, Message: "one"})
	sink.Notify(Notification{Level: NotifyError, Message: "two"})

	if got := log.Drain(); len(got) != 2 || got[1].Level != NotifyError {
		t.Fatalf("unexpected drain %+v", got)
	}
	if len(log.Entries()) != 0 {
		t.Fatalf("drain did not clear the log")
	}
	if strings.Join(forwarded, ",") != "one,two" {
		t.Fatalf("unexpected forwarding %v", forwarded)
	}
}
