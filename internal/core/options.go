package core

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"charsheet/pkg/domain"
)

// Logger is the structured logging surface used by the service. Key-value
// pairs follow the message, e.g. Info("saved", "id", id).
type Logger interface {
	Debug(msg string, kv ...any)
	Info(msg string, kv ...any)
	Warn(msg string, kv ...any)
	Error(msg string, kv ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// MetricsRecorder observes the outcome and latency of service operations.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

type noopMetrics struct{}

func (noopMetrics) Observe(context.Context, string, bool, time.Duration) {}

// Tracer starts spans around service operations.
type Tracer interface {
	Start(ctx context.Context, operation string) (context.Context, TraceSpan)
}

// TraceSpan is closed with the operation's error, nil on success.
type TraceSpan interface {
	End(err error)
}

type noopTracer struct{}

func (noopTracer) Start(ctx context.Context, _ string) (context.Context, TraceSpan) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) End(error) {}

// ServiceOption configures optional collaborators of a Service.
type ServiceOption func(*Service)

// WithLogger sets the service logger.
func WithLogger(l Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithZapLogger routes service and autosave logging through l.
func WithZapLogger(l *zap.Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.logger = NewZapLogger(l)
		}
	}
}

// WithMetricsRecorder sets the metrics sink.
func WithMetricsRecorder(m MetricsRecorder) ServiceOption {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithTracer sets the tracer.
func WithTracer(t Tracer) ServiceOption {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithNotifier sets the sink for user-facing notifications.
func WithNotifier(n Notifier) ServiceOption {
	return func(s *Service) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithClock injects the time source shared with autosave schedulers.
func WithClock(c clock.Clock) ServiceOption {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithQuietPeriod overrides the autosave debounce delay of new sessions.
func WithQuietPeriod(d time.Duration) ServiceOption {
	return func(s *Service) {
		if d > 0 {
			s.quiet = d
		}
	}
}

// WithPersistTimeout bounds each timer-triggered autosave.
func WithPersistTimeout(d time.Duration) ServiceOption {
	return func(s *Service) {
		if d >= 0 {
			s.persistTimeout = d
		}
	}
}

// WithRulesEngine replaces the default rules engine.
func WithRulesEngine(e *RulesEngine) ServiceOption {
	return func(s *Service) {
		if e != nil {
			s.engine = e
		}
	}
}

// WithBackpackCapacity sets the initial backpack capacity of new sessions.
func WithBackpackCapacity(n int) ServiceOption {
	return func(s *Service) {
		if n >= domain.MinBackpackCapacity && n <= domain.MaxBackpackCapacity {
			s.capacity = n
		}
	}
}

// WithTemplate replaces the built-in new-character template.
func WithTemplate(c domain.Character, st domain.Status) ServiceOption {
	return func(s *Service) {
		s.template = c.Clone()
		s.statusTemplate = st.Clone()
	}
}

// WithExporter enables Service.Export.
func WithExporter(e Exporter) ServiceOption {
	return func(s *Service) {
		if e != nil {
			s.exporter = e
		}
	}
}
