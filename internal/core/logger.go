package core

import "go.uber.org/zap"

type zapLogger struct {
	sugar *zap.SugaredLogger
}

// NewZapLogger adapts a zap logger to the Logger interface. A nil logger
// yields a no-op.
func NewZapLogger(l *zap.Logger) Logger {
	if l == nil {
		return noopLogger{}
	}
	return zapLogger{sugar: l.Sugar()}
}

func (z zapLogger) Debug(msg string, kv ...any) { z.sugar.Debugw(msg, kv...) }
func (z zapLogger) Info(msg string, kv ...any)  { z.sugar.Infow(msg, kv...) }
func (z zapLogger) Warn(msg string, kv ...any)  { z.sugar.Warnw(msg, kv...) }
func (z zapLogger) Error(msg string, kv ...any) { z.sugar.Errorw(msg, kv...) }

// fieldLogger prepends fixed key-value pairs to every entry.
type fieldLogger struct {
	next Logger
	kv   []any
}

func withFields(l Logger, kv ...any) Logger {
	return fieldLogger{next: l, kv: kv}
}

func (f fieldLogger) Debug(msg string, kv ...any) { f.next.Debug(msg, f.join(kv)...) }
func (f fieldLogger) Info(msg string, kv ...any)  { f.next.Info(msg, f.join(kv)...) }
func (f fieldLogger) Warn(msg string, kv ...any)  { f.next.Warn(msg, f.join(kv)...) }
func (f fieldLogger) Error(msg string, kv ...any) { f.next.Error(msg, f.join(kv)...) }

func (f fieldLogger) join(kv []any) []any {
	out := make([]any, 0, len(f.kv)+len(kv))
	return append(append(out, f.kv...), kv...)
}
