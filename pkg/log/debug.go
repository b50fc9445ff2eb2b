package log

import (
	"context"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/gpufleet/reviewqueue/pkg/requestid"
)

// DebugLogger builds operation-scoped trace entries on top of the global
// zap logger. It is cheap to construct and safe to keep on a struct.
type DebugLogger struct {
	name string
}

func NewDebugLogger(name string) *DebugLogger {
	return &DebugLogger{name: name}
}

func (l *DebugLogger) WithContext(ctx context.Context) *TracerBuilder {
	return &TracerBuilder{name: l.name, ctx: ctx}
}

type TracerBuilder struct {
	name   string
	ctx    context.Context
	op     string
	params []any
}

func (b *TracerBuilder) Operation(op string) *TracerBuilder {
	b.op = op
	return b
}

func (b *TracerBuilder) WithParam(key string, value any) *TracerBuilder {
	b.params = append(b.params, key, value)
	return b
}

func (b *TracerBuilder) Build() *Tracer {
	fields := []any{"operation", b.op}
	if rid := requestid.FromContext(b.ctx); rid != "" {
		fields = append(fields, "request_id", rid)
	}
	fields = append(fields, b.params...)

	return &Tracer{
		logger: zap.S().Named(b.name).With(fields...),
		start:  time.Now(),
	}
}

// Tracer reports the outcome of the operation it was built for.
type Tracer struct {
	logger *zap.SugaredLogger
	start  time.Time
}

func (t *Tracer) Success() *Entry {
	return &Entry{
		logger: t.logger,
		level:  zapcore.DebugLevel,
		msg:    "ok",
		params: []any{"took", time.Since(t.start)},
	}
}

func (t *Tracer) Error(err error) *Entry {
	return &Entry{
		logger: t.logger,
		level:  zapcore.ErrorLevel,
		msg:    err.Error(),
		params: []any{"took", time.Since(t.start)},
	}
}

type Entry struct {
	logger *zap.SugaredLogger
	level  zapcore.Level
	msg    string
	params []any
}

func (e *Entry) WithParam(key string, value any) *Entry {
	e.params = append(e.params, key, value)
	return e
}

func (e *Entry) Log() {
	e.logger.Logw(e.level, e.msg, e.params...)
}
