package telemetry

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/qbraid/qbraid-go/pkg/qerrors"
)

// Telemetry groups the per-process logger, tracer, metrics and events.
type Telemetry struct {
	Logger  *Logger
	Tracer  *Tracer
	Metrics *Metrics
	Events  *EventPublisher
	Config  *Config
}

type telemetryContextKey struct{}

// NewTelemetry validates cfg and builds every component.
func NewTelemetry(cfg *Config) (*Telemetry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	tel := &Telemetry{Config: cfg}
	var err error
	if tel.Logger, err = NewLogger(cfg.Logging); err != nil {
		return nil, err
	}
	if tel.Tracer, err = NewTracer(cfg.Tracing, cfg.ServiceName, cfg.ServiceVersion, cfg.Environment); err != nil {
		return nil, err
	}
	if tel.Metrics, err = NewMetrics(cfg.Metrics); err != nil {
		return nil, err
	}
	if tel.Events, err = NewEventPublisher(cfg.Events); err != nil {
		return nil, err
	}
	return tel, nil
}

// WithContext stores t and its logger in ctx.
func (t *Telemetry) WithContext(ctx context.Context) context.Context {
	return t.Logger.WithContext(context.WithValue(ctx, telemetryContextKey{}, t))
}

// FromTelemetryContext returns the Telemetry stored in ctx, or nil.
func FromTelemetryContext(ctx context.Context) *Telemetry {
	t, _ := ctx.Value(telemetryContextKey{}).(*Telemetry)
	return t
}

// Shutdown drains queued events and flushes pending spans.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	return errors.Join(t.Events.Shutdown(ctx), t.Tracer.Shutdown(ctx))
}

// Operation is one instrumented call: a span, a logger tagged with the
// operation and trace ids, and a timer.
type Operation struct {
	Ctx    context.Context
	Name   string
	Span   trace.Span
	Logger *Logger
	Timer  *Timer
}

// StartOperation opens an operation using the Telemetry stored in ctx.
// Without one it returns a logger-only operation.
func StartOperation(ctx context.Context, name string, attrs ...attribute.KeyValue) *Operation {
	tel := FromTelemetryContext(ctx)
	if tel == nil {
		return &Operation{Ctx: ctx, Name: name, Logger: FromContext(ctx), Timer: NewTimer()}
	}

	spanCtx, span := tel.Tracer.StartSpan(ctx, name, append(attrs, AttrOperation.String(name))...)
	logger := tel.Logger.WithField("operation", name)
	if id := TraceID(spanCtx); id != "" {
		logger = logger.WithFields(map[string]interface{}{
			"trace_id": id,
			"span_id":  span.SpanContext().SpanID().String(),
		})
	}

	return &Operation{
		Ctx:    logger.WithContext(spanCtx),
		Name:   name,
		Span:   span,
		Logger: logger,
		Timer:  NewTimer(),
	}
}

// End closes the span, tagging failures with their error class and code.
func (op *Operation) End(err error) {
	if err != nil {
		op.Logger.zlog.Debug().Err(err).Dur("duration", op.Timer.Duration()).Msg("Operation failed")
	}
	if op.Span == nil {
		return
	}
	if err != nil {
		op.Span.SetAttributes(
			AttrErrorClass.String(string(qerrors.ClassOf(err))),
			AttrErrorCode.String(qerrors.CodeOf(err)),
		)
		RecordError(op.Span, err)
	} else {
		RecordSuccess(op.Span)
	}
	op.Span.End()
}
