package telemetry

import (
	"context"
	"fmt"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Tracer opens conversion, hop, rebase and device spans.
type Tracer struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
	config   TracingConfig
}

// NewTracer builds a tracer provider for cfg. A disabled config yields a
// tracer on the global provider, which is a no-op unless the host installed
// one. The OpenTelemetry globals change only when cfg.SetGlobal is set.
func NewTracer(cfg TracingConfig, serviceName, serviceVersion, environment string) (*Tracer, error) {
	if !cfg.Enabled {
		return &Tracer{provider: sdktrace.NewTracerProvider(), tracer: otel.Tracer(serviceName), config: cfg}, nil
	}

	res, err := resource.New(context.Background(), resource.WithAttributes(
		semconv.ServiceNameKey.String(serviceName),
		semconv.ServiceVersionKey.String(serviceVersion),
		attribute.String("environment", environment),
	))
	if err != nil {
		return nil, fmt.Errorf("telemetry: trace resource: %w", err)
	}

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SamplingRate))),
	}
	exporter, err := newSpanExporter(cfg)
	if err != nil {
		return nil, err
	}
	if exporter != nil {
		opts = append(opts, sdktrace.WithBatcher(exporter,
			sdktrace.WithMaxExportBatchSize(cfg.MaxExportBatchSize),
			sdktrace.WithExportTimeout(cfg.ExportTimeout),
		))
	}

	provider := sdktrace.NewTracerProvider(opts...)
	if cfg.SetGlobal {
		otel.SetTracerProvider(provider)
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	}

	return NewTracerWithProvider(provider, serviceName), nil
}

// NewTracerWithProvider wraps an existing provider, e.g. one backed by an
// in-memory exporter in tests.
func NewTracerWithProvider(provider *sdktrace.TracerProvider, name string) *Tracer {
	return &Tracer{
		provider: provider,
		tracer:   provider.Tracer(name),
		config:   TracingConfig{Enabled: true},
	}
}

// newSpanExporter returns nil for the "none" exporter.
func newSpanExporter(cfg TracingConfig) (sdktrace.SpanExporter, error) {
	var (
		exp sdktrace.SpanExporter
		err error
	)
	switch cfg.Exporter {
	case "none":
		return nil, nil
	case "stdout":
		exp, err = stdouttrace.New(stdouttrace.WithPrettyPrint(), stdouttrace.WithWriter(os.Stderr))
	case "otlp":
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			opts = append(opts, otlptracegrpc.WithTLSCredentials(insecure.NewCredentials()))
		}
		if len(cfg.Headers) > 0 {
			opts = append(opts, otlptracegrpc.WithHeaders(cfg.Headers))
		}
		opts = append(opts, otlptracegrpc.WithDialOption(grpc.WithUserAgent("qbraid-go")))
		exp, err = otlptracegrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("telemetry: unknown trace exporter %q", cfg.Exporter)
	}
	if err != nil {
		return nil, fmt.Errorf("telemetry: %s trace exporter: %w", cfg.Exporter, err)
	}
	return exp, nil
}

// StartSpan starts a span with common attributes. A nil tracer starts a
// non-recording span.
func (t *Tracer) StartSpan(ctx context.Context, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if t == nil {
		return otel.Tracer("qbraid").Start(ctx, operation, trace.WithAttributes(attrs...))
	}
	return t.tracer.Start(ctx, operation, trace.WithAttributes(attrs...))
}

// StartTranspileSpan starts a span for a transpile call.
func (t *Tracer) StartTranspileSpan(ctx context.Context, source, target string) (context.Context, trace.Span) {
	return t.StartSpan(ctx, "transpile",
		AttrSourceType.String(source),
		AttrTargetType.String(target),
	)
}

// StartHopSpan starts a span for one converter invocation.
func (t *Tracer) StartHopSpan(ctx context.Context, index int, source, target string) (context.Context, trace.Span) {
	return t.StartSpan(ctx, "transpile.hop",
		AttrHopIndex.Int(index),
		AttrSourceType.String(source),
		AttrTargetType.String(target),
	)
}

// StartRebaseSpan starts a span for a gate-set rebase.
func (t *Tracer) StartRebaseSpan(ctx context.Context, target string) (context.Context, trace.Span) {
	return t.StartSpan(ctx, "compiler.rebase", AttrCompileTarget.String(target))
}

// StartDeviceSpan starts a span for a device operation.
func (t *Tracer) StartDeviceSpan(ctx context.Context, deviceID, operation string) (context.Context, trace.Span) {
	return t.StartSpan(ctx, fmt.Sprintf("device.%s", operation),
		AttrDeviceID.String(deviceID),
		AttrOperation.String(operation),
	)
}

// RecordError records err and marks span failed. A nil err is ignored.
func RecordError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// RecordSuccess sets an Ok status.
func RecordSuccess(span trace.Span) {
	span.SetStatus(codes.Ok, "")
}

// Shutdown flushes pending spans and stops the provider.
func (t *Tracer) Shutdown(ctx context.Context) error {
	if t == nil || t.provider == nil {
		return nil
	}
	return t.provider.Shutdown(ctx)
}

// TraceID returns the trace id carried by ctx, or "".
func TraceID(ctx context.Context) string {
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		return sc.TraceID().String()
	}
	return ""
}

// Span attribute keys.
var (
	AttrSourceType = attribute.Key("conversion.source")
	AttrTargetType = attribute.Key("conversion.target")
	AttrHopIndex   = attribute.Key("conversion.hop")
	AttrPathLength = attribute.Key("conversion.path_length")
	AttrPath       = attribute.Key("conversion.path")

	AttrCompileTarget = attribute.Key("compiler.target")
	AttrPredicate     = attribute.Key("compiler.predicate")

	AttrDeviceID  = attribute.Key("device.id")
	AttrJobID     = attribute.Key("job.id")
	AttrOperation = attribute.Key("operation")

	AttrErrorClass = attribute.Key("error.class")
	AttrErrorCode  = attribute.Key("error.code")
)
