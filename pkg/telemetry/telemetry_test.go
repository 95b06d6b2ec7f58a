package telemetry

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/qbraid/qbraid-go/pkg/qerrors"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "default", mutate: func(*Config) {}},
		{name: "bad level", mutate: func(c *Config) { c.Logging.Level = "loud" }, wantErr: "unknown log level"},
		{name: "bad format", mutate: func(c *Config) { c.Logging.Format = "xml" }, wantErr: "log format \"xml\""},
		{name: "bad exporter", mutate: func(c *Config) {
			c.Tracing.Enabled = true
			c.Tracing.Exporter = "jaeger"
		}, wantErr: "unknown trace exporter"},
		{name: "bad sampling", mutate: func(c *Config) { c.Tracing.SamplingRate = 2 }, wantErr: "sampling rate"},
		{name: "no service", mutate: func(c *Config) { c.ServiceName = "" }, wantErr: "service name"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestMetricsNilSafe(t *testing.T) {
	var m *Metrics
	m.RecordConversion("a", "b", "success", 1, time.Millisecond)
	m.RecordHop("a", "b", "success", time.Millisecond)
	m.RecordGraphRebuild(2, 1)
	m.RecordError("permanent", "X")

	disabled, err := NewMetrics(MetricsConfig{Enabled: false})
	require.NoError(t, err)
	disabled.RecordPathCacheLookup(true)
	assert.Nil(t, disabled.Registry())
}

func TestMetricsHandler(t *testing.T) {
	m, err := NewMetrics(DefaultConfig().Metrics)
	require.NoError(t, err)
	m.RecordGraphRebuild(8, 20)
	m.RecordConversion("braket", "qiskit", "success", 2, time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "qbraid_graph_edges 20"))
	assert.True(t, strings.Contains(body, `qbraid_conversions_total{source="braket",status="success",target="qiskit"} 1`))
}

func TestTracerSpans(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	tracer := NewTracerWithProvider(provider, "test")

	ctx, span := tracer.StartTranspileSpan(context.Background(), "braket", "qiskit")
	_, hop := tracer.StartHopSpan(ctx, 0, "braket", "qasm2")
	RecordError(hop, errors.New("boom"))
	hop.End()
	RecordSuccess(span)
	span.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)
	assert.Equal(t, "transpile.hop", spans[0].Name)
	assert.Equal(t, "transpile", spans[1].Name)
	assert.Equal(t, spans[1].SpanContext.SpanID(), spans[0].Parent.SpanID())
}

func TestNewTracerLeavesGlobalProvider(t *testing.T) {
	before := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(before) })

	cfg := DefaultConfig().Tracing
	cfg.Enabled = true

	tracer, err := NewTracer(cfg, "qbraid-test", "test", "test")
	require.NoError(t, err)
	defer func() { _ = tracer.Shutdown(context.Background()) }()
	assert.Equal(t, before, otel.GetTracerProvider())

	cfg.SetGlobal = true
	global, err := NewTracer(cfg, "qbraid-test", "test", "test")
	require.NoError(t, err)
	defer func() { _ = global.Shutdown(context.Background()) }()
	assert.Equal(t, global.provider, otel.GetTracerProvider())
}

func TestEventPublisherOrderAndShutdown(t *testing.T) {
	ep, err := NewEventPublisher(EventsConfig{Enabled: true, BufferSize: 16})
	require.NoError(t, err)

	var got []string
	ep.Subscribe(func(e Event) { got = append(got, e.Type) }, FilterByJobID("job-1"))

	require.NoError(t, ep.PublishJobSubmitted("job-1", "dev", "qasm3", 10))
	require.NoError(t, ep.PublishJobSubmitted("job-2", "dev", "qasm3", 10))
	require.NoError(t, ep.PublishJobStatus("job-1", "dev", "failed", "backend offline"))
	require.NoError(t, ep.Shutdown(context.Background()))

	assert.Equal(t, []string{EventTypeJobSubmitted, EventTypeJobFailed}, got)
	assert.Error(t, ep.Publish(Event{Type: "late"}))
}

func TestStartOperationWithoutTelemetry(t *testing.T) {
	op := StartOperation(context.Background(), "noop")
	require.NotNil(t, op.Logger)
	assert.Nil(t, op.Span)
	op.End(errors.New("ignored"))
}

func TestStartOperationTagsErrors(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))

	cfg := DefaultConfig()
	cfg.Metrics.Enabled = false
	cfg.Events.Enabled = false
	tel, err := NewTelemetry(cfg)
	require.NoError(t, err)
	tel.Tracer = NewTracerWithProvider(provider, "test")

	ctx := tel.WithContext(context.Background())
	require.Same(t, tel, FromTelemetryContext(ctx))

	op := StartOperation(ctx, "cli.transpile", AttrTargetType.String("qiskit"))
	require.NotNil(t, op.Span)
	op.End(qerrors.NewUnavailable("no path", nil).WithCode(qerrors.ErrCodePathNotFound))

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "cli.transpile", spans[0].Name)

	attrs := map[string]string{}
	for _, kv := range spans[0].Attributes {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	assert.Equal(t, "unavailable", attrs["error.class"])
	assert.Equal(t, qerrors.ErrCodePathNotFound, attrs["error.code"])
	assert.Equal(t, "qiskit", attrs["conversion.target"])
}

func TestLoggerFields(t *testing.T) {
	var buf strings.Builder
	logger := NewLoggerFrom(zerolog.New(&buf)).
		Component("devices").
		WithDevice("sim").
		WithJob("job-1").
		WithConversion("qasm2", "qiskit")
	logger.Info("job submitted")

	out := buf.String()
	for _, want := range []string{`"component":"devices"`, `"device_id":"sim"`, `"job_id":"job-1"`, `"source":"qasm2"`, `"target":"qiskit"`, `"message":"job submitted"`} {
		assert.Contains(t, out, want)
	}

	ctx := logger.WithContext(context.Background())
	assert.Same(t, logger, FromContext(ctx))
}
