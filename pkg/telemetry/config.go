package telemetry

import (
	"fmt"
	"time"
)

// Config is the telemetry section of the qbraid configuration.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string

	Logging LoggingConfig
	Tracing TracingConfig
	Metrics MetricsConfig
	Events  EventsConfig
}

// LoggingConfig selects the zerolog level, format and sink. Output is
// "stdout", "stderr" or a file path.
type LoggingConfig struct {
	Level        string
	Format       string // console or json
	Output       string
	EnableCaller bool
	TimeFormat   string // unix or rfc3339
}

// TracingConfig controls span export. Exporter is one of otlp, stdout or
// none; none still creates spans so trace ids appear in logs.
type TracingConfig struct {
	Enabled            bool
	Exporter           string
	Endpoint           string
	SamplingRate       float64
	MaxExportBatchSize int
	ExportTimeout      time.Duration
	Headers            map[string]string
	Insecure           bool

	// SetGlobal installs the provider and a W3C propagator as the
	// OpenTelemetry globals. Off by default so embedding hosts keep theirs.
	SetGlobal bool
}

// MetricsConfig controls the Prometheus registry and its HTTP endpoint.
type MetricsConfig struct {
	Enabled                 bool
	ListenAddress           string
	Path                    string
	Namespace               string
	DefaultHistogramBuckets []float64
}

// EventsConfig sizes the lifecycle event queue.
type EventsConfig struct {
	Enabled    bool
	BufferSize int
}

// DefaultConfig returns a default telemetry configuration. Tracing is off
// because the CLI writes converted programs to stdout.
func DefaultConfig() *Config {
	return &Config{
		ServiceName:    "qbraid",
		ServiceVersion: "dev",
		Environment:    "development",
		Logging: LoggingConfig{
			Level:        "info",
			Format:       "console",
			Output:       "stderr",
			EnableCaller: false,
			TimeFormat:   "rfc3339",
		},
		Tracing: TracingConfig{
			Enabled:            false,
			Exporter:           "none",
			SamplingRate:       1.0,
			MaxExportBatchSize: 512,
			ExportTimeout:      30 * time.Second,
			Headers:            make(map[string]string),
			Insecure:           true,
		},
		Metrics: MetricsConfig{
			Enabled:       true,
			ListenAddress: ":9090",
			Path:          "/metrics",
			Namespace:     "qbraid",
			DefaultHistogramBuckets: []float64{
				0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0,
			},
		},
		Events: EventsConfig{
			Enabled:    true,
			BufferSize: 256,
		},
	}
}

var (
	logLevels  = []string{"trace", "debug", "info", "warn", "error", "fatal"}
	logFormats = []string{"console", "json"}
	traceSinks = []string{"otlp", "stdout", "none"}
)

func oneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

// Validate reports the first inconsistent setting.
func (c *Config) Validate() error {
	switch {
	case c.ServiceName == "":
		return fmt.Errorf("telemetry: service name is required")
	case !oneOf(c.Logging.Level, logLevels):
		return fmt.Errorf("telemetry: unknown log level %q", c.Logging.Level)
	case !oneOf(c.Logging.Format, logFormats):
		return fmt.Errorf("telemetry: log format %q is not one of %v", c.Logging.Format, logFormats)
	case c.Tracing.Enabled && !oneOf(c.Tracing.Exporter, traceSinks):
		return fmt.Errorf("telemetry: unknown trace exporter %q", c.Tracing.Exporter)
	case c.Tracing.SamplingRate < 0 || c.Tracing.SamplingRate > 1:
		return fmt.Errorf("telemetry: sampling rate %v outside [0, 1]", c.Tracing.SamplingRate)
	case c.Events.Enabled && c.Events.BufferSize <= 0:
		return fmt.Errorf("telemetry: event buffer size must be positive, got %d", c.Events.BufferSize)
	}
	return nil
}
