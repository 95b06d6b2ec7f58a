package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"

	"github.com/qbraid/qbraid-go/pkg/capabilities"
	"github.com/qbraid/qbraid-go/pkg/telemetry"
)

// EnvConfig names the configuration file read by FromEnv.
const EnvConfig = "QBRAID_CONFIG"

// Default returns the full default configuration.
func Default() *Config {
	return &Config{
		Transpiler: TranspilerConfig{
			LossyPenalty:  10,
			PathCacheSize: 256,
		},
		Plugins: PluginsConfig{
			MemoryLimitPages: 256,
			Timeout:          5 * time.Second,
			Debounce:         250 * time.Millisecond,
		},
		Starlark: StarlarkConfig{
			Timeout: 5 * time.Second,
		},
		Policy: PolicyConfig{
			Mode: "advisory",
		},
		Store: StoreConfig{
			Path: ":memory:",
		},
		Telemetry: TelemetryConfig{
			LogLevel:        "info",
			LogFormat:       "console",
			MetricsEnabled:  true,
			MetricsListen:   ":9090",
			TracingExporter: "none",
			SamplingRate:    1.0,
		},
	}
}

// LoadError reports every problem found while loading a configuration.
type LoadError struct {
	Errors []ValidationError
}

// Error implements the error interface.
func (e *LoadError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, ve := range e.Errors {
		msgs[i] = ve.String()
	}
	return "invalid configuration: " + strings.Join(msgs, "; ")
}

// FromEnv loads the file named by QBRAID_CONFIG, or returns Default when
// the variable is unset.
func FromEnv(ctx context.Context) (*Config, error) {
	path := os.Getenv(EnvConfig)
	if path == "" {
		return Default(), nil
	}
	return Load(ctx, path)
}

// Load reads a YAML (.yaml, .yml) or CUE (.cue) file over the defaults.
// The data is checked against the built-in CUE schema, decoded, and then
// validated.
func Load(ctx context.Context, path string) (*Config, error) {
	var (
		raw  map[string]interface{}
		errs []ValidationError
	)

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, &LoadError{Errors: []ValidationError{{File: path, Message: err.Error()}}}
		}
	case ".cue":
		parsed, err := NewCUEParser().Parse(ctx, []string{path})
		if err != nil {
			return nil, err
		}
		raw, errs = parsed.Raw, parsed.Errors
	default:
		return nil, fmt.Errorf("unsupported config format %q", ext)
	}
	if len(errs) > 0 {
		return nil, &LoadError{Errors: errs}
	}

	if errs := NewSchemaRegistry().ValidateConfig(raw); len(errs) > 0 {
		for i := range errs {
			errs[i].File = path
		}
		return nil, &LoadError{Errors: errs}
	}

	cfg, err := Decode(raw)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// Decode decodes a loosely typed map over the defaults and validates the
// result.
func Decode(raw map[string]interface{}) (*Config, error) {
	cfg := Default()
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
		ErrorUnused:      true,
		WeaklyTypedInput: true,
		Result:           cfg,
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, &LoadError{Errors: []ValidationError{{Message: err.Error()}}}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validate = newValidator()

// newValidator reports fields by their mapstructure names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("mapstructure"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks struct constraints and cross-field rules.
func (c *Config) Validate() error {
	var errs []ValidationError
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		for _, fe := range verrs {
			errs = append(errs, ValidationError{
				Path:    fieldPath(fe.Namespace()),
				Message: fmt.Sprintf("failed %q constraint", fe.Tag()),
			})
		}
	}

	seen := map[string]bool{}
	for i, d := range c.Devices {
		if seen[d.ID] {
			errs = append(errs, ValidationError{
				Path:    fmt.Sprintf("devices[%d].id", i),
				Message: fmt.Sprintf("duplicate device id %q", d.ID),
			})
		}
		seen[d.ID] = true
	}

	if len(errs) > 0 {
		return &LoadError{Errors: errs}
	}
	return nil
}

// fieldPath drops the root struct name from a validator namespace.
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

// Probe wraps base with the configured extra additions and removals.
func (c *Config) Probe(base capabilities.Probe) capabilities.Probe {
	return capabilities.Adjust(base,
		func() []string { return c.Extras.Enabled },
		func() []string { return c.Extras.Disabled },
	)
}

// Device returns the profile with the given id.
func (c *Config) Device(id string) (DeviceProfile, bool) {
	for _, d := range c.Devices {
		if d.ID == id {
			return d, true
		}
	}
	return DeviceProfile{}, false
}

// TelemetryConfig returns the telemetry configuration for this process.
func (c *Config) TelemetryConfig() *telemetry.Config {
	tc := telemetry.DefaultConfig()
	tc.Logging.Level = c.Telemetry.LogLevel
	tc.Logging.Format = c.Telemetry.LogFormat
	tc.Metrics.Enabled = c.Telemetry.MetricsEnabled
	if c.Telemetry.MetricsListen != "" {
		tc.Metrics.ListenAddress = c.Telemetry.MetricsListen
	}
	tc.Tracing.Enabled = c.Telemetry.TracingExporter != "none"
	tc.Tracing.Exporter = c.Telemetry.TracingExporter
	tc.Tracing.Endpoint = c.Telemetry.TracingEndpoint
	tc.Tracing.SamplingRate = c.Telemetry.SamplingRate
	tc.Tracing.SetGlobal = c.Telemetry.TracingGlobal
	return tc
}
