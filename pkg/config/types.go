package config

import (
	"strconv"
	"time"
)

// Config is the process-wide configuration. It is constructed once, by
// Default or Load, and passed to the components that need it.
type Config struct {
	// Transpiler tunes path selection and execution.
	Transpiler TranspilerConfig `mapstructure:"transpiler" json:"transpiler"`

	// Extras adjusts the probed set of installed extras.
	Extras ExtrasConfig `mapstructure:"extras" json:"extras"`

	// Plugins configures WASM converter plugins.
	Plugins PluginsConfig `mapstructure:"plugins" json:"plugins"`

	// Starlark declares scripted converters.
	Starlark StarlarkConfig `mapstructure:"starlark" json:"starlark"`

	// Policy configures conversion path policies.
	Policy PolicyConfig `mapstructure:"policy" json:"policy"`

	// Store configures job persistence.
	Store StoreConfig `mapstructure:"store" json:"store"`

	// Telemetry configures logging, metrics and tracing.
	Telemetry TelemetryConfig `mapstructure:"telemetry" json:"telemetry"`

	// Devices lists the device profiles available for submission.
	Devices []DeviceProfile `mapstructure:"devices" json:"devices,omitempty" validate:"dive"`
}

// TranspilerConfig tunes the conversion graph.
type TranspilerConfig struct {
	// LossyPenalty is added to the weight of lossy edges.
	LossyPenalty int `mapstructure:"lossy_penalty" json:"lossy_penalty" validate:"gte=0"`

	// MaxHops bounds path length. Zero means unbounded.
	MaxHops int `mapstructure:"max_hops" json:"max_hops" validate:"gte=0"`

	// PathCacheSize is the number of resolved paths kept. Zero disables the
	// cache.
	PathCacheSize int `mapstructure:"path_cache_size" json:"path_cache_size" validate:"gte=0"`

	// Trace keeps every intermediate program in conversion results.
	Trace bool `mapstructure:"trace" json:"trace"`
}

// ExtrasConfig adds and removes extras from the probed set.
type ExtrasConfig struct {
	Enabled  []string `mapstructure:"enabled" json:"enabled,omitempty"`
	Disabled []string `mapstructure:"disabled" json:"disabled,omitempty"`
}

// PluginsConfig configures the WASM plugin host.
type PluginsConfig struct {
	// Dir is scanned for plugin directories containing manifest.yaml.
	Dir string `mapstructure:"dir" json:"dir,omitempty"`

	// Watch reloads plugins when Dir changes.
	Watch bool `mapstructure:"watch" json:"watch"`

	// MemoryLimitPages caps plugin memory in 64KiB pages.
	MemoryLimitPages uint32 `mapstructure:"memory_limit_pages" json:"memory_limit_pages" validate:"lte=65536"`

	// Timeout bounds a single plugin call.
	Timeout time.Duration `mapstructure:"timeout" json:"timeout"`

	// Debounce delays reloads after a burst of file events.
	Debounce time.Duration `mapstructure:"debounce" json:"debounce"`
}

// StarlarkConfig declares Starlark converters.
type StarlarkConfig struct {
	// Timeout bounds a single script call.
	Timeout time.Duration `mapstructure:"timeout" json:"timeout"`

	// Converters are registered in order.
	Converters []StarlarkConverter `mapstructure:"converters" json:"converters,omitempty" validate:"dive"`
}

// StarlarkConverter is a converter implemented by a Starlark script that
// defines convert(program, ctx).
type StarlarkConverter struct {
	Name   string `mapstructure:"name" json:"name,omitempty"`
	Source string `mapstructure:"source" json:"source" validate:"required"`
	Target string `mapstructure:"target" json:"target" validate:"required,nefield=Source"`

	// Script is the inline script body.
	Script string `mapstructure:"script" json:"script,omitempty" validate:"required_without=File"`

	// File is a script path, used when Script is empty.
	File string `mapstructure:"file" json:"file,omitempty"`

	Lossy bool `mapstructure:"lossy" json:"lossy"`
}

// PolicyConfig configures policy evaluation of resolved paths.
type PolicyConfig struct {
	// Enabled turns policy evaluation on.
	Enabled bool `mapstructure:"enabled" json:"enabled"`

	// Mode is advisory (log only) or enforcing (deny on error severity).
	Mode string `mapstructure:"mode" json:"mode" validate:"omitempty,oneof=advisory enforcing"`

	// Paths lists additional Rego files or directories.
	Paths []string `mapstructure:"paths" json:"paths,omitempty"`
}

// StoreConfig configures the job store.
type StoreConfig struct {
	// Path is the SQLite database file. ":memory:" keeps jobs in memory.
	Path string `mapstructure:"path" json:"path" validate:"required"`
}

// TelemetryConfig configures logging, metrics and tracing.
type TelemetryConfig struct {
	LogLevel  string `mapstructure:"log_level" json:"log_level" validate:"oneof=trace debug info warn error fatal"`
	LogFormat string `mapstructure:"log_format" json:"log_format" validate:"oneof=console json"`

	MetricsEnabled bool   `mapstructure:"metrics_enabled" json:"metrics_enabled"`
	MetricsListen  string `mapstructure:"metrics_listen" json:"metrics_listen"`

	TracingExporter string  `mapstructure:"tracing_exporter" json:"tracing_exporter" validate:"oneof=none stdout otlp"`
	TracingEndpoint string  `mapstructure:"tracing_endpoint" json:"tracing_endpoint,omitempty" validate:"required_if=TracingExporter otlp"`
	SamplingRate    float64 `mapstructure:"sampling_rate" json:"sampling_rate" validate:"gte=0,lte=1"`

	// TracingGlobal installs the tracer as the process-wide OpenTelemetry
	// provider.
	TracingGlobal bool `mapstructure:"tracing_global" json:"tracing_global,omitempty"`
}

// DeviceProfile describes a device and the programs it accepts.
type DeviceProfile struct {
	// ID identifies the device.
	ID string `mapstructure:"id" json:"id" validate:"required"`

	// Provider names the backend that runs jobs, e.g. "dryrun".
	Provider string `mapstructure:"provider" json:"provider" validate:"required"`

	// ProgramType is the program type the device accepts.
	ProgramType string `mapstructure:"program_type" json:"program_type" validate:"required"`

	// BasisGates is the native gate set. Empty accepts any gate.
	BasisGates []string `mapstructure:"basis_gates" json:"basis_gates,omitempty"`

	// NumQubits is the device width. Zero means unbounded.
	NumQubits int `mapstructure:"num_qubits" json:"num_qubits" validate:"gte=0"`

	AllowMidMeasure       bool `mapstructure:"allow_mid_measure" json:"allow_mid_measure"`
	AllowClassicalControl bool `mapstructure:"allow_classical_control" json:"allow_classical_control"`

	// Simulator marks devices without hardware constraints on shots.
	Simulator bool `mapstructure:"simulator" json:"simulator"`

	// MaxShots bounds shots per job. Zero means unbounded.
	MaxShots int `mapstructure:"max_shots" json:"max_shots" validate:"gte=0"`
}

// ValidationError is a configuration problem with its location.
type ValidationError struct {
	// File is the source file path.
	File string `json:"file,omitempty"`

	// Line is the line number (1-indexed).
	Line int `json:"line,omitempty"`

	// Column is the column number (1-indexed).
	Column int `json:"column,omitempty"`

	// Path is the field path, e.g. "transpiler.lossy_penalty".
	Path string `json:"path,omitempty"`

	// Message is the error message.
	Message string `json:"message"`
}

// String formats the error as file:line:col: path: message.
func (e ValidationError) String() string {
	loc := ""
	if e.File != "" {
		loc = e.File
		if e.Line > 0 {
			loc += ":" + strconv.Itoa(e.Line)
			if e.Column > 0 {
				loc += ":" + strconv.Itoa(e.Column)
			}
		}
		loc += ": "
	}
	if e.Path != "" {
		loc += e.Path + ": "
	}
	return loc + e.Message
}
