package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/qbraid/qbraid-go/pkg/capabilities"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func loadErrors(t *testing.T, err error) []ValidationError {
	t.Helper()
	var le *LoadError
	if !errors.As(err, &le) {
		t.Fatalf("expected *LoadError, got %T: %v", err, err)
	}
	return le.Errors
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config is invalid: %v", err)
	}
	if cfg.Transpiler.LossyPenalty != 10 {
		t.Errorf("expected lossy penalty 10, got %d", cfg.Transpiler.LossyPenalty)
	}
	if cfg.Store.Path != ":memory:" {
		t.Errorf("expected in-memory store, got %q", cfg.Store.Path)
	}
}

const yamlConfig = `
transpiler:
  lossy_penalty: 20
  max_hops: 4
extras:
  disabled: [pennylane]
plugins:
  dir: /opt/qbraid/plugins
  timeout: 2s
  debounce: 100ms
starlark:
  converters:
    - source: qasm2
      target: pyquil
      script: "def convert(program):\n    return program\n"
policy:
  enabled: true
  mode: enforcing
devices:
  - id: ibm_sim
    provider: dryrun
    program_type: qasm2
    basis_gates: [rz, sx, x, cx]
    num_qubits: 5
`

func TestLoadYAML(t *testing.T) {
	cfg, err := Load(context.Background(), writeFile(t, "qbraid.yaml", yamlConfig))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Transpiler.LossyPenalty != 20 || cfg.Transpiler.MaxHops != 4 {
		t.Errorf("unexpected transpiler config: %+v", cfg.Transpiler)
	}
	// Unset keys keep their defaults.
	if cfg.Transpiler.PathCacheSize != 256 {
		t.Errorf("expected default path cache size, got %d", cfg.Transpiler.PathCacheSize)
	}
	if cfg.Plugins.Timeout != 2*time.Second || cfg.Plugins.Debounce != 100*time.Millisecond {
		t.Errorf("unexpected plugin durations: %+v", cfg.Plugins)
	}
	if len(cfg.Starlark.Converters) != 1 || cfg.Starlark.Converters[0].Target != "pyquil" {
		t.Errorf("unexpected starlark converters: %+v", cfg.Starlark.Converters)
	}
	if cfg.Policy.Mode != "enforcing" {
		t.Errorf("expected enforcing policy, got %q", cfg.Policy.Mode)
	}

	d, ok := cfg.Device("ibm_sim")
	if !ok {
		t.Fatal("device ibm_sim not found")
	}
	if d.NumQubits != 5 || strings.Join(d.BasisGates, ",") != "rz,sx,x,cx" {
		t.Errorf("unexpected device: %+v", d)
	}
}

func TestLoadCUE(t *testing.T) {
	content := `
transpiler: {
	lossy_penalty: 3
	trace:         true
}
telemetry: {
	log_level:  "debug"
	log_format: "json"
}
devices: [{
	id:           "rigetti_sim"
	provider:     "dryrun"
	program_type: "pyquil"
	num_qubits:   2 * 4
}]
`
	cfg, err := Load(context.Background(), writeFile(t, "qbraid.cue", content))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Transpiler.LossyPenalty != 3 || !cfg.Transpiler.Trace {
		t.Errorf("unexpected transpiler config: %+v", cfg.Transpiler)
	}
	if cfg.Telemetry.LogLevel != "debug" || cfg.Telemetry.LogFormat != "json" {
		t.Errorf("unexpected telemetry config: %+v", cfg.Telemetry)
	}
	if d, ok := cfg.Device("rigetti_sim"); !ok || d.NumQubits != 8 {
		t.Errorf("unexpected device: %+v", d)
	}
}

func TestLoadSchemaErrors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{
			name:    "unknown key",
			file:    "c.yaml",
			content: "transpiler:\n  bogus: 1\n",
		},
		{
			name:    "negative penalty",
			file:    "c.yaml",
			content: "transpiler:\n  lossy_penalty: -1\n",
		},
		{
			name:    "bad policy mode",
			file:    "c.cue",
			content: `policy: mode: "strict"`,
		},
		{
			name:    "device without id",
			file:    "c.yaml",
			content: "devices:\n  - provider: dryrun\n    program_type: qasm2\n",
		},
		{
			name:    "bad duration",
			file:    "c.yaml",
			content: "plugins:\n  timeout: soon\n",
		},
		{
			name:    "invalid CUE syntax",
			file:    "c.cue",
			content: "transpiler: {",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(context.Background(), writeFile(t, tt.file, tt.content))
			if err == nil {
				t.Fatal("expected an error")
			}
			if errs := loadErrors(t, err); len(errs) == 0 {
				t.Error("expected at least one validation error")
			}
		})
	}
}

func TestLoadUnsupportedFormat(t *testing.T) {
	_, err := Load(context.Background(), writeFile(t, "qbraid.toml", ""))
	if err == nil || !strings.Contains(err.Error(), "unsupported config format") {
		t.Fatalf("expected unsupported format error, got %v", err)
	}
}

func TestDecodeValidation(t *testing.T) {
	tests := []struct {
		name     string
		raw      map[string]interface{}
		wantPath string
	}{
		{
			name: "duplicate device ids",
			raw: map[string]interface{}{
				"devices": []interface{}{
					map[string]interface{}{"id": "a", "provider": "dryrun", "program_type": "qasm2"},
					map[string]interface{}{"id": "a", "provider": "dryrun", "program_type": "qasm3"},
				},
			},
			wantPath: "devices[1].id",
		},
		{
			name: "otlp without endpoint",
			raw: map[string]interface{}{
				"telemetry": map[string]interface{}{"tracing_exporter": "otlp"},
			},
			wantPath: "telemetry.tracing_endpoint",
		},
		{
			name: "starlark converter to itself",
			raw: map[string]interface{}{
				"starlark": map[string]interface{}{
					"converters": []interface{}{
						map[string]interface{}{"source": "qasm2", "target": "qasm2", "script": "x = 1"},
					},
				},
			},
			wantPath: "starlark.converters[0].target",
		},
		{
			name: "starlark converter without script",
			raw: map[string]interface{}{
				"starlark": map[string]interface{}{
					"converters": []interface{}{
						map[string]interface{}{"source": "qasm2", "target": "pyquil"},
					},
				},
			},
			wantPath: "starlark.converters[0].script",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.raw)
			if err == nil {
				t.Fatal("expected an error")
			}
			found := false
			for _, ve := range loadErrors(t, err) {
				if ve.Path == tt.wantPath {
					found = true
				}
			}
			if !found {
				t.Errorf("expected an error at %s, got %v", tt.wantPath, err)
			}
		})
	}
}

func TestDecodeRejectsUnusedKeys(t *testing.T) {
	_, err := Decode(map[string]interface{}{"transpilr": map[string]interface{}{}})
	if err == nil {
		t.Fatal("expected an error for a misspelled section")
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv(EnvConfig, "")
	cfg, err := FromEnv(context.Background())
	if err != nil {
		t.Fatalf("FromEnv failed: %v", err)
	}
	if cfg.Transpiler.LossyPenalty != 10 {
		t.Errorf("expected defaults, got %+v", cfg.Transpiler)
	}

	t.Setenv(EnvConfig, writeFile(t, "qbraid.yml", "transpiler:\n  max_hops: 2\n"))
	cfg, err = FromEnv(context.Background())
	if err != nil {
		t.Fatalf("FromEnv failed: %v", err)
	}
	if cfg.Transpiler.MaxHops != 2 {
		t.Errorf("expected max hops 2, got %d", cfg.Transpiler.MaxHops)
	}
}

func TestProbe(t *testing.T) {
	cfg := Default()
	cfg.Extras.Enabled = []string{"plugin:identity"}
	cfg.Extras.Disabled = []string{"cirq"}

	set, err := cfg.Probe(capabilities.Static("qiskit", "cirq")).Probe(context.Background())
	if err != nil {
		t.Fatalf("probe failed: %v", err)
	}
	got := strings.Join(set.Names(), ",")
	if got != "plugin:identity,qiskit" {
		t.Errorf("unexpected extras %s", got)
	}
}

func TestTelemetryConfig(t *testing.T) {
	cfg := Default()
	cfg.Telemetry.TracingExporter = "stdout"
	cfg.Telemetry.LogLevel = "warn"

	tc := cfg.TelemetryConfig()
	if err := tc.Validate(); err != nil {
		t.Fatalf("telemetry config is invalid: %v", err)
	}
	if !tc.Tracing.Enabled || tc.Tracing.Exporter != "stdout" {
		t.Errorf("unexpected tracing config: %+v", tc.Tracing)
	}
	if tc.Logging.Level != "warn" {
		t.Errorf("expected warn level, got %s", tc.Logging.Level)
	}
}

func TestSchemaRegistry(t *testing.T) {
	sr := NewSchemaRegistry()

	got := strings.Join(sr.ListSchemas(), ",")
	if got != "config,device,starlark_converter" {
		t.Errorf("unexpected built-in schemas %s", got)
	}

	if errs := sr.ValidateDevice(DeviceProfile{ID: "d", Provider: "dryrun", ProgramType: "qasm2"}); len(errs) != 0 {
		t.Errorf("expected valid device, got %v", errs)
	}
	if errs := sr.ValidateDevice(DeviceProfile{Provider: "dryrun", ProgramType: "qasm2"}); len(errs) == 0 {
		t.Error("expected an error for a device without id")
	}

	if err := sr.RegisterSchema("shots", `int & >0 & <=100000`); err != nil {
		t.Fatalf("failed to register schema: %v", err)
	}
	if errs := sr.Validate("shots", 1024); len(errs) != 0 {
		t.Errorf("expected 1024 shots to be valid, got %v", errs)
	}
	if errs := sr.Validate("shots", 0); len(errs) == 0 {
		t.Error("expected 0 shots to be invalid")
	}
	if errs := sr.Validate("missing", 1); len(errs) != 1 {
		t.Errorf("expected one error for a missing schema, got %v", errs)
	}

	if err := sr.RegisterSchema("broken", `{`); err == nil {
		t.Error("expected a compile error")
	}
}

func TestCUEParserParseInline(t *testing.T) {
	parser := NewCUEParser()

	parsed, err := parser.ParseInline(context.Background(), `store: path: "/var/lib/qbraid/jobs.db"`)
	if err != nil {
		t.Fatalf("ParseInline failed: %v", err)
	}
	if len(parsed.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", parsed.Errors)
	}
	store, _ := parsed.Raw["store"].(map[string]interface{})
	if store["path"] != "/var/lib/qbraid/jobs.db" {
		t.Errorf("unexpected raw config: %v", parsed.Raw)
	}

	parsed, err = parser.ParseInline(context.Background(), `telemetry: log_level: "loud"`)
	if err != nil {
		t.Fatalf("ParseInline failed: %v", err)
	}
	if len(parsed.Errors) == 0 {
		t.Error("expected a schema error for an invalid log level")
	}
}

func TestCUEParserUnifiesFiles(t *testing.T) {
	sources := []string{
		writeFile(t, "a.cue", "transpiler: max_hops: 3\n"),
		writeFile(t, "b.cue", "policy: enabled: true\n"),
	}

	parsed, err := NewCUEParser().Parse(context.Background(), sources)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(parsed.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", parsed.Errors)
	}
	if len(parsed.SourceFiles) != 2 {
		t.Errorf("expected 2 source files, got %v", parsed.SourceFiles)
	}

	cfg, err := Decode(parsed.Raw)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if cfg.Transpiler.MaxHops != 3 || !cfg.Policy.Enabled {
		t.Errorf("unexpected config: %+v %+v", cfg.Transpiler, cfg.Policy)
	}
}

func TestValidationErrorString(t *testing.T) {
	ve := ValidationError{File: "c.cue", Line: 3, Column: 7, Path: "policy.mode", Message: "conflicting values"}
	if got := ve.String(); got != "c.cue:3:7: policy.mode: conflicting values" {
		t.Errorf("unexpected string %q", got)
	}
}
