package config

import (
	"fmt"
	"sort"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// Built-in schema names.
const (
	SchemaConfig            = "config"
	SchemaDevice            = "device"
	SchemaStarlarkConverter = "starlark_converter"
)

// SchemaRegistry manages CUE schemas for validation.
type SchemaRegistry struct {
	ctx     *cue.Context
	schemas map[string]cue.Value
	mu      sync.RWMutex
}

// NewSchemaRegistry creates a new schema registry with built-in schemas.
func NewSchemaRegistry() *SchemaRegistry {
	sr := &SchemaRegistry{
		ctx:     cuecontext.New(),
		schemas: make(map[string]cue.Value),
	}
	sr.registerBuiltInSchemas()
	return sr
}

func (sr *SchemaRegistry) registerBuiltInSchemas() {
	file := sr.ctx.CompileString(builtinSchemas, cue.Filename("qbraid.cue"))
	if err := file.Err(); err != nil {
		panic(fmt.Sprintf("built-in schemas do not compile: %v", err))
	}
	for name, def := range map[string]string{
		SchemaConfig:            "#Config",
		SchemaDevice:            "#Device",
		SchemaStarlarkConverter: "#StarlarkConverter",
	} {
		sr.schemas[name] = file.LookupPath(cue.ParsePath(def))
	}
}

// Context returns the CUE context schemas were compiled in. Values
// validated against them must come from the same context.
func (sr *SchemaRegistry) Context() *cue.Context {
	return sr.ctx
}

// RegisterSchema compiles and registers a CUE schema under name.
func (sr *SchemaRegistry) RegisterSchema(name, schema string) error {
	val := sr.ctx.CompileString(schema)
	if err := val.Err(); err != nil {
		return fmt.Errorf("failed to compile schema %s: %w", name, err)
	}

	sr.mu.Lock()
	defer sr.mu.Unlock()
	sr.schemas[name] = val
	return nil
}

// GetSchema retrieves a schema by name.
func (sr *SchemaRegistry) GetSchema(name string) (cue.Value, bool) {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	val, ok := sr.schemas[name]
	return val, ok
}

// ListSchemas returns all registered schema names, sorted.
func (sr *SchemaRegistry) ListSchemas() []string {
	sr.mu.RLock()
	defer sr.mu.RUnlock()

	names := make([]string, 0, len(sr.schemas))
	for name := range sr.schemas {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks Go data against a named schema.
func (sr *SchemaRegistry) Validate(schemaName string, data interface{}) []ValidationError {
	val := sr.ctx.Encode(data)
	if err := val.Err(); err != nil {
		return []ValidationError{{Message: fmt.Sprintf("failed to encode data: %v", err)}}
	}
	return sr.ValidateValue(schemaName, val)
}

// ValidateValue checks a CUE value against a named schema.
func (sr *SchemaRegistry) ValidateValue(schemaName string, val cue.Value) []ValidationError {
	schema, ok := sr.GetSchema(schemaName)
	if !ok {
		return []ValidationError{{Message: fmt.Sprintf("schema %s not found", schemaName)}}
	}
	unified := schema.Unify(val)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return convertCUEErrors(err)
	}
	return nil
}

// ValidateConfig checks a raw configuration map against #Config.
func (sr *SchemaRegistry) ValidateConfig(raw map[string]interface{}) []ValidationError {
	if raw == nil {
		return nil
	}
	return sr.Validate(SchemaConfig, raw)
}

// ValidateDevice checks a device profile against #Device.
func (sr *SchemaRegistry) ValidateDevice(d DeviceProfile) []ValidationError {
	return sr.Validate(SchemaDevice, d)
}

const builtinSchemas = `
#Duration: (string & =~"^([0-9]+(\\.[0-9]+)?(ns|us|µs|ms|s|m|h))+$") | int

#ProgramType: string & =~"^[A-Za-z0-9_.-]+$"

#StarlarkConverter: {
	name?:   string
	source:  #ProgramType
	target:  #ProgramType
	script?: string
	file?:   string
	lossy?:  bool
}

#Device: {
	id:                       string & !=""
	provider:                 string & !=""
	program_type:             #ProgramType
	basis_gates?:             [...string]
	num_qubits?:              int & >=0
	allow_mid_measure?:       bool
	allow_classical_control?: bool
	simulator?:               bool
	max_shots?:               int & >=0
}

#Config: {
	transpiler?: {
		lossy_penalty?:   int & >=0
		max_hops?:        int & >=0
		path_cache_size?: int & >=0
		trace?:           bool
	}
	extras?: {
		enabled?:  [...string]
		disabled?: [...string]
	}
	plugins?: {
		dir?:                string
		watch?:              bool
		memory_limit_pages?: int & >=0 & <=65536
		timeout?:            #Duration
		debounce?:           #Duration
	}
	starlark?: {
		timeout?:    #Duration
		converters?: [...#StarlarkConverter]
	}
	policy?: {
		enabled?: bool
		mode?:    "advisory" | "enforcing"
		paths?:   [...string]
	}
	store?: {
		path?: string
	}
	telemetry?: {
		log_level?:        "trace" | "debug" | "info" | "warn" | "error" | "fatal"
		log_format?:       "console" | "json"
		metrics_enabled?:  bool
		metrics_listen?:   string
		tracing_exporter?: "none" | "stdout" | "otlp"
		tracing_endpoint?: string
		sampling_rate?:    number & >=0 & <=1
		tracing_global?:   bool
	}
	devices?: [...#Device]
}
`
