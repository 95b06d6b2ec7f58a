package plugins

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
)

// Host defaults.
const (
	DefaultTimeout          = 5 * time.Second
	DefaultMemoryLimitPages = 256 // 16MiB
)

// HostConfig contains configuration for the WASM host.
type HostConfig struct {
	// Timeout bounds a single conversion call.
	Timeout time.Duration

	// MemoryLimitPages is the maximum memory limit in pages (64KB each).
	MemoryLimitPages uint32
}

func (c HostConfig) withDefaults() HostConfig {
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MemoryLimitPages == 0 {
		c.MemoryLimitPages = DefaultMemoryLimitPages
	}
	return c
}

// WASMPlugin runs converters exported by a WASM module. The module is
// compiled once and instantiated fresh for every call, so calls share no
// state and may run concurrently.
//
// Every conversion export has the signature (ptr, len i32) -> i64. The input
// is a JSON request written into memory obtained from the module's malloc;
// the result packs the output pointer and length as (ptr << 32) | len and
// points at a JSON response.
type WASMPlugin struct {
	// manifest is the parsed plugin manifest.
	manifest *Manifest

	// runtime is the wazero runtime.
	runtime wazero.Runtime

	// compiled is the validated module.
	compiled wazero.CompiledModule

	// timeout bounds each call.
	timeout time.Duration
}

// convertRequest is the JSON document passed to a conversion export.
type convertRequest struct {
	Source  string `json:"source"`
	Target  string `json:"target"`
	Program string `json:"program"`
}

// convertResponse is the JSON document a conversion export returns.
type convertResponse struct {
	Program string `json:"program"`
	Error   string `json:"error,omitempty"`
}

// NewWASMPlugin compiles a module and checks that it exports memory,
// malloc, free and every declared conversion.
func NewWASMPlugin(ctx context.Context, manifest *Manifest, wasmModule []byte, cfg HostConfig) (*WASMPlugin, error) {
	cfg = cfg.withDefaults()

	runtimeConfig := wazero.NewRuntimeConfig().
		WithMemoryLimitPages(cfg.MemoryLimitPages).
		WithCloseOnContextDone(true)

	runtime := wazero.NewRuntimeWithConfig(ctx, runtimeConfig)

	if _, err := wasi_snapshot_preview1.Instantiate(ctx, runtime); err != nil {
		runtime.Close(ctx)
		return nil, fmt.Errorf("failed to instantiate WASI: %w", err)
	}

	compiled, err := runtime.CompileModule(ctx, wasmModule)
	if err != nil {
		runtime.Close(ctx)
		return nil, fmt.Errorf("failed to compile WASM module: %w", err)
	}

	if err := checkExports(compiled, manifest.Raw.Conversions); err != nil {
		runtime.Close(ctx)
		return nil, err
	}

	return &WASMPlugin{
		manifest: manifest,
		runtime:  runtime,
		compiled: compiled,
		timeout:  cfg.Timeout,
	}, nil
}

func checkExports(compiled wazero.CompiledModule, conversions []ConversionSpec) error {
	if len(compiled.ExportedMemories()) == 0 {
		return fmt.Errorf("WASM module does not export memory")
	}

	functions := compiled.ExportedFunctions()
	for _, name := range []string{"malloc", "free"} {
		if _, ok := functions[name]; !ok {
			return fmt.Errorf("WASM module does not export %s function", name)
		}
	}

	for _, c := range conversions {
		def, ok := functions[c.Export]
		if !ok {
			return fmt.Errorf("WASM module does not export %s for %s -> %s", c.Export, c.Source, c.Target)
		}
		params, results := def.ParamTypes(), def.ResultTypes()
		if len(params) != 2 || params[0] != api.ValueTypeI32 || params[1] != api.ValueTypeI32 ||
			len(results) != 1 || results[0] != api.ValueTypeI64 {
			return fmt.Errorf("WASM export %s must have signature (i32, i32) -> i64", c.Export)
		}
	}
	return nil
}

// Manifest returns the plugin manifest.
func (p *WASMPlugin) Manifest() *Manifest {
	return p.manifest
}

// Convert runs one conversion export on program text.
func (p *WASMPlugin) Convert(ctx context.Context, spec ConversionSpec, program string) (string, error) {
	input, err := json.Marshal(convertRequest{
		Source:  spec.Source,
		Target:  spec.Target,
		Program: program,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	// An empty name lets instances of the same module coexist.
	module, err := p.runtime.InstantiateModule(ctx, p.compiled, wazero.NewModuleConfig().WithName(""))
	if err != nil {
		return "", fmt.Errorf("failed to instantiate WASM module: %w", err)
	}
	defer module.Close(context.Background())

	output, err := newBridge(module).call(ctx, spec.Export, input)
	if err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("%s timed out after %v: %w", spec.Export, p.timeout, ctx.Err())
		}
		return "", err
	}

	var resp convertResponse
	if err := json.Unmarshal(output, &resp); err != nil {
		return "", fmt.Errorf("failed to unmarshal response from %s: %w", spec.Export, err)
	}
	if resp.Error != "" {
		return "", fmt.Errorf("%s: %s", spec.Export, resp.Error)
	}
	return resp.Program, nil
}

// Close releases the runtime and compiled module.
func (p *WASMPlugin) Close(ctx context.Context) error {
	if p.runtime != nil {
		if err := p.runtime.Close(ctx); err != nil {
			return fmt.Errorf("failed to close WASM runtime: %w", err)
		}
	}
	return nil
}

// bridge moves bytes in and out of one module instance's linear memory.
type bridge struct {
	module api.Module
	memory api.Memory
	malloc api.Function
	free   api.Function
}

func newBridge(module api.Module) *bridge {
	return &bridge{
		module: module,
		memory: module.Memory(),
		malloc: module.ExportedFunction("malloc"),
		free:   module.ExportedFunction("free"),
	}
}

// call invokes an export with input bytes and returns its output bytes.
func (b *bridge) call(ctx context.Context, export string, input []byte) ([]byte, error) {
	fn := b.module.ExportedFunction(export)
	if fn == nil {
		return nil, fmt.Errorf("WASM module does not export %s", export)
	}

	var inputPtr, inputLen uint32
	if len(input) > 0 {
		ptr, err := b.allocate(ctx, uint32(len(input)))
		if err != nil {
			return nil, fmt.Errorf("failed to allocate WASM memory: %w", err)
		}
		defer b.deallocate(ctx, ptr)

		inputPtr = ptr
		inputLen = uint32(len(input))

		if !b.memory.Write(inputPtr, input) {
			return nil, fmt.Errorf("failed to write input to WASM memory")
		}
	}

	results, err := fn.Call(ctx, uint64(inputPtr), uint64(inputLen))
	if err != nil {
		return nil, fmt.Errorf("WASM function %s failed: %w", export, err)
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("WASM function %s returned no results", export)
	}

	packed := results[0]
	outputPtr := uint32(packed >> 32)
	outputLen := uint32(packed & 0xFFFFFFFF)

	if outputLen == 0 {
		return nil, fmt.Errorf("WASM function %s returned no output", export)
	}

	output, ok := b.memory.Read(outputPtr, outputLen)
	if !ok {
		return nil, fmt.Errorf("WASM function %s returned out of range output", export)
	}

	// Read returns a view of linear memory.
	out := make([]byte, len(output))
	copy(out, output)

	if outputPtr != inputPtr {
		_ = b.deallocate(ctx, outputPtr)
	}
	return out, nil
}

// allocate allocates memory in WASM and returns the pointer.
func (b *bridge) allocate(ctx context.Context, size uint32) (uint32, error) {
	results, err := b.malloc.Call(ctx, uint64(size))
	if err != nil {
		return 0, fmt.Errorf("malloc failed: %w", err)
	}

	if len(results) == 0 {
		return 0, fmt.Errorf("malloc returned no results")
	}

	ptr := uint32(results[0])
	if ptr == 0 {
		return 0, fmt.Errorf("malloc returned null pointer")
	}

	return ptr, nil
}

// deallocate frees memory in WASM.
func (b *bridge) deallocate(ctx context.Context, ptr uint32) error {
	if _, err := b.free.Call(ctx, uint64(ptr)); err != nil {
		return fmt.Errorf("free failed: %w", err)
	}
	return nil
}
