// Package plugins extends the converter registry at runtime with WASM
// modules and Starlark scripts.
//
// # WASM plugins
//
// A plugin is a directory holding a manifest.yaml and a WASM module:
//
//	metadata:
//	  name: tket
//	  version: 1.0.0
//	  author: Example
//	  license: Apache-2.0
//	entrypoint: tket.wasm
//	checksum: 3f5a...   # optional sha256 of the module
//	conversions:
//	  - source: qasm2
//	    target: pyquil
//	    export: qasm2_to_quil
//	    lossy: false
//
// The module must export memory, malloc(size i32) i32, free(ptr i32) and one
// function per conversion with signature (ptr, len i32) -> i64. The host
// writes a JSON request {"source", "target", "program"} into memory from
// malloc and calls the export, which returns (ptr << 32) | len of a JSON
// response {"program"} or {"error"}. Every call runs in a fresh instance
// under a timeout and memory limit.
//
// # Starlark converters
//
// A script defines convert(program) or convert(program, ctx) and returns
// the converted program text:
//
//	def convert(program, ctx):
//	    return program.replace("OPENQASM 2.0;", "OPENQASM 3.0;")
//
// # Capabilities
//
// Converters from plugin or script "name" require the extra "plugin:name".
// Manager.Probe reports the extras of what is loaded, so combining it with
// other probes and rebuilding the transpiler makes the converters part of
// the conversion graph:
//
//	manager := plugins.NewManager(registry, catalog, plugins.HostConfig{}, logger)
//	_ = manager.LoadDir(ctx, "/opt/qbraid/plugins")
//	tr := transpiler.New(registry, catalog,
//	    transpiler.WithProbe(capabilities.Union(base, manager.Probe())))
//
// Both endpoints of a plugin conversion must have a text serialization; the
// program is encoded and decoded with the catalog codecs around each call.
// Watcher reloads the plugin directory on change and calls back so the
// caller can rebuild its graph.
package plugins
