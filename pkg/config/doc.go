// Package config loads and validates the qbraid configuration.
//
// # Overview
//
// A single Config value is built once per process, either from Default or
// from a file via Load, and handed to the components that need it: the
// transpiler (path penalties, hop limits, the path cache), the capability
// probe (extra additions and removals), the plugin host, the policy engine,
// the job store, telemetry and the device list.
//
// # Formats
//
// YAML (.yaml, .yml) and CUE (.cue) files are supported. Both go through the
// same steps:
//
//  1. The raw data is checked against the built-in CUE #Config schema.
//     Unknown keys and out-of-range values are reported with their
//     position.
//  2. The data is decoded over Default with mapstructure. Durations are
//     written as Go duration strings ("250ms", "5s").
//  3. The decoded struct is validated with validator tags and cross-field
//     rules such as unique device ids.
//
// QBRAID_CONFIG names the file read by FromEnv.
//
// # Example
//
//	transpiler:
//	  lossy_penalty: 10
//	  max_hops: 4
//	extras:
//	  disabled: [pennylane]
//	policy:
//	  enabled: true
//	  mode: enforcing
//	devices:
//	  - id: ibm_sim
//	    provider: dryrun
//	    program_type: qasm2
//	    basis_gates: [rz, sx, x, cx]
//	    num_qubits: 5
//
// # Errors
//
// Every problem found is collected into a *LoadError whose entries carry
// the file, line, column and field path where available.
package config
