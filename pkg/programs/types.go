// Package programs names the quantum program representations the SDK can
// convert between and maps concrete Go values to those names.
//
// A Catalog is a dispatch table keyed by the Go type of a program value.
// Each entry (a Spec) also knows how to serialize the program and how to
// bridge it to the shared circuit model, which is what the CLI, the plugin
// host and the device layer build on.
package programs

import (
	"fmt"
	"strings"
)

// ProgramType identifies a program representation, e.g. "qiskit" or
// "qasm3". Values are lowercase aliases.
type ProgramType string

// Built-in program types.
const (
	Qiskit    ProgramType = "qiskit"
	Cirq      ProgramType = "cirq"
	Braket    ProgramType = "braket"
	QASM2     ProgramType = "qasm2"
	QASM3     ProgramType = "qasm3"
	Pytket    ProgramType = "pytket"
	PyQuil    ProgramType = "pyquil"
	PennyLane ProgramType = "pennylane"
)

// String implements fmt.Stringer.
func (t ProgramType) String() string {
	return string(t)
}

var typeAliases = map[string]ProgramType{
	"openqasm2":     QASM2,
	"openqasm3":     QASM3,
	"qasm":          QASM2,
	"amazon_braket": Braket,
	"tket":          Pytket,
	"quil":          PyQuil,
}

// Normalize lowercases a type name and resolves common aliases.
func Normalize(name string) ProgramType {
	n := strings.ToLower(strings.TrimSpace(name))
	if t, ok := typeAliases[n]; ok {
		return t
	}
	return ProgramType(n)
}

// Validate reports whether the type is a syntactically valid alias.
func (t ProgramType) Validate() error {
	if t == "" {
		return fmt.Errorf("program type is empty")
	}
	for _, r := range string(t) {
		if !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9') && r != '_' && r != '-' && r != ':' {
			return fmt.Errorf("program type %q contains invalid character %q", string(t), r)
		}
	}
	return nil
}
