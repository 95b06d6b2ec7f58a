// Package conversions wires the built-in program types and converters into
// a catalog and a transpiler registry.
package conversions

import (
	"fmt"
	"reflect"

	"github.com/qbraid/qbraid-go/pkg/circuit"
	"github.com/qbraid/qbraid-go/pkg/circuits/braket"
	"github.com/qbraid/qbraid-go/pkg/circuits/cirq"
	"github.com/qbraid/qbraid-go/pkg/circuits/pennylane"
	"github.com/qbraid/qbraid-go/pkg/circuits/pyquil"
	"github.com/qbraid/qbraid-go/pkg/circuits/pytket"
	"github.com/qbraid/qbraid-go/pkg/circuits/qiskit"
	"github.com/qbraid/qbraid-go/pkg/programs"
	"github.com/qbraid/qbraid-go/pkg/qasm"
)

// Extras provided by the built-in integrations.
const (
	ExtraQiskit    = "qiskit"
	ExtraCirq      = "cirq"
	ExtraBraket    = "braket"
	ExtraPytket    = "pytket"
	ExtraPyQuil    = "pyquil"
	ExtraPennyLane = "pennylane"
)

// DefaultExtras returns every extra compiled into this build.
func DefaultExtras() []string {
	return []string{ExtraBraket, ExtraCirq, ExtraPennyLane, ExtraPyQuil, ExtraPytket, ExtraQiskit}
}

// DefaultCatalog returns a catalog with the built-in program types.
func DefaultCatalog() *programs.Catalog {
	c := programs.NewCatalog()
	for _, spec := range Specs() {
		c.MustRegister(spec)
	}
	return c
}

// Specs returns the built-in program type specs.
func Specs() []programs.Spec {
	qasm2Enc, qasm2Dec := programs.TextCodec[qasm.QASM2]()
	qasm3Enc, qasm3Dec := programs.TextCodec[qasm.QASM3]()
	qiskitEnc, qiskitDec := programs.JSONCodec[qiskit.QuantumCircuit]()
	cirqEnc, cirqDec := programs.JSONCodec[cirq.Circuit]()
	braketEnc, braketDec := programs.JSONCodec[braket.Circuit]()
	pytketEnc, pytketDec := programs.JSONCodec[pytket.Circuit]()
	pennylaneEnc, pennylaneDec := programs.JSONCodec[pennylane.QuantumTape]()

	return []programs.Spec{
		{
			Type:        programs.QASM2,
			GoType:      reflect.TypeOf(qasm.QASM2("")),
			Description: "OpenQASM 2.0 source",
			Encode:      qasm2Enc,
			Decode:      qasm2Dec,
			ToCircuit:   toCircuit(qasm.ParseQASM2),
			FromCircuit: fromCircuit(qasm.EmitQASM2),
		},
		{
			Type:        programs.QASM3,
			GoType:      reflect.TypeOf(qasm.QASM3("")),
			Description: "OpenQASM 3 source",
			Encode:      qasm3Enc,
			Decode:      qasm3Dec,
			ToCircuit:   toCircuit(qasm.ParseQASM3),
			FromCircuit: fromCircuit(qasm.EmitQASM3),
		},
		{
			Type:        programs.Qiskit,
			GoType:      reflect.TypeOf(&qiskit.QuantumCircuit{}),
			Extra:       ExtraQiskit,
			Description: "Qiskit QuantumCircuit",
			Encode:      qiskitEnc,
			Decode:      qiskitDec,
			ToCircuit:   toCircuit((*qiskit.QuantumCircuit).Circuit),
			FromCircuit: fromCircuit(qiskit.FromCircuit),
		},
		{
			Type:        programs.Cirq,
			GoType:      reflect.TypeOf(&cirq.Circuit{}),
			Extra:       ExtraCirq,
			Description: "Cirq Circuit of moments",
			Encode:      cirqEnc,
			Decode:      cirqDec,
			ToCircuit:   toCircuit((*cirq.Circuit).Circuit),
			FromCircuit: fromCircuit(cirq.FromCircuit),
		},
		{
			Type:        programs.Braket,
			GoType:      reflect.TypeOf(&braket.Circuit{}),
			Extra:       ExtraBraket,
			Description: "Amazon Braket Circuit",
			Encode:      braketEnc,
			Decode:      braketDec,
			ToCircuit:   toCircuit((*braket.Circuit).Circuit),
			FromCircuit: fromCircuit(braket.FromCircuit),
		},
		{
			Type:        programs.Pytket,
			GoType:      reflect.TypeOf(&pytket.Circuit{}),
			Extra:       ExtraPytket,
			Description: "pytket Circuit",
			Encode:      pytketEnc,
			Decode:      pytketDec,
			ToCircuit:   toCircuit((*pytket.Circuit).Circuit),
			FromCircuit: fromCircuit(pytket.FromCircuit),
		},
		{
			Type:        programs.PyQuil,
			GoType:      reflect.TypeOf(&pyquil.Program{}),
			Extra:       ExtraPyQuil,
			Description: "pyQuil Program (Quil text)",
			Text:        true,
			Encode:      encodeQuil,
			Decode:      decodeQuil,
			ToCircuit:   toCircuit((*pyquil.Program).Circuit),
			FromCircuit: fromCircuit(pyquil.FromCircuit),
		},
		{
			Type:        programs.PennyLane,
			GoType:      reflect.TypeOf(&pennylane.QuantumTape{}),
			Extra:       ExtraPennyLane,
			Description: "PennyLane QuantumTape",
			Encode:      pennylaneEnc,
			Decode:      pennylaneDec,
			ToCircuit:   toCircuit((*pennylane.QuantumTape).Circuit),
			FromCircuit: fromCircuit(pennylane.FromCircuit),
		},
	}
}

func encodeQuil(program any) ([]byte, error) {
	p, ok := program.(*pyquil.Program)
	if !ok {
		return nil, fmt.Errorf("expected *pyquil.Program, got %T", program)
	}
	return []byte(p.String()), nil
}

func decodeQuil(data []byte) (any, error) {
	p, err := pyquil.Parse(string(data))
	if err != nil {
		return nil, err
	}
	return p, nil
}

// toCircuit adapts a typed lowering function to the catalog signature.
func toCircuit[T any](fn func(T) (*circuit.Circuit, error)) func(any) (*circuit.Circuit, error) {
	return func(program any) (*circuit.Circuit, error) {
		p, ok := program.(T)
		if !ok {
			var zero T
			return nil, fmt.Errorf("expected %T, got %T", zero, program)
		}
		return fn(p)
	}
}

// fromCircuit adapts a typed builder to the catalog signature.
func fromCircuit[T any](fn func(*circuit.Circuit) (T, error)) func(*circuit.Circuit) (any, error) {
	return func(c *circuit.Circuit) (any, error) {
		out, err := fn(c)
		if err != nil {
			return nil, err
		}
		return out, nil
	}
}
