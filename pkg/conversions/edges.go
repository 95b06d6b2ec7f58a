package conversions

import (
	"fmt"

	"github.com/qbraid/qbraid-go/pkg/circuit"
	"github.com/qbraid/qbraid-go/pkg/circuits/braket"
	"github.com/qbraid/qbraid-go/pkg/circuits/cirq"
	"github.com/qbraid/qbraid-go/pkg/circuits/pennylane"
	"github.com/qbraid/qbraid-go/pkg/circuits/pyquil"
	"github.com/qbraid/qbraid-go/pkg/circuits/pytket"
	"github.com/qbraid/qbraid-go/pkg/circuits/qiskit"
	"github.com/qbraid/qbraid-go/pkg/programs"
	"github.com/qbraid/qbraid-go/pkg/qasm"
	"github.com/qbraid/qbraid-go/pkg/transpiler"
)

// Converters returns the built-in converters in registration order.
func Converters() []transpiler.Converter {
	return []transpiler.Converter{
		// Braket
		{Source: programs.Braket, Target: programs.QASM2, RequiresExtra: ExtraBraket,
			Func: via((*braket.Circuit).Circuit, qasm.EmitQASM2)},
		{Source: programs.Braket, Target: programs.QASM3, RequiresExtra: ExtraBraket,
			Func: via((*braket.Circuit).Circuit, qasm.EmitQASM3)},
		{Source: programs.Braket, Target: programs.Qiskit, RequiresExtra: ExtraBraket, Lossy: true,
			Func: via(compactBraket, qiskit.FromCircuit)},
		{Source: programs.Braket, Target: programs.Cirq, RequiresExtra: ExtraCirq,
			Func: via((*braket.Circuit).Circuit, cirq.FromCircuit)},
		{Source: programs.QASM3, Target: programs.Braket, RequiresExtra: ExtraBraket,
			Func: via(qasm.ParseQASM3, braket.FromCircuit)},
		{Source: programs.Cirq, Target: programs.Braket, RequiresExtra: ExtraBraket,
			Func: via((*cirq.Circuit).Circuit, braket.FromCircuit)},

		// Qiskit
		{Source: programs.QASM2, Target: programs.Qiskit, RequiresExtra: ExtraQiskit,
			Func: via(qasm.ParseQASM2, qiskit.FromCircuit)},
		{Source: programs.Qiskit, Target: programs.QASM2, RequiresExtra: ExtraQiskit,
			Func: via((*qiskit.QuantumCircuit).Circuit, qasm.EmitQASM2)},
		{Source: programs.Qiskit, Target: programs.QASM3, RequiresExtra: ExtraQiskit,
			Func: via((*qiskit.QuantumCircuit).Circuit, qasm.EmitQASM3)},
		{Source: programs.QASM3, Target: programs.Qiskit, RequiresExtra: ExtraQiskit,
			Func: via(qasm.ParseQASM3, qiskit.FromCircuit)},

		// Cirq
		{Source: programs.Cirq, Target: programs.QASM2, RequiresExtra: ExtraCirq,
			Func: via((*cirq.Circuit).Circuit, qasm.EmitQASM2)},
		{Source: programs.QASM2, Target: programs.Cirq, RequiresExtra: ExtraCirq,
			Func: via(qasm.ParseQASM2, cirq.FromCircuit)},

		// pyQuil
		{Source: programs.Cirq, Target: programs.PyQuil, RequiresExtra: ExtraPyQuil,
			Func: via((*cirq.Circuit).Circuit, pyquil.FromCircuit)},
		{Source: programs.PyQuil, Target: programs.Cirq, RequiresExtra: ExtraPyQuil,
			Func: via((*pyquil.Program).Circuit, cirq.FromCircuit)},

		// pytket
		{Source: programs.Pytket, Target: programs.QASM2, RequiresExtra: ExtraPytket,
			Func: via((*pytket.Circuit).Circuit, qasm.EmitQASM2)},
		{Source: programs.QASM2, Target: programs.Pytket, RequiresExtra: ExtraPytket,
			Func: via(qasm.ParseQASM2, pytket.FromCircuit)},

		// PennyLane
		{Source: programs.PennyLane, Target: programs.QASM3, RequiresExtra: ExtraPennyLane, Lossy: true,
			Func: via((*pennylane.QuantumTape).Circuit, qasm.EmitQASM3)},
		{Source: programs.QASM3, Target: programs.PennyLane, RequiresExtra: ExtraPennyLane,
			Func: via(qasm.ParseQASM3, pennylane.FromCircuit)},

		// OpenQASM
		{Source: programs.QASM2, Target: programs.QASM3,
			Func: via(qasm.ParseQASM2, qasm.EmitQASM3)},
		{Source: programs.QASM3, Target: programs.QASM2,
			Func: via(qasm.ParseQASM3, qasm.EmitQASM2)},
	}
}

// Register adds the built-in converters to a registry.
func Register(r *transpiler.Registry) error {
	for _, c := range Converters() {
		if err := r.Register(c); err != nil {
			return fmt.Errorf("register %s: %w", c.DisplayName(), err)
		}
	}
	return nil
}

// NewRegistry returns a registry holding the built-in converters.
func NewRegistry() *transpiler.Registry {
	r := transpiler.NewRegistry()
	if err := Register(r); err != nil {
		panic(err)
	}
	return r
}

// via composes a lowering into the shared circuit model with a builder for
// the target type.
func via[In, Out any](lower func(In) (*circuit.Circuit, error), build func(*circuit.Circuit) (Out, error)) transpiler.ConvertFunc {
	return transpiler.Simple(func(in In) (Out, error) {
		c, err := lower(in)
		if err != nil {
			var zero Out
			return zero, err
		}
		return build(c)
	})
}

// compactBraket renumbers qubits densely before lowering. Braket circuits
// may address sparse qubit ids that Qiskit registers cannot express, so the
// original ids are lost.
func compactBraket(c *braket.Circuit) (*circuit.Circuit, error) {
	return c.Compact().Circuit()
}
