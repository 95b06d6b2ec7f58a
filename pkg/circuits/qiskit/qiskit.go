// Package qiskit models a Qiskit QuantumCircuit: named registers and a flat
// list of circuit instructions whose gate names follow the Qiskit standard
// library.
package qiskit

import (
	"fmt"

	"github.com/qbraid/qbraid-go/pkg/circuit"
)

// QuantumRegister is a named group of qubits.
type QuantumRegister struct {
	Name string `json:"name"`
	Size int    `json:"size"`
}

// ClassicalRegister is a named group of classical bits.
type ClassicalRegister struct {
	Name string `json:"name"`
	Size int    `json:"size"`
}

// Instruction is a gate or directive with its parameters.
type Instruction struct {
	Name      string             `json:"name"`
	Params    []circuit.Param    `json:"params,omitempty"`
	Condition *circuit.Condition `json:"condition,omitempty"`
}

// CircuitInstruction places an instruction on qubits and clbits.
type CircuitInstruction struct {
	Operation Instruction `json:"operation"`
	Qubits    []int       `json:"qubits"`
	Clbits    []int       `json:"clbits,omitempty"`
}

// QuantumCircuit is the Qiskit program representation.
type QuantumCircuit struct {
	Name  string               `json:"name,omitempty"`
	QRegs []QuantumRegister    `json:"qregs"`
	CRegs []ClassicalRegister  `json:"cregs,omitempty"`
	Data  []CircuitInstruction `json:"data"`
}

// NewQuantumCircuit returns a circuit with registers "q" and, when
// numClbits > 0, "c".
func NewQuantumCircuit(numQubits, numClbits int) *QuantumCircuit {
	qc := &QuantumCircuit{QRegs: []QuantumRegister{{Name: "q", Size: numQubits}}}
	if numClbits > 0 {
		qc.CRegs = []ClassicalRegister{{Name: "c", Size: numClbits}}
	}
	return qc
}

// NumQubits returns the number of qubits.
func (qc *QuantumCircuit) NumQubits() int {
	n := 0
	for _, r := range qc.QRegs {
		n += r.Size
	}
	return n
}

// NumClbits returns the number of classical bits.
func (qc *QuantumCircuit) NumClbits() int {
	n := 0
	for _, r := range qc.CRegs {
		n += r.Size
	}
	return n
}

// Append adds an instruction and returns the circuit for chaining.
func (qc *QuantumCircuit) Append(name string, params []circuit.Param, qubits, clbits []int) *QuantumCircuit {
	qc.Data = append(qc.Data, CircuitInstruction{
		Operation: Instruction{Name: name, Params: params},
		Qubits:    qubits,
		Clbits:    clbits,
	})
	return qc
}

// H appends a Hadamard gate.
func (qc *QuantumCircuit) H(q int) *QuantumCircuit {
	return qc.Append("h", nil, []int{q}, nil)
}

// X appends a Pauli-X gate.
func (qc *QuantumCircuit) X(q int) *QuantumCircuit {
	return qc.Append("x", nil, []int{q}, nil)
}

// CX appends a controlled-X gate.
func (qc *QuantumCircuit) CX(control, target int) *QuantumCircuit {
	return qc.Append("cx", nil, []int{control, target}, nil)
}

// CCX appends a Toffoli gate.
func (qc *QuantumCircuit) CCX(c1, c2, target int) *QuantumCircuit {
	return qc.Append("ccx", nil, []int{c1, c2, target}, nil)
}

// RZ appends a Z rotation.
func (qc *QuantumCircuit) RZ(theta float64, q int) *QuantumCircuit {
	return qc.Append("rz", []circuit.Param{circuit.Num(theta)}, []int{q}, nil)
}

// Measure appends a measurement of qubit q into clbit c.
func (qc *QuantumCircuit) Measure(q, c int) *QuantumCircuit {
	return qc.Append(circuit.Measure, nil, []int{q}, []int{c})
}

// CountOps returns the number of instructions per name.
func (qc *QuantumCircuit) CountOps() map[string]int {
	out := make(map[string]int)
	for _, in := range qc.Data {
		out[in.Operation.Name]++
	}
	return out
}

// Circuit converts to the shared circuit model.
func (qc *QuantumCircuit) Circuit() (*circuit.Circuit, error) {
	c := &circuit.Circuit{Name: qc.Name}
	for _, r := range qc.QRegs {
		c.QRegs = append(c.QRegs, circuit.Register{Name: r.Name, Size: r.Size})
	}
	for _, r := range qc.CRegs {
		c.CRegs = append(c.CRegs, circuit.Register{Name: r.Name, Size: r.Size})
	}
	for _, in := range qc.Data {
		op := circuit.Operation{
			Name:   circuit.Canonical(in.Operation.Name),
			Qubits: append([]int(nil), in.Qubits...),
			Clbits: append([]int(nil), in.Clbits...),
			Params: append([]circuit.Param(nil), in.Operation.Params...),
		}
		if in.Operation.Condition != nil {
			cond := *in.Operation.Condition
			op.Condition = &cond
		}
		c.Ops = append(c.Ops, op)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("qiskit circuit: %w", err)
	}
	return c, nil
}

// FromCircuit builds a QuantumCircuit. Every catalog gate has a Qiskit
// counterpart, so the conversion is exact.
func FromCircuit(c *circuit.Circuit) (*QuantumCircuit, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	qc := &QuantumCircuit{Name: c.Name}
	for _, r := range c.QRegs {
		qc.QRegs = append(qc.QRegs, QuantumRegister{Name: r.Name, Size: r.Size})
	}
	for _, r := range c.CRegs {
		qc.CRegs = append(qc.CRegs, ClassicalRegister{Name: r.Name, Size: r.Size})
	}
	for _, op := range c.Ops {
		in := CircuitInstruction{
			Operation: Instruction{Name: op.Name, Params: append([]circuit.Param(nil), op.Params...)},
			Qubits:    append([]int(nil), op.Qubits...),
			Clbits:    append([]int(nil), op.Clbits...),
		}
		if op.Condition != nil {
			cond := *op.Condition
			in.Operation.Condition = &cond
		}
		qc.Data = append(qc.Data, in)
	}
	return qc, nil
}
