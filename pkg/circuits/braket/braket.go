// Package braket models an Amazon Braket circuit: a list of instructions on
// integer qubit ids, which need not be contiguous, followed by measurements.
package braket

import (
	"fmt"
	"sort"

	"github.com/qbraid/qbraid-go/pkg/circuit"
)

// Gate is a Braket gate or measurement operator.
type Gate struct {
	Name   string          `json:"name"`
	Angles []circuit.Param `json:"angles,omitempty"`
}

// Instruction applies an operator to target qubits.
type Instruction struct {
	Operator Gate  `json:"operator"`
	Target   []int `json:"target"`
}

// Circuit is the Braket program representation.
type Circuit struct {
	Instructions []Instruction `json:"instructions"`
}

// MeasureName is the Braket measurement operator.
const MeasureName = "Measure"

// toBraket maps catalog gates to Braket operators. Gates missing here are
// lowered before conversion.
var toBraket = map[string]string{
	"id":    "I",
	"h":     "H",
	"x":     "X",
	"y":     "Y",
	"z":     "Z",
	"s":     "S",
	"sdg":   "Si",
	"t":     "T",
	"tdg":   "Ti",
	"sx":    "V",
	"sxdg":  "Vi",
	"rx":    "Rx",
	"ry":    "Ry",
	"rz":    "Rz",
	"p":     "PhaseShift",
	"u":     "U",
	"cx":    "CNot",
	"cy":    "CY",
	"cz":    "CZ",
	"swap":  "Swap",
	"iswap": "ISwap",
	"cp":    "CPhaseShift",
	"rxx":   "XX",
	"ryy":   "YY",
	"rzz":   "ZZ",
	"ccx":   "CCNot",
	"cswap": "CSwap",
}

var fromBraket = func() map[string]string {
	m := make(map[string]string, len(toBraket))
	for k, v := range toBraket {
		m[v] = k
	}
	return m
}()

// Supported returns the catalog gates with a native Braket operator.
func Supported() circuit.GateSet {
	names := make([]string, 0, len(toBraket))
	for k := range toBraket {
		names = append(names, k)
	}
	return circuit.NewGateSet(names...)
}

// Add appends an instruction and returns the circuit for chaining.
func (c *Circuit) Add(name string, angles []circuit.Param, target ...int) *Circuit {
	c.Instructions = append(c.Instructions, Instruction{Operator: Gate{Name: name, Angles: angles}, Target: target})
	return c
}

// H appends a Hadamard gate.
func (c *Circuit) H(q int) *Circuit { return c.Add("H", nil, q) }

// CNot appends a controlled-not gate.
func (c *Circuit) CNot(control, target int) *Circuit { return c.Add("CNot", nil, control, target) }

// Rx appends an X rotation.
func (c *Circuit) Rx(q int, theta float64) *Circuit {
	return c.Add("Rx", []circuit.Param{circuit.Num(theta)}, q)
}

// Measure appends measurements of the given qubits.
func (c *Circuit) Measure(qubits ...int) *Circuit {
	for _, q := range qubits {
		c.Add(MeasureName, nil, q)
	}
	return c
}

// Qubits returns the sorted set of qubit ids used by the circuit.
func (c *Circuit) Qubits() []int {
	seen := make(map[int]bool)
	for _, in := range c.Instructions {
		for _, q := range in.Target {
			seen[q] = true
		}
	}
	out := make([]int, 0, len(seen))
	for q := range seen {
		out = append(out, q)
	}
	sort.Ints(out)
	return out
}

// QubitCount returns the number of distinct qubits used.
func (c *Circuit) QubitCount() int {
	return len(c.Qubits())
}

// Compact returns a copy with qubit ids renumbered densely from zero in
// ascending order.
func (c *Circuit) Compact() *Circuit {
	index := make(map[int]int)
	for i, q := range c.Qubits() {
		index[q] = i
	}
	out := &Circuit{Instructions: make([]Instruction, len(c.Instructions))}
	for i, in := range c.Instructions {
		target := make([]int, len(in.Target))
		for j, q := range in.Target {
			target[j] = index[q]
		}
		out.Instructions[i] = Instruction{
			Operator: Gate{Name: in.Operator.Name, Angles: append([]circuit.Param(nil), in.Operator.Angles...)},
			Target:   target,
		}
	}
	return out
}

// Circuit converts to the shared circuit model. Qubit ids are kept as flat
// indices, so the register spans up to the largest id. Measurements are
// written to consecutive classical bits in program order.
func (c *Circuit) Circuit() (*circuit.Circuit, error) {
	nq := 0
	nm := 0
	for _, in := range c.Instructions {
		for _, q := range in.Target {
			if q < 0 {
				return nil, fmt.Errorf("braket circuit: negative qubit id %d", q)
			}
			if q+1 > nq {
				nq = q + 1
			}
		}
		if in.Operator.Name == MeasureName {
			nm += len(in.Target)
		}
	}

	out := circuit.New(nq, nm)
	clbit := 0
	for i, in := range c.Instructions {
		if in.Operator.Name == MeasureName {
			for _, q := range in.Target {
				out.MeasureQubit(q, clbit)
				clbit++
			}
			continue
		}
		name, ok := fromBraket[in.Operator.Name]
		if !ok {
			return nil, fmt.Errorf("braket circuit: instruction %d: unknown operator %q", i, in.Operator.Name)
		}
		out.Apply(name, append([]circuit.Param(nil), in.Operator.Angles...), append([]int(nil), in.Target...)...)
	}
	if err := out.Validate(); err != nil {
		return nil, fmt.Errorf("braket circuit: %w", err)
	}
	return out, nil
}

// FromCircuit builds a Braket circuit. Gates without a Braket operator are
// decomposed first. Braket has no classical control, resets or operations
// after measurement; barriers are dropped. Measurements keep their qubit
// order, so the classical bit layout is only preserved when clbits are
// written in ascending order.
func FromCircuit(c *circuit.Circuit) (*Circuit, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if c.HasConditions() {
		return nil, fmt.Errorf("braket does not support classically controlled operations")
	}
	if c.HasMidCircuitMeasurement() {
		return nil, fmt.Errorf("braket does not support operations after measurement")
	}
	lowered, err := circuit.Lower(c, Supported())
	if err != nil {
		return nil, fmt.Errorf("braket: %w", err)
	}

	out := &Circuit{}
	for _, op := range lowered.Ops {
		switch op.Name {
		case circuit.Barrier:
			continue
		case circuit.Reset:
			return nil, fmt.Errorf("braket does not support reset")
		case circuit.Measure:
			out.Measure(op.Qubits...)
			continue
		}
		out.Add(toBraket[op.Name], append([]circuit.Param(nil), op.Params...), append([]int(nil), op.Qubits...)...)
	}
	return out, nil
}
