// Package cirq models a Cirq circuit: a sequence of moments, each a set of
// operations acting on disjoint line qubits.
package cirq

import (
	"fmt"
	"strconv"

	"github.com/qbraid/qbraid-go/pkg/circuit"
)

// LineQubit is a qubit on a line, identified by its position.
type LineQubit int

// String implements fmt.Stringer.
func (q LineQubit) String() string {
	return "q(" + strconv.Itoa(int(q)) + ")"
}

// Gate is a Cirq gate. Key is only set for measurements.
type Gate struct {
	Name   string          `json:"name"`
	Params []circuit.Param `json:"params,omitempty"`
	Key    string          `json:"key,omitempty"`
}

// Operation applies a gate to qubits.
type Operation struct {
	Gate   Gate        `json:"gate"`
	Qubits []LineQubit `json:"qubits"`
}

// Moment is a time slice of operations on disjoint qubits.
type Moment struct {
	Operations []Operation `json:"operations"`
}

// Circuit is the Cirq program representation.
type Circuit struct {
	Moments []Moment `json:"moments"`
}

// MeasureName is the Cirq measurement gate.
const MeasureName = "MeasurementGate"

var toCirq = map[string]string{
	"id":    "I",
	"h":     "H",
	"x":     "X",
	"y":     "Y",
	"z":     "Z",
	"s":     "S",
	"sdg":   "S**-1",
	"t":     "T",
	"tdg":   "T**-1",
	"sx":    "X**0.5",
	"sxdg":  "X**-0.5",
	"rx":    "Rx",
	"ry":    "Ry",
	"rz":    "Rz",
	"cx":    "CNOT",
	"cz":    "CZ",
	"swap":  "SWAP",
	"iswap": "ISWAP",
	"ccx":   "TOFFOLI",
	"cswap": "FREDKIN",
}

var fromCirq = func() map[string]string {
	m := make(map[string]string, len(toCirq))
	for k, v := range toCirq {
		m[v] = k
	}
	return m
}()

// Supported returns the catalog gates with a native Cirq gate.
func Supported() circuit.GateSet {
	names := make([]string, 0, len(toCirq))
	for k := range toCirq {
		names = append(names, k)
	}
	return circuit.NewGateSet(names...)
}

// Append places an operation in the earliest moment after every moment that
// already acts on one of its qubits.
func (c *Circuit) Append(op Operation) *Circuit {
	index := 0
	for i := len(c.Moments) - 1; i >= 0; i-- {
		if c.Moments[i].touches(op.Qubits) {
			index = i + 1
			break
		}
	}
	if index == len(c.Moments) {
		c.Moments = append(c.Moments, Moment{})
	}
	c.Moments[index].Operations = append(c.Moments[index].Operations, op)
	return c
}

func (m Moment) touches(qubits []LineQubit) bool {
	for _, op := range m.Operations {
		for _, a := range op.Qubits {
			for _, b := range qubits {
				if a == b {
					return true
				}
			}
		}
	}
	return false
}

// AllOperations returns the operations in moment order.
func (c *Circuit) AllOperations() []Operation {
	var out []Operation
	for _, m := range c.Moments {
		out = append(out, m.Operations...)
	}
	return out
}

// AllQubits returns the largest qubit index plus one.
func (c *Circuit) AllQubits() int {
	n := 0
	for _, op := range c.AllOperations() {
		for _, q := range op.Qubits {
			if int(q)+1 > n {
				n = int(q) + 1
			}
		}
	}
	return n
}

// Circuit converts to the shared circuit model. Each measurement key becomes
// a run of classical bits, in first-appearance order.
func (c *Circuit) Circuit() (*circuit.Circuit, error) {
	ops := c.AllOperations()
	keyBits := make(map[string][]int)
	nc := 0
	for _, op := range ops {
		if op.Gate.Name != MeasureName {
			continue
		}
		if _, seen := keyBits[op.Gate.Key]; seen {
			return nil, fmt.Errorf("cirq circuit: measurement key %q used twice", op.Gate.Key)
		}
		bits := make([]int, len(op.Qubits))
		for i := range op.Qubits {
			bits[i] = nc
			nc++
		}
		keyBits[op.Gate.Key] = bits
	}

	out := circuit.New(c.AllQubits(), nc)
	for i, op := range ops {
		qubits := make([]int, len(op.Qubits))
		for j, q := range op.Qubits {
			if q < 0 {
				return nil, fmt.Errorf("cirq circuit: negative qubit %d", q)
			}
			qubits[j] = int(q)
		}
		if op.Gate.Name == MeasureName {
			out.Ops = append(out.Ops, circuit.Operation{Name: circuit.Measure, Qubits: qubits, Clbits: keyBits[op.Gate.Key]})
			continue
		}
		name, ok := fromCirq[op.Gate.Name]
		if !ok {
			return nil, fmt.Errorf("cirq circuit: operation %d: unknown gate %q", i, op.Gate.Name)
		}
		out.Apply(name, append([]circuit.Param(nil), op.Gate.Params...), qubits...)
	}
	if err := out.Validate(); err != nil {
		return nil, fmt.Errorf("cirq circuit: %w", err)
	}
	return out, nil
}

// FromCircuit builds a Cirq circuit with the earliest insertion strategy.
// Barriers align the moments of their qubits and are otherwise dropped. Each
// measured clbit gets the key "<register>_<index>".
func FromCircuit(c *circuit.Circuit) (*Circuit, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if c.HasConditions() {
		return nil, fmt.Errorf("cirq: classically controlled operations are not supported")
	}
	lowered, err := circuit.Lower(c, Supported())
	if err != nil {
		return nil, fmt.Errorf("cirq: %w", err)
	}

	out := &Circuit{}
	// frontier holds, per qubit, the first moment it may occupy.
	frontier := make(map[int]int)
	place := func(op Operation) {
		index := 0
		for _, q := range op.Qubits {
			if f := frontier[int(q)]; f > index {
				index = f
			}
		}
		for len(out.Moments) <= index {
			out.Moments = append(out.Moments, Moment{})
		}
		out.Moments[index].Operations = append(out.Moments[index].Operations, op)
		for _, q := range op.Qubits {
			frontier[int(q)] = index + 1
		}
	}

	for _, op := range lowered.Ops {
		switch op.Name {
		case circuit.Reset:
			return nil, fmt.Errorf("cirq: reset is not supported")
		case circuit.Barrier:
			level := 0
			for _, q := range op.Qubits {
				if frontier[q] > level {
					level = frontier[q]
				}
			}
			for _, q := range op.Qubits {
				frontier[q] = level
			}
			continue
		case circuit.Measure:
			for i, q := range op.Qubits {
				reg, idx, _ := circuit.Locate(lowered.CRegs, op.Clbits[i])
				place(Operation{
					Gate:   Gate{Name: MeasureName, Key: fmt.Sprintf("%s_%d", reg, idx)},
					Qubits: []LineQubit{LineQubit(q)},
				})
			}
			continue
		}
		qubits := make([]LineQubit, len(op.Qubits))
		for i, q := range op.Qubits {
			qubits[i] = LineQubit(q)
		}
		place(Operation{Gate: Gate{Name: toCirq[op.Name], Params: append([]circuit.Param(nil), op.Params...)}, Qubits: qubits})
	}
	return out, nil
}
