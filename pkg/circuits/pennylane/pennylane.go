// Package pennylane models a PennyLane QuantumTape: a list of operations on
// wires followed by the measurement processes that define its return value.
package pennylane

import (
	"fmt"
	"sort"

	"github.com/qbraid/qbraid-go/pkg/circuit"
)

// Operation is a PennyLane operator applied to wires.
type Operation struct {
	Name   string          `json:"name"`
	Wires  []int           `json:"wires"`
	Params []circuit.Param `json:"params,omitempty"`
}

// Measurement return types.
const (
	ReturnSample = "sample"
	ReturnCounts = "counts"
	ReturnProbs  = "probs"
	ReturnExpval = "expval"
	ReturnVar    = "var"
)

// Measurement is a terminal measurement process. Observable is only used by
// expval and var.
type Measurement struct {
	Return     string `json:"return"`
	Observable string `json:"observable,omitempty"`
	Wires      []int  `json:"wires"`
}

// QuantumTape is the PennyLane program representation.
type QuantumTape struct {
	NumWires     int           `json:"num_wires"`
	Operations   []Operation   `json:"operations"`
	Measurements []Measurement `json:"measurements,omitempty"`
}

var toPennyLane = map[string]string{
	"id":    "Identity",
	"h":     "Hadamard",
	"x":     "PauliX",
	"y":     "PauliY",
	"z":     "PauliZ",
	"s":     "S",
	"sdg":   "Adjoint(S)",
	"t":     "T",
	"tdg":   "Adjoint(T)",
	"sx":    "SX",
	"sxdg":  "Adjoint(SX)",
	"rx":    "RX",
	"ry":    "RY",
	"rz":    "RZ",
	"p":     "PhaseShift",
	"u":     "U3",
	"cx":    "CNOT",
	"cy":    "CY",
	"cz":    "CZ",
	"ch":    "CH",
	"swap":  "SWAP",
	"iswap": "ISWAP",
	"crx":   "CRX",
	"cry":   "CRY",
	"crz":   "CRZ",
	"cp":    "ControlledPhaseShift",
	"rxx":   "IsingXX",
	"ryy":   "IsingYY",
	"rzz":   "IsingZZ",
	"ccx":   "Toffoli",
	"cswap": "CSWAP",
}

var fromPennyLane = func() map[string]string {
	m := make(map[string]string, len(toPennyLane))
	for k, v := range toPennyLane {
		m[v] = k
	}
	return m
}()

// BarrierName is the PennyLane barrier operator.
const BarrierName = "Barrier"

// Apply appends an operation and returns the tape for chaining.
func (t *QuantumTape) Apply(name string, params []circuit.Param, wires ...int) *QuantumTape {
	t.Operations = append(t.Operations, Operation{Name: name, Params: params, Wires: wires})
	for _, w := range wires {
		if w+1 > t.NumWires {
			t.NumWires = w + 1
		}
	}
	return t
}

// Measure appends a measurement process.
func (t *QuantumTape) Measure(ret, observable string, wires ...int) *QuantumTape {
	t.Measurements = append(t.Measurements, Measurement{Return: ret, Observable: observable, Wires: wires})
	return t
}

// Circuit converts to the shared circuit model. Every measured wire is
// measured in the computational basis into its own classical bit, so
// expectation values lose their observable.
func (t *QuantumTape) Circuit() (*circuit.Circuit, error) {
	if err := circuit.CheckWidth(0, t.NumWires); err != nil {
		return nil, fmt.Errorf("pennylane tape: %w", err)
	}
	nc := 0
	for _, m := range t.Measurements {
		switch m.Return {
		case ReturnSample, ReturnCounts, ReturnProbs, ReturnExpval, ReturnVar:
		default:
			return nil, fmt.Errorf("pennylane tape: unknown measurement %q", m.Return)
		}
		wires := m.Wires
		if len(wires) == 0 {
			wires = allWires(t.NumWires)
		}
		if err := circuit.CheckWidth(nc, len(wires)); err != nil {
			return nil, fmt.Errorf("pennylane tape: measured wires: %w", err)
		}
		nc += len(wires)
	}

	out := circuit.New(t.NumWires, nc)
	for i, op := range t.Operations {
		if op.Name == BarrierName {
			wires := append([]int(nil), op.Wires...)
			out.BarrierOn(wires...)
			continue
		}
		name, ok := fromPennyLane[op.Name]
		if !ok {
			return nil, fmt.Errorf("pennylane tape: operation %d: unsupported operator %s", i, op.Name)
		}
		out.Apply(name, append([]circuit.Param(nil), op.Params...), append([]int(nil), op.Wires...)...)
	}
	clbit := 0
	for _, m := range t.Measurements {
		wires := m.Wires
		if len(wires) == 0 {
			wires = allWires(t.NumWires)
		}
		for _, w := range wires {
			out.MeasureQubit(w, clbit)
			clbit++
		}
	}
	if err := out.Validate(); err != nil {
		return nil, fmt.Errorf("pennylane tape: %w", err)
	}
	return out, nil
}

func allWires(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

// FromCircuit builds a tape. Measurements must be terminal and become a
// single sample over the measured wires, ordered by classical bit.
func FromCircuit(c *circuit.Circuit) (*QuantumTape, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if c.HasConditions() {
		return nil, fmt.Errorf("pennylane: classically controlled operations are not supported")
	}
	if c.HasMidCircuitMeasurement() {
		return nil, fmt.Errorf("pennylane: operations after measurement are not supported")
	}

	t := &QuantumTape{NumWires: c.NumQubits()}
	byClbit := make(map[int]int)
	var clbits []int
	for _, op := range c.Ops {
		switch op.Name {
		case circuit.Reset:
			return nil, fmt.Errorf("pennylane: reset is not supported")
		case circuit.Barrier:
			t.Operations = append(t.Operations, Operation{Name: BarrierName, Wires: append([]int(nil), op.Qubits...)})
			continue
		case circuit.Measure:
			for i, q := range op.Qubits {
				if _, dup := byClbit[op.Clbits[i]]; !dup {
					clbits = append(clbits, op.Clbits[i])
				}
				byClbit[op.Clbits[i]] = q
			}
			continue
		}
		t.Operations = append(t.Operations, Operation{
			Name:   toPennyLane[op.Name],
			Wires:  append([]int(nil), op.Qubits...),
			Params: append([]circuit.Param(nil), op.Params...),
		})
	}
	if len(clbits) > 0 {
		sort.Ints(clbits)
		wires := make([]int, len(clbits))
		for i, b := range clbits {
			wires[i] = byClbit[b]
		}
		t.Measure(ReturnSample, "", wires...)
	}
	return t, nil
}
