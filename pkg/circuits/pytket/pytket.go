// Package pytket models a pytket Circuit: commands over named unit ids with
// gate angles expressed in half-turns.
package pytket

import (
	"fmt"
	"math"

	"github.com/qbraid/qbraid-go/pkg/circuit"
)

// OpType names a pytket operation.
type OpType string

// Operation types.
const (
	OpH        OpType = "H"
	OpX        OpType = "X"
	OpY        OpType = "Y"
	OpZ        OpType = "Z"
	OpS        OpType = "S"
	OpSdg      OpType = "Sdg"
	OpT        OpType = "T"
	OpTdg      OpType = "Tdg"
	OpSX       OpType = "SX"
	OpSXdg     OpType = "SXdg"
	OpRx       OpType = "Rx"
	OpRy       OpType = "Ry"
	OpRz       OpType = "Rz"
	OpU1       OpType = "U1"
	OpU3       OpType = "U3"
	OpCX       OpType = "CX"
	OpCY       OpType = "CY"
	OpCZ       OpType = "CZ"
	OpCH       OpType = "CH"
	OpSWAP     OpType = "SWAP"
	OpISWAPMax OpType = "ISWAPMax"
	OpCRx      OpType = "CRx"
	OpCRy      OpType = "CRy"
	OpCRz      OpType = "CRz"
	OpCU1      OpType = "CU1"
	OpXXPhase  OpType = "XXPhase"
	OpYYPhase  OpType = "YYPhase"
	OpZZPhase  OpType = "ZZPhase"
	OpCCX      OpType = "CCX"
	OpCSWAP    OpType = "CSWAP"
	OpNoop     OpType = "noop"
	OpMeasure  OpType = "Measure"
	OpBarrier  OpType = "Barrier"
	OpReset    OpType = "Reset"
)

// UnitID names a qubit or bit as register[index].
type UnitID struct {
	Reg   string `json:"reg"`
	Index int    `json:"index"`
}

// String implements fmt.Stringer.
func (u UnitID) String() string {
	return fmt.Sprintf("%s[%d]", u.Reg, u.Index)
}

// Op is an operation with parameters in half-turns.
type Op struct {
	Type   OpType    `json:"type"`
	Params []float64 `json:"params,omitempty"`
}

// Command applies an op to its arguments. Measurements take a qubit then a
// bit; every other op takes qubits only.
type Command struct {
	Op   Op       `json:"op"`
	Args []UnitID `json:"args"`
}

// Circuit is the pytket program representation.
type Circuit struct {
	Name     string    `json:"name,omitempty"`
	Qubits   []UnitID  `json:"qubits"`
	Bits     []UnitID  `json:"bits,omitempty"`
	Commands []Command `json:"commands"`
}

var toTket = map[string]OpType{
	"id":    OpNoop,
	"h":     OpH,
	"x":     OpX,
	"y":     OpY,
	"z":     OpZ,
	"s":     OpS,
	"sdg":   OpSdg,
	"t":     OpT,
	"tdg":   OpTdg,
	"sx":    OpSX,
	"sxdg":  OpSXdg,
	"rx":    OpRx,
	"ry":    OpRy,
	"rz":    OpRz,
	"p":     OpU1,
	"u":     OpU3,
	"cx":    OpCX,
	"cy":    OpCY,
	"cz":    OpCZ,
	"ch":    OpCH,
	"swap":  OpSWAP,
	"iswap": OpISWAPMax,
	"crx":   OpCRx,
	"cry":   OpCRy,
	"crz":   OpCRz,
	"cp":    OpCU1,
	"rxx":   OpXXPhase,
	"ryy":   OpYYPhase,
	"rzz":   OpZZPhase,
	"ccx":   OpCCX,
	"cswap": OpCSWAP,
}

var fromTket = func() map[OpType]string {
	m := make(map[OpType]string, len(toTket))
	for k, v := range toTket {
		m[v] = k
	}
	return m
}()

// NewCircuit returns a circuit with qubits q[0..n) and bits c[0..m).
func NewCircuit(numQubits, numBits int) *Circuit {
	c := &Circuit{}
	for i := 0; i < numQubits; i++ {
		c.Qubits = append(c.Qubits, UnitID{Reg: "q", Index: i})
	}
	for i := 0; i < numBits; i++ {
		c.Bits = append(c.Bits, UnitID{Reg: "c", Index: i})
	}
	return c
}

// AddGate appends a gate on default-register qubits. Params are half-turns.
func (c *Circuit) AddGate(t OpType, params []float64, qubits ...int) *Circuit {
	args := make([]UnitID, len(qubits))
	for i, q := range qubits {
		args[i] = UnitID{Reg: "q", Index: q}
	}
	c.Commands = append(c.Commands, Command{Op: Op{Type: t, Params: params}, Args: args})
	return c
}

// Measure appends a measurement of q[qubit] into c[bit].
func (c *Circuit) Measure(qubit, bit int) *Circuit {
	c.Commands = append(c.Commands, Command{
		Op:   Op{Type: OpMeasure},
		Args: []UnitID{{Reg: "q", Index: qubit}, {Reg: "c", Index: bit}},
	})
	return c
}

// unitIndex assigns flat indices to unit ids grouped by register in order of
// first appearance.
func unitIndex(units []UnitID) ([]circuit.Register, map[UnitID]int) {
	var regs []circuit.Register
	sizes := make(map[string]int)
	for _, u := range units {
		if _, ok := sizes[u.Reg]; !ok {
			regs = append(regs, circuit.Register{Name: u.Reg})
		}
		if u.Index+1 > sizes[u.Reg] {
			sizes[u.Reg] = u.Index + 1
		}
	}
	index := make(map[UnitID]int, len(units))
	offset := 0
	for i := range regs {
		regs[i].Size = sizes[regs[i].Name]
		for j := 0; j < regs[i].Size; j++ {
			index[UnitID{Reg: regs[i].Name, Index: j}] = offset + j
		}
		offset += regs[i].Size
	}
	return regs, index
}

// Circuit converts to the shared circuit model.
func (c *Circuit) Circuit() (*circuit.Circuit, error) {
	qregs, qidx := unitIndex(c.Qubits)
	cregs, cidx := unitIndex(c.Bits)
	out := &circuit.Circuit{Name: c.Name, QRegs: qregs, CRegs: cregs}

	qubit := func(u UnitID) (int, error) {
		i, ok := qidx[u]
		if !ok {
			return 0, fmt.Errorf("unknown qubit %s", u)
		}
		return i, nil
	}

	for n, cmd := range c.Commands {
		switch cmd.Op.Type {
		case OpMeasure:
			if len(cmd.Args) != 2 {
				return nil, fmt.Errorf("pytket circuit: command %d: measure takes a qubit and a bit", n)
			}
			q, err := qubit(cmd.Args[0])
			if err != nil {
				return nil, fmt.Errorf("pytket circuit: command %d: %w", n, err)
			}
			b, ok := cidx[cmd.Args[1]]
			if !ok {
				return nil, fmt.Errorf("pytket circuit: command %d: unknown bit %s", n, cmd.Args[1])
			}
			out.MeasureQubit(q, b)
			continue
		}

		qubits := make([]int, len(cmd.Args))
		for i, a := range cmd.Args {
			q, err := qubit(a)
			if err != nil {
				return nil, fmt.Errorf("pytket circuit: command %d: %w", n, err)
			}
			qubits[i] = q
		}
		switch cmd.Op.Type {
		case OpBarrier:
			out.Ops = append(out.Ops, circuit.Operation{Name: circuit.Barrier, Qubits: qubits})
			continue
		case OpReset:
			out.Ops = append(out.Ops, circuit.Operation{Name: circuit.Reset, Qubits: qubits})
			continue
		}
		name, ok := fromTket[cmd.Op.Type]
		if !ok {
			return nil, fmt.Errorf("pytket circuit: command %d: unsupported op type %s", n, cmd.Op.Type)
		}
		params := make([]circuit.Param, len(cmd.Op.Params))
		for i, p := range cmd.Op.Params {
			params[i] = circuit.Num(p * math.Pi)
		}
		out.Apply(name, params, qubits...)
	}
	if err := out.Validate(); err != nil {
		return nil, fmt.Errorf("pytket circuit: %w", err)
	}
	return out, nil
}

// FromCircuit builds a pytket circuit. Angles are converted to half-turns,
// so symbolic parameters are rejected.
func FromCircuit(c *circuit.Circuit) (*Circuit, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if c.HasConditions() {
		return nil, fmt.Errorf("pytket: classically controlled operations are not supported")
	}
	out := &Circuit{Name: c.Name}
	for _, r := range c.QRegs {
		for i := 0; i < r.Size; i++ {
			out.Qubits = append(out.Qubits, UnitID{Reg: r.Name, Index: i})
		}
	}
	for _, r := range c.CRegs {
		for i := 0; i < r.Size; i++ {
			out.Bits = append(out.Bits, UnitID{Reg: r.Name, Index: i})
		}
	}

	for i, op := range c.Ops {
		args := make([]UnitID, 0, len(op.Qubits)+len(op.Clbits))
		for _, q := range op.Qubits {
			args = append(args, out.Qubits[q])
		}
		switch op.Name {
		case circuit.Measure:
			for j, q := range op.Qubits {
				out.Commands = append(out.Commands, Command{
					Op:   Op{Type: OpMeasure},
					Args: []UnitID{out.Qubits[q], out.Bits[op.Clbits[j]]},
				})
			}
			continue
		case circuit.Barrier:
			out.Commands = append(out.Commands, Command{Op: Op{Type: OpBarrier}, Args: args})
			continue
		case circuit.Reset:
			out.Commands = append(out.Commands, Command{Op: Op{Type: OpReset}, Args: args})
			continue
		}
		angles, err := op.Angles()
		if err != nil {
			return nil, fmt.Errorf("pytket: operation %d: %w", i, err)
		}
		params := make([]float64, len(angles))
		for j, a := range angles {
			params[j] = a / math.Pi
		}
		out.Commands = append(out.Commands, Command{Op: Op{Type: toTket[op.Name], Params: params}, Args: args})
	}
	return out, nil
}
