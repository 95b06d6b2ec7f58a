// Package circuit defines the gate-level circuit model shared by the vendor
// program packages, the OpenQASM codecs and the compiler.
//
// Qubits and classical bits are addressed by flat indices. Registers only
// record how those indices are grouped for text formats that name them.
package circuit

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Structural operation names. They are not unitary gates.
const (
	Measure = "measure"
	Barrier = "barrier"
	Reset   = "reset"
)

// MaxWires bounds the number of qubits, and separately of classical bits,
// in one circuit. Parsers reject declarations past it before allocating.
const MaxWires = 1 << 16

// CheckWidth reports whether a register of n wires fits after used wires
// already declared.
func CheckWidth(used, n int) error {
	if n < 0 || used < 0 || n > MaxWires-used {
		return fmt.Errorf("register of %d wires after %d exceeds the %d wire limit", n, used, MaxWires)
	}
	return nil
}

// Register is a named, contiguous group of qubits or classical bits.
type Register struct {
	Name string `json:"name"`
	Size int    `json:"size"`
}

// Param is a gate parameter, either a number in radians or a free symbol.
type Param struct {
	Value  float64 `json:"value,omitempty"`
	Symbol string  `json:"symbol,omitempty"`
}

// Num returns a numeric parameter.
func Num(v float64) Param {
	return Param{Value: v}
}

// Sym returns a symbolic parameter.
func Sym(name string) Param {
	return Param{Symbol: name}
}

// IsSymbolic reports whether the parameter is an unbound symbol.
func (p Param) IsSymbolic() bool {
	return p.Symbol != ""
}

// String formats the parameter, using multiples of pi where exact.
func (p Param) String() string {
	if p.IsSymbolic() {
		return p.Symbol
	}
	return FormatAngle(p.Value)
}

// FormatAngle renders an angle as a short OpenQASM expression.
func FormatAngle(v float64) string {
	if v == 0 {
		return "0"
	}
	for _, den := range []int{1, 2, 3, 4, 6, 8, 16} {
		num := v * float64(den) / math.Pi
		rounded := math.Round(num)
		if rounded == 0 || math.Abs(num-rounded) > 1e-12 {
			continue
		}
		n := int(rounded)
		var s string
		switch n {
		case 1:
			s = "pi"
		case -1:
			s = "-pi"
		default:
			s = strconv.Itoa(n) + "*pi"
		}
		if den != 1 {
			s += "/" + strconv.Itoa(den)
		}
		return s
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// Condition gates an operation on classical data. Bit < 0 compares the
// whole register against Value, otherwise the single bit is compared.
type Condition struct {
	Register string `json:"register"`
	Bit      int    `json:"bit"`
	Value    int    `json:"value"`
}

// Operation is a single instruction applied to qubits and classical bits.
type Operation struct {
	Name      string     `json:"name"`
	Qubits    []int      `json:"qubits"`
	Clbits    []int      `json:"clbits,omitempty"`
	Params    []Param    `json:"params,omitempty"`
	Condition *Condition `json:"condition,omitempty"`
}

// IsStructural reports whether the operation is a measurement or barrier.
func (o Operation) IsStructural() bool {
	return o.Name == Measure || o.Name == Barrier
}

// HasSymbols reports whether any parameter is symbolic.
func (o Operation) HasSymbols() bool {
	for _, p := range o.Params {
		if p.IsSymbolic() {
			return true
		}
	}
	return false
}

// Angles returns the numeric parameter values. It fails when a parameter is
// symbolic.
func (o Operation) Angles() ([]float64, error) {
	out := make([]float64, len(o.Params))
	for i, p := range o.Params {
		if p.IsSymbolic() {
			return nil, fmt.Errorf("gate %s has unbound parameter %q", o.Name, p.Symbol)
		}
		out[i] = p.Value
	}
	return out, nil
}

func (o Operation) clone() Operation {
	c := Operation{
		Name:   o.Name,
		Qubits: append([]int(nil), o.Qubits...),
		Clbits: append([]int(nil), o.Clbits...),
		Params: append([]Param(nil), o.Params...),
	}
	if o.Condition != nil {
		cond := *o.Condition
		c.Condition = &cond
	}
	return c
}

// String renders the operation for diagnostics.
func (o Operation) String() string {
	var b strings.Builder
	b.WriteString(o.Name)
	if len(o.Params) > 0 {
		parts := make([]string, len(o.Params))
		for i, p := range o.Params {
			parts[i] = p.String()
		}
		b.WriteString("(" + strings.Join(parts, ",") + ")")
	}
	qs := make([]string, len(o.Qubits))
	for i, q := range o.Qubits {
		qs[i] = "q" + strconv.Itoa(q)
	}
	b.WriteString(" " + strings.Join(qs, ","))
	if len(o.Clbits) > 0 {
		cs := make([]string, len(o.Clbits))
		for i, c := range o.Clbits {
			cs[i] = "c" + strconv.Itoa(c)
		}
		b.WriteString(" -> " + strings.Join(cs, ","))
	}
	return b.String()
}

// Circuit is an ordered list of operations over flat qubit and clbit indices.
type Circuit struct {
	Name  string      `json:"name,omitempty"`
	QRegs []Register  `json:"qregs"`
	CRegs []Register  `json:"cregs,omitempty"`
	Ops   []Operation `json:"ops"`
}

// New returns an empty circuit with a single quantum register "q" and, when
// numClbits > 0, a single classical register "c".
func New(numQubits, numClbits int) *Circuit {
	c := &Circuit{QRegs: []Register{{Name: "q", Size: numQubits}}}
	if numClbits > 0 {
		c.CRegs = []Register{{Name: "c", Size: numClbits}}
	}
	return c
}

// NumQubits returns the total number of qubits across registers.
func (c *Circuit) NumQubits() int {
	n := 0
	for _, r := range c.QRegs {
		n += r.Size
	}
	return n
}

// NumClbits returns the total number of classical bits across registers.
func (c *Circuit) NumClbits() int {
	n := 0
	for _, r := range c.CRegs {
		n += r.Size
	}
	return n
}

// Apply appends a gate and returns the circuit for chaining.
func (c *Circuit) Apply(name string, params []Param, qubits ...int) *Circuit {
	c.Ops = append(c.Ops, Operation{Name: name, Params: params, Qubits: qubits})
	return c
}

// Gate appends a parameterless gate.
func (c *Circuit) Gate(name string, qubits ...int) *Circuit {
	return c.Apply(name, nil, qubits...)
}

// Rotation appends a single-angle gate.
func (c *Circuit) Rotation(name string, theta float64, qubits ...int) *Circuit {
	return c.Apply(name, []Param{Num(theta)}, qubits...)
}

// MeasureQubit appends a measurement of qubit into clbit.
func (c *Circuit) MeasureQubit(qubit, clbit int) *Circuit {
	c.Ops = append(c.Ops, Operation{Name: Measure, Qubits: []int{qubit}, Clbits: []int{clbit}})
	return c
}

// BarrierOn appends a barrier across the given qubits, or all qubits when
// none are given.
func (c *Circuit) BarrierOn(qubits ...int) *Circuit {
	if len(qubits) == 0 {
		for q := 0; q < c.NumQubits(); q++ {
			qubits = append(qubits, q)
		}
	}
	c.Ops = append(c.Ops, Operation{Name: Barrier, Qubits: qubits})
	return c
}

// Copy returns a deep copy of the circuit.
func (c *Circuit) Copy() *Circuit {
	out := &Circuit{
		Name:  c.Name,
		QRegs: append([]Register(nil), c.QRegs...),
		CRegs: append([]Register(nil), c.CRegs...),
		Ops:   make([]Operation, len(c.Ops)),
	}
	for i, op := range c.Ops {
		out.Ops[i] = op.clone()
	}
	return out
}

// GateCounts returns the number of operations per name.
func (c *Circuit) GateCounts() map[string]int {
	counts := make(map[string]int)
	for _, op := range c.Ops {
		counts[op.Name]++
	}
	return counts
}

// GateNames returns the distinct operation names, sorted.
func (c *Circuit) GateNames() []string {
	counts := c.GateCounts()
	names := make([]string, 0, len(counts))
	for n := range counts {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// UsedQubits returns the sorted set of qubit indices touched by operations.
func (c *Circuit) UsedQubits() []int {
	seen := make(map[int]bool)
	for _, op := range c.Ops {
		for _, q := range op.Qubits {
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

// CReg returns the classical register with the given name.
func (c *Circuit) CReg(name string) (Register, int, bool) {
	offset := 0
	for _, r := range c.CRegs {
		if r.Name == name {
			return r, offset, true
		}
		offset += r.Size
	}
	return Register{}, 0, false
}

// Locate maps a flat index to its register name and position.
func Locate(regs []Register, index int) (string, int, bool) {
	for _, r := range regs {
		if index < r.Size {
			return r.Name, index, true
		}
		index -= r.Size
	}
	return "", 0, false
}

func checkRegisters(kind string, regs []Register) error {
	used := 0
	for _, r := range regs {
		if err := CheckWidth(used, r.Size); err != nil {
			return fmt.Errorf("%s register %q: %w", kind, r.Name, err)
		}
		used += r.Size
	}
	return nil
}

// Validate checks register widths, operation arity and index bounds.
func (c *Circuit) Validate() error {
	if err := checkRegisters("qubit", c.QRegs); err != nil {
		return err
	}
	if err := checkRegisters("clbit", c.CRegs); err != nil {
		return err
	}
	nq, nc := c.NumQubits(), c.NumClbits()
	for i, op := range c.Ops {
		if len(op.Qubits) == 0 {
			return fmt.Errorf("operation %d (%s): no qubits", i, op.Name)
		}
		seen := make(map[int]bool, len(op.Qubits))
		for _, q := range op.Qubits {
			if q < 0 || q >= nq {
				return fmt.Errorf("operation %d (%s): qubit %d out of range [0,%d)", i, op.Name, q, nq)
			}
			if seen[q] && op.Name != Barrier {
				return fmt.Errorf("operation %d (%s): qubit %d used twice", i, op.Name, q)
			}
			seen[q] = true
		}
		for _, b := range op.Clbits {
			if b < 0 || b >= nc {
				return fmt.Errorf("operation %d (%s): clbit %d out of range [0,%d)", i, op.Name, b, nc)
			}
		}
		switch op.Name {
		case Measure:
			if len(op.Qubits) != len(op.Clbits) {
				return fmt.Errorf("operation %d: measure needs one clbit per qubit", i)
			}
			continue
		case Barrier, Reset:
			continue
		}
		def, ok := Lookup(op.Name)
		if !ok {
			return fmt.Errorf("operation %d: unknown gate %q", i, op.Name)
		}
		if def.NumQubits != len(op.Qubits) {
			return fmt.Errorf("operation %d (%s): expected %d qubits, got %d", i, op.Name, def.NumQubits, len(op.Qubits))
		}
		if def.NumParams != len(op.Params) {
			return fmt.Errorf("operation %d (%s): expected %d parameters, got %d", i, op.Name, def.NumParams, len(op.Params))
		}
		if op.Condition != nil {
			reg, _, ok := c.CReg(op.Condition.Register)
			if !ok {
				return fmt.Errorf("operation %d (%s): condition on unknown register %q", i, op.Name, op.Condition.Register)
			}
			if op.Condition.Bit >= reg.Size {
				return fmt.Errorf("operation %d (%s): condition bit %d out of range", i, op.Name, op.Condition.Bit)
			}
		}
	}
	return nil
}

// String renders the circuit one operation per line.
func (c *Circuit) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "circuit %q: %d qubits, %d clbits\n", c.Name, c.NumQubits(), c.NumClbits())
	for _, op := range c.Ops {
		b.WriteString("  " + op.String() + "\n")
	}
	return b.String()
}

// HasMidCircuitMeasurement reports whether any qubit is acted on again
// after being measured. Barriers do not count.
func (c *Circuit) HasMidCircuitMeasurement() bool {
	measured := make(map[int]bool)
	for _, op := range c.Ops {
		if op.Name == Barrier {
			continue
		}
		for _, q := range op.Qubits {
			if measured[q] && op.Name != Measure {
				return true
			}
		}
		if op.Name == Measure {
			for _, q := range op.Qubits {
				measured[q] = true
			}
		}
	}
	return false
}

// HasConditions reports whether any operation is classically controlled.
func (c *Circuit) HasConditions() bool {
	for _, op := range c.Ops {
		if op.Condition != nil {
			return true
		}
	}
	return false
}
