// Package pyquil models a pyQuil Program and reads and writes it as Quil
// text.
package pyquil

import (
	"bufio"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/qbraid/qbraid-go/pkg/circuit"
	"github.com/qbraid/qbraid-go/pkg/qasm"
)

// Declaration is a classical memory region.
type Declaration struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Size int    `json:"size"`
}

// MemoryRef addresses one element of a declared region.
type MemoryRef struct {
	Name  string `json:"name"`
	Index int    `json:"index"`
}

// String implements fmt.Stringer.
func (m MemoryRef) String() string {
	return fmt.Sprintf("%s[%d]", m.Name, m.Index)
}

// Instruction kinds.
const (
	KindGate    = "gate"
	KindMeasure = "measure"
	KindReset   = "reset"
	KindPragma  = "pragma"
)

// Instruction is one Quil instruction.
type Instruction struct {
	Kind   string          `json:"kind"`
	Name   string          `json:"name,omitempty"`
	Dagger bool            `json:"dagger,omitempty"`
	Params []circuit.Param `json:"params,omitempty"`
	Qubits []int           `json:"qubits,omitempty"`
	Target *MemoryRef      `json:"target,omitempty"`
}

// Program is the pyQuil program representation.
type Program struct {
	Declarations []Declaration `json:"declarations,omitempty"`
	Instructions []Instruction `json:"instructions"`
}

type quilGate struct {
	name   string
	dagger bool
}

var toQuil = map[string]quilGate{
	"id":    {name: "I"},
	"h":     {name: "H"},
	"x":     {name: "X"},
	"y":     {name: "Y"},
	"z":     {name: "Z"},
	"s":     {name: "S"},
	"sdg":   {name: "S", dagger: true},
	"t":     {name: "T"},
	"tdg":   {name: "T", dagger: true},
	"rx":    {name: "RX"},
	"ry":    {name: "RY"},
	"rz":    {name: "RZ"},
	"p":     {name: "PHASE"},
	"cx":    {name: "CNOT"},
	"cz":    {name: "CZ"},
	"swap":  {name: "SWAP"},
	"iswap": {name: "ISWAP"},
	"cp":    {name: "CPHASE"},
	"ccx":   {name: "CCNOT"},
	"cswap": {name: "CSWAP"},
}

var fromQuil = func() map[quilGate]string {
	m := make(map[quilGate]string, len(toQuil))
	for k, v := range toQuil {
		m[v] = k
	}
	return m
}()

// Supported returns the catalog gates with a native Quil gate.
func Supported() circuit.GateSet {
	names := make([]string, 0, len(toQuil))
	for k := range toQuil {
		names = append(names, k)
	}
	return circuit.NewGateSet(names...)
}

// Declare adds a memory region and returns the program for chaining.
func (p *Program) Declare(name, typ string, size int) *Program {
	p.Declarations = append(p.Declarations, Declaration{Name: name, Type: typ, Size: size})
	return p
}

// Gate appends a gate instruction.
func (p *Program) Gate(name string, params []circuit.Param, qubits ...int) *Program {
	p.Instructions = append(p.Instructions, Instruction{Kind: KindGate, Name: name, Params: params, Qubits: qubits})
	return p
}

// Measure appends MEASURE qubit name[index].
func (p *Program) Measure(qubit int, name string, index int) *Program {
	p.Instructions = append(p.Instructions, Instruction{
		Kind:   KindMeasure,
		Qubits: []int{qubit},
		Target: &MemoryRef{Name: name, Index: index},
	})
	return p
}

// String renders the program as Quil.
func (p *Program) String() string {
	var b strings.Builder
	for _, d := range p.Declarations {
		fmt.Fprintf(&b, "DECLARE %s %s[%d]\n", d.Name, d.Type, d.Size)
	}
	for _, in := range p.Instructions {
		b.WriteString(in.String())
		b.WriteByte('\n')
	}
	return b.String()
}

// String renders one instruction as Quil.
func (in Instruction) String() string {
	qubits := make([]string, len(in.Qubits))
	for i, q := range in.Qubits {
		qubits[i] = strconv.Itoa(q)
	}
	switch in.Kind {
	case KindMeasure:
		s := "MEASURE " + qubits[0]
		if in.Target != nil {
			s += " " + in.Target.String()
		}
		return s
	case KindReset:
		if len(qubits) == 0 {
			return "RESET"
		}
		return "RESET " + strings.Join(qubits, " ")
	case KindPragma:
		return "PRAGMA " + in.Name
	}
	var b strings.Builder
	if in.Dagger {
		b.WriteString("DAGGER ")
	}
	b.WriteString(in.Name)
	if len(in.Params) > 0 {
		params := make([]string, len(in.Params))
		for i, p := range in.Params {
			if p.IsSymbolic() {
				params[i] = "%" + p.Symbol
			} else {
				params[i] = p.String()
			}
		}
		b.WriteString("(" + strings.Join(params, ", ") + ")")
	}
	if len(qubits) > 0 {
		b.WriteString(" " + strings.Join(qubits, " "))
	}
	return b.String()
}

var (
	declareRe = regexp.MustCompile(`^DECLARE\s+([A-Za-z_][\w-]*)\s+(BIT|OCTET|INTEGER|REAL)(?:\[(\d+)\])?$`)
	memRe     = regexp.MustCompile(`^([A-Za-z_][\w-]*)(?:\[(\d+)\])?$`)
	gateRe    = regexp.MustCompile(`^((?:DAGGER\s+)*)([A-Z][A-Z0-9_]*)(?:\((.*)\))?((?:\s+\d+)*)$`)
	piRe      = regexp.MustCompile(`(?i)\bpi\b`)
)

// Parse reads Quil text. Comments, blank lines, PRAGMA and HALT lines are
// accepted; gate parameters may use pi, arithmetic and %name for symbols.
func Parse(text string) (*Program, error) {
	p := &Program{}
	scanner := bufio.NewScanner(strings.NewReader(text))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)
		if line == "" || line == "HALT" {
			continue
		}
		if err := p.parseLine(line); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Program) parseLine(line string) error {
	fields := strings.Fields(line)
	switch fields[0] {
	case "DECLARE":
		m := declareRe.FindStringSubmatch(strings.Join(fields, " "))
		if m == nil {
			return fmt.Errorf("malformed DECLARE %q", line)
		}
		size := 1
		if m[3] != "" {
			n, err := strconv.Atoi(m[3])
			if err == nil {
				err = circuit.CheckWidth(0, n)
			}
			if err != nil {
				return fmt.Errorf("DECLARE %s size %s: %w", m[1], m[3], err)
			}
			size = n
		}
		p.Declare(m[1], m[2], size)
		return nil
	case "PRAGMA":
		p.Instructions = append(p.Instructions, Instruction{Kind: KindPragma, Name: strings.TrimSpace(strings.TrimPrefix(line, "PRAGMA"))})
		return nil
	case "RESET":
		qubits, err := parseQubits(fields[1:])
		if err != nil {
			return err
		}
		p.Instructions = append(p.Instructions, Instruction{Kind: KindReset, Qubits: qubits})
		return nil
	case "MEASURE":
		if len(fields) < 2 || len(fields) > 3 {
			return fmt.Errorf("malformed MEASURE %q", line)
		}
		qubits, err := parseQubits(fields[1:2])
		if err != nil {
			return err
		}
		in := Instruction{Kind: KindMeasure, Qubits: qubits}
		if len(fields) == 3 {
			m := memRe.FindStringSubmatch(fields[2])
			if m == nil {
				return fmt.Errorf("malformed memory reference %q", fields[2])
			}
			ref := &MemoryRef{Name: m[1]}
			if m[2] != "" {
				idx, err := strconv.Atoi(m[2])
				if err != nil {
					return fmt.Errorf("memory index %q: %w", m[2], err)
				}
				ref.Index = idx
			}
			in.Target = ref
		}
		p.Instructions = append(p.Instructions, in)
		return nil
	}

	m := gateRe.FindStringSubmatch(line)
	if m == nil {
		return fmt.Errorf("unsupported instruction %q", line)
	}
	in := Instruction{Kind: KindGate, Name: m[2], Dagger: strings.Count(m[1], "DAGGER")%2 == 1}
	if strings.TrimSpace(m[3]) != "" {
		for _, raw := range strings.Split(m[3], ",") {
			param, err := parseParam(strings.TrimSpace(raw))
			if err != nil {
				return err
			}
			in.Params = append(in.Params, param)
		}
	}
	qubits, err := parseQubits(strings.Fields(m[4]))
	if err != nil {
		return err
	}
	if len(qubits) == 0 {
		return fmt.Errorf("gate %s has no qubits", in.Name)
	}
	in.Qubits = qubits
	p.Instructions = append(p.Instructions, in)
	return nil
}

func parseQubits(fields []string) ([]int, error) {
	out := make([]int, len(fields))
	for i, f := range fields {
		q, err := strconv.Atoi(f)
		if err != nil || q < 0 || q >= circuit.MaxWires {
			return nil, fmt.Errorf("invalid qubit %q", f)
		}
		out[i] = q
	}
	return out, nil
}

func parseParam(s string) (circuit.Param, error) {
	if strings.HasPrefix(s, "%") {
		return circuit.Sym(s[1:]), nil
	}
	v, err := qasm.Eval(piRe.ReplaceAllString(s, "pi"))
	if err != nil {
		return circuit.Param{}, fmt.Errorf("parameter %q: %w", s, err)
	}
	return circuit.Num(v), nil
}

// Circuit converts to the shared circuit model. Each declared BIT region
// becomes a classical register; qubits span up to the largest index used.
func (p *Program) Circuit() (*circuit.Circuit, error) {
	out := &circuit.Circuit{}
	nq := 0
	for _, in := range p.Instructions {
		for _, q := range in.Qubits {
			if q+1 > nq {
				nq = q + 1
			}
		}
	}
	out.QRegs = []circuit.Register{{Name: "q", Size: nq}}
	for _, d := range p.Declarations {
		if d.Type == "BIT" {
			out.CRegs = append(out.CRegs, circuit.Register{Name: d.Name, Size: d.Size})
		}
	}

	for i, in := range p.Instructions {
		switch in.Kind {
		case KindPragma:
			continue
		case KindReset:
			qubits := in.Qubits
			if len(qubits) == 0 {
				for q := 0; q < nq; q++ {
					qubits = append(qubits, q)
				}
			}
			for _, q := range qubits {
				out.Ops = append(out.Ops, circuit.Operation{Name: circuit.Reset, Qubits: []int{q}})
			}
			continue
		case KindMeasure:
			if in.Target == nil {
				continue
			}
			reg, offset, ok := out.CReg(in.Target.Name)
			if !ok || in.Target.Index >= reg.Size {
				return nil, fmt.Errorf("pyquil program: instruction %d: undeclared memory %s", i, in.Target)
			}
			out.MeasureQubit(in.Qubits[0], offset+in.Target.Index)
			continue
		}
		name, ok := fromQuil[quilGate{name: in.Name, dagger: in.Dagger}]
		if !ok {
			if !in.Dagger {
				return nil, fmt.Errorf("pyquil program: instruction %d: unsupported gate %s", i, in.Name)
			}
			base, known := fromQuil[quilGate{name: in.Name}]
			if !known || (len(in.Params) == 0 && !selfInverse[base]) {
				return nil, fmt.Errorf("pyquil program: instruction %d: unsupported gate DAGGER %s", i, in.Name)
			}
			params, err := negate(in.Params)
			if err != nil {
				return nil, fmt.Errorf("pyquil program: instruction %d: %w", i, err)
			}
			out.Apply(base, params, append([]int(nil), in.Qubits...)...)
			continue
		}
		out.Apply(name, append([]circuit.Param(nil), in.Params...), append([]int(nil), in.Qubits...)...)
	}
	if err := out.Validate(); err != nil {
		return nil, fmt.Errorf("pyquil program: %w", err)
	}
	return out, nil
}

var selfInverse = map[string]bool{
	"id": true, "h": true, "x": true, "y": true, "z": true,
	"cx": true, "cz": true, "swap": true, "ccx": true, "cswap": true,
}

// negate inverts rotation angles.
func negate(params []circuit.Param) ([]circuit.Param, error) {
	out := make([]circuit.Param, len(params))
	for i, p := range params {
		if p.IsSymbolic() {
			return nil, fmt.Errorf("cannot invert unbound parameter %q", p.Symbol)
		}
		out[i] = circuit.Num(-p.Value)
	}
	return out, nil
}

// FromCircuit builds a Quil program. Classical registers become BIT
// declarations; gates without a Quil counterpart are decomposed.
func FromCircuit(c *circuit.Circuit) (*Program, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if c.HasConditions() {
		return nil, fmt.Errorf("pyquil: classically controlled operations are not supported")
	}
	lowered, err := circuit.Lower(c, Supported())
	if err != nil {
		return nil, fmt.Errorf("pyquil: %w", err)
	}

	p := &Program{}
	for _, r := range lowered.CRegs {
		p.Declare(r.Name, "BIT", r.Size)
	}
	for _, op := range lowered.Ops {
		switch op.Name {
		case circuit.Barrier:
			continue
		case circuit.Reset:
			p.Instructions = append(p.Instructions, Instruction{Kind: KindReset, Qubits: append([]int(nil), op.Qubits...)})
			continue
		case circuit.Measure:
			for i, q := range op.Qubits {
				reg, idx, _ := circuit.Locate(lowered.CRegs, op.Clbits[i])
				p.Measure(q, reg, idx)
			}
			continue
		}
		g := toQuil[op.Name]
		p.Instructions = append(p.Instructions, Instruction{
			Kind:   KindGate,
			Name:   g.name,
			Dagger: g.dagger,
			Params: append([]circuit.Param(nil), op.Params...),
			Qubits: append([]int(nil), op.Qubits...),
		})
	}
	return p, nil
}
