package qasm

import (
	"fmt"
	"sort"
	"strings"

	"github.com/qbraid/qbraid-go/pkg/circuit"
)

// qelib1 lists the gates of the OpenQASM 2 standard header, keyed by
// catalog name with the spelling to emit.
var qelib1 = map[string]string{
	"u": "u3", "p": "u1", "cx": "cx", "id": "id", "x": "x", "y": "y", "z": "z",
	"h": "h", "s": "s", "sdg": "sdg", "t": "t", "tdg": "tdg", "rx": "rx", "ry": "ry",
	"rz": "rz", "cz": "cz", "cy": "cy", "ch": "ch", "ccx": "ccx", "crz": "crz", "cp": "cu1",
}

// stdgates lists the gates of the OpenQASM 3 standard library.
var stdgates = map[string]string{
	"u": "u3", "p": "p", "cx": "cx", "id": "id", "x": "x", "y": "y", "z": "z",
	"h": "h", "s": "s", "sdg": "sdg", "t": "t", "tdg": "tdg", "sx": "sx", "rx": "rx",
	"ry": "ry", "rz": "rz", "cz": "cz", "cy": "cy", "ch": "ch", "ccx": "ccx",
	"crx": "crx", "cry": "cry", "crz": "crz", "cp": "cp", "swap": "swap", "cswap": "cswap",
}

type dialect struct {
	version int
	lib     map[string]string
}

var (
	dialect2 = dialect{version: 2, lib: qelib1}
	dialect3 = dialect{version: 3, lib: stdgates}
)

// EmitQASM2 renders a circuit as an OpenQASM 2 program. Gates outside
// qelib1.inc are emitted with local gate definitions.
func EmitQASM2(c *circuit.Circuit) (QASM2, error) {
	s, err := emit(c, dialect2)
	return QASM2(s), err
}

// EmitQASM3 renders a circuit as an OpenQASM 3 program.
func EmitQASM3(c *circuit.Circuit) (QASM3, error) {
	s, err := emit(c, dialect3)
	return QASM3(s), err
}

func emit(c *circuit.Circuit, d dialect) (string, error) {
	if err := c.Validate(); err != nil {
		return "", err
	}
	var b strings.Builder
	if d.version == 2 {
		b.WriteString("OPENQASM 2.0;\ninclude \"qelib1.inc\";\n")
	} else {
		b.WriteString("OPENQASM 3.0;\ninclude \"stdgates.inc\";\n")
	}

	symbols, err := collectSymbols(c, d)
	if err != nil {
		return "", err
	}
	for _, s := range symbols {
		fmt.Fprintf(&b, "input float[64] %s;\n", s)
	}

	defs, err := gateDefinitions(c, d)
	if err != nil {
		return "", err
	}
	for _, def := range defs {
		b.WriteString(def)
	}

	for _, r := range c.QRegs {
		if d.version == 2 {
			fmt.Fprintf(&b, "qreg %s[%d];\n", r.Name, r.Size)
		} else {
			fmt.Fprintf(&b, "qubit[%d] %s;\n", r.Size, r.Name)
		}
	}
	for _, r := range c.CRegs {
		if d.version == 2 {
			fmt.Fprintf(&b, "creg %s[%d];\n", r.Name, r.Size)
		} else {
			fmt.Fprintf(&b, "bit[%d] %s;\n", r.Size, r.Name)
		}
	}

	for i, op := range c.Ops {
		line, err := emitOp(c, op, d)
		if err != nil {
			return "", fmt.Errorf("operation %d (%s): %w", i, op.Name, err)
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String(), nil
}

func collectSymbols(c *circuit.Circuit, d dialect) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	for _, op := range c.Ops {
		for _, p := range op.Params {
			if !p.IsSymbolic() || seen[p.Symbol] {
				continue
			}
			if d.version == 2 {
				return nil, fmt.Errorf("OpenQASM 2 cannot express unbound parameter %q", p.Symbol)
			}
			seen[p.Symbol] = true
			out = append(out, p.Symbol)
		}
	}
	sort.Strings(out)
	return out, nil
}

// gateDefinitions emits definitions for used gates missing from the
// standard library, dependencies first.
func gateDefinitions(c *circuit.Circuit, d dialect) ([]string, error) {
	var out []string
	done := make(map[string]bool)
	var visit func(name string) error
	visit = func(name string) error {
		if _, std := d.lib[name]; std || done[name] {
			return nil
		}
		done[name] = true
		rule, ok := circuit.Definition(name)
		if !ok {
			return fmt.Errorf("gate %s has no OpenQASM %d definition", name, d.version)
		}
		for _, dep := range rule.Uses() {
			if err := visit(dep); err != nil {
				return err
			}
		}
		out = append(out, formatDefinition(rule, d))
		return nil
	}
	for _, name := range c.GateNames() {
		switch name {
		case circuit.Measure, circuit.Barrier, circuit.Reset:
			continue
		}
		if err := visit(name); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func formatDefinition(r circuit.Rule, d dialect) string {
	def, _ := circuit.Lookup(r.Gate)
	args := make([]string, def.NumQubits)
	for i := range args {
		args[i] = string(rune('a' + i))
	}
	var b strings.Builder
	b.WriteString("gate " + r.Gate)
	if len(r.Params) > 0 {
		b.WriteString("(" + strings.Join(r.Params, ",") + ")")
	}
	b.WriteString(" " + strings.Join(args, ",") + " {")
	for _, op := range r.Body {
		b.WriteString(" " + gateName(op.Name, d))
		if len(op.Angles) > 0 {
			as := make([]string, len(op.Angles))
			for i, a := range op.Angles {
				as[i] = a.Format(r.Params)
			}
			b.WriteString("(" + strings.Join(as, ",") + ")")
		}
		qs := make([]string, len(op.Qubits))
		for i, q := range op.Qubits {
			qs[i] = args[q]
		}
		b.WriteString(" " + strings.Join(qs, ",") + ";")
	}
	b.WriteString(" }\n")
	return b.String()
}

func gateName(name string, d dialect) string {
	if n, ok := d.lib[name]; ok {
		return n
	}
	return name
}

func emitOp(c *circuit.Circuit, op circuit.Operation, d dialect) (string, error) {
	qs, err := refs(c.QRegs, op.Qubits)
	if err != nil {
		return "", err
	}
	var stmt string
	switch op.Name {
	case circuit.Measure:
		cs, err := refs(c.CRegs, op.Clbits)
		if err != nil {
			return "", err
		}
		parts := make([]string, len(qs))
		for i := range qs {
			if d.version == 2 {
				parts[i] = fmt.Sprintf("measure %s -> %s;", qs[i], cs[i])
			} else {
				parts[i] = fmt.Sprintf("%s = measure %s;", cs[i], qs[i])
			}
		}
		stmt = strings.Join(parts, "\n")
	case circuit.Barrier:
		stmt = "barrier " + strings.Join(qs, ",") + ";"
	case circuit.Reset:
		stmt = "reset " + strings.Join(qs, ",") + ";"
	default:
		stmt = gateName(op.Name, d)
		if len(op.Params) > 0 {
			ps := make([]string, len(op.Params))
			for i, p := range op.Params {
				ps[i] = p.String()
			}
			stmt += "(" + strings.Join(ps, ",") + ")"
		}
		stmt += " " + strings.Join(qs, ",") + ";"
	}
	if op.Condition == nil {
		return stmt, nil
	}
	if op.IsStructural() || op.Name == circuit.Reset {
		return "", fmt.Errorf("conditional %s cannot be emitted", op.Name)
	}
	cond, err := formatCondition(c, op.Condition, d)
	if err != nil {
		return "", err
	}
	return cond + " " + stmt, nil
}

func formatCondition(c *circuit.Circuit, cond *circuit.Condition, d dialect) (string, error) {
	reg, _, ok := c.CReg(cond.Register)
	if !ok {
		return "", fmt.Errorf("condition on unknown register %q", cond.Register)
	}
	if cond.Bit < 0 {
		if d.version == 2 {
			return fmt.Sprintf("if(%s==%d)", cond.Register, cond.Value), nil
		}
		return fmt.Sprintf("if (%s == %d)", cond.Register, cond.Value), nil
	}
	if d.version == 2 {
		if reg.Size != 1 {
			return "", fmt.Errorf("OpenQASM 2 cannot condition on single bit %s[%d]", cond.Register, cond.Bit)
		}
		return fmt.Sprintf("if(%s==%d)", cond.Register, cond.Value), nil
	}
	return fmt.Sprintf("if (%s[%d] == %d)", cond.Register, cond.Bit, cond.Value), nil
}

func refs(regs []circuit.Register, idx []int) ([]string, error) {
	out := make([]string, len(idx))
	for i, flat := range idx {
		name, pos, ok := circuit.Locate(regs, flat)
		if !ok {
			return nil, fmt.Errorf("index %d outside registers", flat)
		}
		out[i] = fmt.Sprintf("%s[%d]", name, pos)
	}
	return out, nil
}
