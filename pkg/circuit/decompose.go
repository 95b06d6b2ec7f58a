package circuit

import (
	"fmt"
	"math"
	"sort"
	"strconv"
)

// Angle is an affine expression Scale*param[Index] + Offset used by
// decomposition rules. Index < 0 means the angle is the constant Offset.
type Angle struct {
	Index  int
	Scale  float64
	Offset float64
}

// Const returns a constant angle.
func Const(v float64) Angle {
	return Angle{Index: -1, Offset: v}
}

// Arg returns scale times the i-th gate parameter.
func Arg(i int, scale float64) Angle {
	return Angle{Index: i, Scale: scale}
}

// Bind evaluates the angle against concrete gate parameters. Symbolic
// parameters only bind when passed through unscaled.
func (a Angle) Bind(params []Param) (Param, error) {
	if a.Index < 0 {
		return Num(a.Offset), nil
	}
	if a.Index >= len(params) {
		return Param{}, fmt.Errorf("angle refers to parameter %d of %d", a.Index, len(params))
	}
	p := params[a.Index]
	if p.IsSymbolic() {
		if a.Scale == 1 && a.Offset == 0 {
			return p, nil
		}
		return Param{}, fmt.Errorf("cannot scale unbound parameter %q", p.Symbol)
	}
	return Num(a.Scale*p.Value + a.Offset), nil
}

// Format renders the angle with the given parameter names.
func (a Angle) Format(names []string) string {
	if a.Index < 0 {
		return FormatAngle(a.Offset)
	}
	name := names[a.Index]
	var s string
	switch a.Scale {
	case 1:
		s = name
	case -1:
		s = "-" + name
	default:
		inv := 1 / a.Scale
		if math.Abs(inv-math.Round(inv)) < 1e-12 {
			r := int(math.Round(inv))
			if r < 0 {
				s = "-" + name + "/" + strconv.Itoa(-r)
			} else {
				s = name + "/" + strconv.Itoa(r)
			}
		} else {
			s = strconv.FormatFloat(a.Scale, 'g', -1, 64) + "*" + name
		}
	}
	if a.Offset != 0 {
		off := FormatAngle(a.Offset)
		if a.Offset < 0 {
			s += off
		} else {
			s += "+" + off
		}
	}
	return s
}

// RuleOp is one operation of a decomposition body. Qubits index into the
// decomposed gate's qubit list.
type RuleOp struct {
	Name   string
	Qubits []int
	Angles []Angle
}

// Rule rewrites a gate into an equivalent sequence of other gates, exact
// up to global phase.
type Rule struct {
	Gate   string
	Params []string
	Body   []RuleOp
}

// Uses returns the distinct gate names in the rule body.
func (r Rule) Uses() []string {
	seen := make(map[string]bool)
	var out []string
	for _, op := range r.Body {
		if !seen[op.Name] {
			seen[op.Name] = true
			out = append(out, op.Name)
		}
	}
	sort.Strings(out)
	return out
}

// Expand applies the rule to a concrete operation. The condition of op is
// copied onto every produced operation.
func (r Rule) Expand(op Operation) ([]Operation, error) {
	out := make([]Operation, 0, len(r.Body))
	for _, b := range r.Body {
		n := Operation{Name: b.Name, Qubits: make([]int, len(b.Qubits))}
		for i, q := range b.Qubits {
			n.Qubits[i] = op.Qubits[q]
		}
		for _, a := range b.Angles {
			p, err := a.Bind(op.Params)
			if err != nil {
				return nil, fmt.Errorf("expanding %s: %w", op.Name, err)
			}
			n.Params = append(n.Params, p)
		}
		if op.Condition != nil {
			cond := *op.Condition
			n.Condition = &cond
		}
		out = append(out, n)
	}
	return out, nil
}

func gateOp(name string, qubits ...int) RuleOp {
	return RuleOp{Name: name, Qubits: qubits}
}

func rotOp(name string, a Angle, qubits ...int) RuleOp {
	return RuleOp{Name: name, Qubits: qubits, Angles: []Angle{a}}
}

var thetaParams = []string{"theta"}

// rules lists decompositions keyed by gate name. The first rule of each
// entry is the canonical definition used by text emitters.
var rules = map[string][]Rule{
	"ccx": {{Gate: "ccx", Body: []RuleOp{
		gateOp("h", 2), gateOp("cx", 1, 2), gateOp("tdg", 2), gateOp("cx", 0, 2), gateOp("t", 2),
		gateOp("cx", 1, 2), gateOp("tdg", 2), gateOp("cx", 0, 2), gateOp("t", 1), gateOp("t", 2),
		gateOp("h", 2), gateOp("cx", 0, 1), gateOp("t", 0), gateOp("tdg", 1), gateOp("cx", 0, 1),
	}}},
	"cswap": {{Gate: "cswap", Body: []RuleOp{gateOp("cx", 2, 1), gateOp("ccx", 0, 1, 2), gateOp("cx", 2, 1)}}},
	"swap":  {{Gate: "swap", Body: []RuleOp{gateOp("cx", 0, 1), gateOp("cx", 1, 0), gateOp("cx", 0, 1)}}},
	"cz":    {{Gate: "cz", Body: []RuleOp{gateOp("h", 1), gateOp("cx", 0, 1), gateOp("h", 1)}}},
	"cx": {
		{Gate: "cx", Body: []RuleOp{gateOp("h", 1), gateOp("cz", 0, 1), gateOp("h", 1)}},
		{Gate: "cx", Body: []RuleOp{
			rotOp("ry", Const(math.Pi/2), 0), rotOp("rxx", Const(math.Pi/2), 0, 1),
			rotOp("rx", Const(-math.Pi/2), 0), rotOp("rx", Const(-math.Pi/2), 1), rotOp("ry", Const(-math.Pi/2), 0),
		}},
	},
	"cy":    {{Gate: "cy", Body: []RuleOp{gateOp("sdg", 1), gateOp("cx", 0, 1), gateOp("s", 1)}}},
	"ch": {{Gate: "ch", Body: []RuleOp{
		gateOp("s", 1), gateOp("h", 1), gateOp("t", 1), gateOp("cx", 0, 1), gateOp("tdg", 1), gateOp("h", 1), gateOp("sdg", 1),
	}}},
	"iswap": {{Gate: "iswap", Body: []RuleOp{
		gateOp("s", 0), gateOp("s", 1), gateOp("h", 0), gateOp("cx", 0, 1), gateOp("cx", 1, 0), gateOp("h", 1),
	}}},
	"crz": {{Gate: "crz", Params: thetaParams, Body: []RuleOp{
		rotOp("rz", Arg(0, 0.5), 1), gateOp("cx", 0, 1), rotOp("rz", Arg(0, -0.5), 1), gateOp("cx", 0, 1),
	}}},
	"cry": {{Gate: "cry", Params: thetaParams, Body: []RuleOp{
		rotOp("ry", Arg(0, 0.5), 1), gateOp("cx", 0, 1), rotOp("ry", Arg(0, -0.5), 1), gateOp("cx", 0, 1),
	}}},
	"crx": {{Gate: "crx", Params: thetaParams, Body: []RuleOp{
		gateOp("h", 1), rotOp("crz", Arg(0, 1), 0, 1), gateOp("h", 1),
	}}},
	"cp": {{Gate: "cp", Params: []string{"lambda"}, Body: []RuleOp{
		rotOp("p", Arg(0, 0.5), 0), gateOp("cx", 0, 1), rotOp("p", Arg(0, -0.5), 1), gateOp("cx", 0, 1), rotOp("p", Arg(0, 0.5), 1),
	}}},
	"rzz": {{Gate: "rzz", Params: thetaParams, Body: []RuleOp{
		gateOp("cx", 0, 1), rotOp("rz", Arg(0, 1), 1), gateOp("cx", 0, 1),
	}}},
	"rxx": {{Gate: "rxx", Params: thetaParams, Body: []RuleOp{
		gateOp("h", 0), gateOp("h", 1), rotOp("rzz", Arg(0, 1), 0, 1), gateOp("h", 0), gateOp("h", 1),
	}}},
	"ryy": {{Gate: "ryy", Params: thetaParams, Body: []RuleOp{
		rotOp("rx", Const(math.Pi/2), 0), rotOp("rx", Const(math.Pi/2), 1), rotOp("rzz", Arg(0, 1), 0, 1),
		rotOp("rx", Const(-math.Pi/2), 0), rotOp("rx", Const(-math.Pi/2), 1),
	}}},

	// Single-qubit identities for gate sets without a continuous rotation pair.
	"x": {
		{Gate: "x", Body: []RuleOp{gateOp("h", 0), gateOp("z", 0), gateOp("h", 0)}},
		{Gate: "x", Body: []RuleOp{gateOp("sx", 0), gateOp("sx", 0)}},
		{Gate: "x", Body: []RuleOp{rotOp("rx", Const(math.Pi), 0)}},
	},
	"y": {
		{Gate: "y", Body: []RuleOp{gateOp("z", 0), gateOp("x", 0)}},
		{Gate: "y", Body: []RuleOp{rotOp("ry", Const(math.Pi), 0)}},
	},
	"z": {
		{Gate: "z", Body: []RuleOp{gateOp("s", 0), gateOp("s", 0)}},
		{Gate: "z", Body: []RuleOp{rotOp("p", Const(math.Pi), 0)}},
		{Gate: "z", Body: []RuleOp{rotOp("rz", Const(math.Pi), 0)}},
	},
	"s": {
		{Gate: "s", Body: []RuleOp{gateOp("t", 0), gateOp("t", 0)}},
		{Gate: "s", Body: []RuleOp{rotOp("p", Const(math.Pi/2), 0)}},
		{Gate: "s", Body: []RuleOp{rotOp("rz", Const(math.Pi/2), 0)}},
	},
	"sdg": {
		{Gate: "sdg", Body: []RuleOp{gateOp("tdg", 0), gateOp("tdg", 0)}},
		{Gate: "sdg", Body: []RuleOp{gateOp("s", 0), gateOp("s", 0), gateOp("s", 0)}},
		{Gate: "sdg", Body: []RuleOp{rotOp("p", Const(-math.Pi/2), 0)}},
		{Gate: "sdg", Body: []RuleOp{rotOp("rz", Const(-math.Pi/2), 0)}},
	},
	"t": {
		{Gate: "t", Body: []RuleOp{rotOp("p", Const(math.Pi/4), 0)}},
		{Gate: "t", Body: []RuleOp{rotOp("rz", Const(math.Pi/4), 0)}},
	},
	"tdg": {
		{Gate: "tdg", Body: []RuleOp{rotOp("p", Const(-math.Pi/4), 0)}},
		{Gate: "tdg", Body: []RuleOp{rotOp("rz", Const(-math.Pi/4), 0)}},
		{Gate: "tdg", Body: []RuleOp{gateOp("t", 0), gateOp("t", 0), gateOp("t", 0), gateOp("t", 0), gateOp("t", 0), gateOp("t", 0), gateOp("t", 0)}},
	},
	"h": {
		{Gate: "h", Body: []RuleOp{gateOp("s", 0), gateOp("sx", 0), gateOp("s", 0)}},
		{Gate: "h", Body: []RuleOp{rotOp("rz", Const(math.Pi/2), 0), gateOp("sx", 0), rotOp("rz", Const(math.Pi/2), 0)}},
	},
	"sx": {
		{Gate: "sx", Body: []RuleOp{gateOp("sdg", 0), gateOp("h", 0), gateOp("sdg", 0)}},
		{Gate: "sx", Body: []RuleOp{rotOp("rx", Const(math.Pi/2), 0)}},
	},
	"sxdg": {
		{Gate: "sxdg", Body: []RuleOp{gateOp("s", 0), gateOp("h", 0), gateOp("s", 0)}},
		{Gate: "sxdg", Body: []RuleOp{rotOp("rx", Const(-math.Pi/2), 0)}},
	},
	"rx": {
		{Gate: "rx", Params: thetaParams, Body: []RuleOp{
			rotOp("rz", Const(math.Pi/2), 0), rotOp("ry", Arg(0, 1), 0), rotOp("rz", Const(-math.Pi/2), 0),
		}},
	},
	"p":  {{Gate: "p", Params: []string{"lambda"}, Body: []RuleOp{rotOp("rz", Arg(0, 1), 0)}}},
	"rz": {{Gate: "rz", Params: []string{"phi"}, Body: []RuleOp{rotOp("p", Arg(0, 1), 0)}}},
	"u": {{Gate: "u", Params: []string{"theta", "phi", "lambda"}, Body: []RuleOp{
		rotOp("rz", Arg(2, 1), 0), rotOp("ry", Arg(0, 1), 0), rotOp("rz", Arg(1, 1), 0),
	}}},
	"id": {{Gate: "id"}},
}

// Rules returns the decompositions known for a gate, canonical first.
func Rules(name string) []Rule {
	return rules[Canonical(name)]
}

// Definition returns the canonical decomposition of a gate.
func Definition(name string) (Rule, bool) {
	rs := rules[Canonical(name)]
	if len(rs) == 0 {
		return Rule{}, false
	}
	return rs[0], true
}

// maxLowerDepth bounds recursive rule expansion.
const maxLowerDepth = 8

// Lower rewrites every gate outside supported using the decomposition
// rules, trying rules in order until one lowers completely. Structural
// operations and resets pass through unchanged. It fails with the first
// gate that no rule sequence can express.
func Lower(c *Circuit, supported GateSet) (*Circuit, error) {
	out := c.Copy()
	out.Ops = out.Ops[:0]
	for _, op := range c.Ops {
		ops, err := LowerOp(op, supported)
		if err != nil {
			return nil, err
		}
		out.Ops = append(out.Ops, ops...)
	}
	return out, nil
}

// LowerOp rewrites a single operation into supported gates.
func LowerOp(op Operation, supported GateSet) ([]Operation, error) {
	ops, ok := lowerOp(op, supported, maxLowerDepth, map[string]bool{})
	if !ok {
		return nil, fmt.Errorf("gate %s cannot be expressed with %s", op.Name, supported)
	}
	return ops, nil
}

func lowerOp(op Operation, supported GateSet, depth int, active map[string]bool) ([]Operation, bool) {
	switch op.Name {
	case Measure, Barrier, Reset:
		return []Operation{op.clone()}, true
	}
	if supported.Has(op.Name) {
		return []Operation{op.clone()}, true
	}
	if depth == 0 || active[op.Name] {
		return nil, false
	}
	active[op.Name] = true
	defer delete(active, op.Name)

	for _, rule := range Rules(op.Name) {
		body, err := rule.Expand(op)
		if err != nil {
			continue
		}
		var out []Operation
		ok := true
		for _, b := range body {
			sub, subOK := lowerOp(b, supported, depth-1, active)
			if !subOK {
				ok = false
				break
			}
			out = append(out, sub...)
		}
		if ok {
			return out, true
		}
	}
	return nil, false
}
