// Package qasm reads and writes OpenQASM 2 and OpenQASM 3 programs as
// circuit.Circuit values.
//
// The parser covers the gate-level subset used to exchange circuits between
// toolkits: register declarations, standard library gates, user gate
// definitions (expanded inline), measurement, reset, barrier, classically
// controlled gates and, for OpenQASM 3, input parameters. Loops, subroutines
// and gate modifiers are rejected.
package qasm

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/qbraid/qbraid-go/pkg/circuit"
)

// QASM2 is an OpenQASM 2.0 program.
type QASM2 string

// QASM3 is an OpenQASM 3 program.
type QASM3 string

var (
	headerRegex  = regexp.MustCompile(`^OPENQASM\s+(\d+)(?:\.(\d+))?$`)
	includeRegex = regexp.MustCompile(`^include\s+"([^"]+)"$`)
	qregRegex    = regexp.MustCompile(`^qreg\s+(\w+)\s*\[\s*(\d+)\s*\]$`)
	cregRegex    = regexp.MustCompile(`^creg\s+(\w+)\s*\[\s*(\d+)\s*\]$`)
	qubitRegex   = regexp.MustCompile(`^qubit(?:\s*\[\s*(\d+)\s*\])?\s+(\w+)$`)
	bitRegex     = regexp.MustCompile(`^bit(?:\s*\[\s*(\d+)\s*\])?\s+(\w+)$`)
	inputRegex   = regexp.MustCompile(`^input\s+(?:float|angle)(?:\s*\[\s*\d+\s*\])?\s+(\w+)$`)
	gateRegex    = regexp.MustCompile(`(?s)^gate\s+(\w+)\s*(?:\(([^)]*)\))?\s*([^{]*)\{(.*)\}$`)
	measureRegex = regexp.MustCompile(`^measure\s+(.+?)\s*->\s*(.+)$`)
	assignRegex  = regexp.MustCompile(`^(.+?)\s*=\s*measure\s+(.+)$`)
	ifRegex      = regexp.MustCompile(`(?s)^if\s*\(\s*(\w+)\s*(?:\[\s*(\d+)\s*\])?\s*(?:==\s*(\w+)\s*)?\)\s*(.+)$`)
	argRegex     = regexp.MustCompile(`^(\w+)\s*(?:\[\s*(\d+)\s*\])?$`)
)

// DetectVersion returns the major OpenQASM version declared by the header.
func DetectVersion(src string) (int, error) {
	for _, stmt := range splitStatements(stripComments(src)) {
		m := headerRegex.FindStringSubmatch(stmt)
		if m == nil {
			return 0, fmt.Errorf("missing OPENQASM header")
		}
		v, err := strconv.Atoi(m[1])
		if err != nil || (v != 2 && v != 3) {
			return 0, fmt.Errorf("unsupported OpenQASM version %s", m[1])
		}
		return v, nil
	}
	return 0, fmt.Errorf("empty program")
}

// ParseQASM2 parses an OpenQASM 2 program.
func ParseQASM2(src QASM2) (*circuit.Circuit, error) {
	return parseVersion(string(src), 2)
}

// ParseQASM3 parses an OpenQASM 3 program.
func ParseQASM3(src QASM3) (*circuit.Circuit, error) {
	return parseVersion(string(src), 3)
}

// Parse parses an OpenQASM 2 or 3 program, detecting the version from the
// header.
func Parse(src string) (*circuit.Circuit, error) {
	v, err := DetectVersion(src)
	if err != nil {
		return nil, err
	}
	return parseVersion(src, v)
}

func parseVersion(src string, want int) (*circuit.Circuit, error) {
	v, err := DetectVersion(src)
	if err != nil {
		return nil, err
	}
	if v != want {
		return nil, fmt.Errorf("expected OpenQASM %d program, found version %d", want, v)
	}
	p := &parser{
		version: v,
		c:       &circuit.Circuit{},
		qregs:   make(map[string]span),
		cregs:   make(map[string]span),
		gates:   make(map[string]*gateDef),
		symbols: make(map[string]circuit.Param),
	}
	stmts := splitStatements(stripComments(src))
	for i, stmt := range stmts[1:] {
		if err := p.statement(stmt); err != nil {
			return nil, fmt.Errorf("statement %d (%s): %w", i+2, abbreviate(stmt), err)
		}
	}
	if err := p.c.Validate(); err != nil {
		return nil, err
	}
	return p.c, nil
}

type span struct {
	offset int
	size   int
}

type gateDef struct {
	name   string
	params []string
	qubits []string
	body   []string
}

type parser struct {
	version int
	c       *circuit.Circuit
	qregs   map[string]span
	cregs   map[string]span
	gates   map[string]*gateDef
	symbols map[string]circuit.Param
}

func (p *parser) statement(stmt string) error {
	switch keyword(stmt) {
	case "OPENQASM":
		return fmt.Errorf("duplicate header")
	case "include":
		m := includeRegex.FindStringSubmatch(stmt)
		if m == nil {
			return fmt.Errorf("malformed include")
		}
		switch m[1] {
		case "qelib1.inc", "stdgates.inc":
			return nil
		}
		return fmt.Errorf("include %q is not supported", m[1])
	case "qreg":
		m := qregRegex.FindStringSubmatch(stmt)
		if m == nil {
			return fmt.Errorf("malformed qreg")
		}
		n, err := registerSize(m[2])
		if err != nil {
			return err
		}
		return p.declareQubits(m[1], n)
	case "creg":
		m := cregRegex.FindStringSubmatch(stmt)
		if m == nil {
			return fmt.Errorf("malformed creg")
		}
		n, err := registerSize(m[2])
		if err != nil {
			return err
		}
		return p.declareClbits(m[1], n)
	case "qubit":
		m := qubitRegex.FindStringSubmatch(stmt)
		if m == nil {
			return fmt.Errorf("malformed qubit declaration")
		}
		n, err := sizeOrOne(m[1])
		if err != nil {
			return err
		}
		return p.declareQubits(m[2], n)
	case "bit":
		m := bitRegex.FindStringSubmatch(stmt)
		if m == nil {
			return fmt.Errorf("malformed bit declaration")
		}
		n, err := sizeOrOne(m[1])
		if err != nil {
			return err
		}
		return p.declareClbits(m[2], n)
	case "input":
		m := inputRegex.FindStringSubmatch(stmt)
		if m == nil {
			return fmt.Errorf("only float and angle inputs are supported")
		}
		p.symbols[m[1]] = circuit.Sym(m[1])
		return nil
	case "gate":
		return p.defineGate(stmt)
	case "opaque":
		return fmt.Errorf("opaque gates are not supported")
	case "measure":
		m := measureRegex.FindStringSubmatch(stmt)
		if m == nil {
			return fmt.Errorf("malformed measure")
		}
		return p.measure(m[1], m[2])
	case "reset":
		qs, err := p.qubitArgs(strings.TrimSpace(strings.TrimPrefix(stmt, "reset")))
		if err != nil {
			return err
		}
		for _, q := range qs {
			p.c.Ops = append(p.c.Ops, circuit.Operation{Name: circuit.Reset, Qubits: []int{q}})
		}
		return nil
	case "barrier":
		rest := strings.TrimSpace(strings.TrimPrefix(stmt, "barrier"))
		var qs []int
		if rest != "" {
			var err error
			if qs, err = p.qubitArgs(rest); err != nil {
				return err
			}
		}
		p.c.BarrierOn(qs...)
		return nil
	case "if":
		return p.conditional(stmt)
	case "for", "while", "def", "defcal", "cal", "box", "switch", "extern", "let", "const":
		return fmt.Errorf("%s statements are not supported", keyword(stmt))
	}
	if m := assignRegex.FindStringSubmatch(stmt); m != nil && p.version == 3 {
		return p.measure(m[2], m[1])
	}
	if strings.Contains(stmt, "@") {
		return fmt.Errorf("gate modifiers are not supported")
	}
	return p.call(stmt, nil, nil)
}

func (p *parser) declareQubits(name string, n int) error {
	if _, dup := p.qregs[name]; dup {
		return fmt.Errorf("register %q redeclared", name)
	}
	if err := circuit.CheckWidth(p.c.NumQubits(), n); err != nil {
		return fmt.Errorf("qubit register %q: %w", name, err)
	}
	p.qregs[name] = span{offset: p.c.NumQubits(), size: n}
	p.c.QRegs = append(p.c.QRegs, circuit.Register{Name: name, Size: n})
	return nil
}

func (p *parser) declareClbits(name string, n int) error {
	if _, dup := p.cregs[name]; dup {
		return fmt.Errorf("register %q redeclared", name)
	}
	if err := circuit.CheckWidth(p.c.NumClbits(), n); err != nil {
		return fmt.Errorf("bit register %q: %w", name, err)
	}
	p.cregs[name] = span{offset: p.c.NumClbits(), size: n}
	p.c.CRegs = append(p.c.CRegs, circuit.Register{Name: name, Size: n})
	return nil
}

func (p *parser) defineGate(stmt string) error {
	m := gateRegex.FindStringSubmatch(stmt)
	if m == nil {
		return fmt.Errorf("malformed gate definition")
	}
	def := &gateDef{
		name:   m[1],
		params: splitList(m[2]),
		qubits: splitList(m[3]),
		body:   splitStatements(m[4]),
	}
	if len(def.qubits) == 0 {
		return fmt.Errorf("gate %s has no qubit arguments", def.name)
	}
	p.gates[def.name] = def
	return nil
}

func (p *parser) measure(src, dst string) error {
	qs, err := p.qubitArgs(src)
	if err != nil {
		return err
	}
	cs, err := p.clbitArgs(dst)
	if err != nil {
		return err
	}
	if len(qs) != len(cs) {
		return fmt.Errorf("measure size mismatch: %d qubits into %d bits", len(qs), len(cs))
	}
	for i := range qs {
		p.c.MeasureQubit(qs[i], cs[i])
	}
	return nil
}

func (p *parser) conditional(stmt string) error {
	m := ifRegex.FindStringSubmatch(stmt)
	if m == nil {
		return fmt.Errorf("malformed if")
	}
	reg, ok := p.cregs[m[1]]
	if !ok {
		return fmt.Errorf("unknown classical register %q", m[1])
	}
	cond := &circuit.Condition{Register: m[1], Bit: -1, Value: 1}
	if m[2] != "" {
		bit, err := strconv.Atoi(m[2])
		if err != nil || bit >= reg.size {
			return fmt.Errorf("bit %s[%s] out of range", m[1], m[2])
		}
		cond.Bit = bit
	} else if p.version == 2 && m[3] == "" {
		return fmt.Errorf("condition must compare a register")
	}
	switch m[3] {
	case "", "true":
	case "false":
		cond.Value = 0
	default:
		v, err := strconv.Atoi(m[3])
		if err != nil {
			return fmt.Errorf("condition value %q: %w", m[3], err)
		}
		cond.Value = v
	}
	if p.version == 2 && cond.Bit >= 0 {
		return fmt.Errorf("OpenQASM 2 conditions compare whole registers")
	}

	body := strings.TrimSpace(m[4])
	var stmts []string
	if strings.HasPrefix(body, "{") && strings.HasSuffix(body, "}") {
		stmts = splitStatements(body[1 : len(body)-1])
	} else {
		stmts = []string{strings.TrimSuffix(body, ";")}
	}
	for _, s := range stmts {
		switch keyword(s) {
		case "measure", "reset", "barrier", "if":
			return fmt.Errorf("conditional %s is not supported", keyword(s))
		}
		if err := p.call(s, nil, cond); err != nil {
			return err
		}
	}
	return nil
}

// call applies a gate invocation. locals maps gate-definition qubit names to
// circuit qubits when expanding a user gate body.
func (p *parser) call(stmt string, locals *frame, cond *circuit.Condition) error {
	name, paramSrc, argSrc, err := splitCall(stmt)
	if err != nil {
		return err
	}
	var sc *scope
	if locals != nil {
		sc = locals.scope
	} else {
		sc = &scope{symbols: p.symbols}
	}
	params := make([]circuit.Param, 0, len(paramSrc))
	for _, e := range paramSrc {
		v, err := evalParam(e, sc)
		if err != nil {
			return err
		}
		params = append(params, v)
	}

	var args [][]int
	for _, a := range splitList(argSrc) {
		var qs []int
		if locals != nil {
			q, ok := locals.qubits[a]
			if !ok {
				return fmt.Errorf("unknown qubit argument %q in gate body", a)
			}
			qs = []int{q}
		} else {
			qs, err = p.qubitArgs(a)
			if err != nil {
				return err
			}
		}
		args = append(args, qs)
	}
	if len(args) == 0 {
		return fmt.Errorf("gate %s has no qubit arguments", name)
	}
	width := 1
	for _, a := range args {
		if len(a) > 1 {
			if width > 1 && len(a) != width {
				return fmt.Errorf("gate %s: register size mismatch in broadcast", name)
			}
			width = len(a)
		}
	}
	for i := 0; i < width; i++ {
		qubits := make([]int, len(args))
		for j, a := range args {
			if len(a) == 1 {
				qubits[j] = a[0]
			} else {
				qubits[j] = a[i]
			}
		}
		if err := p.apply(name, params, qubits, cond); err != nil {
			return err
		}
	}
	return nil
}

type frame struct {
	scope  *scope
	qubits map[string]int
}

func (p *parser) apply(name string, params []circuit.Param, qubits []int, cond *circuit.Condition) error {
	canon := circuit.Canonical(name)
	switch canon {
	case "u2":
		if len(params) != 2 {
			return fmt.Errorf("u2 expects 2 parameters, got %d", len(params))
		}
		canon, params = "u", []circuit.Param{circuit.Num(math.Pi / 2), params[0], params[1]}
	case "u0":
		canon, params = "id", nil
	}
	if def, ok := circuit.Lookup(canon); ok {
		if len(params) != def.NumParams {
			return fmt.Errorf("gate %s expects %d parameters, got %d", name, def.NumParams, len(params))
		}
		if len(qubits) != def.NumQubits {
			return fmt.Errorf("gate %s expects %d qubits, got %d", name, def.NumQubits, len(qubits))
		}
		op := circuit.Operation{Name: canon, Params: params, Qubits: qubits}
		if cond != nil {
			c := *cond
			op.Condition = &c
		}
		p.c.Ops = append(p.c.Ops, op)
		return nil
	}

	def, ok := p.gates[name]
	if !ok {
		return fmt.Errorf("unknown gate %q", name)
	}
	if len(params) != len(def.params) || len(qubits) != len(def.qubits) {
		return fmt.Errorf("gate %s expects %d parameters and %d qubits", name, len(def.params), len(def.qubits))
	}
	fr := &frame{
		scope:  &scope{values: map[string]float64{}, symbols: map[string]circuit.Param{}},
		qubits: make(map[string]int, len(qubits)),
	}
	for i, n := range def.params {
		if params[i].IsSymbolic() {
			fr.scope.symbols[n] = params[i]
		} else {
			fr.scope.values[n] = params[i].Value
		}
	}
	for i, n := range def.qubits {
		fr.qubits[n] = qubits[i]
	}
	for _, s := range def.body {
		if keyword(s) == "barrier" {
			continue
		}
		if err := p.call(s, fr, cond); err != nil {
			return fmt.Errorf("in gate %s: %w", name, err)
		}
	}
	return nil
}

func (p *parser) qubitArgs(src string) ([]int, error) {
	var out []int
	for _, a := range splitList(src) {
		qs, err := resolveArg(a, p.qregs, "qubit")
		if err != nil {
			return nil, err
		}
		out = append(out, qs...)
	}
	return out, nil
}

func (p *parser) clbitArgs(src string) ([]int, error) {
	var out []int
	for _, a := range splitList(src) {
		cs, err := resolveArg(a, p.cregs, "bit")
		if err != nil {
			return nil, err
		}
		out = append(out, cs...)
	}
	return out, nil
}

func resolveArg(src string, regs map[string]span, kind string) ([]int, error) {
	m := argRegex.FindStringSubmatch(strings.TrimSpace(src))
	if m == nil {
		return nil, fmt.Errorf("malformed %s argument %q", kind, src)
	}
	reg, ok := regs[m[1]]
	if !ok {
		return nil, fmt.Errorf("unknown %s register %q", kind, m[1])
	}
	if m[2] == "" {
		out := make([]int, reg.size)
		for i := range out {
			out[i] = reg.offset + i
		}
		return out, nil
	}
	idx, err := strconv.Atoi(m[2])
	if err != nil || idx >= reg.size {
		return nil, fmt.Errorf("%s %s[%s] out of range", kind, m[1], m[2])
	}
	return []int{reg.offset + idx}, nil
}

// splitCall separates "name(params) args" into its parts.
func splitCall(stmt string) (string, []string, string, error) {
	stmt = strings.TrimSpace(stmt)
	i := 0
	for i < len(stmt) && (isIdent(stmt[i])) {
		i++
	}
	if i == 0 {
		return "", nil, "", fmt.Errorf("expected gate name")
	}
	name := stmt[:i]
	rest := strings.TrimSpace(stmt[i:])
	var params []string
	if strings.HasPrefix(rest, "(") {
		depth := 0
		end := -1
		for j, r := range rest {
			if r == '(' {
				depth++
			} else if r == ')' {
				depth--
				if depth == 0 {
					end = j
					break
				}
			}
		}
		if end < 0 {
			return "", nil, "", fmt.Errorf("unbalanced parentheses")
		}
		params = splitList(rest[1:end])
		rest = strings.TrimSpace(rest[end+1:])
	}
	return name, params, rest, nil
}

func isIdent(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

// splitList splits on top-level commas.
func splitList(src string) []string {
	var out []string
	depth := 0
	start := 0
	for i, r := range src {
		switch r {
		case '(', '[':
			depth++
		case ')', ']':
			depth--
		case ',':
			if depth == 0 {
				if s := strings.TrimSpace(src[start:i]); s != "" {
					out = append(out, s)
				}
				start = i + 1
			}
		}
	}
	if s := strings.TrimSpace(src[start:]); s != "" {
		out = append(out, s)
	}
	return out
}

// splitStatements splits source into statements on ';', keeping braced
// blocks (gate bodies, if blocks) intact.
func splitStatements(src string) []string {
	var out []string
	depth := 0
	start := 0
	emit := func(end int) {
		if s := strings.TrimSpace(src[start:end]); s != "" {
			out = append(out, s)
		}
		start = end + 1
	}
	for i, r := range src {
		switch r {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				emit(i + 1)
				start = i + 1
			}
		case ';':
			if depth == 0 {
				emit(i)
			}
		}
	}
	emit(len(src))
	return out
}

func stripComments(src string) string {
	var b strings.Builder
	for i := 0; i < len(src); i++ {
		if i+1 < len(src) && src[i] == '/' && src[i+1] == '/' {
			for i < len(src) && src[i] != '\n' {
				i++
			}
			b.WriteByte('\n')
			continue
		}
		if i+1 < len(src) && src[i] == '/' && src[i+1] == '*' {
			end := strings.Index(src[i+2:], "*/")
			if end < 0 {
				break
			}
			i += end + 3
			b.WriteByte(' ')
			continue
		}
		b.WriteByte(src[i])
	}
	return b.String()
}

func keyword(stmt string) string {
	end := strings.IndexFunc(stmt, func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\n' || r == '(' || r == '[' || r == '"'
	})
	if end < 0 {
		return stmt
	}
	return stmt[:end]
}

// registerSize parses a declared register size, rejecting sizes past
// circuit.MaxWires.
func registerSize(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n > circuit.MaxWires {
		return 0, fmt.Errorf("register size %s exceeds the %d wire limit", s, circuit.MaxWires)
	}
	return n, nil
}

func sizeOrOne(s string) (int, error) {
	if s == "" {
		return 1, nil
	}
	return registerSize(s)
}

func abbreviate(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > 40 {
		return s[:37] + "..."
	}
	return s
}
