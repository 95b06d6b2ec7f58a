package qasm

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/qbraid/qbraid-go/pkg/circuit"
)

// scope resolves identifiers inside parameter expressions.
type scope struct {
	values  map[string]float64
	symbols map[string]circuit.Param
}

func (s *scope) lookup(name string) (float64, bool, error) {
	switch name {
	case "pi", "π":
		return math.Pi, true, nil
	case "tau", "τ":
		return 2 * math.Pi, true, nil
	case "euler", "ℇ":
		return math.E, true, nil
	}
	if s == nil {
		return 0, false, nil
	}
	if v, ok := s.values[name]; ok {
		return v, true, nil
	}
	if p, ok := s.symbols[name]; ok {
		if p.IsSymbolic() {
			return 0, false, fmt.Errorf("expression over unbound parameter %q is not supported", p.Symbol)
		}
		return p.Value, true, nil
	}
	return 0, false, nil
}

// evalParam evaluates a parameter expression. A bare identifier naming an
// unbound symbol yields a symbolic parameter.
func evalParam(src string, sc *scope) (circuit.Param, error) {
	src = strings.TrimSpace(src)
	if sc != nil {
		if p, ok := sc.symbols[src]; ok {
			return p, nil
		}
	}
	v, err := evalExpr(src, sc)
	if err != nil {
		return circuit.Param{}, err
	}
	return circuit.Num(v), nil
}

func evalExpr(src string, sc *scope) (float64, error) {
	p := &exprParser{src: []rune(src), scope: sc}
	v, err := p.parseSum()
	if err != nil {
		return 0, fmt.Errorf("expression %q: %w", src, err)
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return 0, fmt.Errorf("expression %q: unexpected %q", src, string(p.src[p.pos:]))
	}
	return v, nil
}

type exprParser struct {
	src   []rune
	pos   int
	scope *scope
}

func (p *exprParser) skipSpace() {
	for p.pos < len(p.src) && unicode.IsSpace(p.src[p.pos]) {
		p.pos++
	}
}

func (p *exprParser) peek() rune {
	p.skipSpace()
	if p.pos >= len(p.src) {
		return 0
	}
	return p.src[p.pos]
}

func (p *exprParser) parseSum() (float64, error) {
	left, err := p.parseProduct()
	if err != nil {
		return 0, err
	}
	for {
		switch p.peek() {
		case '+':
			p.pos++
			right, err := p.parseProduct()
			if err != nil {
				return 0, err
			}
			left += right
		case '-':
			p.pos++
			right, err := p.parseProduct()
			if err != nil {
				return 0, err
			}
			left -= right
		default:
			return left, nil
		}
	}
}

func (p *exprParser) parseProduct() (float64, error) {
	left, err := p.parseUnary()
	if err != nil {
		return 0, err
	}
	for {
		switch p.peek() {
		case '*':
			p.pos++
			if p.peek() == '*' {
				p.pos++
				right, err := p.parseUnary()
				if err != nil {
					return 0, err
				}
				left = math.Pow(left, right)
				continue
			}
			right, err := p.parseUnary()
			if err != nil {
				return 0, err
			}
			left *= right
		case '/':
			p.pos++
			right, err := p.parseUnary()
			if err != nil {
				return 0, err
			}
			if right == 0 {
				return 0, fmt.Errorf("division by zero")
			}
			left /= right
		default:
			return left, nil
		}
	}
}

func (p *exprParser) parseUnary() (float64, error) {
	switch p.peek() {
	case '-':
		p.pos++
		v, err := p.parseUnary()
		return -v, err
	case '+':
		p.pos++
		return p.parseUnary()
	}
	base, err := p.parseAtom()
	if err != nil {
		return 0, err
	}
	if p.peek() == '^' {
		p.pos++
		exp, err := p.parseUnary()
		if err != nil {
			return 0, err
		}
		return math.Pow(base, exp), nil
	}
	return base, nil
}

var functions = map[string]func(float64) float64{
	"sin":  math.Sin,
	"cos":  math.Cos,
	"tan":  math.Tan,
	"exp":  math.Exp,
	"ln":   math.Log,
	"sqrt": math.Sqrt,
	"asin": math.Asin,
	"acos": math.Acos,
	"atan": math.Atan,
}

func (p *exprParser) parseAtom() (float64, error) {
	r := p.peek()
	switch {
	case r == '(':
		p.pos++
		v, err := p.parseSum()
		if err != nil {
			return 0, err
		}
		if p.peek() != ')' {
			return 0, fmt.Errorf("missing closing parenthesis")
		}
		p.pos++
		return v, nil
	case unicode.IsDigit(r) || r == '.':
		start := p.pos
		for p.pos < len(p.src) && (unicode.IsDigit(p.src[p.pos]) || p.src[p.pos] == '.' || p.src[p.pos] == '_') {
			p.pos++
		}
		if p.pos < len(p.src) && (p.src[p.pos] == 'e' || p.src[p.pos] == 'E') {
			p.pos++
			if p.pos < len(p.src) && (p.src[p.pos] == '-' || p.src[p.pos] == '+') {
				p.pos++
			}
			for p.pos < len(p.src) && unicode.IsDigit(p.src[p.pos]) {
				p.pos++
			}
		}
		lit := strings.ReplaceAll(string(p.src[start:p.pos]), "_", "")
		return strconv.ParseFloat(lit, 64)
	case unicode.IsLetter(r) || r == '_':
		start := p.pos
		for p.pos < len(p.src) && (unicode.IsLetter(p.src[p.pos]) || unicode.IsDigit(p.src[p.pos]) || p.src[p.pos] == '_') {
			p.pos++
		}
		name := string(p.src[start:p.pos])
		if fn, ok := functions[name]; ok && p.peek() == '(' {
			arg, err := p.parseAtom()
			if err != nil {
				return 0, err
			}
			return fn(arg), nil
		}
		v, ok, err := p.scope.lookup(name)
		if err != nil {
			return 0, err
		}
		if !ok {
			return 0, fmt.Errorf("unknown identifier %q", name)
		}
		return v, nil
	case r == 0:
		return 0, fmt.Errorf("unexpected end of expression")
	}
	return 0, fmt.Errorf("unexpected %q", string(r))
}

// Eval evaluates a constant arithmetic expression such as "-pi/4" or
// "2*cos(0.5)".
func Eval(src string) (float64, error) {
	return evalExpr(src, nil)
}
