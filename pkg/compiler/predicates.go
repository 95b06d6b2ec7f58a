package compiler

import (
	"fmt"
	"strings"

	"github.com/qbraid/qbraid-go/pkg/circuit"
)

// Predicate names.
const (
	GateSetPredicate            = "GateSetPredicate"
	MaxNQubitsPredicate         = "MaxNQubitsPredicate"
	NoClassicalControlPredicate = "NoClassicalControlPredicate"
	NoMidMeasurePredicate       = "NoMidMeasurePredicate"
	NoSymbolsPredicate          = "NoSymbolsPredicate"
)

// Predicate is a property a compiled circuit must satisfy.
type Predicate interface {
	// Name identifies the predicate in errors.
	Name() string

	// Verify returns a description of the violation, or "" when the
	// circuit satisfies the predicate.
	Verify(c *circuit.Circuit) string
}

type gateSetPredicate struct {
	gates circuit.GateSet
}

func (p gateSetPredicate) Name() string { return GateSetPredicate }

// Verify reports gates outside the allowed set. Structural operations are
// not gates and always pass.
func (p gateSetPredicate) Verify(c *circuit.Circuit) string {
	var bad []string
	seen := map[string]bool{}
	for _, op := range c.Ops {
		if op.IsStructural() || op.Name == circuit.Reset || p.gates.Has(op.Name) || seen[op.Name] {
			continue
		}
		seen[op.Name] = true
		bad = append(bad, op.Name)
	}
	if len(bad) == 0 {
		return ""
	}
	return fmt.Sprintf("gates [%s] not in %s", strings.Join(bad, ", "), p.gates)
}

type maxNQubitsPredicate struct {
	max int
}

func (p maxNQubitsPredicate) Name() string { return MaxNQubitsPredicate }

func (p maxNQubitsPredicate) Verify(c *circuit.Circuit) string {
	if p.max > 0 && c.NumQubits() > p.max {
		return fmt.Sprintf("circuit uses %d qubits, limit is %d", c.NumQubits(), p.max)
	}
	return ""
}

type noClassicalControlPredicate struct{}

func (noClassicalControlPredicate) Name() string { return NoClassicalControlPredicate }

func (noClassicalControlPredicate) Verify(c *circuit.Circuit) string {
	for i, op := range c.Ops {
		if op.Condition != nil {
			return fmt.Sprintf("operation %d (%s) is classically controlled", i, op.Name)
		}
	}
	return ""
}

type noMidMeasurePredicate struct{}

func (noMidMeasurePredicate) Name() string { return NoMidMeasurePredicate }

func (noMidMeasurePredicate) Verify(c *circuit.Circuit) string {
	if c.HasMidCircuitMeasurement() {
		return "a qubit is operated on after it was measured"
	}
	return ""
}

type noSymbolsPredicate struct{}

func (noSymbolsPredicate) Name() string { return NoSymbolsPredicate }

func (noSymbolsPredicate) Verify(c *circuit.Circuit) string {
	for i, op := range c.Ops {
		if op.HasSymbols() {
			return fmt.Sprintf("operation %d (%s) has unbound parameters", i, op.Name)
		}
	}
	return ""
}

// Predicates returns the predicates of a target in verification order.
func Predicates(t Target) []Predicate {
	preds := []Predicate{
		gateSetPredicate{gates: t.GateSet},
		maxNQubitsPredicate{max: t.MaxQubits},
	}
	if !t.AllowClassicalControl {
		preds = append(preds, noClassicalControlPredicate{})
	}
	if !t.AllowMidMeasure {
		preds = append(preds, noMidMeasurePredicate{})
	}
	if !t.AllowSymbols {
		preds = append(preds, noSymbolsPredicate{})
	}
	return preds
}

// CheckPredicates verifies every predicate of the target and returns a
// CompilationError for the first one violated.
func CheckPredicates(c *circuit.Circuit, t Target) error {
	for _, p := range Predicates(t) {
		if detail := p.Verify(c); detail != "" {
			return &CompilationError{Target: t.Name, Predicate: p.Name(), Detail: detail}
		}
	}
	return nil
}
