package compiler

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/qbraid/qbraid-go/pkg/circuit"
	"github.com/qbraid/qbraid-go/pkg/telemetry"
)

// Target describes what a compiled circuit may contain.
type Target struct {
	// Name identifies the target in errors and metrics.
	Name string

	// GateSet is the set of native gates.
	GateSet circuit.GateSet

	// MaxQubits bounds the circuit width. Zero means unbounded.
	MaxQubits int

	AllowMidMeasure       bool
	AllowClassicalControl bool
	AllowSymbols          bool
}

// Compiler rebases circuits onto targets.
type Compiler struct {
	logger  zerolog.Logger
	metrics *telemetry.Metrics
	tracer  *telemetry.Tracer
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Compiler) {
		c.logger = logger
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(c *Compiler) {
		c.metrics = m
	}
}

// WithTracer sets the tracer.
func WithTracer(t *telemetry.Tracer) Option {
	return func(c *Compiler) {
		c.tracer = t
	}
}

// New creates a compiler.
func New(opts ...Option) *Compiler {
	c := &Compiler{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With().Str("component", "compiler").Logger()
	return c
}

// Rebase rewrites c into the target gate set using a default compiler.
func Rebase(c *circuit.Circuit, t Target) (*circuit.Circuit, error) {
	return New().Rebase(context.Background(), c, t)
}

// RebaseTo rewrites c into gates with at most maxQubits qubits. Classical
// control, mid-circuit measurement and free parameters are rejected.
func RebaseTo(c *circuit.Circuit, gates circuit.GateSet, maxQubits int) (*circuit.Circuit, error) {
	return Rebase(c, Target{GateSet: gates, MaxQubits: maxQubits})
}

// Rebase returns a new circuit using only the target's gates, equivalent to
// c up to global phase. Every predicate of the target is verified after the
// rewrite; the first violation is returned as a CompilationError and no
// circuit is returned.
func (cc *Compiler) Rebase(ctx context.Context, c *circuit.Circuit, t Target) (*circuit.Circuit, error) {
	_, span := cc.tracer.StartRebaseSpan(ctx, t.Name)
	defer span.End()

	out, err := cc.rebase(c, t)
	if err != nil {
		var cerr *CompilationError
		if errors.As(err, &cerr) {
			span.SetAttributes(telemetry.AttrPredicate.String(cerr.Predicate))
		}
		telemetry.RecordError(span, err)
		cc.metrics.RecordCompilation(t.Name, "failure")
		return nil, err
	}

	telemetry.RecordSuccess(span)
	cc.metrics.RecordCompilation(t.Name, "success")
	cc.logger.Debug().
		Str("target", t.Name).
		Int("ops_in", len(c.Ops)).
		Int("ops_out", len(out.Ops)).
		Msg("Circuit rebased")
	return out, nil
}

func (cc *Compiler) rebase(c *circuit.Circuit, t Target) (*circuit.Circuit, error) {
	if c == nil {
		return nil, fmt.Errorf("circuit is nil")
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid circuit: %w", err)
	}
	if len(t.GateSet) == 0 {
		return nil, fmt.Errorf("target %q has an empty gate set", t.Name)
	}

	r := newRewriter(t.GateSet)
	out := c.Copy()
	out.Ops = out.Ops[:0]
	for _, op := range c.Ops {
		out.Ops = append(out.Ops, r.rewrite(op)...)
	}

	if err := CheckPredicates(out, t); err != nil {
		cc.logger.Debug().Err(err).Str("target", t.Name).Msg("Rebased circuit rejected")
		return nil, err
	}
	return out, nil
}

// rewriter maps operations into a gate set.
type rewriter struct {
	gates circuit.GateSet
	synth synthesizer

	// widened is the gate set plus every single-qubit gate, used to lower
	// multi-qubit gates before single-qubit synthesis.
	widened circuit.GateSet
}

func newRewriter(gates circuit.GateSet) *rewriter {
	widened := circuit.NewGateSet(gates.Names()...)
	for _, name := range circuit.Gates() {
		if def, ok := circuit.Lookup(name); ok && def.NumQubits == 1 {
			widened[name] = struct{}{}
		}
	}
	return &rewriter{
		gates:   gates,
		synth:   newSynthesizer(gates),
		widened: widened,
	}
}

// rewrite returns operations in the gate set implementing op. Operations
// that cannot be rewritten are returned unchanged so the gate set predicate
// reports them.
func (r *rewriter) rewrite(op circuit.Operation) []circuit.Operation {
	if op.IsStructural() || op.Name == circuit.Reset || r.gates.Has(op.Name) {
		return []circuit.Operation{op}
	}

	cond := op.Condition
	bare := op
	bare.Condition = nil

	ops, ok := r.rewriteBare(bare)
	if !ok {
		return []circuit.Operation{op}
	}
	if cond != nil {
		for i := range ops {
			c := *cond
			ops[i].Condition = &c
		}
	}
	return ops
}

func (r *rewriter) rewriteBare(op circuit.Operation) ([]circuit.Operation, bool) {
	// Exact table rewrites first.
	if ops, err := circuit.LowerOp(op, r.gates); err == nil {
		return ops, true
	}

	def, known := circuit.Lookup(op.Name)
	if !known {
		return nil, false
	}

	if def.NumQubits == 1 {
		return r.synthesizeOne(op, def)
	}

	// Multi-qubit: lower into native entanglers plus arbitrary single-qubit
	// gates, then map those.
	wide, err := circuit.LowerOp(op, r.widened)
	if err != nil {
		return nil, false
	}
	var out []circuit.Operation
	for _, w := range wide {
		if r.gates.Has(w.Name) || w.IsStructural() {
			out = append(out, w)
			continue
		}
		sub, ok := r.rewriteSingle(w)
		if !ok {
			return nil, false
		}
		out = append(out, sub...)
	}
	return out, true
}

func (r *rewriter) rewriteSingle(op circuit.Operation) ([]circuit.Operation, bool) {
	if ops, err := circuit.LowerOp(op, r.gates); err == nil {
		return ops, true
	}
	def, known := circuit.Lookup(op.Name)
	if !known || def.NumQubits != 1 {
		return nil, false
	}
	return r.synthesizeOne(op, def)
}

func (r *rewriter) synthesizeOne(op circuit.Operation, def circuit.GateDef) ([]circuit.Operation, bool) {
	if !r.synth.ok() || op.HasSymbols() {
		return nil, false
	}
	angles, err := op.Angles()
	if err != nil {
		return nil, false
	}
	return r.synth.synthesize(def.Unitary(angles), op.Qubits[0]), true
}
