package policy

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/open-policy-agent/opa/ast"
	"github.com/open-policy-agent/opa/rego"
	"github.com/open-policy-agent/opa/storage"
	"github.com/open-policy-agent/opa/storage/inmem"
	"github.com/rs/zerolog"

	"github.com/qbraid/qbraid-go/pkg/qerrors"
	"github.com/qbraid/qbraid-go/pkg/telemetry"
	"github.com/qbraid/qbraid-go/pkg/transpiler"
)

// Engine evaluates Rego policies over resolved conversion paths.
type Engine struct {
	mu       sync.RWMutex
	policies map[string]*compiledPolicy
	store    storage.Store
	logger   zerolog.Logger
	mode     Mode
	events   *telemetry.EventPublisher

	// paths are the user policy sources, reloaded by ReloadPolicies.
	paths []string
}

// compiledPolicy is a policy with its deny query prepared.
type compiledPolicy struct {
	policy   *Policy
	module   *ast.Module
	query    rego.PreparedEvalQuery
	compiled time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithMode sets the enforcement mode. The default is advisory.
func WithMode(mode Mode) Option {
	return func(e *Engine) {
		e.mode = mode
	}
}

// WithEvents publishes a policy.violation event for every violation found
// by PathCheck.
func WithEvents(events *telemetry.EventPublisher) Option {
	return func(e *Engine) {
		e.events = events
	}
}

// NewEngine creates a policy engine with the built-in policies loaded.
func NewEngine(logger zerolog.Logger, opts ...Option) (*Engine, error) {
	e := &Engine{
		policies: make(map[string]*compiledPolicy),
		store:    inmem.New(),
		logger:   logger.With().Str("component", "policy-engine").Logger(),
		mode:     ModeAdvisory,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.mode != ModeAdvisory && e.mode != ModeEnforcing {
		return nil, fmt.Errorf("invalid policy mode %q", e.mode)
	}

	if err := e.loadBuiltinPolicies(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to load built-in policies: %w", err)
	}
	return e, nil
}

// Mode returns the enforcement mode.
func (e *Engine) Mode() Mode {
	return e.mode
}

// NewInput describes a path for evaluation.
func NewInput(p transpiler.Path, operation string) Input {
	in := Input{
		Source: p.Source.String(),
		Target: p.Target.String(),
		Hops:   make([]HopInput, len(p.Edges)),
		Cost:   p.Cost(),
		Lossy:  p.Lossy(),
		Extras: p.Extras(),
		Context: Context{
			Operation: operation,
			Timestamp: time.Now().UTC(),
		},
	}
	if in.Extras == nil {
		in.Extras = []string{}
	}
	for i, edge := range p.Edges {
		in.Hops[i] = HopInput{
			Index:     i,
			Source:    edge.Source.String(),
			Target:    edge.Target.String(),
			Converter: edge.Converter.DisplayName(),
			Lossy:     edge.Converter.Lossy,
			Extra:     edge.Converter.RequiresExtra,
		}
	}
	return in
}

// EvaluatePath evaluates all enabled policies against a path.
func (e *Engine) EvaluatePath(ctx context.Context, p transpiler.Path) (*Result, error) {
	return e.Evaluate(ctx, NewInput(p, "transpile"))
}

// Evaluate evaluates all enabled policies against an input document.
// A policy that fails to evaluate is reported in Result.Errors and does
// not stop the others.
func (e *Engine) Evaluate(ctx context.Context, input Input) (*Result, error) {
	start := time.Now()
	if input.Hops == nil {
		input.Hops = []HopInput{}
	}
	if input.Extras == nil {
		input.Extras = []string{}
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	result := &Result{Allowed: true, EvaluatedAt: start}
	for _, name := range e.sortedNames() {
		cp := e.policies[name]
		if !cp.policy.Enabled {
			continue
		}
		result.EvaluatedPolicies = append(result.EvaluatedPolicies, name)

		violations, err := e.evaluatePolicy(ctx, cp, input)
		if err != nil {
			e.logger.Error().Err(err).Str("policy", name).Msg("Policy evaluation failed")
			result.Errors = append(result.Errors, fmt.Sprintf("policy %s: %v", name, err))
			continue
		}
		result.Violations = append(result.Violations, violations...)
	}

	result.Allowed = len(result.Blocking()) == 0
	result.Duration = time.Since(start)

	e.logger.Debug().
		Str("source", input.Source).
		Str("target", input.Target).
		Int("violations", len(result.Violations)).
		Dur("duration", result.Duration).
		Msg("Path policy evaluation completed")

	return result, nil
}

// PathCheck returns a hook for transpiler.WithPathCheck. Violations are
// logged and published; in enforcing mode a blocking violation, or a policy
// that fails to evaluate, rejects the path with a ConversionPolicyError.
func (e *Engine) PathCheck() transpiler.PathCheck {
	return func(ctx context.Context, p transpiler.Path) error {
		result, err := e.EvaluatePath(ctx, p)
		if err != nil {
			return qerrors.NewUnavailable("policy evaluation failed", err).WithOperation("policy")
		}

		for _, v := range result.Violations {
			e.logger.Warn().
				Str("policy", v.Policy).
				Str("severity", string(v.Severity)).
				Str("path", p.String()).
				Msg(v.Message)
			_ = e.events.PublishPolicyViolation(v.Policy, p.String(), v.Message)
		}

		if e.mode != ModeEnforcing {
			return nil
		}

		var denied []string
		for _, v := range result.Blocking() {
			denied = append(denied, fmt.Sprintf("%s: %s", v.Policy, v.Message))
		}
		denied = append(denied, result.Errors...)
		if len(denied) == 0 {
			return nil
		}
		return &transpiler.ConversionPolicyError{Path: p, Violations: denied}
	}
}

// evaluatePolicy runs one prepared deny query.
func (e *Engine) evaluatePolicy(ctx context.Context, cp *compiledPolicy, input Input) ([]Violation, error) {
	results, err := cp.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return nil, fmt.Errorf("policy evaluation error: %w", err)
	}

	var violations []Violation
	for _, result := range results {
		if len(result.Expressions) == 0 {
			continue
		}
		denySet, ok := result.Expressions[0].Value.([]interface{})
		if !ok {
			continue
		}
		for _, d := range denySet {
			violations = append(violations, createViolation(cp.policy, d))
		}
	}
	sort.SliceStable(violations, func(i, j int) bool {
		if violations[i].Hop != violations[j].Hop {
			return violations[i].Hop < violations[j].Hop
		}
		return violations[i].Message < violations[j].Message
	})
	return violations, nil
}

// createViolation converts a deny entry, either a string or an object with
// message, severity and hop.
func createViolation(policy *Policy, result interface{}) Violation {
	v := Violation{
		Policy:   policy.Name,
		Severity: policy.Severity,
		Hop:      -1,
	}

	switch r := result.(type) {
	case string:
		v.Message = r
	case map[string]interface{}:
		if msg, ok := r["message"].(string); ok {
			v.Message = msg
		}
		if sev, ok := r["severity"].(string); ok {
			v.Severity = Severity(sev)
		}
		if hop, ok := toInt(r["hop"]); ok {
			v.Hop = hop
		}
	default:
		v.Message = fmt.Sprintf("%v", result)
	}
	return v
}

func toInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case float64:
		return int(n), true
	case interface{ Int64() (int64, error) }:
		i, err := n.Int64()
		return int(i), err == nil
	}
	return 0, false
}

// compileAndStorePolicy parses a policy and prepares its deny query.
func (e *Engine) compileAndStorePolicy(ctx context.Context, policy *Policy) error {
	module, err := ast.ParseModule(policy.Name, policy.Rego)
	if err != nil {
		return fmt.Errorf("failed to parse policy: %w", err)
	}

	query, err := rego.New(
		rego.ParsedModule(module),
		rego.Store(e.store),
		rego.Query(module.Package.Path.String()+".deny"),
	).PrepareForEval(ctx)
	if err != nil {
		return fmt.Errorf("failed to prepare query: %w", err)
	}

	if policy.Severity == "" {
		policy.Severity = SeverityWarning
	}
	e.policies[policy.Name] = &compiledPolicy{
		policy:   policy,
		module:   module,
		query:    query,
		compiled: time.Now(),
	}

	e.logger.Debug().Str("policy", policy.Name).Msg("Policy compiled successfully")
	return nil
}

// loadBuiltinPolicies compiles the built-in policies.
func (e *Engine) loadBuiltinPolicies(ctx context.Context) error {
	builtins := GetBuiltinPolicies()
	for i := range builtins {
		if err := e.compileAndStorePolicy(ctx, &builtins[i]); err != nil {
			return fmt.Errorf("failed to compile built-in policy %s: %w", builtins[i].Name, err)
		}
	}
	e.logger.Debug().Int("count", len(builtins)).Msg("Built-in policies loaded")
	return nil
}

// AddPolicy compiles and adds a policy, replacing one with the same name.
func (e *Engine) AddPolicy(ctx context.Context, policy Policy) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.compileAndStorePolicy(ctx, &policy)
}

// LoadPolicies loads .rego and .json policy files or directories. The
// paths are remembered for ReloadPolicies.
func (e *Engine) LoadPolicies(ctx context.Context, paths []string) error {
	policies, err := NewLoader(e.logger).LoadFromPaths(ctx, paths)
	if err != nil {
		return fmt.Errorf("failed to load policies: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.applyPolicies(ctx, policies); err != nil {
		return err
	}
	e.paths = append(e.paths, paths...)

	e.logger.Info().Int("count", len(policies)).Msg("Policies loaded successfully")
	return nil
}

func (e *Engine) applyPolicies(ctx context.Context, policies []Policy) error {
	for i := range policies {
		if err := e.compileAndStorePolicy(ctx, &policies[i]); err != nil {
			return fmt.Errorf("failed to compile policy %s: %w", policies[i].Name, err)
		}
	}
	return nil
}

// ReloadPolicies recompiles the built-in policies and reloads every path
// passed to LoadPolicies. On failure the previous policy set is kept.
func (e *Engine) ReloadPolicies(ctx context.Context) error {
	e.mu.RLock()
	paths := append([]string(nil), e.paths...)
	e.mu.RUnlock()

	var policies []Policy
	if len(paths) > 0 {
		var err error
		if policies, err = NewLoader(e.logger).LoadFromPaths(ctx, paths); err != nil {
			return fmt.Errorf("failed to reload policies: %w", err)
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	previous := e.policies
	e.policies = make(map[string]*compiledPolicy)
	if err := e.loadBuiltinPolicies(ctx); err != nil {
		e.policies = previous
		return err
	}
	if err := e.applyPolicies(ctx, policies); err != nil {
		e.policies = previous
		return err
	}
	return nil
}

// Watch reloads policies whenever a loaded policy file changes, until ctx
// is done.
func (e *Engine) Watch(ctx context.Context) error {
	e.mu.RLock()
	paths := append([]string(nil), e.paths...)
	e.mu.RUnlock()
	if len(paths) == 0 {
		return fmt.Errorf("no policy paths to watch")
	}

	return NewLoader(e.logger).Watch(ctx, paths, func([]Policy) error {
		return e.ReloadPolicies(ctx)
	})
}

// GetPolicy returns a policy by name.
func (e *Engine) GetPolicy(name string) (*Policy, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	cp, exists := e.policies[name]
	if !exists {
		return nil, fmt.Errorf("policy not found: %s", name)
	}
	p := *cp.policy
	return &p, nil
}

// ListPolicies returns all loaded policies sorted by name.
func (e *Engine) ListPolicies() []Policy {
	e.mu.RLock()
	defer e.mu.RUnlock()

	policies := make([]Policy, 0, len(e.policies))
	for _, name := range e.sortedNames() {
		policies = append(policies, *e.policies[name].policy)
	}
	return policies
}

// EnablePolicy enables a policy by name.
func (e *Engine) EnablePolicy(name string) error {
	return e.setEnabled(name, true)
}

// DisablePolicy disables a policy by name.
func (e *Engine) DisablePolicy(name string) error {
	return e.setEnabled(name, false)
}

func (e *Engine) setEnabled(name string, enabled bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	cp, exists := e.policies[name]
	if !exists {
		return fmt.Errorf("policy not found: %s", name)
	}
	cp.policy.Enabled = enabled
	e.logger.Info().Str("policy", name).Bool("enabled", enabled).Msg("Policy state changed")
	return nil
}

// sortedNames returns policy names in evaluation order. Callers hold mu.
func (e *Engine) sortedNames() []string {
	names := make([]string, 0, len(e.policies))
	for name := range e.policies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// String lists the loaded policies.
func (e *Engine) String() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return fmt.Sprintf("policy engine (%s): %s", e.mode, strings.Join(e.sortedNames(), ", "))
}
