package transpiler

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/qbraid/qbraid-go/pkg/capabilities"
	"github.com/qbraid/qbraid-go/pkg/programs"
	"github.com/qbraid/qbraid-go/pkg/telemetry"
)

// PathCheck inspects a resolved path before it is executed. A non-nil error
// aborts the conversion and is returned to the caller unchanged.
type PathCheck func(ctx context.Context, p Path) error

// Option configures a Transpiler.
type Option func(*Transpiler)

// WithProbe sets the capability probe. Without one, every extra required by
// a registered converter is treated as installed.
func WithProbe(p capabilities.Probe) Option {
	return func(t *Transpiler) {
		t.probe = p
	}
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(t *Transpiler) {
		t.logger = logger
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(t *Transpiler) {
		t.metrics = m
	}
}

// WithTracer sets the tracer.
func WithTracer(tr *telemetry.Tracer) Option {
	return func(t *Transpiler) {
		t.tracer = tr
	}
}

// WithEvents publishes a program.converted event after each conversion.
func WithEvents(ep *telemetry.EventPublisher) Option {
	return func(t *Transpiler) {
		t.events = ep
	}
}

// WithLossyPenalty sets the weight penalty for lossy edges.
func WithLossyPenalty(penalty int) Option {
	return func(t *Transpiler) {
		t.graphOpts.LossyPenalty = penalty
	}
}

// WithPathCache enables caching of resolved paths.
func WithPathCache(c *PathCache) Option {
	return func(t *Transpiler) {
		t.cache = c
	}
}

// WithPathCheck installs a hook run on every resolved, non-identity path.
func WithPathCheck(check PathCheck) Option {
	return func(t *Transpiler) {
		t.pathCheck = check
	}
}

// WithMaxHops sets the default hop bound for every call.
func WithMaxHops(n int) Option {
	return func(t *Transpiler) {
		t.defaults.maxHops = n
	}
}

// WithDefaultTrace enables trace recording for every call.
func WithDefaultTrace(enabled bool) Option {
	return func(t *Transpiler) {
		t.defaults.trace = enabled
	}
}

// CallOption configures a single conversion or path query.
type CallOption func(*callOptions)

type callOptions struct {
	maxHops   int
	forbidden []programs.ProgramType
	trace     bool
}

func (o callOptions) resolveOptions() ResolveOptions {
	return ResolveOptions{MaxHops: o.maxHops, Forbidden: o.forbidden}
}

// MaxHops bounds the number of conversions for this call. Zero removes the
// bound.
func MaxHops(n int) CallOption {
	return func(o *callOptions) {
		o.maxHops = n
	}
}

// Forbid excludes program types from the path.
func Forbid(types ...programs.ProgramType) CallOption {
	return func(o *callOptions) {
		o.forbidden = append(o.forbidden, types...)
	}
}

// Trace records intermediate programs for this call.
func Trace() CallOption {
	return func(o *callOptions) {
		o.trace = true
	}
}
