package transpiler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/qbraid/qbraid-go/pkg/capabilities"
	"github.com/qbraid/qbraid-go/pkg/programs"
	"github.com/qbraid/qbraid-go/pkg/qerrors"
	"github.com/qbraid/qbraid-go/pkg/telemetry"
)

// graphState is one immutable snapshot of the conversion graph.
type graphState struct {
	graph           *Graph
	registryVersion uint64
	extras          capabilities.Set
	generation      uint64
}

// Transpiler converts programs between types by resolving and executing
// paths through the conversion graph.
type Transpiler struct {
	registry *Registry
	catalog  *programs.Catalog
	probe    capabilities.Probe

	logger    zerolog.Logger
	metrics   *telemetry.Metrics
	tracer    *telemetry.Tracer
	events    *telemetry.EventPublisher
	graphOpts GraphOptions
	cache     *PathCache
	pathCheck PathCheck
	defaults  callOptions
	executor  *Executor

	// state holds the current graph snapshot. Readers never block.
	state atomic.Pointer[graphState]

	// rebuildMu serializes graph rebuilds.
	rebuildMu sync.Mutex

	// generation numbers graph snapshots.
	generation atomic.Uint64
}

// New creates a transpiler over a converter registry and a program catalog.
// The graph is built lazily on first use.
func New(registry *Registry, catalog *programs.Catalog, opts ...Option) *Transpiler {
	t := &Transpiler{
		registry:  registry,
		catalog:   catalog,
		logger:    zerolog.Nop(),
		graphOpts: DefaultGraphOptions(),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.logger = t.logger.With().Str("component", "transpiler").Logger()
	t.executor = NewExecutor(t.logger, t.metrics, t.tracer)
	return t
}

// Registry returns the converter registry.
func (t *Transpiler) Registry() *Registry {
	return t.registry
}

// Catalog returns the program catalog.
func (t *Transpiler) Catalog() *programs.Catalog {
	return t.catalog
}

// Rebuild re-probes installed extras and rebuilds the graph. Queries running
// concurrently keep using the previous snapshot.
func (t *Transpiler) Rebuild(ctx context.Context) error {
	_, err := t.rebuild(ctx, true)
	return err
}

// Graph returns the current conversion graph, building it if the registry
// changed since the last build.
func (t *Transpiler) Graph(ctx context.Context) (*Graph, error) {
	st, err := t.current(ctx)
	if err != nil {
		return nil, err
	}
	return st.graph, nil
}

// Extras returns the installed extras the current graph was built with.
func (t *Transpiler) Extras(ctx context.Context) (capabilities.Set, error) {
	st, err := t.current(ctx)
	if err != nil {
		return nil, err
	}
	return st.extras.Union(nil), nil
}

// current returns the graph snapshot, rebuilding when the registry version
// moved. Extras are only re-probed by Rebuild or on the first build.
func (t *Transpiler) current(ctx context.Context) (*graphState, error) {
	if st := t.state.Load(); st != nil && st.registryVersion == t.registry.Version() {
		return st, nil
	}
	return t.rebuild(ctx, false)
}

func (t *Transpiler) rebuild(ctx context.Context, reprobe bool) (*graphState, error) {
	t.rebuildMu.Lock()
	defer t.rebuildMu.Unlock()

	prev := t.state.Load()
	version := t.registry.Version()
	if !reprobe && prev != nil && prev.registryVersion == version {
		return prev, nil
	}

	var extras capabilities.Set
	if reprobe || prev == nil {
		var err error
		if extras, err = t.probeExtras(ctx); err != nil {
			return nil, qerrors.NewUnavailable("capability probe failed", err).
				WithOperation("rebuild")
		}
	} else {
		extras = prev.extras
	}

	graph := BuildGraph(t.registry.Available(extras), t.graphOpts)
	st := &graphState{
		graph:           graph,
		registryVersion: version,
		extras:          extras,
		generation:      t.generation.Add(1),
	}
	t.state.Store(st)

	t.metrics.RecordGraphRebuild(len(graph.Nodes()), graph.NumEdges())
	t.logger.Debug().
		Int("nodes", len(graph.Nodes())).
		Int("edges", graph.NumEdges()).
		Str("extras", extras.Key()).
		Uint64("generation", st.generation).
		Msg("Conversion graph rebuilt")
	return st, nil
}

func (t *Transpiler) probeExtras(ctx context.Context) (capabilities.Set, error) {
	if t.probe == nil {
		return t.registry.Extras(), nil
	}
	return t.probe.Probe(ctx)
}

func (t *Transpiler) callOptions(opts []CallOption) callOptions {
	o := t.defaults
	o.forbidden = append([]programs.ProgramType(nil), t.defaults.forbidden...)
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// ConversionPath resolves the path between two types without converting
// anything.
func (t *Transpiler) ConversionPath(ctx context.Context, source, target programs.ProgramType, opts ...CallOption) (Path, error) {
	st, err := t.current(ctx)
	if err != nil {
		return Path{}, err
	}
	return t.resolve(st, programs.Normalize(string(source)), programs.Normalize(string(target)), t.callOptions(opts))
}

// AllPaths lists every simple path between two types, best first.
func (t *Transpiler) AllPaths(ctx context.Context, source, target programs.ProgramType, maxHops int) ([]Path, error) {
	st, err := t.current(ctx)
	if err != nil {
		return nil, err
	}
	return AllPaths(st.graph, programs.Normalize(string(source)), programs.Normalize(string(target)), maxHops), nil
}

func (t *Transpiler) resolve(st *graphState, source, target programs.ProgramType, o callOptions) (Path, error) {
	ro := o.resolveOptions()
	key := newPathKey(st.generation, source, target, ro)
	if t.cache != nil {
		if p, ok := t.cache.get(key); ok {
			t.metrics.RecordPathCacheLookup(true)
			return p, nil
		}
		t.metrics.RecordPathCacheLookup(false)
	}

	p, err := Resolve(st.graph, source, target, ro)
	if err != nil {
		t.metrics.RecordPathResolution("not_found")
		return Path{}, err
	}
	t.metrics.RecordPathResolution("found")
	t.cache.add(key, p)

	t.logger.Debug().
		Str("source", string(source)).
		Str("target", string(target)).
		Str("path", p.String()).
		Int("cost", p.Cost()).
		Msg("Conversion path resolved")
	return p, nil
}

// Transpile converts program to the target type and returns the converted
// program. The source type is inferred from the program's Go type.
func (t *Transpiler) Transpile(ctx context.Context, program any, target programs.ProgramType, opts ...CallOption) (any, error) {
	res, err := t.TranspileWithResult(ctx, program, target, opts...)
	if err != nil {
		return nil, err
	}
	return res.Program, nil
}

// TranspileWithResult is like Transpile but also returns the executed path
// and, when tracing, the intermediate programs.
func (t *Transpiler) TranspileWithResult(ctx context.Context, program any, target programs.ProgramType, opts ...CallOption) (*Result, error) {
	source, err := t.catalog.TypeOf(program)
	if err != nil {
		return nil, err
	}
	target = programs.Normalize(string(target))
	o := t.callOptions(opts)

	ctx, span := t.tracer.StartTranspileSpan(ctx, string(source), string(target))
	defer span.End()
	start := time.Now()

	res, err := t.transpile(ctx, program, source, target, o)
	dur := time.Since(start)
	if err != nil {
		telemetry.RecordError(span, err)
		t.metrics.RecordConversion(string(source), string(target), "failure", 0, dur)
		t.metrics.RecordError(string(qerrors.ClassOf(err)), qerrors.CodeOf(err))
		return nil, err
	}

	span.SetAttributes(
		telemetry.AttrPathLength.Int(res.Path.Len()),
		telemetry.AttrPath.String(res.Path.String()),
	)
	telemetry.RecordSuccess(span)
	t.metrics.RecordConversion(string(source), string(target), "success", res.Path.Len(), dur)
	if !res.Path.IsIdentity() {
		if err := t.events.PublishProgramConverted(string(source), string(target), res.Path.String(), dur); err != nil {
			t.logger.Warn().Err(err).Msg("Failed to publish conversion event")
		}
	}
	return res, nil
}

func (t *Transpiler) transpile(ctx context.Context, program any, source, target programs.ProgramType, o callOptions) (*Result, error) {
	st, err := t.current(ctx)
	if err != nil {
		return nil, err
	}

	// Unknown names fail as unsupported rather than as an unreachable node.
	if _, known := t.catalog.Lookup(target); !known && source != target && !st.graph.HasNode(target) {
		return nil, &programs.UnsupportedProgramTypeError{Name: string(target), Known: t.catalog.Types()}
	}

	path, err := t.resolve(st, source, target, o)
	if err != nil {
		return nil, err
	}

	if t.pathCheck != nil && !path.IsIdentity() {
		if err := t.pathCheck(ctx, path); err != nil {
			return nil, fmt.Errorf("path %s rejected: %w", path, err)
		}
	}

	return t.executor.Execute(ctx, path, program, ExecuteOptions{Trace: o.trace})
}
