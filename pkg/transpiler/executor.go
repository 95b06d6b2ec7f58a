package transpiler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/qbraid/qbraid-go/pkg/telemetry"
)

// ExecuteOptions configures one execution.
type ExecuteOptions struct {
	// Trace records every intermediate program. Intermediate programs can be
	// large, so this is off by default.
	Trace bool
}

// TraceEntry is one recorded hop.
type TraceEntry struct {
	Index     int
	Source    string
	Target    string
	Converter string
	Duration  time.Duration
	Program   any
}

// Result is the outcome of executing a path.
type Result struct {
	// Program is the final converted program.
	Program any

	// Path is the executed path.
	Path Path

	// Trace holds the intermediate programs when tracing is enabled.
	Trace []TraceEntry

	// Duration is the total execution time.
	Duration time.Duration
}

// Executor applies a conversion path to a program.
type Executor struct {
	logger  zerolog.Logger
	metrics *telemetry.Metrics
	tracer  *telemetry.Tracer
}

// NewExecutor creates an executor. Metrics and tracer may be nil.
func NewExecutor(logger zerolog.Logger, metrics *telemetry.Metrics, tracer *telemetry.Tracer) *Executor {
	return &Executor{
		logger:  logger.With().Str("component", "executor").Logger(),
		metrics: metrics,
		tracer:  tracer,
	}
}

// Execute runs each hop of the path in order, feeding every output into the
// next hop. The first failing hop aborts the chain with a
// ConversionExecutionError; later hops are not run and no alternate path is
// tried. Cancellation is checked between hops.
func (e *Executor) Execute(ctx context.Context, path Path, program any, opts ExecuteOptions) (*Result, error) {
	start := time.Now()
	result := &Result{Path: path}
	current := program

	for i, edge := range path.Edges {
		if err := ctx.Err(); err != nil {
			return nil, &ConversionExecutionError{
				Index:     i,
				Source:    edge.Source,
				Target:    edge.Target,
				Converter: edge.Converter.DisplayName(),
				Err:       err,
			}
		}

		next, dur, err := e.runHop(ctx, i, edge, current)
		if err != nil {
			e.logger.Warn().
				Int("hop", i).
				Str("source", string(edge.Source)).
				Str("target", string(edge.Target)).
				Err(err).
				Msg("Conversion hop failed")
			return nil, &ConversionExecutionError{
				Index:     i,
				Source:    edge.Source,
				Target:    edge.Target,
				Converter: edge.Converter.DisplayName(),
				Err:       err,
			}
		}

		e.logger.Debug().
			Int("hop", i).
			Str("converter", edge.Converter.DisplayName()).
			Dur("duration", dur).
			Msg("Conversion hop completed")

		if opts.Trace {
			result.Trace = append(result.Trace, TraceEntry{
				Index:     i,
				Source:    string(edge.Source),
				Target:    string(edge.Target),
				Converter: edge.Converter.DisplayName(),
				Duration:  dur,
				Program:   next,
			})
		}
		current = next
	}

	result.Program = current
	result.Duration = time.Since(start)
	return result, nil
}

// runHop invokes one converter inside a span.
func (e *Executor) runHop(ctx context.Context, index int, edge Edge, program any) (any, time.Duration, error) {
	source, target := string(edge.Source), string(edge.Target)
	hopCtx, span := e.tracer.StartHopSpan(ctx, index, source, target)
	defer span.End()

	timer := telemetry.NewTimer()
	out, err := safeConvert(hopCtx, edge.Converter.Func, program)
	if err == nil && isNil(out) {
		err = ErrNilProgram
	}
	dur := timer.Duration()

	if err != nil {
		telemetry.RecordError(span, err)
		e.metrics.RecordHop(source, target, "failure", dur)
		return nil, dur, err
	}
	telemetry.RecordSuccess(span)
	e.metrics.RecordHop(source, target, "success", dur)
	return out, dur, nil
}

// safeConvert calls fn, reporting a panic as an error so one bad input
// fails its hop instead of the process.
func safeConvert(ctx context.Context, fn ConvertFunc, program any) (out any, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("%w: %v", ErrConverterPanic, r)
		}
	}()
	return fn(ctx, program)
}
