package transpiler

import (
	"context"
	"fmt"
	"reflect"

	"github.com/qbraid/qbraid-go/pkg/programs"
)

// ConvertFunc converts a program of the converter's source type into a
// program of its target type. It must not mutate its input.
type ConvertFunc func(ctx context.Context, program any) (any, error)

// Converter describes one directed conversion between two program types.
type Converter struct {
	// Source is the input program type.
	Source programs.ProgramType

	// Target is the output program type.
	Target programs.ProgramType

	// Func performs the conversion.
	Func ConvertFunc

	// Lossy marks conversions that drop information. Lossy edges are
	// penalized during path resolution.
	Lossy bool

	// RequiresExtra names the optional capability the converter needs.
	// Empty means always available.
	RequiresExtra string

	// Name identifies the converter in logs and errors. Defaults to
	// "source_to_target".
	Name string
}

// DisplayName returns Name, or a name derived from the endpoints.
func (c Converter) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	return fmt.Sprintf("%s_to_%s", c.Source, c.Target)
}

// Validate checks that the converter is usable.
func (c Converter) Validate() error {
	if err := c.Source.Validate(); err != nil {
		return fmt.Errorf("%w: source: %v", ErrInvalidConverter, err)
	}
	if err := c.Target.Validate(); err != nil {
		return fmt.Errorf("%w: target: %v", ErrInvalidConverter, err)
	}
	if c.Source == c.Target {
		return fmt.Errorf("%w: %s converts to itself", ErrInvalidConverter, c.Source)
	}
	if c.Func == nil {
		return fmt.Errorf("%w: %s has no function", ErrInvalidConverter, c.DisplayName())
	}
	return nil
}

// Func adapts a typed conversion function to a ConvertFunc. The adapter
// rejects inputs of the wrong Go type and nil results.
func Func[In, Out any](fn func(ctx context.Context, in In) (Out, error)) ConvertFunc {
	return func(ctx context.Context, program any) (any, error) {
		in, ok := program.(In)
		if !ok {
			var zero In
			return nil, fmt.Errorf("expected %T, got %T", zero, program)
		}
		out, err := fn(ctx, in)
		if err != nil {
			return nil, err
		}
		if isNil(out) {
			return nil, ErrNilProgram
		}
		return out, nil
	}
}

// Simple adapts a context-free conversion function.
func Simple[In, Out any](fn func(in In) (Out, error)) ConvertFunc {
	return Func(func(_ context.Context, in In) (Out, error) {
		return fn(in)
	})
}

// isNil reports whether v is nil or a typed nil pointer, map, or slice.
func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	default:
		return false
	}
}
