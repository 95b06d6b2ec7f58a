package transpiler

import (
	"context"
	"reflect"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/qbraid/qbraid-go/pkg/programs"
)

// trail is a test program that records the conversions applied to it.
type trail struct {
	kind  programs.ProgramType
	steps []string
}

type (
	alphaProgram struct{ trail }
	betaProgram  struct{ trail }
	gammaProgram struct{ trail }
)

const (
	alpha programs.ProgramType = "alpha"
	beta  programs.ProgramType = "beta"
	gamma programs.ProgramType = "gamma"
	delta programs.ProgramType = "delta"
)

func testCatalog(t *testing.T) *programs.Catalog {
	t.Helper()
	c := programs.NewCatalog()
	require.NoError(t, c.Register(programs.Spec{Type: alpha, GoType: reflect.TypeOf(&alphaProgram{})}))
	require.NoError(t, c.Register(programs.Spec{Type: beta, GoType: reflect.TypeOf(&betaProgram{})}))
	require.NoError(t, c.Register(programs.Spec{Type: gamma, GoType: reflect.TypeOf(&gammaProgram{})}))
	return c
}

// step returns a converter func that appends "source->target" to the trail
// and returns a generic trail value.
func step(source, target programs.ProgramType) ConvertFunc {
	return func(_ context.Context, program any) (any, error) {
		var steps []string
		switch p := program.(type) {
		case *alphaProgram:
			steps = p.steps
		case *betaProgram:
			steps = p.steps
		case *gammaProgram:
			steps = p.steps
		case *trail:
			steps = p.steps
		}
		next := append(append([]string(nil), steps...), string(source)+"->"+string(target))
		return &trail{kind: target, steps: next}, nil
	}
}

// edge builds a converter with a step func.
func edge(source, target programs.ProgramType, lossy bool, extra string) Converter {
	return Converter{
		Source:        source,
		Target:        target,
		Func:          step(source, target),
		Lossy:         lossy,
		RequiresExtra: extra,
	}
}

// graphOf builds a default-weighted graph from converters.
func graphOf(converters ...Converter) *Graph {
	return BuildGraph(converters, DefaultGraphOptions())
}

func pathString(t *testing.T, g *Graph, source, target programs.ProgramType, opts ResolveOptions) string {
	t.Helper()
	p, err := Resolve(g, source, target, opts)
	require.NoError(t, err)
	return p.String()
}

func ptype(name string) programs.ProgramType {
	return programs.ProgramType(name)
}
