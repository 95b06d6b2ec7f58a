package transpiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qbraid/qbraid-go/pkg/programs"
	"github.com/qbraid/qbraid-go/pkg/qerrors"
)

const (
	epsilon programs.ProgramType = "epsilon"
	target  programs.ProgramType = "target"
)

func TestResolve_Identity(t *testing.T) {
	g := graphOf(edge(alpha, beta, false, ""))

	for _, n := range []programs.ProgramType{alpha, delta} {
		p, err := Resolve(g, n, n, ResolveOptions{})
		require.NoError(t, err)
		assert.True(t, p.IsIdentity())
		assert.Equal(t, 0, p.Cost())
		assert.Equal(t, string(n), p.String())
	}

	p, err := Resolve(nil, alpha, alpha, ResolveOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, p.Len())
}

func TestResolve_LossyAvoidance(t *testing.T) {
	g := graphOf(
		edge(alpha, beta, true, ""),
		edge(alpha, gamma, false, ""),
		edge(gamma, beta, false, ""),
	)

	p, err := Resolve(g, alpha, beta, ResolveOptions{})
	require.NoError(t, err)
	assert.Equal(t, "alpha -> gamma -> beta", p.String())
	assert.Equal(t, 2, p.Cost())
	assert.False(t, p.Lossy())
}

func TestResolve_TieBreakIsDeterministic(t *testing.T) {
	converters := []Converter{
		edge(alpha, gamma, false, ""),
		edge(gamma, delta, false, ""),
		edge(alpha, beta, false, ""),
		edge(beta, delta, false, ""),
	}
	reversed := make([]Converter, len(converters))
	for i, c := range converters {
		reversed[len(converters)-1-i] = c
	}

	for i := 0; i < 20; i++ {
		assert.Equal(t, "alpha -> beta -> delta", pathString(t, graphOf(converters...), alpha, delta, ResolveOptions{}))
		assert.Equal(t, "alpha -> beta -> delta", pathString(t, graphOf(reversed...), alpha, delta, ResolveOptions{}))
	}
}

func TestResolve_TieBreakComparesWholeSequence(t *testing.T) {
	// Both routes cost 3. They first differ at the second node, which
	// decides, even though their third nodes order the other way.
	g := graphOf(
		edge(alpha, beta, false, ""),
		edge(beta, epsilon, false, ""),
		edge(epsilon, target, false, ""),
		edge(alpha, delta, false, ""),
		edge(delta, gamma, false, ""),
		edge(gamma, target, false, ""),
	)
	assert.Equal(t, "alpha -> beta -> epsilon -> target", pathString(t, g, alpha, target, ResolveOptions{}))
	assert.Equal(t, "alpha -> beta -> epsilon -> target", pathString(t, g, alpha, target, ResolveOptions{MaxHops: 3}))
}

func TestResolve_MaxHops(t *testing.T) {
	g := graphOf(
		edge(alpha, beta, false, ""),
		edge(beta, gamma, false, ""),
		edge(gamma, target, false, ""),
		edge(alpha, target, true, ""),
	)

	assert.Equal(t, "alpha -> beta -> gamma -> target", pathString(t, g, alpha, target, ResolveOptions{}))
	assert.Equal(t, "alpha -> target", pathString(t, g, alpha, target, ResolveOptions{MaxHops: 1}))
	assert.Equal(t, "alpha -> target", pathString(t, g, alpha, target, ResolveOptions{MaxHops: 2}))
	assert.Equal(t, "alpha -> beta -> gamma -> target", pathString(t, g, alpha, target, ResolveOptions{MaxHops: 3}))
}

func TestResolve_MaxHopsIsNotAPostFilter(t *testing.T) {
	// The cheapest route to gamma has two hops, so a search that keeps only
	// the best label per node reaches target in three. The bounded search
	// must still find the two-hop route through the lossy edge.
	g := graphOf(
		edge(alpha, beta, false, ""),
		edge(beta, gamma, false, ""),
		edge(alpha, gamma, true, ""),
		edge(gamma, target, false, ""),
	)

	p, err := Resolve(g, alpha, target, ResolveOptions{})
	require.NoError(t, err)
	assert.Equal(t, 3, p.Len())

	p, err = Resolve(g, alpha, target, ResolveOptions{MaxHops: 2})
	require.NoError(t, err)
	assert.Equal(t, "alpha -> gamma -> target", p.String())
	assert.Equal(t, 12, p.Cost())

	_, err = Resolve(g, alpha, target, ResolveOptions{MaxHops: 1})
	require.Error(t, err)
	var nf *ConversionPathNotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, 1, nf.MaxHops)
	assert.Equal(t, []programs.ProgramType{beta, gamma}, nf.Reachable)
}

func TestResolve_Forbidden(t *testing.T) {
	g := graphOf(
		edge(alpha, beta, false, ""),
		edge(beta, target, false, ""),
		edge(alpha, gamma, false, ""),
		edge(gamma, target, false, ""),
	)

	assert.Equal(t, "alpha -> beta -> target", pathString(t, g, alpha, target, ResolveOptions{}))
	assert.Equal(t, "alpha -> gamma -> target", pathString(t, g, alpha, target, ResolveOptions{Forbidden: []programs.ProgramType{beta}}))
	assert.Equal(t, "alpha -> gamma -> target", pathString(t, g, alpha, target, ResolveOptions{Forbidden: []programs.ProgramType{beta}, MaxHops: 2}))

	_, err := Resolve(g, alpha, target, ResolveOptions{Forbidden: []programs.ProgramType{beta, gamma}})
	require.Error(t, err)
	assert.True(t, IsPathNotFound(err))

	_, err = Resolve(g, alpha, target, ResolveOptions{Forbidden: []programs.ProgramType{target}})
	assert.True(t, IsPathNotFound(err))
}

func TestResolve_NotFound(t *testing.T) {
	g := graphOf(
		edge(alpha, beta, false, ""),
		edge(beta, gamma, false, ""),
		edge(delta, target, false, ""),
	)

	_, err := Resolve(g, alpha, target, ResolveOptions{})
	require.Error(t, err)

	var nf *ConversionPathNotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, alpha, nf.Source)
	assert.Equal(t, target, nf.Target)
	assert.Equal(t, []programs.ProgramType{beta, gamma}, nf.Reachable)
	assert.Equal(t, qerrors.ErrCodePathNotFound, qerrors.CodeOf(err))
	assert.True(t, qerrors.IsUnavailable(err))
	assert.Contains(t, err.Error(), "reachable: [beta, gamma]")

	_, err = Resolve(g, "unknown", alpha, ResolveOptions{})
	require.ErrorAs(t, err, &nf)
	assert.Empty(t, nf.Reachable)
}

func TestResolve_CompleteGivenConnectivity(t *testing.T) {
	g := graphOf(
		edge(alpha, beta, false, ""),
		edge(beta, alpha, false, ""),
		edge(beta, gamma, true, ""),
		edge(gamma, delta, false, ""),
		edge(delta, beta, false, ""),
		edge(epsilon, alpha, false, ""),
	)

	for _, s := range g.Nodes() {
		reach := map[programs.ProgramType]bool{}
		for _, n := range g.Reachable(s) {
			reach[n] = true
		}
		for _, d := range g.Nodes() {
			if s == d {
				continue
			}
			p, err := Resolve(g, s, d, ResolveOptions{})
			if reach[d] {
				require.NoError(t, err, "%s -> %s", s, d)
				assert.Equal(t, s, p.Nodes()[0])
				assert.Equal(t, d, p.Nodes()[p.Len()])
				for i := 1; i < p.Len(); i++ {
					assert.Equal(t, p.Edges[i-1].Target, p.Edges[i].Source, "path must chain")
				}
			} else {
				assert.True(t, IsPathNotFound(err), "%s -> %s", s, d)
			}
		}
	}
}

func TestAllPaths(t *testing.T) {
	g := graphOf(
		edge(alpha, beta, false, ""),
		edge(beta, target, false, ""),
		edge(alpha, target, true, ""),
		edge(alpha, gamma, false, ""),
		edge(gamma, beta, false, ""),
	)

	paths := AllPaths(g, alpha, target, 0)
	require.Len(t, paths, 3)
	assert.Equal(t, "alpha -> beta -> target", paths[0].String())
	assert.Equal(t, "alpha -> gamma -> beta -> target", paths[1].String())
	assert.Equal(t, "alpha -> target", paths[2].String())

	paths = AllPaths(g, alpha, target, 2)
	require.Len(t, paths, 2)

	assert.Len(t, AllPaths(g, alpha, alpha, 0), 1)
	assert.Empty(t, AllPaths(g, target, alpha, 0))
}
