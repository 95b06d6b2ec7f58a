package transpiler

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qbraid/qbraid-go/pkg/programs"
)

func TestBuildGraph_Weights(t *testing.T) {
	g := graphOf(
		edge(alpha, beta, false, ""),
		edge(beta, gamma, true, ""),
	)

	e, ok := g.Edge(alpha, beta)
	require.True(t, ok)
	assert.Equal(t, 1, e.Weight)

	e, ok = g.Edge(beta, gamma)
	require.True(t, ok)
	assert.Equal(t, 1+DefaultLossyPenalty, e.Weight)

	g = BuildGraph([]Converter{edge(beta, gamma, true, "")}, GraphOptions{LossyPenalty: -5})
	e, _ = g.Edge(beta, gamma)
	assert.Equal(t, 1, e.Weight, "negative penalty is clamped to zero")
}

func TestBuildGraph_DuplicatePairs(t *testing.T) {
	lossy := edge(alpha, beta, true, "")
	lossy.Name = "lossy"
	exact := edge(alpha, beta, false, "")
	exact.Name = "exact"
	second := edge(alpha, beta, false, "")
	second.Name = "second"

	g := graphOf(lossy, exact, second)
	require.Equal(t, 1, g.NumEdges())

	e, ok := g.Edge(alpha, beta)
	require.True(t, ok)
	assert.Equal(t, "exact", e.Converter.Name, "lowest weight wins, first registered among equals")
	require.NoError(t, g.Validate())
}

func TestGraph_Queries(t *testing.T) {
	g := graphOf(
		edge(gamma, alpha, false, ""),
		edge(alpha, gamma, false, ""),
		edge(alpha, beta, false, ""),
	)

	assert.Equal(t, []programs.ProgramType{alpha, beta, gamma}, g.Nodes())
	assert.True(t, g.HasNode(beta))
	assert.False(t, g.HasNode(delta))

	succ := g.Successors(alpha)
	require.Len(t, succ, 2)
	assert.Equal(t, beta, succ[0].Target)
	assert.Equal(t, gamma, succ[1].Target)

	edges := g.Edges()
	require.Len(t, edges, 3)
	assert.Equal(t, "alpha->beta", edges[0].String())
	assert.Equal(t, "gamma->alpha", edges[2].String())

	assert.Equal(t, []programs.ProgramType{alpha, beta, gamma}, g.Reachable(alpha), "alpha lies on a cycle")
	assert.Empty(t, g.Reachable(beta))
}

func TestGraph_ToDOT(t *testing.T) {
	g := graphOf(
		edge(alpha, beta, false, ""),
		edge(beta, gamma, true, ""),
	)

	dot := g.ToDOT()
	assert.True(t, strings.HasPrefix(dot, "digraph ConversionGraph {"))
	assert.Contains(t, dot, `"alpha" -> "beta" [label="1", style=solid];`)
	assert.Contains(t, dot, `"beta" -> "gamma" [label="11", style=dashed, color=red];`)
}
