package transpiler

import (
	"fmt"
	"sort"
	"strings"

	"github.com/qbraid/qbraid-go/pkg/programs"
	"github.com/qbraid/qbraid-go/pkg/qerrors"
)

// DefaultLossyPenalty is added to the weight of lossy edges.
const DefaultLossyPenalty = 10

// GraphOptions configures graph construction.
type GraphOptions struct {
	// LossyPenalty is added to the base weight of lossy edges. Negative
	// values are treated as zero.
	LossyPenalty int
}

// DefaultGraphOptions returns the default graph options.
func DefaultGraphOptions() GraphOptions {
	return GraphOptions{LossyPenalty: DefaultLossyPenalty}
}

// Edge is one directed edge of the conversion graph.
type Edge struct {
	Source    programs.ProgramType
	Target    programs.ProgramType
	Weight    int
	Converter Converter
}

// String implements fmt.Stringer.
func (e Edge) String() string {
	return fmt.Sprintf("%s->%s", e.Source, e.Target)
}

// Graph is an immutable directed weighted graph of program types.
type Graph struct {
	// nodes is the sorted node list.
	nodes []programs.ProgramType

	// nodeSet indexes nodes.
	nodeSet map[programs.ProgramType]bool

	// adjacency maps a node to its outgoing edges sorted by target.
	adjacency map[programs.ProgramType][]Edge

	// edgeCount is the total number of edges.
	edgeCount int
}

// BuildGraph materializes a graph from converters. Nodes are every type
// seen as a source or target. When several converters connect the same
// pair, the lowest-weight one is kept, and the first registered among equals.
func BuildGraph(converters []Converter, opts GraphOptions) *Graph {
	penalty := opts.LossyPenalty
	if penalty < 0 {
		penalty = 0
	}

	g := &Graph{
		nodeSet:   make(map[programs.ProgramType]bool),
		adjacency: make(map[programs.ProgramType][]Edge),
	}

	best := make(map[edgeKey]Edge)
	var order []edgeKey

	for _, c := range converters {
		g.addNode(c.Source)
		g.addNode(c.Target)

		weight := 1
		if c.Lossy {
			weight += penalty
		}

		key := edgeKey{source: c.Source, target: c.Target}
		existing, seen := best[key]
		if !seen {
			order = append(order, key)
		}
		if !seen || weight < existing.Weight {
			best[key] = Edge{Source: c.Source, Target: c.Target, Weight: weight, Converter: c}
		}
	}

	for _, key := range order {
		e := best[key]
		g.adjacency[e.Source] = append(g.adjacency[e.Source], e)
		g.edgeCount++
	}
	for n := range g.adjacency {
		edges := g.adjacency[n]
		sort.Slice(edges, func(i, j int) bool { return edges[i].Target < edges[j].Target })
	}

	sort.Slice(g.nodes, func(i, j int) bool { return g.nodes[i] < g.nodes[j] })
	return g
}

func (g *Graph) addNode(n programs.ProgramType) {
	if g.nodeSet[n] {
		return
	}
	g.nodeSet[n] = true
	g.nodes = append(g.nodes, n)
}

// Nodes returns the graph's program types, sorted.
func (g *Graph) Nodes() []programs.ProgramType {
	return append([]programs.ProgramType(nil), g.nodes...)
}

// HasNode reports whether the type is in the graph.
func (g *Graph) HasNode(n programs.ProgramType) bool {
	return g.nodeSet[n]
}

// NumEdges returns the number of edges.
func (g *Graph) NumEdges() int {
	return g.edgeCount
}

// Edges returns every edge sorted by (source, target).
func (g *Graph) Edges() []Edge {
	out := make([]Edge, 0, g.edgeCount)
	for _, n := range g.nodes {
		out = append(out, g.adjacency[n]...)
	}
	return out
}

// Edge returns the edge between two types.
func (g *Graph) Edge(source, target programs.ProgramType) (Edge, bool) {
	for _, e := range g.adjacency[source] {
		if e.Target == target {
			return e, true
		}
	}
	return Edge{}, false
}

// Successors returns the outgoing edges of a node sorted by target.
func (g *Graph) Successors(n programs.ProgramType) []Edge {
	return append([]Edge(nil), g.adjacency[n]...)
}

// Reachable returns the types reachable from a node in one or more hops,
// sorted. The node itself is included only if it lies on a cycle.
func (g *Graph) Reachable(from programs.ProgramType) []programs.ProgramType {
	return g.reachable(from, nil, 0)
}

// reachable walks the graph breadth first, skipping forbidden nodes and
// stopping at maxHops when positive.
func (g *Graph) reachable(from programs.ProgramType, forbidden map[programs.ProgramType]bool, maxHops int) []programs.ProgramType {
	seen := map[programs.ProgramType]bool{}
	visited := map[programs.ProgramType]bool{from: true}
	frontier := []programs.ProgramType{from}

	for depth := 1; len(frontier) > 0 && (maxHops <= 0 || depth <= maxHops); depth++ {
		var next []programs.ProgramType
		for _, n := range frontier {
			for _, e := range g.adjacency[n] {
				if forbidden[e.Target] {
					continue
				}
				seen[e.Target] = true
				if !visited[e.Target] {
					visited[e.Target] = true
					next = append(next, e.Target)
				}
			}
		}
		frontier = next
	}

	out := make([]programs.ProgramType, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Validate checks that every edge references a node of the graph.
func (g *Graph) Validate() error {
	count := 0
	for source, edges := range g.adjacency {
		if !g.nodeSet[source] {
			return qerrors.NewPermanent(fmt.Sprintf("edge references non-existent node: %s", source), nil).
				WithCode(qerrors.ErrCodeInternal)
		}
		for _, e := range edges {
			if !g.nodeSet[e.Target] {
				return qerrors.NewPermanent(fmt.Sprintf("edge references non-existent node: %s", e.Target), nil).
					WithCode(qerrors.ErrCodeInternal)
			}
			if e.Weight < 1 {
				return qerrors.NewPermanent(fmt.Sprintf("edge %s has non-positive weight %d", e, e.Weight), nil).
					WithCode(qerrors.ErrCodeInternal)
			}
			count++
		}
	}
	if count != g.edgeCount {
		return qerrors.NewPermanent("graph edge count mismatch", nil).
			WithCode(qerrors.ErrCodeInternal)
	}
	return nil
}

// ToDOT generates a DOT representation of the graph. Lossy edges are
// dashed and labeled with their weight.
func (g *Graph) ToDOT() string {
	var sb strings.Builder

	sb.WriteString("digraph ConversionGraph {\n")
	sb.WriteString("  rankdir=LR;\n")
	sb.WriteString("  node [shape=box, style=rounded];\n\n")

	for _, n := range g.nodes {
		sb.WriteString(fmt.Sprintf("  %q;\n", string(n)))
	}
	sb.WriteString("\n")

	for _, e := range g.Edges() {
		style := "style=solid"
		if e.Converter.Lossy {
			style = "style=dashed, color=red"
		}
		sb.WriteString(fmt.Sprintf("  %q -> %q [label=\"%d\", %s];\n",
			string(e.Source), string(e.Target), e.Weight, style))
	}

	sb.WriteString("}\n")
	return sb.String()
}
