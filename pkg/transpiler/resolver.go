package transpiler

import (
	"sort"

	"github.com/qbraid/qbraid-go/pkg/programs"
)

// ResolveOptions constrains a path query.
type ResolveOptions struct {
	// MaxHops bounds the number of conversions. Zero means unbounded.
	MaxHops int

	// Forbidden lists types the path must not visit.
	Forbidden []programs.ProgramType
}

// label is a candidate route to a node: its cost and the visited node
// sequence. Labels are ordered by cost, then lexicographically by sequence.
type label struct {
	cost  int
	nodes []programs.ProgramType
	edges []Edge
}

func (l *label) less(other *label) bool {
	if other == nil {
		return true
	}
	if l.cost != other.cost {
		return l.cost < other.cost
	}
	for i := 0; i < len(l.nodes) && i < len(other.nodes); i++ {
		if l.nodes[i] != other.nodes[i] {
			return l.nodes[i] < other.nodes[i]
		}
	}
	return len(l.nodes) < len(other.nodes)
}

func (l *label) extend(e Edge) *label {
	nodes := make([]programs.ProgramType, len(l.nodes)+1)
	copy(nodes, l.nodes)
	nodes[len(l.nodes)] = e.Target
	edges := make([]Edge, len(l.edges)+1)
	copy(edges, l.edges)
	edges[len(l.edges)] = e
	return &label{cost: l.cost + e.Weight, nodes: nodes, edges: edges}
}

// Resolve returns the lowest-cost path from source to target. Among paths
// of equal cost the one whose node sequence is lexicographically smallest
// wins, so the result is deterministic for a given graph.
//
// A source equal to target resolves to the empty path even when the type is
// not in the graph.
func Resolve(g *Graph, source, target programs.ProgramType, opts ResolveOptions) (Path, error) {
	if source == target {
		return Path{Source: source, Target: target}, nil
	}

	forbidden := make(map[programs.ProgramType]bool, len(opts.Forbidden))
	for _, f := range opts.Forbidden {
		forbidden[f] = true
	}

	var best *label
	if g != nil && !forbidden[source] && !forbidden[target] && g.HasNode(source) && g.HasNode(target) {
		if opts.MaxHops > 0 {
			best = boundedSearch(g, source, target, forbidden, opts.MaxHops)
		} else {
			best = dijkstra(g, source, target, forbidden)
		}
	}

	if best == nil {
		return Path{}, notFound(g, source, target, opts, forbidden)
	}
	return Path{Source: source, Target: target, Edges: best.edges}, nil
}

// dijkstra is a label-setting search over (cost, sequence) labels. The
// graphs are small, so the unsettled minimum is found by a linear scan.
func dijkstra(g *Graph, source, target programs.ProgramType, forbidden map[programs.ProgramType]bool) *label {
	labels := map[programs.ProgramType]*label{
		source: {nodes: []programs.ProgramType{source}},
	}
	settled := map[programs.ProgramType]bool{}

	for {
		var current programs.ProgramType
		var cl *label
		for _, n := range g.nodes {
			if settled[n] {
				continue
			}
			if l := labels[n]; l != nil && l.less(cl) {
				current, cl = n, l
			}
		}
		if cl == nil {
			return nil
		}
		if current == target {
			return cl
		}
		settled[current] = true

		for _, e := range g.adjacency[current] {
			if settled[e.Target] || forbidden[e.Target] {
				continue
			}
			candidate := cl.extend(e)
			if candidate.less(labels[e.Target]) {
				labels[e.Target] = candidate
			}
		}
	}
}

// boundedSearch finds the best route of at most maxHops edges. Layer k
// holds the best label per node over routes of exactly k edges, so a
// cheaper route that is too long never hides a valid shorter one.
func boundedSearch(g *Graph, source, target programs.ProgramType, forbidden map[programs.ProgramType]bool, maxHops int) *label {
	layer := map[programs.ProgramType]*label{
		source: {nodes: []programs.ProgramType{source}},
	}
	var best *label

	for hop := 1; hop <= maxHops && len(layer) > 0; hop++ {
		next := map[programs.ProgramType]*label{}
		for _, n := range g.nodes {
			l := layer[n]
			if l == nil {
				continue
			}
			for _, e := range g.adjacency[n] {
				if forbidden[e.Target] || e.Target == source {
					continue
				}
				candidate := l.extend(e)
				if candidate.less(next[e.Target]) {
					next[e.Target] = candidate
				}
			}
		}
		if l := next[target]; l != nil && l.less(best) {
			best = l
		}
		delete(next, target)
		layer = next
	}
	return best
}

func notFound(g *Graph, source, target programs.ProgramType, opts ResolveOptions, forbidden map[programs.ProgramType]bool) error {
	err := &ConversionPathNotFoundError{
		Source:    source,
		Target:    target,
		MaxHops:   opts.MaxHops,
		Forbidden: append([]programs.ProgramType(nil), opts.Forbidden...),
	}
	sort.Slice(err.Forbidden, func(i, j int) bool { return err.Forbidden[i] < err.Forbidden[j] })
	if g != nil && !forbidden[source] {
		for _, n := range g.reachable(source, forbidden, opts.MaxHops) {
			if n != source {
				err.Reachable = append(err.Reachable, n)
			}
		}
	}
	return err
}

// AllPaths enumerates the simple paths from source to target with at most
// maxHops edges (unbounded when zero), ordered by cost then sequence.
func AllPaths(g *Graph, source, target programs.ProgramType, maxHops int) []Path {
	if source == target {
		return []Path{{Source: source, Target: target}}
	}
	if g == nil || !g.HasNode(source) || !g.HasNode(target) {
		return nil
	}

	var found []*label
	onPath := map[programs.ProgramType]bool{source: true}

	var walk func(l *label, n programs.ProgramType)
	walk = func(l *label, n programs.ProgramType) {
		if maxHops > 0 && len(l.edges) >= maxHops {
			return
		}
		for _, e := range g.adjacency[n] {
			if onPath[e.Target] {
				continue
			}
			next := l.extend(e)
			if e.Target == target {
				found = append(found, next)
				continue
			}
			onPath[e.Target] = true
			walk(next, e.Target)
			onPath[e.Target] = false
		}
	}
	walk(&label{nodes: []programs.ProgramType{source}}, source)

	sort.SliceStable(found, func(i, j int) bool { return found[i].less(found[j]) })
	out := make([]Path, len(found))
	for i, l := range found {
		out[i] = Path{Source: source, Target: target, Edges: l.edges}
	}
	return out
}
