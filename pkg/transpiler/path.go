package transpiler

import (
	"strings"

	"github.com/qbraid/qbraid-go/pkg/programs"
)

// Path is an ordered chain of edges from Source to Target. An empty path
// is the identity conversion.
type Path struct {
	Source programs.ProgramType
	Target programs.ProgramType
	Edges  []Edge
}

// Len returns the number of hops.
func (p Path) Len() int {
	return len(p.Edges)
}

// IsIdentity reports whether the path performs no conversion.
func (p Path) IsIdentity() bool {
	return len(p.Edges) == 0
}

// Cost returns the sum of edge weights.
func (p Path) Cost() int {
	cost := 0
	for _, e := range p.Edges {
		cost += e.Weight
	}
	return cost
}

// Lossy reports whether any hop is lossy.
func (p Path) Lossy() bool {
	for _, e := range p.Edges {
		if e.Converter.Lossy {
			return true
		}
	}
	return false
}

// Nodes returns the visited types including both endpoints.
func (p Path) Nodes() []programs.ProgramType {
	out := make([]programs.ProgramType, 0, len(p.Edges)+1)
	out = append(out, p.Source)
	for _, e := range p.Edges {
		out = append(out, e.Target)
	}
	return out
}

// Converters returns the converters in hop order.
func (p Path) Converters() []Converter {
	out := make([]Converter, len(p.Edges))
	for i, e := range p.Edges {
		out[i] = e.Converter
	}
	return out
}

// Extras returns the distinct extras required along the path, in hop order.
func (p Path) Extras() []string {
	seen := map[string]bool{}
	var out []string
	for _, e := range p.Edges {
		x := e.Converter.RequiresExtra
		if x == "" || seen[x] {
			continue
		}
		seen[x] = true
		out = append(out, x)
	}
	return out
}

// String renders the path as "a -> b -> c".
func (p Path) String() string {
	nodes := p.Nodes()
	parts := make([]string, len(nodes))
	for i, n := range nodes {
		parts[i] = string(n)
	}
	return strings.Join(parts, " -> ")
}
