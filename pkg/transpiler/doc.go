// Package transpiler converts quantum programs between representations.
//
// Converters are registered in a Registry as directed (source, target)
// edges, optionally lossy and optionally gated on an installed extra. The
// available converters form a weighted Graph: every edge costs 1, and lossy
// edges add a penalty so a multi-hop lossless route is preferred over a
// single lossy hop. Resolve finds the cheapest Path with a deterministic
// tie-break, and the Executor applies it hop by hop, stopping at the first
// failure.
//
// Transpiler ties these together behind Transpile:
//
//	reg := transpiler.NewRegistry()
//	conversions.Register(reg)
//	t := transpiler.New(reg, conversions.DefaultCatalog())
//	out, err := t.Transpile(ctx, bell, programs.Qiskit)
//
// The graph is rebuilt lazily when the registry changes and swapped
// atomically, so concurrent callers never see a partial graph.
package transpiler
