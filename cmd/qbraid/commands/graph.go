package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

type edgeOutput struct {
	Source    string `json:"source"`
	Target    string `json:"target"`
	Converter string `json:"converter"`
	Weight    int    `json:"weight"`
	Lossy     bool   `json:"lossy"`
	Extra     string `json:"extra,omitempty"`
}

func newGraphCommand() *cobra.Command {
	var dot bool

	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Show the conversion graph",
		Long: `Show the conversion graph built from the converters whose extras are
installed. Lossy edges carry the configured penalty as their weight.`,
		Example: `  # List edges
  qbraid graph

  # Render with graphviz
  qbraid graph --dot | dot -Tsvg > graph.svg`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			g, err := a.transpiler.Graph(ctx)
			if err != nil {
				return err
			}
			if dot {
				fmt.Print(g.ToDOT())
				return nil
			}

			edges := g.Edges()
			if jsonOutput {
				out := make([]edgeOutput, len(edges))
				for i, e := range edges {
					out[i] = edgeOutput{
						Source:    string(e.Source),
						Target:    string(e.Target),
						Converter: e.Converter.DisplayName(),
						Weight:    e.Weight,
						Lossy:     e.Converter.Lossy,
						Extra:     e.Converter.RequiresExtra,
					}
				}
				return printJSON(out)
			}

			fmt.Printf("%d program types, %d converters\n", len(g.Nodes()), g.NumEdges())
			for _, e := range edges {
				fmt.Printf("  %-12s -> %-12s %-28s weight=%d\n", e.Source, e.Target, e.Converter.DisplayName(), e.Weight)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dot, "dot", false, "print the graph in DOT format")

	return cmd
}

func newExtrasCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "extras",
		Short: "List installed extras",
		Long: `List the extras reported by the capability probe. Extras gate optional
converters, including plugin converters which require "plugin:<name>".`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			extras, err := a.transpiler.Extras(ctx)
			if err != nil {
				return err
			}
			names := extras.Names()
			if jsonOutput {
				return printJSON(names)
			}
			for _, n := range names {
				fmt.Println(n)
			}
			return nil
		},
	}
}
