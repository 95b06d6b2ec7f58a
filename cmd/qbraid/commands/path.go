package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/qbraid/qbraid-go/pkg/transpiler"
)

type pathOutput struct {
	Path       string   `json:"path"`
	Hops       int      `json:"hops"`
	Cost       int      `json:"cost"`
	Lossy      bool     `json:"lossy"`
	Converters []string `json:"converters"`
	Extras     []string `json:"extras,omitempty"`
}

func toPathOutput(p transpiler.Path) pathOutput {
	out := pathOutput{
		Path:       p.String(),
		Hops:       p.Len(),
		Cost:       p.Cost(),
		Lossy:      p.Lossy(),
		Converters: []string{},
		Extras:     p.Extras(),
	}
	for _, c := range p.Converters() {
		out.Converters = append(out.Converters, c.DisplayName())
	}
	return out
}

func newPathCommand() *cobra.Command {
	var (
		maxHops int
		forbid  []string
		all     bool
	)

	cmd := &cobra.Command{
		Use:   "path SOURCE TARGET",
		Short: "Show the conversion path between two program types",
		Long: `Resolve the path transpile would take between two program types without
converting anything. With --all, list every simple path up to --max-hops.`,
		Example: `  # Cheapest path
  qbraid path qasm2 cirq

  # Every path of at most three hops
  qbraid path qasm2 pyquil --all --max-hops 3`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			types, err := resolveTypes(a.catalog, args)
			if err != nil {
				return err
			}
			source, target := types[0], types[1]

			var paths []transpiler.Path
			if all {
				hops := maxHops
				if hops <= 0 {
					hops = a.cfg.Transpiler.MaxHops
				}
				paths, err = a.transpiler.AllPaths(ctx, source, target, hops)
				if err != nil {
					return err
				}
			} else {
				forbidden, err := resolveTypes(a.catalog, forbid)
				if err != nil {
					return err
				}
				opts := []transpiler.CallOption{transpiler.Forbid(forbidden...)}
				if maxHops > 0 {
					opts = append(opts, transpiler.MaxHops(maxHops))
				}
				p, err := a.transpiler.ConversionPath(ctx, source, target, opts...)
				if err != nil {
					return err
				}
				paths = []transpiler.Path{p}
			}

			if jsonOutput {
				out := make([]pathOutput, len(paths))
				for i, p := range paths {
					out[i] = toPathOutput(p)
				}
				return printJSON(out)
			}
			for _, p := range paths {
				lossy := ""
				if p.Lossy() {
					lossy = " (lossy)"
				}
				fmt.Printf("%s  [hops=%d cost=%d]%s\n", p, p.Len(), p.Cost(), lossy)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&maxHops, "max-hops", 0, "maximum number of conversions")
	cmd.Flags().StringSliceVar(&forbid, "forbid", nil, "program types the path must not pass through")
	cmd.Flags().BoolVar(&all, "all", false, "list every simple path")

	return cmd
}
