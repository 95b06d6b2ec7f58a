package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/qbraid/qbraid-go/pkg/programs"
	"github.com/qbraid/qbraid-go/pkg/transpiler"
)

type traceOutput struct {
	Index      int    `json:"index"`
	Source     string `json:"source"`
	Target     string `json:"target"`
	Converter  string `json:"converter"`
	DurationMS int64  `json:"duration_ms"`
	Program    string `json:"program,omitempty"`
}

type transpileOutput struct {
	Source     string        `json:"source"`
	Target     string        `json:"target"`
	Path       string        `json:"path"`
	Hops       int           `json:"hops"`
	Lossy      bool          `json:"lossy"`
	DurationMS int64         `json:"duration_ms"`
	Program    string        `json:"program"`
	Trace      []traceOutput `json:"trace,omitempty"`
}

func newTranspileCommand() *cobra.Command {
	var (
		from    string
		to      string
		inFile  string
		outFile string
		maxHops int
		forbid  []string
		trace   bool
	)

	cmd := &cobra.Command{
		Use:   "transpile",
		Short: "Convert a program to another program type",
		Long: `Convert a program by executing the cheapest conversion path to the target type.

The path:
  - Uses only converters whose extras are installed
  - Prefers lossless hops, then fewer hops
  - Fails on the first converter that errors`,
		Example: `  # Convert OpenQASM 2 from stdin to OpenQASM 3
  qbraid transpile --to qasm3 < bell.qasm

  # Convert a file, avoiding the braket representation
  qbraid transpile --in bell.qasm --to cirq --forbid braket

  # Show every intermediate program
  qbraid transpile --in bell.qasm --to pyquil --trace --json`,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			op := a.start(cmd.Context(), "transpile")
			defer func() { op.End(err) }()
			ctx := op.Ctx

			program, source, err := readProgram(a.catalog, inFile, from)
			if err != nil {
				return err
			}
			target, err := a.catalog.Resolve(to)
			if err != nil {
				return err
			}
			forbidden, err := resolveTypes(a.catalog, forbid)
			if err != nil {
				return err
			}

			opts := []transpiler.CallOption{transpiler.Forbid(forbidden...)}
			if maxHops > 0 {
				opts = append(opts, transpiler.MaxHops(maxHops))
			}
			if trace {
				opts = append(opts, transpiler.Trace())
			}

			start := time.Now()
			res, err := a.transpiler.TranspileWithResult(ctx, program, target, opts...)
			a.recordConversion(ctx, source, target, res, err, time.Since(start))
			if err != nil {
				return err
			}

			op.Logger.WithConversion(source.String(), target.String()).
				WithField("path", res.Path.String()).
				Debug("Program converted")

			if jsonOutput {
				return printTranspile(a, source, res)
			}
			if trace {
				for _, e := range res.Trace {
					fmt.Fprintf(os.Stderr, "hop %d: %s -> %s via %s (%s)\n",
						e.Index, e.Source, e.Target, e.Converter, e.Duration)
				}
			}
			return writeProgram(a.catalog, res.Program, outFile)
		},
	}

	cmd.Flags().StringVarP(&from, "from", "f", "", "source program type (detected for OpenQASM)")
	cmd.Flags().StringVarP(&to, "to", "t", "", "target program type")
	cmd.Flags().StringVarP(&inFile, "in", "i", "", "input file (default stdin)")
	cmd.Flags().StringVarP(&outFile, "out", "o", "", "output file (default stdout)")
	cmd.Flags().IntVar(&maxHops, "max-hops", 0, "maximum number of conversions")
	cmd.Flags().StringSliceVar(&forbid, "forbid", nil, "program types the path must not pass through")
	cmd.Flags().BoolVar(&trace, "trace", false, "record intermediate programs")
	cmd.MarkFlagRequired("to")

	return cmd
}

func printTranspile(a *app, source programs.ProgramType, res *transpiler.Result) error {
	data, _, err := a.catalog.Encode(res.Program)
	if err != nil {
		return err
	}
	out := transpileOutput{
		Source:     source.String(),
		Target:     string(res.Path.Target),
		Path:       res.Path.String(),
		Hops:       res.Path.Len(),
		Lossy:      res.Path.Lossy(),
		DurationMS: res.Duration.Milliseconds(),
		Program:    string(data),
	}
	for _, e := range res.Trace {
		entry := traceOutput{
			Index:      e.Index,
			Source:     e.Source,
			Target:     e.Target,
			Converter:  e.Converter,
			DurationMS: e.Duration.Milliseconds(),
		}
		if encoded, _, err := a.catalog.Encode(e.Program); err == nil {
			entry.Program = string(encoded)
		}
		out.Trace = append(out.Trace, entry)
	}
	return printJSON(out)
}
