package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/qbraid/qbraid-go/pkg/compiler"
)

func newRebaseCommand() *cobra.Command {
	var (
		target    string
		maxQubits int
		from      string
		inFile    string
		outFile   string
		stats     bool
	)

	cmd := &cobra.Command{
		Use:   "rebase",
		Short: "Rewrite a program into a target gate set",
		Long: `Rewrite a program so that it only uses the gates of a target.

The target is either a named basis or a comma separated gate list. Every gate
outside the basis is decomposed, then the target's predicates are checked.`,
		Example: `  # Rebase onto the IBM basis {rz, sx, x, cx}
  qbraid rebase --target ibm < bell.qasm

  # Rebase onto a custom basis
  qbraid rebase --target h,t,tdg,cx --in circuit.qasm`,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			op := a.start(cmd.Context(), "rebase")
			defer func() { op.End(err) }()
			ctx := op.Ctx

			t, err := compiler.ParseTarget(target, maxQubits)
			if err != nil {
				return err
			}
			program, programType, err := readProgram(a.catalog, inFile, from)
			if err != nil {
				return err
			}

			circ, err := a.catalog.ToCircuit(program)
			if err != nil {
				return err
			}
			rebased, err := a.compiler.Rebase(ctx, circ, t)
			if err != nil {
				return err
			}
			out, err := a.catalog.FromCircuit(programType, rebased)
			if err != nil {
				return err
			}

			if stats {
				fmt.Fprintf(os.Stderr, "gates before: %v\n", circ.GateCounts())
				fmt.Fprintf(os.Stderr, "gates after:  %v\n", rebased.GateCounts())
			}
			return writeProgram(a.catalog, out, outFile)
		},
	}

	cmd.Flags().StringVarP(&target, "target", "t", "", fmt.Sprintf("target name %v or gate list", compiler.TargetNames()))
	cmd.Flags().IntVar(&maxQubits, "max-qubits", 0, "maximum circuit width (0 for unbounded)")
	cmd.Flags().StringVarP(&from, "from", "f", "", "program type (detected for OpenQASM)")
	cmd.Flags().StringVarP(&inFile, "in", "i", "", "input file (default stdin)")
	cmd.Flags().StringVarP(&outFile, "out", "o", "", "output file (default stdout)")
	cmd.Flags().BoolVar(&stats, "stats", false, "print gate counts before and after")
	cmd.MarkFlagRequired("target")

	return cmd
}
