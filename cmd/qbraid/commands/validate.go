package commands

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/qbraid/qbraid-go/pkg/config"
	"github.com/qbraid/qbraid-go/pkg/qerrors"
)

func newValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [path]",
		Short: "Validate a configuration file",
		Long: `Validate a configuration file and everything it references.

This command checks:
  - YAML or CUE syntax and schema conformance
  - Field constraints and duplicate device ids
  - Plugin manifests, checksums and Starlark scripts
  - Rego policies
  - Device profiles against the conversion graph`,
		Example: `  # Validate the file named by $QBRAID_CONFIG
  qbraid validate

  # Validate a specific file
  qbraid validate ./qbraid.yaml`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if len(args) > 0 {
				configPath = args[0]
			}

			log.Debug().Str("path", configPath).Msg("Validating configuration")

			a, err := newApp(ctx)
			if err != nil {
				var loadErr *config.LoadError
				if errors.As(err, &loadErr) {
					for _, ve := range loadErr.Errors {
						fmt.Printf("  %s\n", ve.String())
					}
					return qerrors.NewInvalid(fmt.Sprintf("%d configuration problem(s)", len(loadErr.Errors)), err).
						WithCode(qerrors.ErrCodeValidation)
				}
				return err
			}
			defer a.close()

			g, err := a.transpiler.Graph(ctx)
			if err != nil {
				return err
			}
			if err := g.Validate(); err != nil {
				return err
			}
			fleet, err := a.fleet(ctx)
			if err != nil {
				return err
			}

			fmt.Printf("Configuration valid: %d program types, %d converters, %d plugins, %d devices\n",
				len(g.Nodes()), g.NumEdges(), len(a.plugins.Plugins()), len(fleet.Devices()))
			return nil
		},
	}
}
