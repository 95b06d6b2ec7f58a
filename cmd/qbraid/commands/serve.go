package commands

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/qbraid/qbraid-go/pkg/plugins"
	"github.com/qbraid/qbraid-go/pkg/qerrors"
	"github.com/qbraid/qbraid-go/pkg/telemetry"
)

func newServeCommand() *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the metrics endpoint and hot reload",
		Long: `Run as a long-lived process.

A persistent job store is opened and checked at startup. While running:
  - Prometheus metrics are served on --listen
  - The plugin directory is watched and the conversion graph rebuilt on change
  - Policy files are watched and reloaded on change`,
		Example: `  # Serve metrics on the configured address
  qbraid serve

  # Serve metrics on a custom address
  qbraid serve --listen :9100`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			a.tel.Events.Subscribe(func(e telemetry.Event) {
				a.logger.Info().
					Str("type", e.Type).
					Str("source", e.Source).
					Str("job_id", e.JobID).
					Msg(e.Message)
			}, telemetry.FilterByLevel(telemetry.EventLevelInfo))

			if a.persistent() {
				store, err := a.openStore(ctx)
				if err != nil {
					return err
				}
				if err := store.HealthCheck(ctx); err != nil {
					return qerrors.NewUnavailable("job store unreachable", err)
				}
			}

			// Build once so a broken plugin set fails at startup.
			if err := a.transpiler.Rebuild(ctx); err != nil {
				return err
			}

			if a.cfg.Plugins.Watch && a.cfg.Plugins.Dir != "" {
				w := plugins.NewWatcher(a.plugins, a.cfg.Plugins.Debounce, a.transpiler.Rebuild)
				if err := w.Start(ctx, a.cfg.Plugins.Dir); err != nil {
					return err
				}
				defer func() { _ = w.Stop() }()
			}
			if a.policy != nil && len(a.cfg.Policy.Paths) > 0 {
				if err := a.policy.Watch(ctx); err != nil {
					return err
				}
			}

			g, gctx := errgroup.WithContext(ctx)

			if a.cfg.Telemetry.MetricsEnabled {
				server := a.tel.Metrics.NewMetricsServer()
				if listen != "" {
					server.Addr = listen
				}
				g.Go(func() error {
					a.logger.Info().Str("addr", server.Addr).Msg("Serving metrics")
					if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						return err
					}
					return nil
				})
				g.Go(func() error {
					<-gctx.Done()
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					return server.Shutdown(shutdownCtx)
				})
			}

			g.Go(func() error {
				<-gctx.Done()
				a.logger.Info().Msg("Shutting down")
				return nil
			})

			return g.Wait()
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "metrics listen address (default from config)")

	return cmd
}
