package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/qbraid/qbraid-go/pkg/capabilities"
	"github.com/qbraid/qbraid-go/pkg/compiler"
	"github.com/qbraid/qbraid-go/pkg/config"
	"github.com/qbraid/qbraid-go/pkg/conversions"
	"github.com/qbraid/qbraid-go/pkg/devices"
	"github.com/qbraid/qbraid-go/pkg/plugins"
	"github.com/qbraid/qbraid-go/pkg/policy"
	"github.com/qbraid/qbraid-go/pkg/programs"
	"github.com/qbraid/qbraid-go/pkg/stores"
	"github.com/qbraid/qbraid-go/pkg/telemetry"
	"github.com/qbraid/qbraid-go/pkg/transpiler"
)

// app holds the components wired from one configuration.
type app struct {
	cfg        *config.Config
	tel        *telemetry.Telemetry
	logger     zerolog.Logger
	catalog    *programs.Catalog
	registry   *transpiler.Registry
	transpiler *transpiler.Transpiler
	compiler   *compiler.Compiler
	plugins    *plugins.Manager
	policy     *policy.Engine

	store *stores.SQLiteStore
}

// loadConfig reads --config, then $QBRAID_CONFIG, then the defaults, and
// applies --log-level.
func loadConfig(ctx context.Context) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.Load(ctx, configPath)
	} else {
		cfg, err = config.FromEnv(ctx)
	}
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Telemetry.LogLevel = logLevel
	}
	return cfg, nil
}

// newApp wires the catalog, registry, plugins, policy engine and
// transpiler from the configuration.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return nil, err
	}

	tc := cfg.TelemetryConfig()
	tc.Logging.Output = "stderr"
	tel, err := telemetry.NewTelemetry(tc)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	logger := tel.Logger.Zerolog()

	a := &app{
		cfg:      cfg,
		tel:      tel,
		logger:   logger,
		catalog:  conversions.DefaultCatalog(),
		registry: conversions.NewRegistry(),
	}
	a.compiler = compiler.New(
		compiler.WithLogger(tel.Logger.Component("compiler").Zerolog()),
		compiler.WithMetrics(tel.Metrics),
		compiler.WithTracer(tel.Tracer),
	)

	a.plugins = plugins.NewManager(a.registry, a.catalog, plugins.HostConfig{
		Timeout:          cfg.Plugins.Timeout,
		MemoryLimitPages: cfg.Plugins.MemoryLimitPages,
	}, logger)
	if cfg.Plugins.Dir != "" {
		if err := a.plugins.LoadDir(ctx, cfg.Plugins.Dir); err != nil {
			logger.Warn().Err(err).Str("dir", cfg.Plugins.Dir).Msg("Plugins not loaded")
		}
	}
	for _, sc := range cfg.Starlark.Converters {
		spec, err := starlarkSpec(sc)
		if err != nil {
			return nil, err
		}
		if err := a.plugins.LoadStarlark(spec, cfg.Starlark.Timeout); err != nil {
			return nil, fmt.Errorf("failed to load starlark converter: %w", err)
		}
	}

	opts := []transpiler.Option{
		transpiler.WithProbe(capabilities.Union(
			cfg.Probe(capabilities.Env(capabilities.Static(conversions.DefaultExtras()...))),
			a.plugins.Probe(),
		)),
		transpiler.WithLogger(tel.Logger.Component("transpiler").Zerolog()),
		transpiler.WithMetrics(tel.Metrics),
		transpiler.WithTracer(tel.Tracer),
		transpiler.WithEvents(tel.Events),
		transpiler.WithLossyPenalty(cfg.Transpiler.LossyPenalty),
		transpiler.WithMaxHops(cfg.Transpiler.MaxHops),
		transpiler.WithDefaultTrace(cfg.Transpiler.Trace),
	}
	if cfg.Transpiler.PathCacheSize > 0 {
		cache, err := transpiler.NewPathCache(cfg.Transpiler.PathCacheSize)
		if err != nil {
			return nil, err
		}
		opts = append(opts, transpiler.WithPathCache(cache))
	}

	if cfg.Policy.Enabled {
		engine, err := policy.NewEngine(logger,
			policy.WithMode(policy.Mode(cfg.Policy.Mode)),
			policy.WithEvents(tel.Events),
		)
		if err != nil {
			return nil, err
		}
		if len(cfg.Policy.Paths) > 0 {
			if err := engine.LoadPolicies(ctx, cfg.Policy.Paths); err != nil {
				return nil, err
			}
		}
		a.policy = engine
		opts = append(opts, transpiler.WithPathCheck(engine.PathCheck()))
	}

	a.transpiler = transpiler.New(a.registry, a.catalog, opts...)
	return a, nil
}

// starlarkSpec reads a configured script, loading File when Script is empty.
func starlarkSpec(sc config.StarlarkConverter) (plugins.StarlarkSpec, error) {
	script := sc.Script
	if script == "" && sc.File != "" {
		data, err := os.ReadFile(sc.File)
		if err != nil {
			return plugins.StarlarkSpec{}, fmt.Errorf("failed to read starlark script: %w", err)
		}
		script = string(data)
	}
	return plugins.StarlarkSpec{
		Name:   sc.Name,
		Source: sc.Source,
		Target: sc.Target,
		Script: script,
		Lossy:  sc.Lossy,
	}, nil
}

// start opens an instrumented CLI operation.
func (a *app) start(ctx context.Context, name string) *telemetry.Operation {
	return telemetry.StartOperation(a.tel.WithContext(ctx), "cli."+name)
}

// openStore opens the configured job store once.
func (a *app) openStore(ctx context.Context) (*stores.SQLiteStore, error) {
	if a.store != nil {
		return a.store, nil
	}
	store, err := stores.Open(ctx, a.cfg.Store.Path)
	if err != nil {
		return nil, err
	}
	a.store = store
	return store, nil
}

// persistent reports whether the job store outlives the process.
func (a *app) persistent() bool {
	return a.cfg.Store.Path != stores.MemoryPath
}

// fleet builds the configured devices.
func (a *app) fleet(ctx context.Context) (*devices.Fleet, error) {
	store, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}
	return devices.NewFleet(a.cfg.Devices, a.transpiler, devices.NewBackends(),
		devices.WithStore(store),
		devices.WithLogger(a.tel.Logger.Component("devices").Zerolog()),
		devices.WithTracer(a.tel.Tracer),
		devices.WithMetrics(a.tel.Metrics),
		devices.WithEvents(a.tel.Events),
		devices.WithCompiler(a.compiler),
	)
}

// recordConversion writes an audit entry when the store is persistent.
func (a *app) recordConversion(ctx context.Context, source, target programs.ProgramType, res *transpiler.Result, convErr error, elapsed time.Duration) {
	if !a.persistent() {
		return
	}
	store, err := a.openStore(ctx)
	if err != nil {
		a.logger.Warn().Err(err).Msg("Conversion not recorded")
		return
	}

	rec := &stores.ConversionRecord{
		SourceType: string(source),
		TargetType: string(target),
		Status:     stores.ConversionSuccess,
		DurationMS: elapsed.Milliseconds(),
	}
	if res != nil {
		rec.Path = res.Path.String()
		rec.Hops = res.Path.Len()
		rec.Lossy = res.Path.Lossy()
	}
	if convErr != nil {
		msg := convErr.Error()
		rec.Status = stores.ConversionFailure
		rec.Error = &msg
	}
	if err := store.RecordConversion(ctx, rec); err != nil {
		a.logger.Warn().Err(err).Msg("Conversion not recorded")
	}
}

// close releases plugins, the store and telemetry.
func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var errs []error
	errs = append(errs, a.plugins.Close(ctx))
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	errs = append(errs, a.tel.Shutdown(ctx))
	if err := errors.Join(errs...); err != nil {
		a.logger.Warn().Err(err).Msg("Shutdown finished with errors")
	}
}
