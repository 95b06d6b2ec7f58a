// Package telemetry provides the observability instrumentation used by the
// transpiler, the compiler and the device layer.
//
// It integrates structured logging (zerolog), distributed tracing
// (OpenTelemetry), metrics (Prometheus) and a small job event publisher.
//
// # Usage
//
// Initialize telemetry once at process start and pass it to the components
// that need it:
//
//	cfg := telemetry.DefaultConfig()
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
//	t := transpiler.New(registry, catalog,
//	    transpiler.WithLogger(tel.Logger.Component("transpiler").Zerolog()),
//	    transpiler.WithMetrics(tel.Metrics),
//	    transpiler.WithTracer(tel.Tracer),
//	)
//
// # Structured Logging
//
//	logger := tel.Logger.Component("devices")
//	logger.WithDevice("dry-run").WithJob(jobID).Info("job submitted")
//
// # Operations
//
// StartOperation opens a span and a tagged logger for one CLI or API call
// using the Telemetry stored in the context:
//
//	ctx = tel.WithContext(ctx)
//	op := telemetry.StartOperation(ctx, "cli.transpile")
//	defer func() { op.End(err) }()
//
// # Tracing
//
// Spans are named after the operation they cover: "transpile",
// "transpile.hop", "compiler.rebase" and "device.<operation>". Exporters are
// "stdout", "otlp" and "none". Tracing is disabled by default because the
// CLI writes converted programs to stdout.
//
// # Metrics
//
// Key metrics exposed:
//
//   - qbraid_conversions_total{source,target,status}
//   - qbraid_conversion_duration_seconds{source,target}
//   - qbraid_conversion_path_hops{source,target}
//   - qbraid_hops_executed_total{source,target,status}
//   - qbraid_path_resolutions_total{status}
//   - qbraid_path_cache_lookups_total{result}
//   - qbraid_graph_rebuilds_total, qbraid_graph_nodes, qbraid_graph_edges
//   - qbraid_compilations_total{target,status}
//   - qbraid_jobs_submitted_total{device,status}, qbraid_jobs_active
//   - qbraid_errors_by_class_total{class}, qbraid_errors_by_code_total{code}
//
// Every Record method is safe to call on a nil or disabled *Metrics.
//
// # Events
//
// The event publisher delivers job and conversion events to subscribers on
// a single goroutine in publish order:
//
//	tel.Events.Subscribe(func(e telemetry.Event) {
//	    fmt.Println(e.Type, e.Message)
//	}, telemetry.FilterByJobID(jobID))
package telemetry
