// Package observability provides OpenTelemetry tracing and metrics for
// job and pipeline runs, plus component health reporting for the
// trigger server.
//
// Tracing:
//
//	tp, err := observability.InitTracer(ctx, observability.DefaultTracerConfig("ingestkit"))
//	defer tp.Shutdown(ctx)
//
//	ctx, span := observability.StartSpan(ctx, "job.run")
//	defer span.End()
//
// Metrics:
//
//	mp, err := observability.InitMeter(ctx, observability.DefaultMeterConfig("ingestkit"))
//	defer mp.Shutdown(ctx)
//
//	metrics, err := observability.NewMetrics(observability.Meter("ingestkit"))
//	metrics.RecordPipeline(ctx, "orders", "ok", duration, rows)
//
// Health:
//
//	health := observability.NewServiceHealth("ingestkit", version)
//	health.AddComponent(checker.CheckHealth(ctx))
package observability
