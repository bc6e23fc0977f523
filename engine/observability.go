package engine

import (
	"context"
	"time"

	"github.com/ingestkit/ingestkit/logger"
	"github.com/ingestkit/ingestkit/observability"
)

// TracingRunner wraps a Runner with OpenTelemetry span creation. Each
// attempt gets a "pipeline.run" span carrying pipeline and attempt
// attributes.
func TracingRunner(inner Runner) Runner {
	return RunnerFunc(func(ctx context.Context, req RunRequest) (RunResult, error) {
		ctx, span := observability.StartSpan(ctx, observability.SpanPipelineRun)
		defer span.End()

		observability.SetSpanAttribute(ctx, observability.AttrPipeline, req.Ref.Name)
		observability.SetSpanAttribute(ctx, observability.AttrWave, req.Wave)
		observability.SetSpanAttribute(ctx, observability.AttrAttempt, req.Attempt)

		result, err := inner.Run(ctx, req)
		if err != nil {
			observability.SetSpanError(ctx, err)
		} else {
			observability.SetSpanAttribute(ctx, observability.AttrRows, result.RowsProcessed)
		}
		return result, err
	})
}

// MetricsRunner wraps a Runner with per-attempt metric recording.
func MetricsRunner(inner Runner, metrics *observability.Metrics) Runner {
	return RunnerFunc(func(ctx context.Context, req RunRequest) (RunResult, error) {
		start := time.Now()
		result, err := inner.Run(ctx, req)
		duration := time.Since(start)

		status := "ok"
		if err != nil {
			status = "error"
			metrics.RecordError(ctx, "run", req.Ref.Name)
		}
		metrics.RecordPipeline(ctx, req.Ref.Name, status, duration, result.RowsProcessed)
		return result, err
	})
}

// LoggingRunner wraps a Runner with attempt-level logging.
func LoggingRunner(inner Runner, log *logger.Logger) Runner {
	return RunnerFunc(func(ctx context.Context, req RunRequest) (RunResult, error) {
		start := time.Now()
		result, err := inner.Run(ctx, req)
		duration := time.Since(start)

		fields := logger.Fields(
			logger.FieldPipeline, req.Ref.Name,
			logger.FieldWave, req.Wave,
			logger.FieldAttempt, req.Attempt,
			logger.FieldDuration, duration.Milliseconds(),
		)
		if err != nil {
			log.WithContext(ctx).Error("pipeline attempt failed", logger.MergeWithError(fields, err))
		} else {
			fields[logger.FieldRows] = result.RowsProcessed
			log.WithContext(ctx).Debug("pipeline attempt completed", fields)
		}
		return result, err
	})
}
