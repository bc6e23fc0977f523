package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// RunContext holds observability context for one job run.
type RunContext struct {
	Job       string
	RunID     string
	Trigger   string
	StartTime time.Time
	Metrics   *Metrics
}

// NewRunContext creates a run context. If metrics is nil, metric
// recording is silently skipped.
func NewRunContext(job, runID, trigger string, metrics *Metrics) *RunContext {
	return &RunContext{
		Job:       job,
		RunID:     runID,
		Trigger:   trigger,
		StartTime: time.Now(),
		Metrics:   metrics,
	}
}

// runContextKey is the context key for RunContext.
type runContextKey struct{}

// WithRunContext stores a RunContext in the context.
func WithRunContext(ctx context.Context, rc *RunContext) context.Context {
	return context.WithValue(ctx, runContextKey{}, rc)
}

// RunContextFromContext retrieves the RunContext from context, or nil.
func RunContextFromContext(ctx context.Context) *RunContext {
	if rc, ok := ctx.Value(runContextKey{}).(*RunContext); ok {
		return rc
	}
	return nil
}

// StartRunSpan starts a traced span carrying the run's identity.
func (rc *RunContext) StartRunSpan(ctx context.Context, spanName string) (context.Context, trace.Span) {
	ctx, span := StartSpan(ctx, spanName)
	span.SetAttributes(
		attribute.String(AttrJob, rc.Job),
		attribute.String(AttrRunID, rc.RunID),
	)
	if rc.Trigger != "" {
		span.SetAttributes(attribute.String(AttrTrigger, rc.Trigger))
	}
	return ctx, span
}

// EndRun ends the span and records the job run metric.
func (rc *RunContext) EndRun(ctx context.Context, span trace.Span, status string, err error) {
	duration := time.Since(rc.StartTime)

	if err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.String(AttrErrorMessage, err.Error()))
	}

	span.SetAttributes(
		attribute.String(AttrStatus, status),
		attribute.Int64(AttrDurationMs, duration.Milliseconds()),
	)
	span.End()

	if rc.Metrics != nil {
		rc.Metrics.RecordJob(ctx, rc.Job, status, duration)
	}
}

// Duration returns the elapsed time since run start.
func (rc *RunContext) Duration() time.Duration {
	return time.Since(rc.StartTime)
}
