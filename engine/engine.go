package engine

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ingestkit/ingestkit/config"
	"github.com/ingestkit/ingestkit/errors"
	"github.com/ingestkit/ingestkit/logger"
	"github.com/ingestkit/ingestkit/observability"
	"github.com/ingestkit/ingestkit/plan"
	"github.com/ingestkit/ingestkit/resilience"
	"github.com/ingestkit/ingestkit/secrets"
)

// Engine drives job runs through a Runner.
type Engine struct {
	runner  Runner
	log     *logger.Logger
	metrics *observability.Metrics
}

// Option customizes an Engine.
type Option func(*Engine)

// WithLogger sets the engine's logger.
func WithLogger(l *logger.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithMetrics enables metric recording.
func WithMetrics(m *observability.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// New creates an engine dispatching to the given runner.
func New(runner Runner, opts ...Option) *Engine {
	e := &Engine{
		runner: runner,
		log:    logger.Get("engine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Request is everything one job run needs. Secrets must already be
// resolved; the engine never looks anything up mid-run.
type Request struct {
	// RunID identifies the run; generated when empty.
	RunID       string
	Job         *config.JobDefinition
	Plan        *plan.Plan
	Specs       map[string]*config.PipelineSpec
	Secrets     secrets.Bundle
	Environment config.Environment
	Trigger     string
}

// Run executes the plan and always returns a complete JobResult.
// Pipeline failures never surface as an engine error; they are folded
// into the result.
func (e *Engine) Run(ctx context.Context, req Request) *JobResult {
	start := time.Now()
	runID := req.RunID
	if runID == "" {
		runID = uuid.NewString()
	}

	ctx = logger.ContextWithRun(ctx, runID, req.Job.Name)
	log := e.log.WithContext(ctx)

	ctx, span := observability.StartSpan(ctx, observability.SpanJobRun)
	defer span.End()
	observability.SetSpanAttribute(ctx, observability.AttrJob, req.Job.Name)
	observability.SetSpanAttribute(ctx, observability.AttrRunID, runID)
	observability.SetSpanAttribute(ctx, "mode", string(req.Job.Execution.Mode))

	log.Info("job run started", logger.Fields(
		logger.FieldMode, string(req.Job.Execution.Mode),
		"waves", len(req.Plan.Waves),
		"pipelines", req.Plan.PipelineCount(),
	))

	var deadline time.Time
	if budget := req.Job.SLA.Budget(); budget > 0 {
		deadline = start.Add(budget)
	}

	col := newCollector()
	gateDeps := req.Job.Execution.Mode != config.ModeParallel
	abortedBy := ""

	for wi, wave := range req.Plan.Waves {
		switch {
		case ctx.Err() != nil:
			e.skipWave(col, wi, wave, func(name string) error {
				return errors.RunCanceled(name)
			})

		case !deadline.IsZero() && time.Now().After(deadline):
			e.skipWave(col, wi, wave, func(string) error {
				return errors.SLAExceeded(req.Job.Name, req.Job.SLA.Budget())
			})

		case abortedBy != "":
			e.skipWave(col, wi, wave, func(name string) error {
				return errors.DependencySkipped(name, abortedBy)
			})

		default:
			e.runWave(ctx, req, runID, wi, wave, col, gateDeps)
			if !req.Job.Execution.ContinueOnFailure {
				for _, item := range wave {
					if o, ok := col.get(item.Ref.Name); ok && o.Status == PipelineFailed {
						abortedBy = o.Pipeline
						break
					}
				}
			}
		}
	}

	outcomes := col.ordered()
	result := &JobResult{
		RunID:       runID,
		Job:         req.Job.Name,
		Environment: req.Environment,
		Trigger:     req.Trigger,
		Status:      computeStatus(outcomes),
		StartedAt:   start,
		FinishedAt:  time.Now(),
		Outcomes:    outcomes,
	}

	observability.SetSpanAttribute(ctx, observability.AttrStatus, string(result.Status))
	if e.metrics != nil {
		e.metrics.RecordJob(ctx, result.Job, string(result.Status), result.Duration())
	}
	log.Info("job run finished", logger.Fields(
		logger.FieldStatus, string(result.Status),
		logger.FieldDuration, result.Duration().Milliseconds(),
		logger.FieldRows, result.RowsProcessed(),
	))
	return result
}

// skipWave records a terminal skip for every item in a wave. Disabled
// items keep their benign skip regardless of the reason.
func (e *Engine) skipWave(col *collector, wi int, wave plan.Wave, reason func(name string) error) {
	for _, item := range wave {
		o := PipelineOutcome{Pipeline: item.Ref.Name, Wave: wi, Status: PipelineSkipped}
		if !item.Disabled {
			o.Err = reason(item.Ref.Name)
		}
		col.record(o)
	}
}

// runWave dispatches a wave's enabled, unblocked pipelines and waits
// for all of them.
func (e *Engine) runWave(ctx context.Context, req Request, runID string, wi int, wave plan.Wave, col *collector, gateDeps bool) {
	sem := make(chan struct{}, concurrency(req.Job.Execution.MaxParallelism, len(wave)))
	var wg sync.WaitGroup

	for _, item := range wave {
		if item.Disabled {
			col.record(PipelineOutcome{Pipeline: item.Ref.Name, Wave: wi, Status: PipelineSkipped})
			continue
		}
		if gateDeps {
			if blocked, dep := blockedBy(col, item.Ref); blocked {
				col.record(PipelineOutcome{
					Pipeline: item.Ref.Name,
					Wave:     wi,
					Status:   PipelineSkipped,
					Err:      errors.DependencySkipped(item.Ref.Name, dep),
				})
				continue
			}
		}

		wg.Add(1)
		go func(item plan.Item) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			col.record(e.runOne(ctx, req, runID, wi, item))
		}(item)
	}

	wg.Wait()
}

// blockedBy reports whether a recorded dependency outcome blocks the
// pipeline. A failed dependency blocks, as does a dependency skipped
// for cause. Benign skips (disabled dependencies) satisfy.
func blockedBy(col *collector, ref config.PipelineRef) (bool, string) {
	for _, dep := range ref.DependsOn {
		o, ok := col.get(dep)
		if !ok {
			continue
		}
		if o.Status == PipelineFailed || (o.Status == PipelineSkipped && o.Err != nil) {
			return true, dep
		}
	}
	return false, ""
}

// runOne executes a single pipeline with the job's retry policy.
func (e *Engine) runOne(ctx context.Context, req Request, runID string, wi int, item plan.Item) PipelineOutcome {
	name := item.Ref.Name
	start := time.Now()
	log := e.log.WithContext(ctx)

	if ctx.Err() != nil {
		return PipelineOutcome{
			Pipeline: name, Wave: wi, Status: PipelineSkipped,
			Err: errors.RunCanceled(name),
		}
	}

	spec, ok := req.Specs[name]
	if !ok {
		return PipelineOutcome{
			Pipeline: name, Wave: wi, Status: PipelineFailed,
			Err: errors.PipelineNotFound(name),
		}
	}

	factor := 1.0
	if req.Job.Retries.ExponentialBackoff {
		factor = 2.0
	}
	attempts := 0
	cfg := resilience.RetryConfig{
		MaxAttempts:    req.Job.Retries.MaxAttempts,
		InitialBackoff: req.Job.Retries.Delay(),
		BackoffFactor:  factor,
		RetryIf: func(err error) bool {
			if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
				return false
			}
			return errors.IsRetryable(err)
		},
		OnRetry: func(attempt int, err error, backoff time.Duration) {
			log.Warn("pipeline attempt failed, retrying", logger.Fields(
				logger.FieldPipeline, name,
				logger.FieldAttempt, attempt,
				"backoff", backoff.String(),
				logger.FieldError, err.Error(),
			))
			if e.metrics != nil {
				e.metrics.RecordRetry(ctx, name, attempt)
			}
		},
	}

	result, err := resilience.Retry(ctx, cfg, func() (RunResult, error) {
		attempts++
		return e.runner.Run(ctx, RunRequest{
			RunID:   runID,
			Job:     req.Job.Name,
			Wave:    wi,
			Attempt: attempts,
			Ref:     item.Ref,
			Spec:    spec,
			Secrets: req.Secrets,
		})
	})
	duration := time.Since(start)

	if err != nil {
		if attempts == 0 {
			// Canceled before the first attempt was dispatched.
			return PipelineOutcome{
				Pipeline: name, Wave: wi, Status: PipelineSkipped,
				Err: errors.RunCanceled(name),
			}
		}
		return PipelineOutcome{
			Pipeline: name, Wave: wi, Status: PipelineFailed,
			Attempts: attempts, Duration: duration, Err: err,
		}
	}

	return PipelineOutcome{
		Pipeline: name, Wave: wi, Status: PipelineSucceeded,
		Attempts: attempts, RowsProcessed: result.RowsProcessed,
		Duration: duration,
	}
}

func concurrency(maxParallel, waveSize int) int {
	if waveSize < 1 {
		waveSize = 1
	}
	if maxParallel <= 0 || maxParallel > waveSize {
		return waveSize
	}
	return maxParallel
}
