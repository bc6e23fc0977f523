package engine

import (
	"context"

	"github.com/ingestkit/ingestkit/config"
	"github.com/ingestkit/ingestkit/secrets"
)

// RunRequest is one pipeline attempt handed to a Runner.
type RunRequest struct {
	RunID   string
	Job     string
	Wave    int
	Attempt int

	// Ref carries the per-job attributes (order, parameters).
	Ref config.PipelineRef
	// Spec is the pipeline's own definition.
	Spec *config.PipelineSpec
	// Secrets holds every resolved secret for the run.
	Secrets secrets.Bundle
}

// RunResult reports a successful pipeline attempt.
type RunResult struct {
	RowsProcessed int64
}

// Runner executes one pipeline attempt. Implementations classify their
// failures: a transient error (retryable AppError, or any plain error)
// is retried within the job's attempt budget, a permanent AppError is
// not. Per-pipeline timeouts belong to the runner; the engine only
// owns the job-level SLA.
type Runner interface {
	Run(ctx context.Context, req RunRequest) (RunResult, error)
}

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc func(ctx context.Context, req RunRequest) (RunResult, error)

func (f RunnerFunc) Run(ctx context.Context, req RunRequest) (RunResult, error) {
	return f(ctx, req)
}
