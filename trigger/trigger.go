package trigger

import (
	"context"

	"github.com/ingestkit/ingestkit/config"
	"github.com/ingestkit/ingestkit/engine"
)

// JobInvoker starts job runs. *orchestrator.Orchestrator satisfies it.
type JobInvoker interface {
	RunJob(ctx context.Context, jobName string, env config.Environment, trigger string) (*engine.JobResult, error)
	RunAll(ctx context.Context, env config.Environment, trigger string) ([]*engine.JobResult, error)
}

// Fire runs a trigger's target job, expanding the wildcard into one
// independent run per declared job. Every returned result is complete
// even when its status is failed; the error covers configuration and
// secrets problems only.
func Fire(ctx context.Context, invoker JobInvoker, env config.Environment, t *config.TriggerDefinition) ([]*engine.JobResult, error) {
	if t.Job == config.WildcardJob {
		return invoker.RunAll(ctx, env, t.Name)
	}
	result, err := invoker.RunJob(ctx, t.Job, env, t.Name)
	if err != nil {
		return nil, err
	}
	return []*engine.JobResult{result}, nil
}
