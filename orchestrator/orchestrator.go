package orchestrator

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/ingestkit/ingestkit/config"
	"github.com/ingestkit/ingestkit/connector"
	"github.com/ingestkit/ingestkit/engine"
	"github.com/ingestkit/ingestkit/errors"
	"github.com/ingestkit/ingestkit/graph"
	"github.com/ingestkit/ingestkit/logger"
	"github.com/ingestkit/ingestkit/notify"
	"github.com/ingestkit/ingestkit/observability"
	"github.com/ingestkit/ingestkit/plan"
	"github.com/ingestkit/ingestkit/secrets"
)

// Orchestrator turns a job name into a completed run. It is safe for
// concurrent use; every invocation works on its own snapshot.
type Orchestrator struct {
	configRoot string
	runner     engine.Runner
	source     secrets.Source
	dispatcher *notify.Dispatcher
	metrics    *observability.Metrics
	log        *logger.Logger
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithRunner replaces the built-in local pipeline runner.
func WithRunner(r engine.Runner) Option {
	return func(o *Orchestrator) { o.runner = r }
}

// WithSecretSource replaces the environment-backed secret source.
func WithSecretSource(s secrets.Source) Option {
	return func(o *Orchestrator) { o.source = s }
}

// WithDispatcher replaces the notification dispatcher.
func WithDispatcher(d *notify.Dispatcher) Option {
	return func(o *Orchestrator) { o.dispatcher = d }
}

// WithMetrics enables metric recording.
func WithMetrics(m *observability.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// New creates an orchestrator reading configuration from root.
func New(configRoot string, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		configRoot: configRoot,
		runner:     connector.NewLocalRunner(),
		source:     secrets.EnvSource{},
		dispatcher: notify.NewDispatcher(),
		log:        logger.Get("orchestrator"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// RunJob runs one job and everything it transitively depends on, in
// dependency order, within this invocation. The returned result is the
// target job's. A configuration or secrets problem surfaces as an
// error with no result; pipeline failures are folded into the result.
func (o *Orchestrator) RunJob(ctx context.Context, jobName string, env config.Environment, trigger string) (*engine.JobResult, error) {
	snapshot, err := config.LoadSnapshot(o.configRoot, env)
	if err != nil {
		return nil, err
	}

	jobGraph, err := graph.FromSnapshotJobs(snapshot)
	if err != nil {
		return nil, err
	}
	if _, err := snapshot.Job(jobName); err != nil {
		return nil, err
	}

	order, err := o.dependencyOrder(jobGraph, jobName)
	if err != nil {
		return nil, err
	}

	results := make(map[string]*engine.JobResult, len(order))
	for _, name := range order {
		job, err := snapshot.Job(name)
		if err != nil {
			return nil, err
		}

		if failedDep := firstFailedDependency(job, results); failedDep != "" {
			result := o.skippedRun(ctx, snapshot, job, trigger, failedDep)
			results[name] = result
			continue
		}

		result, err := o.runSingle(ctx, snapshot, job, trigger)
		if err != nil {
			return nil, err
		}
		results[name] = result
	}

	return results[jobName], nil
}

// RunAll runs every job declared in the environment as independent
// runs, in name order. Used by wildcard triggers.
func (o *Orchestrator) RunAll(ctx context.Context, env config.Environment, trigger string) ([]*engine.JobResult, error) {
	snapshot, err := config.LoadSnapshot(o.configRoot, env)
	if err != nil {
		return nil, err
	}

	var results []*engine.JobResult
	for _, name := range snapshot.JobNames() {
		result, err := o.RunJob(ctx, name, env, trigger)
		if err != nil {
			return results, err
		}
		results = append(results, result)
	}
	return results, nil
}

// JobNames lists the jobs declared in the environment.
func (o *Orchestrator) JobNames(env config.Environment) ([]string, error) {
	snapshot, err := config.LoadSnapshot(o.configRoot, env)
	if err != nil {
		return nil, err
	}
	return snapshot.JobNames(), nil
}

// Validate checks the environment's full configuration: snapshot
// references, the job dependency graph, and every job's pipeline graph
// and plan. Declared secrets are checked against the source as well.
func (o *Orchestrator) Validate(env config.Environment) error {
	snapshot, err := config.LoadSnapshot(o.configRoot, env)
	if err != nil {
		return err
	}
	if _, err := graph.FromSnapshotJobs(snapshot); err != nil {
		return err
	}
	for _, name := range snapshot.JobNames() {
		job, err := snapshot.Job(name)
		if err != nil {
			return err
		}
		g, err := graph.FromJob(job)
		if err != nil {
			return err
		}
		if _, err := plan.Build(job, g); err != nil {
			return err
		}
	}
	return secrets.NewResolver(o.source, snapshot.Secrets).ValidateDeclared()
}

// runSingle executes one job: secrets first, then plan, then engine,
// then notifications.
func (o *Orchestrator) runSingle(ctx context.Context, snapshot *config.Snapshot, job *config.JobDefinition, trigger string) (*engine.JobResult, error) {
	specs, err := pipelineSpecs(snapshot, job)
	if err != nil {
		return nil, err
	}

	var enabled []*config.PipelineSpec
	for _, ref := range job.Pipelines {
		if ref.IsEnabled() {
			enabled = append(enabled, specs[ref.Name])
		}
	}
	bundle, err := secrets.NewResolver(o.source, snapshot.Secrets).ResolveForPipelines(enabled)
	if err != nil {
		return nil, err
	}

	g, err := graph.FromJob(job)
	if err != nil {
		return nil, err
	}
	p, err := plan.Build(job, g)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	rc := observability.NewRunContext(job.Name, runID, trigger, o.metrics)
	ctx = observability.WithRunContext(ctx, rc)
	ctx, span := rc.StartRunSpan(ctx, "job.invoke")

	// Every attempt is logged; metric and span recording follow the
	// process configuration.
	runner := engine.LoggingRunner(o.runner, o.log)
	if o.metrics != nil {
		runner = engine.MetricsRunner(runner, o.metrics)
	}
	runner = engine.TracingRunner(runner)

	result := engine.New(runner, engine.WithMetrics(o.metrics)).Run(ctx, engine.Request{
		RunID:       runID,
		Job:         job,
		Plan:        p,
		Specs:       specs,
		Secrets:     bundle,
		Environment: snapshot.Environment,
		Trigger:     trigger,
	})

	rc.EndRun(ctx, span, string(result.Status), nil)
	o.dispatcher.Dispatch(ctx, job.Notifications, result)
	return result, nil
}

// skippedRun produces the all-skipped result for a job whose
// dependency job did not succeed. The runner is never invoked.
func (o *Orchestrator) skippedRun(ctx context.Context, snapshot *config.Snapshot, job *config.JobDefinition, trigger, failedDep string) *engine.JobResult {
	now := time.Now()
	outcomes := make([]engine.PipelineOutcome, 0, len(job.Pipelines))
	for _, ref := range job.Pipelines {
		outcome := engine.PipelineOutcome{Pipeline: ref.Name, Status: engine.PipelineSkipped}
		if ref.IsEnabled() {
			outcome.Err = errors.DependencySkipped(ref.Name, "job "+failedDep)
		}
		outcomes = append(outcomes, outcome)
	}
	sort.Slice(outcomes, func(i, j int) bool { return outcomes[i].Pipeline < outcomes[j].Pipeline })

	result := &engine.JobResult{
		RunID:       uuid.NewString(),
		Job:         job.Name,
		Environment: snapshot.Environment,
		Trigger:     trigger,
		Status:      engine.StatusFailed,
		StartedAt:   now,
		FinishedAt:  now,
		Outcomes:    outcomes,
	}

	o.log.WithContext(ctx).Warn("job skipped: dependency job did not succeed", logger.Fields(
		logger.FieldJob, job.Name,
		"dependency", failedDep,
	))
	o.dispatcher.Dispatch(ctx, job.Notifications, result)
	return result
}

// dependencyOrder returns the target job's transitive dependency
// closure in topological order, target last.
func (o *Orchestrator) dependencyOrder(g *graph.Graph, target string) ([]string, error) {
	closure := map[string]bool{}
	var visit func(name string)
	visit = func(name string) {
		if closure[name] {
			return
		}
		closure[name] = true
		for _, dep := range g.Dependencies(name) {
			visit(dep)
		}
	}
	visit(target)

	topo, err := g.TopoOrder()
	if err != nil {
		return nil, err
	}
	order := make([]string, 0, len(closure))
	for _, name := range topo {
		if closure[name] {
			order = append(order, name)
		}
	}
	return order, nil
}

// firstFailedDependency returns the name of the first dependency job
// that ran in this invocation without succeeding.
func firstFailedDependency(job *config.JobDefinition, results map[string]*engine.JobResult) string {
	deps := append([]string(nil), job.Dependencies...)
	sort.Strings(deps)
	for _, dep := range deps {
		if r, ok := results[dep]; ok && r.Status != engine.StatusSucceeded {
			return dep
		}
	}
	return ""
}

func pipelineSpecs(snapshot *config.Snapshot, job *config.JobDefinition) (map[string]*config.PipelineSpec, error) {
	specs := make(map[string]*config.PipelineSpec, len(job.Pipelines))
	for _, ref := range job.Pipelines {
		spec, err := snapshot.Pipeline(ref.Name)
		if err != nil {
			return nil, err
		}
		specs[ref.Name] = spec
	}
	return specs, nil
}
