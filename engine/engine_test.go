package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ingestkit/ingestkit/config"
	"github.com/ingestkit/ingestkit/errors"
	"github.com/ingestkit/ingestkit/graph"
	"github.com/ingestkit/ingestkit/plan"
)

// fakeRunner scripts per-pipeline behavior for engine tests.
type fakeRunner struct {
	mu    sync.Mutex
	calls map[string]int
	fn    func(req RunRequest) (RunResult, error)
}

func newFakeRunner(fn func(req RunRequest) (RunResult, error)) *fakeRunner {
	return &fakeRunner{calls: make(map[string]int), fn: fn}
}

func (f *fakeRunner) Run(ctx context.Context, req RunRequest) (RunResult, error) {
	f.mu.Lock()
	f.calls[req.Ref.Name]++
	f.mu.Unlock()
	if f.fn == nil {
		return RunResult{RowsProcessed: 1}, nil
	}
	return f.fn(req)
}

func (f *fakeRunner) callCount(pipeline string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[pipeline]
}

func jobWith(mode config.ExecutionMode, refs ...config.PipelineRef) *config.JobDefinition {
	j := &config.JobDefinition{
		Name:      "nightly",
		Pipelines: refs,
		Execution: config.ExecutionConfig{Mode: mode, MaxParallelism: 5},
		Retries:   config.RetryConfig{MaxAttempts: 1},
	}
	return j
}

func requestFor(t *testing.T, job *config.JobDefinition) Request {
	t.Helper()
	g, err := graph.FromJob(job)
	if err != nil {
		t.Fatal(err)
	}
	p, err := plan.Build(job, g)
	if err != nil {
		t.Fatal(err)
	}
	specs := make(map[string]*config.PipelineSpec, len(job.Pipelines))
	for _, ref := range job.Pipelines {
		specs[ref.Name] = &config.PipelineSpec{Name: ref.Name}
	}
	return Request{
		Job:         job,
		Plan:        p,
		Specs:       specs,
		Environment: config.EnvDev,
		Trigger:     "manual",
	}
}

func ref(name string, deps ...string) config.PipelineRef {
	return config.PipelineRef{Name: name, DependsOn: deps}
}

func disabledRef(name string, deps ...string) config.PipelineRef {
	off := false
	return config.PipelineRef{Name: name, DependsOn: deps, Enabled: &off}
}

// --- Happy path tests ---

func TestRun_AllSucceed(t *testing.T) {
	job := jobWith(config.ModeDAG, ref("a"), ref("b", "a"))
	runner := newFakeRunner(nil)

	result := New(runner).Run(context.Background(), requestFor(t, job))

	if result.Status != StatusSucceeded {
		t.Fatalf("expected succeeded, got %s", result.Status)
	}
	if result.RunID == "" {
		t.Error("expected generated run id")
	}
	if len(result.Outcomes) != 2 {
		t.Fatalf("expected 2 outcomes, got %d", len(result.Outcomes))
	}
	for _, o := range result.Outcomes {
		if o.Status != PipelineSucceeded || o.Attempts != 1 {
			t.Errorf("unexpected outcome %+v", o)
		}
	}
	if result.RowsProcessed() != 2 {
		t.Errorf("expected 2 rows total, got %d", result.RowsProcessed())
	}
}

func TestRun_OutcomesOrderedByWaveThenName(t *testing.T) {
	job := jobWith(config.ModeDAG, ref("z"), ref("b", "z"), ref("a", "z"))
	result := New(newFakeRunner(nil)).Run(context.Background(), requestFor(t, job))

	var names []string
	for _, o := range result.Outcomes {
		names = append(names, o.Pipeline)
	}
	if names[0] != "z" || names[1] != "a" || names[2] != "b" {
		t.Errorf("unexpected outcome order %v", names)
	}
}

// --- Failure policy tests ---

func TestRun_FailFastSkipsLaterWaves(t *testing.T) {
	job := jobWith(config.ModeDAG, ref("a"), ref("b", "a"), ref("c", "a"))
	runner := newFakeRunner(func(req RunRequest) (RunResult, error) {
		if req.Ref.Name == "a" {
			return RunResult{}, errors.PermanentPipeline("a", nil)
		}
		return RunResult{}, nil
	})

	result := New(runner).Run(context.Background(), requestFor(t, job))

	if result.Status != StatusFailed {
		t.Fatalf("expected failed, got %s", result.Status)
	}
	for _, name := range []string{"b", "c"} {
		o, ok := result.Outcome(name)
		if !ok || o.Status != PipelineSkipped {
			t.Fatalf("expected %s skipped, got %+v", name, o)
		}
		if !errors.IsCode(o.Err, errors.ErrCodeDependencySkipped) {
			t.Errorf("expected DEPENDENCY_SKIPPED on %s, got %v", name, o.Err)
		}
	}
	if runner.callCount("b") != 0 || runner.callCount("c") != 0 {
		t.Error("expected skipped pipelines never dispatched")
	}
}

func TestRun_ContinueOnFailure_IndependentStillRuns(t *testing.T) {
	job := jobWith(config.ModeDAG, ref("a"), ref("b"), ref("c", "a"))
	job.Execution.ContinueOnFailure = true
	runner := newFakeRunner(func(req RunRequest) (RunResult, error) {
		if req.Ref.Name == "a" {
			return RunResult{}, errors.PermanentPipeline("a", nil)
		}
		return RunResult{RowsProcessed: 1}, nil
	})

	result := New(runner).Run(context.Background(), requestFor(t, job))

	if result.Status != StatusPartial {
		t.Fatalf("expected partial_success, got %s", result.Status)
	}
	if o, _ := result.Outcome("b"); o.Status != PipelineSucceeded {
		t.Errorf("expected independent pipeline to run, got %+v", o)
	}
	o, _ := result.Outcome("c")
	if o.Status != PipelineSkipped || !errors.IsCode(o.Err, errors.ErrCodeDependencySkipped) {
		t.Errorf("expected dependent skipped for cause, got %+v", o)
	}
	if runner.callCount("c") != 0 {
		t.Error("expected dependent of failed pipeline never dispatched")
	}
}

func TestRun_AllFailed(t *testing.T) {
	job := jobWith(config.ModeParallel, ref("a"), ref("b"))
	job.Execution.ContinueOnFailure = true
	runner := newFakeRunner(func(req RunRequest) (RunResult, error) {
		return RunResult{}, errors.PermanentPipeline(req.Ref.Name, nil)
	})

	result := New(runner).Run(context.Background(), requestFor(t, job))
	if result.Status != StatusFailed {
		t.Fatalf("expected failed, got %s", result.Status)
	}
}

func TestRun_TransitiveSkip(t *testing.T) {
	job := jobWith(config.ModeDAG, ref("a"), ref("b", "a"), ref("c", "b"))
	job.Execution.ContinueOnFailure = true
	runner := newFakeRunner(func(req RunRequest) (RunResult, error) {
		if req.Ref.Name == "a" {
			return RunResult{}, errors.PermanentPipeline("a", nil)
		}
		return RunResult{}, nil
	})

	result := New(runner).Run(context.Background(), requestFor(t, job))

	o, _ := result.Outcome("c")
	if o.Status != PipelineSkipped || !errors.IsCode(o.Err, errors.ErrCodeDependencySkipped) {
		t.Errorf("expected skip to propagate through skipped dependency, got %+v", o)
	}
}

// --- Disabled pipeline tests ---

func TestRun_DisabledIsBenignSkip(t *testing.T) {
	job := jobWith(config.ModeDAG, disabledRef("a"), ref("b", "a"))
	runner := newFakeRunner(nil)

	result := New(runner).Run(context.Background(), requestFor(t, job))

	if result.Status != StatusSucceeded {
		t.Fatalf("expected succeeded, got %s", result.Status)
	}
	o, _ := result.Outcome("a")
	if o.Status != PipelineSkipped || o.Err != nil {
		t.Errorf("expected benign skip for disabled pipeline, got %+v", o)
	}
	if o, _ := result.Outcome("b"); o.Status != PipelineSucceeded {
		t.Errorf("expected disabled dependency to satisfy dependent, got %+v", o)
	}
	if runner.callCount("a") != 0 {
		t.Error("expected disabled pipeline never dispatched")
	}
}

func TestRun_AllDisabledSucceeds(t *testing.T) {
	job := jobWith(config.ModeDAG, disabledRef("a"), disabledRef("b"))
	result := New(newFakeRunner(nil)).Run(context.Background(), requestFor(t, job))
	if result.Status != StatusSucceeded {
		t.Fatalf("expected succeeded for fully disabled job, got %s", result.Status)
	}
}

// --- Retry tests ---

func TestRun_RetriesTransientThenSucceeds(t *testing.T) {
	job := jobWith(config.ModeSequential, ref("a"))
	job.Retries = config.RetryConfig{MaxAttempts: 3}

	var attempts int32
	runner := newFakeRunner(func(req RunRequest) (RunResult, error) {
		if atomic.AddInt32(&attempts, 1) < 3 {
			return RunResult{}, errors.TransientPipeline("a", nil)
		}
		return RunResult{RowsProcessed: 7}, nil
	})

	result := New(runner).Run(context.Background(), requestFor(t, job))

	o, _ := result.Outcome("a")
	if o.Status != PipelineSucceeded || o.Attempts != 3 {
		t.Fatalf("expected success on attempt 3, got %+v", o)
	}
	if o.RowsProcessed != 7 {
		t.Errorf("expected rows from final attempt, got %d", o.RowsProcessed)
	}
}

func TestRun_PermanentErrorNotRetried(t *testing.T) {
	job := jobWith(config.ModeSequential, ref("a"))
	job.Retries = config.RetryConfig{MaxAttempts: 5}

	runner := newFakeRunner(func(req RunRequest) (RunResult, error) {
		return RunResult{}, errors.PermanentPipeline("a", nil)
	})

	result := New(runner).Run(context.Background(), requestFor(t, job))

	if runner.callCount("a") != 1 {
		t.Fatalf("expected 1 attempt for permanent error, got %d", runner.callCount("a"))
	}
	o, _ := result.Outcome("a")
	if o.Status != PipelineFailed || o.Attempts != 1 {
		t.Errorf("unexpected outcome %+v", o)
	}
}

func TestRun_PlainErrorIsRetried(t *testing.T) {
	job := jobWith(config.ModeSequential, ref("a"))
	job.Retries = config.RetryConfig{MaxAttempts: 2}

	runner := newFakeRunner(func(req RunRequest) (RunResult, error) {
		return RunResult{}, context.DeadlineExceeded
	})
	_ = New(runner).Run(context.Background(), requestFor(t, job))
	if runner.callCount("a") != 1 {
		t.Errorf("expected context errors not retried, got %d attempts", runner.callCount("a"))
	}

	runner2 := newFakeRunner(func(req RunRequest) (RunResult, error) {
		return RunResult{}, fmt.Errorf("transport glitch")
	})
	_ = New(runner2).Run(context.Background(), requestFor(t, job))
	if runner2.callCount("a") != 2 {
		t.Errorf("expected plain errors retried, got %d attempts", runner2.callCount("a"))
	}
}

// --- Concurrency tests ---

func TestRun_BoundedConcurrency(t *testing.T) {
	job := jobWith(config.ModeParallel,
		ref("p1"), ref("p2"), ref("p3"), ref("p4"), ref("p5"), ref("p6"))
	job.Execution.MaxParallelism = 2

	var current, peak int32
	runner := newFakeRunner(func(req RunRequest) (RunResult, error) {
		n := atomic.AddInt32(&current, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		atomic.AddInt32(&current, -1)
		return RunResult{}, nil
	})

	result := New(runner).Run(context.Background(), requestFor(t, job))

	if result.Status != StatusSucceeded {
		t.Fatalf("expected succeeded, got %s", result.Status)
	}
	if peak > 2 {
		t.Errorf("expected at most 2 concurrent pipelines, saw %d", peak)
	}
}

func TestRun_WaveIsBarrier(t *testing.T) {
	job := jobWith(config.ModeDAG, ref("slow"), ref("fast"), ref("late", "slow", "fast"))

	var wave0Done int32
	runner := newFakeRunner(func(req RunRequest) (RunResult, error) {
		switch req.Ref.Name {
		case "slow":
			time.Sleep(30 * time.Millisecond)
			atomic.AddInt32(&wave0Done, 1)
		case "fast":
			atomic.AddInt32(&wave0Done, 1)
		case "late":
			if atomic.LoadInt32(&wave0Done) != 2 {
				t.Error("wave 1 pipeline dispatched before wave 0 finished")
			}
		}
		return RunResult{}, nil
	})

	New(runner).Run(context.Background(), requestFor(t, job))
}

// --- SLA tests ---

func TestRun_SLATruncatesRemainingWaves(t *testing.T) {
	job := jobWith(config.ModeDAG, ref("a"), ref("b", "a"))
	job.SLA = config.SLAConfig{DurationSeconds: 1}

	runner := newFakeRunner(func(req RunRequest) (RunResult, error) {
		if req.Ref.Name == "a" {
			time.Sleep(1100 * time.Millisecond)
		}
		return RunResult{}, nil
	})

	result := New(runner).Run(context.Background(), requestFor(t, job))

	if o, _ := result.Outcome("a"); o.Status != PipelineSucceeded {
		t.Fatalf("expected dispatched pipeline to finish, got %+v", o)
	}
	o, _ := result.Outcome("b")
	if o.Status != PipelineSkipped || !errors.IsCode(o.Err, errors.ErrCodeSLAExceeded) {
		t.Fatalf("expected SLA_EXCEEDED skip, got %+v", o)
	}
	if result.Status != StatusPartial {
		t.Errorf("expected partial_success despite all dispatched succeeding, got %s", result.Status)
	}
	if runner.callCount("b") != 0 {
		t.Error("expected truncated pipeline never dispatched")
	}
}

// --- Cancellation tests ---

func TestRun_CancellationSkipsRemaining(t *testing.T) {
	job := jobWith(config.ModeDAG, ref("a"), ref("b", "a"))

	ctx, cancel := context.WithCancel(context.Background())
	runner := newFakeRunner(func(req RunRequest) (RunResult, error) {
		if req.Ref.Name == "a" {
			cancel()
			return RunResult{}, nil // in-flight attempt finishes
		}
		return RunResult{}, nil
	})

	result := New(runner).Run(ctx, requestFor(t, job))

	if o, _ := result.Outcome("a"); o.Status != PipelineSucceeded {
		t.Fatalf("expected in-flight pipeline to finish, got %+v", o)
	}
	o, _ := result.Outcome("b")
	if o.Status != PipelineSkipped || !errors.IsCode(o.Err, errors.ErrCodeRunCanceled) {
		t.Fatalf("expected RUN_CANCELED skip, got %+v", o)
	}
	if runner.callCount("b") != 0 {
		t.Error("expected canceled pipeline never dispatched")
	}
}

// --- Mode tests ---

func TestRun_SequentialRunsOneAtATime(t *testing.T) {
	job := jobWith(config.ModeSequential, ref("a"), ref("b"), ref("c"))

	var current, peak int32
	runner := newFakeRunner(func(req RunRequest) (RunResult, error) {
		n := atomic.AddInt32(&current, 1)
		if n > atomic.LoadInt32(&peak) {
			atomic.StoreInt32(&peak, n)
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&current, -1)
		return RunResult{}, nil
	})

	New(runner).Run(context.Background(), requestFor(t, job))
	if peak != 1 {
		t.Errorf("expected strictly sequential execution, peak was %d", peak)
	}
}

func TestRun_ParallelIgnoresDependencyGating(t *testing.T) {
	job := jobWith(config.ModeParallel, ref("a"), ref("b", "a"))
	job.Execution.ContinueOnFailure = true
	runner := newFakeRunner(func(req RunRequest) (RunResult, error) {
		if req.Ref.Name == "a" {
			return RunResult{}, errors.PermanentPipeline("a", nil)
		}
		return RunResult{}, nil
	})

	result := New(runner).Run(context.Background(), requestFor(t, job))

	if o, _ := result.Outcome("b"); o.Status != PipelineSucceeded {
		t.Errorf("expected parallel mode to dispatch regardless of deps, got %+v", o)
	}
	if result.Status != StatusPartial {
		t.Errorf("expected partial_success, got %s", result.Status)
	}
}
