package engine

import (
	"sort"
	"sync"
	"time"

	"github.com/ingestkit/ingestkit/config"
)

// Status is the overall result of a job run.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusPartial   Status = "partial_success"
)

// PipelineStatus is the terminal state of one pipeline in a run.
type PipelineStatus string

const (
	PipelineSucceeded PipelineStatus = "succeeded"
	PipelineFailed    PipelineStatus = "failed"
	PipelineSkipped   PipelineStatus = "skipped"
)

// PipelineOutcome is the terminal record for one pipeline. For skips,
// Err distinguishes the benign case (disabled pipeline, Err nil) from
// skips caused by a failed dependency, SLA breach, or cancellation.
type PipelineOutcome struct {
	Pipeline      string
	Wave          int
	Status        PipelineStatus
	Attempts      int
	RowsProcessed int64
	Duration      time.Duration
	Err           error
}

// JobResult is the immutable record of one job run.
type JobResult struct {
	RunID       string
	Job         string
	Environment config.Environment
	Trigger     string
	Status      Status
	StartedAt   time.Time
	FinishedAt  time.Time
	Outcomes    []PipelineOutcome
}

// Duration returns the run's wall-clock time.
func (r *JobResult) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Outcome returns the outcome for a pipeline, if recorded.
func (r *JobResult) Outcome(pipeline string) (PipelineOutcome, bool) {
	for _, o := range r.Outcomes {
		if o.Pipeline == pipeline {
			return o, true
		}
	}
	return PipelineOutcome{}, false
}

// RowsProcessed sums rows across all pipeline outcomes.
func (r *JobResult) RowsProcessed() int64 {
	var total int64
	for _, o := range r.Outcomes {
		total += o.RowsProcessed
	}
	return total
}

// computeStatus derives the overall status. Succeeded requires every
// outcome to be a success or a benign skip. Any failure or
// caused-skip yields partial_success when something still succeeded,
// failed otherwise.
func computeStatus(outcomes []PipelineOutcome) Status {
	succeeded, bad := 0, 0
	for _, o := range outcomes {
		switch {
		case o.Status == PipelineSucceeded:
			succeeded++
		case o.Status == PipelineFailed:
			bad++
		case o.Status == PipelineSkipped && o.Err != nil:
			bad++
		}
	}
	switch {
	case bad == 0:
		return StatusSucceeded
	case succeeded > 0:
		return StatusPartial
	default:
		return StatusFailed
	}
}

// collector gathers outcomes from concurrently finishing pipelines.
// It is the only synchronized object in a run.
type collector struct {
	mu       sync.Mutex
	outcomes map[string]PipelineOutcome
}

func newCollector() *collector {
	return &collector{outcomes: make(map[string]PipelineOutcome)}
}

func (c *collector) record(o PipelineOutcome) {
	c.mu.Lock()
	c.outcomes[o.Pipeline] = o
	c.mu.Unlock()
}

func (c *collector) get(pipeline string) (PipelineOutcome, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	o, ok := c.outcomes[pipeline]
	return o, ok
}

func (c *collector) has(pipeline string) bool {
	_, ok := c.get(pipeline)
	return ok
}

// ordered returns outcomes sorted by (wave, pipeline).
func (c *collector) ordered() []PipelineOutcome {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]PipelineOutcome, 0, len(c.outcomes))
	for _, o := range c.outcomes {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Wave != out[j].Wave {
			return out[i].Wave < out[j].Wave
		}
		return out[i].Pipeline < out[j].Pipeline
	})
	return out
}
