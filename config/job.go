package config

import (
	"time"

	"github.com/ingestkit/ingestkit/validation"
)

// ExecutionMode controls how a job's pipelines are ordered and
// parallelized.
type ExecutionMode string

const (
	// ModeSequential runs pipelines one at a time by (order, name).
	ModeSequential ExecutionMode = "sequential"
	// ModeParallel runs every enabled pipeline concurrently, ignoring
	// declared dependencies for ordering purposes.
	ModeParallel ExecutionMode = "parallel"
	// ModeDAG schedules pipelines in dependency waves.
	ModeDAG ExecutionMode = "dag"
)

// PipelineRef is a job's reference to a pipeline, with the per-job
// scheduling attributes attached to it.
type PipelineRef struct {
	Name       string         `yaml:"name" json:"name" validate:"required"`
	Order      int            `yaml:"order" json:"order"`
	DependsOn  []string       `yaml:"depends_on" json:"depends_on"`
	Enabled    *bool          `yaml:"enabled" json:"enabled"`
	Parameters map[string]any `yaml:"parameters" json:"parameters"`
}

// IsEnabled reports whether the referenced pipeline should run.
// Pipelines are enabled unless explicitly disabled.
func (r PipelineRef) IsEnabled() bool {
	return r.Enabled == nil || *r.Enabled
}

// ExecutionConfig holds job-level scheduling knobs.
type ExecutionConfig struct {
	Mode              ExecutionMode `yaml:"mode" json:"mode" validate:"omitempty,oneof=sequential parallel dag"`
	MaxParallelism    int           `yaml:"max_parallelism" json:"max_parallelism" validate:"omitempty,min=1"`
	ContinueOnFailure bool          `yaml:"continue_on_failure" json:"continue_on_failure"`
}

// RetryConfig controls per-pipeline retry behavior within a job.
type RetryConfig struct {
	MaxAttempts        int  `yaml:"max_attempts" json:"max_attempts" validate:"omitempty,min=1,max=10"`
	RetryDelaySeconds  int  `yaml:"retry_delay_seconds" json:"retry_delay_seconds" validate:"min=0"`
	ExponentialBackoff bool `yaml:"exponential_backoff" json:"exponential_backoff"`
}

// Delay returns the configured base delay between attempts.
func (r RetryConfig) Delay() time.Duration {
	return time.Duration(r.RetryDelaySeconds) * time.Second
}

// SLAConfig bounds a job's total runtime. A zero duration means no SLA.
type SLAConfig struct {
	DurationSeconds int `yaml:"duration_seconds" json:"duration_seconds" validate:"min=0"`
}

// Budget returns the SLA as a duration, zero when unset.
func (s SLAConfig) Budget() time.Duration {
	return time.Duration(s.DurationSeconds) * time.Second
}

// NotificationsConfig selects which run outcomes produce notifications
// and where they are sent.
type NotificationsConfig struct {
	OnSuccess bool     `yaml:"on_success" json:"on_success"`
	OnFailure bool     `yaml:"on_failure" json:"on_failure"`
	Channels  []string `yaml:"channels" json:"channels"`
}

// JobDefinition is a named group of pipeline references plus the
// execution policy that governs a run of the group.
type JobDefinition struct {
	Name          string              `yaml:"name" json:"name" validate:"required"`
	Description   string              `yaml:"description" json:"description"`
	Tags          []string            `yaml:"tags" json:"tags"`
	Dependencies  []string            `yaml:"dependencies" json:"dependencies"`
	Pipelines     []PipelineRef       `yaml:"pipelines" json:"pipelines" validate:"required,min=1,dive"`
	Execution     ExecutionConfig     `yaml:"execution" json:"execution"`
	Retries       RetryConfig         `yaml:"retries" json:"retries"`
	SLA           SLAConfig           `yaml:"sla" json:"sla"`
	Notifications NotificationsConfig `yaml:"notifications" json:"notifications"`
}

// ApplyDefaults fills in the documented defaults for omitted fields.
func (j *JobDefinition) ApplyDefaults() {
	if j.Execution.Mode == "" {
		j.Execution.Mode = ModeDAG
	}
	if j.Execution.MaxParallelism == 0 {
		j.Execution.MaxParallelism = 5
	}
	if j.Retries.MaxAttempts == 0 {
		// Retries block omitted entirely.
		j.Retries.MaxAttempts = 1
		j.Retries.RetryDelaySeconds = 60
		j.Retries.ExponentialBackoff = true
	}
	if j.Notifications.Channels == nil {
		j.Notifications.OnFailure = true
		j.Notifications.Channels = []string{"log"}
	}
}

// Validate checks the definition's struct tags.
func (j *JobDefinition) Validate() error {
	return validation.Validate(j)
}

// Pipeline returns the reference with the given name, if present.
func (j *JobDefinition) Pipeline(name string) (PipelineRef, bool) {
	for _, ref := range j.Pipelines {
		if ref.Name == name {
			return ref, true
		}
	}
	return PipelineRef{}, false
}
