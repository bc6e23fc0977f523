package config

import (
	"time"

	"github.com/ingestkit/ingestkit/errors"
	"github.com/ingestkit/ingestkit/validation"
)

// TriggerType identifies how a trigger fires.
type TriggerType string

const (
	TriggerCron     TriggerType = "cron"
	TriggerInterval TriggerType = "interval"
	TriggerWebhook  TriggerType = "webhook"
	TriggerManual   TriggerType = "manual"
)

// WildcardJob targets every defined job. A wildcard trigger expands
// into one independent run per job.
const WildcardJob = "*"

// ScheduleSpec configures a cron trigger.
type ScheduleSpec struct {
	Cron     string `yaml:"cron" json:"cron" validate:"required"`
	Timezone string `yaml:"timezone" json:"timezone"`
}

// IntervalSpec configures a fixed-interval trigger.
type IntervalSpec struct {
	Seconds       int `yaml:"seconds" json:"seconds" validate:"required,min=1"`
	JitterSeconds int `yaml:"jitter_seconds" json:"jitter_seconds" validate:"min=0"`
}

// Every returns the firing interval.
func (i IntervalSpec) Every() time.Duration {
	return time.Duration(i.Seconds) * time.Second
}

// Jitter returns the maximum random delay added to each firing.
func (i IntervalSpec) Jitter() time.Duration {
	return time.Duration(i.JitterSeconds) * time.Second
}

// WebhookAuth configures authentication for a webhook trigger endpoint.
type WebhookAuth struct {
	Type string `yaml:"type" json:"type" validate:"omitempty,oneof=none token jwt"`

	// token: bcrypt hash of the shared token.
	TokenHash string `yaml:"token_hash" json:"token_hash"`

	// jwt: logical secret key holding the signing secret.
	SigningSecretKey string `yaml:"signing_secret_key" json:"signing_secret_key"`
}

// WebhookSpec configures an HTTP endpoint that starts a run.
type WebhookSpec struct {
	Path string      `yaml:"path" json:"path" validate:"required,startswith=/"`
	Auth WebhookAuth `yaml:"auth" json:"auth"`
}

// TriggerDefinition binds a firing condition to a job (or to every job
// via the wildcard).
type TriggerDefinition struct {
	Name       string         `yaml:"name" json:"name" validate:"required"`
	Type       TriggerType    `yaml:"type" json:"type" validate:"required,oneof=cron interval webhook manual"`
	Job        string         `yaml:"job" json:"job" validate:"required"`
	Enabled    *bool          `yaml:"enabled" json:"enabled"`
	Schedule   *ScheduleSpec  `yaml:"schedule" json:"schedule"`
	Interval   *IntervalSpec  `yaml:"interval" json:"interval"`
	Webhook    *WebhookSpec   `yaml:"webhook" json:"webhook"`
	Parameters map[string]any `yaml:"parameters" json:"parameters"`
}

// IsEnabled reports whether the trigger should be armed.
func (t TriggerDefinition) IsEnabled() bool {
	return t.Enabled == nil || *t.Enabled
}

// Validate checks struct tags plus the type-specific section.
func (t *TriggerDefinition) Validate() error {
	if err := validation.Validate(t); err != nil {
		return err
	}
	switch t.Type {
	case TriggerCron:
		if t.Schedule == nil {
			return missingSection(t.Name, "schedule")
		}
		return validation.Validate(t.Schedule)
	case TriggerInterval:
		if t.Interval == nil {
			return missingSection(t.Name, "interval")
		}
		return validation.Validate(t.Interval)
	case TriggerWebhook:
		if t.Webhook == nil {
			return missingSection(t.Name, "webhook")
		}
		return validation.Validate(t.Webhook)
	}
	return nil
}

func missingSection(trigger, section string) error {
	return errors.Validation("trigger " + trigger + ": " + section + " section is required")
}
