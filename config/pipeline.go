package config

import (
	"time"

	"github.com/ingestkit/ingestkit/validation"
)

// SourceKind identifies a supported source connector.
type SourceKind string

const (
	SourceRESTAPI SourceKind = "rest_api"
	SourceFile    SourceKind = "file"
)

// DestinationKind identifies a supported destination connector.
type DestinationKind string

const (
	DestPostgres    DestinationKind = "postgres"
	DestObjectStore DestinationKind = "object_store"
)

// SecretRequirement declares a logical secret key a pipeline needs at
// runtime. Requirements are required unless explicitly marked optional.
type SecretRequirement struct {
	Key      string `yaml:"key" json:"key" validate:"required"`
	Required *bool  `yaml:"required" json:"required"`
	Pattern  string `yaml:"pattern" json:"pattern"`
}

// IsRequired reports whether the secret must be present for the
// pipeline to run.
func (s SecretRequirement) IsRequired() bool {
	return s.Required == nil || *s.Required
}

// SourceSpec configures where a pipeline reads from.
type SourceSpec struct {
	Kind SourceKind `yaml:"kind" json:"kind" validate:"required,oneof=rest_api file"`

	// rest_api
	BaseURL        string            `yaml:"base_url" json:"base_url" validate:"omitempty,url"`
	Endpoint       string            `yaml:"endpoint" json:"endpoint"`
	Params         map[string]string `yaml:"params" json:"params"`
	TokenSecretKey string            `yaml:"token_secret_key" json:"token_secret_key"`
	PageSize       int               `yaml:"page_size" json:"page_size" validate:"min=0"`

	// file
	Path   string `yaml:"path" json:"path"`
	Format string `yaml:"format" json:"format" validate:"omitempty,oneof=ndjson csv"`

	TimeoutSeconds int `yaml:"timeout_seconds" json:"timeout_seconds" validate:"min=0"`
}

// Timeout returns the per-read timeout, zero when unset.
func (s SourceSpec) Timeout() time.Duration {
	return time.Duration(s.TimeoutSeconds) * time.Second
}

// DestinationSpec configures where a pipeline writes to. Connection
// material is never inlined; the *_secret_key fields name logical
// secrets resolved at run time.
type DestinationSpec struct {
	Kind DestinationKind `yaml:"kind" json:"kind" validate:"required,oneof=postgres object_store"`

	// postgres
	DSNSecretKey string `yaml:"dsn_secret_key" json:"dsn_secret_key"`
	Schema       string `yaml:"schema" json:"schema"`
	Table        string `yaml:"table" json:"table"`

	// object_store
	EndpointSecretKey  string `yaml:"endpoint_secret_key" json:"endpoint_secret_key"`
	AccessKeySecretKey string `yaml:"access_key_secret_key" json:"access_key_secret_key"`
	SecretKeySecretKey string `yaml:"secret_key_secret_key" json:"secret_key_secret_key"`
	Bucket             string `yaml:"bucket" json:"bucket"`
	Prefix             string `yaml:"prefix" json:"prefix"`
	UseSSL             bool   `yaml:"use_ssl" json:"use_ssl"`

	MaxParallelLoads int `yaml:"max_parallel_loads" json:"max_parallel_loads" validate:"omitempty,min=1"`
	TimeoutSeconds   int `yaml:"timeout_seconds" json:"timeout_seconds" validate:"min=0"`
}

// Timeout returns the per-load timeout, zero when unset.
func (d DestinationSpec) Timeout() time.Duration {
	return time.Duration(d.TimeoutSeconds) * time.Second
}

// PipelineSpec describes one data movement unit: a source, a
// destination, and the secrets both need.
type PipelineSpec struct {
	Name        string              `yaml:"name" json:"name" validate:"required"`
	Description string              `yaml:"description" json:"description"`
	Source      SourceSpec          `yaml:"source" json:"source"`
	Destination DestinationSpec     `yaml:"destination" json:"destination"`
	Secrets     []SecretRequirement `yaml:"secrets" json:"secrets" validate:"dive"`
}

// Validate checks the pipeline definition against its struct tags.
func (p *PipelineSpec) Validate() error {
	return validation.Validate(p)
}

// SecretRequirements collects every logical secret the pipeline needs:
// the connection secret keys referenced by its source and destination
// plus any explicitly declared requirements. Connection keys are always
// required. Duplicates resolve in favor of the explicit declaration.
func (p *PipelineSpec) SecretRequirements() []SecretRequirement {
	required := true
	byKey := make(map[string]SecretRequirement)
	order := make([]string, 0, 4+len(p.Secrets))

	add := func(req SecretRequirement) {
		if req.Key == "" {
			return
		}
		if _, seen := byKey[req.Key]; !seen {
			order = append(order, req.Key)
		}
		byKey[req.Key] = req
	}

	for _, key := range []string{
		p.Source.TokenSecretKey,
		p.Destination.DSNSecretKey,
		p.Destination.EndpointSecretKey,
		p.Destination.AccessKeySecretKey,
		p.Destination.SecretKeySecretKey,
	} {
		add(SecretRequirement{Key: key, Required: &required})
	}
	for _, req := range p.Secrets {
		add(req)
	}

	out := make([]SecretRequirement, 0, len(order))
	for _, key := range order {
		out = append(out, byKey[key])
	}
	return out
}
