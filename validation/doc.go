// Package validation checks job, pipeline, and trigger definitions
// before anything is scheduled.
//
// Definitions loaded from YAML carry struct tags and go through
// Validate:
//
//	type IntervalSpec struct {
//	    Seconds int `json:"seconds" validate:"required,min=1"`
//	}
//	err := validation.Validate(spec)
//
// Settings assembled from several sources (flags, environment, file)
// use the programmatic Validator instead, which collects every bad
// field before reporting:
//
//	v := validation.New().
//	    Required("environment", env).
//	    OneOf("environment", env, []string{"dev", "staging", "prod"})
//	err := v.Validate()
//
// Both paths produce a VALIDATION AppError with per-field details.
package validation
