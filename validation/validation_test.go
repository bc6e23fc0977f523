package validation

import (
	"strings"
	"testing"
)

// --- Validator tests ---

func TestValidatorRequired(t *testing.T) {
	v := New()
	v.Required("environment", "dev")
	if v.HasErrors() {
		t.Error("expected no errors for valid input")
	}

	v2 := New()
	v2.Required("environment", "")
	if !v2.HasErrors() {
		t.Error("expected error for empty required field")
	}

	v3 := New()
	v3.Required("environment", "   ")
	if !v3.HasErrors() {
		t.Error("expected error for whitespace-only required field")
	}
}

func TestValidatorOneOf(t *testing.T) {
	modes := []string{"sequential", "parallel", "dag"}

	v := New()
	v.OneOf("mode", "dag", modes)
	if v.HasErrors() {
		t.Error("expected no error for allowed value")
	}

	v2 := New()
	v2.OneOf("mode", "recursive", modes)
	if !v2.HasErrors() {
		t.Error("expected error for disallowed value")
	}
	if !strings.Contains(v2.Errors()[0].Message, "sequential") {
		t.Errorf("expected allowed values listed, got %q", v2.Errors()[0].Message)
	}

	// Empty values are skipped; Required owns presence.
	v3 := New()
	v3.OneOf("mode", "", modes)
	if v3.HasErrors() {
		t.Error("expected no error for empty value")
	}
}

func TestValidatorCustom(t *testing.T) {
	v := New()
	v.Custom(true, "sample_rate", "should pass")
	if v.HasErrors() {
		t.Error("expected no error for true condition")
	}

	v2 := New()
	v2.Custom(false, "sample_rate", "must be in (0, 1]")
	if !v2.HasErrors() {
		t.Error("expected error for false condition")
	}
	if v2.Errors()[0].Message != "must be in (0, 1]" {
		t.Errorf("unexpected message %q", v2.Errors()[0].Message)
	}
}

func TestValidatorCollectsAllFields(t *testing.T) {
	appErr := New().
		Required("environment", "").
		Required("config_root", "").
		Validate()
	if appErr == nil {
		t.Fatal("expected error")
	}
	if appErr.Details == nil {
		t.Fatal("expected field details in error")
	}
	if !strings.Contains(appErr.Message, "environment") || !strings.Contains(appErr.Message, "config_root") {
		t.Errorf("expected both fields in message, got %q", appErr.Message)
	}
}

func TestValidatorChaining(t *testing.T) {
	v := New()
	result := v.Required("environment", "dev").OneOf("environment", "dev", []string{"dev", "prod"})
	if result != v {
		t.Error("expected chaining to return same validator")
	}
	if v.HasErrors() {
		t.Error("expected no errors for valid chained checks")
	}
}

// --- Struct validation tests ---

func TestStructValidateValid(t *testing.T) {
	type interval struct {
		Seconds       int `json:"seconds" validate:"required,min=1"`
		JitterSeconds int `json:"jitter_seconds" validate:"min=0"`
	}

	if err := Validate(interval{Seconds: 60}); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}

func TestStructValidateInvalid(t *testing.T) {
	type webhook struct {
		Path string `json:"path" validate:"required,startswith=/"`
		Type string `json:"type" validate:"omitempty,oneof=none token jwt"`
	}

	err := Validate(webhook{Path: "", Type: "basic"})
	if err == nil {
		t.Fatal("expected validation error")
	}
	errStr := err.Error()
	if !strings.Contains(errStr, "path") {
		t.Errorf("expected error to mention 'path', got %q", errStr)
	}
	if !strings.Contains(errStr, "type") {
		t.Errorf("expected error to mention 'type', got %q", errStr)
	}
}

func TestStructValidateFieldNamesFromJSONTags(t *testing.T) {
	type ref struct {
		PipelineName string `json:"name" validate:"required"`
	}

	err := Validate(ref{})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "name") {
		t.Errorf("expected json tag name in error, got %q", err.Error())
	}
}

func TestStructValidateMaxMin(t *testing.T) {
	type retries struct {
		MaxAttempts int `json:"max_attempts" validate:"required,min=1,max=10"`
	}

	if err := Validate(retries{MaxAttempts: 3}); err != nil {
		t.Errorf("expected valid, got %v", err)
	}
	if err := Validate(retries{MaxAttempts: 0}); err == nil {
		t.Error("expected error for zero attempts")
	}
}
