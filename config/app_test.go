package config

import (
	"strings"
	"testing"

	"github.com/ingestkit/ingestkit/errors"
)

// --- AppConfig tests ---

func TestAppConfig_DefaultsValidate(t *testing.T) {
	var cfg AppConfig
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected defaults to validate, got %v", err)
	}
	if cfg.Environment != string(EnvDev) {
		t.Errorf("expected default environment dev, got %s", cfg.Environment)
	}
	if cfg.Server.Addr != ":8080" {
		t.Errorf("expected default addr :8080, got %s", cfg.Server.Addr)
	}
}

func TestAppConfig_ValidateRejectsUnknownEnvironment(t *testing.T) {
	var cfg AppConfig
	cfg.ApplyDefaults()
	cfg.Environment = "qa"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for unknown environment")
	}
	if !errors.IsCode(err, errors.ErrCodeInvalidConfig) {
		t.Errorf("expected INVALID_CONFIG, got %v", err)
	}
	if !strings.Contains(err.Error(), "environment") {
		t.Errorf("expected environment named in error, got %v", err)
	}
}

func TestAppConfig_ValidateCollectsAllFields(t *testing.T) {
	cfg := AppConfig{
		Environment:   "qa",
		Observability: ObservabilityConfig{SampleRate: 2},
	}
	cfg.Logging.ApplyDefaults()

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, field := range []string{"config_root", "environment", "sample_rate"} {
		if !strings.Contains(err.Error(), field) {
			t.Errorf("expected %s in error, got %v", field, err)
		}
	}
}
