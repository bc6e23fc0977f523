package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/ingestkit/ingestkit/logger"
	"github.com/ingestkit/ingestkit/validation"
)

// ObservabilityConfig controls OpenTelemetry export.
type ObservabilityConfig struct {
	Enabled    bool    `yaml:"enabled" mapstructure:"enabled"`
	Endpoint   string  `yaml:"endpoint" mapstructure:"endpoint"`
	SampleRate float64 `yaml:"sample_rate" mapstructure:"sample_rate"`
}

// ServerConfig configures the webhook trigger listener.
type ServerConfig struct {
	Addr string `yaml:"addr" mapstructure:"addr"`
}

// AppConfig holds process-level settings, as opposed to the job and
// pipeline definitions that live under the config root.
type AppConfig struct {
	ConfigRoot    string              `yaml:"config_root" mapstructure:"config_root"`
	Environment   string              `yaml:"environment" mapstructure:"environment"`
	Logging       logger.Config       `yaml:"logging" mapstructure:"logging"`
	Observability ObservabilityConfig `yaml:"observability" mapstructure:"observability"`
	Server        ServerConfig        `yaml:"server" mapstructure:"server"`
}

// ApplyDefaults fills in defaults for omitted fields.
func (c *AppConfig) ApplyDefaults() {
	if c.ConfigRoot == "" {
		c.ConfigRoot = "./configs"
	}
	if c.Environment == "" {
		c.Environment = string(EnvDev)
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Observability.SampleRate == 0 {
		c.Observability.SampleRate = 1.0
	}
	c.Logging.ApplyDefaults()
}

// Validate checks process-level settings. All bad fields are reported
// together.
func (c *AppConfig) Validate() error {
	v := validation.New().
		Required("config_root", c.ConfigRoot).
		Required("environment", c.Environment).
		OneOf("environment", c.Environment, []string{string(EnvDev), string(EnvStaging), string(EnvProd)}).
		Custom(c.Observability.SampleRate > 0 && c.Observability.SampleRate <= 1,
			"observability.sample_rate", "must be in (0, 1]")
	if appErr := v.Validate(); appErr != nil {
		return appErr
	}
	return c.Logging.Validate()
}

// AppOption customizes LoadApp.
type AppOption func(*appLoader)

type appLoader struct {
	configFile string
	envFile    string
}

// WithConfigFile sets an explicit config.yml path.
func WithConfigFile(path string) AppOption {
	return func(l *appLoader) { l.configFile = path }
}

// WithEnvFile sets an explicit .env path.
func WithEnvFile(path string) AppOption {
	return func(l *appLoader) { l.envFile = path }
}

// LoadApp loads AppConfig by layering, lowest precedence first:
// config.yml, the .env file, and process environment variables.
func LoadApp(opts ...AppOption) (*AppConfig, error) {
	var l appLoader
	for _, opt := range opts {
		opt(&l)
	}
	if l.configFile == "" {
		l.configFile = findFirst("./config.yml", "./configs/config.yml", "./cmd/ingestkit/config.yml")
	}
	if l.envFile == "" {
		l.envFile = findFirst("./.env", "./configs/.env")
	}

	v := viper.New()
	if l.configFile != "" {
		v.SetConfigFile(l.configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", l.configFile, err)
		}
	}

	if l.envFile != "" {
		if err := godotenv.Load(l.envFile); err != nil {
			return nil, fmt.Errorf("config: loading %s: %w", l.envFile, err)
		}
	}

	v.AutomaticEnv()
	bindEnv(v)

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshaling: %w", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func findFirst(paths ...string) string {
	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// bindEnv maps UPPER_SNAKE environment variables onto nested viper
// keys. LOGGING_LEVEL binds to both logging_level and logging.level.
func bindEnv(v *viper.Viper) {
	for _, kv := range os.Environ() {
		pair := strings.SplitN(kv, "=", 2)
		if len(pair) != 2 {
			continue
		}
		key := strings.ToLower(pair[0])
		v.Set(key, pair[1])
		if strings.Contains(key, "_") {
			v.Set(strings.ReplaceAll(key, "_", "."), pair[1])
		}
	}
}
