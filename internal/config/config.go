// Package config loads and validates application configuration from
// environment variables layered over an optional YAML file.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// envPrefix namespaces all environment variables (AEGIS_SERVER_PORT, ...).
const envPrefix = "AEGIS"

// Config represents the complete application configuration
type Config struct {
	Server     ServerConfig     `yaml:"server" envconfig:"SERVER"`
	Security   SecurityConfig   `yaml:"security" envconfig:"SECURITY"`
	Logging    LoggingConfig    `yaml:"logging" envconfig:"LOGGING"`
	Upload     UploadConfig     `yaml:"upload" envconfig:"UPLOAD"`
	Auth       AuthConfig       `yaml:"auth" envconfig:"AUTH"`
	Supervisor SupervisorConfig `yaml:"supervisor" envconfig:"SUPERVISOR"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT" default:"8080" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" default:"30s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" default:"60s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT" default:"60s"`
	MaxHeaderBytes  int           `yaml:"max_header_bytes" envconfig:"MAX_HEADER_BYTES" default:"1048576"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`
}

// SecurityConfig contains security-related configuration
type SecurityConfig struct {
	RateLimit RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED" default:"true"`
	RPS     float64 `yaml:"rps" envconfig:"RPS" default:"50"`
	Burst   int     `yaml:"burst" envconfig:"BURST" default:"25"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level     string `yaml:"level" envconfig:"LEVEL" default:"info" validate:"oneof=debug info warn warning error"`
	Format    string `yaml:"format" envconfig:"FORMAT" default:"json" validate:"oneof=json text"`
	Output    string `yaml:"output" envconfig:"OUTPUT" default:"console" validate:"oneof=console file both"`
	FilePath  string `yaml:"file_path" envconfig:"FILE_PATH" default:"logs/aegis.log"`
	AddSource bool   `yaml:"add_source" envconfig:"ADD_SOURCE" default:"false"`
}

// UploadConfig bounds dataset ingestion and the in-memory session store.
type UploadConfig struct {
	MaxBytes    int64         `yaml:"max_bytes" envconfig:"MAX_BYTES" default:"67108864" validate:"min=1"`
	ScratchDir  string        `yaml:"scratch_dir" envconfig:"SCRATCH_DIR"`
	MaxDatasets int           `yaml:"max_datasets" envconfig:"MAX_DATASETS" default:"32" validate:"min=1"`
	SessionTTL  time.Duration `yaml:"session_ttl" envconfig:"SESSION_TTL" default:"2h"`
}

// AuthConfig configures delegated credential checking. Credentials are never
// embedded in source: tokens are signed with SigningKey, and login
// verification is delegated to VerifyURL when set.
type AuthConfig struct {
	Enabled    bool          `yaml:"enabled" envconfig:"ENABLED" default:"true"`
	DevMode    bool          `yaml:"dev_mode" envconfig:"DEV_MODE" default:"false"`
	SigningKey string        `yaml:"signing_key" envconfig:"SIGNING_KEY"`
	TokenTTL   time.Duration `yaml:"token_ttl" envconfig:"TOKEN_TTL" default:"12h"`
	VerifyURL  string        `yaml:"verify_url" envconfig:"VERIFY_URL" validate:"omitempty,url"`
}

// SupervisorConfig configures the UI process supervisor used by the
// launcher entrypoint.
type SupervisorConfig struct {
	Command        string        `yaml:"command" envconfig:"COMMAND"`
	Args           []string      `yaml:"args" envconfig:"ARGS"`
	HealthURL      string        `yaml:"health_url" envconfig:"HEALTH_URL" default:"http://localhost:8080/api/healthz" validate:"url"`
	TargetURL      string        `yaml:"target_url" envconfig:"TARGET_URL" default:"http://localhost:8080" validate:"url"`
	ListenPort     int           `yaml:"listen_port" envconfig:"LISTEN_PORT" default:"8090" validate:"min=1,max=65535"`
	StartupTimeout time.Duration `yaml:"startup_timeout" envconfig:"STARTUP_TIMEOUT" default:"60s"`
	PollInterval   time.Duration `yaml:"poll_interval" envconfig:"POLL_INTERVAL" default:"500ms"`
	GracePeriod    time.Duration `yaml:"grace_period" envconfig:"GRACE_PERIOD" default:"10s"`
}

// Load loads configuration from environment variables layered over the
// optional YAML file named by AEGIS_CONFIG_FILE (default config.yaml).
func Load() (*Config, error) {
	var cfg Config

	configFile := os.Getenv(envPrefix + "_CONFIG_FILE")
	if configFile == "" {
		configFile = "config.yaml"
	}
	if _, err := os.Stat(configFile); err == nil {
		fileCfg, err := loadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
		cfg = *fileCfg
	}

	// Environment variables override file values; envconfig also applies
	// struct-tag defaults to fields still at their zero value.
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// loadFromFile loads configuration from a YAML file
func loadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints plus the cross-field auth invariant:
// outside dev mode an enabled auth layer must have a signing key, so the
// server can never fall back to embedded credentials.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}
	if c.Auth.Enabled && !c.Auth.DevMode && c.Auth.SigningKey == "" {
		return fmt.Errorf("auth is enabled outside dev mode but AEGIS_AUTH_SIGNING_KEY is not set")
	}
	return nil
}
