package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/kelseyhightower/envconfig"
	"github.com/pelletier/go-toml/v2"
)

// envPrefix namespaces every environment variable (SATCHEL_*).
const envPrefix = "SATCHEL"

// FileName is the optional per-project configuration overlay.
const FileName = "satchel.toml"

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	AI       AIConfig       `toml:"ai"`
	Logging  LogConfig      `toml:"logging"`
	Pack     PackConfig     `toml:"pack"`
	Profiles ProfilesConfig `toml:"profiles"`
}

// ServerConfig holds serve-mode HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" toml:"port" default:"8400"`
	Host string `envconfig:"HOST" toml:"host" default:"0.0.0.0"`
}

// AIConfig holds summarizer endpoint configuration.
type AIConfig struct {
	BaseURL     string  `envconfig:"AI_URL" toml:"base_url" default:""`
	APIKey      string  `envconfig:"AI_KEY" toml:"api_key" default:""`
	Model       string  `envconfig:"AI_MODEL" toml:"model" default:"gpt-4o-mini"`
	RatePerSec  float64 `envconfig:"AI_RPS" toml:"rate_per_sec" default:"2"`
	MaxParallel int     `envconfig:"AI_PARALLEL" toml:"max_parallel" default:"4"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" toml:"level" default:"info"`
	Development bool   `envconfig:"LOG_DEV" toml:"development" default:"false"`
}

// PackConfig holds defaults applied to every pack run.
type PackConfig struct {
	Profile        string `envconfig:"PROFILE" toml:"profile" default:"default"`
	Format         string `envconfig:"FORMAT" toml:"format" default:"markdown"`
	MaxConcurrency int    `envconfig:"MAX_CONCURRENCY" toml:"max_concurrency" default:"8"`
	ContinueOnErr  bool   `envconfig:"CONTINUE_ON_ERROR" toml:"continue_on_error" default:"false"`
	TokenBudget    int    `envconfig:"TOKEN_BUDGET" toml:"token_budget" default:"0"`
}

// ProfilesConfig locates user-defined profiles.
type ProfilesConfig struct {
	Dir string `envconfig:"PROFILES_DIR" toml:"dir" default:".satchel"`
}

// Load loads configuration from environment variables, then applies the
// satchel.toml overlay found in dir (or the working directory when dir is
// empty). Precedence, weakest first: struct defaults, SATCHEL_* environment,
// satchel.toml, CLI flags (applied by the caller). The project-local file
// beats ambient environment because it travels with the tree it describes.
func Load(dir string) (*Config, error) {
	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if dir == "" {
		dir = "."
	}
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return &cfg, nil
	case err != nil:
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration or returns defaults on any failure.
func LoadOrDefault(dir string) *Config {
	cfg, err := Load(dir)
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8400",
			Host: "0.0.0.0",
		},
		AI: AIConfig{
			Model:       "gpt-4o-mini",
			RatePerSec:  2,
			MaxParallel: 4,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		Pack: PackConfig{
			Profile:        "default",
			Format:         "markdown",
			MaxConcurrency: 8,
		},
		Profiles: ProfilesConfig{
			Dir: ".satchel",
		},
	}
}
