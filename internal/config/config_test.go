package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	// Server config
	assert.Equal(t, "8400", cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)

	// AI config
	assert.Equal(t, "gpt-4o-mini", cfg.AI.Model)
	assert.Equal(t, 4, cfg.AI.MaxParallel)

	// Logging config
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Logging.Development)

	// Pack config
	assert.Equal(t, "default", cfg.Pack.Profile)
	assert.Equal(t, "markdown", cfg.Pack.Format)
	assert.Equal(t, 8, cfg.Pack.MaxConcurrency)
	assert.False(t, cfg.Pack.ContinueOnErr)

	assert.Equal(t, ".satchel", cfg.Profiles.Dir)
}

func TestLoadOrDefault(t *testing.T) {
	// Should return default-equivalent values when no env vars set
	cfg := LoadOrDefault(t.TempDir())

	assert.NotNil(t, cfg)
	assert.Equal(t, "8400", cfg.Server.Port)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadWithEnvironmentVariables(t *testing.T) {
	envVars := map[string]string{
		"SATCHEL_PORT":              "9000",
		"SATCHEL_HOST":              "127.0.0.1",
		"SATCHEL_AI_URL":            "https://ai.example.com/v1",
		"SATCHEL_AI_MODEL":          "gpt-4o",
		"SATCHEL_LOG_LEVEL":         "debug",
		"SATCHEL_LOG_DEV":           "true",
		"SATCHEL_PROFILE":           "slim",
		"SATCHEL_FORMAT":            "json",
		"SATCHEL_MAX_CONCURRENCY":   "16",
		"SATCHEL_CONTINUE_ON_ERROR": "true",
	}

	for key, value := range envVars {
		t.Setenv(key, value)
	}

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "127.0.0.1", cfg.Server.Host)

	assert.Equal(t, "https://ai.example.com/v1", cfg.AI.BaseURL)
	assert.Equal(t, "gpt-4o", cfg.AI.Model)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Development)

	assert.Equal(t, "slim", cfg.Pack.Profile)
	assert.Equal(t, "json", cfg.Pack.Format)
	assert.Equal(t, 16, cfg.Pack.MaxConcurrency)
	assert.True(t, cfg.Pack.ContinueOnErr)
}

func TestLoadWithPartialEnvironmentVariables(t *testing.T) {
	t.Setenv("SATCHEL_PORT", "3000")
	t.Setenv("SATCHEL_LOG_LEVEL", "warn")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	// Overridden values
	assert.Equal(t, "3000", cfg.Server.Port)
	assert.Equal(t, "warn", cfg.Logging.Level)

	// Defaults still apply
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "default", cfg.Pack.Profile)
}

func TestLoadTOMLOverlay(t *testing.T) {
	dir := t.TempDir()
	overlay := `
[server]
port = "9100"

[pack]
profile = "full"
token_budget = 120000

[ai]
model = "local-llm"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(overlay), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "9100", cfg.Server.Port)
	assert.Equal(t, "full", cfg.Pack.Profile)
	assert.Equal(t, 120000, cfg.Pack.TokenBudget)
	assert.Equal(t, "local-llm", cfg.AI.Model)

	// Untouched sections keep defaults
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "markdown", cfg.Pack.Format)
}

func TestFileBeatsEnvironment(t *testing.T) {
	dir := t.TempDir()
	overlay := `
[pack]
profile = "full"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(overlay), 0o644))
	t.Setenv("SATCHEL_PROFILE", "slim")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "full", cfg.Pack.Profile)
}

func TestLoadMalformedTOML(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte("[pack\nprofile="), 0o644))

	_, err := Load(dir)
	assert.Error(t, err)
}
