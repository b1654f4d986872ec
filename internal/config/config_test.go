package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Load resolves the config file relative to the working directory, so tests
// chdir into a scratch dir to control what it sees.
func chtemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	chtemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "file", cfg.Store.Driver)
	assert.Equal(t, "bills", cfg.Store.DataDir)
	assert.Equal(t, 10, cfg.Pipeline.BatchSize)
	assert.Equal(t, 4, cfg.Pipeline.Concurrency)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.NotEmpty(t, cfg.Anthropic.FastModel)
	assert.NotEmpty(t, cfg.Anthropic.SynthesisModel)
	assert.Equal(t, 3, cfg.Anthropic.MaxAttempts)
}

func TestLoad_EnvOverrides(t *testing.T) {
	chtemp(t)
	t.Setenv("BILLSCAN_STORE_DRIVER", "sqlite")
	t.Setenv("BILLSCAN_PIPELINE_BATCH_SIZE", "25")
	t.Setenv("BILLSCAN_ANTHROPIC_KEY", "sk-test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, 25, cfg.Pipeline.BatchSize)
	assert.Equal(t, "sk-test", cfg.Anthropic.Key)
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := chtemp(t)
	yaml := []byte("store:\n  driver: postgres\n  database_url: postgres://localhost/billscan\npipeline:\n  concurrency: 8\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), yaml, 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/billscan", cfg.Store.DatabaseURL)
	assert.Equal(t, 8, cfg.Pipeline.Concurrency)
	// Unset keys keep their defaults.
	assert.Equal(t, 10, cfg.Pipeline.BatchSize)
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	require.NoError(t, InitLogger(LogConfig{Level: "info", Format: "json"}))
	assert.Error(t, InitLogger(LogConfig{Level: "shout", Format: "json"}))
}
