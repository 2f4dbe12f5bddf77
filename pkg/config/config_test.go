package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_MockProvider(t *testing.T) {
	path := writeConfig(t, `
inference:
  provider: mock
orchestrator:
  retention: 5m
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "mock", cfg.Inference.Provider)

	retention, interval, err := cfg.Orchestrator.Durations()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, retention)
	assert.Equal(t, time.Minute, interval)
}

func TestLoad_BadRetention(t *testing.T) {
	path := writeConfig(t, `
inference:
  provider: mock
orchestrator:
  retention: soon
`)

	_, err := Load(path)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "retention")
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("TEST_TOOLCHAIN_KEY", "sk-test-123")

	path := writeConfig(t, `
inference:
  provider: openai
  model_name: gpt-4o-mini
  api_key: ${TEST_TOOLCHAIN_KEY}
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "sk-test-123", cfg.Inference.APIKey)
}

func TestLoad_OpenAIRequiresAPIKey(t *testing.T) {
	path := writeConfig(t, `
inference:
  provider: openai
`)

	_, err := Load(path)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "api_key")
}

func TestLoad_UnknownProvider(t *testing.T) {
	path := writeConfig(t, `
inference:
  provider: oracle
`)

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_ArchiveValidation(t *testing.T) {
	path := writeConfig(t, `
inference:
  provider: mock
archive:
  enabled: true
  endpoint: s3.local:9000
`)

	_, err := Load(path)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "archive.bucket")
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	assert.Error(t, err)
}

func TestInferenceConfig_GetDefaults(t *testing.T) {
	cfg := InferenceConfig{}
	def := cfg.GetDefaults()

	assert.Equal(t, "mock", def.Provider)
	assert.Equal(t, 60, def.RateLimit)
	assert.Equal(t, 3, def.BurstLimit)
	assert.Equal(t, "30s", def.Timeout)

	// Заполненные поля не перетираются
	cfg = InferenceConfig{Provider: "openai", RateLimit: 10}
	def = cfg.GetDefaults()
	assert.Equal(t, "openai", def.Provider)
	assert.Equal(t, 10, def.RateLimit)
}

func TestOrchestratorConfig_GetDefaults(t *testing.T) {
	cfg := OrchestratorConfig{}
	def := cfg.GetDefaults()

	assert.Equal(t, "10m", def.Retention)
	assert.Equal(t, "1m", def.JanitorInterval)
	assert.Equal(t, 64, def.EventBuffer)

	retention, interval, err := cfg.Durations()
	require.NoError(t, err)
	assert.Equal(t, 10*time.Minute, retention)
	assert.Equal(t, time.Minute, interval)
}
