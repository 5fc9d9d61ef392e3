package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const minimalConfig = `
app:
  name: shelfsync
  environment: test
database:
  path: data/test.db
catalog:
  base_url: http://esl.local
`

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.API.HTTP.Port)
	assert.Equal(t, 8081, cfg.API.GRPC.Port)
	assert.Equal(t, "x-api-key", cfg.API.Auth.HeaderAPIKey)
	assert.Equal(t, 30, cfg.Catalog.TimeoutSeconds)
	assert.Equal(t, 120, cfg.Catalog.RateLimitPerMinute)
	assert.Equal(t, 5, cfg.Syncer.PollIntervalSeconds)
	assert.Equal(t, 20, cfg.Syncer.BatchSize)
	assert.Equal(t, 3, cfg.Syncer.MaxRetries)
	assert.Equal(t, 60, cfg.Scheduler.PollIntervalSeconds)
	assert.Equal(t, "configs/stores.yaml", cfg.StoresFile)
	assert.Equal(t, "exports", cfg.Exports.Path)
}

func TestLoadExpandsEnvironment(t *testing.T) {
	t.Setenv("TEST_ESL_URL", "https://esl.example.com")

	cfg, err := Load(writeConfig(t, `
database:
  path: data/test.db
catalog:
  base_url: "${TEST_ESL_URL}"
`))
	require.NoError(t, err)
	assert.Equal(t, "https://esl.example.com", cfg.Catalog.BaseURL)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidateRequiresDatabasePath(t *testing.T) {
	_, err := Load(writeConfig(t, `
catalog:
  base_url: http://esl.local
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database path")
}

func TestValidateRequiresCatalogURL(t *testing.T) {
	_, err := Load(writeConfig(t, `
database:
  path: data/test.db
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "base_url")
}

func TestValidateTelegramToken(t *testing.T) {
	_, err := Load(writeConfig(t, minimalConfig+`
telegram:
  enabled: true
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "telegram bot token")
}

func TestAuthEnabledByKeys(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig+`
api:
  auth:
    api_keys:
      - key: secret
        name: ops
        permissions: ["read:sync"]
`))
	require.NoError(t, err)
	assert.True(t, cfg.API.Auth.Enabled)
	require.Len(t, cfg.API.Auth.APIKeys, 1)
	assert.Equal(t, "ops", cfg.API.Auth.APIKeys[0].Name)
}
