package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, "gpt-4o", cfg.OpenAI.DefaultModel)
	assert.Equal(t, "sidekick_session", cfg.Session.CookieName)
	assert.True(t, cfg.CMS.AllowAdminChanges)

	assert.NotContains(t, cfg.DatabaseURL, "cache=shared")
	for _, param := range []string{"_journal_mode=WAL", "_foreign_keys=on", "_busy_timeout=5000", "_txlock=immediate"} {
		assert.Contains(t, cfg.DatabaseURL, param)
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sidekick.yaml")
	content := `
http_port: 9000
mode: mock
openai:
  default_model: gpt-4.1
cms:
  host_version: "4.5.0"
  allow_admin_changes: false
session:
  idle_ttl: 48h
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	t.Setenv("HTTP_PORT", "9100")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.HTTPPort)
	assert.Equal(t, ModeMock, cfg.Mode)
	assert.Equal(t, "gpt-4.1", cfg.OpenAI.DefaultModel)
	assert.Equal(t, "4.5.0", cfg.CMS.HostVersion)
	assert.False(t, cfg.CMS.AllowAdminChanges)
	assert.Equal(t, 48*time.Hour, cfg.Session.IdleTTL)
	assert.Equal(t, 10*time.Minute, cfg.Session.SweepInterval)
	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	cfg := Default()
	assert.Error(t, cfg.Validate(), "live mode without an api key")

	cfg.OpenAI.APIKey = "sk-test"
	assert.NoError(t, cfg.Validate())

	cfg.Mode = "dry"
	assert.Error(t, cfg.Validate())

	cfg.Mode = ModeMock
	cfg.HTTPPort = 0
	assert.Error(t, cfg.Validate())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
