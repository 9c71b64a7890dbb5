package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, ":5000", cfg.Server.Addr)
	assert.False(t, cfg.Database.Enabled)
	assert.Equal(t, "https://api.mistral.ai/v1", cfg.AI.BaseURL)
	assert.Equal(t, "mistral-large-latest", cfg.AI.Model)
	assert.Equal(t, 20*time.Second, cfg.AI.Timeout)
	assert.Equal(t, 30*time.Second, cfg.Scanner.Interval)
	assert.False(t, cfg.Punishment.AutoApplyPredeclared)
	assert.Equal(t, 16, cfg.Notify.SendBuffer)
	assert.False(t, cfg.Mirror.Enabled())
}

func TestLoad_FileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	yaml := `
scanner:
  interval: 5s
ai:
  model: mistral-small-latest
telegram:
  chats:
    "7": 123456
  admins: [99]
mirror:
  api_key: key
  base_id: app123
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o600))
	t.Setenv("AI_MODEL", "from-env")
	t.Setenv("DATABASE_PORT", "6543")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, cfg.Scanner.Interval)
	assert.Equal(t, "from-env", cfg.AI.Model)
	assert.Equal(t, 6543, cfg.Database.Port)
	assert.True(t, cfg.Mirror.Enabled())

	assert.Equal(t, map[string]int64{"7": 123456}, cfg.Telegram.Chats)
	assert.Equal(t, []int64{99}, cfg.Telegram.Admins)
}

func TestDatabaseConfig_DSN(t *testing.T) {
	d := DatabaseConfig{User: "u", Password: "p", Host: "h", Port: 5432, Name: "n"}
	assert.Equal(t, "postgres://u:p@h:5432/n?sslmode=disable", d.DSN())
}
