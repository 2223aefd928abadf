package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())

	assert.False(t, cfg.Postgres.Enabled())
	assert.False(t, cfg.Redis.Enabled())
	assert.False(t, cfg.S3.Enabled())
	assert.Equal(t, time.Second, cfg.Game.TickInterval.Duration)
}

func TestLoadMergesFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
mode = "serve"

[server]
port = 9100

[game]
save_interval = "45s"
`), 0o600))

	t.Setenv("PETTYCOON_REDIS_ADDR", "localhost:6379")
	t.Setenv("PETTYCOON_SERVER_CORS_ORIGINS", "https://play.example.com, https://admin.example.com")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "serve", cfg.Mode)
	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, 45*time.Second, cfg.Game.SaveInterval.Duration)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, []string{"https://play.example.com", "https://admin.example.com"}, cfg.Server.CORSOrigins)
	// File and env leave the tick interval at its default.
	assert.Equal(t, time.Second, cfg.Game.TickInterval.Duration)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "turbo"
	cfg.Server.Port = 0
	cfg.Game.TickInterval = duration{0}
	cfg.S3.Bucket = "archives"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
	assert.Contains(t, err.Error(), "server: port")
	assert.Contains(t, err.Error(), "tick_interval")
	assert.Contains(t, err.Error(), "s3: region")
}

func TestRedactedConfigMasksSecrets(t *testing.T) {
	cfg := Defaults()
	cfg.Postgres.Password = "hunter2"
	cfg.Server.APIKey = "sk-test"
	cfg.Notify.TelegramToken = "12345:token"

	out := RedactedConfig(&cfg)

	assert.Equal(t, "***", out.Postgres.Password)
	assert.Equal(t, "***", out.Server.APIKey)
	assert.Equal(t, "***", out.Notify.TelegramToken)
	// Original is untouched.
	assert.Equal(t, "hunter2", cfg.Postgres.Password)
}
