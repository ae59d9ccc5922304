package config

import (
	"os"
	"path/filepath"
	"testing"

	"leadinbox/internal/constants"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, `{
		"database": {"path": "/tmp/leadinbox.db"},
		"telegram": {"dry_run": true}
	}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, constants.DefaultServerPort, cfg.Server.Port)
	assert.Equal(t, constants.DefaultReadTimeoutSec, cfg.Server.ReadTimeoutSec)
	assert.Equal(t, int64(constants.DefaultMaxBodyBytes), cfg.Server.MaxBodyBytes)
	assert.Equal(t, constants.DefaultNotifyPollIntervalMs, cfg.Notify.PollIntervalMs)
	assert.Equal(t, constants.DefaultNotifyMaxAttempts, cfg.Notify.MaxAttempts)
	assert.Equal(t, constants.DefaultNotifyRetryBackoffMs, cfg.Notify.RetryBackoffMs)
	assert.Equal(t, constants.DefaultNotifyRetryMaxBackoffMs, cfg.Notify.RetryMaxBackoffMs)
	assert.Equal(t, constants.DefaultBotPollTimeoutSec, cfg.Telegram.PollTimeoutSec)
	assert.Equal(t, "leadinbox", cfg.Tracing.ServiceName)
}

func TestLoadConfigMissingDatabasePath(t *testing.T) {
	path := writeConfig(t, `{"telegram": {"dry_run": true}}`)

	_, err := LoadConfig(path)
	assert.ErrorIs(t, err, ErrMissingDBPath)
}

func TestLoadConfigRequiresBotTokenUnlessDryRun(t *testing.T) {
	path := writeConfig(t, `{"database": {"path": "/tmp/leadinbox.db"}}`)

	_, err := LoadConfig(path)
	assert.Error(t, err)

	path = writeConfig(t, `{
		"database": {"path": "/tmp/leadinbox.db"},
		"telegram": {"bot_token": "123:abc"}
	}`)
	_, err = LoadConfig(path)
	assert.NoError(t, err)
}

func TestLoadConfigRejectsDryRunInProduction(t *testing.T) {
	t.Setenv("LEADINBOX_ENV", "production")

	path := writeConfig(t, `{
		"database": {"path": "/tmp/leadinbox.db"},
		"telegram": {"dry_run": true}
	}`)

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfigEnvironmentOverrides(t *testing.T) {
	t.Setenv("TELEGRAM_BOT_TOKEN", "999:override")
	t.Setenv("DB_PATH", "/tmp/override.db")
	t.Setenv("PORT", "9090")
	t.Setenv("PUBLIC_URL", "https://leads.example.com")
	t.Setenv("LOG_LEVEL", "debug")

	path := writeConfig(t, `{
		"database": {"path": "/tmp/file.db"},
		"server": {"port": "8081"},
		"telegram": {"bot_token": "111:file"}
	}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "999:override", cfg.Telegram.BotToken)
	assert.Equal(t, "/tmp/override.db", cfg.Database.Path)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "https://leads.example.com", cfg.Server.PublicURL)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadConfigDryRunOverride(t *testing.T) {
	t.Setenv("TELEGRAM_DRY_RUN", "true")

	path := writeConfig(t, `{"database": {"path": "/tmp/leadinbox.db"}}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.True(t, cfg.Telegram.DryRun)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestLoadConfigMalformedJSON(t *testing.T) {
	path := writeConfig(t, `{not json`)

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestIsTruthy(t *testing.T) {
	assert.True(t, isTruthy("1"))
	assert.True(t, isTruthy("true"))
	assert.True(t, isTruthy("YES"))
	assert.True(t, isTruthy(" y "))
	assert.False(t, isTruthy("0"))
	assert.False(t, isTruthy("false"))
	assert.False(t, isTruthy(""))
}
