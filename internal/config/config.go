package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"leadinbox/internal/constants"
	"leadinbox/internal/models"
	"leadinbox/internal/security"
)

var (
	ErrMissingDBPath = models.ConfigError{Message: "missing database path"}
)

// LoadConfig reads the JSON config file, applies defaults and environment
// overrides, and validates the result.
func LoadConfig(path string) (*models.Config, error) {
	if err := security.ValidateFilePath(path); err != nil {
		return nil, fmt.Errorf("invalid config path: %w", err)
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var config models.Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, err
	}

	applyEnvironmentOverrides(&config)

	if err := validate(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func validate(c *models.Config) error {
	if c.Database.Path == "" {
		return ErrMissingDBPath
	}

	if c.Telegram.BotToken == "" && !c.Telegram.DryRun {
		return models.ConfigError{Message: "telegram bot token is required unless dry_run is set"}
	}

	if os.Getenv("LEADINBOX_ENV") == "production" && c.Telegram.DryRun {
		return models.ConfigError{Message: "dry_run must not be enabled in production"}
	}

	applyDefaults(c)
	return nil
}

func applyDefaults(c *models.Config) {
	if c.Server.Port == "" {
		c.Server.Port = constants.DefaultServerPort
	}
	if c.Server.ReadTimeoutSec <= 0 {
		c.Server.ReadTimeoutSec = constants.DefaultReadTimeoutSec
	}
	if c.Server.WriteTimeoutSec <= 0 {
		c.Server.WriteTimeoutSec = constants.DefaultWriteTimeoutSec
	}
	if c.Server.IdleTimeoutSec <= 0 {
		c.Server.IdleTimeoutSec = constants.DefaultIdleTimeoutSec
	}
	if c.Server.MaxBodyBytes <= 0 {
		c.Server.MaxBodyBytes = constants.DefaultMaxBodyBytes
	}
	if c.Server.RateLimitPerMinute <= 0 {
		c.Server.RateLimitPerMinute = constants.DefaultRateLimitPerMin
	}

	if c.Telegram.PollTimeoutSec <= 0 {
		c.Telegram.PollTimeoutSec = constants.DefaultBotPollTimeoutSec
	}

	if c.Notify.PollIntervalMs <= 0 {
		c.Notify.PollIntervalMs = constants.DefaultNotifyPollIntervalMs
	}
	if c.Notify.MaxAttempts <= 0 {
		c.Notify.MaxAttempts = constants.DefaultNotifyMaxAttempts
	}
	if c.Notify.SendTimeoutSec <= 0 {
		c.Notify.SendTimeoutSec = constants.DefaultNotifySendTimeoutSec
	}
	if c.Notify.BatchSize <= 0 {
		c.Notify.BatchSize = constants.DefaultNotifyBatchSize
	}
	if c.Notify.RetryBackoffMs <= 0 {
		c.Notify.RetryBackoffMs = constants.DefaultNotifyRetryBackoffMs
	}
	if c.Notify.RetryMaxBackoffMs <= 0 {
		c.Notify.RetryMaxBackoffMs = constants.DefaultNotifyRetryMaxBackoffMs
	}

	if c.Retry.InitialBackoffMs <= 0 {
		c.Retry.InitialBackoffMs = constants.DefaultRetryInitialBackoffMs
	}
	if c.Retry.MaxBackoffMs <= 0 {
		c.Retry.MaxBackoffMs = constants.DefaultRetryMaxBackoffMs
	}
	if c.Retry.MaxAttempts <= 0 {
		c.Retry.MaxAttempts = constants.DefaultDatabaseRetryAttempts
	}

	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = "leadinbox"
	}
	if c.Tracing.SampleRate <= 0 {
		c.Tracing.SampleRate = 0.1
	}
}

func applyEnvironmentOverrides(c *models.Config) {
	// The bot token is a secret; prefer the environment over the file.
	if token := os.Getenv("TELEGRAM_BOT_TOKEN"); token != "" {
		c.Telegram.BotToken = token
	}
	if dryRun := os.Getenv("TELEGRAM_DRY_RUN"); dryRun != "" {
		c.Telegram.DryRun = isTruthy(dryRun)
	}
	if path := os.Getenv("DB_PATH"); path != "" {
		c.Database.Path = path
	}
	if port := os.Getenv("PORT"); port != "" {
		c.Server.Port = port
	}
	if publicURL := os.Getenv("PUBLIC_URL"); publicURL != "" {
		c.Server.PublicURL = publicURL
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.LogLevel = level
	}
}

func isTruthy(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "y":
		return true
	}
	return false
}
