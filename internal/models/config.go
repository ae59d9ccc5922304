package models

// ConfigError indicates an invalid or incomplete configuration.
type ConfigError struct {
	Message string
}

func (e ConfigError) Error() string {
	return "config: " + e.Message
}

type DatabaseConfig struct {
	Path string `json:"path"`
}

type ServerConfig struct {
	Port               string `json:"port"`
	PublicURL          string `json:"public_url,omitempty"`
	ReadTimeoutSec     int    `json:"read_timeout_sec"`
	WriteTimeoutSec    int    `json:"write_timeout_sec"`
	IdleTimeoutSec     int    `json:"idle_timeout_sec"`
	MaxBodyBytes       int64  `json:"max_body_bytes"`
	RateLimitPerMinute int    `json:"rate_limit_per_minute"`
}

type TelegramConfig struct {
	BotToken       string `json:"bot_token"`
	DryRun         bool   `json:"dry_run"`
	PollTimeoutSec int    `json:"poll_timeout_sec"`
}

// NotifyConfig tunes the chat-mirror worker. PollIntervalMs and the retry
// backoff are injectable so tests can run the loop with synthetic intervals.
type NotifyConfig struct {
	PollIntervalMs    int `json:"poll_interval_ms"`
	MaxAttempts       int `json:"max_attempts"`
	SendTimeoutSec    int `json:"send_timeout_sec"`
	BatchSize         int `json:"batch_size"`
	RetryBackoffMs    int `json:"retry_backoff_ms"`
	RetryMaxBackoffMs int `json:"retry_max_backoff_ms"`
}

type RetryConfig struct {
	InitialBackoffMs int `json:"initial_backoff_ms"`
	MaxBackoffMs     int `json:"max_backoff_ms"`
	MaxAttempts      int `json:"max_attempts"`
}

type TracingConfig struct {
	Enabled        bool    `json:"enabled"`
	ServiceName    string  `json:"service_name"`
	ServiceVersion string  `json:"service_version"`
	Environment    string  `json:"environment"`
	OTLPEndpoint   string  `json:"otlp_endpoint"`
	SampleRate     float64 `json:"sample_rate"`
	UseStdout      bool    `json:"use_stdout"`
}

type Config struct {
	LogLevel string         `json:"log_level"`
	Database DatabaseConfig `json:"database"`
	Server   ServerConfig   `json:"server"`
	Telegram TelegramConfig `json:"telegram"`
	Notify   NotifyConfig   `json:"notify"`
	Retry    RetryConfig    `json:"retry"`
	Tracing  TracingConfig  `json:"tracing"`
}
