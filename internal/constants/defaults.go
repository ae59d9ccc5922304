package constants

const (
	// Server defaults
	DefaultServerPort      = "8081"
	DefaultReadTimeoutSec  = 15
	DefaultWriteTimeoutSec = 15
	DefaultIdleTimeoutSec  = 60
	DefaultMaxBodyBytes    = 64 * 1024
	DefaultRateLimitPerMin = 120
	DefaultShutdownSec     = 10

	// Token issuing
	TokenBytes            = 16
	MaxTokenIssueAttempts = 5

	// Notification mirror worker
	DefaultNotifyPollIntervalMs    = 5000
	DefaultNotifyMaxAttempts       = 5
	DefaultNotifySendTimeoutSec    = 10
	DefaultNotifyBatchSize         = 20
	DefaultNotifyRetryBackoffMs    = 2000
	DefaultNotifyRetryMaxBackoffMs = 60000

	// Query bounds
	DefaultLastLimit = 20
	MaxLastLimit     = 100
	MaxFindResults   = 50
	MaxFindQueryLen  = 128

	// Database retry
	DefaultDatabaseRetryAttempts = 3
	DefaultRetryInitialBackoffMs = 500
	DefaultRetryMaxBackoffMs     = 5000

	// Telegram
	DefaultBotPollTimeoutSec = 30

	// At-rest encryption of sensitive columns
	EncryptionSalt       = "leadinbox-column-encryption-v1"
	EncryptionLookupSalt = "leadinbox-lookup-v1"
	EncryptionNonceSize  = 12
	EncryptionKeySize    = 32
	EncryptionIterations = 100000
)
