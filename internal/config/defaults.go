package config

import "time"

// EnvPrefix prefixes every environment override, e.g. GROUPPILOT_TELEGRAM_TOKEN.
const EnvPrefix = "GROUPPILOT"

// Default values shared by setDefaults and `grouppilot config init`.
const (
	DefaultGatewayURL       = "ws://127.0.0.1:8790/rpc"
	DefaultSessionDirPrefix = "wa_"
	DefaultServerPort       = 8780
	DefaultPollTimeoutSecs  = 30
	DefaultRateLimit        = 120
	DefaultRequestTimeout   = 30 * time.Second

	DefaultMaxReconnectAttempts = 3
	DefaultReconnectDelay       = 5 * time.Second
	DefaultOpenSettleDelay      = 5 * time.Second
	DefaultRestoreDelay         = 2 * time.Second
	DefaultPairingSettle        = 3 * time.Second
	DefaultQRThrottle           = 30 * time.Second

	DefaultApprovalDelay    = 1 * time.Second
	DefaultToggleSweepDelay = 1 * time.Second

	DefaultRenameDelay    = 5 * time.Second
	DefaultRateLimitDelay = 10 * time.Second
)
