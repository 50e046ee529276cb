package config

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/brianly1003/grouppilot/internal/security"
)

// Validate validates the configuration.
func Validate(cfg *Config) error {
	if err := validateTelegram(&cfg.Telegram); err != nil {
		return err
	}

	if err := validateGateway(&cfg.Gateway); err != nil {
		return err
	}

	if err := validateSessions(&cfg.Sessions); err != nil {
		return err
	}

	if err := validatePacing(cfg); err != nil {
		return err
	}

	if err := validateServer(&cfg.Server); err != nil {
		return err
	}

	if err := validateLogging(&cfg.Logging); err != nil {
		return err
	}

	return nil
}

func validateTelegram(cfg *TelegramConfig) error {
	for _, owner := range cfg.Owners {
		if _, err := strconv.ParseInt(owner, 10, 64); err != nil {
			return fmt.Errorf("telegram.owners contains a non-numeric user id: %q", owner)
		}
	}
	if cfg.APIEndpoint != "" && strings.Count(cfg.APIEndpoint, "%s") != 2 {
		return fmt.Errorf("telegram.api_endpoint must contain two %%s placeholders (token, method)")
	}
	if cfg.PollTimeoutSecs < 1 || cfg.PollTimeoutSecs > 120 {
		return fmt.Errorf("telegram.poll_timeout_secs must be between 1 and 120")
	}
	return nil
}

func validateGateway(cfg *GatewayConfig) error {
	parsed, err := url.Parse(cfg.URL)
	if err != nil {
		return fmt.Errorf("gateway.url is not a valid URL: %w", err)
	}
	if parsed.Host == "" {
		return fmt.Errorf("gateway.url must include a host")
	}
	if !strings.EqualFold(parsed.Scheme, "ws") && !strings.EqualFold(parsed.Scheme, "wss") {
		return fmt.Errorf("gateway.url must use one of these schemes: ws, wss")
	}
	if cfg.HandshakeTimeout <= 0 {
		return fmt.Errorf("gateway.handshake_timeout must be positive")
	}
	if cfg.CallTimeout <= 0 {
		return fmt.Errorf("gateway.call_timeout must be positive")
	}
	return nil
}

func validateSessions(cfg *SessionsConfig) error {
	if cfg.DirPrefix == "" {
		return fmt.Errorf("sessions.dir_prefix cannot be empty")
	}
	if strings.ContainsAny(cfg.DirPrefix, `/\`) {
		return fmt.Errorf("sessions.dir_prefix cannot contain path separators")
	}
	if cfg.MaxReconnectAttempts < 1 {
		return fmt.Errorf("sessions.max_reconnect_attempts must be at least 1")
	}
	if cfg.MaxReconnectAttempts > 20 {
		return fmt.Errorf("sessions.max_reconnect_attempts cannot exceed 20")
	}
	return validateDurations(map[string]time.Duration{
		"sessions.reconnect_delay":   cfg.ReconnectDelay,
		"sessions.open_settle_delay": cfg.OpenSettleDelay,
		"sessions.restore_delay":     cfg.RestoreDelay,
		"sessions.pairing_settle":    cfg.PairingSettle,
		"sessions.qr_throttle":       cfg.QRThrottle,
	})
}

func validatePacing(cfg *Config) error {
	return validateDurations(map[string]time.Duration{
		"approval.delay":              cfg.Approval.Delay,
		"approval.toggle_sweep_delay": cfg.Approval.ToggleSweepDelay,
		"rename.delay":                cfg.Rename.Delay,
		"rename.rate_limit_delay":     cfg.Rename.RateLimitDelay,
	})
}

func validateDurations(fields map[string]time.Duration) error {
	for name, d := range fields {
		if d < 0 {
			return fmt.Errorf("%s cannot be negative", name)
		}
	}
	return nil
}

func validateServer(cfg *ServerConfig) error {
	if !cfg.Enabled {
		return nil
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if cfg.Host == "" {
		return fmt.Errorf("server.host cannot be empty")
	}
	if cfg.RateLimit < 0 {
		return fmt.Errorf("server.rate_limit cannot be negative")
	}
	if cfg.RequestTimeout < 0 {
		return fmt.Errorf("server.request_timeout cannot be negative")
	}
	if _, err := security.ParseTrustedProxies(cfg.TrustedProxies); err != nil {
		return fmt.Errorf("server.trusted_proxies: %w", err)
	}
	return nil
}

func validateLogging(cfg *LoggingConfig) error {
	switch cfg.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	switch cfg.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be one of: console, json")
	}
	return nil
}
