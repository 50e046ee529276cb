// Package config handles configuration management for grouppilot.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Telegram TelegramConfig `mapstructure:"telegram" yaml:"telegram"`
	Gateway  GatewayConfig  `mapstructure:"gateway" yaml:"gateway"`
	Sessions SessionsConfig `mapstructure:"sessions" yaml:"sessions"`
	Approval ApprovalConfig `mapstructure:"approval" yaml:"approval"`
	Rename   RenameConfig   `mapstructure:"rename" yaml:"rename"`
	Journal  JournalConfig  `mapstructure:"journal" yaml:"journal"`
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	Logging  LoggingConfig  `mapstructure:"logging" yaml:"logging"`

	v *viper.Viper
}

// TelegramConfig holds the bot front-end configuration.
type TelegramConfig struct {
	Token           string   `mapstructure:"token" yaml:"token"`
	APIEndpoint     string   `mapstructure:"api_endpoint" yaml:"api_endpoint"` // Optional: self-hosted Bot API server, "https://host/bot%s/%s"
	Owners          []string `mapstructure:"owners" yaml:"owners"`             // Telegram user IDs allowed to use the bot; empty allows everyone
	PollTimeoutSecs int      `mapstructure:"poll_timeout_secs" yaml:"poll_timeout_secs"`
	Debug           bool     `mapstructure:"debug" yaml:"debug"`
}

// GatewayConfig holds the protocol gateway connection settings.
type GatewayConfig struct {
	URL              string        `mapstructure:"url" yaml:"url"`
	HandshakeTimeout time.Duration `mapstructure:"handshake_timeout" yaml:"handshake_timeout"`
	CallTimeout      time.Duration `mapstructure:"call_timeout" yaml:"call_timeout"`
}

// SessionsConfig holds session lifecycle settings.
type SessionsConfig struct {
	Path                 string        `mapstructure:"path" yaml:"path"`
	DirPrefix            string        `mapstructure:"dir_prefix" yaml:"dir_prefix"`
	AgeIdentityFile      string        `mapstructure:"age_identity_file" yaml:"age_identity_file"` // Optional: seal credentials at rest
	MaxReconnectAttempts int           `mapstructure:"max_reconnect_attempts" yaml:"max_reconnect_attempts"`
	ReconnectDelay       time.Duration `mapstructure:"reconnect_delay" yaml:"reconnect_delay"`
	OpenSettleDelay      time.Duration `mapstructure:"open_settle_delay" yaml:"open_settle_delay"`
	RestoreDelay         time.Duration `mapstructure:"restore_delay" yaml:"restore_delay"`
	PairingSettle        time.Duration `mapstructure:"pairing_settle" yaml:"pairing_settle"`
	QRThrottle           time.Duration `mapstructure:"qr_throttle" yaml:"qr_throttle"`
}

// ApprovalConfig holds join-request approval pacing.
type ApprovalConfig struct {
	Delay            time.Duration `mapstructure:"delay" yaml:"delay"`
	ToggleSweepDelay time.Duration `mapstructure:"toggle_sweep_delay" yaml:"toggle_sweep_delay"`
}

// RenameConfig holds batch rename pacing.
type RenameConfig struct {
	Delay          time.Duration `mapstructure:"delay" yaml:"delay"`
	RateLimitDelay time.Duration `mapstructure:"rate_limit_delay" yaml:"rate_limit_delay"`
}

// JournalConfig holds the audit journal settings.
type JournalConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Path    string `mapstructure:"path" yaml:"path"`
}

// ServerConfig holds the status API settings.
type ServerConfig struct {
	Enabled        bool          `mapstructure:"enabled" yaml:"enabled"`
	Host           string        `mapstructure:"host" yaml:"host"`
	Port           int           `mapstructure:"port" yaml:"port"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	RateLimit      int           `mapstructure:"rate_limit" yaml:"rate_limit"` // Requests per minute per client IP on /api; 0 disables
	Pprof          bool          `mapstructure:"pprof" yaml:"pprof"`
	AuthToken      string        `mapstructure:"auth_token" yaml:"auth_token"`           // Optional: bearer token required on /api, /rpc and /debug
	AllowedOrigins []string      `mapstructure:"allowed_origins" yaml:"allowed_origins"` // Extra websocket origins; localhost and same-host are always allowed
	TrustedProxies []string      `mapstructure:"trusted_proxies" yaml:"trusted_proxies"` // IPs or CIDRs whose X-Forwarded-For is honored
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// Load loads configuration from files and environment.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.grouppilot")
		v.AddConfigPath("/etc/grouppilot")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// A missing config file is fine; everything has a default or an env var.
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg, err := decode(v)
	if err != nil {
		return nil, err
	}
	cfg.v = v
	return cfg, nil
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	if err := postProcess(&cfg); err != nil {
		return nil, err
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.api_endpoint", "")
	v.SetDefault("telegram.owners", []string{})
	v.SetDefault("telegram.poll_timeout_secs", DefaultPollTimeoutSecs)
	v.SetDefault("telegram.debug", false)

	v.SetDefault("gateway.url", DefaultGatewayURL)
	v.SetDefault("gateway.handshake_timeout", 10*time.Second)
	v.SetDefault("gateway.call_timeout", 30*time.Second)

	v.SetDefault("sessions.path", "")
	v.SetDefault("sessions.dir_prefix", DefaultSessionDirPrefix)
	v.SetDefault("sessions.age_identity_file", "")
	v.SetDefault("sessions.max_reconnect_attempts", DefaultMaxReconnectAttempts)
	v.SetDefault("sessions.reconnect_delay", DefaultReconnectDelay)
	v.SetDefault("sessions.open_settle_delay", DefaultOpenSettleDelay)
	v.SetDefault("sessions.restore_delay", DefaultRestoreDelay)
	v.SetDefault("sessions.pairing_settle", DefaultPairingSettle)
	v.SetDefault("sessions.qr_throttle", DefaultQRThrottle)

	v.SetDefault("approval.delay", DefaultApprovalDelay)
	v.SetDefault("approval.toggle_sweep_delay", DefaultToggleSweepDelay)

	v.SetDefault("rename.delay", DefaultRenameDelay)
	v.SetDefault("rename.rate_limit_delay", DefaultRateLimitDelay)

	v.SetDefault("journal.enabled", true)
	v.SetDefault("journal.path", "")

	v.SetDefault("server.enabled", false)
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", DefaultServerPort)
	v.SetDefault("server.request_timeout", DefaultRequestTimeout)
	v.SetDefault("server.rate_limit", DefaultRateLimit)
	v.SetDefault("server.pprof", false)
	v.SetDefault("server.auth_token", "")
	v.SetDefault("server.allowed_origins", []string{})
	v.SetDefault("server.trusted_proxies", []string{})

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}

// postProcess resolves paths and normalizes list values.
func postProcess(cfg *Config) error {
	if cfg.Sessions.Path == "" {
		dir, err := GetConfigDir()
		if err != nil {
			return fmt.Errorf("failed to resolve sessions path: %w", err)
		}
		cfg.Sessions.Path = filepath.Join(dir, "sessions")
	}
	path, err := expandPath(cfg.Sessions.Path)
	if err != nil {
		return fmt.Errorf("failed to resolve sessions path: %w", err)
	}
	cfg.Sessions.Path = path

	if cfg.Sessions.AgeIdentityFile != "" {
		path, err := expandPath(cfg.Sessions.AgeIdentityFile)
		if err != nil {
			return fmt.Errorf("failed to resolve age identity path: %w", err)
		}
		cfg.Sessions.AgeIdentityFile = path
	}

	if cfg.Journal.Path == "" {
		dir, err := GetConfigDir()
		if err != nil {
			return fmt.Errorf("failed to resolve journal path: %w", err)
		}
		cfg.Journal.Path = filepath.Join(dir, "journal.db")
	}
	path, err = expandPath(cfg.Journal.Path)
	if err != nil {
		return fmt.Errorf("failed to resolve journal path: %w", err)
	}
	cfg.Journal.Path = path

	cfg.Telegram.Owners = normalizeOwners(cfg.Telegram.Owners)
	cfg.Logging.Level = strings.ToLower(strings.TrimSpace(cfg.Logging.Level))
	cfg.Logging.Format = strings.ToLower(strings.TrimSpace(cfg.Logging.Format))

	return nil
}

// normalizeOwners trims entries and splits comma-separated values, which is
// how a list arrives from GROUPPILOT_TELEGRAM_OWNERS.
func normalizeOwners(owners []string) []string {
	out := make([]string, 0, len(owners))
	seen := make(map[string]bool, len(owners))
	for _, entry := range owners {
		for _, id := range strings.FieldsFunc(entry, func(r rune) bool { return r == ',' || r == ' ' }) {
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

func expandPath(path string) (string, error) {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		path = filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return filepath.Abs(path)
}

// ConfigFile returns the config file in use, or "" when running on defaults.
func (c *Config) ConfigFile() string {
	if c.v == nil {
		return ""
	}
	return c.v.ConfigFileUsed()
}

// Watch reloads the config file whenever it is written and hands the result
// to onChange. A reload that fails to parse or validate is reported through
// err and the previous config stays in effect. Watch is a no-op when no
// config file was found.
func (c *Config) Watch(onChange func(cfg *Config, err error)) {
	if c.v == nil || c.v.ConfigFileUsed() == "" {
		return
	}
	v := c.v
	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		next, err := decode(v)
		if err != nil {
			onChange(nil, fmt.Errorf("reload %s: %w", e.Name, err))
			return
		}
		next.v = v
		onChange(next, nil)
	})
	v.WatchConfig()
}

// IsOwner reports whether userID may use the bot. An empty owner list
// allows everyone.
func (c *Config) IsOwner(userID string) bool {
	if len(c.Telegram.Owners) == 0 {
		return true
	}
	for _, id := range c.Telegram.Owners {
		if id == userID {
			return true
		}
	}
	return false
}

// GetConfigDir returns the user config directory for grouppilot.
func GetConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".grouppilot"), nil
}

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() (string, error) {
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", err
	}
	return dir, nil
}
