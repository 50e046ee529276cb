package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/brianly1003/grouppilot/internal/config"
	"github.com/brianly1003/grouppilot/internal/security"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	configInitLocal bool
	configInitForce bool
)

// configCmd displays or manages configuration.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Display and manage configuration",
	Long: `Display and manage grouppilot configuration.

Without subcommands, shows the current effective configuration.

Examples:
  grouppilot config              # Show current config
  grouppilot config init         # Create config file with defaults
  grouppilot config path         # Show config file location
  grouppilot config get <key>    # Get a config value
  grouppilot config set <key> <value>  # Set a config value`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		printConfig(cfg)
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a config file with default settings",
	Long: `Create a config file with default settings and documentation.

By default, creates ~/.grouppilot/config.yaml.
Use --local to create ./config.yaml in the current directory.

Examples:
  grouppilot config init          # Create ~/.grouppilot/config.yaml
  grouppilot config init --local  # Create ./config.yaml
  grouppilot config init --force  # Overwrite existing file`,
	RunE: runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show config file location",
	RunE:  runConfigPath,
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a configuration value",
	Long: `Get a configuration value by key.

Keys use dot notation to access nested values. A section name prints the
whole section.

Examples:
  grouppilot config get gateway.url
  grouppilot config get sessions.reconnect_delay
  grouppilot config get telegram.owners`,
	Args: cobra.ExactArgs(1),
	RunE: runConfigGet,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value by key.

Creates the config file if it doesn't exist. Comma separated values are
stored as a list for telegram.owners.

Examples:
  grouppilot config set telegram.owners 123456789,987654321
  grouppilot config set rename.delay 3s
  grouppilot config set server.enabled true`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)

	configInitCmd.Flags().BoolVar(&configInitLocal, "local", false, "create config in current directory instead of ~/.grouppilot/")
	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "overwrite existing config file")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	var configPath string

	if configInitLocal {
		configPath = "config.yaml"
	} else {
		configDir, err := config.EnsureConfigDir()
		if err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
		configPath = filepath.Join(configDir, "config.yaml")
	}

	if _, err := os.Stat(configPath); err == nil && !configInitForce {
		return fmt.Errorf("config file already exists: %s\nUse --force to overwrite", configPath)
	}

	token, err := security.GenerateToken()
	if err != nil {
		return fmt.Errorf("failed to generate control token: %w", err)
	}
	if err := os.WriteFile(configPath, []byte(defaultConfig(token)), 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	fmt.Printf("Created %s\n", configPath)
	fmt.Println("Set telegram.token and telegram.owners before running grouppilot start.")
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	configDir, err := config.GetConfigDir()
	if err != nil {
		return fmt.Errorf("failed to get config dir: %w", err)
	}

	locations := []string{
		"./config.yaml",
		filepath.Join(configDir, "config.yaml"),
		"/etc/grouppilot/config.yaml",
	}

	fmt.Println("Config search paths (in order):")
	for i, loc := range locations {
		exists := "not found"
		if _, err := os.Stat(loc); err == nil {
			exists = "exists"
		}
		fmt.Printf("  %d. %s (%s)\n", i+1, loc, exists)
	}

	fmt.Printf("\nConfig directory: %s\n", configDir)
	fmt.Printf("Environment prefix: %s_\n", config.EnvPrefix)
	return nil
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	value, err := getConfigValue(cfg, args[0])
	if err != nil {
		return err
	}

	switch v := value.(type) {
	case map[string]interface{}, []interface{}:
		out, err := yaml.Marshal(v)
		if err != nil {
			return err
		}
		fmt.Print(string(out))
	default:
		fmt.Println(v)
	}
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key, value := args[0], args[1]

	configPath := cfgFile
	if configPath == "" {
		configDir, err := config.EnsureConfigDir()
		if err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
		configPath = filepath.Join(configDir, "config.yaml")
	}

	var data map[string]interface{}
	if content, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(content, &data); err != nil {
			return fmt.Errorf("failed to parse existing config: %w", err)
		}
	}
	if data == nil {
		data = make(map[string]interface{})
	}

	if err := setNestedValue(data, key, value); err != nil {
		return err
	}

	content, err := yaml.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}

	if err := os.WriteFile(configPath, content, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	fmt.Printf("Set %s = %s in %s\n", key, value, configPath)
	return nil
}

// getConfigValue looks key up in the effective configuration, so defaults
// and resolved paths are reported rather than the raw file contents.
func getConfigValue(cfg *config.Config, key string) (interface{}, error) {
	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize config: %w", err)
	}
	var tree map[string]interface{}
	if err := yaml.Unmarshal(raw, &tree); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	var current interface{} = tree
	for _, part := range strings.Split(key, ".") {
		section, ok := current.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("unknown config key: %s", key)
		}
		if current, ok = section[part]; !ok {
			return nil, fmt.Errorf("unknown config key: %s", key)
		}
	}
	return current, nil
}

func setNestedValue(data map[string]interface{}, key string, value string) error {
	parts := strings.Split(key, ".")

	current := data
	for i := 0; i < len(parts)-1; i++ {
		if _, ok := current[parts[i]]; !ok {
			current[parts[i]] = make(map[string]interface{})
		}
		nested, ok := current[parts[i]].(map[string]interface{})
		if !ok {
			return fmt.Errorf("cannot set nested value: %s is not a map", parts[i])
		}
		current = nested
	}

	current[parts[len(parts)-1]] = parseValue(key, value)
	return nil
}

func parseValue(key string, value string) interface{} {
	if key == "telegram.owners" {
		owners := []interface{}{}
		for _, id := range strings.Split(value, ",") {
			if id = strings.TrimSpace(id); id != "" {
				owners = append(owners, id)
			}
		}
		return owners
	}

	if value == "true" || value == "false" {
		return value == "true"
	}

	if i, err := strconv.Atoi(value); err == nil {
		return i
	}

	return value
}

func defaultConfig(authToken string) string {
	return fmt.Sprintf(`# grouppilot configuration
# Every key can be overridden with an environment variable, for example
# %[1]s_TELEGRAM_TOKEN or %[1]s_GATEWAY_URL.

telegram:
  # Bot token from @BotFather
  token: ""

  # Telegram user ids allowed to use the bot. Empty allows everyone.
  owners: []

  # Long-poll timeout in seconds
  poll_timeout_secs: %[2]d

  # Optional self-hosted Bot API endpoint, e.g. "https://host/bot%%s/%%s"
  # api_endpoint: ""

# Protocol gateway (JSON-RPC over WebSocket)
gateway:
  url: "%[3]s"
  handshake_timeout: 10s
  call_timeout: 30s

# Per-user sessions
sessions:
  # Defaults to ~/.grouppilot/sessions
  # path: ""
  dir_prefix: "%[4]s"

  # Seal stored credentials with an age identity (grouppilot keygen)
  # age_identity_file: "~/.grouppilot/identity.txt"

  max_reconnect_attempts: %[5]d
  reconnect_delay: %[6]s
  open_settle_delay: %[7]s
  restore_delay: %[8]s
  pairing_settle: %[9]s
  qr_throttle: %[10]s

# Join-request auto-approval pacing
approval:
  delay: %[11]s
  toggle_sweep_delay: %[12]s

# Batch rename pacing
rename:
  delay: %[13]s
  rate_limit_delay: %[14]s

# Audit journal of approvals and renames (SQLite)
journal:
  enabled: true
  # path: "~/.grouppilot/journal.db"

# HTTP status and control API
server:
  enabled: false
  host: "127.0.0.1"
  port: %[15]d
  request_timeout: %[16]s
  # Requests per minute per client on /api, 0 disables
  rate_limit: %[17]d
  pprof: false

  # Bearer token required on /api, /rpc and /debug. The CLI sends it too.
  auth_token: "%[18]s"

  # Extra websocket origins, e.g. "https://ops.example.org" or "*.example.org"
  allowed_origins: []

  # Reverse proxies whose X-Forwarded-For is honored for rate limiting
  trusted_proxies: []

logging:
  # Log level: debug, info, warn, error
  level: "info"
  # Log format: console (human-readable) or json
  format: "console"
`,
		config.EnvPrefix,
		config.DefaultPollTimeoutSecs,
		config.DefaultGatewayURL,
		config.DefaultSessionDirPrefix,
		config.DefaultMaxReconnectAttempts,
		config.DefaultReconnectDelay,
		config.DefaultOpenSettleDelay,
		config.DefaultRestoreDelay,
		config.DefaultPairingSettle,
		config.DefaultQRThrottle,
		config.DefaultApprovalDelay,
		config.DefaultToggleSweepDelay,
		config.DefaultRenameDelay,
		config.DefaultRateLimitDelay,
		config.DefaultServerPort,
		config.DefaultRequestTimeout,
		config.DefaultRateLimit,
		authToken,
	)
}
