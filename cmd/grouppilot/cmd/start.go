package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/brianly1003/grouppilot/internal/app"
	"github.com/brianly1003/grouppilot/internal/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	gatewayURL string
	serve      bool
	port       int
)

// startCmd represents the start command.
var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the grouppilot daemon",
	Long: `Start the grouppilot daemon: restore stored sessions, connect to the
protocol gateway and begin serving the Telegram bot.

The bot token comes from telegram.token or GROUPPILOT_TELEGRAM_TOKEN.

Example:
  grouppilot start
  grouppilot start --gateway ws://10.0.0.5:8790/rpc
  grouppilot start --serve --port 8780     # also serve the control API`,
	RunE: runStart,
}

func init() {
	startCmd.Flags().StringVar(&gatewayURL, "gateway", "", "protocol gateway WebSocket URL (default: gateway.url)")
	startCmd.Flags().BoolVar(&serve, "serve", false, "serve the HTTP status and control API")
	startCmd.Flags().IntVar(&port, "port", 0, "control API port (default: 8780)")
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if gatewayURL != "" {
		cfg.Gateway.URL = gatewayURL
	}
	if serve {
		cfg.Server.Enabled = true
	}
	if port != 0 {
		cfg.Server.Port = port
	}

	// Re-validate after overrides
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	setupLogging(cfg)

	log.Info().
		Str("version", version).
		Str("gateway", cfg.Gateway.URL).
		Str("sessions", cfg.Sessions.Path).
		Bool("api", cfg.Server.Enabled).
		Msg("starting grouppilot")

	level := cfg.Logging.Level
	if verbose {
		level = "debug"
	}
	application, err := app.New(cfg, version, app.WithLogger(app.NewSlogLogger(level)))
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("application error: %w", err)
	}

	log.Info().Msg("grouppilot stopped")
	return nil
}

func loadConfig() (*config.Config, error) {
	return config.Load(cfgFile)
}

func setupLogging(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Logging.Format == "console" || verbose {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

func printConfig(cfg *config.Config) {
	fmt.Println("Current Configuration:")
	fmt.Println("----------------------")
	if file := cfg.ConfigFile(); file != "" {
		fmt.Printf("Config File:     %s\n", file)
	}
	fmt.Printf("Bot Token:       %s\n", maskSecret(cfg.Telegram.Token))
	fmt.Printf("Owners:          %v\n", cfg.Telegram.Owners)
	fmt.Printf("Gateway URL:     %s\n", cfg.Gateway.URL)
	fmt.Printf("Sessions Path:   %s\n", cfg.Sessions.Path)
	fmt.Printf("Sealed Creds:    %t\n", cfg.Sessions.AgeIdentityFile != "")
	fmt.Printf("Journal:         %t (%s)\n", cfg.Journal.Enabled, cfg.Journal.Path)
	fmt.Printf("Control API:     %t (%s:%d)\n", cfg.Server.Enabled, cfg.Server.Host, cfg.Server.Port)
	fmt.Printf("Log Level:       %s\n", cfg.Logging.Level)
	fmt.Printf("Log Format:      %s\n", cfg.Logging.Format)
}

func maskSecret(s string) string {
	if s == "" {
		return "(not set)"
	}
	if len(s) <= 8 {
		return "****"
	}
	return s[:4] + "****" + s[len(s)-4:]
}
