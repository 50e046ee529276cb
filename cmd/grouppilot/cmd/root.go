// Package cmd contains the CLI commands for grouppilot.
package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var (
	// Version info (set from main)
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"

	// Global flags
	cfgFile string
	verbose bool
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "grouppilot",
	Short: "Group automation daemon driven from a Telegram bot",
	Long: `grouppilot runs one messaging session per bot user and automates
group housekeeping for them: it approves pending join requests and walks
users through renaming numbered group series in bulk.

Users log in, toggle auto-approval and start renames from the Telegram bot.
The daemon also exposes a local control API used by the status, sessions,
autoapprove and watch commands.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersionInfo sets version information from the main package.
func SetVersionInfo(v, bt, gc string) {
	version = v
	buildTime = bt
	gitCommit = gc
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.grouppilot/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVar(&controlAddr, "addr", "", "control API address of the running daemon (default: server.host:server.port)")
	rootCmd.PersistentFlags().DurationVar(&controlTimeout, "timeout", 15*time.Second, "control API call timeout")

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(autoApproveCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(keygenCmd)
}

// versionCmd displays version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("grouppilot %s\n", version)
		fmt.Printf("  Build time: %s\n", buildTime)
		fmt.Printf("  Git commit: %s\n", gitCommit)
	},
}
