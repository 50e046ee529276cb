package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/brianly1003/grouppilot/internal/config"
	"github.com/brianly1003/grouppilot/internal/credstore"
	"github.com/spf13/cobra"
)

var (
	keygenOutput string
	keygenForce  bool
)

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate an age identity for sealing stored credentials",
	Long: `Generate an age X25519 identity used to encrypt session credentials
at rest. Point sessions.age_identity_file at the generated file to enable it.

Existing plaintext credentials keep working and are sealed the next time
they are saved.

Examples:
  grouppilot keygen
  grouppilot keygen -o /etc/grouppilot/identity.txt`,
	RunE: runKeygen,
}

func init() {
	keygenCmd.Flags().StringVarP(&keygenOutput, "output", "o", "", "identity file (default: ~/.grouppilot/identity.txt)")
	keygenCmd.Flags().BoolVar(&keygenForce, "force", false, "overwrite an existing identity file")
}

func runKeygen(cmd *cobra.Command, args []string) error {
	path := keygenOutput
	if path == "" {
		dir, err := config.EnsureConfigDir()
		if err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
		path = filepath.Join(dir, "identity.txt")
	}

	if _, err := os.Stat(path); err == nil {
		if !keygenForce {
			return fmt.Errorf("identity file already exists: %s\nUse --force to overwrite (credentials sealed with it become unreadable)", path)
		}
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("failed to remove old identity: %w", err)
		}
	}

	recipient, err := credstore.GenerateIdentityFile(path)
	if err != nil {
		return fmt.Errorf("failed to generate identity: %w", err)
	}

	fmt.Printf("Created %s\n", path)
	fmt.Printf("Public key: %s\n", recipient)
	fmt.Printf("\nEnable it with:\n  grouppilot config set sessions.age_identity_file %s\n", path)
	return nil
}
