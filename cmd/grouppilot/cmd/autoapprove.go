package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var autoApproveCmd = &cobra.Command{
	Use:     "autoapprove",
	Aliases: []string{"auto-approve"},
	Short:   "Control join-request auto-approval of a session",
	Long: `Control join-request auto-approval of a session on the running daemon.

Examples:
  grouppilot autoapprove on 123456789     # Enable and sweep pending requests
  grouppilot autoapprove off 123456789
  grouppilot autoapprove sweep 123456789  # Approve pending requests now`,
}

var autoApproveOnCmd = &cobra.Command{
	Use:   "on <user-id>",
	Short: "Enable auto-approval",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setAutoApprove(args[0], true)
	},
}

var autoApproveOffCmd = &cobra.Command{
	Use:   "off <user-id>",
	Short: "Disable auto-approval",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setAutoApprove(args[0], false)
	},
}

var autoApproveSweepCmd = &cobra.Command{
	Use:   "sweep <user-id>",
	Short: "Approve every pending join request now",
	Args:  cobra.ExactArgs(1),
	RunE:  runAutoApproveSweep,
}

func init() {
	autoApproveCmd.AddCommand(autoApproveOnCmd)
	autoApproveCmd.AddCommand(autoApproveOffCmd)
	autoApproveCmd.AddCommand(autoApproveSweepCmd)
}

func setAutoApprove(userID string, enabled bool) error {
	params := struct {
		UserID  string `json:"user_id"`
		Enabled bool   `json:"enabled"`
	}{UserID: userID, Enabled: enabled}

	var result struct {
		Enabled bool `json:"enabled"`
	}
	if err := callControl("autoapprove.set", params, &result); err != nil {
		return err
	}
	fmt.Printf("Auto-approval for %s is now %s\n", userID, onOff(result.Enabled))
	return nil
}

func runAutoApproveSweep(cmd *cobra.Command, args []string) error {
	var result struct {
		Approved int `json:"approved"`
	}
	if err := callControl("autoapprove.sweep", userParams{UserID: args[0]}, &result); err != nil {
		return err
	}
	fmt.Printf("Approved %d pending request(s) for %s\n", result.Approved, args[0])
	return nil
}
