package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the status of the running daemon",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	var result struct {
		Version        string `json:"version"`
		UptimeSeconds  int64  `json:"uptime_seconds"`
		Sessions       int    `json:"sessions"`
		Connected      int    `json:"connected"`
		ControlClients int    `json:"control_clients"`
	}
	if err := callControl("status.get", nil, &result); err != nil {
		return err
	}

	fmt.Printf("grouppilot %s\n", result.Version)
	fmt.Printf("  Uptime:          %s\n", (time.Duration(result.UptimeSeconds) * time.Second).String())
	fmt.Printf("  Sessions:        %d (%d connected)\n", result.Sessions, result.Connected)
	fmt.Printf("  Control clients: %d\n", result.ControlClients)
	return nil
}
