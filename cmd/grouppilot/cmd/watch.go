package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/brianly1003/grouppilot/internal/rpc"
	"github.com/spf13/cobra"
)

var (
	watchUser string
	watchJSON bool
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream live events from the running daemon",
	Long: `Stream live events (connections, approvals, renames, state changes)
from the running daemon until interrupted.

Examples:
  grouppilot watch
  grouppilot watch --user 123456789
  grouppilot watch --json | jq .`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVarP(&watchUser, "user", "u", "", "only show events of this user")
	watchCmd.Flags().BoolVar(&watchJSON, "json", false, "print raw event JSON, one per line")
}

type watchedEvent struct {
	Event     string                 `json:"event"`
	Timestamp time.Time              `json:"timestamp"`
	UserID    string                 `json:"user_id"`
	Payload   map[string]interface{} `json:"payload"`
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	c, err := dialControl(ctx, watchUser, func(method string, params json.RawMessage) {
		if !strings.HasPrefix(method, rpc.EventMethodPrefix) {
			return
		}
		if watchJSON {
			fmt.Println(string(params))
			return
		}
		var ev watchedEvent
		if err := json.Unmarshal(params, &ev); err != nil {
			fmt.Fprintf(os.Stderr, "bad event %s: %v\n", method, err)
			return
		}
		fmt.Println(formatEvent(ev))
	})
	if err != nil {
		return err
	}
	defer c.Close()

	if !watchJSON {
		fmt.Fprintln(os.Stderr, "Watching events, press Ctrl+C to stop.")
	}

	select {
	case <-ctx.Done():
		return nil
	case <-c.Done():
		if err := c.Err(); err != nil {
			return fmt.Errorf("connection lost: %w", err)
		}
		return nil
	}
}

func formatEvent(ev watchedEvent) string {
	var b strings.Builder
	b.WriteString(ev.Timestamp.Local().Format(time.TimeOnly))
	b.WriteString("  ")
	b.WriteString(ev.Event)
	if ev.UserID != "" {
		b.WriteString("  user=")
		b.WriteString(ev.UserID)
	}
	for _, key := range []string{"from", "to", "attempt", "group_id", "participant_id", "old_name", "new_name", "code", "reason", "error"} {
		if v, ok := ev.Payload[key]; ok && v != nil && v != "" {
			fmt.Fprintf(&b, "  %s=%v", key, v)
		}
	}
	return b.String()
}
