package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/brianly1003/grouppilot/internal/credstore"
	"github.com/brianly1003/grouppilot/internal/journal"
	"github.com/brianly1003/grouppilot/internal/session"
	"github.com/spf13/cobra"
)

var (
	sessionsOffline bool
	sessionsYes     bool
	journalLimit    int
)

type userParams struct {
	UserID string `json:"user_id"`
}

var sessionsCmd = &cobra.Command{
	Use:     "sessions",
	Aliases: []string{"session"},
	Short:   "Inspect and manage user sessions",
	Long: `Inspect and manage user sessions.

Most subcommands talk to the running daemon through its control API
(server.enabled must be true). --offline and delete work on the session
store directly and are meant for a stopped daemon.

Examples:
  grouppilot sessions                      # List sessions of the running daemon
  grouppilot sessions list --offline       # List stored credentials
  grouppilot sessions show 123456789
  grouppilot sessions logout 123456789
  grouppilot sessions journal 123456789 --limit 20
  grouppilot sessions delete 123456789 --yes`,
	RunE: runSessionsList,
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sessions",
	RunE:  runSessionsList,
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <user-id>",
	Short: "Show one session",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsShow,
}

var sessionsLogoutCmd = &cobra.Command{
	Use:   "logout <user-id>",
	Short: "Log a session out and delete its credentials",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsLogout,
}

var sessionsJournalCmd = &cobra.Command{
	Use:   "journal <user-id>",
	Short: "Show recent approvals and renames of a session",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsJournal,
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <user-id>",
	Short: "Delete stored credentials while the daemon is stopped",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsDelete,
}

func init() {
	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsShowCmd)
	sessionsCmd.AddCommand(sessionsLogoutCmd)
	sessionsCmd.AddCommand(sessionsJournalCmd)
	sessionsCmd.AddCommand(sessionsDeleteCmd)

	sessionsCmd.PersistentFlags().BoolVar(&sessionsOffline, "offline", false, "read the session store instead of the running daemon")
	sessionsDeleteCmd.Flags().BoolVarP(&sessionsYes, "yes", "y", false, "do not ask for confirmation")
	sessionsJournalCmd.Flags().IntVarP(&journalLimit, "limit", "n", 20, "number of entries to show")
}

func runSessionsList(cmd *cobra.Command, args []string) error {
	if sessionsOffline {
		return listStoredSessions()
	}

	var result struct {
		Sessions []session.Snapshot `json:"sessions"`
	}
	if err := callControl("sessions.list", nil, &result); err != nil {
		return err
	}

	if len(result.Sessions) == 0 {
		fmt.Println("No sessions.")
		fmt.Println("\nUsers log in from the Telegram bot with /start.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "USER\tSTATE\tPHONE\tAUTO-APPROVE\tLAST CONNECTED")
	for _, s := range result.Sessions {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", s.UserID, s.State, orDash(s.Phone), onOff(s.AutoApproveEnabled), formatTime(s.LastConnectedAt))
	}
	return w.Flush()
}

func listStoredSessions() error {
	store, err := openStore()
	if err != nil {
		return err
	}
	users, err := store.Users()
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}
	if len(users) == 0 {
		fmt.Printf("No stored sessions in %s\n", store.Root())
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "USER\tCREDENTIALS\tAUTO-APPROVE\tLAST SAVED")
	for _, user := range users {
		creds := "no"
		if store.HasCredentials(user) {
			creds = "yes"
		}
		settings, err := store.LoadSettings(user)
		if err != nil {
			fmt.Fprintf(w, "%s\t%s\t?\t%v\n", user, creds, err)
			continue
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", user, creds, onOff(settings.AutoApproveEnabled), formatTime(&settings.LastSaved))
	}
	return w.Flush()
}

func runSessionsShow(cmd *cobra.Command, args []string) error {
	var s session.Snapshot
	if err := callControl("sessions.get", userParams{UserID: args[0]}, &s); err != nil {
		return err
	}

	fmt.Printf("User:           %s\n", s.UserID)
	fmt.Printf("State:          %s\n", s.State)
	fmt.Printf("Connected:      %t\n", s.Connected)
	fmt.Printf("Phone:          %s\n", orDash(s.Phone))
	fmt.Printf("Source:         %s\n", s.Source)
	fmt.Printf("Auto-approve:   %s\n", onOff(s.AutoApproveEnabled))
	fmt.Printf("Reconnects:     %d\n", s.ReconnectAttempts)
	fmt.Printf("Last connected: %s\n", formatTime(s.LastConnectedAt))
	return nil
}

func runSessionsLogout(cmd *cobra.Command, args []string) error {
	var result struct {
		LoggedOut bool `json:"logged_out"`
	}
	if err := callControl("sessions.logout", userParams{UserID: args[0]}, &result); err != nil {
		return err
	}
	fmt.Printf("✓ Session %s logged out and deleted\n", args[0])
	return nil
}

func runSessionsJournal(cmd *cobra.Command, args []string) error {
	params := struct {
		UserID string `json:"user_id"`
		Limit  int    `json:"limit,omitempty"`
	}{UserID: args[0], Limit: journalLimit}

	var result struct {
		Entries []journal.Entry `json:"entries"`
	}
	if err := callControl("journal.recent", params, &result); err != nil {
		return err
	}

	if len(result.Entries) == 0 {
		fmt.Println("No journal entries.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tKIND\tGROUP\tDETAIL")
	for _, e := range result.Entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.CreatedAt.Local().Format(time.DateTime), e.Kind, e.GroupID, describeEntry(e))
	}
	return w.Flush()
}

func runSessionsDelete(cmd *cobra.Command, args []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	userID := args[0]

	if !sessionsYes {
		fmt.Printf("Delete stored credentials in %s? The user will have to pair again. [y/N] ", store.Dir(userID))
		var answer string
		_, _ = fmt.Scanln(&answer)
		if answer != "y" && answer != "Y" && answer != "yes" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	if err := store.Delete(userID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	fmt.Printf("Session %s deleted\n", userID)
	return nil
}

// openStore opens the session store without a sealer: listing and deleting
// never read the credential blobs.
func openStore() (*credstore.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	store, err := credstore.New(cfg.Sessions.Path, cfg.Sessions.DirPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to open session store: %w", err)
	}
	return store, nil
}

func describeEntry(e journal.Entry) string {
	var detail string
	switch e.Kind {
	case journal.KindApproval:
		detail = fmt.Sprintf("approved %s", e.ParticipantID)
		if e.Source != "" {
			detail += " (" + e.Source + ")"
		}
	case journal.KindRename:
		detail = fmt.Sprintf("%q -> %q", e.OldName, e.NewName)
	default:
		detail = e.Kind
	}
	if e.Error != "" {
		detail += " failed: " + e.Error
	}
	return detail
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "never"
	}
	return t.Local().Format(time.DateTime)
}
