// Package bot turns chat commands into session, auto-approval and rename
// operations and answers with menus.
package bot

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/brianly1003/grouppilot/internal/domain"
	"github.com/brianly1003/grouppilot/internal/domain/commands"
	"github.com/brianly1003/grouppilot/internal/domain/ports"
	"github.com/brianly1003/grouppilot/internal/session"
	"github.com/brianly1003/grouppilot/internal/sync"
	"github.com/brianly1003/grouppilot/internal/workflow"
	"github.com/rs/zerolog/log"
)

// Callback tokens of the main menu and login flow. Rename tokens live in
// the workflow package.
const (
	CallbackLogin            = string(commands.CommandLogin)
	CallbackLoginQR          = string(commands.CommandLoginQR)
	CallbackCancelLogin      = string(commands.CommandCancelLogin)
	CallbackAutoAccept       = string(commands.CommandAutoAccept)
	CallbackToggleAutoAccept = string(commands.CommandToggleAutoAccept)
	CallbackStatus           = string(commands.CommandStatus)
	CallbackLogout           = string(commands.CommandLogout)
	CallbackMainMenu         = string(commands.CommandMainMenu)
)

var phonePattern = regexp.MustCompile(`^\d{10,15}$`)

// Sessions is the session manager as used by the router.
type Sessions interface {
	Open(ctx context.Context, userID string, source session.Source) ports.ProtocolClient
	OpenForQR(ctx context.Context, userID string) ports.ProtocolClient
	RequestPairingCode(ctx context.Context, userID, phone string) (string, error)
	CancelLogin(ctx context.Context, userID string) error
	Logout(ctx context.Context, userID string) error
	Snapshot(userID string) (session.Snapshot, bool)
}

// AutoApprover is the auto-approval toggle.
type AutoApprover interface {
	SetEnabled(ctx context.Context, userID string, enabled bool) error
	Enabled(userID string) bool
}

// Workflows runs rename workflows.
type Workflows interface {
	Start(ctx context.Context, userID string) error
	Handle(ctx context.Context, userID string, in workflow.Input) (bool, error)
	Active(userID string) bool
	Cancel(userID string) bool
}

// Owners decides who may use the bot.
type Owners interface {
	IsOwner(userID string) bool
}

// OwnersFunc adapts a function to Owners.
type OwnersFunc func(userID string) bool

// IsOwner implements Owners.
func (f OwnersFunc) IsOwner(userID string) bool { return f(userID) }

// Options holds router timings.
type Options struct {
	// PairingSettle is how long a fresh connection settles before a
	// pairing code is requested.
	PairingSettle time.Duration
}

// Router implements ports.CommandHandler.
type Router struct {
	sessions  Sessions
	approver  AutoApprover
	workflows Workflows
	notifier  ports.Notifier
	owners    Owners
	opts      Options

	mu              sync.Mutex
	waitingForPhone map[string]bool
}

// NewRouter creates a router.
func NewRouter(sessions Sessions, approver AutoApprover, workflows Workflows, notifier ports.Notifier, owners Owners, opts Options) *Router {
	return &Router{
		sessions:        sessions,
		approver:        approver,
		workflows:       workflows,
		notifier:        notifier,
		owners:          owners,
		opts:            opts,
		waitingForPhone: make(map[string]bool),
	}
}

// HandleCommand implements ports.CommandHandler.
func (r *Router) HandleCommand(ctx context.Context, cmd ports.Command) {
	if !r.owners.IsOwner(cmd.UserID) {
		log.Debug().Str("user_id", cmd.UserID).Msg("ignoring command from non-owner")
		if cmd.IsCallback() || commands.Of(cmd) == commands.CommandStart {
			r.send(ctx, cmd.UserID, "❌ You are not an owner of this bot.", ports.MessageOptions{})
		}
		return
	}

	if cmd.IsCallback() {
		r.handleCallback(ctx, cmd)
		return
	}
	r.handleText(ctx, cmd)
}

func (r *Router) handleCallback(ctx context.Context, cmd ports.Command) {
	userID := cmd.UserID
	log.Debug().Str("user_id", userID).Str("callback", cmd.Callback).Msg("callback received")

	switch cmd.Callback {
	case CallbackLogin:
		r.startLogin(ctx, userID)
	case CallbackLoginQR:
		r.loginQR(ctx, userID)
	case CallbackCancelLogin:
		r.cancelLogin(ctx, userID)
	case CallbackAutoAccept:
		r.showAutoAccept(ctx, userID, cmd.MessageID)
	case CallbackToggleAutoAccept:
		r.toggleAutoAccept(ctx, userID, cmd.MessageID)
	case CallbackStatus:
		r.showStatus(ctx, userID)
	case CallbackLogout:
		r.logout(ctx, userID)
	case CallbackMainMenu:
		r.showMainMenu(ctx, userID, cmd.MessageID)
	case workflow.CallbackStart:
		if err := r.workflows.Start(ctx, userID); err != nil {
			log.Debug().Err(err).Str("user_id", userID).Msg("rename workflow not started")
		}
	case workflow.CallbackConfirm:
		r.feedWorkflow(ctx, userID, workflow.Confirm())
	case workflow.CallbackCancel:
		r.feedWorkflow(ctx, userID, workflow.Cancel())
	default:
		if idx, ok := workflow.ParseClusterCallback(cmd.Callback); ok {
			r.feedWorkflow(ctx, userID, workflow.Select(idx))
			return
		}
		log.Debug().Str("user_id", userID).Str("callback", cmd.Callback).Msg("unknown callback")
	}
}

func (r *Router) handleText(ctx context.Context, cmd ports.Command) {
	userID := cmd.UserID
	text := strings.TrimSpace(cmd.Text)

	switch commands.Slash(text) {
	case "":
	case commands.CommandStart:
		r.showMainMenu(ctx, userID, 0)
		return
	case commands.CommandCancel:
		r.clearWaiting(userID)
		if r.workflows.Cancel(userID) {
			r.send(ctx, userID, "✖️ Rename cancelled.", ports.MessageOptions{Buttons: menuButton()})
			return
		}
		r.send(ctx, userID, "ℹ️ Nothing to cancel.", ports.MessageOptions{Buttons: menuButton()})
		return
	default:
		return
	}

	if r.takeWaiting(userID) {
		r.submitPhone(ctx, userID, cmd.MessageID, text)
		return
	}

	if r.workflows.Active(userID) {
		if _, err := r.workflows.Handle(ctx, userID, workflow.Text(text)); err != nil {
			log.Debug().Err(err).Str("user_id", userID).Msg("workflow rejected input")
		}
		return
	}

	log.Debug().Str("user_id", userID).Msg("unmatched message")
}

func (r *Router) feedWorkflow(ctx context.Context, userID string, in workflow.Input) {
	handled, err := r.workflows.Handle(ctx, userID, in)
	if err != nil {
		log.Debug().Err(err).Str("user_id", userID).Msg("workflow rejected input")
	}
	if !handled {
		r.send(ctx, userID, "ℹ️ This rename has already ended.", ports.MessageOptions{Buttons: menuButton()})
	}
}

func (r *Router) startLogin(ctx context.Context, userID string) {
	r.mu.Lock()
	r.waitingForPhone[userID] = true
	r.mu.Unlock()

	r.send(ctx, userID, "📱 Send your WhatsApp number with the country code, without +:\n\nExample: 628123456789",
		ports.MessageOptions{Buttons: cancelLoginButton()})
}

// takeWaiting reports whether the user was asked for a phone number and
// clears the flag.
func (r *Router) takeWaiting(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	waiting := r.waitingForPhone[userID]
	delete(r.waitingForPhone, userID)
	return waiting
}

func (r *Router) clearWaiting(userID string) {
	r.mu.Lock()
	delete(r.waitingForPhone, userID)
	r.mu.Unlock()
}

// WaitingForPhone reports whether the next text of userID is read as a
// phone number.
func (r *Router) WaitingForPhone(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.waitingForPhone[userID]
}

func (r *Router) submitPhone(ctx context.Context, userID string, messageID int, text string) {
	// The number is private; drop it from the chat history.
	if messageID != 0 {
		if err := r.notifier.DeleteMessage(ctx, userID, messageID); err != nil {
			log.Debug().Err(err).Str("user_id", userID).Msg("could not delete phone message")
		}
	}

	phone := strings.TrimSpace(text)
	if !phonePattern.MatchString(phone) {
		r.send(ctx, userID, "❌ Invalid number. It must be 10 to 15 digits only.", ports.MessageOptions{
			Buttons: [][]ports.Button{{{Text: "🔄 Try again", Data: CallbackLogin}}, menuButton()[0]},
		})
		return
	}

	loading := r.send(ctx, userID, "⏳ Hold on, creating the connection...", ports.MessageOptions{})

	if client := r.sessions.Open(ctx, userID, session.SourceFresh); client == nil {
		r.loginFailed(ctx, userID, loading, CallbackLogin, "")
		return
	}

	if !sleep(ctx, r.opts.PairingSettle) {
		return
	}

	code, err := r.sessions.RequestPairingCode(ctx, userID, phone)
	if err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("pairing code request failed")
		r.loginFailed(ctx, userID, loading, CallbackLogin, domain.UserMessage(err))
		return
	}

	r.deleteQuietly(ctx, userID, loading)
	r.send(ctx, userID, fmt.Sprintf(
		"🔑 *Pairing Code:*\n\n*%s*\n\nEnter this code in WhatsApp within 60 seconds.\n\n"+
			"Open WhatsApp > Menu > Linked devices > Link a device\n\n"+
			"If the connection drops it reconnects automatically.", code),
		ports.MessageOptions{Markdown: true, Buttons: cancelLoginButton()})
}

func (r *Router) loginQR(ctx context.Context, userID string) {
	r.clearWaiting(userID)
	loading := r.send(ctx, userID, "⏳ Hold on, creating the connection...", ports.MessageOptions{})

	if client := r.sessions.OpenForQR(ctx, userID); client == nil {
		r.loginFailed(ctx, userID, loading, CallbackLoginQR, "")
		return
	}
	r.edit(ctx, userID, loading,
		"📷 A QR code is on its way.\n\nOpen WhatsApp > Menu > Linked devices > Link a device and scan it.",
		ports.MessageOptions{Buttons: cancelLoginButton()})
}

// loginFailed replaces the loading message with retry and menu buttons. An
// empty reason means the user was already told what went wrong.
func (r *Router) loginFailed(ctx context.Context, userID string, loading int, retry, reason string) {
	r.deleteQuietly(ctx, userID, loading)
	text := "🔄 Try again or go back to the menu."
	if reason != "" {
		text = "❌ Error: " + reason
	}
	r.send(ctx, userID, text, ports.MessageOptions{Buttons: [][]ports.Button{
		{{Text: "🔄 Try again", Data: retry}},
		{{Text: "🏠 Main menu", Data: CallbackMainMenu}},
	}})
}

func (r *Router) cancelLogin(ctx context.Context, userID string) {
	r.clearWaiting(userID)
	if err := r.sessions.CancelLogin(ctx, userID); err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("cancel login failed")
	}
	r.send(ctx, userID, "✅ Login cancelled.", ports.MessageOptions{})
	r.showMainMenu(ctx, userID, 0)
}

func (r *Router) showAutoAccept(ctx context.Context, userID string, messageID int) {
	enabled := r.approver.Enabled(userID)
	status, toggle := "❌ OFF", "✅ Turn on"
	if enabled {
		status, toggle = "✅ ON", "❌ Turn off"
	}
	text := fmt.Sprintf("🤖 *Auto Accept Settings*\n\nStatus: %s\n\n"+
		"When on, every request to join a group you administer is approved automatically.", status)

	r.edit(ctx, userID, messageID, text, ports.MessageOptions{
		Markdown: true,
		Buttons: [][]ports.Button{
			{{Text: toggle, Data: CallbackToggleAutoAccept}},
			menuButton()[0],
		},
	})
}

func (r *Router) toggleAutoAccept(ctx context.Context, userID string, messageID int) {
	enabled := !r.approver.Enabled(userID)
	if err := r.approver.SetEnabled(ctx, userID, enabled); err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("failed to toggle auto-approval")
		r.send(ctx, userID, "❌ Could not change the setting. Try again!", ports.MessageOptions{})
		return
	}
	r.showAutoAccept(ctx, userID, messageID)
}

func (r *Router) showStatus(ctx context.Context, userID string) {
	snap, _ := r.sessions.Snapshot(userID)

	connection := "❌ Disconnected"
	switch snap.State {
	case session.StateOpen:
		connection = "✅ Connected"
	case session.StateConnecting, session.StatePairingPending:
		connection = "⏳ Connecting"
	case session.StateClosedRetrying:
		connection = fmt.Sprintf("🔄 Reconnecting (attempt %d)", snap.ReconnectAttempts)
	}
	autoAccept := "❌ OFF"
	if r.approver.Enabled(userID) {
		autoAccept = "✅ ON"
	}

	var b strings.Builder
	b.WriteString("*📊 Bot Status*\n\n")
	fmt.Fprintf(&b, "WhatsApp: %s\n", connection)
	fmt.Fprintf(&b, "Auto Accept: %s\n", autoAccept)
	if snap.Phone != "" {
		fmt.Fprintf(&b, "Number: %s\n", snap.Phone)
	}
	if snap.LastConnectedAt != nil {
		fmt.Fprintf(&b, "Last connected: %s\n", snap.LastConnectedAt.UTC().Format(time.RFC822))
	}

	r.send(ctx, userID, b.String(), ports.MessageOptions{Markdown: true, Buttons: menuButton()})
}

func (r *Router) logout(ctx context.Context, userID string) {
	r.clearWaiting(userID)
	r.workflows.Cancel(userID)

	loading := r.send(ctx, userID, "⏳ Logging out...", ports.MessageOptions{})
	err := r.sessions.Logout(ctx, userID)
	r.deleteQuietly(ctx, userID, loading)

	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("logout failed")
		r.send(ctx, userID, "❌ Logout failed.", ports.MessageOptions{})
	} else {
		r.send(ctx, userID, "✅ Logged out. Session deleted.", ports.MessageOptions{})
	}
	r.showMainMenu(ctx, userID, 0)
}

// showMainMenu edits messageID into the menu, or sends a new menu when
// messageID is 0.
func (r *Router) showMainMenu(ctx context.Context, userID string, messageID int) {
	r.edit(ctx, userID, messageID, "👋 *Welcome to GroupPilot!*\n\nChoose an option:", ports.MessageOptions{
		Markdown: true,
		Buttons: [][]ports.Button{
			{{Text: "🔑 Login with pairing code", Data: CallbackLogin}},
			{{Text: "📷 Login with QR code", Data: CallbackLoginQR}},
			{{Text: "🤖 Auto Accept Settings", Data: CallbackAutoAccept}},
			{{Text: "✏️ Rename groups", Data: workflow.CallbackStart}},
			{{Text: "🔄 Status", Data: CallbackStatus}},
			{{Text: "🚪 Logout", Data: CallbackLogout}},
		},
	})
}

func (r *Router) send(ctx context.Context, userID, text string, opts ports.MessageOptions) int {
	id, err := r.notifier.SendMessage(ctx, userID, text, opts)
	if err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("failed to send message")
		return 0
	}
	return id
}

// edit replaces messageID, falling back to a new message when it cannot.
func (r *Router) edit(ctx context.Context, userID string, messageID int, text string, opts ports.MessageOptions) {
	if messageID != 0 {
		err := r.notifier.EditMessage(ctx, userID, messageID, text, opts)
		if err == nil {
			return
		}
		log.Debug().Err(err).Str("user_id", userID).Msg("could not edit message")
	}
	r.send(ctx, userID, text, opts)
}

func (r *Router) deleteQuietly(ctx context.Context, userID string, messageID int) {
	if messageID == 0 {
		return
	}
	if err := r.notifier.DeleteMessage(ctx, userID, messageID); err != nil {
		log.Debug().Err(err).Str("user_id", userID).Msg("could not delete message")
	}
}

func menuButton() [][]ports.Button {
	return [][]ports.Button{{{Text: "🏠 Main menu", Data: CallbackMainMenu}}}
}

func cancelLoginButton() [][]ports.Button {
	return [][]ports.Button{{{Text: "❌ Cancel", Data: CallbackCancelLogin}}}
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

var _ ports.CommandHandler = (*Router)(nil)
