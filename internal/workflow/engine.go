package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/brianly1003/grouppilot/internal/domain"
	"github.com/brianly1003/grouppilot/internal/domain/commands"
	"github.com/brianly1003/grouppilot/internal/domain/ports"
	"github.com/brianly1003/grouppilot/internal/sync"
	"github.com/rs/zerolog/log"
)

// Callback tokens carried by the workflow's buttons.
const (
	CallbackStart    = string(commands.CommandRename)
	CallbackConfirm  = string(commands.CommandRenameConfirm)
	CallbackCancel   = string(commands.CommandRenameCancel)
	CallbackMainMenu = string(commands.CommandMainMenu)
)

// ClusterCallback returns the callback token selecting cluster index.
func ClusterCallback(index int) string {
	return commands.ClusterToken(index)
}

// ParseClusterCallback extracts the cluster index from a callback token.
func ParseClusterCallback(data string) (int, bool) {
	return commands.ClusterIndex(data)
}

// ClientSource hands out the protocol client of an open session.
type ClientSource interface {
	ActiveClient(userID string) (ports.ProtocolClient, error)
}

// Engine runs one rename workflow per user.
type Engine struct {
	sessions ClientSource
	notifier ports.Notifier
	executor *Executor

	mu       sync.Mutex
	machines map[string]*Machine
	running  map[string]bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewEngine creates an engine.
func NewEngine(sessions ClientSource, notifier ports.Notifier, executor *Executor) *Engine {
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		sessions: sessions,
		notifier: notifier,
		executor: executor,
		machines: make(map[string]*Machine),
		running:  make(map[string]bool),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start fetches the user's groups and offers the clusters worth renaming.
// A workflow still in conversation is replaced; a batch still executing
// blocks a new start.
func (e *Engine) Start(ctx context.Context, userID string) error {
	e.mu.Lock()
	busy := e.running[userID]
	e.mu.Unlock()
	if busy {
		e.send(ctx, userID, "⏳ A rename batch is still running. Wait for its summary.", nil)
		return domain.ErrWorkflowActive
	}

	client, err := e.sessions.ActiveClient(userID)
	if err != nil {
		e.send(ctx, userID, "❌ WhatsApp is not connected. Log in first.", menuButtons())
		return err
	}

	loading := e.send(ctx, userID, "⏳ Fetching your groups...", nil)
	groups, err := client.ListGroups(ctx)
	if err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("could not list groups")
		e.replace(ctx, userID, loading, "❌ Could not fetch groups: "+domain.UserMessage(err), retryButtons())
		return err
	}

	m, err := NewMachine(Clusters(groups))
	if err != nil {
		e.replace(ctx, userID, loading, "ℹ️ Nothing to rename. No two groups share a name that ends in a number.", menuButtons())
		return err
	}

	e.mu.Lock()
	e.machines[userID] = m
	text, buttons := prompt(m)
	e.mu.Unlock()

	log.Debug().Str("user_id", userID).Int("clusters", len(m.Clusters())).Msg("rename workflow started")
	e.replace(ctx, userID, loading, text, buttons)
	return nil
}

// Handle feeds an input to the user's workflow. It reports false when the
// user has no workflow in conversation. Malformed input re-prompts and
// leaves the workflow where it was.
func (e *Engine) Handle(ctx context.Context, userID string, in Input) (bool, error) {
	e.mu.Lock()
	m, ok := e.machines[userID]
	if !ok {
		e.mu.Unlock()
		return false, nil
	}

	state, err := m.Handle(in)
	var plan []PlanItem
	if err == nil && state.Terminal() {
		delete(e.machines, userID)
		if state == StateExecuting {
			plan = m.Plan()
			e.running[userID] = true
		}
	}
	text, buttons := prompt(m)
	e.mu.Unlock()

	if err != nil {
		var validation *domain.ValidationError
		if !errors.As(err, &validation) {
			return true, err
		}
		e.send(ctx, userID, "❌ "+validation.Message+"\n\n"+text, buttons)
		return true, nil
	}

	switch state {
	case StateCancelled:
		log.Debug().Str("user_id", userID).Msg("rename workflow cancelled")
		e.send(ctx, userID, "✖️ Rename cancelled.", menuButtons())
	case StateExecuting:
		e.execute(ctx, userID, plan)
	default:
		e.send(ctx, userID, text, buttons)
	}
	return true, nil
}

// Active reports whether the user has a workflow in conversation or a batch
// executing.
func (e *Engine) Active(userID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.machines[userID]
	return ok || e.running[userID]
}

// Cancel discards the user's workflow without side effects. It reports
// whether there was one. A batch already executing is not interrupted.
func (e *Engine) Cancel(userID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.machines[userID]
	delete(e.machines, userID)
	return ok
}

// Close stops running batches and waits for them to report.
func (e *Engine) Close() {
	e.cancel()
	e.wg.Wait()
}

func (e *Engine) execute(ctx context.Context, userID string, plan []PlanItem) {
	client, err := e.sessions.ActiveClient(userID)
	if err != nil {
		e.finish(userID)
		e.send(ctx, userID, "❌ WhatsApp is not connected. Log in first.", menuButtons())
		return
	}

	eta := time.Duration(len(plan)) * e.executor.opts.Delay
	loading := e.send(ctx, userID, fmt.Sprintf("⏳ Renaming %d groups. This takes about %s.", len(plan), eta.Round(time.Second)), nil)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer e.finish(userID)
		report := e.executor.Run(e.ctx, userID, client, plan)
		e.replace(e.ctx, userID, loading, report.Summary(), menuButtons())
	}()
}

func (e *Engine) finish(userID string) {
	e.mu.Lock()
	delete(e.running, userID)
	e.mu.Unlock()
}

func (e *Engine) send(ctx context.Context, userID, text string, buttons [][]ports.Button) int {
	id, err := e.notifier.SendMessage(ctx, userID, text, ports.MessageOptions{Buttons: buttons})
	if err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("failed to send workflow message")
		return 0
	}
	return id
}

// replace swaps a loading message for the final text, falling back to a new
// message when there is nothing to edit.
func (e *Engine) replace(ctx context.Context, userID string, messageID int, text string, buttons [][]ports.Button) {
	if messageID != 0 {
		err := e.notifier.EditMessage(ctx, userID, messageID, text, ports.MessageOptions{Buttons: buttons})
		if err == nil {
			return
		}
		log.Debug().Err(err).Str("user_id", userID).Msg("could not edit loading message")
	}
	e.send(ctx, userID, text, buttons)
}

func prompt(m *Machine) (string, [][]ports.Button) {
	cancel := []ports.Button{{Text: "❌ Cancel", Data: CallbackCancel}}

	switch m.State() {
	case StateSelectCluster:
		var b strings.Builder
		b.WriteString("✏️ Batch rename\n\nChoose the groups to rename:\n")
		rows := make([][]ports.Button, 0, len(m.Clusters())+1)
		for i, c := range m.Clusters() {
			fmt.Fprintf(&b, "%d. %s (%d groups)\n", i+1, c.Base, len(c.Members))
			rows = append(rows, []ports.Button{{
				Text: fmt.Sprintf("%s (%d)", c.Base, len(c.Members)),
				Data: ClusterCallback(i),
			}})
		}
		return b.String(), append(rows, cancel)

	case StateRangeStart:
		c, _ := m.Cluster()
		var b strings.Builder
		fmt.Fprintf(&b, "Groups in %q:\n", c.Base)
		for _, member := range c.Members {
			fmt.Fprintf(&b, "#%d %s\n", member.Ordinal, member.Group.Name)
		}
		b.WriteString("\nSend the first number of the range.")
		return b.String(), [][]ports.Button{cancel}

	case StateRangeEnd:
		start, _ := m.Range()
		return fmt.Sprintf("Send the last number of the range (%d or greater).", start), [][]ports.Button{cancel}

	case StatePattern:
		return "Send the new name. Groups become \"<name> <number>\".", [][]ports.Button{cancel}

	case StateRenumberStart:
		return fmt.Sprintf("Send the first new number for \"%s <number>\" (1 or greater).", m.Pattern()), [][]ports.Button{cancel}

	case StateConfirm:
		plan := m.Plan()
		var b strings.Builder
		b.WriteString("Preview:\n")
		for _, item := range plan {
			fmt.Fprintf(&b, "%s → %s\n", item.OldName, item.NewName)
		}
		fmt.Fprintf(&b, "\nRename %d groups, numbering from %d?", len(plan), m.RenumberStart())
		return b.String(), [][]ports.Button{
			{{Text: "✅ Rename", Data: CallbackConfirm}},
			cancel,
		}
	}
	return "", nil
}

func menuButtons() [][]ports.Button {
	return [][]ports.Button{{{Text: "🏠 Main Menu", Data: CallbackMainMenu}}}
}

func retryButtons() [][]ports.Button {
	return [][]ports.Button{
		{{Text: "🔄 Try Again", Data: CallbackStart}},
		{{Text: "🏠 Main Menu", Data: CallbackMainMenu}},
	}
}
