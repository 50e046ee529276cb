package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/brianly1003/grouppilot/internal/domain"
	"github.com/brianly1003/grouppilot/internal/domain/events"
	"github.com/brianly1003/grouppilot/internal/domain/ports"
	"github.com/brianly1003/grouppilot/internal/sync"
)

// Observer is told when a session's connection opens and when the session
// is retired (closed permanently or logged out). Callbacks run on the
// session's event goroutine and must not block.
type Observer interface {
	SessionOpened(ctx context.Context, userID string)
	SessionRetired(userID string)
}

// Options holds the lifecycle timings.
type Options struct {
	MaxReconnectAttempts int
	ReconnectDelay       time.Duration
	RestoreDelay         time.Duration
	QRThrottle           time.Duration
}

// DefaultOptions returns the production timings.
func DefaultOptions() Options {
	return Options{
		MaxReconnectAttempts: 3,
		ReconnectDelay:       5 * time.Second,
		RestoreDelay:         2 * time.Second,
		QRThrottle:           30 * time.Second,
	}
}

// Dependencies are the collaborators of a Manager.
type Dependencies struct {
	Factory  ports.ClientFactory
	Store    ports.CredentialStore
	Notifier ports.Notifier
	Hub      ports.EventHub
	// QR renders a QR login code as a PNG. QR images are not sent when nil.
	QR func(code string) ([]byte, error)
}

// Manager owns every user session and the protocol clients behind them.
type Manager struct {
	registry *Registry
	deps     Dependencies
	opts     Options
	logger   *slog.Logger
	now      func() time.Time

	observers   []Observer
	observersMu sync.RWMutex

	ctx    context.Context
	cancel context.CancelFunc
}

// NewManager creates a new session manager.
func NewManager(deps Dependencies, opts Options, logger *slog.Logger) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	if opts.MaxReconnectAttempts < 1 {
		opts.MaxReconnectAttempts = 1
	}
	return &Manager{
		registry: NewRegistry(),
		deps:     deps,
		opts:     opts,
		logger:   logger,
		now:      time.Now,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// AddObserver registers an observer of session lifecycle changes.
func (m *Manager) AddObserver(o Observer) {
	m.observersMu.Lock()
	defer m.observersMu.Unlock()
	m.observers = append(m.observers, o)
}

func (m *Manager) observerList() []Observer {
	m.observersMu.RLock()
	defer m.observersMu.RUnlock()
	return append([]Observer(nil), m.observers...)
}

// Session returns the session of userID.
func (m *Manager) Session(userID string) (*UserSession, bool) {
	return m.registry.Get(userID)
}

// Snapshot returns the status of userID's session.
func (m *Manager) Snapshot(userID string) (Snapshot, bool) {
	s, ok := m.registry.Get(userID)
	if !ok {
		return Snapshot{UserID: userID, State: StateDisconnected}, false
	}
	return s.Snapshot(), true
}

// Snapshots returns the status of every session ordered by user ID.
func (m *Manager) Snapshots() []Snapshot {
	sessions := m.registry.All()
	out := make([]Snapshot, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s.Snapshot())
	}
	return out
}

// ActiveClient returns the protocol client of an open session.
func (m *Manager) ActiveClient(userID string) (ports.ProtocolClient, error) {
	s, ok := m.registry.Get(userID)
	if !ok {
		return nil, domain.NewConfigurationError("session", domain.ErrNoActiveSession)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		return nil, domain.NewConfigurationError("session", domain.ErrNoActiveSession)
	}
	if s.state != StateOpen {
		return nil, domain.NewConfigurationError("session", domain.ErrSessionNotOpen)
	}
	return s.client, nil
}

// Open creates a protocol client for userID and starts following its
// events. Any previous client of the user is closed first. Stored
// credentials are resumed when present; SourceRestored requires them.
// Open returns nil when the client could not be created; the user is told
// unless the open is a restore.
func (m *Manager) Open(ctx context.Context, userID string, source Source) ports.ProtocolClient {
	reason := reasonFresh
	if source == SourceRestored {
		reason = reasonRestore
	}
	return m.open(ctx, userID, reason, false)
}

// OpenForQR opens a fresh session that delivers QR login images instead of
// waiting for a pairing-code request.
func (m *Manager) OpenForQR(ctx context.Context, userID string) ports.ProtocolClient {
	return m.open(ctx, userID, reasonFresh, true)
}

func (m *Manager) open(ctx context.Context, userID string, reason openReason, wantQR bool) ports.ProtocolClient {
	var creds []byte
	if m.deps.Store.HasCredentials(userID) {
		blob, err := m.deps.Store.LoadCredentials(userID)
		if err != nil {
			m.logger.Warn("Failed to load credentials", "user_id", userID, "error", err)
		} else {
			creds = blob
		}
	}
	if reason == reasonRestore && creds == nil {
		m.logger.Info("Skipping restore, no stored credentials", "user_id", userID)
		return nil
	}

	s := m.registry.GetOrCreate(userID, m.settingsLoader(userID))

	s.mu.Lock()
	old := s.client
	s.client = nil
	s.generation++
	gen := s.generation
	if reason != reasonReconnect {
		if s.retryTimer != nil {
			s.retryTimer.Stop()
			s.retryTimer = nil
		}
		s.reconnectAttempts = 0
	}
	from := s.state
	s.state = StateConnecting
	s.reason = reason
	s.quiet = reason == reasonRestore
	s.wantQR = wantQR
	s.lastQRAt = time.Time{}
	if creds != nil {
		s.source = SourceRestored
	} else {
		s.source = SourceFresh
	}
	attempt := s.reconnectAttempts
	s.mu.Unlock()

	if old != nil {
		_ = old.Close()
	}
	m.publishState(userID, from, StateConnecting, attempt, "")

	client, err := m.deps.Factory.Open(ctx, userID, creds)
	if err != nil {
		m.logger.Error("Failed to create protocol client", "user_id", userID, "error", err)
		if reason == reasonReconnect {
			// A failed reconnect counts against the ceiling like a closure.
			m.onClosed(userID, gen, 0, err.Error())
			return nil
		}
		s.mu.Lock()
		if s.generation == gen {
			s.state = StateDisconnected
		}
		s.mu.Unlock()
		m.publishState(userID, StateConnecting, StateDisconnected, 0, err.Error())
		if m.deps.Hub != nil {
			m.deps.Hub.Publish(events.WithUser(events.NewErrorEvent("open_failed", domain.UserMessage(err), "", nil), userID))
		}
		if reason == reasonFresh {
			m.notify(userID, fmt.Sprintf("❌ Could not create the connection: %s", domain.UserMessage(err)), ports.MessageOptions{})
		}
		return nil
	}

	s.mu.Lock()
	if s.generation != gen {
		// Superseded by a newer open or a logout while the client was created.
		s.mu.Unlock()
		_ = client.Close()
		return nil
	}
	s.client = client
	s.mu.Unlock()

	m.logger.Info("Protocol client created",
		"user_id", userID,
		"source", s.Snapshot().Source.String(),
		"generation", gen,
	)

	go m.pump(userID, gen, client)
	return client
}

// RequestPairingCode asks the live client of userID for a pairing code.
func (m *Manager) RequestPairingCode(ctx context.Context, userID, phone string) (string, error) {
	s, ok := m.registry.Get(userID)
	if !ok {
		return "", domain.NewConfigurationError("session", domain.ErrNoActiveSession)
	}

	s.mu.Lock()
	client := s.client
	gen := s.generation
	if client == nil {
		s.mu.Unlock()
		return "", domain.NewConfigurationError("session", domain.ErrNoActiveSession)
	}
	from := s.state
	s.state = StatePairingPending
	s.phone = phone
	s.mu.Unlock()
	m.publishState(userID, from, StatePairingPending, 0, "")

	code, err := client.RequestPairingCode(ctx, phone)
	if err != nil {
		s.mu.Lock()
		if s.generation == gen && s.state == StatePairingPending {
			s.state = from
		}
		s.mu.Unlock()
		return "", fmt.Errorf("request pairing code: %w", err)
	}

	m.logger.Info("Pairing code issued", "user_id", userID)
	return code, nil
}

// pump follows the events of one client until its channel closes.
func (m *Manager) pump(userID string, gen uint64, client ports.ProtocolClient) {
	for ev := range client.Events() {
		m.handleEvent(userID, gen, ev)
	}

	if m.isCurrent(userID, gen) {
		m.onClosed(userID, gen, 0, "event stream ended")
	}
}

func (m *Manager) isCurrent(userID string, gen uint64) bool {
	s, ok := m.registry.Get(userID)
	if !ok {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation == gen
}

func (m *Manager) handleEvent(userID string, gen uint64, ev events.Event) {
	if !m.isCurrent(userID, gen) {
		m.logger.Debug("Ignoring event from stale client", "user_id", userID, "event", ev.Type())
		return
	}

	switch ev.Type() {
	case events.EventTypeConnectionOpened:
		m.onOpened(userID, gen)
	case events.EventTypeConnectionClosed:
		var payload events.ConnectionClosedPayload
		if base, ok := ev.(*events.BaseEvent); ok {
			payload, _ = base.Payload.(events.ConnectionClosedPayload)
		}
		m.onClosed(userID, gen, payload.Code, payload.Reason)
	case events.EventTypeCredentialsUpdated:
		if base, ok := ev.(*events.BaseEvent); ok {
			if payload, ok := base.Payload.(events.CredentialsUpdatedPayload); ok {
				m.onCredentials(userID, payload.Blob)
			}
		}
	case events.EventTypeQRIssued:
		if base, ok := ev.(*events.BaseEvent); ok {
			if payload, ok := base.Payload.(events.QRIssuedPayload); ok {
				m.onQR(userID, gen, payload.Code)
			}
		}
	}

	if m.deps.Hub != nil {
		m.deps.Hub.Publish(events.WithUser(ev, userID))
	}
}

func (m *Manager) onOpened(userID string, gen uint64) {
	s, ok := m.registry.Get(userID)
	if !ok {
		return
	}

	s.mu.Lock()
	if s.generation != gen || s.client == nil {
		s.mu.Unlock()
		return
	}
	from := s.state
	s.state = StateOpen
	s.reconnectAttempts = 0
	s.lastConnectedAt = m.now().UTC()
	s.wantQR = false
	s.lastQRAt = time.Time{}
	reason := s.reason
	enabled := s.autoApproveEnabled
	s.mu.Unlock()

	m.logger.Info("Connection open", "user_id", userID)
	m.persistSettings(userID, enabled)
	m.publishState(userID, from, StateOpen, 0, "")

	for _, o := range m.observerList() {
		o.SessionOpened(m.ctx, userID)
	}

	switch reason {
	case reasonFresh:
		m.notify(userID, "🚀 *Connected!*\n\nAuto-approval and group tools are now available.", ports.MessageOptions{Markdown: true})
	case reasonReconnect:
		m.notify(userID, "✅ *Reconnected!* The session is back online.", ports.MessageOptions{Markdown: true})
	case reasonRestore:
		m.logger.Info("Session restored", "user_id", userID)
	}
}

func (m *Manager) onClosed(userID string, gen uint64, code int, reason string) {
	s, ok := m.registry.Get(userID)
	if !ok {
		return
	}

	authRevoked := code == 401 || code == 403

	s.mu.Lock()
	if s.generation != gen {
		s.mu.Unlock()
		return
	}
	from := s.state
	client := s.client
	quiet := s.quiet
	s.client = nil
	s.generation++

	retry := false
	attempt := 0
	if !authRevoked {
		s.reconnectAttempts++
		attempt = s.reconnectAttempts
		retry = attempt < m.opts.MaxReconnectAttempts
	}
	if retry {
		s.state = StateClosedRetrying
		retryGen := s.generation
		s.retryTimer = time.AfterFunc(m.opts.ReconnectDelay, func() {
			m.reconnect(userID, retryGen)
		})
	} else {
		s.state = StateClosedPermanent
		s.reconnectAttempts = 0
		if s.retryTimer != nil {
			s.retryTimer.Stop()
			s.retryTimer = nil
		}
	}
	to := s.state
	s.mu.Unlock()

	if client != nil {
		_ = client.Close()
	}

	m.logger.Info("Connection closed",
		"user_id", userID,
		"code", code,
		"reason", reason,
		"attempt", attempt,
		"state", to.String(),
	)
	m.publishState(userID, from, to, attempt, reason)

	if retry {
		if attempt == 1 && !quiet {
			m.notify(userID, fmt.Sprintf(
				"⚠️ *Connection lost*\nReason: %s\n\nReconnecting... (attempt %d/%d)",
				reasonText(reason), attempt, m.opts.MaxReconnectAttempts,
			), ports.MessageOptions{Markdown: true})
		}
		return
	}

	if authRevoked {
		if err := m.deps.Store.Delete(userID); err != nil {
			m.logger.Error("Failed to delete revoked credentials", "user_id", userID, "error", err)
		} else {
			m.logger.Info("Deleted revoked credentials", "user_id", userID)
		}
	}

	for _, o := range m.observerList() {
		o.SessionRetired(userID)
	}

	if !quiet {
		m.notify(userID, "❌ *Disconnected permanently*\nLog in again with a new pairing code.", ports.MessageOptions{Markdown: true})
	}
}

func (m *Manager) reconnect(userID string, retryGen uint64) {
	s, ok := m.registry.Get(userID)
	if !ok {
		return
	}
	s.mu.Lock()
	current := s.generation == retryGen && s.state == StateClosedRetrying
	s.retryTimer = nil
	attempt := s.reconnectAttempts
	s.mu.Unlock()
	if !current {
		return
	}
	if m.ctx.Err() != nil {
		return
	}

	m.logger.Info("Reconnecting",
		"user_id", userID,
		"attempt", attempt,
		"max_attempts", m.opts.MaxReconnectAttempts,
	)
	m.open(m.ctx, userID, reasonReconnect, false)
}

func (m *Manager) onCredentials(userID string, blob []byte) {
	if len(blob) == 0 {
		return
	}
	if err := m.deps.Store.SaveCredentials(userID, blob); err != nil {
		m.logger.Error("Failed to save credentials", "user_id", userID, "error", err)
		return
	}
	m.logger.Debug("Credentials saved", "user_id", userID, "size", len(blob))
}

func (m *Manager) onQR(userID string, gen uint64, code string) {
	if m.deps.QR == nil || code == "" {
		return
	}
	s, ok := m.registry.Get(userID)
	if !ok {
		return
	}

	s.mu.Lock()
	if s.generation != gen || !s.wantQR || s.source != SourceFresh {
		s.mu.Unlock()
		return
	}
	now := m.now()
	if !s.lastQRAt.IsZero() && now.Sub(s.lastQRAt) < m.opts.QRThrottle {
		s.mu.Unlock()
		m.logger.Debug("Skipping QR code, too soon since the last one", "user_id", userID)
		return
	}
	s.lastQRAt = now
	s.mu.Unlock()

	png, err := m.deps.QR(code)
	if err == nil {
		err = m.deps.Notifier.SendImage(m.ctx, userID, png,
			"🔒 *Scan this QR code with WhatsApp*\n\nOpen WhatsApp > Menu > Linked devices > Link a device\n\nThe code is valid for 60 seconds!")
	}
	if err != nil {
		m.logger.Error("Failed to send QR code", "user_id", userID, "error", err)
		m.notify(userID, "❌ Could not send the QR code. Try again later.", ports.MessageOptions{})
	}
}

// Logout unlinks userID's device (best effort) and then unconditionally
// deletes the stored credentials, the session and its subscriptions. Only a
// failure to delete local state is returned.
func (m *Manager) Logout(ctx context.Context, userID string) error {
	var client ports.ProtocolClient
	from := StateDisconnected
	if s, ok := m.registry.Remove(userID); ok {
		s.mu.Lock()
		client = s.client
		from = s.state
		s.client = nil
		s.generation++
		if s.retryTimer != nil {
			s.retryTimer.Stop()
			s.retryTimer = nil
		}
		s.state = StateDisconnected
		s.mu.Unlock()
	}

	if client != nil {
		if err := client.Logout(ctx); err != nil {
			m.logger.Warn("Remote logout failed, deleting local session anyway", "user_id", userID, "error", err)
		}
		_ = client.Close()
	}

	for _, o := range m.observerList() {
		o.SessionRetired(userID)
	}

	if err := m.deps.Store.Delete(userID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	m.logger.Info("Logged out", "user_id", userID)
	m.publishState(userID, from, StateDisconnected, 0, "logout")
	return nil
}

// CancelLogin abandons a login in progress. A session that already has a
// client is logged out so no half-paired device remains.
func (m *Manager) CancelLogin(ctx context.Context, userID string) error {
	s, ok := m.registry.Get(userID)
	if !ok || s.Client() == nil {
		return nil
	}
	return m.Logout(ctx, userID)
}

// RestoreAll resumes every stored session, one at a time with
// RestoreDelay between successful restores. Failures are logged and
// skipped. It returns the restored user IDs.
func (m *Manager) RestoreAll(ctx context.Context) []string {
	users, err := m.deps.Store.Users()
	if err != nil {
		m.logger.Error("Failed to list stored sessions", "error", err)
		return nil
	}
	m.logger.Info("Restoring sessions", "candidates", len(users))

	restored := make([]string, 0, len(users))
	for _, userID := range users {
		if ctx.Err() != nil {
			break
		}
		if !m.deps.Store.HasCredentials(userID) {
			m.logger.Info("Skipping session without credentials", "user_id", userID)
			continue
		}

		if len(restored) > 0 && !sleep(ctx, m.opts.RestoreDelay) {
			break
		}
		if client := m.open(ctx, userID, reasonRestore, false); client == nil {
			m.logger.Warn("Failed to restore session", "user_id", userID)
			continue
		}
		restored = append(restored, userID)
	}

	m.logger.Info("Sessions restored", "restored", len(restored))
	return restored
}

// AutoApproveEnabled reports the auto-approval toggle of userID, falling
// back to the stored settings when no session exists.
func (m *Manager) AutoApproveEnabled(userID string) bool {
	if s, ok := m.registry.Get(userID); ok {
		return s.AutoApproveEnabled()
	}
	settings, err := m.deps.Store.LoadSettings(userID)
	if err != nil {
		return false
	}
	return settings.AutoApproveEnabled
}

// SetAutoApprove updates and persists the auto-approval toggle. It reports
// whether the session is currently open.
func (m *Manager) SetAutoApprove(userID string, enabled bool) (bool, error) {
	s := m.registry.GetOrCreate(userID, m.settingsLoader(userID))
	s.mu.Lock()
	s.autoApproveEnabled = enabled
	open := s.state == StateOpen && s.client != nil
	s.mu.Unlock()

	if err := m.saveSettings(userID, enabled); err != nil {
		return open, err
	}
	return open, nil
}

// Shutdown closes every live client without deleting anything.
func (m *Manager) Shutdown() {
	m.cancel()
	for _, s := range m.registry.All() {
		s.mu.Lock()
		client := s.client
		s.client = nil
		s.generation++
		if s.retryTimer != nil {
			s.retryTimer.Stop()
			s.retryTimer = nil
		}
		s.mu.Unlock()
		if client != nil {
			_ = client.Close()
		}
	}
	m.logger.Info("Session manager stopped")
}

func (m *Manager) settingsLoader(userID string) func() ports.Settings {
	return func() ports.Settings {
		settings, err := m.deps.Store.LoadSettings(userID)
		if err != nil {
			m.logger.Warn("Failed to load settings", "user_id", userID, "error", err)
		}
		return settings
	}
}

func (m *Manager) saveSettings(userID string, enabled bool) error {
	err := m.deps.Store.SaveSettings(userID, ports.Settings{
		AutoApproveEnabled: enabled,
		LastSaved:          m.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}

func (m *Manager) persistSettings(userID string, enabled bool) {
	if err := m.saveSettings(userID, enabled); err != nil {
		m.logger.Error("Failed to save settings", "user_id", userID, "error", err)
	}
}

func (m *Manager) notify(userID, text string, opts ports.MessageOptions) {
	if m.deps.Notifier == nil {
		return
	}
	if _, err := m.deps.Notifier.SendMessage(m.ctx, userID, text, opts); err != nil {
		m.logger.Warn("Failed to notify user", "user_id", userID, "error", err)
	}
}

func (m *Manager) publishState(userID string, from, to State, attempt int, reason string) {
	if m.deps.Hub == nil || from == to && reason == "" {
		return
	}
	m.deps.Hub.Publish(events.NewSessionStateEvent(userID, from.String(), to.String(), attempt, reason))
}

func reasonText(reason string) string {
	if reason == "" {
		return "unknown"
	}
	return reason
}

// sleep waits for d or until ctx is done, reporting whether d elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
