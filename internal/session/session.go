// Package session manages one messaging-protocol session per user: opening
// and resuming connections, reacting to connection events, bounded
// reconnects, and retiring sessions whose pairing was revoked.
package session

import (
	"fmt"
	"time"

	"github.com/brianly1003/grouppilot/internal/domain/ports"
	"github.com/brianly1003/grouppilot/internal/sync"
)

// State represents the connection state of a session.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StatePairingPending
	StateOpen
	StateClosedRetrying
	StateClosedPermanent
)

// String returns the state name used in logs, events and the status API.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StatePairingPending:
		return "pairing_pending"
	case StateOpen:
		return "open"
	case StateClosedRetrying:
		return "closed_retrying"
	case StateClosedPermanent:
		return "closed_permanent"
	default:
		return "unknown"
	}
}

// MarshalText renders the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name produced by MarshalText.
func (s *State) UnmarshalText(text []byte) error {
	for st := StateDisconnected; st <= StateClosedPermanent; st++ {
		if st.String() == string(text) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown session state %q", text)
}

// Source tells whether a session pairs from scratch or resumes stored
// credentials.
type Source int

const (
	SourceFresh Source = iota
	SourceRestored
)

// String returns the source name.
func (s Source) String() string {
	if s == SourceRestored {
		return "restored"
	}
	return "fresh"
}

// MarshalText renders the source by name.
func (s Source) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a source name produced by MarshalText.
func (s *Source) UnmarshalText(text []byte) error {
	switch string(text) {
	case "fresh":
		*s = SourceFresh
	case "restored":
		*s = SourceRestored
	default:
		return fmt.Errorf("unknown credential source %q", text)
	}
	return nil
}

// openReason selects the message shown when a connection opens.
type openReason int

const (
	reasonFresh openReason = iota
	reasonReconnect
	reasonRestore
)

// UserSession is the connection state of one user. All fields are guarded
// by mu; transitions hold it for their whole state mutation so one user's
// transitions never interleave.
type UserSession struct {
	UserID string

	state                State
	client               ports.ProtocolClient
	generation           uint64
	lastConnectedAt      time.Time
	reconnectAttempts    int
	autoApproveEnabled   bool
	autoApproveInstalled bool
	source               Source
	reason               openReason
	quiet                bool
	lastQRAt             time.Time
	wantQR               bool
	phone                string
	retryTimer           *time.Timer

	mu sync.Mutex
}

func newUserSession(userID string, settings ports.Settings) *UserSession {
	return &UserSession{
		UserID:             userID,
		state:              StateDisconnected,
		autoApproveEnabled: settings.AutoApproveEnabled,
	}
}

// State returns the current connection state.
func (s *UserSession) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Client returns the live protocol client, or nil.
func (s *UserSession) Client() ports.ProtocolClient {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.client
}

// ReconnectAttempts returns the consecutive reconnect attempts so far.
func (s *UserSession) ReconnectAttempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reconnectAttempts
}

// AutoApproveEnabled reports the auto-approval toggle.
func (s *UserSession) AutoApproveEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.autoApproveEnabled
}

// AutoApproveInstalled reports whether the auto-approval subscription is
// installed.
func (s *UserSession) AutoApproveInstalled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.autoApproveInstalled
}

// MarkAutoApproveInstalled sets the installation guard and reports whether
// the caller is the one that flipped it. Only that caller may subscribe.
func (s *UserSession) MarkAutoApproveInstalled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.autoApproveInstalled {
		return false
	}
	s.autoApproveInstalled = true
	return true
}

// ClearAutoApproveInstalled resets the installation guard and reports
// whether it was set.
func (s *UserSession) ClearAutoApproveInstalled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	was := s.autoApproveInstalled
	s.autoApproveInstalled = false
	return was
}

// Snapshot returns a read-only view of the session.
func (s *UserSession) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := Snapshot{
		UserID:               s.UserID,
		State:                s.state,
		Connected:            s.state == StateOpen,
		ReconnectAttempts:    s.reconnectAttempts,
		AutoApproveEnabled:   s.autoApproveEnabled,
		AutoApproveInstalled: s.autoApproveInstalled,
		Source:               s.source,
		Phone:                maskPhone(s.phone),
	}
	if !s.lastConnectedAt.IsZero() {
		t := s.lastConnectedAt
		snap.LastConnectedAt = &t
	}
	return snap
}

// Snapshot is a serializable view of a UserSession.
type Snapshot struct {
	UserID               string     `json:"user_id"`
	State                State      `json:"state"`
	Connected            bool       `json:"connected"`
	LastConnectedAt      *time.Time `json:"last_connected_at,omitempty"`
	ReconnectAttempts    int        `json:"reconnect_attempts"`
	AutoApproveEnabled   bool       `json:"auto_approve_enabled"`
	AutoApproveInstalled bool       `json:"auto_approve_installed"`
	Source               Source     `json:"source"`
	Phone                string     `json:"phone,omitempty"`
}

// maskPhone keeps the country prefix and the last three digits.
func maskPhone(phone string) string {
	if len(phone) < 7 {
		return phone
	}
	masked := []byte(phone)
	for i := 3; i < len(masked)-3; i++ {
		masked[i] = '*'
	}
	return string(masked)
}
