// Package ports defines the interfaces (ports) for the hexagonal architecture.
package ports

import (
	"context"

	"github.com/brianly1003/grouppilot/internal/domain/events"
)

// Participant roles reported by the protocol stack.
const (
	RoleMember     = ""
	RoleAdmin      = "admin"
	RoleSuperAdmin = "superadmin"
)

// Participant is a member of a group.
type Participant struct {
	ID   string `json:"id"`
	Role string `json:"role,omitempty"`
}

// IsAdmin reports whether the participant holds administrative rights.
func (p Participant) IsAdmin() bool {
	return p.Role == RoleAdmin || p.Role == RoleSuperAdmin
}

// Group is a group the session participates in.
type Group struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Participants []Participant `json:"participants,omitempty"`
}

// SelfIdentity lists the identifiers the session's own account is known by.
// The protocol exposes the same account under a phone-based ID and an
// alternate (linked) ID; either may appear in participant lists.
type SelfIdentity struct {
	ID    string `json:"id"`
	AltID string `json:"alt_id,omitempty"`
}

// ProtocolClient is one live connection to the messaging network on behalf
// of one user. A client is owned by exactly one session and must not be used
// after Close.
type ProtocolClient interface {
	// Events delivers connection, credential and group events. The channel is
	// closed when the client is closed.
	Events() <-chan events.Event

	// RequestPairingCode asks the network for a pairing code for phone.
	RequestPairingCode(ctx context.Context, phone string) (string, error)

	// Self returns the account identity, available once the connection opened.
	Self(ctx context.Context) (SelfIdentity, error)

	// ListGroups returns every group the account participates in.
	ListGroups(ctx context.Context) ([]Group, error)

	// FetchPendingJoinRequests returns participant IDs waiting for approval.
	FetchPendingJoinRequests(ctx context.Context, groupID string) ([]string, error)

	// ApproveJoinRequest approves one pending participant.
	ApproveJoinRequest(ctx context.Context, groupID, participantID string) error

	// RenameGroup changes a group's subject.
	RenameGroup(ctx context.Context, groupID, newName string) error

	// Logout unlinks the device on the remote side.
	Logout(ctx context.Context) error

	// Close tears down the connection without unlinking.
	Close() error
}

// ClientFactory creates protocol clients. credentials is nil for a fresh
// pairing and the stored blob when resuming.
type ClientFactory interface {
	Open(ctx context.Context, userID string, credentials []byte) (ProtocolClient, error)
}
