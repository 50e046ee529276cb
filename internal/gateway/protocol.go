package gateway

import "github.com/brianly1003/grouppilot/internal/domain/ports"

// Methods served by the gateway.
const (
	MethodSessionOpen        = "session.open"
	MethodSessionLogout      = "session.logout"
	MethodPairingRequestCode = "pairing.request_code"
	MethodAccountSelf        = "account.self"
	MethodGroupsList         = "groups.list"
	MethodGroupsPending      = "groups.pending_requests"
	MethodGroupsApprove      = "groups.approve"
	MethodGroupsRename       = "groups.rename"
)

// Notifications pushed by the gateway.
const (
	NotifyConnectionUpdate   = "connection.update"
	NotifyCredsUpdate        = "creds.update"
	NotifyQR                 = "qr"
	NotifyJoinRequest        = "group.join_request"
	NotifyParticipantsUpdate = "group.participants_update"
)

// Connection states carried by connection.update.
const (
	ConnectionOpen  = "open"
	ConnectionClose = "close"
)

// SessionOpenParams starts the remote session. Credentials is nil for a
// fresh pairing; encoding/json carries it as base64.
type SessionOpenParams struct {
	UserID      string `json:"user_id"`
	Credentials []byte `json:"credentials,omitempty"`
}

// PairingParams asks for a pairing code.
type PairingParams struct {
	Phone string `json:"phone"`
}

// PairingResult carries the pairing code.
type PairingResult struct {
	Code string `json:"code"`
}

// GroupsResult lists groups.
type GroupsResult struct {
	Groups []ports.Group `json:"groups"`
}

// GroupParams names a group.
type GroupParams struct {
	GroupID string `json:"group_id"`
}

// PendingResult lists pending participants.
type PendingResult struct {
	Participants []string `json:"participants"`
}

// ApproveParams approves one participant.
type ApproveParams struct {
	GroupID       string `json:"group_id"`
	ParticipantID string `json:"participant_id"`
}

// RenameParams renames a group.
type RenameParams struct {
	GroupID string `json:"group_id"`
	Name    string `json:"name"`
}

// ConnectionUpdate is the connection.update payload.
type ConnectionUpdate struct {
	Connection string `json:"connection"`
	Code       int    `json:"code,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// CredsUpdate is the creds.update payload.
type CredsUpdate struct {
	Credentials []byte `json:"credentials"`
}

// QRUpdate is the qr payload.
type QRUpdate struct {
	Code string `json:"code"`
}

// JoinRequest is the group.join_request payload.
type JoinRequest struct {
	GroupID       string `json:"group_id"`
	ParticipantID string `json:"participant_id"`
}

// ParticipantsUpdate is the group.participants_update payload.
type ParticipantsUpdate struct {
	GroupID      string   `json:"group_id"`
	Participants []string `json:"participants"`
	Action       string   `json:"action"`
}
