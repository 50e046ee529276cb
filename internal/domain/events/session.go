package events

// ConnectionClosedPayload is the payload for connection_closed events.
type ConnectionClosedPayload struct {
	// Code is the status code reported by the protocol stack (401/403 mean
	// the pairing was revoked).
	Code   int    `json:"code"`
	Reason string `json:"reason,omitempty"`
}

// CredentialsUpdatedPayload is the payload for credentials_updated events.
// The blob never leaves the process through JSON.
type CredentialsUpdatedPayload struct {
	Blob []byte `json:"-"`
	Size int    `json:"size"`
}

// QRIssuedPayload is the payload for qr_issued events.
type QRIssuedPayload struct {
	Code string `json:"-"`
}

// SessionStatePayload is the payload for session_state events.
type SessionStatePayload struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Attempt int    `json:"attempt,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// NewConnectionOpenedEvent creates a new connection_opened event.
func NewConnectionOpenedEvent() *BaseEvent {
	return NewEvent(EventTypeConnectionOpened, nil)
}

// NewConnectionClosedEvent creates a new connection_closed event.
func NewConnectionClosedEvent(code int, reason string) *BaseEvent {
	return NewEvent(EventTypeConnectionClosed, ConnectionClosedPayload{
		Code:   code,
		Reason: reason,
	})
}

// NewCredentialsUpdatedEvent creates a new credentials_updated event.
func NewCredentialsUpdatedEvent(blob []byte) *BaseEvent {
	return NewEvent(EventTypeCredentialsUpdated, CredentialsUpdatedPayload{
		Blob: blob,
		Size: len(blob),
	})
}

// NewQRIssuedEvent creates a new qr_issued event.
func NewQRIssuedEvent(code string) *BaseEvent {
	return NewEvent(EventTypeQRIssued, QRIssuedPayload{Code: code})
}

// NewSessionStateEvent creates a new session_state event for a user.
func NewSessionStateEvent(userID, from, to string, attempt int, reason string) *BaseEvent {
	return NewUserEvent(EventTypeSessionState, SessionStatePayload{
		From:    from,
		To:      to,
		Attempt: attempt,
		Reason:  reason,
	}, userID)
}
