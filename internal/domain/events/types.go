// Package events defines all event types used in grouppilot.
package events

import (
	"encoding/json"
	"time"
)

// EventType represents the type of event.
type EventType string

const (
	// Protocol connection events
	EventTypeConnectionOpened   EventType = "connection_opened"
	EventTypeConnectionClosed   EventType = "connection_closed"
	EventTypeCredentialsUpdated EventType = "credentials_updated"
	EventTypeQRIssued           EventType = "qr_issued"

	// Group events
	EventTypeJoinRequestReceived    EventType = "join_request_received"
	EventTypeGroupMembershipChanged EventType = "group_membership_changed"

	// Outcome events (published by grouppilot itself)
	EventTypeJoinRequestApproved EventType = "join_request_approved"
	EventTypeGroupRenamed        EventType = "group_renamed"
	EventTypeSessionState        EventType = "session_state"

	// Response events
	EventTypeError EventType = "error"
)

// Event is the base interface for all events.
type Event interface {
	// Type returns the event type.
	Type() EventType

	// Timestamp returns when the event occurred.
	Timestamp() time.Time

	// ToJSON serializes the event to JSON.
	ToJSON() ([]byte, error)

	// GetUserID returns the owning user ID (may be empty for global events).
	GetUserID() string
}

// BaseEvent contains common fields for all events.
type BaseEvent struct {
	EventType EventType   `json:"event"`
	EventTime time.Time   `json:"timestamp"`
	UserID    string      `json:"user_id,omitempty"`
	Payload   interface{} `json:"payload"`
	RequestID string      `json:"request_id,omitempty"`
}

// SetUser sets the user context for an event.
func (e *BaseEvent) SetUser(userID string) {
	e.UserID = userID
}

// GetUserID returns the user ID.
func (e *BaseEvent) GetUserID() string {
	return e.UserID
}

// Type returns the event type.
func (e *BaseEvent) Type() EventType {
	return e.EventType
}

// Timestamp returns when the event occurred.
func (e *BaseEvent) Timestamp() time.Time {
	return e.EventTime
}

// ToJSON serializes the event to JSON.
func (e *BaseEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// ErrorPayload is the payload for error events.
type ErrorPayload struct {
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	RequestID string                 `json:"request_id,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// NewErrorEvent creates a new error event.
func NewErrorEvent(code, message string, requestID string, details map[string]interface{}) *BaseEvent {
	return NewEventWithRequestID(EventTypeError, ErrorPayload{
		Code:      code,
		Message:   message,
		RequestID: requestID,
		Details:   details,
	}, requestID)
}

// NewEvent creates a new base event with the given type and payload.
func NewEvent(eventType EventType, payload interface{}) *BaseEvent {
	return &BaseEvent{
		EventType: eventType,
		EventTime: time.Now().UTC(),
		Payload:   payload,
	}
}

// NewEventWithRequestID creates a new event with a request ID for correlation.
func NewEventWithRequestID(eventType EventType, payload interface{}, requestID string) *BaseEvent {
	return &BaseEvent{
		EventType: eventType,
		EventTime: time.Now().UTC(),
		Payload:   payload,
		RequestID: requestID,
	}
}

// NewUserEvent creates a new event bound to a user.
func NewUserEvent(eventType EventType, payload interface{}, userID string) *BaseEvent {
	return &BaseEvent{
		EventType: eventType,
		EventTime: time.Now().UTC(),
		UserID:    userID,
		Payload:   payload,
	}
}

// WithUser returns the event bound to userID. BaseEvents are updated in place;
// other implementations are wrapped in a copy that carries the user.
func WithUser(event Event, userID string) Event {
	if base, ok := event.(*BaseEvent); ok {
		base.SetUser(userID)
		return base
	}
	return &BaseEvent{
		EventType: event.Type(),
		EventTime: event.Timestamp(),
		UserID:    userID,
		Payload:   event,
	}
}
