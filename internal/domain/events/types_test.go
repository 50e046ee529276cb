package events

import (
	"encoding/json"
	"testing"
	"time"
)

func TestBaseEvent_Type(t *testing.T) {
	tests := []struct {
		name      string
		eventType EventType
	}{
		{"connection_opened", EventTypeConnectionOpened},
		{"connection_closed", EventTypeConnectionClosed},
		{"join_request_received", EventTypeJoinRequestReceived},
		{"group_renamed", EventTypeGroupRenamed},
		{"error", EventTypeError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := NewEvent(tt.eventType, nil)

			if event.Type() != tt.eventType {
				t.Errorf("Type() = %v, want %v", event.Type(), tt.eventType)
			}
		})
	}
}

func TestBaseEvent_Timestamp(t *testing.T) {
	before := time.Now().UTC()
	event := NewEvent(EventTypeConnectionOpened, nil)
	after := time.Now().UTC()

	ts := event.Timestamp()

	if ts.Before(before) {
		t.Errorf("Timestamp() = %v, should be >= %v", ts, before)
	}
	if ts.After(after) {
		t.Errorf("Timestamp() = %v, should be <= %v", ts, after)
	}
}

func TestBaseEvent_ToJSON(t *testing.T) {
	event := NewUserEvent(EventTypeJoinRequestReceived, JoinRequestPayload{
		GroupID:       "120363@g.us",
		ParticipantID: "628111@s.whatsapp.net",
	}, "42")

	jsonBytes, err := event.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}

	var parsed map[string]interface{}
	if err := json.Unmarshal(jsonBytes, &parsed); err != nil {
		t.Fatalf("failed to parse JSON: %v", err)
	}

	if parsed["event"] != string(EventTypeJoinRequestReceived) {
		t.Errorf("JSON event = %v, want %v", parsed["event"], EventTypeJoinRequestReceived)
	}
	if parsed["user_id"] != "42" {
		t.Errorf("JSON user_id = %v, want 42", parsed["user_id"])
	}

	payloadMap, ok := parsed["payload"].(map[string]interface{})
	if !ok {
		t.Fatal("JSON payload should be a map")
	}
	if payloadMap["group_id"] != "120363@g.us" {
		t.Errorf("JSON payload.group_id = %v, want 120363@g.us", payloadMap["group_id"])
	}
}

func TestNewEventWithRequestID(t *testing.T) {
	requestID := "req-123"
	event := NewEventWithRequestID(EventTypeError, nil, requestID)

	if event == nil {
		t.Fatal("NewEventWithRequestID() returned nil")
	}
	if event.RequestID != requestID {
		t.Errorf("RequestID = %q, want %q", event.RequestID, requestID)
	}
}

func TestWithUser(t *testing.T) {
	event := NewConnectionOpenedEvent()
	got := WithUser(event, "7")

	if got.GetUserID() != "7" {
		t.Errorf("GetUserID() = %q, want 7", got.GetUserID())
	}
	if got != Event(event) {
		t.Error("WithUser should update a BaseEvent in place")
	}
}

func TestEventTypes_Constants(t *testing.T) {
	types := []EventType{
		EventTypeConnectionOpened,
		EventTypeConnectionClosed,
		EventTypeCredentialsUpdated,
		EventTypeQRIssued,
		EventTypeJoinRequestReceived,
		EventTypeGroupMembershipChanged,
		EventTypeJoinRequestApproved,
		EventTypeGroupRenamed,
		EventTypeSessionState,
		EventTypeError,
	}

	seen := make(map[EventType]bool)
	for _, et := range types {
		if seen[et] {
			t.Fatalf("duplicate event type: %s", et)
		}
		seen[et] = true
	}
}
