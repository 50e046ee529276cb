package events

// MembershipActionJoinRequest is the membership-change action the protocol
// stack uses for pending join requests.
const MembershipActionJoinRequest = "join_request"

// JoinRequestPayload is the payload for join_request_received events.
type JoinRequestPayload struct {
	GroupID       string `json:"group_id"`
	ParticipantID string `json:"participant_id"`
}

// MembershipChangedPayload is the payload for group_membership_changed events.
type MembershipChangedPayload struct {
	GroupID      string   `json:"group_id"`
	Participants []string `json:"participants"`
	Action       string   `json:"action"`
}

// ApprovalPayload is the payload for join_request_approved events.
type ApprovalPayload struct {
	GroupID       string `json:"group_id"`
	ParticipantID string `json:"participant_id"`
	Source        string `json:"source"` // event or sweep
	Error         string `json:"error,omitempty"`
}

// RenamePayload is the payload for group_renamed events.
type RenamePayload struct {
	BatchID  string `json:"batch_id"`
	GroupID  string `json:"group_id"`
	OldName  string `json:"old_name"`
	NewName  string `json:"new_name"`
	Sequence int    `json:"sequence"`
	Error    string `json:"error,omitempty"`
}

// NewJoinRequestEvent creates a new join_request_received event.
func NewJoinRequestEvent(groupID, participantID string) *BaseEvent {
	return NewEvent(EventTypeJoinRequestReceived, JoinRequestPayload{
		GroupID:       groupID,
		ParticipantID: participantID,
	})
}

// NewMembershipChangedEvent creates a new group_membership_changed event.
func NewMembershipChangedEvent(groupID string, participants []string, action string) *BaseEvent {
	return NewEvent(EventTypeGroupMembershipChanged, MembershipChangedPayload{
		GroupID:      groupID,
		Participants: participants,
		Action:       action,
	})
}

// NewApprovalEvent creates a new join_request_approved event.
func NewApprovalEvent(userID string, payload ApprovalPayload) *BaseEvent {
	return NewUserEvent(EventTypeJoinRequestApproved, payload, userID)
}

// NewRenameEvent creates a new group_renamed event.
func NewRenameEvent(userID string, payload RenamePayload) *BaseEvent {
	return NewUserEvent(EventTypeGroupRenamed, payload, userID)
}

// JoinRequests extracts the join requests carried by an event. It understands
// both dedicated join-request events and membership changes with the
// join_request action. Any other event yields nil.
func JoinRequests(event Event) []JoinRequestPayload {
	base, ok := event.(*BaseEvent)
	if !ok {
		return nil
	}

	switch p := base.Payload.(type) {
	case JoinRequestPayload:
		if base.EventType != EventTypeJoinRequestReceived || p.ParticipantID == "" {
			return nil
		}
		return []JoinRequestPayload{p}
	case MembershipChangedPayload:
		if base.EventType != EventTypeGroupMembershipChanged || p.Action != MembershipActionJoinRequest {
			return nil
		}
		result := make([]JoinRequestPayload, 0, len(p.Participants))
		for _, participant := range p.Participants {
			if participant == "" {
				continue
			}
			result = append(result, JoinRequestPayload{GroupID: p.GroupID, ParticipantID: participant})
		}
		return result
	}
	return nil
}
