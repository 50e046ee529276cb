package hub

import (
	"sort"
	"testing"

	"github.com/brianly1003/grouppilot/internal/domain/events"
	"github.com/brianly1003/grouppilot/internal/testutil"
)

func TestFilteredSubscriber_NoFilterForwardsAll(t *testing.T) {
	inner := testutil.NewMockSubscriber("client-1")
	fs := NewFilteredSubscriber(inner)

	_ = fs.Send(events.NewUserEvent(events.EventTypeSessionState, nil, "u1"))
	_ = fs.Send(events.NewEvent(events.EventTypeError, nil))

	if inner.EventCount() != 2 {
		t.Errorf("EventCount() = %d, want 2", inner.EventCount())
	}
	if fs.IsFiltering() {
		t.Error("IsFiltering() should be false without users")
	}
}

func TestFilteredSubscriber_UserFilter(t *testing.T) {
	inner := testutil.NewMockSubscriber("client-1")
	fs := NewFilteredSubscriber(inner)
	fs.SubscribeUser("u1")

	_ = fs.Send(events.NewUserEvent(events.EventTypeSessionState, nil, "u1"))
	_ = fs.Send(events.NewUserEvent(events.EventTypeSessionState, nil, "u2"))
	_ = fs.Send(events.NewEvent(events.EventTypeError, nil)) // global

	if inner.EventCount() != 2 {
		t.Fatalf("EventCount() = %d, want 2", inner.EventCount())
	}
	for _, e := range inner.Events() {
		if e.GetUserID() == "u2" {
			t.Error("event for u2 should have been filtered")
		}
	}
}

func TestFilteredSubscriber_StrictUserSubscriber(t *testing.T) {
	inner := testutil.NewMockSubscriber("autoapprove:u1")
	fs := NewUserSubscriber(inner, "u1")

	_ = fs.Send(events.NewUserEvent(events.EventTypeJoinRequestReceived, nil, "u1"))
	_ = fs.Send(events.NewUserEvent(events.EventTypeJoinRequestReceived, nil, "u2"))
	_ = fs.Send(events.NewEvent(events.EventTypeJoinRequestReceived, nil))

	if inner.EventCount() != 1 {
		t.Fatalf("EventCount() = %d, want 1", inner.EventCount())
	}
	if got := inner.Events()[0].GetUserID(); got != "u1" {
		t.Errorf("forwarded event user = %q, want u1", got)
	}
}

func TestFilteredSubscriber_UnsubscribeAndSubscribeAll(t *testing.T) {
	fs := NewFilteredSubscriber(testutil.NewMockSubscriber("client-1"))
	fs.SubscribeUser("b")
	fs.SubscribeUser("a")

	users := fs.GetSubscribedUsers()
	sort.Strings(users)
	if len(users) != 2 || users[0] != "a" || users[1] != "b" {
		t.Errorf("GetSubscribedUsers() = %v", users)
	}

	fs.UnsubscribeUser("a")
	if got := fs.GetSubscribedUsers(); len(got) != 1 || got[0] != "b" {
		t.Errorf("after unsubscribe = %v", got)
	}

	fs.SubscribeAll()
	if fs.IsFiltering() {
		t.Error("SubscribeAll should clear the filter")
	}
}

func TestFilteredSubscriber_DelegatesIdentity(t *testing.T) {
	inner := testutil.NewMockSubscriber("client-9")
	fs := NewFilteredSubscriber(inner)

	if fs.ID() != "client-9" {
		t.Errorf("ID() = %q", fs.ID())
	}
	_ = fs.Close()
	if !inner.IsClosed() {
		t.Error("Close should close the inner subscriber")
	}
	select {
	case <-fs.Done():
	default:
		t.Error("Done should be closed after Close")
	}
}
