package methods

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/brianly1003/grouppilot/internal/domain"
	"github.com/brianly1003/grouppilot/internal/hub"
	"github.com/brianly1003/grouppilot/internal/journal"
	"github.com/brianly1003/grouppilot/internal/rpc/handler"
	"github.com/brianly1003/grouppilot/internal/rpc/message"
	"github.com/brianly1003/grouppilot/internal/session"
	"github.com/brianly1003/grouppilot/internal/testutil"
)

type fakeSessions struct {
	snaps     map[string]session.Snapshot
	logoutErr error
	loggedOut []string
}

func (f *fakeSessions) Snapshot(userID string) (session.Snapshot, bool) {
	s, ok := f.snaps[userID]
	return s, ok
}

func (f *fakeSessions) Snapshots() []session.Snapshot {
	var out []session.Snapshot
	for _, s := range f.snaps {
		out = append(out, s)
	}
	return out
}

func (f *fakeSessions) Logout(ctx context.Context, userID string) error {
	f.loggedOut = append(f.loggedOut, userID)
	return f.logoutErr
}

type fakeApprover struct {
	enabled  map[string]bool
	sweepErr error
	approved int
}

func (f *fakeApprover) SetEnabled(ctx context.Context, userID string, enabled bool) error {
	f.enabled[userID] = enabled
	return nil
}

func (f *fakeApprover) Enabled(userID string) bool { return f.enabled[userID] }

func (f *fakeApprover) ReconcilePending(ctx context.Context, userID string) (int, error) {
	return f.approved, f.sweepErr
}

type fakeJournal struct {
	entries   []journal.Entry
	lastLimit int
}

func (f *fakeJournal) Recent(ctx context.Context, userID string, limit int) ([]journal.Entry, error) {
	f.lastLimit = limit
	return f.entries, nil
}

func call(t *testing.T, r *handler.Registry, method string, params interface{}) (interface{}, *message.Error) {
	t.Helper()
	h := r.Get(method)
	if h == nil {
		t.Fatalf("method %s not registered", method)
	}
	var raw json.RawMessage
	if params != nil {
		data, err := json.Marshal(params)
		if err != nil {
			t.Fatal(err)
		}
		raw = data
	}
	return h(context.Background(), raw)
}

func TestSessionService(t *testing.T) {
	sessions := &fakeSessions{snaps: map[string]session.Snapshot{
		"42": {UserID: "42", State: session.StateOpen, Connected: true},
	}}
	r := handler.NewRegistry()
	r.RegisterService(NewSessionService(sessions))

	res, rpcErr := call(t, r, "sessions.list", nil)
	if rpcErr != nil {
		t.Fatalf("sessions.list: %v", rpcErr)
	}
	if got := len(res.(ListResult).Sessions); got != 1 {
		t.Errorf("sessions = %d, want 1", got)
	}

	res, rpcErr = call(t, r, "sessions.get", UserParams{UserID: "42"})
	if rpcErr != nil {
		t.Fatalf("sessions.get: %v", rpcErr)
	}
	if !res.(session.Snapshot).Connected {
		t.Error("expected connected snapshot")
	}

	if _, rpcErr = call(t, r, "sessions.get", UserParams{UserID: "7"}); rpcErr == nil || rpcErr.Code != message.SessionNotFound {
		t.Errorf("unknown user error = %v, want SessionNotFound", rpcErr)
	}
	if _, rpcErr = call(t, r, "sessions.get", nil); rpcErr == nil || rpcErr.Code != message.Validation {
		t.Errorf("missing user error = %v, want Validation", rpcErr)
	}

	if _, rpcErr = call(t, r, "sessions.logout", UserParams{UserID: "42"}); rpcErr != nil {
		t.Fatalf("sessions.logout: %v", rpcErr)
	}
	if len(sessions.loggedOut) != 1 || sessions.loggedOut[0] != "42" {
		t.Errorf("loggedOut = %v", sessions.loggedOut)
	}

	sessions.logoutErr = errors.New("disk full")
	if _, rpcErr = call(t, r, "sessions.logout", UserParams{UserID: "42"}); rpcErr == nil || rpcErr.Code != message.InternalError {
		t.Errorf("logout failure = %v, want InternalError", rpcErr)
	}
}

func TestSessionService_EmptyListIsArray(t *testing.T) {
	r := handler.NewRegistry()
	r.RegisterService(NewSessionService(&fakeSessions{}))

	res, _ := call(t, r, "sessions.list", nil)
	data, _ := json.Marshal(res)
	if string(data) != `{"sessions":[]}` {
		t.Errorf("encoded = %s", data)
	}
}

func TestAutoApproveService(t *testing.T) {
	approver := &fakeApprover{enabled: map[string]bool{}, approved: 3}
	r := handler.NewRegistry()
	r.RegisterService(NewAutoApproveService(approver))

	res, rpcErr := call(t, r, "autoapprove.set", map[string]interface{}{"user_id": "42", "enabled": true})
	if rpcErr != nil {
		t.Fatalf("autoapprove.set: %v", rpcErr)
	}
	if !res.(StateResult).Enabled {
		t.Error("expected enabled")
	}

	if _, rpcErr = call(t, r, "autoapprove.set", map[string]interface{}{"user_id": "42"}); rpcErr == nil || rpcErr.Code != message.Validation {
		t.Errorf("missing enabled error = %v, want Validation", rpcErr)
	}

	res, rpcErr = call(t, r, "autoapprove.sweep", UserParams{UserID: "42"})
	if rpcErr != nil {
		t.Fatalf("autoapprove.sweep: %v", rpcErr)
	}
	if res.(SweepResult).Approved != 3 {
		t.Errorf("approved = %d, want 3", res.(SweepResult).Approved)
	}

	approver.sweepErr = domain.NewConfigurationError("session", domain.ErrNoActiveSession)
	if _, rpcErr = call(t, r, "autoapprove.sweep", UserParams{UserID: "42"}); rpcErr == nil || rpcErr.Code != message.NotConnected {
		t.Errorf("sweep without session = %v, want NotConnected", rpcErr)
	}

	approver.sweepErr = domain.NewRemoteError("groups.list", 429, errors.New("rate-overlimit"))
	_, rpcErr = call(t, r, "autoapprove.sweep", UserParams{UserID: "42"})
	if rpcErr == nil || rpcErr.StatusCode() != 429 {
		t.Errorf("remote failure = %v, want status 429", rpcErr)
	}
}

func TestJournalService(t *testing.T) {
	j := &fakeJournal{entries: []journal.Entry{{ID: 1, UserID: "42", Kind: journal.KindApproval, GroupID: "g1"}}}
	r := handler.NewRegistry()
	r.RegisterService(NewJournalService(j))

	res, rpcErr := call(t, r, "journal.recent", RecentParams{UserID: "42", Limit: 5})
	if rpcErr != nil {
		t.Fatalf("journal.recent: %v", rpcErr)
	}
	if len(res.(RecentResult).Entries) != 1 || j.lastLimit != 5 {
		t.Errorf("entries = %v, limit = %d", res, j.lastLimit)
	}

	if _, rpcErr = call(t, r, "journal.recent", RecentParams{UserID: "42", Limit: -1}); rpcErr == nil || rpcErr.Code != message.Validation {
		t.Errorf("negative limit = %v, want Validation", rpcErr)
	}
}

func TestJournalService_Disabled(t *testing.T) {
	r := handler.NewRegistry()
	r.RegisterService(NewJournalService(nil))

	if _, rpcErr := call(t, r, "journal.recent", RecentParams{UserID: "42"}); rpcErr == nil || rpcErr.Code != message.Unavailable {
		t.Errorf("disabled journal = %v, want Unavailable", rpcErr)
	}
}

type fakeStatus struct{}

func (fakeStatus) Version() string     { return "1.2.3" }
func (fakeStatus) SessionCount() int   { return 4 }
func (fakeStatus) ConnectedCount() int { return 2 }
func (fakeStatus) ControlClients() int { return 1 }

func TestStatusService(t *testing.T) {
	r := handler.NewRegistry()
	info := handler.OpenRPCInfo{Title: "grouppilot", Version: "1.2.3"}
	r.RegisterService(NewStatusService(fakeStatus{}, func() *handler.OpenRPCSpec {
		return r.GenerateOpenRPC(info, "ws://localhost/rpc")
	}))

	res, rpcErr := call(t, r, "status.get", nil)
	if rpcErr != nil {
		t.Fatalf("status.get: %v", rpcErr)
	}
	status := res.(StatusResult)
	if status.Version != "1.2.3" || status.Sessions != 4 || status.Connected != 2 {
		t.Errorf("status = %+v", status)
	}

	res, rpcErr = call(t, r, "rpc.discover", nil)
	if rpcErr != nil {
		t.Fatalf("rpc.discover: %v", rpcErr)
	}
	if got := len(res.(*handler.OpenRPCSpec).Methods); got != 2 {
		t.Errorf("discovered methods = %d, want 2", got)
	}
}

type fakeFilters map[string]*hub.FilteredSubscriber

func (f fakeFilters) GetFilteredSubscriber(clientID string) *hub.FilteredSubscriber {
	return f[clientID]
}

func TestSubscriptionService(t *testing.T) {
	filter := hub.NewFilteredSubscriber(testutil.NewMockSubscriber("ctl-1"))
	svc := NewSubscriptionService()
	svc.SetProvider(fakeFilters{"ctl-1": filter})
	r := handler.NewRegistry()
	r.RegisterService(svc)

	ctx := context.WithValue(context.Background(), handler.ClientIDKey, "ctl-1")
	invoke := func(method string, params string) (SubscriptionsResult, *message.Error) {
		res, rpcErr := r.Get(method)(ctx, json.RawMessage(params))
		if rpcErr != nil {
			return SubscriptionsResult{}, rpcErr
		}
		return res.(SubscriptionsResult), nil
	}

	got, rpcErr := invoke("events.subscribe", `{"user_id":"42"}`)
	if rpcErr != nil {
		t.Fatalf("events.subscribe error = %v", rpcErr)
	}
	if !got.Filtering || len(got.Users) != 1 || got.Users[0] != "42" {
		t.Errorf("after subscribe = %+v", got)
	}

	if _, rpcErr := invoke("events.subscribe", `{"user_id":"7"}`); rpcErr != nil {
		t.Fatal(rpcErr)
	}
	got, _ = invoke("events.subscriptions", "")
	if len(got.Users) != 2 || got.Users[0] != "42" || got.Users[1] != "7" {
		t.Errorf("subscriptions = %v, want sorted [42 7]", got.Users)
	}

	got, _ = invoke("events.unsubscribe", `{"user_id":"42"}`)
	if len(got.Users) != 1 || got.Users[0] != "7" {
		t.Errorf("after unsubscribe = %v", got.Users)
	}

	got, _ = invoke("events.subscribe_all", "")
	if got.Filtering || len(got.Users) != 0 {
		t.Errorf("after subscribe_all = %+v", got)
	}

	if _, rpcErr := invoke("events.subscribe", `{}`); rpcErr == nil {
		t.Error("events.subscribe without user_id should fail")
	}
}

func TestSubscriptionService_UnknownClient(t *testing.T) {
	svc := NewSubscriptionService()
	r := handler.NewRegistry()
	r.RegisterService(svc)

	if _, rpcErr := call(t, r, "events.subscriptions", nil); rpcErr == nil {
		t.Error("expected an error without a provider")
	}

	svc.SetProvider(fakeFilters{})
	ctx := context.WithValue(context.Background(), handler.ClientIDKey, "gone")
	if _, rpcErr := r.Get("events.subscriptions")(ctx, nil); rpcErr == nil {
		t.Error("expected an error for a disconnected client")
	}
}
