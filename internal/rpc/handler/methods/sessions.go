package methods

import (
	"context"
	"encoding/json"

	"github.com/brianly1003/grouppilot/internal/rpc/handler"
	"github.com/brianly1003/grouppilot/internal/rpc/message"
	"github.com/brianly1003/grouppilot/internal/session"
	"github.com/rs/zerolog/log"
)

// SessionProvider exposes the session registry to the control API.
type SessionProvider interface {
	Snapshot(userID string) (session.Snapshot, bool)
	Snapshots() []session.Snapshot
	Logout(ctx context.Context, userID string) error
}

// SessionService provides sessions.* methods.
type SessionService struct {
	sessions SessionProvider
}

// NewSessionService creates a new session service.
func NewSessionService(sessions SessionProvider) *SessionService {
	return &SessionService{sessions: sessions}
}

// RegisterMethods registers all session methods with the registry.
func (s *SessionService) RegisterMethods(r *handler.Registry) {
	r.RegisterWithMeta("sessions.list", s.List, handler.MethodMeta{
		Summary: "List sessions",
		Result: &handler.OpenRPCResult{Name: "sessions", Schema: map[string]interface{}{
			"type":  "array",
			"items": handler.SchemaRef("SessionSnapshot"),
		}},
	})
	r.RegisterWithMeta("sessions.get", s.Get, handler.MethodMeta{
		Summary: "Get one session",
		Params:  []handler.OpenRPCParam{userIDParam()},
		Result:  &handler.OpenRPCResult{Name: "session", Schema: handler.SchemaRef("SessionSnapshot")},
		Errors:  []string{"SessionNotFound"},
	})
	r.RegisterWithMeta("sessions.logout", s.Logout, handler.MethodMeta{
		Summary:     "Log a session out",
		Description: "Logs the device out remotely when connected, then deletes the stored credentials and settings.",
		Params:      []handler.OpenRPCParam{userIDParam()},
		Errors:      []string{"SessionNotFound"},
	})
}

// ListResult for sessions.list.
type ListResult struct {
	Sessions []session.Snapshot `json:"sessions"`
}

// List returns every known session.
func (s *SessionService) List(ctx context.Context, params json.RawMessage) (interface{}, *message.Error) {
	snaps := s.sessions.Snapshots()
	if snaps == nil {
		snaps = []session.Snapshot{}
	}
	return ListResult{Sessions: snaps}, nil
}

// Get returns one session.
func (s *SessionService) Get(ctx context.Context, params json.RawMessage) (interface{}, *message.Error) {
	var p UserParams
	if err := decodeUser(params, &p, func() string { return p.UserID }); err != nil {
		return nil, err
	}
	snap, ok := s.sessions.Snapshot(p.UserID)
	if !ok {
		return nil, message.ErrSessionNotFound(p.UserID)
	}
	return snap, nil
}

// LogoutResult for sessions.logout.
type LogoutResult struct {
	UserID    string `json:"user_id"`
	LoggedOut bool   `json:"logged_out"`
}

// Logout logs a session out.
func (s *SessionService) Logout(ctx context.Context, params json.RawMessage) (interface{}, *message.Error) {
	var p UserParams
	if err := decodeUser(params, &p, func() string { return p.UserID }); err != nil {
		return nil, err
	}
	if _, ok := s.sessions.Snapshot(p.UserID); !ok {
		return nil, message.ErrSessionNotFound(p.UserID)
	}
	if err := s.sessions.Logout(ctx, p.UserID); err != nil {
		log.Warn().Err(err).Str("user_id", p.UserID).Str("client_id", handler.ClientID(ctx)).Msg("control logout failed")
		return nil, toRPCError(err)
	}
	log.Info().Str("user_id", p.UserID).Str("client_id", handler.ClientID(ctx)).Msg("session logged out from control api")
	return LogoutResult{UserID: p.UserID, LoggedOut: true}, nil
}
