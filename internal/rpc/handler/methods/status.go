package methods

import (
	"context"
	"encoding/json"
	"time"

	"github.com/brianly1003/grouppilot/internal/rpc/handler"
	"github.com/brianly1003/grouppilot/internal/rpc/message"
)

// StatusProvider provides daemon status information.
type StatusProvider interface {
	// Version returns the build version.
	Version() string

	// SessionCount returns the number of known sessions.
	SessionCount() int

	// ConnectedCount returns the number of sessions that are open.
	ConnectedCount() int

	// ControlClients returns the number of connected control clients.
	ControlClients() int
}

// StatusService provides status-related RPC methods.
type StatusService struct {
	provider  StatusProvider
	startTime time.Time
	spec      func() *handler.OpenRPCSpec
}

// NewStatusService creates a new status service. spec produces the OpenRPC
// document served by rpc.discover.
func NewStatusService(provider StatusProvider, spec func() *handler.OpenRPCSpec) *StatusService {
	return &StatusService{
		provider:  provider,
		startTime: time.Now(),
		spec:      spec,
	}
}

// RegisterMethods registers all status methods with the registry.
func (s *StatusService) RegisterMethods(r *handler.Registry) {
	r.RegisterWithMeta("status.get", s.GetStatus, handler.MethodMeta{
		Summary:     "Get daemon status",
		Description: "Returns the version, uptime and session counts.",
		Result:      &handler.OpenRPCResult{Name: "status", Schema: map[string]interface{}{"type": "object"}},
	})
	if s.spec != nil {
		r.RegisterWithMeta("rpc.discover", s.Discover, handler.MethodMeta{
			Summary: "OpenRPC document for this API",
			Result:  &handler.OpenRPCResult{Name: "openrpc", Schema: map[string]interface{}{"type": "object"}},
		})
	}
}

// StatusResult for status.get.
type StatusResult struct {
	Version        string `json:"version"`
	UptimeSeconds  int64  `json:"uptime_seconds"`
	Sessions       int    `json:"sessions"`
	Connected      int    `json:"connected"`
	ControlClients int    `json:"control_clients"`
}

// GetStatus returns the current daemon status.
func (s *StatusService) GetStatus(ctx context.Context, params json.RawMessage) (interface{}, *message.Error) {
	if s.provider == nil {
		return nil, message.ErrInternalError("Status provider not available")
	}
	return StatusResult{
		Version:        s.provider.Version(),
		UptimeSeconds:  int64(time.Since(s.startTime).Seconds()),
		Sessions:       s.provider.SessionCount(),
		Connected:      s.provider.ConnectedCount(),
		ControlClients: s.provider.ControlClients(),
	}, nil
}

// Discover returns the OpenRPC document.
func (s *StatusService) Discover(ctx context.Context, params json.RawMessage) (interface{}, *message.Error) {
	return s.spec(), nil
}
