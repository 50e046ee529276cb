package methods

import (
	"context"
	"encoding/json"

	"github.com/brianly1003/grouppilot/internal/rpc/handler"
	"github.com/brianly1003/grouppilot/internal/rpc/message"
)

// AutoApprover is the auto-approval controller as seen by the control API.
type AutoApprover interface {
	SetEnabled(ctx context.Context, userID string, enabled bool) error
	Enabled(userID string) bool
	ReconcilePending(ctx context.Context, userID string) (int, error)
}

// AutoApproveService provides autoapprove.* methods.
type AutoApproveService struct {
	controller AutoApprover
}

// NewAutoApproveService creates a new auto-approval service.
func NewAutoApproveService(controller AutoApprover) *AutoApproveService {
	return &AutoApproveService{controller: controller}
}

// RegisterMethods registers all auto-approval methods with the registry.
func (s *AutoApproveService) RegisterMethods(r *handler.Registry) {
	r.RegisterWithMeta("autoapprove.set", s.Set, handler.MethodMeta{
		Summary:     "Enable or disable auto-approval",
		Description: "Persists the setting. Enabling it on a connected session schedules one reconciliation sweep.",
		Params: []handler.OpenRPCParam{
			userIDParam(),
			{Name: "enabled", Required: true, Schema: map[string]interface{}{"type": "boolean"}},
		},
		Result: &handler.OpenRPCResult{Name: "state", Schema: map[string]interface{}{"type": "object"}},
	})
	r.RegisterWithMeta("autoapprove.sweep", s.Sweep, handler.MethodMeta{
		Summary:     "Run a reconciliation sweep",
		Description: "Approves every pending join request in groups the account administers. Returns the number approved.",
		Params:      []handler.OpenRPCParam{userIDParam()},
		Result:      &handler.OpenRPCResult{Name: "sweep", Schema: map[string]interface{}{"type": "object"}},
		Errors:      []string{"NotConnected"},
	})
}

// SetParams for autoapprove.set.
type SetParams struct {
	UserID  string `json:"user_id"`
	Enabled *bool  `json:"enabled"`
}

// StateResult reports the auto-approval setting.
type StateResult struct {
	UserID  string `json:"user_id"`
	Enabled bool   `json:"enabled"`
}

// Set toggles auto-approval.
func (s *AutoApproveService) Set(ctx context.Context, params json.RawMessage) (interface{}, *message.Error) {
	var p SetParams
	if err := decodeUser(params, &p, func() string { return p.UserID }); err != nil {
		return nil, err
	}
	if p.Enabled == nil {
		return nil, message.ErrValidation("enabled", "enabled is required")
	}
	if err := s.controller.SetEnabled(ctx, p.UserID, *p.Enabled); err != nil {
		return nil, toRPCError(err)
	}
	return StateResult{UserID: p.UserID, Enabled: s.controller.Enabled(p.UserID)}, nil
}

// SweepResult for autoapprove.sweep.
type SweepResult struct {
	UserID   string `json:"user_id"`
	Approved int    `json:"approved"`
}

// Sweep approves all pending requests now.
func (s *AutoApproveService) Sweep(ctx context.Context, params json.RawMessage) (interface{}, *message.Error) {
	var p UserParams
	if err := decodeUser(params, &p, func() string { return p.UserID }); err != nil {
		return nil, err
	}
	n, err := s.controller.ReconcilePending(ctx, p.UserID)
	if err != nil {
		return nil, toRPCError(err)
	}
	return SweepResult{UserID: p.UserID, Approved: n}, nil
}
