package methods

import (
	"context"
	"encoding/json"

	"github.com/brianly1003/grouppilot/internal/journal"
	"github.com/brianly1003/grouppilot/internal/rpc/handler"
	"github.com/brianly1003/grouppilot/internal/rpc/message"
)

// JournalReader reads recent journal entries.
type JournalReader interface {
	Recent(ctx context.Context, userID string, limit int) ([]journal.Entry, error)
}

// JournalService provides journal.recent.
type JournalService struct {
	journal JournalReader
}

// NewJournalService creates a journal service. reader may be nil when the
// journal is disabled.
func NewJournalService(reader JournalReader) *JournalService {
	return &JournalService{journal: reader}
}

// RegisterMethods registers journal methods with the registry.
func (s *JournalService) RegisterMethods(r *handler.Registry) {
	r.RegisterWithMeta("journal.recent", s.Recent, handler.MethodMeta{
		Summary: "Recent approvals and renames",
		Params: []handler.OpenRPCParam{
			userIDParam(),
			{Name: "limit", Description: "Maximum entries, newest first", Schema: map[string]interface{}{"type": "integer", "minimum": 1}},
		},
		Result: &handler.OpenRPCResult{Name: "entries", Schema: map[string]interface{}{
			"type":  "array",
			"items": handler.SchemaRef("JournalEntry"),
		}},
		Errors: []string{"Unavailable"},
	})
}

// RecentParams for journal.recent.
type RecentParams struct {
	UserID string `json:"user_id"`
	Limit  int    `json:"limit,omitempty"`
}

// RecentResult for journal.recent.
type RecentResult struct {
	Entries []journal.Entry `json:"entries"`
}

// Recent returns the newest journal entries of a user.
func (s *JournalService) Recent(ctx context.Context, params json.RawMessage) (interface{}, *message.Error) {
	if s.journal == nil {
		return nil, message.NewError(message.Unavailable, "journal is disabled")
	}
	var p RecentParams
	if err := decodeUser(params, &p, func() string { return p.UserID }); err != nil {
		return nil, err
	}
	if p.Limit < 0 {
		return nil, message.ErrValidation("limit", "limit must be positive")
	}
	entries, err := s.journal.Recent(ctx, p.UserID, p.Limit)
	if err != nil {
		return nil, message.ErrInternalError(err.Error())
	}
	if entries == nil {
		entries = []journal.Entry{}
	}
	return RecentResult{Entries: entries}, nil
}
