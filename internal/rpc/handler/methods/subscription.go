package methods

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/brianly1003/grouppilot/internal/hub"
	"github.com/brianly1003/grouppilot/internal/rpc/handler"
	"github.com/brianly1003/grouppilot/internal/rpc/message"
)

// FilteredSubscriberProvider looks up the event filter of a control client.
type FilteredSubscriberProvider interface {
	GetFilteredSubscriber(clientID string) *hub.FilteredSubscriber
}

// SubscriptionService lets a control client choose whose events it receives.
type SubscriptionService struct {
	provider FilteredSubscriberProvider
}

// NewSubscriptionService creates a subscription service.
func NewSubscriptionService() *SubscriptionService {
	return &SubscriptionService{}
}

// SetProvider sets the filter provider. The control server is created after
// the registry, so it is attached late.
func (s *SubscriptionService) SetProvider(provider FilteredSubscriberProvider) {
	s.provider = provider
}

// RegisterMethods registers the events.* methods.
func (s *SubscriptionService) RegisterMethods(r *handler.Registry) {
	object := &handler.OpenRPCResult{Name: "subscriptions", Schema: map[string]interface{}{"type": "object"}}

	r.RegisterWithMeta("events.subscribe", s.Subscribe, handler.MethodMeta{
		Summary:     "Receive events of a user",
		Description: "Adds a user to the client's filter. Once a filter is set only that user's events and global events are pushed.",
		Params:      []handler.OpenRPCParam{userIDParam()},
		Result:      object,
	})
	r.RegisterWithMeta("events.unsubscribe", s.Unsubscribe, handler.MethodMeta{
		Summary: "Stop receiving events of a user",
		Params:  []handler.OpenRPCParam{userIDParam()},
		Result:  object,
	})
	r.RegisterWithMeta("events.subscriptions", s.Subscriptions, handler.MethodMeta{
		Summary:     "List filtered users",
		Description: "An empty list means every event is pushed.",
		Result:      object,
	})
	r.RegisterWithMeta("events.subscribe_all", s.SubscribeAll, handler.MethodMeta{
		Summary: "Receive every event",
		Result:  object,
	})
}

// SubscriptionsResult describes the filter of the calling client.
type SubscriptionsResult struct {
	Users     []string `json:"users"`
	Filtering bool     `json:"filtering"`
}

func (s *SubscriptionService) filterFor(ctx context.Context) (*hub.FilteredSubscriber, *message.Error) {
	if s.provider == nil {
		return nil, message.ErrInternalError("event push is disabled")
	}
	clientID, _ := ctx.Value(handler.ClientIDKey).(string)
	if clientID == "" {
		return nil, message.ErrInternalError("client id missing from context")
	}
	filtered := s.provider.GetFilteredSubscriber(clientID)
	if filtered == nil {
		return nil, message.ErrInternalError("client not found")
	}
	return filtered, nil
}

func subscriptionsOf(f *hub.FilteredSubscriber) SubscriptionsResult {
	return SubscriptionsResult{Users: f.GetSubscribedUsers(), Filtering: f.IsFiltering()}
}

// Subscribe adds a user to the caller's filter.
func (s *SubscriptionService) Subscribe(ctx context.Context, params json.RawMessage) (interface{}, *message.Error) {
	var p UserParams
	if err := decodeUser(params, &p, func() string { return p.UserID }); err != nil {
		return nil, err
	}
	filtered, rpcErr := s.filterFor(ctx)
	if rpcErr != nil {
		return nil, rpcErr
	}
	filtered.SubscribeUser(strings.TrimSpace(p.UserID))
	return subscriptionsOf(filtered), nil
}

// Unsubscribe removes a user from the caller's filter.
func (s *SubscriptionService) Unsubscribe(ctx context.Context, params json.RawMessage) (interface{}, *message.Error) {
	var p UserParams
	if err := decodeUser(params, &p, func() string { return p.UserID }); err != nil {
		return nil, err
	}
	filtered, rpcErr := s.filterFor(ctx)
	if rpcErr != nil {
		return nil, rpcErr
	}
	filtered.UnsubscribeUser(strings.TrimSpace(p.UserID))
	return subscriptionsOf(filtered), nil
}

// Subscriptions returns the caller's filter.
func (s *SubscriptionService) Subscriptions(ctx context.Context, _ json.RawMessage) (interface{}, *message.Error) {
	filtered, rpcErr := s.filterFor(ctx)
	if rpcErr != nil {
		return nil, rpcErr
	}
	return subscriptionsOf(filtered), nil
}

// SubscribeAll clears the caller's filter.
func (s *SubscriptionService) SubscribeAll(ctx context.Context, _ json.RawMessage) (interface{}, *message.Error) {
	filtered, rpcErr := s.filterFor(ctx)
	if rpcErr != nil {
		return nil, rpcErr
	}
	filtered.SubscribeAll()
	return subscriptionsOf(filtered), nil
}
