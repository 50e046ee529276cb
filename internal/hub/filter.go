package hub

import (
	"sort"

	"github.com/brianly1003/grouppilot/internal/domain/events"
	"github.com/brianly1003/grouppilot/internal/domain/ports"
	"github.com/brianly1003/grouppilot/internal/sync"
)

// FilteredSubscriber forwards only the events of selected chat users. Events
// that belong to no user pass unless the filter is strict. An empty user set
// forwards everything, except on a strict filter which then forwards nothing.
// Control clients change their filter at runtime through events.* methods.
type FilteredSubscriber struct {
	inner  ports.Subscriber
	users  map[string]bool // Set of user IDs to receive events for
	strict bool
	mu     sync.RWMutex
}

// NewFilteredSubscriber creates a new filtered subscriber wrapping the given subscriber.
func NewFilteredSubscriber(inner ports.Subscriber) *FilteredSubscriber {
	return &FilteredSubscriber{
		inner: inner,
		users: make(map[string]bool),
	}
}

// NewUserSubscriber creates a strict filtered subscriber that only forwards
// events owned by userID.
func NewUserSubscriber(inner ports.Subscriber, userID string) *FilteredSubscriber {
	f := NewFilteredSubscriber(inner)
	f.strict = true
	f.users[userID] = true
	return f
}

// ID returns the subscriber's unique identifier.
func (f *FilteredSubscriber) ID() string {
	return f.inner.ID()
}

// Send sends an event to the subscriber if it passes the filter.
func (f *FilteredSubscriber) Send(event events.Event) error {
	if !f.shouldForward(event) {
		return nil // Silently skip events that don't match filter
	}
	return f.inner.Send(event)
}

// Close closes the subscriber.
func (f *FilteredSubscriber) Close() error {
	return f.inner.Close()
}

// Done returns a channel that's closed when the subscriber is done.
func (f *FilteredSubscriber) Done() <-chan struct{} {
	return f.inner.Done()
}

// SubscribeUser starts forwarding userID's events.
func (f *FilteredSubscriber) SubscribeUser(userID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[userID] = true
}

// UnsubscribeUser stops forwarding userID's events.
func (f *FilteredSubscriber) UnsubscribeUser(userID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.users, userID)
}

// SubscribeAll drops the user set and the strict flag so every event passes.
func (f *FilteredSubscriber) SubscribeAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users = make(map[string]bool)
	f.strict = false
}

// GetSubscribedUsers returns the selected user IDs in sorted order.
func (f *FilteredSubscriber) GetSubscribedUsers() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	result := make([]string, 0, len(f.users))
	for id := range f.users {
		result = append(result, id)
	}
	sort.Strings(result)
	return result
}

// IsFiltering reports whether any user is selected.
func (f *FilteredSubscriber) IsFiltering() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.users) > 0
}

// shouldForward determines if an event should be forwarded to the subscriber.
func (f *FilteredSubscriber) shouldForward(event events.Event) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if len(f.users) == 0 {
		return !f.strict
	}

	userID := event.GetUserID()
	if userID == "" {
		return !f.strict
	}

	return f.users[userID]
}
