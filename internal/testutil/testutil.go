// Package testutil provides shared test utilities and fakes for grouppilot tests.
package testutil

import (
	"sync"

	"github.com/brianly1003/grouppilot/internal/domain/events"
	"github.com/brianly1003/grouppilot/internal/domain/ports"
)

// MockSubscriber implements ports.Subscriber for testing.
type MockSubscriber struct {
	id      string
	events  []events.Event
	mu      sync.Mutex
	closed  bool
	sendErr error
	done    chan struct{}
}

// NewMockSubscriber creates a new mock subscriber.
func NewMockSubscriber(id string) *MockSubscriber {
	return &MockSubscriber{
		id:     id,
		events: make([]events.Event, 0),
		done:   make(chan struct{}),
	}
}

// ID returns the subscriber ID.
func (m *MockSubscriber) ID() string {
	return m.id
}

// Send records the event and returns any configured error.
func (m *MockSubscriber) Send(e events.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sendErr != nil {
		return m.sendErr
	}

	m.events = append(m.events, e)
	return nil
}

// Close marks the subscriber as closed.
func (m *MockSubscriber) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.done)
	}
	return nil
}

// Done returns a channel that's closed when the subscriber is done.
func (m *MockSubscriber) Done() <-chan struct{} {
	return m.done
}

// Events returns all received events.
func (m *MockSubscriber) Events() []events.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]events.Event, len(m.events))
	copy(result, m.events)
	return result
}

// EventCount returns the number of received events.
func (m *MockSubscriber) EventCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

// IsClosed returns whether the subscriber was closed.
func (m *MockSubscriber) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// SetSendError configures an error to return on Send.
func (m *MockSubscriber) SetSendError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sendErr = err
}

// Ensure MockSubscriber implements ports.Subscriber.
var _ ports.Subscriber = (*MockSubscriber)(nil)

// MockEventHub implements ports.EventHub for testing.
type MockEventHub struct {
	events      []events.Event
	subscribers []ports.Subscriber
	mu          sync.Mutex
	started     bool
	stopped     bool
}

// NewMockEventHub creates a new mock event hub.
func NewMockEventHub() *MockEventHub {
	return &MockEventHub{
		events:      make([]events.Event, 0),
		subscribers: make([]ports.Subscriber, 0),
	}
}

// Start marks the hub as started.
func (m *MockEventHub) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started = true
	return nil
}

// Stop marks the hub as stopped.
func (m *MockEventHub) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = true
	return nil
}

// Publish records the event and delivers it synchronously to every
// subscriber, which keeps tests deterministic.
func (m *MockEventHub) Publish(e events.Event) {
	m.mu.Lock()
	m.events = append(m.events, e)
	subs := make([]ports.Subscriber, len(m.subscribers))
	copy(subs, m.subscribers)
	m.mu.Unlock()

	for _, sub := range subs {
		_ = sub.Send(e)
	}
}

// Subscribe records the subscriber. A subscriber with the same ID replaces
// the previous one, matching the real hub.
func (m *MockEventHub) Subscribe(sub ports.Subscriber) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, existing := range m.subscribers {
		if existing.ID() == sub.ID() {
			m.subscribers[i] = sub
			return
		}
	}
	m.subscribers = append(m.subscribers, sub)
}

// Unsubscribe removes and closes a subscriber by ID, matching the real hub.
func (m *MockEventHub) Unsubscribe(id string) {
	m.mu.Lock()
	var removed ports.Subscriber
	for i, sub := range m.subscribers {
		if sub.ID() == id {
			removed = sub
			m.subscribers = append(m.subscribers[:i], m.subscribers[i+1:]...)
			break
		}
	}
	m.mu.Unlock()

	if removed != nil {
		_ = removed.Close()
	}
}

// HasSubscriber reports whether a subscriber with the given ID is registered.
func (m *MockEventHub) HasSubscriber(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, sub := range m.subscribers {
		if sub.ID() == id {
			return true
		}
	}
	return false
}

// SubscriberCount returns the number of subscribers.
func (m *MockEventHub) SubscriberCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subscribers)
}

// IsRunning returns true if the hub was started and not stopped.
func (m *MockEventHub) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.started && !m.stopped
}

// PublishedOfType returns the published events of one type.
func (m *MockEventHub) PublishedOfType(t events.EventType) []events.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []events.Event
	for _, e := range m.events {
		if e.Type() == t {
			result = append(result, e)
		}
	}
	return result
}

// Ensure MockEventHub implements ports.EventHub.
var _ ports.EventHub = (*MockEventHub)(nil)
