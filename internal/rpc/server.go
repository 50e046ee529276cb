// Package rpc serves the control API: JSON-RPC 2.0 requests from operator
// tools, with hub events pushed back as notifications.
package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"io"

	"github.com/brianly1003/grouppilot/internal/domain/events"
	"github.com/brianly1003/grouppilot/internal/domain/ports"
	"github.com/brianly1003/grouppilot/internal/hub"
	"github.com/brianly1003/grouppilot/internal/rpc/handler"
	"github.com/brianly1003/grouppilot/internal/rpc/message"
	"github.com/brianly1003/grouppilot/internal/rpc/transport"
	"github.com/brianly1003/grouppilot/internal/sync"
	"github.com/rs/zerolog/log"
)

// EventMethodPrefix prefixes the notification method of every pushed event.
const EventMethodPrefix = "event."

const sendBuffer = 256

var (
	errClientClosed = errors.New("client closed")
	errBufferFull   = errors.New("send buffer full")
)

// Server tracks connected control clients and their event filters.
type Server struct {
	dispatcher *handler.Dispatcher
	hub        ports.EventHub

	clients   map[string]*Client
	filters   map[string]*hub.FilteredSubscriber
	clientsMu sync.RWMutex
}

// NewServer returns a control server dispatching to dispatcher. bus may be nil to
// disable event push.
func NewServer(dispatcher *handler.Dispatcher, bus ports.EventHub) *Server {
	return &Server{
		dispatcher: dispatcher,
		hub:        bus,
		clients:    make(map[string]*Client),
		filters:    make(map[string]*hub.FilteredSubscriber),
	}
}

// ServeTransport handles a single transport connection and blocks until it
// closes. When userFilter is set, only that user's events are pushed until
// the client changes its filter with the events.* methods.
func (s *Server) ServeTransport(ctx context.Context, t transport.Transport, userFilter string) error {
	client := NewClient(t, s.dispatcher)

	var filtered *hub.FilteredSubscriber
	if s.hub != nil {
		if userFilter != "" {
			filtered = hub.NewUserSubscriber(NewEventAdapter(client), userFilter)
		} else {
			filtered = hub.NewFilteredSubscriber(NewEventAdapter(client))
		}
	}

	s.clientsMu.Lock()
	s.clients[t.ID()] = client
	if filtered != nil {
		s.filters[t.ID()] = filtered
	}
	s.clientsMu.Unlock()

	if filtered != nil {
		s.hub.Subscribe(filtered)
	}

	log.Debug().
		Str("client_id", t.ID()).
		Str("user_filter", userFilter).
		Msg("control client connected")

	err := client.Serve(ctx)

	s.clientsMu.Lock()
	delete(s.clients, t.ID())
	delete(s.filters, t.ID())
	s.clientsMu.Unlock()

	if s.hub != nil {
		s.hub.Unsubscribe(t.ID())
	}
	_ = client.Close()

	log.Debug().
		Str("client_id", t.ID()).
		Err(err).
		Msg("control client disconnected")

	return err
}

// Stop closes every connected client.
func (s *Server) Stop() error {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()

	for _, client := range s.clients {
		_ = client.Close()
	}
	s.clients = make(map[string]*Client)
	s.filters = make(map[string]*hub.FilteredSubscriber)
	return nil
}

// GetFilteredSubscriber returns the event filter of a connected client, or
// nil when the client is gone or event push is disabled.
func (s *Server) GetFilteredSubscriber(clientID string) *hub.FilteredSubscriber {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return s.filters[clientID]
}

// ClientCount returns the number of connected clients.
func (s *Server) ClientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}

// Client is one connected control client.
type Client struct {
	transport  transport.Transport
	dispatcher *handler.Dispatcher

	send chan []byte

	done   chan struct{}
	mu     sync.Mutex
	closed bool
}

// NewClient wraps t as a control client.
func NewClient(t transport.Transport, dispatcher *handler.Dispatcher) *Client {
	return &Client{
		transport:  t,
		dispatcher: dispatcher,
		send:       make(chan []byte, sendBuffer),
		done:       make(chan struct{}),
	}
}

// ID returns the client's unique identifier.
func (c *Client) ID() string {
	return c.transport.ID()
}

// Serve runs the client's message loop until it disconnects.
func (c *Client) Serve(ctx context.Context) error {
	ctx = context.WithValue(ctx, handler.ClientIDKey, c.ID())
	go c.writeLoop(ctx)
	return c.readLoop(ctx)
}

func (c *Client) readLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.done:
			return nil
		default:
		}

		data, err := c.transport.Read(ctx)
		if err != nil {
			if errors.Is(err, transport.ErrTransportClosed) || errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		go c.handleRequest(ctx, data)
	}
}

func (c *Client) handleRequest(ctx context.Context, data []byte) {
	response, err := c.dispatcher.HandleMessage(ctx, data)
	if err != nil {
		log.Warn().
			Str("client_id", c.ID()).
			Err(err).
			Msg("failed to handle message")
		return
	}
	// Notifications have no response.
	if len(response) == 0 {
		return
	}
	if err := c.Send(response); err != nil {
		log.Warn().
			Str("client_id", c.ID()).
			Err(err).
			Msg("failed to send response")
	}
}

func (c *Client) writeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case data := <-c.send:
			if err := c.transport.Write(ctx, data); err != nil {
				log.Warn().
					Str("client_id", c.ID()).
					Err(err).
					Msg("write error")
				return
			}
		}
	}
}

// Send queues msg on the client's outbound buffer.
func (c *Client) Send(data []byte) error {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return errClientClosed
	}

	select {
	case c.send <- data:
		return nil
	default:
		return errBufferFull
	}
}

// SendNotification sends a JSON-RPC notification.
func (c *Client) SendNotification(method string, params interface{}) error {
	notification, err := message.NewNotification(method, params)
	if err != nil {
		return err
	}
	data, err := json.Marshal(notification)
	if err != nil {
		return err
	}
	return c.Send(data)
}

// SendEvent pushes event as an "event.<type>" notification whose params
// are the encoded event.
func (c *Client) SendEvent(event events.Event) error {
	data, err := event.ToJSON()
	if err != nil {
		return err
	}
	return c.SendNotification(EventMethodPrefix+string(event.Type()), json.RawMessage(data))
}

// Close drops the client and its transport.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.done)
	c.mu.Unlock()

	return c.transport.Close()
}

// Done returns a channel that's closed when the client is done.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// EventAdapter lets a Client subscribe to the event hub.
type EventAdapter struct {
	client *Client
}

// NewEventAdapter creates a new event adapter.
func NewEventAdapter(client *Client) *EventAdapter {
	return &EventAdapter{client: client}
}

// ID implements ports.Subscriber.
func (a *EventAdapter) ID() string {
	return a.client.ID()
}

// Send implements ports.Subscriber.
func (a *EventAdapter) Send(event events.Event) error {
	return a.client.SendEvent(event)
}

// Close implements ports.Subscriber.
func (a *EventAdapter) Close() error {
	return a.client.Close()
}

// Done implements ports.Subscriber.
func (a *EventAdapter) Done() <-chan struct{} {
	return a.client.Done()
}

var _ ports.Subscriber = (*EventAdapter)(nil)
