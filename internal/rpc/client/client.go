// Package client is a JSON-RPC 2.0 client over a transport. Responses are
// routed to their callers; notifications go to a handler.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/brianly1003/grouppilot/internal/rpc/message"
	"github.com/brianly1003/grouppilot/internal/rpc/transport"
	"github.com/brianly1003/grouppilot/internal/sync"
	"github.com/rs/zerolog/log"
)

// ErrClosed is returned by calls on a closed client.
var ErrClosed = errors.New("rpc connection closed")

// NotificationHandler receives server notifications. It runs on the read
// loop, so a slow handler delays every response behind it.
type NotificationHandler func(method string, params json.RawMessage)

// Client is a JSON-RPC 2.0 client.
type Client struct {
	t        transport.Transport
	onNotify NotificationHandler

	nextID    atomic.Int64
	pending   map[int64]chan *message.Response
	pendingMu sync.Mutex

	closeCh  chan struct{}
	closeErr error
}

// New starts a client on t. onNotify may be nil.
func New(t transport.Transport, onNotify NotificationHandler) *Client {
	c := &Client{
		t:        t,
		onNotify: onNotify,
		pending:  make(map[int64]chan *message.Response),
		closeCh:  make(chan struct{}),
	}

	// Start reading responses in background
	go c.readLoop()

	return c
}

// Call makes a JSON-RPC call and decodes the result into result, which may
// be nil. A JSON-RPC error response is returned as *message.Error.
func (c *Client) Call(ctx context.Context, method string, params, result interface{}) error {
	id := c.nextID.Add(1)

	req, err := message.NewRequest(message.NumberID(id), method, params)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	respCh := make(chan *message.Response, 1)
	c.pendingMu.Lock()
	select {
	case <-c.closeCh:
		c.pendingMu.Unlock()
		return ErrClosed
	default:
	}
	c.pending[id] = respCh
	c.pendingMu.Unlock()

	if err := c.t.Write(ctx, data); err != nil {
		c.forget(id)
		return fmt.Errorf("failed to send request: %w", err)
	}

	select {
	case resp, ok := <-respCh:
		if !ok {
			return ErrClosed
		}
		if resp.Error != nil {
			return resp.Error
		}
		if result != nil && len(resp.Result) > 0 {
			if err := json.Unmarshal(resp.Result, result); err != nil {
				return fmt.Errorf("failed to decode %s result: %w", method, err)
			}
		}
		return nil
	case <-ctx.Done():
		c.forget(id)
		return ctx.Err()
	}
}

func (c *Client) forget(id int64) {
	c.pendingMu.Lock()
	delete(c.pending, id)
	c.pendingMu.Unlock()
}

// readLoop reads messages until the transport fails or closes.
func (c *Client) readLoop() {
	var readErr error
	defer func() {
		c.pendingMu.Lock()
		c.closeErr = readErr
		close(c.closeCh)
		for id, ch := range c.pending {
			close(ch)
			delete(c.pending, id)
		}
		c.pendingMu.Unlock()
	}()

	for {
		data, err := c.t.Read(context.Background())
		if err != nil {
			readErr = err
			return
		}

		env, err := message.ParseEnvelope(data)
		if err != nil {
			log.Debug().Err(err).Msg("ignoring malformed rpc message")
			continue
		}

		switch {
		case env.IsNotification():
			if c.onNotify != nil {
				c.onNotify(env.Method, env.Params)
			}
		case env.IsResponse():
			id, ok := env.ID.Int64()
			if !ok {
				continue
			}
			c.pendingMu.Lock()
			ch, ok := c.pending[id]
			delete(c.pending, id)
			c.pendingMu.Unlock()
			if ok {
				ch <- env.Response()
			}
		}
	}
}

// Done is closed once the connection is gone.
func (c *Client) Done() <-chan struct{} {
	return c.closeCh
}

// Err returns the error that ended the connection, after Done is closed.
func (c *Client) Err() error {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	return c.closeErr
}

// Close closes the transport.
func (c *Client) Close() error {
	return c.t.Close()
}
