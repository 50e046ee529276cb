// Package transport carries JSON-RPC messages between grouppilot and its
// peers: the protocol gateway it dials and the control-API clients that
// dial it.
package transport

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// Common transport errors.
var (
	ErrTransportClosed = errors.New("transport is closed")
)

// Transport represents a bidirectional message channel.
type Transport interface {
	// ID returns a unique identifier for this transport instance.
	ID() string

	// Read blocks until the next message arrives. It returns io.EOF when
	// the peer closed the connection cleanly.
	Read(ctx context.Context) ([]byte, error)

	// Write sends one message.
	Write(ctx context.Context, data []byte) error

	// Close closes the transport. It is safe to call more than once.
	Close() error

	// Done is closed when the transport is closed.
	Done() <-chan struct{}
}

// Info contains metadata about a transport connection.
type Info struct {
	Type       string
	RemoteAddr string
	LocalAddr  string
}

// GenerateID generates a unique transport ID.
func GenerateID() string {
	return uuid.New().String()
}
