package gateway

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/brianly1003/grouppilot/internal/domain/ports"
	"github.com/brianly1003/grouppilot/internal/rpc/transport"
	"github.com/rs/zerolog/log"
)

// Factory opens gateway connections. It implements ports.ClientFactory.
type Factory struct {
	url              string
	handshakeTimeout time.Duration
	callTimeout      time.Duration
}

// NewFactory creates a factory dialing url.
func NewFactory(url string, handshakeTimeout, callTimeout time.Duration) *Factory {
	return &Factory{
		url:              url,
		handshakeTimeout: handshakeTimeout,
		callTimeout:      callTimeout,
	}
}

// Open dials the gateway and starts the remote session for userID.
func (f *Factory) Open(ctx context.Context, userID string, credentials []byte) (ports.ProtocolClient, error) {
	header := http.Header{}
	header.Set("X-Grouppilot-User", userID)

	t, err := transport.Dial(ctx, f.url, f.handshakeTimeout, header, transport.WithWriteTimeout(f.callTimeout))
	if err != nil {
		return nil, err
	}

	c := newClient(userID, t, f.callTimeout)
	if err := c.call(ctx, MethodSessionOpen, SessionOpenParams{UserID: userID, Credentials: credentials}, nil); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("open gateway session: %w", err)
	}

	log.Debug().
		Str("user_id", userID).
		Bool("resumed", len(credentials) > 0).
		Msg("gateway session opened")
	return c, nil
}

var _ ports.ClientFactory = (*Factory)(nil)
