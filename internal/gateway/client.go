// Package gateway implements the protocol client over the messaging
// gateway sidecar. Each session holds its own WebSocket connection; calls
// are JSON-RPC 2.0 requests and protocol events arrive as notifications.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/brianly1003/grouppilot/internal/domain"
	"github.com/brianly1003/grouppilot/internal/domain/events"
	"github.com/brianly1003/grouppilot/internal/domain/ports"
	"github.com/brianly1003/grouppilot/internal/rpc/client"
	"github.com/brianly1003/grouppilot/internal/rpc/message"
	"github.com/brianly1003/grouppilot/internal/rpc/transport"
	"github.com/brianly1003/grouppilot/internal/sync"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const eventBuffer = 256

// Client is a ports.ProtocolClient backed by one gateway connection.
type Client struct {
	userID      string
	rpc         *client.Client
	callTimeout time.Duration
	logger      zerolog.Logger

	events    chan events.Event
	closing   chan struct{}
	closeOnce sync.Once
}

func newClient(userID string, t transport.Transport, callTimeout time.Duration) *Client {
	c := &Client{
		userID:      userID,
		callTimeout: callTimeout,
		logger:      log.With().Str("user_id", userID).Str("transport_id", t.ID()).Logger(),
		events:      make(chan events.Event, eventBuffer),
		closing:     make(chan struct{}),
	}
	c.rpc = client.New(t, c.onNotification)
	go c.watch()
	return c
}

// watch owns the events channel once the read loop has ended: it reports an
// unexpected disconnect and closes the channel.
func (c *Client) watch() {
	<-c.rpc.Done()

	select {
	case <-c.closing:
	default:
		reason := "gateway connection lost"
		if err := c.rpc.Err(); err != nil {
			reason = err.Error()
		}
		c.logger.Warn().Str("reason", reason).Msg("gateway connection ended")
		c.emit(events.NewConnectionClosedEvent(0, reason))
	}
	close(c.events)
}

func (c *Client) emit(ev events.Event) {
	select {
	case c.events <- ev:
	case <-c.closing:
	}
}

func (c *Client) onNotification(method string, params json.RawMessage) {
	ev, err := decodeNotification(method, params)
	if err != nil {
		c.logger.Warn().Err(err).Str("method", method).Msg("malformed gateway notification")
		return
	}
	if ev == nil {
		c.logger.Debug().Str("method", method).Msg("ignoring gateway notification")
		return
	}
	c.emit(ev)
}

func decodeNotification(method string, params json.RawMessage) (events.Event, error) {
	switch method {
	case NotifyConnectionUpdate:
		var p ConnectionUpdate
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, err
		}
		switch p.Connection {
		case ConnectionOpen:
			return events.NewConnectionOpenedEvent(), nil
		case ConnectionClose:
			return events.NewConnectionClosedEvent(p.Code, p.Reason), nil
		}
		return nil, nil

	case NotifyCredsUpdate:
		var p CredsUpdate
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, err
		}
		return events.NewCredentialsUpdatedEvent(p.Credentials), nil

	case NotifyQR:
		var p QRUpdate
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, err
		}
		return events.NewQRIssuedEvent(p.Code), nil

	case NotifyJoinRequest:
		var p JoinRequest
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, err
		}
		return events.NewJoinRequestEvent(p.GroupID, p.ParticipantID), nil

	case NotifyParticipantsUpdate:
		var p ParticipantsUpdate
		if err := json.Unmarshal(params, &p); err != nil {
			return nil, err
		}
		return events.NewMembershipChangedEvent(p.GroupID, p.Participants, p.Action), nil
	}
	return nil, nil
}

// call runs one RPC with the call timeout and maps failures to
// domain.RemoteError.
func (c *Client) call(ctx context.Context, method string, params, result interface{}) error {
	if c.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.callTimeout)
		defer cancel()
	}

	err := c.rpc.Call(ctx, method, params, result)
	if err == nil {
		return nil
	}

	var rpcErr *message.Error
	switch {
	case errors.As(err, &rpcErr):
		return domain.NewRemoteError(method, rpcErr.StatusCode(), errors.New(rpcErr.Message))
	case errors.Is(err, context.DeadlineExceeded):
		return domain.NewRemoteError(method, 408, errors.New("request timed out"))
	case errors.Is(err, client.ErrClosed):
		return domain.NewRemoteError(method, 503, err)
	}
	return domain.NewRemoteError(method, 0, err)
}

// Events implements ports.ProtocolClient.
func (c *Client) Events() <-chan events.Event {
	return c.events
}

// RequestPairingCode implements ports.ProtocolClient.
func (c *Client) RequestPairingCode(ctx context.Context, phone string) (string, error) {
	var result PairingResult
	if err := c.call(ctx, MethodPairingRequestCode, PairingParams{Phone: phone}, &result); err != nil {
		return "", err
	}
	return result.Code, nil
}

// Self implements ports.ProtocolClient.
func (c *Client) Self(ctx context.Context) (ports.SelfIdentity, error) {
	var self ports.SelfIdentity
	err := c.call(ctx, MethodAccountSelf, nil, &self)
	return self, err
}

// ListGroups implements ports.ProtocolClient.
func (c *Client) ListGroups(ctx context.Context) ([]ports.Group, error) {
	var result GroupsResult
	if err := c.call(ctx, MethodGroupsList, nil, &result); err != nil {
		return nil, err
	}
	return result.Groups, nil
}

// FetchPendingJoinRequests implements ports.ProtocolClient.
func (c *Client) FetchPendingJoinRequests(ctx context.Context, groupID string) ([]string, error) {
	var result PendingResult
	if err := c.call(ctx, MethodGroupsPending, GroupParams{GroupID: groupID}, &result); err != nil {
		return nil, err
	}
	return result.Participants, nil
}

// ApproveJoinRequest implements ports.ProtocolClient.
func (c *Client) ApproveJoinRequest(ctx context.Context, groupID, participantID string) error {
	return c.call(ctx, MethodGroupsApprove, ApproveParams{GroupID: groupID, ParticipantID: participantID}, nil)
}

// RenameGroup implements ports.ProtocolClient.
func (c *Client) RenameGroup(ctx context.Context, groupID, newName string) error {
	return c.call(ctx, MethodGroupsRename, RenameParams{GroupID: groupID, Name: newName}, nil)
}

// Logout implements ports.ProtocolClient.
func (c *Client) Logout(ctx context.Context) error {
	return c.call(ctx, MethodSessionLogout, nil, nil)
}

// Close implements ports.ProtocolClient. The events channel is closed once
// the connection is down.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closing)
		err = c.rpc.Close()
	})
	return err
}

var _ ports.ProtocolClient = (*Client)(nil)
