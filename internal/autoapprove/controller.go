// Package autoapprove approves group join requests on behalf of users who
// enabled it. Requests are approved as their events arrive, and a
// reconciliation sweep after every (re)connect and every enable catches the
// requests whose events were missed.
package autoapprove

import (
	"context"
	"time"

	"github.com/brianly1003/grouppilot/internal/domain/events"
	"github.com/brianly1003/grouppilot/internal/domain/ports"
	"github.com/brianly1003/grouppilot/internal/hub"
	"github.com/brianly1003/grouppilot/internal/identity"
	"github.com/brianly1003/grouppilot/internal/session"
	"github.com/brianly1003/grouppilot/internal/sync"
	"github.com/rs/zerolog/log"
)

// Approval sources recorded in events and the journal.
const (
	SourceEvent = "event"
	SourceSweep = "sweep"
)

// subscriberBuffer bounds the join requests queued for one user. A full
// queue makes the hub drop the subscriber, so it is sized for bursts.
const subscriberBuffer = 256

// Sessions is the part of the session manager the controller needs.
type Sessions interface {
	Session(userID string) (*session.UserSession, bool)
	ActiveClient(userID string) (ports.ProtocolClient, error)
	AutoApproveEnabled(userID string) bool
	SetAutoApprove(userID string, enabled bool) (bool, error)
}

// Recorder persists approval outcomes.
type Recorder interface {
	RecordApproval(ctx context.Context, userID string, p events.ApprovalPayload) error
}

// Options holds the controller timings.
type Options struct {
	// SettleDelay is the wait between a connection opening and the sweep.
	SettleDelay time.Duration
	// ApprovalDelay paces consecutive approvals of one sweep.
	ApprovalDelay time.Duration
	// ToggleSweepDelay is the wait between enabling and the sweep.
	ToggleSweepDelay time.Duration
}

// DefaultOptions returns the production timings.
func DefaultOptions() Options {
	return Options{
		SettleDelay:      5 * time.Second,
		ApprovalDelay:    1 * time.Second,
		ToggleSweepDelay: 1 * time.Second,
	}
}

// Controller approves join requests for every session.
type Controller struct {
	sessions Sessions
	bus      ports.EventHub
	recorder Recorder
	opts     Options

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a controller. recorder may be nil.
func New(sessions Sessions, bus ports.EventHub, recorder Recorder, opts Options) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		sessions: sessions,
		bus:      bus,
		recorder: recorder,
		opts:     opts,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// SubscriberID returns the hub subscriber ID used for userID.
func SubscriberID(userID string) string {
	return "autoapprove:" + userID
}

// SessionOpened installs the subscription and schedules a sweep once the
// connection has settled.
func (c *Controller) SessionOpened(_ context.Context, userID string) {
	c.Install(userID)
	c.scheduleSweep(userID, c.opts.SettleDelay)
}

// SessionRetired drops the subscription.
func (c *Controller) SessionRetired(userID string) {
	c.Uninstall(userID)
}

// Install subscribes to userID's join-request events unless the
// subscription is already installed. It reports whether it subscribed.
func (c *Controller) Install(userID string) bool {
	s, ok := c.sessions.Session(userID)
	if !ok || !s.MarkAutoApproveInstalled() {
		return false
	}

	inner := hub.NewChannelSubscriber(SubscriberID(userID), subscriberBuffer)
	c.bus.Subscribe(hub.NewUserSubscriber(inner, userID))

	c.wg.Add(1)
	go c.consume(userID, inner)

	log.Debug().Str("user_id", userID).Msg("auto-approval subscription installed")
	return true
}

// Uninstall removes userID's subscription and resets the guard.
func (c *Controller) Uninstall(userID string) {
	if s, ok := c.sessions.Session(userID); ok {
		s.ClearAutoApproveInstalled()
	}
	c.bus.Unsubscribe(SubscriberID(userID))
	log.Debug().Str("user_id", userID).Msg("auto-approval subscription removed")
}

// consume runs until the subscription is removed or the controller closes.
func (c *Controller) consume(userID string, sub *hub.ChannelSubscriber) {
	defer c.wg.Done()
	for {
		select {
		case <-c.ctx.Done():
			return
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			for _, req := range events.JoinRequests(ev) {
				_ = c.OnJoinRequest(c.ctx, userID, req.GroupID, req.ParticipantID)
			}
		}
	}
}

// OnJoinRequest approves one request when auto-approval is enabled and is
// a no-op otherwise. Remote failures (already approved, participant gone)
// are logged and returned; they never affect other requests.
func (c *Controller) OnJoinRequest(ctx context.Context, userID, groupID, participantID string) error {
	if !c.sessions.AutoApproveEnabled(userID) {
		log.Debug().Str("user_id", userID).Str("group_id", groupID).Msg("auto-approval disabled, ignoring join request")
		return nil
	}
	client, err := c.sessions.ActiveClient(userID)
	if err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("join request without an open session")
		return err
	}
	return c.approve(ctx, userID, client, groupID, participantID, SourceEvent)
}

// ReconcilePending approves every pending request in the groups where the
// session is an admin, pacing approvals by ApprovalDelay. It returns the
// number approved. It stops early when auto-approval is switched off.
func (c *Controller) ReconcilePending(ctx context.Context, userID string) (int, error) {
	if !c.sessions.AutoApproveEnabled(userID) {
		return 0, nil
	}
	client, err := c.sessions.ActiveClient(userID)
	if err != nil {
		return 0, err
	}

	self, err := client.Self(ctx)
	if err != nil {
		return 0, err
	}
	groups, err := client.ListGroups(ctx)
	if err != nil {
		return 0, err
	}

	approved := 0
	paced := false
	for _, group := range groups {
		if !identity.IsAdminOf(self, group) {
			log.Debug().Str("user_id", userID).Str("group_id", group.ID).Msg("not an admin, skipping group")
			continue
		}

		pending, err := client.FetchPendingJoinRequests(ctx, group.ID)
		if err != nil {
			log.Warn().Err(err).Str("user_id", userID).Str("group_id", group.ID).Msg("could not fetch pending join requests")
			continue
		}

		for _, participantID := range pending {
			if paced && !sleep(ctx, c.opts.ApprovalDelay) {
				return approved, ctx.Err()
			}
			if !c.sessions.AutoApproveEnabled(userID) {
				return approved, nil
			}
			paced = true
			if err := c.approve(ctx, userID, client, group.ID, participantID, SourceSweep); err == nil {
				approved++
			}
		}
	}

	log.Info().Str("user_id", userID).Int("approved", approved).Msg("pending join requests reconciled")
	return approved, nil
}

// SetEnabled updates and persists the toggle. Enabling an open session
// installs the subscription if needed; switching from off to on also
// schedules one sweep.
func (c *Controller) SetEnabled(_ context.Context, userID string, enabled bool) error {
	wasEnabled := c.sessions.AutoApproveEnabled(userID)
	open, err := c.sessions.SetAutoApprove(userID, enabled)
	if err != nil {
		return err
	}
	if enabled && open {
		c.Install(userID)
		if !wasEnabled {
			c.scheduleSweep(userID, c.opts.ToggleSweepDelay)
		}
	}
	log.Info().Str("user_id", userID).Bool("enabled", enabled).Msg("auto-approval toggled")
	return nil
}

// Enabled reports the toggle of userID.
func (c *Controller) Enabled(userID string) bool {
	return c.sessions.AutoApproveEnabled(userID)
}

// Close stops pending sweeps and waits for running work to finish.
func (c *Controller) Close() {
	c.cancel()
	c.wg.Wait()
}

func (c *Controller) scheduleSweep(userID string, delay time.Duration) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if !sleep(c.ctx, delay) {
			return
		}
		if _, err := c.ReconcilePending(c.ctx, userID); err != nil {
			log.Warn().Err(err).Str("user_id", userID).Msg("reconciliation sweep failed")
		}
	}()
}

func (c *Controller) approve(ctx context.Context, userID string, client ports.ProtocolClient, groupID, participantID, source string) error {
	err := client.ApproveJoinRequest(ctx, groupID, participantID)

	payload := events.ApprovalPayload{
		GroupID:       groupID,
		ParticipantID: participantID,
		Source:        source,
	}
	if err != nil {
		payload.Error = err.Error()
		log.Warn().Err(err).
			Str("user_id", userID).
			Str("group_id", groupID).
			Str("participant_id", participantID).
			Msg("join request approval failed")
	} else {
		log.Info().
			Str("user_id", userID).
			Str("group_id", groupID).
			Str("participant_id", participantID).
			Str("source", source).
			Msg("join request approved")
	}

	c.bus.Publish(events.NewApprovalEvent(userID, payload))
	if c.recorder != nil {
		if rerr := c.recorder.RecordApproval(ctx, userID, payload); rerr != nil {
			log.Warn().Err(rerr).Str("user_id", userID).Msg("failed to journal approval")
		}
	}
	return err
}

// sleep waits for d or until ctx is done, reporting whether d elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

var _ session.Observer = (*Controller)(nil)
