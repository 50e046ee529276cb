package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/brianly1003/grouppilot/internal/domain"
	"github.com/brianly1003/grouppilot/internal/domain/events"
	"github.com/brianly1003/grouppilot/internal/domain/ports"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Recorder persists rename outcomes.
type Recorder interface {
	RecordRename(ctx context.Context, userID string, p events.RenamePayload) error
}

// ExecutorOptions holds the rename pacing.
type ExecutorOptions struct {
	// Delay separates consecutive rename calls.
	Delay time.Duration
	// RateLimitDelay is added after a rate-limited failure.
	RateLimitDelay time.Duration
}

// Outcome is the result of one planned rename.
type Outcome struct {
	Item PlanItem
	Err  error
}

// OK reports whether the rename succeeded.
func (o Outcome) OK() bool { return o.Err == nil }

// Report summarizes a rename batch.
type Report struct {
	BatchID  string
	Outcomes []Outcome
}

// Succeeded returns the number of successful renames.
func (r Report) Succeeded() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.OK() {
			n++
		}
	}
	return n
}

// Failed returns the number of failed renames.
func (r Report) Failed() int {
	return len(r.Outcomes) - r.Succeeded()
}

// Summary renders the report for the user.
func (r Report) Summary() string {
	var b strings.Builder
	if r.Failed() == 0 {
		b.WriteString("✅ Rename finished\n")
	} else {
		b.WriteString("⚠️ Rename finished with errors\n")
	}
	fmt.Fprintf(&b, "Succeeded: %d\nFailed: %d\n", r.Succeeded(), r.Failed())
	for _, o := range r.Outcomes {
		if o.OK() {
			fmt.Fprintf(&b, "\n✅ %s → %s", o.Item.OldName, o.Item.NewName)
		} else {
			fmt.Fprintf(&b, "\n❌ %s → %s: %s", o.Item.OldName, o.Item.NewName, domain.UserMessage(o.Err))
		}
	}
	return b.String()
}

// Executor runs rename plans one item at a time.
type Executor struct {
	bus      ports.EventHub
	recorder Recorder
	opts     ExecutorOptions
}

// NewExecutor creates an executor. bus and recorder may be nil.
func NewExecutor(bus ports.EventHub, recorder Recorder, opts ExecutorOptions) *Executor {
	return &Executor{bus: bus, recorder: recorder, opts: opts}
}

// Run renames every item in plan order, each followed by Delay. A failed
// item never stops the batch; a rate-limited failure adds RateLimitDelay.
// Items left when ctx is cancelled are reported with the context error.
func (e *Executor) Run(ctx context.Context, userID string, client ports.ProtocolClient, plan []PlanItem) Report {
	report := Report{BatchID: uuid.NewString(), Outcomes: make([]Outcome, 0, len(plan))}
	logger := log.With().Str("user_id", userID).Str("batch_id", report.BatchID).Logger()
	logger.Info().Int("items", len(plan)).Msg("rename batch started")

	for _, item := range plan {
		if err := ctx.Err(); err != nil {
			report.Outcomes = append(report.Outcomes, Outcome{Item: item, Err: err})
			continue
		}

		err := client.RenameGroup(ctx, item.GroupID, item.NewName)
		report.Outcomes = append(report.Outcomes, Outcome{Item: item, Err: err})
		e.record(ctx, userID, report.BatchID, item, err)

		if err != nil {
			logger.Warn().Err(err).
				Str("group_id", item.GroupID).
				Str("new_name", item.NewName).
				Msg("group rename failed")
		} else {
			logger.Debug().
				Str("group_id", item.GroupID).
				Str("new_name", item.NewName).
				Msg("group renamed")
		}

		delay := e.opts.Delay
		if domain.IsRateLimited(err) {
			delay += e.opts.RateLimitDelay
		}
		sleep(ctx, delay)
	}

	logger.Info().
		Int("succeeded", report.Succeeded()).
		Int("failed", report.Failed()).
		Msg("rename batch finished")
	return report
}

func (e *Executor) record(ctx context.Context, userID, batchID string, item PlanItem, err error) {
	payload := events.RenamePayload{
		BatchID:  batchID,
		GroupID:  item.GroupID,
		OldName:  item.OldName,
		NewName:  item.NewName,
		Sequence: item.Sequence,
	}
	if err != nil {
		payload.Error = err.Error()
	}
	if e.bus != nil {
		e.bus.Publish(events.NewRenameEvent(userID, payload))
	}
	if e.recorder != nil {
		if rerr := e.recorder.RecordRename(ctx, userID, payload); rerr != nil {
			log.Warn().Err(rerr).Str("user_id", userID).Msg("failed to journal rename")
		}
	}
}

func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
