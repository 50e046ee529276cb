package telegram

import (
	"context"

	"github.com/brianly1003/grouppilot/internal/domain/ports"
	"github.com/brianly1003/grouppilot/internal/sync"
)

// userQueue hands commands to a handler one user at a time, in arrival
// order. Different users are served concurrently. A user's worker exits
// once the user's backlog is empty.
type userQueue struct {
	handler ports.CommandHandler

	mu      sync.Mutex
	pending map[string][]ports.Command
	wg      sync.WaitGroup
}

func newUserQueue(handler ports.CommandHandler) *userQueue {
	return &userQueue{
		handler: handler,
		pending: make(map[string][]ports.Command),
	}
}

// Push queues cmd behind the user's earlier commands. It never blocks.
func (q *userQueue) Push(ctx context.Context, cmd ports.Command) {
	q.mu.Lock()
	backlog, running := q.pending[cmd.UserID]
	q.pending[cmd.UserID] = append(backlog, cmd)
	q.mu.Unlock()

	if !running {
		q.wg.Add(1)
		go q.drain(ctx, cmd.UserID)
	}
}

func (q *userQueue) drain(ctx context.Context, userID string) {
	defer q.wg.Done()
	for {
		q.mu.Lock()
		backlog := q.pending[userID]
		if len(backlog) == 0 {
			delete(q.pending, userID)
			q.mu.Unlock()
			return
		}
		cmd := backlog[0]
		q.pending[userID] = backlog[1:]
		q.mu.Unlock()

		q.handler.HandleCommand(ctx, cmd)
	}
}

// Wait blocks until every queued command has been handled.
func (q *userQueue) Wait() {
	q.wg.Wait()
}
