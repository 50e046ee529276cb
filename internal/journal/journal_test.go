package journal

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/brianly1003/grouppilot/internal/domain/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_RecordAndRecent(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()

	require.NoError(t, s.RecordApproval(ctx, "42", events.ApprovalPayload{
		GroupID: "g1", ParticipantID: "p1", Source: "event",
	}))
	require.NoError(t, s.RecordRename(ctx, "42", events.RenamePayload{
		BatchID: "b1", GroupID: "g2", OldName: "HK 2", NewName: "MK 10", Sequence: 10, Error: "item-not-found",
	}))
	require.NoError(t, s.RecordApproval(ctx, "7", events.ApprovalPayload{GroupID: "g9", ParticipantID: "p9"}))

	entries, err := s.Recent(ctx, "42", 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	rename := entries[0]
	assert.Equal(t, KindRename, rename.Kind)
	assert.Equal(t, "b1", rename.BatchID)
	assert.Equal(t, "MK 10", rename.NewName)
	assert.Equal(t, 10, rename.Sequence)
	assert.False(t, rename.OK())
	assert.False(t, rename.CreatedAt.IsZero())

	approval := entries[1]
	assert.Equal(t, KindApproval, approval.Kind)
	assert.Equal(t, "p1", approval.ParticipantID)
	assert.Equal(t, "event", approval.Source)
	assert.True(t, approval.OK())
}

func TestStore_RecentLimit(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, s.RecordApproval(ctx, "42", events.ApprovalPayload{GroupID: "g", ParticipantID: "p"}))
	}

	entries, err := s.Recent(ctx, "42", 3)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
	assert.Greater(t, entries[0].ID, entries[1].ID)
}

func TestStore_ReopenKeepsEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	ctx := context.Background()

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.RecordApproval(ctx, "42", events.ApprovalPayload{GroupID: "g", ParticipantID: "p"}))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	entries, err := s.Recent(ctx, "42", 10)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.Equal(t, path, s.Path())
}
