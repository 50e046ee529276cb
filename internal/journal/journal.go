// Package journal keeps an SQLite audit trail of join-request approvals and
// group renames.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/brianly1003/grouppilot/internal/domain/events"
	"github.com/rs/zerolog/log"

	_ "modernc.org/sqlite"
)

const schemaVersion = 1

// Entry kinds.
const (
	KindApproval = "approval"
	KindRename   = "rename"
)

// DefaultLimit bounds Recent when no limit is given.
const DefaultLimit = 50

// Entry is one journaled outcome.
type Entry struct {
	ID            int64     `json:"id"`
	UserID        string    `json:"user_id"`
	Kind          string    `json:"kind"`
	GroupID       string    `json:"group_id"`
	ParticipantID string    `json:"participant_id,omitempty"`
	Source        string    `json:"source,omitempty"`
	BatchID       string    `json:"batch_id,omitempty"`
	OldName       string    `json:"old_name,omitempty"`
	NewName       string    `json:"new_name,omitempty"`
	Sequence      int       `json:"sequence,omitempty"`
	Error         string    `json:"error,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// OK reports whether the journaled operation succeeded.
func (e Entry) OK() bool { return e.Error == "" }

// Store is the SQLite-backed journal.
type Store struct {
	db   *sql.DB
	path string

	stmtInsert *sql.Stmt
	stmtRecent *sql.Stmt
}

// Open opens or creates the journal at path. ":memory:" keeps it in memory.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, fmt.Errorf("failed to create journal dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			log.Warn().Err(err).Str("pragma", pragma).Msg("failed to set pragma")
		}
	}

	s := &Store{db: db, path: path}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}
	if err := s.prepareStatements(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	var current int
	err := s.db.QueryRow("SELECT value FROM metadata WHERE key = 'schema_version'").Scan(&current)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		current = 0
	}
	if current >= schemaVersion {
		return nil
	}

	log.Info().Int("current", current).Int("target", schemaVersion).Msg("updating journal schema")

	schema := `
		CREATE TABLE IF NOT EXISTS metadata (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS entries (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			group_id TEXT NOT NULL,
			participant_id TEXT NOT NULL DEFAULT '',
			source TEXT NOT NULL DEFAULT '',
			batch_id TEXT NOT NULL DEFAULT '',
			old_name TEXT NOT NULL DEFAULT '',
			new_name TEXT NOT NULL DEFAULT '',
			sequence INTEGER NOT NULL DEFAULT 0,
			error TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_entries_user ON entries(user_id, id DESC);
		CREATE INDEX IF NOT EXISTS idx_entries_batch ON entries(batch_id) WHERE batch_id != '';
	`
	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	_, err = s.db.Exec(`INSERT OR REPLACE INTO metadata (key, value) VALUES ('schema_version', ?)`, schemaVersion)
	return err
}

func (s *Store) prepareStatements() error {
	var err error

	s.stmtInsert, err = s.db.Prepare(`
		INSERT INTO entries
		(user_id, kind, group_id, participant_id, source, batch_id, old_name, new_name, sequence, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}

	s.stmtRecent, err = s.db.Prepare(`
		SELECT id, user_id, kind, group_id, participant_id, source, batch_id,
		       old_name, new_name, sequence, error, created_at
		FROM entries
		WHERE user_id = ?
		ORDER BY id DESC
		LIMIT ?
	`)
	return err
}

// RecordApproval journals one approval attempt.
func (s *Store) RecordApproval(ctx context.Context, userID string, p events.ApprovalPayload) error {
	return s.insert(ctx, Entry{
		UserID:        userID,
		Kind:          KindApproval,
		GroupID:       p.GroupID,
		ParticipantID: p.ParticipantID,
		Source:        p.Source,
		Error:         p.Error,
	})
}

// RecordRename journals one rename attempt.
func (s *Store) RecordRename(ctx context.Context, userID string, p events.RenamePayload) error {
	return s.insert(ctx, Entry{
		UserID:   userID,
		Kind:     KindRename,
		GroupID:  p.GroupID,
		BatchID:  p.BatchID,
		OldName:  p.OldName,
		NewName:  p.NewName,
		Sequence: p.Sequence,
		Error:    p.Error,
	})
}

func (s *Store) insert(ctx context.Context, e Entry) error {
	_, err := s.stmtInsert.ExecContext(ctx,
		e.UserID, e.Kind, e.GroupID, e.ParticipantID, e.Source, e.BatchID,
		e.OldName, e.NewName, e.Sequence, e.Error, time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("journal %s: %w", e.Kind, err)
	}
	return nil
}

// Recent returns the newest entries of userID, newest first.
func (s *Store) Recent(ctx context.Context, userID string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	rows, err := s.stmtRecent.QueryContext(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0, limit)
	for rows.Next() {
		var e Entry
		var created int64
		if err := rows.Scan(
			&e.ID, &e.UserID, &e.Kind, &e.GroupID, &e.ParticipantID, &e.Source, &e.BatchID,
			&e.OldName, &e.NewName, &e.Sequence, &e.Error, &created,
		); err != nil {
			return nil, fmt.Errorf("scan journal: %w", err)
		}
		e.CreatedAt = time.UnixMilli(created).UTC()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Path returns the database location.
func (s *Store) Path() string {
	return s.path
}

// Close releases the database.
func (s *Store) Close() error {
	if s.stmtInsert != nil {
		s.stmtInsert.Close()
	}
	if s.stmtRecent != nil {
		s.stmtRecent.Close()
	}
	return s.db.Close()
}
