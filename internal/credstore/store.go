// Package credstore persists per-user credential blobs and settings records
// on disk. Each user owns one directory, <root>/<prefix><userID>, holding
// creds.json and settings.json.
package credstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/brianly1003/grouppilot/internal/domain"
	"github.com/brianly1003/grouppilot/internal/domain/ports"
	"github.com/rs/zerolog/log"
)

const (
	credentialsFile = "creds.json"
	settingsFile    = "settings.json"
)

// Store is a directory-per-user ports.CredentialStore.
type Store struct {
	root   string
	prefix string
	sealer *Sealer
}

// Option configures a Store.
type Option func(*Store)

// WithSealer encrypts credential blobs at rest with the given sealer.
func WithSealer(s *Sealer) Option {
	return func(st *Store) {
		st.sealer = s
	}
}

// New creates the root directory if needed and returns a Store.
func New(root, prefix string, opts ...Option) (*Store, error) {
	if prefix == "" {
		return nil, domain.NewValidationError("prefix", "directory prefix cannot be empty")
	}
	if err := os.MkdirAll(root, 0700); err != nil {
		return nil, fmt.Errorf("failed to create sessions directory: %w", err)
	}
	s := &Store{root: root, prefix: prefix}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Root returns the sessions directory.
func (s *Store) Root() string {
	return s.root
}

// Dir returns the storage directory of userID.
func (s *Store) Dir(userID string) string {
	return filepath.Join(s.root, s.prefix+userID)
}

func (s *Store) userDir(userID string) (string, error) {
	if userID == "" || strings.ContainsAny(userID, `/\`) || userID == "." || userID == ".." {
		return "", domain.NewValidationError("user_id", "invalid user id")
	}
	return s.Dir(userID), nil
}

// HasCredentials reports whether a non-empty credentials blob is stored.
func (s *Store) HasCredentials(userID string) bool {
	dir, err := s.userDir(userID)
	if err != nil {
		return false
	}
	info, err := os.Stat(filepath.Join(dir, credentialsFile))
	return err == nil && info.Mode().IsRegular() && info.Size() > 0
}

// LoadCredentials returns the stored blob, unsealing it when needed.
func (s *Store) LoadCredentials(userID string) ([]byte, error) {
	dir, err := s.userDir(userID)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(dir, credentialsFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, domain.ErrNoCredentials
		}
		return nil, fmt.Errorf("failed to read credentials: %w", err)
	}
	if len(data) == 0 {
		return nil, domain.ErrNoCredentials
	}

	if IsSealed(data) {
		if s.sealer == nil {
			return nil, fmt.Errorf("credentials for %s are sealed but no age identity is configured", userID)
		}
		return s.sealer.Open(data)
	}
	return data, nil
}

// SaveCredentials replaces the stored blob, sealing it when a sealer is set.
func (s *Store) SaveCredentials(userID string, blob []byte) error {
	dir, err := s.userDir(userID)
	if err != nil {
		return err
	}
	data := blob
	if s.sealer != nil {
		data, err = s.sealer.Seal(blob)
		if err != nil {
			return err
		}
	}
	return writeFileAtomic(dir, credentialsFile, data)
}

// LoadSettings returns the stored settings, or zero settings when the record
// does not exist yet.
func (s *Store) LoadSettings(userID string) (ports.Settings, error) {
	var settings ports.Settings
	dir, err := s.userDir(userID)
	if err != nil {
		return settings, err
	}
	data, err := os.ReadFile(filepath.Join(dir, settingsFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return settings, nil
		}
		return settings, fmt.Errorf("failed to read settings: %w", err)
	}
	if err := json.Unmarshal(data, &settings); err != nil {
		return settings, fmt.Errorf("failed to parse settings: %w", err)
	}
	return settings, nil
}

// SaveSettings writes the settings record.
func (s *Store) SaveSettings(userID string, settings ports.Settings) error {
	dir, err := s.userDir(userID)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	return writeFileAtomic(dir, settingsFile, data)
}

// Delete removes the user's directory. Deleting a missing directory is not
// an error.
func (s *Store) Delete(userID string) error {
	dir, err := s.userDir(userID)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to delete session directory: %w", err)
	}
	log.Debug().Str("user_id", userID).Str("dir", dir).Msg("deleted session directory")
	return nil
}

// Users lists the user IDs that have a storage directory, sorted.
func (s *Store) Users() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list sessions directory: %w", err)
	}
	var users []string
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), s.prefix) {
			continue
		}
		if id := strings.TrimPrefix(entry.Name(), s.prefix); id != "" {
			users = append(users, id)
		}
	}
	sort.Strings(users)
	return users, nil
}

func writeFileAtomic(dir, name string, data []byte) error {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+name+".*")
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := os.Rename(tmpName, filepath.Join(dir, name)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}

var _ ports.CredentialStore = (*Store)(nil)
