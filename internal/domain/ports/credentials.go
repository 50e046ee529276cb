package ports

import "time"

// Settings is the per-user settings record stored next to the credentials.
type Settings struct {
	AutoApproveEnabled bool      `json:"autoAccept"`
	LastSaved          time.Time `json:"lastSaved"`
}

// CredentialStore persists per-user authentication material and settings.
type CredentialStore interface {
	// HasCredentials reports whether a credentials blob is stored for userID.
	HasCredentials(userID string) bool

	// LoadCredentials returns the stored blob.
	LoadCredentials(userID string) ([]byte, error)

	// SaveCredentials replaces the stored blob.
	SaveCredentials(userID string, blob []byte) error

	// LoadSettings returns the stored settings, or zero settings when none exist.
	LoadSettings(userID string) (Settings, error)

	// SaveSettings writes the settings record.
	SaveSettings(userID string, settings Settings) error

	// Delete removes everything stored for userID.
	Delete(userID string) error

	// Users lists the user IDs with a storage directory.
	Users() ([]string, error)
}
