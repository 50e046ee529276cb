package credstore

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"filippo.io/age"
)

// sealedHeader starts every binary age file.
var sealedHeader = []byte("age-encryption.org/v1\n")

// Sealer encrypts credential blobs to an age X25519 identity.
type Sealer struct {
	identity *age.X25519Identity
}

// NewSealer creates a sealer for identity.
func NewSealer(identity *age.X25519Identity) *Sealer {
	return &Sealer{identity: identity}
}

// LoadSealer reads an age identity file as written by GenerateIdentityFile
// or age-keygen.
func LoadSealer(path string) (*Sealer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening age identity file: %w", err)
	}
	defer f.Close()

	identities, err := age.ParseIdentities(f)
	if err != nil {
		return nil, fmt.Errorf("parsing age identity file %s: %w", path, err)
	}
	for _, id := range identities {
		if x, ok := id.(*age.X25519Identity); ok {
			return NewSealer(x), nil
		}
	}
	return nil, fmt.Errorf("age identity file %s has no X25519 identity", path)
}

// GenerateIdentityFile writes a fresh age identity to path with 0600
// permissions and returns its public recipient. It refuses to overwrite an
// existing file.
func GenerateIdentityFile(path string) (string, error) {
	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return "", fmt.Errorf("generating age keypair: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return "", fmt.Errorf("creating identity directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return "", fmt.Errorf("creating identity file: %w", err)
	}
	defer f.Close()

	recipient := identity.Recipient().String()
	if _, err := fmt.Fprintf(f, "# public key: %s\n%s\n", recipient, identity.String()); err != nil {
		return "", fmt.Errorf("writing identity file: %w", err)
	}
	return recipient, nil
}

// Recipient returns the public key blobs are sealed to.
func (s *Sealer) Recipient() string {
	return s.identity.Recipient().String()
}

// Seal encrypts plaintext.
func (s *Sealer) Seal(plaintext []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := age.Encrypt(&buf, s.identity.Recipient())
	if err != nil {
		return nil, fmt.Errorf("creating age encryptor: %w", err)
	}
	if _, err := w.Write(plaintext); err != nil {
		return nil, fmt.Errorf("writing plaintext to age encryptor: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("finalizing age encryption: %w", err)
	}
	return buf.Bytes(), nil
}

// Open decrypts a blob produced by Seal.
func (s *Sealer) Open(ciphertext []byte) ([]byte, error) {
	r, err := age.Decrypt(bytes.NewReader(ciphertext), s.identity)
	if err != nil {
		return nil, fmt.Errorf("decrypting credentials: %w", err)
	}
	plaintext, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading decrypted credentials: %w", err)
	}
	return plaintext, nil
}

// IsSealed reports whether data is an age ciphertext.
func IsSealed(data []byte) bool {
	return bytes.HasPrefix(data, sealedHeader)
}
