// Package security guards the control API: bearer tokens, websocket
// origins and client address resolution behind reverse proxies.
package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
)

// TokenPrefix marks generated control tokens so they are easy to spot in
// config files and leaked-secret scanners.
const TokenPrefix = "gp_"

// ErrInvalidToken is returned for a missing or wrong token.
var ErrInvalidToken = errors.New("invalid token")

// GenerateToken returns a random control token.
func GenerateToken() (string, error) {
	s, err := generateRandomString(32)
	if err != nil {
		return "", err
	}
	return TokenPrefix + s, nil
}

// TokenAuth checks a static bearer token. A zero TokenAuth (empty token)
// lets everything through.
type TokenAuth struct {
	token []byte
}

// NewTokenAuth creates a checker for token.
func NewTokenAuth(token string) *TokenAuth {
	return &TokenAuth{token: []byte(strings.TrimSpace(token))}
}

// Enabled reports whether a token is required.
func (a *TokenAuth) Enabled() bool {
	return a != nil && len(a.token) > 0
}

// Validate compares presented with the configured token in constant time.
func (a *TokenAuth) Validate(presented string) error {
	if !a.Enabled() {
		return nil
	}
	if presented == "" || subtle.ConstantTimeCompare([]byte(presented), a.token) != 1 {
		return ErrInvalidToken
	}
	return nil
}

// RequestToken extracts the token from the Authorization header, falling
// back to the token query parameter for websocket clients that cannot set
// headers.
func RequestToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, value, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(value)
		}
		return ""
	}
	return r.URL.Query().Get("token")
}

// Middleware rejects requests without the configured token with 401.
func (a *TokenAuth) Middleware(next http.Handler) http.Handler {
	if !a.Enabled() {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := a.Validate(RequestToken(r)); err != nil {
			log.Warn().
				Str("path", r.URL.Path).
				Str("remote_addr", r.RemoteAddr).
				Msg("rejected request with invalid token")
			w.Header().Set("WWW-Authenticate", `Bearer realm="grouppilot"`)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"unauthorized"}` + "\n"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// generateRandomString generates a random URL-safe string.
func generateRandomString(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(bytes)[:length], nil
}
