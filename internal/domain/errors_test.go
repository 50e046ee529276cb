package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRemoteError_Kind(t *testing.T) {
	tests := []struct {
		name string
		err  *RemoteError
		want RemoteErrorKind
	}{
		{"401 is auth revoked", NewRemoteError("open", 401, errors.New("logged out")), KindAuthRevoked},
		{"403 is auth revoked", NewRemoteError("open", 403, errors.New("forbidden")), KindAuthRevoked},
		{"404 is not found", NewRemoteError("rename", 404, errors.New("gone")), KindNotFound},
		{"429 is rate limited", NewRemoteError("rename", 429, errors.New("slow down")), KindRateLimited},
		{"rate-overlimit text", NewRemoteError("rename", 0, errors.New("rate-overlimit")), KindRateLimited},
		{"item-not-found text", NewRemoteError("approve", 0, errors.New("item-not-found")), KindNotFound},
		{"timeout text", NewRemoteError("list", 0, errors.New("request timed out")), KindTransient},
		{"503 is transient", NewRemoteError("list", 503, errors.New("unavailable")), KindTransient},
		{"anything else", NewRemoteError("list", 0, errors.New("boom")), KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Kind())
		})
	}
}

func TestKindOf_Wrapped(t *testing.T) {
	err := fmt.Errorf("renaming group: %w", NewRemoteError("rename", 429, errors.New("slow down")))

	assert.True(t, IsRateLimited(err))
	assert.False(t, IsNotFound(err))
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
}

func TestUserMessage(t *testing.T) {
	assert.Equal(t, "", UserMessage(nil))
	assert.Equal(t, "must be a number", UserMessage(NewValidationError("range_start", "must be a number")))
	assert.Equal(t, "not-authorized", UserMessage(fmt.Errorf("wrap: %w", NewRemoteError("rename", 403, errors.New("not-authorized")))))
	assert.Equal(t, "plain", UserMessage(errors.New("plain")))
}

func TestConfigurationError_Unwrap(t *testing.T) {
	err := NewConfigurationError("rename", ErrNoActiveSession)

	assert.ErrorIs(t, err, ErrNoActiveSession)
	assert.Contains(t, err.Error(), "rename unavailable")
}
