// Package domain contains domain errors used throughout the application.
package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for common error conditions.
var (
	ErrNoActiveSession   = errors.New("no active messaging session")
	ErrSessionNotOpen    = errors.New("messaging session is not connected")
	ErrNoCredentials     = errors.New("no stored credentials")
	ErrNothingToRename   = errors.New("no group clusters to rename")
	ErrWorkflowActive    = errors.New("a rename workflow is already in progress")
	ErrWorkflowNotActive = errors.New("no rename workflow in progress")
	ErrSubscriberClosed  = errors.New("subscriber is closed")
)

// RemoteErrorKind classifies failures reported by the messaging protocol stack.
type RemoteErrorKind int

const (
	KindUnknown RemoteErrorKind = iota
	KindTransient
	KindRateLimited
	KindNotFound
	KindAuthRevoked
)

// String returns a readable name for the kind.
func (k RemoteErrorKind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindRateLimited:
		return "rate_limited"
	case KindNotFound:
		return "not_found"
	case KindAuthRevoked:
		return "auth_revoked"
	default:
		return "unknown"
	}
}

// RemoteError represents an error from a protocol client operation.
type RemoteError struct {
	Op   string // Operation that failed
	Code int    // Status code reported by the remote side, 0 if none
	Err  error  // Underlying error
}

func (e *RemoteError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Op, e.Code, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// Kind classifies the error from its status code, falling back to the
// message text the protocol stack uses for throttling.
func (e *RemoteError) Kind() RemoteErrorKind {
	switch e.Code {
	case 401, 403:
		return KindAuthRevoked
	case 404:
		return KindNotFound
	case 429:
		return KindRateLimited
	case 408, 500, 502, 503, 504:
		return KindTransient
	}
	if e.Err != nil {
		msg := strings.ToLower(e.Err.Error())
		if strings.Contains(msg, "rate-overlimit") || strings.Contains(msg, "rate limit") || strings.Contains(msg, "too many") {
			return KindRateLimited
		}
		if strings.Contains(msg, "item-not-found") || strings.Contains(msg, "not found") {
			return KindNotFound
		}
		if strings.Contains(msg, "timed out") || strings.Contains(msg, "timeout") {
			return KindTransient
		}
	}
	return KindUnknown
}

// NewRemoteError creates a new RemoteError.
func NewRemoteError(op string, code int, err error) *RemoteError {
	return &RemoteError{
		Op:   op,
		Code: code,
		Err:  err,
	}
}

// KindOf returns the remote error kind carried by err, or KindUnknown.
func KindOf(err error) RemoteErrorKind {
	var remote *RemoteError
	if errors.As(err, &remote) {
		return remote.Kind()
	}
	return KindUnknown
}

// IsRateLimited reports whether err signals remote throttling.
func IsRateLimited(err error) bool {
	return KindOf(err) == KindRateLimited
}

// IsNotFound reports whether err signals a vanished group or participant.
func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}

// UserMessage returns the text shown to an end user for err: the remote
// message for protocol failures, the validation message for bad input.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var validation *ValidationError
	if errors.As(err, &validation) {
		return validation.Message
	}
	var remote *RemoteError
	if errors.As(err, &remote) && remote.Err != nil {
		return remote.Err.Error()
	}
	return err.Error()
}

// ValidationError represents a validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// ConfigurationError reports a missing collaborator capability, such as an
// operation that needs a live session when none exists.
type ConfigurationError struct {
	Capability string
	Err        error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Capability, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// NewConfigurationError creates a new ConfigurationError.
func NewConfigurationError(capability string, err error) *ConfigurationError {
	return &ConfigurationError{
		Capability: capability,
		Err:        err,
	}
}
