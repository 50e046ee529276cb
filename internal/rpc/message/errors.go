package message

import (
	"encoding/json"
	"fmt"
)

// Standard JSON-RPC 2.0 error codes.
const (
	ParseError     = -32700
	InvalidRequest = -32600
	MethodNotFound = -32601
	InvalidParams  = -32602
	InternalError  = -32603
)

// Application error codes (-32001 to -32099). The gateway reports remote
// failures with these; the control API reuses the ones that apply.
const (
	Unauthorized    = -32001 // device unlinked or credentials rejected
	NotConnected    = -32002 // no live connection for the session
	Unavailable     = -32003 // remote service unavailable
	Timeout         = -32008 // remote call timed out
	SessionNotFound = -32010
	NotFound        = -32020 // group or participant vanished
	RateLimited     = -32029
	Validation      = -32040
)

// ErrorData is the optional structured payload of an error. Status carries
// the remote side's own status code when it reported one.
type ErrorData struct {
	Status int    `json:"status,omitempty"`
	Detail string `json:"detail,omitempty"`
}

// Error represents a JSON-RPC 2.0 error.
type Error struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// NewError creates a new JSON-RPC error.
func NewError(code int, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// NewErrorWithData creates a new JSON-RPC error with additional data.
func NewErrorWithData(code int, message string, data interface{}) *Error {
	err := &Error{
		Code:    code,
		Message: message,
	}

	if data != nil {
		if d, e := json.Marshal(data); e == nil {
			err.Data = d
		}
	}

	return err
}

// StatusCode returns the remote status code the error stands for: the
// status in its data when present, otherwise the status implied by its code,
// otherwise 0.
func (e *Error) StatusCode() int {
	if len(e.Data) > 0 {
		var data ErrorData
		if json.Unmarshal(e.Data, &data) == nil && data.Status != 0 {
			return data.Status
		}
	}
	switch e.Code {
	case Unauthorized:
		return 401
	case NotFound, SessionNotFound:
		return 404
	case Timeout:
		return 408
	case RateLimited:
		return 429
	case NotConnected, Unavailable:
		return 503
	}
	return 0
}

// ErrParseError creates a parse error.
func ErrParseError(message string) *Error {
	if message == "" {
		message = "Parse error"
	}
	return NewError(ParseError, message)
}

// ErrInvalidRequest creates an invalid request error.
func ErrInvalidRequest(message string) *Error {
	if message == "" {
		message = "Invalid Request"
	}
	return NewError(InvalidRequest, message)
}

// ErrMethodNotFound creates a method not found error.
func ErrMethodNotFound(method string) *Error {
	return NewError(MethodNotFound, "Method not found: "+method)
}

// ErrInvalidParams creates an invalid params error.
func ErrInvalidParams(message string) *Error {
	if message == "" {
		message = "Invalid params"
	}
	return NewError(InvalidParams, message)
}

// ErrInternalError creates an internal error.
func ErrInternalError(message string) *Error {
	if message == "" {
		message = "Internal error"
	}
	return NewError(InternalError, message)
}

// ErrSessionNotFound creates a session not found error.
func ErrSessionNotFound(userID string) *Error {
	return NewErrorWithData(SessionNotFound, "Session not found", map[string]string{
		"user_id": userID,
	})
}

// ErrNotConnected creates a not connected error.
func ErrNotConnected(message string) *Error {
	return NewError(NotConnected, message)
}

// ErrValidation creates a validation error.
func ErrValidation(field, message string) *Error {
	return NewErrorWithData(Validation, message, map[string]string{
		"field": field,
	})
}

// ErrorCodeName returns a human-readable name for an error code.
func ErrorCodeName(code int) string {
	switch code {
	case ParseError:
		return "ParseError"
	case InvalidRequest:
		return "InvalidRequest"
	case MethodNotFound:
		return "MethodNotFound"
	case InvalidParams:
		return "InvalidParams"
	case InternalError:
		return "InternalError"
	case Unauthorized:
		return "Unauthorized"
	case NotConnected:
		return "NotConnected"
	case Unavailable:
		return "Unavailable"
	case Timeout:
		return "Timeout"
	case SessionNotFound:
		return "SessionNotFound"
	case NotFound:
		return "NotFound"
	case RateLimited:
		return "RateLimited"
	case Validation:
		return "Validation"
	default:
		return fmt.Sprintf("UnknownError(%d)", code)
	}
}
