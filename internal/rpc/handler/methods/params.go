// Package methods holds the control-API method services.
package methods

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/brianly1003/grouppilot/internal/domain"
	"github.com/brianly1003/grouppilot/internal/rpc/handler"
	"github.com/brianly1003/grouppilot/internal/rpc/message"
)

// UserParams names a user session.
type UserParams struct {
	UserID string `json:"user_id"`
}

func userIDParam() handler.OpenRPCParam {
	return handler.OpenRPCParam{
		Name:        "user_id",
		Description: "Chat user id that owns the session",
		Required:    true,
		Schema:      map[string]interface{}{"type": "string"},
	}
}

// decodeParams unmarshals params into v, treating empty params as {}.
func decodeParams(params json.RawMessage, v interface{}) *message.Error {
	if len(params) == 0 || string(params) == "null" {
		params = json.RawMessage(`{}`)
	}
	if err := json.Unmarshal(params, v); err != nil {
		return message.ErrInvalidParams(err.Error())
	}
	return nil
}

func decodeUser(params json.RawMessage, v interface{}, userID func() string) *message.Error {
	if err := decodeParams(params, v); err != nil {
		return err
	}
	if strings.TrimSpace(userID()) == "" {
		return message.ErrValidation("user_id", "user_id is required")
	}
	return nil
}

// toRPCError maps domain errors to control-API errors.
func toRPCError(err error) *message.Error {
	var validation *domain.ValidationError
	var remote *domain.RemoteError
	switch {
	case errors.Is(err, domain.ErrNoActiveSession), errors.Is(err, domain.ErrSessionNotOpen):
		return message.ErrNotConnected(err.Error())
	case errors.As(err, &validation):
		return message.ErrValidation(validation.Field, validation.Message)
	case errors.As(err, &remote):
		return message.NewErrorWithData(message.Unavailable, remote.Error(), message.ErrorData{Status: remote.Code, Detail: remote.Kind().String()})
	}
	return message.ErrInternalError(err.Error())
}
