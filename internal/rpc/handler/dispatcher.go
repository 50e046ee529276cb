package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"

	"github.com/brianly1003/grouppilot/internal/rpc/message"
	"github.com/rs/zerolog/log"
)

// Dispatcher routes JSON-RPC requests to registered handlers.
type Dispatcher struct {
	registry *Registry
}

// NewDispatcher creates a new dispatcher with the given registry.
func NewDispatcher(registry *Registry) *Dispatcher {
	return &Dispatcher{registry: registry}
}

// Dispatch handles a JSON-RPC request and returns a response.
// Returns nil for notifications (requests without ID).
func (d *Dispatcher) Dispatch(ctx context.Context, req *message.Request) *message.Response {
	log.Debug().
		Str("method", req.Method).
		Str("id", req.ID.String()).
		Bool("notification", req.IsNotification()).
		Msg("dispatching request")

	handler := d.registry.Get(req.Method)
	if handler == nil {
		log.Warn().Str("method", req.Method).Msg("method not found")
		if req.IsNotification() {
			return nil
		}
		return message.NewErrorResponse(req.ID, message.ErrMethodNotFound(req.Method))
	}

	result, rpcErr := d.invoke(ctx, req.Method, handler, req.Params)

	if req.IsNotification() {
		if rpcErr != nil {
			log.Warn().
				Str("method", req.Method).
				Int("code", rpcErr.Code).
				Str("error", rpcErr.Message).
				Msg("notification handler error (not sent to client)")
		}
		return nil
	}

	if rpcErr != nil {
		log.Debug().
			Str("method", req.Method).
			Int("code", rpcErr.Code).
			Str("error", rpcErr.Message).
			Msg("request failed")
		return message.NewErrorResponse(req.ID, rpcErr)
	}

	resp, err := message.NewSuccessResponse(req.ID, result)
	if err != nil {
		log.Error().
			Str("method", req.Method).
			Err(err).
			Msg("failed to marshal response")
		return message.NewErrorResponse(req.ID, message.ErrInternalError("failed to marshal response"))
	}
	return resp
}

// invoke runs handler, turning a panic into an internal error.
func (d *Dispatcher) invoke(ctx context.Context, method string, handler HandlerFunc, params json.RawMessage) (result interface{}, rpcErr *message.Error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("method", method).
				Str("panic", fmt.Sprint(r)).
				Str("stack", string(debug.Stack())).
				Msg("rpc handler panicked")
			result = nil
			rpcErr = message.ErrInternalError("internal error")
		}
	}()
	return handler(ctx, params)
}

// DispatchBytes parses and dispatches a JSON-RPC request from bytes.
// Returns the response bytes, or nil for notifications.
func (d *Dispatcher) DispatchBytes(ctx context.Context, data []byte) ([]byte, error) {
	req, err := message.ParseRequest(data)
	if err != nil {
		log.Debug().Err(err).Msg("failed to parse request")
		return json.Marshal(message.NewErrorResponse(nil, message.ErrParseError(err.Error())))
	}

	resp := d.Dispatch(ctx, req)
	if resp == nil {
		return nil, nil
	}
	return json.Marshal(resp)
}

// HandleMessage handles a single request or a batch and returns the
// encoded response(s).
func (d *Dispatcher) HandleMessage(ctx context.Context, data []byte) ([]byte, error) {
	if len(data) > 0 && data[0] == '[' {
		return d.handleBatch(ctx, data)
	}
	return d.DispatchBytes(ctx, data)
}

func (d *Dispatcher) handleBatch(ctx context.Context, data []byte) ([]byte, error) {
	var rawRequests []json.RawMessage
	if err := json.Unmarshal(data, &rawRequests); err != nil {
		return json.Marshal(message.NewErrorResponse(nil, message.ErrParseError("Invalid batch request")))
	}
	if len(rawRequests) == 0 {
		return json.Marshal(message.NewErrorResponse(nil, message.ErrInvalidRequest("Empty batch")))
	}

	responses := make([]*message.Response, 0, len(rawRequests))
	for _, rawReq := range rawRequests {
		req, err := message.ParseRequest(rawReq)
		if err != nil {
			responses = append(responses, message.NewErrorResponse(nil, message.ErrParseError(err.Error())))
			continue
		}
		if resp := d.Dispatch(ctx, req); resp != nil {
			responses = append(responses, resp)
		}
	}

	// All notifications
	if len(responses) == 0 {
		return nil, nil
	}
	return json.Marshal(responses)
}

// Registry returns the underlying registry.
func (d *Dispatcher) Registry() *Registry {
	return d.registry
}
