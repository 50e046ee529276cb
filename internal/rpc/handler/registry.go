// Package handler routes control-API JSON-RPC requests to method handlers
// and describes them as an OpenRPC document.
package handler

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/brianly1003/grouppilot/internal/rpc/message"
	"github.com/brianly1003/grouppilot/internal/sync"
)

// ContextKey is a type for context keys to avoid collisions.
type ContextKey string

// ClientIDKey is the context key for the control client's transport ID.
const ClientIDKey ContextKey = "client_id"

// ClientID returns the control client ID stored in ctx, or "".
func ClientID(ctx context.Context) string {
	id, _ := ctx.Value(ClientIDKey).(string)
	return id
}

// HandlerFunc is the signature for RPC method handlers.
// If the result is nil and error is nil, an empty successful response is sent.
type HandlerFunc func(ctx context.Context, params json.RawMessage) (interface{}, *message.Error)

// MiddlewareFunc is a function that wraps a HandlerFunc.
type MiddlewareFunc func(method string, next HandlerFunc) HandlerFunc

// Registry holds registered RPC methods.
type Registry struct {
	mu         sync.RWMutex
	handlers   map[string]HandlerFunc
	meta       map[string]MethodMeta
	middleware []MiddlewareFunc
}

// NewRegistry creates a new method registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]HandlerFunc),
		meta:     make(map[string]MethodMeta),
	}
}

// Register registers a handler for a method, replacing any previous one.
func (r *Registry) Register(method string, handler HandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[method] = handler
}

// RegisterWithMeta registers a handler with OpenRPC metadata.
func (r *Registry) RegisterWithMeta(method string, handler HandlerFunc, meta MethodMeta) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[method] = handler
	r.meta[method] = meta
}

// GetMeta returns the metadata for a method, or a stub carrying only the
// method name as summary.
func (r *Registry) GetMeta(method string) MethodMeta {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if meta, ok := r.meta[method]; ok {
		return meta
	}
	return MethodMeta{Summary: method}
}

// Use adds middleware. The first middleware added is the outermost.
func (r *Registry) Use(mw MiddlewareFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.middleware = append(r.middleware, mw)
}

// Get returns the handler for a method wrapped in all middleware, or nil.
func (r *Registry) Get(method string) HandlerFunc {
	r.mu.RLock()
	defer r.mu.RUnlock()

	handler, ok := r.handlers[method]
	if !ok {
		return nil
	}
	for i := len(r.middleware) - 1; i >= 0; i-- {
		handler = r.middleware[i](method, handler)
	}
	return handler
}

// Has returns true if a handler is registered for the method.
func (r *Registry) Has(method string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.handlers[method]
	return ok
}

// Methods returns the registered method names in sorted order.
func (r *Registry) Methods() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	methods := make([]string, 0, len(r.handlers))
	for method := range r.handlers {
		methods = append(methods, method)
	}
	sort.Strings(methods)
	return methods
}

// Unregister removes a handler for a method.
func (r *Registry) Unregister(method string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.handlers, method)
	delete(r.meta, method)
}

// MethodService is a group of methods registered together.
type MethodService interface {
	RegisterMethods(r *Registry)
}

// RegisterService registers all methods from a MethodService.
func (r *Registry) RegisterService(svc MethodService) {
	svc.RegisterMethods(r)
}
