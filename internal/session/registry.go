package session

import (
	"sort"

	"github.com/brianly1003/grouppilot/internal/domain/ports"
	"github.com/brianly1003/grouppilot/internal/sync"
)

// Registry is the process-wide map of user sessions. It is the only place
// sessions are looked up, inserted or removed.
type Registry struct {
	sessions map[string]*UserSession
	mu       sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*UserSession)}
}

// Get returns the session of userID.
func (r *Registry) Get(userID string) (*UserSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[userID]
	return s, ok
}

// GetOrCreate returns the session of userID, creating it with settings
// from load when absent. load runs at most once per created session and
// only under the registry lock, so concurrent callers share one session.
func (r *Registry) GetOrCreate(userID string, load func() ports.Settings) *UserSession {
	if s, ok := r.Get(userID); ok {
		return s
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[userID]; ok {
		return s
	}
	var settings ports.Settings
	if load != nil {
		settings = load()
	}
	s := newUserSession(userID, settings)
	r.sessions[userID] = s
	return s
}

// Remove deletes the session of userID and returns it.
func (r *Registry) Remove(userID string) (*UserSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[userID]
	if ok {
		delete(r.sessions, userID)
	}
	return s, ok
}

// All returns every session ordered by user ID.
func (r *Registry) All() []*UserSession {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*UserSession, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

// Len returns the number of sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
