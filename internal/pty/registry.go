package pty

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// Registry errors
var (
	ErrSessionExists   = errors.New("session already exists")
	ErrSessionNotFound = errors.New("session not found")
)

// Registry owns the live sessions, keyed by id. Sessions in a registry are
// removed only through it.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	// start spawns a session; tests replace it.
	start func(Options) (*Session, error)
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		start:    Start,
	}
}

// Spawn starts a session for opts.ID and registers it.
func (r *Registry) Spawn(opts Options) (*Session, error) {
	r.mu.RLock()
	_, exists := r.sessions[opts.ID]
	r.mu.RUnlock()
	if exists {
		return nil, fmt.Errorf("%w: %s", ErrSessionExists, opts.ID)
	}

	s, err := r.start(opts)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// Lost a race with another Spawn of the same id.
	if _, exists := r.sessions[opts.ID]; exists {
		_ = s.Close()
		return nil, fmt.Errorf("%w: %s", ErrSessionExists, opts.ID)
	}
	r.sessions[opts.ID] = s
	return s, nil
}

// Get returns the session with the given id.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return s, nil
}

// Has reports whether a session with the given id is registered.
func (r *Registry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.sessions[id]
	return ok
}

// Remove unregisters and closes a session.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return s.Close()
}

// ResizeAll resizes every session. Individual failures are logged and
// skipped.
func (r *Registry) ResizeAll(rows, cols int) {
	for _, s := range r.snapshot() {
		if err := s.Resize(rows, cols); err != nil {
			slog.Debug("resizing session", "id", s.ID(), "err", err)
		}
	}
}

// IDs returns the registered ids in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Count returns the number of registered sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// CloseAll closes and unregisters every session.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for id, s := range sessions {
		if err := s.Close(); err != nil {
			slog.Debug("closing session", "id", id, "err", err)
		}
	}
}

func (r *Registry) snapshot() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}
