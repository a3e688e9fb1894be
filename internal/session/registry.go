package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/i474232898/weather-lookup/internal/logger"
	"github.com/i474232898/weather-lookup/internal/screen"
)

// ErrNotFound is returned for an unknown or expired session id.
var ErrNotFound = errors.New("session not found")

// Factory builds the controller for a new session.
type Factory func(ctx context.Context) *screen.Controller

type entry struct {
	ctrl     *screen.Controller
	lastSeen time.Time
}

// Registry holds one screen controller per session.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*entry
	factory  Factory
	now      func() time.Time
}

func NewRegistry(factory Factory) *Registry {
	return &Registry{
		sessions: make(map[string]*entry),
		factory:  factory,
		now:      time.Now,
	}
}

// Create starts a session and returns its id.
func (r *Registry) Create(ctx context.Context) (string, *screen.Controller) {
	ctrl := r.factory(ctx)
	id := uuid.NewString()

	r.mu.Lock()
	r.sessions[id] = &entry{ctrl: ctrl, lastSeen: r.now()}
	r.mu.Unlock()

	logger.Debugf("session %s: created", id)
	return id, ctrl
}

// Get returns the controller for id and marks the session as used.
func (r *Registry) Get(id string) (*screen.Controller, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	e.lastSeen = r.now()
	return e.ctrl, nil
}

// Delete closes and forgets the session.
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	e, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if !ok {
		return ErrNotFound
	}
	e.ctrl.Close()
	logger.Debugf("session %s: deleted", id)
	return nil
}

// Sweep closes sessions idle for longer than maxIdle and returns how many
// were removed.
func (r *Registry) Sweep(maxIdle time.Duration) int {
	cutoff := r.now().Add(-maxIdle)

	var idle []*screen.Controller
	r.mu.Lock()
	for id, e := range r.sessions {
		if e.lastSeen.Before(cutoff) {
			idle = append(idle, e.ctrl)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, c := range idle {
		c.Close()
	}
	return len(idle)
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// CloseAll closes every session. Queued saves are flushed before it returns.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	all := r.sessions
	r.sessions = make(map[string]*entry)
	r.mu.Unlock()

	for _, e := range all {
		e.ctrl.Close()
	}
}
