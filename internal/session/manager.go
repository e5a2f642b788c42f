package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrSessionNotFound is returned for an unknown or already closed session id.
var ErrSessionNotFound = errors.New("session not found")

// minReapInterval bounds how often Run scans for idle sessions.
const minReapInterval = time.Second

// Manager owns the live sessions and closes those left idle.
type Manager struct {
	opts        Options
	idleTimeout time.Duration

	mu       sync.RWMutex
	sessions map[string]*Coordinator
}

// NewManager creates a Manager whose sessions share opts. Sessions idle for
// idleTimeout are closed by Reap.
func NewManager(opts Options, idleTimeout time.Duration) *Manager {
	return &Manager{
		opts:        opts.withDefaults(),
		idleTimeout: idleTimeout,
		sessions:    make(map[string]*Coordinator),
	}
}

// Create starts a new session with a random id.
func (m *Manager) Create() *Coordinator {
	c := NewCoordinator(uuid.NewString(), m.opts)

	m.mu.Lock()
	m.sessions[c.ID()] = c
	n := len(m.sessions)
	m.mu.Unlock()

	m.opts.Metrics.ActiveSessions.Set(float64(n))
	m.opts.Logger.Debug("session created", "session_id", c.ID())
	return c
}

// Get returns the session with the given id.
func (m *Manager) Get(id string) (*Coordinator, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return c, nil
}

// Close removes and closes the session with the given id.
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	c, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	n := len(m.sessions)
	m.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}
	c.Close()
	m.opts.Metrics.ActiveSessions.Set(float64(n))
	m.opts.Logger.Debug("session closed", "session_id", id)
	return nil
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Reap closes every session whose last activity is at least idleTimeout old
// and returns how many were closed.
func (m *Manager) Reap() int {
	now := m.opts.Clock.Now()

	var idle []*Coordinator
	m.mu.Lock()
	for id, c := range m.sessions {
		if now.Sub(c.LastActive()) >= m.idleTimeout {
			idle = append(idle, c)
			delete(m.sessions, id)
		}
	}
	n := len(m.sessions)
	m.mu.Unlock()

	for _, c := range idle {
		c.Close()
	}
	if len(idle) > 0 {
		m.opts.Metrics.ActiveSessions.Set(float64(n))
		m.opts.Logger.Info("reaped idle sessions", "count", len(idle), "remaining", n)
	}
	return len(idle)
}

// Run reaps idle sessions periodically until ctx is cancelled, then closes
// every remaining session.
func (m *Manager) Run(ctx context.Context) error {
	ticker := m.opts.Clock.NewTicker(m.reapInterval())
	defer ticker.Stop()
	defer m.CloseAll()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.Chan():
			m.Reap()
		}
	}
}

// CloseAll closes every live session.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	all := m.sessions
	m.sessions = make(map[string]*Coordinator)
	m.mu.Unlock()

	for _, c := range all {
		c.Close()
	}
	m.opts.Metrics.ActiveSessions.Set(0)
}

func (m *Manager) reapInterval() time.Duration {
	return max(m.idleTimeout/2, minReapInterval)
}
