package wizard

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrSessionNotFound covers both unknown session IDs and sessions owned by
// another user, so IDs can't be probed
var ErrSessionNotFound = errors.New("wizard session not found")

// Manager is the in-memory registry of active wizard sessions. Sessions live
// only for the duration of a visit; nothing about the edit history survives
// the session.
type Manager struct {
	mu         sync.Mutex
	sessions   map[string]*Session
	ttl        time.Duration
	ocrTimeout time.Duration
}

// NewManager creates a session registry. Sessions idle longer than ttl are
// evicted by Sweep; ocrTimeout bounds every recognition and enhancement call.
func NewManager(ttl, ocrTimeout time.Duration) *Manager {
	return &Manager{
		sessions:   make(map[string]*Session),
		ttl:        ttl,
		ocrTimeout: ocrTimeout,
	}
}

// Create starts a new wizard session for a user
func (m *Manager) Create(userID int) *Session {
	s := newSession(uuid.NewString(), userID, m.ocrTimeout)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
	return s
}

// Get returns the session if it exists and belongs to the user
func (m *Manager) Get(id string, userID int) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok || s.UserID != userID {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Remove discards a session
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}

// Count returns the number of live sessions
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Sweep evicts sessions idle longer than the configured TTL and returns how
// many were removed
func (m *Manager) Sweep() int {
	cutoff := time.Now().Add(-m.ttl)

	m.mu.Lock()
	defer m.mu.Unlock()

	evicted := 0
	for id, s := range m.sessions {
		if s.idleSince().Before(cutoff) {
			delete(m.sessions, id)
			evicted++
		}
	}
	return evicted
}
