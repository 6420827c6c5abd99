package checkout

import (
	"sync"

	"github.com/google/uuid"
)

// Manager keeps one Session per POS terminal.
type Manager struct {
	pipeline Pipeline

	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewManager(p Pipeline) *Manager {
	return &Manager{
		pipeline: p,
		sessions: make(map[string]*Session),
	}
}

func (m *Manager) Create() *Session {
	s := NewSession(uuid.NewString(), m.pipeline)

	m.mu.Lock()
	m.sessions[s.ID()] = s
	m.mu.Unlock()
	return s
}

func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

func (m *Manager) Delete(id string) bool {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if ok {
		s.Close()
	}
	return ok
}

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
