// Package session tracks the agent sessions this process has spawned.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

type State string

const (
	StateCreated         State = "created"
	StateTokenIssued     State = "token_issued"
	StateConnected       State = "connected"
	StatePipelineRunning State = "pipeline_running"
	StateStopped         State = "stopped"
	StateFailed          State = "failed"
)

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StateStopped || s == StateFailed
}

var ErrNotFound = errors.New("session not found")

type Session struct {
	ID             string    `json:"session_id"`
	Room           string    `json:"room"`
	Identity       string    `json:"identity"`
	State          State     `json:"state"`
	Error          string    `json:"error,omitempty"`
	StartedAt      time.Time `json:"started_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
}

// Manager is an in-memory session registry. Two sessions may target the
// same room; nothing here deduplicates them, and sessions live until they
// reach a terminal state on their own.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewManager() *Manager {
	return &Manager{sessions: make(map[string]*Session)}
}

func (m *Manager) Create(room, identity string) *Session {
	now := time.Now().UTC()
	s := &Session{
		ID:             uuid.NewString(),
		Room:           room,
		Identity:       identity,
		State:          StateCreated,
		StartedAt:      now,
		LastActivityAt: now,
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
	return clone(s)
}

func (m *Manager) Get(sessionID string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(s), nil
}

// SetState records a transition. Terminal states are sticky: once a session
// stops or fails, later transitions are ignored.
func (m *Manager) SetState(sessionID string, state State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	if s.State.Terminal() {
		return nil
	}
	s.State = state
	s.LastActivityAt = time.Now().UTC()
	return nil
}

// Fail marks the session failed and records the cause.
func (m *Manager) Fail(sessionID string, cause error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return ErrNotFound
	}
	if s.State.Terminal() {
		return nil
	}
	s.State = StateFailed
	if cause != nil {
		s.Error = cause.Error()
	}
	s.LastActivityAt = time.Now().UTC()
	return nil
}

func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, s := range m.sessions {
		if !s.State.Terminal() {
			count++
		}
	}
	return count
}

func (m *Manager) List() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, clone(s))
	}
	return out
}

func clone(s *Session) *Session {
	c := *s
	return &c
}
