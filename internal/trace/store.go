package trace

import (
	"errors"
	"sync"
	"time"

	"murmur/arbiter/internal/types"
)

var ErrSessionExists = errors.New("session already exists")

// Session is one host conversation bound to the event channel.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	Status    string    `json:"status"`
}

// Store keeps sessions and their decision traces in memory. Every decision the
// engine emits lands here so hosts can audit why playback was or was not cut.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	traces   map[string][]types.Reasoning
}

func New() *Store {
	return &Store{
		sessions: make(map[string]*Session),
		traces:   make(map[string][]types.Reasoning),
	}
}

func (s *Store) CreateSession(sess *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sess.ID]; ok {
		return ErrSessionExists
	}
	s.sessions[sess.ID] = sess
	s.traces[sess.ID] = []types.Reasoning{}
	return nil
}

func (s *Store) GetSession(id string) *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions[id]
}

func (s *Store) SetStatus(id, status string) {
	s.mu.Lock()
	if sess, ok := s.sessions[id]; ok {
		sess.Status = status
	}
	s.mu.Unlock()
}

// Append records one decision. Traces are capped per session so a long call
// cannot grow memory without bound; the oldest entries are dropped.
func (s *Store) Append(sessionID string, r types.Reasoning) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.traces[sessionID] = append(s.traces[sessionID], r)
	const maxTrace = 500
	if l := len(s.traces[sessionID]); l > maxTrace {
		s.traces[sessionID] = append([]types.Reasoning(nil), s.traces[sessionID][l-maxTrace:]...)
	}
}

func (s *Store) List(sessionID string) []types.Reasoning {
	s.mu.RLock()
	defer s.mu.RUnlock()
	src := s.traces[sessionID]
	out := make([]types.Reasoning, len(src))
	copy(out, src)
	return out
}

func (s *Store) ListSessionIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		out = append(out, id)
	}
	return out
}
