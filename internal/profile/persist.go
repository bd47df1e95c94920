package profile

import (
	"context"
	"errors"
	"sync"
)

// ErrNotFound marks a user with no persisted profile.
var ErrNotFound = errors.New("profile not found")

// Persistence is the out-of-band storage for profiles. Implementations may
// block on I/O; the Store keeps them off the decision path.
type Persistence interface {
	Load(ctx context.Context, userID string) (*Profile, error)
	Save(ctx context.Context, p *Profile) error
	Close() error
}

// Memory is an in-process Persistence, used in tests and when no database
// path is configured.
type Memory struct {
	mu       sync.Mutex
	profiles map[string]*Profile
}

func NewMemory() *Memory {
	return &Memory{profiles: make(map[string]*Profile)}
}

func (m *Memory) Load(_ context.Context, userID string) (*Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return p.clone(), nil
}

func (m *Memory) Save(_ context.Context, p *Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[p.UserID] = p.clone()
	return nil
}

func (m *Memory) Close() error { return nil }
