// Package session persists the ambient identity-service session between
// calls and process restarts.
package session

import (
	"context"
	"sync"

	"github.com/campusmarket/accountkit/internal/domain"
)

// Store holds at most one session. Load returns (nil, nil) when there is none.
type Store interface {
	Load(ctx context.Context) (*domain.Session, error)
	Save(ctx context.Context, s *domain.Session) error
	Clear(ctx context.Context) error
}

type MemoryStore struct {
	mu      sync.RWMutex
	current *domain.Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Load(context.Context) (*domain.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return nil, nil
	}
	cp := *m.current
	return &cp, nil
}

func (m *MemoryStore) Save(_ context.Context, s *domain.Session) error {
	if s == nil {
		return ErrNilSession
	}
	cp := *s
	m.mu.Lock()
	m.current = &cp
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Clear(context.Context) error {
	m.mu.Lock()
	m.current = nil
	m.mu.Unlock()
	return nil
}
