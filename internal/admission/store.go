package admission

import (
	"context"
	"sync"

	"github.com/nqh2610/lophoconline-sub007/internal/domain"
)

// MemoryStore keeps sessions in a map. Used in standalone mode and tests;
// production reads from Postgres.
type MemoryStore struct {
	mu       sync.RWMutex
	byToken  map[string]*domain.Session
	sessions map[string]*domain.Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byToken:  make(map[string]*domain.Session),
		sessions: make(map[string]*domain.Session),
	}
}

// Put registers or replaces a session. The booking collaborator is the only
// caller outside of tests.
func (m *MemoryStore) Put(s *domain.Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.sessions[s.ID]; ok {
		delete(m.byToken, old.TutorToken)
		delete(m.byToken, old.StudentToken)
	}
	c := *s
	m.sessions[c.ID] = &c
	m.byToken[c.TutorToken] = &c
	m.byToken[c.StudentToken] = &c
}

func (m *MemoryStore) SessionByToken(_ context.Context, token string) (*domain.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.byToken[token]
	if !ok {
		return nil, domain.ErrUnknownToken
	}
	c := *s
	return &c, nil
}
