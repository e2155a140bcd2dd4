package token

import (
	"sync"
	"time"
)

// Cached is one tenant's bearer token. Tokens live in process memory only;
// a restart forces a refresh.
type Cached struct {
	AccessToken string
	ExpiresAt   time.Time
}

// Store holds cached tokens keyed by tenant id. Injected so tests can
// substitute a fake and so the single-process assumption stays explicit.
type Store interface {
	Get(tenantID string) (Cached, bool)
	Put(tenantID string, tok Cached)
	Invalidate(tenantID string)
	Flush()
}

type memStore struct {
	mu     sync.Mutex
	tokens map[string]Cached
}

func NewMemoryStore() Store {
	return &memStore{tokens: map[string]Cached{}}
}

func (s *memStore) Get(tenantID string) (Cached, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[tenantID]
	return t, ok
}

func (s *memStore) Put(tenantID string, tok Cached) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[tenantID] = tok
}

func (s *memStore) Invalidate(tenantID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, tenantID)
}

func (s *memStore) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = map[string]Cached{}
}
