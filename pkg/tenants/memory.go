// pkg/tenants/memory.go
package tenants

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

type memRegistry struct {
	log      *zap.SugaredLogger
	strict   bool
	deflt    string
	defaults Endpoints

	mu      sync.RWMutex
	tenants map[string]Tenant
}

// NewMemoryRegistry is used by tests and dev setups that do not want a
// registry file on disk.
func NewMemoryRegistry(defaultTenant string, defaults Endpoints, strict bool, log *zap.SugaredLogger) Registry {
	return &memRegistry{
		log:      log,
		strict:   strict,
		deflt:    defaultTenant,
		defaults: defaults,
		tenants:  map[string]Tenant{},
	}
}

func (m *memRegistry) Resolve(ctx context.Context, id string) (Resolved, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tenants[id]
	if !ok {
		if m.strict {
			return Resolved{}, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		t, ok = m.tenants[m.deflt]
		if !ok {
			return Resolved{}, fmt.Errorf("%w: %s", ErrNotFound, m.deflt)
		}
	}
	return resolve(t, m.defaults), nil
}

func (m *memRegistry) Get(ctx context.Context, id string) (Tenant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if t, ok := m.tenants[id]; ok {
		return t, nil
	}
	return Tenant{}, fmt.Errorf("%w: %s", ErrNotFound, id)
}

func (m *memRegistry) List(ctx context.Context) ([]Tenant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Tenant, 0, len(m.tenants))
	for _, t := range m.tenants {
		out = append(out, t)
	}
	return out, nil
}

func (m *memRegistry) Create(ctx context.Context, t Tenant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tenants[t.ID]; ok {
		return fmt.Errorf("%w: %s", ErrExists, t.ID)
	}
	m.tenants[t.ID] = t
	return nil
}

func (m *memRegistry) Update(ctx context.Context, t Tenant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev, ok := m.tenants[t.ID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, t.ID)
	}
	if t.StoredRefreshToken == "" {
		t.StoredRefreshToken = prev.StoredRefreshToken
	}
	m.tenants[t.ID] = t
	return nil
}

func (m *memRegistry) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tenants[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if id == m.deflt {
		return ErrDefaultTenant
	}
	delete(m.tenants, id)
	return nil
}

func (m *memRegistry) SetCredential(ctx context.Context, id, secret string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tenants[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	t.StoredRefreshToken = secret
	m.tenants[id] = t
	return nil
}

func (m *memRegistry) DefaultTenant() string            { return m.deflt }
func (m *memRegistry) DefaultURLs() Endpoints           { return m.defaults }
func (m *memRegistry) Reload(ctx context.Context) error { return nil }
