// internal/token/manager.go
package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"scanbridge/internal/backend"
	"scanbridge/internal/metrics"
	"scanbridge/pkg/tenants"
)

var (
	ErrMissingCredential   = errors.New("no refresh credential configured for tenant")
	ErrTenantNotInResponse = errors.New("tenant not present in refresh response")
)

// Refresher is the slice of the backend client the manager needs.
type Refresher interface {
	RefreshTokens(ctx context.Context, url, refreshToken string) ([]backend.TenantToken, error)
}

// Manager is a cache-or-fetch primitive for per-tenant bearer tokens.
// It never retries a failed refresh; callers own fallback policy.
type Manager struct {
	reg    tenants.Registry
	client Refresher
	store  Store
	margin time.Duration
	log    *zap.SugaredLogger

	now func() time.Time
}

func NewManager(reg tenants.Registry, client Refresher, store Store, margin time.Duration, log *zap.SugaredLogger) *Manager {
	return &Manager{reg: reg, client: client, store: store, margin: margin, log: log, now: time.Now}
}

// Token returns a bearer token valid for at least the safety margin,
// refreshing from the backend when the cached one is absent or near expiry.
func (m *Manager) Token(ctx context.Context, tenantID string) (string, error) {
	t, err := m.reg.Resolve(ctx, tenantID)
	if err != nil {
		metrics.TokenRequests.WithLabelValues("error").Inc()
		return "", err
	}

	if cached, ok := m.store.Get(tenantID); ok && cached.ExpiresAt.After(m.now().Add(m.margin)) {
		m.log.Debugw("token cache hit", "tenant", tenantID)
		metrics.TokenRequests.WithLabelValues("hit").Inc()
		return cached.AccessToken, nil
	}

	if t.RefreshSecret == "" {
		metrics.TokenRequests.WithLabelValues("error").Inc()
		return "", fmt.Errorf("%w: %s", ErrMissingCredential, tenantID)
	}

	toks, err := m.client.RefreshTokens(ctx, t.Endpoints.RefreshURL, t.RefreshSecret)
	if err != nil {
		metrics.TokenRequests.WithLabelValues("error").Inc()
		m.log.Errorw("token refresh failed", "tenant", tenantID, "err", err)
		return "", fmt.Errorf("refresh token for %s: %w", tenantID, err)
	}

	var match *backend.TenantToken
	for i := range toks {
		if toks[i].Tenant == t.BackendTenant {
			match = &toks[i]
			break
		}
	}
	if match == nil {
		metrics.TokenRequests.WithLabelValues("error").Inc()
		return "", fmt.Errorf("%w: %s", ErrTenantNotInResponse, t.BackendTenant)
	}

	expiresIn := match.ExpiresIn
	if expiresIn <= 0 {
		expiresIn = 3600
	}
	m.store.Put(tenantID, Cached{
		AccessToken: match.AccessToken,
		ExpiresAt:   m.now().Add(time.Duration(expiresIn) * time.Second),
	})
	metrics.TokenRequests.WithLabelValues("refresh").Inc()
	m.log.Infow("refreshed backend token", "tenant", tenantID, "expires_in", expiresIn)
	return match.AccessToken, nil
}

// Invalidate evicts a tenant's cached token. Must be called whenever the
// tenant's stored credential changes so the next Token call re-authenticates.
func (m *Manager) Invalidate(tenantID string) {
	m.store.Invalidate(tenantID)
}

// Flush drops every cached token (config reload path).
func (m *Manager) Flush() {
	m.store.Flush()
}
