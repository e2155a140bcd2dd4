package token

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"scanbridge/internal/backend"
	"scanbridge/pkg/tenants"
)

type fakeRefresher struct {
	calls  int
	tokens []backend.TenantToken
	err    error
	secret string
}

func (f *fakeRefresher) RefreshTokens(ctx context.Context, url, refreshToken string) ([]backend.TenantToken, error) {
	f.calls++
	f.secret = refreshToken
	return f.tokens, f.err
}

func newTestRegistry(t *testing.T, strict bool) tenants.Registry {
	t.Helper()
	reg := tenants.NewMemoryRegistry("acme", tenants.Endpoints{RefreshURL: "http://backend/refresh"}, strict, zap.NewNop().Sugar())
	err := reg.Create(context.Background(), tenants.Tenant{
		ID:                 "acme",
		BackendTenant:      "acme-prod",
		DisplayName:        "Acme",
		StoredRefreshToken: "secret-1",
	})
	require.NoError(t, err)
	return reg
}

func newTestManager(t *testing.T, reg tenants.Registry, f *fakeRefresher) *Manager {
	t.Helper()
	return NewManager(reg, f, NewMemoryStore(), 300*time.Second, zap.NewNop().Sugar())
}

func Test_Token_CacheHit(t *testing.T) {
	f := &fakeRefresher{tokens: []backend.TenantToken{{Tenant: "acme-prod", AccessToken: "tok-1", ExpiresIn: 3600}}}
	m := newTestManager(t, newTestRegistry(t, true), f)

	tok, err := m.Token(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", tok)

	tok, err = m.Token(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", tok)
	assert.Equal(t, 1, f.calls, "second call must be served from cache")
}

func Test_Token_RefreshesNearExpiry(t *testing.T) {
	f := &fakeRefresher{tokens: []backend.TenantToken{{Tenant: "acme-prod", AccessToken: "tok-2", ExpiresIn: 3600}}}
	m := newTestManager(t, newTestRegistry(t, true), f)

	// Cached token expires in 120s, inside the 300s safety margin.
	m.store.Put("acme", Cached{AccessToken: "old", ExpiresAt: time.Now().Add(120 * time.Second)})

	tok, err := m.Token(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, "tok-2", tok)
	assert.Equal(t, 1, f.calls)
}

func Test_Token_ReusesOutsideMargin(t *testing.T) {
	f := &fakeRefresher{}
	m := newTestManager(t, newTestRegistry(t, true), f)

	m.store.Put("acme", Cached{AccessToken: "still-good", ExpiresAt: time.Now().Add(10 * time.Minute)})

	tok, err := m.Token(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, "still-good", tok)
	assert.Equal(t, 0, f.calls)
}

func Test_Token_InvalidateForcesNewCredential(t *testing.T) {
	reg := newTestRegistry(t, true)
	f := &fakeRefresher{tokens: []backend.TenantToken{{Tenant: "acme-prod", AccessToken: "tok-a", ExpiresIn: 3600}}}
	m := newTestManager(t, reg, f)

	_, err := m.Token(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, "secret-1", f.secret)

	require.NoError(t, reg.SetCredential(context.Background(), "acme", "secret-2"))
	m.Invalidate("acme")
	f.tokens = []backend.TenantToken{{Tenant: "acme-prod", AccessToken: "tok-b", ExpiresIn: 3600}}

	tok, err := m.Token(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, "tok-b", tok)
	assert.Equal(t, "secret-2", f.secret, "refresh must use the new credential")
}

func Test_Token_UnknownTenantStrict(t *testing.T) {
	m := newTestManager(t, newTestRegistry(t, true), &fakeRefresher{})
	_, err := m.Token(context.Background(), "nope")
	assert.ErrorIs(t, err, tenants.ErrNotFound)
}

func Test_Token_UnknownTenantLenient(t *testing.T) {
	f := &fakeRefresher{tokens: []backend.TenantToken{{Tenant: "acme-prod", AccessToken: "tok-d", ExpiresIn: 3600}}}
	m := newTestManager(t, newTestRegistry(t, false), f)

	tok, err := m.Token(context.Background(), "nope")
	require.NoError(t, err)
	assert.Equal(t, "tok-d", tok, "lenient lookup substitutes the default tenant")
}

func Test_Token_MissingCredential(t *testing.T) {
	reg := tenants.NewMemoryRegistry("bare", tenants.Endpoints{}, true, zap.NewNop().Sugar())
	require.NoError(t, reg.Create(context.Background(), tenants.Tenant{ID: "bare", BackendTenant: "bare-prod"}))
	m := newTestManager(t, reg, &fakeRefresher{})

	_, err := m.Token(context.Background(), "bare")
	assert.ErrorIs(t, err, ErrMissingCredential)
}

func Test_Token_RefreshFailure(t *testing.T) {
	f := &fakeRefresher{err: errors.New("connection refused")}
	m := newTestManager(t, newTestRegistry(t, true), f)

	_, err := m.Token(context.Background(), "acme")
	assert.Error(t, err)
	_, ok := m.store.Get("acme")
	assert.False(t, ok, "failed refresh must not cache anything")
}

func Test_Token_TenantNotInResponse(t *testing.T) {
	f := &fakeRefresher{tokens: []backend.TenantToken{{Tenant: "someone-else", AccessToken: "x", ExpiresIn: 3600}}}
	m := newTestManager(t, newTestRegistry(t, true), f)

	_, err := m.Token(context.Background(), "acme")
	assert.ErrorIs(t, err, ErrTenantNotInResponse)
}

func Test_Token_DefaultExpiry(t *testing.T) {
	f := &fakeRefresher{tokens: []backend.TenantToken{{Tenant: "acme-prod", AccessToken: "tok-e"}}}
	m := newTestManager(t, newTestRegistry(t, true), f)

	_, err := m.Token(context.Background(), "acme")
	require.NoError(t, err)
	cached, ok := m.store.Get("acme")
	require.True(t, ok)
	assert.InDelta(t, 3600, time.Until(cached.ExpiresAt).Seconds(), 5, "missing expiresIn defaults to an hour")
}
