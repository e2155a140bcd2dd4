package directory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"scanbridge/internal/backend"
	"scanbridge/internal/records"
	"scanbridge/pkg/tenants"
)

type fakeTokens struct {
	token string
	err   error
	calls int
}

func (f *fakeTokens) Token(ctx context.Context, tenantID string) (string, error) {
	f.calls++
	return f.token, f.err
}

type fakeFetcher struct {
	pages [][]backend.RawRecord
	err   error
	calls int
}

func (f *fakeFetcher) FilterRecords(ctx context.Context, url, token string, q backend.FilterQuery) ([]backend.RawRecord, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	page := q.Drop / q.Take
	if page >= len(f.pages) {
		return nil, nil
	}
	return f.pages[page], nil
}

func rawLocation(id float64, name string) backend.RawRecord {
	return backend.RawRecord{"recordId": id, "name": name}
}

func newTestService(t *testing.T, tokens *fakeTokens, fetcher *fakeFetcher) (*Service, Store) {
	t.Helper()
	store, err := NewDiskStore(t.TempDir())
	require.NoError(t, err)
	reg := tenants.NewMemoryRegistry("acme", tenants.Endpoints{FilterURL: "http://backend/filter"}, true, zap.NewNop().Sugar())
	require.NoError(t, reg.Create(context.Background(), tenants.Tenant{ID: "acme", BackendTenant: "acme-prod", DisplayName: "Acme"}))
	svc := NewService(store, tokens, fetcher, reg, records.NewHeuristicExtractor(), NewInprocLocker(), 7*24*time.Hour, 100, zap.NewNop().Sugar())
	return svc, store
}

func Test_Locations_FreshCacheSkipsBackend(t *testing.T) {
	tokens := &fakeTokens{token: "tok"}
	fetcher := &fakeFetcher{}
	svc, store := newTestService(t, tokens, fetcher)

	cached := []Location{{ID: "1", Name: "Warehouse"}}
	require.NoError(t, store.Save("acme", cached))
	require.NoError(t, store.MarkRefreshed("acme", time.Now()))

	got := svc.Locations(context.Background(), "acme", true)
	assert.Equal(t, cached, got)
	assert.Zero(t, tokens.calls, "fresh cache must not touch the token manager")
	assert.Zero(t, fetcher.calls, "fresh cache must not touch the backend")
}

func Test_Locations_BypassRebuilds(t *testing.T) {
	tokens := &fakeTokens{token: "tok"}
	fetcher := &fakeFetcher{pages: [][]backend.RawRecord{{rawLocation(1, "Rebuilt")}}}
	svc, store := newTestService(t, tokens, fetcher)

	require.NoError(t, store.Save("acme", []Location{{ID: "9", Name: "Old"}}))
	require.NoError(t, store.MarkRefreshed("acme", time.Now()))

	got := svc.Locations(context.Background(), "acme", false)
	require.Len(t, got, 1)
	assert.Equal(t, "Rebuilt", got[0].Name)
	assert.Equal(t, 1, fetcher.calls)
}

func Test_Locations_StaleServedWhenRebuildFails(t *testing.T) {
	tokens := &fakeTokens{token: "tok"}
	fetcher := &fakeFetcher{err: errors.New("backend down")}
	svc, store := newTestService(t, tokens, fetcher)

	stale := []Location{{ID: "1", Name: "Old Warehouse"}}
	require.NoError(t, store.Save("acme", stale))
	require.NoError(t, store.MarkRefreshed("acme", time.Now().Add(-30*24*time.Hour)))

	got := svc.Locations(context.Background(), "acme", true)
	assert.Equal(t, stale, got, "expired cache plus failing backend must serve stale data")
}

func Test_Locations_FallbackWhenNothingCached(t *testing.T) {
	tokens := &fakeTokens{err: errors.New("no credential")}
	svc, _ := newTestService(t, tokens, &fakeFetcher{})

	got := svc.Locations(context.Background(), "acme", true)
	require.Len(t, got, 2)
	assert.Equal(t, "Warehouse A (Fallback)", got[0].Name)
	assert.Equal(t, "Laboratory (Fallback)", got[1].Name)
}

func Test_Rebuild_PersistsAndMarksSuccess(t *testing.T) {
	tokens := &fakeTokens{token: "tok"}
	fetcher := &fakeFetcher{pages: [][]backend.RawRecord{{
		rawLocation(1, "Warehouse"),
		rawLocation(2, "Lab"),
		{"fields": "malformed, no id"},
	}}}
	svc, store := newTestService(t, tokens, fetcher)

	require.NoError(t, svc.Rebuild(context.Background(), "acme"))

	locs, ok, err := store.Load("acme")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, locs, 2, "malformed record is skipped, not fatal")

	m, ok, err := store.Meta("acme")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, StatusSuccess, m.Status)
	assert.WithinDuration(t, time.Now(), m.LastRefreshed, 5*time.Second)
}

func Test_Rebuild_EmptyResultPreservesCache(t *testing.T) {
	tokens := &fakeTokens{token: "tok"}
	fetcher := &fakeFetcher{pages: [][]backend.RawRecord{}}
	svc, store := newTestService(t, tokens, fetcher)

	good := []Location{{ID: "1", Name: "Warehouse"}}
	require.NoError(t, store.Save("acme", good))

	err := svc.Rebuild(context.Background(), "acme")
	assert.Error(t, err)

	locs, ok, lerr := store.Load("acme")
	require.NoError(t, lerr)
	require.True(t, ok)
	assert.Equal(t, good, locs, "empty rebuild must not replace good data with nothing")

	m, _, _ := store.Meta("acme")
	assert.Equal(t, StatusError, m.Status)
}

func Test_Rebuild_TokenFailureRecordsError(t *testing.T) {
	tokens := &fakeTokens{err: errors.New("refresh failed")}
	svc, store := newTestService(t, tokens, &fakeFetcher{})

	err := svc.Rebuild(context.Background(), "acme")
	assert.Error(t, err)

	m, ok, merr := store.Meta("acme")
	require.NoError(t, merr)
	require.True(t, ok)
	assert.Equal(t, StatusError, m.Status)
	assert.Contains(t, m.Message, "authentication failed")
}

func Test_Rebuild_Paginates(t *testing.T) {
	page1 := make([]backend.RawRecord, 100)
	for i := range page1 {
		page1[i] = rawLocation(float64(i+1), "Loc")
	}
	fetcher := &fakeFetcher{pages: [][]backend.RawRecord{page1, {rawLocation(999, "Tail")}}}
	svc, store := newTestService(t, &fakeTokens{token: "tok"}, fetcher)

	require.NoError(t, svc.Rebuild(context.Background(), "acme"))
	assert.Equal(t, 2, fetcher.calls)

	locs, _, err := store.Load("acme")
	require.NoError(t, err)
	assert.Len(t, locs, 101)
}

func Test_Rebuild_LockedTenantSkips(t *testing.T) {
	svc, _ := newTestService(t, &fakeTokens{token: "tok"}, &fakeFetcher{})
	release, ok := svc.locker.TryLock(context.Background(), "acme")
	require.True(t, ok)
	defer release()

	err := svc.Rebuild(context.Background(), "acme")
	assert.ErrorIs(t, err, ErrRebuildInProgress)
}

func Test_Status_ReportsPerTenant(t *testing.T) {
	svc, store := newTestService(t, &fakeTokens{token: "tok"}, &fakeFetcher{})
	require.NoError(t, store.Save("acme", []Location{{ID: "1", Name: "W"}}))
	require.NoError(t, store.MarkRefreshed("acme", time.Now()))

	next := time.Now().Add(time.Hour)
	statuses, err := svc.Status(context.Background(), &next)
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	st := statuses[0]
	assert.Equal(t, "acme", st.TenantID)
	assert.True(t, st.Exists)
	assert.Equal(t, 1, st.Locations)
	assert.False(t, st.Expired)
	assert.Equal(t, StatusSuccess, st.Status)
	require.NotNil(t, st.NextScheduled)
}
