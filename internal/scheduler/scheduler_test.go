package scheduler

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"scanbridge/pkg/tenants"
)

type fakeRebuilder struct {
	mu      sync.Mutex
	rebuilt []string
	fail    map[string]error
}

func (f *fakeRebuilder) Rebuild(ctx context.Context, tenantID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rebuilt = append(f.rebuilt, tenantID)
	return f.fail[tenantID]
}

func (f *fakeRebuilder) seen() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := append([]string(nil), f.rebuilt...)
	sort.Strings(out)
	return out
}

func newTestRegistry(t *testing.T, ids ...string) tenants.Registry {
	t.Helper()
	reg := tenants.NewMemoryRegistry(ids[0], tenants.Endpoints{}, true, zap.NewNop().Sugar())
	for _, id := range ids {
		require.NoError(t, reg.Create(context.Background(), tenants.Tenant{ID: id, BackendTenant: id}))
	}
	return reg
}

func Test_RefreshAll_CoversEveryTenant(t *testing.T) {
	reg := newTestRegistry(t, "default", "acme", "globex")
	fr := &fakeRebuilder{}
	d := NewDriver(reg, fr, time.Hour, zap.NewNop().Sugar())

	d.RefreshAll(context.Background())

	assert.Equal(t, []string{"acme", "default", "globex"}, fr.seen())
}

func Test_RefreshAll_FailureDoesNotStopOthers(t *testing.T) {
	reg := newTestRegistry(t, "default", "acme", "globex")
	fr := &fakeRebuilder{fail: map[string]error{"acme": errors.New("backend down")}}
	d := NewDriver(reg, fr, time.Hour, zap.NewNop().Sugar())

	d.RefreshAll(context.Background())

	assert.Equal(t, []string{"acme", "default", "globex"}, fr.seen())
}

func Test_RefreshAll_CancelledContextStops(t *testing.T) {
	reg := newTestRegistry(t, "default", "acme")
	fr := &fakeRebuilder{}
	d := NewDriver(reg, fr, time.Hour, zap.NewNop().Sugar())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d.RefreshAll(ctx)

	assert.Empty(t, fr.seen())
}

func Test_Run_WarmupFiresImmediately(t *testing.T) {
	reg := newTestRegistry(t, "default")
	fr := &fakeRebuilder{}
	d := NewDriver(reg, fr, time.Hour, zap.NewNop().Sugar())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx, true)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		return len(fr.seen()) == 1
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("driver did not stop on cancel")
	}

	assert.WithinDuration(t, time.Now().Add(time.Hour), d.NextRun(), 5*time.Second)
}
