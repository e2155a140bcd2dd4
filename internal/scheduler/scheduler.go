// internal/scheduler/scheduler.go
package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"scanbridge/pkg/tenants"
)

// Rebuilder is the slice of the directory service the driver needs.
type Rebuilder interface {
	Rebuild(ctx context.Context, tenantID string) error
}

// Driver proactively rebuilds every tenant's location directory on a fixed
// period so interactive reads stay on the cached fast path. It is purely an
// optimization: per-tenant failures are logged and never halt the schedule.
type Driver struct {
	reg      tenants.Registry
	dir      Rebuilder
	interval time.Duration
	log      *zap.SugaredLogger

	mu   sync.Mutex
	next time.Time
}

func NewDriver(reg tenants.Registry, dir Rebuilder, interval time.Duration, log *zap.SugaredLogger) *Driver {
	return &Driver{reg: reg, dir: dir, interval: interval, log: log}
}

// Run blocks until ctx is cancelled, firing a refresh pass every interval.
// When warmup is true one pass runs immediately.
func (d *Driver) Run(ctx context.Context, warmup bool) {
	d.setNext(time.Now().Add(d.interval))
	if warmup {
		d.RefreshAll(ctx)
	}
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			d.log.Infow("refresh driver stopped")
			return
		case <-ticker.C:
			d.setNext(time.Now().Add(d.interval))
			d.RefreshAll(ctx)
		}
	}
}

// RefreshAll rebuilds every registered tenant's directory, best effort.
func (d *Driver) RefreshAll(ctx context.Context) {
	list, err := d.reg.List(ctx)
	if err != nil {
		d.log.Errorw("scheduled refresh: listing tenants failed", "err", err)
		return
	}
	d.log.Infow("scheduled refresh pass", "tenants", len(list))
	for _, t := range list {
		if ctx.Err() != nil {
			return
		}
		if err := d.dir.Rebuild(ctx, t.ID); err != nil {
			d.log.Warnw("scheduled refresh failed", "tenant", t.ID, "err", err)
		}
	}
}

// NextRun reports when the next scheduled pass fires.
func (d *Driver) NextRun() time.Time {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.next
}

func (d *Driver) setNext(t time.Time) {
	d.mu.Lock()
	d.next = t
	d.mu.Unlock()
}
