// internal/directory/service.go
package directory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"scanbridge/internal/backend"
	"scanbridge/internal/metrics"
	"scanbridge/internal/records"
	"scanbridge/pkg/tenants"
)

// Filter constants for the backend's location template: only valid location
// records, over a wide but bounded change window.
const (
	locationQueryTerm = "Result.Status == 'Valid'"
	locationTemplate  = "AC_Location"
	changedFrom       = "2018-03-03T00:00:00Z"
	changedTo         = "2028-03-04T00:00:00Z"
	maxFilterPages    = 50
)

var ErrRebuildInProgress = errors.New("directory rebuild already in progress")

// TokenSource is the slice of the token manager the service needs.
type TokenSource interface {
	Token(ctx context.Context, tenantID string) (string, error)
}

// Fetcher is the slice of the backend client the service needs.
type Fetcher interface {
	FilterRecords(ctx context.Context, url, token string, q backend.FilterQuery) ([]backend.RawRecord, error)
}

// Service owns the cached location directory per tenant: freshness checks,
// synchronous rebuilds and the degradation ladder down to hardcoded data.
type Service struct {
	store     Store
	tokens    TokenSource
	client    Fetcher
	reg       tenants.Registry
	extractor records.Extractor
	locker    Locker
	maxAge    time.Duration
	pageSize  int
	log       *zap.SugaredLogger

	now func() time.Time
}

func NewService(store Store, tokens TokenSource, client Fetcher, reg tenants.Registry,
	extractor records.Extractor, locker Locker, maxAge time.Duration, pageSize int,
	log *zap.SugaredLogger) *Service {
	if pageSize <= 0 {
		pageSize = 100
	}
	return &Service{
		store: store, tokens: tokens, client: client, reg: reg,
		extractor: extractor, locker: locker, maxAge: maxAge, pageSize: pageSize,
		log: log, now: time.Now,
	}
}

// Locations returns the tenant's location directory. It never fails outward:
// fresh cache, then rebuild, then stale cache, then hardcoded fallback.
func (s *Service) Locations(ctx context.Context, tenantID string, allowCache bool) []Location {
	if allowCache && !s.expired(tenantID) {
		if locs, ok, err := s.store.Load(tenantID); err == nil && ok {
			metrics.DirectoryServes.WithLabelValues("fresh").Inc()
			return locs
		} else if err != nil {
			s.log.Warnw("cached locations unreadable", "tenant", tenantID, "err", err)
		}
	}

	if err := s.Rebuild(ctx, tenantID); err == nil {
		if locs, ok, lerr := s.store.Load(tenantID); lerr == nil && ok {
			metrics.DirectoryServes.WithLabelValues("rebuilt").Inc()
			return locs
		}
	} else {
		s.log.Warnw("directory rebuild failed", "tenant", tenantID, "err", err)
	}

	if locs, ok, err := s.store.Load(tenantID); err == nil && ok {
		s.log.Warnw("serving stale location directory", "tenant", tenantID)
		metrics.DirectoryServes.WithLabelValues("stale").Inc()
		return locs
	}

	s.log.Warnw("serving fallback location directory", "tenant", tenantID)
	metrics.DirectoryServes.WithLabelValues("fallback").Inc()
	return FallbackLocations()
}

// Rebuild fetches the tenant's locations from the backend and replaces the
// persisted cache. A rebuild that would yield an empty directory fails
// instead of overwriting previously good data.
func (s *Service) Rebuild(ctx context.Context, tenantID string) error {
	release, ok := s.locker.TryLock(ctx, tenantID)
	if !ok {
		return ErrRebuildInProgress
	}
	defer release()

	if err := s.store.SetStatus(tenantID, StatusRefreshing, ""); err != nil {
		s.log.Warnw("status update failed", "tenant", tenantID, "err", err)
	}

	tok, err := s.tokens.Token(ctx, tenantID)
	if err != nil {
		s.fail(tenantID, fmt.Sprintf("authentication failed: %v", err))
		return fmt.Errorf("rebuild %s: %w", tenantID, err)
	}

	t, err := s.reg.Resolve(ctx, tenantID)
	if err != nil {
		s.fail(tenantID, err.Error())
		return err
	}

	raws, err := s.fetchAll(ctx, t.Endpoints.FilterURL, tok)
	if err != nil {
		s.fail(tenantID, err.Error())
		return fmt.Errorf("rebuild %s: %w", tenantID, err)
	}

	locs := s.transform(tenantID, raws)
	if len(locs) == 0 {
		s.fail(tenantID, "backend returned no usable locations")
		return fmt.Errorf("rebuild %s: no usable locations", tenantID)
	}

	if err := s.store.Save(tenantID, locs); err != nil {
		s.fail(tenantID, err.Error())
		return fmt.Errorf("persist locations for %s: %w", tenantID, err)
	}
	if err := s.store.MarkRefreshed(tenantID, s.now()); err != nil {
		s.log.Warnw("metadata update failed", "tenant", tenantID, "err", err)
	}
	metrics.DirectoryRebuilds.WithLabelValues("success").Inc()
	s.log.Infow("location directory rebuilt", "tenant", tenantID, "locations", len(locs))
	return nil
}

func (s *Service) fail(tenantID, message string) {
	metrics.DirectoryRebuilds.WithLabelValues("error").Inc()
	if err := s.store.SetStatus(tenantID, StatusError, message); err != nil {
		s.log.Warnw("status update failed", "tenant", tenantID, "err", err)
	}
}

func (s *Service) fetchAll(ctx context.Context, filterURL, token string) ([]backend.RawRecord, error) {
	var all []backend.RawRecord
	for page := 0; page < maxFilterPages; page++ {
		q := backend.FilterQuery{
			QueryTerm:                locationQueryTerm,
			RecordTemplateIdentifier: locationTemplate,
			Drop:                     page * s.pageSize,
			Take:                     s.pageSize,
			LastChangedOnFrom:        changedFrom,
			LastChangedOnTo:          changedTo,
		}
		batch, err := s.client.FilterRecords(ctx, filterURL, token, q)
		if err != nil {
			return nil, err
		}
		all = append(all, batch...)
		if len(batch) < s.pageSize {
			break
		}
	}
	return all, nil
}

// transform converts raw records into Locations, skipping any record whose
// extraction fails so one malformed record cannot abort the rebuild.
func (s *Service) transform(tenantID string, raws []backend.RawRecord) []Location {
	var out []Location
	for _, raw := range raws {
		loc, err := s.transformOne(raw)
		if err != nil {
			s.log.Warnw("skipping unparseable location record", "tenant", tenantID, "err", err)
			continue
		}
		out = append(out, loc)
	}
	return out
}

func (s *Service) transformOne(raw backend.RawRecord) (loc Location, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("extract location: %v", r)
		}
	}()
	id := s.extractor.ID(raw)
	if id == "" {
		return Location{}, errors.New("record has no id")
	}
	return Location{
		ID:           id,
		Name:         s.extractor.Name(raw),
		Sublocations: s.extractor.Children(raw),
	}, nil
}

func (s *Service) expired(tenantID string) bool {
	m, ok, err := s.store.Meta(tenantID)
	if err != nil || !ok {
		return true
	}
	if m.LastRefreshed.IsZero() {
		return true
	}
	return s.now().Sub(m.LastRefreshed) > s.maxAge
}

// Status reports per-tenant cache diagnostics for the admin surface.
// nextScheduled is the refresh driver's next firing time, nil when the
// driver is not running.
func (s *Service) Status(ctx context.Context, nextScheduled *time.Time) ([]TenantStatus, error) {
	list, err := s.reg.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]TenantStatus, 0, len(list))
	for _, t := range list {
		st := TenantStatus{TenantID: t.ID, Status: StatusUnknown, Expired: true, NextScheduled: nextScheduled}
		if locs, ok, err := s.store.Load(t.ID); err == nil && ok {
			st.Exists = true
			st.Locations = len(locs)
		}
		if m, ok, err := s.store.Meta(t.ID); err == nil && ok {
			if m.Status != "" {
				st.Status = m.Status
			}
			st.Message = m.Message
			if !m.LastRefreshed.IsZero() {
				lr := m.LastRefreshed
				st.LastRefreshed = &lr
				st.Expired = s.now().Sub(lr) > s.maxAge
			}
		}
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TenantID < out[j].TenantID })
	return out, nil
}
