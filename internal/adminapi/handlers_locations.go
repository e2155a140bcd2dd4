package adminapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"scanbridge/pkg/tenants"
)

// getLocations serves the tenant's location directory, bypassing the cache
// when ?refresh=1 (or true) is set. It always returns a list.
func (a *App) getLocations(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenant")
	if _, err := a.reg.Get(r.Context(), tenantID); err != nil {
		if errors.Is(err, tenants.ErrNotFound) && a.cfg.StrictTenantLookup {
			writeProblem(w, "tenant-not-found", err.Error(), http.StatusNotFound)
			return
		}
	}
	allowCache := true
	if v := r.URL.Query().Get("refresh"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil && b {
			allowCache = false
		}
	}
	writeJSON(w, a.dir.Locations(r.Context(), tenantID, allowCache), http.StatusOK)
}

func (a *App) cacheStatus(w http.ResponseWriter, r *http.Request) {
	next := a.driver.NextRun()
	statuses, err := a.dir.Status(r.Context(), &next)
	if err != nil {
		writeProblem(w, "status-unavailable", err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, statuses, http.StatusOK)
}

// refreshAll kicks off a background rebuild of every tenant's directory and
// returns immediately.
func (a *App) refreshAll(w http.ResponseWriter, r *http.Request) {
	go a.driver.RefreshAll(context.Background())
	writeJSON(w, map[string]any{"status": "accepted", "message": "Refresh started for all tenants"}, http.StatusAccepted)
}

func (a *App) refreshOne(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := a.reg.Get(r.Context(), id); err != nil {
		writeProblem(w, "tenant-not-found", err.Error(), http.StatusNotFound)
		return
	}
	go func() {
		if err := a.dir.Rebuild(context.Background(), id); err != nil {
			a.log.Warnw("manual refresh failed", "tenant", id, "err", err)
		}
	}()
	writeJSON(w, map[string]any{"status": "accepted", "message": "Refresh started for tenant " + id}, http.StatusAccepted)
}
