package adminapi

import (
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"scanbridge/pkg/middleware"
)

// Handler builds the HTTP handler with routes and middleware.
func (a *App) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID())
	r.Use(middleware.Recover(a.log))
	r.Use(middleware.Tracing(a.cfg))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	// Operator-facing API
	r.Get("/api/tenants", a.listTenants)
	r.Get("/api/locations/{tenant}", a.getLocations)
	r.Post("/api/relocate/{tenant}", a.relocate)
	r.Post("/api/sign-in", a.signIn)

	allowed := []string{"http://localhost:3001"}
	if v := strings.TrimSpace(os.Getenv("ADMIN_CORS_ORIGINS")); v != "" {
		parts := strings.Split(v, ",")
		tmp := make([]string, 0, len(parts))
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				tmp = append(tmp, s)
			}
		}
		if len(tmp) > 0 {
			allowed = tmp
		}
	}

	r.Route("/admin", func(ar chi.Router) {
		ar.Use(cors(allowed))
		ar.Use(a.adminAuth)
		ar.Post("/tenants", a.createTenant)
		ar.Put("/tenants/{id}", a.updateTenant)
		ar.Delete("/tenants/{id}", a.deleteTenant)
		ar.Put("/tenants/{id}/credential", a.setCredential)
		ar.Post("/reload-config", a.reloadConfig)
		ar.Get("/cache/status", a.cacheStatus)
		ar.Post("/cache/refresh", a.refreshAll)
		ar.Post("/cache/refresh/{id}", a.refreshOne)
	})

	return r
}
