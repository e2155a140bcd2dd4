package adminapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"scanbridge/internal/relocate"
	"scanbridge/pkg/tenants"
)

type relocateBody struct {
	Barcodes      []string `json:"barcodes"`
	RecordIDs     []string `json:"recordIds"` // legacy client field name, same content
	LocationID    string   `json:"locationId"`
	SublocationID string   `json:"sublocationId"`
}

// relocate moves a batch of scanned barcodes to a location/sublocation and
// returns the per-item partition.
func (a *App) relocate(w http.ResponseWriter, r *http.Request) {
	tenantID := chi.URLParam(r, "tenant")
	var b relocateBody
	if err := json.NewDecoder(r.Body).Decode(&b); err != nil {
		writeProblem(w, "bad-json", "invalid request body", http.StatusBadRequest)
		return
	}
	barcodes := b.Barcodes
	if len(barcodes) == 0 {
		barcodes = b.RecordIDs
	}

	res, err := a.rel.Relocate(r.Context(), tenantID, barcodes, b.LocationID, b.SublocationID)
	if err != nil {
		switch {
		case errors.Is(err, relocate.ErrNoBarcodes), errors.Is(err, relocate.ErrNoLocation):
			writeProblem(w, "invalid-request", err.Error(), http.StatusBadRequest)
		case errors.Is(err, tenants.ErrNotFound):
			writeProblem(w, "tenant-not-found", err.Error(), http.StatusNotFound)
		default:
			writeProblem(w, "authentication-failed", err.Error(), http.StatusInternalServerError)
		}
		return
	}
	writeJSON(w, res, http.StatusOK)
}

// signIn proxies the platform's sign-in endpoint so operators can obtain a
// refresh token for a tenant without direct platform access.
func (a *App) signIn(w http.ResponseWriter, r *http.Request) {
	if a.cfg.SignInURL == "" {
		writeProblem(w, "not-configured", "sign-in proxy is not configured", http.StatusNotImplemented)
		return
	}
	var b struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&b); err != nil || b.Email == "" || b.Password == "" {
		writeProblem(w, "missing-fields", "email and password are required", http.StatusBadRequest)
		return
	}
	status, body, err := a.client.SignIn(r.Context(), a.cfg.SignInURL, b.Email, b.Password)
	if err != nil {
		writeProblem(w, "signin-failed", err.Error(), http.StatusBadGateway)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
