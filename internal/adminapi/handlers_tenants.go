package adminapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"scanbridge/pkg/tenants"
)

type tenantBody struct {
	TenantID      string             `json:"tenant_id"`
	TenantName    string             `json:"tenant_name"`
	DisplayName   string             `json:"display_name"`
	Description   string             `json:"description"`
	ButtonClass   string             `json:"button_class"`
	EnvTokenVar   string             `json:"env_token_var"`
	UseCustomURLs bool               `json:"use_custom_urls"`
	CustomURLs    *tenants.Endpoints `json:"custom_urls,omitempty"`
}

func (b tenantBody) toTenant(id string) tenants.Tenant {
	t := tenants.Tenant{
		ID:            id,
		BackendTenant: b.TenantName,
		DisplayName:   b.DisplayName,
		Description:   b.Description,
		ButtonClass:   b.ButtonClass,
		EnvTokenVar:   b.EnvTokenVar,
		UseCustomURLs: b.UseCustomURLs,
	}
	if t.ButtonClass == "" {
		t.ButtonClass = "primary"
	}
	if b.UseCustomURLs && b.CustomURLs != nil {
		t.CustomURLs = *b.CustomURLs
	}
	return t
}

func (a *App) listTenants(w http.ResponseWriter, r *http.Request) {
	list, err := a.reg.List(r.Context())
	if err != nil {
		writeProblem(w, "registry-unavailable", err.Error(), http.StatusInternalServerError)
		return
	}
	out := make([]map[string]any, 0, len(list))
	for _, t := range list {
		out = append(out, map[string]any{
			"tenant_id":       t.ID,
			"tenant_name":     t.BackendTenant,
			"display_name":    t.DisplayName,
			"description":     t.Description,
			"button_class":    t.ButtonClass,
			"use_custom_urls": t.UseCustomURLs,
			"is_default":      t.ID == a.reg.DefaultTenant(),
		})
	}
	writeJSON(w, out, http.StatusOK)
}

func (a *App) createTenant(w http.ResponseWriter, r *http.Request) {
	var b tenantBody
	if err := json.NewDecoder(r.Body).Decode(&b); err != nil {
		writeProblem(w, "bad-json", "invalid request body", http.StatusBadRequest)
		return
	}
	if b.TenantID == "" || b.TenantName == "" || b.DisplayName == "" {
		writeProblem(w, "missing-fields", "tenant_id, tenant_name and display_name are required", http.StatusBadRequest)
		return
	}
	if err := a.reg.Create(r.Context(), b.toTenant(b.TenantID)); err != nil {
		if errors.Is(err, tenants.ErrExists) {
			writeProblem(w, "tenant-exists", err.Error(), http.StatusBadRequest)
			return
		}
		writeProblem(w, "registry-write-failed", err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{"status": "success", "message": fmt.Sprintf("Tenant %s added", b.DisplayName)}, http.StatusOK)
}

func (a *App) updateTenant(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var b tenantBody
	if err := json.NewDecoder(r.Body).Decode(&b); err != nil {
		writeProblem(w, "bad-json", "invalid request body", http.StatusBadRequest)
		return
	}
	if b.TenantName == "" || b.DisplayName == "" {
		writeProblem(w, "missing-fields", "tenant_name and display_name are required", http.StatusBadRequest)
		return
	}
	if err := a.reg.Update(r.Context(), b.toTenant(id)); err != nil {
		if errors.Is(err, tenants.ErrNotFound) {
			writeProblem(w, "tenant-not-found", err.Error(), http.StatusNotFound)
			return
		}
		writeProblem(w, "registry-write-failed", err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{"status": "success", "message": fmt.Sprintf("Tenant %s updated", b.DisplayName)}, http.StatusOK)
}

func (a *App) deleteTenant(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := a.reg.Delete(r.Context(), id); err != nil {
		switch {
		case errors.Is(err, tenants.ErrNotFound):
			writeProblem(w, "tenant-not-found", err.Error(), http.StatusNotFound)
		case errors.Is(err, tenants.ErrDefaultTenant):
			writeProblem(w, "default-tenant", err.Error(), http.StatusBadRequest)
		default:
			writeProblem(w, "registry-write-failed", err.Error(), http.StatusInternalServerError)
		}
		return
	}
	a.tokens.Invalidate(id)
	writeJSON(w, map[string]any{"status": "success", "message": fmt.Sprintf("Tenant %s deleted", id)}, http.StatusOK)
}

// setCredential verifies the supplied refresh secret against the tenant's
// refresh endpoint, stores it, and evicts the cached bearer token so the
// next authenticated call uses the new credential.
func (a *App) setCredential(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var b struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&b); err != nil || b.RefreshToken == "" {
		writeProblem(w, "missing-fields", "refresh_token is required", http.StatusBadRequest)
		return
	}
	t, err := a.reg.Get(r.Context(), id)
	if err != nil {
		writeProblem(w, "tenant-not-found", err.Error(), http.StatusNotFound)
		return
	}

	refreshURL := a.reg.DefaultURLs().RefreshURL
	if t.UseCustomURLs && t.CustomURLs.RefreshURL != "" {
		refreshURL = t.CustomURLs.RefreshURL
	}
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()
	if _, err := a.client.RefreshTokens(ctx, refreshURL, b.RefreshToken); err != nil {
		writeProblem(w, "credential-verification-failed", fmt.Sprintf("token verification failed: %v", err), http.StatusBadRequest)
		return
	}

	if err := a.reg.SetCredential(r.Context(), id, b.RefreshToken); err != nil {
		writeProblem(w, "registry-write-failed", err.Error(), http.StatusInternalServerError)
		return
	}
	a.tokens.Invalidate(id)
	writeJSON(w, map[string]any{"status": "success", "message": fmt.Sprintf("Refresh token updated for tenant %s", id)}, http.StatusOK)
}

func (a *App) reloadConfig(w http.ResponseWriter, r *http.Request) {
	if err := a.reg.Reload(r.Context()); err != nil {
		writeProblem(w, "reload-failed", err.Error(), http.StatusInternalServerError)
		return
	}
	// Force re-auth for every tenant against the reloaded registry.
	a.tokens.Flush()
	writeJSON(w, map[string]any{"status": "success", "message": "Configuration reloaded"}, http.StatusOK)
}
