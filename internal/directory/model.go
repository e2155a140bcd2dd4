package directory

import (
	"time"

	"scanbridge/internal/records"
)

// Location is one entry of a tenant's location directory.
type Location struct {
	ID           string                `json:"id"`
	Name         string                `json:"name"`
	Sublocations []records.Sublocation `json:"sublocations"`
}

// Refresh status values recorded in the shared cache metadata.
const (
	StatusSuccess    = "success"
	StatusError      = "error"
	StatusRefreshing = "refreshing"
	StatusUnknown    = "unknown"
)

// Meta is the per-tenant entry of the shared cache metadata resource.
type Meta struct {
	LastRefreshed time.Time `json:"last_refreshed"`
	Status        string    `json:"status"`
	Message       string    `json:"message,omitempty"`
	StatusAt      time.Time `json:"status_at"`
}

// TenantStatus is the admin diagnostics view of one tenant's cache.
type TenantStatus struct {
	TenantID      string     `json:"tenant_id"`
	Exists        bool       `json:"exists"`
	Locations     int        `json:"locations"`
	LastRefreshed *time.Time `json:"last_refreshed,omitempty"`
	NextScheduled *time.Time `json:"next_scheduled,omitempty"`
	Expired       bool       `json:"expired"`
	Status        string     `json:"status"`
	Message       string     `json:"message,omitempty"`
}
