package tenants

import (
	"context"
	"errors"
)

var (
	ErrNotFound      = errors.New("tenant not found")
	ErrExists        = errors.New("tenant already exists")
	ErrDefaultTenant = errors.New("cannot delete default tenant")
)

// Registry is the tenant directory all components resolve against.
type Registry interface {
	// Resolve returns the tenant with effective URLs and credential. When the
	// registry is lenient, an unknown id resolves to the default tenant.
	Resolve(ctx context.Context, id string) (Resolved, error)
	Get(ctx context.Context, id string) (Tenant, error)
	List(ctx context.Context) ([]Tenant, error)
	Create(ctx context.Context, t Tenant) error
	Update(ctx context.Context, t Tenant) error
	Delete(ctx context.Context, id string) error
	// SetCredential stores a verified refresh secret for the tenant.
	SetCredential(ctx context.Context, id, secret string) error
	DefaultTenant() string
	DefaultURLs() Endpoints
	// Reload re-reads backing storage; readers always observe a complete snapshot.
	Reload(ctx context.Context) error
}
