// pkg/tenants/postgres.go
package tenants

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// pgRegistry implements Registry backed by PostgreSQL for deployments where
// the registry must be shared across replicas. Defaults (default tenant id
// and shared URLs) come from the constructor; tenant rows are live reads.
type pgRegistry struct {
	dbPool   *pgxpool.Pool
	log      *zap.SugaredLogger
	strict   bool
	deflt    string
	defaults Endpoints
}

// NewPostgresRegistry constructs a PostgreSQL-backed tenant registry.
func NewPostgresRegistry(dbPool *pgxpool.Pool, defaultTenant string, defaults Endpoints, strict bool, log *zap.SugaredLogger) Registry {
	return &pgRegistry{dbPool: dbPool, log: log, strict: strict, deflt: defaultTenant, defaults: defaults}
}

// EnsureSchema creates the tenants table if it does not already exist.
// Safe to call repeatedly (idempotent).
func EnsureSchema(ctx context.Context, dbPool *pgxpool.Pool) error {
	_, err := dbPool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS tenants (
  id text PRIMARY KEY,
  tenant_name text NOT NULL,
  display_name text NOT NULL,
  description text DEFAULT '',
  button_class text DEFAULT 'primary',
  env_token_var text DEFAULT '',
  stored_refresh_token text DEFAULT '',
  use_custom_urls boolean NOT NULL DEFAULT false,
  refresh_url text DEFAULT '',
  api_url text DEFAULT '',
  filter_url text DEFAULT '',
  find_records_url text DEFAULT '',
  base_url text DEFAULT '',
  created_at timestamptz NOT NULL DEFAULT NOW(),
  updated_at timestamptz NOT NULL DEFAULT NOW()
);
`)
	return err
}

const tenantCols = `id, tenant_name, display_name, description, button_class, env_token_var,
stored_refresh_token, use_custom_urls, refresh_url, api_url, filter_url, find_records_url, base_url`

func scanTenant(row pgx.Row) (Tenant, error) {
	var t Tenant
	err := row.Scan(&t.ID, &t.BackendTenant, &t.DisplayName, &t.Description, &t.ButtonClass,
		&t.EnvTokenVar, &t.StoredRefreshToken, &t.UseCustomURLs,
		&t.CustomURLs.RefreshURL, &t.CustomURLs.UpdateURL, &t.CustomURLs.FilterURL,
		&t.CustomURLs.FindRecordsURL, &t.CustomURLs.BaseURL)
	return t, err
}

func (p *pgRegistry) Resolve(ctx context.Context, id string) (Resolved, error) {
	t, err := p.Get(ctx, id)
	if errors.Is(err, ErrNotFound) && !p.strict {
		p.log.Warnw("unknown tenant, substituting default", "tenant", id, "default", p.deflt)
		t, err = p.Get(ctx, p.deflt)
	}
	if err != nil {
		return Resolved{}, err
	}
	return resolve(t, p.defaults), nil
}

func (p *pgRegistry) Get(ctx context.Context, id string) (Tenant, error) {
	t, err := scanTenant(p.dbPool.QueryRow(ctx, `SELECT `+tenantCols+` FROM tenants WHERE id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Tenant{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return t, err
}

func (p *pgRegistry) List(ctx context.Context) ([]Tenant, error) {
	rows, err := p.dbPool.Query(ctx, `SELECT `+tenantCols+` FROM tenants ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (p *pgRegistry) Create(ctx context.Context, t Tenant) error {
	tag, err := p.dbPool.Exec(ctx, `
INSERT INTO tenants (`+tenantCols+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
ON CONFLICT (id) DO NOTHING`,
		t.ID, t.BackendTenant, t.DisplayName, t.Description, t.ButtonClass, t.EnvTokenVar,
		t.StoredRefreshToken, t.UseCustomURLs, t.CustomURLs.RefreshURL, t.CustomURLs.UpdateURL,
		t.CustomURLs.FilterURL, t.CustomURLs.FindRecordsURL, t.CustomURLs.BaseURL)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrExists, t.ID)
	}
	return nil
}

func (p *pgRegistry) Update(ctx context.Context, t Tenant) error {
	tag, err := p.dbPool.Exec(ctx, `
UPDATE tenants SET tenant_name=$2, display_name=$3, description=$4, button_class=$5,
  env_token_var=$6, use_custom_urls=$7, refresh_url=$8, api_url=$9, filter_url=$10,
  find_records_url=$11, base_url=$12, updated_at=NOW()
WHERE id=$1`,
		t.ID, t.BackendTenant, t.DisplayName, t.Description, t.ButtonClass, t.EnvTokenVar,
		t.UseCustomURLs, t.CustomURLs.RefreshURL, t.CustomURLs.UpdateURL,
		t.CustomURLs.FilterURL, t.CustomURLs.FindRecordsURL, t.CustomURLs.BaseURL)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, t.ID)
	}
	return nil
}

func (p *pgRegistry) Delete(ctx context.Context, id string) error {
	if id == p.deflt {
		return ErrDefaultTenant
	}
	tag, err := p.dbPool.Exec(ctx, `DELETE FROM tenants WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func (p *pgRegistry) SetCredential(ctx context.Context, id, secret string) error {
	tag, err := p.dbPool.Exec(ctx, `UPDATE tenants SET stored_refresh_token=$2, updated_at=NOW() WHERE id=$1`, id, secret)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func (p *pgRegistry) DefaultTenant() string            { return p.deflt }
func (p *pgRegistry) DefaultURLs() Endpoints           { return p.defaults }
func (p *pgRegistry) Reload(ctx context.Context) error { return nil }

// SeedDefault inserts the default tenant row when the table is empty so a
// fresh database behaves like a freshly seeded registry file.
func SeedDefault(ctx context.Context, dbPool *pgxpool.Pool) error {
	var n int
	if err := dbPool.QueryRow(ctx, `SELECT COUNT(*) FROM tenants`).Scan(&n); err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	seed := seedDocument()
	t := seed.Tenants[seed.DefaultTenant]
	_, err := dbPool.Exec(ctx, `
INSERT INTO tenants (id, tenant_name, display_name, description, button_class, env_token_var)
VALUES ($1,$2,$3,$4,$5,$6) ON CONFLICT DO NOTHING`,
		t.ID, t.BackendTenant, t.DisplayName, t.Description, t.ButtonClass, t.EnvTokenVar)
	return err
}
