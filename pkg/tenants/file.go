// pkg/tenants/file.go
package tenants

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// document is the on-disk registry layout.
type document struct {
	DefaultTenant string             `json:"default_tenant" yaml:"default_tenant"`
	DefaultURLs   Endpoints          `json:"default_urls" yaml:"default_urls"`
	Tenants       map[string]*Tenant `json:"tenants" yaml:"tenants"`
}

type fileRegistry struct {
	log    *zap.SugaredLogger
	path   string
	strict bool

	mu   sync.Mutex // serializes mutations and file writes
	snap atomic.Pointer[document]
}

// NewFileRegistry loads (or seeds) the registry file at path. Mutations
// rewrite the file atomically; readers work off an immutable snapshot.
func NewFileRegistry(path string, strict bool, log *zap.SugaredLogger) (Registry, error) {
	r := &fileRegistry{log: log, path: path, strict: strict}
	if err := r.Reload(context.Background()); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *fileRegistry) Reload(ctx context.Context) error {
	b, err := os.ReadFile(r.path)
	if os.IsNotExist(err) {
		doc := seedDocument()
		if werr := writeDocument(r.path, doc); werr != nil {
			return fmt.Errorf("seed registry: %w", werr)
		}
		r.log.Infow("seeded default tenant registry", "path", r.path)
		r.snap.Store(doc)
		return nil
	}
	if err != nil {
		return fmt.Errorf("read registry: %w", err)
	}
	var doc document
	ext := strings.ToLower(filepath.Ext(r.path))
	if ext == ".yaml" || ext == ".yml" {
		err = yaml.Unmarshal(b, &doc)
	} else {
		err = json.Unmarshal(b, &doc)
	}
	if err != nil {
		return fmt.Errorf("parse registry: %w", err)
	}
	if len(doc.Tenants) == 0 {
		return fmt.Errorf("registry %s has no tenants", r.path)
	}
	for id, t := range doc.Tenants {
		t.ID = id
	}
	r.snap.Store(&doc)
	return nil
}

func (r *fileRegistry) Resolve(ctx context.Context, id string) (Resolved, error) {
	doc := r.snap.Load()
	t, ok := doc.Tenants[id]
	if !ok {
		if r.strict {
			return Resolved{}, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		r.log.Warnw("unknown tenant, substituting default", "tenant", id, "default", doc.DefaultTenant)
		t, ok = doc.Tenants[doc.DefaultTenant]
		if !ok {
			return Resolved{}, fmt.Errorf("%w: %s", ErrNotFound, doc.DefaultTenant)
		}
	}
	return resolve(*t, doc.DefaultURLs), nil
}

func resolve(t Tenant, defaults Endpoints) Resolved {
	res := Resolved{Tenant: t, Endpoints: defaults}
	if t.UseCustomURLs {
		res.Endpoints = t.CustomURLs
	}
	if t.StoredRefreshToken != "" {
		res.RefreshSecret = t.StoredRefreshToken
	} else if t.EnvTokenVar != "" {
		res.RefreshSecret = os.Getenv(t.EnvTokenVar)
	}
	return res
}

func (r *fileRegistry) Get(ctx context.Context, id string) (Tenant, error) {
	if t, ok := r.snap.Load().Tenants[id]; ok {
		return *t, nil
	}
	return Tenant{}, fmt.Errorf("%w: %s", ErrNotFound, id)
}

func (r *fileRegistry) List(ctx context.Context) ([]Tenant, error) {
	doc := r.snap.Load()
	out := make([]Tenant, 0, len(doc.Tenants))
	for _, t := range doc.Tenants {
		out = append(out, *t)
	}
	return out, nil
}

func (r *fileRegistry) Create(ctx context.Context, t Tenant) error {
	return r.mutate(func(doc *document) error {
		if _, ok := doc.Tenants[t.ID]; ok {
			return fmt.Errorf("%w: %s", ErrExists, t.ID)
		}
		tt := t
		doc.Tenants[t.ID] = &tt
		return nil
	})
}

func (r *fileRegistry) Update(ctx context.Context, t Tenant) error {
	return r.mutate(func(doc *document) error {
		prev, ok := doc.Tenants[t.ID]
		if !ok {
			return fmt.Errorf("%w: %s", ErrNotFound, t.ID)
		}
		// Stored credentials survive a metadata update.
		if t.StoredRefreshToken == "" {
			t.StoredRefreshToken = prev.StoredRefreshToken
		}
		if !t.UseCustomURLs {
			t.CustomURLs = Endpoints{}
		}
		tt := t
		doc.Tenants[t.ID] = &tt
		return nil
	})
}

func (r *fileRegistry) Delete(ctx context.Context, id string) error {
	return r.mutate(func(doc *document) error {
		if _, ok := doc.Tenants[id]; !ok {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		if id == doc.DefaultTenant {
			return ErrDefaultTenant
		}
		delete(doc.Tenants, id)
		return nil
	})
}

func (r *fileRegistry) SetCredential(ctx context.Context, id, secret string) error {
	return r.mutate(func(doc *document) error {
		t, ok := doc.Tenants[id]
		if !ok {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		tt := *t
		tt.StoredRefreshToken = secret
		doc.Tenants[id] = &tt
		return nil
	})
}

func (r *fileRegistry) DefaultTenant() string  { return r.snap.Load().DefaultTenant }
func (r *fileRegistry) DefaultURLs() Endpoints { return r.snap.Load().DefaultURLs }

// mutate applies fn to a deep copy of the snapshot, persists it, then swaps it in.
func (r *fileRegistry) mutate(fn func(*document) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur := r.snap.Load()
	next := &document{
		DefaultTenant: cur.DefaultTenant,
		DefaultURLs:   cur.DefaultURLs,
		Tenants:       make(map[string]*Tenant, len(cur.Tenants)),
	}
	for id, t := range cur.Tenants {
		tt := *t
		next.Tenants[id] = &tt
	}
	if err := fn(next); err != nil {
		return err
	}
	if err := writeDocument(r.path, next); err != nil {
		return fmt.Errorf("save registry: %w", err)
	}
	r.snap.Store(next)
	return nil
}

func writeDocument(path string, doc *document) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	var b []byte
	var err error
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".yaml" || ext == ".yml" {
		b, err = yaml.Marshal(doc)
	} else {
		b, err = json.MarshalIndent(doc, "", "  ")
	}
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// seedDocument mirrors the registry created on first run.
func seedDocument() *document {
	return &document{
		DefaultTenant: "default",
		DefaultURLs: Endpoints{
			RefreshURL:     "https://core-production.alchemy.cloud/core/api/v2/refresh-token",
			UpdateURL:      "https://core-production.alchemy.cloud/core/api/v2/update-record",
			FilterURL:      "https://core-production.alchemy.cloud/core/api/v2/filter-records",
			FindRecordsURL: "https://core-production.alchemy.cloud/core/api/v2/find-records",
			BaseURL:        "https://app.alchemy.cloud/",
		},
		Tenants: map[string]*Tenant{
			"default": {
				ID:            "default",
				BackendTenant: "productcaseelnlims4uat",
				DisplayName:   "Product Case ELN&LIMS UAT",
				Description:   "Primary backend environment",
				ButtonClass:   "primary",
				EnvTokenVar:   "DEFAULT_REFRESH_TOKEN",
			},
		},
	}
}
