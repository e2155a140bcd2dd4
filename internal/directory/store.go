// internal/directory/store.go
package directory

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Store persists per-tenant location lists plus the shared refresh metadata.
// Failed rebuilds must leave the previous list untouched, so Save is only
// called with known-good data.
type Store interface {
	Load(tenantID string) ([]Location, bool, error)
	Save(tenantID string, locations []Location) error
	Meta(tenantID string) (Meta, bool, error)
	SetStatus(tenantID, status, message string) error
	MarkRefreshed(tenantID string, at time.Time) error
	AllMeta() (map[string]Meta, error)
}

const metadataFile = "cache_metadata.json"

// diskStore keeps one locations_<tenant>.json per tenant and a shared
// cache_metadata.json, all written via temp file + rename. Metadata
// read-modify-write is serialized by a mutex so concurrent status
// transitions cannot lose updates.
type diskStore struct {
	dir string
	mu  sync.Mutex // guards metadata RMW
}

func NewDiskStore(dir string) (Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	return &diskStore{dir: dir}, nil
}

func (s *diskStore) locationsPath(tenantID string) string {
	return filepath.Join(s.dir, "locations_"+tenantID+".json")
}

func (s *diskStore) Load(tenantID string) ([]Location, bool, error) {
	b, err := os.ReadFile(s.locationsPath(tenantID))
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var locs []Location
	if err := json.Unmarshal(b, &locs); err != nil {
		return nil, false, fmt.Errorf("parse cached locations for %s: %w", tenantID, err)
	}
	return locs, true, nil
}

func (s *diskStore) Save(tenantID string, locations []Location) error {
	b, err := json.MarshalIndent(locations, "", "  ")
	if err != nil {
		return err
	}
	return atomicWrite(s.locationsPath(tenantID), b)
}

func (s *diskStore) Meta(tenantID string) (Meta, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all, err := s.readMeta()
	if err != nil {
		return Meta{}, false, err
	}
	m, ok := all[tenantID]
	return m, ok, nil
}

func (s *diskStore) SetStatus(tenantID, status, message string) error {
	return s.updateMeta(tenantID, func(m *Meta) {
		m.Status = status
		m.Message = message
		m.StatusAt = time.Now().UTC()
	})
}

func (s *diskStore) MarkRefreshed(tenantID string, at time.Time) error {
	return s.updateMeta(tenantID, func(m *Meta) {
		m.LastRefreshed = at.UTC()
		m.Status = StatusSuccess
		m.Message = ""
		m.StatusAt = time.Now().UTC()
	})
}

func (s *diskStore) AllMeta() (map[string]Meta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readMeta()
}

func (s *diskStore) updateMeta(tenantID string, fn func(*Meta)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	all, err := s.readMeta()
	if err != nil {
		return err
	}
	m := all[tenantID]
	fn(&m)
	all[tenantID] = m
	b, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return err
	}
	return atomicWrite(filepath.Join(s.dir, metadataFile), b)
}

func (s *diskStore) readMeta() (map[string]Meta, error) {
	b, err := os.ReadFile(filepath.Join(s.dir, metadataFile))
	if os.IsNotExist(err) {
		return map[string]Meta{}, nil
	}
	if err != nil {
		return nil, err
	}
	all := map[string]Meta{}
	if err := json.Unmarshal(b, &all); err != nil {
		return nil, fmt.Errorf("parse cache metadata: %w", err)
	}
	return all, nil
}

func atomicWrite(path string, b []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
