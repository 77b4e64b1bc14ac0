package campaign

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
)

const campaignsFile = "campaigns.json"

// FileStore persists one campaigns.json per tenant directory under a data
// root. Writes are atomic via temp file plus rename.
type FileStore struct {
	root string
}

// NewFileStore creates a FileStore rooted at dir, creating it if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("campaign store: create data directory: %w", err)
	}
	return &FileStore{root: dir}, nil
}

// ListShops returns the tenant directories under the data root.
func (s *FileStore) ListShops() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("campaign store: list tenants: %w", err)
	}

	var shops []string
	for _, e := range entries {
		if e.IsDir() {
			shops = append(shops, e.Name())
		}
	}
	return shops, nil
}

// ReadCampaigns loads a tenant's campaign list. Missing or malformed files
// resolve to an empty list.
func (s *FileStore) ReadCampaigns(tenant string) ([]Campaign, error) {
	data, err := os.ReadFile(filepath.Join(s.root, tenant, campaignsFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("campaign store: read %s: %w", tenant, err)
	}

	var campaigns []Campaign
	if err := json.Unmarshal(data, &campaigns); err != nil {
		log.Warn().Err(err).Str("tenant", tenant).Msg("malformed campaign file, treating as empty")
		return nil, nil
	}
	return campaigns, nil
}

// WriteCampaigns replaces a tenant's campaign list atomically.
func (s *FileStore) WriteCampaigns(tenant string, campaigns []Campaign) error {
	dir := filepath.Join(s.root, tenant)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("campaign store: create tenant directory: %w", err)
	}

	data, err := json.MarshalIndent(campaigns, "", "  ")
	if err != nil {
		return fmt.Errorf("campaign store: marshal campaigns: %w", err)
	}

	// Write to a temp file in the same directory, then rename for atomicity.
	tmp, err := os.CreateTemp(dir, ".tmp-campaigns-*")
	if err != nil {
		return fmt.Errorf("campaign store: create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("campaign store: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("campaign store: close temp file: %w", err)
	}
	if err := os.Rename(tmpName, filepath.Join(dir, campaignsFile)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("campaign store: rename temp file: %w", err)
	}
	return nil
}
