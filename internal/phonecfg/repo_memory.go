package phonecfg

import (
	"context"
	"sync"
)

// MemoryRepo holds policies in memory for tests and early development.

type MemoryRepo struct {
	mu   sync.Mutex
	rows map[string]Config
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{rows: map[string]Config{}} }

// Put stores a policy for an org. Test setup helper; production writes go
// through the settings surface, not this service.
func (r *MemoryRepo) Put(cfg Config) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[cfg.OrgID] = cfg
}

func (r *MemoryRepo) Resolve(ctx context.Context, orgID string) (Config, error) {
	if orgID == "" {
		return Config{}, errOrgRequired
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if cfg, ok := r.rows[orgID]; ok {
		return cfg, nil
	}
	return Default(orgID), nil
}
