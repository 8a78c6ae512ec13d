package orgs

import (
	"context"
	"sync"
)

// MemoryDirectory is an in-memory directory for tests.

type MemoryDirectory struct {
	mu              sync.Mutex
	numbers         map[string]string // e164 -> org_id
	trainingSources map[string]string // org_id -> number
}

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{numbers: map[string]string{}, trainingSources: map[string]string{}}
}

func (d *MemoryDirectory) AddNumber(e164, orgID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.numbers[e164] = orgID
}

func (d *MemoryDirectory) SetTrainingSource(orgID, number string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.trainingSources[orgID] = number
}

func (d *MemoryDirectory) ResolveByNumber(ctx context.Context, e164 string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if orgID, ok := d.numbers[e164]; ok {
		return orgID, nil
	}
	return "", ErrNotFound
}

func (d *MemoryDirectory) TrainingSource(ctx context.Context, orgID string) (string, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	n, ok := d.trainingSources[orgID]
	return n, ok, nil
}
