package calls

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepo is an in-memory call repository for tests and early development.
// It enforces org isolation on reads and the upsert-by-provider-call-id
// idempotency contract.

type MemoryRepo struct {
	mu    sync.Mutex
	rows  map[string]Call // keyed by call_id
	clock func() time.Time
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{rows: map[string]Call{}, clock: time.Now}
}

// SetClock injects a deterministic clock for tests.
func (r *MemoryRepo) SetClock(clock func() time.Time) { r.clock = clock }

func (r *MemoryRepo) UpsertByProviderCallID(ctx context.Context, c Call) (Call, error) {
	if c.OrgID == "" || c.ProviderCallID == "" {
		return Call{}, errors.New("calls: org_id and provider_call_id required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock().UTC()
	for id, existing := range r.rows {
		if existing.OrgID != c.OrgID || existing.ProviderCallID != c.ProviderCallID {
			continue
		}
		merged := mergeUpsert(existing, c, now)
		r.rows[id] = merged
		return merged, nil
	}

	if c.CallID == "" {
		c.CallID = uuid.NewString()
	}
	if c.Status == "" {
		c.Status = CallStatusRinging
	}
	if c.StartedAt.IsZero() {
		c.StartedAt = now
	}
	c.CreatedAt = now
	c.UpdatedAt = now
	r.rows[c.CallID] = c
	return c, nil
}

func mergeUpsert(existing, in Call, now time.Time) Call {
	out := existing
	if in.LeadID != "" {
		out.LeadID = in.LeadID
	}
	if in.SessionID != "" {
		out.SessionID = in.SessionID
	}
	if in.UserID != "" {
		out.UserID = in.UserID
	}
	if in.From != "" {
		out.From = in.From
	}
	if in.To != "" {
		out.To = in.To
	}
	if in.Direction != "" {
		out.Direction = in.Direction
	}
	if in.Status != "" {
		out.Status = in.Status
	}
	out.UpdatedAt = now
	return out
}

func (r *MemoryRepo) GetByProviderCallID(ctx context.Context, orgID, providerCallID string) (Call, bool, error) {
	if orgID == "" {
		return Call{}, false, errors.New("calls: org_id required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.rows {
		if c.OrgID == orgID && c.ProviderCallID == providerCallID {
			return c, true, nil
		}
	}
	return Call{}, false, nil
}

func (r *MemoryRepo) Update(ctx context.Context, c Call) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.rows[c.CallID]
	if !ok || existing.OrgID != c.OrgID {
		return ErrNotFound
	}
	c.CreatedAt = existing.CreatedAt
	c.UpdatedAt = r.clock().UTC()
	r.rows[c.CallID] = c
	return nil
}

// FindActive returns the most recently created non-terminal call for a
// (lead, session) pair. Used directly by tests; the transactional completion
// path has its own equivalent lookup.
func (r *MemoryRepo) FindActive(ctx context.Context, orgID, leadID, sessionID string) (Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var best Call
	found := false
	for _, c := range r.rows {
		if c.OrgID != orgID || c.LeadID != leadID || c.SessionID != sessionID || !c.Active() {
			continue
		}
		if !found || c.CreatedAt.After(best.CreatedAt) {
			best = c
			found = true
		}
	}
	if !found {
		return Call{}, ErrNotFound
	}
	return best, nil
}

// All returns a copy of every stored call, for test assertions.
func (r *MemoryRepo) All() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Call, 0, len(r.rows))
	for _, c := range r.rows {
		out = append(out, c)
	}
	return out
}
