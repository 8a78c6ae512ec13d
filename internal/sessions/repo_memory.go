package sessions

import (
	"context"
	"errors"
	"sync"
	"time"
)

// MemoryRepo is an in-memory session repository for tests.

type MemoryRepo struct {
	mu    sync.Mutex
	rows  map[string]CallSession
	clock func() time.Time
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{rows: map[string]CallSession{}, clock: time.Now}
}

func (r *MemoryRepo) SetClock(clock func() time.Time) { r.clock = clock }

func (r *MemoryRepo) Get(ctx context.Context, sessionID string) (CallSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.rows[sessionID]
	if !ok {
		return CallSession{}, ErrNotFound
	}
	return s, nil
}

func (r *MemoryRepo) Bump(ctx context.Context, sessionID string, d Delta) (CallSession, error) {
	if sessionID == "" {
		return CallSession{}, errors.New("sessions: session_id required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.clock().UTC()
	s, ok := r.rows[sessionID]
	if !ok {
		s = CallSession{SessionID: sessionID, CreatedAt: now}
	}
	s.TotalCalls++
	if d.Successful {
		s.SuccessfulCalls++
	}
	s.TotalDurationSeconds += d.DurationSeconds
	if s.OrgID == "" && d.OrgID != "" {
		s.OrgID = d.OrgID
	}
	s.UpdatedAt = now
	r.rows[sessionID] = s
	return s, nil
}
