package training

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

type MemoryRepo struct {
	mu    sync.Mutex
	rows  map[string]Marker
	clock func() time.Time
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{rows: map[string]Marker{}, clock: time.Now}
}

func (r *MemoryRepo) Create(ctx context.Context, m Marker) (Marker, error) {
	if m.OrgID == "" || m.ProviderCallID == "" {
		return Marker{}, errors.New("training: org_id and provider_call_id required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if m.MarkerID == "" {
		m.MarkerID = uuid.NewString()
	}
	now := r.clock().UTC()
	m.CreatedAt = now
	m.UpdatedAt = now
	r.rows[m.MarkerID] = m
	return m, nil
}

func (r *MemoryRepo) FindByProviderCallID(ctx context.Context, orgID, providerCallID string) (Marker, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.rows {
		if m.OrgID == orgID && m.ProviderCallID == providerCallID {
			return m, true, nil
		}
	}
	return Marker{}, false, nil
}

func (r *MemoryRepo) AttachRecording(ctx context.Context, orgID, markerID, recordingURL, transcript string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.rows[markerID]
	if !ok || m.OrgID != orgID {
		return ErrNotFound
	}
	m.RecordingURL = recordingURL
	m.Transcript = transcript
	m.UpdatedAt = r.clock().UTC()
	r.rows[markerID] = m
	return nil
}
