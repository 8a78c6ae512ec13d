package leads

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory implementation of all lead-side repositories,
// for tests and early development. It enforces org isolation on reads.

type MemoryStore struct {
	mu sync.Mutex

	Leads      map[string]Lead
	Prospects  map[string]Prospect
	Activities map[string]Activity
	FollowUps  map[string]FollowUp

	clock func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		Leads:      map[string]Lead{},
		Prospects:  map[string]Prospect{},
		Activities: map[string]Activity{},
		FollowUps:  map[string]FollowUp{},
		clock:      time.Now,
	}
}

func (s *MemoryStore) SetClock(clock func() time.Time) { s.clock = clock }

/* ===================== LEADS ===================== */

func (s *MemoryStore) Get(ctx context.Context, orgID, leadID string) (Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.Leads[leadID]
	if !ok || l.OrgID != orgID {
		return Lead{}, ErrNotFound
	}
	return l, nil
}

func (s *MemoryStore) FindByPhone(ctx context.Context, orgID, phone string) (Lead, bool, error) {
	if orgID == "" {
		return Lead{}, false, errors.New("leads: org_id required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.Leads {
		if l.OrgID == orgID && l.Phone == phone {
			return l, true, nil
		}
	}
	return Lead{}, false, nil
}

func (s *MemoryStore) UpdateStatus(ctx context.Context, orgID, leadID string, status Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.Leads[leadID]
	if !ok || l.OrgID != orgID {
		return ErrNotFound
	}
	l.Status = status
	l.UpdatedAt = s.clock().UTC()
	s.Leads[leadID] = l
	return nil
}

/* ===================== PROSPECTS ===================== */

func (s *MemoryStore) Create(ctx context.Context, p Prospect) (Prospect, error) {
	if p.OrgID == "" {
		return Prospect{}, errors.New("leads: org_id required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ProspectID == "" {
		p.ProspectID = uuid.NewString()
	}
	now := s.clock().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	s.Prospects[p.ProspectID] = p
	return p, nil
}

func (s *MemoryStore) FindByProviderCallID(ctx context.Context, orgID, providerCallID string) (Prospect, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.Prospects {
		if p.OrgID == orgID && p.ProviderCallID == providerCallID {
			return p, true, nil
		}
	}
	return Prospect{}, false, nil
}

func (s *MemoryStore) AttachRecording(ctx context.Context, orgID, prospectID, recordingURL, transcript string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.Prospects[prospectID]
	if !ok || p.OrgID != orgID {
		return ErrNotFound
	}
	p.RecordingURL = recordingURL
	p.Transcript = transcript
	p.UpdatedAt = s.clock().UTC()
	s.Prospects[prospectID] = p
	return nil
}

/* ===================== ACTIVITIES ===================== */

func (s *MemoryStore) Insert(ctx context.Context, a Activity) (Activity, error) {
	if a.OrgID == "" || a.LeadID == "" {
		return Activity{}, errors.New("leads: org_id and lead_id required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ActivityID == "" {
		a.ActivityID = uuid.NewString()
	}
	now := s.clock().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now
	s.Activities[a.ActivityID] = a
	return a, nil
}

// FindOpenContactAttempts returns the lead's open aggregate row, if any.
func (s *MemoryStore) FindOpenContactAttempts(ctx context.Context, orgID, leadID string) (Activity, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var best Activity
	found := false
	for _, a := range s.Activities {
		if a.OrgID != orgID || a.LeadID != leadID || a.Type != ActivityContactAttempts || !a.Open {
			continue
		}
		if !found || a.CreatedAt.After(best.CreatedAt) {
			best = a
			found = true
		}
	}
	return best, found, nil
}

// UpdateActivity rewrites an existing activity row in place.
func (s *MemoryStore) UpdateActivity(ctx context.Context, a Activity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.Activities[a.ActivityID]
	if !ok || existing.OrgID != a.OrgID {
		return ErrNotFound
	}
	a.CreatedAt = existing.CreatedAt
	a.UpdatedAt = s.clock().UTC()
	s.Activities[a.ActivityID] = a
	return nil
}

func (s *MemoryStore) ListByLead(ctx context.Context, orgID, leadID string) ([]Activity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Activity, 0)
	for _, a := range s.Activities {
		if a.OrgID == orgID && a.LeadID == leadID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

/* ===================== FOLLOW-UPS ===================== */

type memoryFollowUps struct{ s *MemoryStore }

// FollowUpRepo exposes the follow-up slice of the store as its own
// repository value, so wiring mirrors the Postgres layout.
func (s *MemoryStore) FollowUpRepo() FollowUpRepository { return memoryFollowUps{s: s} }

func (m memoryFollowUps) Create(ctx context.Context, f FollowUp) (FollowUp, error) {
	s := m.s
	if f.OrgID == "" || f.LeadID == "" {
		return FollowUp{}, errors.New("leads: org_id and lead_id required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if f.FollowUpID == "" {
		f.FollowUpID = uuid.NewString()
	}
	now := s.clock().UTC()
	f.CreatedAt = now
	f.UpdatedAt = now
	s.FollowUps[f.FollowUpID] = f
	return f, nil
}

func (m memoryFollowUps) FindByProviderCallID(ctx context.Context, orgID, providerCallID string) (FollowUp, bool, error) {
	s := m.s
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range s.FollowUps {
		if f.OrgID == orgID && f.ProviderCallID == providerCallID {
			return f, true, nil
		}
	}
	return FollowUp{}, false, nil
}

func (m memoryFollowUps) AttachRecording(ctx context.Context, orgID, followUpID, recordingURL, transcript string) error {
	s := m.s
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.FollowUps[followUpID]
	if !ok || f.OrgID != orgID {
		return ErrNotFound
	}
	f.RecordingURL = recordingURL
	f.Transcript = transcript
	f.UpdatedAt = s.clock().UTC()
	s.FollowUps[followUpID] = f
	return nil
}
