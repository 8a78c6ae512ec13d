package completion

import (
	"context"
	"errors"

	"callcenter-crm/internal/calls"
	"callcenter-crm/internal/leads"
	"callcenter-crm/internal/sessions"
)

// MemoryStore composes the in-memory repositories into a completion store for
// tests. InTx runs the unit of work directly; there is no rollback, which is
// fine for tests because the read-only lookups (lead, active call) run before
// any write.

type MemoryStore struct {
	Calls    *calls.MemoryRepo
	Leads    *leads.MemoryStore
	Sessions *sessions.MemoryRepo
}

func NewMemoryStore(callRepo *calls.MemoryRepo, leadStore *leads.MemoryStore, sessionRepo *sessions.MemoryRepo) *MemoryStore {
	return &MemoryStore{Calls: callRepo, Leads: leadStore, Sessions: sessionRepo}
}

func (s *MemoryStore) InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	return fn(ctx, memoryTx{s: s})
}

type memoryTx struct{ s *MemoryStore }

func (t memoryTx) LeadCampaign(ctx context.Context, orgID, leadID string) (string, error) {
	l, err := t.s.Leads.Get(ctx, orgID, leadID)
	if err != nil {
		if errors.Is(err, leads.ErrNotFound) {
			return "", ErrLeadNotFound
		}
		return "", err
	}
	return l.CampaignID, nil
}

func (t memoryTx) ActiveCall(ctx context.Context, orgID, leadID, sessionID string) (calls.Call, error) {
	c, err := t.s.Calls.FindActive(ctx, orgID, leadID, sessionID)
	if err != nil {
		if errors.Is(err, calls.ErrNotFound) {
			return calls.Call{}, ErrNoActiveCall
		}
		return calls.Call{}, err
	}
	return c, nil
}

func (t memoryTx) UpdateCall(ctx context.Context, c calls.Call) error {
	return t.s.Calls.Update(ctx, c)
}

func (t memoryTx) OpenContactAttempts(ctx context.Context, orgID, leadID string) (leads.Activity, bool, error) {
	return t.s.Leads.FindOpenContactAttempts(ctx, orgID, leadID)
}

func (t memoryTx) UpdateActivity(ctx context.Context, a leads.Activity) error {
	return t.s.Leads.UpdateActivity(ctx, a)
}

func (t memoryTx) InsertActivity(ctx context.Context, a leads.Activity) (leads.Activity, error) {
	return t.s.Leads.Insert(ctx, a)
}

func (t memoryTx) InsertFollowUp(ctx context.Context, f leads.FollowUp) (leads.FollowUp, error) {
	return t.s.Leads.FollowUpRepo().Create(ctx, f)
}

func (t memoryTx) UpdateLeadStatus(ctx context.Context, orgID, leadID string, status leads.Status) error {
	return t.s.Leads.UpdateStatus(ctx, orgID, leadID, status)
}

func (t memoryTx) BumpSession(ctx context.Context, sessionID string, d sessions.Delta) error {
	_, err := t.s.Sessions.Bump(ctx, sessionID, d)
	return err
}
