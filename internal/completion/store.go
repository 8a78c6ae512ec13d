package completion

import (
	"context"

	"callcenter-crm/internal/calls"
	"callcenter-crm/internal/leads"
	"callcenter-crm/internal/sessions"
)

// Store is the transactional boundary of the completion aggregator.
//
// InTx runs fn as one atomic unit of work: if fn returns an error, every
// write it performed is rolled back. The eight completion steps all happen
// inside a single InTx call; no partial state survives a failure.
type Store interface {
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Tx is the set of storage operations available inside the transaction.
// Every method is org-scoped.
type Tx interface {
	// LeadCampaign returns the lead's campaign id, proving the lead exists
	// in the caller's org. Returns ErrLeadNotFound otherwise.
	LeadCampaign(ctx context.Context, orgID, leadID string) (string, error)

	// ActiveCall returns the single most recently created non-terminal call
	// for the (lead, session) pair, locked for update. Returns
	// ErrNoActiveCall when no such row exists.
	ActiveCall(ctx context.Context, orgID, leadID, sessionID string) (calls.Call, error)

	UpdateCall(ctx context.Context, c calls.Call) error

	OpenContactAttempts(ctx context.Context, orgID, leadID string) (leads.Activity, bool, error)
	UpdateActivity(ctx context.Context, a leads.Activity) error
	InsertActivity(ctx context.Context, a leads.Activity) (leads.Activity, error)

	InsertFollowUp(ctx context.Context, f leads.FollowUp) (leads.FollowUp, error)

	UpdateLeadStatus(ctx context.Context, orgID, leadID string, status leads.Status) error

	BumpSession(ctx context.Context, sessionID string, d sessions.Delta) error
}
