package leads

import (
	"context"
	"errors"
)

var (
	ErrNotFound = errors.New("leads: not found")
	ErrConflict = errors.New("leads: duplicate key")
)

// All repository methods are org-scoped; a lead id never resolves across
// organizations.

type LeadRepository interface {
	Get(ctx context.Context, orgID, leadID string) (Lead, error)
	FindByPhone(ctx context.Context, orgID, phone string) (Lead, bool, error)
	UpdateStatus(ctx context.Context, orgID, leadID string, status Status) error
}

type ProspectRepository interface {
	Create(ctx context.Context, p Prospect) (Prospect, error)
	FindByProviderCallID(ctx context.Context, orgID, providerCallID string) (Prospect, bool, error)
	AttachRecording(ctx context.Context, orgID, prospectID, recordingURL, transcript string) error
}

type ActivityRepository interface {
	Insert(ctx context.Context, a Activity) (Activity, error)
	ListByLead(ctx context.Context, orgID, leadID string) ([]Activity, error)
}

type FollowUpRepository interface {
	Create(ctx context.Context, f FollowUp) (FollowUp, error)
	FindByProviderCallID(ctx context.Context, orgID, providerCallID string) (FollowUp, bool, error)
	AttachRecording(ctx context.Context, orgID, followUpID, recordingURL, transcript string) error
}
