package calls

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("calls: not found")

// Repository is the persistence contract for call records.
//
// All lookups are org-scoped; a provider call id never resolves across
// organizations.
type Repository interface {
	// UpsertByProviderCallID creates the call if the provider call id is
	// unseen for the org, otherwise updates the mutable fields of the
	// existing row. Survives duplicate provider webhook retries.
	UpsertByProviderCallID(ctx context.Context, c Call) (Call, error)

	// GetByProviderCallID returns the call owning a provider call id.
	GetByProviderCallID(ctx context.Context, orgID, providerCallID string) (Call, bool, error)

	// Update rewrites the mutable fields of an existing call.
	Update(ctx context.Context, c Call) error
}
