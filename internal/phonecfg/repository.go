package phonecfg

import (
	"context"
	"errors"
)

// Repository resolves an organization's phone policy.
//
// Resolve never fails on a missing row; it falls back to Default(orgID).
// The policy is resolved once per request/event and passed down as a value,
// never re-fetched mid-decision.
type Repository interface {
	Resolve(ctx context.Context, orgID string) (Config, error)
}

var errOrgRequired = errors.New("phonecfg: org_id required")
