package orgs

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("orgs: not found")

// Directory answers the two org questions the webhook path needs:
// which org owns a dialed number, and what an org's training-call source is.
//
// Webhook payloads are never trusted for org ownership unless they carry an
// explicit org id; otherwise the dialed number is matched against org-owned
// numbers here.
type Directory interface {
	ResolveByNumber(ctx context.Context, e164 string) (orgID string, err error)

	// TrainingSource returns the registered training-call origin number for
	// an org, if any.
	TrainingSource(ctx context.Context, orgID string) (number string, ok bool, err error)
}
