package sessions

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("sessions: not found")

type Repository interface {
	Get(ctx context.Context, sessionID string) (CallSession, error)

	// Bump applies one completed call's delta. Creates the session row if it
	// does not exist yet; the dialer client may not have registered it.
	Bump(ctx context.Context, sessionID string, d Delta) (CallSession, error)
}
