package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	"callcenter-crm/pkg/logger"
)

type Repository interface {
	Append(ctx context.Context, e Event) error
}

// Recorder appends consistency signals best-effort: a failed append is logged
// and swallowed, because a monitoring write must never fail the request that
// detected the inconsistency.
type Recorder struct {
	repo  Repository
	clock func() time.Time
}

func NewRecorder(repo Repository) *Recorder {
	return &Recorder{repo: repo, clock: time.Now}
}

func (r *Recorder) SetClock(clock func() time.Time) { r.clock = clock }

func (r *Recorder) Record(ctx context.Context, e Event) {
	if r == nil || r.repo == nil {
		return
	}
	if e.EventID == "" {
		e.EventID = uuid.NewString()
	}
	if e.At.IsZero() {
		e.At = r.clock().UTC()
	}
	if err := r.repo.Append(ctx, e); err != nil {
		logger.From(ctx).Warn("audit append failed",
			"kind", string(e.Kind), "org_id", e.OrgID, "err", err)
	}
}
