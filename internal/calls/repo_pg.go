package calls

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// PGRepo persists calls in Postgres.
//
// Assumed schema (table calls):
// - UNIQUE (org_id, provider_call_id) for webhook retry idempotency
// - partial index on (org_id, lead_id, session_id) WHERE status NOT IN
//   ('completed','failed','canceled') enforcing the single-active-call
//   invariant at the storage layer

type PGRepo struct {
	db    *sql.DB
	clock func() time.Time
}

func NewPGRepo(db *sql.DB) *PGRepo {
	return &PGRepo{db: db, clock: time.Now}
}

const callColumns = `
call_id, org_id, provider_call_id, lead_id, session_id, user_id,
from_address, to_address, direction, status, outcome,
started_at, ended_at, duration, recording_url, transcript, notes,
created_at, updated_at
`

func scanCall(row interface{ Scan(...any) error }) (Call, error) {
	var c Call
	var endedAt sql.NullTime
	err := row.Scan(
		&c.CallID,
		&c.OrgID,
		&c.ProviderCallID,
		&c.LeadID,
		&c.SessionID,
		&c.UserID,
		&c.From,
		&c.To,
		&c.Direction,
		&c.Status,
		&c.Outcome,
		&c.StartedAt,
		&endedAt,
		&c.DurationSeconds,
		&c.RecordingURL,
		&c.Transcript,
		&c.Notes,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return Call{}, err
	}
	if endedAt.Valid {
		t := endedAt.Time
		c.EndedAt = &t
	}
	return c, nil
}

func (r *PGRepo) UpsertByProviderCallID(ctx context.Context, c Call) (Call, error) {
	if c.OrgID == "" || c.ProviderCallID == "" {
		return Call{}, errors.New("calls: org_id and provider_call_id required")
	}
	now := r.clock().UTC()
	if c.CallID == "" {
		c.CallID = uuid.NewString()
	}
	if c.Status == "" {
		c.Status = CallStatusRinging
	}
	if c.StartedAt.IsZero() {
		c.StartedAt = now
	}

	const q = `
INSERT INTO calls (` + callColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)
ON CONFLICT (org_id, provider_call_id)
DO UPDATE SET
  lead_id    = CASE WHEN EXCLUDED.lead_id    <> '' THEN EXCLUDED.lead_id    ELSE calls.lead_id    END,
  session_id = CASE WHEN EXCLUDED.session_id <> '' THEN EXCLUDED.session_id ELSE calls.session_id END,
  user_id    = CASE WHEN EXCLUDED.user_id    <> '' THEN EXCLUDED.user_id    ELSE calls.user_id    END,
  from_address = CASE WHEN EXCLUDED.from_address <> '' THEN EXCLUDED.from_address ELSE calls.from_address END,
  to_address   = CASE WHEN EXCLUDED.to_address   <> '' THEN EXCLUDED.to_address   ELSE calls.to_address   END,
  direction  = CASE WHEN EXCLUDED.direction <> '' THEN EXCLUDED.direction ELSE calls.direction END,
  status     = CASE WHEN EXCLUDED.status    <> '' THEN EXCLUDED.status    ELSE calls.status    END,
  updated_at = EXCLUDED.updated_at
RETURNING ` + callColumns

	return scanCall(r.db.QueryRowContext(ctx, q,
		c.CallID,
		c.OrgID,
		c.ProviderCallID,
		c.LeadID,
		c.SessionID,
		c.UserID,
		c.From,
		c.To,
		c.Direction,
		c.Status,
		c.Outcome,
		c.StartedAt,
		c.EndedAt,
		c.DurationSeconds,
		c.RecordingURL,
		c.Transcript,
		c.Notes,
		now,
		now,
	))
}

func (r *PGRepo) GetByProviderCallID(ctx context.Context, orgID, providerCallID string) (Call, bool, error) {
	if orgID == "" {
		return Call{}, false, errors.New("calls: org_id required")
	}
	const q = `
SELECT ` + callColumns + `
FROM calls
WHERE org_id = $1 AND provider_call_id = $2
`
	c, err := scanCall(r.db.QueryRowContext(ctx, q, orgID, providerCallID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Call{}, false, nil
		}
		return Call{}, false, err
	}
	return c, true, nil
}

func (r *PGRepo) Update(ctx context.Context, c Call) error {
	const q = `
UPDATE calls
SET lead_id = $3, session_id = $4, user_id = $5,
    from_address = $6, to_address = $7, direction = $8,
    status = $9, outcome = $10, started_at = $11, ended_at = $12,
    duration = $13, recording_url = $14, transcript = $15, notes = $16,
    updated_at = $17
WHERE org_id = $1 AND call_id = $2
`
	res, err := r.db.ExecContext(ctx, q,
		c.OrgID,
		c.CallID,
		c.LeadID,
		c.SessionID,
		c.UserID,
		c.From,
		c.To,
		c.Direction,
		c.Status,
		c.Outcome,
		c.StartedAt,
		c.EndedAt,
		c.DurationSeconds,
		c.RecordingURL,
		c.Transcript,
		c.Notes,
		r.clock().UTC(),
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
