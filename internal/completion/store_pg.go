package completion

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"callcenter-crm/internal/calls"
	"callcenter-crm/internal/leads"
	"callcenter-crm/internal/sessions"
	"callcenter-crm/pkg/utils"
)

// PGStore runs the completion unit of work inside a real database
// transaction. The active-call and open-attempts reads take row locks so two
// concurrent submissions for the same lead serialize instead of both reading
// the same pre-update state.

type PGStore struct {
	db    *sql.DB
	clock func() time.Time
}

func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db, clock: time.Now}
}

func (s *PGStore) SetClock(clock func() time.Time) { s.clock = clock }

func (s *PGStore) InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	return utils.WithTx(ctx, s.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		return fn(ctx, pgTx{tx: tx, clock: s.clock})
	})
}

type pgTx struct {
	tx    *sql.Tx
	clock func() time.Time
}

func (t pgTx) LeadCampaign(ctx context.Context, orgID, leadID string) (string, error) {
	const q = `
SELECT campaign_id FROM leads
WHERE org_id = $1 AND lead_id = $2
`
	var campaignID string
	err := t.tx.QueryRowContext(ctx, q, orgID, leadID).Scan(&campaignID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrLeadNotFound
		}
		return "", err
	}
	return campaignID, nil
}

const callColumns = `
call_id, org_id, provider_call_id, lead_id, session_id, user_id,
from_address, to_address, direction, status, outcome,
started_at, ended_at, duration, recording_url, transcript, notes,
created_at, updated_at
`

func (t pgTx) ActiveCall(ctx context.Context, orgID, leadID, sessionID string) (calls.Call, error) {
	const q = `
SELECT ` + callColumns + `
FROM calls
WHERE org_id = $1 AND lead_id = $2 AND session_id = $3
  AND status NOT IN ('completed','failed','canceled')
ORDER BY created_at DESC
LIMIT 1
FOR UPDATE
`
	var c calls.Call
	var endedAt sql.NullTime
	err := t.tx.QueryRowContext(ctx, q, orgID, leadID, sessionID).Scan(
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
		if errors.Is(err, sql.ErrNoRows) {
			return calls.Call{}, ErrNoActiveCall
		}
		return calls.Call{}, err
	}
	if endedAt.Valid {
		v := endedAt.Time
		c.EndedAt = &v
	}
	return c, nil
}

func (t pgTx) UpdateCall(ctx context.Context, c calls.Call) error {
	const q = `
UPDATE calls
SET status = $3, outcome = $4, started_at = $5, ended_at = $6,
    duration = $7, notes = $8, user_id = $9, updated_at = $10
WHERE org_id = $1 AND call_id = $2
`
	res, err := t.tx.ExecContext(ctx, q,
		c.OrgID, c.CallID,
		c.Status, c.Outcome, c.StartedAt, c.EndedAt,
		c.DurationSeconds, c.Notes, c.UserID, t.clock().UTC())
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNoActiveCall
	}
	return nil
}

func (t pgTx) OpenContactAttempts(ctx context.Context, orgID, leadID string) (leads.Activity, bool, error) {
	const q = `
SELECT activity_id, org_id, lead_id, call_id, session_id, type, outcome, content,
       duration, attempt_count, open, created_by, created_at, updated_at
FROM lead_activities
WHERE org_id = $1 AND lead_id = $2 AND type = $3 AND open
ORDER BY created_at DESC
LIMIT 1
FOR UPDATE
`
	var a leads.Activity
	err := t.tx.QueryRowContext(ctx, q, orgID, leadID, leads.ActivityContactAttempts).Scan(
		&a.ActivityID, &a.OrgID, &a.LeadID, &a.CallID, &a.SessionID, &a.Type, &a.Outcome, &a.Content,
		&a.DurationSeconds, &a.AttemptCount, &a.Open, &a.CreatedBy, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return leads.Activity{}, false, nil
		}
		return leads.Activity{}, false, err
	}
	return a, true, nil
}

func (t pgTx) UpdateActivity(ctx context.Context, a leads.Activity) error {
	const q = `
UPDATE lead_activities
SET call_id = $3, session_id = $4, outcome = $5, content = $6,
    duration = $7, attempt_count = $8, open = $9, updated_at = $10
WHERE org_id = $1 AND activity_id = $2
`
	res, err := t.tx.ExecContext(ctx, q,
		a.OrgID, a.ActivityID,
		a.CallID, a.SessionID, a.Outcome, a.Content,
		a.DurationSeconds, a.AttemptCount, a.Open, t.clock().UTC())
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return leads.ErrNotFound
	}
	return nil
}

func (t pgTx) InsertActivity(ctx context.Context, a leads.Activity) (leads.Activity, error) {
	if a.ActivityID == "" {
		a.ActivityID = uuid.NewString()
	}
	now := t.clock().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now
	const q = `
INSERT INTO lead_activities (activity_id, org_id, lead_id, call_id, session_id, type, outcome, content,
                             duration, attempt_count, open, created_by, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
`
	_, err := t.tx.ExecContext(ctx, q,
		a.ActivityID, a.OrgID, a.LeadID, a.CallID, a.SessionID, a.Type, a.Outcome, a.Content,
		a.DurationSeconds, a.AttemptCount, a.Open, a.CreatedBy, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return leads.Activity{}, err
	}
	return a, nil
}

func (t pgTx) InsertFollowUp(ctx context.Context, f leads.FollowUp) (leads.FollowUp, error) {
	if f.FollowUpID == "" {
		f.FollowUpID = uuid.NewString()
	}
	now := t.clock().UTC()
	f.CreatedAt = now
	f.UpdatedAt = now
	const q = `
INSERT INTO follow_ups (follow_up_id, org_id, lead_id, call_id, provider_call_id, type, reason,
                        due_at, completed, recording_url, transcript, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
`
	_, err := t.tx.ExecContext(ctx, q,
		f.FollowUpID, f.OrgID, f.LeadID, f.CallID, f.ProviderCallID, f.Type, f.Reason,
		f.DueAt, f.Completed, f.RecordingURL, f.Transcript, f.CreatedAt, f.UpdatedAt)
	if err != nil {
		return leads.FollowUp{}, err
	}
	return f, nil
}

func (t pgTx) UpdateLeadStatus(ctx context.Context, orgID, leadID string, status leads.Status) error {
	const q = `
UPDATE leads SET status = $3, updated_at = $4
WHERE org_id = $1 AND lead_id = $2
`
	res, err := t.tx.ExecContext(ctx, q, orgID, leadID, status, t.clock().UTC())
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrLeadNotFound
	}
	return nil
}

func (t pgTx) BumpSession(ctx context.Context, sessionID string, d sessions.Delta) error {
	now := t.clock().UTC()
	successInc := 0
	if d.Successful {
		successInc = 1
	}
	const q = `
INSERT INTO call_sessions (session_id, org_id, total_calls, successful_calls, total_duration, created_at, updated_at)
VALUES ($1, $2, 1, $3, $4, $5, $5)
ON CONFLICT (session_id)
DO UPDATE SET
  total_calls      = call_sessions.total_calls + 1,
  successful_calls = call_sessions.successful_calls + EXCLUDED.successful_calls,
  total_duration   = call_sessions.total_duration + EXCLUDED.total_duration,
  org_id           = CASE WHEN call_sessions.org_id = '' THEN EXCLUDED.org_id ELSE call_sessions.org_id END,
  updated_at       = EXCLUDED.updated_at
`
	_, err := t.tx.ExecContext(ctx, q, sessionID, d.OrgID, successInc, d.DurationSeconds, now)
	return err
}
