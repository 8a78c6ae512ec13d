package sessions

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// PGRepo persists call sessions in Postgres.
//
// Bump uses an upsert so the first completed call can create the row, and
// COALESCE-style backfill keeps org_id stable once set.

type PGRepo struct {
	db    *sql.DB
	clock func() time.Time
}

func NewPGRepo(db *sql.DB) *PGRepo { return &PGRepo{db: db, clock: time.Now} }

func (r *PGRepo) Get(ctx context.Context, sessionID string) (CallSession, error) {
	const q = `
SELECT session_id, org_id, agent_id, total_calls, successful_calls, total_duration_seconds, created_at, updated_at
FROM call_sessions
WHERE session_id = $1
`
	var s CallSession
	err := r.db.QueryRowContext(ctx, q, sessionID).Scan(
		&s.SessionID,
		&s.OrgID,
		&s.AgentID,
		&s.TotalCalls,
		&s.SuccessfulCalls,
		&s.TotalDurationSeconds,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return CallSession{}, ErrNotFound
		}
		return CallSession{}, err
	}
	return s, nil
}

func (r *PGRepo) Bump(ctx context.Context, sessionID string, d Delta) (CallSession, error) {
	if sessionID == "" {
		return CallSession{}, errors.New("sessions: session_id required")
	}
	now := r.clock().UTC()
	successDelta := 0
	if d.Successful {
		successDelta = 1
	}
	const q = `
INSERT INTO call_sessions (session_id, org_id, agent_id, total_calls, successful_calls, total_duration_seconds, created_at, updated_at)
VALUES ($1, $2, '', 1, $3, $4, $5, $5)
ON CONFLICT (session_id)
DO UPDATE SET
  total_calls = call_sessions.total_calls + 1,
  successful_calls = call_sessions.successful_calls + EXCLUDED.successful_calls,
  total_duration_seconds = call_sessions.total_duration_seconds + EXCLUDED.total_duration_seconds,
  org_id = CASE WHEN call_sessions.org_id = '' THEN EXCLUDED.org_id ELSE call_sessions.org_id END,
  updated_at = EXCLUDED.updated_at
RETURNING session_id, org_id, agent_id, total_calls, successful_calls, total_duration_seconds, created_at, updated_at
`
	var s CallSession
	err := r.db.QueryRowContext(ctx, q, sessionID, d.OrgID, successDelta, d.DurationSeconds, now).Scan(
		&s.SessionID,
		&s.OrgID,
		&s.AgentID,
		&s.TotalCalls,
		&s.SuccessfulCalls,
		&s.TotalDurationSeconds,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return CallSession{}, err
	}
	return s, nil
}
