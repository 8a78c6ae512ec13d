package training

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

type PGRepo struct {
	db    *sql.DB
	clock func() time.Time
}

func NewPGRepo(db *sql.DB) *PGRepo { return &PGRepo{db: db, clock: time.Now} }

func (r *PGRepo) Create(ctx context.Context, m Marker) (Marker, error) {
	if m.OrgID == "" || m.ProviderCallID == "" {
		return Marker{}, errors.New("training: org_id and provider_call_id required")
	}
	if m.MarkerID == "" {
		m.MarkerID = uuid.NewString()
	}
	now := r.clock().UTC()
	m.CreatedAt = now
	m.UpdatedAt = now
	const q = `
INSERT INTO training_calls (marker_id, org_id, provider_call_id, agent_id, recording_url, transcript, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (org_id, provider_call_id) DO NOTHING
`
	if _, err := r.db.ExecContext(ctx, q,
		m.MarkerID, m.OrgID, m.ProviderCallID, m.AgentID, m.RecordingURL, m.Transcript, m.CreatedAt, m.UpdatedAt); err != nil {
		return Marker{}, err
	}
	return m, nil
}

func (r *PGRepo) FindByProviderCallID(ctx context.Context, orgID, providerCallID string) (Marker, bool, error) {
	const q = `
SELECT marker_id, org_id, provider_call_id, agent_id, recording_url, transcript, created_at, updated_at
FROM training_calls
WHERE org_id = $1 AND provider_call_id = $2
LIMIT 1
`
	var m Marker
	err := r.db.QueryRowContext(ctx, q, orgID, providerCallID).Scan(
		&m.MarkerID, &m.OrgID, &m.ProviderCallID, &m.AgentID, &m.RecordingURL, &m.Transcript, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Marker{}, false, nil
		}
		return Marker{}, false, err
	}
	return m, true, nil
}

func (r *PGRepo) AttachRecording(ctx context.Context, orgID, markerID, recordingURL, transcript string) error {
	const q = `
UPDATE training_calls SET recording_url = $3, transcript = $4, updated_at = $5
WHERE org_id = $1 AND marker_id = $2
`
	res, err := r.db.ExecContext(ctx, q, orgID, markerID, recordingURL, transcript, r.clock().UTC())
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
