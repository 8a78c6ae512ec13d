package leads

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
)

// Postgres repositories for the lead-side entities.
//
// Assumed tables: leads, prospects, lead_activities, follow_ups.
// All carry org_id and all queries filter on it.

const uniqueViolation = "23505"

func mapPGError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrConflict
	}
	return err
}

/* ===================== LEADS ===================== */

type PGLeadRepo struct {
	db    *sql.DB
	clock func() time.Time
}

func NewPGLeadRepo(db *sql.DB) *PGLeadRepo { return &PGLeadRepo{db: db, clock: time.Now} }

func (r *PGLeadRepo) Get(ctx context.Context, orgID, leadID string) (Lead, error) {
	const q = `
SELECT lead_id, org_id, campaign_id, name, phone, status, created_at, updated_at
FROM leads
WHERE org_id = $1 AND lead_id = $2
`
	var l Lead
	err := r.db.QueryRowContext(ctx, q, orgID, leadID).Scan(
		&l.LeadID,
		&l.OrgID,
		&l.CampaignID,
		&l.Name,
		&l.Phone,
		&l.Status,
		&l.CreatedAt,
		&l.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Lead{}, ErrNotFound
		}
		return Lead{}, err
	}
	return l, nil
}

func (r *PGLeadRepo) FindByPhone(ctx context.Context, orgID, phone string) (Lead, bool, error) {
	const q = `
SELECT lead_id, org_id, campaign_id, name, phone, status, created_at, updated_at
FROM leads
WHERE org_id = $1 AND phone = $2
ORDER BY created_at DESC
LIMIT 1
`
	var l Lead
	err := r.db.QueryRowContext(ctx, q, orgID, phone).Scan(
		&l.LeadID,
		&l.OrgID,
		&l.CampaignID,
		&l.Name,
		&l.Phone,
		&l.Status,
		&l.CreatedAt,
		&l.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Lead{}, false, nil
		}
		return Lead{}, false, err
	}
	return l, true, nil
}

func (r *PGLeadRepo) UpdateStatus(ctx context.Context, orgID, leadID string, status Status) error {
	const q = `
UPDATE leads SET status = $3, updated_at = $4
WHERE org_id = $1 AND lead_id = $2
`
	res, err := r.db.ExecContext(ctx, q, orgID, leadID, status, r.clock().UTC())
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

/* ===================== PROSPECTS ===================== */

type PGProspectRepo struct {
	db    *sql.DB
	clock func() time.Time
}

func NewPGProspectRepo(db *sql.DB) *PGProspectRepo { return &PGProspectRepo{db: db, clock: time.Now} }

func (r *PGProspectRepo) Create(ctx context.Context, p Prospect) (Prospect, error) {
	if p.ProspectID == "" {
		p.ProspectID = uuid.NewString()
	}
	now := r.clock().UTC()
	p.CreatedAt = now
	p.UpdatedAt = now
	const q = `
INSERT INTO prospects (prospect_id, org_id, phone, provider_call_id, recording_url, transcript, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
`
	_, err := r.db.ExecContext(ctx, q,
		p.ProspectID, p.OrgID, p.Phone, p.ProviderCallID, p.RecordingURL, p.Transcript, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return Prospect{}, mapPGError(err)
	}
	return p, nil
}

func (r *PGProspectRepo) FindByProviderCallID(ctx context.Context, orgID, providerCallID string) (Prospect, bool, error) {
	const q = `
SELECT prospect_id, org_id, phone, provider_call_id, recording_url, transcript, created_at, updated_at
FROM prospects
WHERE org_id = $1 AND provider_call_id = $2
LIMIT 1
`
	var p Prospect
	err := r.db.QueryRowContext(ctx, q, orgID, providerCallID).Scan(
		&p.ProspectID, &p.OrgID, &p.Phone, &p.ProviderCallID, &p.RecordingURL, &p.Transcript, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Prospect{}, false, nil
		}
		return Prospect{}, false, err
	}
	return p, true, nil
}

func (r *PGProspectRepo) AttachRecording(ctx context.Context, orgID, prospectID, recordingURL, transcript string) error {
	const q = `
UPDATE prospects SET recording_url = $3, transcript = $4, updated_at = $5
WHERE org_id = $1 AND prospect_id = $2
`
	res, err := r.db.ExecContext(ctx, q, orgID, prospectID, recordingURL, transcript, r.clock().UTC())
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

/* ===================== ACTIVITIES ===================== */

type PGActivityRepo struct {
	db    *sql.DB
	clock func() time.Time
}

func NewPGActivityRepo(db *sql.DB) *PGActivityRepo { return &PGActivityRepo{db: db, clock: time.Now} }

const activityColumns = `
activity_id, org_id, lead_id, call_id, session_id, type, outcome, content,
duration, attempt_count, open, created_by, created_at, updated_at
`

func (r *PGActivityRepo) Insert(ctx context.Context, a Activity) (Activity, error) {
	if a.ActivityID == "" {
		a.ActivityID = uuid.NewString()
	}
	now := r.clock().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now
	const q = `
INSERT INTO lead_activities (` + activityColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
`
	_, err := r.db.ExecContext(ctx, q,
		a.ActivityID, a.OrgID, a.LeadID, a.CallID, a.SessionID, a.Type, a.Outcome, a.Content,
		a.DurationSeconds, a.AttemptCount, a.Open, a.CreatedBy, a.CreatedAt, a.UpdatedAt)
	if err != nil {
		return Activity{}, mapPGError(err)
	}
	return a, nil
}

func (r *PGActivityRepo) ListByLead(ctx context.Context, orgID, leadID string) ([]Activity, error) {
	const q = `
SELECT ` + activityColumns + `
FROM lead_activities
WHERE org_id = $1 AND lead_id = $2
ORDER BY created_at DESC
`
	rows, err := r.db.QueryContext(ctx, q, orgID, leadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Activity, 0)
	for rows.Next() {
		var a Activity
		if err := rows.Scan(
			&a.ActivityID, &a.OrgID, &a.LeadID, &a.CallID, &a.SessionID, &a.Type, &a.Outcome, &a.Content,
			&a.DurationSeconds, &a.AttemptCount, &a.Open, &a.CreatedBy, &a.CreatedAt, &a.UpdatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

/* ===================== FOLLOW-UPS ===================== */

type PGFollowUpRepo struct {
	db    *sql.DB
	clock func() time.Time
}

func NewPGFollowUpRepo(db *sql.DB) *PGFollowUpRepo { return &PGFollowUpRepo{db: db, clock: time.Now} }

const followUpColumns = `
follow_up_id, org_id, lead_id, call_id, provider_call_id, type, reason,
due_at, completed, recording_url, transcript, created_at, updated_at
`

func (r *PGFollowUpRepo) Create(ctx context.Context, f FollowUp) (FollowUp, error) {
	if f.FollowUpID == "" {
		f.FollowUpID = uuid.NewString()
	}
	now := r.clock().UTC()
	f.CreatedAt = now
	f.UpdatedAt = now
	const q = `
INSERT INTO follow_ups (` + followUpColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
`
	_, err := r.db.ExecContext(ctx, q,
		f.FollowUpID, f.OrgID, f.LeadID, f.CallID, f.ProviderCallID, f.Type, f.Reason,
		f.DueAt, f.Completed, f.RecordingURL, f.Transcript, f.CreatedAt, f.UpdatedAt)
	if err != nil {
		return FollowUp{}, mapPGError(err)
	}
	return f, nil
}

func (r *PGFollowUpRepo) FindByProviderCallID(ctx context.Context, orgID, providerCallID string) (FollowUp, bool, error) {
	const q = `
SELECT ` + followUpColumns + `
FROM follow_ups
WHERE org_id = $1 AND provider_call_id = $2
ORDER BY created_at DESC
LIMIT 1
`
	var f FollowUp
	err := r.db.QueryRowContext(ctx, q, orgID, providerCallID).Scan(
		&f.FollowUpID, &f.OrgID, &f.LeadID, &f.CallID, &f.ProviderCallID, &f.Type, &f.Reason,
		&f.DueAt, &f.Completed, &f.RecordingURL, &f.Transcript, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return FollowUp{}, false, nil
		}
		return FollowUp{}, false, err
	}
	return f, true, nil
}

func (r *PGFollowUpRepo) AttachRecording(ctx context.Context, orgID, followUpID, recordingURL, transcript string) error {
	const q = `
UPDATE follow_ups SET recording_url = $3, transcript = $4, updated_at = $5
WHERE org_id = $1 AND follow_up_id = $2
`
	res, err := r.db.ExecContext(ctx, q, orgID, followUpID, recordingURL, transcript, r.clock().UTC())
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
