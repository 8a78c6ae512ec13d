package audit

import (
	"context"
	"database/sql"
)

// PGRepo appends consistency events to an append-only table.
type PGRepo struct {
	db *sql.DB
}

func NewPGRepo(db *sql.DB) *PGRepo { return &PGRepo{db: db} }

func (r *PGRepo) Append(ctx context.Context, e Event) error {
	const q = `
INSERT INTO audit_events (event_id, org_id, kind, at, provider_call_id, lead_id, session_id, detail)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
`
	_, err := r.db.ExecContext(ctx, q,
		e.EventID, e.OrgID, e.Kind, e.At, e.ProviderCallID, e.LeadID, e.SessionID, e.Detail)
	return err
}
