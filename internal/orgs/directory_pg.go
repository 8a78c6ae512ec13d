package orgs

import (
	"context"
	"database/sql"
	"errors"
)

// PGDirectory resolves org ownership from Postgres.
//
// Assumed tables:
// - org_numbers (number, org_id) with number unique
// - organizations (org_id, training_source_number)

type PGDirectory struct {
	db *sql.DB
}

func NewPGDirectory(db *sql.DB) *PGDirectory { return &PGDirectory{db: db} }

func (d *PGDirectory) ResolveByNumber(ctx context.Context, e164 string) (string, error) {
	const q = `SELECT org_id FROM org_numbers WHERE number = $1`
	var orgID string
	if err := d.db.QueryRowContext(ctx, q, e164).Scan(&orgID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}
	return orgID, nil
}

func (d *PGDirectory) TrainingSource(ctx context.Context, orgID string) (string, bool, error) {
	const q = `SELECT training_source_number FROM organizations WHERE org_id = $1`
	var number string
	if err := d.db.QueryRowContext(ctx, q, orgID).Scan(&number); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, err
	}
	return number, number != "", nil
}
