package phonecfg

import (
	"context"
	"database/sql"
	"errors"
)

// PGRepo reads phone configuration from Postgres (table phone_configurations,
// one row per org, upserted by the settings UI).

type PGRepo struct {
	db *sql.DB
}

func NewPGRepo(db *sql.DB) *PGRepo { return &PGRepo{db: db} }

func (r *PGRepo) Resolve(ctx context.Context, orgID string) (Config, error) {
	if orgID == "" {
		return Config{}, errOrgRequired
	}
	const q = `
SELECT org_id, recording_enabled, record_inbound_calls, record_outbound_calls,
       min_outbound_duration_seconds, transcription_provider, transcribe_inbound,
       transcribe_outbound, inbound_flow, voicemail_message, forward_to_number,
       auto_create_leads, auto_create_follow_ups, updated_at
FROM phone_configurations
WHERE org_id = $1
`
	var c Config
	err := r.db.QueryRowContext(ctx, q, orgID).Scan(
		&c.OrgID,
		&c.RecordingEnabled,
		&c.RecordInboundCalls,
		&c.RecordOutboundCalls,
		&c.MinOutboundDurationSeconds,
		&c.TranscriptionProvider,
		&c.TranscribeInbound,
		&c.TranscribeOutbound,
		&c.InboundFlow,
		&c.VoicemailMessage,
		&c.ForwardToNumber,
		&c.AutoCreateLeads,
		&c.AutoCreateFollowUps,
		&c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Default(orgID), nil
		}
		return Config{}, err
	}
	return c, nil
}
