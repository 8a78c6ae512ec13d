package sessions

import "time"

// CallSession aggregates statistics across the calls one agent makes in one
// sitting. Counters are incremented exactly once per completed call and never
// decremented.
//
// OrgID is backfilled lazily from the first completed call that references
// the session; the dialer client creates sessions before it knows which
// campaign (and therefore which org) the agent is working.

type CallSession struct {
	SessionID string `json:"session_id" db:"session_id"`
	OrgID     string `json:"org_id,omitempty" db:"org_id"`
	AgentID   string `json:"agent_id,omitempty" db:"agent_id"`

	TotalCalls           int `json:"total_calls" db:"total_calls"`
	SuccessfulCalls      int `json:"successful_calls" db:"successful_calls"`
	TotalDurationSeconds int `json:"total_duration_seconds" db:"total_duration_seconds"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Delta is one completed call's contribution to the session counters.
type Delta struct {
	Successful      bool
	DurationSeconds int

	// OrgID backfills the session's org if the session has none yet.
	OrgID string
}
