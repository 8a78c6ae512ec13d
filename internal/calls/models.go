package calls

import "time"

// Call represents one telephony leg, tenant-scoped.
//
// Multi-tenant invariant: OrgID is required on every row.
//
// Idempotency invariant: ProviderCallID is unique per org. The provider may
// retry webhook deliveries, so writes keyed by ProviderCallID must be upserts.
//
// Active-call invariant: at most one call with a non-terminal status exists
// per (LeadID, SessionID) pair. The completion flow relies on this lookup to
// find the call being wrapped up.

type Call struct {
	CallID         string `json:"call_id" db:"call_id"`
	OrgID          string `json:"org_id" db:"org_id"`
	ProviderCallID string `json:"provider_call_id" db:"provider_call_id"`

	LeadID    string `json:"lead_id,omitempty" db:"lead_id"`
	SessionID string `json:"session_id,omitempty" db:"session_id"`
	UserID    string `json:"user_id,omitempty" db:"user_id"`

	From string `json:"from" db:"from_address"`
	To   string `json:"to" db:"to_address"`

	Direction Direction  `json:"direction" db:"direction"`
	Status    CallStatus `json:"status" db:"status"`
	Outcome   Outcome    `json:"outcome,omitempty" db:"outcome"`

	StartedAt time.Time  `json:"started_at" db:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty" db:"ended_at"`

	// DurationSeconds is the call duration in seconds.
	DurationSeconds int `json:"duration" db:"duration"`

	RecordingURL string `json:"recording_url,omitempty" db:"recording_url"`
	Transcript   string `json:"transcript,omitempty" db:"transcript"`
	Notes        string `json:"notes,omitempty" db:"notes"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Active reports whether the call has not yet reached a terminal status.
func (c Call) Active() bool {
	switch c.Status {
	case CallStatusCompleted, CallStatusFailed, CallStatusCanceled:
		return false
	default:
		return true
	}
}

type CallStatus string

const (
	CallStatusQueued     CallStatus = "queued"
	CallStatusRinging    CallStatus = "ringing"
	CallStatusInProgress CallStatus = "in_progress"
	CallStatusCompleted  CallStatus = "completed"
	CallStatusFailed     CallStatus = "failed"
	CallStatusCanceled   CallStatus = "canceled"
)

type Direction string

const (
	DirectionInbound        Direction = "inbound"
	DirectionOutboundAPI    Direction = "outbound-api"
	DirectionClientOutbound Direction = "client-outbound"
)
