package audit

import "time"

// Event is a data-consistency signal worth keeping: situations where the
// telephony flow and the CRM's stored state disagree. These are not request
// errors; they are evidence that something upstream (a missed webhook, a
// deleted lead, a misconfigured number) left the data inconsistent.
type Event struct {
	EventID string    `json:"event_id" db:"event_id"`
	OrgID   string    `json:"org_id,omitempty" db:"org_id"`
	Kind    Kind      `json:"kind" db:"kind"`
	At      time.Time `json:"at" db:"at"`

	ProviderCallID string `json:"provider_call_id,omitempty" db:"provider_call_id"`
	LeadID         string `json:"lead_id,omitempty" db:"lead_id"`
	SessionID      string `json:"session_id,omitempty" db:"session_id"`

	Detail string `json:"detail,omitempty" db:"detail"`
}

type Kind string

const (
	// KindNoActiveCall: an outcome submission found no active call row.
	KindNoActiveCall Kind = "no_active_call"

	// KindUnknownOrgNumber: an inbound event's To number resolved to no org.
	KindUnknownOrgNumber Kind = "unknown_org_number"

	// KindUnmatchedRecording: a recording callback matched no stored record.
	KindUnmatchedRecording Kind = "unmatched_recording"
)
