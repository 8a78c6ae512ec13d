package leads

import "time"

// Lead is a tenant-scoped prospect the call center is working.
// Only the fields the call-orchestration core touches are modeled here;
// generic lead CRUD lives outside this service.

type Lead struct {
	LeadID     string `json:"lead_id" db:"lead_id"`
	OrgID      string `json:"org_id" db:"org_id"`
	CampaignID string `json:"campaign_id,omitempty" db:"campaign_id"`

	Name  string `json:"name,omitempty" db:"name"`
	Phone string `json:"phone" db:"phone"`

	Status Status `json:"status" db:"status"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Status is the lead pipeline status driven by call outcomes.
type Status string

const (
	StatusNew               Status = "New"
	StatusContacted         Status = "Contacted"
	StatusLost              Status = "Lost"
	StatusFollowUpScheduled Status = "Follow-up Scheduled"
)

// Prospect is an unknown inbound caller captured before qualification.
// Created by the inbound routing branch when auto-create is enabled.
type Prospect struct {
	ProspectID     string `json:"prospect_id" db:"prospect_id"`
	OrgID          string `json:"org_id" db:"org_id"`
	Phone          string `json:"phone" db:"phone"`
	ProviderCallID string `json:"provider_call_id,omitempty" db:"provider_call_id"`

	RecordingURL string `json:"recording_url,omitempty" db:"recording_url"`
	Transcript   string `json:"transcript,omitempty" db:"transcript"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Activity is a history entry on a lead.
//
// Two sub-kinds carry special semantics:
// - CONTACT_ATTEMPTS: a running aggregate. At most one open row per lead;
//   unsuccessful outcomes increment it instead of inserting.
// - CONTACTED: one row per successful contact, never merged.
type Activity struct {
	ActivityID string `json:"activity_id" db:"activity_id"`
	OrgID      string `json:"org_id" db:"org_id"`
	LeadID     string `json:"lead_id" db:"lead_id"`

	CallID    string `json:"call_id,omitempty" db:"call_id"`
	SessionID string `json:"session_id,omitempty" db:"session_id"`

	Type    ActivityType `json:"type" db:"type"`
	Outcome string       `json:"outcome,omitempty" db:"outcome"`
	Content string       `json:"content,omitempty" db:"content"`

	DurationSeconds int `json:"duration" db:"duration"`

	// AttemptCount is only meaningful for CONTACT_ATTEMPTS rows.
	AttemptCount int `json:"attempt_count,omitempty" db:"attempt_count"`

	// Open marks the aggregate row unsuccessful outcomes fold into.
	Open bool `json:"open" db:"open"`

	CreatedBy string `json:"created_by,omitempty" db:"created_by"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type ActivityType string

const (
	ActivityContactAttempts ActivityType = "CONTACT_ATTEMPTS"
	ActivityContacted       ActivityType = "CONTACTED"
	ActivityNote            ActivityType = "NOTE"
	ActivityEmail           ActivityType = "EMAIL"
	ActivityMeeting         ActivityType = "MEETING"
)

// FollowUp is a scheduled future action on a lead, optionally carrying the
// recording and transcript of the call that produced it.
type FollowUp struct {
	FollowUpID string `json:"follow_up_id" db:"follow_up_id"`
	OrgID      string `json:"org_id" db:"org_id"`
	LeadID     string `json:"lead_id" db:"lead_id"`

	CallID         string `json:"call_id,omitempty" db:"call_id"`
	ProviderCallID string `json:"provider_call_id,omitempty" db:"provider_call_id"`

	Type   string `json:"type" db:"type"`
	Reason string `json:"reason,omitempty" db:"reason"`

	DueAt     time.Time `json:"due_at" db:"due_at"`
	Completed bool      `json:"completed" db:"completed"`

	RecordingURL string `json:"recording_url,omitempty" db:"recording_url"`
	Transcript   string `json:"transcript,omitempty" db:"transcript"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

const (
	FollowUpTypeCallback         = "callback"
	FollowUpTypeInboundVoicemail = "inbound_voicemail"
)
