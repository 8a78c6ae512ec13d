package training

import "time"

// Marker tags a provider call as a training call so the recording callback
// can classify its owner later. Created by the routing engine's training
// branch; looked up first during recording classification.

type Marker struct {
	MarkerID       string `json:"marker_id" db:"marker_id"`
	OrgID          string `json:"org_id" db:"org_id"`
	ProviderCallID string `json:"provider_call_id" db:"provider_call_id"`
	AgentID        string `json:"agent_id,omitempty" db:"agent_id"`

	RecordingURL string `json:"recording_url,omitempty" db:"recording_url"`
	Transcript   string `json:"transcript,omitempty" db:"transcript"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
