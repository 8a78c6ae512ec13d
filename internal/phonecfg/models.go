package phonecfg

import "time"

// Config is an organization's recording/transcription/routing policy.
//
// Lifecycle: written only by the settings surface; the orchestration core is
// a pure reader. If no row exists for an org yet, reads return Default() so
// routing never blocks on missing configuration.

type Config struct {
	OrgID string `json:"org_id" db:"org_id"`

	RecordingEnabled    bool `json:"recording_enabled" db:"recording_enabled"`
	RecordInboundCalls  bool `json:"record_inbound_calls" db:"record_inbound_calls"`
	RecordOutboundCalls bool `json:"record_outbound_calls" db:"record_outbound_calls"`

	// MinOutboundDurationSeconds gates outbound recording persistence;
	// shorter calls close out with no recording or transcript.
	MinOutboundDurationSeconds int `json:"min_outbound_duration_seconds" db:"min_outbound_duration_seconds"`

	TranscriptionProvider TranscriptionProvider `json:"transcription_provider" db:"transcription_provider"`
	TranscribeInbound     bool                  `json:"transcribe_inbound" db:"transcribe_inbound"`
	TranscribeOutbound    bool                  `json:"transcribe_outbound" db:"transcribe_outbound"`

	InboundFlow      InboundFlow `json:"inbound_flow" db:"inbound_flow"`
	VoicemailMessage string      `json:"voicemail_message" db:"voicemail_message"`
	ForwardToNumber  string      `json:"forward_to_number" db:"forward_to_number"`

	AutoCreateLeads     bool `json:"auto_create_leads" db:"auto_create_leads"`
	AutoCreateFollowUps bool `json:"auto_create_follow_ups" db:"auto_create_follow_ups"`

	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type TranscriptionProvider string

const (
	TranscriptionDisabled TranscriptionProvider = "disabled"
	TranscriptionOpenAI   TranscriptionProvider = "openai"
	TranscriptionDeepgram TranscriptionProvider = "deepgram"
)

type InboundFlow string

const (
	InboundFlowVoicemail InboundFlow = "voicemail"
	InboundFlowForward   InboundFlow = "forward"
	InboundFlowIVR       InboundFlow = "ivr"
)

const defaultVoicemailMessage = "Thank you for calling. Please leave a message after the tone."

// Default is the policy applied when an org has no stored configuration.
func Default(orgID string) Config {
	return Config{
		OrgID:                      orgID,
		RecordingEnabled:           true,
		RecordInboundCalls:         true,
		RecordOutboundCalls:        true,
		MinOutboundDurationSeconds: 120,
		TranscriptionProvider:      TranscriptionDisabled,
		TranscribeInbound:          true,
		TranscribeOutbound:         true,
		InboundFlow:                InboundFlowVoicemail,
		VoicemailMessage:           defaultVoicemailMessage,
		AutoCreateLeads:            true,
		AutoCreateFollowUps:        true,
	}
}
