package telephony

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"callcenter-crm/internal/calls"
)

// The provider posts application/x-www-form-urlencoded webhooks. Payloads are
// untrusted and partially populated; parsing decides ONCE whether this is a
// live call to route or a recording callback, and downstream code never
// re-checks. The org id field is advisory only; when absent the caller must
// resolve ownership by matching the dialed number.

// ClientScheme is the internal software-phone address prefix. A From address
// carrying it always means a client-initiated outbound call, regardless of
// the Direction field.
const ClientScheme = "client:"

// Event is the tagged webhook variant: LiveCallEvent or RecordingCallbackEvent.
type Event interface{ isEvent() }

// LiveCallEvent is a call-progress notification that needs a call-control
// response.
type LiveCallEvent struct {
	ProviderCallID string
	From           string
	To             string
	Direction      calls.Direction
	CallStatus     string

	LeadID    string
	SessionID string
	UserID    string
	OrgID     string

	// CallerIDOverride is the optional custom caller id requested by the
	// dialer (form field fromNumber).
	CallerIDOverride string
}

func (LiveCallEvent) isEvent() {}

// RecordingCallbackEvent reports a recording's lifecycle. Only terminal
// statuses are processed; in-progress notifications are acknowledged and
// dropped.
type RecordingCallbackEvent struct {
	ProviderCallID  string
	RecordingURL    string
	RecordingStatus string
	DurationSeconds int

	// TranscriptionText is an optional provider-supplied transcript, kept as
	// a fallback when the configured transcription engine fails.
	TranscriptionText string

	OrgID string
}

func (RecordingCallbackEvent) isEvent() {}

// Terminal reports whether the recording has reached a final state. An empty
// status with a recording url present is treated as terminal; some provider
// API versions omit the status on the final callback.
func (e RecordingCallbackEvent) Terminal() bool {
	switch e.RecordingStatus {
	case "", "completed", "failed":
		return true
	default:
		return false
	}
}

var ErrMissingCallSid = errors.New("telephony: CallSid is required")

// ParseWebhookForm normalizes a provider webhook into a tagged Event.
func ParseWebhookForm(r *http.Request) (Event, error) {
	if err := r.ParseForm(); err != nil {
		return nil, err
	}

	callSid := strings.TrimSpace(r.PostFormValue("CallSid"))
	if callSid == "" {
		return nil, ErrMissingCallSid
	}

	if recordingURL := strings.TrimSpace(r.PostFormValue("RecordingUrl")); recordingURL != "" {
		duration, _ := strconv.Atoi(strings.TrimSpace(r.PostFormValue("RecordingDuration")))
		return RecordingCallbackEvent{
			ProviderCallID:    callSid,
			RecordingURL:      recordingURL,
			RecordingStatus:   strings.TrimSpace(r.PostFormValue("RecordingStatus")),
			DurationSeconds:   duration,
			TranscriptionText: r.PostFormValue("TranscriptionText"),
			OrgID:             strings.TrimSpace(r.PostFormValue("orgId")),
		}, nil
	}

	from := NormalizeAddress(r.PostFormValue("From"))
	ev := LiveCallEvent{
		ProviderCallID:   callSid,
		From:             from,
		To:               NormalizeAddress(r.PostFormValue("To")),
		Direction:        parseDirection(r.PostFormValue("Direction"), from),
		CallStatus:       strings.TrimSpace(r.PostFormValue("CallStatus")),
		LeadID:           strings.TrimSpace(r.PostFormValue("leadId")),
		SessionID:        strings.TrimSpace(r.PostFormValue("callSessionId")),
		UserID:           strings.TrimSpace(r.PostFormValue("userId")),
		OrgID:            strings.TrimSpace(r.PostFormValue("orgId")),
		CallerIDOverride: NormalizeAddress(r.PostFormValue("fromNumber")),
	}
	return ev, nil
}

// parseDirection maps the provider's loose direction strings onto the closed
// internal enum. The client address scheme wins over whatever the provider
// claims; direction is ambiguous on client-originated legs.
func parseDirection(raw, from string) calls.Direction {
	if strings.HasPrefix(from, ClientScheme) {
		return calls.DirectionClientOutbound
	}
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "inbound":
		return calls.DirectionInbound
	case "outbound-api", "outbound-dial", "outbound":
		return calls.DirectionOutboundAPI
	default:
		return calls.DirectionInbound
	}
}
