package recording

import (
	"context"
	"time"

	"callcenter-crm/internal/calls"
	"callcenter-crm/internal/leads"
	"callcenter-crm/internal/phonecfg"
	"callcenter-crm/internal/telephony"
	"callcenter-crm/internal/training"
	"callcenter-crm/internal/transcribe"
	"callcenter-crm/pkg/logger"
)

// Handler processes terminal recording callbacks.
//
// The owning record is classified with three org-scoped lookups, stopping at
// the first match: training marker, then follow-up/prospect (inbound), then
// call (outbound). Transcription is isolated: an engine failure degrades to
// the provider-supplied transcript or to no transcript, never to a failed
// callback, so call close-out is never blocked.

type Handler struct {
	Calls     calls.Repository
	FollowUps leads.FollowUpRepository
	Prospects leads.ProspectRepository
	Training  training.Repository
	Engines   *transcribe.Registry

	Now func() time.Time
}

func NewHandler(
	callRepo calls.Repository,
	followUpRepo leads.FollowUpRepository,
	prospectRepo leads.ProspectRepository,
	trainingRepo training.Repository,
	engines *transcribe.Registry,
) *Handler {
	return &Handler{
		Calls:     callRepo,
		FollowUps: followUpRepo,
		Prospects: prospectRepo,
		Training:  trainingRepo,
		Engines:   engines,
		Now:       time.Now,
	}
}

func (h *Handler) Handle(ctx context.Context, orgID string, ev telephony.RecordingCallbackEvent, policy phonecfg.Config) error {
	log := logger.From(ctx)

	if marker, ok, err := h.Training.FindByProviderCallID(ctx, orgID, ev.ProviderCallID); err != nil {
		return err
	} else if ok {
		return h.handleTraining(ctx, orgID, marker, ev, policy)
	}

	if followUp, ok, err := h.FollowUps.FindByProviderCallID(ctx, orgID, ev.ProviderCallID); err != nil {
		return err
	} else if ok {
		return h.handleInboundFollowUp(ctx, orgID, followUp, ev, policy)
	}

	if prospect, ok, err := h.Prospects.FindByProviderCallID(ctx, orgID, ev.ProviderCallID); err != nil {
		return err
	} else if ok {
		return h.handleInboundProspect(ctx, orgID, prospect, ev, policy)
	}

	if call, ok, err := h.Calls.GetByProviderCallID(ctx, orgID, ev.ProviderCallID); err != nil {
		return err
	} else if ok {
		return h.handleOutbound(ctx, call, ev, policy)
	}

	log.Warn("recording callback matched no record",
		"org_id", orgID, "provider_call_id", ev.ProviderCallID)
	return nil
}

// handleTraining always transcribes; training feedback quality must not
// depend on the org's transcription settings.
func (h *Handler) handleTraining(ctx context.Context, orgID string, marker training.Marker, ev telephony.RecordingCallbackEvent, policy phonecfg.Config) error {
	transcript := h.transcribeIsolated(ctx, policy.TranscriptionProvider, ev)
	return h.Training.AttachRecording(ctx, orgID, marker.MarkerID, ev.RecordingURL, transcript)
}

// Inbound voicemails are short and always worth transcribing when inbound
// recording is on, regardless of duration.
func (h *Handler) handleInboundFollowUp(ctx context.Context, orgID string, f leads.FollowUp, ev telephony.RecordingCallbackEvent, policy phonecfg.Config) error {
	transcript := ""
	if policy.RecordInboundCalls && policy.TranscribeInbound {
		transcript = h.transcribeIsolated(ctx, policy.TranscriptionProvider, ev)
	}
	return h.FollowUps.AttachRecording(ctx, orgID, f.FollowUpID, ev.RecordingURL, transcript)
}

func (h *Handler) handleInboundProspect(ctx context.Context, orgID string, p leads.Prospect, ev telephony.RecordingCallbackEvent, policy phonecfg.Config) error {
	transcript := ""
	if policy.RecordInboundCalls && policy.TranscribeInbound {
		transcript = h.transcribeIsolated(ctx, policy.TranscriptionProvider, ev)
	}
	return h.Prospects.AttachRecording(ctx, orgID, p.ProspectID, ev.RecordingURL, transcript)
}

// handleOutbound gates recording persistence on the policy and the minimum
// duration. Gated-out calls are still marked completed with end time and
// duration; a short or unrecorded call must close out cleanly so the lead
// and session reconciliation is never blocked on a missing terminal state.
func (h *Handler) handleOutbound(ctx context.Context, call calls.Call, ev telephony.RecordingCallbackEvent, policy phonecfg.Config) error {
	// Duplicate terminal callback; the first delivery already closed the
	// call. Re-running would bill transcription again and could overwrite an
	// engine transcript with the provider fallback.
	if call.Status == calls.CallStatusCompleted {
		return nil
	}

	now := h.Now().UTC()

	call.Status = calls.CallStatusCompleted
	call.DurationSeconds = ev.DurationSeconds
	if call.EndedAt == nil {
		call.EndedAt = &now
	}

	keep := policy.RecordingEnabled &&
		policy.RecordOutboundCalls &&
		ev.DurationSeconds >= policy.MinOutboundDurationSeconds

	if keep {
		call.RecordingURL = ev.RecordingURL
		if policy.TranscribeOutbound {
			call.Transcript = h.transcribeIsolated(ctx, policy.TranscriptionProvider, ev)
		}
	}

	return h.Calls.Update(ctx, call)
}

// transcribeIsolated runs the selected engine and falls back to the
// provider-supplied transcript text on any failure.
func (h *Handler) transcribeIsolated(ctx context.Context, provider phonecfg.TranscriptionProvider, ev telephony.RecordingCallbackEvent) string {
	engine := h.Engines.For(provider)
	text, err := engine.Transcribe(ctx, ev.RecordingURL)
	if err != nil {
		logger.From(ctx).Warn("transcription failed, using fallback",
			"provider", string(provider), "provider_call_id", ev.ProviderCallID, "err", err)
		return ev.TranscriptionText
	}
	if text == "" {
		return ev.TranscriptionText
	}
	return text
}
