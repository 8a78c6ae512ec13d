package routing

import (
	"context"
	"time"

	"callcenter-crm/internal/calls"
	"callcenter-crm/internal/leads"
	"callcenter-crm/internal/phonecfg"
	"callcenter-crm/internal/telephony"
	"callcenter-crm/internal/training"
	"callcenter-crm/pkg/logger"
)

/* ===================== TRAINING ===================== */

func (e *Engine) matchTraining(ctx context.Context, in Input) (bool, error) {
	ev := in.Event
	if ev.Direction != calls.DirectionInbound || !telephony.IsPhoneAddress(ev.From) {
		return false, nil
	}
	source, ok, err := e.Orgs.TrainingSource(ctx, in.OrgID)
	if err != nil {
		return false, err
	}
	return ok && source == ev.From, nil
}

// handleTraining bridges the training call to the requesting agent's live
// client session and marks the provider call so the recording callback can
// classify it later.
func (e *Engine) handleTraining(ctx context.Context, in Input) (telephony.Script, error) {
	ev := in.Event

	agentID := ev.UserID
	if agentID == "" {
		agentID = "trainer"
	}

	if _, err := e.Training.Create(ctx, training.Marker{
		OrgID:          in.OrgID,
		ProviderCallID: ev.ProviderCallID,
		AgentID:        agentID,
	}); err != nil {
		logger.From(ctx).Error("training marker create failed", "provider_call_id", ev.ProviderCallID, "err", err)
	}

	return telephony.NewScript(
		telephony.Dial{
			Client:            agentID,
			TimeoutSeconds:    DialTimeoutSeconds,
			RecordDualChannel: in.Policy.RecordingEnabled,
			Action:            webhookPath,
		},
		// Spoken fallback when the bridge does not connect.
		telephony.Say{Text: "We could not connect you to an agent. Please try again shortly."},
		telephony.Hangup{},
	), nil
}

/* ===================== CLIENT OUTBOUND ===================== */

func (e *Engine) matchClientOutbound(ctx context.Context, in Input) (bool, error) {
	return telephony.IsClientAddress(in.Event.From), nil
}

func (e *Engine) handleClientOutbound(ctx context.Context, in Input) (telephony.Script, error) {
	ev := in.Event
	return telephony.NewScript(
		telephony.Dial{
			Number:            ev.To,
			CallerID:          ev.CallerIDOverride,
			TimeoutSeconds:    DialTimeoutSeconds,
			RecordDualChannel: in.Policy.RecordingEnabled && in.Policy.RecordOutboundCalls,
		},
	), nil
}

/* ===================== INBOUND PHONE ===================== */

func (e *Engine) matchInboundPhone(ctx context.Context, in Input) (bool, error) {
	ev := in.Event
	return ev.Direction == calls.DirectionInbound && telephony.IsPhoneAddress(ev.From), nil
}

// handleInboundPhone resolves the caller against known leads, creates the
// follow-up or prospect side effects the policy asks for, then plays the
// configured inbound flow. Side-effect failures never block the response.
func (e *Engine) handleInboundPhone(ctx context.Context, in Input) (telephony.Script, error) {
	log := logger.From(ctx)
	ev := in.Event

	lead, known, err := e.Leads.FindByPhone(ctx, in.OrgID, ev.From)
	if err != nil {
		log.Error("inbound lead lookup failed", "from", ev.From, "err", err)
		known = false
	}

	switch {
	case known && in.Policy.AutoCreateFollowUps:
		_, err := e.FollowUps.Create(ctx, leads.FollowUp{
			OrgID:          in.OrgID,
			LeadID:         lead.LeadID,
			ProviderCallID: ev.ProviderCallID,
			Type:           leads.FollowUpTypeInboundVoicemail,
			Reason:         "Inbound call from " + ev.From,
			DueAt:          e.Now().UTC().Add(24 * time.Hour),
		})
		if err != nil {
			log.Error("inbound follow-up create failed", "lead_id", lead.LeadID, "err", err)
		}
	case !known && in.Policy.AutoCreateLeads:
		_, err := e.Prospects.Create(ctx, leads.Prospect{
			OrgID:          in.OrgID,
			Phone:          ev.From,
			ProviderCallID: ev.ProviderCallID,
		})
		if err != nil {
			log.Error("prospect create failed", "from", ev.From, "err", err)
		}
	}

	switch in.Policy.InboundFlow {
	case phonecfg.InboundFlowForward:
		return telephony.NewScript(
			telephony.Dial{
				Number:         in.Policy.ForwardToNumber,
				TimeoutSeconds: DialTimeoutSeconds,
				Action:         webhookPath,
			},
			// Voicemail fallback when nobody picks up the forward target.
			telephony.Say{Text: in.Policy.VoicemailMessage},
			telephony.Record{Action: webhookPath, MaxLength: 120, PlayBeep: true, Transcribe: true},
		), nil
	case phonecfg.InboundFlowIVR:
		return telephony.NewScript(
			telephony.Gather{
				NumDigits:      1,
				Action:         webhookPath,
				Method:         "POST",
				TimeoutSeconds: 10,
				Prompt:         "Press 1 to leave a message. Press 2 to speak with the next available agent.",
			},
			telephony.Redirect{URL: webhookPath},
		), nil
	default: // voicemail
		return telephony.NewScript(
			telephony.Say{Text: in.Policy.VoicemailMessage},
			telephony.Record{Action: webhookPath, MaxLength: 120, PlayBeep: true, Transcribe: true},
		), nil
	}
}

/* ===================== APPLICATION OUTBOUND ===================== */

func (e *Engine) matchAppOutbound(ctx context.Context, in Input) (bool, error) {
	ev := in.Event
	if ev.Direction == calls.DirectionOutboundAPI {
		return true, nil
	}
	return ev.LeadID != "" && ev.SessionID != "", nil
}

func (e *Engine) handleAppOutbound(ctx context.Context, in Input) (telephony.Script, error) {
	ev := in.Event
	d := telephony.Dial{
		CallerID:          ev.CallerIDOverride,
		TimeoutSeconds:    DialTimeoutSeconds,
		RecordDualChannel: in.Policy.RecordingEnabled && in.Policy.RecordOutboundCalls,
	}
	if telephony.IsClientAddress(ev.To) {
		d.Client = telephony.ClientIdentity(ev.To)
	} else {
		d.Number = ev.To
	}
	return telephony.NewScript(d), nil
}

/* ===================== FALLBACK ===================== */

func (e *Engine) handleFallback(ctx context.Context, in Input) (telephony.Script, error) {
	return telephony.NewScript(
		telephony.Gather{
			NumDigits:      1,
			Action:         webhookPath,
			Method:         "POST",
			TimeoutSeconds: 10,
			Prompt:         "Thank you for calling. Press 1 to leave a message, or stay on the line.",
		},
		telephony.Redirect{URL: webhookPath},
	), nil
}
