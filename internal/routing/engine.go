package routing

import (
	"context"
	"fmt"
	"time"

	"callcenter-crm/internal/calls"
	"callcenter-crm/internal/leads"
	"callcenter-crm/internal/orgs"
	"callcenter-crm/internal/telephony"
	"callcenter-crm/internal/training"
	"callcenter-crm/pkg/logger"
)

// Engine routes a live call event to exactly one call-control script.
//
// The branch priority is an ordered rule table, not nested conditionals, so
// the order is data and each rule is testable on its own:
//
//  1. training        - inbound leg from the org's registered training source
//  2. client_outbound - From uses the internal client address scheme
//  3. inbound_phone   - inbound leg from an external phone number
//  4. app_outbound    - outbound-api direction, or a lead+session pair
//  5. fallback        - always matches; a call is never left unhandled
//
// Recording callbacks never reach the engine; ingress splits them off as a
// separate event variant.
//
// Side effects (call bootstrap, follow-up/prospect creation, training
// markers) are best-effort: their failures are logged and the live call
// still gets a response.

// DialTimeoutSeconds is the provider dial timeout baked into every Dial verb.
// Timeout enforcement belongs to the provider, not this engine.
const DialTimeoutSeconds = 30

// webhookPath is the self-referencing action target for Gather/Redirect.
const webhookPath = "/webhooks/voice"

type Engine struct {
	Calls     calls.Repository
	Leads     leads.LeadRepository
	Prospects leads.ProspectRepository
	FollowUps leads.FollowUpRepository
	Training  training.Repository
	Orgs      orgs.Directory

	Now func() time.Time

	rules []rule
}

type rule struct {
	name   string
	match  func(ctx context.Context, in Input) (bool, error)
	handle func(ctx context.Context, in Input) (telephony.Script, error)
}

func NewEngine(
	callRepo calls.Repository,
	leadRepo leads.LeadRepository,
	prospectRepo leads.ProspectRepository,
	followUpRepo leads.FollowUpRepository,
	trainingRepo training.Repository,
	directory orgs.Directory,
) *Engine {
	e := &Engine{
		Calls:     callRepo,
		Leads:     leadRepo,
		Prospects: prospectRepo,
		FollowUps: followUpRepo,
		Training:  trainingRepo,
		Orgs:      directory,
		Now:       time.Now,
	}
	e.rules = []rule{
		{name: RuleTraining, match: e.matchTraining, handle: e.handleTraining},
		{name: RuleClientOutbound, match: e.matchClientOutbound, handle: e.handleClientOutbound},
		{name: RuleInboundPhone, match: e.matchInboundPhone, handle: e.handleInboundPhone},
		{name: RuleAppOutbound, match: e.matchAppOutbound, handle: e.handleAppOutbound},
		{name: RuleFallback, match: matchAlways, handle: e.handleFallback},
	}
	return e
}

// Route evaluates the rule table and always returns a usable decision. Any
// failure while composing a response degrades to a spoken apology rather
// than a malformed or empty document.
func (e *Engine) Route(ctx context.Context, in Input) (d Decision) {
	log := logger.From(ctx)

	defer func() {
		if p := recover(); p != nil {
			log.Error("routing panic", "org_id", in.OrgID, "provider_call_id", in.Event.ProviderCallID, "panic", fmt.Sprint(p))
			d = apologyDecision()
		}
	}()

	e.bootstrapCallRecord(ctx, in)

	for _, r := range e.rules {
		ok, err := r.match(ctx, in)
		if err != nil {
			log.Warn("routing rule match failed", "rule", r.name, "err", err)
			continue
		}
		if !ok {
			continue
		}
		script, err := r.handle(ctx, in)
		if err != nil || script.Empty() {
			log.Error("routing rule handler failed", "rule", r.name, "err", err)
			return apologyDecision()
		}
		log.Info("call routed", "rule", r.name, "org_id", in.OrgID, "provider_call_id", in.Event.ProviderCallID)
		return Decision{Script: script, Rule: r.name}
	}

	// Unreachable: the fallback rule always matches.
	return apologyDecision()
}

func apologyDecision() Decision {
	return Decision{
		Script: telephony.NewScript(
			telephony.Say{Text: "We're sorry, an application error has occurred. Please try your call again later."},
			telephony.Hangup{},
		),
		Rule:        RuleError,
		ServerError: true,
	}
}

// bootstrapCallRecord upserts the Call row as soon as a routable event ties
// a provider call to a lead and session. Runs before rule evaluation so a
// later completion always finds its active call; failure must not abort
// routing.
func (e *Engine) bootstrapCallRecord(ctx context.Context, in Input) {
	ev := in.Event
	if ev.LeadID == "" || ev.SessionID == "" || ev.ProviderCallID == "" {
		return
	}
	_, err := e.Calls.UpsertByProviderCallID(ctx, calls.Call{
		OrgID:          in.OrgID,
		ProviderCallID: ev.ProviderCallID,
		LeadID:         ev.LeadID,
		SessionID:      ev.SessionID,
		UserID:         ev.UserID,
		From:           ev.From,
		To:             ev.To,
		Direction:      ev.Direction,
		Status:         callStatusFromProvider(ev.CallStatus),
	})
	if err != nil {
		logger.From(ctx).Error("call record bootstrap failed",
			"org_id", in.OrgID, "provider_call_id", ev.ProviderCallID, "err", err)
	}
}

func callStatusFromProvider(raw string) calls.CallStatus {
	switch raw {
	case "ringing", "queued", "initiated":
		return calls.CallStatusRinging
	case "in-progress", "answered":
		return calls.CallStatusInProgress
	case "completed":
		return calls.CallStatusCompleted
	default:
		return calls.CallStatusRinging
	}
}

func matchAlways(ctx context.Context, in Input) (bool, error) { return true, nil }
