package routing

import (
	"context"
	"strings"
	"testing"
	"time"

	"callcenter-crm/internal/calls"
	"callcenter-crm/internal/leads"
	"callcenter-crm/internal/orgs"
	"callcenter-crm/internal/phonecfg"
	"callcenter-crm/internal/telephony"
	"callcenter-crm/internal/training"
)

const testOrg = "org-1"

func fixedClock() time.Time { return time.Unix(1700000000, 0).UTC() }

type fixture struct {
	engine    *Engine
	calls     *calls.MemoryRepo
	leads     *leads.MemoryStore
	training  *training.MemoryRepo
	directory *orgs.MemoryDirectory
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	callRepo := calls.NewMemoryRepo()
	callRepo.SetClock(fixedClock)
	leadStore := leads.NewMemoryStore()
	leadStore.SetClock(fixedClock)
	trainingRepo := training.NewMemoryRepo()
	directory := orgs.NewMemoryDirectory()

	e := NewEngine(callRepo, leadStore, leadStore, leadStore.FollowUpRepo(), trainingRepo, directory)
	e.Now = fixedClock
	return &fixture{engine: e, calls: callRepo, leads: leadStore, training: trainingRepo, directory: directory}
}

func defaultInput(ev telephony.LiveCallEvent) Input {
	return Input{OrgID: testOrg, Event: ev, Policy: phonecfg.Default(testOrg)}
}

func firstVerb(t *testing.T, s telephony.Script) telephony.Verb {
	t.Helper()
	if s.Empty() {
		t.Fatal("empty script")
	}
	return s.Verbs[0]
}

func TestClientPrefixWinsOverAmbiguousDirection(t *testing.T) {
	f := newFixture(t)

	// Direction claims inbound, but the client scheme on From decides.
	d := f.engine.Route(context.Background(), defaultInput(telephony.LiveCallEvent{
		ProviderCallID: "CA-1",
		From:           telephony.ClientScheme + "agent-7",
		To:             "+15551230001",
		Direction:      calls.DirectionClientOutbound, // set by ingress for client: From
	}))

	if d.Rule != RuleClientOutbound {
		t.Fatalf("rule = %s, want %s", d.Rule, RuleClientOutbound)
	}
	dial, ok := firstVerb(t, d.Script).(telephony.Dial)
	if !ok {
		t.Fatalf("first verb = %T, want Dial", d.Script.Verbs[0])
	}
	if dial.Number != "+15551230001" {
		t.Fatalf("dial number = %s", dial.Number)
	}
	if !dial.RecordDualChannel {
		t.Fatal("default policy records outbound calls")
	}
}

func TestClientOutboundCallerIDOverride(t *testing.T) {
	f := newFixture(t)

	d := f.engine.Route(context.Background(), defaultInput(telephony.LiveCallEvent{
		ProviderCallID:   "CA-1",
		From:             telephony.ClientScheme + "agent-7",
		To:               "+15551230001",
		Direction:        calls.DirectionClientOutbound,
		CallerIDOverride: "+15559990000",
	}))

	dial := firstVerb(t, d.Script).(telephony.Dial)
	if dial.CallerID != "+15559990000" {
		t.Fatalf("caller id = %s", dial.CallerID)
	}
}

func TestTrainingRuleWinsForRegisteredSource(t *testing.T) {
	f := newFixture(t)
	f.directory.SetTrainingSource(testOrg, "+15557770000")

	d := f.engine.Route(context.Background(), defaultInput(telephony.LiveCallEvent{
		ProviderCallID: "CA-1",
		From:           "+15557770000",
		To:             "+15551230001",
		Direction:      calls.DirectionInbound,
		UserID:         "agent-3",
	}))

	if d.Rule != RuleTraining {
		t.Fatalf("rule = %s, want %s", d.Rule, RuleTraining)
	}
	dial := firstVerb(t, d.Script).(telephony.Dial)
	if dial.Client != "agent-3" {
		t.Fatalf("dial client = %s", dial.Client)
	}

	if _, ok, _ := f.training.FindByProviderCallID(context.Background(), testOrg, "CA-1"); !ok {
		t.Fatal("training marker not created")
	}
}

func TestInboundKnownLeadCreatesFollowUp(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.leads.Leads["lead-1"] = leads.Lead{LeadID: "lead-1", OrgID: testOrg, Phone: "+15552220000", Status: leads.StatusNew}

	d := f.engine.Route(ctx, defaultInput(telephony.LiveCallEvent{
		ProviderCallID: "CA-1",
		From:           "+15552220000",
		To:             "+15551230001",
		Direction:      calls.DirectionInbound,
	}))

	if d.Rule != RuleInboundPhone {
		t.Fatalf("rule = %s, want %s", d.Rule, RuleInboundPhone)
	}

	fu, ok, err := f.leads.FollowUpRepo().FindByProviderCallID(ctx, testOrg, "CA-1")
	if err != nil || !ok {
		t.Fatalf("follow-up lookup: ok=%v err=%v", ok, err)
	}
	if fu.Type != leads.FollowUpTypeInboundVoicemail {
		t.Fatalf("follow-up type = %s", fu.Type)
	}
	if want := fixedClock().Add(24 * time.Hour); !fu.DueAt.Equal(want) {
		t.Fatalf("due_at = %v, want %v", fu.DueAt, want)
	}

	// Default voicemail flow: Say then Record with transcription backup.
	if _, ok := firstVerb(t, d.Script).(telephony.Say); !ok {
		t.Fatalf("first verb = %T, want Say", d.Script.Verbs[0])
	}
	rec, ok := d.Script.Verbs[1].(telephony.Record)
	if !ok {
		t.Fatalf("second verb = %T, want Record", d.Script.Verbs[1])
	}
	if !rec.Transcribe || !rec.PlayBeep {
		t.Fatalf("record verb = %+v", rec)
	}
}

func TestInboundUnknownCallerCreatesProspect(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.engine.Route(ctx, defaultInput(telephony.LiveCallEvent{
		ProviderCallID: "CA-1",
		From:           "+15553330000",
		To:             "+15551230001",
		Direction:      calls.DirectionInbound,
	}))

	p, ok, err := f.leads.FindByProviderCallID(ctx, testOrg, "CA-1")
	if err != nil || !ok {
		t.Fatalf("prospect lookup: ok=%v err=%v", ok, err)
	}
	if p.Phone != "+15553330000" {
		t.Fatalf("prospect phone = %s", p.Phone)
	}
}

func TestInboundAutoCreateDisabled(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	in := defaultInput(telephony.LiveCallEvent{
		ProviderCallID: "CA-1",
		From:           "+15553330000",
		To:             "+15551230001",
		Direction:      calls.DirectionInbound,
	})
	in.Policy.AutoCreateLeads = false
	f.engine.Route(ctx, in)

	if _, ok, _ := f.leads.FindByProviderCallID(ctx, testOrg, "CA-1"); ok {
		t.Fatal("prospect must not be created when auto-create is off")
	}
}

func TestInboundForwardFlow(t *testing.T) {
	f := newFixture(t)

	in := defaultInput(telephony.LiveCallEvent{
		ProviderCallID: "CA-1",
		From:           "+15553330000",
		To:             "+15551230001",
		Direction:      calls.DirectionInbound,
	})
	in.Policy.InboundFlow = phonecfg.InboundFlowForward
	in.Policy.ForwardToNumber = "+15558880000"

	d := f.engine.Route(context.Background(), in)
	dial, ok := firstVerb(t, d.Script).(telephony.Dial)
	if !ok {
		t.Fatalf("first verb = %T, want Dial", d.Script.Verbs[0])
	}
	if dial.Number != "+15558880000" {
		t.Fatalf("forward target = %s", dial.Number)
	}
	if dial.TimeoutSeconds != DialTimeoutSeconds {
		t.Fatalf("timeout = %d", dial.TimeoutSeconds)
	}
}

func TestAppOutboundBootstrapsCallRecord(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	d := f.engine.Route(ctx, defaultInput(telephony.LiveCallEvent{
		ProviderCallID: "CA-1",
		From:           "+15551230001",
		To:             "+15554440000",
		Direction:      calls.DirectionOutboundAPI,
		CallStatus:     "in-progress",
		LeadID:         "lead-1",
		SessionID:      "sess-1",
		UserID:         "user-1",
	}))

	if d.Rule != RuleAppOutbound {
		t.Fatalf("rule = %s, want %s", d.Rule, RuleAppOutbound)
	}

	c, ok, err := f.calls.GetByProviderCallID(ctx, testOrg, "CA-1")
	if err != nil || !ok {
		t.Fatalf("call lookup: ok=%v err=%v", ok, err)
	}
	if c.LeadID != "lead-1" || c.SessionID != "sess-1" {
		t.Fatalf("call = %+v", c)
	}
	if c.Status != calls.CallStatusInProgress {
		t.Fatalf("status = %s", c.Status)
	}

	// Retried delivery upserts, never duplicates.
	f.engine.Route(ctx, defaultInput(telephony.LiveCallEvent{
		ProviderCallID: "CA-1",
		From:           "+15551230001",
		To:             "+15554440000",
		Direction:      calls.DirectionOutboundAPI,
		CallStatus:     "in-progress",
		LeadID:         "lead-1",
		SessionID:      "sess-1",
	}))
	if n := len(f.calls.All()); n != 1 {
		t.Fatalf("calls = %d, want 1", n)
	}
}

func TestAppOutboundDialsClientTarget(t *testing.T) {
	f := newFixture(t)

	d := f.engine.Route(context.Background(), defaultInput(telephony.LiveCallEvent{
		ProviderCallID: "CA-1",
		From:           "+15551230001",
		To:             telephony.ClientScheme + "agent-9",
		Direction:      calls.DirectionOutboundAPI,
	}))

	dial := firstVerb(t, d.Script).(telephony.Dial)
	if dial.Client != "agent-9" || dial.Number != "" {
		t.Fatalf("dial = %+v", dial)
	}
}

func TestUnmatchedEventGetsFallbackScript(t *testing.T) {
	f := newFixture(t)

	// Outbound direction impossible to classify: not client, not inbound,
	// no lead/session pair and not outbound-api.
	d := f.engine.Route(context.Background(), defaultInput(telephony.LiveCallEvent{
		ProviderCallID: "CA-1",
		From:           "+15551230001",
		To:             "+15554440000",
		Direction:      calls.Direction("unknown"),
	}))

	if d.Rule != RuleFallback {
		t.Fatalf("rule = %s, want %s", d.Rule, RuleFallback)
	}
	if d.Script.Empty() {
		t.Fatal("fallback must never return an empty script")
	}
	if _, ok := firstVerb(t, d.Script).(telephony.Gather); !ok {
		t.Fatalf("first verb = %T, want Gather", d.Script.Verbs[0])
	}
}

func TestRoutePanicDegradesToApology(t *testing.T) {
	f := newFixture(t)
	f.engine.rules = append([]rule{{
		name:  "exploding",
		match: func(ctx context.Context, in Input) (bool, error) { return true, nil },
		handle: func(ctx context.Context, in Input) (telephony.Script, error) {
			panic("boom")
		},
	}}, f.engine.rules...)

	d := f.engine.Route(context.Background(), defaultInput(telephony.LiveCallEvent{
		ProviderCallID: "CA-1",
		From:           "+15551230001",
		Direction:      calls.DirectionInbound,
	}))

	if !d.ServerError {
		t.Fatal("panic must surface as a server error decision")
	}
	say, ok := firstVerb(t, d.Script).(telephony.Say)
	if !ok || !strings.Contains(say.Text, "sorry") {
		t.Fatalf("apology say verb missing: %+v", d.Script.Verbs)
	}
}

func TestCallStatusFromProvider(t *testing.T) {
	cases := []struct {
		raw  string
		want calls.CallStatus
	}{
		{"ringing", calls.CallStatusRinging},
		{"initiated", calls.CallStatusRinging},
		{"in-progress", calls.CallStatusInProgress},
		{"answered", calls.CallStatusInProgress},
		{"completed", calls.CallStatusCompleted},
		{"", calls.CallStatusRinging},
		{"garbage", calls.CallStatusRinging},
	}
	for _, tc := range cases {
		if got := callStatusFromProvider(tc.raw); got != tc.want {
			t.Fatalf("callStatusFromProvider(%q) = %s, want %s", tc.raw, got, tc.want)
		}
	}
}
