package completion

import (
	"context"
	"errors"
	"testing"
	"time"

	"callcenter-crm/internal/calls"
	"callcenter-crm/internal/leads"
	"callcenter-crm/internal/sessions"
)

const (
	testOrg     = "org-1"
	testLead    = "lead-1"
	testSession = "sess-1"
	testUser    = "user-1"
)

func fixedClock() time.Time { return time.Unix(1700000000, 0).UTC() }

type fixture struct {
	svc      *Service
	calls    *calls.MemoryRepo
	leads    *leads.MemoryStore
	sessions *sessions.MemoryRepo
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	callRepo := calls.NewMemoryRepo()
	callRepo.SetClock(fixedClock)
	leadStore := leads.NewMemoryStore()
	leadStore.SetClock(fixedClock)
	sessionRepo := sessions.NewMemoryRepo()
	sessionRepo.SetClock(fixedClock)

	leadStore.Leads[testLead] = leads.Lead{
		LeadID:     testLead,
		OrgID:      testOrg,
		CampaignID: "camp-1",
		Name:       "Jordan Reyes",
		Phone:      "+15551230001",
		Status:     leads.StatusNew,
	}

	svc := NewService(NewMemoryStore(callRepo, leadStore, sessionRepo))
	svc.SetClock(fixedClock)
	return &fixture{svc: svc, calls: callRepo, leads: leadStore, sessions: sessionRepo}
}

func (f *fixture) seedActiveCall(t *testing.T, providerCallID string) calls.Call {
	t.Helper()
	c, err := f.calls.UpsertByProviderCallID(context.Background(), calls.Call{
		OrgID:          testOrg,
		ProviderCallID: providerCallID,
		LeadID:         testLead,
		SessionID:      testSession,
		Direction:      calls.DirectionOutboundAPI,
		Status:         calls.CallStatusInProgress,
	})
	if err != nil {
		t.Fatalf("seed call: %v", err)
	}
	return c
}

func (f *fixture) complete(t *testing.T, outcome string, duration int) CompleteCallResult {
	t.Helper()
	res, err := f.svc.CompleteCall(context.Background(), CompleteCallRequest{
		OrgID:           testOrg,
		LeadID:          testLead,
		SessionID:       testSession,
		UserID:          testUser,
		Outcome:         outcome,
		DurationSeconds: duration,
	})
	if err != nil {
		t.Fatalf("CompleteCall(%s): %v", outcome, err)
	}
	return res
}

func TestCompleteCallUnknownOutcomeRejected(t *testing.T) {
	f := newFixture(t)
	f.seedActiveCall(t, "CA-1")

	_, err := f.svc.CompleteCall(context.Background(), CompleteCallRequest{
		OrgID: testOrg, LeadID: testLead, SessionID: testSession,
		Outcome: "wrong_number",
	})
	if !errors.Is(err, ErrInvalidOutcome) {
		t.Fatalf("want ErrInvalidOutcome, got %v", err)
	}
	if got := f.calls.All()[0].Status; got != calls.CallStatusInProgress {
		t.Fatalf("call must be untouched, status = %s", got)
	}
}

func TestCompleteCallNoActiveCall(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CompleteCall(context.Background(), CompleteCallRequest{
		OrgID: testOrg, LeadID: testLead, SessionID: testSession,
		Outcome: "no_answer",
	})
	if !errors.Is(err, ErrNoActiveCall) {
		t.Fatalf("want ErrNoActiveCall, got %v", err)
	}
	if n := len(f.leads.Activities); n != 0 {
		t.Fatalf("no activities expected, got %d", n)
	}
	if _, err := f.sessions.Get(context.Background(), testSession); !errors.Is(err, sessions.ErrNotFound) {
		t.Fatalf("session counters must not be created, got %v", err)
	}
}

func TestCompleteCallLeadNotFound(t *testing.T) {
	f := newFixture(t)
	f.seedActiveCall(t, "CA-1")

	_, err := f.svc.CompleteCall(context.Background(), CompleteCallRequest{
		OrgID: testOrg, LeadID: "lead-missing", SessionID: testSession,
		Outcome: "answered",
	})
	if !errors.Is(err, ErrLeadNotFound) {
		t.Fatalf("want ErrLeadNotFound, got %v", err)
	}
}

func TestUnsuccessfulOutcomesFoldIntoOneAttemptsRow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.seedActiveCall(t, "CA-1")
	f.complete(t, "busy", 15)
	f.seedActiveCall(t, "CA-2")
	f.complete(t, "no_answer", 30)

	acts, err := f.leads.ListByLead(ctx, testOrg, testLead)
	if err != nil {
		t.Fatalf("ListByLead: %v", err)
	}
	if len(acts) != 1 {
		t.Fatalf("want one aggregate activity, got %d", len(acts))
	}
	a := acts[0]
	if a.Type != leads.ActivityContactAttempts {
		t.Fatalf("type = %s", a.Type)
	}
	if a.AttemptCount != 2 {
		t.Fatalf("attempt_count = %d, want 2", a.AttemptCount)
	}
	if a.DurationSeconds != 45 {
		t.Fatalf("duration = %d, want 45", a.DurationSeconds)
	}
	if !a.Open {
		t.Fatal("aggregate row must stay open")
	}
	if a.Outcome != "no_answer" {
		t.Fatalf("outcome = %s, want last outcome no_answer", a.Outcome)
	}

	s, err := f.sessions.Get(ctx, testSession)
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	if s.TotalCalls != 2 || s.SuccessfulCalls != 0 || s.TotalDurationSeconds != 45 {
		t.Fatalf("session counters = %+v", s)
	}
}

func TestSuccessfulOutcomeCreatesContactedRow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.seedActiveCall(t, "CA-1")
	f.complete(t, "busy", 10)
	f.seedActiveCall(t, "CA-2")
	f.complete(t, "answered", 120)

	acts, err := f.leads.ListByLead(ctx, testOrg, testLead)
	if err != nil {
		t.Fatalf("ListByLead: %v", err)
	}
	if len(acts) != 2 {
		t.Fatalf("want attempts row plus contacted row, got %d", len(acts))
	}

	var attempts, contacted *leads.Activity
	for i := range acts {
		switch acts[i].Type {
		case leads.ActivityContactAttempts:
			attempts = &acts[i]
		case leads.ActivityContacted:
			contacted = &acts[i]
		}
	}
	if attempts == nil || contacted == nil {
		t.Fatalf("missing row: attempts=%v contacted=%v", attempts, contacted)
	}
	if attempts.AttemptCount != 1 || attempts.DurationSeconds != 10 {
		t.Fatalf("attempts row must be untouched by a success: %+v", attempts)
	}
	if contacted.DurationSeconds != 120 {
		t.Fatalf("contacted duration = %d", contacted.DurationSeconds)
	}

	l, err := f.leads.Get(ctx, testOrg, testLead)
	if err != nil {
		t.Fatalf("lead: %v", err)
	}
	if l.Status != leads.StatusContacted {
		t.Fatalf("lead status = %s, want %s", l.Status, leads.StatusContacted)
	}

	s, _ := f.sessions.Get(ctx, testSession)
	if s.TotalCalls != 2 || s.SuccessfulCalls != 1 || s.TotalDurationSeconds != 130 {
		t.Fatalf("session counters = %+v", s)
	}
}

func TestOutcomeStatusTransitions(t *testing.T) {
	cases := []struct {
		outcome string
		want    leads.Status
	}{
		{"answered", leads.StatusContacted},
		{"interested", leads.StatusContacted},
		{"not_interested", leads.StatusLost},
		{"do_not_call", leads.StatusLost},
		{"scheduled_callback", leads.StatusFollowUpScheduled},
		{"busy", leads.StatusNew},     // unmapped: untouched
		{"callback", leads.StatusNew}, // unmapped: untouched
	}
	for _, tc := range cases {
		t.Run(tc.outcome, func(t *testing.T) {
			f := newFixture(t)
			f.seedActiveCall(t, "CA-1")
			f.complete(t, tc.outcome, 60)

			l, err := f.leads.Get(context.Background(), testOrg, testLead)
			if err != nil {
				t.Fatalf("lead: %v", err)
			}
			if l.Status != tc.want {
				t.Fatalf("status = %s, want %s", l.Status, tc.want)
			}
		})
	}
}

func TestCallbackOutcomeCreatesFollowUp(t *testing.T) {
	cases := []struct {
		timeframe string
		offset    time.Duration
	}{
		{"1_hour", time.Hour},
		{"3_hours", 3 * time.Hour},
		{"tomorrow", 24 * time.Hour},
		{"3_days", 72 * time.Hour},
		{"next_week", 168 * time.Hour},
		{"whenever", 24 * time.Hour}, // unmapped defaults to tomorrow
	}
	for _, tc := range cases {
		t.Run(tc.timeframe, func(t *testing.T) {
			f := newFixture(t)
			seeded := f.seedActiveCall(t, "CA-1")

			res, err := f.svc.CompleteCall(context.Background(), CompleteCallRequest{
				OrgID: testOrg, LeadID: testLead, SessionID: testSession, UserID: testUser,
				Outcome: "callback", DurationSeconds: 45,
				FollowUpTime: tc.timeframe,
			})
			if err != nil {
				t.Fatalf("CompleteCall: %v", err)
			}
			if res.FollowUpID == "" {
				t.Fatal("follow-up id missing")
			}

			fu, ok := f.leads.FollowUps[res.FollowUpID]
			if !ok {
				t.Fatal("follow-up not stored")
			}
			wantDue := fixedClock().Add(tc.offset)
			if !fu.DueAt.Equal(wantDue) {
				t.Fatalf("due_at = %v, want %v", fu.DueAt, wantDue)
			}
			if fu.Type != leads.FollowUpTypeCallback {
				t.Fatalf("type = %s", fu.Type)
			}
			if fu.CallID != seeded.CallID {
				t.Fatalf("call_id = %s, want %s", fu.CallID, seeded.CallID)
			}
		})
	}
}

func TestCallbackWithoutTimeframeSkipsFollowUp(t *testing.T) {
	f := newFixture(t)
	f.seedActiveCall(t, "CA-1")

	res := f.complete(t, "callback", 45)
	if res.FollowUpID != "" {
		t.Fatalf("no follow-up expected, got %s", res.FollowUpID)
	}
	if n := len(f.leads.FollowUps); n != 0 {
		t.Fatalf("follow-ups = %d", n)
	}
}

func TestCompleteCallClosesCallRecord(t *testing.T) {
	f := newFixture(t)
	seeded := f.seedActiveCall(t, "CA-1")

	f.complete(t, "answered", 200)

	got, ok, err := f.calls.GetByProviderCallID(context.Background(), testOrg, "CA-1")
	if err != nil || !ok {
		t.Fatalf("call lookup: ok=%v err=%v", ok, err)
	}
	if got.Status != calls.CallStatusCompleted {
		t.Fatalf("status = %s", got.Status)
	}
	if got.Outcome != calls.OutcomeAnswered {
		t.Fatalf("outcome = %s", got.Outcome)
	}
	if got.DurationSeconds != 200 {
		t.Fatalf("duration = %d", got.DurationSeconds)
	}
	if got.EndedAt == nil || !got.EndedAt.Equal(fixedClock()) {
		t.Fatalf("ended_at = %v", got.EndedAt)
	}
	if !got.StartedAt.Equal(seeded.StartedAt) {
		t.Fatalf("started_at changed: %v -> %v", seeded.StartedAt, got.StartedAt)
	}

	// Second submission for the same call: the row is terminal now.
	_, err = f.svc.CompleteCall(context.Background(), CompleteCallRequest{
		OrgID: testOrg, LeadID: testLead, SessionID: testSession,
		Outcome: "answered",
	})
	if !errors.Is(err, ErrNoActiveCall) {
		t.Fatalf("duplicate completion: want ErrNoActiveCall, got %v", err)
	}
}

func TestAddActivity(t *testing.T) {
	f := newFixture(t)

	a, err := f.svc.AddActivity(context.Background(), AddActivityRequest{
		OrgID: testOrg, LeadID: testLead, UserID: testUser,
		Type: leads.ActivityNote, Content: "left a voicemail earlier",
	})
	if err != nil {
		t.Fatalf("AddActivity: %v", err)
	}
	if a.ActivityID == "" || a.Type != leads.ActivityNote {
		t.Fatalf("activity = %+v", a)
	}

	_, err = f.svc.AddActivity(context.Background(), AddActivityRequest{
		OrgID: testOrg, LeadID: testLead,
		Type: leads.ActivityType("CALL"), Content: "x",
	})
	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("call-type activity must be rejected here, got %v", err)
	}
}
