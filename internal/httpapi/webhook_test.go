package httpapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"callcenter-crm/internal/audit"
	"callcenter-crm/internal/calls"
	"callcenter-crm/internal/leads"
	"callcenter-crm/internal/orgs"
	"callcenter-crm/internal/phonecfg"
	"callcenter-crm/internal/recording"
	"callcenter-crm/internal/routing"
	"callcenter-crm/internal/training"
	"callcenter-crm/internal/transcribe"
)

const testOrg = "org-1"

type webhookFixture struct {
	router *gin.Engine
	calls  *calls.MemoryRepo
	leads  *leads.MemoryStore
	orgs   *orgs.MemoryDirectory
	audit  *audit.MemoryRepo
}

func newWebhookFixture(t *testing.T) *webhookFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	callRepo := calls.NewMemoryRepo()
	leadStore := leads.NewMemoryStore()
	trainingRepo := training.NewMemoryRepo()
	directory := orgs.NewMemoryDirectory()
	auditRepo := audit.NewMemoryRepo()

	engine := routing.NewEngine(callRepo, leadStore, leadStore, leadStore.FollowUpRepo(), trainingRepo, directory)
	recHandler := recording.NewHandler(callRepo, leadStore.FollowUpRepo(), leadStore, trainingRepo, transcribe.NewRegistry())

	h := &WebhookHandler{
		Engine:    engine,
		Recording: recHandler,
		Policies:  phonecfg.NewMemoryRepo(),
		Orgs:      directory,
		Audit:     audit.NewRecorder(auditRepo),
	}

	r := gin.New()
	r.POST("/webhooks/voice", h.HandleVoice)
	r.GET("/webhooks/voice", h.VoiceTest)
	r.POST("/webhooks/voice/:org_id", h.HandleVoice)

	return &webhookFixture{router: r, calls: callRepo, leads: leadStore, orgs: directory, audit: auditRepo}
}

func (f *webhookFixture) post(t *testing.T, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func TestVoiceWebhookMissingCallSid(t *testing.T) {
	f := newWebhookFixture(t)
	w := f.post(t, "/webhooks/voice", url.Values{"From": {"+15551230001"}})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if !strings.Contains(w.Body.String(), "CallSid") {
		t.Fatalf("body = %s", w.Body.String())
	}
}

func TestVoiceWebhookInboundWithOrgInPath(t *testing.T) {
	f := newWebhookFixture(t)
	w := f.post(t, "/webhooks/voice/"+testOrg, url.Values{
		"CallSid":   {"CA-1"},
		"From":      {"+15552220000"},
		"To":        {"+15551230001"},
		"Direction": {"inbound"},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "application/xml") {
		t.Fatalf("content type = %s", ct)
	}
	// Default policy routes unknown inbound callers to voicemail.
	if body := w.Body.String(); !strings.Contains(body, "<Record") {
		t.Fatalf("body = %s", body)
	}
}

func TestVoiceWebhookResolvesOrgByDialedNumber(t *testing.T) {
	f := newWebhookFixture(t)
	f.orgs.AddNumber("+15551230001", testOrg)

	w := f.post(t, "/webhooks/voice", url.Values{
		"CallSid":   {"CA-1"},
		"From":      {"+15552220000"},
		"To":        {"+15551230001"},
		"Direction": {"inbound"},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	// The prospect side effect proves routing ran under the resolved org.
	if _, ok, _ := f.leads.FindByProviderCallID(context.Background(), testOrg, "CA-1"); !ok {
		t.Fatal("prospect not created under resolved org")
	}
}

func TestVoiceWebhookUnknownNumberGetsApology(t *testing.T) {
	f := newWebhookFixture(t)

	w := f.post(t, "/webhooks/voice", url.Values{
		"CallSid":   {"CA-1"},
		"From":      {"+15552220000"},
		"To":        {"+15551230001"},
		"Direction": {"inbound"},
	})
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	if body := w.Body.String(); !strings.Contains(body, "<Say>") || !strings.Contains(body, "sorry") {
		t.Fatalf("apology document expected, got:\n%s", body)
	}

	events := f.audit.Events()
	if len(events) != 1 || events[0].Kind != audit.KindUnknownOrgNumber {
		t.Fatalf("audit events = %+v", events)
	}
}

func TestVoiceWebhookRecordingCallback(t *testing.T) {
	f := newWebhookFixture(t)
	ctx := context.Background()
	if _, err := f.calls.UpsertByProviderCallID(ctx, calls.Call{
		OrgID:          testOrg,
		ProviderCallID: "CA-1",
		LeadID:         "lead-1",
		SessionID:      "sess-1",
		Direction:      calls.DirectionOutboundAPI,
		Status:         calls.CallStatusInProgress,
	}); err != nil {
		t.Fatalf("seed call: %v", err)
	}

	w := f.post(t, "/webhooks/voice/"+testOrg, url.Values{
		"CallSid":           {"CA-1"},
		"RecordingUrl":      {"https://api.example.com/rec/RE-1"},
		"RecordingStatus":   {"completed"},
		"RecordingDuration": {"300"},
	})
	if w.Code != http.StatusOK || w.Body.String() != "OK" {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	c, _, _ := f.calls.GetByProviderCallID(ctx, testOrg, "CA-1")
	if c.RecordingURL != "https://api.example.com/rec/RE-1" {
		t.Fatalf("call = %+v", c)
	}
}

func TestVoiceWebhookNonTerminalRecordingIgnored(t *testing.T) {
	f := newWebhookFixture(t)

	w := f.post(t, "/webhooks/voice/"+testOrg, url.Values{
		"CallSid":         {"CA-1"},
		"RecordingUrl":    {"https://api.example.com/rec/RE-1"},
		"RecordingStatus": {"in-progress"},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if len(f.calls.All()) != 0 {
		t.Fatal("non-terminal callback must not touch storage")
	}
}

func TestVoiceWebhookUnmatchedRecordingAudited(t *testing.T) {
	f := newWebhookFixture(t)

	w := f.post(t, "/webhooks/voice", url.Values{
		"CallSid":         {"CA-1"},
		"RecordingUrl":    {"https://api.example.com/rec/RE-1"},
		"RecordingStatus": {"completed"},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	events := f.audit.Events()
	if len(events) != 1 || events[0].Kind != audit.KindUnmatchedRecording {
		t.Fatalf("audit events = %+v", events)
	}
}

func TestVoiceTestEndpoint(t *testing.T) {
	f := newWebhookFixture(t)
	req := httptest.NewRequest(http.MethodGet, "/webhooks/voice", nil)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "<Response>") {
		t.Fatalf("body = %s", w.Body.String())
	}
}
