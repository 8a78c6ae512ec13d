package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"callcenter-crm/internal/audit"
	"callcenter-crm/internal/orgs"
	"callcenter-crm/internal/phonecfg"
	"callcenter-crm/internal/recording"
	"callcenter-crm/internal/routing"
	"callcenter-crm/internal/telephony"
	"callcenter-crm/pkg/logger"
	"callcenter-crm/pkg/utils"
)

// WebhookHandler answers provider voice webhooks. Live call events get an XML
// call-control document; recording callbacks get a plain "OK". The provider
// must never see a raw error; failures degrade to a spoken apology with a 500.

// recordingDedupeTTL bounds how long a processed recording callback blocks
// its retries.
const recordingDedupeTTL = 24 * time.Hour

type WebhookHandler struct {
	Engine    *routing.Engine
	Recording *recording.Handler
	Policies  phonecfg.Repository
	Orgs      orgs.Directory
	Audit     *audit.Recorder

	// Redis deduplicates recording-callback retries; nil disables dedupe and
	// every delivery is processed (the handler's own lookups stay idempotent).
	Redis *redis.Client
}

// HandleVoice serves both the per-org route (org id in the path) and the
// global route (org resolved from the payload or the dialed number).
func (h *WebhookHandler) HandleVoice(c *gin.Context) {
	ev, err := telephony.ParseWebhookForm(c.Request)
	if err != nil {
		if errors.Is(err, telephony.ErrMissingCallSid) {
			c.String(http.StatusBadRequest, "CallSid required")
			return
		}
		c.String(http.StatusBadRequest, "malformed webhook")
		return
	}

	switch e := ev.(type) {
	case telephony.RecordingCallbackEvent:
		h.handleRecording(c, e)
	case telephony.LiveCallEvent:
		h.handleLive(c, e)
	default:
		c.String(http.StatusBadRequest, "unsupported event")
	}
}

// VoiceTest is the GET variant: a static response for provider console
// health checks.
func (h *WebhookHandler) VoiceTest(c *gin.Context) {
	c.Header("Content-Type", "application/xml")
	c.String(http.StatusOK, xmlTestResponse)
}

const xmlTestResponse = `<?xml version="1.0" encoding="UTF-8"?>
<Response>
  <Say>Voice webhook endpoint is reachable.</Say>
</Response>`

func (h *WebhookHandler) handleRecording(c *gin.Context, ev telephony.RecordingCallbackEvent) {
	log := logger.FromGin(c)
	ctx := logger.With(c.Request.Context(), log)

	// Non-terminal lifecycle notifications are acknowledged and dropped.
	if !ev.Terminal() {
		c.String(http.StatusOK, "OK")
		return
	}

	orgID := c.Param("org_id")
	if orgID == "" {
		orgID = ev.OrgID
	}
	if orgID == "" {
		log.Warn("recording callback with no resolvable org", "provider_call_id", ev.ProviderCallID)
		h.Audit.Record(ctx, audit.Event{
			Kind:           audit.KindUnmatchedRecording,
			ProviderCallID: ev.ProviderCallID,
			Detail:         "no org id on recording callback",
		})
		c.String(http.StatusOK, "OK")
		return
	}

	dedupeKey := "reccb:" + orgID + ":" + ev.ProviderCallID
	if h.Redis != nil {
		first, err := utils.ClaimOnce(ctx, h.Redis, dedupeKey, recordingDedupeTTL)
		if err != nil {
			// Dedupe is an optimization; on redis failure fall through and
			// rely on the handler's idempotent lookups.
			log.Warn("recording dedupe unavailable", "err", err)
		} else if !first {
			c.String(http.StatusOK, "OK")
			return
		}
	}

	policy, err := h.Policies.Resolve(ctx, orgID)
	if err != nil {
		policy = phonecfg.Default(orgID)
	}

	if err := h.Recording.Handle(ctx, orgID, ev, policy); err != nil {
		log.Error("recording callback failed",
			"org_id", orgID, "provider_call_id", ev.ProviderCallID, "err", err)
		if h.Redis != nil {
			// Release the marker so the provider's retry gets processed.
			_ = utils.Unclaim(ctx, h.Redis, dedupeKey)
		}
		c.String(http.StatusInternalServerError, "error")
		return
	}
	c.String(http.StatusOK, "OK")
}

func (h *WebhookHandler) handleLive(c *gin.Context, ev telephony.LiveCallEvent) {
	log := logger.FromGin(c)
	ctx := logger.With(c.Request.Context(), log)

	orgID := c.Param("org_id")
	if orgID == "" {
		orgID = ev.OrgID
	}
	if orgID == "" && telephony.IsPhoneAddress(ev.To) {
		resolved, err := h.Orgs.ResolveByNumber(ctx, ev.To)
		if err != nil && !errors.Is(err, orgs.ErrNotFound) {
			log.Error("org lookup failed", "to", ev.To, "err", err)
			h.respondScript(c, apologyXML(), http.StatusInternalServerError)
			return
		}
		orgID = resolved
	}
	if orgID == "" {
		log.Warn("no org for inbound number", "to", ev.To, "provider_call_id", ev.ProviderCallID)
		h.Audit.Record(ctx, audit.Event{
			Kind:           audit.KindUnknownOrgNumber,
			ProviderCallID: ev.ProviderCallID,
			Detail:         "dialed number " + ev.To + " matches no organization",
		})
		h.respondScript(c, apologyXML(), http.StatusNotFound)
		return
	}

	policy, err := h.Policies.Resolve(ctx, orgID)
	if err != nil {
		policy = phonecfg.Default(orgID)
	}

	decision := h.Engine.Route(ctx, routing.Input{OrgID: orgID, Event: ev, Policy: policy})

	xmlBody, err := telephony.RenderTwiML(decision.Script)
	if err != nil {
		log.Error("twiml render failed", "rule", decision.Rule, "err", err)
		h.respondScript(c, apologyXML(), http.StatusInternalServerError)
		return
	}

	status := http.StatusOK
	if decision.ServerError {
		status = http.StatusInternalServerError
	}
	h.respondScript(c, xmlBody, status)
}

func (h *WebhookHandler) respondScript(c *gin.Context, xmlBody string, status int) {
	c.Header("Content-Type", "application/xml")
	c.String(status, xmlBody)
}

// apologyXML is the pre-rendered last-resort response used when even the
// routing engine cannot be reached.
func apologyXML() string {
	s := telephony.NewScript(
		telephony.Say{Text: "We're sorry, an application error has occurred. Please try your call again later."},
		telephony.Hangup{},
	)
	xmlBody, err := telephony.RenderTwiML(s)
	if err != nil {
		// Static fallback; RenderTwiML cannot fail on this fixed script.
		return xmlTestResponse
	}
	return xmlBody
}
