package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"callcenter-crm/internal/audit"
	"callcenter-crm/internal/auth"
	"callcenter-crm/internal/completion"
	"callcenter-crm/internal/leads"
	"callcenter-crm/pkg/logger"
)

// ActivityHandler serves the lead activity API: the ordered history read and
// the completion/note submission write. Keep these thin: parse/validate
// input, call internal services, return JSON.

type ActivityHandler struct {
	Completion *completion.Service
	Activities leads.ActivityRepository
	Audit      *audit.Recorder
}

type createActivityRequest struct {
	Type   string `json:"type"`
	LeadID string `json:"leadId"`

	// Call completion fields.
	Outcome       string `json:"outcome"`
	Duration      int    `json:"duration"`
	Notes         string `json:"notes"`
	SessionID     string `json:"sessionId"`
	FollowUpTime  string `json:"followUpTime"`
	CallStartTime string `json:"callStartTime"`
	CallEndTime   string `json:"callEndTime"`

	// Note/email/meeting field.
	Content string `json:"content"`
}

// Create accepts a finished-call submission (type "call") or a free-text
// activity (note/email/meeting).
func (h *ActivityHandler) Create(c *gin.Context) {
	ctx := logger.With(c.Request.Context(), logger.FromGin(c))

	orgID, err := auth.OrgID(ctx)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "org_id required"})
		return
	}
	userID, _ := auth.UserID(ctx)

	var req createActivityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.LeadID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "leadId required"})
		return
	}

	if req.Type == "call" {
		h.createCall(c, ctx, orgID, userID, req)
		return
	}
	h.createNote(c, ctx, orgID, userID, req)
}

func (h *ActivityHandler) createCall(c *gin.Context, ctx context.Context, orgID, userID string, req createActivityRequest) {
	comp := completion.CompleteCallRequest{
		OrgID:           orgID,
		LeadID:          req.LeadID,
		SessionID:       req.SessionID,
		UserID:          userID,
		Outcome:         req.Outcome,
		DurationSeconds: req.Duration,
		Notes:           req.Notes,
		FollowUpTime:    req.FollowUpTime,
	}
	if t, ok := parseTime(req.CallStartTime); ok {
		comp.StartedAt = &t
	}
	if t, ok := parseTime(req.CallEndTime); ok {
		comp.EndedAt = &t
	}

	_, err := h.Completion.CompleteCall(ctx, comp)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"success": true})
	case errors.Is(err, completion.ErrInvalidOutcome), errors.Is(err, completion.ErrInvalidArgument):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, completion.ErrLeadNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "lead not found"})
	case errors.Is(err, completion.ErrNoActiveCall):
		h.Audit.Record(ctx, audit.Event{
			OrgID:     orgID,
			Kind:      audit.KindNoActiveCall,
			LeadID:    req.LeadID,
			SessionID: req.SessionID,
		})
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "no active call for lead and session"})
	case errors.Is(err, leads.ErrConflict):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "duplicate record"})
	default:
		logger.From(ctx).Error("call completion failed",
			"org_id", orgID, "lead_id", req.LeadID, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "completion failed"})
	}
}

func (h *ActivityHandler) createNote(c *gin.Context, ctx context.Context, orgID, userID string, req createActivityRequest) {
	a, err := h.Completion.AddActivity(ctx, completion.AddActivityRequest{
		OrgID:     orgID,
		LeadID:    req.LeadID,
		UserID:    userID,
		SessionID: req.SessionID,
		Type:      leads.ActivityType(normalizeActivityType(req.Type)),
		Content:   req.Content,
	})
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"success": true, "activity_id": a.ActivityID})
	case errors.Is(err, completion.ErrInvalidArgument):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, leads.ErrConflict):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "duplicate record"})
	default:
		logger.From(ctx).Error("activity insert failed",
			"org_id", orgID, "lead_id", req.LeadID, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "activity insert failed"})
	}
}

// ListByLead returns the lead's activity history, newest first, with the
// linked call/session/user projections the agent UI renders.
func (h *ActivityHandler) ListByLead(c *gin.Context) {
	ctx := logger.With(c.Request.Context(), logger.FromGin(c))

	orgID, err := auth.OrgID(ctx)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "org_id required"})
		return
	}
	leadID := c.Param("lead_id")
	if leadID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "lead_id required"})
		return
	}

	acts, err := h.Activities.ListByLead(ctx, orgID, leadID)
	if err != nil {
		logger.From(ctx).Error("activity list failed", "org_id", orgID, "lead_id", leadID, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "activity list failed"})
		return
	}

	out := make([]activityView, 0, len(acts))
	for _, a := range acts {
		out = append(out, activityView{
			ActivityID:   a.ActivityID,
			Type:         string(a.Type),
			Outcome:      a.Outcome,
			Content:      a.Content,
			Duration:     a.DurationSeconds,
			AttemptCount: a.AttemptCount,
			CallID:       a.CallID,
			SessionID:    a.SessionID,
			CreatedBy:    a.CreatedBy,
			CreatedAt:    a.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"activities": out})
}

type activityView struct {
	ActivityID   string    `json:"activity_id"`
	Type         string    `json:"type"`
	Outcome      string    `json:"outcome,omitempty"`
	Content      string    `json:"content,omitempty"`
	Duration     int       `json:"duration,omitempty"`
	AttemptCount int       `json:"attempt_count,omitempty"`
	CallID       string    `json:"call_id,omitempty"`
	SessionID    string    `json:"session_id,omitempty"`
	CreatedBy    string    `json:"created_by,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

func parseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// normalizeActivityType maps the API's lowercase type codes onto the stored
// uppercase activity types.
func normalizeActivityType(t string) string {
	switch t {
	case "note":
		return string(leads.ActivityNote)
	case "email":
		return string(leads.ActivityEmail)
	case "meeting":
		return string(leads.ActivityMeeting)
	default:
		return t
	}
}
