package main

import (
	"database/sql"
	"time"

	"callcenter-crm/internal/httpapi"
	"callcenter-crm/internal/rbac"
	"callcenter-crm/pkg/utils"

	"github.com/gin-gonic/gin"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(
	r *gin.Engine,
	authMW gin.HandlerFunc,
	webhooks *httpapi.WebhookHandler,
	activities *httpapi.ActivityHandler,
	db *sql.DB,
) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		if err := utils.HealthCheck(c.Request.Context(), db, 2*time.Second); err != nil {
			c.JSON(503, gin.H{"status": "degraded"})
			return
		}
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Provider voice webhooks (public). The global variant resolves the org
	// from the payload or the dialed number; the per-org variant carries it
	// in the path.
	// NOTE: protect with provider signature validation in production.
	r.POST("/webhooks/voice", webhooks.HandleVoice)
	r.GET("/webhooks/voice", webhooks.VoiceTest)
	r.POST("/webhooks/voice/:org_id", webhooks.HandleVoice)
	r.GET("/webhooks/voice/:org_id", webhooks.VoiceTest)

	// protected API group
	v1 := r.Group("/v1")
	v1.Use(authMW)
	v1.Use(rbac.RequireOrg())
	{
		acts := v1.Group("")
		acts.Use(rbac.RequireAnyRole(rbac.RoleAdmin, rbac.RoleManager, rbac.RoleAgent))
		{
			acts.POST("/activities", activities.Create)
			acts.GET("/leads/:lead_id/activities", activities.ListByLead)
		}
	}
}
