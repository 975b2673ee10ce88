package main

import (
	"voice-reminders/internal/config"
	"voice-reminders/internal/httpapi"
	"voice-reminders/internal/rbac"

	"github.com/gin-gonic/gin"
)

// registerPublicRoutes wires health, provider callbacks and sweep triggers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerPublicRoutes(r *gin.Engine, h httpapi.Handlers, cronSecret string) {
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Remote scheduler and voice provider callbacks.
	r.POST(config.ExecutePath, h.ExecuteGoal)
	r.POST(config.WebhookPath, h.VoiceWebhook)

	// Platform cron triggers; some hosts send GET, some POST.
	sweeps := r.Group("/api/cron")
	sweeps.Use(httpapi.RequireBearerSecret(cronSecret))
	{
		sweeps.GET("/reconcile-goals", h.ReconcileSweep)
		sweeps.POST("/reconcile-goals", h.ReconcileSweep)
		sweeps.GET("/expire-goals", h.ExpireSweep)
		sweeps.POST("/expire-goals", h.ExpireSweep)
	}
}

func registerProtectedRoutes(r *gin.Engine, h httpapi.Handlers, authMW gin.HandlerFunc) {
	v1 := r.Group("/v1")
	v1.Use(authMW)
	v1.Use(rbac.RequireUser())

	// GOAL routes
	goalsGroup := v1.Group("/goals")
	goalsGroup.Use(rbac.RequireAnyRole(rbac.RoleAuthenticated))
	{
		goalsGroup.POST("", h.CreateGoal)
		goalsGroup.GET("", h.ListGoals)
		goalsGroup.GET("/:id", h.GetGoal)
		goalsGroup.PATCH("/:id/active", h.ToggleGoal)
		goalsGroup.DELETE("/:id", h.DeleteGoal)
		goalsGroup.GET("/:id/call-logs", h.ListCallLogs)
		goalsGroup.GET("/:id/summary", h.GoalSummary)
	}

	v1.POST("/schedule/preview", rbac.RequireAnyRole(rbac.RoleAuthenticated), h.PreviewSchedule)

	// ADMIN routes
	// Only the service role reaches maintenance endpoints.
	admin := v1.Group("/admin")
	admin.Use(rbac.RequireAnyRole(rbac.RoleService))
	{
		admin.GET("/orphan-jobs", h.ListOrphanJobs)
		admin.DELETE("/orphan-jobs", h.PruneOrphanJobs)
		admin.GET("/audit", h.ListAuditEvents)
	}
}
