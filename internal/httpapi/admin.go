package httpapi

import (
	"net/http"
	"strconv"

	"voice-reminders/internal/audit"
	"voice-reminders/internal/auth"

	"github.com/gin-gonic/gin"
)

// ListOrphanJobs reports remote jobs that no goal references.
// RBAC: service_role.
func (h Handlers) ListOrphanJobs(c *gin.Context) {
	if h.notConfigured(c) {
		return
	}
	out, err := h.Goals.FindOrphanJobs(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orphans": out})
}

// PruneOrphanJobs deletes them. RBAC: service_role.
func (h Handlers) PruneOrphanJobs(c *gin.Context) {
	if h.notConfigured(c) {
		return
	}
	actor, _ := auth.UserID(c.Request.Context())
	out, err := h.Goals.PruneOrphanJobs(c.Request.Context(), actor, true)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orphans": out})
}

// ListAuditEvents returns recent lifecycle events, optionally ?type=.
func (h Handlers) ListAuditEvents(c *gin.Context) {
	if h.Audit == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "audit not configured"})
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	evs, err := h.Audit.Recent(c.Request.Context(), audit.EventType(c.Query("type")), limit)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": evs})
}
