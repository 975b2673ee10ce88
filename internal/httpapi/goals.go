package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"voice-reminders/internal/auth"
	"voice-reminders/internal/goals"
	"voice-reminders/internal/reporting"

	"github.com/gin-gonic/gin"
)

func currentUser(c *gin.Context) (string, bool) {
	uid, err := auth.UserID(c.Request.Context())
	if err != nil || uid == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user required"})
		return "", false
	}
	return uid, true
}

func (h Handlers) CreateGoal(c *gin.Context) {
	if h.notConfigured(c) {
		return
	}
	uid, ok := currentUser(c)
	if !ok {
		return
	}
	var in goals.CreateGoalInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	g, err := h.Goals.CreateGoal(c.Request.Context(), uid, in)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, g)
}

func (h Handlers) ListGoals(c *gin.Context) {
	if h.notConfigured(c) {
		return
	}
	uid, ok := currentUser(c)
	if !ok {
		return
	}
	out, err := h.Goals.ListGoals(c.Request.Context(), uid)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"goals": out})
}

func (h Handlers) GetGoal(c *gin.Context) {
	if h.notConfigured(c) {
		return
	}
	uid, ok := currentUser(c)
	if !ok {
		return
	}
	g, err := h.Goals.GetGoal(c.Request.Context(), uid, c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, g)
}

type toggleRequest struct {
	IsActive *bool `json:"is_active"`
}

func (h Handlers) ToggleGoal(c *gin.Context) {
	if h.notConfigured(c) {
		return
	}
	uid, ok := currentUser(c)
	if !ok {
		return
	}
	var req toggleRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.IsActive == nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "is_active required"})
		return
	}
	g, err := h.Goals.ToggleGoalActive(c.Request.Context(), uid, c.Param("id"), *req.IsActive)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, g)
}

func (h Handlers) DeleteGoal(c *gin.Context) {
	if h.notConfigured(c) {
		return
	}
	uid, ok := currentUser(c)
	if !ok {
		return
	}
	sync, err := h.Goals.DeleteGoal(c.Request.Context(), uid, c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true, "remote": sync})
}

func (h Handlers) ListCallLogs(c *gin.Context) {
	if h.notConfigured(c) {
		return
	}
	uid, ok := currentUser(c)
	if !ok {
		return
	}
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		limit = n
	}
	logs, err := h.Goals.RecentCallLogs(c.Request.Context(), uid, c.Param("id"), limit)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"call_logs": logs})
}

// GoalSummary reports call outcomes of an owned goal over ?from=&to= (RFC 3339).
func (h Handlers) GoalSummary(c *gin.Context) {
	if h.notConfigured(c) {
		return
	}
	if h.Reports == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "reporting not configured"})
		return
	}
	uid, ok := currentUser(c)
	if !ok {
		return
	}

	var rng reporting.TimeRange
	for _, p := range []struct {
		key string
		dst *time.Time
	}{{"from", &rng.From}, {"to", &rng.To}} {
		raw := c.Query(p.key)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": p.key + " must be RFC 3339"})
			return
		}
		*p.dst = t
	}

	g, err := h.Goals.GetGoal(c.Request.Context(), uid, c.Param("id"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	out, err := h.Reports.GoalSummary(c.Request.Context(), reporting.GoalSummaryRequest{GoalID: g.ID, Range: rng})
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}
