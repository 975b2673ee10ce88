package httpapi

import (
	"net/http"
	"time"

	"voice-reminders/internal/schedule"

	"github.com/gin-gonic/gin"
)

const previewRuns = 5

type previewRequest struct {
	ScheduleType schedule.Type `json:"schedule_type"`
	Cron         string        `json:"cron"`
	RunAt        string        `json:"run_at,omitempty"`
	Timezone     string        `json:"timezone"`
	ExpiresAt    string        `json:"expires_at,omitempty"`
}

type previewResponse struct {
	Schedule  schedule.Schedule `json:"schedule"`
	Timezone  string            `json:"timezone"`
	RunAt     *time.Time        `json:"run_at,omitempty"`
	ExpiresAt *time.Time        `json:"expires_at,omitempty"`
	NextRuns  []time.Time       `json:"next_runs"`
}

// PreviewSchedule validates a cron builder draft and shows its next runs.
// Nothing is created.
func (h Handlers) PreviewSchedule(c *gin.Context) {
	var req previewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	enc := &schedule.Encoder{Now: h.now}
	out, err := enc.Encode(schedule.Request{
		Type:       req.ScheduleType,
		Expression: req.Cron,
		RunAt:      req.RunAt,
		Timezone:   req.Timezone,
		Expiry:     req.ExpiresAt,
	})
	if err != nil {
		abortWithError(c, err)
		return
	}
	runs, err := schedule.Preview(out, h.now(), previewRuns)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if runs == nil {
		runs = []time.Time{}
	}

	c.JSON(http.StatusOK, previewResponse{
		Schedule:  out.Schedule,
		Timezone:  out.Schedule.Timezone,
		RunAt:     out.RunAt,
		ExpiresAt: out.ExpiresAt,
		NextRuns:  runs,
	})
}
