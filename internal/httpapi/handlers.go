package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"voice-reminders/internal/audit"
	"voice-reminders/internal/calls"
	"voice-reminders/internal/cronjob"
	"voice-reminders/internal/goals"
	"voice-reminders/internal/reporting"
	"voice-reminders/internal/schedule"
	"voice-reminders/internal/telephony"
	"voice-reminders/pkg/logger"

	"github.com/gin-gonic/gin"
)

// GoalService is the lifecycle controller as seen by HTTP. *goals.Service satisfies it.
type GoalService interface {
	CreateGoal(ctx context.Context, userID string, in goals.CreateGoalInput) (goals.Goal, error)
	ListGoals(ctx context.Context, userID string) ([]goals.Goal, error)
	GetGoal(ctx context.Context, userID, goalID string) (goals.Goal, error)
	ToggleGoalActive(ctx context.Context, userID, goalID string, active bool) (goals.Goal, error)
	DeleteGoal(ctx context.Context, userID, goalID string) (goals.RemoteSync, error)
	RecentCallLogs(ctx context.Context, userID, goalID string, limit int) ([]calls.CallLog, error)

	ExecuteGoal(ctx context.Context, rawID string) (goals.ExecuteResult, error)
	ReconcileCallStatus(ctx context.Context, o telephony.CallOutcome) (calls.CallLog, error)

	ReconcileSweep(ctx context.Context) (goals.SweepReport, error)
	ExpireSweep(ctx context.Context) (goals.SweepReport, error)

	FindOrphanJobs(ctx context.Context) ([]goals.OrphanJob, error)
	PruneOrphanJobs(ctx context.Context, actorUserID string, apply bool) ([]goals.OrphanJob, error)
}

type Reporter interface {
	GoalSummary(ctx context.Context, req reporting.GoalSummaryRequest) (reporting.GoalSummary, error)
}

type AuditReader interface {
	Recent(ctx context.Context, t audit.EventType, limit int) ([]audit.Event, error)
}

// Locker provides single-flight sweeps. *utils.RedisLocker satisfies it.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, ok bool, err error)
}

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Goals   GoalService
	Reports Reporter
	Audit   AuditReader
	Locker  Locker

	// CallbackSecret, when set, must arrive in X-Callback-Secret on executions.
	CallbackSecret string
	SweepLockTTL   time.Duration

	Now func() time.Time
}

func (h Handlers) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, goals.ErrInvalidInput),
		errors.Is(err, schedule.ErrInvalidSchedule),
		errors.Is(err, goals.ErrInvalidGoalID),
		errors.Is(err, goals.ErrMissingCallID),
		errors.Is(err, telephony.ErrInvalidPayload),
		errors.Is(err, reporting.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, goals.ErrGoalNotFound):
		return http.StatusNotFound
	case errors.Is(err, goals.ErrGoalTerminal):
		return http.StatusConflict
	case errors.Is(err, goals.ErrScheduleCreation), errors.Is(err, cronjob.ErrRemoteScheduler):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// abortWithError writes {"error": ...}. Client errors carry the service
// message; server errors only a generic one.
func abortWithError(c *gin.Context, err error) {
	code := statusFor(err)
	msg := err.Error()
	switch {
	case code == http.StatusBadGateway:
		msg = "remote scheduler request failed; nothing was changed"
	case code >= http.StatusInternalServerError:
		msg = "internal error"
	}
	if code >= http.StatusInternalServerError {
		logger.FromGin(c).Error("request failed", "status", code, "err", err)
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(code, gin.H{"error": msg})
}

func (h Handlers) notConfigured(c *gin.Context) bool {
	if h.Goals == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "goal service not configured"})
		return true
	}
	return false
}
