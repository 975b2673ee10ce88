package goals

import (
	"strings"
	"time"

	"voice-reminders/internal/schedule"
)

// Goal is a user's reminder intent: who to call, what to say, and when.
//
// Invariants:
// - CronJobID is set before a goal is persisted; the remote job is created first.
// - One-time goals carry wdays = Any and ExpiresAt = run instant + 48h.
// - Completed, expired and failed goals are never reactivated.
type Goal struct {
	ID     string `json:"id" db:"id"`
	UserID string `json:"user_id" db:"user_id"`

	Title       string `json:"title" db:"title"`
	Persona     string `json:"persona" db:"persona"`
	Context     string `json:"context" db:"context"`
	PhoneNumber string `json:"phone_number" db:"phone_number"`
	Language    string `json:"language" db:"language"`
	Voice       string `json:"voice" db:"voice"`

	ScheduleType schedule.Type     `json:"schedule_type" db:"schedule_type"`
	Schedule     schedule.Schedule `json:"schedule" db:"schedule"`

	IsActive bool   `json:"is_active" db:"is_active"`
	Status   Status `json:"status" db:"status"`

	ExecutionCount  int        `json:"execution_count" db:"execution_count"`
	LastExecutedAt  *time.Time `json:"last_executed_at" db:"last_executed_at"`
	NextExecutionAt *time.Time `json:"next_execution_at" db:"next_execution_at"`
	ExpiresAt       *time.Time `json:"expires_at" db:"expires_at"`

	CronJobID *int64 `json:"cron_job_id" db:"cron_job_id"`

	// Display-only copies of the latest call outcome; call_logs is authoritative.
	LastCallStatus   *string `json:"last_call_status,omitempty" db:"last_call_status"`
	LastCallDuration *int    `json:"last_call_duration,omitempty" db:"last_call_duration"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Script is the task text handed to the voice agent.
func (g Goal) Script() string {
	parts := make([]string, 0, 2)
	for _, p := range []string{g.Persona, g.Context} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, "\n\n")
}

// staleOneTime reports a one-time goal whose run or grace window has passed.
func (g Goal) staleOneTime(now time.Time) bool {
	if g.ScheduleType != schedule.TypeOneTime {
		return false
	}
	if g.ExpiresAt != nil && g.ExpiresAt.Before(now) {
		return true
	}
	return g.NextExecutionAt != nil && g.NextExecutionAt.Before(now)
}

type Status string

const (
	StatusCreated   Status = "created"
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusExpired   Status = "expired"
)

func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusExpired:
		return true
	default:
		return false
	}
}

// CreateGoalInput is what a user submits from the dashboard.
type CreateGoalInput struct {
	Title       string `json:"title"`
	Persona     string `json:"persona"`
	Context     string `json:"context"`
	PhoneNumber string `json:"phone_number"`
	Language    string `json:"language"`
	Voice       string `json:"voice"`

	ScheduleType schedule.Type `json:"schedule_type"`
	// Cron is "minute hour day month weekday".
	Cron string `json:"cron,omitempty"`
	// RunAt is the wall-clock datetime of a one-time goal in Timezone,
	// e.g. "2026-06-20T10:15". It takes precedence over Cron.
	RunAt    string `json:"run_at,omitempty"`
	Timezone string `json:"timezone"`
	// ExpiresAt ends a recurring goal: wall-clock in Timezone, or RFC 3339.
	ExpiresAt string `json:"expires_at,omitempty"`
}

// RemoteSync is the outcome of a best-effort remote scheduler call.
// Local state has already changed regardless of Confirmed.
type RemoteSync struct {
	Attempted bool   `json:"attempted"`
	Confirmed bool   `json:"confirmed"`
	Error     string `json:"error,omitempty"`
}

func remoteSync(err error) RemoteSync {
	if err != nil {
		return RemoteSync{Attempted: true, Error: err.Error()}
	}
	return RemoteSync{Attempted: true, Confirmed: true}
}

// ExecuteResult is returned to the remote scheduler's callback.
type ExecuteResult struct {
	GoalID string `json:"goal_id"`
	CallID string `json:"call_id"`
	// Skipped is true when the goal was inactive and no call was placed.
	Skipped bool   `json:"skipped"`
	Message string `json:"message"`
}
