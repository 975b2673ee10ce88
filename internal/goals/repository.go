package goals

import (
	"context"
	"time"

	"voice-reminders/internal/calls"
	"voice-reminders/internal/telephony"
)

// Repository is the Goal Store: typed access to goals and their call logs.
//
// Updates are last-write-wins; no method takes a version token.
// Get and update methods return ErrGoalNotFound / ErrCallLogNotFound when
// no row matches.
type Repository interface {
	InsertGoal(ctx context.Context, g Goal) error
	GetGoal(ctx context.Context, id string) (Goal, error)
	ListGoalsByUser(ctx context.Context, userID string) ([]Goal, error)
	DeleteGoal(ctx context.Context, id string) error

	// SetActive writes the toggle result.
	SetActive(ctx context.Context, id string, active bool, status Status, now time.Time) (Goal, error)
	// RecordExecution bumps execution_count, sets last_executed_at and
	// next_execution_at, and moves a created goal to active.
	RecordExecution(ctx context.Context, id string, at time.Time, next *time.Time) (Goal, error)
	// Deactivate sets is_active=false, the given status and clears next_execution_at.
	Deactivate(ctx context.Context, id string, status Status, now time.Time) error
	UpdateNextExecution(ctx context.Context, id string, next *time.Time, now time.Time) error
	// UpdateLastCall copies a call outcome onto the goal that owns callID.
	UpdateLastCall(ctx context.Context, callID, status string, durationSeconds *int, now time.Time) error

	// ListActiveLinked: is_active AND cron_job_id IS NOT NULL.
	ListActiveLinked(ctx context.Context) ([]Goal, error)
	// ListStaleOneTime: schedule_type = onetime AND (expires_at < now OR next_execution_at < now).
	ListStaleOneTime(ctx context.Context, now time.Time) ([]Goal, error)
	// ListExpired: is_active AND expires_at IS NOT NULL AND expires_at < now.
	ListExpired(ctx context.Context, now time.Time) ([]Goal, error)
	// ReferencedCronJobIDs returns every cron_job_id held by a goal.
	ReferencedCronJobIDs(ctx context.Context) (map[int64]struct{}, error)

	InsertCallLog(ctx context.Context, l calls.CallLog) error
	UpdateCallLogOutcome(ctx context.Context, o telephony.CallOutcome, now time.Time) (calls.CallLog, error)
	// RecentCallLogs returns the newest limit logs of a goal, newest first.
	RecentCallLogs(ctx context.Context, goalID string, limit int) ([]calls.CallLog, error)
	// ListCallLogs returns a goal's logs created in [from, to).
	ListCallLogs(ctx context.Context, goalID string, from, to time.Time) ([]calls.CallLog, error)
}
