package audit

import "time"

// Event is an immutable, append-only audit log record.
//
// Invariants:
// - Events are never updated or deleted.
// - Actor capture is best-effort; do not block lifecycle flows on audit failures.
type Event struct {
	ID string `json:"id" db:"id"`

	// Type indicates the business category of the audit record.
	Type EventType `json:"type" db:"type"`

	// ActorUserID is the authenticated user causing the event, empty for
	// system actions (sweeps, callbacks, the ops CLI).
	ActorUserID string `json:"actor_user_id,omitempty" db:"actor_user_id"`
	ActorRole   string `json:"actor_role,omitempty" db:"actor_role"`

	GoalID    string `json:"goal_id,omitempty" db:"goal_id"`
	CronJobID *int64 `json:"cron_job_id,omitempty" db:"cron_job_id"`

	// Message is a short human-readable description for internal ops.
	Message string `json:"message,omitempty" db:"message"`

	// Metadata is optional JSON for full details.
	Metadata string `json:"metadata,omitempty" db:"metadata"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	EventGoalCreated       EventType = "goal_created"
	EventGoalDeleted       EventType = "goal_deleted"
	EventGoalToggled       EventType = "goal_toggled"
	EventOrphanedRemoteJob EventType = "orphaned_remote_job"
	EventOrphanJobPruned   EventType = "orphan_job_pruned"
)
