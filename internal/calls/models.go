package calls

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CallLog is one attempted reminder call.
//
// Rows are written only by the goal lifecycle controller and are updated
// once, by the outcome webhook. GoalTitle and PhoneNumber are copied at
// execution time so history survives later goal edits or deletion.
type CallLog struct {
	ID     string  `json:"id" db:"id"`
	GoalID string  `json:"goal_id" db:"goal_id"`
	UserID *string `json:"user_id" db:"user_id"`

	// CallID is the provider's call id, or a synthetic placeholder when no
	// call was placed (see PlaceholderCallID).
	CallID string     `json:"call_id" db:"call_id"`
	Status CallStatus `json:"status" db:"status"`

	GoalTitle   string `json:"goal_title" db:"goal_title"`
	PhoneNumber string `json:"phone_number" db:"phone_number"`

	ExecutionTime time.Time  `json:"execution_time" db:"execution_time"`
	StartedAt     *time.Time `json:"started_at,omitempty" db:"started_at"`
	EndAt         *time.Time `json:"end_at,omitempty" db:"end_at"`

	DurationSeconds *int     `json:"duration_seconds,omitempty" db:"duration_seconds"`
	ErrorMessage    *string  `json:"error_message,omitempty" db:"error_message"`
	Transcript      *string  `json:"transcript,omitempty" db:"transcript"`
	Summary         *string  `json:"summary,omitempty" db:"summary"`
	DispositionTag  *string  `json:"disposition_tag,omitempty" db:"disposition_tag"`
	AnsweredBy      *string  `json:"answered_by,omitempty" db:"answered_by"`
	CallEndedBy     *string  `json:"call_ended_by,omitempty" db:"call_ended_by"`
	Completed       *bool    `json:"completed,omitempty" db:"completed"`
	CallCost        *float64 `json:"call_cost,omitempty" db:"call_cost"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type CallStatus string

const (
	CallStatusInitiated CallStatus = "initiated"
	CallStatusCancelled CallStatus = "cancelled"
	CallStatusFailed    CallStatus = "failed"
	CallStatusCompleted CallStatus = "completed"
)

// Terminal reports whether no further outcome is expected for the call.
// Unknown provider statuses are treated as terminal; only initiated is open.
func (s CallStatus) Terminal() bool {
	return s != CallStatusInitiated && s != ""
}

// Placeholder prefixes for CallLogs written without a real provider call.
const (
	PlaceholderError    = "error"
	PlaceholderInactive = "inactive"
)

// PlaceholderCallID builds "<prefix>-<unix millis>-<8 hex>". call_id is
// unique, and jobs due on the same minute fire within the same millisecond,
// so the timestamp alone is not enough.
func PlaceholderCallID(prefix string, at time.Time) string {
	return fmt.Sprintf("%s-%d-%s", prefix, at.UnixMilli(), uuid.NewString()[:8])
}
