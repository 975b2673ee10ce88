package reporting

import "time"

type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// GoalSummaryRequest asks for call outcome metrics of one goal.
// Ownership is checked by the caller before the request is built.
type GoalSummaryRequest struct {
	GoalID string    `json:"goal_id"`
	Range  TimeRange `json:"range"`
}

type GoalSummary struct {
	GoalID string    `json:"goal_id"`
	Range  TimeRange `json:"range"`

	TotalCalls     int `json:"total_calls"`
	InitiatedCalls int `json:"initiated_calls"`
	CompletedCalls int `json:"completed_calls"`
	FailedCalls    int `json:"failed_calls"`
	CancelledCalls int `json:"cancelled_calls"`
	// OtherCalls carries provider statuses outside our vocabulary.
	OtherCalls int `json:"other_calls"`

	TotalDurationSeconds   int `json:"total_duration_seconds"`
	AverageDurationSeconds int `json:"average_duration_seconds"`

	AnsweredByHuman int     `json:"answered_by_human"`
	Voicemail       int     `json:"voicemail"`
	TotalCost       float64 `json:"total_cost"`

	// CompletionRate is completed over calls that were actually placed.
	CompletionRate float64    `json:"completion_rate"`
	LastCallAt     *time.Time `json:"last_call_at,omitempty"`
}
