package reporting

import (
	"context"
	"errors"
	"testing"
	"time"

	"voice-reminders/internal/calls"
)

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }

func strPtr(v string) *string { return &v }

func TestGoalSummary_ScopedToGoalAndRange(t *testing.T) {
	repo := NewMemoryRepo()
	now := time.Unix(1700000000, 0).UTC()
	repo.Logs = []calls.CallLog{
		{CallID: "c1", GoalID: "g1", Status: calls.CallStatusCompleted, DurationSeconds: intPtr(30), CreatedAt: now},
		{CallID: "c2", GoalID: "g2", Status: calls.CallStatusCompleted, DurationSeconds: intPtr(50), CreatedAt: now},
		{CallID: "c3", GoalID: "g1", Status: calls.CallStatusCompleted, CreatedAt: now.Add(-48 * time.Hour)},
	}
	svc := NewService(repo)

	out, err := svc.GoalSummary(context.Background(), GoalSummaryRequest{GoalID: "g1", Range: TimeRange{From: now.Add(-time.Hour), To: now.Add(time.Hour)}})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if out.TotalCalls != 1 {
		t.Fatalf("expected 1 call, got %d", out.TotalCalls)
	}
	if out.TotalDurationSeconds != 30 {
		t.Fatalf("expected 30s, got %d", out.TotalDurationSeconds)
	}
}

func TestGoalSummary_Aggregates(t *testing.T) {
	repo := NewMemoryRepo()
	now := time.Unix(1700000000, 0).UTC()
	repo.Logs = []calls.CallLog{
		{CallID: "c1", GoalID: "g", Status: calls.CallStatusCompleted, DurationSeconds: intPtr(40), CallCost: floatPtr(0.09), AnsweredBy: strPtr("human"), ExecutionTime: now, CreatedAt: now},
		{CallID: "c2", GoalID: "g", Status: calls.CallStatusCompleted, DurationSeconds: intPtr(20), CallCost: floatPtr(0.06), AnsweredBy: strPtr("voicemail"), ExecutionTime: now.Add(time.Minute), CreatedAt: now},
		{CallID: "error-1", GoalID: "g", Status: calls.CallStatusFailed, CreatedAt: now},
		{CallID: "inactive-1", GoalID: "g", Status: calls.CallStatusCancelled, CreatedAt: now},
		{CallID: "c5", GoalID: "g", Status: "no-answer", CreatedAt: now},
	}
	svc := NewService(repo)

	out, err := svc.GoalSummary(context.Background(), GoalSummaryRequest{GoalID: "g", Range: TimeRange{From: now.Add(-time.Hour), To: now.Add(time.Hour)}})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if out.TotalCalls != 5 || out.CompletedCalls != 2 || out.FailedCalls != 1 || out.CancelledCalls != 1 || out.OtherCalls != 1 {
		t.Fatalf("unexpected counts: %+v", out)
	}
	if out.AverageDurationSeconds != 30 {
		t.Fatalf("expected average 30, got %d", out.AverageDurationSeconds)
	}
	if out.AnsweredByHuman != 1 || out.Voicemail != 1 {
		t.Fatalf("unexpected answered_by counts: %+v", out)
	}
	if out.TotalCost < 0.149 || out.TotalCost > 0.151 {
		t.Fatalf("expected total cost 0.15, got %f", out.TotalCost)
	}
	if out.CompletionRate != 0.5 {
		t.Fatalf("expected completion rate 0.5, got %f", out.CompletionRate)
	}
	if out.LastCallAt == nil || !out.LastCallAt.Equal(now.Add(time.Minute)) {
		t.Fatalf("expected last call at %v, got %v", now.Add(time.Minute), out.LastCallAt)
	}
}

func TestGoalSummary_DefaultsAndValidation(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	repo := NewMemoryRepo()
	repo.Logs = []calls.CallLog{{CallID: "c1", GoalID: "g", Status: calls.CallStatusCompleted, CreatedAt: now.Add(-24 * time.Hour)}}
	svc := NewService(repo)
	svc.clock = func() time.Time { return now }

	out, err := svc.GoalSummary(context.Background(), GoalSummaryRequest{GoalID: "g"})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if out.TotalCalls != 1 || !out.Range.To.Equal(now) {
		t.Fatalf("expected default 30 day window, got %+v", out)
	}

	if _, err := svc.GoalSummary(context.Background(), GoalSummaryRequest{}); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
	bad := GoalSummaryRequest{GoalID: "g", Range: TimeRange{From: now, To: now.Add(-time.Hour)}}
	if _, err := svc.GoalSummary(context.Background(), bad); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest for inverted range, got %v", err)
	}
}
