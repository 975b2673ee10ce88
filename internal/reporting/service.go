package reporting

import (
	"context"
	"errors"
	"strings"
	"time"

	"voice-reminders/internal/calls"
)

var ErrInvalidRequest = errors.New("reporting: invalid request")

// DefaultWindow is used when a request carries no range.
const DefaultWindow = 30 * 24 * time.Hour

// Repository is satisfied by the goal store.
type Repository interface {
	ListCallLogs(ctx context.Context, goalID string, from, to time.Time) ([]calls.CallLog, error)
}

type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service { return &Service{repo: repo, clock: time.Now} }

func (s *Service) GoalSummary(ctx context.Context, req GoalSummaryRequest) (GoalSummary, error) {
	if req.GoalID == "" {
		return GoalSummary{}, ErrInvalidRequest
	}
	if req.Range.From.IsZero() && req.Range.To.IsZero() {
		req.Range.To = s.clock().UTC()
		req.Range.From = req.Range.To.Add(-DefaultWindow)
	}
	if req.Range.From.IsZero() || req.Range.To.IsZero() || !req.Range.To.After(req.Range.From) {
		return GoalSummary{}, ErrInvalidRequest
	}
	if s.repo == nil {
		return GoalSummary{}, errors.New("reporting: repository not configured")
	}

	rows, err := s.repo.ListCallLogs(ctx, req.GoalID, req.Range.From, req.Range.To)
	if err != nil {
		return GoalSummary{}, err
	}

	out := GoalSummary{GoalID: req.GoalID, Range: req.Range}
	timed := 0
	for _, l := range rows {
		out.TotalCalls++
		switch l.Status {
		case calls.CallStatusInitiated:
			out.InitiatedCalls++
		case calls.CallStatusCompleted:
			out.CompletedCalls++
		case calls.CallStatusFailed:
			out.FailedCalls++
		case calls.CallStatusCancelled:
			out.CancelledCalls++
		default:
			out.OtherCalls++
		}
		if l.DurationSeconds != nil {
			out.TotalDurationSeconds += *l.DurationSeconds
			timed++
		}
		if l.CallCost != nil {
			out.TotalCost += *l.CallCost
		}
		if l.AnsweredBy != nil {
			switch strings.ToLower(*l.AnsweredBy) {
			case "human":
				out.AnsweredByHuman++
			case "voicemail":
				out.Voicemail++
			}
		}
		if !l.ExecutionTime.IsZero() && (out.LastCallAt == nil || l.ExecutionTime.After(*out.LastCallAt)) {
			t := l.ExecutionTime
			out.LastCallAt = &t
		}
	}
	if timed > 0 {
		out.AverageDurationSeconds = out.TotalDurationSeconds / timed
	}
	// cancelled and failed placeholders never reached the provider
	if placed := out.TotalCalls - out.CancelledCalls; placed > 0 {
		out.CompletionRate = float64(out.CompletedCalls) / float64(placed)
	}
	return out, nil
}
