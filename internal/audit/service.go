package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events.
//
// It MUST be append-only.
type Repository interface {
	Append(ctx context.Context, e Event) error
	Recent(ctx context.Context, t EventType, limit int) ([]Event, error)
}

// Service records lifecycle events. Callers treat it as best-effort.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.Type == "" {
		return ErrInvalidEvent
	}
	if e.GoalID == "" && e.CronJobID == nil {
		return ErrInvalidEvent
	}

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock().UTC()
	}
	return s.repo.Append(ctx, e)
}

// Recent lists the newest events of one type (all types when t is empty).
func (s *Service) Recent(ctx context.Context, t EventType, limit int) ([]Event, error) {
	if s.repo == nil {
		return nil, errors.New("audit: repository not configured")
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.repo.Recent(ctx, t, limit)
}

// LogOrphanedRemoteJob records a remote job that was created for a goal
// whose local insert then failed.
func (s *Service) LogOrphanedRemoteJob(ctx context.Context, actorUserID, goalID string, cronJobID int64, cause string) error {
	return s.Append(ctx, Event{
		Type:        EventOrphanedRemoteJob,
		ActorUserID: actorUserID,
		GoalID:      goalID,
		CronJobID:   &cronJobID,
		Message:     "remote job created but goal insert failed",
		Metadata:    cause,
	})
}
