package reporting

import (
	"context"
	"errors"
	"sync"
	"time"

	"voice-reminders/internal/calls"
)

// MemoryRepo is a simple in-memory reporting repository for tests.
type MemoryRepo struct {
	mu sync.Mutex

	Logs []calls.CallLog
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

func (r *MemoryRepo) ListCallLogs(ctx context.Context, goalID string, from, to time.Time) ([]calls.CallLog, error) {
	if goalID == "" {
		return nil, errors.New("goal_id required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]calls.CallLog, 0)
	for _, l := range r.Logs {
		if l.GoalID != goalID {
			continue
		}
		if l.CreatedAt.Before(from) || !l.CreatedAt.Before(to) {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}
