package goals

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"voice-reminders/internal/calls"
	"voice-reminders/internal/schedule"
	"voice-reminders/internal/telephony"
)

// MemoryRepo is an in-memory Repository for tests and local development.
// It is not intended for production use.
type MemoryRepo struct {
	mu    sync.Mutex
	goals map[string]Goal
	logs  []calls.CallLog

	// Fail, when set, is returned by every write for the named op
	// ("insert goal", "insert call log", ...).
	Fail map[string]error
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{goals: map[string]Goal{}, Fail: map[string]error{}}
}

var _ Repository = (*MemoryRepo)(nil)

func (r *MemoryRepo) fail(op string) error {
	if err, ok := r.Fail[op]; ok && err != nil {
		return storeErr(op, err)
	}
	return nil
}

func (r *MemoryRepo) InsertGoal(ctx context.Context, g Goal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("insert goal"); err != nil {
		return err
	}
	r.goals[g.ID] = cloneGoal(g)
	return nil
}

func (r *MemoryRepo) GetGoal(ctx context.Context, id string) (Goal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("get goal"); err != nil {
		return Goal{}, err
	}
	g, ok := r.goals[id]
	if !ok {
		return Goal{}, ErrGoalNotFound
	}
	return cloneGoal(g), nil
}

func (r *MemoryRepo) ListGoalsByUser(ctx context.Context, userID string) ([]Goal, error) {
	return r.filter(func(g Goal) bool { return g.UserID == userID }, func(a, b Goal) bool {
		return a.CreatedAt.After(b.CreatedAt)
	}), nil
}

func (r *MemoryRepo) DeleteGoal(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("delete goal"); err != nil {
		return err
	}
	if _, ok := r.goals[id]; !ok {
		return ErrGoalNotFound
	}
	delete(r.goals, id)
	return nil
}

func (r *MemoryRepo) update(op, id string, fn func(g *Goal)) (Goal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail(op); err != nil {
		return Goal{}, err
	}
	g, ok := r.goals[id]
	if !ok {
		return Goal{}, ErrGoalNotFound
	}
	fn(&g)
	r.goals[id] = g
	return cloneGoal(g), nil
}

func (r *MemoryRepo) SetActive(ctx context.Context, id string, active bool, status Status, now time.Time) (Goal, error) {
	return r.update("set active", id, func(g *Goal) {
		g.IsActive = active
		g.Status = status
		g.UpdatedAt = now
	})
}

func (r *MemoryRepo) RecordExecution(ctx context.Context, id string, at time.Time, next *time.Time) (Goal, error) {
	return r.update("record execution", id, func(g *Goal) {
		g.ExecutionCount++
		g.LastExecutedAt = timePtr(at)
		g.NextExecutionAt = copyTime(next)
		if g.Status == StatusCreated {
			g.Status = StatusActive
		}
		g.UpdatedAt = at
	})
}

func (r *MemoryRepo) Deactivate(ctx context.Context, id string, status Status, now time.Time) error {
	_, err := r.update("deactivate goal", id, func(g *Goal) {
		g.IsActive = false
		g.Status = status
		g.NextExecutionAt = nil
		g.UpdatedAt = now
	})
	return err
}

func (r *MemoryRepo) UpdateNextExecution(ctx context.Context, id string, next *time.Time, now time.Time) error {
	_, err := r.update("update next execution", id, func(g *Goal) {
		g.NextExecutionAt = copyTime(next)
		g.UpdatedAt = now
	})
	return err
}

func (r *MemoryRepo) UpdateLastCall(ctx context.Context, callID, status string, durationSeconds *int, now time.Time) error {
	r.mu.Lock()
	goalID := ""
	for _, l := range r.logs {
		if l.CallID == callID {
			goalID = l.GoalID
			break
		}
	}
	r.mu.Unlock()

	_, err := r.update("update last call", goalID, func(g *Goal) {
		g.LastCallStatus = &status
		if durationSeconds != nil {
			d := *durationSeconds
			g.LastCallDuration = &d
		}
		g.UpdatedAt = now
	})
	return err
}

func (r *MemoryRepo) ListActiveLinked(ctx context.Context) ([]Goal, error) {
	return r.filter(func(g Goal) bool { return g.IsActive && g.CronJobID != nil }, byID), nil
}

func (r *MemoryRepo) ListStaleOneTime(ctx context.Context, now time.Time) ([]Goal, error) {
	return r.filter(func(g Goal) bool {
		return g.ScheduleType == schedule.TypeOneTime && g.staleOneTime(now)
	}, byID), nil
}

func (r *MemoryRepo) ListExpired(ctx context.Context, now time.Time) ([]Goal, error) {
	return r.filter(func(g Goal) bool {
		return g.IsActive && g.ExpiresAt != nil && g.ExpiresAt.Before(now)
	}, byID), nil
}

func (r *MemoryRepo) ReferencedCronJobIDs(ctx context.Context) (map[int64]struct{}, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[int64]struct{})
	for _, g := range r.goals {
		if g.CronJobID != nil {
			out[*g.CronJobID] = struct{}{}
		}
	}
	return out, nil
}

func (r *MemoryRepo) InsertCallLog(ctx context.Context, l calls.CallLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("insert call log"); err != nil {
		return err
	}
	// mirrors the UNIQUE constraint on call_logs.call_id
	for _, existing := range r.logs {
		if existing.CallID == l.CallID {
			return storeErr("insert call log", fmt.Errorf("duplicate call_id %q", l.CallID))
		}
	}
	r.logs = append(r.logs, l)
	return nil
}

func (r *MemoryRepo) UpdateCallLogOutcome(ctx context.Context, o telephony.CallOutcome, now time.Time) (calls.CallLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.fail("update call log"); err != nil {
		return calls.CallLog{}, err
	}
	for i := range r.logs {
		l := &r.logs[i]
		if l.CallID != o.CallID {
			continue
		}
		if o.Status != "" {
			l.Status = calls.CallStatus(o.Status)
		}
		l.DurationSeconds = coalesce(o.DurationSeconds, l.DurationSeconds)
		l.Completed = coalesce(o.Completed, l.Completed)
		l.ErrorMessage = coalesce(o.ErrorMessage, l.ErrorMessage)
		l.StartedAt = coalesce(o.StartedAt, l.StartedAt)
		l.EndAt = coalesce(o.EndAt, l.EndAt)
		l.Transcript = coalesce(o.Transcript, l.Transcript)
		l.Summary = coalesce(o.Summary, l.Summary)
		l.DispositionTag = coalesce(o.DispositionTag, l.DispositionTag)
		l.AnsweredBy = coalesce(o.AnsweredBy, l.AnsweredBy)
		l.CallEndedBy = coalesce(o.CallEndedBy, l.CallEndedBy)
		l.CallCost = coalesce(o.Cost, l.CallCost)
		l.UpdatedAt = now
		return *l, nil
	}
	return calls.CallLog{}, ErrCallLogNotFound
}

func (r *MemoryRepo) RecentCallLogs(ctx context.Context, goalID string, limit int) ([]calls.CallLog, error) {
	out := r.goalLogs(goalID, func(calls.CallLog) bool { return true })
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryRepo) ListCallLogs(ctx context.Context, goalID string, from, to time.Time) ([]calls.CallLog, error) {
	return r.goalLogs(goalID, func(l calls.CallLog) bool {
		return !l.CreatedAt.Before(from) && l.CreatedAt.Before(to)
	}), nil
}

// CallLogs returns every stored log in insertion order.
func (r *MemoryRepo) CallLogs() []calls.CallLog {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]calls.CallLog, len(r.logs))
	copy(out, r.logs)
	return out
}

func (r *MemoryRepo) goalLogs(goalID string, keep func(calls.CallLog) bool) []calls.CallLog {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]calls.CallLog, 0)
	for _, l := range r.logs {
		if l.GoalID == goalID && keep(l) {
			out = append(out, l)
		}
	}
	return out
}

func (r *MemoryRepo) filter(keep func(Goal) bool, less func(a, b Goal) bool) []Goal {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Goal, 0)
	for _, g := range r.goals {
		if keep(g) {
			out = append(out, cloneGoal(g))
		}
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

func byID(a, b Goal) bool { return a.ID < b.ID }

func cloneGoal(g Goal) Goal {
	g.LastExecutedAt = copyTime(g.LastExecutedAt)
	g.NextExecutionAt = copyTime(g.NextExecutionAt)
	g.ExpiresAt = copyTime(g.ExpiresAt)
	if g.CronJobID != nil {
		id := *g.CronJobID
		g.CronJobID = &id
	}
	return g
}

func coalesce[T any](v, fallback *T) *T {
	if v != nil {
		c := *v
		return &c
	}
	return fallback
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

func timePtr(t time.Time) *time.Time { return &t }
