package goals

import (
	"context"
	"fmt"
	"time"

	"voice-reminders/pkg/logger"
)

type SweepAction string

const (
	SweepPaused  SweepAction = "paused"
	SweepExpired SweepAction = "expired"
	SweepDrift   SweepAction = "drift_corrected"
	SweepFailed  SweepAction = "failed"
)

type SweepItem struct {
	GoalID string      `json:"goal_id"`
	Action SweepAction `json:"action"`
	// Remote is nil when no remote call was attempted.
	Remote *RemoteSync `json:"remote,omitempty"`
	Err    string      `json:"error,omitempty"`
}

// SweepReport summarizes one sweep pass. Per-goal failures are listed in
// Items and never abort the pass.
type SweepReport struct {
	Checked int         `json:"checked"`
	Paused  int         `json:"paused"`
	Expired int         `json:"expired"`
	Drifted int         `json:"drift_corrected"`
	Failed  int         `json:"failed"`
	Items   []SweepItem `json:"items"`
}

func (r SweepReport) Message() string {
	return fmt.Sprintf("checked %d goals: %d paused, %d expired, %d drift corrected, %d failed",
		r.Checked, r.Paused, r.Expired, r.Drifted, r.Failed)
}

func (r *SweepReport) fail(ctx context.Context, goalID, step string, err error) {
	logger.From(ctx).Error("sweep item failed", "goal_id", goalID, "step", step, "err", err)
	r.Failed++
	r.Items = append(r.Items, SweepItem{GoalID: goalID, Action: SweepFailed, Err: err.Error()})
}

// ReconcileSweep retires one-time goals whose run or expiry has passed and
// corrects next_execution_at drift of the remaining active goals against the
// remote scheduler. Only listing failures are returned as errors.
func (s *Service) ReconcileSweep(ctx context.Context) (SweepReport, error) {
	log := logger.From(ctx)
	now := s.now()
	report := SweepReport{Items: make([]SweepItem, 0)}

	stale, err := s.repo.ListStaleOneTime(ctx, now)
	if err != nil {
		return report, storeErr("list stale one-time goals", err)
	}
	retired := make(map[string]struct{}, len(stale))
	for _, g := range stale {
		if !g.IsActive || g.CronJobID == nil {
			continue
		}
		report.Checked++
		retired[g.ID] = struct{}{}
		if err := s.repo.Deactivate(ctx, g.ID, StatusPaused, now); err != nil {
			report.fail(ctx, g.ID, "pause", err)
			continue
		}
		sync := s.disableRemote(ctx, g)
		report.Paused++
		report.Items = append(report.Items, SweepItem{GoalID: g.ID, Action: SweepPaused, Remote: &sync})
	}

	active, err := s.repo.ListActiveLinked(ctx)
	if err != nil {
		return report, storeErr("list active goals", err)
	}
	for _, g := range active {
		if _, done := retired[g.ID]; done {
			continue
		}
		report.Checked++
		job, err := s.sched.GetJob(ctx, *g.CronJobID)
		if err != nil {
			report.fail(ctx, g.ID, "get remote job", err)
			continue
		}
		remote, ok := job.NextExecutionTime()
		if !ok || sameInstant(g.NextExecutionAt, remote) {
			continue
		}
		next := remote.UTC()
		if err := s.repo.UpdateNextExecution(ctx, g.ID, &next, now); err != nil {
			report.fail(ctx, g.ID, "update next execution", err)
			continue
		}
		log.Info("next execution drift corrected", "goal_id", g.ID, "cron_job_id", *g.CronJobID, "next_execution_at", next)
		report.Drifted++
		report.Items = append(report.Items, SweepItem{GoalID: g.ID, Action: SweepDrift})
	}

	log.Info("reconcile sweep finished", "checked", report.Checked, "paused", report.Paused, "drifted", report.Drifted, "failed", report.Failed)
	return report, nil
}

// ExpireSweep marks every active goal whose expires_at has passed as expired,
// whatever its schedule type, and disables its remote job.
func (s *Service) ExpireSweep(ctx context.Context) (SweepReport, error) {
	now := s.now()
	report := SweepReport{Items: make([]SweepItem, 0)}

	expired, err := s.repo.ListExpired(ctx, now)
	if err != nil {
		return report, storeErr("list expired goals", err)
	}
	for _, g := range expired {
		report.Checked++
		if err := s.repo.Deactivate(ctx, g.ID, StatusExpired, now); err != nil {
			report.fail(ctx, g.ID, "expire", err)
			continue
		}
		item := SweepItem{GoalID: g.ID, Action: SweepExpired}
		if g.CronJobID != nil {
			sync := s.disableRemote(ctx, g)
			item.Remote = &sync
		}
		report.Expired++
		report.Items = append(report.Items, item)
	}

	logger.From(ctx).Info("expire sweep finished", "checked", report.Checked, "expired", report.Expired, "failed", report.Failed)
	return report, nil
}

func (s *Service) disableRemote(ctx context.Context, g Goal) RemoteSync {
	err := s.sched.SetEnabled(ctx, *g.CronJobID, false)
	if err != nil {
		logger.From(ctx).Warn("remote disable failed", "goal_id", g.ID, "cron_job_id", *g.CronJobID, "err", err)
	}
	return remoteSync(err)
}

// sameInstant compares at second precision; the remote scheduler reports
// unix seconds.
func sameInstant(local *time.Time, remote time.Time) bool {
	if local == nil {
		return false
	}
	return local.Unix() == remote.Unix()
}
