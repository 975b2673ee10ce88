package goals

import (
	"context"
	"errors"
	"testing"
	"time"

	"voice-reminders/internal/audit"
	"voice-reminders/internal/cronjob"
	"voice-reminders/internal/schedule"
)

func oneTime(at time.Time, jobID int64) func(g *Goal) {
	return func(g *Goal) {
		g.ScheduleType = schedule.TypeOneTime
		g.Schedule.WDays = schedule.Any()
		g.NextExecutionAt = &at
		exp := at.Add(schedule.OneTimeGrace)
		g.ExpiresAt = &exp
		g.CronJobID = &jobID
	}
}

func TestReconcileSweep_PausesPastOneTimeGoal(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	g := f.seed(t, oneTime(f.now.Add(-time.Hour), 77))

	report, err := f.svc.ReconcileSweep(ctx)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if report.Paused != 1 {
		t.Fatalf("expected 1 paused, got %+v", report)
	}

	stored, _ := f.repo.GetGoal(ctx, g.ID)
	if stored.IsActive || stored.Status != StatusPaused || stored.NextExecutionAt != nil {
		t.Fatalf("expected paused with cleared next execution, got %v/%s/%v", stored.IsActive, stored.Status, stored.NextExecutionAt)
	}
	if len(f.sched.enabled) != 1 || f.sched.enabled[0] != (enableCall{77, false}) {
		t.Fatalf("expected exactly one disable for job 77, got %+v", f.sched.enabled)
	}
}

func TestReconcileSweep_RemoteDisableFailureStillPauses(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.sched.enableErr = errors.New("remote down")
	g := f.seed(t, oneTime(f.now.Add(-time.Hour), 77))

	report, err := f.svc.ReconcileSweep(ctx)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if report.Paused != 1 || len(report.Items) != 1 {
		t.Fatalf("unexpected report %+v", report)
	}
	if r := report.Items[0].Remote; r == nil || r.Confirmed {
		t.Fatalf("expected unconfirmed remote disable, got %+v", r)
	}
	stored, _ := f.repo.GetGoal(ctx, g.ID)
	if stored.IsActive {
		t.Fatalf("expected goal paused locally")
	}
}

func TestReconcileSweep_CorrectsDriftAndContinuesPastFailures(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	local := f.now.Add(2 * time.Hour)
	remote := f.now.Add(26 * time.Hour).Truncate(time.Second)

	broken := f.seed(t, func(g *Goal) { id := int64(10); g.CronJobID = &id })
	drifted := f.seed(t, func(g *Goal) { id := int64(11); g.CronJobID = &id; g.NextExecutionAt = &local })
	inSync := f.seed(t, func(g *Goal) { id := int64(12); g.CronJobID = &id; g.NextExecutionAt = &remote })

	f.sched.getErrs[10] = errors.New("timeout")
	f.sched.jobs[11] = cronjob.Job{JobID: 11, NextExecution: remote.Unix()}
	f.sched.jobs[12] = cronjob.Job{JobID: 12, NextExecution: remote.Unix()}

	report, err := f.svc.ReconcileSweep(ctx)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if report.Checked != 3 || report.Drifted != 1 || report.Failed != 1 {
		t.Fatalf("unexpected report %+v", report)
	}

	stored, _ := f.repo.GetGoal(ctx, drifted.ID)
	if stored.NextExecutionAt == nil || !stored.NextExecutionAt.Equal(remote) {
		t.Fatalf("expected next execution %v, got %v", remote, stored.NextExecutionAt)
	}
	stored, _ = f.repo.GetGoal(ctx, inSync.ID)
	if !stored.UpdatedAt.Equal(inSync.UpdatedAt) {
		t.Fatalf("expected in-sync goal untouched")
	}
	stored, _ = f.repo.GetGoal(ctx, broken.ID)
	if !stored.IsActive {
		t.Fatalf("expected failing goal left as is")
	}
	if len(f.sched.enabled) != 0 {
		t.Fatalf("expected drift correction to stay local")
	}
}

func TestReconcileSweep_SkipsInactiveStaleGoals(t *testing.T) {
	f := newFixture()
	f.seed(t, func(g *Goal) {
		oneTime(f.now.Add(-time.Hour), 77)(g)
		g.IsActive = false
		g.Status = StatusPaused
	})

	report, err := f.svc.ReconcileSweep(context.Background())
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if report.Checked != 0 || len(f.sched.enabled) != 0 {
		t.Fatalf("expected nothing to do, got %+v", report)
	}
}

func TestExpireSweep_MarksExpiredWhateverTheType(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	past := f.now.Add(-time.Minute)
	future := f.now.Add(time.Hour)

	expired := f.seed(t, func(g *Goal) { g.ExpiresAt = &past; g.Status = StatusActive })
	live := f.seed(t, func(g *Goal) { g.ExpiresAt = &future })

	report, err := f.svc.ExpireSweep(ctx)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if report.Expired != 1 {
		t.Fatalf("expected 1 expired, got %+v", report)
	}

	stored, _ := f.repo.GetGoal(ctx, expired.ID)
	if stored.IsActive || stored.Status != StatusExpired {
		t.Fatalf("expected expired, got %v/%s", stored.IsActive, stored.Status)
	}
	if len(f.sched.enabled) != 1 || f.sched.enabled[0].enabled {
		t.Fatalf("expected one remote disable, got %+v", f.sched.enabled)
	}
	stored, _ = f.repo.GetGoal(ctx, live.ID)
	if !stored.IsActive {
		t.Fatalf("expected unexpired goal untouched")
	}

	if _, err := f.svc.ToggleGoalActive(ctx, "user-1", expired.ID, true); !errors.Is(err, ErrGoalTerminal) {
		t.Fatalf("expected expired goal to stay terminal, got %v", err)
	}
}

func TestExpireSweep_ContinuesPastStoreFailure(t *testing.T) {
	f := newFixture()
	past := f.now.Add(-time.Minute)
	f.seed(t, func(g *Goal) { g.ExpiresAt = &past })
	f.repo.Fail["deactivate goal"] = errors.New("deadlock")

	report, err := f.svc.ExpireSweep(context.Background())
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if report.Failed != 1 || report.Expired != 0 {
		t.Fatalf("unexpected report %+v", report)
	}
	if report.Message() == "" {
		t.Fatalf("expected summary message")
	}
}

func TestPruneOrphanJobs(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.seed(t, func(g *Goal) { id := int64(1); g.CronJobID = &id })
	f.sched.jobs[1] = cronjob.Job{JobID: 1, URL: testCallbackURL}
	f.sched.jobs[2] = cronjob.Job{JobID: 2, URL: testCallbackURL, Title: "dangling"}
	f.sched.jobs[3] = cronjob.Job{JobID: 3, URL: "https://elsewhere.example.com/hook"}

	orphans, err := f.svc.PruneOrphanJobs(ctx, "admin", false)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(orphans) != 1 || orphans[0].JobID != 2 || orphans[0].Deleted != nil {
		t.Fatalf("expected job 2 reported only, got %+v", orphans)
	}
	if len(f.sched.deleted) != 0 {
		t.Fatalf("expected dry run to delete nothing")
	}

	orphans, err = f.svc.PruneOrphanJobs(ctx, "admin", true)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(f.sched.deleted) != 1 || f.sched.deleted[0] != 2 {
		t.Fatalf("expected job 2 deleted, got %v", f.sched.deleted)
	}
	if orphans[0].Deleted == nil || !orphans[0].Deleted.Confirmed {
		t.Fatalf("expected confirmed delete")
	}
	evs := f.audit.Events()
	if len(evs) != 1 || evs[0].Type != audit.EventOrphanJobPruned || evs[0].ActorUserID != "admin" {
		t.Fatalf("expected orphan_job_pruned event, got %+v", evs)
	}
}

// claimingRepo commits a goal for a job right after the first reference read,
// like a CreateGoal landing between orphan listing and delete.
type claimingRepo struct {
	*MemoryRepo
	reads int
	claim func()
}

func (r *claimingRepo) ReferencedCronJobIDs(ctx context.Context) (map[int64]struct{}, error) {
	ids, err := r.MemoryRepo.ReferencedCronJobIDs(ctx)
	r.reads++
	if r.reads == 1 && r.claim != nil {
		r.claim()
	}
	return ids, err
}

func TestPruneOrphanJobs_KeepsJobClaimedMidSweep(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.sched.jobs[7] = cronjob.Job{JobID: 7, URL: testCallbackURL, Title: "new goal"}
	f.sched.jobs[8] = cronjob.Job{JobID: 8, URL: testCallbackURL, Title: "dangling"}

	repo := &claimingRepo{MemoryRepo: f.repo}
	repo.claim = func() { f.seed(t, func(g *Goal) { id := int64(7); g.CronJobID = &id }) }
	svc := NewService(repo, f.sched, f.voice, Options{CallbackURL: testCallbackURL})

	orphans, err := svc.PruneOrphanJobs(ctx, "admin", true)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(orphans) != 2 {
		t.Fatalf("expected both jobs listed as orphans, got %+v", orphans)
	}
	if len(f.sched.deleted) != 1 || f.sched.deleted[0] != 8 {
		t.Fatalf("expected only job 8 deleted, got %v", f.sched.deleted)
	}
	for _, o := range orphans {
		switch o.JobID {
		case 7:
			if !o.Adopted || o.Deleted != nil {
				t.Fatalf("expected job 7 kept as adopted, got %+v", o)
			}
		case 8:
			if o.Adopted || o.Deleted == nil || !o.Deleted.Confirmed {
				t.Fatalf("expected job 8 deleted, got %+v", o)
			}
		}
	}
}
