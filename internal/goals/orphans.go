package goals

import (
	"context"
	"strconv"

	"voice-reminders/internal/audit"
	"voice-reminders/internal/cronjob"
	"voice-reminders/pkg/logger"
)

// OrphanJob is a remote job pointing at our callback that no goal references.
type OrphanJob struct {
	JobID   int64       `json:"job_id"`
	Title   string      `json:"title"`
	Enabled bool        `json:"enabled"`
	Deleted *RemoteSync `json:"deleted,omitempty"`
	// Adopted is set when a goal took the job between listing and delete.
	Adopted bool `json:"adopted,omitempty"`
}

// FindOrphanJobs lists remote jobs targeting the execution callback whose id
// no local goal holds. Jobs for other URLs on the same account are ignored.
func (s *Service) FindOrphanJobs(ctx context.Context) ([]OrphanJob, error) {
	jobs, err := s.sched.ListJobs(ctx)
	if err != nil {
		return nil, err
	}
	referenced, err := s.repo.ReferencedCronJobIDs(ctx)
	if err != nil {
		return nil, storeErr("list referenced jobs", err)
	}

	out := make([]OrphanJob, 0)
	for _, j := range jobs {
		if !s.ownsJob(j) {
			continue
		}
		if _, ok := referenced[j.JobID]; ok {
			continue
		}
		out = append(out, OrphanJob{JobID: j.JobID, Title: j.Title, Enabled: j.Enabled})
	}
	return out, nil
}

// PruneOrphanJobs deletes orphan jobs when apply is set; otherwise it only
// reports them. Deletion is best-effort per job. CreateGoal inserts its row
// after the remote job exists, so references are read again before each
// delete and a job a goal has since claimed is kept.
func (s *Service) PruneOrphanJobs(ctx context.Context, actorUserID string, apply bool) ([]OrphanJob, error) {
	orphans, err := s.FindOrphanJobs(ctx)
	if err != nil || !apply {
		return orphans, err
	}
	log := logger.From(ctx)
	for i := range orphans {
		jobID := orphans[i].JobID
		referenced, err := s.repo.ReferencedCronJobIDs(ctx)
		if err != nil {
			return orphans, storeErr("list referenced jobs", err)
		}
		if _, ok := referenced[jobID]; ok {
			log.Info("orphan job claimed by a goal, keeping", "cron_job_id", jobID)
			orphans[i].Adopted = true
			continue
		}
		err = s.sched.DeleteJob(ctx, jobID)
		sync := remoteSync(err)
		orphans[i].Deleted = &sync
		if err != nil {
			log.Warn("orphan job delete failed", "cron_job_id", jobID, "err", err)
			continue
		}
		s.record(ctx, audit.Event{
			Type:        audit.EventOrphanJobPruned,
			ActorUserID: actorUserID,
			CronJobID:   &jobID,
			Message:     "deleted remote job " + strconv.FormatInt(jobID, 10),
		})
	}
	return orphans, nil
}

func (s *Service) ownsJob(j cronjob.Job) bool {
	return s.opts.CallbackURL != "" && j.URL == s.opts.CallbackURL
}
