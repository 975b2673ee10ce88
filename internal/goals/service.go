package goals

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"voice-reminders/internal/audit"
	"voice-reminders/internal/calls"
	"voice-reminders/internal/cronjob"
	"voice-reminders/internal/schedule"
	"voice-reminders/internal/telephony"
	"voice-reminders/pkg/logger"

	"github.com/google/uuid"
)

// Scheduler is the remote scheduler as the controller sees it.
type Scheduler interface {
	CreateJob(ctx context.Context, spec cronjob.JobSpec) (int64, error)
	GetJob(ctx context.Context, jobID int64) (cronjob.Job, error)
	SetEnabled(ctx context.Context, jobID int64, enabled bool) error
	DeleteJob(ctx context.Context, jobID int64) error
	ListJobs(ctx context.Context) ([]cronjob.Job, error)
}

// AuditTrail receives lifecycle events. *audit.Service satisfies it.
type AuditTrail interface {
	Append(ctx context.Context, e audit.Event) error
	LogOrphanedRemoteJob(ctx context.Context, actorUserID, goalID string, cronJobID int64, cause string) error
}

type Options struct {
	// CallbackURL is the execution endpoint the remote job posts to.
	CallbackURL string
	// WebhookURL receives voice call outcomes.
	WebhookURL string
	// CallbackSecret, when set, is attached to every remote job as a header.
	CallbackSecret string
	Audit          AuditTrail
}

// Service is the goal lifecycle controller.
//
// Each operation runs to completion inside one inbound request. There is no
// locking across the remote scheduler call and the local write; concurrent
// requests on the same goal are last-write-wins.
type Service struct {
	repo    Repository
	sched   Scheduler
	voice   telephony.VoiceProvider
	audit   AuditTrail
	opts    Options
	encoder *schedule.Encoder
	// clock is injectable for deterministic tests.
	clock func() time.Time
}

func NewService(repo Repository, sched Scheduler, voice telephony.VoiceProvider, opts Options) *Service {
	s := &Service{
		repo:  repo,
		sched: sched,
		voice: voice,
		audit: opts.Audit,
		opts:  opts,
		clock: time.Now,
	}
	s.encoder = &schedule.Encoder{Now: func() time.Time { return s.clock() }}
	return s
}

func (s *Service) now() time.Time { return s.clock().UTC() }

var e164 = regexp.MustCompile(`^\+[1-9][0-9]{6,14}$`)

func validateInput(in CreateGoalInput) error {
	var problems []string
	if strings.TrimSpace(in.Title) == "" {
		problems = append(problems, "title is required")
	} else if len(in.Title) > 200 {
		problems = append(problems, "title must be at most 200 characters")
	}
	if !e164.MatchString(strings.TrimSpace(in.PhoneNumber)) {
		problems = append(problems, "phone_number must be E.164, e.g. +15551234567")
	}
	if strings.TrimSpace(in.Persona) == "" && strings.TrimSpace(in.Context) == "" {
		problems = append(problems, "persona or context is required")
	}
	if !in.ScheduleType.Valid() {
		problems = append(problems, "schedule_type must be onetime or recurring")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidInput, strings.Join(problems, "; "))
	}
	return nil
}

// CreateGoal encodes the schedule, creates the remote job, then persists the
// goal with the job id. If the insert fails the remote job is left behind and
// recorded as orphaned.
func (s *Service) CreateGoal(ctx context.Context, userID string, in CreateGoalInput) (Goal, error) {
	log := logger.From(ctx)
	if strings.TrimSpace(userID) == "" {
		return Goal{}, fmt.Errorf("%w: user is required", ErrInvalidInput)
	}
	if err := validateInput(in); err != nil {
		return Goal{}, err
	}

	enc, err := s.encoder.Encode(schedule.Request{
		Type:       in.ScheduleType,
		Expression: in.Cron,
		RunAt:      in.RunAt,
		Timezone:   in.Timezone,
		Expiry:     in.ExpiresAt,
	})
	if err != nil {
		return Goal{}, err
	}

	now := s.now()
	g := Goal{
		ID:           uuid.NewString(),
		UserID:       userID,
		Title:        strings.TrimSpace(in.Title),
		Persona:      strings.TrimSpace(in.Persona),
		Context:      strings.TrimSpace(in.Context),
		PhoneNumber:  strings.TrimSpace(in.PhoneNumber),
		Language:     strings.TrimSpace(in.Language),
		Voice:        strings.TrimSpace(in.Voice),
		ScheduleType: in.ScheduleType,
		Schedule:     enc.Schedule,
		IsActive:     true,
		Status:       StatusCreated,
		ExpiresAt:    copyTime(enc.ExpiresAt),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if g.Language == "" {
		g.Language = "en"
	}
	g.NextExecutionAt = s.nextRun(ctx, g, enc, now)

	spec := cronjob.JobSpec{
		Title:    g.Title,
		URL:      s.opts.CallbackURL,
		Enabled:  true,
		Schedule: enc.Schedule,
		Payload: cronjob.CallbackPayload{
			GoalID:      g.ID,
			PhoneNumber: g.PhoneNumber,
			Task:        g.Script(),
			Language:    g.Language,
			Voice:       g.Voice,
		},
	}
	if s.opts.CallbackSecret != "" {
		spec.Headers = map[string]string{cronjob.CallbackSecretHeader: s.opts.CallbackSecret}
	}

	jobID, err := s.sched.CreateJob(ctx, spec)
	if err != nil {
		log.Warn("remote job creation failed", "goal_id", g.ID, "err", err)
		return Goal{}, fmt.Errorf("%w: %w", ErrScheduleCreation, err)
	}
	g.CronJobID = &jobID

	if err := s.repo.InsertGoal(ctx, g); err != nil {
		log.Error("goal insert failed after remote job creation", "goal_id", g.ID, "cron_job_id", jobID, "err", err)
		if s.audit != nil {
			if aerr := s.audit.LogOrphanedRemoteJob(ctx, userID, g.ID, jobID, err.Error()); aerr != nil {
				log.Warn("audit append failed", "type", audit.EventOrphanedRemoteJob, "goal_id", g.ID, "err", aerr)
			}
		}
		return Goal{}, storeErr("insert goal", err)
	}

	s.record(ctx, audit.Event{Type: audit.EventGoalCreated, ActorUserID: userID, GoalID: g.ID, CronJobID: &jobID})
	log.Info("goal created", "goal_id", g.ID, "cron_job_id", jobID, "schedule_type", g.ScheduleType)
	return g, nil
}

// nextRun is the first planned execution. Failures only cost the preview.
func (s *Service) nextRun(ctx context.Context, g Goal, enc schedule.Encoded, from time.Time) *time.Time {
	if enc.RunAt != nil {
		t := enc.RunAt.UTC()
		return &t
	}
	runs, err := schedule.Preview(enc, from, 1)
	if err != nil {
		logger.From(ctx).Warn("next run preview failed", "goal_id", g.ID, "err", err)
		return nil
	}
	if len(runs) == 0 {
		return nil
	}
	t := runs[0].UTC()
	return &t
}

// ExecuteGoal runs one scheduled execution: it places the reminder call and
// logs the attempt. Every path after id validation leaves a CallLog behind.
func (s *Service) ExecuteGoal(ctx context.Context, rawID string) (res ExecuteResult, err error) {
	log := logger.From(ctx)
	goalID, ok := canonicalID(rawID)
	if !ok {
		return ExecuteResult{}, ErrInvalidGoalID
	}
	res.GoalID = goalID

	var loaded *Goal
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("goals: execute %s panicked: %v", goalID, p)
			log.Error("goal execution panicked", "goal_id", goalID, "panic", p)
			s.writeFailedLog(ctx, goalID, loaded, err)
		}
	}()

	g, err := s.repo.GetGoal(ctx, goalID)
	if err != nil {
		if errors.Is(err, ErrGoalNotFound) {
			log.Warn("execution for unknown goal", "goal_id", goalID)
			s.writeFailedLog(ctx, goalID, nil, err)
			return res, ErrGoalNotFound
		}
		s.writeFailedLog(ctx, goalID, nil, err)
		return res, err
	}
	loaded = &g

	now := s.now()
	if !g.IsActive {
		callID := calls.PlaceholderCallID(calls.PlaceholderInactive, now)
		if lerr := s.repo.InsertCallLog(ctx, s.newLog(goalID, &g, callID, calls.CallStatusCancelled, now, nil)); lerr != nil {
			log.Error("cancelled call log insert failed", "goal_id", goalID, "err", lerr)
		}
		log.Info("execution skipped for inactive goal", "goal_id", goalID)
		res.CallID = callID
		res.Skipped = true
		res.Message = "goal is inactive; no call placed"
		return res, nil
	}

	updated, err := s.repo.RecordExecution(ctx, goalID, now, s.followingRun(ctx, g, now))
	if err != nil {
		s.writeFailedLog(ctx, goalID, &g, err)
		return res, err
	}
	loaded = &updated

	call, err := s.voice.PlaceCall(ctx, telephony.PlaceCallRequest{
		ToNumber:   updated.PhoneNumber,
		Script:     updated.Script(),
		VoiceID:    updated.Voice,
		Language:   updated.Language,
		WebhookURL: s.opts.WebhookURL,
	})
	if err != nil {
		log.Error("voice call failed", "goal_id", goalID, "err", err)
		s.writeFailedLog(ctx, goalID, &updated, err)
		return res, err
	}

	if lerr := s.repo.InsertCallLog(ctx, s.newLog(goalID, &updated, call.CallID, calls.CallStatusInitiated, now, nil)); lerr != nil {
		// The call is already placed; failing here would make the scheduler retry and call twice.
		log.Error("initiated call log insert failed", "goal_id", goalID, "call_id", call.CallID, "err", lerr)
	}

	log.Info("reminder call initiated", "goal_id", goalID, "call_id", call.CallID, "execution_count", updated.ExecutionCount)
	res.CallID = call.CallID
	res.Message = "call initiated"
	return res, nil
}

// followingRun is next_execution_at after an execution at now. One-time
// goals keep their instant so the sweep can retire them.
func (s *Service) followingRun(ctx context.Context, g Goal, now time.Time) *time.Time {
	if g.ScheduleType == schedule.TypeOneTime {
		return copyTime(g.NextExecutionAt)
	}
	enc := schedule.Encoded{Schedule: g.Schedule, ExpiresAt: g.ExpiresAt}
	return s.nextRun(ctx, g, enc, now)
}

func (s *Service) newLog(goalID string, g *Goal, callID string, status calls.CallStatus, now time.Time, cause error) calls.CallLog {
	l := calls.CallLog{
		ID:            uuid.NewString(),
		GoalID:        goalID,
		CallID:        callID,
		Status:        status,
		ExecutionTime: now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if g != nil {
		uid := g.UserID
		l.UserID = &uid
		l.GoalTitle = g.Title
		l.PhoneNumber = g.PhoneNumber
	}
	if cause != nil {
		msg := cause.Error()
		l.ErrorMessage = &msg
	}
	return l
}

// writeFailedLog is best-effort; its own failure is only logged.
func (s *Service) writeFailedLog(ctx context.Context, goalID string, g *Goal, cause error) {
	now := s.now()
	l := s.newLog(goalID, g, calls.PlaceholderCallID(calls.PlaceholderError, now), calls.CallStatusFailed, now, cause)
	if err := s.repo.InsertCallLog(ctx, l); err != nil {
		logger.From(ctx).Error("failed call log insert failed", "goal_id", goalID, "err", err)
	}
}

// ReconcileCallStatus applies a voice webhook outcome to its CallLog, then
// copies status and duration onto the owning goal. Only the CallLog update
// is authoritative.
func (s *Service) ReconcileCallStatus(ctx context.Context, o telephony.CallOutcome) (calls.CallLog, error) {
	o.CallID = strings.TrimSpace(o.CallID)
	if o.CallID == "" {
		return calls.CallLog{}, ErrMissingCallID
	}
	now := s.now()

	l, err := s.repo.UpdateCallLogOutcome(ctx, o, now)
	if err != nil {
		return calls.CallLog{}, err
	}

	if err := s.repo.UpdateLastCall(ctx, o.CallID, string(l.Status), l.DurationSeconds, now); err != nil {
		logger.From(ctx).Warn("goal last call update failed", "call_id", o.CallID, "goal_id", l.GoalID, "err", err)
	}
	return l, nil
}

// ToggleGoalActive enables or disables the remote job first and only then
// writes the local flag. An empty userID skips the ownership check.
func (s *Service) ToggleGoalActive(ctx context.Context, userID, goalID string, active bool) (Goal, error) {
	g, err := s.GetGoal(ctx, userID, goalID)
	if err != nil {
		return Goal{}, err
	}
	if g.Status.Terminal() {
		return Goal{}, ErrGoalTerminal
	}

	if g.CronJobID != nil {
		if err := s.sched.SetEnabled(ctx, *g.CronJobID, active); err != nil {
			logger.From(ctx).Warn("remote toggle failed; local state unchanged", "goal_id", g.ID, "cron_job_id", *g.CronJobID, "err", err)
			return Goal{}, err
		}
	}

	status := StatusPaused
	if active {
		status = StatusActive
	}
	updated, err := s.repo.SetActive(ctx, g.ID, active, status, s.now())
	if err != nil {
		return Goal{}, err
	}
	s.record(ctx, audit.Event{
		Type:        audit.EventGoalToggled,
		ActorUserID: userID,
		GoalID:      g.ID,
		CronJobID:   g.CronJobID,
		Message:     string(status),
	})
	return updated, nil
}

// DeleteGoal removes the remote job best-effort, then the local goal.
// Call logs are kept.
func (s *Service) DeleteGoal(ctx context.Context, userID, goalID string) (RemoteSync, error) {
	g, err := s.GetGoal(ctx, userID, goalID)
	if err != nil {
		return RemoteSync{}, err
	}

	var sync RemoteSync
	if g.CronJobID != nil {
		err := s.sched.DeleteJob(ctx, *g.CronJobID)
		if err != nil {
			logger.From(ctx).Warn("remote job delete failed", "goal_id", g.ID, "cron_job_id", *g.CronJobID, "err", err)
		}
		sync = remoteSync(err)
	}

	if err := s.repo.DeleteGoal(ctx, g.ID); err != nil {
		return sync, err
	}
	s.record(ctx, audit.Event{Type: audit.EventGoalDeleted, ActorUserID: userID, GoalID: g.ID, CronJobID: g.CronJobID})
	return sync, nil
}

// GetGoal loads a goal owned by userID. Other users' goals read as not found.
func (s *Service) GetGoal(ctx context.Context, userID, goalID string) (Goal, error) {
	id, ok := canonicalID(goalID)
	if !ok {
		return Goal{}, ErrInvalidGoalID
	}
	g, err := s.repo.GetGoal(ctx, id)
	if err != nil {
		return Goal{}, err
	}
	if userID != "" && g.UserID != userID {
		return Goal{}, ErrGoalNotFound
	}
	return g, nil
}

// canonicalID accepts only the 36-character hyphenated UUID form.
func canonicalID(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if len(raw) != 36 {
		return "", false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", false
	}
	return id.String(), true
}

func (s *Service) ListGoals(ctx context.Context, userID string) ([]Goal, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user is required", ErrInvalidInput)
	}
	return s.repo.ListGoalsByUser(ctx, userID)
}

const (
	DefaultCallLogLimit = 20
	MaxCallLogLimit     = 100
)

// RecentCallLogs returns the newest call logs of an owned goal.
func (s *Service) RecentCallLogs(ctx context.Context, userID, goalID string, limit int) ([]calls.CallLog, error) {
	g, err := s.GetGoal(ctx, userID, goalID)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultCallLogLimit
	}
	if limit > MaxCallLogLimit {
		limit = MaxCallLogLimit
	}
	return s.repo.RecentCallLogs(ctx, g.ID, limit)
}

func (s *Service) record(ctx context.Context, e audit.Event) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Append(ctx, e); err != nil {
		logger.From(ctx).Warn("audit append failed", "type", e.Type, "goal_id", e.GoalID, "err", err)
	}
}
