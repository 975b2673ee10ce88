package goals

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"voice-reminders/internal/audit"
	"voice-reminders/internal/calls"
	"voice-reminders/internal/cronjob"
	"voice-reminders/internal/schedule"
	"voice-reminders/internal/telephony"

	"github.com/google/uuid"
)

const testCallbackURL = "https://reminders.example.com/api/goals/execute"

type enableCall struct {
	jobID   int64
	enabled bool
}

type stubScheduler struct {
	nextID int64

	createErr error
	enableErr error
	deleteErr error
	listErr   error
	getErrs   map[int64]error

	created []cronjob.JobSpec
	enabled []enableCall
	deleted []int64
	jobs    map[int64]cronjob.Job
}

func newStubScheduler() *stubScheduler {
	return &stubScheduler{nextID: 100, getErrs: map[int64]error{}, jobs: map[int64]cronjob.Job{}}
}

func (s *stubScheduler) CreateJob(ctx context.Context, spec cronjob.JobSpec) (int64, error) {
	if s.createErr != nil {
		return 0, s.createErr
	}
	s.nextID++
	s.created = append(s.created, spec)
	s.jobs[s.nextID] = cronjob.Job{JobID: s.nextID, Enabled: spec.Enabled, Title: spec.Title, URL: spec.URL}
	return s.nextID, nil
}

func (s *stubScheduler) GetJob(ctx context.Context, jobID int64) (cronjob.Job, error) {
	if err := s.getErrs[jobID]; err != nil {
		return cronjob.Job{}, err
	}
	j, ok := s.jobs[jobID]
	if !ok {
		return cronjob.Job{}, &cronjob.RemoteSchedulerError{Op: "get job", JobID: jobID, StatusCode: 404}
	}
	return j, nil
}

func (s *stubScheduler) SetEnabled(ctx context.Context, jobID int64, enabled bool) error {
	s.enabled = append(s.enabled, enableCall{jobID: jobID, enabled: enabled})
	return s.enableErr
}

func (s *stubScheduler) DeleteJob(ctx context.Context, jobID int64) error {
	s.deleted = append(s.deleted, jobID)
	return s.deleteErr
}

func (s *stubScheduler) ListJobs(ctx context.Context) ([]cronjob.Job, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := make([]cronjob.Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, j)
	}
	return out, nil
}

type stubVoice struct {
	callID string
	err    error
	panics bool
	calls  []telephony.PlaceCallRequest
}

func (v *stubVoice) Name() string { return "stub" }

func (v *stubVoice) PlaceCall(ctx context.Context, req telephony.PlaceCallRequest) (telephony.PlaceCallResult, error) {
	v.calls = append(v.calls, req)
	if v.panics {
		panic("voice client exploded")
	}
	if v.err != nil {
		return telephony.PlaceCallResult{}, v.err
	}
	return telephony.PlaceCallResult{CallID: v.callID, Status: "success"}, nil
}

type fixture struct {
	svc   *Service
	repo  *MemoryRepo
	sched *stubScheduler
	voice *stubVoice
	audit *audit.MemoryRepo
	now   time.Time
}

// Monday 2 March 2026, 10:00 UTC.
var testNow = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

func newFixture() *fixture {
	repo := NewMemoryRepo()
	sched := newStubScheduler()
	voice := &stubVoice{callID: "call-1"}
	auditRepo := audit.NewMemoryRepo()
	svc := NewService(repo, sched, voice, Options{
		CallbackURL:    testCallbackURL,
		WebhookURL:     "https://reminders.example.com/api/webhooks/voice",
		CallbackSecret: "s3cret",
		Audit:          audit.NewService(auditRepo),
	})
	svc.clock = func() time.Time { return testNow }
	return &fixture{svc: svc, repo: repo, sched: sched, voice: voice, audit: auditRepo, now: testNow}
}

func (f *fixture) seed(t *testing.T, mut func(g *Goal)) Goal {
	t.Helper()
	jobID := int64(55)
	g := Goal{
		ID:           uuid.NewString(),
		UserID:       "user-1",
		Title:        "Gym",
		Persona:      "Gym coach",
		Context:      "remind me to go to the gym",
		PhoneNumber:  "+15551234567",
		Language:     "en",
		ScheduleType: schedule.TypeRecurring,
		Schedule: schedule.Schedule{
			Timezone: "UTC",
			Hours:    schedule.Values(9),
			Minutes:  schedule.Values(0),
			MDays:    schedule.Any(),
			Months:   schedule.Any(),
			WDays:    schedule.Values(1, 3, 5),
		},
		IsActive:  true,
		Status:    StatusCreated,
		CronJobID: &jobID,
		CreatedAt: f.now.Add(-time.Hour),
		UpdatedAt: f.now.Add(-time.Hour),
	}
	if mut != nil {
		mut(&g)
	}
	if err := f.repo.InsertGoal(context.Background(), g); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return g
}

func validInput() CreateGoalInput {
	return CreateGoalInput{
		Title:        "Gym",
		Persona:      "Gym coach",
		Context:      "remind me to go to the gym",
		PhoneNumber:  "+15551234567",
		ScheduleType: schedule.TypeRecurring,
		Cron:         "0 9 * * 1,3,5",
		Timezone:     "UTC",
	}
}

func TestCreateGoal_RecurringCreatesJobThenGoal(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	g, err := f.svc.CreateGoal(ctx, "user-1", validInput())
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(f.sched.created) != 1 {
		t.Fatalf("expected 1 remote job, got %d", len(f.sched.created))
	}
	spec := f.sched.created[0]
	if spec.Payload.GoalID != g.ID {
		t.Fatalf("expected payload goal id %s, got %s", g.ID, spec.Payload.GoalID)
	}
	if spec.URL != testCallbackURL {
		t.Fatalf("expected callback url, got %q", spec.URL)
	}
	if spec.Headers[cronjob.CallbackSecretHeader] != "s3cret" {
		t.Fatalf("expected callback secret header")
	}
	if got := spec.Schedule.WDays.Ints(); len(got) != 3 || got[0] != 1 || got[2] != 5 {
		t.Fatalf("expected wdays 1,3,5, got %v", got)
	}
	if !spec.Schedule.MDays.IsAny() || spec.Schedule.ExpiresAt != schedule.Never {
		t.Fatalf("expected any mdays and no expiry")
	}

	if g.CronJobID == nil || *g.CronJobID != 101 {
		t.Fatalf("expected cron job id 101, got %v", g.CronJobID)
	}
	if g.Status != StatusCreated || !g.IsActive {
		t.Fatalf("expected created and active, got %s/%v", g.Status, g.IsActive)
	}
	want := time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC)
	if g.NextExecutionAt == nil || !g.NextExecutionAt.Equal(want) {
		t.Fatalf("expected next execution %v, got %v", want, g.NextExecutionAt)
	}

	stored, err := f.repo.GetGoal(ctx, g.ID)
	if err != nil {
		t.Fatalf("expected goal stored: %v", err)
	}
	if stored.Language != "en" {
		t.Fatalf("expected default language en, got %q", stored.Language)
	}

	evs := f.audit.Events()
	if len(evs) != 1 || evs[0].Type != audit.EventGoalCreated {
		t.Fatalf("expected goal_created audit event, got %+v", evs)
	}
}

func TestCreateGoal_OneTimeSetsRunAndExpiry(t *testing.T) {
	f := newFixture()
	in := validInput()
	in.ScheduleType = schedule.TypeOneTime
	in.Cron = "30 18 5 3 *"

	g, err := f.svc.CreateGoal(context.Background(), "user-1", in)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	run := time.Date(2026, 3, 5, 18, 30, 0, 0, time.UTC)
	if g.NextExecutionAt == nil || !g.NextExecutionAt.Equal(run) {
		t.Fatalf("expected run at %v, got %v", run, g.NextExecutionAt)
	}
	if g.ExpiresAt == nil || !g.ExpiresAt.Equal(run.Add(48*time.Hour)) {
		t.Fatalf("expected expiry 48h after run, got %v", g.ExpiresAt)
	}
	if !g.Schedule.WDays.IsAny() {
		t.Fatalf("expected any weekday for one-time goal")
	}
}

func TestCreateGoal_OneTimeFromRunAt(t *testing.T) {
	f := newFixture()
	in := validInput()
	in.ScheduleType = schedule.TypeOneTime
	in.Cron = ""
	in.RunAt = "2026-03-05T18:30"
	in.Timezone = "Asia/Kolkata"

	g, err := f.svc.CreateGoal(context.Background(), "user-1", in)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	ist, _ := time.LoadLocation("Asia/Kolkata")
	run := time.Date(2026, 3, 5, 18, 30, 0, 0, ist)
	if g.NextExecutionAt == nil || !g.NextExecutionAt.Equal(run) {
		t.Fatalf("expected run at %v, got %v", run, g.NextExecutionAt)
	}
	got := f.sched.created[0].Schedule
	if h := got.Hours.Ints(); len(h) != 1 || h[0] != 18 {
		t.Fatalf("expected hour 18 in goal timezone, got %v", h)
	}
	if d := got.MDays.Ints(); len(d) != 1 || d[0] != 5 {
		t.Fatalf("expected day 5, got %v", d)
	}

	in.RunAt = "2026-03-01T09:00"
	if _, err := f.svc.CreateGoal(context.Background(), "user-1", in); !errors.Is(err, schedule.ErrInvalidSchedule) {
		t.Fatalf("expected ErrInvalidSchedule for past run_at, got %v", err)
	}
}

func TestCreateGoal_CivilExpiryUsesGoalTimezone(t *testing.T) {
	f := newFixture()
	in := validInput()
	in.Timezone = "America/New_York"
	in.ExpiresAt = "2026-12-31 23:59"

	g, err := f.svc.CreateGoal(context.Background(), "user-1", in)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	want := time.Date(2027, 1, 1, 4, 59, 0, 0, time.UTC)
	if g.ExpiresAt == nil || !g.ExpiresAt.Equal(want) {
		t.Fatalf("expected expiry %v, got %v", want, g.ExpiresAt)
	}
	if got := f.sched.created[0].Schedule.ExpiresAt; got != 20261231235900 {
		t.Fatalf("expected remote expiry 20261231235900, got %d", got)
	}

	in.ExpiresAt = "next year"
	if _, err := f.svc.CreateGoal(context.Background(), "user-1", in); !errors.Is(err, schedule.ErrInvalidSchedule) {
		t.Fatalf("expected ErrInvalidSchedule for unparseable expiry, got %v", err)
	}
}

func TestCreateGoal_RemoteFailureLeavesNoGoal(t *testing.T) {
	f := newFixture()
	f.sched.createErr = &cronjob.RemoteSchedulerError{Op: "create job", StatusCode: 500}

	_, err := f.svc.CreateGoal(context.Background(), "user-1", validInput())
	if !errors.Is(err, ErrScheduleCreation) {
		t.Fatalf("expected ErrScheduleCreation, got %v", err)
	}
	if !errors.Is(err, cronjob.ErrRemoteScheduler) {
		t.Fatalf("expected remote scheduler cause preserved")
	}
	goals, _ := f.repo.ListGoalsByUser(context.Background(), "user-1")
	if len(goals) != 0 {
		t.Fatalf("expected no goal rows, got %d", len(goals))
	}
}

func TestCreateGoal_InsertFailureRecordsOrphanedJob(t *testing.T) {
	f := newFixture()
	f.repo.Fail["insert goal"] = errors.New("connection reset")

	_, err := f.svc.CreateGoal(context.Background(), "user-1", validInput())
	if !errors.Is(err, ErrStore) {
		t.Fatalf("expected ErrStore, got %v", err)
	}
	if len(f.sched.deleted) != 0 {
		t.Fatalf("expected no compensating delete")
	}
	evs := f.audit.Events()
	if len(evs) != 1 || evs[0].Type != audit.EventOrphanedRemoteJob {
		t.Fatalf("expected orphaned_remote_job event, got %+v", evs)
	}
	if evs[0].CronJobID == nil || *evs[0].CronJobID != 101 {
		t.Fatalf("expected orphaned job id recorded")
	}
}

func TestCreateGoal_RejectsBeforeRemoteCall(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	bad := validInput()
	bad.PhoneNumber = "5551234"
	if _, err := f.svc.CreateGoal(ctx, "user-1", bad); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}

	bad = validInput()
	bad.Persona, bad.Context = " ", ""
	if _, err := f.svc.CreateGoal(ctx, "user-1", bad); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for empty script, got %v", err)
	}

	bad = validInput()
	bad.Cron = "0 25 * * *"
	if _, err := f.svc.CreateGoal(ctx, "user-1", bad); !errors.Is(err, schedule.ErrInvalidSchedule) {
		t.Fatalf("expected ErrInvalidSchedule, got %v", err)
	}

	if len(f.sched.created) != 0 {
		t.Fatalf("expected no remote calls, got %d", len(f.sched.created))
	}
}

func TestExecuteGoal_PlacesCallWithScript(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	g := f.seed(t, nil)

	res, err := f.svc.ExecuteGoal(ctx, g.ID)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if res.CallID != "call-1" || res.Skipped {
		t.Fatalf("unexpected result %+v", res)
	}
	if len(f.voice.calls) != 1 {
		t.Fatalf("expected 1 voice call, got %d", len(f.voice.calls))
	}
	req := f.voice.calls[0]
	if !strings.Contains(req.Script, "Gym coach") || !strings.Contains(req.Script, "remind me to go to the gym") {
		t.Fatalf("expected script with persona and context, got %q", req.Script)
	}
	if req.ToNumber != g.PhoneNumber || req.WebhookURL == "" {
		t.Fatalf("unexpected call request %+v", req)
	}

	logs := f.repo.CallLogs()
	if len(logs) != 1 {
		t.Fatalf("expected 1 call log, got %d", len(logs))
	}
	if logs[0].Status != calls.CallStatusInitiated || logs[0].CallID != "call-1" {
		t.Fatalf("expected initiated log for call-1, got %s/%s", logs[0].Status, logs[0].CallID)
	}
	if logs[0].UserID == nil || *logs[0].UserID != "user-1" {
		t.Fatalf("expected owner on call log")
	}

	stored, _ := f.repo.GetGoal(ctx, g.ID)
	if stored.ExecutionCount != 1 {
		t.Fatalf("expected execution_count 1, got %d", stored.ExecutionCount)
	}
	if stored.LastExecutedAt == nil || !stored.LastExecutedAt.Equal(f.now) {
		t.Fatalf("expected last_executed_at set")
	}
	if stored.Status != StatusActive {
		t.Fatalf("expected first execution to activate goal, got %s", stored.Status)
	}
	want := time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC)
	if stored.NextExecutionAt == nil || !stored.NextExecutionAt.Equal(want) {
		t.Fatalf("expected next execution %v, got %v", want, stored.NextExecutionAt)
	}
}

func TestExecuteGoal_InactiveGoalWritesCancelledLog(t *testing.T) {
	f := newFixture()
	g := f.seed(t, func(g *Goal) {
		g.IsActive = false
		g.Status = StatusPaused
	})

	res, err := f.svc.ExecuteGoal(context.Background(), g.ID)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !res.Skipped {
		t.Fatalf("expected skipped result")
	}
	if len(f.voice.calls) != 0 {
		t.Fatalf("expected zero voice calls, got %d", len(f.voice.calls))
	}
	logs := f.repo.CallLogs()
	if len(logs) != 1 || logs[0].Status != calls.CallStatusCancelled {
		t.Fatalf("expected exactly one cancelled log, got %+v", logs)
	}
	if !strings.HasPrefix(logs[0].CallID, "inactive-") {
		t.Fatalf("expected inactive placeholder call id, got %q", logs[0].CallID)
	}
	stored, _ := f.repo.GetGoal(context.Background(), g.ID)
	if stored.ExecutionCount != 0 {
		t.Fatalf("expected execution_count unchanged")
	}
}

func TestExecuteGoal_SameInstantPlaceholdersStayDistinct(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	paused := func(g *Goal) {
		g.IsActive = false
		g.Status = StatusPaused
	}
	a := f.seed(t, paused)
	b := f.seed(t, paused)

	resA, err := f.svc.ExecuteGoal(ctx, a.ID)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	resB, err := f.svc.ExecuteGoal(ctx, b.ID)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if resA.CallID == resB.CallID {
		t.Fatalf("expected distinct call ids, both were %q", resA.CallID)
	}

	_, _ = f.svc.ExecuteGoal(ctx, uuid.NewString())
	_, _ = f.svc.ExecuteGoal(ctx, uuid.NewString())

	logs := f.repo.CallLogs()
	if len(logs) != 4 {
		t.Fatalf("expected two cancelled and two failed logs, got %d", len(logs))
	}
	seen := map[string]bool{}
	for _, l := range logs {
		if seen[l.CallID] {
			t.Fatalf("duplicate call id %q", l.CallID)
		}
		seen[l.CallID] = true
	}
}

func TestExecuteGoal_MissingGoalWritesOrphanFailedLog(t *testing.T) {
	f := newFixture()
	id := uuid.NewString()

	_, err := f.svc.ExecuteGoal(context.Background(), id)
	if !errors.Is(err, ErrGoalNotFound) {
		t.Fatalf("expected ErrGoalNotFound, got %v", err)
	}
	logs := f.repo.CallLogs()
	if len(logs) != 1 {
		t.Fatalf("expected 1 call log, got %d", len(logs))
	}
	if logs[0].Status != calls.CallStatusFailed || logs[0].GoalID != id {
		t.Fatalf("expected failed log for %s, got %+v", id, logs[0])
	}
	if logs[0].UserID != nil {
		t.Fatalf("expected nil user id")
	}
	if !strings.HasPrefix(logs[0].CallID, "error-") {
		t.Fatalf("expected error placeholder call id, got %q", logs[0].CallID)
	}
}

func TestExecuteGoal_InvalidIDWritesNothing(t *testing.T) {
	f := newFixture()
	for _, raw := range []string{"", "not-a-uuid", "{" + uuid.NewString() + "}"} {
		if _, err := f.svc.ExecuteGoal(context.Background(), raw); !errors.Is(err, ErrInvalidGoalID) {
			t.Fatalf("expected ErrInvalidGoalID for %q, got %v", raw, err)
		}
	}
	if len(f.repo.CallLogs()) != 0 {
		t.Fatalf("expected no call logs")
	}
}

func TestExecuteGoal_VoiceFailureWritesFailedLog(t *testing.T) {
	f := newFixture()
	f.voice.err = &telephony.VoiceCallError{StatusCode: 503}
	g := f.seed(t, nil)

	_, err := f.svc.ExecuteGoal(context.Background(), g.ID)
	if !errors.Is(err, telephony.ErrVoiceCall) {
		t.Fatalf("expected ErrVoiceCall, got %v", err)
	}
	logs := f.repo.CallLogs()
	if len(logs) != 1 || logs[0].Status != calls.CallStatusFailed {
		t.Fatalf("expected one failed log, got %+v", logs)
	}
	if logs[0].ErrorMessage == nil || *logs[0].ErrorMessage == "" {
		t.Fatalf("expected error message on failed log")
	}
	if logs[0].UserID == nil || logs[0].GoalTitle != "Gym" {
		t.Fatalf("expected loaded goal data on failed log")
	}
}

func TestExecuteGoal_PanicWritesFailedLog(t *testing.T) {
	f := newFixture()
	f.voice.panics = true
	g := f.seed(t, nil)

	_, err := f.svc.ExecuteGoal(context.Background(), g.ID)
	if err == nil {
		t.Fatalf("expected error from recovered panic")
	}
	logs := f.repo.CallLogs()
	if len(logs) != 1 || logs[0].Status != calls.CallStatusFailed {
		t.Fatalf("expected one failed log, got %+v", logs)
	}
}

func TestExecuteGoal_LogInsertFailureStillSucceeds(t *testing.T) {
	f := newFixture()
	f.repo.Fail["insert call log"] = errors.New("disk full")
	g := f.seed(t, nil)

	res, err := f.svc.ExecuteGoal(context.Background(), g.ID)
	if err != nil {
		t.Fatalf("expected success once the call is placed, got %v", err)
	}
	if res.CallID != "call-1" || len(f.voice.calls) != 1 {
		t.Fatalf("expected exactly one placed call")
	}
}

func TestReconcileCallStatus_UpdatesLogAndGoal(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	g := f.seed(t, nil)
	uid := g.UserID
	if err := f.repo.InsertCallLog(ctx, calls.CallLog{
		ID: uuid.NewString(), GoalID: g.ID, UserID: &uid, CallID: "abc123",
		Status: calls.CallStatusInitiated, ExecutionTime: f.now, CreatedAt: f.now, UpdatedAt: f.now,
	}); err != nil {
		t.Fatalf("seed log: %v", err)
	}

	o, err := telephony.ParseCallOutcome([]byte(`{"call_id":"abc123","status":"completed","call_length":42}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	l, err := f.svc.ReconcileCallStatus(ctx, o)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if l.Status != calls.CallStatusCompleted {
		t.Fatalf("expected completed, got %s", l.Status)
	}
	if l.DurationSeconds == nil || *l.DurationSeconds != 42 {
		t.Fatalf("expected duration 42, got %v", l.DurationSeconds)
	}

	stored, _ := f.repo.GetGoal(ctx, g.ID)
	if stored.LastCallStatus == nil || *stored.LastCallStatus != "completed" {
		t.Fatalf("expected last call status copied to goal")
	}
	if stored.LastCallDuration == nil || *stored.LastCallDuration != 42 {
		t.Fatalf("expected last call duration copied to goal")
	}
}

func TestReconcileCallStatus_GoalUpdateIsBestEffort(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.repo.Fail["update last call"] = errors.New("timeout")
	_ = f.repo.InsertCallLog(ctx, calls.CallLog{ID: uuid.NewString(), GoalID: "gone", CallID: "c9", Status: calls.CallStatusInitiated})

	l, err := f.svc.ReconcileCallStatus(ctx, telephony.CallOutcome{CallID: "c9", Status: "failed"})
	if err != nil {
		t.Fatalf("expected call log update to stand alone, got %v", err)
	}
	if l.Status != calls.CallStatusFailed {
		t.Fatalf("expected failed, got %s", l.Status)
	}
}

func TestReconcileCallStatus_RejectsUnknownOrMissingCallID(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	if _, err := f.svc.ReconcileCallStatus(ctx, telephony.CallOutcome{CallID: " "}); !errors.Is(err, ErrMissingCallID) {
		t.Fatalf("expected ErrMissingCallID, got %v", err)
	}
	if _, err := f.svc.ReconcileCallStatus(ctx, telephony.CallOutcome{CallID: "nope", Status: "completed"}); !errors.Is(err, ErrCallLogNotFound) {
		t.Fatalf("expected ErrCallLogNotFound, got %v", err)
	}
}

func TestToggleGoalActive_RemoteFailureKeepsLocalState(t *testing.T) {
	f := newFixture()
	f.sched.enableErr = &cronjob.RemoteSchedulerError{Op: "set enabled", JobID: 55, StatusCode: 502}
	g := f.seed(t, func(g *Goal) { g.Status = StatusActive })

	if _, err := f.svc.ToggleGoalActive(context.Background(), "user-1", g.ID, false); !errors.Is(err, cronjob.ErrRemoteScheduler) {
		t.Fatalf("expected remote scheduler error, got %v", err)
	}
	stored, _ := f.repo.GetGoal(context.Background(), g.ID)
	if !stored.IsActive || stored.Status != StatusActive {
		t.Fatalf("expected goal unchanged, got %v/%s", stored.IsActive, stored.Status)
	}
	if len(f.audit.Events()) != 0 {
		t.Fatalf("expected no audit event")
	}
}

func TestToggleGoalActive_PausesAndResumes(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	g := f.seed(t, func(g *Goal) { g.Status = StatusActive })

	paused, err := f.svc.ToggleGoalActive(ctx, "user-1", g.ID, false)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if paused.IsActive || paused.Status != StatusPaused {
		t.Fatalf("expected paused, got %v/%s", paused.IsActive, paused.Status)
	}

	resumed, err := f.svc.ToggleGoalActive(ctx, "user-1", g.ID, true)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !resumed.IsActive || resumed.Status != StatusActive {
		t.Fatalf("expected active, got %v/%s", resumed.IsActive, resumed.Status)
	}

	if len(f.sched.enabled) != 2 || f.sched.enabled[0] != (enableCall{55, false}) || f.sched.enabled[1] != (enableCall{55, true}) {
		t.Fatalf("unexpected remote toggles %+v", f.sched.enabled)
	}
}

func TestToggleGoalActive_RejectsTerminalAndForeignGoals(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	expired := f.seed(t, func(g *Goal) {
		g.Status = StatusExpired
		g.IsActive = false
	})
	if _, err := f.svc.ToggleGoalActive(ctx, "user-1", expired.ID, true); !errors.Is(err, ErrGoalTerminal) {
		t.Fatalf("expected ErrGoalTerminal, got %v", err)
	}

	other := f.seed(t, func(g *Goal) { g.UserID = "user-2" })
	if _, err := f.svc.ToggleGoalActive(ctx, "user-1", other.ID, false); !errors.Is(err, ErrGoalNotFound) {
		t.Fatalf("expected ErrGoalNotFound, got %v", err)
	}
	if len(f.sched.enabled) != 0 {
		t.Fatalf("expected no remote calls")
	}
}

func TestDeleteGoal_ProceedsWhenRemoteDeleteFails(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.sched.deleteErr = &cronjob.RemoteSchedulerError{Op: "delete job", JobID: 55, StatusCode: 500}
	g := f.seed(t, nil)
	_ = f.repo.InsertCallLog(ctx, calls.CallLog{ID: uuid.NewString(), GoalID: g.ID, CallID: "c1", Status: calls.CallStatusCompleted})

	sync, err := f.svc.DeleteGoal(ctx, "user-1", g.ID)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !sync.Attempted || sync.Confirmed || sync.Error == "" {
		t.Fatalf("expected unconfirmed remote delete, got %+v", sync)
	}
	if _, err := f.repo.GetGoal(ctx, g.ID); !errors.Is(err, ErrGoalNotFound) {
		t.Fatalf("expected goal removed")
	}
	if len(f.repo.CallLogs()) != 1 {
		t.Fatalf("expected call logs retained")
	}
}

func TestRecentCallLogs_ClampsLimit(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	g := f.seed(t, nil)
	for i := 0; i < MaxCallLogLimit+5; i++ {
		at := f.now.Add(time.Duration(i) * time.Minute)
		_ = f.repo.InsertCallLog(ctx, calls.CallLog{ID: uuid.NewString(), GoalID: g.ID, CallID: uuid.NewString(), CreatedAt: at})
	}

	logs, err := f.svc.RecentCallLogs(ctx, "user-1", g.ID, 0)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(logs) != DefaultCallLogLimit {
		t.Fatalf("expected %d logs, got %d", DefaultCallLogLimit, len(logs))
	}
	if !logs[0].CreatedAt.After(logs[1].CreatedAt) {
		t.Fatalf("expected newest first")
	}

	logs, _ = f.svc.RecentCallLogs(ctx, "user-1", g.ID, 1000)
	if len(logs) != MaxCallLogLimit {
		t.Fatalf("expected %d logs, got %d", MaxCallLogLimit, len(logs))
	}
}
