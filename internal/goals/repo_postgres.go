package goals

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"voice-reminders/internal/calls"
	"voice-reminders/internal/telephony"
)

// Schema creates the goals and call_logs tables.
//
//go:embed schema.sql
var Schema string

// PostgresRepo implements Repository over database/sql (pgx stdlib driver).
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

var _ Repository = (*PostgresRepo)(nil)

const goalColumns = `
id, user_id, title, persona, context, phone_number, language, voice,
schedule_type, schedule, is_active, status, execution_count,
last_executed_at, next_execution_at, expires_at, cron_job_id,
last_call_status, last_call_duration, created_at, updated_at`

const callLogColumns = `
id, goal_id, user_id, call_id, status, goal_title, phone_number,
execution_time, started_at, end_at, duration_seconds, error_message,
transcript, summary, disposition_tag, answered_by, call_ended_by,
completed, call_cost, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGoal(row rowScanner) (Goal, error) {
	var (
		g     Goal
		sched []byte
	)
	if err := row.Scan(
		&g.ID,
		&g.UserID,
		&g.Title,
		&g.Persona,
		&g.Context,
		&g.PhoneNumber,
		&g.Language,
		&g.Voice,
		&g.ScheduleType,
		&sched,
		&g.IsActive,
		&g.Status,
		&g.ExecutionCount,
		&g.LastExecutedAt,
		&g.NextExecutionAt,
		&g.ExpiresAt,
		&g.CronJobID,
		&g.LastCallStatus,
		&g.LastCallDuration,
		&g.CreatedAt,
		&g.UpdatedAt,
	); err != nil {
		return Goal{}, err
	}
	if err := json.Unmarshal(sched, &g.Schedule); err != nil {
		return Goal{}, fmt.Errorf("decode schedule of goal %s: %w", g.ID, err)
	}
	return g, nil
}

func scanCallLog(row rowScanner) (calls.CallLog, error) {
	var l calls.CallLog
	err := row.Scan(
		&l.ID,
		&l.GoalID,
		&l.UserID,
		&l.CallID,
		&l.Status,
		&l.GoalTitle,
		&l.PhoneNumber,
		&l.ExecutionTime,
		&l.StartedAt,
		&l.EndAt,
		&l.DurationSeconds,
		&l.ErrorMessage,
		&l.Transcript,
		&l.Summary,
		&l.DispositionTag,
		&l.AnsweredBy,
		&l.CallEndedBy,
		&l.Completed,
		&l.CallCost,
		&l.CreatedAt,
		&l.UpdatedAt,
	)
	return l, err
}

func (r *PostgresRepo) queryGoals(ctx context.Context, op, q string, args ...any) ([]Goal, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, storeErr(op, err)
	}
	defer rows.Close()

	out := make([]Goal, 0)
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, storeErr(op, err)
		}
		out = append(out, g)
	}
	return out, storeErr(op, rows.Err())
}

func (r *PostgresRepo) queryCallLogs(ctx context.Context, op, q string, args ...any) ([]calls.CallLog, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, storeErr(op, err)
	}
	defer rows.Close()

	out := make([]calls.CallLog, 0)
	for rows.Next() {
		l, err := scanCallLog(rows)
		if err != nil {
			return nil, storeErr(op, err)
		}
		out = append(out, l)
	}
	return out, storeErr(op, rows.Err())
}

func (r *PostgresRepo) InsertGoal(ctx context.Context, g Goal) error {
	sched, err := json.Marshal(g.Schedule)
	if err != nil {
		return storeErr("insert goal", err)
	}
	const q = `
INSERT INTO goals (
  id, user_id, title, persona, context, phone_number, language, voice,
  schedule_type, schedule, is_active, status, execution_count,
  last_executed_at, next_execution_at, expires_at, cron_job_id, created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19
)
`
	_, err = r.db.ExecContext(ctx, q,
		g.ID,
		g.UserID,
		g.Title,
		g.Persona,
		g.Context,
		g.PhoneNumber,
		g.Language,
		g.Voice,
		g.ScheduleType,
		sched,
		g.IsActive,
		g.Status,
		g.ExecutionCount,
		g.LastExecutedAt,
		g.NextExecutionAt,
		g.ExpiresAt,
		g.CronJobID,
		g.CreatedAt,
		g.UpdatedAt,
	)
	return storeErr("insert goal", err)
}

func (r *PostgresRepo) GetGoal(ctx context.Context, id string) (Goal, error) {
	q := `SELECT ` + goalColumns + ` FROM goals WHERE id = $1`
	g, err := scanGoal(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Goal{}, ErrGoalNotFound
	}
	return g, storeErr("get goal", err)
}

func (r *PostgresRepo) ListGoalsByUser(ctx context.Context, userID string) ([]Goal, error) {
	q := `SELECT ` + goalColumns + ` FROM goals WHERE user_id = $1 ORDER BY created_at DESC`
	return r.queryGoals(ctx, "list goals", q, userID)
}

func (r *PostgresRepo) DeleteGoal(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM goals WHERE id = $1`, id)
	if err != nil {
		return storeErr("delete goal", err)
	}
	return requireRow(res, ErrGoalNotFound)
}

func (r *PostgresRepo) SetActive(ctx context.Context, id string, active bool, status Status, now time.Time) (Goal, error) {
	q := `
UPDATE goals SET is_active = $2, status = $3, updated_at = $4
WHERE id = $1
RETURNING ` + goalColumns
	g, err := scanGoal(r.db.QueryRowContext(ctx, q, id, active, status, now))
	if errors.Is(err, sql.ErrNoRows) {
		return Goal{}, ErrGoalNotFound
	}
	return g, storeErr("set active", err)
}

func (r *PostgresRepo) RecordExecution(ctx context.Context, id string, at time.Time, next *time.Time) (Goal, error) {
	q := `
UPDATE goals SET
  execution_count = execution_count + 1,
  last_executed_at = $2,
  next_execution_at = $3,
  status = CASE WHEN status = 'created' THEN 'active' ELSE status END,
  updated_at = $2
WHERE id = $1
RETURNING ` + goalColumns
	g, err := scanGoal(r.db.QueryRowContext(ctx, q, id, at, next))
	if errors.Is(err, sql.ErrNoRows) {
		return Goal{}, ErrGoalNotFound
	}
	return g, storeErr("record execution", err)
}

func (r *PostgresRepo) Deactivate(ctx context.Context, id string, status Status, now time.Time) error {
	const q = `
UPDATE goals SET is_active = FALSE, status = $2, next_execution_at = NULL, updated_at = $3
WHERE id = $1
`
	res, err := r.db.ExecContext(ctx, q, id, status, now)
	if err != nil {
		return storeErr("deactivate goal", err)
	}
	return requireRow(res, ErrGoalNotFound)
}

func (r *PostgresRepo) UpdateNextExecution(ctx context.Context, id string, next *time.Time, now time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE goals SET next_execution_at = $2, updated_at = $3 WHERE id = $1`,
		id, next, now)
	if err != nil {
		return storeErr("update next execution", err)
	}
	return requireRow(res, ErrGoalNotFound)
}

func (r *PostgresRepo) UpdateLastCall(ctx context.Context, callID, status string, durationSeconds *int, now time.Time) error {
	const q = `
UPDATE goals SET
  last_call_status = $2,
  last_call_duration = COALESCE($3, last_call_duration),
  updated_at = $4
WHERE id = (SELECT goal_id FROM call_logs WHERE call_id = $1)
`
	res, err := r.db.ExecContext(ctx, q, callID, status, durationSeconds, now)
	if err != nil {
		return storeErr("update last call", err)
	}
	return requireRow(res, ErrGoalNotFound)
}

func (r *PostgresRepo) ListActiveLinked(ctx context.Context) ([]Goal, error) {
	q := `SELECT ` + goalColumns + ` FROM goals WHERE is_active = TRUE AND cron_job_id IS NOT NULL ORDER BY id`
	return r.queryGoals(ctx, "list active goals", q)
}

func (r *PostgresRepo) ListStaleOneTime(ctx context.Context, now time.Time) ([]Goal, error) {
	q := `SELECT ` + goalColumns + ` FROM goals
WHERE schedule_type = 'onetime' AND (expires_at < $1 OR next_execution_at < $1)
ORDER BY id`
	return r.queryGoals(ctx, "list stale one-time goals", q, now)
}

func (r *PostgresRepo) ListExpired(ctx context.Context, now time.Time) ([]Goal, error) {
	q := `SELECT ` + goalColumns + ` FROM goals
WHERE is_active = TRUE AND expires_at IS NOT NULL AND expires_at < $1
ORDER BY id`
	return r.queryGoals(ctx, "list expired goals", q, now)
}

func (r *PostgresRepo) ReferencedCronJobIDs(ctx context.Context) (map[int64]struct{}, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT cron_job_id FROM goals WHERE cron_job_id IS NOT NULL`)
	if err != nil {
		return nil, storeErr("list cron job ids", err)
	}
	defer rows.Close()

	out := make(map[int64]struct{})
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, storeErr("list cron job ids", err)
		}
		out[id] = struct{}{}
	}
	return out, storeErr("list cron job ids", rows.Err())
}

func (r *PostgresRepo) InsertCallLog(ctx context.Context, l calls.CallLog) error {
	const q = `
INSERT INTO call_logs (
  id, goal_id, user_id, call_id, status, goal_title, phone_number, execution_time,
  duration_seconds, error_message, created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12
)
`
	_, err := r.db.ExecContext(ctx, q,
		l.ID,
		l.GoalID,
		l.UserID,
		l.CallID,
		l.Status,
		l.GoalTitle,
		l.PhoneNumber,
		l.ExecutionTime,
		l.DurationSeconds,
		l.ErrorMessage,
		l.CreatedAt,
		l.UpdatedAt,
	)
	return storeErr("insert call log", err)
}

func (r *PostgresRepo) UpdateCallLogOutcome(ctx context.Context, o telephony.CallOutcome, now time.Time) (calls.CallLog, error) {
	q := `
UPDATE call_logs SET
  status = COALESCE(NULLIF($2, ''), status),
  duration_seconds = COALESCE($3, duration_seconds),
  completed = COALESCE($4, completed),
  error_message = COALESCE($5, error_message),
  started_at = COALESCE($6, started_at),
  end_at = COALESCE($7, end_at),
  transcript = COALESCE($8, transcript),
  summary = COALESCE($9, summary),
  disposition_tag = COALESCE($10, disposition_tag),
  answered_by = COALESCE($11, answered_by),
  call_ended_by = COALESCE($12, call_ended_by),
  call_cost = COALESCE($13, call_cost),
  updated_at = $14
WHERE call_id = $1
RETURNING ` + callLogColumns
	l, err := scanCallLog(r.db.QueryRowContext(ctx, q,
		o.CallID,
		o.Status,
		o.DurationSeconds,
		o.Completed,
		o.ErrorMessage,
		o.StartedAt,
		o.EndAt,
		o.Transcript,
		o.Summary,
		o.DispositionTag,
		o.AnsweredBy,
		o.CallEndedBy,
		o.Cost,
		now,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return calls.CallLog{}, ErrCallLogNotFound
	}
	return l, storeErr("update call log", err)
}

func (r *PostgresRepo) RecentCallLogs(ctx context.Context, goalID string, limit int) ([]calls.CallLog, error) {
	q := `SELECT ` + callLogColumns + ` FROM call_logs WHERE goal_id = $1 ORDER BY created_at DESC LIMIT $2`
	return r.queryCallLogs(ctx, "recent call logs", q, goalID, limit)
}

func (r *PostgresRepo) ListCallLogs(ctx context.Context, goalID string, from, to time.Time) ([]calls.CallLog, error) {
	q := `SELECT ` + callLogColumns + ` FROM call_logs
WHERE goal_id = $1 AND created_at >= $2 AND created_at < $3
ORDER BY created_at`
	return r.queryCallLogs(ctx, "list call logs", q, goalID, from, to)
}

func requireRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return storeErr("rows affected", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
