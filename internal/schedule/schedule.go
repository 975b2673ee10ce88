package schedule

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Type is how often a goal fires.
type Type string

const (
	TypeOneTime   Type = "onetime"
	TypeRecurring Type = "recurring"
)

func (t Type) Valid() bool {
	return t == TypeOneTime || t == TypeRecurring
}

// OneTimeGrace is how long a one-time job stays enabled after its execution
// instant, so the remote scheduler's own retries can still fire.
const OneTimeGrace = 48 * time.Hour

// Schedule is the remote scheduler's schedule object.
type Schedule struct {
	Timezone  string `json:"timezone"`
	ExpiresAt int64  `json:"expiresAt"`
	Hours     Field  `json:"hours"`
	MDays     Field  `json:"mdays"`
	Minutes   Field  `json:"minutes"`
	Months    Field  `json:"months"`
	WDays     Field  `json:"wdays"`
}

// Expression renders the schedule as a 5-field cron expression
// (minute hour day-of-month month day-of-week).
func (s Schedule) Expression() string {
	return strings.Join([]string{
		s.Minutes.cronText(),
		s.Hours.cronText(),
		s.MDays.cronText(),
		s.Months.cronText(),
		s.WDays.cronText(),
	}, " ")
}

var ErrInvalidSchedule = errors.New("schedule: invalid schedule")

// InvalidScheduleError reports user-correctable schedule input.
type InvalidScheduleError struct {
	Field  string
	Reason string
}

func (e *InvalidScheduleError) Error() string {
	if e.Field == "" {
		return "schedule: " + e.Reason
	}
	return fmt.Sprintf("schedule: %s: %s", e.Field, e.Reason)
}

func (e *InvalidScheduleError) Is(target error) bool { return target == ErrInvalidSchedule }

func invalid(field, format string, args ...any) error {
	return &InvalidScheduleError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// Request is the user's scheduling intent.
type Request struct {
	Type Type
	// Expression is "minute hour day month weekday". Each field is "*" or a
	// comma separated list of integers. For one-time goals the weekday field
	// is ignored.
	Expression string
	Timezone   string
	// ExpiresAt optionally ends a recurring schedule.
	ExpiresAt *time.Time

	// RunAt is a wall-clock datetime in Timezone for a one-time schedule.
	// When set it replaces Expression.
	RunAt string
	// Expiry is a wall-clock datetime in Timezone (or RFC 3339) ending a
	// recurring schedule. When set it replaces ExpiresAt.
	Expiry string
}

// Encoded is the encoder output.
type Encoded struct {
	Schedule Schedule
	// RunAt is the single execution instant of a one-time schedule.
	RunAt *time.Time
	// ExpiresAt is the decoded expiry instant, nil when the schedule never expires.
	ExpiresAt *time.Time
}

// Encoder turns scheduling intent into the remote scheduler's encoding.
// Now is only consulted for one-time schedules.
type Encoder struct {
	Now func() time.Time
}

func NewEncoder() *Encoder {
	return &Encoder{Now: time.Now}
}

var fieldNames = [5]string{"minute", "hour", "day", "month", "weekday"}

func (e *Encoder) Encode(req Request) (Encoded, error) {
	if strings.TrimSpace(req.Expiry) != "" {
		exp, err := parseExpiry(req.Expiry, req.Timezone)
		if err != nil {
			return Encoded{}, err
		}
		req.ExpiresAt = &exp
	}
	switch req.Type {
	case TypeOneTime:
		if strings.TrimSpace(req.RunAt) != "" {
			return e.encodeCivilRun(req)
		}
		return e.encodeOneTime(req)
	case TypeRecurring:
		return e.encodeRecurring(req)
	default:
		return Encoded{}, invalid("schedule_type", "must be %q or %q, got %q", TypeOneTime, TypeRecurring, req.Type)
	}
}

// encodeCivilRun turns a dated run into the yearless one-time expression.
// The remote scheduler has no year field, so the run must be the next
// occurrence of its month/day/time.
func (e *Encoder) encodeCivilRun(req Request) (Encoded, error) {
	at, err := ParseCivil(req.RunAt, req.Timezone)
	if err != nil {
		return Encoded{}, err
	}
	// schedules have minute resolution
	at = at.Truncate(time.Minute)
	if !at.After(e.now()) {
		return Encoded{}, invalid("run_at", "%s is not in the future", req.RunAt)
	}
	req.Expression = OneTimeExpression(at)
	out, err := e.encodeOneTime(req)
	if err != nil {
		return Encoded{}, err
	}
	if !out.RunAt.Equal(at) {
		return Encoded{}, invalid("run_at", "%s is further out than the next occurrence of that date", req.RunAt)
	}
	return out, nil
}

func parseExpiry(value, tz string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, strings.TrimSpace(value)); err == nil {
		return t, nil
	}
	t, err := ParseCivil(value, tz)
	if err != nil {
		return time.Time{}, invalid("expires_at", "%q is neither a wall-clock datetime nor RFC 3339", value)
	}
	return t, nil
}

func splitExpression(expr string) ([]string, error) {
	fields := strings.Fields(expr)
	if len(fields) != 5 {
		return nil, invalid("expression", "expected 5 fields, got %d", len(fields))
	}
	return fields, nil
}

func (e *Encoder) encodeOneTime(req Request) (Encoded, error) {
	fields, err := splitExpression(req.Expression)
	if err != nil {
		return Encoded{}, err
	}

	var parts [4]int
	for i := 0; i < 4; i++ {
		if fields[i] == "*" {
			return Encoded{}, invalid(fieldNames[i], "a one-time schedule needs an exact value")
		}
		n, err := strconv.Atoi(fields[i])
		if err != nil {
			return Encoded{}, invalid(fieldNames[i], "%q is not an integer", fields[i])
		}
		parts[i] = n
	}
	// weekday is ignored for one-time schedules but must still parse
	if wd := fields[4]; wd != "*" {
		n, err := strconv.Atoi(wd)
		if err != nil {
			return Encoded{}, invalid("weekday", "%q is not an integer", wd)
		}
		if n < 0 || n > 7 {
			return Encoded{}, invalid("weekday", "%d out of range 0-7", n)
		}
	}
	minute, hour, day, month := parts[0], parts[1], parts[2], parts[3]
	if minute < 0 || minute > 59 {
		return Encoded{}, invalid("minute", "%d out of range 0-59", minute)
	}
	if hour < 0 || hour > 23 {
		return Encoded{}, invalid("hour", "%d out of range 0-23", hour)
	}
	if day < 1 || day > 31 {
		return Encoded{}, invalid("day", "%d out of range 1-31", day)
	}
	if month < 1 || month > 12 {
		return Encoded{}, invalid("month", "%d out of range 1-12", month)
	}

	tz, loc, err := loadLocation(req.Timezone)
	if err != nil {
		return Encoded{}, invalid("timezone", "unknown timezone %q", tz)
	}

	now := e.now().In(loc)
	runAt, ok := nextCivilInstant(now, month, day, hour, minute, loc)
	if !ok {
		return Encoded{}, invalid("day", "%d-%02d never occurs", month, day)
	}
	expires := runAt.Add(OneTimeGrace)

	return Encoded{
		Schedule: Schedule{
			Timezone:  tz,
			ExpiresAt: EncodeExpiry(expires.In(loc)),
			Hours:     Values(hour),
			MDays:     Values(day),
			Minutes:   Values(minute),
			Months:    Values(month),
			WDays:     Any(),
		},
		RunAt:     &runAt,
		ExpiresAt: &expires,
	}, nil
}

// nextCivilInstant finds the first future occurrence of month/day hh:mm,
// starting in now's year. Feb 29 may need a few years of lookahead.
func nextCivilInstant(now time.Time, month, day, hour, minute int, loc *time.Location) (time.Time, bool) {
	for y := now.Year(); y < now.Year()+8; y++ {
		t := time.Date(y, time.Month(month), day, hour, minute, 0, 0, loc)
		if int(t.Month()) != month || t.Day() != day {
			continue
		}
		if t.After(now) {
			return t, true
		}
	}
	return time.Time{}, false
}

func (e *Encoder) encodeRecurring(req Request) (Encoded, error) {
	fields, err := splitExpression(req.Expression)
	if err != nil {
		return Encoded{}, err
	}

	var parsed [5]Field
	for i, raw := range fields {
		f, err := parseListField(fieldNames[i], raw)
		if err != nil {
			return Encoded{}, err
		}
		parsed[i] = f
	}

	s := Schedule{
		Timezone:  NormalizeTimezone(req.Timezone),
		ExpiresAt: Never,
		Minutes:   parsed[0],
		Hours:     parsed[1],
		MDays:     parsed[2],
		Months:    parsed[3],
		WDays:     parsed[4],
	}
	if err := Validate(s.Expression()); err != nil {
		return Encoded{}, err
	}

	out := Encoded{Schedule: s}
	if req.ExpiresAt != nil {
		_, loc, err := loadLocation(req.Timezone)
		if err != nil {
			return Encoded{}, invalid("timezone", "unknown timezone %q", s.Timezone)
		}
		exp := req.ExpiresAt.In(loc)
		out.Schedule.ExpiresAt = EncodeExpiry(exp)
		out.ExpiresAt = &exp
	}
	return out, nil
}

func parseListField(name, raw string) (Field, error) {
	if raw == "*" {
		return Any(), nil
	}
	parts := strings.Split(raw, ",")
	vals := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return Field{}, invalid(name, "%q is not an integer", p)
		}
		vals = append(vals, n)
	}
	return Values(vals...), nil
}

func (e *Encoder) now() time.Time {
	if e.Now == nil {
		return time.Now()
	}
	return e.Now()
}

// OneTimeExpression renders a civil datetime in the "m h d M *" form the
// encoder accepts for one-time schedules.
func OneTimeExpression(t time.Time) string {
	return fmt.Sprintf("%d %d %d %d *", t.Minute(), t.Hour(), t.Day(), int(t.Month()))
}

var civilLayouts = []string{
	"2006-01-02T15:04",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02 15:04:05",
}

// ParseCivil parses a wall-clock datetime (no offset) in the given timezone.
func ParseCivil(value, tz string) (time.Time, error) {
	name, loc, err := loadLocation(tz)
	if err != nil {
		return time.Time{}, invalid("timezone", "unknown timezone %q", name)
	}
	value = strings.TrimSpace(value)
	for _, layout := range civilLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, invalid("datetime", "%q is not a YYYY-MM-DDThh:mm datetime", value)
}
