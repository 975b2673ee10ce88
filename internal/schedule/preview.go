package schedule

import (
	"time"

	"github.com/robfig/cron/v3"
)

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Validate checks a 5-field cron expression, including value ranges.
func Validate(expr string) error {
	if _, err := cronParser.Parse(expr); err != nil {
		return invalid("expression", "%v", err)
	}
	return nil
}

// NextRuns previews up to n execution instants of expr in tz after from.
func NextRuns(expr, tz string, from time.Time, n int) ([]time.Time, error) {
	name, loc, err := loadLocation(tz)
	if err != nil {
		return nil, invalid("timezone", "unknown timezone %q", name)
	}
	sched, err := cronParser.Parse(expr)
	if err != nil {
		return nil, invalid("expression", "%v", err)
	}

	out := make([]time.Time, 0, n)
	t := from.In(loc)
	for i := 0; i < n; i++ {
		t = sched.Next(t)
		if t.IsZero() {
			break
		}
		out = append(out, t)
	}
	return out, nil
}

// Preview returns the next n execution instants of an encoded schedule,
// honoring its expiry.
func Preview(enc Encoded, from time.Time, n int) ([]time.Time, error) {
	if enc.RunAt != nil {
		if enc.RunAt.After(from) {
			return []time.Time{*enc.RunAt}, nil
		}
		return nil, nil
	}
	runs, err := NextRuns(enc.Schedule.Expression(), enc.Schedule.Timezone, from, n)
	if err != nil {
		return nil, err
	}
	if enc.ExpiresAt == nil {
		return runs, nil
	}
	out := runs[:0]
	for _, r := range runs {
		if r.Before(*enc.ExpiresAt) {
			out = append(out, r)
		}
	}
	return out, nil
}
