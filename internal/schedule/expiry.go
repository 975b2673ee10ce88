package schedule

import (
	"fmt"
	"time"
)

// Never is the expiresAt value for schedules that do not expire.
const Never int64 = 0

// EncodeExpiry packs the wall clock of t as YYYYMMDDhhmmss.
// Callers convert t into the schedule's timezone first.
func EncodeExpiry(t time.Time) int64 {
	return int64(t.Year())*10000000000 +
		int64(t.Month())*100000000 +
		int64(t.Day())*1000000 +
		int64(t.Hour())*10000 +
		int64(t.Minute())*100 +
		int64(t.Second())
}

// DecodeExpiry is the inverse of EncodeExpiry. It reports false for Never.
func DecodeExpiry(v int64, loc *time.Location) (time.Time, bool, error) {
	if v == Never {
		return time.Time{}, false, nil
	}
	if v < 10000000000000 || v > 99999999999999 {
		return time.Time{}, false, fmt.Errorf("schedule: expiresAt %d is not a 14 digit timestamp", v)
	}
	if loc == nil {
		loc = time.UTC
	}
	sec := int(v % 100)
	min := int(v / 100 % 100)
	hour := int(v / 10000 % 100)
	day := int(v / 1000000 % 100)
	month := int(v / 100000000 % 100)
	year := int(v / 10000000000)

	t := time.Date(year, time.Month(month), day, hour, min, sec, 0, loc)
	if t.Year() != year || int(t.Month()) != month || t.Day() != day || t.Hour() != hour || t.Minute() != min || t.Second() != sec {
		return time.Time{}, false, fmt.Errorf("schedule: expiresAt %d is not a valid date", v)
	}
	return t, true, nil
}
