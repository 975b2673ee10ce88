package telephony

import (
	"errors"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

var (
	ErrMissingCallID  = errors.New("telephony: call_id is required")
	ErrInvalidPayload = errors.New("telephony: webhook body is not a JSON object")
)

// ParseCallOutcome reads the voice webhook body. Numbers may arrive as
// strings, and null or absent keys leave the field unset.
func ParseCallOutcome(body []byte) (CallOutcome, error) {
	if !gjson.ValidBytes(body) {
		return CallOutcome{}, ErrInvalidPayload
	}
	doc := gjson.ParseBytes(body)
	if !doc.IsObject() {
		return CallOutcome{}, ErrInvalidPayload
	}

	out := CallOutcome{
		CallID: strings.TrimSpace(doc.Get("call_id").String()),
		Status: strings.TrimSpace(doc.Get("status").String()),
		Raw:    string(body),
	}
	if out.CallID == "" {
		return CallOutcome{}, ErrMissingCallID
	}

	// corrected_duration is the provider's billed duration and wins over call_length.
	if d, ok := seconds(doc.Get("corrected_duration")); ok {
		out.DurationSeconds = &d
	} else if d, ok := seconds(doc.Get("call_length")); ok {
		out.DurationSeconds = &d
	}

	if v := doc.Get("completed"); v.Exists() && v.Type != gjson.Null {
		b := v.Bool()
		out.Completed = &b
	}
	if v := doc.Get("price"); v.Exists() && v.Type != gjson.Null {
		f := v.Float()
		out.Cost = &f
	}

	out.ErrorMessage = optString(doc.Get("error_message"))
	out.Transcript = optString(doc.Get("concatenated_transcript"))
	out.Summary = optString(doc.Get("summary"))
	out.DispositionTag = optString(doc.Get("disposition_tag"))
	out.AnsweredBy = optString(doc.Get("answered_by"))
	out.CallEndedBy = optString(doc.Get("call_ended_by"))
	out.StartedAt = optTime(doc.Get("started_at"))
	out.EndAt = optTime(doc.Get("end_at"))

	return out, nil
}

// seconds rounds a number or numeric string to whole seconds.
func seconds(v gjson.Result) (int, bool) {
	switch v.Type {
	case gjson.Number:
		return int(v.Float() + 0.5), true
	case gjson.String:
		s := strings.TrimSpace(v.Str)
		if s == "" {
			return 0, false
		}
		r := gjson.Parse(s)
		if r.Type != gjson.Number {
			return 0, false
		}
		return int(r.Float() + 0.5), true
	default:
		return 0, false
	}
}

func optString(v gjson.Result) *string {
	if !v.Exists() || v.Type == gjson.Null {
		return nil
	}
	s := v.String()
	return &s
}

var webhookTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999-07",
	"2006-01-02 15:04:05.999999Z07:00",
	"2006-01-02T15:04:05.999999",
}

func optTime(v gjson.Result) *time.Time {
	if v.Type != gjson.String {
		return nil
	}
	s := strings.TrimSpace(v.Str)
	for _, layout := range webhookTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}
