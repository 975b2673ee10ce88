package schedule

import (
	"encoding/json"
	"strconv"
	"strings"
)

// wildcard is the remote scheduler's "every value" marker inside a field list.
const wildcard = -1

// Field is one schedule dimension (minutes, hours, ...).
//
// It is either Any (no constraint) or an explicit list of values kept in the
// order the caller supplied them. The zero value is an empty list, which the
// remote scheduler treats differently from Any.
type Field struct {
	any    bool
	values []int
}

func Any() Field { return Field{any: true} }

func Values(vs ...int) Field {
	out := make([]int, len(vs))
	copy(out, vs)
	return Field{values: out}
}

func (f Field) IsAny() bool { return f.any }

// Ints returns a copy of the explicit values. It is nil for Any.
func (f Field) Ints() []int {
	if f.any {
		return nil
	}
	out := make([]int, len(f.values))
	copy(out, f.values)
	return out
}

// Encode renders the field in the remote scheduler's list form.
func (f Field) Encode() []int {
	if f.any {
		return []int{wildcard}
	}
	return f.Ints()
}

func (f Field) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.Encode())
}

func (f *Field) UnmarshalJSON(b []byte) error {
	var raw []int
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	for _, v := range raw {
		if v == wildcard {
			*f = Any()
			return nil
		}
	}
	*f = Values(raw...)
	return nil
}

// cronText renders the field back into a cron expression token.
func (f Field) cronText() string {
	if f.any {
		return "*"
	}
	parts := make([]string, len(f.values))
	for i, v := range f.values {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ",")
}
