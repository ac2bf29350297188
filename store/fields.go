package store

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Fields holds the values of a document. Backends decode numbers as int64,
// float64 or json.Number and timestamps as time.Time or RFC 3339 strings, so
// the getters below accept all of them.
type Fields map[string]any

// String returns the field as text, or "" when absent
func (f Fields) String(key string) string {
	switch v := f[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case time.Time:
		return v.Format(time.RFC3339Nano)
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(v, 10)
	case int:
		return strconv.Itoa(v)
	case bool:
		return strconv.FormatBool(v)
	}
	return ""
}

// Decimal returns a numeric field, or zero when absent or not a number
func (f Fields) Decimal(key string) decimal.Decimal {
	switch v := f[key].(type) {
	case float64:
		return decimal.NewFromFloat(v)
	case float32:
		return decimal.NewFromFloat32(v)
	case int64:
		return decimal.NewFromInt(v)
	case int:
		return decimal.NewFromInt(int64(v))
	case json.Number:
		d, err := decimal.NewFromString(v.String())
		if err == nil {
			return d
		}
	case decimal.Decimal:
		return v
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(v))
		if err == nil {
			return d
		}
	}
	return decimal.Zero
}

// Float returns a numeric field as float64
func (f Fields) Float(key string) float64 {
	return f.Decimal(key).InexactFloat64()
}

// Int returns a numeric field truncated to an integer
func (f Fields) Int(key string) int64 {
	return f.Decimal(key).IntPart()
}

// Bool returns a boolean field, false when absent
func (f Fields) Bool(key string) bool {
	switch v := f[key].(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(v)
		return b
	}
	return false
}

// Time returns a timestamp field and whether it held a usable value
func (f Fields) Time(key string) (time.Time, bool) {
	switch v := f[key].(type) {
	case time.Time:
		return v, !v.IsZero()
	case string:
		v = strings.TrimSpace(v)
		if v == "" {
			return time.Time{}, false
		}
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02"} {
			if t, err := time.Parse(layout, v); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

// Has reports whether the field is present
func (f Fields) Has(key string) bool {
	_, ok := f[key]
	return ok
}

// Clone returns a shallow copy
func (f Fields) Clone() Fields {
	if f == nil {
		return nil
	}
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// Merge copies the masked fields of update into f. An empty mask copies
// everything; masked fields missing from update are removed.
func (f Fields) Merge(update Fields, mask []string) Fields {
	out := f.Clone()
	if out == nil {
		out = Fields{}
	}
	if len(mask) == 0 {
		for k, v := range update {
			out[k] = v
		}
		return out
	}
	for _, key := range mask {
		if v, ok := update[key]; ok {
			out[key] = v
		} else {
			delete(out, key)
		}
	}
	return out
}
