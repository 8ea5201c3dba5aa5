package transform

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"doc-migrator/internal/logging"
	"doc-migrator/internal/source"

	"github.com/google/uuid"
)

// Numeric extended JSON envelope keys accepted by ParseNumber.
var numberKeys = []string{"$numberDouble", "$numberInt", "$numberLong", source.DecimalKey}

// dateLayouts are tried in order for string dates.
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	time.RFC1123Z,
	time.RFC1123,
}

// ResolveID turns a source _id into the target primary key. Plain strings and
// {"$oid": hex} envelopes map to themselves; any other value is formatted;
// a missing id gets a fresh UUID.
func ResolveID(v any) string {
	switch id := v.(type) {
	case nil:
		return uuid.NewString()
	case string:
		return id
	case source.Document:
		if oid, ok := id[source.OIDKey].(string); ok && oid != "" {
			return oid
		}
	case map[string]any:
		return ResolveID(source.Document(id))
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}

// ParseNumber narrows a numeric source value. Non-finite values are clamped:
// +Inf to math.MaxFloat64, -Inf to -math.MaxFloat64, NaN to 0. Anything that
// does not parse yields 0.
func ParseNumber(v any) float64 {
	switch n := v.(type) {
	case nil:
		return 0
	case float64:
		return finite(n)
	case float32:
		return finite(float64(n))
	case int64:
		return float64(n)
	case int32:
		return float64(n)
	case int:
		return float64(n)
	case string:
		return parseNumberString(n)
	case source.Document:
		for _, key := range numberKeys {
			if raw, ok := n[key]; ok {
				return ParseNumber(raw)
			}
		}
	case map[string]any:
		return ParseNumber(source.Document(n))
	}
	logging.Logf(logging.Debug, "ParseNumber: unsupported value %v (type %T); using 0", v, v)
	return 0
}

// numericPrefix matches the longest leading decimal number of a string.
var numericPrefix = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?`)

// parseNumberString reads the longest numeric prefix of s, so "12abc" is 12
// and "1,000" is 1. Strings without one yield 0.
func parseNumberString(s string) float64 {
	s = strings.TrimSpace(s)
	unsigned := s
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		unsigned = s[1:]
	}
	if strings.HasPrefix(unsigned, "Infinity") {
		if strings.HasPrefix(s, "-") {
			return -math.MaxFloat64
		}
		return math.MaxFloat64
	}
	m := numericPrefix.FindString(s)
	if m == "" {
		logging.Logf(logging.Debug, "ParseNumber: cannot parse %q; using 0", s)
		return 0
	}
	if m != s {
		logging.Logf(logging.Debug, "ParseNumber: using numeric prefix %q of %q", m, s)
	}
	// Out-of-range prefixes come back as ±Inf and are clamped.
	f, _ := strconv.ParseFloat(m, 64)
	return finite(f)
}

func finite(f float64) float64 {
	switch {
	case math.IsNaN(f):
		return 0
	case math.IsInf(f, 1):
		return math.MaxFloat64
	case math.IsInf(f, -1):
		return -math.MaxFloat64
	}
	return f
}

// ParseDate narrows a date source value: time.Time, a {"$date": ...} envelope
// holding a string, epoch milliseconds or {"$numberLong": ms}, or a
// date string in one of the common layouts. Anything else yields nil.
func ParseDate(v any) *time.Time {
	switch d := v.(type) {
	case time.Time:
		t := d.UTC()
		return &t
	case string:
		return parseDateString(d)
	case source.Document:
		raw, ok := d[source.DateKey]
		if !ok {
			return nil
		}
		switch inner := raw.(type) {
		case string:
			return parseDateString(inner)
		case int64:
			return epochMillis(inner)
		case float64:
			return epochMillis(int64(inner))
		case source.Document:
			if s, ok := inner["$numberLong"].(string); ok {
				if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
					return epochMillis(ms)
				}
			}
		case time.Time:
			return ParseDate(inner)
		}
	case map[string]any:
		return ParseDate(source.Document(d))
	}
	return nil
}

func parseDateString(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	logging.Logf(logging.Debug, "ParseDate: could not parse %q with any known layout", s)
	return nil
}

func epochMillis(ms int64) *time.Time {
	t := time.UnixMilli(ms).UTC()
	return &t
}

// dateOr returns the parsed date or fallback.
func dateOr(v any, fallback time.Time) time.Time {
	if t := ParseDate(v); t != nil {
		return *t
	}
	return fallback
}

// optString returns the field as a string pointer, or nil when it is empty.
func optString(doc source.Document, key string) *string {
	if s := doc.String(key); s != "" {
		return &s
	}
	return nil
}

// optBool returns the field when it holds a bool, else nil.
func optBool(doc source.Document, key string) *bool {
	if b, ok := doc.Get(key).(bool); ok {
		return &b
	}
	return nil
}

// jsonBlob encodes v when it carries content. Empty maps, empty arrays,
// empty strings and nil yield nil.
func jsonBlob(v any) (*string, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case string:
		if val == "" {
			return nil, nil
		}
	case []any:
		if len(val) == 0 {
			return nil, nil
		}
	case map[string]string:
		if len(val) == 0 {
			return nil, nil
		}
	case source.Document:
		if len(val) == 0 {
			return nil, nil
		}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	s := string(b)
	return &s, nil
}

// collect copies the non-empty source fields into a side object keyed by the
// target names in fields (source key -> target key).
func collect(doc source.Document, fields [][2]string) map[string]string {
	out := make(map[string]string)
	for _, f := range fields {
		if s := doc.String(f[0]); s != "" {
			out[f[1]] = s
		}
	}
	return out
}
