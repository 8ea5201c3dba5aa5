package source

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Extended JSON envelope keys that survive normalisation.
const (
	OIDKey     = "$oid"
	DateKey    = "$date"
	DecimalKey = "$numberDecimal"
)

// Document is a schemaless source record. Values are narrowed to
// string, float64, int64, bool, time.Time, Document, []any or nil by the
// store adapters; ObjectIDs and Decimal128 values keep their extended JSON
// envelopes ({"$oid": hex}, {"$numberDecimal": s}).
type Document map[string]any

// Has reports whether key is present with a non-nil value.
func (d Document) Has(key string) bool {
	v, ok := d[key]
	return ok && v != nil
}

// Get returns the raw value stored under key.
func (d Document) Get(key string) any {
	return d[key]
}

// ID returns the raw _id value.
func (d Document) ID() any {
	return d["_id"]
}

// String returns the value under key as a string. Non-string scalars are
// formatted; absent, nil and composite values yield "".
func (d Document) String(key string) string {
	switch v := d[key].(type) {
	case nil:
		return ""
	case string:
		return v
	case int64:
		return fmt.Sprintf("%d", v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return fmt.Sprintf("%t", v)
	case time.Time:
		return v.UTC().Format(time.RFC3339Nano)
	case Document:
		if oid, ok := v[OIDKey].(string); ok {
			return oid
		}
		return ""
	default:
		return ""
	}
}

// Bool reports whether the value under key is exactly true.
func (d Document) Bool(key string) bool {
	b, ok := d[key].(bool)
	return ok && b
}

// Truthy reports whether the value under key is present and not a zero
// scalar (false, 0, NaN or ""). Documents, arrays and times are truthy.
func (d Document) Truthy(key string) bool {
	switch v := d[key].(type) {
	case nil:
		return false
	case bool:
		return v
	case string:
		return v != ""
	case int64:
		return v != 0
	case float64:
		return v != 0 && !math.IsNaN(v)
	default:
		return true
	}
}

// Sub returns the embedded document stored under key.
func (d Document) Sub(key string) (Document, bool) {
	sub, ok := d[key].(Document)
	return sub, ok
}

// Array returns the array stored under key.
func (d Document) Array(key string) ([]any, bool) {
	arr, ok := d[key].([]any)
	return arr, ok
}

// Label returns a short human label for log lines, preferring common name fields.
func (d Document) Label() string {
	for _, key := range []string{"accountName", "name", "title", "firstName", "guestFullNameOrOrgName", "transactionDescription", "email"} {
		if s := strings.TrimSpace(d.String(key)); s != "" {
			return s
		}
	}
	return ""
}

// Normalize converts driver and decoder values into the Document variant.
func Normalize(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case Document:
		out := make(Document, len(val))
		for k, inner := range val {
			out[k] = Normalize(inner)
		}
		return out
	case map[string]any:
		return Normalize(Document(val))
	case bson.M:
		return Normalize(Document(val))
	case bson.D:
		out := make(Document, len(val))
		for _, e := range val {
			out[e.Key] = Normalize(e.Value)
		}
		return out
	case bson.A:
		return Normalize([]any(val))
	case []any:
		out := make([]any, len(val))
		for i, inner := range val {
			out[i] = Normalize(inner)
		}
		return out
	case primitive.ObjectID:
		return Document{OIDKey: val.Hex()}
	case primitive.DateTime:
		return val.Time().UTC()
	case time.Time:
		return val.UTC()
	case primitive.Decimal128:
		return Document{DecimalKey: val.String()}
	case primitive.Timestamp:
		return time.Unix(int64(val.T), 0).UTC()
	case primitive.Null, primitive.Undefined:
		return nil
	case int:
		return int64(val)
	case int32:
		return int64(val)
	case int64:
		return val
	case float32:
		return float64(val)
	case float64, string, bool:
		return val
	default:
		return fmt.Sprint(val)
	}
}

// NormalizeDocument applies Normalize to a decoded document.
func NormalizeDocument(m bson.M) Document {
	doc, _ := Normalize(m).(Document)
	if doc == nil {
		doc = Document{}
	}
	return doc
}

// toBSON converts a variant value back into driver types for writes and filters.
func toBSON(v any) any {
	switch val := v.(type) {
	case Document:
		if hex, ok := val[OIDKey].(string); ok && len(val) == 1 {
			if oid, err := primitive.ObjectIDFromHex(hex); err == nil {
				return oid
			}
		}
		if s, ok := val[DecimalKey].(string); ok && len(val) == 1 {
			if d, err := primitive.ParseDecimal128(s); err == nil {
				return d
			}
		}
		out := bson.M{}
		for k, inner := range val {
			out[k] = toBSON(inner)
		}
		return out
	case map[string]any:
		return toBSON(Document(val))
	case []any:
		out := bson.A{}
		for _, inner := range val {
			out = append(out, toBSON(inner))
		}
		return out
	default:
		return val
	}
}
