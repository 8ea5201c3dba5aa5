package source

import (
	"context"
	"reflect"
	"sort"
	"strconv"
	"sync"
	"time"
)

// MemoryStore is an in-process Store. It backs tests and the file-dump source.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string][]Document
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string][]Document)}
}

// Seed appends documents to a collection without any checks.
func (m *MemoryStore) Seed(collection string, docs ...Document) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range docs {
		m.collections[collection] = append(m.collections[collection], d)
	}
}

// All returns a copy of the documents in a collection.
func (m *MemoryStore) All(collection string) []Document {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Document(nil), m.collections[collection]...)
}

func (m *MemoryStore) Count(_ context.Context, collection string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.collections[collection])), nil
}

func (m *MemoryStore) Find(_ context.Context, collection string, q Query) (Cursor, error) {
	m.mu.RLock()
	var docs []Document
	for _, d := range m.collections[collection] {
		if matches(d, q.Filter) {
			docs = append(docs, d)
		}
	}
	m.mu.RUnlock()

	if q.SortAsc != "" {
		sort.SliceStable(docs, func(i, j int) bool {
			c, ok := compareValues(docs[i][q.SortAsc], docs[j][q.SortAsc])
			return ok && c < 0
		})
	}
	if q.Limit > 0 && int64(len(docs)) > q.Limit {
		docs = docs[:q.Limit]
	}
	return &sliceCursor{docs: docs, pos: -1}, nil
}

func (m *MemoryStore) FindOne(ctx context.Context, collection string, filter ...Cond) (Document, bool, error) {
	cur, err := m.Find(ctx, collection, Query{Filter: filter, Limit: 1})
	if err != nil {
		return nil, false, err
	}
	docs, err := Drain(ctx, cur)
	if err != nil || len(docs) == 0 {
		return nil, false, err
	}
	return docs[0], true, nil
}

func (m *MemoryStore) InsertMany(_ context.Context, collection string, docs []Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.collections[collection] = append(m.collections[collection], docs...)
	return nil
}

func (m *MemoryStore) Upsert(_ context.Context, collection string, id any, doc Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := make(Document, len(doc)+1)
	for k, v := range doc {
		stored[k] = v
	}
	stored["_id"] = id
	for i, existing := range m.collections[collection] {
		if equalValues(existing.ID(), id) {
			m.collections[collection][i] = stored
			return nil
		}
	}
	m.collections[collection] = append(m.collections[collection], stored)
	return nil
}

func (m *MemoryStore) Sample(ctx context.Context, collection string, n int) ([]Document, error) {
	if n <= 0 {
		return nil, nil
	}
	cur, err := m.Find(ctx, collection, Query{Limit: int64(n)})
	if err != nil {
		return nil, err
	}
	return Drain(ctx, cur)
}

func (m *MemoryStore) Close(context.Context) error { return nil }

// sliceCursor iterates over a pre-materialised result set.
type sliceCursor struct {
	docs []Document
	pos  int
}

func (c *sliceCursor) Next(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}
	if c.pos+1 >= len(c.docs) {
		return false
	}
	c.pos++
	return true
}

func (c *sliceCursor) Document() Document {
	if c.pos < 0 || c.pos >= len(c.docs) {
		return nil
	}
	return c.docs[c.pos]
}

func (c *sliceCursor) Err() error                  { return nil }
func (c *sliceCursor) Close(context.Context) error { return nil }

// matches reports whether doc satisfies every condition.
func matches(doc Document, filter []Cond) bool {
	for _, cond := range filter {
		v := doc[cond.Field]
		switch cond.Op {
		case OpEq:
			if !equalValues(v, cond.Value) {
				return false
			}
		case OpGte:
			c, ok := compareValues(v, cond.Value)
			if !ok || c < 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// equalValues compares two variant values, treating an {"$oid": hex} envelope
// as equal to its hex string and comparing times by instant.
func equalValues(a, b any) bool {
	ca, cb := scalar(a), scalar(b)
	if ta, ok := ca.(time.Time); ok {
		tb, ok := cb.(time.Time)
		return ok && ta.Equal(tb)
	}
	return reflect.DeepEqual(ca, cb)
}

// compareValues orders two scalar values of the same kind.
func compareValues(a, b any) (int, bool) {
	switch va := scalar(a).(type) {
	case time.Time:
		vb, ok := scalar(b).(time.Time)
		if !ok {
			return 0, false
		}
		return va.Compare(vb), true
	case float64:
		vb, ok := scalar(b).(float64)
		if !ok {
			return 0, false
		}
		switch {
		case va < vb:
			return -1, true
		case va > vb:
			return 1, true
		}
		return 0, true
	case string:
		vb, ok := scalar(b).(string)
		if !ok {
			return 0, false
		}
		switch {
		case va < vb:
			return -1, true
		case va > vb:
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

// scalar unwraps id and date envelopes and widens numbers for comparison.
func scalar(v any) any {
	switch val := v.(type) {
	case Document:
		if hex, ok := val[OIDKey].(string); ok {
			return hex
		}
		if raw, ok := val[DateKey]; ok {
			if t, ok := envelopeTime(raw); ok {
				return t
			}
		}
		return val
	case time.Time:
		return val.UTC()
	case int64:
		return float64(val)
	case int:
		return float64(val)
	case int32:
		return float64(val)
	default:
		return v
	}
}

// envelopeTime decodes the payload of a {"$date": ...} envelope.
func envelopeTime(raw any) (time.Time, bool) {
	switch d := raw.(type) {
	case string:
		t, err := time.Parse(time.RFC3339Nano, d)
		return t.UTC(), err == nil
	case float64:
		return time.UnixMilli(int64(d)).UTC(), true
	case int64:
		return time.UnixMilli(d).UTC(), true
	case Document:
		if s, ok := d["$numberLong"].(string); ok {
			ms, err := strconv.ParseInt(s, 10, 64)
			return time.UnixMilli(ms).UTC(), err == nil
		}
	}
	return time.Time{}, false
}

