package target

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"doc-migrator/internal/model"
)

// MemoryStore is an in-process Store. It enforces primary key uniqueness and
// transaction atomicity, and backs dry runs and tests.
type MemoryStore struct {
	mu     sync.RWMutex
	tables map[string]map[string]Row

	// Reject, when set, is consulted before every insert; a non-nil error
	// is returned as if the store had rejected the row.
	Reject func(rec model.Record) error
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tables: make(map[string]map[string]Row)}
}

func (m *MemoryStore) Exists(_ context.Context, table, id string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.tables[table][id]
	return ok, nil
}

func (m *MemoryStore) Insert(ctx context.Context, rec model.Record) error {
	return m.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		return tx.Insert(ctx, rec)
	})
}

func (m *MemoryStore) Count(_ context.Context, table string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.tables[table])), nil
}

func (m *MemoryStore) CountWhere(_ context.Context, table, column string, value any) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var n int64
	for _, row := range m.tables[table] {
		if reflect.DeepEqual(row[column], value) {
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) Find(_ context.Context, table, id string, columns ...string) (Row, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	row, ok := m.tables[table][id]
	if !ok {
		return nil, false, nil
	}
	out := make(Row, len(row))
	for k, v := range row {
		out[k] = v
	}
	if len(columns) > 0 {
		projected := make(Row, len(columns))
		for _, c := range columns {
			projected[c] = out[c]
		}
		out = projected
	}
	return out, true, nil
}

// WithTx stages inserts and applies them only if fn succeeds.
func (m *MemoryStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	tx := &memTx{store: m, staged: make(map[string]map[string]Row)}
	if err := fn(ctx, tx); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, table := range tx.order {
		for id := range tx.staged[table] {
			if _, dup := m.tables[table][id]; dup {
				return duplicateKeyError(table, id)
			}
		}
	}
	for table, rows := range tx.staged {
		if m.tables[table] == nil {
			m.tables[table] = make(map[string]Row)
		}
		for id, row := range rows {
			m.tables[table][id] = row
		}
	}
	return nil
}

func (m *MemoryStore) Close() {}

type memTx struct {
	store  *MemoryStore
	staged map[string]map[string]Row
	order  []string
}

func (t *memTx) Insert(_ context.Context, rec model.Record) error {
	if t.store.Reject != nil {
		if err := t.store.Reject(rec); err != nil {
			return fmt.Errorf("insert into '%s' failed: %w", rec.Table(), err)
		}
	}
	table, id := rec.Table(), rec.PrimaryKey()
	if _, dup := t.staged[table][id]; dup {
		return duplicateKeyError(table, id)
	}
	if exists, _ := t.store.Exists(context.Background(), table, id); exists {
		return duplicateKeyError(table, id)
	}
	if t.staged[table] == nil {
		t.staged[table] = make(map[string]Row)
		t.order = append(t.order, table)
	}
	t.staged[table][id] = rowOf(rec)
	return nil
}

func (t *memTx) InsertMany(ctx context.Context, recs []model.Record) error {
	for _, rec := range recs {
		if err := t.Insert(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

func duplicateKeyError(table, id string) error {
	return fmt.Errorf("duplicate key value violates unique constraint \"%s_pkey\" (id %s)", table, id)
}

// rowOf flattens a record into a Row, dereferencing nullable columns the
// way a database read would return them.
func rowOf(rec model.Record) Row {
	cols, vals := rec.Columns(), rec.Values()
	row := make(Row, len(cols))
	for i, c := range cols {
		row[c] = deref(vals[i])
	}
	return row
}

func deref(v any) any {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return nil
	}
	if rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil
		}
		return rv.Elem().Interface()
	}
	return v
}
