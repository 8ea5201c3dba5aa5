package target

import (
	"context"

	"doc-migrator/internal/model"
)

// Overlay reads through to a base store but captures every write in memory.
// It lets a dry run exercise existence probes and foreign key checks against
// the live target, including rows "created" earlier in the same run, without
// modifying it.
type Overlay struct {
	base    Store
	pending *MemoryStore
}

// NewOverlay wraps base.
func NewOverlay(base Store) *Overlay {
	return &Overlay{base: base, pending: NewMemoryStore()}
}

// Pending returns the number of rows captured for table.
func (o *Overlay) Pending(ctx context.Context, table string) int64 {
	n, _ := o.pending.Count(ctx, table)
	return n
}

func (o *Overlay) Exists(ctx context.Context, table, id string) (bool, error) {
	if ok, _ := o.pending.Exists(ctx, table, id); ok {
		return true, nil
	}
	return o.base.Exists(ctx, table, id)
}

func (o *Overlay) Insert(ctx context.Context, rec model.Record) error {
	return o.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		return tx.Insert(ctx, rec)
	})
}

func (o *Overlay) Count(ctx context.Context, table string) (int64, error) {
	n, err := o.base.Count(ctx, table)
	if err != nil {
		return 0, err
	}
	return n + o.Pending(ctx, table), nil
}

func (o *Overlay) CountWhere(ctx context.Context, table, column string, value any) (int64, error) {
	n, err := o.base.CountWhere(ctx, table, column, value)
	if err != nil {
		return 0, err
	}
	p, _ := o.pending.CountWhere(ctx, table, column, value)
	return n + p, nil
}

func (o *Overlay) Find(ctx context.Context, table, id string, columns ...string) (Row, bool, error) {
	if row, ok, _ := o.pending.Find(ctx, table, id, columns...); ok {
		return row, true, nil
	}
	return o.base.Find(ctx, table, id, columns...)
}

// WithTx stages rows in memory. A row whose key already exists in the base
// store is rejected as a duplicate.
func (o *Overlay) WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	return o.pending.WithTx(ctx, func(ctx context.Context, tx Tx) error {
		return fn(ctx, &overlayTx{ctx: ctx, base: o.base, inner: tx})
	})
}

// Close closes the base store.
func (o *Overlay) Close() { o.base.Close() }

type overlayTx struct {
	ctx   context.Context
	base  Store
	inner Tx
}

func (t *overlayTx) Insert(ctx context.Context, rec model.Record) error {
	exists, err := t.base.Exists(ctx, rec.Table(), rec.PrimaryKey())
	if err != nil {
		return err
	}
	if exists {
		return duplicateKeyError(rec.Table(), rec.PrimaryKey())
	}
	return t.inner.Insert(ctx, rec)
}

func (t *overlayTx) InsertMany(ctx context.Context, recs []model.Record) error {
	for _, rec := range recs {
		if err := t.Insert(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}
