package target

import (
	"context"

	"doc-migrator/internal/model"
)

// Row is a target row keyed by column name. NULL columns hold nil.
type Row map[string]any

// Tx groups inserts into one atomic unit.
type Tx interface {
	Insert(ctx context.Context, rec model.Record) error
	InsertMany(ctx context.Context, recs []model.Record) error
}

// Store is the relational store being migrated into.
type Store interface {
	// Exists reports whether a row with the given primary key exists.
	Exists(ctx context.Context, table, id string) (bool, error)
	Insert(ctx context.Context, rec model.Record) error
	Count(ctx context.Context, table string) (int64, error)
	CountWhere(ctx context.Context, table, column string, value any) (int64, error)
	// Find loads one row by primary key. No columns selects every column.
	Find(ctx context.Context, table, id string, columns ...string) (Row, bool, error)
	// WithTx runs fn inside a transaction, committing only if fn returns nil.
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	Close()
}
