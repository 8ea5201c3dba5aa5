package source

import (
	"context"
	"time"
)

// Op is a comparison operator in a Cond.
type Op int

const (
	OpEq  Op = iota // field == value
	OpGte           // field >= value
)

// Cond is a single field predicate. Conditions in a Query are ANDed.
type Cond struct {
	Field string
	Op    Op
	Value any
}

// Eq builds an equality condition.
func Eq(field string, value any) Cond { return Cond{Field: field, Op: OpEq, Value: value} }

// Since builds an on-or-after condition on a date field.
func Since(field string, t time.Time) Cond { return Cond{Field: field, Op: OpGte, Value: t} }

// Query selects documents from one collection.
type Query struct {
	Filter []Cond
	// SortAsc orders results ascending by this field. Empty keeps natural order.
	SortAsc string
	// Limit caps the number of results. Zero means unlimited.
	Limit int64
	// BatchSize hints how many documents the server returns per round trip.
	BatchSize int32
}

// Cursor is a blocking pull iterator over query results.
type Cursor interface {
	// Next advances to the next document, fetching from the store as needed.
	Next(ctx context.Context) bool
	// Document returns the current document.
	Document() Document
	// Err returns the first error encountered while iterating.
	Err() error
	Close(ctx context.Context) error
}

// Store is the document store being migrated from. The cross-reference
// indexer also writes mappings and its watermark through it.
type Store interface {
	Count(ctx context.Context, collection string) (int64, error)
	Find(ctx context.Context, collection string, q Query) (Cursor, error)
	FindOne(ctx context.Context, collection string, filter ...Cond) (Document, bool, error)
	InsertMany(ctx context.Context, collection string, docs []Document) error
	// Upsert replaces the document with the given _id, inserting it if absent.
	Upsert(ctx context.Context, collection string, id any, doc Document) error
	// Sample returns up to n documents in natural order.
	Sample(ctx context.Context, collection string, n int) ([]Document, error)
	Close(ctx context.Context) error
}

// Drain reads every remaining document from c and closes it.
func Drain(ctx context.Context, c Cursor) ([]Document, error) {
	defer c.Close(ctx)
	var docs []Document
	for c.Next(ctx) {
		docs = append(docs, c.Document())
	}
	return docs, c.Err()
}
