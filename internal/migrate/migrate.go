// Package migrate drives the backfill: it walks source collections in
// batches, maps and validates every document, and commits the resulting
// records idempotently.
package migrate

import (
	"context"
	"fmt"
	"time"

	"doc-migrator/internal/config"
	"doc-migrator/internal/fanout"
	"doc-migrator/internal/logging"
	"doc-migrator/internal/refcheck"
	"doc-migrator/internal/source"
	"doc-migrator/internal/target"
	"doc-migrator/internal/transform"
)

// Options tune a Migrator.
type Options struct {
	BatchSize   int
	Collections config.CollectionsConfig
	// Filters maps an entity kind to a govaluate expression.
	Filters map[string]string
	// Now overrides the migration clock.
	Now func() time.Time
}

// Migrator wires the driver, mappers, validator and engine for one run.
type Migrator struct {
	driver      *Driver
	engine      *Engine
	validator   *refcheck.Validator
	mapper      *transform.Mapper
	fanout      *fanout.Mapper
	collections config.CollectionsConfig
	filters     map[string]*Filter
}

// New creates a Migrator reading from src and writing to dst.
func New(src source.Store, dst target.Store, opts Options) (*Migrator, error) {
	filters := make(map[string]*Filter, len(opts.Filters))
	for kind, expr := range opts.Filters {
		f, err := NewFilter(expr)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", kind, err)
		}
		filters[kind] = f
	}
	return &Migrator{
		driver:      NewDriver(src, opts.BatchSize),
		engine:      NewEngine(dst),
		validator:   refcheck.New(dst),
		mapper:      &transform.Mapper{Now: opts.Now},
		fanout:      &fanout.Mapper{Now: opts.Now},
		collections: opts.Collections,
		filters:     filters,
	}, nil
}

// Finance migrates accounts, donations, transactions and expenses in that
// order, since later kinds reference earlier ones.
func (m *Migrator) Finance(ctx context.Context) (*Summary, error) {
	return m.Run(ctx, FinanceKinds...)
}

// Users migrates user profiles with their roles, phones, addresses and links.
func (m *Migrator) Users(ctx context.Context) (*Summary, error) {
	return m.Run(ctx, UserKinds...)
}

// Run migrates the given kinds sequentially. It stops at the first fatal
// error and returns the stats gathered so far.
func (m *Migrator) Run(ctx context.Context, kinds ...string) (*Summary, error) {
	summary := &Summary{}
	for _, kind := range kinds {
		p, err := m.pipeline(kind, m.collections.Collection(kind))
		if err != nil {
			return summary, err
		}
		stats, err := m.driver.Run(ctx, p)
		summary.Runs = append(summary.Runs, stats)
		if err != nil {
			logging.Logf(logging.Error, "Migration failed: %v", err)
			return summary, err
		}
	}
	return summary, nil
}
