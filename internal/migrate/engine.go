package migrate

import (
	"context"
	"fmt"

	"doc-migrator/internal/model"
	"doc-migrator/internal/target"
)

// Engine writes records into the target store, skipping any whose primary
// key is already present. Records with derived records commit in one
// transaction.
type Engine struct {
	store target.Store
}

// NewEngine creates an Engine over store.
func NewEngine(store target.Store) *Engine {
	return &Engine{store: store}
}

// Migrated reports whether rec already exists in the target.
func (e *Engine) Migrated(ctx context.Context, rec model.Record) (bool, error) {
	exists, err := e.store.Exists(ctx, rec.Table(), rec.PrimaryKey())
	if err != nil {
		return false, fmt.Errorf("existence probe %s(%s) failed: %w", rec.Table(), rec.PrimaryKey(), err)
	}
	return exists, nil
}

// Commit inserts primary and, in the same transaction, derived.
func (e *Engine) Commit(ctx context.Context, primary model.Record, derived []model.Record) error {
	var err error
	if len(derived) == 0 {
		err = e.store.Insert(ctx, primary)
	} else {
		err = e.store.WithTx(ctx, func(ctx context.Context, tx target.Tx) error {
			if err := tx.Insert(ctx, primary); err != nil {
				return err
			}
			return tx.InsertMany(ctx, derived)
		})
	}
	if err != nil {
		return &CommitError{Table: primary.Table(), ID: primary.PrimaryKey(), Err: err}
	}
	return nil
}

// Apply probes for primary and, when it is absent, runs prepare and commits
// primary together with the derived records prepare returns. Existing records
// return StatusSkipped and ErrAlreadyMigrated without calling prepare. A nil
// prepare commits primary alone.
func (e *Engine) Apply(ctx context.Context, primary model.Record, prepare func(ctx context.Context) ([]model.Record, error)) (Status, error) {
	exists, err := e.Migrated(ctx, primary)
	if err != nil {
		return StatusFailed, err
	}
	if exists {
		return StatusSkipped, ErrAlreadyMigrated
	}
	var derived []model.Record
	if prepare != nil {
		if derived, err = prepare(ctx); err != nil {
			return StatusFailed, err
		}
	}
	if err := e.Commit(ctx, primary, derived); err != nil {
		return StatusFailed, err
	}
	return StatusCreated, nil
}
