// Package refcheck validates foreign key fields of transformed records against
// the target store before they are committed.
package refcheck

import (
	"context"
	"fmt"

	"doc-migrator/internal/logging"
	"doc-migrator/internal/model"
	"doc-migrator/internal/target"
)

// Action is what happens to a record whose reference is dangling.
type Action int

const (
	// NullOut clears the reference and its dependent fields.
	NullOut Action = iota
	// Drop skips the whole record.
	Drop
)

func (a Action) String() string {
	if a == Drop {
		return "dropped"
	}
	return "nulled"
}

// Reference is one foreign key field of a record.
type Reference struct {
	Field string
	Table string
	// ID points at the record field holding the key. A nil *ID is not checked.
	ID        **string
	OnMissing Action
	// Dependents are cleared together with ID, e.g. a cached account name.
	Dependents []**string
	// OnNull runs after the reference has been cleared.
	OnNull func()
}

// ReferenceError describes a dangling reference.
type ReferenceError struct {
	Field  string
	Table  string
	ID     string
	Action Action
}

func (e *ReferenceError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s: no reference to %s (%s)", e.Field, e.Table, e.Action)
	}
	return fmt.Sprintf("%s: %s(%s) does not exist (%s)", e.Field, e.Table, e.ID, e.Action)
}

// Result is the outcome of validating one record.
type Result struct {
	// Nulled lists the references that were cleared.
	Nulled []*ReferenceError
	// Dropped is set when the record must not be committed.
	Dropped *ReferenceError
}

// Validator probes the target store for referenced rows. Probe results are
// memoised for the validator's lifetime, so referenced tables must not be
// written while it is in use.
type Validator struct {
	store target.Store
	memo  map[string]map[string]bool
}

// New creates a Validator over store.
func New(store target.Store) *Validator {
	return &Validator{store: store, memo: make(map[string]map[string]bool)}
}

// Exists reports whether table has a row with the given id.
func (v *Validator) Exists(ctx context.Context, table, id string) (bool, error) {
	if known, ok := v.memo[table][id]; ok {
		return known, nil
	}
	exists, err := v.store.Exists(ctx, table, id)
	if err != nil {
		return false, fmt.Errorf("reference probe %s(%s) failed: %w", table, id, err)
	}
	if v.memo[table] == nil {
		v.memo[table] = make(map[string]bool)
	}
	v.memo[table][id] = exists
	return exists, nil
}

// Check validates refs in order. It stops at the first reference whose
// action is Drop.
func (v *Validator) Check(ctx context.Context, refs []Reference) (Result, error) {
	var res Result
	for _, ref := range refs {
		if ref.ID == nil || *ref.ID == nil {
			continue
		}
		id := **ref.ID
		exists, err := v.Exists(ctx, ref.Table, id)
		if err != nil {
			return res, err
		}
		if exists {
			continue
		}
		rErr := &ReferenceError{Field: ref.Field, Table: ref.Table, ID: id, Action: ref.OnMissing}
		if ref.OnMissing == Drop {
			logging.Logf(logging.Warning, "Reference %s, skipping record", rErr.Error())
			res.Dropped = rErr
			return res, nil
		}
		*ref.ID = nil
		for _, dep := range ref.Dependents {
			*dep = nil
		}
		if ref.OnNull != nil {
			ref.OnNull()
		}
		logging.Logf(logging.Debug, "Reference %s", rErr.Error())
		res.Nulled = append(res.Nulled, rErr)
	}
	return res, nil
}

// Donation clears a missing donor (turning the donation into a guest
// donation), a missing paid-to account and a missing confirmer.
func (v *Validator) Donation(ctx context.Context, d *model.Donation) (Result, error) {
	return v.Check(ctx, []Reference{
		{Field: "donorId", Table: model.TableUserProfiles, ID: &d.DonorID, OnMissing: NullOut, OnNull: func() { d.IsGuest = true }},
		{Field: "paidToAccountId", Table: model.TableAccounts, ID: &d.PaidToAccountID, OnMissing: NullOut},
		{Field: "confirmedById", Table: model.TableUserProfiles, ID: &d.ConfirmedByID, OnMissing: NullOut},
	})
}

// Expense clears a missing account together with its cached name.
func (v *Validator) Expense(ctx context.Context, e *model.Expense) (Result, error) {
	return v.Check(ctx, []Reference{
		{Field: "accountId", Table: model.TableAccounts, ID: &e.AccountID, OnMissing: NullOut, Dependents: []**string{&e.AccountName}},
	})
}

// Transaction drops a transaction with no endpoints at all, or with any
// endpoint that does not exist.
func (v *Validator) Transaction(ctx context.Context, t *model.Transaction) (Result, error) {
	if t.FromAccountID == nil && t.ToAccountID == nil {
		rErr := &ReferenceError{Field: "fromAccountId/toAccountId", Table: model.TableAccounts, Action: Drop}
		logging.Logf(logging.Info, "Skipping transaction with unknown from and to accounts: %s", t.ID)
		return Result{Dropped: rErr}, nil
	}
	return v.Check(ctx, []Reference{
		{Field: "fromAccountId", Table: model.TableAccounts, ID: &t.FromAccountID, OnMissing: Drop},
		{Field: "toAccountId", Table: model.TableAccounts, ID: &t.ToAccountID, OnMissing: Drop},
	})
}
