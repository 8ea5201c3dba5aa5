package migrate

import (
	"errors"
	"fmt"
)

// ErrAlreadyMigrated marks a document whose record already exists in the
// target. It is a skip, not a failure.
var ErrAlreadyMigrated = errors.New("record already migrated")

// errDropped stops a commit whose record failed referential validation.
var errDropped = errors.New("record dropped by reference check")

// CommitError is a write the target store rejected. The document is recorded
// as failed and the run continues.
type CommitError struct {
	Table string
	ID    string
	Err   error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("commit %s(%s) failed: %v", e.Table, e.ID, e.Err)
}

func (e *CommitError) Unwrap() error { return e.Err }

// FatalError is a source or target failure that aborts the whole run.
type FatalError struct {
	Kind string
	Op   string
	Err  error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("%s migration aborted during %s: %v", e.Kind, e.Op, e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }
