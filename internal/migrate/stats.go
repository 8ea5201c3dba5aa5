package migrate

import (
	"errors"
	"time"

	"doc-migrator/internal/logging"
	"doc-migrator/internal/refcheck"
	"doc-migrator/internal/transform"
	"doc-migrator/internal/util"
)

// Status is the result of processing one document.
type Status int

const (
	StatusCreated  Status = iota // record (and derived records) written
	StatusSkipped                // already present in the target
	StatusDropped                // rejected by referential validation
	StatusFiltered               // excluded by the configured filter
	StatusFailed                 // mapping, probe or commit error
)

func (s Status) String() string {
	switch s {
	case StatusCreated:
		return "created"
	case StatusSkipped:
		return "skipped"
	case StatusDropped:
		return "dropped"
	case StatusFiltered:
		return "filtered"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome is the per-document result handed back to the driver.
type Outcome struct {
	ID      string
	Label   string
	Status  Status
	Derived int
	Nulled  []*refcheck.ReferenceError
	Dropped *refcheck.ReferenceError
	Err     error
}

// Failure identifies a document that could not be migrated.
type Failure struct {
	Kind  string
	ID    string
	Label string
	Err   error
}

// Category classifies the failure for remediation reports.
func (f Failure) Category() string {
	var vErr *transform.ValidationError
	var cErr *CommitError
	switch {
	case errors.As(f.Err, &vErr):
		return "transform"
	case errors.As(f.Err, &cErr):
		return "commit"
	case errors.Is(f.Err, ErrFilter):
		return "filter"
	default:
		return "lookup"
	}
}

// Stats aggregates the outcomes of one entity kind.
type Stats struct {
	Kind       string
	Collection string
	Total      int64
	Processed  int
	Created    int
	Skipped    int
	Dropped    int
	Filtered   int
	Failed     int
	Nulled     int
	Derived    int
	Failures   []Failure
	Elapsed    time.Duration
}

func (s *Stats) record(o Outcome) {
	s.Processed++
	s.Nulled += len(o.Nulled)
	switch o.Status {
	case StatusCreated:
		s.Created++
		s.Derived += o.Derived
	case StatusSkipped:
		s.Skipped++
	case StatusDropped:
		s.Dropped++
	case StatusFiltered:
		s.Filtered++
	case StatusFailed:
		s.Failed++
		s.Failures = append(s.Failures, Failure{Kind: s.Kind, ID: o.ID, Label: o.Label, Err: o.Err})
	}
}

// Summary collects the stats of every kind migrated in one run.
type Summary struct {
	Runs []*Stats
}

// Failures returns every failed document across kinds, in run order.
func (s *Summary) Failures() []Failure {
	var out []Failure
	for _, r := range s.Runs {
		out = append(out, r.Failures...)
	}
	return out
}

// Failed returns the number of failed documents across kinds.
func (s *Summary) Failed() int {
	n := 0
	for _, r := range s.Runs {
		n += r.Failed
	}
	return n
}

// Log writes the end-of-run summary and the list of failed documents.
func (s *Summary) Log() {
	logging.Logf(logging.Info, "=== Migration Summary ===")
	for _, r := range s.Runs {
		logging.Logf(logging.Info, "%s: %d/%d processed, %d created, %d skipped, %d dropped, %d filtered, %d failed (%d references nulled, %d derived records) in %s",
			r.Kind, r.Processed, r.Total, r.Created, r.Skipped, r.Dropped, r.Filtered, r.Failed, r.Nulled, r.Derived, r.Elapsed.Round(time.Millisecond))
	}
	for _, r := range s.Runs {
		if len(r.Failures) == 0 {
			continue
		}
		logging.Logf(logging.Warning, "%s errors:", r.Kind)
		for _, f := range r.Failures {
			logging.Logf(logging.Warning, "  - %s: %v", util.Label(f.Label, f.ID), f.Err)
		}
	}
}
