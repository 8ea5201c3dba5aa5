// Package report exports migration failures and reconciliation results for
// remediation, as CSV files or a single XLSX workbook.
package report

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"doc-migrator/internal/migrate"
	"doc-migrator/internal/reconcile"
)

// Sheet names.
const (
	SheetFailures     = "Failures"
	SheetVerification = "Verification"
)

// ErrUnsupportedFormat is returned for report paths that are neither .csv nor .xlsx.
var ErrUnsupportedFormat = errors.New("unsupported report format")

// Sheet is a named table.
type Sheet struct {
	Name    string
	Headers []string
	Rows    [][]string
}

// Writer persists sheets at a path.
type Writer interface {
	Write(sheets []Sheet, filePath string) error
}

// NewWriter picks a writer from the file extension.
func NewWriter(filePath string) (Writer, error) {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".csv":
		return &CSVWriter{}, nil
	case ".xlsx":
		return &XLSXWriter{}, nil
	default:
		return nil, fmt.Errorf("%w: '%s' (use .csv or .xlsx)", ErrUnsupportedFormat, filePath)
	}
}

// Export writes the failures of summary and the reconciliation in rep to
// filePath. Either may be nil. The Failures sheet always comes first, empty
// when there was no migration, so each sheet keeps its file in CSV mode.
func Export(filePath string, summary *migrate.Summary, rep *reconcile.Report) error {
	if summary == nil && rep == nil {
		return nil
	}
	w, err := NewWriter(filePath)
	if err != nil {
		return err
	}
	var failures []migrate.Failure
	if summary != nil {
		failures = summary.Failures()
	}
	sheets := []Sheet{FailureSheet(failures)}
	if rep != nil {
		sheets = append(sheets, VerificationSheet(*rep))
	}
	return w.Write(sheets, filePath)
}

// FailureSheet lists failed documents with their error category.
func FailureSheet(failures []migrate.Failure) Sheet {
	s := Sheet{Name: SheetFailures, Headers: []string{"kind", "id", "label", "category", "error"}}
	for _, f := range failures {
		msg := ""
		if f.Err != nil {
			msg = f.Err.Error()
		}
		s.Rows = append(s.Rows, []string{f.Kind, f.ID, f.Label, f.Category(), msg})
	}
	return s
}

// VerificationSheet lists one row per kind count and one per sampled field.
func VerificationSheet(rep reconcile.Report) Sheet {
	s := Sheet{Name: SheetVerification, Headers: []string{"kind", "check", "id", "label", "source", "target", "match"}}
	for _, k := range rep.Kinds {
		if k.Err != nil {
			s.Rows = append(s.Rows, []string{k.Kind, "error", "", "", "", k.Err.Error(), "false"})
			continue
		}
		s.Rows = append(s.Rows, []string{k.Kind, "count", "", "",
			fmt.Sprint(k.SourceCount), fmt.Sprint(k.TargetCount), fmt.Sprint(k.CountMatch)})
		for _, smp := range k.Samples {
			if !smp.Exists {
				s.Rows = append(s.Rows, []string{k.Kind, "exists", smp.ID, smp.Label, "present", "missing", "false"})
				continue
			}
			for _, f := range smp.Fields {
				s.Rows = append(s.Rows, []string{k.Kind, f.Field, smp.ID, smp.Label, f.Source, f.Target, fmt.Sprint(f.Match)})
			}
			for _, table := range sortedKeys(smp.Derived) {
				s.Rows = append(s.Rows, []string{k.Kind, table, smp.ID, smp.Label, "", fmt.Sprint(smp.Derived[table]), "true"})
			}
		}
	}
	return s
}

func sortedKeys(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func ensureDir(filePath string) error {
	dir := filepath.Dir(filePath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory for '%s': %w", filePath, err)
		}
	}
	return nil
}
