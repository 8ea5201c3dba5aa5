package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"doc-migrator/internal/logging"
)

// CSVWriter writes one CSV file per sheet. The first sheet goes to the given
// path; further sheets go next to it, suffixed with the lower-cased sheet name.
type CSVWriter struct{}

// SheetPath returns the file a sheet is written to.
func (CSVWriter) SheetPath(filePath string, index int, name string) string {
	if index == 0 {
		return filePath
	}
	ext := filepath.Ext(filePath)
	return strings.TrimSuffix(filePath, ext) + "_" + strings.ToLower(name) + ext
}

// Write saves every sheet, replacing existing files.
func (cw CSVWriter) Write(sheets []Sheet, filePath string) error {
	if err := ensureDir(filePath); err != nil {
		return fmt.Errorf("CSVWriter %w", err)
	}
	for i, sheet := range sheets {
		path := cw.SheetPath(filePath, i, sheet.Name)
		if err := writeCSV(sheet, path); err != nil {
			return err
		}
		logging.Logf(logging.Info, "CSVWriter wrote %d %s rows to %s", len(sheet.Rows), strings.ToLower(sheet.Name), path)
	}
	return nil
}

func writeCSV(sheet Sheet, path string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("CSVWriter failed to create file '%s': %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("CSVWriter file close error for '%s': %w", path, cerr)
		}
	}()

	w := csv.NewWriter(f)
	if err := w.Write(sheet.Headers); err != nil {
		return fmt.Errorf("CSVWriter failed to write header to '%s': %w", path, err)
	}
	if err := w.WriteAll(sheet.Rows); err != nil {
		return fmt.Errorf("CSVWriter failed to write rows to '%s': %w", path, err)
	}
	return nil
}
