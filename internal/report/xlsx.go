package report

import (
	"fmt"

	"doc-migrator/internal/logging"

	"github.com/xuri/excelize/v2"
)

// defaultSheet is the sheet excelize creates with a new workbook.
const defaultSheet = "Sheet1"

// XLSXWriter writes all sheets into one workbook.
type XLSXWriter struct{}

// Write saves sheets to an Excel file, replacing it if present.
func (XLSXWriter) Write(sheets []Sheet, filePath string) error {
	if err := ensureDir(filePath); err != nil {
		return fmt.Errorf("XLSXWriter %w", err)
	}

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			logging.Logf(logging.Warning, "XLSXWriter failed to close workbook '%s': %v", filePath, err)
		}
	}()

	for i, sheet := range sheets {
		if i == 0 {
			if err := f.SetSheetName(defaultSheet, sheet.Name); err != nil {
				return fmt.Errorf("XLSXWriter failed to rename default sheet to '%s': %w", sheet.Name, err)
			}
		} else if _, err := f.NewSheet(sheet.Name); err != nil {
			return fmt.Errorf("XLSXWriter failed to create sheet '%s': %w", sheet.Name, err)
		}
		if err := writeSheet(f, sheet); err != nil {
			return err
		}
	}
	f.SetActiveSheet(0)

	if err := f.SaveAs(filePath); err != nil {
		return fmt.Errorf("XLSXWriter failed to save file '%s': %w", filePath, err)
	}
	logging.Logf(logging.Info, "XLSXWriter wrote %d sheets to %s", len(sheets), filePath)
	return nil
}

func writeSheet(f *excelize.File, sheet Sheet) error {
	header := make([]interface{}, len(sheet.Headers))
	for i, h := range sheet.Headers {
		header[i] = h
	}
	if err := f.SetSheetRow(sheet.Name, "A1", &header); err != nil {
		return fmt.Errorf("XLSXWriter failed to write header row to sheet '%s': %w", sheet.Name, err)
	}
	for i, row := range sheet.Rows {
		rowNum := i + 2
		cells := make([]interface{}, len(row))
		for j, v := range row {
			cells[j] = v
		}
		start, err := excelize.CoordinatesToCellName(1, rowNum)
		if err != nil {
			return fmt.Errorf("XLSXWriter failed to calculate cell coordinates for row %d: %w", rowNum, err)
		}
		if err := f.SetSheetRow(sheet.Name, start, &cells); err != nil {
			return fmt.Errorf("XLSXWriter failed to write row %d to sheet '%s': %w", rowNum, sheet.Name, err)
		}
	}
	return nil
}
