package exporter

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"gaenroll/pkg/contracts/domain"
)

// enrollmentSheet is the single data sheet in exported workbooks.
const enrollmentSheet = "Enrollment"

// saveWorkbook writes records as an XLSX workbook file.
func saveWorkbook(fullPath string, headers []string, records []domain.TidyRecord) error {
	f, err := buildWorkbook(headers, records)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := f.SaveAs(fullPath); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}

// writeWorkbook streams records as an XLSX workbook to w.
func writeWorkbook(w io.Writer, headers []string, records []domain.TidyRecord) error {
	f, err := buildWorkbook(headers, records)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// buildWorkbook assembles the workbook in memory. Suppressed counts
// leave their cells empty rather than carrying a placeholder value.
func buildWorkbook(headers []string, records []domain.TidyRecord) (*excelize.File, error) {
	f := excelize.NewFile()

	index, err := f.NewSheet(enrollmentSheet)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to drop default sheet: %w", err)
	}

	for i, header := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to map header cell: %w", err)
		}
		if err := f.SetCellValue(enrollmentSheet, cell, header); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to write header: %w", err)
		}
	}

	for rowIdx, record := range records {
		row := rowIdx + 2
		for col, value := range recordToCellValues(record) {
			if value == nil {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(col+1, row)
			if err != nil {
				f.Close()
				return nil, fmt.Errorf("failed to map cell: %w", err)
			}
			if err := f.SetCellValue(enrollmentSheet, cell, value); err != nil {
				f.Close()
				return nil, fmt.Errorf("failed to write cell: %w", err)
			}
		}
	}

	return f, nil
}

// recordToCellValues maps a record to typed cell values in header order.
// Counts and percentages stay numeric so Excel can aggregate them.
func recordToCellValues(record domain.TidyRecord) []interface{} {
	values := []interface{}{
		record.DistrictCode,
		record.DistrictName,
		record.InstitutionNumber,
		record.InstitutionName,
		record.EndYear,
		record.GradeLevel,
		record.Subgroup,
		nil, // n_students, set below when published
		nil, // pct, set below when published
		record.IsState,
		record.IsDistrict,
		record.IsSchool,
	}
	if record.NStudents != nil {
		values[7] = *record.NStudents
	}
	if record.Pct != nil {
		values[8] = *record.Pct
	}
	return values
}
