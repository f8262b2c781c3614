package exporter

import (
	"fmt"
	"io"
	"sort"

	"gaenroll/internal/config"
	"gaenroll/pkg/contracts/domain"
)

// EnrollmentExporter renders tidy enrollment records as CSV or XLSX.
type EnrollmentExporter struct {
	csvWriter *CSVWriter
}

// NewEnrollmentExporter creates an exporter rooted at the application paths.
func NewEnrollmentExporter(paths *config.Paths) *EnrollmentExporter {
	return &EnrollmentExporter{
		csvWriter: NewCSVWriter(paths),
	}
}

// Export writes records to a file in the requested format and returns
// the resolved output path.
func (e *EnrollmentExporter) Export(records []domain.TidyRecord, outputPath string, format Format) (string, error) {
	switch format {
	case FormatXLSX:
		return e.exportXLSX(records, outputPath)
	default:
		return e.exportCSV(records, outputPath)
	}
}

// StreamCSV writes records as CSV to an arbitrary writer. The HTTP
// export endpoint streams responses through this.
func (e *EnrollmentExporter) StreamCSV(w io.Writer, records []domain.TidyRecord) error {
	sortRecords(records)
	return writeCSVContent(w, WriteOptions{
		Headers: e.getHeaders(),
		Records: e.toCSVRows(records),
	})
}

// StreamXLSX writes records as an XLSX workbook to an arbitrary writer.
func (e *EnrollmentExporter) StreamXLSX(w io.Writer, records []domain.TidyRecord) error {
	sortRecords(records)
	return writeWorkbook(w, e.getHeaders(), records)
}

// ExportFilename builds the conventional file name for an export
// covering the given years.
func ExportFilename(years []int, format Format) string {
	if len(years) == 0 {
		return fmt.Sprintf("enrollment.%s", format)
	}
	min, max := years[0], years[0]
	for _, year := range years[1:] {
		if year < min {
			min = year
		}
		if year > max {
			max = year
		}
	}
	if min == max {
		return fmt.Sprintf("enrollment_%d.%s", min, format)
	}
	return fmt.Sprintf("enrollment_%d-%d.%s", min, max, format)
}

func (e *EnrollmentExporter) exportCSV(records []domain.TidyRecord, outputPath string) (string, error) {
	sortRecords(records)
	err := e.csvWriter.WriteCSV(outputPath, WriteOptions{
		Headers: e.getHeaders(),
		Records: e.toCSVRows(records),
		// No BOM: downstream analysis tools choke on it more often
		// than Excel misreads UTF-8
		BOMPrefix: false,
	})
	if err != nil {
		return "", err
	}
	return e.csvWriter.resolvePath(outputPath), nil
}

func (e *EnrollmentExporter) exportXLSX(records []domain.TidyRecord, outputPath string) (string, error) {
	sortRecords(records)
	fullPath := e.csvWriter.resolvePath(outputPath)
	if err := saveWorkbook(fullPath, e.getHeaders(), records); err != nil {
		return "", err
	}
	return fullPath, nil
}

// getHeaders returns the column order shared by CSV and XLSX exports
func (e *EnrollmentExporter) getHeaders() []string {
	return []string{
		"district_code", "district_name", "institution_number", "institution_name",
		"end_year", "grade_level", "subgroup", "n_students", "pct",
		"is_state", "is_district", "is_school",
	}
}

func (e *EnrollmentExporter) toCSVRows(records []domain.TidyRecord) [][]string {
	rows := make([][]string, 0, len(records))
	for _, record := range records {
		rows = append(rows, e.recordToCSVRow(record))
	}
	return rows
}

// recordToCSVRow converts a tidy record to a CSV row
func (e *EnrollmentExporter) recordToCSVRow(record domain.TidyRecord) []string {
	return []string{
		record.DistrictCode,
		record.DistrictName,
		record.InstitutionNumber,
		record.InstitutionName,
		formatInt(int64(record.EndYear)),
		record.GradeLevel,
		record.Subgroup,
		formatIntPtr(record.NStudents),
		formatFloatPtr(record.Pct),
		formatBool(record.IsState),
		formatBool(record.IsDistrict),
		formatBool(record.IsSchool),
	}
}

// sortRecords orders output by year, entity, grade, and subgroup so
// exports are deterministic regardless of fetch order.
func sortRecords(records []domain.TidyRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if a.EndYear != b.EndYear {
			return a.EndYear < b.EndYear
		}
		if a.DistrictCode != b.DistrictCode {
			return a.DistrictCode < b.DistrictCode
		}
		if a.InstitutionNumber != b.InstitutionNumber {
			return a.InstitutionNumber < b.InstitutionNumber
		}
		if a.GradeLevel != b.GradeLevel {
			return a.GradeLevel < b.GradeLevel
		}
		return a.Subgroup < b.Subgroup
	})
}
