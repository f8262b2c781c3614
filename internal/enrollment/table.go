package enrollment

import (
	"bytes"
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	apperrors "gaenroll/internal/errors"
)

// Column names shared by the two GADOE source files. Columns vary by era
// and year, so everything that consults them checks for presence first.
const (
	ColDistrictCode    = "SCHOOL_DSTRCT_CD"
	ColDistrictName    = "SCHOOL_DSTRCT_NM"
	ColInstnNumber     = "INSTN_NUMBER"
	ColInstnName       = "INSTN_NAME"
	ColSchoolYear      = "SCHOOL_YEAR"
	ColLongSchoolYear  = "LONG_SCHOOL_YEAR"
	ColDetailLevel     = "DETAIL_LVL_DESC"
	ColEnrollmentPd    = "ENROLLMENT_PERIOD"
	ColGradeLevel      = "GRADE_LEVEL"
	ColEnrollmentCount = "ENROLLMENT_COUNT"
)

// TooFewStudents is the suppression sentinel GADOE publishes in place of
// counts small enough to identify students. It survives parsing as text
// and becomes a missing value only through the numeric accessors.
const TooFewStudents = "TFS"

// Row is a single parsed record. Absent column = missing value; all
// values stay text until a numeric accessor coerces them.
type Row map[string]string

// Table is a schema-tolerant parsed CSV: an ordered header plus rows
// keyed by column name. Source schemas differ across eras, so nothing
// here assumes a fixed shape.
type Table struct {
	Columns []string
	Rows    []Row
}

// ParseTable reads CSV bytes into a Table. The UTF-8 BOM is stripped,
// ragged rows are tolerated (short rows leave trailing columns missing),
// and every value is kept as text.
func ParseTable(data []byte) (*Table, error) {
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return &Table{}, nil
	}
	if err != nil {
		return nil, apperrors.NewParsingError("failed to read CSV header", err)
	}

	columns := make([]string, len(header))
	for i, name := range header {
		columns[i] = strings.TrimSpace(name)
	}

	table := &Table{Columns: columns}

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, apperrors.NewParsingError("failed to read CSV row", err)
		}

		row := make(Row, len(columns))
		for i, value := range record {
			if i < len(columns) {
				row[columns[i]] = value
			}
		}
		table.Rows = append(table.Rows, row)
	}

	return table, nil
}

// HasColumn reports whether the table's header includes name.
func (t *Table) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// Len returns the number of data rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// Value returns the raw text for a column, reporting whether the row
// carries it at all.
func (r Row) Value(column string) (string, bool) {
	v, ok := r[column]
	return v, ok
}

// Int coerces a column to a count. The suppression sentinel, an absent
// column, and anything non-numeric all come back nil so suppressed
// counts never corrupt aggregates.
func (r Row) Int(column string) *int64 {
	v, ok := r[column]
	if !ok {
		return nil
	}
	v = cleanNumeric(v)
	if v == "" || strings.EqualFold(v, TooFewStudents) {
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		// Some published counts carry a decimal point ("123.0").
		f, ferr := strconv.ParseFloat(v, 64)
		if ferr != nil {
			return nil
		}
		n = int64(f)
	}
	return &n
}

// Float coerces a column to a percentage-style value, with the same
// missing semantics as Int.
func (r Row) Float(column string) *float64 {
	v, ok := r[column]
	if !ok {
		return nil
	}
	v = cleanNumeric(v)
	if v == "" || strings.EqualFold(v, TooFewStudents) {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil
	}
	return &f
}

// cleanNumeric strips the separators and decorations GADOE mixes into
// numeric columns ("1,234", "35 %", surrounding whitespace).
func cleanNumeric(v string) string {
	v = strings.TrimSpace(v)
	v = strings.ReplaceAll(v, ",", "")
	v = strings.TrimSuffix(v, "%")
	return strings.TrimSpace(v)
}

// FilterYear keeps only the rows belonging to the requested school year.
// Source files sometimes carry more than one year. The normalized
// SCHOOL_YEAR column is matched exactly when present (accepting both the
// "2023-24" label and the bare ending year used by legacy files); the
// free-text LONG_SCHOOL_YEAR column is substring-matched as a fallback.
// A table with neither column is returned unchanged.
func (t *Table) FilterYear(endYear int) *Table {
	label := SchoolYear(endYear)
	bare := strconv.Itoa(endYear)

	switch {
	case t.HasColumn(ColSchoolYear):
		return t.filter(func(r Row) bool {
			v := strings.TrimSpace(r[ColSchoolYear])
			return v == label || v == bare
		})
	case t.HasColumn(ColLongSchoolYear):
		// Only the unambiguous "2023-24" label is safe as a substring;
		// a bare year would also match the following school year.
		return t.filter(func(r Row) bool {
			return strings.Contains(r[ColLongSchoolYear], label)
		})
	default:
		return t
	}
}

func (t *Table) filter(keep func(Row) bool) *Table {
	out := &Table{Columns: t.Columns}
	for _, row := range t.Rows {
		if keep(row) {
			out.Rows = append(out.Rows, row)
		}
	}
	return out
}
