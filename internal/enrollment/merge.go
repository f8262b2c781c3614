package enrollment

import (
	"log/slog"
	"sort"
	"strconv"
	"strings"
)

// entityKeyColumns identify a reporting entity across the two source
// files. Both tables must carry all three for a join to be possible.
var entityKeyColumns = []string{ColDistrictCode, ColInstnNumber, ColSchoolYear}

// gradeCountColumns are the count column names observed across grade-file
// publications, in preference order.
var gradeCountColumns = []string{ColEnrollmentCount, "ENROLL_COUNT", "STUDENT_COUNT"}

// fallPeriod is the canonical enrollment snapshot. Grade files that carry
// an ENROLLMENT_PERIOD column also publish a Spring duplicate which would
// double-count students.
const fallPeriod = "Fall"

// Merge pivots the grade-level long table into per-grade columns and
// left-joins them onto the demographic table by entity. The result always
// has exactly as many rows as the demographic table: grade data adds
// columns, never rows. An absent or unjoinable grade table leaves the
// demographic table unchanged.
func Merge(demographic, grade *Table, logger *slog.Logger) *Table {
	if logger == nil {
		logger = slog.Default()
	}
	if demographic == nil {
		return &Table{}
	}
	if grade == nil || grade.Len() == 0 {
		return demographic
	}

	if missing := missingColumns(demographic, entityKeyColumns); len(missing) > 0 {
		logger.Info("merge skipped: demographic table missing entity key columns",
			slog.String("columns", strings.Join(missing, ",")))
		return demographic
	}
	if missing := missingColumns(grade, entityKeyColumns); len(missing) > 0 {
		logger.Info("merge skipped: grade table missing entity key columns",
			slog.String("columns", strings.Join(missing, ",")))
		return demographic
	}
	if !grade.HasColumn(ColGradeLevel) {
		logger.Info("merge skipped: grade table missing grade level column",
			slog.String("columns", ColGradeLevel))
		return demographic
	}

	countColumn := ""
	for _, c := range gradeCountColumns {
		if grade.HasColumn(c) {
			countColumn = c
			break
		}
	}
	if countColumn == "" {
		logger.Info("merge skipped: grade table missing enrollment count column",
			slog.String("columns", strings.Join(gradeCountColumns, ",")))
		return demographic
	}

	// Keep the Fall snapshot only; Spring rows duplicate the same students.
	rows := grade.Rows
	if grade.HasColumn(ColEnrollmentPd) {
		kept := make([]Row, 0, len(rows))
		for _, r := range rows {
			if strings.EqualFold(strings.TrimSpace(r[ColEnrollmentPd]), fallPeriod) {
				kept = append(kept, r)
			}
		}
		rows = kept
	}

	// Pivot: one column per grade, summing duplicate (entity, grade) rows.
	pivot := make(map[string]map[string]int64)
	var newColumns []string
	seenColumn := make(map[string]bool)
	for _, r := range rows {
		token := normalizeGradeToken(r[ColGradeLevel])
		if token == "" {
			continue
		}
		count := r.Int(countColumn)
		if count == nil {
			continue
		}
		column := "GRADE_" + token
		if !seenColumn[column] {
			seenColumn[column] = true
			newColumns = append(newColumns, column)
		}
		key := entityKey(r)
		if pivot[key] == nil {
			pivot[key] = make(map[string]int64)
		}
		pivot[key][column] += *count
	}

	if len(newColumns) == 0 {
		return demographic
	}
	sortGradeColumns(newColumns)

	out := &Table{
		Columns: append(append([]string{}, demographic.Columns...), newColumns...),
		Rows:    make([]Row, 0, demographic.Len()),
	}

	matched := 0
	for _, r := range demographic.Rows {
		merged := make(Row, len(r)+len(newColumns))
		for k, v := range r {
			merged[k] = v
		}
		if counts, ok := pivot[entityKey(r)]; ok {
			matched++
			for column, n := range counts {
				merged[column] = strconv.FormatInt(n, 10)
			}
		}
		out.Rows = append(out.Rows, merged)
	}

	if unmatched := len(pivot) - matched; unmatched > 0 {
		logger.Debug("grade entities without a demographic row were skipped",
			slog.Int("unmatched", unmatched),
			slog.Int("matched", matched))
	}

	return out
}

func missingColumns(t *Table, wanted []string) []string {
	var missing []string
	for _, c := range wanted {
		if !t.HasColumn(c) {
			missing = append(missing, c)
		}
	}
	return missing
}

// entityKey joins the identifying columns into a map key. 0x1f is the
// ASCII unit separator, which never appears in the source data.
func entityKey(r Row) string {
	parts := make([]string, len(entityKeyColumns))
	for i, c := range entityKeyColumns {
		parts[i] = strings.TrimSpace(r[c])
	}
	return strings.Join(parts, "\x1f")
}

// normalizeGradeToken maps the published GRADE_LEVEL value onto the token
// used in pivot column names: upper-cased, separators collapsed, numeric
// grades stripped of leading zeros ("01" and "1" are the same grade).
func normalizeGradeToken(v string) string {
	v = strings.ToUpper(strings.TrimSpace(v))
	v = strings.ReplaceAll(v, " ", "_")
	v = strings.ReplaceAll(v, "-", "_")
	if v == "" {
		return ""
	}
	if isAllDigits(v) {
		v = strings.TrimLeft(v, "0")
		if v == "" {
			v = "0"
		}
	}
	return v
}

func isAllDigits(v string) bool {
	for _, r := range v {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// sortGradeColumns orders pivot columns PK, K, 1..12 first, then anything
// unrecognized after them in first-seen order.
func sortGradeColumns(columns []string) {
	rank := make(map[string]int, len(GradeColumns))
	for i, c := range GradeColumns {
		rank[c] = i
	}
	order := make(map[string]int, len(columns))
	for i, c := range columns {
		if r, ok := rank[c]; ok {
			order[c] = r
		} else {
			order[c] = len(GradeColumns) + i
		}
	}
	sort.SliceStable(columns, func(i, j int) bool {
		return order[columns[i]] < order[columns[j]]
	})
}
