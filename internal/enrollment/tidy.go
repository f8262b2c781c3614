package enrollment

import (
	"log/slog"
	"strings"

	"gaenroll/pkg/contracts/domain"
)

// SubgroupColumn declares one demographic subgroup as published: its
// count column, its percentage column (empty when the source publishes
// none), and the canonical label it becomes in tidy output.
type SubgroupColumn struct {
	Count string
	Pct   string
	Label string
}

// SubgroupColumns is the declared subgroup vocabulary. The tidy
// transformer consults this list rather than assuming a fixed schema, so
// era-to-era column drift degrades to "subgroup absent" instead of
// breaking the parse.
var SubgroupColumns = []SubgroupColumn{
	{Count: "ENROLL_TOTAL", Label: "total_enrollment"},
	{Count: "ENROLL_WHITE", Pct: "ENROLL_PCT_WHITE", Label: "white"},
	{Count: "ENROLL_BLACK", Pct: "ENROLL_PCT_BLACK", Label: "black"},
	{Count: "ENROLL_HISPANIC", Pct: "ENROLL_PCT_HISPANIC", Label: "hispanic"},
	{Count: "ENROLL_ASIAN", Pct: "ENROLL_PCT_ASIAN", Label: "asian"},
	{Count: "ENROLL_AMERICAN_INDIAN", Pct: "ENROLL_PCT_AMERICAN_INDIAN", Label: "american_indian"},
	{Count: "ENROLL_PACIFIC_ISLANDER", Pct: "ENROLL_PCT_PACIFIC_ISLANDER", Label: "pacific_islander"},
	{Count: "ENROLL_MULTIRACIAL", Pct: "ENROLL_PCT_MULTIRACIAL", Label: "multiracial"},
	{Count: "ENROLL_MALE", Pct: "ENROLL_PCT_MALE", Label: "male"},
	{Count: "ENROLL_FEMALE", Pct: "ENROLL_PCT_FEMALE", Label: "female"},
	{Count: "ENROLL_SWD", Pct: "ENROLL_PCT_SWD", Label: "swd"},
	{Count: "ENROLL_EL", Pct: "ENROLL_PCT_EL", Label: "english_learner"},
	{Count: "ENROLL_ECON_DISADV", Pct: "ENROLL_PCT_ECON_DISADV", Label: "econ_disadvantaged"},
	{Count: "ENROLL_GIFTED", Pct: "ENROLL_PCT_GIFTED", Label: "gifted"},
}

// GradeColumns is the declared set of pivoted grade columns, in grade
// order. Unknown pivot columns are carried in the merged table but never
// become tidy records.
var GradeColumns = []string{
	"GRADE_PK", "GRADE_K",
	"GRADE_1", "GRADE_2", "GRADE_3", "GRADE_4",
	"GRADE_5", "GRADE_6", "GRADE_7", "GRADE_8",
	"GRADE_9", "GRADE_10", "GRADE_11", "GRADE_12",
}

// GradeTotal is the grade_level token carried by subgroup records, which
// aggregate over all grades.
const GradeTotal = "TOTAL"

// Detail-level labels as published. Anything else leaves all three
// classification flags false; the row is kept as data, not rejected.
const (
	detailState    = "State"
	detailDistrict = "District"
	detailSchool   = "School"
)

// Tidy converts a merged wide table into the canonical long format: one
// record per (entity, grade_level, subgroup) observation. Subgroup counts
// come out with grade_level "TOTAL"; pivoted grade counts come out with
// subgroup "total_enrollment". Unrecognized detail-level labels are
// logged once each per call.
func Tidy(table *Table, endYear int, logger *slog.Logger) []domain.TidyRecord {
	if logger == nil {
		logger = slog.Default()
	}
	if table == nil || table.Len() == 0 {
		return nil
	}

	// Resolve which declared columns this publication actually carries.
	hasColumn := make(map[string]bool, len(table.Columns))
	for _, c := range table.Columns {
		hasColumn[c] = true
	}

	var subgroups []SubgroupColumn
	for _, sc := range SubgroupColumns {
		if hasColumn[sc.Count] || (sc.Pct != "" && hasColumn[sc.Pct]) {
			subgroups = append(subgroups, sc)
		}
	}
	var grades []string
	for _, gc := range GradeColumns {
		if hasColumn[gc] {
			grades = append(grades, gc)
		}
	}

	warnedLabels := make(map[string]bool)
	records := make([]domain.TidyRecord, 0, table.Len()*(len(subgroups)+len(grades)))

	for _, row := range table.Rows {
		isState, isDistrict, isSchool := detailFlags(row, warnedLabels, logger)

		base := domain.TidyRecord{
			DistrictCode:      strings.TrimSpace(row[ColDistrictCode]),
			DistrictName:      strings.TrimSpace(row[ColDistrictName]),
			InstitutionNumber: strings.TrimSpace(row[ColInstnNumber]),
			InstitutionName:   strings.TrimSpace(row[ColInstnName]),
			EndYear:           endYear,
			IsState:           isState,
			IsDistrict:        isDistrict,
			IsSchool:          isSchool,
		}

		for _, sc := range subgroups {
			rec := base
			rec.GradeLevel = GradeTotal
			rec.Subgroup = sc.Label
			rec.NStudents = row.Int(sc.Count)
			if sc.Pct != "" {
				rec.Pct = row.Float(sc.Pct)
			}
			records = append(records, rec)
		}

		for _, gc := range grades {
			rec := base
			rec.GradeLevel = strings.TrimPrefix(gc, "GRADE_")
			rec.Subgroup = "total_enrollment"
			rec.NStudents = row.Int(gc)
			records = append(records, rec)
		}
	}

	return records
}

// detailFlags derives the classification flags from DETAIL_LVL_DESC by
// exact match. Unknown labels leave every flag false so malformed
// upstream data stays visible in the output instead of failing the
// request.
func detailFlags(row Row, warned map[string]bool, logger *slog.Logger) (isState, isDistrict, isSchool bool) {
	label, ok := row.Value(ColDetailLevel)
	if !ok {
		return false, false, false
	}

	switch label {
	case detailState:
		return true, false, false
	case detailDistrict:
		return false, true, false
	case detailSchool:
		return false, false, true
	}

	if label != "" && !warned[label] {
		warned[label] = true
		logger.Warn("unrecognized detail level label, classification flags left false",
			slog.String("label", label))
	}
	return false, false, false
}
