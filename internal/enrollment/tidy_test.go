package enrollment

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gaenroll/internal/shared/testutil"
	"gaenroll/pkg/contracts/domain"
)

func TestTidy_StateRowWithPercentOnly(t *testing.T) {
	table := &Table{
		Columns: []string{ColDistrictCode, ColInstnNumber, ColSchoolYear, ColDetailLevel, "ENROLL_PCT_WHITE"},
		Rows: []Row{
			{ColDistrictCode: "ALL", ColInstnNumber: "ALL", ColSchoolYear: "2023-24", ColDetailLevel: "State", "ENROLL_PCT_WHITE": "35"},
		},
	}

	records := Tidy(table, 2024, nil)

	require.Len(t, records, 1)
	rec := records[0]
	assert.Equal(t, GradeTotal, rec.GradeLevel)
	assert.Equal(t, "white", rec.Subgroup)
	require.NotNil(t, rec.Pct)
	assert.InDelta(t, 35.0, *rec.Pct, 1e-9)
	assert.Nil(t, rec.NStudents)
	assert.True(t, rec.IsState)
	assert.False(t, rec.IsDistrict)
	assert.False(t, rec.IsSchool)
	assert.Equal(t, 2024, rec.EndYear)
}

func TestTidy_EmitsSubgroupAndGradeRecords(t *testing.T) {
	table := &Table{
		Columns: []string{
			ColDistrictCode, ColDistrictName, ColInstnNumber, ColInstnName,
			ColDetailLevel, "ENROLL_TOTAL", "ENROLL_SWD", "ENROLL_PCT_SWD",
			"GRADE_K", "GRADE_1",
		},
		Rows: []Row{
			{
				ColDistrictCode: "601", ColDistrictName: "Appling County",
				ColInstnNumber: "103", ColInstnName: "Appling Elementary",
				ColDetailLevel: "School",
				"ENROLL_TOTAL": "450", "ENROLL_SWD": "60", "ENROLL_PCT_SWD": "13.3",
				"GRADE_K": "40", "GRADE_1": "45",
			},
		},
	}

	records := Tidy(table, 2024, nil)

	// 3 subgroup columns present + 2 grade columns present.
	require.Len(t, records, 5)

	bySubgroup := make(map[string]domain.TidyRecord)
	byGrade := make(map[string]domain.TidyRecord)
	for _, rec := range records {
		assert.Equal(t, "601", rec.DistrictCode)
		assert.Equal(t, "Appling County", rec.DistrictName)
		assert.Equal(t, "103", rec.InstitutionNumber)
		assert.Equal(t, "Appling Elementary", rec.InstitutionName)
		assert.True(t, rec.IsSchool)

		if rec.GradeLevel == GradeTotal {
			bySubgroup[rec.Subgroup] = rec
		} else {
			byGrade[rec.GradeLevel] = rec
		}
	}

	total := bySubgroup["total_enrollment"]
	require.NotNil(t, total.NStudents)
	assert.Equal(t, int64(450), *total.NStudents)
	assert.Nil(t, total.Pct, "total enrollment has no percentage column")

	swd := bySubgroup["swd"]
	require.NotNil(t, swd.NStudents)
	assert.Equal(t, int64(60), *swd.NStudents)
	require.NotNil(t, swd.Pct)
	assert.InDelta(t, 13.3, *swd.Pct, 1e-9)

	k := byGrade["K"]
	assert.Equal(t, "total_enrollment", k.Subgroup)
	require.NotNil(t, k.NStudents)
	assert.Equal(t, int64(40), *k.NStudents)
	assert.Nil(t, k.Pct, "grade records carry no percentage")

	first := byGrade["1"]
	require.NotNil(t, first.NStudents)
	assert.Equal(t, int64(45), *first.NStudents)
}

func TestTidy_FlagsMutuallyExclusive(t *testing.T) {
	table := &Table{
		Columns: []string{ColDistrictCode, ColInstnNumber, ColDetailLevel, "ENROLL_TOTAL"},
		Rows: []Row{
			{ColDistrictCode: "ALL", ColInstnNumber: "ALL", ColDetailLevel: "State", "ENROLL_TOTAL": "1000000"},
			{ColDistrictCode: "601", ColInstnNumber: "0", ColDetailLevel: "District", "ENROLL_TOTAL": "5000"},
			{ColDistrictCode: "601", ColInstnNumber: "103", ColDetailLevel: "School", "ENROLL_TOTAL": "450"},
			{ColDistrictCode: "601", ColInstnNumber: "104", ColDetailLevel: "Regional Office", "ENROLL_TOTAL": "90"},
		},
	}

	records := Tidy(table, 2024, nil)
	require.Len(t, records, 4)

	for _, rec := range records {
		trueCount := 0
		for _, flag := range []bool{rec.IsState, rec.IsDistrict, rec.IsSchool} {
			if flag {
				trueCount++
			}
		}
		assert.LessOrEqual(t, trueCount, 1, "at most one classification flag may be true")
	}

	assert.True(t, records[0].IsState)
	assert.True(t, records[1].IsDistrict)
	assert.True(t, records[2].IsSchool)
	assert.False(t, records[3].IsState)
	assert.False(t, records[3].IsDistrict)
	assert.False(t, records[3].IsSchool)
}

func TestTidy_ExactMatchOnDetailLabels(t *testing.T) {
	// Case variants are unknown labels, not near-matches.
	table := &Table{
		Columns: []string{ColDistrictCode, ColInstnNumber, ColDetailLevel, "ENROLL_TOTAL"},
		Rows: []Row{
			{ColDistrictCode: "601", ColInstnNumber: "103", ColDetailLevel: "SCHOOL", "ENROLL_TOTAL": "450"},
		},
	}

	records := Tidy(table, 2024, nil)
	require.Len(t, records, 1)
	assert.False(t, records[0].IsSchool)
}

func TestTidy_WarnsOncePerUnknownLabel(t *testing.T) {
	logger, handler := testutil.NewTestLogger(t)

	table := &Table{
		Columns: []string{ColDistrictCode, ColInstnNumber, ColDetailLevel, "ENROLL_TOTAL"},
		Rows: []Row{
			{ColDistrictCode: "601", ColInstnNumber: "103", ColDetailLevel: "Regional Office", "ENROLL_TOTAL": "1"},
			{ColDistrictCode: "601", ColInstnNumber: "104", ColDetailLevel: "Regional Office", "ENROLL_TOTAL": "2"},
			{ColDistrictCode: "601", ColInstnNumber: "105", ColDetailLevel: "Annex", "ENROLL_TOTAL": "3"},
		},
	}

	Tidy(table, 2024, logger)

	warnings := handler.RecordsAt(slog.LevelWarn)
	assert.Len(t, warnings, 2, "one warning per distinct unknown label")
	testutil.AssertLogAttr(t, handler, "label", "Regional Office")
	testutil.AssertLogAttr(t, handler, "label", "Annex")
}

func TestTidy_SuppressedCountsBecomeMissing(t *testing.T) {
	table := &Table{
		Columns: []string{ColDistrictCode, ColInstnNumber, ColDetailLevel, "ENROLL_SWD", "ENROLL_PCT_SWD"},
		Rows: []Row{
			{ColDistrictCode: "601", ColInstnNumber: "103", ColDetailLevel: "School", "ENROLL_SWD": "TFS", "ENROLL_PCT_SWD": "TFS"},
		},
	}

	records := Tidy(table, 2024, nil)
	require.Len(t, records, 1)
	assert.Equal(t, "swd", records[0].Subgroup)
	assert.Nil(t, records[0].NStudents)
	assert.Nil(t, records[0].Pct)
}

func TestTidy_EmptyTable(t *testing.T) {
	assert.Nil(t, Tidy(nil, 2024, nil))
	assert.Nil(t, Tidy(&Table{}, 2024, nil))
}

func TestTidy_UnknownColumnsIgnored(t *testing.T) {
	table := &Table{
		Columns: []string{ColDistrictCode, ColInstnNumber, ColDetailLevel, "ENROLL_TOTAL", "GRADE_ADULT", "RANDOM_COLUMN"},
		Rows: []Row{
			{ColDistrictCode: "601", ColInstnNumber: "103", ColDetailLevel: "School", "ENROLL_TOTAL": "450", "GRADE_ADULT": "9", "RANDOM_COLUMN": "x"},
		},
	}

	records := Tidy(table, 2024, nil)

	require.Len(t, records, 1, "undeclared columns never become records")
	assert.Equal(t, "total_enrollment", records[0].Subgroup)
	assert.Equal(t, GradeTotal, records[0].GradeLevel)
}
