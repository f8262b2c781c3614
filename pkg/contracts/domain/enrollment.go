package domain

import (
	"fmt"
)

// Dataset identifies one of the enrollment files GADOE publishes per school year.
type Dataset string

const (
	// DatasetSubgroup is the demographic file: one wide row per reporting
	// entity with enrollment counts and percentages by subgroup.
	DatasetSubgroup Dataset = "subgroup"

	// DatasetGrade is the grade-level file: one row per reporting entity
	// and grade. Only published for the current-era years.
	DatasetGrade Dataset = "grade"
)

// Valid reports whether d names a known dataset.
func (d Dataset) Valid() bool {
	return d == DatasetSubgroup || d == DatasetGrade
}

// String returns the dataset name as used in cache file names and logs.
func (d Dataset) String() string {
	return string(d)
}

// TidyRecord is one row of the canonical long-format enrollment table.
// Every published value becomes one record keyed by year, entity, grade
// level, and subgroup. Suppressed counts ("too few students") carry a nil
// NStudents rather than a sentinel value.
type TidyRecord struct {
	DistrictCode      string   `json:"district_code"`
	DistrictName      string   `json:"district_name"`
	InstitutionNumber string   `json:"institution_number"`
	InstitutionName   string   `json:"institution_name"`
	EndYear           int      `json:"end_year" validate:"min=1900"`
	GradeLevel        string   `json:"grade_level" validate:"required"`
	Subgroup          string   `json:"subgroup" validate:"required"`
	NStudents         *int64   `json:"n_students"`
	Pct               *float64 `json:"pct"`
	IsState           bool     `json:"is_state"`
	IsDistrict        bool     `json:"is_district"`
	IsSchool          bool     `json:"is_school"`
}

// YearRange describes the span of school years the service can serve.
// Years are identified by the ending calendar year of the school year,
// so 2024 means the 2023-24 school year.
type YearRange struct {
	MinYear     int    `json:"min_year" validate:"min=1900"`
	MaxYear     int    `json:"max_year" validate:"gtefield=MinYear"`
	Description string `json:"description,omitempty"`
}

// Contains reports whether year falls inside the range.
func (r YearRange) Contains(year int) bool {
	return year >= r.MinYear && year <= r.MaxYear
}

// String formats the range for messages like "2011-2024".
func (r YearRange) String() string {
	return fmt.Sprintf("%d-%d", r.MinYear, r.MaxYear)
}
