package enrollment

import (
	"errors"
	"fmt"

	apperrors "gaenroll/internal/errors"
	"gaenroll/pkg/contracts/domain"
)

// ErrYearOutOfRange marks a requested year outside the published range.
// ValidateYear wraps it in an AppError so callers can match either the
// sentinel or the error type.
var ErrYearOutOfRange = errors.New("school year out of range")

// ValidateYear checks year against the published range. Years before the
// range point the caller at the GADOE historical-data request process,
// since the download portal only serves back to the earliest published
// year.
func ValidateYear(year int, bounds domain.YearRange) error {
	if bounds.Contains(year) {
		return nil
	}

	if year < bounds.MinYear {
		msg := fmt.Sprintf(
			"year %d predates the published range %s; earlier data must be requested through the GADOE historical data request process",
			year, bounds.String(),
		)
		return apperrors.NewOutOfRangeError(msg, ErrYearOutOfRange).
			WithContext("year", year).
			WithContext("min_year", bounds.MinYear).
			WithContext("max_year", bounds.MaxYear)
	}

	msg := fmt.Sprintf("year %d is outside the published range %s", year, bounds.String())
	return apperrors.NewOutOfRangeError(msg, ErrYearOutOfRange).
		WithContext("year", year).
		WithContext("min_year", bounds.MinYear).
		WithContext("max_year", bounds.MaxYear)
}

// SchoolYear derives the school-year label GADOE embeds in current-era
// file names from the ending calendar year: 2024 becomes "2023-24".
func SchoolYear(endYear int) string {
	return fmt.Sprintf("%d-%02d", endYear-1, endYear%100)
}
