package exporter

import (
	"fmt"
	"strings"

	apperrors "gaenroll/internal/errors"
)

// Format identifies an export encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ParseFormat validates a user-supplied format name.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "csv", "":
		return FormatCSV, nil
	case "xlsx":
		return FormatXLSX, nil
	default:
		return "", apperrors.NewAppValidationError(
			fmt.Sprintf("unknown export format %q: want csv or xlsx", s))
	}
}

// formatFloat formats a float64 value for CSV output with exactly 2 decimal places
func formatFloat(f float64) string {
	// Always format with exactly 2 decimal places for consistency
	// This ensures values like 13.4 appear as 13.40 in CSV
	return fmt.Sprintf("%.2f", f)
}

// formatInt formats an int64 value for CSV output
func formatInt(i int64) string {
	return fmt.Sprintf("%d", i)
}

// formatBool formats a boolean value for CSV output
func formatBool(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// formatIntPtr renders a nullable count. Suppressed values stay empty
// rather than becoming a sentinel number.
func formatIntPtr(i *int64) string {
	if i == nil {
		return ""
	}
	return formatInt(*i)
}

// formatFloatPtr renders a nullable percentage.
func formatFloatPtr(f *float64) string {
	if f == nil {
		return ""
	}
	return formatFloat(*f)
}
