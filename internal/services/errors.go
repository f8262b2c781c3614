package services

import "errors"

// ErrNoYearsRequested is returned by multi-year fetches given an empty
// year list. Callers match it with errors.Is to distinguish bad input
// from portal failures.
var ErrNoYearsRequested = errors.New("no years requested")
