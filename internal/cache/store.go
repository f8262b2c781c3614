// Package cache persists downloaded enrollment payloads keyed by school
// year and dataset, so repeat fetches skip the GADOE portal entirely.
//
// The canonical implementation is the filesystem store: one CSV file per
// (year, dataset) pair under a single cache directory, written by full
// replacement. An in-memory store backs tests.
package cache

import (
	"context"
	"fmt"
	"regexp"
	"strconv"

	"gaenroll/pkg/contracts/domain"
)

// Store is the cache contract the enrollment service depends on. A miss
// is not an error: Get reports it through the second return value.
type Store interface {
	// Get returns the cached payload for a year's dataset, or ok=false
	// when the pair has never been stored.
	Get(ctx context.Context, year int, dataset domain.Dataset) (data []byte, ok bool, err error)

	// Put stores the payload, fully replacing any previous entry for the
	// same (year, dataset) pair.
	Put(ctx context.Context, year int, dataset domain.Dataset, data []byte) error

	// Status lists every cached entry, ordered by year then dataset.
	Status(ctx context.Context) ([]domain.CacheEntryInfo, error)

	// Clear removes entries for the given years, or every entry when no
	// years are named. It returns the number of entries removed.
	Clear(ctx context.Context, years ...int) (int, error)
}

// Filename returns the cache file name for a (year, dataset) pair.
func Filename(year int, dataset domain.Dataset) string {
	return fmt.Sprintf("enrollment_%s_%d.csv", dataset, year)
}

// filenamePattern recognizes cache entries among directory contents.
// Anything else in the cache directory is left alone.
var filenamePattern = regexp.MustCompile(`^enrollment_(subgroup|grade)_(\d+)\.csv$`)

// parseFilename recovers the (year, dataset) key from a cache file name.
func parseFilename(name string) (year int, dataset domain.Dataset, ok bool) {
	m := filenamePattern.FindStringSubmatch(name)
	if m == nil {
		return 0, "", false
	}
	year, err := strconv.Atoi(m[2])
	if err != nil {
		return 0, "", false
	}
	return year, domain.Dataset(m[1]), true
}

// datasetRank orders datasets in status listings: the demographic file
// first, the optional grade file second.
func datasetRank(dataset domain.Dataset) int {
	if dataset == domain.DatasetSubgroup {
		return 0
	}
	return 1
}
