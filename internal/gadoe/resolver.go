package gadoe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"gaenroll/internal/enrollment"
	apperrors "gaenroll/internal/errors"
	"gaenroll/pkg/contracts/domain"
)

var tracer = otel.Tracer("gadoe")

// ErrDatasetUnavailable marks a (year, dataset) pair the portal does not
// publish or that no resolution strategy could locate. Fatal for the
// demographic dataset; a soft skip for the optional grade dataset.
var ErrDatasetUnavailable = errors.New("dataset unavailable for this year")

// currentEraStart is the first ending year published under the
// per-subgroup-metrics naming scheme. Earlier years use the legacy
// subgroups-programs scheme and have no grade file.
const currentEraStart = 2023

// timestampPattern matches the upload timestamp suffix the portal embeds
// in filenames. The format sorts lexicographically by construction.
const timestampPattern = `(\d{4}-\d{2}-\d{2}_\d{2}_\d{2}_\d{2})`

// Resolver finds the single authoritative download URL for a (year,
// dataset) pair. Strategies run in order; the first that yields a URL
// wins:
//
//  1. current-era filename pattern against the year directory listing
//  2. legacy-era filename pattern against the same listing
//  3. static table of previously-verified URLs, existence-probed
//
// The listing is fetched once per Resolve call and shared by the first
// two strategies.
type Resolver struct {
	client *Client
	known  knownTable
	logger *slog.Logger
}

// NewResolver builds a resolver over the portal client.
func NewResolver(client *Client, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		client: client,
		known:  knownGoodFiles,
		logger: logger,
	}
}

// Resolve returns the download URL for a year's dataset, or an
// ErrDatasetUnavailable resolution error when nothing resolves.
func (r *Resolver) Resolve(ctx context.Context, year int, dataset domain.Dataset) (string, error) {
	ctx, span := tracer.Start(ctx, "resolver:Resolve")
	defer span.End()
	span.SetAttributes(
		attribute.Int("year", year),
		attribute.String("dataset", dataset.String()),
	)

	// The legacy era never published a grade file; do not waste a
	// network call discovering that.
	if dataset == domain.DatasetGrade && year < currentEraStart {
		return "", r.unavailable(year, dataset, "grade file not published before the current era")
	}

	// The listing is fetched at most once per Resolve, shared by both
	// era strategies.
	var listing []string
	listingLoaded := false
	loadListing := func(ctx context.Context) []string {
		if !listingLoaded {
			listingLoaded = true
			listing = r.fetchListing(ctx, year)
		}
		return listing
	}

	steps := []struct {
		name    string
		resolve func(context.Context) string
	}{
		{name: "listing_current_era", resolve: func(ctx context.Context) string {
			return r.fromListing(year, loadListing(ctx), currentEraRegex(year, dataset))
		}},
		{name: "listing_legacy_era", resolve: func(ctx context.Context) string {
			return r.fromListing(year, loadListing(ctx), legacyEraRegex(year, dataset))
		}},
		{name: "known_good", resolve: func(ctx context.Context) string {
			return r.fromKnownGood(ctx, year, dataset)
		}},
	}

	for _, step := range steps {
		if url := step.resolve(ctx); url != "" {
			r.logger.InfoContext(ctx, "resolved dataset URL",
				slog.Int("year", year),
				slog.String("dataset", dataset.String()),
				slog.String("strategy", step.name),
				slog.String("url", url))
			span.SetAttributes(attribute.String("strategy", step.name))
			return url, nil
		}
	}

	return "", r.unavailable(year, dataset, "no resolution strategy produced a URL")
}

func (r *Resolver) unavailable(year int, dataset domain.Dataset, reason string) error {
	return apperrors.NewResolutionError(
		fmt.Sprintf("%s dataset unavailable for %d: %s", dataset, year, reason),
		ErrDatasetUnavailable).
		WithContext("year", year).
		WithContext("dataset", dataset.String())
}

// fetchListing loads and parses the year directory. Failures degrade to
// an empty candidate list so later strategies still run.
func (r *Resolver) fetchListing(ctx context.Context, year int) []string {
	body, err := r.client.Listing(ctx, year)
	if err != nil {
		r.logger.WarnContext(ctx, "directory listing unavailable",
			slog.Int("year", year),
			slog.String("error", err.Error()))
		return nil
	}
	filenames, err := ExtractFilenames(body)
	if err != nil {
		r.logger.WarnContext(ctx, "directory listing unparseable",
			slog.Int("year", year),
			slog.String("error", err.Error()))
		return nil
	}
	return filenames
}

// fromListing matches listing candidates against an era pattern and
// picks the freshest by embedded timestamp.
func (r *Resolver) fromListing(year int, filenames []string, pattern *regexp.Regexp) string {
	if pattern == nil {
		return ""
	}
	filename := selectFreshest(filenames, pattern)
	if filename == "" {
		return ""
	}
	return r.client.FileURL(year, filename)
}

// fromKnownGood consults the static table of previously-verified
// filenames, confirming the URL is still live before returning it.
func (r *Resolver) fromKnownGood(ctx context.Context, year int, dataset domain.Dataset) string {
	filename, ok := r.known.lookup(year, dataset)
	if !ok {
		return ""
	}
	url := r.client.FileURL(year, filename)
	if !r.client.Probe(ctx, url) {
		r.logger.WarnContext(ctx, "known-good URL no longer live",
			slog.Int("year", year),
			slog.String("dataset", dataset.String()),
			slog.String("url", url))
		return ""
	}
	return url
}

// selectFreshest returns the candidate with the lexicographically
// greatest embedded timestamp, treating it as most recently published.
// Ties keep the first candidate encountered.
func selectFreshest(filenames []string, pattern *regexp.Regexp) string {
	var best, bestTS string
	for _, name := range filenames {
		m := pattern.FindStringSubmatch(name)
		if m == nil {
			continue
		}
		if ts := m[1]; ts > bestTS {
			best, bestTS = name, ts
		}
	}
	return best
}

// currentEraRegex builds the post-2023 filename pattern for a dataset.
// The current-era scheme is tried for every year: the portal has been
// observed re-publishing older years under the new names.
func currentEraRegex(year int, dataset domain.Dataset) *regexp.Regexp {
	schoolYear := regexp.QuoteMeta(enrollment.SchoolYear(year))
	switch dataset {
	case domain.DatasetSubgroup:
		return regexp.MustCompile(`^Enrollment_by_Subgroup_Metrics_` + schoolYear + `_` + timestampPattern + `\.csv$`)
	case domain.DatasetGrade:
		return regexp.MustCompile(`^Enrollment_by_Grade_` + schoolYear + `_` + timestampPattern + `\.csv$`)
	default:
		return nil
	}
}

// legacyEraRegex builds the pre-2023 pattern. Only the demographic file
// existed; it is keyed by the bare ending calendar year.
func legacyEraRegex(year int, dataset domain.Dataset) *regexp.Regexp {
	if dataset != domain.DatasetSubgroup {
		return nil
	}
	return regexp.MustCompile(fmt.Sprintf(`^Enrollment_by_Subgroups_Programs_%d_%s\.csv$`, year, timestampPattern))
}
