package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"

	"gaenroll/internal/cache"
	"gaenroll/internal/enrollment"
	apperrors "gaenroll/internal/errors"
	"gaenroll/internal/gadoe"
	"gaenroll/internal/infrastructure"
	"gaenroll/internal/validation"
	"gaenroll/pkg/contracts/domain"
)

var tracer = otel.Tracer("services")

// FetchOptions controls a single fetch request.
type FetchOptions struct {
	// UseCache serves previously downloaded payloads when present and
	// stores fresh downloads for reuse. Disabled, every request goes to
	// the portal and nothing is persisted.
	UseCache bool
}

// DefaultFetchOptions returns the standard fetch behavior: cached
// payloads are reused.
func DefaultFetchOptions() FetchOptions {
	return FetchOptions{UseCache: true}
}

// EnrollmentService runs the acquisition pipeline: validate the year,
// resolve dataset URLs, fetch with cache, parse, merge, and tidy into
// canonical records.
type EnrollmentService struct {
	bounds   domain.YearRange
	resolver *gadoe.Resolver
	client   *gadoe.Client
	store    cache.Store
	metrics  *infrastructure.BusinessMetrics
	logger   *slog.Logger

	// downloads collapses concurrent identical (year, dataset) fetches
	// into a single upstream download.
	downloads singleflight.Group
}

// NewEnrollmentService creates the enrollment service. metrics may be
// nil; recording degrades to a no-op.
func NewEnrollmentService(
	bounds domain.YearRange,
	resolver *gadoe.Resolver,
	client *gadoe.Client,
	store cache.Store,
	metrics *infrastructure.BusinessMetrics,
	logger *slog.Logger,
) *EnrollmentService {
	if logger == nil {
		logger = slog.Default()
	}
	if bounds.Description == "" {
		bounds.Description = fmt.Sprintf("school years ending %d through %d", bounds.MinYear, bounds.MaxYear)
	}

	logger.Info("EnrollmentService initialized",
		slog.Int("min_year", bounds.MinYear),
		slog.Int("max_year", bounds.MaxYear))

	return &EnrollmentService{
		bounds:   bounds,
		resolver: resolver,
		client:   client,
		store:    store,
		metrics:  metrics,
		logger:   logger,
	}
}

// AvailableYears returns the span of school years the service serves.
func (s *EnrollmentService) AvailableYears() domain.YearRange {
	return s.bounds
}

// FetchEnr returns the canonical tidy records for one school year.
func (s *EnrollmentService) FetchEnr(ctx context.Context, year int, opts FetchOptions) ([]domain.TidyRecord, error) {
	ctx, span := tracer.Start(ctx, "enrollment:FetchEnr")
	defer span.End()
	span.SetAttributes(
		attribute.Int("year", year),
		attribute.Bool("use_cache", opts.UseCache),
	)

	start := time.Now()
	infrastructure.RecordActiveFetchChange(ctx, s.metrics, 1)
	defer infrastructure.RecordActiveFetchChange(ctx, s.metrics, -1)

	merged, err := s.fetchMerged(ctx, year, opts)
	if err != nil {
		infrastructure.RecordFetchMetrics(ctx, s.metrics, year, time.Since(start), false, err)
		return nil, err
	}

	tidyStart := time.Now()
	records := enrollment.Tidy(merged, year, s.logger)
	infrastructure.RecordStageMetrics(ctx, s.metrics, year, "tidy", time.Since(tidyStart), true)

	infrastructure.RecordFetchMetrics(ctx, s.metrics, year, time.Since(start), true, nil)
	infrastructure.RecordFetchRecords(ctx, s.metrics, year, int64(len(records)))

	s.logger.InfoContext(ctx, "enrollment fetch completed",
		slog.Int("year", year),
		slog.Int("records", len(records)),
		slog.Duration("duration", time.Since(start)))
	return records, nil
}

// FetchEnrRaw returns the merged wide table for one school year without
// the tidy transformation.
func (s *EnrollmentService) FetchEnrRaw(ctx context.Context, year int, opts FetchOptions) (*enrollment.Table, error) {
	ctx, span := tracer.Start(ctx, "enrollment:FetchEnrRaw")
	defer span.End()
	span.SetAttributes(
		attribute.Int("year", year),
		attribute.Bool("use_cache", opts.UseCache),
	)

	start := time.Now()
	infrastructure.RecordActiveFetchChange(ctx, s.metrics, 1)
	defer infrastructure.RecordActiveFetchChange(ctx, s.metrics, -1)

	merged, err := s.fetchMerged(ctx, year, opts)
	infrastructure.RecordFetchMetrics(ctx, s.metrics, year, time.Since(start), err == nil, err)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "raw enrollment fetch completed",
		slog.Int("year", year),
		slog.Int("rows", merged.Len()),
		slog.Duration("duration", time.Since(start)))
	return merged, nil
}

// FetchEnrMulti fetches several years strictly in request order and
// concatenates the results. Any year's fatal error fails the whole call;
// there are no silently-short results.
func (s *EnrollmentService) FetchEnrMulti(ctx context.Context, years []int, opts FetchOptions) ([]domain.TidyRecord, error) {
	ctx, span := tracer.Start(ctx, "enrollment:FetchEnrMulti")
	defer span.End()
	span.SetAttributes(attribute.IntSlice("years", years))

	if len(years) == 0 {
		return nil, apperrors.NewAppError(apperrors.ErrTypeValidation,
			"at least one year is required", ErrNoYearsRequested)
	}

	var all []domain.TidyRecord
	for _, year := range years {
		records, err := s.FetchEnr(ctx, year, opts)
		if err != nil {
			return nil, err
		}
		all = append(all, records...)
	}

	s.logger.InfoContext(ctx, "multi-year fetch completed",
		slog.Int("years", len(years)),
		slog.Int("records", len(all)))
	return all, nil
}

// CacheStatus lists the cached dataset entries.
func (s *EnrollmentService) CacheStatus(ctx context.Context) ([]domain.CacheEntryInfo, error) {
	return s.store.Status(ctx)
}

// ClearCache removes cached entries for the given years, or everything
// when no years are named. It returns the number of entries removed.
func (s *EnrollmentService) ClearCache(ctx context.Context, years ...int) (int, error) {
	removed, err := s.store.Clear(ctx, years...)
	if err != nil {
		return removed, err
	}

	infrastructure.RecordCacheClear(ctx, s.metrics, int64(removed))
	s.logger.InfoContext(ctx, "cache cleared",
		slog.Int("removed", removed),
		slog.Int("years_named", len(years)))
	return removed, nil
}

// fetchMerged runs the per-year pipeline up to and including the merge.
func (s *EnrollmentService) fetchMerged(ctx context.Context, year int, opts FetchOptions) (*enrollment.Table, error) {
	if err := enrollment.ValidateYear(year, s.bounds); err != nil {
		return nil, err
	}

	subgroupData, err := s.fetchDataset(ctx, year, domain.DatasetSubgroup, opts.UseCache)
	if err != nil {
		return nil, err
	}

	parseStart := time.Now()
	demographic, err := enrollment.ParseTable(subgroupData)
	infrastructure.RecordStageMetrics(ctx, s.metrics, year, "parse", time.Since(parseStart), err == nil)
	if err != nil {
		return nil, err
	}
	demographic = demographic.FilterYear(year)

	grade, err := s.fetchGradeTable(ctx, year, opts)
	if err != nil {
		return nil, err
	}

	mergeStart := time.Now()
	merged := enrollment.Merge(demographic, grade, s.logger)
	infrastructure.RecordStageMetrics(ctx, s.metrics, year, "merge", time.Since(mergeStart), true)
	return merged, nil
}

// fetchGradeTable loads the optional grade dataset. Resolution failure
// degrades to no grade enrichment; transport and parse failures stay
// fatal for the year.
func (s *EnrollmentService) fetchGradeTable(ctx context.Context, year int, opts FetchOptions) (*enrollment.Table, error) {
	data, err := s.fetchDataset(ctx, year, domain.DatasetGrade, opts.UseCache)
	if err != nil {
		if errors.Is(err, gadoe.ErrDatasetUnavailable) {
			s.logger.InfoContext(ctx, "grade dataset unavailable, continuing without grade enrichment",
				slog.Int("year", year))
			return nil, nil
		}
		return nil, err
	}

	parseStart := time.Now()
	grade, err := enrollment.ParseTable(data)
	infrastructure.RecordStageMetrics(ctx, s.metrics, year, "parse", time.Since(parseStart), err == nil)
	if err != nil {
		return nil, err
	}
	return grade.FilterYear(year), nil
}

// fetchDataset returns the raw payload for a (year, dataset) pair,
// serving from the cache when allowed and collapsing concurrent
// identical downloads.
func (s *EnrollmentService) fetchDataset(ctx context.Context, year int, dataset domain.Dataset, useCache bool) ([]byte, error) {
	if useCache {
		data, ok, err := s.store.Get(ctx, year, dataset)
		if err != nil {
			return nil, err
		}
		infrastructure.RecordCacheAccess(ctx, s.metrics, year, dataset.String(), ok)
		if ok {
			return data, nil
		}
	}

	key := fmt.Sprintf("%s/%d/cache=%t", dataset, year, useCache)
	v, err, shared := s.downloads.Do(key, func() (interface{}, error) {
		return s.downloadDataset(ctx, year, dataset, useCache)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		s.logger.DebugContext(ctx, "download shared with concurrent request",
			slog.Int("year", year),
			slog.String("dataset", dataset.String()))
	}
	return v.([]byte), nil
}

// downloadDataset resolves, downloads, and verifies one dataset payload,
// storing it for reuse when the cache is enabled.
func (s *EnrollmentService) downloadDataset(ctx context.Context, year int, dataset domain.Dataset, store bool) ([]byte, error) {
	resolveStart := time.Now()
	url, err := s.resolver.Resolve(ctx, year, dataset)
	infrastructure.RecordStageMetrics(ctx, s.metrics, year, "resolve", time.Since(resolveStart), err == nil)
	infrastructure.RecordURLResolution(ctx, s.metrics, year, dataset.String(), err == nil)
	if err != nil {
		return nil, err
	}

	downloadStart := time.Now()
	data, err := s.client.Download(ctx, url)
	infrastructure.RecordStageMetrics(ctx, s.metrics, year, "download", time.Since(downloadStart), err == nil)
	infrastructure.RecordDownload(ctx, s.metrics, year, dataset.String(), int64(len(data)), time.Since(downloadStart), err == nil)
	if err != nil {
		return nil, err
	}

	if err := validation.VerifyPayload(data, dataset); err != nil {
		return nil, err
	}

	if store {
		if err := s.store.Put(ctx, year, dataset, data); err != nil {
			return nil, err
		}
		infrastructure.RecordCacheWrite(ctx, s.metrics, year, dataset.String())
	}
	return data, nil
}
