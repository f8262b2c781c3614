package http

import (
	"context"

	"gaenroll/internal/enrollment"
	"gaenroll/internal/services"
	"gaenroll/pkg/contracts/domain"
)

// EnrollmentServiceInterface defines the interface for enrollment operations
type EnrollmentServiceInterface interface {
	AvailableYears() domain.YearRange
	FetchEnr(ctx context.Context, year int, opts services.FetchOptions) ([]domain.TidyRecord, error)
	FetchEnrRaw(ctx context.Context, year int, opts services.FetchOptions) (*enrollment.Table, error)
	FetchEnrMulti(ctx context.Context, years []int, opts services.FetchOptions) ([]domain.TidyRecord, error)
	CacheStatus(ctx context.Context) ([]domain.CacheEntryInfo, error)
	ClearCache(ctx context.Context, years ...int) (int, error)
}
