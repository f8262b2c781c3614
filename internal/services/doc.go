// Package services implements the business logic layer of the enrollment
// application. It provides a clean separation between HTTP handlers and
// the acquisition plumbing, ensuring that pipeline rules are centralized
// and testable.
//
// # Architecture
//
// Services follow these architectural principles:
//
//	1. Concrete dependencies injected through constructors
//	2. Context propagation for cancellation and tracing
//	3. Explicit error types that handlers can map onto responses
//	4. Domain-focused methods that encapsulate pipeline rules
//
// # Available Services
//
// The package provides two services:
//
//	- EnrollmentService: runs the acquisition pipeline (validate,
//	  resolve, fetch with cache, parse, merge, tidy) and manages the
//	  dataset cache
//	- HealthService: provides liveness, readiness, and system statistics
//
// # Common Service Pattern
//
// Services typically follow this structure:
//
//	type ServiceName struct {
//	    store  cache.Store
//	    logger *slog.Logger
//	}
//
//	func NewServiceName(store cache.Store, logger *slog.Logger) *ServiceName {
//	    if logger == nil {
//	        logger = slog.Default()
//	    }
//	    return &ServiceName{store: store, logger: logger}
//	}
//
//	func (s *ServiceName) Operation(ctx context.Context, year int) ([]domain.TidyRecord, error) {
//	    if err := enrollment.ValidateYear(year, s.bounds); err != nil {
//	        return nil, err
//	    }
//	    // ...
//	}
//
// # Error Handling
//
// Services return AppError values whose types handlers transform into
// HTTP responses:
//
//	- Out-of-range errors for years outside the published span
//	- Resolution errors when no download URL can be located
//	- Transport errors for portal failures
//	- Parsing errors for malformed payloads
//	- Validation errors for invalid input
//
// # Testing
//
// Services are tested against a fake portal served by httptest, which
// lets tests assert on exact network traffic:
//
//	h := newEnrollmentHarness(t, bounds)
//	h.addFile(2024, filename, payload)
//	records, err := h.service.FetchEnr(ctx, 2024, DefaultFetchOptions())
package services
