package http

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"gaenroll/internal/enrollment"
	apierrors "gaenroll/internal/errors"
	"gaenroll/internal/exporter"
	"gaenroll/internal/gadoe"
	"gaenroll/internal/services"
)

// EnrollmentHandler handles enrollment HTTP requests with RFC 7807 compliance
type EnrollmentHandler struct {
	service      EnrollmentServiceInterface
	exporter     *exporter.EnrollmentExporter
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewEnrollmentHandler creates a new enrollment handler with RFC 7807 error handling
func NewEnrollmentHandler(service EnrollmentServiceInterface, exp *exporter.EnrollmentExporter, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *EnrollmentHandler {
	return &EnrollmentHandler{
		service:      service,
		exporter:     exp,
		logger:       logger.With(slog.String("component", "enrollment_handler")),
		errorHandler: errorHandler,
	}
}

// Routes returns the enrollment routes
func (h *EnrollmentHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/", h.GetEnrollment)
	r.Get("/years", h.GetYears)
	r.Get("/export", h.Export)

	return r
}

// GetYears handles GET /api/enrollment/years
func (h *EnrollmentHandler) GetYears(w http.ResponseWriter, r *http.Request) {
	bounds := h.service.AvailableYears()

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   bounds,
		"count":  bounds.MaxYear - bounds.MinYear + 1,
	})
}

// GetEnrollment handles GET /api/enrollment with year= or years= plus the
// cache= and raw= switches
func (h *EnrollmentHandler) GetEnrollment(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetReqID(r.Context())

	years, apiErr := parseYearParams(r)
	if apiErr != nil {
		h.errorHandler.HandleError(w, r, apiErr)
		return
	}

	opts, apiErr := parseFetchOptions(r)
	if apiErr != nil {
		h.errorHandler.HandleError(w, r, apiErr)
		return
	}

	raw := false
	if v := r.URL.Query().Get("raw"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			h.errorHandler.HandleError(w, r, apierrors.ErrValidation("raw", "raw must be a boolean"))
			return
		}
		raw = parsed
	}
	if raw && len(years) > 1 {
		h.errorHandler.HandleError(w, r, apierrors.ErrValidation("raw", "raw output supports a single year"))
		return
	}

	h.logger.InfoContext(r.Context(), "fetching enrollment",
		slog.String("request_id", reqID),
		slog.Any("years", years),
		slog.Bool("use_cache", opts.UseCache),
		slog.Bool("raw", raw),
	)

	if raw {
		table, err := h.service.FetchEnrRaw(r.Context(), years[0], opts)
		if err != nil {
			h.handleFetchError(w, r, err, reqID)
			return
		}
		render.JSON(w, r, map[string]interface{}{
			"status": "success",
			"data":   table,
			"count":  table.Len(),
		})
		return
	}

	records, err := h.service.FetchEnrMulti(r.Context(), years, opts)
	if err != nil {
		h.handleFetchError(w, r, err, reqID)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   records,
		"count":  len(records),
	})
}

// Export handles GET /api/enrollment/export, streaming the requested
// years as a downloadable CSV or XLSX file
func (h *EnrollmentHandler) Export(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetReqID(r.Context())

	years, apiErr := parseYearParams(r)
	if apiErr != nil {
		h.errorHandler.HandleError(w, r, apiErr)
		return
	}

	opts, apiErr := parseFetchOptions(r)
	if apiErr != nil {
		h.errorHandler.HandleError(w, r, apiErr)
		return
	}

	format, err := exporter.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		h.errorHandler.HandleError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "exporting enrollment",
		slog.String("request_id", reqID),
		slog.Any("years", years),
		slog.String("format", string(format)),
	)

	records, err := h.service.FetchEnrMulti(r.Context(), years, opts)
	if err != nil {
		h.handleFetchError(w, r, err, reqID)
		return
	}

	filename := exporter.ExportFilename(years, format)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))

	switch format {
	case exporter.FormatXLSX:
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		err = h.exporter.StreamXLSX(w, records)
	default:
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		err = h.exporter.StreamCSV(w, records)
	}
	if err != nil {
		// Headers are already on the wire; all we can do is log.
		h.logger.ErrorContext(r.Context(), "export stream failed",
			slog.String("error", err.Error()),
			slog.String("request_id", reqID),
			slog.String("filename", filename),
		)
	}
}

// handleFetchError maps pipeline sentinels onto API errors before falling
// back to the generic handler
func (h *EnrollmentHandler) handleFetchError(w http.ResponseWriter, r *http.Request, err error, reqID string) {
	h.logger.ErrorContext(r.Context(), "enrollment fetch failed",
		slog.String("error", err.Error()),
		slog.String("request_id", reqID),
	)

	if errors.Is(err, enrollment.ErrYearOutOfRange) {
		h.errorHandler.HandleError(w, r, apierrors.YearOutOfRangeError(err))
		return
	}
	if errors.Is(err, gadoe.ErrDatasetUnavailable) {
		h.errorHandler.HandleError(w, r, apierrors.DatasetUnavailableError(err))
		return
	}

	h.errorHandler.HandleError(w, r, err)
}

// parseYearParams reads the year= or years= query parameter into a list
// of requested years
func parseYearParams(r *http.Request) ([]int, *apierrors.APIError) {
	single := r.URL.Query().Get("year")
	multi := r.URL.Query().Get("years")

	switch {
	case single != "" && multi != "":
		return nil, apierrors.ErrValidation("year", "year and years are mutually exclusive")
	case single == "" && multi == "":
		return nil, apierrors.ErrValidation("year", "year or years is required")
	case single != "":
		year, err := strconv.Atoi(single)
		if err != nil {
			return nil, apierrors.ErrValidation("year", fmt.Sprintf("invalid year %q", single))
		}
		return []int{year}, nil
	default:
		parts := strings.Split(multi, ",")
		years := make([]int, 0, len(parts))
		for _, part := range parts {
			year, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil {
				return nil, apierrors.ErrValidation("years", fmt.Sprintf("invalid year %q", part))
			}
			years = append(years, year)
		}
		return years, nil
	}
}

// parseFetchOptions reads the cache= switch, defaulting to cached fetches
func parseFetchOptions(r *http.Request) (services.FetchOptions, *apierrors.APIError) {
	opts := services.DefaultFetchOptions()
	if v := r.URL.Query().Get("cache"); v != "" {
		useCache, err := strconv.ParseBool(v)
		if err != nil {
			return opts, apierrors.ErrValidation("cache", "cache must be a boolean")
		}
		opts.UseCache = useCache
	}
	return opts, nil
}
