package http

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	apierrors "gaenroll/internal/errors"
)

// CacheHandler handles dataset cache HTTP requests
type CacheHandler struct {
	service      EnrollmentServiceInterface
	logger       *slog.Logger
	errorHandler *apierrors.ErrorHandler
}

// NewCacheHandler creates a new cache handler
func NewCacheHandler(service EnrollmentServiceInterface, logger *slog.Logger, errorHandler *apierrors.ErrorHandler) *CacheHandler {
	return &CacheHandler{
		service:      service,
		logger:       logger.With(slog.String("component", "cache_handler")),
		errorHandler: errorHandler,
	}
}

// Routes returns the cache routes
func (h *CacheHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Get("/", h.Status)
	r.Delete("/", h.Clear)

	return r
}

// Status handles GET /api/cache
func (h *CacheHandler) Status(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetReqID(r.Context())

	entries, err := h.service.CacheStatus(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to read cache status",
			slog.String("error", err.Error()),
			slog.String("request_id", reqID),
		)
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   entries,
		"count":  len(entries),
	})
}

// Clear handles DELETE /api/cache with an optional year= parameter
func (h *CacheHandler) Clear(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetReqID(r.Context())

	var years []int
	if v := r.URL.Query().Get("year"); v != "" {
		year, err := strconv.Atoi(v)
		if err != nil {
			h.errorHandler.HandleError(w, r, apierrors.ErrValidation("year", fmt.Sprintf("invalid year %q", v)))
			return
		}
		years = append(years, year)
	}

	h.logger.InfoContext(r.Context(), "clearing cache",
		slog.String("request_id", reqID),
		slog.Any("years", years),
	)

	removed, err := h.service.ClearCache(r.Context(), years...)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to clear cache",
			slog.String("error", err.Error()),
			slog.String("request_id", reqID),
		)
		h.errorHandler.HandleError(w, r, err)
		return
	}

	render.JSON(w, r, map[string]interface{}{
		"status": "success",
		"data":   map[string]interface{}{"removed": removed},
		"count":  removed,
	})
}
