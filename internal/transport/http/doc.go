// Package http implements HTTP request handlers for the enrollment web
// service. It provides a thin layer between HTTP transport and business
// logic, following the clean architecture principle of keeping handlers
// focused solely on HTTP concerns.
//
// # Architecture Principles
//
// Handlers in this package follow these principles:
//
//	1. Thin handlers - minimal logic, delegate to services
//	2. HTTP-only concerns - request parsing, response formatting
//	3. Error transformation - convert service errors to HTTP responses
//	4. No business logic - all logic belongs in the service layer
//	5. Consistent patterns - standardized request/response handling
//
// # Request Flow
//
// A typical request flows through these layers:
//
//	HTTP Request → Chi Router → Middleware → Handler → Service → Source/Cache
//	                                              ↓
//	HTTP Response ← Handler ← Service Response ←─┘
//
// # Handler Structure
//
// Each handler follows this pattern:
//
//	func (h *Handler) HandleSomething(w http.ResponseWriter, r *http.Request) {
//	    // 1. Parse and validate request
//	    years, apiErr := parseYearParams(r)
//	    if apiErr != nil {
//	        h.errorHandler.HandleError(w, r, apiErr)
//	        return
//	    }
//
//	    // 2. Call service layer
//	    records, err := h.service.FetchEnrMulti(r.Context(), years, opts)
//	    if err != nil {
//	        h.handleFetchError(w, r, err, reqID)
//	        return
//	    }
//
//	    // 3. Format and send response
//	    render.JSON(w, r, map[string]interface{}{
//	        "status": "success",
//	        "data":   records,
//	        "count":  len(records),
//	    })
//	}
//
// # Error Handling
//
// All errors follow RFC 7807 Problem Details specification:
//
//	{
//	    "type": "https://gaenroll.dev/errors/year-out-of-range",
//	    "title": "School Year Out of Range",
//	    "status": 404,
//	    "detail": "year 1999 predates the published range 2011-2024",
//	    "instance": "/api/enrollment"
//	}
//
// Sentinel errors from the pipeline are mapped before falling through to
// the generic handler: a year outside the published range and a dataset
// the source never published both surface as 404s with distinct error
// codes, upstream portal failures as 502.
//
// # Export Streaming
//
// The export endpoint streams CSV or XLSX directly to the response body
// with a Content-Disposition attachment header. Once streaming starts
// the status line is already on the wire, so late errors are logged but
// cannot change the response code.
//
// # Middleware Integration
//
// Handlers work with these middleware:
//
//	- RequestID: Adds unique request ID for tracing
//	- Logger: Structured logging with slog
//	- Recovery: Handles panics gracefully
//	- CORS: Configures cross-origin requests
//
// # Testing
//
// Handlers are tested using httptest:
//
//	- Mock service dependencies
//	- Test various HTTP scenarios
//	- Verify error responses
//	- Check middleware integration
package http
