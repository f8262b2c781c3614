package infrastructure

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	ServiceName    = "gaenroll"
	ServiceVersion = "1.2.0"
	MeterName      = "gaenroll"
)

// OTelConfig holds OpenTelemetry configuration
type OTelConfig struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	TraceExporter  string // "stdout", "otlp", "none"
	MetricExporter string // "prometheus", "stdout", "none"
	EnableMetrics  bool
	EnableTracing  bool
	SampleRatio    float64
	PrometheusPort string
}

// OTelProviders holds the OpenTelemetry providers
type OTelProviders struct {
	TracerProvider *sdktrace.TracerProvider
	MeterProvider  *sdkmetric.MeterProvider
	Tracer         trace.Tracer
	Meter          metric.Meter
	PrometheusHTTP http.Handler
	Logger         *slog.Logger
}

// DefaultOTelConfig returns a default OpenTelemetry configuration
func DefaultOTelConfig() *OTelConfig {
	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	return &OTelConfig{
		ServiceName:    ServiceName,
		ServiceVersion: ServiceVersion,
		Environment:    env,
		TraceExporter:  "stdout", // Use stdout for development
		MetricExporter: "prometheus",
		EnableMetrics:  true,
		EnableTracing:  true,
		SampleRatio:    1.0, // Sample all traces in development
		PrometheusPort: "9090",
	}
}

// InitializeOTel initializes OpenTelemetry with comprehensive observability
func InitializeOTel(cfg *OTelConfig, logger *slog.Logger) (*OTelProviders, error) {
	if cfg == nil {
		cfg = DefaultOTelConfig()
	}

	ctx := context.Background()

	logger.InfoContext(ctx, "Initializing OpenTelemetry",
		slog.String("service", cfg.ServiceName),
		slog.String("version", cfg.ServiceVersion),
		slog.String("environment", cfg.Environment),
		slog.Bool("tracing_enabled", cfg.EnableTracing),
		slog.Bool("metrics_enabled", cfg.EnableMetrics))

	// Create resource
	res, err := createResource(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	providers := &OTelProviders{
		Logger: logger,
	}

	// Initialize tracing
	if cfg.EnableTracing {
		if err := initializeTracing(ctx, cfg, res, providers); err != nil {
			return nil, fmt.Errorf("failed to initialize tracing: %w", err)
		}
	}

	// Initialize metrics
	if cfg.EnableMetrics {
		if err := initializeMetrics(ctx, cfg, res, providers); err != nil {
			return nil, fmt.Errorf("failed to initialize metrics: %w", err)
		}
	}

	// Set up global propagators for trace context
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	logger.InfoContext(ctx, "OpenTelemetry initialization complete",
		slog.Bool("tracing_enabled", cfg.EnableTracing),
		slog.Bool("metrics_enabled", cfg.EnableMetrics))

	return providers, nil
}

// createResource creates the OpenTelemetry resource
func createResource(cfg *OTelConfig) (*resource.Resource, error) {
	return resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
		semconv.DeploymentEnvironment(cfg.Environment),
		attribute.String("service.instance.id", generateInstanceID()),
	), nil
}

// initializeTracing sets up OpenTelemetry tracing
func initializeTracing(ctx context.Context, cfg *OTelConfig, res *resource.Resource, providers *OTelProviders) error {
	var exporter sdktrace.SpanExporter
	var err error

	switch cfg.TraceExporter {
	case "stdout":
		exporter, err = stdouttrace.New(
			stdouttrace.WithPrettyPrint(),
		)
	case "none":
		// No exporter - tracing disabled
		return nil
	default:
		return fmt.Errorf("unsupported trace exporter: %s", cfg.TraceExporter)
	}

	if err != nil {
		return fmt.Errorf("failed to create trace exporter: %w", err)
	}

	// Create tracer provider
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(cfg.SampleRatio)),
	)

	providers.TracerProvider = tp
	providers.Tracer = tp.Tracer(MeterName, trace.WithInstrumentationVersion(cfg.ServiceVersion))

	// Set global tracer provider
	otel.SetTracerProvider(tp)

	providers.Logger.InfoContext(ctx, "Tracing initialized",
		slog.String("exporter", cfg.TraceExporter),
		slog.Float64("sample_ratio", cfg.SampleRatio))

	return nil
}

// initializeMetrics sets up OpenTelemetry metrics
func initializeMetrics(ctx context.Context, cfg *OTelConfig, res *resource.Resource, providers *OTelProviders) error {
	switch cfg.MetricExporter {
	case "prometheus":
		// Create Prometheus exporter
		exporter, err := prometheus.New()
		if err != nil {
			return fmt.Errorf("failed to create prometheus exporter: %w", err)
		}

		// Create Prometheus HTTP handler
		providers.PrometheusHTTP = promhttp.Handler()

		// Create meter provider with Prometheus reader
		mp := sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(exporter),
		)

		providers.MeterProvider = mp
		providers.Meter = mp.Meter(MeterName, metric.WithInstrumentationVersion(cfg.ServiceVersion))

		// Set global meter provider
		otel.SetMeterProvider(mp)

	case "none":
		// No exporter - metrics disabled
		return nil
	default:
		return fmt.Errorf("unsupported metric exporter: %s", cfg.MetricExporter)
	}

	providers.Logger.InfoContext(ctx, "Metrics initialized",
		slog.String("exporter", cfg.MetricExporter))

	return nil
}

// CreateBusinessMetrics creates application-specific metrics
func CreateBusinessMetrics(meter metric.Meter) (*BusinessMetrics, error) {
	// HTTP metrics
	httpRequestsTotal, err := meter.Int64Counter(
		"http_requests_total",
		metric.WithDescription("Total number of HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	httpRequestDuration, err := meter.Float64Histogram(
		"http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	httpActiveRequests, err := meter.Int64UpDownCounter(
		"http_active_requests",
		metric.WithDescription("Number of active HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	// Fetch pipeline metrics
	fetchRequestsTotal, err := meter.Int64Counter(
		"fetch_requests_total",
		metric.WithDescription("Total number of enrollment fetch requests"),
	)
	if err != nil {
		return nil, err
	}

	fetchDuration, err := meter.Float64Histogram(
		"fetch_duration_seconds",
		metric.WithDescription("Enrollment fetch duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	fetchStagesTotal, err := meter.Int64Counter(
		"fetch_stages_total",
		metric.WithDescription("Total number of fetch pipeline stages executed"),
	)
	if err != nil {
		return nil, err
	}

	fetchStageDuration, err := meter.Float64Histogram(
		"fetch_stage_duration_seconds",
		metric.WithDescription("Fetch pipeline stage duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	fetchActive, err := meter.Int64UpDownCounter(
		"fetch_active",
		metric.WithDescription("Number of fetches currently in flight"),
	)
	if err != nil {
		return nil, err
	}

	fetchErrors, err := meter.Int64Counter(
		"fetch_errors_total",
		metric.WithDescription("Total number of fetch errors"),
	)
	if err != nil {
		return nil, err
	}

	fetchRecordsTotal, err := meter.Int64Counter(
		"fetch_records_total",
		metric.WithDescription("Total number of tidy enrollment records produced"),
	)
	if err != nil {
		return nil, err
	}

	// Source download metrics
	downloadsTotal, err := meter.Int64Counter(
		"source_downloads_total",
		metric.WithDescription("Total number of downloads from the upstream portal"),
	)
	if err != nil {
		return nil, err
	}

	downloadBytes, err := meter.Int64Counter(
		"source_download_bytes",
		metric.WithDescription("Total bytes downloaded from the upstream portal"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, err
	}

	downloadDuration, err := meter.Float64Histogram(
		"source_download_duration_seconds",
		metric.WithDescription("Upstream download duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	urlResolutionsTotal, err := meter.Int64Counter(
		"source_url_resolutions_total",
		metric.WithDescription("Total number of upstream URL resolution attempts"),
	)
	if err != nil {
		return nil, err
	}

	// Cache metrics
	cacheHits, err := meter.Int64Counter(
		"cache_hits_total",
		metric.WithDescription("Total number of cache hits"),
	)
	if err != nil {
		return nil, err
	}

	cacheMisses, err := meter.Int64Counter(
		"cache_misses_total",
		metric.WithDescription("Total number of cache misses"),
	)
	if err != nil {
		return nil, err
	}

	cacheWrites, err := meter.Int64Counter(
		"cache_writes_total",
		metric.WithDescription("Total number of cache writes"),
	)
	if err != nil {
		return nil, err
	}

	cacheClears, err := meter.Int64Counter(
		"cache_clears_total",
		metric.WithDescription("Total number of cache clear operations"),
	)
	if err != nil {
		return nil, err
	}

	// System metrics
	systemErrors, err := meter.Int64Counter(
		"system_errors_total",
		metric.WithDescription("Total number of system errors"),
	)
	if err != nil {
		return nil, err
	}

	systemUptime, err := meter.Float64UpDownCounter(
		"system_uptime_seconds",
		metric.WithDescription("System uptime in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &BusinessMetrics{
		// HTTP metrics
		HTTPRequestsTotal:   httpRequestsTotal,
		HTTPRequestDuration: httpRequestDuration,
		HTTPActiveRequests:  httpActiveRequests,

		// Fetch pipeline metrics
		FetchRequestsTotal: fetchRequestsTotal,
		FetchDuration:      fetchDuration,
		FetchStagesTotal:   fetchStagesTotal,
		FetchStageDuration: fetchStageDuration,
		FetchActive:        fetchActive,
		FetchErrors:        fetchErrors,
		FetchRecordsTotal:  fetchRecordsTotal,

		// Source download metrics
		DownloadsTotal:      downloadsTotal,
		DownloadBytes:       downloadBytes,
		DownloadDuration:    downloadDuration,
		URLResolutionsTotal: urlResolutionsTotal,

		// Cache metrics
		CacheHits:   cacheHits,
		CacheMisses: cacheMisses,
		CacheWrites: cacheWrites,
		CacheClears: cacheClears,

		// System metrics
		SystemErrors: systemErrors,
		SystemUptime: systemUptime,
	}, nil
}

// BusinessMetrics holds all application-specific metrics
type BusinessMetrics struct {
	// HTTP metrics
	HTTPRequestsTotal   metric.Int64Counter
	HTTPRequestDuration metric.Float64Histogram
	HTTPActiveRequests  metric.Int64UpDownCounter

	// Fetch pipeline metrics
	FetchRequestsTotal metric.Int64Counter
	FetchDuration      metric.Float64Histogram
	FetchStagesTotal   metric.Int64Counter
	FetchStageDuration metric.Float64Histogram
	FetchActive        metric.Int64UpDownCounter
	FetchErrors        metric.Int64Counter
	FetchRecordsTotal  metric.Int64Counter

	// Source download metrics
	DownloadsTotal      metric.Int64Counter
	DownloadBytes       metric.Int64Counter
	DownloadDuration    metric.Float64Histogram
	URLResolutionsTotal metric.Int64Counter

	// Cache metrics
	CacheHits   metric.Int64Counter
	CacheMisses metric.Int64Counter
	CacheWrites metric.Int64Counter
	CacheClears metric.Int64Counter

	// System metrics
	SystemErrors metric.Int64Counter
	SystemUptime metric.Float64UpDownCounter
}

// Shutdown gracefully shuts down OpenTelemetry providers
func (p *OTelProviders) Shutdown(ctx context.Context) error {
	var errs []error

	if p.TracerProvider != nil {
		if err := p.TracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider shutdown: %w", err))
		}
	}

	if p.MeterProvider != nil {
		if err := p.MeterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider shutdown: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("opentelemetry shutdown errors: %v", errs)
	}

	p.Logger.InfoContext(ctx, "OpenTelemetry shutdown complete")
	return nil
}

// generateInstanceID generates a unique instance identifier
func generateInstanceID() string {
	hostname, _ := os.Hostname()
	return fmt.Sprintf("%s-%d", hostname, time.Now().Unix())
}

// TraceIDFromContext extracts trace ID from context for logging correlation
func TraceIDFromContext(ctx context.Context) string {
	spanCtx := trace.SpanContextFromContext(ctx)
	if spanCtx.IsValid() {
		return spanCtx.TraceID().String()
	}
	return ""
}

// SpanFromContext returns the current span from context
func SpanFromContext(ctx context.Context) trace.Span {
	return trace.SpanFromContext(ctx)
}

// AddSpanEvent adds an event to the current span with structured attributes
func AddSpanEvent(ctx context.Context, name string, attributes map[string]interface{}) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}

	attrs := make([]attribute.KeyValue, 0, len(attributes))
	for k, v := range attributes {
		switch val := v.(type) {
		case string:
			attrs = append(attrs, attribute.String(k, val))
		case int:
			attrs = append(attrs, attribute.Int(k, val))
		case int64:
			attrs = append(attrs, attribute.Int64(k, val))
		case float64:
			attrs = append(attrs, attribute.Float64(k, val))
		case bool:
			attrs = append(attrs, attribute.Bool(k, val))
		default:
			attrs = append(attrs, attribute.String(k, fmt.Sprintf("%v", val)))
		}
	}

	span.AddEvent(name, trace.WithAttributes(attrs...))
}

// RecordError records an error on the current span
func RecordError(ctx context.Context, err error, options ...trace.EventOption) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}

	span.RecordError(err, options...)
	span.SetStatus(codes.Error, err.Error())
}

// SetSpanAttributes sets attributes on the current span
func SetSpanAttributes(ctx context.Context, attributes map[string]interface{}) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}

	for k, v := range attributes {
		switch val := v.(type) {
		case string:
			span.SetAttributes(attribute.String(k, val))
		case int:
			span.SetAttributes(attribute.Int(k, val))
		case int64:
			span.SetAttributes(attribute.Int64(k, val))
		case float64:
			span.SetAttributes(attribute.Float64(k, val))
		case bool:
			span.SetAttributes(attribute.Bool(k, val))
		default:
			span.SetAttributes(attribute.String(k, fmt.Sprintf("%v", val)))
		}
	}
}

// RecordFetchMetrics records metrics for a complete enrollment fetch
func RecordFetchMetrics(ctx context.Context, metrics *BusinessMetrics, year int, duration time.Duration, success bool, err error) {
	if metrics == nil {
		return
	}

	// Common attributes
	attrs := []attribute.KeyValue{
		attribute.Int("year", year),
	}

	// Record execution
	metrics.FetchRequestsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))

	// Record duration
	statusAttr := attribute.String("status", "success")
	if !success {
		statusAttr = attribute.String("status", "failure")
	}
	durationAttrs := append(attrs, statusAttr)
	metrics.FetchDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(durationAttrs...))

	// Record errors
	if err != nil {
		errorAttrs := append(attrs, attribute.String("error.type", fmt.Sprintf("%T", err)))
		metrics.FetchErrors.Add(ctx, 1, metric.WithAttributes(errorAttrs...))
	}

	// Add span event
	span := trace.SpanFromContext(ctx)
	if span.IsRecording() {
		span.AddEvent("fetch.metrics_recorded",
			trace.WithAttributes(
				attribute.Int("year", year),
				attribute.Bool("success", success),
				attribute.Float64("duration_seconds", duration.Seconds()),
			),
		)
	}
}

// RecordStageMetrics records metrics for a single fetch pipeline stage
func RecordStageMetrics(ctx context.Context, metrics *BusinessMetrics, year int, stage string, duration time.Duration, success bool) {
	if metrics == nil {
		return
	}

	// Common attributes
	attrs := []attribute.KeyValue{
		attribute.Int("year", year),
		attribute.String("stage", stage),
	}

	// Record stage execution
	metrics.FetchStagesTotal.Add(ctx, 1, metric.WithAttributes(attrs...))

	// Record duration
	statusAttr := attribute.String("status", "success")
	if !success {
		statusAttr = attribute.String("status", "failure")
	}
	durationAttrs := append(attrs, statusAttr)
	metrics.FetchStageDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(durationAttrs...))
}

// RecordActiveFetchChange records changes in the in-flight fetch count
func RecordActiveFetchChange(ctx context.Context, metrics *BusinessMetrics, delta int64) {
	if metrics == nil {
		return
	}

	metrics.FetchActive.Add(ctx, delta)
}

// RecordCacheAccess records a cache hit or miss for a dataset lookup
func RecordCacheAccess(ctx context.Context, metrics *BusinessMetrics, year int, dataset string, hit bool) {
	if metrics == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.Int("year", year),
		attribute.String("dataset", dataset),
	}

	if hit {
		metrics.CacheHits.Add(ctx, 1, metric.WithAttributes(attrs...))
	} else {
		metrics.CacheMisses.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

// RecordFetchRecords records the tidy record count a fetch produced
func RecordFetchRecords(ctx context.Context, metrics *BusinessMetrics, year int, records int64) {
	if metrics == nil {
		return
	}

	metrics.FetchRecordsTotal.Add(ctx, records, metric.WithAttributes(
		attribute.Int("year", year),
	))
}

// RecordURLResolution records the outcome of a dataset URL resolution
func RecordURLResolution(ctx context.Context, metrics *BusinessMetrics, year int, dataset string, success bool) {
	if metrics == nil {
		return
	}

	statusAttr := attribute.String("status", "success")
	if !success {
		statusAttr = attribute.String("status", "failure")
	}

	metrics.URLResolutionsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.Int("year", year),
		attribute.String("dataset", dataset),
		statusAttr,
	))
}

// RecordCacheWrite records a stored cache entry
func RecordCacheWrite(ctx context.Context, metrics *BusinessMetrics, year int, dataset string) {
	if metrics == nil {
		return
	}

	metrics.CacheWrites.Add(ctx, 1, metric.WithAttributes(
		attribute.Int("year", year),
		attribute.String("dataset", dataset),
	))
}

// RecordCacheClear records removed cache entries
func RecordCacheClear(ctx context.Context, metrics *BusinessMetrics, removed int64) {
	if metrics == nil {
		return
	}

	if removed > 0 {
		metrics.CacheClears.Add(ctx, removed)
	}
}

// RecordDownload records a completed upstream download
func RecordDownload(ctx context.Context, metrics *BusinessMetrics, year int, dataset string, bytes int64, duration time.Duration, success bool) {
	if metrics == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.Int("year", year),
		attribute.String("dataset", dataset),
	}

	statusAttr := attribute.String("status", "success")
	if !success {
		statusAttr = attribute.String("status", "failure")
	}
	downloadAttrs := append(attrs, statusAttr)

	metrics.DownloadsTotal.Add(ctx, 1, metric.WithAttributes(downloadAttrs...))
	metrics.DownloadDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(downloadAttrs...))

	if bytes > 0 {
		metrics.DownloadBytes.Add(ctx, bytes, metric.WithAttributes(attrs...))
	}
}
