package config

import "time"

// Application constants shared across the gaenroll binaries
const (
	// Application Info
	AppName    = "gaenroll"
	AppVersion = "1.2.0"

	// Year Bounds
	// GADOE publishes downloadable enrollment files for these school years.
	// Earlier years go through the department's historical-data request
	// process instead of the download site.
	DefaultMinYear = 2011
	DefaultMaxYear = 2024

	// Upstream Source
	DefaultSourceBaseURL = "https://download.gadoe.org/Reports/Enrollment"
	DefaultUserAgent     = "gaenroll/" + AppVersion

	// Network Timeouts
	// Listing and probe calls are short so a dead directory fails fast;
	// full-file downloads get a generous window.
	DefaultListingTimeout  = 10 * time.Second
	DefaultProbeTimeout    = 5 * time.Second
	DefaultDownloadTimeout = 2 * time.Minute
	DefaultWriteTimeout    = 3 * time.Minute
	DefaultRequestTimeout  = 150 * time.Second

	// Upstream politeness
	DefaultSourceRPS   = 2.0
	DefaultSourceBurst = 4

	// API Rate Limiting
	DefaultRateLimit = 100 // requests per minute
	DefaultBurstSize = 50

	// File Paths (relative to executable)
	DefaultDataDir    = "data"
	DefaultCacheDir   = "data/cache"
	DefaultExportsDir = "data/exports"
	DefaultLogsDir    = "logs"

	// Log Settings
	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"

	// API Endpoints (internal)
	EnrollmentEndpoint = "/api/enrollment"
	CacheEndpoint      = "/api/cache"
	HealthEndpoint     = "/healthz"
	MetricsEndpoint    = "/metrics"
	VersionEndpoint    = "/version"
)
