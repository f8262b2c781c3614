// Package config provides centralized configuration management for gaenroll.
// It handles loading configuration from multiple sources, validation, and
// provides a type-safe API for accessing configuration values throughout the
// application.
//
// # Configuration Sources
//
// Configuration is loaded from the following sources in order of precedence:
//
//	1. Environment variables (highest priority)
//	2. Configuration file (YAML)
//	3. Default values (lowest priority)
//
// File and environment layers are merged over the defaults with mergo, so a
// layer only overrides the fields it actually sets.
//
// # Environment Variables
//
// All environment variables follow the pattern GAENROLL_* for namespacing:
//
//	GAENROLL_SERVER_PORT=8080
//	GAENROLL_SOURCE_BASE_URL=https://download.gadoe.org/Reports/Enrollment
//	GAENROLL_YEARS_MAX=2025
//	GAENROLL_LOGGING_LEVEL=debug
//
// GAENROLL_CONFIG_FILE points at an explicit YAML file; otherwise a few
// conventional locations are probed.
//
// # Path Management
//
// The package provides centralized path management through the Paths type,
// which handles all file system paths relative to the executable location:
//
//	paths, err := config.GetPaths()
//	cachePath := paths.GetCachePath("enrollment_subgroup_2024.csv")
//	exportPath := paths.GetExportPath("enrollment_2024.xlsx")
//
// # Validation
//
// The merged configuration is validated with go-playground/validator at load
// time, so an out-of-range port or a malformed source URL fails startup
// rather than the first request.
package config
