package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gaenroll/internal/config"
)

// setupTestEnvironment sets up a clean test environment
func setupTestEnvironment(t *testing.T) func() {
	t.Helper()

	// Set up test config environment
	os.Setenv("GAENROLL_SERVER_PORT", "8081")    // Use different port for testing
	os.Setenv("GAENROLL_LOGGING_LEVEL", "error") // Reduce log noise in tests
	os.Setenv("GAENROLL_LOGGING_OUTPUT", "stdout")

	return func() {
		os.Unsetenv("GAENROLL_SERVER_PORT")
		os.Unsetenv("GAENROLL_LOGGING_LEVEL")
		os.Unsetenv("GAENROLL_LOGGING_OUTPUT")
	}
}

// createTestLogger creates a logger that discards output for testing
func createTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

// TestNewApplication tests the NewApplication function
func TestNewApplication(t *testing.T) {
	tests := []struct {
		name          string
		setupEnv      func()
		wantErr       bool
		errorContains string
	}{
		{
			name:     "successful initialization",
			setupEnv: func() {},
			wantErr:  false,
		},
		{
			name: "initialization with invalid config",
			setupEnv: func() {
				os.Setenv("GAENROLL_SERVER_PORT", "-1") // Invalid port
			},
			wantErr:       true,
			errorContains: "config validation failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cleanup := setupTestEnvironment(t)
			defer cleanup()

			if tt.setupEnv != nil {
				tt.setupEnv()
			}

			app, err := NewApplication()

			if tt.wantErr {
				assert.Error(t, err)
				if tt.errorContains != "" {
					assert.Contains(t, err.Error(), tt.errorContains)
				}
				assert.Nil(t, app)
			} else {
				assert.NoError(t, err)
				if assert.NotNil(t, app) {
					assert.NotNil(t, app.Config)
					assert.NotNil(t, app.Logger)
					assert.NotNil(t, app.Router)
					assert.NotNil(t, app.Server)
					assert.NotNil(t, app.EnrollmentService)
					assert.NotNil(t, app.HealthService)
					assert.NotNil(t, app.Services)
					assert.NotNil(t, app.Services.Enrollment)
					assert.NotNil(t, app.Services.Health)
					assert.NotNil(t, app.Services.Store)
				}
			}
		})
	}
}

// TestApplication_setupRouter tests that all routes are registered
func TestApplication_setupRouter(t *testing.T) {
	cleanup := setupTestEnvironment(t)
	defer cleanup()

	app, err := NewApplication()
	require.NoError(t, err)
	require.NotNil(t, app.Router)

	testServer := httptest.NewServer(app.Router)
	defer testServer.Close()

	tests := []struct {
		name         string
		path         string
		wantStatus   int
		bodyContains string
	}{
		{
			name:         "healthz endpoint",
			path:         "/healthz",
			wantStatus:   http.StatusOK,
			bodyContains: `"status":"ok"`,
		},
		{
			name:         "version endpoint",
			path:         "/version",
			wantStatus:   http.StatusOK,
			bodyContains: VERSION,
		},
		{
			name:         "api health endpoint",
			path:         "/api/health",
			wantStatus:   http.StatusOK,
			bodyContains: `"status":"ok"`,
		},
		{
			name:         "api version endpoint",
			path:         "/api/version",
			wantStatus:   http.StatusOK,
			bodyContains: VERSION,
		},
		{
			name:         "available years endpoint",
			path:         "/api/enrollment/years",
			wantStatus:   http.StatusOK,
			bodyContains: `"min_year"`,
		},
		{
			name:         "cache status endpoint",
			path:         "/api/cache",
			wantStatus:   http.StatusOK,
			bodyContains: `"status":"success"`,
		},
		{
			name:       "unknown route",
			path:       "/api/nope",
			wantStatus: http.StatusNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Get(testServer.URL + tt.path)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, tt.wantStatus, resp.StatusCode)

			if tt.bodyContains != "" {
				body, err := io.ReadAll(resp.Body)
				require.NoError(t, err)
				assert.Contains(t, string(body), tt.bodyContains)
			}
		})
	}

	t.Run("metrics endpoint", func(t *testing.T) {
		resp, err := http.Get(testServer.URL + "/metrics")
		require.NoError(t, err)
		defer resp.Body.Close()

		// The shared prometheus registry may hold collectors from other
		// tests, so only assert the route is registered.
		assert.NotEqual(t, http.StatusNotFound, resp.StatusCode)
	})
}

// TestApplication_getCORSConfig tests CORS configuration per environment
func TestApplication_getCORSConfig(t *testing.T) {
	cleanup := setupTestEnvironment(t)
	defer cleanup()

	t.Run("development mode uses localhost origins", func(t *testing.T) {
		cfg := config.Default()
		cfg.Logging.Development = true
		app := &Application{Config: cfg, Logger: createTestLogger()}

		corsConfig := app.getCORSConfig()

		assert.Contains(t, corsConfig.AllowedOrigins, "http://localhost:3000")
		assert.Contains(t, corsConfig.AllowedMethods, "GET")
		assert.Contains(t, corsConfig.AllowedMethods, "DELETE")
		assert.NotContains(t, corsConfig.AllowedMethods, "POST")
	})

	t.Run("production mode uses configured origins", func(t *testing.T) {
		cfg := config.Default()
		cfg.Logging.Development = false
		cfg.Security.AllowedOrigins = []string{"https://data.example.gov"}
		app := &Application{Config: cfg, Logger: createTestLogger()}

		corsConfig := app.getCORSConfig()

		assert.Equal(t, []string{"https://data.example.gov"}, corsConfig.AllowedOrigins)
		assert.Contains(t, corsConfig.ExposedHeaders, "Content-Disposition")
	})
}

// TestApplication_isDevelopmentMode tests development mode detection
func TestApplication_isDevelopmentMode(t *testing.T) {
	tests := []struct {
		name        string
		development bool
		envVars     map[string]string
		want        bool
	}{
		{
			name:        "config development flag",
			development: true,
			want:        true,
		},
		{
			name:    "GO_ENV development",
			envVars: map[string]string{"GO_ENV": "development"},
			want:    true,
		},
		{
			name:    "ENVIRONMENT development",
			envVars: map[string]string{"ENVIRONMENT": "development"},
			want:    true,
		},
		{
			name:    "production environment",
			envVars: map[string]string{"ENVIRONMENT": "production"},
			want:    false,
		},
		{
			name: "no indicators",
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for key, value := range tt.envVars {
				os.Setenv(key, value)
			}
			defer func() {
				for key := range tt.envVars {
					os.Unsetenv(key)
				}
			}()

			cfg := config.Default()
			cfg.Logging.Development = tt.development
			app := &Application{Config: cfg, Logger: createTestLogger()}

			assert.Equal(t, tt.want, app.isDevelopmentMode())
		})
	}
}

// TestApplication_performStartupHealthCheck tests directory write probes
func TestApplication_performStartupHealthCheck(t *testing.T) {
	t.Run("all directories writable", func(t *testing.T) {
		paths := config.PathsFor(t.TempDir())
		require.NoError(t, paths.EnsureDirectories())

		app := &Application{Logger: createTestLogger(), paths: paths}

		err := app.performStartupHealthCheck(context.Background())
		assert.NoError(t, err)
	})

	t.Run("missing directories produce warnings", func(t *testing.T) {
		paths := config.PathsFor(filepath.Join(t.TempDir(), "does-not-exist"))

		app := &Application{Logger: createTestLogger(), paths: paths}

		err := app.performStartupHealthCheck(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not writable")
	})
}

// TestApplication_createServer tests server construction from config
func TestApplication_createServer(t *testing.T) {
	cfg := config.Default()
	cfg.Server.Port = 9123
	cfg.Server.ReadTimeout = 7 * time.Second

	app := &Application{Config: cfg, Logger: createTestLogger()}
	app.Router = nil
	app.createServer()

	require.NotNil(t, app.Server)
	assert.Equal(t, ":9123", app.Server.Addr)
	assert.Equal(t, 7*time.Second, app.Server.ReadTimeout)
	assert.Equal(t, cfg.Server.WriteTimeout, app.Server.WriteTimeout)
	assert.Equal(t, cfg.Server.MaxHeaderBytes, app.Server.MaxHeaderBytes)
}

// TestApplication_StartAndStop tests the application lifecycle
func TestApplication_StartAndStop(t *testing.T) {
	cleanup := setupTestEnvironment(t)
	defer cleanup()
	os.Setenv("GAENROLL_SERVER_PORT", "38115")

	app, err := NewApplication()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err = app.Start(ctx, cancel)
	require.NoError(t, err)

	// Give the server a moment to bind
	time.Sleep(100 * time.Millisecond)

	err = app.Stop(context.Background())
	assert.NoError(t, err)
}

// TestGenerateBuildID tests build ID generation
func TestGenerateBuildID(t *testing.T) {
	id := generateBuildID()
	assert.Len(t, id, 12)

	// Deterministic for the same version and day
	assert.Equal(t, id, generateBuildID())
}
