package http

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"gaenroll/internal/config"
	"gaenroll/internal/enrollment"
	apierrors "gaenroll/internal/errors"
	"gaenroll/internal/exporter"
	"gaenroll/internal/gadoe"
	"gaenroll/internal/services"
	"gaenroll/pkg/contracts/domain"
)

// MockEnrollmentService is a mock implementation of EnrollmentServiceInterface
type MockEnrollmentService struct {
	mock.Mock
}

func (m *MockEnrollmentService) AvailableYears() domain.YearRange {
	args := m.Called()
	return args.Get(0).(domain.YearRange)
}

func (m *MockEnrollmentService) FetchEnr(ctx context.Context, year int, opts services.FetchOptions) ([]domain.TidyRecord, error) {
	args := m.Called(year, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.TidyRecord), args.Error(1)
}

func (m *MockEnrollmentService) FetchEnrRaw(ctx context.Context, year int, opts services.FetchOptions) (*enrollment.Table, error) {
	args := m.Called(year, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*enrollment.Table), args.Error(1)
}

func (m *MockEnrollmentService) FetchEnrMulti(ctx context.Context, years []int, opts services.FetchOptions) ([]domain.TidyRecord, error) {
	args := m.Called(years, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.TidyRecord), args.Error(1)
}

func (m *MockEnrollmentService) CacheStatus(ctx context.Context) ([]domain.CacheEntryInfo, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.CacheEntryInfo), args.Error(1)
}

func (m *MockEnrollmentService) ClearCache(ctx context.Context, years ...int) (int, error) {
	args := m.Called(years)
	return args.Int(0), args.Error(1)
}

func newTestEnrollmentHandler(t *testing.T, service EnrollmentServiceInterface) *EnrollmentHandler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	errorHandler := apierrors.NewErrorHandler(logger, false)
	exp := exporter.NewEnrollmentExporter(config.PathsFor(t.TempDir()))
	return NewEnrollmentHandler(service, exp, logger, errorHandler)
}

func testRecords() []domain.TidyRecord {
	white := int64(1200)
	pct := 35.4
	k := int64(260)
	return []domain.TidyRecord{
		{
			DistrictCode: "601", DistrictName: "Appling County",
			InstitutionNumber: "103", InstitutionName: "Appling County Elementary",
			EndYear: 2024, GradeLevel: "TOTAL", Subgroup: "white",
			NStudents: &white, Pct: &pct, IsSchool: true,
		},
		{
			DistrictCode: "601", DistrictName: "Appling County",
			InstitutionNumber: "103", InstitutionName: "Appling County Elementary",
			EndYear: 2024, GradeLevel: "K", Subgroup: "total_enrollment",
			NStudents: &k, IsSchool: true,
		},
	}
}

func TestEnrollmentHandler_GetYears(t *testing.T) {
	mockService := new(MockEnrollmentService)
	mockService.On("AvailableYears").Return(domain.YearRange{
		MinYear:     2011,
		MaxYear:     2024,
		Description: "school years ending 2011 through 2024",
	})
	handler := newTestEnrollmentHandler(t, mockService)

	req := httptest.NewRequest("GET", "/api/enrollment/years", nil)
	rec := httptest.NewRecorder()
	handler.GetYears(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"min_year":2011`)
	assert.Contains(t, rec.Body.String(), `"max_year":2024`)
	assert.Contains(t, rec.Body.String(), `"count":14`)
	mockService.AssertExpectations(t)
}

func TestEnrollmentHandler_GetEnrollment(t *testing.T) {
	bounds := domain.YearRange{MinYear: 2011, MaxYear: 2024}

	tests := []struct {
		name           string
		target         string
		setupMock      func(*MockEnrollmentService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name:   "single year",
			target: "/api/enrollment?year=2024",
			setupMock: func(m *MockEnrollmentService) {
				m.On("FetchEnrMulti", []int{2024}, services.DefaultFetchOptions()).
					Return(testRecords(), nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"status":"success"`,
		},
		{
			name:   "multiple years",
			target: "/api/enrollment?years=2022,2023,2024",
			setupMock: func(m *MockEnrollmentService) {
				m.On("FetchEnrMulti", []int{2022, 2023, 2024}, services.DefaultFetchOptions()).
					Return(testRecords(), nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"count":2`,
		},
		{
			name:   "cache disabled",
			target: "/api/enrollment?year=2024&cache=false",
			setupMock: func(m *MockEnrollmentService) {
				m.On("FetchEnrMulti", []int{2024}, services.FetchOptions{UseCache: false}).
					Return(testRecords(), nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"status":"success"`,
		},
		{
			name:           "malformed year",
			target:         "/api/enrollment?year=twenty",
			setupMock:      func(m *MockEnrollmentService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `VALIDATION_FAILED`,
		},
		{
			name:           "missing year",
			target:         "/api/enrollment",
			setupMock:      func(m *MockEnrollmentService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `year or years is required`,
		},
		{
			name:           "year and years together",
			target:         "/api/enrollment?year=2024&years=2022,2023",
			setupMock:      func(m *MockEnrollmentService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `mutually exclusive`,
		},
		{
			name:           "malformed cache switch",
			target:         "/api/enrollment?year=2024&cache=maybe",
			setupMock:      func(m *MockEnrollmentService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `cache must be a boolean`,
		},
		{
			name:   "year below range",
			target: "/api/enrollment?year=1999",
			setupMock: func(m *MockEnrollmentService) {
				m.On("FetchEnrMulti", []int{1999}, services.DefaultFetchOptions()).
					Return(nil, enrollment.ValidateYear(1999, bounds))
			},
			expectedStatus: http.StatusNotFound,
			expectedBody:   `YEAR_OUT_OF_RANGE`,
		},
		{
			name:   "dataset unavailable",
			target: "/api/enrollment?year=2023",
			setupMock: func(m *MockEnrollmentService) {
				m.On("FetchEnrMulti", []int{2023}, services.DefaultFetchOptions()).
					Return(nil, apierrors.NewResolutionError(
						"subgroup dataset unavailable for 2023", gadoe.ErrDatasetUnavailable))
			},
			expectedStatus: http.StatusNotFound,
			expectedBody:   `DATASET_UNAVAILABLE`,
		},
		{
			name:   "upstream failure",
			target: "/api/enrollment?year=2024",
			setupMock: func(m *MockEnrollmentService) {
				m.On("FetchEnrMulti", []int{2024}, services.DefaultFetchOptions()).
					Return(nil, apierrors.NewTransportError("download returned status 500", nil))
			},
			expectedStatus: http.StatusBadGateway,
			expectedBody:   `Upstream`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockEnrollmentService)
			tt.setupMock(mockService)
			handler := newTestEnrollmentHandler(t, mockService)

			req := httptest.NewRequest("GET", tt.target, nil)
			rec := httptest.NewRecorder()
			handler.GetEnrollment(rec, req)

			assert.Equal(t, tt.expectedStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.expectedBody)
			mockService.AssertExpectations(t)
		})
	}
}

func TestEnrollmentHandler_GetEnrollmentRaw(t *testing.T) {
	mockService := new(MockEnrollmentService)
	table := &enrollment.Table{
		Columns: []string{"SCHOOL_DSTRCT_CD", "ENROLL_TOTAL", "GRADE_K"},
		Rows: []enrollment.Row{
			{"SCHOOL_DSTRCT_CD": "601", "ENROLL_TOTAL": "3500", "GRADE_K": "260"},
		},
	}
	mockService.On("FetchEnrRaw", 2024, services.DefaultFetchOptions()).Return(table, nil)
	handler := newTestEnrollmentHandler(t, mockService)

	req := httptest.NewRequest("GET", "/api/enrollment?year=2024&raw=true", nil)
	rec := httptest.NewRecorder()
	handler.GetEnrollment(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"GRADE_K":"260"`)
	assert.Contains(t, rec.Body.String(), `"count":1`)
	mockService.AssertExpectations(t)
}

func TestEnrollmentHandler_RawRejectsMultipleYears(t *testing.T) {
	mockService := new(MockEnrollmentService)
	handler := newTestEnrollmentHandler(t, mockService)

	req := httptest.NewRequest("GET", "/api/enrollment?years=2023,2024&raw=true", nil)
	rec := httptest.NewRecorder()
	handler.GetEnrollment(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "single year")
	mockService.AssertExpectations(t)
}

func TestEnrollmentHandler_ExportCSV(t *testing.T) {
	mockService := new(MockEnrollmentService)
	mockService.On("FetchEnrMulti", []int{2024}, services.DefaultFetchOptions()).
		Return(testRecords(), nil)
	handler := newTestEnrollmentHandler(t, mockService)

	req := httptest.NewRequest("GET", "/api/enrollment/export?year=2024&format=csv", nil)
	rec := httptest.NewRecorder()
	handler.Export(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "enrollment_2024.csv")

	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "district_code")
	mockService.AssertExpectations(t)
}

func TestEnrollmentHandler_ExportDefaultsToCSV(t *testing.T) {
	mockService := new(MockEnrollmentService)
	mockService.On("FetchEnrMulti", []int{2022, 2024}, services.DefaultFetchOptions()).
		Return(testRecords(), nil)
	handler := newTestEnrollmentHandler(t, mockService)

	req := httptest.NewRequest("GET", "/api/enrollment/export?years=2022,2024", nil)
	rec := httptest.NewRecorder()
	handler.Export(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "enrollment_2022-2024.csv")
	mockService.AssertExpectations(t)
}

func TestEnrollmentHandler_ExportXLSX(t *testing.T) {
	mockService := new(MockEnrollmentService)
	mockService.On("FetchEnrMulti", []int{2024}, services.DefaultFetchOptions()).
		Return(testRecords(), nil)
	handler := newTestEnrollmentHandler(t, mockService)

	req := httptest.NewRequest("GET", "/api/enrollment/export?year=2024&format=xlsx", nil)
	rec := httptest.NewRecorder()
	handler.Export(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "enrollment_2024.xlsx")
	assert.NotZero(t, rec.Body.Len())
	mockService.AssertExpectations(t)
}

func TestEnrollmentHandler_ExportUnknownFormat(t *testing.T) {
	mockService := new(MockEnrollmentService)
	handler := newTestEnrollmentHandler(t, mockService)

	req := httptest.NewRequest("GET", "/api/enrollment/export?year=2024&format=parquet", nil)
	rec := httptest.NewRecorder()
	handler.Export(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "unknown export format")
	mockService.AssertExpectations(t)
}

func TestEnrollmentHandler_Routes(t *testing.T) {
	mockService := new(MockEnrollmentService)
	mockService.On("AvailableYears").Return(domain.YearRange{MinYear: 2011, MaxYear: 2024})
	handler := newTestEnrollmentHandler(t, mockService)

	server := httptest.NewServer(handler.Routes())
	defer server.Close()

	res, err := http.Get(server.URL + "/years")
	require.NoError(t, err)
	defer res.Body.Close()

	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, res.Header.Get("Content-Type"), "application/json")
	mockService.AssertExpectations(t)
}
