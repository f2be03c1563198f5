package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"macrostress/internal/config"
	apierrors "macrostress/internal/errors"
	"macrostress/internal/infrastructure"
	"macrostress/internal/middleware"
	"macrostress/internal/services"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	logger := infrastructure.NewLogger("error", os.Stderr)
	cfg := config.Default()
	cfg.Run.WriteReports = false
	paths, err := config.ResolvePaths(cfg.Paths, t.TempDir())
	require.NoError(t, err)
	require.NoError(t, paths.EnsureDirectories())

	svc, err := services.NewStressTestService(cfg, paths, nil, infrastructure.NoopTelemetry(), logger)
	require.NoError(t, err)
	t.Cleanup(svc.Close)

	errs := apierrors.NewErrorHandler(logger, false)
	health := NewHealthHandler(services.NewHealthService("test", paths, svc, nil, nil, logger), logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.NotFound(errs.NotFound)
	r.MethodNotAllowed(errs.MethodNotAllowed)
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", health.HealthCheck)
		r.Get("/health/ready", health.ReadinessCheck)
		r.Get("/health/live", health.LivenessCheck)
		r.Get("/version", health.Version)
		r.Mount("/banks", NewBanksHandler(svc, errs, logger).Routes())
		r.Get("/scenarios", NewScenariosHandler(svc, errs, logger).Generate)
		r.Get("/data", NewDataHandler(paths, errs, logger).Inventory)
		r.Mount("/runs", NewRunsHandler(svc, middleware.NewValidator(logger), errs, logger).Routes())
	})
	return r
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealthRoutes(t *testing.T) {
	h := newTestRouter(t)

	tests := []struct {
		path   string
		status string
	}{
		{"/api/health", services.StatusOK},
		{"/api/health/ready", services.StatusReady},
		{"/api/health/live", services.StatusAlive},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := do(t, h, http.MethodGet, tt.path, "")
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.status, decode[services.HealthStatus](t, rec).Status)
		})
	}

	rec := do(t, h, http.MethodGet, "/api/version", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "test", decode[services.VersionInfo](t, rec).Version)
}

func TestBanksRoutes(t *testing.T) {
	h := newTestRouter(t)

	rec := do(t, h, http.MethodGet, "/api/banks", "")
	require.Equal(t, http.StatusOK, rec.Code)
	banks := decode[[]map[string]interface{}](t, rec)
	assert.Len(t, banks, 3)

	rec = do(t, h, http.MethodGet, "/api/banks/hsbc", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "HSBC", decode[map[string]interface{}](t, rec)["name"])

	rec = do(t, h, http.MethodGet, "/api/banks/Monzo", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	problem := decode[map[string]interface{}](t, rec)
	assert.Equal(t, apierrors.TypeLookup, problem["type"])
	assert.Contains(t, problem["detail"], "Monzo")
	assert.NotEmpty(t, problem["trace_id"])
}

func TestDataRoute(t *testing.T) {
	h := newTestRouter(t)

	rec := do(t, h, http.MethodGet, "/api/data", "")
	require.Equal(t, http.StatusOK, rec.Code)
	inv := decode[map[string]interface{}](t, rec)
	assert.Len(t, inv["missing_raw"], 5)
	assert.Nil(t, inv["macro_history"])
	assert.Empty(t, inv["outputs"])
}

func TestScenariosRoute(t *testing.T) {
	h := newTestRouter(t)

	rec := do(t, h, http.MethodGet, "/api/scenarios?horizon=4&start=2026Q1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	views := decode[[]FrameView](t, rec)
	require.Len(t, views, 2)
	assert.Equal(t, "baseline", views[0].Name)
	assert.Equal(t, "adverse", views[1].Name)
	require.Len(t, views[1].Rows, 4)
	assert.Equal(t, "2026Q1", views[1].Rows[0].Quarter)
	assert.Len(t, views[1].Rows[0].Values, len(views[1].Columns))

	tests := []struct {
		name  string
		query string
	}{
		{"non numeric horizon", "?horizon=twelve"},
		{"zero horizon", "?horizon=0"},
		{"bad start", "?start=2025Q9"},
		{"persistence above one", "?persistence=3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodGet, "/api/scenarios"+tt.query, "")
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestRunsRoutes_NoRunYet(t *testing.T) {
	h := newTestRouter(t)

	for _, path := range []string{"/api/runs/latest", "/api/runs/latest/trough", "/api/runs/latest/loss-rates/adverse"} {
		rec := do(t, h, http.MethodGet, path, "")
		assert.Equal(t, http.StatusNotFound, rec.Code, path)
		problem := decode[map[string]interface{}](t, rec)
		assert.Equal(t, apierrors.TypeNotFound, problem["type"], path)
		assert.Equal(t, "RUN_NOT_FOUND", problem["error_code"], path)
	}
}

func TestRunsRoutes_RunAndRead(t *testing.T) {
	h := newTestRouter(t)

	rec := do(t, h, http.MethodPost, "/api/runs", `{"horizon":6,"hurdle":0.08}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	run := decode[map[string]interface{}](t, rec)
	assert.Equal(t, "completed", run["status"])
	assert.Equal(t, 0.08, run["hurdle"])
	runID := run["id"].(string)

	rec = do(t, h, http.MethodGet, "/api/runs/latest", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, runID, decode[map[string]interface{}](t, rec)["id"])

	rec = do(t, h, http.MethodGet, "/api/runs/latest/results", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]map[string]interface{}](t, rec), 2*3*6)

	rec = do(t, h, http.MethodGet, "/api/runs/latest/results?scenario=adverse&bank=HSBC", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]map[string]interface{}](t, rec), 6)

	rec = do(t, h, http.MethodGet, "/api/runs/latest/results?bank=Nobody", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())

	rec = do(t, h, http.MethodGet, "/api/runs/latest/trough", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]map[string]interface{}](t, rec), 6)

	rec = do(t, h, http.MethodGet, "/api/runs/latest/breaches", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotNil(t, decode[[]map[string]interface{}](t, rec))

	rec = do(t, h, http.MethodGet, "/api/runs/latest/losses", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, decode[[]map[string]interface{}](t, rec))

	rec = do(t, h, http.MethodGet, "/api/runs/latest/loss-rates/adverse", "")
	require.Equal(t, http.StatusOK, rec.Code)
	rates := decode[FrameView](t, rec)
	assert.Equal(t, "adverse", rates.Name)
	assert.Len(t, rates.Rows, 6)
	for _, row := range rates.Rows {
		for _, v := range row.Values {
			assert.GreaterOrEqual(t, v, 0.0)
			assert.LessOrEqual(t, v, 1.0)
		}
	}

	rec = do(t, h, http.MethodGet, "/api/runs/latest/loss-rates/severe", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRunsRoutes_Errors(t *testing.T) {
	h := newTestRouter(t)

	tests := []struct {
		name    string
		body    string
		status  int
		typ     string
		errCode string
	}{
		{"malformed json", `{"horizon":`, http.StatusBadRequest, apierrors.TypeValidation, "INVALID_REQUEST"},
		{"hurdle in percent", `{"hurdle":7}`, http.StatusBadRequest, apierrors.TypeValidation, "VALIDATION_FAILED"},
		{"unknown history source", `{"history_source":"bloomberg"}`, http.StatusBadRequest, apierrors.TypeValidation, "VALIDATION_FAILED"},
		{"unknown bank", `{"bank":"Barclays"}`, http.StatusNotFound, apierrors.TypeLookup, ""},
		{"missing processed history", `{"history_source":"processed"}`, http.StatusInternalServerError, apierrors.TypeInternal, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/api/runs", tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			problem := decode[map[string]interface{}](t, rec)
			assert.Equal(t, tt.typ, problem["type"])
			if tt.errCode != "" {
				assert.Equal(t, tt.errCode, problem["error_code"])
			}
		})
	}

	rec := do(t, h, http.MethodGet, "/api/runs/latest", "")
	assert.Equal(t, http.StatusNotFound, rec.Code, "failed runs are not kept")

	rec = do(t, h, http.MethodDelete, "/api/runs/not-running", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodPut, "/api/runs/latest", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
