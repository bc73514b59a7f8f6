package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type panicHandler struct{}

func (panicHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/boom", func(echo.Context) error { panic("boom") })
	e.GET("/conflict", func(c echo.Context) error {
		return AppErrorResponse(c, ConflictError("ERR_X", "taken"))
	})
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)
	return rec
}

func TestServerHealthAndMetrics(t *testing.T) {
	s := NewServer([]Handler{panicHandler{}})

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)

	serve(s, httptest.NewRequest(http.MethodGet, "/conflict", nil))
	rec = serve(s, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "riskpulse_http_requests_total")
}

func TestServerRecoversFromPanic(t *testing.T) {
	s := NewServer([]Handler{panicHandler{}})
	rec := serve(s, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestServerAppErrorStatus(t *testing.T) {
	s := NewServer([]Handler{panicHandler{}})
	rec := serve(s, httptest.NewRequest(http.MethodGet, "/conflict", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "ERR_X")
}

func TestServerCORSPreflight(t *testing.T) {
	s := NewServer(nil)
	req := httptest.NewRequest(http.MethodOptions, "/api/risk/predict", nil)
	req.Header.Set(echo.HeaderOrigin, "https://dash.example.com")
	rec := serve(s, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://dash.example.com", rec.Header().Get(echo.HeaderAccessControlAllowOrigin))
	assert.Contains(t, rec.Header().Get(echo.HeaderAccessControlAllowMethods), http.MethodPost)
	assert.Equal(t, "600", rec.Header().Get(echo.HeaderAccessControlMaxAge))
}

func TestServerMetricsDisabled(t *testing.T) {
	s := NewServer(nil, WithMetricsPath(""))
	rec := serve(s, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServerUnknownRouteUsesEnvelope(t *testing.T) {
	s := NewServer(nil, WithMetricsPath(""))
	rec := serve(s, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"ERR_HTTP"`)
}

func TestServerReadiness(t *testing.T) {
	var down error
	s := NewServer(nil, WithMetricsPath(""), WithReadiness(func(context.Context) error { return down }))

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	down = errors.New("clickhouse: connection refused")
	rec = serve(s, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "ERR_NOT_READY")
}
