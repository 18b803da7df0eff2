package middleware

import (
	"net/http"
	"net/http/httptest"
	"runtime/pprof"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/govtravel/backoffice/internal/infrastructure/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// labelEcho writes the request's profiling labels as route|method
func labelEcho(c *gin.Context) {
	route, _ := pprof.Label(c.Request.Context(), telemetry.ProfilingLabelRoute)
	method, _ := pprof.Label(c.Request.Context(), telemetry.ProfilingLabelMethod)
	c.String(http.StatusOK, route+"|"+method)
}

func TestProfiling_LabelsMatchedRoute(t *testing.T) {
	router := gin.New()
	router.Use(Profiling())
	router.POST("/invoice-documents/print-runs/:id", labelEcho)
	router.GET("/health", labelEcho)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/invoice-documents/print-runs/42", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "/invoice-documents/print-runs/:id|POST", w.Body.String())

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, "|", w.Body.String(), "skipped paths carry no labels")
}

func TestProfiling_Disabled(t *testing.T) {
	router := gin.New()
	router.Use(ProfilingWithConfig(ProfilingConfig{Enabled: false}))
	router.GET("/system/info", labelEcho)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/system/info", nil))
	assert.Equal(t, "|", w.Body.String())
}

func TestSkipProfiling(t *testing.T) {
	cfg := ProfilingConfig{SkipPaths: []string{"/health"}, SkipPathPrefixes: []string{"/debug/"}}
	assert.True(t, skipProfiling(cfg, "/health"))
	assert.True(t, skipProfiling(cfg, "/debug/pprof"))
	assert.False(t, skipProfiling(cfg, "/api/v1/system/info"))
}
