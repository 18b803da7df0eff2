package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/govtravel/backoffice/internal/domain/invoicing"
	"github.com/govtravel/backoffice/internal/interfaces/http/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedPrintState invoicing.PrintState

func (s fixedPrintState) State() invoicing.PrintState { return invoicing.PrintState(s) }

func TestNewSystemHandler(t *testing.T) {
	h := NewSystemHandler("travel-backoffice", "1.2.0", nil)
	assert.NotNil(t, h)
	assert.False(t, h.startTime.IsZero())
}

func TestSystemHandler_Health(t *testing.T) {
	h := NewSystemHandler("travel-backoffice", "1.2.0", nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodGet, "/health", nil)

	h.Health(c)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp dto.HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "travel-backoffice", resp.Service)
	assert.Equal(t, "1.2.0", resp.Version)
}

func TestSystemHandler_GetSystemInfo(t *testing.T) {
	h := NewSystemHandler("travel-backoffice", "1.2.0", fixedPrintState(invoicing.PrintStatePresenting))

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest(http.MethodGet, "/api/v1/system/info", nil)

	h.GetSystemInfo(c)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)

	data := resp.Data.(map[string]any)
	assert.Equal(t, "travel-backoffice", data["name"])
	assert.Equal(t, "1.2.0", data["version"])
	assert.NotEmpty(t, data["go_version"])
	assert.NotEmpty(t, data["uptime"])
	assert.Equal(t, string(invoicing.PrintStatePresenting), data["print_state"])
}

func TestSystemRoutes(t *testing.T) {
	routes := SystemRoutes(NewSystemHandler("svc", "v", nil)).Routes()
	require.Len(t, routes, 1)
	assert.Equal(t, "/system/info", routes[0].Path)
}
