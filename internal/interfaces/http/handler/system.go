package handler

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/govtravel/backoffice/internal/domain/invoicing"
	"github.com/govtravel/backoffice/internal/interfaces/http/dto"
	"github.com/govtravel/backoffice/internal/interfaces/http/router"
)

// PrintStateReporter exposes the print-surface orchestrator state
type PrintStateReporter interface {
	State() invoicing.PrintState
}

// SystemHandler handles liveness and system information endpoints
type SystemHandler struct {
	BaseHandler
	service   string
	version   string
	printer   PrintStateReporter
	startTime time.Time
}

// NewSystemHandler creates a new SystemHandler. printer may be nil.
func NewSystemHandler(service, version string, printer PrintStateReporter) *SystemHandler {
	return &SystemHandler{
		service:   service,
		version:   version,
		printer:   printer,
		startTime: time.Now(),
	}
}

// SystemInfoResponse represents the system information response
type SystemInfoResponse struct {
	Name       string `json:"name"`
	Version    string `json:"version"`
	GoVersion  string `json:"go_version"`
	Uptime     string `json:"uptime"`
	PrintState string `json:"print_state,omitempty"`
}

// Health godoc
//
//	@Summary	Liveness probe
//	@Tags		system
//	@Produce	json
//	@Router		/health [get]
func (h *SystemHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, dto.HealthResponse{
		Status:  "ok",
		Service: h.service,
		Version: h.version,
	})
}

// GetSystemInfo godoc
//
//	@Summary		Get system information
//	@Description	Returns version, uptime and whether a document is being printed
//	@Tags			system
//	@Produce		json
//	@Router			/system/info [get]
func (h *SystemHandler) GetSystemInfo(c *gin.Context) {
	info := SystemInfoResponse{
		Name:      h.service,
		Version:   h.version,
		GoVersion: runtime.Version(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
	}
	if h.printer != nil {
		info.PrintState = string(h.printer.State())
	}
	h.Success(c, info)
}

// SystemRoutes creates the route group for system endpoints under the API prefix
func SystemRoutes(handler *SystemHandler) *router.DomainGroup {
	return router.NewDomainGroup("system", "/system").
		GET("/info", handler.GetSystemInfo)
}
