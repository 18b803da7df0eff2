package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/govtravel/backoffice/internal/interfaces/http/router"
)

// InvoiceDocumentRoutes creates the route group for invoice document endpoints.
// extra middleware (e.g. rate limiting) applies to the whole group.
func InvoiceDocumentRoutes(handler *InvoiceDocumentHandler, extra ...gin.HandlerFunc) *router.DomainGroup {
	group := router.NewDomainGroup("invoice-documents", "/invoice-documents")
	if len(extra) > 0 {
		group.Use(extra...)
	}

	group.POST("/download", handler.Download)

	group.Group("print-runs", "/print-runs").
		POST("", handler.StartPrintRun).
		GET("/:id", handler.GetPrintRun).
		DELETE("/:id", handler.CancelPrintRun)

	group.Group("previews", "/previews").
		POST("", handler.OpenPreview).
		GET("/:id", handler.GetPreview).
		GET("/:id/view", handler.ViewPreview).
		PUT("/:id/zoom", handler.ZoomPreview).
		PUT("/:id/selection", handler.SelectPreviewTab).
		POST("/:id/print", handler.PrintPreview).
		POST("/:id/retry", handler.RetryPreview).
		DELETE("/:id", handler.ClosePreview)

	return group
}
