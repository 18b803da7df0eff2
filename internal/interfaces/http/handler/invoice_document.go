package handler

import (
	"errors"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	invoicingapp "github.com/govtravel/backoffice/internal/application/invoicing"
	"github.com/govtravel/backoffice/internal/domain/invoicing"
	"github.com/govtravel/backoffice/internal/domain/shared"
	"github.com/govtravel/backoffice/internal/interfaces/http/dto"
	"go.uber.org/zap"
)

// previewViewCSP allows the inline controls of the preview page and the
// inline styles and data: images of the rendered documents.
const previewViewCSP = "default-src 'none'; script-src 'unsafe-inline'; style-src 'unsafe-inline'; " +
	"img-src data:; font-src data:; connect-src 'self'; frame-src 'self'; frame-ancestors 'self'; base-uri 'none'"

// PreviewRenderer renders the HTML inspection page of a preview session
type PreviewRenderer interface {
	Render(snapshot *invoicing.PreviewSnapshot, basePath string) (string, error)
}

// InvoiceDocumentHandler handles invoice document download, print and preview endpoints
type InvoiceDocumentHandler struct {
	BaseHandler
	service *invoicingapp.DocumentService
	page    PreviewRenderer
	logger  *zap.Logger
}

// NewInvoiceDocumentHandler creates a new InvoiceDocumentHandler
func NewInvoiceDocumentHandler(service *invoicingapp.DocumentService, page PreviewRenderer, logger *zap.Logger) *InvoiceDocumentHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InvoiceDocumentHandler{
		service: service,
		page:    page,
		logger:  logger,
	}
}

// PartialFailure is the body of a download that produced no artifact
type PartialFailure struct {
	Summary  invoicing.BatchSummary     `json:"summary"`
	Failures []invoicingapp.ItemFailure `json:"failures,omitempty"`
}

// =============================================================================
// Download
// =============================================================================

// Download godoc
//
//	@Summary		Download invoice documents
//	@Description	Render the requested documents and return one file, or a zip archive when there are several
//	@Tags			invoice-documents
//	@Accept			json
//	@Produce		application/zip,text/html,json
//	@Param			request	body	invoicing.DownloadRequest	true	"Documents to download"
//	@Router			/invoice-documents/download [post]
func (h *InvoiceDocumentHandler) Download(c *gin.Context) {
	var req invoicingapp.DownloadRequest
	if !h.bindJSON(c, &req) {
		return
	}

	result, err := h.service.Download(c.Request.Context(), req)
	if result != nil {
		setSummaryHeaders(c, result.Summary)
	}
	if err != nil {
		if result != nil && errors.Is(err, invoicing.ErrPackagingEmpty) {
			h.errorWithData(c, err, PartialFailure{Summary: result.Summary, Failures: result.Failures})
			return
		}
		h.HandleError(c, err)
		return
	}

	if result.Link != nil {
		h.Success(c, result.ToLinkResponse())
		return
	}

	artifact := result.Artifact
	c.Header("Content-Disposition", contentDisposition("attachment", artifact.FileName))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, artifact.ContentType, artifact.Data)
}

// =============================================================================
// Print runs
// =============================================================================

// StartPrintRun godoc
//
//	@Summary		Start a print run
//	@Description	Generate the documents and print them one at a time in the background
//	@Tags			invoice-documents
//	@Accept			json
//	@Produce		json
//	@Param			request	body	invoicing.PrintRunRequest	true	"Documents to print"
//	@Success		202		{object}	dto.Response
//	@Router			/invoice-documents/print-runs [post]
func (h *InvoiceDocumentHandler) StartPrintRun(c *gin.Context) {
	var req invoicingapp.PrintRunRequest
	if !h.bindJSON(c, &req) {
		return
	}

	run, err := h.service.StartPrintRun(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Accepted(c, childPath(c, run.ID), run)
}

// GetPrintRun godoc
//
//	@Summary	Get print run status
//	@Tags		invoice-documents
//	@Produce	json
//	@Param		id	path	string	true	"Print run ID"
//	@Router		/invoice-documents/print-runs/{id} [get]
func (h *InvoiceDocumentHandler) GetPrintRun(c *gin.Context) {
	var req dto.IDRequest
	if !h.bindURI(c, &req) {
		return
	}

	run, err := h.service.GetPrintRun(req.ID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, run)
}

// CancelPrintRun godoc
//
//	@Summary		Cancel a print run
//	@Description	Stop presenting further documents; a surface already on display finishes on its own
//	@Tags			invoice-documents
//	@Produce		json
//	@Param			id	path	string	true	"Print run ID"
//	@Router			/invoice-documents/print-runs/{id} [delete]
func (h *InvoiceDocumentHandler) CancelPrintRun(c *gin.Context) {
	var req dto.IDRequest
	if !h.bindURI(c, &req) {
		return
	}

	run, err := h.service.CancelPrintRun(req.ID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, run)
}

// =============================================================================
// Preview
// =============================================================================

// OpenPreview godoc
//
//	@Summary		Open a preview session
//	@Description	Start generating the documents for on-screen inspection
//	@Tags			invoice-documents
//	@Accept			json
//	@Produce		json
//	@Param			request	body	invoicing.DocumentRequestInput	true	"Documents to preview"
//	@Success		202		{object}	dto.Response
//	@Router			/invoice-documents/previews [post]
func (h *InvoiceDocumentHandler) OpenPreview(c *gin.Context) {
	var req invoicingapp.DocumentRequestInput
	if !h.bindJSON(c, &req) {
		return
	}

	snapshot, err := h.service.OpenPreview(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Accepted(c, childPath(c, snapshot.ID), snapshot)
}

// GetPreview godoc
//
//	@Summary	Get preview session state
//	@Tags		invoice-documents
//	@Produce	json
//	@Param		id	path	string	true	"Preview session ID"
//	@Router		/invoice-documents/previews/{id} [get]
func (h *InvoiceDocumentHandler) GetPreview(c *gin.Context) {
	var req dto.IDRequest
	if !h.bindURI(c, &req) {
		return
	}

	snapshot, err := h.service.GetPreview(req.ID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, snapshot)
}

// ViewPreview godoc
//
//	@Summary	Preview inspection page
//	@Tags		invoice-documents
//	@Produce	html
//	@Param		id	path	string	true	"Preview session ID"
//	@Router		/invoice-documents/previews/{id}/view [get]
func (h *InvoiceDocumentHandler) ViewPreview(c *gin.Context) {
	var req dto.IDRequest
	if !h.bindURI(c, &req) {
		return
	}

	snapshot, err := h.service.GetPreview(req.ID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	basePath := strings.TrimSuffix(c.Request.URL.Path, "/view")
	page, err := h.page.Render(snapshot, basePath)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	c.Header("Content-Security-Policy", previewViewCSP)
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(page))
}

// ZoomPreview godoc
//
//	@Summary	Change preview zoom
//	@Tags		invoice-documents
//	@Accept		json
//	@Produce	json
//	@Param		id		path	string					true	"Preview session ID"
//	@Param		request	body	invoicing.ZoomRequest	true	"Zoom action or level"
//	@Router		/invoice-documents/previews/{id}/zoom [put]
func (h *InvoiceDocumentHandler) ZoomPreview(c *gin.Context) {
	var id dto.IDRequest
	if !h.bindURI(c, &id) {
		return
	}
	var req invoicingapp.ZoomRequest
	if !h.bindJSON(c, &req) {
		return
	}

	snapshot, err := h.service.ZoomPreview(id.ID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, snapshot)
}

// SelectPreviewTab godoc
//
//	@Summary	Select preview tab
//	@Tags		invoice-documents
//	@Accept		json
//	@Produce	json
//	@Param		id		path	string						true	"Preview session ID"
//	@Param		request	body	invoicing.SelectTabRequest	true	"Tab index"
//	@Router		/invoice-documents/previews/{id}/selection [put]
func (h *InvoiceDocumentHandler) SelectPreviewTab(c *gin.Context) {
	var id dto.IDRequest
	if !h.bindURI(c, &id) {
		return
	}
	var req invoicingapp.SelectTabRequest
	if !h.bindJSON(c, &req) {
		return
	}

	snapshot, err := h.service.SelectPreviewTab(id.ID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, snapshot)
}

// PrintPreview godoc
//
//	@Summary		Print the selected preview document
//	@Description	Re-produces the selected document and prints it once
//	@Tags			invoice-documents
//	@Produce		json
//	@Param			id	path	string	true	"Preview session ID"
//	@Router			/invoice-documents/previews/{id}/print [post]
func (h *InvoiceDocumentHandler) PrintPreview(c *gin.Context) {
	var req dto.IDRequest
	if !h.bindURI(c, &req) {
		return
	}

	result, err := h.service.PrintPreview(c.Request.Context(), req.ID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// RetryPreview godoc
//
//	@Summary	Retry a failed preview
//	@Tags		invoice-documents
//	@Produce	json
//	@Param		id	path	string	true	"Preview session ID"
//	@Success	202	{object}	dto.Response
//	@Router		/invoice-documents/previews/{id}/retry [post]
func (h *InvoiceDocumentHandler) RetryPreview(c *gin.Context) {
	var req dto.IDRequest
	if !h.bindURI(c, &req) {
		return
	}

	snapshot, err := h.service.RetryPreview(c.Request.Context(), req.ID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Accepted(c, "", snapshot)
}

// ClosePreview godoc
//
//	@Summary	Close a preview session
//	@Tags		invoice-documents
//	@Param		id	path	string	true	"Preview session ID"
//	@Success	204
//	@Router		/invoice-documents/previews/{id} [delete]
func (h *InvoiceDocumentHandler) ClosePreview(c *gin.Context) {
	var req dto.IDRequest
	if !h.bindURI(c, &req) {
		return
	}

	if err := h.service.ClosePreview(req.ID); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// =============================================================================
// Helpers
// =============================================================================

// errorWithData writes a domain error response that also carries data
func (h *InvoiceDocumentHandler) errorWithData(c *gin.Context, err error, data any) {
	code, message := dto.ErrCodeInternal, "An unexpected error occurred"
	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		code, message = dto.NormalizeErrorCode(domainErr.Code), domainErr.Message
	}
	resp := dto.NewErrorResponseWithRequestID(code, message, getRequestID(c))
	resp.Data = data
	c.JSON(dto.GetHTTPStatus(code), resp)
}

func setSummaryHeaders(c *gin.Context, summary invoicing.BatchSummary) {
	c.Header("X-Documents-Succeeded", strconv.Itoa(summary.Succeeded))
	c.Header("X-Documents-Failed", strconv.Itoa(summary.Failed))
}

// contentDisposition encodes non-ASCII file names as RFC 2231 filename*
func contentDisposition(disposition, fileName string) string {
	if v := mime.FormatMediaType(disposition, map[string]string{"filename": fileName}); v != "" {
		return v
	}
	return disposition
}

// childPath returns the path of a resource created under the current collection
func childPath(c *gin.Context, id string) string {
	return strings.TrimSuffix(c.Request.URL.Path, "/") + "/" + id
}
