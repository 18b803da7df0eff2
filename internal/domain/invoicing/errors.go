package invoicing

import (
	"fmt"

	"github.com/govtravel/backoffice/internal/domain/shared"
)

// Error codes of the invoice documents context
const (
	CodeSourceData         = "SOURCE_DATA_ERROR"
	CodeSurfaceBlocked     = "SURFACE_BLOCKED"
	CodePackagingEmpty     = "PACKAGING_EMPTY"
	CodeArchiveCompression = "ARCHIVE_COMPRESSION_FAILED"
	CodePreviewNotFound    = "PREVIEW_NOT_FOUND"
	CodePrintRunNotFound   = "PRINT_RUN_NOT_FOUND"
)

// Sentinel errors, matched with errors.Is by code
var (
	ErrSourceData         = shared.NewDomainError(CodeSourceData, "Invoice source data unavailable")
	ErrSurfaceBlocked     = shared.NewDomainError(CodeSurfaceBlocked, "Display surface could not be opened")
	ErrPackagingEmpty     = shared.NewDomainError(CodePackagingEmpty, "No documents were produced")
	ErrArchiveCompression = shared.NewDomainError(CodeArchiveCompression, "Failed to build the document archive")
	ErrPreviewNotFound    = shared.NewDomainError(CodePreviewNotFound, "Preview session not found")
	ErrPrintRunNotFound   = shared.NewDomainError(CodePrintRunNotFound, "Print run not found")
)

// NewSourceDataError reports that the backend could not supply data for a request
func NewSourceDataError(message string, cause error) *shared.DomainError {
	if message == "" {
		message = ErrSourceData.Message
	}
	return shared.WrapDomainError(CodeSourceData, message, cause)
}

// NewSurfaceBlockedError reports that the host refused a display surface
func NewSurfaceBlockedError(label string, cause error) *shared.DomainError {
	return shared.WrapDomainError(CodeSurfaceBlocked,
		fmt.Sprintf("Display surface for %q could not be opened", label), cause)
}

// NewArchiveCompressionError reports that the archive step failed as a whole
func NewArchiveCompressionError(cause error) *shared.DomainError {
	return shared.WrapDomainError(CodeArchiveCompression, ErrArchiveCompression.Message, cause)
}
