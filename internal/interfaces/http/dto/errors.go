package dto

import (
	"net/http"

	"github.com/govtravel/backoffice/internal/domain/invoicing"
)

// Error code constants organized by category
// Format: ERR_<CATEGORY>_<DESCRIPTION>

// General error codes
const (
	// ErrCodeUnknown is used when the error type is unknown
	ErrCodeUnknown = "ERR_UNKNOWN"
	// ErrCodeInternal is used for internal server errors
	ErrCodeInternal = "ERR_INTERNAL"
)

// Validation error codes
const (
	// ErrCodeValidation is the base code for validation errors
	ErrCodeValidation = "ERR_VALIDATION"
)

// Resource error codes
const (
	// ErrCodeNotFound is used when a resource is not found
	ErrCodeNotFound = "ERR_NOT_FOUND"
	// ErrCodePreviewNotFound is used when a preview session is unknown or expired
	ErrCodePreviewNotFound = "ERR_PREVIEW_NOT_FOUND"
	// ErrCodePrintRunNotFound is used when a print run is unknown or pruned
	ErrCodePrintRunNotFound = "ERR_PRINT_RUN_NOT_FOUND"
)

// Business rule error codes
const (
	// ErrCodeInvalidState is used when an operation is invalid for current state
	ErrCodeInvalidState = "ERR_INVALID_STATE"
	// ErrCodePackagingEmpty is used when no document of a batch succeeded
	ErrCodePackagingEmpty = "ERR_PACKAGING_EMPTY"
)

// Document pipeline error codes
const (
	// ErrCodeSourceData is used when the backend could not supply invoice data
	ErrCodeSourceData = "ERR_SOURCE_DATA"
	// ErrCodeSurfaceBlocked is used when the host refused a display surface
	ErrCodeSurfaceBlocked = "ERR_SURFACE_BLOCKED"
	// ErrCodeArchiveCompression is used when the archive could not be built
	ErrCodeArchiveCompression = "ERR_ARCHIVE_COMPRESSION"
)

// Input error codes
const (
	// ErrCodeBadRequest is used for malformed requests
	ErrCodeBadRequest = "ERR_BAD_REQUEST"
	// ErrCodeInvalidInput is used for invalid input data
	ErrCodeInvalidInput = "ERR_INVALID_INPUT"
	// ErrCodeInvalidJSON is used when JSON parsing fails
	ErrCodeInvalidJSON = "ERR_INVALID_JSON"
	// ErrCodeRequestTooLarge is used when the body exceeds the configured limit
	ErrCodeRequestTooLarge = "ERR_REQUEST_TOO_LARGE"
)

// Rate limiting error codes
const (
	// ErrCodeRateLimited is used when rate limit is exceeded
	ErrCodeRateLimited = "ERR_RATE_LIMITED"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeUnknown:  http.StatusInternalServerError,
	ErrCodeInternal: http.StatusInternalServerError,

	ErrCodeValidation: http.StatusBadRequest,

	ErrCodeNotFound:         http.StatusNotFound,
	ErrCodePreviewNotFound:  http.StatusNotFound,
	ErrCodePrintRunNotFound: http.StatusNotFound,

	// Business rule errors -> 422 Unprocessable Entity
	ErrCodeInvalidState:   http.StatusUnprocessableEntity,
	ErrCodePackagingEmpty: http.StatusUnprocessableEntity,

	// Upstream failures
	ErrCodeSourceData:         http.StatusBadGateway,
	ErrCodeSurfaceBlocked:     http.StatusServiceUnavailable,
	ErrCodeArchiveCompression: http.StatusInternalServerError,

	ErrCodeBadRequest:      http.StatusBadRequest,
	ErrCodeInvalidInput:    http.StatusBadRequest,
	ErrCodeInvalidJSON:     http.StatusBadRequest,
	ErrCodeRequestTooLarge: http.StatusRequestEntityTooLarge,

	ErrCodeRateLimited: http.StatusTooManyRequests,
}

// GetHTTPStatus returns the HTTP status code for an error code
// Returns 500 Internal Server Error if the error code is not found
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DomainErrorCodeMapping maps domain error codes to API error codes
var DomainErrorCodeMapping = map[string]string{
	"NOT_FOUND":                      ErrCodeNotFound,
	"INVALID_INPUT":                  ErrCodeInvalidInput,
	"INVALID_STATE":                  ErrCodeInvalidState,
	"VALIDATION_ERROR":               ErrCodeValidation,
	"BAD_REQUEST":                    ErrCodeBadRequest,
	"INTERNAL_ERROR":                 ErrCodeInternal,
	invoicing.CodeSourceData:         ErrCodeSourceData,
	invoicing.CodeSurfaceBlocked:     ErrCodeSurfaceBlocked,
	invoicing.CodePackagingEmpty:     ErrCodePackagingEmpty,
	invoicing.CodeArchiveCompression: ErrCodeArchiveCompression,
	invoicing.CodePreviewNotFound:    ErrCodePreviewNotFound,
	invoicing.CodePrintRunNotFound:   ErrCodePrintRunNotFound,
}

// NormalizeErrorCode converts a domain error code to the API format.
// Codes already in the API format or unknown pass through unchanged.
func NormalizeErrorCode(code string) string {
	if apiCode, ok := DomainErrorCodeMapping[code]; ok {
		return apiCode
	}
	return code
}
