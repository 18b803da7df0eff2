package invoicing

import (
	"time"

	"github.com/govtravel/backoffice/internal/domain/invoicing"
)

// =============================================================================
// Request DTOs
// =============================================================================

// DocumentRequestInput selects the documents of one user action
type DocumentRequestInput struct {
	Scope        string   `json:"scope" binding:"required,oneof=group individual"`
	InvoiceID    string   `json:"invoice_id" binding:"required,max=64"`
	PassengerIDs []string `json:"passenger_ids" binding:"omitempty,max=500,dive,required,max=64"`
}

// Delivery modes for a download
const (
	DeliveryAttachment = "attachment"
	DeliveryLink       = "link"
)

// DownloadRequest asks for the documents as one artifact
type DownloadRequest struct {
	DocumentRequestInput
	Delivery string `json:"delivery" binding:"omitempty,oneof=attachment link"`
}

// PrintRunRequest starts a print run
type PrintRunRequest struct {
	DocumentRequestInput
	// Combine prints all documents as one document with page breaks between them
	Combine bool `json:"combine"`
}

// ZoomRequest changes the zoom of a preview, either relative or absolute
type ZoomRequest struct {
	Action string `json:"action" binding:"omitempty,oneof=in out reset"`
	Level  *int   `json:"level" binding:"omitempty,min=1,max=1000"`
}

// SelectTabRequest switches the visible preview tab
type SelectTabRequest struct {
	Index *int `json:"index" binding:"required,min=0"`
}

// =============================================================================
// Result DTOs
// =============================================================================

// DownloadResult is the outcome of a download. Summary and Failures are set
// even when packaging fails so the caller can report partial completion.
type DownloadResult struct {
	Artifact *invoicing.DownloadArtifact
	Link     *invoicing.SavedArtifact
	Summary  invoicing.BatchSummary
	Failures []ItemFailure
}

// DownloadLinkResponse is returned for link delivery
type DownloadLinkResponse struct {
	URL       string        `json:"url"`
	ExpiresAt time.Time     `json:"expires_at"`
	FileName  string        `json:"file_name"`
	Archived  bool          `json:"archived"`
	Entries   []string      `json:"entries"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Failures  []ItemFailure `json:"failures,omitempty"`
}

// ToLinkResponse builds the link response of a stored download
func (r *DownloadResult) ToLinkResponse() *DownloadLinkResponse {
	if r == nil || r.Link == nil || r.Artifact == nil {
		return nil
	}
	return &DownloadLinkResponse{
		URL:       r.Link.URL,
		ExpiresAt: r.Link.ExpiresAt,
		FileName:  r.Artifact.FileName,
		Archived:  r.Artifact.Archived,
		Entries:   r.Artifact.EntryNames,
		Succeeded: r.Summary.Succeeded,
		Failed:    r.Summary.Failed,
		Failures:  r.Failures,
	}
}
