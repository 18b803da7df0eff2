package invoicing

import (
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
)

// DocumentMetadata describes a rendered document without parsing its content
type DocumentMetadata struct {
	AmountTotal decimal.Decimal `json:"amount_total"`
	ScopeType   Scope           `json:"scope_type"`
	SubjectName string          `json:"subject_name,omitempty"`
	// Reduced is set when the document was rendered from incomplete source data
	Reduced bool `json:"reduced,omitempty"`
}

// RenderedDocument is self-contained markup ready for a display surface.
// It is produced fresh for every request and never mutated.
type RenderedDocument struct {
	Content       string           `json:"content"`
	DocumentLabel string           `json:"document_label"`
	Metadata      DocumentMetadata `json:"metadata"`
}

// FileName returns the document label made safe for file systems and archive
// entries, with the given extension appended.
func (d *RenderedDocument) FileName(ext string) string {
	return SanitizeLabel(d.DocumentLabel) + ext
}

// SanitizeLabel replaces path separators and characters rejected by common
// file systems. Thai and other letters are kept as-is.
func SanitizeLabel(label string) string {
	label = strings.TrimSpace(label)
	var b strings.Builder
	for _, r := range label {
		switch {
		case strings.ContainsRune(`/\:*?"<>|`, r):
			b.WriteRune('-')
		case unicode.IsControl(r):
			continue
		default:
			b.WriteRune(r)
		}
	}
	out := strings.Trim(b.String(), ". ")
	if out == "" {
		return "invoice"
	}
	return out
}

// PrintQueueEntry is a document awaiting sequential display.
// Queue order is the order supplied by the caller.
type PrintQueueEntry struct {
	Position int
	Document *RenderedDocument
}

// NewPrintQueue wraps documents into queue entries keeping their order
func NewPrintQueue(docs []*RenderedDocument) []PrintQueueEntry {
	entries := make([]PrintQueueEntry, 0, len(docs))
	for _, doc := range docs {
		if doc == nil {
			continue
		}
		entries = append(entries, PrintQueueEntry{Position: len(entries) + 1, Document: doc})
	}
	return entries
}

// DownloadArtifact is the final deliverable of a download action
type DownloadArtifact struct {
	FileName    string
	ContentType string
	Data        []byte
	// Archived is true when Data is a zip archive of several documents
	Archived   bool
	EntryNames []string
	Succeeded  int
	Failed     int
}

// SavedArtifact describes where an artifact was delivered
type SavedArtifact struct {
	Key       string    `json:"key"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// PrintOutput is what a display surface hands to the host print facility
type PrintOutput struct {
	DocumentLabel string
	PDF           []byte
	PaperSize     PaperSize
}
