package invoicing

import (
	"github.com/govtravel/backoffice/internal/domain/shared"
)

// BatchItem wraps one rendering attempt with its lifecycle state
type BatchItem struct {
	Index        int
	Request      InvoiceDocumentRequest
	Status       ItemStatus
	Document     *RenderedDocument
	ErrorMessage string
}

// NewBatchItem creates a pending item for the request at the given index
func NewBatchItem(index int, req InvoiceDocumentRequest) BatchItem {
	return BatchItem{
		Index:   index,
		Request: req,
		Status:  ItemStatusPending,
	}
}

// Start marks the item as generating
func (b *BatchItem) Start() error {
	if !b.Status.CanTransitionTo(ItemStatusGenerating) {
		return shared.NewDomainError("INVALID_STATE",
			"Cannot start generating from status: "+b.Status.String())
	}
	b.Status = ItemStatusGenerating
	return nil
}

// Succeed marks the item as succeeded with its document
func (b *BatchItem) Succeed(doc *RenderedDocument) error {
	if !b.Status.CanTransitionTo(ItemStatusSucceeded) {
		return shared.NewDomainError("INVALID_STATE",
			"Cannot succeed from status: "+b.Status.String())
	}
	if doc == nil {
		return shared.NewDomainError("INVALID_INPUT", "Rendered document cannot be nil")
	}
	b.Status = ItemStatusSucceeded
	b.Document = doc
	return nil
}

// Fail marks the item as failed with an error message
func (b *BatchItem) Fail(errorMessage string) error {
	if b.Status.IsTerminal() {
		return shared.NewDomainError("INVALID_STATE",
			"Cannot fail an item that is already in terminal status: "+b.Status.String())
	}
	if errorMessage == "" {
		errorMessage = "document generation failed"
	}
	b.Status = ItemStatusFailed
	b.ErrorMessage = errorMessage
	return nil
}

// IsSucceeded returns true if the item produced a document
func (b BatchItem) IsSucceeded() bool {
	return b.Status == ItemStatusSucceeded && b.Document != nil
}

// Batch is the ordered result of one generation run.
// Item i always corresponds to request i.
type Batch []BatchItem

// IsComplete is derived: every item has left pending/generating
func (b Batch) IsComplete() bool {
	for _, item := range b {
		if !item.Status.IsTerminal() {
			return false
		}
	}
	return true
}

// SucceededDocuments returns the documents of succeeded items in batch order
func (b Batch) SucceededDocuments() []*RenderedDocument {
	docs := make([]*RenderedDocument, 0, len(b))
	for _, item := range b {
		if item.IsSucceeded() {
			docs = append(docs, item.Document)
		}
	}
	return docs
}

// BatchSummary counts items per outcome
type BatchSummary struct {
	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Pending   int `json:"pending"`
}

// Summary counts the items of the batch per outcome
func (b Batch) Summary() BatchSummary {
	s := BatchSummary{Total: len(b)}
	for _, item := range b {
		switch {
		case item.IsSucceeded():
			s.Succeeded++
		case item.Status == ItemStatusFailed:
			s.Failed++
		default:
			s.Pending++
		}
	}
	return s
}

// AllFailed returns true if the batch is complete and nothing succeeded
func (b Batch) AllFailed() bool {
	return b.IsComplete() && b.Summary().Succeeded == 0
}
