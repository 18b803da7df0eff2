package invoicing

import (
	"context"

	"github.com/govtravel/backoffice/internal/domain/invoicing"
	"github.com/govtravel/backoffice/internal/infrastructure/telemetry"
)

// DocumentSource produces the document for one request. It is the unit of
// work the batch generator dispatches.
type DocumentSource interface {
	Produce(ctx context.Context, req invoicing.InvoiceDocumentRequest) (*invoicing.RenderedDocument, error)
}

// SourceFunc adapts a function to DocumentSource
type SourceFunc func(ctx context.Context, req invoicing.InvoiceDocumentRequest) (*invoicing.RenderedDocument, error)

// Produce calls f(ctx, req)
func (f SourceFunc) Produce(ctx context.Context, req invoicing.InvoiceDocumentRequest) (*invoicing.RenderedDocument, error) {
	return f(ctx, req)
}

// RenderingSource fetches structured data from the backend and renders it
// locally. Used by the download and preview actions.
type RenderingSource struct {
	provider invoicing.SourceDataProvider
	renderer invoicing.DocumentRenderer
}

// NewRenderingSource creates a RenderingSource
func NewRenderingSource(provider invoicing.SourceDataProvider, renderer invoicing.DocumentRenderer) *RenderingSource {
	return &RenderingSource{provider: provider, renderer: renderer}
}

// Produce fetches source data and renders a fresh document
func (s *RenderingSource) Produce(ctx context.Context, req invoicing.InvoiceDocumentRequest) (*invoicing.RenderedDocument, error) {
	data, err := s.provider.FetchSourceData(ctx, req)
	if err != nil {
		return nil, err
	}
	var doc *invoicing.RenderedDocument
	telemetry.WithProfilingLabels(ctx, telemetry.DocumentLabels(telemetry.OperationRender, string(req.Scope())), func(context.Context) {
		doc = s.renderer.Render(data)
	})
	return doc, nil
}

// PrerenderedSource asks the backend for document content it already
// rendered. Used by the print action.
type PrerenderedSource struct {
	provider invoicing.SourceDataProvider
}

// NewPrerenderedSource creates a PrerenderedSource
func NewPrerenderedSource(provider invoicing.SourceDataProvider) *PrerenderedSource {
	return &PrerenderedSource{provider: provider}
}

// Produce fetches the pre-rendered document
func (s *PrerenderedSource) Produce(ctx context.Context, req invoicing.InvoiceDocumentRequest) (*invoicing.RenderedDocument, error) {
	return s.provider.FetchRenderedDocument(ctx, req)
}

var (
	_ DocumentSource = (*RenderingSource)(nil)
	_ DocumentSource = (*PrerenderedSource)(nil)
	_ DocumentSource = SourceFunc(nil)
)
