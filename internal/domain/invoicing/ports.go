package invoicing

import "context"

// SourceDataProvider is the data-providing backend
type SourceDataProvider interface {
	// FetchSourceData returns structured invoice data for the request
	FetchSourceData(ctx context.Context, req InvoiceDocumentRequest) (*InvoiceSourceData, error)
	// FetchRenderedDocument returns content the backend already rendered
	FetchRenderedDocument(ctx context.Context, req InvoiceDocumentRequest) (*RenderedDocument, error)
}

// DocumentRenderer maps invoice data to a self-contained document.
// Implementations must be pure: same input, byte-identical output.
type DocumentRenderer interface {
	Render(data *InvoiceSourceData) *RenderedDocument
}

// DocumentComposer joins documents into one printable document with a forced
// page break between consecutive documents
type DocumentComposer interface {
	Concatenate(label string, docs []*RenderedDocument) *RenderedDocument
}

// SurfaceHost creates display surfaces. Open fails when the host refuses one.
type SurfaceHost interface {
	Open(ctx context.Context) (Surface, error)
}

// Surface is one isolated display context presented to the host print facility
type Surface interface {
	// Write loads the document content into the surface
	Write(ctx context.Context, doc *RenderedDocument) error
	// Print requests the host print facility for this surface
	Print(ctx context.Context) error
	// Done is closed when the host reports that printing finished
	Done() <-chan struct{}
	// Err reports a failure the host raised after the print trigger, if any
	Err() error
	// Close releases the surface. It is safe to call more than once.
	Close() error
}

// PrintSink receives the output of a printed surface
type PrintSink interface {
	Submit(ctx context.Context, out *PrintOutput) error
}

// ArtifactStore saves a download artifact and returns where it can be fetched
type ArtifactStore interface {
	Save(ctx context.Context, artifact *DownloadArtifact) (*SavedArtifact, error)
}
