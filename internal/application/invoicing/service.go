package invoicing

import (
	"context"
	"fmt"
	"time"

	"github.com/govtravel/backoffice/internal/domain/invoicing"
	"github.com/govtravel/backoffice/internal/domain/shared"
	"github.com/govtravel/backoffice/internal/infrastructure/logger"
	"github.com/govtravel/backoffice/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// DefaultMaxRequests caps the documents a single action may produce
const DefaultMaxRequests = 200

// DocumentService wires the document components into the three user actions:
// download, print and preview
type DocumentService struct {
	generator    *BatchGenerator
	rendering    DocumentSource
	prerendered  DocumentSource
	packager     *Packager
	orchestrator *PrintOrchestrator
	runs         *PrintRunRegistry
	previews     *PreviewCoordinator
	composer     invoicing.DocumentComposer
	store        invoicing.ArtifactStore
	maxRequests  int
	now          func() time.Time
	logger       *zap.Logger
}

// ServiceOption is a functional option for configuring DocumentService
type ServiceOption func(*DocumentService)

// WithComposer enables combined print runs
func WithComposer(c invoicing.DocumentComposer) ServiceOption {
	return func(s *DocumentService) {
		s.composer = c
	}
}

// WithArtifactStore enables link delivery of downloads
func WithArtifactStore(store invoicing.ArtifactStore) ServiceOption {
	return func(s *DocumentService) {
		s.store = store
	}
}

// WithMaxRequests caps the number of documents a single action may produce
func WithMaxRequests(n int) ServiceOption {
	return func(s *DocumentService) {
		if n > 0 {
			s.maxRequests = n
		}
	}
}

// WithServiceClock sets the clock used for combined document labels
func WithServiceClock(now func() time.Time) ServiceOption {
	return func(s *DocumentService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewDocumentService creates a new DocumentService
func NewDocumentService(
	generator *BatchGenerator,
	rendering DocumentSource,
	prerendered DocumentSource,
	packager *Packager,
	orchestrator *PrintOrchestrator,
	runs *PrintRunRegistry,
	previews *PreviewCoordinator,
	logger *zap.Logger,
	opts ...ServiceOption,
) *DocumentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &DocumentService{
		generator:    generator,
		rendering:    rendering,
		prerendered:  prerendered,
		packager:     packager,
		orchestrator: orchestrator,
		runs:         runs,
		previews:     previews,
		maxRequests:  DefaultMaxRequests,
		now:          time.Now,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LinkDeliveryEnabled reports whether downloads can be delivered as links
func (s *DocumentService) LinkDeliveryEnabled() bool {
	return s.store != nil
}

// =============================================================================
// Download
// =============================================================================

// Download renders every requested document and packages the successes.
// The result is returned together with packaging errors so partial
// completion can still be reported.
func (s *DocumentService) Download(ctx context.Context, req DownloadRequest) (*DownloadResult, error) {
	if req.Delivery == DeliveryLink && s.store == nil {
		return nil, shared.NewDomainError("INVALID_INPUT", "Link delivery is not configured")
	}
	requests, err := s.expand(req.DocumentRequestInput)
	if err != nil {
		return nil, err
	}

	batch := s.generator.GenerateBatch(ctx, s.rendering, requests, nil)
	result := &DownloadResult{
		Summary:  batch.Summary(),
		Failures: failuresOf(batch),
	}

	artifact, err := s.packager.Package(ctx, batch)
	if err != nil {
		return result, err
	}
	result.Artifact = artifact

	if req.Delivery == DeliveryLink {
		saved, err := s.store.Save(ctx, artifact)
		if err != nil {
			return result, fmt.Errorf("failed to deliver download link: %w", err)
		}
		result.Link = saved
	}

	logger.Enrich(ctx, s.logger).Info("documents downloaded",
		zap.String("invoice_id", req.InvoiceID),
		zap.String("file", artifact.FileName),
		zap.Int("succeeded", result.Summary.Succeeded),
		zap.Int("failed", result.Summary.Failed))

	return result, nil
}

// =============================================================================
// Print runs
// =============================================================================

// StartPrintRun generates pre-rendered documents and prints them one at a
// time in the background. The returned snapshot has the run id to poll.
func (s *DocumentService) StartPrintRun(ctx context.Context, req PrintRunRequest) (*PrintRunSnapshot, error) {
	requests, err := s.expand(req.DocumentRequestInput)
	if err != nil {
		return nil, err
	}
	combine := req.Combine && s.composer != nil

	return s.runs.Start(ctx, func(ctx context.Context, run *PrintRun) *PrintReport {
		run.SetPhase(PrintRunPhaseGenerating)
		batch := s.generator.GenerateBatch(ctx, s.prerendered, requests, run.SetProgress)
		run.SetGeneration(batch)

		docs := batch.SucceededDocuments()
		if len(docs) == 0 {
			run.Fail(invoicing.ErrPackagingEmpty.Message)
			return nil
		}
		if combine && len(docs) > 1 {
			telemetry.WithProfilingLabels(ctx, telemetry.DocumentLabels(telemetry.OperationConcatenate, ""), func(context.Context) {
				docs = []*invoicing.RenderedDocument{s.composer.Concatenate(CombinedLabel(s.now()), docs)}
			})
		}

		run.SetPhase(PrintRunPhasePrinting)
		return s.orchestrator.Run(ctx, invoicing.NewPrintQueue(docs), run.SetProgress)
	}), nil
}

// GetPrintRun returns the state of a print run
func (s *DocumentService) GetPrintRun(id string) (*PrintRunSnapshot, error) {
	return s.runs.Get(id)
}

// CancelPrintRun stops a print run. The surface on display, if any, is left
// to finish.
func (s *DocumentService) CancelPrintRun(id string) (*PrintRunSnapshot, error) {
	return s.runs.Cancel(id)
}

// CombinedLabel is the label of a combined print document, e.g. invoices-2024-03-07
func CombinedLabel(t time.Time) string {
	return "invoices-" + t.Format("2006-01-02")
}

// =============================================================================
// Preview
// =============================================================================

// OpenPreview starts a preview session
func (s *DocumentService) OpenPreview(ctx context.Context, in DocumentRequestInput) (*invoicing.PreviewSnapshot, error) {
	requests, err := s.expand(in)
	if err != nil {
		return nil, err
	}
	return s.previews.Open(ctx, requests)
}

// GetPreview returns the current state of a preview session
func (s *DocumentService) GetPreview(id string) (*invoicing.PreviewSnapshot, error) {
	return s.previews.Snapshot(id)
}

// ZoomPreview applies a zoom request. An absolute level wins over an action.
func (s *DocumentService) ZoomPreview(id string, req ZoomRequest) (*invoicing.PreviewSnapshot, error) {
	if req.Level != nil {
		return s.previews.SetZoom(id, *req.Level)
	}
	if req.Action == "" {
		return nil, shared.NewDomainError("INVALID_INPUT", "Either action or level is required")
	}
	return s.previews.Zoom(id, ZoomAction(req.Action))
}

// SelectPreviewTab switches the visible tab of a preview session
func (s *DocumentService) SelectPreviewTab(id string, req SelectTabRequest) (*invoicing.PreviewSnapshot, error) {
	if req.Index == nil {
		return nil, shared.NewDomainError("INVALID_INPUT", "Tab index is required")
	}
	return s.previews.Select(id, *req.Index)
}

// PrintPreview prints the selected document of a preview session once
func (s *DocumentService) PrintPreview(ctx context.Context, id string) (*PrintItemResult, error) {
	return s.previews.PrintSelected(ctx, id)
}

// RetryPreview regenerates a failed preview session
func (s *DocumentService) RetryPreview(ctx context.Context, id string) (*invoicing.PreviewSnapshot, error) {
	return s.previews.Retry(ctx, id)
}

// ClosePreview discards a preview session
func (s *DocumentService) ClosePreview(id string) error {
	return s.previews.Close(id)
}

// =============================================================================
// Lifecycle
// =============================================================================

// Shutdown cancels running print runs and waits for background work
func (s *DocumentService) Shutdown(ctx context.Context) error {
	if err := s.runs.Shutdown(ctx); err != nil {
		return err
	}

	idle := make(chan struct{})
	go func() {
		s.previews.Wait()
		s.orchestrator.Wait()
		close(idle)
	}()
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *DocumentService) expand(in DocumentRequestInput) ([]invoicing.InvoiceDocumentRequest, error) {
	requests, err := invoicing.ExpandRequests(invoicing.Scope(in.Scope), in.InvoiceID, in.PassengerIDs)
	if err != nil {
		return nil, err
	}
	if len(requests) > s.maxRequests {
		return nil, shared.NewDomainError("INVALID_INPUT",
			fmt.Sprintf("At most %d documents can be produced at once", s.maxRequests))
	}
	return requests, nil
}
