package invoicing

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/govtravel/backoffice/internal/domain/invoicing"
	"github.com/govtravel/backoffice/internal/domain/shared"
	"github.com/govtravel/backoffice/internal/infrastructure/logger"
	"github.com/govtravel/backoffice/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// ZoomAction is a relative zoom adjustment
type ZoomAction string

const (
	ZoomIn    ZoomAction = "in"
	ZoomOut   ZoomAction = "out"
	ZoomReset ZoomAction = "reset"
)

// IsValid checks if the ZoomAction is a valid value
func (a ZoomAction) IsValid() bool {
	return a == ZoomIn || a == ZoomOut || a == ZoomReset
}

// OneShotPrinter prints a single document outside any queue
type OneShotPrinter interface {
	PrintOne(ctx context.Context, doc *invoicing.RenderedDocument) (*PrintItemResult, error)
}

// previewSession is the mutable state behind a PreviewSnapshot.
// All fields are guarded by PreviewCoordinator.mu.
type previewSession struct {
	id         string
	requests   []invoicing.InvoiceDocumentRequest
	status     invoicing.PreviewStatus
	zoom       invoicing.ZoomLevel
	selected   int
	progress   int
	batch      invoicing.Batch
	err        string
	generation int
	createdAt  time.Time
	expiresAt  time.Time
}

// PreviewCoordinator holds preview sessions: documents generated for human
// review with their own zoom level and tab selection. Sessions are kept in
// memory and expire after the TTL without access.
type PreviewCoordinator struct {
	generator   *BatchGenerator
	source      DocumentSource
	printer     OneShotPrinter
	ttl         time.Duration
	defaultZoom invoicing.ZoomLevel
	now         func() time.Time
	logger      *zap.Logger
	metrics     *telemetry.DocumentMetrics

	mu       sync.Mutex
	sessions map[string]*previewSession
	wg       sync.WaitGroup
}

// PreviewOption is a functional option for configuring PreviewCoordinator
type PreviewOption func(*PreviewCoordinator)

// WithSessionTTL sets how long an untouched session is kept
func WithSessionTTL(d time.Duration) PreviewOption {
	return func(c *PreviewCoordinator) {
		if d > 0 {
			c.ttl = d
		}
	}
}

// WithDefaultZoom sets the zoom level new sessions start with
func WithDefaultZoom(percent int) PreviewOption {
	return func(c *PreviewCoordinator) {
		if percent > 0 {
			c.defaultZoom = invoicing.NewZoomLevel(percent)
		}
	}
}

// WithPreviewLogger sets the logger
func WithPreviewLogger(l *zap.Logger) PreviewOption {
	return func(c *PreviewCoordinator) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithPreviewMetrics sets the metrics recorder
func WithPreviewMetrics(m *telemetry.DocumentMetrics) PreviewOption {
	return func(c *PreviewCoordinator) {
		c.metrics = m
	}
}

// NewPreviewCoordinator creates a PreviewCoordinator
func NewPreviewCoordinator(generator *BatchGenerator, source DocumentSource, printer OneShotPrinter, opts ...PreviewOption) *PreviewCoordinator {
	c := &PreviewCoordinator{
		generator:   generator,
		source:      source,
		printer:     printer,
		ttl:         30 * time.Minute,
		defaultZoom: invoicing.DefaultZoom,
		now:         time.Now,
		logger:      zap.NewNop(),
		sessions:    make(map[string]*previewSession),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// =============================================================================
// Session lifecycle
// =============================================================================

// Open creates a session and starts producing its documents in the background.
// The returned snapshot is in the loading state.
func (c *PreviewCoordinator) Open(ctx context.Context, requests []invoicing.InvoiceDocumentRequest) (*invoicing.PreviewSnapshot, error) {
	if len(requests) == 0 {
		return nil, shared.NewDomainError("INVALID_INPUT", "At least one document is required for a preview")
	}
	c.Sweep()

	now := c.now()
	s := &previewSession{
		id:        uuid.NewString(),
		requests:  append([]invoicing.InvoiceDocumentRequest(nil), requests...),
		zoom:      c.defaultZoom,
		createdAt: now,
	}

	c.mu.Lock()
	c.sessions[s.id] = s
	c.startGeneration(ctx, s)
	snap := c.snapshotLocked(s)
	c.mu.Unlock()

	c.metrics.RecordPreviewOpened(ctx, "rendering")
	logger.Enrich(ctx, c.logger).Info("preview session opened",
		zap.String("session_id", s.id),
		zap.Int("documents", len(requests)))

	return snap, nil
}

// Snapshot returns the current state of a session
func (c *PreviewCoordinator) Snapshot(id string) (*invoicing.PreviewSnapshot, error) {
	return c.update(id, func(*previewSession) error { return nil })
}

// Retry re-runs the whole generation of a failed session
func (c *PreviewCoordinator) Retry(ctx context.Context, id string) (*invoicing.PreviewSnapshot, error) {
	return c.update(id, func(s *previewSession) error {
		if s.status != invoicing.PreviewStatusFailed {
			return shared.NewDomainError("INVALID_STATE", "Only a failed preview can be retried")
		}
		c.startGeneration(ctx, s)
		return nil
	})
}

// Close discards a session
func (c *PreviewCoordinator) Close(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.sessions[id]; !ok {
		return invoicing.ErrPreviewNotFound
	}
	delete(c.sessions, id)
	return nil
}

// Sweep removes expired sessions and returns how many were removed
func (c *PreviewCoordinator) Sweep() int {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for id, s := range c.sessions {
		if now.After(s.expiresAt) {
			delete(c.sessions, id)
			removed++
		}
	}
	return removed
}

// RunSweeper sweeps expired sessions periodically until ctx is done
func (c *PreviewCoordinator) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := c.Sweep(); n > 0 {
				c.logger.Debug("expired preview sessions removed", zap.Int("count", n))
			}
		}
	}
}

// Wait blocks until background generations have finished
func (c *PreviewCoordinator) Wait() {
	c.wg.Wait()
}

// =============================================================================
// Zoom and selection
// =============================================================================

// Zoom applies a relative zoom action
func (c *PreviewCoordinator) Zoom(id string, action ZoomAction) (*invoicing.PreviewSnapshot, error) {
	if !action.IsValid() {
		return nil, shared.NewDomainError("INVALID_INPUT", "Invalid zoom action: "+string(action))
	}
	return c.update(id, func(s *previewSession) error {
		switch action {
		case ZoomIn:
			s.zoom = s.zoom.In()
		case ZoomOut:
			s.zoom = s.zoom.Out()
		case ZoomReset:
			s.zoom = c.defaultZoom
		}
		return nil
	})
}

// SetZoom sets an absolute zoom level, clamped to the allowed range
func (c *PreviewCoordinator) SetZoom(id string, percent int) (*invoicing.PreviewSnapshot, error) {
	return c.update(id, func(s *previewSession) error {
		s.zoom = invoicing.NewZoomLevel(percent)
		return nil
	})
}

// Select switches the visible tab
func (c *PreviewCoordinator) Select(id string, index int) (*invoicing.PreviewSnapshot, error) {
	return c.update(id, func(s *previewSession) error {
		if s.status != invoicing.PreviewStatusReady {
			return shared.NewDomainError("INVALID_STATE", "Preview is not ready")
		}
		if index < 0 || index >= len(s.batch) {
			return shared.NewDomainError("INVALID_INPUT", "Tab index out of range")
		}
		s.selected = index
		return nil
	})
}

// =============================================================================
// Printing
// =============================================================================

// PrintSelected prints the selected document once. The document is produced
// again from its request so no rendered document is shown on two surfaces.
func (c *PreviewCoordinator) PrintSelected(ctx context.Context, id string) (*PrintItemResult, error) {
	var req invoicing.InvoiceDocumentRequest
	_, err := c.update(id, func(s *previewSession) error {
		if s.status != invoicing.PreviewStatusReady {
			return shared.NewDomainError("INVALID_STATE", "Preview is not ready")
		}
		item := s.batch[s.selected]
		if !item.IsSucceeded() {
			return shared.NewDomainError("INVALID_STATE", "Selected document failed to generate")
		}
		req = item.Request
		return nil
	})
	if err != nil {
		return nil, err
	}

	doc, err := c.source.Produce(ctx, req)
	if err != nil {
		return nil, err
	}
	return c.printer.PrintOne(ctx, doc)
}

// =============================================================================
// Internals
// =============================================================================

// update runs fn on a live session under the lock, refreshes its expiry and
// returns the resulting snapshot
func (c *PreviewCoordinator) update(id string, fn func(*previewSession) error) (*invoicing.PreviewSnapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.sessions[id]
	if !ok || c.now().After(s.expiresAt) {
		delete(c.sessions, id)
		return nil, invoicing.ErrPreviewNotFound
	}
	if err := fn(s); err != nil {
		return nil, err
	}
	return c.snapshotLocked(s), nil
}

// startGeneration resets the session to loading and produces its documents.
// Must be called with c.mu held. Results of a superseded generation are dropped.
func (c *PreviewCoordinator) startGeneration(ctx context.Context, s *previewSession) {
	s.generation++
	gen := s.generation
	s.status = invoicing.PreviewStatusLoading
	s.progress = 0
	s.batch = nil
	s.err = ""
	s.selected = 0

	requests := s.requests
	workCtx := context.WithoutCancel(ctx)
	workCtx, _ = logger.WithRunID(workCtx, logger.Enrich(ctx, c.logger), s.id)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		batch := c.generator.GenerateBatch(workCtx, c.source, requests, func(current, _ int) {
			c.mu.Lock()
			defer c.mu.Unlock()
			if s.generation == gen {
				s.progress = current
			}
		})

		c.mu.Lock()
		defer c.mu.Unlock()
		if s.generation != gen {
			return
		}
		c.finishGeneration(s, batch)
	}()
}

// finishGeneration stores the batch and settles the session status.
// Must be called with c.mu held.
func (c *PreviewCoordinator) finishGeneration(s *previewSession, batch invoicing.Batch) {
	s.batch = batch
	s.progress = len(batch)

	if batch.Summary().Succeeded == 0 {
		s.status = invoicing.PreviewStatusFailed
		s.err = "No documents could be generated"
		for _, item := range batch {
			if item.ErrorMessage != "" {
				s.err = item.ErrorMessage
				break
			}
		}
		c.logger.Warn("preview generation failed",
			zap.String("session_id", s.id),
			zap.String("error", s.err))
		return
	}

	s.status = invoicing.PreviewStatusReady
	for i, item := range batch {
		if item.IsSucceeded() {
			s.selected = i
			break
		}
	}
}

// snapshotLocked copies the session and extends its expiry.
// Must be called with c.mu held.
func (c *PreviewCoordinator) snapshotLocked(s *previewSession) *invoicing.PreviewSnapshot {
	s.expiresAt = c.now().Add(c.ttl)

	snap := &invoicing.PreviewSnapshot{
		ID:        s.id,
		Status:    s.status,
		Zoom:      s.zoom,
		Selected:  s.selected,
		Progress:  s.progress,
		Total:     len(s.requests),
		Error:     s.err,
		CreatedAt: s.createdAt,
		ExpiresAt: s.expiresAt,
	}
	if len(s.batch) > 0 {
		snap.Tabs = make([]invoicing.PreviewTab, len(s.batch))
		for i, item := range s.batch {
			tab := invoicing.PreviewTab{
				Index:  i,
				Label:  item.Request.Key(),
				Status: item.Status,
				Error:  item.ErrorMessage,
			}
			if item.IsSucceeded() {
				tab.Label = item.Document.DocumentLabel
				tab.Document = item.Document
			}
			snap.Tabs[i] = tab
		}
	}
	return snap
}
