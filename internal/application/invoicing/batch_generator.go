package invoicing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/govtravel/backoffice/internal/domain/invoicing"
	"github.com/govtravel/backoffice/internal/infrastructure/logger"
	"github.com/govtravel/backoffice/internal/infrastructure/telemetry"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ProgressFunc receives (current, total) with a 1-based current index.
// It is advisory only.
type ProgressFunc func(current, total int)

// BatchGenerator produces one document per request. Dispatches are paced by
// a fixed interval while in-flight items resolve independently, so a batch
// takes about N x interval rather than N x item latency.
type BatchGenerator struct {
	interval time.Duration
	logger   *zap.Logger
	metrics  *telemetry.DocumentMetrics
}

// BatchOption is a functional option for configuring BatchGenerator
type BatchOption func(*BatchGenerator)

// WithDispatchInterval sets the pause between dispatches. Zero disables pacing.
func WithDispatchInterval(d time.Duration) BatchOption {
	return func(g *BatchGenerator) {
		if d >= 0 {
			g.interval = d
		}
	}
}

// WithBatchLogger sets the logger
func WithBatchLogger(l *zap.Logger) BatchOption {
	return func(g *BatchGenerator) {
		if l != nil {
			g.logger = l
		}
	}
}

// WithBatchMetrics sets the metrics recorder
func WithBatchMetrics(m *telemetry.DocumentMetrics) BatchOption {
	return func(g *BatchGenerator) {
		g.metrics = m
	}
}

// NewBatchGenerator creates a BatchGenerator
func NewBatchGenerator(opts ...BatchOption) *BatchGenerator {
	g := &BatchGenerator{
		interval: 250 * time.Millisecond,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Interval returns the configured dispatch interval
func (g *BatchGenerator) Interval() time.Duration {
	return g.interval
}

// GenerateBatch dispatches every request to source and waits for all of them.
// Item i of the result always corresponds to requests[i]. Failures of one
// item never affect the others, and once dispatched an item runs to
// completion even if ctx is cancelled.
func (g *BatchGenerator) GenerateBatch(
	ctx context.Context,
	source DocumentSource,
	requests []invoicing.InvoiceDocumentRequest,
	onProgress ProgressFunc,
) invoicing.Batch {
	batch := make(invoicing.Batch, len(requests))
	if len(requests) == 0 {
		return batch
	}
	for i, req := range requests {
		batch[i] = invoicing.NewBatchItem(i, req)
	}

	workCtx := context.WithoutCancel(ctx)
	log := logger.Enrich(ctx, g.logger)

	var limiter *rate.Limiter
	if g.interval > 0 {
		limiter = rate.NewLimiter(rate.Every(g.interval), 1)
	}

	var wg sync.WaitGroup
	for i := range batch {
		if limiter != nil {
			// workCtx is never cancelled, so Wait only fails on a zero burst
			_ = limiter.Wait(workCtx)
		}

		item := &batch[i]
		_ = item.Start()

		wg.Add(1)
		go func() {
			defer wg.Done()
			g.produce(workCtx, log, source, item)
		}()

		if onProgress != nil {
			onProgress(i+1, len(batch))
		}
	}
	wg.Wait()

	summary := batch.Summary()
	log.Info("document batch generated",
		zap.Int("total", summary.Total),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed))

	return batch
}

// produce runs one item to a terminal state. Errors and panics become failures.
func (g *BatchGenerator) produce(ctx context.Context, log *zap.Logger, source DocumentSource, item *invoicing.BatchItem) {
	start := time.Now()
	scope := item.Request.Scope().String()

	defer func() {
		if r := recover(); r != nil {
			log.Error("document generation panicked",
				zap.String("request", item.Request.Key()),
				zap.Any("panic", r))
			_ = item.Fail(fmt.Sprintf("document generation panicked: %v", r))
			g.metrics.RecordDocument(ctx, scope, false, time.Since(start))
		}
	}()

	doc, err := source.Produce(ctx, item.Request)
	if err == nil && doc == nil {
		err = fmt.Errorf("no document produced for %s", item.Request.Key())
	}
	if err != nil {
		log.Warn("document generation failed",
			zap.Int("index", item.Index),
			zap.String("request", item.Request.Key()),
			zap.Error(err))
		_ = item.Fail(err.Error())
		g.metrics.RecordDocument(ctx, scope, false, time.Since(start))
		return
	}

	_ = item.Succeed(doc)
	g.metrics.RecordDocument(ctx, scope, true, time.Since(start))
}
