package invoicing

import (
	"context"
	"sync"
	"time"

	"github.com/govtravel/backoffice/internal/domain/invoicing"
	"github.com/govtravel/backoffice/internal/domain/shared"
	"github.com/govtravel/backoffice/internal/infrastructure/logger"
	"github.com/govtravel/backoffice/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// PrintOutcome is how one queue entry left the orchestrator
type PrintOutcome string

const (
	// PrintOutcomePrinted means the host reported that printing finished
	PrintOutcomePrinted PrintOutcome = "PRINTED"
	// PrintOutcomeTimedOut means no completion was observed within the grace period
	PrintOutcomeTimedOut PrintOutcome = "TIMED_OUT"
	// PrintOutcomeFailed means the surface was blocked or the document could not be presented
	PrintOutcomeFailed PrintOutcome = "FAILED"
	// PrintOutcomeDetached means the run was cancelled while the surface was
	// awaiting completion; the surface is closed in the background
	PrintOutcomeDetached PrintOutcome = "DETACHED"
	// PrintOutcomeSkipped means the entry was never presented because the run was cancelled
	PrintOutcomeSkipped PrintOutcome = "SKIPPED"
)

// metricOutcome maps a print outcome to its metric label
func (o PrintOutcome) metricOutcome() string {
	switch o {
	case PrintOutcomePrinted:
		return telemetry.OutcomeSucceeded
	case PrintOutcomeTimedOut:
		return telemetry.OutcomeTimedOut
	case PrintOutcomeFailed:
		return telemetry.OutcomeFailed
	default:
		return telemetry.OutcomeCancelled
	}
}

// PrintItemResult reports one queue entry
type PrintItemResult struct {
	Position int          `json:"position"`
	Label    string       `json:"label"`
	Outcome  PrintOutcome `json:"outcome"`
	Error    string       `json:"error,omitempty"`
}

// PrintReport summarizes a print run
type PrintReport struct {
	Total     int               `json:"total"`
	Printed   int               `json:"printed"`
	TimedOut  int               `json:"timed_out"`
	Failed    int               `json:"failed"`
	Skipped   int               `json:"skipped"`
	Detached  int               `json:"detached"`
	Cancelled bool              `json:"cancelled"`
	Items     []PrintItemResult `json:"items"`
}

func (r *PrintReport) add(res PrintItemResult) {
	r.Items = append(r.Items, res)
	switch res.Outcome {
	case PrintOutcomePrinted:
		r.Printed++
	case PrintOutcomeTimedOut:
		r.TimedOut++
	case PrintOutcomeFailed:
		r.Failed++
	case PrintOutcomeSkipped:
		r.Skipped++
	case PrintOutcomeDetached:
		r.Detached++
	}
}

// PrintOrchestrator presents documents one at a time on display surfaces
// and triggers the host print facility for each.
//
// At most one surface is open at any instant, across all runs and one-shot
// prints sharing the orchestrator. A surface handed to a background waiter
// after cancellation keeps that slot until it closes.
type PrintOrchestrator struct {
	host           invoicing.SurfaceHost
	gracePeriod    time.Duration
	interItemDelay time.Duration
	logger         *zap.Logger
	metrics        *telemetry.DocumentMetrics

	slot chan struct{}

	mu    sync.RWMutex
	state invoicing.PrintState

	background sync.WaitGroup
}

// OrchestratorOption is a functional option for configuring PrintOrchestrator
type OrchestratorOption func(*PrintOrchestrator)

// WithGracePeriod sets how long to wait for the completion notification
// after the print trigger before closing the surface anyway
func WithGracePeriod(d time.Duration) OrchestratorOption {
	return func(o *PrintOrchestrator) {
		if d > 0 {
			o.gracePeriod = d
		}
	}
}

// WithInterItemDelay sets the pause between closing one surface and opening the next
func WithInterItemDelay(d time.Duration) OrchestratorOption {
	return func(o *PrintOrchestrator) {
		if d >= 0 {
			o.interItemDelay = d
		}
	}
}

// WithOrchestratorLogger sets the logger
func WithOrchestratorLogger(l *zap.Logger) OrchestratorOption {
	return func(o *PrintOrchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithOrchestratorMetrics sets the metrics recorder
func WithOrchestratorMetrics(m *telemetry.DocumentMetrics) OrchestratorOption {
	return func(o *PrintOrchestrator) {
		o.metrics = m
	}
}

// NewPrintOrchestrator creates a PrintOrchestrator
func NewPrintOrchestrator(host invoicing.SurfaceHost, opts ...OrchestratorOption) *PrintOrchestrator {
	o := &PrintOrchestrator{
		host:           host,
		gracePeriod:    30 * time.Second,
		interItemDelay: time.Second,
		logger:         zap.NewNop(),
		slot:           make(chan struct{}, 1),
		state:          invoicing.PrintStateIdle,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// State returns the current orchestrator state
func (o *PrintOrchestrator) State() invoicing.PrintState {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.state
}

func (o *PrintOrchestrator) setState(s invoicing.PrintState) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
}

// Run presents the entries in queue order. Cancelling ctx stops further
// presentation; a surface already awaiting completion is left open for the
// user and closed in the background. onProgress is called after each entry.
func (o *PrintOrchestrator) Run(ctx context.Context, entries []invoicing.PrintQueueEntry, onProgress ProgressFunc) *PrintReport {
	report := &PrintReport{Total: len(entries), Items: make([]PrintItemResult, 0, len(entries))}
	log := logger.Enrich(ctx, o.logger)

	for i, entry := range entries {
		if i > 0 && !o.pause(ctx) {
			o.skipRemaining(ctx, report, entries[i:])
			break
		}
		if ctx.Err() != nil {
			o.skipRemaining(ctx, report, entries[i:])
			break
		}

		res, _ := o.present(ctx, entry)
		report.add(res)
		if onProgress != nil {
			onProgress(i+1, len(entries))
		}
		if res.Outcome == PrintOutcomeDetached || res.Outcome == PrintOutcomeSkipped {
			o.skipRemaining(ctx, report, entries[i+1:])
			break
		}
	}

	log.Info("print run finished",
		zap.Int("total", report.Total),
		zap.Int("printed", report.Printed),
		zap.Int("timed_out", report.TimedOut),
		zap.Int("failed", report.Failed),
		zap.Int("skipped", report.Skipped),
		zap.Bool("cancelled", report.Cancelled))

	return report
}

// PrintOne presents a single document through the same path as Run.
// The returned error is set when the document could not be presented.
func (o *PrintOrchestrator) PrintOne(ctx context.Context, doc *invoicing.RenderedDocument) (*PrintItemResult, error) {
	res, err := o.present(ctx, invoicing.PrintQueueEntry{Position: 1, Document: doc})
	return &res, err
}

// Wait blocks until every surface handed to a background waiter has closed
func (o *PrintOrchestrator) Wait() {
	o.background.Wait()
}

func (o *PrintOrchestrator) skipRemaining(ctx context.Context, report *PrintReport, rest []invoicing.PrintQueueEntry) {
	report.Cancelled = true
	for _, entry := range rest {
		res := PrintItemResult{Position: entry.Position, Outcome: PrintOutcomeSkipped}
		if entry.Document != nil {
			res.Label = entry.Document.DocumentLabel
		}
		report.add(res)
		o.metrics.RecordPrintItem(ctx, res.Outcome.metricOutcome(), 0)
	}
}

// pause waits the inter-item delay. It returns false when ctx ends first.
func (o *PrintOrchestrator) pause(ctx context.Context) bool {
	if o.interItemDelay <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(o.interItemDelay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// present runs one presenting -> awaiting-completion cycle. The surface is
// closed on every exit path except cancellation while awaiting, where it is
// handed to a background waiter.
func (o *PrintOrchestrator) present(ctx context.Context, entry invoicing.PrintQueueEntry) (PrintItemResult, error) {
	doc := entry.Document
	res := PrintItemResult{Position: entry.Position}
	if doc != nil {
		res.Label = doc.DocumentLabel
	}
	log := logger.Enrich(ctx, o.logger).With(
		zap.Int("position", entry.Position),
		zap.String("document_label", res.Label))

	if doc == nil {
		res.Outcome, res.Error = PrintOutcomeFailed, "document is missing"
		o.metrics.RecordPrintItem(ctx, res.Outcome.metricOutcome(), 0)
		return res, shared.NewDomainError("INVALID_INPUT", "Document is required")
	}

	select {
	case o.slot <- struct{}{}:
	case <-ctx.Done():
		res.Outcome = PrintOutcomeSkipped
		o.metrics.RecordPrintItem(ctx, res.Outcome.metricOutcome(), 0)
		return res, ctx.Err()
	}
	release := func() {
		o.setState(invoicing.PrintStateIdle)
		<-o.slot
	}

	start := time.Now()
	o.setState(invoicing.PrintStatePresenting)

	// Cancellation never interrupts a presentation once started
	presentCtx := context.WithoutCancel(ctx)

	surface, err := o.host.Open(presentCtx)
	if err != nil {
		release()
		blocked := invoicing.NewSurfaceBlockedError(res.Label, err)
		log.Warn("display surface blocked", zap.Error(err))
		res.Outcome, res.Error = PrintOutcomeFailed, blocked.Error()
		o.metrics.RecordPrintItem(ctx, res.Outcome.metricOutcome(), time.Since(start))
		return res, blocked
	}

	fail := func(err error) (PrintItemResult, error) {
		_ = surface.Close()
		release()
		log.Warn("document presentation failed", zap.Error(err))
		res.Outcome, res.Error = PrintOutcomeFailed, err.Error()
		o.metrics.RecordPrintItem(ctx, res.Outcome.metricOutcome(), time.Since(start))
		return res, err
	}

	if err := surface.Write(presentCtx, doc); err != nil {
		return fail(err)
	}
	if err := surface.Print(presentCtx); err != nil {
		return fail(err)
	}

	o.setState(invoicing.PrintStateAwaitingCompletion)
	grace := time.NewTimer(o.gracePeriod)

	select {
	case <-surface.Done():
		grace.Stop()
		if err := surface.Err(); err != nil {
			return fail(err)
		}
		res.Outcome = PrintOutcomePrinted
		log.Info("document printed")
	case <-grace.C:
		res.Outcome = PrintOutcomeTimedOut
		log.Warn("no print completion within grace period, closing surface",
			zap.Duration("grace_period", o.gracePeriod))
	case <-ctx.Done():
		res.Outcome = PrintOutcomeDetached
		log.Info("print run cancelled, leaving current surface to finish")
		o.background.Add(1)
		go o.awaitInBackground(log, surface, grace, release)
		o.metrics.RecordPrintItem(ctx, res.Outcome.metricOutcome(), time.Since(start))
		return res, nil
	}

	_ = surface.Close()
	release()
	o.metrics.RecordPrintItem(ctx, res.Outcome.metricOutcome(), time.Since(start))
	return res, nil
}

// awaitInBackground closes a detached surface on completion or when the
// remaining grace period runs out, then frees the slot
func (o *PrintOrchestrator) awaitInBackground(log *zap.Logger, surface invoicing.Surface, grace *time.Timer, release func()) {
	defer o.background.Done()
	select {
	case <-surface.Done():
		grace.Stop()
	case <-grace.C:
		log.Warn("detached surface reached grace period")
	}
	_ = surface.Close()
	release()
}
