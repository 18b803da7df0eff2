package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// Outcome labels used across document metrics.
const (
	OutcomeSucceeded = "succeeded"
	OutcomeFailed    = "failed"
	OutcomeTimedOut  = "timed_out"
	OutcomeCancelled = "cancelled"
)

// DocumentMetrics records invoice document generation, packaging and printing.
// All record methods are safe to call on a nil receiver.
type DocumentMetrics struct {
	logger *zap.Logger

	documentsTotal  *Counter
	renderDuration  *Histogram
	artifactsTotal  *Counter
	artifactBytes   *Counter
	printItemsTotal *Counter
	printDuration   *Histogram
	previewsTotal   *Counter
}

// DocumentMetricsConfig holds configuration for document metrics.
type DocumentMetricsConfig struct {
	Meter  metric.Meter
	Logger *zap.Logger
}

// NewDocumentMetrics creates a new DocumentMetrics instance.
func NewDocumentMetrics(cfg DocumentMetricsConfig) (*DocumentMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	dm := &DocumentMetrics{logger: logger}

	var err error
	dm.documentsTotal, err = NewCounter(
		cfg.Meter,
		"backoffice_documents_generated_total",
		"Total number of invoice documents generated",
		"{documents}",
	)
	if err != nil {
		return nil, err
	}

	dm.renderDuration, err = NewHistogram(cfg.Meter, HistogramOpts{
		Name:        "backoffice_document_generation_duration_seconds",
		Description: "Time to fetch and render one invoice document",
		Unit:        "s",
		Boundaries:  RenderDurationBuckets,
	})
	if err != nil {
		return nil, err
	}

	dm.artifactsTotal, err = NewCounter(
		cfg.Meter,
		"backoffice_artifacts_total",
		"Total number of download artifacts produced",
		"{artifacts}",
	)
	if err != nil {
		return nil, err
	}

	dm.artifactBytes, err = NewCounter(
		cfg.Meter,
		"backoffice_artifact_bytes_total",
		"Total size of download artifacts produced",
		"By",
	)
	if err != nil {
		return nil, err
	}

	dm.printItemsTotal, err = NewCounter(
		cfg.Meter,
		"backoffice_print_items_total",
		"Total number of documents handled by print runs",
		"{documents}",
	)
	if err != nil {
		return nil, err
	}

	dm.printDuration, err = NewHistogram(cfg.Meter, HistogramOpts{
		Name:        "backoffice_print_item_duration_seconds",
		Description: "Time a display surface stayed open for one document",
		Unit:        "s",
		Boundaries:  PrintDurationBuckets,
	})
	if err != nil {
		return nil, err
	}

	dm.previewsTotal, err = NewCounter(
		cfg.Meter,
		"backoffice_preview_sessions_total",
		"Total number of preview sessions opened",
		"{sessions}",
	)
	if err != nil {
		return nil, err
	}

	return dm, nil
}

// RecordDocument records the outcome of generating one document.
func (dm *DocumentMetrics) RecordDocument(ctx context.Context, scope string, succeeded bool, d time.Duration) {
	if dm == nil {
		return
	}
	outcome := OutcomeSucceeded
	if !succeeded {
		outcome = OutcomeFailed
	}
	dm.documentsTotal.Inc(ctx, AttrScope.String(scope), AttrOutcome.String(outcome))
	dm.renderDuration.RecordDuration(ctx, d, AttrScope.String(scope))
}

// RecordArtifact records a packaged download artifact of the given kind (html or zip).
func (dm *DocumentMetrics) RecordArtifact(ctx context.Context, kind string, size int) {
	if dm == nil {
		return
	}
	dm.artifactsTotal.Inc(ctx, AttrKind.String(kind))
	dm.artifactBytes.Add(ctx, int64(size), AttrKind.String(kind))
}

// RecordPrintItem records how one document left the print queue.
func (dm *DocumentMetrics) RecordPrintItem(ctx context.Context, outcome string, d time.Duration) {
	if dm == nil {
		return
	}
	dm.printItemsTotal.Inc(ctx, AttrOutcome.String(outcome))
	if d > 0 {
		dm.printDuration.RecordDuration(ctx, d, AttrOutcome.String(outcome))
	}
}

// RecordPreviewOpened records a preview session with the source it was built from.
func (dm *DocumentMetrics) RecordPreviewOpened(ctx context.Context, source string) {
	if dm == nil {
		return
	}
	dm.previewsTotal.Inc(ctx, AttrSource.String(source))
}

// ErrMeterNil is returned when meter is nil.
var ErrMeterNil = &MetricsError{Op: "NewDocumentMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}
