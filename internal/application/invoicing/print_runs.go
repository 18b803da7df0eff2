package invoicing

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/govtravel/backoffice/internal/domain/invoicing"
	"github.com/govtravel/backoffice/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// PrintRunPhase is the step a running print run is in
type PrintRunPhase string

const (
	PrintRunPhaseGenerating PrintRunPhase = "GENERATING"
	PrintRunPhasePrinting   PrintRunPhase = "PRINTING"
	PrintRunPhaseDone       PrintRunPhase = "DONE"
)

// ItemFailure describes a request that produced no document
type ItemFailure struct {
	Index   int    `json:"index"`
	Request string `json:"request"`
	Error   string `json:"error"`
}

// failuresOf lists the failed items of a batch in batch order
func failuresOf(batch invoicing.Batch) []ItemFailure {
	var failures []ItemFailure
	for _, item := range batch {
		if item.Status == invoicing.ItemStatusFailed {
			failures = append(failures, ItemFailure{
				Index:   item.Index,
				Request: item.Request.Key(),
				Error:   item.ErrorMessage,
			})
		}
	}
	return failures
}

// PrintRunSnapshot is a read-only copy of a print run
type PrintRunSnapshot struct {
	ID         string                   `json:"id"`
	Status     invoicing.PrintRunStatus `json:"status"`
	Phase      PrintRunPhase            `json:"phase"`
	Progress   int                      `json:"progress"`
	Total      int                      `json:"total"`
	Generation invoicing.BatchSummary   `json:"generation"`
	Failures   []ItemFailure            `json:"failures,omitempty"`
	Report     *PrintReport             `json:"report,omitempty"`
	Error      string                   `json:"error,omitempty"`
	CreatedAt  time.Time                `json:"created_at"`
	FinishedAt *time.Time               `json:"finished_at,omitempty"`
}

// PrintRun is the handle a running job reports through
type PrintRun struct {
	id        string
	createdAt time.Time
	cancel    context.CancelFunc
	done      chan struct{}

	mu         sync.Mutex
	status     invoicing.PrintRunStatus
	phase      PrintRunPhase
	progress   int
	total      int
	generation invoicing.BatchSummary
	failures   []ItemFailure
	report     *PrintReport
	errMsg     string
	finishedAt time.Time
	cancelled  bool
}

// ID returns the run id
func (r *PrintRun) ID() string {
	return r.id
}

// Done is closed when the run has finished
func (r *PrintRun) Done() <-chan struct{} {
	return r.done
}

// SetPhase moves the run to the next phase and resets progress
func (r *PrintRun) SetPhase(phase PrintRunPhase) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.phase = phase
	r.progress = 0
}

// SetProgress records progress within the current phase. It matches ProgressFunc.
func (r *PrintRun) SetProgress(current, total int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress = current
	r.total = total
}

// SetGeneration records the outcome of the generation phase
func (r *PrintRun) SetGeneration(batch invoicing.Batch) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.generation = batch.Summary()
	r.failures = failuresOf(batch)
}

// Fail marks the run as failed with msg. The first failure wins.
func (r *PrintRun) Fail(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.errMsg == "" {
		r.errMsg = msg
	}
}

func (r *PrintRun) finish(report *PrintReport, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.report = report
	r.phase = PrintRunPhaseDone
	r.finishedAt = now
	switch {
	case r.cancelled || (report != nil && report.Cancelled):
		r.status = invoicing.PrintRunStatusCancelled
	case r.errMsg != "":
		r.status = invoicing.PrintRunStatusFailed
	default:
		r.status = invoicing.PrintRunStatusCompleted
	}
}

func (r *PrintRun) snapshot() *PrintRunSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := &PrintRunSnapshot{
		ID:         r.id,
		Status:     r.status,
		Phase:      r.phase,
		Progress:   r.progress,
		Total:      r.total,
		Generation: r.generation,
		Failures:   append([]ItemFailure(nil), r.failures...),
		Report:     r.report,
		Error:      r.errMsg,
		CreatedAt:  r.createdAt,
	}
	if !r.finishedAt.IsZero() {
		finished := r.finishedAt
		s.FinishedAt = &finished
	}
	return s
}

// PrintRunJob is the work of one run. It must honour ctx for cancellation.
type PrintRunJob func(ctx context.Context, run *PrintRun) *PrintReport

// PrintRunRegistry runs print jobs in the background and tracks them by id.
// Finished runs are kept for the retention period so clients can poll the
// final report.
type PrintRunRegistry struct {
	retention time.Duration
	now       func() time.Time
	logger    *zap.Logger

	mu   sync.Mutex
	runs map[string]*PrintRun
	wg   sync.WaitGroup
}

// NewPrintRunRegistry creates a registry
func NewPrintRunRegistry(retention time.Duration, logger *zap.Logger) *PrintRunRegistry {
	if logger == nil {
		logger = zap.NewNop()
	}
	if retention <= 0 {
		retention = time.Hour
	}
	return &PrintRunRegistry{
		retention: retention,
		now:       time.Now,
		logger:    logger,
		runs:      make(map[string]*PrintRun),
	}
}

// Start launches job in the background. The run outlives ctx; only Cancel
// stops it. Values on ctx (logger, request id) are kept.
func (reg *PrintRunRegistry) Start(ctx context.Context, job PrintRunJob) *PrintRunSnapshot {
	reg.prune()

	id := uuid.NewString()
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	runCtx, runLogger := logger.WithRunID(runCtx, logger.Enrich(ctx, reg.logger), id)

	run := &PrintRun{
		id:        id,
		createdAt: reg.now(),
		cancel:    cancel,
		done:      make(chan struct{}),
		status:    invoicing.PrintRunStatusRunning,
		phase:     PrintRunPhaseGenerating,
	}

	reg.mu.Lock()
	reg.runs[id] = run
	reg.mu.Unlock()

	reg.wg.Add(1)
	go func() {
		defer reg.wg.Done()
		defer cancel()

		var report *PrintReport
		func() {
			defer func() {
				if r := recover(); r != nil {
					runLogger.Error("print run panicked", zap.Any("panic", r))
					run.Fail("Print run stopped unexpectedly")
				}
			}()
			report = job(runCtx, run)
		}()
		run.finish(report, reg.now())
		runLogger.Info("print run finished", zap.String("status", string(run.snapshot().Status)))
		close(run.done)
	}()

	runLogger.Info("print run started")
	return run.snapshot()
}

// Get returns the run snapshot
func (reg *PrintRunRegistry) Get(id string) (*PrintRunSnapshot, error) {
	run, err := reg.lookup(id)
	if err != nil {
		return nil, err
	}
	return run.snapshot(), nil
}

// Cancel stops a running run. Cancelling a finished run is a no-op.
func (reg *PrintRunRegistry) Cancel(id string) (*PrintRunSnapshot, error) {
	run, err := reg.lookup(id)
	if err != nil {
		return nil, err
	}

	run.mu.Lock()
	running := run.status == invoicing.PrintRunStatusRunning
	if running {
		run.cancelled = true
	}
	run.mu.Unlock()

	if running {
		run.cancel()
		reg.logger.Info("print run cancelled", zap.String("run_id", id))
	}
	return run.snapshot(), nil
}

// Done returns a channel closed when the run finishes
func (reg *PrintRunRegistry) Done(id string) (<-chan struct{}, error) {
	run, err := reg.lookup(id)
	if err != nil {
		return nil, err
	}
	return run.Done(), nil
}

// Shutdown cancels every running run and waits for them to finish
func (reg *PrintRunRegistry) Shutdown(ctx context.Context) error {
	reg.mu.Lock()
	for _, run := range reg.runs {
		run.cancel()
	}
	reg.mu.Unlock()

	finished := make(chan struct{})
	go func() {
		reg.wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (reg *PrintRunRegistry) lookup(id string) (*PrintRun, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	run, ok := reg.runs[id]
	if !ok {
		return nil, invoicing.ErrPrintRunNotFound
	}
	return run, nil
}

// prune forgets finished runs past the retention period
func (reg *PrintRunRegistry) prune() {
	cutoff := reg.now().Add(-reg.retention)

	reg.mu.Lock()
	defer reg.mu.Unlock()
	for id, run := range reg.runs {
		run.mu.Lock()
		expired := !run.finishedAt.IsZero() && run.finishedAt.Before(cutoff)
		run.mu.Unlock()
		if expired {
			delete(reg.runs, id)
		}
	}
}
