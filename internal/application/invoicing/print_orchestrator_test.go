package invoicing

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	domain "github.com/govtravel/backoffice/internal/domain/invoicing"
	"github.com/govtravel/backoffice/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestOrchestrator(t *testing.T, host domain.SurfaceHost, opts ...OrchestratorOption) *PrintOrchestrator {
	t.Helper()
	base := []OrchestratorOption{
		WithGracePeriod(time.Second),
		WithInterItemDelay(0),
		WithOrchestratorLogger(zaptest.NewLogger(t)),
	}
	return NewPrintOrchestrator(host, append(base, opts...)...)
}

func TestNewPrintOrchestrator_Defaults(t *testing.T) {
	o := NewPrintOrchestrator(newFakeHost(nil))
	assert.Equal(t, 30*time.Second, o.gracePeriod)
	assert.Equal(t, time.Second, o.interItemDelay)
	assert.Equal(t, domain.PrintStateIdle, o.State())

	o = NewPrintOrchestrator(newFakeHost(nil), WithGracePeriod(0), WithInterItemDelay(-1))
	assert.Equal(t, 30*time.Second, o.gracePeriod)
	assert.Equal(t, time.Second, o.interItemDelay)
}

func TestPrintOrchestrator_Run(t *testing.T) {
	ctx := context.Background()

	t.Run("prints every entry in queue order", func(t *testing.T) {
		host := newFakeHost(nil)
		o := newTestOrchestrator(t, host)

		var progress [][2]int
		report := o.Run(ctx, domain.NewPrintQueue(testDocs("A", "B", "C")), func(current, total int) {
			progress = append(progress, [2]int{current, total})
		})

		assert.Equal(t, 3, report.Total)
		assert.Equal(t, 3, report.Printed)
		assert.False(t, report.Cancelled)
		assert.Equal(t, []string{"A", "B", "C"}, host.printedLabels())
		assert.Equal(t, [][2]int{{1, 3}, {2, 3}, {3, 3}}, progress)
		for i, item := range report.Items {
			assert.Equal(t, i+1, item.Position)
			assert.Equal(t, PrintOutcomePrinted, item.Outcome)
		}

		assert.Equal(t, 1, host.peakActive())
		assert.Zero(t, host.activeCount())
		assert.Equal(t, domain.PrintStateIdle, o.State())
	})

	t.Run("empty queue", func(t *testing.T) {
		host := newFakeHost(nil)
		report := newTestOrchestrator(t, host).Run(ctx, nil, nil)

		assert.Zero(t, report.Total)
		assert.Empty(t, report.Items)
		assert.Zero(t, host.openCount())
	})

	t.Run("blocked surface is reported and the queue continues", func(t *testing.T) {
		host := newFakeHost(func(n int, _ *fakeSurface) error {
			if n == 2 {
				return errHostRefused
			}
			return nil
		})
		o := newTestOrchestrator(t, host)

		report := o.Run(ctx, domain.NewPrintQueue(testDocs("A", "B", "C")), nil)

		assert.Equal(t, 2, report.Printed)
		assert.Equal(t, 1, report.Failed)
		assert.Equal(t, PrintOutcomeFailed, report.Items[1].Outcome)
		assert.Contains(t, report.Items[1].Error, `Display surface for "B" could not be opened`)
		assert.Contains(t, report.Items[1].Error, "popup blocked")
		assert.Equal(t, []string{"A", "C"}, host.printedLabels())
	})

	t.Run("missing completion times out after the grace period", func(t *testing.T) {
		host := newFakeHost(func(n int, s *fakeSurface) error {
			s.autoComplete = n != 1
			return nil
		})
		o := newTestOrchestrator(t, host, WithGracePeriod(30*time.Millisecond))

		report := o.Run(ctx, domain.NewPrintQueue(testDocs("A", "B")), nil)

		assert.Equal(t, PrintOutcomeTimedOut, report.Items[0].Outcome)
		assert.Equal(t, PrintOutcomePrinted, report.Items[1].Outcome)
		assert.Equal(t, 1, report.TimedOut)
		assert.True(t, host.surface(0).isClosed())
		assert.Equal(t, 1, host.peakActive())
	})

	t.Run("error raised after the print trigger fails the entry", func(t *testing.T) {
		host := newFakeHost(func(n int, s *fakeSurface) error {
			if n == 1 {
				s.completeErr = errors.New("printer offline")
			}
			return nil
		})
		report := newTestOrchestrator(t, host).Run(ctx, domain.NewPrintQueue(testDocs("A", "B")), nil)

		assert.Equal(t, PrintOutcomeFailed, report.Items[0].Outcome)
		assert.Equal(t, "printer offline", report.Items[0].Error)
		assert.Equal(t, PrintOutcomePrinted, report.Items[1].Outcome)
		assert.True(t, host.surface(0).isClosed())
	})

	t.Run("write failure closes the surface", func(t *testing.T) {
		host := newFakeHost(func(_ int, s *fakeSurface) error {
			s.writeErr = errors.New("document content is empty")
			return nil
		})
		report := newTestOrchestrator(t, host).Run(ctx, domain.NewPrintQueue(testDocs("A")), nil)

		assert.Equal(t, 1, report.Failed)
		assert.True(t, host.surface(0).isClosed())
		assert.Empty(t, host.printedLabels())
	})

	t.Run("print trigger failure closes the surface", func(t *testing.T) {
		host := newFakeHost(func(_ int, s *fakeSurface) error {
			s.printErr = errors.New("print dialog unavailable")
			return nil
		})
		report := newTestOrchestrator(t, host).Run(ctx, domain.NewPrintQueue(testDocs("A")), nil)

		assert.Equal(t, PrintOutcomeFailed, report.Items[0].Outcome)
		assert.Equal(t, "print dialog unavailable", report.Items[0].Error)
		assert.Zero(t, host.activeCount())
	})

	t.Run("waits between entries", func(t *testing.T) {
		host := newFakeHost(nil)
		o := newTestOrchestrator(t, host, WithInterItemDelay(25*time.Millisecond))

		begin := time.Now()
		report := o.Run(ctx, domain.NewPrintQueue(testDocs("A", "B", "C")), nil)

		assert.Equal(t, 3, report.Printed)
		assert.GreaterOrEqual(t, time.Since(begin), 50*time.Millisecond)
	})

	t.Run("cancelled before start skips everything", func(t *testing.T) {
		host := newFakeHost(nil)
		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		report := newTestOrchestrator(t, host).Run(cancelled, domain.NewPrintQueue(testDocs("A", "B")), nil)

		assert.True(t, report.Cancelled)
		assert.Equal(t, 2, report.Skipped)
		assert.Zero(t, host.openCount())
	})

	t.Run("cancel while awaiting completion detaches the open surface", func(t *testing.T) {
		host := newFakeHost(func(n int, s *fakeSurface) error {
			s.autoComplete = n != 1
			return nil
		})
		o := newTestOrchestrator(t, host, WithGracePeriod(5*time.Second))
		runCtx, cancel := context.WithCancel(ctx)
		defer cancel()

		reports := make(chan *PrintReport, 1)
		go func() {
			reports <- o.Run(runCtx, domain.NewPrintQueue(testDocs("A", "B", "C")), nil)
		}()

		require.Eventually(t, func() bool {
			return o.State() == domain.PrintStateAwaitingCompletion
		}, time.Second, time.Millisecond)
		cancel()

		var report *PrintReport
		select {
		case report = <-reports:
		case <-time.After(time.Second):
			t.Fatal("run did not stop after cancellation")
		}

		assert.True(t, report.Cancelled)
		assert.Equal(t, PrintOutcomeDetached, report.Items[0].Outcome)
		assert.Equal(t, 1, report.Detached)
		assert.Equal(t, 2, report.Skipped)
		assert.Equal(t, 1, host.openCount())

		surface := host.surface(0)
		assert.False(t, surface.isClosed())
		surface.complete(nil)
		o.Wait()
		assert.True(t, surface.isClosed())
		assert.Equal(t, domain.PrintStateIdle, o.State())
	})

	t.Run("concurrent runs never show two surfaces", func(t *testing.T) {
		host := newFakeHost(nil)
		o := newTestOrchestrator(t, host)

		var wg sync.WaitGroup
		for i := 0; i < 3; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				o.Run(ctx, domain.NewPrintQueue(testDocs("A", "B", "C")), nil)
			}()
		}
		wg.Wait()

		assert.Len(t, host.printedLabels(), 9)
		assert.Equal(t, 1, host.peakActive())
	})
}

func TestPrintOrchestrator_PrintOne(t *testing.T) {
	ctx := context.Background()

	t.Run("prints the document", func(t *testing.T) {
		host := newFakeHost(nil)
		res, err := newTestOrchestrator(t, host).PrintOne(ctx, testDoc("INV-1"))

		require.NoError(t, err)
		assert.Equal(t, PrintOutcomePrinted, res.Outcome)
		assert.Equal(t, "INV-1", res.Label)
		assert.Equal(t, []string{"INV-1"}, host.printedLabels())
	})

	t.Run("nil document", func(t *testing.T) {
		res, err := newTestOrchestrator(t, newFakeHost(nil)).PrintOne(ctx, nil)

		assert.ErrorIs(t, err, shared.ErrInvalidInput)
		assert.Equal(t, PrintOutcomeFailed, res.Outcome)
	})

	t.Run("blocked surface", func(t *testing.T) {
		host := newFakeHost(func(int, *fakeSurface) error { return errHostRefused })
		res, err := newTestOrchestrator(t, host).PrintOne(ctx, testDoc("INV-1"))

		assert.ErrorIs(t, err, domain.ErrSurfaceBlocked)
		assert.ErrorIs(t, err, errHostRefused)
		assert.Equal(t, PrintOutcomeFailed, res.Outcome)
	})
}

func TestPrintReport_Add(t *testing.T) {
	r := &PrintReport{}
	for _, o := range []PrintOutcome{
		PrintOutcomePrinted, PrintOutcomePrinted, PrintOutcomeTimedOut,
		PrintOutcomeFailed, PrintOutcomeSkipped, PrintOutcomeDetached,
	} {
		r.add(PrintItemResult{Outcome: o})
	}

	assert.Equal(t, 2, r.Printed)
	assert.Equal(t, 1, r.TimedOut)
	assert.Equal(t, 1, r.Failed)
	assert.Equal(t, 1, r.Skipped)
	assert.Equal(t, 1, r.Detached)
	assert.Len(t, r.Items, 6)
}
