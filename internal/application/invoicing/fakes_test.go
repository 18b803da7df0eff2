package invoicing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	domain "github.com/govtravel/backoffice/internal/domain/invoicing"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Display surface fakes
// =============================================================================

type fakeSurface struct {
	host *fakeHost

	mu           sync.Mutex
	label        string
	writeErr     error
	printErr     error
	autoComplete bool
	completeErr  error
	err          error
	printed      bool
	closed       bool

	done     chan struct{}
	doneOnce sync.Once
}

func (s *fakeSurface) Write(_ context.Context, doc *domain.RenderedDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return s.writeErr
	}
	s.label = doc.DocumentLabel
	return nil
}

func (s *fakeSurface) Print(_ context.Context) error {
	s.mu.Lock()
	if s.printErr != nil {
		s.mu.Unlock()
		return s.printErr
	}
	s.printed = true
	label, auto, completeErr := s.label, s.autoComplete, s.completeErr
	s.mu.Unlock()

	s.host.recordPrint(label)
	if auto {
		s.complete(completeErr)
	}
	return nil
}

// complete simulates the host reporting the end of printing
func (s *fakeSurface) complete(err error) {
	s.doneOnce.Do(func() {
		s.mu.Lock()
		s.err = err
		s.mu.Unlock()
		close(s.done)
	})
}

func (s *fakeSurface) Done() <-chan struct{} {
	return s.done
}

func (s *fakeSurface) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *fakeSurface) Close() error {
	s.mu.Lock()
	already := s.closed
	s.closed = true
	s.mu.Unlock()
	if !already {
		s.host.surfaceClosed()
	}
	return nil
}

func (s *fakeSurface) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// fakeHost opens fakeSurfaces and tracks how many are open at once.
// configure runs for every Open with the 1-based open count; returning an
// error makes that Open fail as a blocked surface.
type fakeHost struct {
	configure func(n int, s *fakeSurface) error

	mu        sync.Mutex
	opened    int
	active    int
	maxActive int
	printed   []string
	surfaces  []*fakeSurface
}

func newFakeHost(configure func(n int, s *fakeSurface) error) *fakeHost {
	return &fakeHost{configure: configure}
}

func (h *fakeHost) Open(_ context.Context) (domain.Surface, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.opened++
	s := &fakeSurface{host: h, autoComplete: true, done: make(chan struct{})}
	if h.configure != nil {
		if err := h.configure(h.opened, s); err != nil {
			return nil, err
		}
	}
	h.active++
	if h.active > h.maxActive {
		h.maxActive = h.active
	}
	h.surfaces = append(h.surfaces, s)
	return s, nil
}

func (h *fakeHost) recordPrint(label string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.printed = append(h.printed, label)
}

func (h *fakeHost) surfaceClosed() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.active--
}

func (h *fakeHost) printedLabels() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.printed...)
}

func (h *fakeHost) openCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.opened
}

func (h *fakeHost) activeCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.active
}

func (h *fakeHost) peakActive() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.maxActive
}

func (h *fakeHost) surface(i int) *fakeSurface {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.surfaces[i]
}

var errHostRefused = errors.New("popup blocked")

// =============================================================================
// Document fakes
// =============================================================================

func testDoc(label string) *domain.RenderedDocument {
	return &domain.RenderedDocument{
		Content:       "<html><body>" + label + "</body></html>",
		DocumentLabel: label,
		Metadata: domain.DocumentMetadata{
			AmountTotal: decimal.RequireFromString("1500.00"),
			ScopeType:   domain.ScopeIndividual,
		},
	}
}

func testDocs(labels ...string) []*domain.RenderedDocument {
	docs := make([]*domain.RenderedDocument, len(labels))
	for i, label := range labels {
		docs[i] = testDoc(label)
	}
	return docs
}

func individualRequests(t *testing.T, invoiceID string, passengerIDs ...string) []domain.InvoiceDocumentRequest {
	t.Helper()
	reqs, err := domain.ExpandRequests(domain.ScopeIndividual, invoiceID, passengerIDs)
	require.NoError(t, err)
	return reqs
}

// labelSource produces "<invoice>-<passenger>" documents and fails for the
// passenger ids in failing
func labelSource(failing ...string) SourceFunc {
	fail := make(map[string]bool, len(failing))
	for _, id := range failing {
		fail[id] = true
	}
	return func(_ context.Context, req domain.InvoiceDocumentRequest) (*domain.RenderedDocument, error) {
		ids := req.PassengerIDs()
		label := req.InvoiceID()
		if len(ids) > 0 {
			label += "-" + ids[0]
			if fail[ids[0]] {
				return nil, domain.NewSourceDataError(fmt.Sprintf("no data for passenger %s", ids[0]), nil)
			}
		}
		return testDoc(label), nil
	}
}

// countingSource wraps a source and counts calls
type countingSource struct {
	inner DocumentSource
	mu    sync.Mutex
	calls int
}

func (s *countingSource) Produce(ctx context.Context, req domain.InvoiceDocumentRequest) (*domain.RenderedDocument, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return s.inner.Produce(ctx, req)
}

func (s *countingSource) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// =============================================================================
// Clock
// =============================================================================

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(t time.Time) *fakeClock {
	return &fakeClock{now: t}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
