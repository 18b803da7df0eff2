// Package integration exercises the back-office API end to end: the real
// backend client, renderer, packager and middleware chain, with only the
// data backend and the display surfaces replaced.
package integration

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	invoicingapp "github.com/govtravel/backoffice/internal/application/invoicing"
	"github.com/govtravel/backoffice/internal/domain/invoicing"
	"github.com/govtravel/backoffice/internal/infrastructure/backend"
	"github.com/govtravel/backoffice/internal/infrastructure/config"
	"github.com/govtravel/backoffice/internal/infrastructure/logger"
	"github.com/govtravel/backoffice/internal/infrastructure/printing"
	"github.com/govtravel/backoffice/internal/interfaces/http/handler"
	"github.com/govtravel/backoffice/internal/interfaces/http/middleware"
	"github.com/govtravel/backoffice/internal/interfaces/http/router"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const (
	apiBase       = "/api/v1"
	documentsPath = apiBase + "/invoice-documents"
	allowedOrigin = "https://backoffice.example.go.th"
)

// =============================================================================
// Fake data backend
// =============================================================================

type backendRequest struct {
	Scope        string   `json:"scope"`
	InvoiceID    string   `json:"invoiceId"`
	PassengerIDs []string `json:"passengerIds"`
}

// fakeBackend serves invoice source data for INV-2024-001. Passenger ids
// listed in missing are answered with an error payload.
type fakeBackend struct {
	server       *httptest.Server
	customerName string
	missing      map[string]bool

	mu         sync.Mutex
	requestIDs []string
	calls      int
}

func newFakeBackend(t *testing.T, missing ...string) *fakeBackend {
	t.Helper()
	b := &fakeBackend{
		customerName: "Ministry of Tourism and Sports",
		missing:      make(map[string]bool),
	}
	for _, id := range missing {
		b.missing[id] = true
	}
	b.server = httptest.NewServer(http.HandlerFunc(b.serve))
	t.Cleanup(b.server.Close)
	return b
}

func (b *fakeBackend) serve(w http.ResponseWriter, r *http.Request) {
	var req backendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	b.mu.Lock()
	b.calls++
	b.requestIDs = append(b.requestIDs, r.Header.Get("X-Request-ID"))
	b.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	passengerID := ""
	if len(req.PassengerIDs) > 0 {
		passengerID = req.PassengerIDs[0]
		if b.missing[passengerID] {
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "passenger " + passengerID + " not found"})
			return
		}
	}

	switch r.URL.Path {
	case "/api/invoices/source":
		_ = json.NewEncoder(w).Encode(b.sourceData(req, passengerID))
	case "/api/invoices/rendered":
		label := "IV2024-0001"
		if passengerID != "" {
			label = "IV2024-0001-" + passengerID
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"content":       "<!DOCTYPE html><html><head><style>p{margin:0}</style></head><body><p>" + label + "</p></body></html>",
			"documentLabel": label,
			"metadata":      map[string]any{"amountTotal": "1070.00", "scopeType": req.Scope},
		})
	default:
		http.NotFound(w, r)
	}
}

func (b *fakeBackend) sourceData(req backendRequest, passengerID string) map[string]any {
	data := map[string]any{
		"invoiceId":     req.InvoiceID,
		"invoiceNumber": "IV2024-0001",
		"scope":         req.Scope,
		"issueDate":     "2024-03-07T00:00:00Z",
		"issuer":        map[string]any{"name": "Government Travel Agency", "taxId": "0105550000001"},
		"customer":      map[string]any{"name": b.customerName, "nameTh": "กระทรวงการท่องเที่ยวและกีฬา"},
		"lineItems": []map[string]any{
			{"description": "Air ticket BKK-CNX", "quantity": "1", "unitPrice": "1000.00", "amount": "1000.00"},
		},
		"totals":   map[string]any{"subtotal": "1000.00", "vatRate": "7", "vat": "70.00", "grandTotal": "1070.00"},
		"currency": "THB",
	}
	if passengerID != "" {
		data["passengers"] = []map[string]any{{
			"id":            passengerID,
			"firstName":     "Somchai",
			"lastName":      "Jaidee",
			"invoiceNumber": "IV2024-0001-" + passengerID,
		}}
	}
	return data
}

func (b *fakeBackend) seenRequestIDs() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.requestIDs...)
}

// =============================================================================
// Fake display surfaces
// =============================================================================

type recordingSurface struct {
	host  *recordingHost
	label string
	done  chan struct{}
	once  sync.Once
}

func (s *recordingSurface) Write(_ context.Context, doc *invoicing.RenderedDocument) error {
	s.label = doc.DocumentLabel
	return nil
}

func (s *recordingSurface) Print(context.Context) error {
	s.host.record(s.label)
	s.once.Do(func() { close(s.done) })
	return nil
}

func (s *recordingSurface) Done() <-chan struct{} { return s.done }
func (s *recordingSurface) Err() error            { return nil }
func (s *recordingSurface) Close() error          { return nil }

// recordingHost completes every print immediately and records the labels
type recordingHost struct {
	mu      sync.Mutex
	printed []string
}

func (h *recordingHost) Open(context.Context) (invoicing.Surface, error) {
	return &recordingSurface{host: h, done: make(chan struct{})}, nil
}

func (h *recordingHost) record(label string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.printed = append(h.printed, label)
}

func (h *recordingHost) printedLabels() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.printed...)
}

// =============================================================================
// Test server
// =============================================================================

type serverOptions struct {
	maxBodySize int64
	rateLimit   float64
	rateBurst   int
}

// testServer wires the API the way cmd/server does
type testServer struct {
	Engine  *gin.Engine
	Backend *fakeBackend
	Host    *recordingHost
}

func newTestServer(t *testing.T, be *fakeBackend, opts serverOptions) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	middleware.SetupValidator()
	log := zaptest.NewLogger(t)

	if opts.maxBodySize == 0 {
		opts.maxBodySize = 1 << 20
	}

	client, err := backend.NewClient(&config.BackendConfig{
		BaseURL: be.server.URL + "/api",
		Timeout: 5 * time.Second,
	}, backend.WithLogger(log))
	require.NoError(t, err)

	renderer := printing.NewInvoiceRenderer(printing.WithRendererLogger(log))
	host := &recordingHost{}

	generator := invoicingapp.NewBatchGenerator(invoicingapp.WithDispatchInterval(0), invoicingapp.WithBatchLogger(log))
	rendering := invoicingapp.NewRenderingSource(client, renderer)
	prerendered := invoicingapp.NewPrerenderedSource(client)
	packager := invoicingapp.NewPackager(invoicingapp.WithPackagerLogger(log))
	orchestrator := invoicingapp.NewPrintOrchestrator(host,
		invoicingapp.WithInterItemDelay(0),
		invoicingapp.WithGracePeriod(time.Second),
		invoicingapp.WithOrchestratorLogger(log))
	runs := invoicingapp.NewPrintRunRegistry(time.Hour, log)
	previews := invoicingapp.NewPreviewCoordinator(generator, rendering, orchestrator, invoicingapp.WithPreviewLogger(log))
	service := invoicingapp.NewDocumentService(generator, rendering, prerendered, packager, orchestrator, runs, previews, log,
		invoicingapp.WithComposer(renderer))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = service.Shutdown(ctx)
	})

	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowOrigins = []string{allowedOrigin}

	engine := gin.New()
	engine.Use(
		logger.Recovery(log),
		middleware.RequestID(),
		logger.GinMiddleware(log),
		middleware.CORSWithConfig(corsConfig),
		middleware.Secure(),
		middleware.BodyLimit(opts.maxBodySize),
	)

	var documentMiddleware []gin.HandlerFunc
	if opts.rateLimit > 0 {
		documentMiddleware = append(documentMiddleware,
			middleware.RateLimit(middleware.NewRateLimiter(opts.rateLimit, opts.rateBurst)))
	}

	systemHandler := handler.NewSystemHandler("travel-backoffice", "test", orchestrator)
	documentHandler := handler.NewInvoiceDocumentHandler(service, printing.NewPreviewPage(invoicing.PaperSizeA4), log)
	engine.GET("/health", systemHandler.Health)
	router.NewRouter(engine).
		Register(handler.InvoiceDocumentRoutes(documentHandler, documentMiddleware...)).
		Register(handler.SystemRoutes(systemHandler)).
		Setup()

	return &testServer{Engine: engine, Backend: be, Host: host}
}

func documentRequest(scope string, passengerIDs ...string) map[string]any {
	req := map[string]any{"scope": scope, "invoice_id": "INV-2024-001"}
	if len(passengerIDs) > 0 {
		req["passenger_ids"] = passengerIDs
	}
	return req
}

func hasPrefix(labels []string, prefix string) bool {
	for _, l := range labels {
		if !strings.HasPrefix(l, prefix) {
			return false
		}
	}
	return len(labels) > 0
}
