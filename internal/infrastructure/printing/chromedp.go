package printing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/govtravel/backoffice/internal/domain/invoicing"
	"github.com/govtravel/backoffice/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

const (
	defaultOpenTimeout   = 15 * time.Second
	defaultActionTimeout = 30 * time.Second
	defaultScale         = 1.0
)

// ChromeConfig contains configuration for the chromedp surface host
type ChromeConfig struct {
	// RemoteURL is the DevTools websocket of a running Chrome/Chromium (optional)
	// If empty, chromedp launches a new browser instance
	RemoteURL string
	// NoSandbox runs Chrome without sandbox (required for Docker/root)
	NoSandbox bool
	// OpenTimeout bounds tab creation; a tab that cannot be created in time
	// counts as a blocked surface
	OpenTimeout time.Duration
	// ActionTimeout bounds writing content and printing one surface
	ActionTimeout time.Duration
	PaperSize     invoicing.PaperSize
	Orientation   invoicing.Orientation
	Margins       invoicing.Margins
	Scale         float64
	Logger        *zap.Logger
}

// ChromeSurfaceHost opens one browser tab per display surface and hands the
// printed PDF to a print sink
type ChromeSurfaceHost struct {
	config *ChromeConfig
	logger *zap.Logger
	sink   invoicing.PrintSink

	mu            sync.Mutex
	allocCtx      context.Context
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	started       bool
}

// NewChromeSurfaceHost creates a surface host. The browser starts on the
// first Open.
func NewChromeSurfaceHost(config *ChromeConfig, sink invoicing.PrintSink) (*ChromeSurfaceHost, error) {
	if sink == nil {
		return nil, NewRenderError(ErrCodeRenderFailed, "print sink is required", nil)
	}
	if config == nil {
		config = &ChromeConfig{}
	}

	if config.OpenTimeout == 0 {
		config.OpenTimeout = defaultOpenTimeout
	}
	if config.ActionTimeout == 0 {
		config.ActionTimeout = defaultActionTimeout
	}
	if config.Scale == 0 {
		config.Scale = defaultScale
	}
	if config.PaperSize == "" {
		config.PaperSize = invoicing.PaperSizeA4
	}
	if !config.PaperSize.IsValid() {
		return nil, NewRenderError(ErrCodeInvalidPaperSize,
			fmt.Sprintf("unsupported paper size %q", config.PaperSize), nil)
	}
	if !config.Orientation.IsValid() {
		config.Orientation = invoicing.OrientationPortrait
	}
	if config.Margins == (invoicing.Margins{}) {
		config.Margins = invoicing.DefaultMargins()
	}

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	h := &ChromeSurfaceHost{
		config: config,
		logger: logger,
		sink:   sink,
	}
	h.initAllocator()
	return h, nil
}

// initAllocator initializes the Chrome allocator and the parent browser context
func (h *ChromeSurfaceHost) initAllocator() {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-dev-shm-usage", true), // Important for Docker
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("disable-translate", true),
		// Thai glyphs shift with hinting enabled
		chromedp.Flag("font-render-hinting", "none"),
	)

	if h.config.NoSandbox {
		opts = append(opts, chromedp.Flag("no-sandbox", true))
	}

	if h.config.RemoteURL != "" {
		h.allocCtx, h.allocCancel = chromedp.NewRemoteAllocator(context.Background(), h.config.RemoteURL)
	} else {
		h.allocCtx, h.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	}

	h.browserCtx, h.browserCancel = chromedp.NewContext(h.allocCtx,
		chromedp.WithLogf(func(format string, args ...interface{}) {
			h.logger.Debug(fmt.Sprintf(format, args...))
		}),
	)
}

// startBrowser launches (or connects to) the browser once
func (h *ChromeSurfaceHost) startBrowser() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.started {
		return nil
	}
	if h.browserCtx == nil {
		return NewRenderError(ErrCodeRenderFailed, "surface host is closed", nil)
	}
	if err := chromedp.Run(h.browserCtx); err != nil {
		return NewRenderError(ErrCodeRenderFailed, "failed to start browser", err)
	}
	h.started = true
	return nil
}

// Open creates a new tab. A tab that cannot be created within OpenTimeout
// is reported as an error so the caller can skip the document.
func (h *ChromeSurfaceHost) Open(ctx context.Context) (invoicing.Surface, error) {
	if err := h.startBrowser(); err != nil {
		return nil, err
	}

	tabCtx, tabCancel := chromedp.NewContext(h.browserCtx)

	// The first Run allocates the tab; it must not run on a context that is
	// cancelled afterwards or the tab would close with it.
	opened := make(chan error, 1)
	go func() {
		opened <- chromedp.Run(tabCtx, chromedp.Navigate("about:blank"))
	}()

	timer := time.NewTimer(h.config.OpenTimeout)
	defer timer.Stop()

	select {
	case err := <-opened:
		if err != nil {
			tabCancel()
			return nil, NewRenderError(ErrCodeRenderFailed, "failed to open browser tab", err)
		}
	case <-timer.C:
		tabCancel()
		return nil, NewRenderError(ErrCodeRenderTimeout,
			fmt.Sprintf("browser tab not ready after %v", h.config.OpenTimeout), nil)
	case <-ctx.Done():
		tabCancel()
		return nil, NewRenderError(ErrCodeRenderTimeout, "opening browser tab was cancelled", ctx.Err())
	}

	return newChromeSurface(h, tabCtx, tabCancel), nil
}

// Close shuts the browser down
func (h *ChromeSurfaceHost) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.browserCancel != nil {
		h.browserCancel()
		h.browserCancel = nil
		h.browserCtx = nil
	}
	if h.allocCancel != nil {
		h.allocCancel()
		h.allocCancel = nil
	}
	return nil
}

// =============================================================================
// Surface
// =============================================================================

// chromeSurface is one browser tab holding one document
type chromeSurface struct {
	host   *ChromeSurfaceHost
	ctx    context.Context
	cancel context.CancelFunc

	done      chan struct{}
	doneOnce  sync.Once
	closeOnce sync.Once

	mu      sync.Mutex
	label   string
	printed bool
	err     error
}

func newChromeSurface(host *ChromeSurfaceHost, ctx context.Context, cancel context.CancelFunc) *chromeSurface {
	return &chromeSurface{
		host:   host,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// Write replaces the tab's document with the rendered content
func (s *chromeSurface) Write(ctx context.Context, doc *invoicing.RenderedDocument) error {
	if doc == nil || strings.TrimSpace(doc.Content) == "" {
		return NewRenderError(ErrCodeInvalidHTML, "document content is empty", nil)
	}

	actionCtx, cancel := context.WithTimeout(s.ctx, s.host.config.ActionTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(actionCtx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			frameTree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(frameTree.Frame.ID, doc.Content).Do(ctx)
		}),
	)
	if err != nil {
		return NewRenderError(ErrCodeRenderFailed, "failed to write document to surface", err)
	}

	s.mu.Lock()
	s.label = doc.DocumentLabel
	s.mu.Unlock()
	return nil
}

// Print triggers printing and returns. The PDF is produced and handed to the
// sink in the background; Done closes when that finishes.
func (s *chromeSurface) Print(ctx context.Context) error {
	s.mu.Lock()
	if s.printed {
		s.mu.Unlock()
		return NewRenderError(ErrCodeRenderFailed, "surface already printed", nil)
	}
	s.printed = true
	label := s.label
	s.mu.Unlock()

	select {
	case <-s.ctx.Done():
		return NewRenderError(ErrCodeRenderFailed, "surface is closed", s.ctx.Err())
	default:
	}

	go s.printInBackground(context.WithoutCancel(ctx), label)
	return nil
}

func (s *chromeSurface) printInBackground(ctx context.Context, label string) {
	defer s.finish()

	cfg := s.host.config
	params := buildPrintParams(cfg.PaperSize, cfg.Orientation, cfg.Margins, cfg.Scale)

	actionCtx, cancel := context.WithTimeout(s.ctx, cfg.ActionTimeout)
	defer cancel()

	var pdfData []byte
	var err error
	telemetry.WithProfilingLabels(actionCtx, telemetry.DocumentLabels(telemetry.OperationPrintPDF, ""), func(actionCtx context.Context) {
		err = chromedp.Run(actionCtx,
			chromedp.ActionFunc(func(ctx context.Context) error {
				data, _, err := page.PrintToPDF().
					WithPrintBackground(params.printBackground).
					WithPaperWidth(params.paperWidth).
					WithPaperHeight(params.paperHeight).
					WithMarginTop(params.marginTop).
					WithMarginRight(params.marginRight).
					WithMarginBottom(params.marginBottom).
					WithMarginLeft(params.marginLeft).
					WithScale(params.scale).
					WithLandscape(params.landscape).
					WithPreferCSSPageSize(true).
					Do(ctx)
				if err != nil {
					return err
				}
				pdfData = data
				return nil
			}),
		)
	})
	if err != nil {
		if errors.Is(actionCtx.Err(), context.DeadlineExceeded) {
			s.setErr(NewRenderError(ErrCodeRenderTimeout,
				fmt.Sprintf("printing timed out after %v", cfg.ActionTimeout), err))
			return
		}
		s.setErr(NewRenderError(ErrCodeRenderFailed, "chromedp print failed", err))
		return
	}
	if len(pdfData) == 0 {
		s.setErr(NewRenderError(ErrCodeRenderFailed, "generated PDF is empty", nil))
		return
	}

	out := &invoicing.PrintOutput{DocumentLabel: label, PDF: pdfData, PaperSize: cfg.PaperSize}
	if err := s.host.sink.Submit(ctx, out); err != nil {
		s.setErr(fmt.Errorf("failed to submit printed document: %w", err))
		return
	}

	s.host.logger.Info("document printed",
		zap.String("document_label", label),
		zap.Int("bytes", len(pdfData)))
}

func (s *chromeSurface) setErr(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
	s.host.logger.Warn("surface print failed", zap.Error(err))
}

func (s *chromeSurface) finish() {
	s.doneOnce.Do(func() { close(s.done) })
}

// Done is closed once the printed output has been handed off (or failed)
func (s *chromeSurface) Done() <-chan struct{} {
	return s.done
}

// Err returns the failure recorded after the print trigger, if any
func (s *chromeSurface) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close closes the browser tab. Safe to call more than once.
func (s *chromeSurface) Close() error {
	s.closeOnce.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
	})
	return nil
}

// =============================================================================
// Print parameters
// =============================================================================

// printParams holds the parameters for PDF printing
type printParams struct {
	paperWidth      float64
	paperHeight     float64
	marginTop       float64
	marginRight     float64
	marginBottom    float64
	marginLeft      float64
	scale           float64
	landscape       bool
	printBackground bool
}

// buildPrintParams converts paper settings to Chrome's inch based parameters
func buildPrintParams(size invoicing.PaperSize, orientation invoicing.Orientation, margins invoicing.Margins, scale float64) *printParams {
	if scale == 0 {
		scale = defaultScale
	}
	params := &printParams{
		scale:           scale,
		printBackground: true,
		landscape:       orientation == invoicing.OrientationLandscape,
	}

	width, height := size.Dimensions()
	params.paperWidth = mmToInches(float64(width))
	params.paperHeight = mmToInches(float64(height))

	params.marginTop = mmToInches(float64(margins.Top))
	params.marginRight = mmToInches(float64(margins.Right))
	params.marginBottom = mmToInches(float64(margins.Bottom))
	params.marginLeft = mmToInches(float64(margins.Left))

	return params
}

// mmToInches converts millimeters to inches
func mmToInches(mm float64) float64 {
	return mm / 25.4
}

var (
	_ invoicing.SurfaceHost = (*ChromeSurfaceHost)(nil)
	_ invoicing.Surface     = (*chromeSurface)(nil)
)
