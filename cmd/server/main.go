package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	invoicingapp "github.com/govtravel/backoffice/internal/application/invoicing"
	"github.com/govtravel/backoffice/internal/domain/invoicing"
	"github.com/govtravel/backoffice/internal/infrastructure/backend"
	"github.com/govtravel/backoffice/internal/infrastructure/config"
	"github.com/govtravel/backoffice/internal/infrastructure/logger"
	"github.com/govtravel/backoffice/internal/infrastructure/printing"
	"github.com/govtravel/backoffice/internal/infrastructure/storage"
	"github.com/govtravel/backoffice/internal/infrastructure/telemetry"
	"github.com/govtravel/backoffice/internal/interfaces/http/handler"
	"github.com/govtravel/backoffice/internal/interfaces/http/middleware"
	"github.com/govtravel/backoffice/internal/interfaces/http/router"
	"go.uber.org/zap"
)

//	@title			Invoice Documents API
//	@version		1.0
//	@description	Back-office API for downloading, printing and previewing travel invoice documents

//	@BasePath	/api/v1

// version is overridden at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: logger.DefaultTimeFormat,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting invoice document service",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	// Root context for background loops, cancelled on shutdown
	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Telemetry
	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.ExportInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    version,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize metrics", zap.Error(err))
	}
	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.TracingConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    version,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracing", zap.Error(err))
	}
	logsProvider, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.Enabled && cfg.Telemetry.LogsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    version,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize log export", zap.Error(err))
	}
	log = logsProvider.Bridge(log, logger.ParseLevel(cfg.Log.Level))

	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:         cfg.Telemetry.ProfilingEnabled,
		ServerAddress:   cfg.Telemetry.ProfilerAddress,
		ApplicationName: cfg.Telemetry.ServiceName,
		ProfileTypes:    cfg.Telemetry.ProfileTypes,
	}, log)
	if err != nil {
		log.Fatal("Failed to start profiler", zap.Error(err))
	}
	if profiler.IsEnabled() {
		tracerProvider.EnableSpanProfiles()
	}

	documentMetrics, err := telemetry.NewDocumentMetrics(telemetry.DocumentMetricsConfig{
		Meter:  meterProvider.Meter("backoffice/invoice-documents"),
		Logger: log,
	})
	if err != nil {
		log.Fatal("Failed to initialize document metrics", zap.Error(err))
	}

	// Source data backend
	backendClient, err := backend.NewClient(&cfg.Backend, backend.WithLogger(log))
	if err != nil {
		log.Fatal("Failed to create backend client", zap.Error(err))
	}

	paperSize := invoicing.PaperSize(cfg.Print.PaperSize)
	renderer := printing.NewInvoiceRenderer(
		printing.WithPaperSize(paperSize),
		printing.WithRendererLogger(log),
	)

	// Object storage, print sink and display surface host
	var bucket *storage.Bucket
	if cfg.Storage.Enabled {
		bucket, err = storage.NewBucket(&cfg.Storage,
			storage.WithLogger(log),
			storage.WithPresignExpiration(cfg.Storage.PresignExpiration))
		if err != nil {
			log.Fatal("Failed to create storage bucket client", zap.Error(err))
		}
		ensureCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		err = bucket.EnsureBucket(ensureCtx)
		cancel()
		if err != nil {
			log.Fatal("Failed to prepare storage bucket", zap.Error(err), zap.String("bucket", bucket.Name()))
		}
	}

	sink, err := newPrintSink(ctx, cfg, bucket, log)
	if err != nil {
		log.Fatal("Failed to create print sink", zap.Error(err), zap.String("sink", cfg.Print.Sink))
	}

	surfaceHost, err := printing.NewChromeSurfaceHost(&printing.ChromeConfig{
		RemoteURL:   cfg.Chrome.RemoteURL,
		NoSandbox:   cfg.Chrome.NoSandbox,
		OpenTimeout: cfg.Chrome.OpenTimeout,
		PaperSize:   paperSize,
		Logger:      log,
	}, sink)
	if err != nil {
		log.Fatal("Failed to create surface host", zap.Error(err))
	}
	defer func() {
		if err := surfaceHost.Close(); err != nil {
			log.Error("Error closing surface host", zap.Error(err))
		}
	}()

	// Application components
	generator := invoicingapp.NewBatchGenerator(
		invoicingapp.WithDispatchInterval(cfg.Batch.DispatchInterval),
		invoicingapp.WithBatchLogger(log),
		invoicingapp.WithBatchMetrics(documentMetrics),
	)
	renderingSource := invoicingapp.NewRenderingSource(backendClient, renderer)
	prerenderedSource := invoicingapp.NewPrerenderedSource(backendClient)
	packager := invoicingapp.NewPackager(
		invoicingapp.WithPackagerLogger(log),
		invoicingapp.WithPackagerMetrics(documentMetrics),
	)
	orchestrator := invoicingapp.NewPrintOrchestrator(surfaceHost,
		invoicingapp.WithGracePeriod(cfg.Print.GracePeriod),
		invoicingapp.WithInterItemDelay(cfg.Print.InterItemDelay),
		invoicingapp.WithOrchestratorLogger(log),
		invoicingapp.WithOrchestratorMetrics(documentMetrics),
	)
	runs := invoicingapp.NewPrintRunRegistry(cfg.Print.RunRetention, log)
	previews := invoicingapp.NewPreviewCoordinator(generator, renderingSource, orchestrator,
		invoicingapp.WithSessionTTL(cfg.Preview.SessionTTL),
		invoicingapp.WithDefaultZoom(cfg.Preview.DefaultZoom),
		invoicingapp.WithPreviewLogger(log),
		invoicingapp.WithPreviewMetrics(documentMetrics),
	)

	serviceOpts := []invoicingapp.ServiceOption{
		invoicingapp.WithComposer(renderer),
		invoicingapp.WithMaxRequests(cfg.Batch.MaxRequests),
	}
	if bucket != nil {
		serviceOpts = append(serviceOpts, invoicingapp.WithArtifactStore(
			storage.NewS3ArtifactStore(bucket, cfg.Storage.ArtifactPrefix, log)))
	}
	documentService := invoicingapp.NewDocumentService(
		generator, renderingSource, prerenderedSource, packager,
		orchestrator, runs, previews, log, serviceOpts...,
	)

	go previews.RunSweeper(ctx, time.Minute)

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		log.Fatal("Invalid trusted proxies", zap.Error(err))
	}

	corsConfig := middleware.DefaultCORSConfig()
	if len(cfg.HTTP.AllowOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.HTTP.AllowOrigins
	}
	securityConfig := middleware.DefaultSecurityConfig()
	securityConfig.HSTSEnabled = cfg.App.Env == "production"

	engine.Use(
		logger.Recovery(log),
		middleware.RequestID(),
		logger.GinMiddleware(log),
		middleware.Tracing(cfg.Telemetry.ServiceName),
		middleware.SpanEnricher(),
		middleware.HTTPMetrics(meterProvider, log),
		middleware.ProfilingWithConfig(middleware.ProfilingConfig{
			Enabled:   profiler.IsEnabled(),
			SkipPaths: middleware.DefaultProfilingConfig().SkipPaths,
		}),
		middleware.CORSWithConfig(corsConfig),
		middleware.SecureWithConfig(securityConfig),
		middleware.BodyLimit(cfg.HTTP.MaxBodySize),
	)

	var documentMiddleware []gin.HandlerFunc
	if cfg.HTTP.RateLimit > 0 {
		limiter := middleware.NewRateLimiter(cfg.HTTP.RateLimit, cfg.HTTP.RateBurst)
		documentMiddleware = append(documentMiddleware, middleware.RateLimit(limiter))
		log.Info("Rate limiting enabled",
			zap.Float64("per_second", cfg.HTTP.RateLimit),
			zap.Int("burst", cfg.HTTP.RateBurst))
	}

	systemHandler := handler.NewSystemHandler(cfg.App.Name, version, orchestrator)
	documentHandler := handler.NewInvoiceDocumentHandler(documentService, printing.NewPreviewPage(paperSize), log)

	engine.GET("/health", systemHandler.Health)

	router.NewRouter(engine).
		Register(handler.InvoiceDocumentRoutes(documentHandler, documentMiddleware...)).
		Register(handler.SystemRoutes(systemHandler)).
		Setup()

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := documentService.Shutdown(shutdownCtx); err != nil {
		log.Warn("Document work did not finish before shutdown", zap.Error(err))
	}
	stop()

	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		log.Warn("Error shutting down tracer provider", zap.Error(err))
	}
	if err := meterProvider.Shutdown(shutdownCtx); err != nil {
		log.Warn("Error shutting down meter provider", zap.Error(err))
	}
	if err := profiler.Stop(); err != nil {
		log.Warn("Error stopping profiler", zap.Error(err))
	}

	log.Info("Server exited gracefully")
	if err := logsProvider.Shutdown(shutdownCtx); err != nil {
		log.Warn("Error shutting down logger provider", zap.Error(err))
	}
}

// newPrintSink selects where printed PDFs go. The spool sink also starts its
// retention loop.
func newPrintSink(ctx context.Context, cfg *config.Config, bucket *storage.Bucket, log *zap.Logger) (invoicing.PrintSink, error) {
	if cfg.Print.Sink == "s3" {
		if bucket == nil {
			return nil, errors.New("s3 print sink requires object storage")
		}
		return storage.NewS3PrintSink(bucket, cfg.Storage.PrintSpoolPrefix, log), nil
	}

	spool, err := printing.NewSpoolDirectorySink(&printing.SpoolConfig{
		Dir:           cfg.Spool.Dir,
		RetentionDays: cfg.Spool.RetentionDays,
		Logger:        log,
	})
	if err != nil {
		return nil, err
	}
	go spool.RunRetention(ctx)
	return spool, nil
}
