package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultDispatchInterval spaces batch dispatches when nothing is configured
const DefaultDispatchInterval = 250 * time.Millisecond

// DefaultMaxRequests caps the documents a single action may produce
const DefaultMaxRequests = 200

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Log       LogConfig
	HTTP      HTTPConfig
	Backend   BackendConfig
	Batch     BatchConfig
	Print     PrintConfig
	Chrome    ChromeConfig
	Spool     SpoolConfig
	Storage   StorageConfig
	Preview   PreviewConfig
	Telemetry TelemetryConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	MaxHeaderBytes  int
	MaxBodySize     int64
	TrustedProxies  []string
	AllowOrigins    []string
	// RateLimit is the sustained requests per second allowed per client; 0 disables limiting
	RateLimit float64
	RateBurst int
}

// BackendConfig points at the data-providing backend
type BackendConfig struct {
	BaseURL string
	// Timeout bounds each source-data request
	Timeout time.Duration
	// AuthToken is forwarded as a bearer token when set
	AuthToken string
}

// BatchConfig controls batch generation pacing
type BatchConfig struct {
	// DispatchInterval is the delay between two dispatches; 0 disables pacing
	DispatchInterval time.Duration
	// MaxRequests caps the number of documents per action
	MaxRequests int
}

// PrintConfig controls the print-surface orchestrator
type PrintConfig struct {
	// GracePeriod is how long to wait for the completion signal after printing
	GracePeriod time.Duration
	// InterItemDelay spaces consecutive print requests
	InterItemDelay time.Duration
	PaperSize      string
	// Sink selects where printed output goes: spool or s3
	Sink string
	// RunRetention is how long finished print runs stay queryable
	RunRetention time.Duration
}

// ChromeConfig configures the headless browser that hosts display surfaces
type ChromeConfig struct {
	// RemoteURL is the DevTools websocket of an existing browser (optional)
	RemoteURL   string
	NoSandbox   bool
	OpenTimeout time.Duration
}

// SpoolConfig configures the spool-directory print sink
type SpoolConfig struct {
	Dir           string
	RetentionDays int
}

// StorageConfig holds S3-compatible object storage settings
type StorageConfig struct {
	Enabled           bool
	Endpoint          string
	Region            string
	Bucket            string
	AccessKey         string
	SecretKey         string
	UseSSL            bool
	UsePathStyle      bool
	PresignExpiration time.Duration
	ArtifactPrefix    string
	PrintSpoolPrefix  string
}

// PreviewConfig controls preview sessions
type PreviewConfig struct {
	SessionTTL  time.Duration
	DefaultZoom int
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool
	CollectorEndpoint string
	ServiceName       string
	Insecure          bool
	ExportInterval    time.Duration
	// SamplingRatio is the fraction of root traces kept, 0 to 1
	SamplingRatio float64
	// LogsEnabled also exports log records to the collector
	LogsEnabled bool
	// ProfilingEnabled ships continuous profiles to a Pyroscope server.
	// It does not depend on Enabled.
	ProfilingEnabled bool
	ProfilerAddress  string
	ProfileTypes     []string
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with BACKOFFICE_ prefix (e.g., BACKOFFICE_BACKEND_BASE_URL)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	// Zero is meaningful for these (no pacing, no sampling), so their
	// defaults live in viper instead of applyDefaults.
	v.SetDefault("batch.dispatch_interval", DefaultDispatchInterval)
	v.SetDefault("telemetry.sampling_ratio", 1.0)

	v.SetEnvPrefix("BACKOFFICE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:     v.GetDuration("http.read_timeout"),
			WriteTimeout:    v.GetDuration("http.write_timeout"),
			IdleTimeout:     v.GetDuration("http.idle_timeout"),
			ShutdownTimeout: v.GetDuration("http.shutdown_timeout"),
			MaxHeaderBytes:  v.GetInt("http.max_header_bytes"),
			MaxBodySize:     v.GetInt64("http.max_body_size"),
			TrustedProxies:  v.GetStringSlice("http.trusted_proxies"),
			AllowOrigins:    v.GetStringSlice("http.allow_origins"),
			RateLimit:       v.GetFloat64("http.rate_limit"),
			RateBurst:       v.GetInt("http.rate_burst"),
		},
		Backend: BackendConfig{
			BaseURL:   v.GetString("backend.base_url"),
			Timeout:   v.GetDuration("backend.timeout"),
			AuthToken: v.GetString("backend.auth_token"),
		},
		Batch: BatchConfig{
			DispatchInterval: v.GetDuration("batch.dispatch_interval"),
			MaxRequests:      v.GetInt("batch.max_requests"),
		},
		Print: PrintConfig{
			GracePeriod:    v.GetDuration("print.grace_period"),
			InterItemDelay: v.GetDuration("print.inter_item_delay"),
			PaperSize:      v.GetString("print.paper_size"),
			Sink:           v.GetString("print.sink"),
			RunRetention:   v.GetDuration("print.run_retention"),
		},
		Chrome: ChromeConfig{
			RemoteURL:   v.GetString("chrome.remote_url"),
			NoSandbox:   v.GetBool("chrome.no_sandbox"),
			OpenTimeout: v.GetDuration("chrome.open_timeout"),
		},
		Spool: SpoolConfig{
			Dir:           v.GetString("spool.dir"),
			RetentionDays: v.GetInt("spool.retention_days"),
		},
		Storage: StorageConfig{
			Enabled:           v.GetBool("storage.enabled"),
			Endpoint:          v.GetString("storage.endpoint"),
			Region:            v.GetString("storage.region"),
			Bucket:            v.GetString("storage.bucket"),
			AccessKey:         v.GetString("storage.access_key"),
			SecretKey:         v.GetString("storage.secret_key"),
			UseSSL:            v.GetBool("storage.use_ssl"),
			UsePathStyle:      v.GetBool("storage.use_path_style"),
			PresignExpiration: v.GetDuration("storage.presign_expiration"),
			ArtifactPrefix:    v.GetString("storage.artifact_prefix"),
			PrintSpoolPrefix:  v.GetString("storage.print_spool_prefix"),
		},
		Preview: PreviewConfig{
			SessionTTL:  v.GetDuration("preview.session_ttl"),
			DefaultZoom: v.GetInt("preview.default_zoom"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			ExportInterval:    v.GetDuration("telemetry.export_interval"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			LogsEnabled:       v.GetBool("telemetry.logs_enabled"),
			ProfilingEnabled:  v.GetBool("telemetry.profiling_enabled"),
			ProfilerAddress:   v.GetString("telemetry.profiler_address"),
			ProfileTypes:      v.GetStringSlice("telemetry.profile_types"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "travel-backoffice"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	// Downloads of large archives take longer than ordinary API calls
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 120 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.ShutdownTimeout == 0 {
		cfg.HTTP.ShutdownTimeout = 30 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 1 << 20
	}
	if cfg.HTTP.RateBurst == 0 {
		cfg.HTTP.RateBurst = 20
	}
	if cfg.Backend.BaseURL == "" {
		cfg.Backend.BaseURL = "http://localhost:8000/api"
	}
	if cfg.Backend.Timeout == 0 {
		cfg.Backend.Timeout = 20 * time.Second
	}
	if cfg.Batch.MaxRequests == 0 {
		cfg.Batch.MaxRequests = DefaultMaxRequests
	}
	if cfg.Print.GracePeriod == 0 {
		cfg.Print.GracePeriod = 30 * time.Second
	}
	if cfg.Print.InterItemDelay == 0 {
		cfg.Print.InterItemDelay = time.Second
	}
	if cfg.Print.PaperSize == "" {
		cfg.Print.PaperSize = "A4"
	}
	if cfg.Print.Sink == "" {
		cfg.Print.Sink = "spool"
	}
	if cfg.Print.RunRetention == 0 {
		cfg.Print.RunRetention = time.Hour
	}
	if cfg.Chrome.OpenTimeout == 0 {
		cfg.Chrome.OpenTimeout = 15 * time.Second
	}
	if cfg.Spool.Dir == "" {
		cfg.Spool.Dir = "/var/spool/backoffice"
	}
	if cfg.Storage.Region == "" {
		cfg.Storage.Region = "us-east-1"
	}
	if cfg.Storage.PresignExpiration == 0 {
		cfg.Storage.PresignExpiration = 15 * time.Minute
	}
	if cfg.Storage.ArtifactPrefix == "" {
		cfg.Storage.ArtifactPrefix = "invoice-artifacts"
	}
	if cfg.Storage.PrintSpoolPrefix == "" {
		cfg.Storage.PrintSpoolPrefix = "print-spool"
	}
	if cfg.Preview.SessionTTL == 0 {
		cfg.Preview.SessionTTL = 30 * time.Minute
	}
	if cfg.Preview.DefaultZoom == 0 {
		cfg.Preview.DefaultZoom = 100
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = cfg.App.Name
	}
	if cfg.Telemetry.ExportInterval == 0 {
		cfg.Telemetry.ExportInterval = 60 * time.Second
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c.Batch.DispatchInterval < 0 {
		return fmt.Errorf("batch.dispatch_interval cannot be negative")
	}
	if c.HTTP.RateLimit < 0 {
		return fmt.Errorf("http.rate_limit cannot be negative")
	}
	if c.Telemetry.SamplingRatio < 0 || c.Telemetry.SamplingRatio > 1 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0 and 1")
	}
	if c.Telemetry.ProfilingEnabled && c.Telemetry.ProfilerAddress == "" {
		return fmt.Errorf("telemetry.profiler_address is required when profiling is enabled")
	}
	if c.Batch.MaxRequests < 0 {
		return fmt.Errorf("batch.max_requests cannot be negative")
	}
	if c.Print.GracePeriod < 0 || c.Print.InterItemDelay < 0 {
		return fmt.Errorf("print.grace_period and print.inter_item_delay cannot be negative")
	}
	switch c.Print.PaperSize {
	case "A4", "A5":
	default:
		return fmt.Errorf("print.paper_size must be A4 or A5, got %q", c.Print.PaperSize)
	}
	switch c.Print.Sink {
	case "spool":
	case "s3":
		if !c.Storage.Enabled {
			return fmt.Errorf("print.sink=s3 requires storage.enabled=true")
		}
	default:
		return fmt.Errorf("print.sink must be spool or s3, got %q", c.Print.Sink)
	}
	if c.Preview.DefaultZoom < 50 || c.Preview.DefaultZoom > 200 {
		return fmt.Errorf("preview.default_zoom must be between 50 and 200, got %d", c.Preview.DefaultZoom)
	}
	if c.Storage.Enabled {
		if c.Storage.Bucket == "" {
			return fmt.Errorf("storage.bucket is required when storage is enabled")
		}
		if c.Storage.AccessKey == "" || c.Storage.SecretKey == "" {
			return fmt.Errorf("storage.access_key and storage.secret_key are required when storage is enabled")
		}
	}

	if c.App.Env == "production" {
		if !strings.HasPrefix(c.Backend.BaseURL, "https://") {
			return fmt.Errorf("backend.base_url must use https in production")
		}
		if c.Chrome.NoSandbox && c.Chrome.RemoteURL == "" {
			return fmt.Errorf("chrome.no_sandbox is not allowed for a locally launched browser in production")
		}
	}

	return nil
}
