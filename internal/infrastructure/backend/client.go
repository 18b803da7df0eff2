// Package backend is the HTTP client of the data-providing backend that
// supplies invoice source data and pre-rendered documents.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/govtravel/backoffice/internal/domain/invoicing"
	infraconfig "github.com/govtravel/backoffice/internal/infrastructure/config"
	"github.com/govtravel/backoffice/internal/infrastructure/logger"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	// maxResponseSize limits the response body size to prevent memory exhaustion
	maxResponseSize = 10 * 1024 * 1024

	sourcePath   = "/invoices/source"
	renderedPath = "/invoices/rendered"

	defaultTimeout = 20 * time.Second
)

// Client implements invoicing.SourceDataProvider over JSON/HTTP
type Client struct {
	baseURL    string
	authToken  string
	httpClient *http.Client
	logger     *zap.Logger
}

// ClientOption is a functional option for configuring Client
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying http.Client
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a backend client from configuration
func NewClient(cfg *infraconfig.BackendConfig, opts ...ClientOption) (*Client, error) {
	if cfg == nil || strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("backend base URL is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	c := &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		authToken:  cfg.AuthToken,
		httpClient: &http.Client{Timeout: timeout},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	return c, nil
}

// documentRequest is the wire shape shared by both endpoints
type documentRequest struct {
	Scope        string   `json:"scope"`
	InvoiceID    string   `json:"invoiceId"`
	PassengerIDs []string `json:"passengerIds,omitempty"`
}

// errorPayload is what the backend returns instead of data on failure
type errorPayload struct {
	Error string `json:"error"`
}

type renderedPayload struct {
	Content       string `json:"content"`
	DocumentLabel string `json:"documentLabel"`
	Metadata      struct {
		AmountTotal decimal.Decimal `json:"amountTotal"`
		ScopeType   string          `json:"scopeType"`
		SubjectName string          `json:"subjectName"`
	} `json:"metadata"`
}

// FetchSourceData returns structured invoice data for the request
func (c *Client) FetchSourceData(ctx context.Context, req invoicing.InvoiceDocumentRequest) (*invoicing.InvoiceSourceData, error) {
	body, err := c.post(ctx, sourcePath, req)
	if err != nil {
		return nil, err
	}

	var data invoicing.InvoiceSourceData
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, invoicing.NewSourceDataError("Malformed invoice source data", err)
	}
	if data.Scope == "" {
		data.Scope = req.Scope()
	}
	return &data, nil
}

// FetchRenderedDocument returns document content the backend already rendered
func (c *Client) FetchRenderedDocument(ctx context.Context, req invoicing.InvoiceDocumentRequest) (*invoicing.RenderedDocument, error) {
	body, err := c.post(ctx, renderedPath, req)
	if err != nil {
		return nil, err
	}

	var payload renderedPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, invoicing.NewSourceDataError("Malformed rendered document", err)
	}
	if strings.TrimSpace(payload.Content) == "" {
		return nil, invoicing.NewSourceDataError("Backend returned an empty document", nil)
	}

	scope := invoicing.Scope(payload.Metadata.ScopeType)
	if !scope.IsValid() {
		scope = req.Scope()
	}
	label := payload.DocumentLabel
	if label == "" {
		label = "invoice-" + req.InvoiceID()
	}

	return &invoicing.RenderedDocument{
		Content:       payload.Content,
		DocumentLabel: label,
		Metadata: invoicing.DocumentMetadata{
			AmountTotal: payload.Metadata.AmountTotal,
			ScopeType:   scope,
			SubjectName: payload.Metadata.SubjectName,
		},
	}, nil
}

// post sends the request and returns the body of a successful, error-free response
func (c *Client) post(ctx context.Context, path string, req invoicing.InvoiceDocumentRequest) ([]byte, error) {
	bodyBytes, err := json.Marshal(documentRequest{
		Scope:        req.Scope().String(),
		InvoiceID:    req.InvoiceID(),
		PassengerIDs: req.PassengerIDs(),
	})
	if err != nil {
		return nil, fmt.Errorf("backend: failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("backend: failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if c.authToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.authToken)
	}
	if id := logger.GetRequestID(ctx); id != "" {
		httpReq.Header.Set("X-Request-ID", id)
	}

	log := logger.Enrich(ctx, c.logger).With(
		zap.String("path", path),
		zap.String("request", req.Key()),
	)

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		log.Warn("backend request failed", zap.Error(err))
		return nil, invoicing.NewSourceDataError("Backend unavailable", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, invoicing.NewSourceDataError("Failed to read backend response", err)
	}

	log.Debug("backend responded",
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)))

	// The backend may report failures with a 2xx status and an error payload
	var ep errorPayload
	if json.Unmarshal(body, &ep) == nil && ep.Error != "" {
		return nil, invoicing.NewSourceDataError(ep.Error, nil)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, invoicing.NewSourceDataError(
			fmt.Sprintf("Backend returned HTTP %d", resp.StatusCode), nil)
	}
	return body, nil
}

var _ invoicing.SourceDataProvider = (*Client)(nil)
