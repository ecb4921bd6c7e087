// Package backend is the HTTP client for the text-processing backend.
//
// It speaks the three JSON endpoints the orchestrator depends on:
//
//	POST /process  form-encoded text      -> processed string
//	POST /preview  multipart file         -> HTML sample, row count, columns
//	POST /batch    multipart file+column  -> download reference or column list
//
// and fetches processed files through Download. Every call is bounded by the
// configured timeout and returns typed errors (TransportError, BackendError).
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Default settings.
const (
	DefaultTimeout     = 30 * time.Second
	DefaultTextField   = "input_text"
	DefaultColumnField = "text_column"
	DefaultFileField   = "file"

	// maxResponseBytes caps JSON bodies; previews are small HTML fragments.
	maxResponseBytes = 8 << 20
)

// DefaultColumnNotFoundPatterns are message fragments that identify a missing
// column on backends that do not send error_kind.
var DefaultColumnNotFoundPatterns = []string{"не найдена", "not found"}

// Fields names the form fields the backend reads.
type Fields struct {
	Text   string
	Column string
	File   string
}

// Config configures a Client.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger
	Fields     Fields
	// ColumnNotFoundPatterns enables the message-based fallback for detecting a
	// missing column. Empty disables it; error_kind is always honored.
	ColumnNotFoundPatterns []string
	// Contract, when set, validates every JSON response body.
	Contract *Contract
}

// Client talks to the backend. It is safe for concurrent use.
type Client struct {
	base     *url.URL
	timeout  time.Duration
	http     *http.Client
	logger   *slog.Logger
	fields   Fields
	patterns []string
	contract *Contract
}

// New creates a Client from cfg, filling defaults for unset fields.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("backend URL is required")
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid backend URL %q: %w", cfg.BaseURL, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid backend URL %q: scheme must be http or https", cfg.BaseURL)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}

	c := &Client{
		base:     base,
		timeout:  cfg.Timeout,
		http:     cfg.HTTPClient,
		logger:   cfg.Logger,
		fields:   cfg.Fields,
		patterns: cfg.ColumnNotFoundPatterns,
		contract: cfg.Contract,
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if c.http == nil {
		c.http = &http.Client{}
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}
	if c.fields.Text == "" {
		c.fields.Text = DefaultTextField
	}
	if c.fields.Column == "" {
		c.fields.Column = DefaultColumnField
	}
	if c.fields.File == "" {
		c.fields.File = DefaultFileField
	}
	return c, nil
}

// Timeout returns the per-request bound.
func (c *Client) Timeout() time.Duration { return c.timeout }

// Process submits a single text value.
func (c *Client) Process(ctx context.Context, req SingleRequest) (SingleResult, error) {
	form := url.Values{}
	form.Set(c.fields.Text, req.Text)
	if req.Query != "" {
		form.Set("query", req.Query)
	}
	if req.Threshold > 0 {
		form.Set("threshold", strconv.FormatFloat(req.Threshold, 'f', -1, 64))
	}

	env, err := c.exchange(ctx, OpProcess, "process", "application/x-www-form-urlencoded", []byte(form.Encode()))
	if err != nil {
		return SingleResult{}, err
	}
	if env.Status != statusSuccess {
		return SingleResult{}, envelopeError(OpProcess, env)
	}
	return SingleResult{Text: env.Result, Input: env.Input}, nil
}

// Preview uploads a file and returns its tabular preview.
func (c *Client) Preview(ctx context.Context, req PreviewRequest) (PreviewResult, error) {
	body, contentType, err := c.multipartBody(req.File, nil)
	if err != nil {
		return PreviewResult{}, err
	}

	env, err := c.exchange(ctx, OpPreview, "preview", contentType, body)
	if err != nil {
		return PreviewResult{}, err
	}
	if env.Status != statusSuccess {
		return PreviewResult{}, envelopeError(OpPreview, env)
	}
	return PreviewResult{
		Rows:           env.RowsCount,
		Columns:        env.Columns,
		RenderedSample: env.Preview,
	}, nil
}

// Batch uploads a file for processing of the given column. A missing column is
// reported as a ColumnNotFound outcome, not as an error.
func (c *Client) Batch(ctx context.Context, req BatchRequest) (BatchOutcome, error) {
	body, contentType, err := c.multipartBody(req.File, map[string]string{c.fields.Column: req.Column})
	if err != nil {
		return nil, err
	}

	env, err := c.exchange(ctx, OpBatch, "batch", contentType, body)
	if err != nil {
		return nil, err
	}
	switch {
	case env.Status == statusSuccess:
		return BatchSuccess{RowsProcessed: env.Processed, DownloadRef: env.Download}, nil
	case c.isColumnNotFound(env):
		return ColumnNotFound{AvailableColumns: env.Columns, Message: env.Message}, nil
	default:
		return nil, envelopeError(OpBatch, env)
	}
}

// Download streams the file behind a download reference into w.
func (c *Client) Download(ctx context.Context, ref string, w io.Writer) (int64, error) {
	target, err := c.ResolveRef(ref)
	if err != nil {
		return 0, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to build download request: %w", err)
	}
	httpReq.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return 0, &TransportError{Op: OpDownload, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, &TransportError{Op: OpDownload, StatusCode: resp.StatusCode}
	}

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, &TransportError{Op: OpDownload, Err: err}
	}
	return n, nil
}

// ResolveRef turns a download reference into an absolute URL on the backend.
func (c *Client) ResolveRef(ref string) (string, error) {
	if ref == "" {
		return "", fmt.Errorf("empty download reference")
	}
	u, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("invalid download reference %q: %w", ref, err)
	}
	if u.IsAbs() {
		return u.String(), nil
	}
	// Root-relative references resolve against the host, others against the base path.
	return c.base.ResolveReference(u).String(), nil
}

// exchange posts body to path and decodes the JSON envelope.
func (c *Client) exchange(ctx context.Context, op, path, contentType string, body []byte) (envelope, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	target := c.base.ResolveReference(&url.URL{Path: path}).String()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return envelope{}, fmt.Errorf("failed to build %s request: %w", op, err)
	}
	requestID := uuid.NewString()
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Request-ID", requestID)

	logger := c.logger.With("op", op, "request_id", requestID)
	logger.Debug("backend request", "url", target, "bytes", len(body))
	start := time.Now()

	resp, err := c.http.Do(httpReq)
	if err != nil {
		logger.Debug("backend request failed", "error", err, "duration", time.Since(start))
		return envelope{}, &TransportError{Op: op, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return envelope{}, &TransportError{Op: op, Err: err}
	}
	logger.Debug("backend response", "status", resp.StatusCode, "bytes", len(raw), "duration", time.Since(start))

	var env envelope
	decodeErr := json.Unmarshal(raw, &env)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// A non-2xx response is only meaningful when it carries an error envelope.
		if decodeErr == nil && env.Status == statusError {
			return env, nil
		}
		return envelope{}, &TransportError{Op: op, StatusCode: resp.StatusCode}
	}
	if decodeErr != nil {
		return envelope{}, &BackendError{Op: op, Message: "malformed JSON response", Contract: true}
	}
	if c.contract != nil {
		if err := c.contract.Check(op, raw); err != nil {
			return envelope{}, &BackendError{Op: op, Message: err.Error(), Contract: true}
		}
	}
	return env, nil
}

// multipartBody encodes file plus extra text fields.
func (c *Client) multipartBody(file File, extra map[string]string) ([]byte, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	for name, value := range extra {
		if err := mw.WriteField(name, value); err != nil {
			return nil, "", fmt.Errorf("failed to encode field %s: %w", name, err)
		}
	}

	part, err := mw.CreateFormFile(c.fields.File, filepath.Base(file.Name))
	if err != nil {
		return nil, "", fmt.Errorf("failed to encode file: %w", err)
	}
	if _, err := part.Write(file.Content); err != nil {
		return nil, "", fmt.Errorf("failed to encode file: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to encode file: %w", err)
	}
	return buf.Bytes(), mw.FormDataContentType(), nil
}

// isColumnNotFound decides whether an error envelope is the recoverable
// missing-column case.
func (c *Client) isColumnNotFound(env envelope) bool {
	if env.Status != statusError {
		return false
	}
	if env.ErrorKind != "" {
		return env.ErrorKind == ErrorKindColumnNotFound
	}
	if len(env.Columns) == 0 {
		return false
	}
	msg := strings.ToLower(env.Message)
	for _, p := range c.patterns {
		if p != "" && strings.Contains(msg, strings.ToLower(p)) {
			return true
		}
	}
	return false
}

func envelopeError(op string, env envelope) error {
	if env.Status == statusError {
		return &BackendError{Op: op, Message: env.Message}
	}
	return &BackendError{Op: op, Message: fmt.Sprintf("unrecognized response status %q", env.Status), Contract: true}
}

// ErrEmptyRef is returned by commands when a batch succeeded without a download reference.
var ErrEmptyRef = errors.New("backend returned no download reference")
