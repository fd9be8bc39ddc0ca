// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 ProComply Contributors

// Package api is the HTTP client adapter for the remote ProComply API.
// It owns the base origin, bearer credential injection, response envelope
// normalization, and the request failure taxonomy. Domain stores never touch
// net/http directly.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("procomply/api")

// Default client tuning.
const (
	DefaultTimeout    = 15 * time.Second
	DefaultMaxRetries = 2
	retryBaseDelay    = 200 * time.Millisecond
)

// TokenSource yields the current bearer credential, or empty when no
// session is established. The session store's vault is the only writer;
// the client only ever reads.
type TokenSource interface {
	Token() (string, error)
}

// Client issues requests against a fixed base API origin.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
	logger     *slog.Logger
	maxRetries uint64
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client (tests inject
// httptest-backed clients here).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithMaxRetries sets the retry budget for idempotent requests.
func WithMaxRetries(n uint64) Option {
	return func(c *Client) { c.maxRetries = n }
}

// NewClient creates a Client targeting baseURL (scheme + host, no trailing
// slash). tokens may be nil for a client that never authenticates.
func NewClient(baseURL string, tokens TokenSource, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
		tokens:     tokens,
		logger:     slog.Default(),
		maxRetries: DefaultMaxRetries,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get issues a GET and decodes the (possibly enveloped) JSON response into
// out. Transport failures are retried with capped exponential backoff;
// GETs are the only verb the client ever retries.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	backoff := retry.WithMaxRetries(c.maxRetries, retry.NewExponential(retryBaseDelay))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := c.do(ctx, http.MethodGet, path, "", nil, out)
		if IsTransportError(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}

// Post issues a POST with a JSON body. Never retried.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	payload, err := encodeJSON(body)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, path, "application/json", payload, out)
}

// Put issues a PUT with a JSON body. Never retried.
func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	payload, err := encodeJSON(body)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPut, path, "application/json", payload, out)
}

// FileAttachment is a file field in a multipart request.
type FileAttachment struct {
	Field    string
	Filename string
	Content  io.Reader
}

// PostMultipart issues a POST with form fields and an optional file
// attachment. file may be nil.
func (c *Client) PostMultipart(ctx context.Context, path string, fields map[string]string, file *FileAttachment, out any) error {
	body, contentType, err := encodeMultipart(fields, file)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, path, contentType, body, out)
}

// PutMultipart issues a PUT with form fields and an optional file attachment.
func (c *Client) PutMultipart(ctx context.Context, path string, fields map[string]string, file *FileAttachment, out any) error {
	body, contentType, err := encodeMultipart(fields, file)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPut, path, contentType, body, out)
}

// Download streams a binary response body (e.g. a PDF report) into w.
func (c *Client) Download(ctx context.Context, path string, w io.Writer) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, "", nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return oops.Code(CodeTransport).
			With("path", path).
			Wrapf(err, "request failed")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16)) //nolint:errcheck
		return c.statusError(resp.StatusCode, path, body)
	}

	if _, err := io.Copy(w, resp.Body); err != nil {
		return oops.Code(CodeTransport).
			With("path", path).
			Wrapf(err, "reading response body")
	}
	return nil
}

// do performs a single request/response cycle and decodes the body into out
// (out may be nil to discard the body).
func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader, out any) (err error) {
	ctx, span := tracer.Start(ctx, "api.request",
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("http.path", path),
		),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(otelcodes.Error, err.Error())
		}
		span.End()
	}()

	req, err := c.newRequest(ctx, method, path, contentType, body)
	if err != nil {
		return err
	}
	requestID := req.Header.Get("X-Request-ID")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.DebugContext(ctx, "api request failed",
			"method", method, "path", path, "request_id", requestID, "error", err)
		return oops.Code(CodeTransport).
			With("method", method).
			With("path", path).
			With("request_id", requestID).
			Wrapf(err, "request failed")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<22))
	if err != nil {
		return oops.Code(CodeTransport).
			With("method", method).
			With("path", path).
			With("request_id", requestID).
			Wrapf(err, "reading response body")
	}

	c.logger.DebugContext(ctx, "api request",
		"method", method,
		"path", path,
		"request_id", requestID,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.statusError(resp.StatusCode, path, respBody)
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := decodeEnvelope(respBody, out); err != nil {
		return oops.Code(CodeServer).
			With("path", path).
			With("request_id", requestID).
			Wrapf(err, "malformed response body")
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path, contentType string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, oops.Code(CodeTransport).
			With("method", method).
			With("path", path).
			Wrapf(err, "building request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", ulid.Make().String())
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.tokens != nil {
		token, err := c.tokens.Token()
		if err != nil {
			return nil, oops.Code(CodeTransport).
				With("path", path).
				Wrapf(err, "reading credential token")
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	return req, nil
}

// statusError maps a non-2xx response to the failure taxonomy.
func (c *Client) statusError(status int, path string, body []byte) error {
	detail, fields := parseErrorBody(body)

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		if detail == "" {
			detail = "authentication failed"
		}
		return oops.Code(CodeAuth).
			With("status_code", status).
			With("path", path).
			Errorf("%s", detail)

	case status == http.StatusNotFound:
		return oops.Code(CodeNotFound).
			With("status_code", status).
			With("path", path).
			Wrapf(ErrNotFound, "resource not found")

	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		if detail == "" {
			detail = "the submitted data was rejected"
		}
		builder := oops.Code(CodeValidation).
			With("status_code", status).
			With("path", path)
		if len(fields) > 0 {
			builder = builder.With("fields", fields)
		}
		return builder.Errorf("%s", detail)

	case status >= 500:
		// Original detail goes to the log; callers surface a generic message.
		c.logger.Error("api server error",
			"status", status, "path", path, "detail", detail)
		return oops.Code(CodeServer).
			With("status_code", status).
			With("path", path).
			Errorf("server error (status %d)", status)

	default:
		return oops.Code(CodeServer).
			With("status_code", status).
			With("path", path).
			Errorf("unexpected status %d", status)
	}
}

// parseErrorBody extracts a human-readable detail string and any per-field
// validation messages from an API error payload. DRF-style bodies are either
// {"detail": "..."} or {"field": ["msg", ...], ...}; both occur.
func parseErrorBody(body []byte) (detail string, fields map[string][]string) {
	if len(body) == 0 {
		return "", nil
	}
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", nil
	}

	if d, ok := payload["detail"].(string); ok {
		return d, nil
	}
	if e, ok := payload["error"].(string); ok {
		return e, nil
	}

	fields = make(map[string][]string)
	var parts []string
	for field, raw := range payload {
		msgs, ok := raw.([]any)
		if !ok {
			continue
		}
		for _, m := range msgs {
			if s, ok := m.(string); ok {
				fields[field] = append(fields[field], s)
				parts = append(parts, fmt.Sprintf("%s: %s", field, s))
			}
		}
	}
	if len(fields) == 0 {
		return "", nil
	}
	return strings.Join(parts, "; "), fields
}

func encodeJSON(body any) (io.Reader, error) {
	if body == nil {
		return nil, nil
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, oops.Code(CodeValidation).Wrapf(err, "encoding request body")
	}
	return bytes.NewReader(data), nil
}

func encodeMultipart(fields map[string]string, file *FileAttachment) (io.Reader, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	for field, value := range fields {
		if err := mw.WriteField(field, value); err != nil {
			return nil, "", oops.Code(CodeValidation).
				With("field", field).
				Wrapf(err, "writing form field")
		}
	}
	if file != nil {
		part, err := mw.CreateFormFile(file.Field, file.Filename)
		if err != nil {
			return nil, "", oops.Code(CodeValidation).
				With("field", file.Field).
				Wrapf(err, "creating file part")
		}
		if _, err := io.Copy(part, file.Content); err != nil {
			return nil, "", oops.Code(CodeValidation).
				With("field", file.Field).
				Wrapf(err, "copying file content")
		}
	}
	if err := mw.Close(); err != nil {
		return nil, "", oops.Code(CodeValidation).Wrapf(err, "finalizing multipart body")
	}
	return &buf, mw.FormDataContentType(), nil
}
