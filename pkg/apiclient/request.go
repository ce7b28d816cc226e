package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aussiebroadwan/classroom/pkg/slogx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const contentTypeJSON = "application/json"

// RequestOptions describes one backend call.
type RequestOptions struct {
	// Method defaults to GET.
	Method string

	Body io.Reader

	// Headers set by the caller win over Authorization and the default
	// Content-Type, whatever their casing.
	Headers map[string]string
}

// Request sends an authenticated request to /api<path>. A 2xx JSON body is
// decoded into out (skipped when out is nil or the body is empty); any other
// status yields *HTTPError.
func (c *Client) Request(ctx context.Context, path string, opts RequestOptions, out any) error {
	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}
	return c.do(ctx, method, path, opts.Body, contentTypeJSON, opts.Headers, out)
}

// do is shared by Request and UploadFile. contentType is applied before
// Authorization and caller headers, so both can replace it.
func (c *Client) do(
	ctx context.Context,
	method, path string,
	body io.Reader,
	contentType string,
	headers map[string]string,
	out any,
) (err error) {
	ctx, span := c.tracer().Start(ctx, "apiclient.request",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("url.path", path),
		),
	)
	defer span.End()

	start := time.Now()
	status := 0
	defer func() {
		elapsed := time.Since(start)
		if c.Metrics != nil {
			c.Metrics.ObserveRequest(method, status, elapsed)
		}
		if status != 0 {
			span.SetAttributes(attribute.Int("http.response.status_code", status))
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		slogx.FromContext(ctx).Debug("api_request",
			"method", method,
			"path", path,
			"status", status,
			"duration_ms", elapsed.Milliseconds(),
		)
	}()

	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx); err != nil {
			return fmt.Errorf("failed to wait for rate limiter: %w", err)
		}
	}

	// A fresh token per call; the client never caches one.
	token, hasToken := c.token(ctx)

	req, err := http.NewRequestWithContext(ctx, method, c.url(path), body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if hasToken {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	// Set caller headers
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()
	status = resp.StatusCode

	return decodeResponse(resp, out)
}

// decodeResponse maps a response onto out or *HTTPError.
func decodeResponse(resp *http.Response, out any) error {
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return &HTTPError{StatusCode: resp.StatusCode}
	}

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if out == nil || len(bytes.TrimSpace(bodyBytes)) == 0 {
		return nil
	}

	if err := json.Unmarshal(bodyBytes, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
