package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Get fetches path and decodes the JSON response into out.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.Request(ctx, path, RequestOptions{Method: http.MethodGet}, out)
}

// Post sends body as JSON.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.withJSON(ctx, http.MethodPost, path, body, out)
}

// Put sends body as JSON.
func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.withJSON(ctx, http.MethodPut, path, body, out)
}

// Del deletes path. out may be nil.
func (c *Client) Del(ctx context.Context, path string, out any) error {
	return c.Request(ctx, path, RequestOptions{Method: http.MethodDelete}, out)
}

// withJSON encodes body and delegates to Request. A nil body sends none.
func (c *Client) withJSON(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	return c.Request(ctx, path, RequestOptions{Method: method, Body: reader}, out)
}
