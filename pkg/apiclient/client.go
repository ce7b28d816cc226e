// Package apiclient is the authenticated HTTP client for the classroom
// backend. Every call asks a TokenSource for a fresh bearer token, so it
// holds no credentials of its own.
package apiclient

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

const tracerName = "github.com/aussiebroadwan/classroom/pkg/apiclient"

// TokenSource yields the bearer token for the next request, or false when
// the request should go out anonymously. *identity.Oracle satisfies it.
type TokenSource interface {
	FreshToken(ctx context.Context) (string, bool)
}

// Client sends requests to <Origin>/api<path>.
type Client struct {
	// Origin is the scheme and host of the backend, e.g. "https://lms.example.com".
	Origin string

	HTTPClient *http.Client

	// Tokens may be nil, in which case every request is anonymous.
	Tokens TokenSource

	// Limiter throttles outgoing requests when set.
	Limiter *rate.Limiter

	// Metrics receives one observation per request when set.
	Metrics Recorder

	// Tracer defaults to the global tracer provider.
	Tracer trace.Tracer
}

// New creates a Client for origin with a 30 second HTTP timeout.
func New(origin string, tokens TokenSource) *Client {
	return &Client{
		Origin: strings.TrimSuffix(origin, "/"),
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		Tokens: tokens,
		Tracer: otel.Tracer(tracerName),
	}
}

// url builds the backend URL of an API path.
func (c *Client) url(path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return strings.TrimSuffix(c.Origin, "/") + "/api" + path
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c *Client) tracer() trace.Tracer {
	if c.Tracer != nil {
		return c.Tracer
	}
	return otel.Tracer(tracerName)
}

// token asks the TokenSource for a bearer token.
func (c *Client) token(ctx context.Context) (string, bool) {
	if c.Tokens == nil {
		return "", false
	}
	tok, ok := c.Tokens.FreshToken(ctx)
	return tok, ok && tok != ""
}
