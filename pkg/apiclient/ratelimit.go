package apiclient

import (
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig describes a client-side request budget.
type RateLimitConfig struct {
	// RequestsPerWindow is the number of requests allowed in Window
	RequestsPerWindow int
	// Window is the time window for the budget
	Window time.Duration
	// Burst allows short bursts above the steady rate
	Burst int
}

// NewLimiter returns a limiter for cfg, or nil when cfg allows no requests
// (no throttling).
func NewLimiter(cfg RateLimitConfig) *rate.Limiter {
	if cfg.RequestsPerWindow <= 0 || cfg.Window <= 0 {
		return nil
	}

	burst := cfg.Burst
	if burst <= 0 {
		burst = cfg.RequestsPerWindow
	}

	every := cfg.Window / time.Duration(cfg.RequestsPerWindow)
	return rate.NewLimiter(rate.Every(every), burst)
}
