// SPDX-License-Identifier: MIT

// Package middleware provides the canonical HTTP ingress middleware stack.
// Both the proxy surface and the admin endpoints use it to prevent drift in
// cross-cutting concerns.
package middleware

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/hlsgate/hlsgate/internal/log"
)

// StackConfig configures the middleware stack.
type StackConfig struct {
	EnableCORS    bool
	EnableMetrics bool
	EnableLogging bool

	// Rate limiting (per client IP); zero disables it.
	RateLimitRPS int
}

// NewRouter constructs a chi router with the canonical stack applied.
func NewRouter(cfg StackConfig) *chi.Mux {
	r := chi.NewRouter()
	ApplyStack(r, cfg)
	return r
}

// ApplyStack applies the canonical middleware stack to r.
func ApplyStack(r chi.Router, cfg StackConfig) {
	// 1. Recoverer (outermost safety net)
	r.Use(Recoverer)
	// 2. RequestID (correlation early)
	r.Use(RequestID)
	// 3. CORS (so OPTIONS and browser players behave)
	if cfg.EnableCORS {
		r.Use(CORS)
	}
	// 4. Metrics (track all requests)
	if cfg.EnableMetrics {
		r.Use(Metrics())
	}
	// 5. Logging (wraps handlers, captures full latency)
	if cfg.EnableLogging {
		r.Use(log.Middleware())
	}
	// 6. Rate limit (global protection)
	if cfg.RateLimitRPS > 0 {
		r.Use(httprate.LimitByIP(cfg.RateLimitRPS, httprateWindow))
	}
}
