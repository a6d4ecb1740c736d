// SPDX-License-Identifier: MIT

// Package api wires the proxy surface and the admin endpoints onto one
// chi router.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hlsgate/hlsgate/internal/api/middleware"
	"github.com/hlsgate/hlsgate/internal/cache"
	"github.com/hlsgate/hlsgate/internal/config"
	"github.com/hlsgate/hlsgate/internal/metrics"
	"github.com/hlsgate/hlsgate/internal/proxy"
	"github.com/hlsgate/hlsgate/internal/workers"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Server exposes the HTTP surface: the proxy routes plus the JSON admin
// endpoints the deployment tooling consumes.
type Server struct {
	cfg     config.Config
	logger  zerolog.Logger
	proxy   *proxy.Server
	store   cache.Store
	pool    *workers.Pool
	metrics *metrics.Registry
	router  *chi.Mux
}

// Options collects the Server's collaborators.
type Options struct {
	Config  config.Config
	Logger  zerolog.Logger
	Proxy   *proxy.Server
	Store   cache.Store
	Pool    *workers.Pool
	Metrics *metrics.Registry
}

// New constructs the Server and its route table.
func New(opts Options) *Server {
	s := &Server{
		cfg:     opts.Config,
		logger:  opts.Logger,
		proxy:   opts.Proxy,
		store:   opts.Store,
		pool:    opts.Pool,
		metrics: opts.Metrics,
	}
	s.router = middleware.NewRouter(middleware.StackConfig{
		EnableCORS:    true,
		EnableMetrics: true,
		EnableLogging: true,
		RateLimitRPS:  opts.Config.RateLimitRPS,
	})
	s.routes()
	return s
}

// Router returns the http.Handler to serve.
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) routes() {
	r := s.router

	// Admin surface. Static routes take precedence over the inline
	// wildcard below.
	r.Get("/healthz", s.handleHealthz)
	r.Get("/status", s.handleStatus)
	r.Get("/cache/stats", s.handleCacheStats)
	r.Post("/cache/clear", s.handleCacheClear)
	r.Get("/workers/stats", s.handleWorkerStats)
	r.Get("/metrics", s.handleMetrics)
	r.Post("/metrics/reset", s.handleMetricsReset)
	r.Method(http.MethodGet, "/metrics/prometheus", promhttp.Handler())
	r.Get("/debug", s.proxy.HandleDebug)

	// Proxy surface: every method, three URL sources.
	r.HandleFunc("/", s.proxy.HandleQuery)
	r.HandleFunc("/base64/{encodedUrl}", s.proxy.HandleBase64)
	r.HandleFunc("/*", s.proxy.HandleInline)
}
