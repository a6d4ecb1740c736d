// SPDX-License-Identifier: MIT

// Package proxy implements the request-handling pipeline: URL admission,
// identity synthesis, upstream fetch, streaming or buffered response
// selection, decompression, playlist and subtitle rewriting, content-type
// arbitration, and response caching.
package proxy

import (
	"net/http"
	"time"

	"github.com/hlsgate/hlsgate/internal/admission"
	"github.com/hlsgate/hlsgate/internal/cache"
	"github.com/hlsgate/hlsgate/internal/config"
	"github.com/hlsgate/hlsgate/internal/domains"
	"github.com/hlsgate/hlsgate/internal/metrics"
	"github.com/hlsgate/hlsgate/internal/rewrite"
	"github.com/hlsgate/hlsgate/internal/workers"
	"github.com/rs/zerolog"
)

// streamCopyBufferSize bounds the intermediate buffer used when piping an
// upstream body to a client; slow clients must not pin large buffers.
const streamCopyBufferSize = 64 << 10

// Server orchestrates the proxy pipeline. All fields are set at
// construction and never mutated, so handlers share it freely.
type Server struct {
	cfg         config.Config
	logger      zerolog.Logger
	client      *http.Client
	validator   *admission.Validator
	registry    *domains.Registry
	store       cache.Store
	pool        *workers.Pool
	rewriteOpts rewrite.Options
	metrics     *metrics.Registry
}

// Options collects the collaborators a Server needs.
type Options struct {
	Config config.Config
	Logger zerolog.Logger
	Client *http.Client // optional; a streaming-safe default is built
	Store  cache.Store
	Pool   *workers.Pool
	// Registry synthesizes the upstream identity headers.
	Registry *domains.Registry
	// RewriteOptions template; ProxyBaseURL is derived per request from
	// the Host the client used to reach the proxy.
	RewriteOptions rewrite.Options
	Metrics        *metrics.Registry
	Validator      *admission.Validator
}

// New creates a proxy Server.
func New(opts Options) *Server {
	client := opts.Client
	if client == nil {
		client = &http.Client{
			// Per-request timeouts come from context; the client-level
			// timeout stays off so long-lived streams are not cut.
			Timeout: 0,
			Transport: &http.Transport{
				MaxIdleConns:          100,
				MaxIdleConnsPerHost:   10,
				IdleConnTimeout:       90 * time.Second,
				ResponseHeaderTimeout: opts.Config.RequestTimeout,
				// The pipeline does its own decoding; automatic gzip
				// would strip Content-Encoding and break pass-through.
				DisableCompression: true,
			},
		}
	}
	validator := opts.Validator
	if validator == nil {
		validator = admission.New(opts.Config.MaxURLLength, opts.Config.AllowedHosts)
	}
	rewriteOpts := opts.RewriteOptions
	if rewriteOpts.URLParamName == "" {
		rewriteOpts.URLParamName = "url"
	}
	return &Server{
		cfg:         opts.Config,
		logger:      opts.Logger,
		client:      client,
		validator:   validator,
		registry:    opts.Registry,
		store:       opts.Store,
		pool:        opts.Pool,
		rewriteOpts: rewriteOpts,
		metrics:     opts.Metrics,
	}
}

// rewriterForRequest binds the rewriter to the base URL the client used to
// reach this proxy, so rewritten references route back through it.
func (s *Server) rewriterForRequest(r *http.Request) *rewrite.Rewriter {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	opts := s.rewriteOpts
	opts.ProxyBaseURL = scheme + "://" + r.Host + "/"
	return rewrite.New(opts)
}
