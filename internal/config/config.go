// SPDX-License-Identifier: MIT

// Package config loads runtime configuration from environment variables.
//
// Variable names are kept stable across releases; operators rely on them in
// deployment manifests.
package config

import (
	"runtime"
	"time"
)

// Defaults for tunables that are not commonly overridden.
const (
	DefaultMaxURLLength    = 2048
	DefaultStreamThreshold = 1 << 20   // 1 MiB
	DefaultCacheMaxBytes   = 256 << 20 // 256 MiB soft cap
	DefaultCacheEntryMax   = 10 << 20  // 10 MiB per-entry cap
	DefaultCacheTTL        = 5 * time.Minute
	DefaultRequestTimeout  = 30 * time.Second
	DefaultWorkerMinBytes  = 64 << 10 // inline decode below this size
	DefaultRateLimitRPS    = 100
)

// Config is the immutable runtime configuration snapshot.
type Config struct {
	// Server
	ListenAddr      string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration

	// Admission
	MaxURLLength int
	AllowedHosts []string

	// Streaming
	EnableStreaming    bool
	StreamSizeThresh   int64
	UseCloudflare      bool
	DomainTemplateFile string

	// Cache
	CacheMaxBytes int64
	CacheEntryMax int64
	CacheTTL      time.Duration
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Workers
	WorkerCount     int
	WorkerQueueSize int
	WorkerMinBytes  int

	// Rate limiting
	RateLimitRPS int

	// Build metadata, injected at link time.
	Version     string
	Environment string
}

// FromEnv builds a Config from the process environment, applying defaults
// and logging each resolved value.
func FromEnv() Config {
	workers := ParseInt("WORKER_COUNT", runtime.GOMAXPROCS(0))
	if workers < 1 {
		workers = 1
	}
	queue := ParseInt("WORKER_QUEUE_SIZE", workers*2)
	if queue < 1 {
		queue = workers * 2
	}

	return Config{
		ListenAddr:      ":" + ParseString("PORT", "8080"),
		RequestTimeout:  ParseDuration("REQUEST_TIMEOUT", DefaultRequestTimeout),
		ShutdownTimeout: ParseDuration("SHUTDOWN_TIMEOUT", 10*time.Second),

		MaxURLLength: ParseInt("MAX_URL_LENGTH", DefaultMaxURLLength),
		AllowedHosts: ParseStringSlice("ALLOWED_HOSTS"),

		EnableStreaming:    ParseBool("ENABLE_STREAMING", true),
		StreamSizeThresh:   ParseInt64("STREAM_SIZE_THRESHOLD", DefaultStreamThreshold),
		UseCloudflare:      ParseBool("USE_CLOUDFLARE", false),
		DomainTemplateFile: ParseString("DOMAIN_TEMPLATES_FILE", ""),

		CacheMaxBytes: ParseInt64("CACHE_MAX_BYTES", DefaultCacheMaxBytes),
		CacheEntryMax: ParseInt64("CACHE_ENTRY_MAX_BYTES", DefaultCacheEntryMax),
		CacheTTL:      ParseDuration("CACHE_TTL", DefaultCacheTTL),
		RedisAddr:     ParseString("REDIS_ADDR", ""),
		RedisPassword: ParseString("REDIS_PASSWORD", ""),
		RedisDB:       ParseInt("REDIS_DB", 0),

		WorkerCount:     workers,
		WorkerQueueSize: queue,
		WorkerMinBytes:  ParseInt("WORKER_MIN_BYTES", DefaultWorkerMinBytes),

		RateLimitRPS: ParseInt("RATE_LIMIT_RPS", DefaultRateLimitRPS),

		Version:     ParseString("VERSION", "dev"),
		Environment: ParseString("ENVIRONMENT", "production"),
	}
}
