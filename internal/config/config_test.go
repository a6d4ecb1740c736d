// SPDX-License-Identifier: MIT

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	cfg := FromEnv()

	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, DefaultMaxURLLength, cfg.MaxURLLength)
	assert.Equal(t, int64(DefaultStreamThreshold), cfg.StreamSizeThresh)
	assert.Equal(t, int64(DefaultCacheMaxBytes), cfg.CacheMaxBytes)
	assert.True(t, cfg.EnableStreaming)
	assert.False(t, cfg.UseCloudflare)
	assert.Empty(t, cfg.AllowedHosts)
	require.GreaterOrEqual(t, cfg.WorkerCount, 1)
	assert.GreaterOrEqual(t, cfg.WorkerQueueSize, cfg.WorkerCount)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("USE_CLOUDFLARE", "true")
	t.Setenv("STREAM_SIZE_THRESHOLD", "2097152")
	t.Setenv("ALLOWED_HOSTS", "cdn.example.com, *.akamaized.net ,")
	t.Setenv("REQUEST_TIMEOUT", "5s")
	t.Setenv("WORKER_COUNT", "3")

	cfg := FromEnv()

	assert.Equal(t, ":9090", cfg.ListenAddr)
	assert.True(t, cfg.UseCloudflare)
	assert.Equal(t, int64(2097152), cfg.StreamSizeThresh)
	assert.Equal(t, []string{"cdn.example.com", "*.akamaized.net"}, cfg.AllowedHosts)
	assert.Equal(t, 5*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 3, cfg.WorkerCount)
	assert.Equal(t, 6, cfg.WorkerQueueSize)
}

func TestParseDurationSeconds(t *testing.T) {
	t.Setenv("REQUEST_TIMEOUT", "45")
	assert.Equal(t, 45*time.Second, ParseDuration("REQUEST_TIMEOUT", time.Second))
}

func TestParseInvalidFallsBack(t *testing.T) {
	t.Setenv("MAX_URL_LENGTH", "not-a-number")
	t.Setenv("ENABLE_STREAMING", "not-a-bool")

	assert.Equal(t, 1234, ParseInt("MAX_URL_LENGTH", 1234))
	assert.True(t, ParseBool("ENABLE_STREAMING", true))
}
