// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hlsgate/hlsgate/internal/cache"
	"github.com/hlsgate/hlsgate/internal/config"
	"github.com/hlsgate/hlsgate/internal/domains"
	"github.com/hlsgate/hlsgate/internal/metrics"
	"github.com/hlsgate/hlsgate/internal/proxy"
	"github.com/hlsgate/hlsgate/internal/rewrite"
	"github.com/hlsgate/hlsgate/internal/workers"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	cfg := config.Config{
		MaxURLLength:     config.DefaultMaxURLLength,
		EnableStreaming:  true,
		StreamSizeThresh: config.DefaultStreamThreshold,
		RequestTimeout:   5 * time.Second,
		Version:          "test",
		Environment:      "test",
	}
	store := cache.NewMemory(cache.Config{MaxBytes: 1 << 20, EntryMaxBytes: 1 << 20})
	pool := workers.New(1, 2, 64<<10, zerolog.Nop())
	t.Cleanup(pool.Shutdown)
	reg := metrics.NewRegistry()

	p := proxy.New(proxy.Options{
		Config:         cfg,
		Logger:         zerolog.Nop(),
		Store:          store,
		Pool:           pool,
		Registry:       domains.New(zerolog.Nop()),
		RewriteOptions: rewrite.Options{URLParamName: "url", Logger: zerolog.Nop()},
		Metrics:        reg,
	})

	return New(Options{
		Config:  cfg,
		Logger:  zerolog.Nop(),
		Proxy:   p,
		Store:   store,
		Pool:    pool,
		Metrics: reg,
	})
}

func doRequest(t *testing.T, s *Server, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestHealthz(t *testing.T) {
	rec := doRequest(t, newTestServer(t), http.MethodGet, "/healthz")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestStatusEndpoint(t *testing.T) {
	rec := doRequest(t, newTestServer(t), http.MethodGet, "/status")

	require.Equal(t, http.StatusOK, rec.Code)
	var got statusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "ok", got.Status)
	assert.Equal(t, "test", got.Version)
	assert.Equal(t, "test", got.Environment)
	assert.Positive(t, got.Memory.Goroutines)
}

func TestCacheStatsAndClear(t *testing.T) {
	s := newTestServer(t)
	s.store.Put("k", cache.Entry{Body: []byte("x"), ContentType: "text/plain"})

	rec := doRequest(t, s, http.MethodGet, "/cache/stats")
	require.Equal(t, http.StatusOK, rec.Code)
	var stats cache.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 1, stats.Entries)

	rec = doRequest(t, s, http.MethodPost, "/cache/clear")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, s.store.Stats().Entries)
}

func TestWorkerStats(t *testing.T) {
	rec := doRequest(t, newTestServer(t), http.MethodGet, "/workers/stats")

	require.Equal(t, http.StatusOK, rec.Code)
	var stats workers.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 1, stats.Workers)
}

func TestMetricsSnapshotAndReset(t *testing.T) {
	s := newTestServer(t)
	s.metrics.RecordRequest(http.MethodGet)

	rec := doRequest(t, s, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	var snap metrics.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Positive(t, snap.Requests)

	rec = doRequest(t, s, http.MethodPost, "/metrics/reset")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, s.metrics.Snapshot().Requests)
}

func TestProxyRouteRejectsMissingURL(t *testing.T) {
	rec := doRequest(t, newTestServer(t), http.MethodGet, "/")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"success":false`)
}

func TestRequestIDHeaderAssigned(t *testing.T) {
	rec := doRequest(t, newTestServer(t), http.MethodGet, "/healthz")

	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestCORSPreflight(t *testing.T) {
	rec := doRequest(t, newTestServer(t), http.MethodOptions, "/healthz")

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
