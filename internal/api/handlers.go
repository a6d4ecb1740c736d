// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"net/http"
	"runtime"
	"time"

	"github.com/hlsgate/hlsgate/internal/log"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type statusMemory struct {
	AllocBytes      uint64 `json:"allocBytes"`
	TotalAllocBytes uint64 `json:"totalAllocBytes"`
	SysBytes        uint64 `json:"sysBytes"`
	NumGC           uint32 `json:"numGC"`
	Goroutines      int    `json:"goroutines"`
}

type statusResponse struct {
	Status      string       `json:"status"`
	Version     string       `json:"version"`
	Uptime      string       `json:"uptime"`
	Timestamp   string       `json:"timestamp"`
	Environment string       `json:"environment"`
	Memory      statusMemory `json:"memory"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	writeJSON(w, http.StatusOK, statusResponse{
		Status:      "ok",
		Version:     s.cfg.Version,
		Uptime:      s.metrics.Uptime().Round(time.Second).String(),
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
		Environment: s.cfg.Environment,
		Memory: statusMemory{
			AllocBytes:      ms.Alloc,
			TotalAllocBytes: ms.TotalAlloc,
			SysBytes:        ms.Sys,
			NumGC:           ms.NumGC,
			Goroutines:      runtime.NumGoroutine(),
		},
	})
}

func (s *Server) handleCacheStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.store.Stats())
}

func (s *Server) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	s.store.Clear()
	l := log.WithContext(r.Context(), log.WithComponent("api"))
	l.Info().Msg("cache cleared")
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"message":   "cache cleared",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleWorkerStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.pool.Stats())
}

func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.metrics.Snapshot())
}

func (s *Server) handleMetricsReset(w http.ResponseWriter, r *http.Request) {
	s.metrics.Reset()
	l := log.WithContext(r.Context(), log.WithComponent("api"))
	l.Info().Msg("metrics reset")
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"message":   "metrics reset",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
