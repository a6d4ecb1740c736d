// SPDX-License-Identifier: MIT

package proxy

import (
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/hlsgate/hlsgate/internal/mediatype"
)

// urlAnalysis is the classifier's view of a target URL, exposed for
// troubleshooting misbehaving origins.
type urlAnalysis struct {
	IsM3U8             bool   `json:"isM3u8"`
	IsTSSegment        bool   `json:"isTsSegment"`
	IsDisguisedSegment bool   `json:"isDisguisedSegment"`
	IsStreamingFormat  bool   `json:"isStreamingFormat"`
	TypeByExtension    string `json:"typeByExtension,omitempty"`
}

type debugResponse struct {
	URL             string      `json:"url"`
	UpstreamStatus  int         `json:"upstreamStatus"`
	UpstreamHeaders http.Header `json:"upstreamHeaders"`
	SentHeaders     http.Header `json:"sentHeaders"`
	Analysis        urlAnalysis `json:"analysis"`
	Timestamp       string      `json:"timestamp"`
}

// HandleDebug probes the upstream with a HEAD request under the synthesized
// identity and reports what the pipeline would see.
func (s *Server) HandleDebug(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("url")
	res := s.validator.Validate(raw, true)
	if !res.Valid {
		writeError(w, ErrorDetail{Code: http.StatusBadRequest, Message: res.Reason, URL: raw, Usage: usageHint})
		return
	}
	target, err := url.Parse(raw)
	if err != nil {
		writeError(w, ErrorDetail{Code: http.StatusBadRequest, Message: "URL is not parseable", URL: raw})
		return
	}

	upstream := s.registry.Synthesize(target, r.Header)

	probe := r.Clone(r.Context())
	probe.Method = http.MethodHead
	resp, cancel, err := s.fetch(probe, target, upstream)
	if err != nil {
		s.writeFetchError(&countingWriter{ResponseWriter: w, status: http.StatusOK}, r, target, err, s.logger)
		return
	}
	defer cancel()
	defer resp.Body.Close()

	targetStr := target.String()
	out := debugResponse{
		URL:             targetStr,
		UpstreamStatus:  resp.StatusCode,
		UpstreamHeaders: resp.Header,
		SentHeaders:     upstream,
		Analysis: urlAnalysis{
			IsM3U8:             mediatype.IsM3U8(targetStr),
			IsTSSegment:        mediatype.IsTSSegment(targetStr),
			IsDisguisedSegment: mediatype.IsDisguisedSegment(targetStr),
			IsStreamingFormat:  mediatype.IsStreamingFormat(targetStr),
			TypeByExtension:    mediatype.ByExtension(targetStr),
		},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(out)
}
