// SPDX-License-Identifier: MIT

package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hlsgate/hlsgate/internal/cache"
	"github.com/hlsgate/hlsgate/internal/compress"
	"github.com/hlsgate/hlsgate/internal/log"
	"github.com/hlsgate/hlsgate/internal/mediatype"
	"github.com/rs/zerolog"
)

// countingWriter tracks status and body bytes for the metrics sample that
// every terminal transition records.
type countingWriter struct {
	http.ResponseWriter
	status int
	bytes  int64
	wrote  bool
}

func (w *countingWriter) WriteHeader(code int) {
	w.status = code
	w.wrote = true
	w.ResponseWriter.WriteHeader(code)
}

func (w *countingWriter) Write(b []byte) (int, error) {
	w.wrote = true
	n, err := w.ResponseWriter.Write(b)
	w.bytes += int64(n)
	return n, err
}

func (w *countingWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// proxy runs one exchange through the pipeline:
// Received -> Admitted -> (CacheHit|Fetching) -> (Streaming|Buffered|Error) -> Done.
func (s *Server) proxy(w http.ResponseWriter, r *http.Request, rawURL string) {
	start := time.Now()
	s.metrics.RecordRequest(r.Method)
	cw := &countingWriter{ResponseWriter: w, status: http.StatusOK}
	defer func() {
		s.metrics.RecordResponse(cw.status, cw.bytes, time.Since(start))
	}()

	res := s.validator.Validate(rawURL, true)
	if !res.Valid {
		writeError(cw, ErrorDetail{
			Code:    http.StatusBadRequest,
			Message: res.Reason,
			URL:     rawURL,
			Usage:   usageHint,
		})
		return
	}

	target, err := url.Parse(rawURL)
	if err != nil {
		writeError(cw, ErrorDetail{Code: http.StatusBadRequest, Message: "URL is not parseable", URL: rawURL})
		return
	}

	logger := log.WithContext(r.Context(), s.logger).With().
		Str(log.FieldTargetURL, target.String()).
		Logger()

	if r.Method == http.MethodGet && s.store != nil {
		key := cache.Fingerprint(target.String(), r.Header)
		if entry, ok := s.store.Get(key); ok {
			s.metrics.RecordCache(true)
			logger.Debug().Str(log.FieldCacheKey, key).Msg("cache hit")
			s.serveFromCache(cw, r, target, entry)
			return
		}
		s.metrics.RecordCache(false)
	}

	upstream := s.registry.Synthesize(target, r.Header)

	// Fast path: known streaming URLs skip response classification and any
	// cache write; the body goes straight to the client.
	if r.Method == http.MethodGet && s.cfg.EnableStreaming && mediatype.IsStreamingFormat(target.String()) {
		s.streamRequest(cw, r, target, upstream, logger)
		return
	}

	s.bufferedRequest(cw, r, target, upstream, logger)
}

// fetch issues the upstream request with the synthesized identity and a
// deadline derived from the configured request timeout. The caller owns the
// returned cancel func and response body.
func (s *Server) fetch(r *http.Request, target *url.URL, headers http.Header) (*http.Response, context.CancelFunc, error) {
	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RequestTimeout)

	var body io.Reader
	switch r.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
	default:
		body = r.Body
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, target.String(), body)
	if err != nil {
		cancel()
		return nil, nil, err
	}
	req.Header = headers.Clone()
	if host := req.Header.Get("Host"); host != "" {
		req.Host = host
		req.Header.Del("Host")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		cancel()
		return nil, nil, err
	}
	return resp, cancel, nil
}

// writeFetchError maps upstream fetch failures to the error contract:
// client aborts are silent, deadlines become 504, everything else 500.
func (s *Server) writeFetchError(w *countingWriter, r *http.Request, target *url.URL, err error, logger zerolog.Logger) {
	switch {
	case r.Context().Err() != nil && errors.Is(r.Context().Err(), context.Canceled):
		s.metrics.RecordCancellation()
		logger.Debug().Msg("client aborted before upstream response")
		w.status = 499 // recorded in metrics, never written
	case errors.Is(err, context.DeadlineExceeded):
		s.metrics.RecordCancellation()
		logger.Warn().Dur("timeout", s.cfg.RequestTimeout).Msg("upstream fetch timed out")
		writeError(w, ErrorDetail{
			Code:    http.StatusGatewayTimeout,
			Message: fmt.Sprintf("upstream did not respond within %s", s.cfg.RequestTimeout),
			URL:     target.String(),
		})
	default:
		logger.Error().Err(err).Msg("upstream fetch failed")
		writeError(w, ErrorDetail{
			Code:    http.StatusInternalServerError,
			Message: "upstream fetch failed",
			URL:     target.String(),
			Details: err.Error(),
		})
	}
}

// serveFromCache emits a cached body, honoring a single-range request with
// a synthetic 206.
func (s *Server) serveFromCache(w *countingWriter, r *http.Request, target *url.URL, entry cache.Entry) {
	ct := mediatype.Arbitrate(entry.Body, target.String(), entry.ContentType)
	h := w.Header()
	h.Set("Content-Type", ct)
	h.Set("X-Cache", "HIT")
	if isMediaResponse(target.String(), ct) {
		h.Set("Accept-Ranges", "bytes")
	}

	size := int64(len(entry.Body))
	if rangeHeader := r.Header.Get("Range"); rangeHeader != "" {
		if start, end, ok := cache.ParseRange(rangeHeader, size); ok {
			h.Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, size))
			h.Set("Content-Length", strconv.FormatInt(end-start+1, 10))
			w.WriteHeader(http.StatusPartialContent)
			_, _ = w.Write(entry.Body[start : end+1])
			return
		}
	}

	h.Set("Content-Length", strconv.FormatInt(size, 10))
	_, _ = w.Write(entry.Body)
}

// bufferedRequest is the classification path for everything that did not
// qualify for streaming up front.
func (s *Server) bufferedRequest(w *countingWriter, r *http.Request, target *url.URL, upstream http.Header, logger zerolog.Logger) {
	resp, cancel, err := s.fetch(r, target, upstream)
	if err != nil {
		s.writeFetchError(w, r, target, err, logger)
		return
	}
	defer cancel()
	defer resp.Body.Close()

	targetStr := target.String()
	contentType := resp.Header.Get("Content-Type")
	encoding := compress.Normalize(resp.Header.Get("Content-Encoding"))

	switch {
	case resp.StatusCode == http.StatusPartialContent:
		// Upstream honored the forwarded Range; relay it untouched.
		s.pipe(w, resp, targetStr, logger)

	case resp.StatusCode >= http.StatusBadRequest:
		s.relayUpstreamError(w, resp, target, logger)

	case resp.StatusCode >= http.StatusMultipleChoices:
		// Residual 3xx (redirects are followed by the client): pass through.
		s.pipe(w, resp, targetStr, logger)

	case s.cfg.EnableStreaming && resp.ContentLength > s.cfg.StreamSizeThresh:
		logger.Debug().Int64("content_length", resp.ContentLength).Msg("large response, switching to stream path")
		s.pipe(w, resp, targetStr, logger)

	case mediatype.IsAudioSegment(targetStr, contentType):
		// Byte-for-byte with the upstream Content-Encoding intact.
		s.pipe(w, resp, targetStr, logger)

	case mediatype.NeedsM3U8Rewriting(targetStr, contentType):
		s.serveRewritten(w, r, resp, target, rewritePlaylist, encoding, true, logger)

	case mediatype.IsVTT(targetStr, contentType):
		s.serveRewritten(w, r, resp, target, rewriteSubtitle, encoding, true, logger)

	default:
		s.serveBuffered(w, r, resp, target, encoding, true, logger)
	}
}

// relayUpstreamError propagates an upstream 4xx/5xx inside the error
// envelope, decoding the upstream body as JSON when it parses.
func (s *Server) relayUpstreamError(w *countingWriter, resp *http.Response, target *url.URL, logger zerolog.Logger) {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var details any
	var parsed any
	if json.Unmarshal(body, &parsed) == nil {
		details = parsed
	} else if len(body) > 0 {
		details = strings.ToValidUTF8(string(body), "")
	}

	logger.Warn().Int("upstream_status", resp.StatusCode).Msg("relaying upstream error")
	writeError(w, ErrorDetail{
		Code:    resp.StatusCode,
		Message: fmt.Sprintf("upstream responded with status %d", resp.StatusCode),
		URL:     target.String(),
		Details: details,
	})
}

// serveBuffered materializes a generic response, decodes it when encoded,
// arbitrates the content type, and stores it in the cache when eligible.
// The stream fast path sets allowCacheWrite to false: responses that
// entered it never land in the cache.
func (s *Server) serveBuffered(w *countingWriter, r *http.Request, resp *http.Response, target *url.URL, encoding string, allowCacheWrite bool, logger zerolog.Logger) {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		s.writeFetchError(w, r, target, err, logger)
		return
	}

	targetStr := target.String()
	decodeFailed := false
	if encoding != "" {
		decoded, derr := s.decode(body, encoding)
		if derr != nil {
			// Never fatal: the original bytes flow through and the
			// Content-Encoding header stays so the client can decode.
			logger.Warn().Err(derr).Str(log.FieldEncoding, encoding).Msg("decompression failed, passing original body through")
			decodeFailed = true
		} else {
			body = decoded
		}
	}

	contentType := mediatype.Arbitrate(body, targetStr, resp.Header.Get("Content-Type"))

	copyHeaders(w.Header(), resp.Header)
	if encoding != "" && !decodeFailed {
		w.Header().Del("Content-Encoding")
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.Header().Set("X-Cache", "MISS")
	if isMediaResponse(targetStr, contentType) {
		w.Header().Set("Accept-Ranges", "bytes")
	}

	if allowCacheWrite {
		s.maybeStore(r, resp.StatusCode, decodeFailed, targetStr, body, contentType, logger)
	}

	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write(body)
}

// maybeStore writes a response to the cache when it is eligible: GET, 200,
// no Range request, and no decompression failure.
func (s *Server) maybeStore(r *http.Request, status int, decodeFailed bool, targetStr string, body []byte, contentType string, logger zerolog.Logger) {
	if s.store == nil || r.Method != http.MethodGet || status != http.StatusOK ||
		r.Header.Get("Range") != "" || decodeFailed {
		return
	}
	key := cache.Fingerprint(targetStr, r.Header)
	s.store.Put(key, cache.Entry{Body: body, ContentType: contentType})
	logger.Debug().Str(log.FieldCacheKey, key).Int("bytes", len(body)).Msg("stored response in cache")
}

// decode runs a decompression through the worker pool and records the
// outcome.
func (s *Server) decode(data []byte, declared string) ([]byte, error) {
	out, err := s.pool.Decompress(data, declared)
	s.metrics.RecordWorker(err == nil)
	s.metrics.SetQueueDepth(s.pool.Stats().QueueLength)
	return out, err
}

// isMediaResponse reports whether the response should advertise byte-range
// support.
func isMediaResponse(targetStr, contentType string) bool {
	if mediatype.IsStreamingFormat(targetStr) {
		return true
	}
	return strings.HasPrefix(contentType, "video/") || strings.HasPrefix(contentType, "audio/")
}
