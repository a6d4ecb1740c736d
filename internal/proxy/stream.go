// SPDX-License-Identifier: MIT

package proxy

import (
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"syscall"

	"github.com/hlsgate/hlsgate/internal/compress"
	"github.com/hlsgate/hlsgate/internal/log"
	"github.com/hlsgate/hlsgate/internal/mediatype"
	"github.com/rs/zerolog"
)

type rewriteKind int

const (
	rewritePlaylist rewriteKind = iota
	rewriteSubtitle
)

// hop-by-hop and framing headers never relayed to the client.
var responseHeaderDropSet = map[string]bool{
	"connection":        true,
	"transfer-encoding": true,
	"keep-alive":        true,
	"upgrade":           true,
	"trailer":           true,
}

func copyHeaders(dst http.Header, src http.Header) {
	for name, values := range src {
		if responseHeaderDropSet[strings.ToLower(name)] {
			continue
		}
		for _, v := range values {
			dst.Add(name, v)
		}
	}
}

// streamRequest is the fast path for segment and manifest URLs: the fetch
// happens before any classification, and cache writes are skipped.
func (s *Server) streamRequest(w *countingWriter, r *http.Request, target *url.URL, upstream http.Header, logger zerolog.Logger) {
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
	case resp.StatusCode >= http.StatusBadRequest:
		s.relayUpstreamError(w, resp, target, logger)

	case mediatype.NeedsM3U8Rewriting(targetStr, contentType):
		// Compressed and requires processing: materialize, decode, rewrite.
		s.serveRewritten(w, r, resp, target, rewritePlaylist, encoding, false, logger)

	case mediatype.IsVTT(targetStr, contentType):
		s.serveRewritten(w, r, resp, target, rewriteSubtitle, encoding, false, logger)

	case encoding != "" && !mediatype.IsAudioSegment(targetStr, contentType):
		// Compressed-generic: decode before sending so players that did
		// not ask for the encoding still work. No cache write on this path.
		s.serveBuffered(w, r, resp, target, encoding, false, logger)

	default:
		s.pipe(w, resp, targetStr, logger)
	}
}

// pipe relays the upstream body with a bounded copy buffer. Headers are
// written exactly once; a copy failure mid-stream can only be logged.
func (s *Server) pipe(w *countingWriter, resp *http.Response, targetStr string, logger zerolog.Logger) {
	h := w.Header()
	copyHeaders(h, resp.Header)
	h.Set("Content-Type", streamContentType(targetStr, resp.Header.Get("Content-Type")))
	h.Set("X-Cache", "MISS")
	h.Set("Accept-Ranges", "bytes")
	h.Set("X-Accel-Buffering", "no")
	if s.cfg.UseCloudflare {
		h.Set("CF-Cache-Status", "DYNAMIC")
	}

	w.WriteHeader(resp.StatusCode)

	buf := make([]byte, streamCopyBufferSize)
	written, err := io.CopyBuffer(w, resp.Body, buf)
	if err != nil && !isClientAbort(err) {
		logger.Warn().Err(err).Int64(log.FieldBytes, written).Msg("stream copy interrupted")
		return
	}
	logger.Debug().Int64(log.FieldBytes, written).Msg("stream completed")
}

// streamContentType arbitrates the content type without sniffing the body;
// the stream path never materializes it.
func streamContentType(targetStr, upstreamType string) string {
	if mediatype.IsDisguisedSegment(targetStr) {
		return mediatype.MimeTS
	}
	if mediatype.IsM3U8(targetStr) && upstreamType != mediatype.MimeM3U8 {
		return mediatype.MimeM3U8
	}
	if upstreamType != "" {
		return upstreamType
	}
	if byExt := mediatype.ByExtension(targetStr); byExt != "" {
		return byExt
	}
	return mediatype.MimeOctet
}

func isClientAbort(err error) bool {
	return errors.Is(err, syscall.EPIPE) || errors.Is(err, syscall.ECONNRESET)
}

// serveRewritten materializes a playlist or subtitle body, decodes it, runs
// the matching rewriter, and emits plain text. Rewrite failures return the
// decoded body unchanged; decode failures return the original bytes with
// the upstream Content-Encoding preserved.
func (s *Server) serveRewritten(w *countingWriter, r *http.Request, resp *http.Response, target *url.URL, kind rewriteKind, encoding string, allowCacheWrite bool, logger zerolog.Logger) {
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		s.writeFetchError(w, r, target, err, logger)
		return
	}

	body := raw
	decodeFailed := false
	if encoding != "" || compress.IsCompressed(raw) {
		decoded, derr := s.decode(raw, encoding)
		if derr != nil {
			logger.Warn().Err(derr).Str(log.FieldEncoding, encoding).Msg("manifest decompression failed")
			decodeFailed = true
		} else {
			body = decoded
		}
	}

	contentType := mediatype.MimeM3U8
	if kind == rewriteSubtitle {
		contentType = mediatype.MimeVTT
	}

	h := w.Header()
	copyHeaders(h, resp.Header)
	h.Set("X-Cache", "MISS")
	h.Set("Cache-Control", "no-cache")
	if decodeFailed {
		// Client gets the compressed original and the header to decode it.
		if encoding != "" {
			h.Set("Content-Encoding", encoding)
		}
		h.Set("Content-Type", contentType)
		h.Set("Content-Length", strconv.Itoa(len(body)))
		w.WriteHeader(resp.StatusCode)
		_, _ = w.Write(body)
		return
	}
	h.Del("Content-Encoding")

	text := string(body)
	rewriter := s.rewriterForRequest(r)
	if kind == rewritePlaylist {
		text = rewriter.Playlist(text, target)
	} else {
		text = rewriter.Subtitle(text, target)
	}

	h.Set("Content-Type", contentType+"; charset=utf-8")
	h.Set("Content-Length", strconv.Itoa(len(text)))

	if allowCacheWrite {
		s.maybeStore(r, resp.StatusCode, false, target.String(), []byte(text), contentType, logger)
	}

	w.WriteHeader(resp.StatusCode)
	_, _ = io.WriteString(w, text)
}
