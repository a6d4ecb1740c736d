// SPDX-License-Identifier: MIT

// Package mediatype classifies streaming media by URL shape, upstream
// metadata, and payload sniffing. Media CDNs routinely serve MPEG-TS
// segments under misleading extensions, so URL hints alone are not trusted.
package mediatype

import (
	"path"
	"regexp"
	"strings"
)

// Canonical media MIME types.
const (
	MimeM3U8  = "application/vnd.apple.mpegurl"
	MimeTS    = "video/mp2t"
	MimeMP4   = "video/mp4"
	MimeVTT   = "text/vtt"
	MimeOctet = "application/octet-stream"
)

var extensionTypes = map[string]string{
	".m3u8": MimeM3U8,
	".ts":   MimeTS,
	".m4s":  "video/iso.segment",
	".mp4":  MimeMP4,
	".mp3":  "audio/mpeg",
	".aac":  "audio/aac",
	".vtt":  MimeVTT,
	".srt":  "application/x-subrip",
	".mpd":  "application/dash+xml",
	".key":  MimeOctet,
}

// streamingExtensions trigger the stream fast path in the pipeline.
var streamingExtensions = []string{".ts", ".m3u8", ".mp4", ".mp3", ".m4s"}

// segmentNamePatterns recognise common segment basenames regardless of the
// extension they are served under.
var segmentNamePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^seg-\d+`),
	regexp.MustCompile(`(?i)^segment-?\d+`),
	regexp.MustCompile(`(?i)^chunk-?\d+`),
	regexp.MustCompile(`(?i)-v\d+-a\d+`),
}

// disguiseExtensions are non-media extensions that CDNs hide segments under.
var disguiseExtensions = map[string]bool{
	".js":   true,
	".jpg":  true,
	".png":  true,
	".gif":  true,
	".css":  true,
	".html": true,
}

// urlPath strips query and fragment so extension checks see only the path.
func urlPath(rawURL string) string {
	if i := strings.IndexAny(rawURL, "?#"); i >= 0 {
		rawURL = rawURL[:i]
	}
	return rawURL
}

// ByExtension returns the MIME type for the URL's extension, or "" when the
// extension is unknown.
func ByExtension(rawURL string) string {
	ext := strings.ToLower(path.Ext(urlPath(rawURL)))
	return extensionTypes[ext]
}

// IsM3U8 reports whether the URL names an HLS playlist.
func IsM3U8(rawURL string) bool {
	return strings.HasSuffix(strings.ToLower(urlPath(rawURL)), ".m3u8")
}

// IsTSSegment reports whether the URL names a transport-stream segment.
func IsTSSegment(rawURL string) bool {
	return strings.HasSuffix(strings.ToLower(urlPath(rawURL)), ".ts")
}

// IsDisguisedSegment reports whether the URL looks like a transport-stream
// segment served under a non-media extension.
func IsDisguisedSegment(rawURL string) bool {
	p := urlPath(rawURL)
	base := path.Base(p)
	ext := strings.ToLower(path.Ext(base))

	if disguiseExtensions[ext] {
		for _, re := range segmentNamePatterns {
			if re.MatchString(base) {
				return true
			}
		}
	}

	// Legacy rule: some origins serve "segment-...-v1-a1....jpg" paths.
	lower := strings.ToLower(p)
	if ext == ".jpg" && strings.Contains(lower, "segment-") && strings.Contains(lower, "-v1-a1") {
		return true
	}
	return false
}

// IsStreamingFormat reports whether the URL should take the stream fast
// path: a known streaming extension, a segment-like basename, or a
// disguised segment.
func IsStreamingFormat(rawURL string) bool {
	lower := strings.ToLower(urlPath(rawURL))
	for _, ext := range streamingExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	base := path.Base(lower)
	for _, re := range segmentNamePatterns {
		if re.MatchString(base) {
			return true
		}
	}
	return IsDisguisedSegment(rawURL)
}

// NeedsM3U8Rewriting reports whether a response body should run through the
// playlist rewriter, based on URL and upstream content type.
func NeedsM3U8Rewriting(rawURL, contentType string) bool {
	if IsM3U8(rawURL) {
		return true
	}
	ct := strings.ToLower(contentType)
	return strings.Contains(ct, "mpegurl") || strings.Contains(ct, "x-mpegurl")
}

// IsAudioSegment reports whether the response is an audio segment that must
// pass through byte-for-byte with its upstream Content-Encoding intact.
func IsAudioSegment(rawURL, contentType string) bool {
	ct := strings.ToLower(contentType)
	if strings.HasPrefix(ct, "audio/mp4") || strings.HasPrefix(ct, "audio/aac") {
		return true
	}
	lower := strings.ToLower(rawURL)
	return strings.HasSuffix(urlPath(lower), ".aac") || strings.Contains(lower, "mp4a.40")
}

// IsVTT reports whether the response is a WebVTT subtitle document.
func IsVTT(rawURL, contentType string) bool {
	if strings.HasSuffix(strings.ToLower(urlPath(rawURL)), ".vtt") {
		return true
	}
	return strings.Contains(strings.ToLower(contentType), "text/vtt")
}
