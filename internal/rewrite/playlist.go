// SPDX-License-Identifier: MIT

// Package rewrite routes nested media references back through the proxy.
// HLS manifests and WebVTT subtitles name resources on hosts the client is
// not permitted to reach directly; every such reference is resolved to an
// absolute URL and re-expressed as a proxy query.
package rewrite

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
)

// Options configure a rewriter instance.
type Options struct {
	// ProxyBaseURL is the externally visible proxy endpoint, e.g.
	// "http://localhost:8080/".
	ProxyBaseURL string
	// URLParamName is the query parameter carrying the target ("url").
	URLParamName string
	// PreserveQueryParams appends the target URL's query string to resolved
	// references that carry none of their own. Some origins sign segment
	// URLs only through the playlist query.
	PreserveQueryParams bool

	Logger zerolog.Logger
}

// uriAttrRegex extracts the URI attribute from tags such as EXT-X-KEY,
// EXT-X-MEDIA, EXT-X-MAP, EXT-X-I-FRAME-STREAM-INF, and EXT-X-PART.
var uriAttrRegex = regexp.MustCompile(`URI="([^"]*)"`)

// Rewriter rewrites manifest and subtitle bodies.
type Rewriter struct {
	opts Options
}

// New creates a Rewriter. An empty URLParamName defaults to "url".
func New(opts Options) *Rewriter {
	if opts.URLParamName == "" {
		opts.URLParamName = "url"
	}
	opts.ProxyBaseURL = strings.TrimSuffix(opts.ProxyBaseURL, "?")
	return &Rewriter{opts: opts}
}

// Playlist rewrites every resource reference in an M3U8 manifest to flow
// through the proxy. Input lacking the #EXTM3U marker is returned unchanged.
// Line endings and non-URI lines are preserved byte-for-byte.
func (r *Rewriter) Playlist(content string, target *url.URL) string {
	if !strings.Contains(strings.ToUpper(content), "#EXTM3U") {
		r.opts.Logger.Warn().
			Str("target", target.String()).
			Msg("body does not look like an M3U8 playlist, passing through")
		return content
	}

	lines := strings.Split(content, "\n")
	for i, line := range lines {
		// Carriage returns belong to the line ending, not the URI.
		body, hadCR := strings.CutSuffix(line, "\r")
		trimmed := strings.TrimSpace(body)

		switch {
		case trimmed == "":
			continue
		case strings.HasPrefix(trimmed, "#"):
			if !uriAttrRegex.MatchString(body) {
				continue
			}
			body = uriAttrRegex.ReplaceAllStringFunc(body, func(m string) string {
				ref := uriAttrRegex.FindStringSubmatch(m)[1]
				if ref == "" {
					return m
				}
				return `URI="` + r.proxyURL(ref, target) + `"`
			})
		default:
			// A bare line after EXTINF (or in a master playlist) is a URI.
			indent := body[:len(body)-len(strings.TrimLeft(body, " \t"))]
			body = indent + r.proxyURL(trimmed, target)
		}

		if hadCR {
			body += "\r"
		}
		lines[i] = body
	}
	return strings.Join(lines, "\n")
}

// proxyURL resolves ref against the target URL and wraps it in a proxy
// query. References that already point at the proxy are left alone so a
// second rewrite pass is harmless.
func (r *Rewriter) proxyURL(ref string, target *url.URL) string {
	if strings.HasPrefix(ref, r.opts.ProxyBaseURL+"?") {
		return ref
	}

	resolved, err := resolveReference(ref, target)
	if err != nil {
		r.opts.Logger.Warn().
			Err(err).
			Str("reference", ref).
			Msg("unresolvable playlist reference, leaving unchanged")
		return ref
	}

	if r.opts.PreserveQueryParams && resolved.RawQuery == "" && target.RawQuery != "" {
		resolved.RawQuery = target.RawQuery
	}

	return fmt.Sprintf("%s?%s=%s", r.opts.ProxyBaseURL, r.opts.URLParamName, url.QueryEscape(resolved.String()))
}

// resolveReference turns an absolute, protocol-relative, root-relative, or
// path-relative reference into an absolute URL on the target's origin.
func resolveReference(ref string, target *url.URL) (*url.URL, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return nil, err
	}
	resolved := target.ResolveReference(u)
	if resolved.Scheme != "http" && resolved.Scheme != "https" || resolved.Host == "" {
		return nil, fmt.Errorf("reference %q did not resolve to an absolute URL", ref)
	}
	return resolved, nil
}
