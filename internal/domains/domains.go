// SPDX-License-Identifier: MIT

// Package domains synthesizes the upstream request identity. Media CDNs
// enforce Origin/Referer checks, so each target host is matched against an
// ordered template list that supplies the headers the origin expects.
package domains

import (
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"path"
	"regexp"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Template binds a host pattern to the headers synthesized for it.
type Template struct {
	// Pattern matches the target hostname: a glob ("*.akamaized.net") or,
	// with a "~" prefix, a regular expression.
	Pattern string `yaml:"pattern"`
	// Headers are static headers sent to every matching host.
	Headers map[string]string `yaml:"headers"`
	// DeriveOrigin sets Origin and Referer from the target URL itself.
	DeriveOrigin bool `yaml:"deriveOrigin"`

	re *regexp.Regexp
}

// userAgents is the fixed rotation used for upstream requests.
var userAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.5 Safari/605.1.15",
	"Mozilla/5.0 (X11; Linux x86_64; rv:127.0) Gecko/20100101 Firefox/127.0",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/125.0.0.0 Safari/537.36 Edg/125.0.0.0",
}

// headerDropSet are client headers never forwarded upstream. The forwarding
// set would leak the proxy's topology; cache-control and pragma would poison
// upstream caching.
var headerDropSet = map[string]bool{
	"host":           true,
	"connection":     true,
	"content-length": true,
	"forwarded":      true,
	"cache-control":  true,
	"pragma":         true,
}

// defaultTemplates cover the common CDN families; the final entry matches
// every host and must stay last.
func defaultTemplates() []Template {
	return []Template{
		{
			Pattern:      "*.akamaized.net",
			DeriveOrigin: true,
			Headers: map[string]string{
				"Accept":          "*/*",
				"Accept-Language": "en-US,en;q=0.9",
			},
		},
		{
			Pattern:      "*.cloudfront.net",
			DeriveOrigin: true,
			Headers: map[string]string{
				"Accept": "*/*",
			},
		},
		{
			Pattern:      "*",
			DeriveOrigin: true,
			Headers: map[string]string{
				"Accept":          "*/*",
				"Accept-Language": "en-US,en;q=0.9",
				"Accept-Encoding": "gzip, deflate, br, zstd",
			},
		},
	}
}

// Registry resolves hostnames to synthesized header maps. Lookup order is
// significant: the first matching template wins.
type Registry struct {
	templates []Template
	// headerCache maps hostname to an immutable static header snapshot.
	headerCache sync.Map
	logger      zerolog.Logger
}

// New creates a Registry with the built-in template set.
func New(logger zerolog.Logger) *Registry {
	r := &Registry{logger: logger}
	r.templates = compile(defaultTemplates(), logger)
	return r
}

func compile(templates []Template, logger zerolog.Logger) []Template {
	out := make([]Template, 0, len(templates))
	for _, t := range templates {
		if expr, ok := strings.CutPrefix(t.Pattern, "~"); ok {
			re, err := regexp.Compile(expr)
			if err != nil {
				logger.Warn().Err(err).Str("pattern", t.Pattern).Msg("skipping template with invalid regex")
				continue
			}
			t.re = re
		}
		out = append(out, t)
	}
	return out
}

// match returns the first template whose pattern matches the hostname. The
// trailing catch-all guarantees a result.
func (r *Registry) match(hostname string) Template {
	hostname = strings.ToLower(hostname)
	for _, t := range r.templates {
		if t.re != nil {
			if t.re.MatchString(hostname) {
				return t
			}
			continue
		}
		if ok, err := path.Match(strings.ToLower(t.Pattern), hostname); err == nil && ok {
			return t
		}
	}
	return r.templates[len(r.templates)-1]
}

// hostEntry is the immutable per-host snapshot kept in the header cache.
type hostEntry struct {
	headers http.Header
	derive  bool
}

// staticHeaders returns the cached immutable header snapshot for a host.
func (r *Registry) staticHeaders(hostname string) hostEntry {
	if v, ok := r.headerCache.Load(hostname); ok {
		return v.(hostEntry)
	}
	t := r.match(hostname)
	h := http.Header{}
	for k, v := range t.Headers {
		h.Set(k, v)
	}
	e := hostEntry{headers: h, derive: t.DeriveOrigin}
	r.headerCache.Store(hostname, e)
	return e
}

// Synthesize builds the upstream request headers for a target URL: client
// headers minus the drop set, overlaid with the matched template's headers,
// Host rewritten, and a User-Agent drawn from the rotation.
func (r *Registry) Synthesize(target *url.URL, clientHeaders http.Header) http.Header {
	out := http.Header{}
	for name, values := range clientHeaders {
		lower := strings.ToLower(name)
		if headerDropSet[lower] || strings.HasPrefix(lower, "x-forwarded-") {
			continue
		}
		for _, v := range values {
			out.Add(name, v)
		}
	}

	entry := r.staticHeaders(target.Hostname())
	for name, values := range entry.headers {
		out.Del(name)
		for _, v := range values {
			out.Add(name, v)
		}
	}
	if entry.derive {
		origin := fmt.Sprintf("%s://%s", target.Scheme, target.Host)
		out.Set("Origin", origin)
		out.Set("Referer", origin+"/")
	}

	out.Set("Host", target.Host)
	out.Set("User-Agent", userAgents[rand.Intn(len(userAgents))])
	return out
}
