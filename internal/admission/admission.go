// SPDX-License-Identifier: MIT

// Package admission validates target URLs before the proxy touches the
// network. It is the only gate between client-supplied input and an
// upstream fetch.
package admission

import (
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"
)

// Result is the outcome of validating a single URL.
type Result struct {
	Valid    bool
	Hostname string // set when the input parsed as an absolute URL
	Reason   string // set when Valid is false
}

// Validator checks URL shape, length, and the optional host allow-list.
type Validator struct {
	maxLength    int
	allowedHosts []string
}

// New creates a Validator. An empty allow-list admits every host.
func New(maxLength int, allowedHosts []string) *Validator {
	if maxLength <= 0 {
		maxLength = 2048
	}
	hosts := make([]string, 0, len(allowedHosts))
	for _, h := range allowedHosts {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			hosts = append(hosts, h)
		}
	}
	return &Validator{maxLength: maxLength, allowedHosts: hosts}
}

// Validate checks a URL string. When requireProtocol is true the input must
// be an absolute http(s) URL; otherwise path-only and relative inputs are
// admitted with no checks beyond length.
func (v *Validator) Validate(raw string, requireProtocol bool) Result {
	if raw == "" {
		return Result{Reason: "URL is empty"}
	}
	if len(raw) > v.maxLength {
		return Result{Reason: fmt.Sprintf("URL exceeds maximum length of %d characters", v.maxLength)}
	}

	u, err := url.Parse(raw)
	if err != nil {
		if requireProtocol {
			return Result{Reason: "URL is not parseable"}
		}
		// Relative inputs are used for internal routing and pass through.
		return Result{Valid: true}
	}

	if u.Scheme == "" && !requireProtocol {
		return Result{Valid: true}
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return Result{Reason: fmt.Sprintf("unsupported URL scheme %q", u.Scheme)}
	}
	if u.Hostname() == "" {
		return Result{Reason: "URL has no hostname"}
	}
	if !v.hostAllowed(u.Hostname()) {
		return Result{Reason: fmt.Sprintf("host %q is not allowed", u.Hostname())}
	}
	return Result{Valid: true, Hostname: u.Hostname()}
}

func (v *Validator) hostAllowed(host string) bool {
	if len(v.allowedHosts) == 0 {
		return true
	}
	host = strings.ToLower(host)
	for _, allowed := range v.allowedHosts {
		if host == allowed {
			return true
		}
		// "*.example.com" admits any subdomain and the apex itself.
		if suffix, ok := strings.CutPrefix(allowed, "*."); ok {
			if host == suffix || strings.HasSuffix(host, "."+suffix) {
				return true
			}
		}
	}
	return false
}

// NormalizeInline prepares a URL taken from the request path: chi strips
// nothing, but clients routinely collapse "https://" to "https:/" when the
// path is normalised, and may omit the scheme entirely.
func NormalizeInline(raw string) string {
	raw = strings.TrimPrefix(raw, "/")
	if strings.HasPrefix(raw, "https:/") && !strings.HasPrefix(raw, "https://") {
		return "https://" + strings.TrimPrefix(raw, "https:/")
	}
	if strings.HasPrefix(raw, "http:/") && !strings.HasPrefix(raw, "http://") {
		return "http://" + strings.TrimPrefix(raw, "http:/")
	}
	if !strings.Contains(raw, "://") {
		return "https://" + raw
	}
	return raw
}

// DecodeBase64 decodes a base64-encoded URL, accepting both the standard
// and URL-safe alphabets, with or without padding.
func DecodeBase64(encoded string) (string, error) {
	for _, enc := range []*base64.Encoding{
		base64.StdEncoding,
		base64.URLEncoding,
		base64.RawStdEncoding,
		base64.RawURLEncoding,
	} {
		if b, err := enc.DecodeString(encoded); err == nil {
			return string(b), nil
		}
	}
	return "", fmt.Errorf("invalid base64 encoding")
}
