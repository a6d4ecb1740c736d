// SPDX-License-Identifier: MIT

package cache

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// representationHeaders is the stable projection of request headers that can
// change the upstream representation. Range is deliberately absent: range
// requests are sliced from the full cached body.
var representationHeaders = []string{
	"accept",
	"accept-language",
	"origin",
	"referer",
	"user-agent",
}

// Fingerprint derives the cache key for a target URL and request headers.
// The projection is sorted and fixed so equivalent requests always collide.
func Fingerprint(targetURL string, headers http.Header) string {
	h := xxhash.New()
	_, _ = h.WriteString(targetURL)
	for _, name := range representationHeaders {
		if v := headers.Get(name); v != "" {
			_, _ = h.WriteString("|" + name + "=" + v)
		}
	}
	return strconv.FormatUint(h.Sum64(), 16)
}

// ParseRange parses a single-range "bytes=a-b" header against a body of the
// given size. It returns ok=false for absent, multi-range, or out-of-bounds
// specs; callers then serve the full body.
func ParseRange(header string, size int64) (start, end int64, ok bool) {
	spec, found := strings.CutPrefix(strings.TrimSpace(header), "bytes=")
	if !found || strings.Contains(spec, ",") {
		return 0, 0, false
	}
	from, to, found := strings.Cut(spec, "-")
	if !found {
		return 0, 0, false
	}
	from, to = strings.TrimSpace(from), strings.TrimSpace(to)

	switch {
	case from == "" && to == "":
		return 0, 0, false
	case from == "":
		// Suffix range: last N bytes.
		n, err := strconv.ParseInt(to, 10, 64)
		if err != nil || n <= 0 {
			return 0, 0, false
		}
		if n > size {
			n = size
		}
		return size - n, size - 1, size > 0
	default:
		s, err := strconv.ParseInt(from, 10, 64)
		if err != nil || s < 0 {
			return 0, 0, false
		}
		e := size - 1
		if to != "" {
			e, err = strconv.ParseInt(to, 10, 64)
			if err != nil {
				return 0, 0, false
			}
		}
		if s > e || e >= size {
			return 0, 0, false
		}
		return s, e, true
	}
}
