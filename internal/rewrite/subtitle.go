// SPDX-License-Identifier: MIT

package rewrite

import (
	"net/url"
	"regexp"
)

// imageRefRegex matches image references inside WebVTT cues: thumbnail
// sprites and storyboard images.
var imageRefRegex = regexp.MustCompile(`(?i)[^\s"']+?\.(jpg|jpeg|png|gif|webp)`)

// Subtitle rewrites every image reference in a VTT document to flow through
// the proxy. Any failure returns the original text unmodified.
func (r *Rewriter) Subtitle(content string, target *url.URL) string {
	if target == nil || target.Host == "" {
		return content
	}

	// Single pass: each textual occurrence is replaced exactly once, so a
	// reference that is a substring of another cannot corrupt the output.
	rewritten := imageRefRegex.ReplaceAllStringFunc(content, func(ref string) string {
		return r.proxyURL(ref, target)
	})
	return rewritten
}
