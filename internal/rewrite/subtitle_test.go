// SPDX-License-Identifier: MIT

package rewrite

import (
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubtitleRewritesImageReferences(t *testing.T) {
	vtt := strings.Join([]string{
		"WEBVTT",
		"",
		"00:00:00.000 --> 00:00:05.000",
		"thumb-001.jpg#xywh=0,0,160,90",
		"",
		"00:00:05.000 --> 00:00:10.000",
		"/thumbs/thumb-002.png#xywh=160,0,160,90",
		"",
		"00:00:10.000 --> 00:00:15.000",
		"https://img.example.net/thumb-003.webp",
	}, "\n")

	out := newRewriter(false).Subtitle(vtt, target(t, "https://cdn.example.com/subs/story.vtt"))

	assert.Contains(t, out, "http://localhost:8080/?url="+url.QueryEscape("https://cdn.example.com/subs/thumb-001.jpg"))
	assert.Contains(t, out, "http://localhost:8080/?url="+url.QueryEscape("https://cdn.example.com/thumbs/thumb-002.png"))
	assert.Contains(t, out, "http://localhost:8080/?url="+url.QueryEscape("https://img.example.net/thumb-003.webp"))

	// Cue timing and header lines are untouched.
	assert.Contains(t, out, "WEBVTT\n")
	assert.Contains(t, out, "00:00:00.000 --> 00:00:05.000")
	// Sprite fragments survive outside the rewritten URL.
	assert.Contains(t, out, "#xywh=0,0,160,90")
}

func TestSubtitleRepeatedReferenceRewrittenEverywhere(t *testing.T) {
	vtt := "WEBVTT\n\nsprite.jpg#xywh=0,0,10,10\n\nsprite.jpg#xywh=10,0,10,10\n"
	out := newRewriter(false).Subtitle(vtt, target(t, "https://cdn.example.com/s.vtt"))

	proxied := "http://localhost:8080/?url=" + url.QueryEscape("https://cdn.example.com/sprite.jpg")
	assert.Equal(t, 2, strings.Count(out, proxied))
	assert.NotContains(t, out, "\nsprite.jpg")
}

func TestSubtitleCaseInsensitiveExtensions(t *testing.T) {
	vtt := "WEBVTT\n\nTHUMB.JPG\nimage.JpEg\n"
	out := newRewriter(false).Subtitle(vtt, target(t, "https://cdn.example.com/s.vtt"))

	assert.Contains(t, out, url.QueryEscape("https://cdn.example.com/THUMB.JPG"))
	assert.Contains(t, out, url.QueryEscape("https://cdn.example.com/image.JpEg"))
}

func TestSubtitleNoImagesIsIdentity(t *testing.T) {
	vtt := "WEBVTT\n\n00:00:00.000 --> 00:00:05.000\nHello world\n"
	out := newRewriter(false).Subtitle(vtt, target(t, "https://cdn.example.com/s.vtt"))
	assert.Equal(t, vtt, out)
}

func TestSubtitleNilTargetIsIdentity(t *testing.T) {
	vtt := "WEBVTT\n\nthumb.jpg\n"
	assert.Equal(t, vtt, newRewriter(false).Subtitle(vtt, nil))
}
