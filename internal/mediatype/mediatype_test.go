// SPDX-License-Identifier: MIT

package mediatype

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestByExtension(t *testing.T) {
	assert.Equal(t, MimeM3U8, ByExtension("https://cdn.example.com/live/master.m3u8"))
	assert.Equal(t, MimeTS, ByExtension("https://cdn.example.com/seg-1.ts?token=x"))
	assert.Equal(t, MimeVTT, ByExtension("https://cdn.example.com/sub.vtt"))
	assert.Equal(t, "", ByExtension("https://cdn.example.com/page"))
}

func TestIsDisguisedSegment(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"https://cdn.example.com/seg-00012.js", true},
		{"https://cdn.example.com/segment-5.jpg", true},
		{"https://cdn.example.com/chunk-17.png", true},
		{"https://cdn.example.com/hls/1080p-v1-a1.html", true},
		{"https://cdn.example.com/path/segment-720p-v1-a1-x.jpg", true},
		{"https://cdn.example.com/seg-1.ts", false},   // real media extension
		{"https://cdn.example.com/app.js", false},     // no segment pattern
		{"https://cdn.example.com/photo.jpg", false},  // plain image
		{"https://cdn.example.com/master.m3u8", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsDisguisedSegment(tt.url), "url %q", tt.url)
	}
}

func TestIsStreamingFormat(t *testing.T) {
	assert.True(t, IsStreamingFormat("https://cdn.example.com/a.m3u8"))
	assert.True(t, IsStreamingFormat("https://cdn.example.com/a.mp4"))
	assert.True(t, IsStreamingFormat("https://cdn.example.com/seg-44.js"))
	assert.True(t, IsStreamingFormat("https://cdn.example.com/segment003.bin"))
	assert.False(t, IsStreamingFormat("https://cdn.example.com/index.html"))
}

func TestNeedsM3U8Rewriting(t *testing.T) {
	assert.True(t, NeedsM3U8Rewriting("https://cdn.example.com/x.m3u8", ""))
	assert.True(t, NeedsM3U8Rewriting("https://cdn.example.com/playlist", "application/x-mpegURL"))
	assert.False(t, NeedsM3U8Rewriting("https://cdn.example.com/a.ts", "video/mp2t"))
}

func TestIsAudioSegment(t *testing.T) {
	assert.True(t, IsAudioSegment("https://cdn.example.com/a.m4s", "audio/mp4"))
	assert.True(t, IsAudioSegment("https://cdn.example.com/a.aac", ""))
	assert.True(t, IsAudioSegment("https://cdn.example.com/init-mp4a.40.2.m4s", ""))
	assert.False(t, IsAudioSegment("https://cdn.example.com/v.m4s", "video/iso.segment"))
}

func TestSniffTS(t *testing.T) {
	packet := func(n int) []byte {
		buf := make([]byte, n)
		for i := 0; i < n; i += tsPacketSize {
			buf[i] = tsSyncByte
		}
		return buf
	}

	// Two aligned sync bytes: positive.
	assert.True(t, SniffTS(packet(2*tsPacketSize)))
	assert.True(t, SniffTS(packet(6*tsPacketSize)))

	// Sync byte but buffer shorter than one packet: negative.
	short := make([]byte, 100)
	short[0] = tsSyncByte
	assert.False(t, SniffTS(short))

	// One packet, no second sync byte in range: negative.
	one := make([]byte, tsPacketSize)
	one[0] = tsSyncByte
	assert.False(t, SniffTS(one))

	// Missing initial sync byte: negative regardless of length.
	noSync := packet(4 * tsPacketSize)
	noSync[0] = 0x00
	assert.False(t, SniffTS(noSync))
}

func TestArbitrate(t *testing.T) {
	ts := make([]byte, 2*tsPacketSize)
	ts[0], ts[tsPacketSize] = tsSyncByte, tsSyncByte

	assert.Equal(t, MimeTS, Arbitrate(ts, "https://cdn.example.com/x.bin", "image/jpeg"))
	assert.Equal(t, MimeM3U8, Arbitrate([]byte("#EXTM3U"), "https://cdn.example.com/x.m3u8", "text/plain"))
	assert.Equal(t, MimeTS, Arbitrate([]byte("x"), "https://cdn.example.com/seg-1.js", "text/javascript"))
	assert.Equal(t, "image/png", Arbitrate([]byte("x"), "https://cdn.example.com/logo", "image/png"))
	assert.Equal(t, MimeOctet, Arbitrate([]byte("x"), "https://cdn.example.com/blob", ""))
}
