// SPDX-License-Identifier: MIT

package admission

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAbsoluteURLs(t *testing.T) {
	v := New(2048, nil)

	tests := []struct {
		name     string
		url      string
		valid    bool
		hostname string
	}{
		{"https", "https://cdn.example.com/master.m3u8", true, "cdn.example.com"},
		{"http", "http://cdn.example.com/seg-1.ts", true, "cdn.example.com"},
		{"with query", "https://cdn.example.com/v.m3u8?token=abc", true, "cdn.example.com"},
		{"ftp scheme", "ftp://cdn.example.com/file", false, ""},
		{"no host", "https:///path", false, ""},
		{"empty", "", false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := v.Validate(tt.url, true)
			assert.Equal(t, tt.valid, res.Valid)
			assert.Equal(t, tt.hostname, res.Hostname)
			if !tt.valid {
				assert.NotEmpty(t, res.Reason)
			}
		})
	}
}

func TestValidateLength(t *testing.T) {
	v := New(64, nil)
	long := "https://cdn.example.com/" + strings.Repeat("a", 100)

	res := v.Validate(long, true)
	require.False(t, res.Valid)
	assert.Contains(t, res.Reason, "maximum length")
}

func TestValidateRelativePassesWithoutProtocol(t *testing.T) {
	v := New(2048, nil)

	assert.True(t, v.Validate("/status", false).Valid)
	assert.True(t, v.Validate("segment-001.ts", false).Valid)
	assert.False(t, v.Validate("/status", true).Valid)
}

func TestAllowList(t *testing.T) {
	v := New(2048, []string{"cdn.example.com", "*.akamaized.net"})

	assert.True(t, v.Validate("https://cdn.example.com/a.m3u8", true).Valid)
	assert.True(t, v.Validate("https://live.akamaized.net/a.m3u8", true).Valid)
	assert.True(t, v.Validate("https://akamaized.net/a.m3u8", true).Valid)

	res := v.Validate("https://evil.example.org/a.m3u8", true)
	require.False(t, res.Valid)
	assert.Contains(t, res.Reason, "not allowed")
}

func TestNormalizeInline(t *testing.T) {
	tests := []struct{ in, want string }{
		{"https://cdn.example.com/a.ts", "https://cdn.example.com/a.ts"},
		{"https:/cdn.example.com/a.ts", "https://cdn.example.com/a.ts"},
		{"http:/cdn.example.com/a.ts", "http://cdn.example.com/a.ts"},
		{"cdn.example.com/a.ts", "https://cdn.example.com/a.ts"},
		{"/cdn.example.com/a.ts", "https://cdn.example.com/a.ts"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeInline(tt.in), "input %q", tt.in)
	}
}

func TestDecodeBase64(t *testing.T) {
	target := "https://cdn.example.com/sub.vtt?sig=a+b/c"

	for _, enc := range []*base64.Encoding{
		base64.StdEncoding,
		base64.URLEncoding,
		base64.RawStdEncoding,
		base64.RawURLEncoding,
	} {
		got, err := DecodeBase64(enc.EncodeToString([]byte(target)))
		require.NoError(t, err)
		assert.Equal(t, target, got)
	}

	_, err := DecodeBase64("%%%not-base64%%%")
	assert.Error(t, err)
}
