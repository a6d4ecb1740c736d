// SPDX-License-Identifier: MIT

package cache

import (
	"bytes"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryPutGetRoundTrip(t *testing.T) {
	c := NewMemory(Config{MaxBytes: 1 << 20, EntryMaxBytes: 10 << 20})

	body := []byte("cached response body")
	c.Put("k1", Entry{Body: body, ContentType: "video/mp2t"})

	e, ok := c.Get("k1")
	require.True(t, ok)
	assert.Equal(t, body, e.Body)
	assert.Equal(t, "video/mp2t", e.ContentType)
	assert.False(t, e.InsertedAt.IsZero())
}

func TestMemoryOversizedEntryIsNoop(t *testing.T) {
	c := NewMemory(Config{MaxBytes: 100 << 20, EntryMaxBytes: 10 << 20})

	c.Put("big", Entry{Body: make([]byte, 10<<20+1)})
	_, ok := c.Get("big")
	assert.False(t, ok)
	assert.Equal(t, int64(0), c.Stats().Sets)
}

func TestMemoryEvictsLeastRecentlyInserted(t *testing.T) {
	c := NewMemory(Config{MaxBytes: 3000, EntryMaxBytes: 10 << 20})

	for i := 0; i < 4; i++ {
		c.Put(fmt.Sprintf("k%d", i), Entry{Body: bytes.Repeat([]byte{byte(i)}, 1000)})
	}

	// k0 was inserted first and must be gone; the newest entries survive.
	_, ok := c.Get("k0")
	assert.False(t, ok)
	_, ok = c.Get("k3")
	assert.True(t, ok)

	stats := c.Stats()
	assert.LessOrEqual(t, stats.ResidentSize, int64(3000))
	assert.GreaterOrEqual(t, stats.Evictions, int64(1))
}

func TestMemoryHitsDoNotRefreshInsertionOrder(t *testing.T) {
	c := NewMemory(Config{MaxBytes: 2000, EntryMaxBytes: 10 << 20})

	c.Put("old", Entry{Body: make([]byte, 1000)})
	c.Put("mid", Entry{Body: make([]byte, 1000)})

	// Hitting "old" must not save it from insertion-order eviction.
	_, ok := c.Get("old")
	require.True(t, ok)

	c.Put("new", Entry{Body: make([]byte, 1000)})
	_, ok = c.Get("old")
	assert.False(t, ok)
}

func TestMemoryTTLExpiry(t *testing.T) {
	c := NewMemory(Config{MaxBytes: 1 << 20, EntryMaxBytes: 10 << 20, TTL: 50 * time.Millisecond})

	c.Put("k", Entry{Body: []byte("x")})
	_, ok := c.Get("k")
	require.True(t, ok)

	time.Sleep(80 * time.Millisecond)
	_, ok = c.Get("k")
	assert.False(t, ok)
}

func TestMemoryClear(t *testing.T) {
	c := NewMemory(Config{MaxBytes: 1 << 20, EntryMaxBytes: 10 << 20})
	c.Put("a", Entry{Body: []byte("1")})
	c.Put("b", Entry{Body: []byte("2")})

	c.Clear()

	stats := c.Stats()
	assert.Equal(t, 0, stats.Entries)
	assert.Equal(t, int64(0), stats.ResidentSize)
}

func TestFingerprintStability(t *testing.T) {
	h1 := http.Header{}
	h1.Set("Accept", "*/*")
	h1.Set("User-Agent", "player/1.0")
	h1.Set("Range", "bytes=0-100")

	h2 := http.Header{}
	h2.Set("User-Agent", "player/1.0")
	h2.Set("Accept", "*/*")
	h2.Set("Range", "bytes=500-900") // Range never affects the key

	url := "https://cdn.example.com/master.m3u8"
	assert.Equal(t, Fingerprint(url, h1), Fingerprint(url, h2))

	h2.Set("User-Agent", "player/2.0")
	assert.NotEqual(t, Fingerprint(url, h1), Fingerprint(url, h2))
	assert.NotEqual(t, Fingerprint(url, h1), Fingerprint(url+"?x=1", h1))
}

func TestParseRange(t *testing.T) {
	tests := []struct {
		header     string
		size       int64
		start, end int64
		ok         bool
	}{
		{"bytes=0-1023", 2 << 20, 0, 1023, true},
		{"bytes=100-", 1000, 100, 999, true},
		{"bytes=-100", 1000, 900, 999, true},
		{"bytes=0-0", 1, 0, 0, true},
		{"bytes=500-100", 1000, 0, 0, false}, // start > end
		{"bytes=0-9999", 1000, 0, 0, false},  // end >= size
		{"bytes=0-10,20-30", 1000, 0, 0, false},
		{"", 1000, 0, 0, false},
		{"items=0-10", 1000, 0, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			start, end, ok := ParseRange(tt.header, tt.size)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.start, start)
				assert.Equal(t, tt.end, end)
			}
		})
	}
}
