// SPDX-License-Identifier: MIT

// Package cache provides the response cache: a bounded in-memory store
// keyed by request fingerprint, with an optional Redis backend for shared
// deployments.
package cache

import (
	"container/list"
	"sync"
	"time"
)

// Entry is one cached response body.
type Entry struct {
	Body        []byte    `json:"body"`
	ContentType string    `json:"contentType"`
	InsertedAt  time.Time `json:"insertedAt"`
}

// Stats holds cache performance counters.
type Stats struct {
	Hits         int64 `json:"hits"`
	Misses       int64 `json:"misses"`
	Sets         int64 `json:"sets"`
	Evictions    int64 `json:"evictions"`
	Entries      int   `json:"entries"`
	ResidentSize int64 `json:"residentBytes"`
	MaxSize      int64 `json:"maxBytes"`
}

// Store is the response cache contract consumed by the proxy pipeline.
type Store interface {
	// Get retrieves an entry. Returns false if absent or expired.
	Get(key string) (Entry, bool)
	// Put stores an entry. Oversized entries are silently dropped.
	Put(key string, e Entry)
	// Stats returns cache telemetry.
	Stats() Stats
	// Clear removes all entries.
	Clear()
}

// Config bounds a cache instance.
type Config struct {
	MaxBytes      int64         // soft cap on total resident bytes
	EntryMaxBytes int64         // absolute per-entry cap
	TTL           time.Duration // entry lifetime; zero disables expiry
}

type memEntry struct {
	key   string
	entry Entry
}

// memoryStore is the default in-memory implementation. Eviction is
// least-recently-inserted: hits do not refresh an entry's position.
type memoryStore struct {
	mu      sync.Mutex
	cfg     Config
	entries map[string]*list.Element
	order   *list.List // front = oldest insertion
	size    int64
	stats   Stats
}

// NewMemory creates a bounded in-memory cache.
func NewMemory(cfg Config) Store {
	return &memoryStore{
		cfg:     cfg,
		entries: make(map[string]*list.Element),
		order:   list.New(),
	}
}

func (c *memoryStore) Get(key string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		c.stats.Misses++
		return Entry{}, false
	}
	me := el.Value.(*memEntry)
	if c.cfg.TTL > 0 && time.Since(me.entry.InsertedAt) > c.cfg.TTL {
		c.removeLocked(el)
		c.stats.Misses++
		return Entry{}, false
	}
	c.stats.Hits++
	return me.entry, true
}

func (c *memoryStore) Put(key string, e Entry) {
	size := int64(len(e.Body))
	if c.cfg.EntryMaxBytes > 0 && size > c.cfg.EntryMaxBytes {
		return
	}
	if e.InsertedAt.IsZero() {
		e.InsertedAt = time.Now()
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		c.removeLocked(el)
	}
	el := c.order.PushBack(&memEntry{key: key, entry: e})
	c.entries[key] = el
	c.size += size
	c.stats.Sets++

	// Evict oldest insertions until back under the soft cap.
	for c.cfg.MaxBytes > 0 && c.size > c.cfg.MaxBytes {
		oldest := c.order.Front()
		if oldest == nil || oldest == el {
			break
		}
		c.removeLocked(oldest)
		c.stats.Evictions++
	}
}

func (c *memoryStore) removeLocked(el *list.Element) {
	me := el.Value.(*memEntry)
	c.order.Remove(el)
	delete(c.entries, me.key)
	c.size -= int64(len(me.entry.Body))
}

func (c *memoryStore) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.stats
	s.Entries = c.order.Len()
	s.ResidentSize = c.size
	s.MaxSize = c.cfg.MaxBytes
	return s
}

func (c *memoryStore) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*list.Element)
	c.order.Init()
	c.size = 0
}
