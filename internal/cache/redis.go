// SPDX-License-Identifier: MIT

package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const redisKeyPrefix = "hlsgate:response:"

// redisStore is a Redis-backed Store for deployments where several proxy
// instances should share one response cache. Size bounds are delegated to
// Redis' own maxmemory policy; the per-entry cap and TTL apply client-side.
type redisStore struct {
	client *redis.Client
	cfg    Config
	logger zerolog.Logger
	stats  struct {
		hits   atomic.Int64
		misses atomic.Int64
		sets   atomic.Int64
	}
}

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Addr     string // Redis server address (host:port)
	Password string // Redis password (optional)
	DB       int    // Redis database number
}

// NewRedis creates a Redis-backed cache. The connection is verified before
// the store is returned so callers can fall back to the memory backend.
func NewRedis(rc RedisConfig, cfg Config, logger zerolog.Logger) (Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         rc.Addr,
		Password:     rc.Password,
		DB:           rc.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	logger.Info().
		Str("addr", rc.Addr).
		Int("db", rc.DB).
		Msg("connected to Redis response cache")

	return &redisStore{client: client, cfg: cfg, logger: logger}, nil
}

func (c *redisStore) Get(key string) (Entry, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	val, err := c.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if err == redis.Nil {
		c.stats.misses.Add(1)
		return Entry{}, false
	}
	if err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("redis get failed")
		c.stats.misses.Add(1)
		return Entry{}, false
	}

	var e Entry
	if err := json.Unmarshal(val, &e); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("cache entry unmarshal failed")
		c.stats.misses.Add(1)
		return Entry{}, false
	}
	c.stats.hits.Add(1)
	return e, true
}

func (c *redisStore) Put(key string, e Entry) {
	if c.cfg.EntryMaxBytes > 0 && int64(len(e.Body)) > c.cfg.EntryMaxBytes {
		return
	}
	if e.InsertedAt.IsZero() {
		e.InsertedAt = time.Now()
	}

	data, err := json.Marshal(e)
	if err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("cache entry marshal failed")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	ttl := c.cfg.TTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if err := c.client.Set(ctx, redisKeyPrefix+key, data, ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("redis set failed")
		return
	}
	c.stats.sets.Add(1)
}

func (c *redisStore) Stats() Stats {
	s := Stats{
		Hits:    c.stats.hits.Load(),
		Misses:  c.stats.misses.Load(),
		Sets:    c.stats.sets.Load(),
		MaxSize: c.cfg.MaxBytes,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, redisKeyPrefix+"*", 500).Result()
		if err != nil {
			break
		}
		s.Entries += len(keys)
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return s
}

func (c *redisStore) Clear() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, redisKeyPrefix+"*", 500).Result()
		if err != nil {
			c.logger.Warn().Err(err).Msg("redis scan failed during clear")
			return
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				c.logger.Warn().Err(err).Msg("redis del failed during clear")
				return
			}
		}
		cursor = next
		if cursor == 0 {
			return
		}
	}
}
