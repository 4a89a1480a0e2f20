package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

const cacheKeyPrefix = "playgate:content:"

type CacheConfig struct {
	TTL           time.Duration
	Timeout       time.Duration // per redis call
	LookupTimeout time.Duration // per shared store lookup
}

func (c CacheConfig) withDefaultValues() CacheConfig {
	if c.TTL == 0 {
		c.TTL = 5 * time.Minute
	}
	if c.Timeout == 0 {
		c.Timeout = 500 * time.Millisecond
	}
	if c.LookupTimeout == 0 {
		c.LookupTimeout = 5 * time.Second
	}
	return c
}

// CachedStore is a read-through redis cache in front of a Store. Redis
// errors never fail a lookup, the backing store is asked instead.
type CachedStore struct {
	logger zerolog.Logger
	config CacheConfig
	store  Store
	client redis.UniversalClient
	group  singleflight.Group
}

func NewCachedStore(store Store, client redis.UniversalClient, config *CacheConfig) *CachedStore {
	return &CachedStore{
		logger: log.With().Str("module", "metadata").Str("submodule", "cache").Logger(),
		config: config.withDefaultValues(),
		store:  store,
		client: client,
	}
}

func cacheKey(id string, kind Kind) string {
	return fmt.Sprintf("%s%s:%s", cacheKeyPrefix, kind, id)
}

func (c *CachedStore) FindContent(ctx context.Context, id string, kind Kind) (*Record, error) {
	key := cacheKey(id, kind)

	if rec, ok := c.get(ctx, key); ok {
		return rec, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		// shared by every waiter, one caller going away must not fail the others
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.config.LookupTimeout)
		defer cancel()

		rec, err := c.store.FindContent(ctx, id, kind)
		if err != nil {
			return nil, err
		}

		c.set(ctx, key, rec)
		return rec, nil
	})
	if err != nil {
		return nil, err
	}

	// copy, callers must not share the singleflight result
	rec := *v.(*Record)
	return &rec, nil
}

func (c *CachedStore) get(ctx context.Context, key string) (*Record, bool) {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		c.logger.Debug().Str("key", key).Msg("cache miss")
		return nil, false
	}
	if err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("redis get failed")
		return nil, false
	}

	rec := &Record{}
	if err := json.Unmarshal(data, rec); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("corrupted cache entry")
		return nil, false
	}

	c.logger.Debug().Str("key", key).Msg("cache hit")
	return rec, true
}

func (c *CachedStore) set(ctx context.Context, key string, rec *Record) {
	data, err := json.Marshal(rec)
	if err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.config.Timeout)
	defer cancel()

	if err := c.client.Set(ctx, key, data, c.config.TTL).Err(); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("redis set failed")
	}
}
