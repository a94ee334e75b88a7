package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fiffu/vacancywatch/config"
	"github.com/fiffu/vacancywatch/lib/models"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const cacheKeyPrefix = "vacancywatch:search:"

// NewCatalog returns the catalog used by jobs: the trudvsem client, fronted
// by a redis result cache when REDIS_ADDR is set. Users sharing a filter
// then share a single upstream request per TTL window.
func NewCatalog(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger, client *Client) (Catalog, error) {
	if cfg.Redis.Addr == "" {
		log.Info("Search cache disabled since REDIS_ADDR is not set")
		return client, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	log.Sugar().Infow("Search cache connected", "addr", cfg.Redis.Addr)

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return rdb.Close()
		},
	})

	return NewCachedCatalog(client, rdb, cfg.Catalog.CacheTTL, log), nil
}

type CachedCatalog struct {
	next Catalog
	rdb  redis.Cmdable
	ttl  time.Duration
	log  *zap.Logger
}

func NewCachedCatalog(next Catalog, rdb redis.Cmdable, ttl time.Duration, log *zap.Logger) *CachedCatalog {
	return &CachedCatalog{next, rdb, ttl, log}
}

// Search serves from the cache when possible. Cache failures degrade to a
// direct search and never fail the call.
func (c *CachedCatalog) Search(ctx context.Context, filter models.Filter) (models.Postings, error) {
	key := CacheKey(filter)

	cached, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var postings models.Postings
		if err := json.Unmarshal(cached, &postings); err == nil {
			return postings, nil
		}
		c.log.Sugar().Warnw("Discarding unreadable cache entry", "key", key)
	case !errors.Is(err, redis.Nil):
		c.log.Sugar().Warnw("Search cache read failed", "key", key, "err", err)
	}

	postings, err := c.next.Search(ctx, filter)
	if err != nil {
		return nil, err
	}

	if payload, err := json.Marshal(postings); err == nil {
		if err := c.rdb.Set(ctx, key, payload, c.ttl).Err(); err != nil {
			c.log.Sugar().Warnw("Search cache write failed", "key", key, "err", err)
		}
	}
	return postings, nil
}

func CacheKey(filter models.Filter) string {
	b, _ := json.Marshal(filter)
	return cacheKeyPrefix + models.DigestContent(string(b))
}
