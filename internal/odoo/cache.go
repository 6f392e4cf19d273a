package odoo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/idfine/chatbot-platform/pkg/logging"
)

// Cache TTLs per data kind. Prices move with pricelists rarely; stock is
// near real time and only briefly cacheable.
const (
	ProductCacheTTL = 15 * time.Minute
	StockCacheTTL   = time.Minute
	PriceCacheTTL   = time.Hour
	PartnerCacheTTL = 30 * time.Minute
)

// Cache is a JSON value cache over redis, keyed under the odoo: prefix.
// A nil *Cache is a valid no-op cache.
type Cache struct {
	redis  *redis.Client
	logger *logging.Logger
}

// NewCache creates an ERP response cache.
func NewCache(rdb *redis.Client, logger *logging.Logger) *Cache {
	if rdb == nil {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Cache{redis: rdb, logger: logger}
}

func cacheKey(parts ...any) string {
	key := "odoo"
	for _, p := range parts {
		key += fmt.Sprintf(":%v", p)
	}
	return key
}

// Get loads a cached value into out. Returns false on miss; cache errors are
// logged and reported as misses so the caller falls through to the ERP.
func (c *Cache) Get(ctx context.Context, key string, out any) bool {
	if c == nil {
		return false
	}
	raw, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("odoo cache read failed", "key", key, "error", err)
		}
		return false
	}
	if err := json.Unmarshal(raw, out); err != nil {
		c.logger.Warn("odoo cache entry corrupt", "key", key, "error", err)
		return false
	}
	return true
}

// Set stores a value. Best effort.
func (c *Cache) Set(ctx context.Context, key string, v any, ttl time.Duration) {
	if c == nil {
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		c.logger.Warn("odoo cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.redis.Set(ctx, key, raw, ttl).Err(); err != nil {
		c.logger.Warn("odoo cache write failed", "key", key, "error", err)
	}
}

// Delete invalidates a key. Best effort.
func (c *Cache) Delete(ctx context.Context, key string) {
	if c == nil {
		return
	}
	if err := c.redis.Del(ctx, key).Err(); err != nil {
		c.logger.Warn("odoo cache delete failed", "key", key, "error", err)
	}
}
