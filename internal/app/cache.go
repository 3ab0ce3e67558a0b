package app

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Entries are short-lived: the public booking page polls slots, and a stale
// answer self-corrects at booking time anyway (the conflict resolver is the
// authority).
const slotCacheTTL = 30 * time.Second

// SlotCache keeps recent slot responses in redis. Optional: every method is
// a no-op on a nil receiver, so the app runs identically without REDIS_URL.
type SlotCache struct {
	rdb *redis.Client
}

func NewSlotCache(url string) (*SlotCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return &SlotCache{rdb: redis.NewClient(opts)}, nil
}

func (c *SlotCache) Close() error {
	if c == nil {
		return nil
	}
	return c.rdb.Close()
}

func slotCacheKey(eventTypeID int, date string) string {
	return fmt.Sprintf("slots:%d:%s", eventTypeID, date)
}

func (c *SlotCache) Get(ctx context.Context, key string) ([]string, bool) {
	if c == nil {
		return nil, false
	}
	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, false
	}
	return out, true
}

func (c *SlotCache) Set(ctx context.Context, key string, slots []string) {
	if c == nil {
		return
	}
	raw, err := json.Marshal(slots)
	if err != nil {
		return
	}
	c.rdb.Set(ctx, key, raw, slotCacheTTL)
}

func (c *SlotCache) Invalidate(ctx context.Context, keys ...string) {
	if c == nil || len(keys) == 0 {
		return
	}
	c.rdb.Del(ctx, keys...)
}
