package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/roofdispatch/roofdispatch/pkg/geo"
	"github.com/roofdispatch/roofdispatch/pkg/model"
)

const keyPrefix = "geocode:"

// Cache 坐标的二级缓存
type Cache interface {
	Get(ctx context.Context, address string) (Entry, bool, error)
	Set(ctx context.Context, address string, entry Entry) error
}

// Entry 缓存条目，Miss 表示上游确认无结果
type Entry struct {
	Coord model.Coordinate `json:"coord"`
	Miss  bool             `json:"miss,omitempty"`
}

// RedisCache 基于 Redis 的坐标缓存
type RedisCache struct {
	client  *redis.Client
	ttl     time.Duration
	missTTL time.Duration
}

// NewRedisCache 创建 Redis 缓存；无结果条目保留较短时间
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &RedisCache{client: client, ttl: ttl, missTTL: ttl / 30}
}

// Get 读取缓存
func (c *RedisCache) Get(ctx context.Context, address string) (Entry, bool, error) {
	raw, err := c.client.Get(ctx, keyPrefix+geo.Key(address)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return Entry{}, false, err
	}
	return e, true, nil
}

// Set 写入缓存
func (c *RedisCache) Set(ctx context.Context, address string, entry Entry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	ttl := c.ttl
	if entry.Miss {
		ttl = c.missTTL
	}
	return c.client.Set(ctx, keyPrefix+geo.Key(address), raw, ttl).Err()
}
