package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// UnreadCache 未读数缓存，任何缓存错误都视为未命中
// Get 返回的 version 须在读库之前取得并原样交给 Set，
// 读库期间发生的失效会让这次写入落在已废弃的键上
type UnreadCache interface {
	Get(ctx context.Context, userID string) (count int64, version string, ok bool)
	// Set version 为空时不写入
	Set(ctx context.Context, version string, count int64)
	// Invalidate 使单个用户的缓存失效
	Invalidate(ctx context.Context, userID string)
	// InvalidateAll 全局通知变化时使所有用户缓存失效
	InvalidateAll(ctx context.Context)
}

// NopUnreadCache 不缓存
type NopUnreadCache struct{}

func (NopUnreadCache) Get(context.Context, string) (int64, string, bool) { return 0, "", false }
func (NopUnreadCache) Set(context.Context, string, int64) {}
func (NopUnreadCache) Invalidate(context.Context, string) {}
func (NopUnreadCache) InvalidateAll(context.Context) {}

const (
	unreadGenerationKey     = "notification:unread:gen"
	unreadUserGenerationKey = "notification:unread:gen:%s"
	unreadKeyFormat         = "notification:unread:%d:%d:%s"
	// 用户代数键的存活时间需远大于计数键的TTL
	unreadUserGenerationTTL = 24 * time.Hour
)

// RedisUnreadCache Redis未读数缓存
// 键中带有全局代数与用户代数，失效只需递增代数，旧键随TTL过期
type RedisUnreadCache struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewRedisUnreadCache 创建Redis未读数缓存
func NewRedisUnreadCache(client *redis.Client, ttl time.Duration) *RedisUnreadCache {
	return &RedisUnreadCache{redis: client, ttl: ttl}
}

// key 按当前代数拼出计数键
func (c *RedisUnreadCache) key(ctx context.Context, userID string) (string, error) {
	values, err := c.redis.MGet(ctx, unreadGenerationKey, fmt.Sprintf(unreadUserGenerationKey, userID)).Result()
	if err != nil {
		return "", err
	}
	gens := make([]int64, len(values))
	for i, v := range values {
		if v == nil {
			continue
		}
		raw, ok := v.(string)
		if !ok {
			return "", fmt.Errorf("代数类型错误: %T", v)
		}
		if gens[i], err = strconv.ParseInt(raw, 10, 64); err != nil {
			return "", fmt.Errorf("解析代数失败: %w", err)
		}
	}
	return fmt.Sprintf(unreadKeyFormat, gens[0], gens[1], userID), nil
}

// Get 读取缓存，未命中时仍返回可用于写入的版本
func (c *RedisUnreadCache) Get(ctx context.Context, userID string) (int64, string, bool) {
	key, err := c.key(ctx, userID)
	if err != nil {
		return 0, "", false
	}
	count, err := c.redis.Get(ctx, key).Int64()
	if err != nil {
		return 0, key, false
	}
	return count, key, true
}

// Set 写入读库前取得的版本
func (c *RedisUnreadCache) Set(ctx context.Context, version string, count int64) {
	if version == "" {
		return
	}
	c.redis.Set(ctx, version, count, c.ttl)
}

// Invalidate 递增用户代数
func (c *RedisUnreadCache) Invalidate(ctx context.Context, userID string) {
	key := fmt.Sprintf(unreadUserGenerationKey, userID)
	pipe := c.redis.TxPipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, unreadUserGenerationTTL)
	_, _ = pipe.Exec(ctx)
}

// InvalidateAll 递增全局代数
func (c *RedisUnreadCache) InvalidateAll(ctx context.Context) {
	c.redis.Incr(ctx, unreadGenerationKey)
}
