package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Redis键前缀
const blacklistKeyPrefix = "jwt:blacklist:"

// RedisTokenBlacklist Redis令牌黑名单实现，命中结果在本地缓存
type RedisTokenBlacklist struct {
	redis      *redis.Client
	localCache *TokenBlacklist
	logger     *zap.SugaredLogger
}

// NewRedisTokenBlacklist 创建Redis黑名单
func NewRedisTokenBlacklist(client *redis.Client, logger *zap.SugaredLogger) *RedisTokenBlacklist {
	return &RedisTokenBlacklist{
		redis:      client,
		localCache: NewTokenBlacklist(),
		logger:     logger,
	}
}

// AddToBlacklist 将令牌添加到黑名单
func (b *RedisTokenBlacklist) AddToBlacklist(ctx context.Context, tokenID string, expireAt time.Time) error {
	duration := time.Until(expireAt)
	if duration <= 0 {
		return nil // 已过期的令牌无需添加
	}

	if err := b.redis.Set(ctx, blacklistKeyPrefix+tokenID, "1", duration).Err(); err != nil {
		b.logger.Errorw("添加令牌到Redis黑名单失败", "token_id", tokenID, "error", err)
		return fmt.Errorf("添加令牌到黑名单失败: %w", err)
	}

	_ = b.localCache.AddToBlacklist(ctx, tokenID, expireAt)
	b.logger.Infow("令牌已添加到黑名单", "token_id", tokenID)
	return nil
}

// IsBlacklisted 检查令牌是否在黑名单中
func (b *RedisTokenBlacklist) IsBlacklisted(ctx context.Context, tokenID string) (bool, error) {
	if hit, _ := b.localCache.IsBlacklisted(ctx, tokenID); hit {
		return true, nil
	}

	key := blacklistKeyPrefix + tokenID
	exists, err := b.redis.Exists(ctx, key).Result()
	if err != nil {
		return false, err
	}
	if exists == 0 {
		return false, nil
	}

	if ttl := b.redis.TTL(ctx, key).Val(); ttl > 0 {
		_ = b.localCache.AddToBlacklist(ctx, tokenID, time.Now().Add(ttl))
	}
	return true, nil
}
