package auth

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Blacklist 令牌黑名单，按令牌ID记录
type Blacklist interface {
	// AddToBlacklist 将令牌添加到黑名单
	AddToBlacklist(ctx context.Context, tokenID string, expireAt time.Time) error

	// IsBlacklisted 检查令牌是否在黑名单中
	IsBlacklisted(ctx context.Context, tokenID string) (bool, error)
}

// BlacklistType 黑名单类型
type BlacklistType string

const (
	// MemoryBlacklist 内存黑名单
	MemoryBlacklist BlacklistType = "memory"
	// RedisBlacklist Redis黑名单
	RedisBlacklist BlacklistType = "redis"
)

// NewBlacklist 根据类型创建黑名单，Redis不可用时退回内存实现
func NewBlacklist(blacklistType BlacklistType, client *redis.Client, logger *zap.SugaredLogger) Blacklist {
	if blacklistType == RedisBlacklist && client != nil {
		return NewRedisTokenBlacklist(client, logger)
	}
	return NewTokenBlacklist()
}

// maxMemoryEntries 超过后写入时顺带清理过期条目
const maxMemoryEntries = 10000

// TokenBlacklist 进程内令牌黑名单
type TokenBlacklist struct {
	tokens map[string]time.Time // 令牌ID->过期时间映射
	mutex  sync.RWMutex         // 读写锁，保证并发安全
}

// NewTokenBlacklist 创建内存黑名单
func NewTokenBlacklist() *TokenBlacklist {
	return &TokenBlacklist{tokens: make(map[string]time.Time)}
}

// AddToBlacklist 将令牌添加到黑名单
func (b *TokenBlacklist) AddToBlacklist(_ context.Context, tokenID string, expireAt time.Time) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if len(b.tokens) >= maxMemoryEntries {
		b.cleanupLocked()
	}
	b.tokens[tokenID] = expireAt
	return nil
}

// IsBlacklisted 检查令牌是否在黑名单中
func (b *TokenBlacklist) IsBlacklisted(_ context.Context, tokenID string) (bool, error) {
	b.mutex.RLock()
	defer b.mutex.RUnlock()
	expireAt, exists := b.tokens[tokenID]
	return exists && time.Now().Before(expireAt), nil
}

// cleanupLocked 清理过期的令牌
func (b *TokenBlacklist) cleanupLocked() {
	now := time.Now()
	for token, expireAt := range b.tokens {
		if now.After(expireAt) {
			delete(b.tokens, token)
		}
	}
}
