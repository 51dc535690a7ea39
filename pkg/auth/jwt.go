package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/nsxzhou1114/sighting-api/internal/config"
)

// TokenType 定义token类型
type TokenType string

const (
	// AccessToken 访问令牌，HTTP接口与实时连接共用
	AccessToken TokenType = "access"
)

var (
	ErrTokenRevoked = errors.New("令牌已被撤销")
	ErrInvalidToken = errors.New("无效的令牌")
)

// Claims 自定义JWT声明结构体，令牌唯一ID存放在 jti
type Claims struct {
	UserID string    `json:"user_id"`
	Role   string    `json:"role"`
	Type   TokenType `json:"type"`
	jwt.RegisteredClaims
}

// ExpiresAtTime 过期时间
func (c *Claims) ExpiresAtTime() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

// TokenManager 令牌签发与校验，签发方是外部认证系统，本服务只负责校验与注销
type TokenManager struct {
	secret       []byte
	issuer       string
	accessExpire time.Duration
	blacklist    Blacklist
}

// NewTokenManager 创建令牌管理器
func NewTokenManager(cfg *config.JWTConfig, blacklist Blacklist) *TokenManager {
	if blacklist == nil {
		blacklist = NewTokenBlacklist()
	}
	return &TokenManager{
		secret:       []byte(cfg.SecretKey),
		issuer:       cfg.Issuer,
		accessExpire: time.Duration(cfg.AccessExpireSeconds) * time.Second,
		blacklist:    blacklist,
	}
}

// GenerateAccessToken 生成访问令牌，用于运维签发与测试
func (m *TokenManager) GenerateAccessToken(userID, role string) (string, *Claims, error) {
	if userID == "" {
		return "", nil, errors.New("用户ID不能为空")
	}
	now := time.Now()
	claims := &Claims{
		UserID: userID,
		Role:   role,
		Type:   AccessToken,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.accessExpire)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(m.secret)
	if err != nil {
		return "", nil, fmt.Errorf("签名令牌失败: %w", err)
	}
	return tokenString, claims, nil
}

// ParseToken 解析并校验访问令牌
func (m *TokenManager) ParseToken(ctx context.Context, tokenString string) (*Claims, error) {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	token, err := parser.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return m.secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	if claims.Type != AccessToken {
		return nil, fmt.Errorf("%w: 需要访问令牌", ErrInvalidToken)
	}
	if m.issuer != "" && claims.Issuer != m.issuer {
		return nil, fmt.Errorf("%w: 签发方不匹配", ErrInvalidToken)
	}

	if claims.ID != "" {
		revoked, err := m.blacklist.IsBlacklisted(ctx, claims.ID)
		if err != nil {
			return nil, fmt.Errorf("检查令牌黑名单失败: %w", err)
		}
		if revoked {
			return nil, ErrTokenRevoked
		}
	}
	return claims, nil
}

// RevokeToken 撤销令牌（登出时使用），黑名单条目随令牌过期
func (m *TokenManager) RevokeToken(ctx context.Context, claims *Claims) error {
	if claims == nil || claims.ID == "" {
		return ErrInvalidToken
	}
	return m.blacklist.AddToBlacklist(ctx, claims.ID, claims.ExpiresAtTime())
}
