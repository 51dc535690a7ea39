package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nsxzhou1114/sighting-api/internal/logger"
	"github.com/nsxzhou1114/sighting-api/pkg/auth"
	"github.com/nsxzhou1114/sighting-api/pkg/response"
)

const (
	ctxUserID   = "userID"
	ctxUserRole = "userRole"
	ctxClaims   = "claims"
)

// bearerToken 从 Authorization 头或 token 查询参数取令牌
// 浏览器的WebSocket握手无法设置请求头，只能走查询参数
func bearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		token := c.Query("token")
		return token, token != ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if !(len(parts) == 2 && parts[0] == "Bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// JWTAuth JWT认证中间件
func JWTAuth(tm *auth.TokenManager, buffer time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			response.Unauthorized(c, "请先登录", nil)
			c.Abort()
			return
		}

		claims, err := tm.ParseToken(c.Request.Context(), token)
		if err != nil {
			logger.Warnf("无效的令牌: %v", err)
			response.Unauthorized(c, "无效的令牌", err)
			c.Abort()
			return
		}

		// 临近过期时提示客户端向认证系统换取新令牌
		if time.Until(claims.ExpiresAtTime()) < buffer {
			c.Header("X-Token-Expire-Soon", "true")
		}

		c.Set(ctxUserID, claims.UserID)
		c.Set(ctxUserRole, claims.Role)
		c.Set(ctxClaims, claims)
		c.Next()
	}
}

// AdminAuth 管理员认证中间件，需在 JWTAuth 之后使用
func AdminAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		role, exists := GetUserRole(c)
		if !exists {
			response.Unauthorized(c, "未授权", nil)
			c.Abort()
			return
		}

		if role != "admin" {
			response.Forbidden(c, "需要管理员权限", nil)
			c.Abort()
			return
		}

		c.Next()
	}
}

// GetUserID 从上下文中获取用户ID
func GetUserID(c *gin.Context) (string, bool) {
	userID := c.GetString(ctxUserID)
	return userID, userID != ""
}

// GetUserRole 从上下文中获取用户角色
func GetUserRole(c *gin.Context) (string, bool) {
	role, exists := c.Get(ctxUserRole)
	if !exists {
		return "", false
	}
	s, ok := role.(string)
	return s, ok
}

// GetClaims 从上下文中获取令牌声明
func GetClaims(c *gin.Context) (*auth.Claims, bool) {
	v, exists := c.Get(ctxClaims)
	if !exists {
		return nil, false
	}
	claims, ok := v.(*auth.Claims)
	return claims, ok
}
