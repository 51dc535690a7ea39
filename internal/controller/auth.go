package controller

import (
	"github.com/gin-gonic/gin"
	"github.com/nsxzhou1114/sighting-api/internal/middleware"
	"github.com/nsxzhou1114/sighting-api/pkg/auth"
	"github.com/nsxzhou1114/sighting-api/pkg/response"
	"go.uber.org/zap"
)

// AuthApi 令牌注销
type AuthApi struct {
	logger *zap.SugaredLogger
	tokens *auth.TokenManager
}

// NewAuthApi 创建认证API实例
func NewAuthApi(tokens *auth.TokenManager, logger *zap.SugaredLogger) *AuthApi {
	return &AuthApi{logger: logger, tokens: tokens}
}

// Logout 注销当前令牌，之后该令牌不能再用于HTTP接口和实时连接
func (api *AuthApi) Logout(c *gin.Context) {
	claims, ok := middleware.GetClaims(c)
	if !ok {
		response.Unauthorized(c, "需要登录", nil)
		return
	}

	if err := api.tokens.RevokeToken(c.Request.Context(), claims); err != nil {
		api.logger.Errorf("注销令牌失败: %v", err)
		response.InternalServerError(c, "注销失败", err)
		return
	}

	api.logger.Infof("用户 %s 已注销", claims.UserID)
	response.Success(c, "注销成功", nil)
}
