package controller

import (
	"github.com/gin-gonic/gin"
	"github.com/nsxzhou1114/sighting-api/internal/dto"
	"github.com/nsxzhou1114/sighting-api/pkg/response"
	"github.com/nsxzhou1114/sighting-api/pkg/websocket"
	"go.uber.org/zap"
)

// WebSocketApi 实时连接API控制器
type WebSocketApi struct {
	logger           *zap.SugaredLogger
	websocketManager *websocket.Manager
}

// NewWebSocketApi 创建WebSocket API实例
func NewWebSocketApi(manager *websocket.Manager, logger *zap.SugaredLogger) *WebSocketApi {
	return &WebSocketApi{
		logger:           logger,
		websocketManager: manager,
	}
}

// HandleWebSocket 处理WebSocket连接，握手前已由认证中间件校验令牌
func (api *WebSocketApi) HandleWebSocket(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	api.logger.Infof("用户 %s 尝试建立WebSocket连接", userID)
	api.websocketManager.HandleWebSocket(c, userID)
}

// GetSessions 获取当前在线会话（管理员）
func (api *WebSocketApi) GetSessions(c *gin.Context) {
	sessions := api.websocketManager.Sessions()
	response.Success(c, "获取成功", dto.SessionListResponse{
		Users:    len(sessions),
		Sessions: sessions,
	})
}
