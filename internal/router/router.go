package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nsxzhou1114/sighting-api/internal/controller"
	"github.com/nsxzhou1114/sighting-api/internal/middleware"
	"github.com/nsxzhou1114/sighting-api/pkg/auth"
)

// Deps 路由依赖
type Deps struct {
	Tokens        *auth.TokenManager
	TokenBuffer   time.Duration
	Notifications *controller.NotificationApi
	WebSocket     *controller.WebSocketApi
	Auth          *controller.AuthApi
}

// Setup 设置API路由
func Setup(r *gin.Engine, deps Deps) {
	r.GET("/health", controller.HealthCheck)

	authRequired := middleware.JWTAuth(deps.Tokens, deps.TokenBuffer)

	// 实时连接，令牌通过 token 查询参数传递
	r.GET("/ws", authRequired, deps.WebSocket.HandleWebSocket)

	// API 路由组
	api := r.Group("/api")

	// 通知相关路由
	setupNotificationRoutes(api, authRequired, deps.Notifications)

	// 认证相关路由
	authRoutes := api.Group("/auth", authRequired)
	{
		authRoutes.POST("/logout", deps.Auth.Logout)
	}

	// 实时会话诊断
	realtimeRoutes := api.Group("/realtime", authRequired, middleware.AdminAuth())
	{
		realtimeRoutes.GET("/sessions", deps.WebSocket.GetSessions)
	}
}

// setupNotificationRoutes 设置通知相关路由
func setupNotificationRoutes(api *gin.RouterGroup, authRequired gin.HandlerFunc, notificationApi *controller.NotificationApi) {
	notificationRoutes := api.Group("/notifications", authRequired)
	{
		// 获取通知列表
		notificationRoutes.GET("", notificationApi.GetNotifications)
		// 获取未读数量
		notificationRoutes.GET("/unread-count", notificationApi.GetUnreadCount)
		// 批量标记已读
		notificationRoutes.PUT("/mark-read", notificationApi.MarkAsRead)
		// 全部标记已读
		notificationRoutes.PUT("/mark-all-read", notificationApi.MarkAllAsRead)
		// 删除通知
		notificationRoutes.DELETE("/:id", notificationApi.DeleteNotification)
		// 发送匹配提醒
		notificationRoutes.POST("/match-alert", notificationApi.SendMatchAlert)
		// 确认或否认匹配
		notificationRoutes.POST("/confirm-match", notificationApi.ConfirmMatch)
	}
}
