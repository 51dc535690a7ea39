package controller

import (
	"github.com/gin-gonic/gin"
	"github.com/nsxzhou1114/sighting-api/internal/dto"
	"github.com/nsxzhou1114/sighting-api/internal/service"
	"github.com/nsxzhou1114/sighting-api/pkg/response"
	"go.uber.org/zap"
)

// NotificationApi 通知API控制器
type NotificationApi struct {
	logger        *zap.SugaredLogger
	notifications *service.NotificationService
	alerts        *service.MatchAlertService
	confirms      *service.MatchConfirmService
}

// NewNotificationApi 创建通知API实例
func NewNotificationApi(notifications *service.NotificationService, alerts *service.MatchAlertService, confirms *service.MatchConfirmService, logger *zap.SugaredLogger) *NotificationApi {
	return &NotificationApi{
		logger:        logger,
		notifications: notifications,
		alerts:        alerts,
		confirms:      confirms,
	}
}

// GetNotifications 获取用户通知列表
func (api *NotificationApi) GetNotifications(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req dto.NotificationListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, bindErrorMessage(err), err)
		return
	}

	list, err := api.notifications.ListForUser(c.Request.Context(), userID, req.Page, req.Limit)
	if err != nil {
		respondError(c, api.logger, "获取通知失败", err)
		return
	}

	response.Success(c, "获取成功", list)
}

// GetUnreadCount 获取未读通知数量
func (api *NotificationApi) GetUnreadCount(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	count, err := api.notifications.CountUnread(c.Request.Context(), userID)
	if err != nil {
		respondError(c, api.logger, "获取未读数量失败", err)
		return
	}

	response.Success(c, "获取成功", dto.NotificationUnreadCountResponse{
		Count: count,
	})
}

// MarkAsRead 批量标记通知为已读
func (api *NotificationApi) MarkAsRead(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req dto.NotificationMarkReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "notificationIds 必须是数组", err)
		return
	}

	if err := api.notifications.MarkRead(c.Request.Context(), userID, req.NotificationIDs); err != nil {
		respondError(c, api.logger, "标记已读失败", err)
		return
	}

	response.Success(c, "标记已读成功", nil)
}

// MarkAllAsRead 标记所有通知为已读
func (api *NotificationApi) MarkAllAsRead(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	if err := api.notifications.MarkAllRead(c.Request.Context(), userID); err != nil {
		respondError(c, api.logger, "标记所有已读失败", err)
		return
	}

	response.Success(c, "标记所有已读成功", nil)
}

// DeleteNotification 删除通知
func (api *NotificationApi) DeleteNotification(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	if err := api.notifications.DeleteOwned(c.Request.Context(), userID, c.Param("id")); err != nil {
		respondError(c, api.logger, "删除通知失败", err)
		return
	}

	response.Success(c, "删除成功", nil)
}

// SendMatchAlert 向候选记录的登记人发送匹配提醒
func (api *NotificationApi) SendMatchAlert(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req dto.MatchAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, bindErrorMessage(err), err)
		return
	}

	if err := api.alerts.SendMatchAlert(c.Request.Context(), userID, req.MissingPersonID, req.MatchID); err != nil {
		respondError(c, api.logger, "发送匹配提醒失败", err)
		return
	}

	response.Created(c, "匹配提醒已发送", dto.MatchAlertResponse{Success: true})
}

// ConfirmMatch 确认或否认匹配
func (api *NotificationApi) ConfirmMatch(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req dto.ConfirmMatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, bindErrorMessage(err), err)
		return
	}

	confirmed, err := api.confirms.ConfirmMatch(c.Request.Context(), req.NotificationID, userID, *req.Confirm)
	if err != nil {
		respondError(c, api.logger, "处理匹配确认失败", err)
		return
	}

	response.Success(c, "处理成功", dto.ConfirmMatchResponse{Confirmed: confirmed})
}
