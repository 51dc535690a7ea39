package dto

import "time"

// NotificationListRequest 通知列表请求
type NotificationListRequest struct {
	Page  int `form:"page" binding:"omitempty,min=1"`
	Limit int `form:"limit" binding:"omitempty,min=1"`
}

// RelatedEntityInfo 通知关联实体的展示信息
type RelatedEntityInfo struct {
	ID     string   `json:"id"`
	Type   string   `json:"type"`
	Name   string   `json:"name"`
	Photos []string `json:"photos"`
	Status string   `json:"status,omitempty"`
}

// NotificationResponse 通知响应
type NotificationResponse struct {
	ID                   string             `json:"id"`
	Recipient            *string            `json:"recipient"`
	Type                 string             `json:"type"`
	Title                string             `json:"title"`
	Message              string             `json:"message"`
	RelatedEntityID      string             `json:"relatedEntityId"`
	RelatedEntityType    string             `json:"relatedEntityType"`
	RelatedEntity        *RelatedEntityInfo `json:"relatedEntity,omitempty"`
	Image                *string            `json:"image,omitempty"`
	IsRead               bool               `json:"isRead"`
	IsGlobal             bool               `json:"isGlobal"`
	RequiresConfirmation bool               `json:"requiresConfirmation"`
	Confirmed            *bool              `json:"confirmed"`
	MatchData            any                `json:"matchData,omitempty"`
	CreatedAt            time.Time          `json:"createdAt"`
}

// Pagination 分页信息
type Pagination struct {
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Pages int   `json:"pages"`
}

// NotificationListResponse 通知列表响应
type NotificationListResponse struct {
	Notifications []NotificationResponse `json:"notifications"`
	Pagination    Pagination             `json:"pagination"`
}

// NotificationUnreadCountResponse 未读通知数量响应
type NotificationUnreadCountResponse struct {
	Count int64 `json:"count"`
}

// NotificationMarkReadRequest 批量标记已读请求，字段缺失或不是数组时绑定失败
type NotificationMarkReadRequest struct {
	NotificationIDs []string `json:"notificationIds" binding:"required,dive,required"`
}

// MatchAlertRequest 发送匹配提醒请求
type MatchAlertRequest struct {
	MissingPersonID string `json:"missingPersonId" binding:"required"`
	MatchID         string `json:"matchId" binding:"required"`
}

// MatchAlertResponse 发送匹配提醒响应
type MatchAlertResponse struct {
	Success bool `json:"success"`
}

// ConfirmMatchRequest 确认或否认匹配请求
type ConfirmMatchRequest struct {
	NotificationID string `json:"notificationId" binding:"required"`
	Confirm        *bool  `json:"confirm" binding:"required"`
}

// ConfirmMatchResponse 确认匹配响应
type ConfirmMatchResponse struct {
	Confirmed bool `json:"confirmed"`
}

// SessionListResponse 在线会话列表
type SessionListResponse struct {
	Users    int                 `json:"users"`
	Sessions map[string][]string `json:"sessions"`
}
