package service

import "github.com/nsxzhou1114/sighting-api/internal/model"

// Fanout 实时推送，尽力而为：无在线会话时直接丢弃，不返回错误也不阻塞调用方
type Fanout interface {
	PushToUser(userID string, notification *model.Notification)
	PushGlobal(notification *model.Notification)
}

// NopFanout 不推送
type NopFanout struct{}

func (NopFanout) PushToUser(string, *model.Notification) {}
func (NopFanout) PushGlobal(*model.Notification) {}
