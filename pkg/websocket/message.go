package websocket

import (
	"encoding/json"
	"time"
)

// 服务端推送事件
const (
	EventNotificationNew    = "notification:new"
	EventNotificationGlobal = "notification:global"
	EventPong               = "pong"
)

// 客户端事件
const (
	clientEventPing              = "ping"
	clientEventNotificationsRead = "notifications:read"
)

// GlobalGroup 所有连接共同加入的广播分组
const GlobalGroup = "global:notifications"

// UserGroup 用户私有分组
func UserGroup(userID string) string {
	return "user:" + userID
}

// NotificationMessage 推送给客户端的事件
type NotificationMessage struct {
	Event     string      `json:"event"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
	MessageID string      `json:"message_id,omitempty"`
}

// ToJSON 将消息转换为JSON
func (m *NotificationMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func newMessage(event string, data interface{}, id string) *NotificationMessage {
	return &NotificationMessage{
		Event:     event,
		Data:      data,
		Timestamp: time.Now().Unix(),
		MessageID: id,
	}
}

// clientMessage 客户端发来的消息
type clientMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}
