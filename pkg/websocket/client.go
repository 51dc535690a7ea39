package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Client 表示一个WebSocket客户端连接
type Client struct {
	ID         string          // 连接唯一标识符
	UserID     string          // 用户ID
	Conn       *websocket.Conn // WebSocket连接
	Send       chan []byte     // 发送消息的通道
	manager    *Manager        // 所属的管理器
	lastActive time.Time       // 最后活跃时间
	closed     bool            // 连接是否已关闭
	closeMutex sync.RWMutex    // 关闭状态的互斥锁
}

// NewClient 创建新的客户端实例
func NewClient(userID string, conn *websocket.Conn, manager *Manager) *Client {
	return &Client{
		ID:         manager.node.Generate().String(),
		UserID:     userID,
		Conn:       conn,
		Send:       make(chan []byte, manager.opts.SendBuffer),
		manager:    manager,
		lastActive: time.Now(),
	}
}

// groups 连接所属的分组
func (c *Client) groups() []string {
	return []string{UserGroup(c.UserID), GlobalGroup}
}

// readPump 处理从客户端读取消息
func (c *Client) readPump() {
	defer c.manager.deregister(c)

	opts := c.manager.opts
	c.Conn.SetReadLimit(opts.ReadLimit)
	_ = c.Conn.SetReadDeadline(time.Now().Add(opts.PongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.updateActivity()
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			break
		}

		c.updateActivity()
		if len(message) > 0 {
			c.handleMessage(message)
		}
	}
}

// writePump 处理向客户端发送消息
func (c *Client) writePump() {
	ticker := time.NewTicker(c.manager.opts.PingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			if !ok {
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.writeMessage(message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(c.manager.opts.WriteWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleMessage 处理接收到的消息
func (c *Client) handleMessage(message []byte) {
	var msg clientMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		return
	}

	switch msg.Event {
	case clientEventPing:
		c.handlePing()
	case clientEventNotificationsRead:
		// 已读状态通过HTTP接口维护
		c.manager.logger.Debugf("忽略客户端事件 %s: 用户 %s", msg.Event, c.UserID)
	}
}

// handlePing 处理ping消息
func (c *Client) handlePing() {
	data, err := newMessage(EventPong, nil, "").ToJSON()
	if err == nil {
		c.trySend(data)
	}
}

// trySend 非阻塞发送，连接已关闭或缓冲区已满时丢弃
func (c *Client) trySend(data []byte) bool {
	c.closeMutex.RLock()
	defer c.closeMutex.RUnlock()

	if c.closed {
		return false
	}
	select {
	case c.Send <- data:
		return true
	default:
		return false
	}
}

// writeMessage 发送消息到客户端
func (c *Client) writeMessage(message []byte) error {
	_ = c.Conn.SetWriteDeadline(time.Now().Add(c.manager.opts.WriteWait))
	return c.Conn.WriteMessage(websocket.TextMessage, message)
}

// Close 关闭发送通道，writePump 随后关闭底层连接
func (c *Client) Close() {
	c.closeMutex.Lock()
	defer c.closeMutex.Unlock()

	if !c.closed {
		c.closed = true
		close(c.Send)
	}
}

// isClosed 连接是否已关闭
func (c *Client) isClosed() bool {
	c.closeMutex.RLock()
	defer c.closeMutex.RUnlock()
	return c.closed
}

// updateActivity 更新最后活跃时间
func (c *Client) updateActivity() {
	c.closeMutex.Lock()
	c.lastActive = time.Now()
	c.closeMutex.Unlock()
	_ = c.Conn.SetReadDeadline(time.Now().Add(c.manager.opts.PongWait))
}

// IsActive 检查客户端是否活跃
func (c *Client) IsActive(timeout time.Duration) bool {
	c.closeMutex.RLock()
	defer c.closeMutex.RUnlock()
	return !c.closed && time.Since(c.lastActive) < timeout
}
