package websocket

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/nsxzhou1114/sighting-api/internal/model"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Options 连接参数
type Options struct {
	NodeID          int64
	ReadLimit       int64
	PongWait        time.Duration
	PingPeriod      time.Duration
	WriteWait       time.Duration
	SendBuffer      int
	InactiveTimeout time.Duration
}

// DefaultOptions 默认连接参数
func DefaultOptions() Options {
	return Options{
		NodeID:          1,
		ReadLimit:       4096,
		PongWait:        60 * time.Second,
		PingPeriod:      30 * time.Second,
		WriteWait:       10 * time.Second,
		SendBuffer:      256,
		InactiveTimeout: 5 * time.Minute,
	}
}

// Manager WebSocket连接管理器，维护分组到连接的映射
// 推送只投递给当前在线的连接，离线时直接丢弃
type Manager struct {
	groups     map[string]map[*Client]struct{} // 分组 -> 连接
	register   chan *Client                    // 注册通道
	unregister chan *Client                    // 注销通道
	node       *snowflake.Node                 // 连接与消息ID生成器
	opts       Options
	logger     *zap.SugaredLogger // 日志记录器
	ctx        context.Context    // 上下文
	cancel     context.CancelFunc // 取消函数
	mutex      sync.RWMutex       // 并发锁
	once       sync.Once
}

// NewManager 创建管理器，调用 Start 后开始处理注册
func NewManager(opts Options, logger *zap.SugaredLogger) (*Manager, error) {
	defaults := DefaultOptions()
	if opts.ReadLimit <= 0 {
		opts.ReadLimit = defaults.ReadLimit
	}
	if opts.PongWait <= 0 {
		opts.PongWait = defaults.PongWait
	}
	if opts.PingPeriod <= 0 || opts.PingPeriod >= opts.PongWait {
		opts.PingPeriod = opts.PongWait * 9 / 10
	}
	if opts.WriteWait <= 0 {
		opts.WriteWait = defaults.WriteWait
	}
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = defaults.SendBuffer
	}
	if opts.InactiveTimeout <= 0 {
		opts.InactiveTimeout = defaults.InactiveTimeout
	}

	node, err := snowflake.NewNode(opts.NodeID)
	if err != nil {
		return nil, fmt.Errorf("创建ID生成节点失败: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		groups:     make(map[string]map[*Client]struct{}),
		register:   make(chan *Client, 32),
		unregister: make(chan *Client, 32),
		node:       node,
		opts:       opts,
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
	}, nil
}

// Start 启动管理器主循环
func (m *Manager) Start() {
	go m.run()
}

// Shutdown 关闭管理器，断开所有连接并清空分组
func (m *Manager) Shutdown() {
	m.once.Do(func() {
		m.logger.Info("正在关闭WebSocket管理器...")
		m.cancel()

		m.mutex.Lock()
		for client := range m.groups[GlobalGroup] {
			client.Close()
		}
		m.groups = make(map[string]map[*Client]struct{})
		m.mutex.Unlock()

		m.logger.Info("WebSocket管理器已关闭")
	})
}

// run 运行管理器主循环
func (m *Manager) run() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case client := <-m.register:
			m.handleRegister(client)
		case client := <-m.unregister:
			m.handleUnregister(client)
		case <-ticker.C:
			m.cleanInactiveConnections()
		}
	}
}

// handleRegister 将连接加入用户分组与全局分组，同一用户允许多个连接
func (m *Manager) handleRegister(client *Client) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	// 读循环可能在注册被处理前就已退出
	if client.isClosed() {
		m.logger.Debugf("连接 %s 在注册前已断开，跳过", client.ID)
		return
	}

	for _, group := range client.groups() {
		members, ok := m.groups[group]
		if !ok {
			members = make(map[*Client]struct{})
			m.groups[group] = members
		}
		members[client] = struct{}{}
	}
	m.logger.Infof("用户 %s 已连接，连接 %s，当前连接数: %d", client.UserID, client.ID, len(m.groups[GlobalGroup]))
}

// handleUnregister 从所有分组移除连接
func (m *Manager) handleUnregister(client *Client) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.remove(client)
}

// remove 需持有写锁，未注册的连接也会被标记关闭
func (m *Manager) remove(client *Client) {
	if _, ok := m.groups[GlobalGroup][client]; !ok {
		client.Close()
		return
	}
	for _, group := range client.groups() {
		delete(m.groups[group], client)
		if len(m.groups[group]) == 0 {
			delete(m.groups, group)
		}
	}
	client.Close()
	m.logger.Infof("用户 %s 已断开连接，连接 %s，当前连接数: %d", client.UserID, client.ID, len(m.groups[GlobalGroup]))
}

// deregister 连接读循环退出时调用
func (m *Manager) deregister(client *Client) {
	select {
	case m.unregister <- client:
	case <-m.ctx.Done():
		client.Close()
	}
}

// cleanInactiveConnections 清理不活跃的连接
func (m *Manager) cleanInactiveConnections() {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	for client := range m.groups[GlobalGroup] {
		if !client.IsActive(m.opts.InactiveTimeout) {
			m.logger.Infof("清理不活跃连接：用户 %s", client.UserID)
			m.remove(client)
		}
	}
}

// PushToUser 推送给用户的所有在线连接
func (m *Manager) PushToUser(userID string, notification *model.Notification) {
	m.emit(UserGroup(userID), EventNotificationNew, notification)
}

// PushGlobal 推送给所有在线连接
func (m *Manager) PushGlobal(notification *model.Notification) {
	m.emit(GlobalGroup, EventNotificationGlobal, notification)
}

// emit 向分组内的连接投递事件，失败只记录日志
func (m *Manager) emit(group, event string, notification *model.Notification) {
	data, err := newMessage(event, notification, m.node.Generate().String()).ToJSON()
	if err != nil {
		m.logger.Warnf("序列化推送消息失败: %v", err)
		return
	}

	m.mutex.RLock()
	defer m.mutex.RUnlock()

	delivered, dropped := 0, 0
	for client := range m.groups[group] {
		if client.trySend(data) {
			delivered++
		} else {
			dropped++
		}
	}
	if dropped > 0 {
		m.logger.Warnf("分组 %s 有 %d 个连接未能接收事件 %s", group, dropped, event)
	}
	m.logger.Debugf("事件 %s 已投递到分组 %s 的 %d 个连接", event, group, delivered)
}

// HandleWebSocket 处理已认证的WebSocket连接
func (m *Manager) HandleWebSocket(c *gin.Context, userID string) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		m.logger.Errorf("WebSocket升级失败: %v", err)
		return
	}

	client := NewClient(userID, conn, m)

	select {
	case m.register <- client:
	case <-m.ctx.Done():
		_ = conn.Close()
		return
	}

	go client.readPump()
	go client.writePump()
}

// IsUserOnline 检查用户是否有在线连接
func (m *Manager) IsUserOnline(userID string) bool {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.groups[UserGroup(userID)]) > 0
}

// Sessions 当前在线用户到连接ID的映射
func (m *Manager) Sessions() map[string][]string {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	sessions := make(map[string][]string)
	for client := range m.groups[GlobalGroup] {
		sessions[client.UserID] = append(sessions[client.UserID], client.ID)
	}
	for userID := range sessions {
		sort.Strings(sessions[userID])
	}
	return sessions
}
