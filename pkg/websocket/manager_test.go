package websocket

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/nsxzhou1114/sighting-api/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestServer(t *testing.T) (*Manager, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	m, err := NewManager(DefaultOptions(), zap.NewNop().Sugar())
	require.NoError(t, err)
	m.Start()
	t.Cleanup(m.Shutdown)

	r := gin.New()
	r.GET("/ws", func(c *gin.Context) {
		m.HandleWebSocket(c, c.Query("user"))
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return m, "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func dial(t *testing.T, m *Manager, url, userID string) *websocket.Conn {
	t.Helper()
	before := len(m.Sessions()[userID])
	conn, _, err := websocket.DefaultDialer.Dial(url+"?user="+userID, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.Eventually(t, func() bool {
		return len(m.Sessions()[userID]) == before+1
	}, time.Second, 10*time.Millisecond)
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestPushToUser(t *testing.T) {
	m, url := newTestServer(t)
	alice := dial(t, m, url, "alice")
	bob := dial(t, m, url, "bob")

	recipient := "alice"
	m.PushToUser("alice", &model.Notification{ID: "n1", RecipientID: &recipient, Title: "match"})

	msg := readEvent(t, alice)
	assert.Equal(t, EventNotificationNew, msg["event"])
	assert.NotEmpty(t, msg["message_id"])
	data := msg["data"].(map[string]interface{})
	assert.Equal(t, "n1", data["id"])

	require.NoError(t, bob.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err := bob.ReadMessage()
	assert.Error(t, err, "other users receive nothing")
}

func TestPushGlobalReachesEveryConnection(t *testing.T) {
	m, url := newTestServer(t)
	first := dial(t, m, url, "alice")
	second := dial(t, m, url, "alice")
	third := dial(t, m, url, "bob")

	m.PushGlobal(&model.Notification{ID: "g1", IsGlobal: true})
	for _, conn := range []*websocket.Conn{first, second, third} {
		assert.Equal(t, EventNotificationGlobal, readEvent(t, conn)["event"])
	}
	assert.Len(t, m.Sessions()["alice"], 2)
}

func TestPushWithoutSessionIsDropped(t *testing.T) {
	m, _ := newTestServer(t)
	assert.False(t, m.IsUserOnline("ghost"))
	assert.NotPanics(t, func() {
		m.PushToUser("ghost", &model.Notification{ID: "n1"})
		m.PushGlobal(&model.Notification{ID: "g1"})
	})
}

func TestClientEvents(t *testing.T) {
	m, url := newTestServer(t)
	conn := dial(t, m, url, "alice")

	require.NoError(t, conn.WriteJSON(map[string]interface{}{"event": "notifications:read", "data": []string{"n1"}}))
	require.NoError(t, conn.WriteJSON(map[string]string{"event": "ping"}))
	assert.Equal(t, EventPong, readEvent(t, conn)["event"], "read events produce no reply")
}

func TestDisconnectDeregisters(t *testing.T) {
	m, url := newTestServer(t)
	conn := dial(t, m, url, "alice")
	assert.True(t, m.IsUserOnline("alice"))

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool {
		return !m.IsUserOnline("alice")
	}, time.Second, 10*time.Millisecond)
	assert.Empty(t, m.Sessions())
}

func TestUnregisterBeforeRegisterDropsClient(t *testing.T) {
	m, err := NewManager(DefaultOptions(), zap.NewNop().Sugar())
	require.NoError(t, err)

	client := NewClient("alice", nil, m)
	m.handleUnregister(client)
	m.handleRegister(client)

	assert.False(t, m.IsUserOnline("alice"))
	assert.Empty(t, m.Sessions())
	assert.True(t, client.isClosed())
}

func TestQueuedDisconnectNeverLeavesSession(t *testing.T) {
	m, err := NewManager(DefaultOptions(), zap.NewNop().Sugar())
	require.NoError(t, err)
	m.Start()
	t.Cleanup(m.Shutdown)

	clients := make([]*Client, 0, 50)
	for i := 0; i < 50; i++ {
		client := NewClient("alice", nil, m)
		clients = append(clients, client)
		m.register <- client
		m.deregister(client)
	}

	require.Eventually(t, func() bool {
		for _, client := range clients {
			if !client.isClosed() {
				return false
			}
		}
		return len(m.register) == 0 && len(m.unregister) == 0
	}, time.Second, 10*time.Millisecond)
	assert.Never(t, func() bool {
		return m.IsUserOnline("alice")
	}, 100*time.Millisecond, 10*time.Millisecond)
	assert.Empty(t, m.Sessions())
}

func TestShutdownClearsRegistry(t *testing.T) {
	m, url := newTestServer(t)
	conn := dial(t, m, url, "alice")

	m.Shutdown()
	assert.Empty(t, m.Sessions())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
}

func TestNewManagerRejectsBadNode(t *testing.T) {
	opts := DefaultOptions()
	opts.NodeID = 1 << 20
	_, err := NewManager(opts, zap.NewNop().Sugar())
	assert.Error(t, err)
}
