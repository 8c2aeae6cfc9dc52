package notify

import (
	"context"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shorecrew/shorecrew/logger"
	"github.com/shorecrew/shorecrew/types"
	"github.com/shorecrew/shorecrew/utils"
)

func newTestHub(t *testing.T) *Hub {
	t.Helper()

	h := NewHub(context.Background(), logger.NewZapWrapper(zap.NewNop()), &types.NotifyConfig{
		Enabled: true,
		Host:    "127.0.0.1",
		Port:    0,
		Path:    "/ws",
	})
	require.NoError(t, h.Start())
	t.Cleanup(func() { h.Stop() })
	return h
}

func dial(t *testing.T, h *Hub) *websocket.Conn {
	t.Helper()

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+h.Addr()+"/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForClients(t *testing.T, h *Hub, n int) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for h.ClientCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d clients, have %d", n, h.ClientCount())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestHubLifecycle(t *testing.T) {
	h := NewHub(context.Background(), logger.NewZapWrapper(zap.NewNop()), &types.NotifyConfig{
		Host: "127.0.0.1",
		Port: 0,
	})

	assert.False(t, h.IsRunning())
	require.NoError(t, h.Start())
	assert.True(t, h.IsRunning())
	assert.Error(t, h.Start())

	require.NoError(t, h.Stop())
	assert.False(t, h.IsRunning())
	assert.Error(t, h.Stop())
}

func TestPublishReachesClients(t *testing.T) {
	h := newTestHub(t)

	conn := dial(t, h)
	waitForClients(t, h, 1)

	payload := map[string]interface{}{"name": "Ada"}
	h.Publish(types.EventMemberJoined, payload)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var event types.Event
	require.NoError(t, utils.Unmarshal(data, &event))
	assert.Equal(t, types.EventMemberJoined, event.Event)
	assert.False(t, event.Timestamp.IsZero())
}

func TestPublishFansOut(t *testing.T) {
	h := newTestHub(t)

	first := dial(t, h)
	second := dial(t, h)
	waitForClients(t, h, 2)

	h.Publish(types.EventCleanupLogged, nil)

	for _, conn := range []*websocket.Conn{first, second} {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)

		var event types.Event
		require.NoError(t, utils.Unmarshal(data, &event))
		assert.Equal(t, types.EventCleanupLogged, event.Event)
	}
}

func TestPublishWhileStoppedIsDropped(t *testing.T) {
	h := NewHub(context.Background(), logger.NewZapWrapper(zap.NewNop()), &types.NotifyConfig{
		Host: "127.0.0.1",
		Port: 0,
	})

	// Must not block or panic.
	h.Publish(types.EventMemberLeft, nil)
}

func TestDisconnectedClientIsRemoved(t *testing.T) {
	h := newTestHub(t)

	conn := dial(t, h)
	waitForClients(t, h, 1)

	conn.Close()
	waitForClients(t, h, 0)
}
