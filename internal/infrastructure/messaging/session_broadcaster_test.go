package messaging

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/woodland-analytics/woodland-dash/internal/infrastructure/observability/logging"
)

func startHub(t *testing.T, heartbeat time.Duration) *SessionBroadcaster {
	t.Helper()
	hub := NewSessionBroadcaster(heartbeat, logging.NewDiscardLogger())
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)
	return hub
}

func dial(t *testing.T, hub *SessionBroadcaster, sessionID string) *websocket.Conn {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Serve(NewClient(conn, sessionID), []byte(`{"type":"snapshot","sessionId":"`+sessionID+`"}`))
	}))
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readType(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	return gjson.GetBytes(data, "type").String()
}

func TestServeSendsInitialThenPublished(t *testing.T) {
	hub := startHub(t, time.Hour)
	conn := dial(t, hub, "s1")

	assert.Equal(t, MessageSnapshot, readType(t, conn))
	require.Eventually(t, func() bool { return hub.ClientCount("s1") == 1 }, time.Second, 5*time.Millisecond)

	hub.Publish("other", Message{Type: MessageSnapshot})
	hub.Publish("s1", Message{Type: MessageSnapshot, Payload: map[string]string{"product": "prod-1"}})
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "prod-1", gjson.GetBytes(data, "payload.product").String())
}

func TestHeartbeat(t *testing.T) {
	hub := startHub(t, 20*time.Millisecond)
	conn := dial(t, hub, "s1")

	assert.Equal(t, MessageSnapshot, readType(t, conn))
	assert.Equal(t, MessageHeartbeat, readType(t, conn))
}

func TestCloseSessionDisconnects(t *testing.T) {
	hub := startHub(t, time.Hour)
	conn := dial(t, hub, "s1")
	assert.Equal(t, MessageSnapshot, readType(t, conn))
	require.Eventually(t, func() bool { return hub.ClientCount("s1") == 1 }, time.Second, 5*time.Millisecond)

	hub.CloseSession("s1")
	assert.Equal(t, MessageExpired, readType(t, conn))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
	assert.Equal(t, 0, hub.ClientCount("s1"))
}

func TestPublishWithoutClientsIsNoop(t *testing.T) {
	hub := startHub(t, time.Hour)
	hub.Publish("nobody", Message{Type: MessageSnapshot})
	assert.Equal(t, 0, hub.TotalClients())
	assert.Equal(t, int64(0), hub.Dropped())
}
