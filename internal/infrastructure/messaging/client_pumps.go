package messaging

import (
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// Serve registers the client, writes initial (when non-nil) and pumps
// messages until the connection or the hub goes away. It blocks.
func (b *SessionBroadcaster) Serve(client *Client, initial []byte) {
	if initial != nil {
		client.Send <- initial
	}
	if !b.Register(client) {
		client.Conn.Close()
		return
	}
	go b.readPump(client)
	b.writePump(client)
}

// readPump discards client frames and unregisters on disconnect.
func (b *SessionBroadcaster) readPump(client *Client) {
	defer b.Unregister(client)

	client.Conn.SetReadLimit(maxMessageSize)
	_ = client.Conn.SetReadDeadline(time.Now().Add(pongWait))
	client.Conn.SetPongHandler(func(string) error {
		return client.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := client.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				b.logger.WebSocket().Debug("WebSocket read failed", "error", err.Error())
			}
			return
		}
	}
}

func (b *SessionBroadcaster) writePump(client *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-client.Send:
			_ = client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = client.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
