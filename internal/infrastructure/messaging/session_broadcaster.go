package messaging

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/woodland-analytics/woodland-dash/internal/infrastructure/observability/logging"
)

const (
	MessageSnapshot  = "snapshot"
	MessageHeartbeat = "heartbeat"
	MessageExpired   = "expired"

	clientBuffer = 16
)

// Message is the envelope written to every WebSocket client.
type Message struct {
	Type      string    `json:"type"`
	SessionID string    `json:"sessionId,omitempty"`
	Payload   any       `json:"payload,omitempty"`
	At        time.Time `json:"at"`
}

// Client is one WebSocket connection watching a filter session.
type Client struct {
	Conn      *websocket.Conn
	SessionID string
	Send      chan []byte
}

// NewClient wraps conn for sessionID.
func NewClient(conn *websocket.Conn, sessionID string) *Client {
	return &Client{Conn: conn, SessionID: sessionID, Send: make(chan []byte, clientBuffer)}
}

// SessionBroadcaster manages the connected clients of every session.
type SessionBroadcaster struct {
	sessionClients map[string]map[*Client]bool
	register       chan *Client
	unregister     chan *Client
	closeSession   chan string
	heartbeat      time.Duration
	done           chan struct{}
	dropped        atomic.Int64
	mu             sync.RWMutex
	logger         *logging.ChanneledLogger
}

var _ Publisher = (*SessionBroadcaster)(nil)

// NewSessionBroadcaster creates a hub. Run must be started before clients register.
func NewSessionBroadcaster(heartbeat time.Duration, logger *logging.ChanneledLogger) *SessionBroadcaster {
	if heartbeat <= 0 {
		heartbeat = 30 * time.Second
	}
	return &SessionBroadcaster{
		sessionClients: make(map[string]map[*Client]bool),
		register:       make(chan *Client),
		unregister:     make(chan *Client),
		closeSession:   make(chan string),
		heartbeat:      heartbeat,
		done:           make(chan struct{}),
		logger:         logger,
	}
}

// Run owns client membership until ctx is done, then closes every client.
func (b *SessionBroadcaster) Run(ctx context.Context) {
	ticker := time.NewTicker(b.heartbeat)
	defer ticker.Stop()
	defer close(b.done)

	for {
		select {
		case <-ctx.Done():
			b.mu.Lock()
			for sessionID, clients := range b.sessionClients {
				for client := range clients {
					close(client.Send)
				}
				delete(b.sessionClients, sessionID)
			}
			b.mu.Unlock()
			b.logger.WebSocket().Info("Session broadcaster stopped")
			return

		case client := <-b.register:
			b.mu.Lock()
			if _, ok := b.sessionClients[client.SessionID]; !ok {
				b.sessionClients[client.SessionID] = make(map[*Client]bool)
			}
			b.sessionClients[client.SessionID][client] = true
			count := len(b.sessionClients[client.SessionID])
			b.mu.Unlock()
			b.logger.WebSocket().Debug("WebSocket client registered",
				"sessionId", logging.MaskSessionID(client.SessionID), "clients", count)

		case client := <-b.unregister:
			b.mu.Lock()
			b.removeLocked(client)
			b.mu.Unlock()
			b.logger.WebSocket().Debug("WebSocket client unregistered",
				"sessionId", logging.MaskSessionID(client.SessionID))

		case sessionID := <-b.closeSession:
			b.mu.Lock()
			for client := range b.sessionClients[sessionID] {
				b.removeLocked(client)
			}
			b.mu.Unlock()

		case <-ticker.C:
			b.broadcastHeartbeat()
		}
	}
}

func (b *SessionBroadcaster) removeLocked(client *Client) {
	clients, ok := b.sessionClients[client.SessionID]
	if !ok {
		return
	}
	if _, ok := clients[client]; ok {
		delete(clients, client)
		close(client.Send)
		if len(clients) == 0 {
			delete(b.sessionClients, client.SessionID)
		}
	}
}

// Register queues a client for registration. It reports false once the hub has stopped.
func (b *SessionBroadcaster) Register(client *Client) bool {
	select {
	case b.register <- client:
		return true
	case <-b.done:
		return false
	}
}

// Unregister queues a client for removal.
func (b *SessionBroadcaster) Unregister(client *Client) {
	select {
	case b.unregister <- client:
	case <-b.done:
	}
}

// CloseSession disconnects every client of a session.
func (b *SessionBroadcaster) CloseSession(sessionID string) {
	b.Publish(sessionID, Message{Type: MessageExpired, SessionID: sessionID})
	select {
	case b.closeSession <- sessionID:
	case <-b.done:
	}
}

// Publish sends msg to every client of the session without blocking. Clients
// whose buffer is full miss the message.
func (b *SessionBroadcaster) Publish(sessionID string, msg Message) {
	if msg.At.IsZero() {
		msg.At = time.Now().UTC()
	}
	data, err := json.Marshal(msg)
	if err != nil {
		b.logger.WebSocket().Error("Failed to marshal websocket message", "type", msg.Type, "error", err.Error())
		return
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for client := range b.sessionClients[sessionID] {
		select {
		case client.Send <- data:
		default:
			b.dropped.Add(1)
		}
	}
}

func (b *SessionBroadcaster) broadcastHeartbeat() {
	b.mu.RLock()
	ids := make([]string, 0, len(b.sessionClients))
	for id := range b.sessionClients {
		ids = append(ids, id)
	}
	b.mu.RUnlock()

	for _, id := range ids {
		b.Publish(id, Message{Type: MessageHeartbeat, SessionID: id})
	}
}

// ClientCount returns the clients watching a session.
func (b *SessionBroadcaster) ClientCount(sessionID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.sessionClients[sessionID])
}

// TotalClients returns every connected client.
func (b *SessionBroadcaster) TotalClients() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	total := 0
	for _, clients := range b.sessionClients {
		total += len(clients)
	}
	return total
}

// Dropped counts messages skipped because a client was too slow.
func (b *SessionBroadcaster) Dropped() int64 {
	return b.dropped.Load()
}
