package logging

import (
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/oklog/ulid/v2"
)

// LogEntry represents a single log line sent to SSE clients.
type LogEntry struct {
	Timestamp string `json:"timestamp"`
	Channel   string `json:"channel"`
	Level     string `json:"level"`
	Message   string `json:"message"`
	SessionID string `json:"sessionId,omitempty"`
}

// Client is one connected log viewer.
type Client struct {
	id      string
	Channel chan []byte
	filters AppliedFilters
}

// ID returns the client identifier.
func (c *Client) ID() string { return c.id }

// AppliedFilters defines what a client wants to see. Channel "all" matches
// every channel; Level is the minimum severity.
type AppliedFilters struct {
	Channel Channel
	Level   slog.Level
}

func (f AppliedFilters) matches(entry LogEntry) bool {
	if f.Channel != "all" && f.Channel != Channel(entry.Channel) {
		return false
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(entry.Level)); err != nil {
		return false
	}
	return level >= f.Level
}

// LogBroadcaster fans log entries out to registered clients.
type LogBroadcaster struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan LogEntry
	mu         sync.RWMutex
	stop       chan struct{}
	stopOnce   sync.Once
	dropped    atomic.Uint64
}

var (
	broadcaster *LogBroadcaster
	once        sync.Once
)

// GetBroadcaster returns the process-wide broadcaster, starting it on first use.
func GetBroadcaster() *LogBroadcaster {
	once.Do(func() {
		broadcaster = NewLogBroadcaster()
		go broadcaster.run()
	})
	return broadcaster
}

// NewLogBroadcaster creates a broadcaster that is not yet running. Most
// callers want GetBroadcaster.
func NewLogBroadcaster() *LogBroadcaster {
	return &LogBroadcaster{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan LogEntry, 1000),
		stop:       make(chan struct{}),
	}
}

// Run processes registrations and entries until Shutdown.
func (b *LogBroadcaster) Run() { b.run() }

func (b *LogBroadcaster) run() {
	for {
		select {
		case <-b.stop:
			b.mu.Lock()
			for client := range b.clients {
				delete(b.clients, client)
				close(client.Channel)
			}
			b.mu.Unlock()
			return
		case client := <-b.register:
			b.mu.Lock()
			b.clients[client] = true
			b.mu.Unlock()
		case client := <-b.unregister:
			b.mu.Lock()
			if _, ok := b.clients[client]; ok {
				delete(b.clients, client)
				close(client.Channel)
			}
			b.mu.Unlock()
		case entry := <-b.broadcast:
			b.distribute(entry)
		}
	}
}

func (b *LogBroadcaster) distribute(entry LogEntry) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(b.clients) == 0 {
		return
	}

	message, err := json.Marshal(entry)
	if err != nil {
		return
	}
	for client := range b.clients {
		if !client.filters.matches(entry) {
			continue
		}
		select {
		case client.Channel <- message:
		default:
			// Slow viewer; drop rather than block the logger.
		}
	}
}

// SubmitLog queues an entry without blocking. Entries are dropped when the
// queue is full.
func (b *LogBroadcaster) SubmitLog(entry LogEntry) {
	select {
	case b.broadcast <- entry:
	default:
		b.dropped.Add(1)
	}
}

// Dropped reports how many entries were discarded because the queue was full.
func (b *LogBroadcaster) Dropped() uint64 {
	return b.dropped.Load()
}

// ClientCount returns the number of connected viewers.
func (b *LogBroadcaster) ClientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}

// NewClient creates a client for the broadcaster.
func (b *LogBroadcaster) NewClient(filters AppliedFilters) *Client {
	return &Client{
		id:      ulid.Make().String(),
		Channel: make(chan []byte, 100),
		filters: filters,
	}
}

// Shutdown stops the broadcaster and closes every client channel.
func (b *LogBroadcaster) Shutdown() {
	b.stopOnce.Do(func() { close(b.stop) })
}

// RegisterClient adds a client.
func (b *LogBroadcaster) RegisterClient(client *Client) {
	select {
	case b.register <- client:
	case <-b.stop:
	}
}

// UnregisterClient removes a client and closes its channel.
func (b *LogBroadcaster) UnregisterClient(client *Client) {
	select {
	case b.unregister <- client:
	case <-b.stop:
	}
}
