// Package messaging pushes filter-session snapshots to WebSocket clients.
package messaging

// Publisher delivers messages to the clients watching a session.
type Publisher interface {
	Publish(sessionID string, msg Message)
	CloseSession(sessionID string)
	ClientCount(sessionID string) int
}
