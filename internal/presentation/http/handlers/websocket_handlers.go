package handlers

import (
	"encoding/json"
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/woodland-analytics/woodland-dash/internal/application/services"
	"github.com/woodland-analytics/woodland-dash/internal/infrastructure/messaging"
	"github.com/woodland-analytics/woodland-dash/internal/infrastructure/observability/logging"
)

// WebSocketHandlers upgrades session clients onto the snapshot stream.
type WebSocketHandlers struct {
	sessionService *services.FilterSessionService
	broadcaster    *messaging.SessionBroadcaster
	upgrader       websocket.Upgrader
	logger         *logging.ChanneledLogger
}

// NewWebSocketHandlers accepts upgrades from the given origins. Requests
// without an Origin header (non-browser clients) are accepted too.
func NewWebSocketHandlers(sessionService *services.FilterSessionService, broadcaster *messaging.SessionBroadcaster, origins []string, logger *logging.ChanneledLogger) *WebSocketHandlers {
	return &WebSocketHandlers{
		sessionService: sessionService,
		broadcaster:    broadcaster,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || slices.Contains(origins, origin)
			},
		},
		logger: logger,
	}
}

// GetStream handles GET /api/v1/sessions/:id/ws. The first frame is the
// current snapshot; later frames follow every state change.
func (h *WebSocketHandlers) GetStream(c *gin.Context) {
	id := c.Param("id")
	snap, err := h.sessionService.Snapshot(id)
	if err != nil {
		respondError(c, err)
		return
	}
	initial, err := json.Marshal(messaging.Message{
		Type:      messaging.MessageSnapshot,
		SessionID: id,
		Payload:   snap,
		At:        snap.LastActivity,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the error response.
		h.logger.WebSocket().Warn("WebSocket upgrade failed", "sessionId", logging.MaskSessionID(id), "error", err.Error())
		return
	}

	h.logger.WebSocket().Debug("WebSocket client connected", "sessionId", logging.MaskSessionID(id))
	h.broadcaster.Serve(messaging.NewClient(conn, id), initial)
	h.logger.WebSocket().Debug("WebSocket client disconnected", "sessionId", logging.MaskSessionID(id))
}
