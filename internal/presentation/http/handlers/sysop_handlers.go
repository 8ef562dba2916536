package handlers

import (
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/woodland-analytics/woodland-dash/internal/application/container"
	"github.com/woodland-analytics/woodland-dash/internal/application/services"
	"github.com/woodland-analytics/woodland-dash/internal/infrastructure/observability/logging"
)

// SysOpHandlers handles operator login, session statistics and log streaming.
type SysOpHandlers struct {
	container *container.Container
}

// NewSysOpHandlers creates new SysOp handlers
func NewSysOpHandlers(container *container.Container) *SysOpHandlers {
	return &SysOpHandlers{
		container: container,
	}
}

// Login handles POST /api/sysop/login.
func (h *SysOpHandlers) Login(c *gin.Context) {
	var request struct {
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	result := h.container.AuthService.AuthenticateSysop(request.Password)
	if !result.Success {
		status := http.StatusUnauthorized
		if result.Error == services.ErrSysopDisabled.Error() {
			status = http.StatusForbidden
		}
		c.JSON(status, gin.H{"error": result.Error})
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetSessions handles GET /api/sysop/sessions.
func (h *SysOpHandlers) GetSessions(c *gin.Context) {
	sessions := h.container.FilterSessionService
	ids := h.container.CacheManager.SessionIDs()
	masked := make([]string, 0, len(ids))
	for _, id := range ids {
		masked = append(masked, logging.MaskSessionID(id))
	}
	response := gin.H{
		"liveSessions": sessions.Count(),
		"sessionIds":   masked,
		"byDashboard":  sessions.CountByDashboard(),
		"auditDropped": sessions.AuditDropped(),
		"metadata":     h.container.MetadataService.Status(),
	}
	if h.container.Broadcaster != nil {
		response["websocketClients"] = h.container.Broadcaster.TotalClients()
		response["websocketDropped"] = h.container.Broadcaster.Dropped()
	}
	c.JSON(http.StatusOK, response)
}

// GetPerformance handles GET /api/sysop/performance.
func (h *SysOpHandlers) GetPerformance(c *gin.Context) {
	tracker := h.container.PerfTracker
	c.JSON(http.StatusOK, gin.H{
		"health":     tracker.Health(),
		"overall":    tracker.GetOverallStats(),
		"operations": tracker.GetOperationStats(),
		"alerts":     tracker.GetAlerts(),
	})
}

// StreamLogs handles the SSE connection for live log streaming.
func (h *SysOpHandlers) StreamLogs(c *gin.Context) {
	broadcaster := h.container.LogBroadcaster
	if broadcaster == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Log broadcaster not available"})
		return
	}

	level, err := logging.ParseLevel(c.DefaultQuery("level", string(logging.LevelInfo)))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	client := broadcaster.NewClient(logging.AppliedFilters{
		Channel: logging.Channel(c.DefaultQuery("channel", "all")),
		Level:   level,
	})
	broadcaster.RegisterClient(client)
	defer broadcaster.UnregisterClient(client)

	fmt.Fprintf(c.Writer, ": connection established\n\n")
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case message, ok := <-client.Channel:
			if !ok {
				return false
			}
			fmt.Fprintf(w, "data: %s\n\n", message)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

// GetLogLevels returns the current level of every channel.
func (h *SysOpHandlers) GetLogLevels(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"levels": h.container.Logger.GetChannelLevels()})
}

// SetLogLevel changes one channel's level at runtime.
func (h *SysOpHandlers) SetLogLevel(c *gin.Context) {
	var req struct {
		Channel string `json:"channel" binding:"required"`
		Level   string `json:"level" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	level, err := logging.ParseLevel(req.Level)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.container.Logger.SetChannelLevel(logging.Channel(req.Channel), level); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "levels": h.container.Logger.GetChannelLevels()})
}
