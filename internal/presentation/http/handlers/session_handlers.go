package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/woodland-analytics/woodland-dash/internal/application/services"
	"github.com/woodland-analytics/woodland-dash/internal/domain/filters"
	"github.com/woodland-analytics/woodland-dash/internal/infrastructure/observability/logging"
	"github.com/woodland-analytics/woodland-dash/internal/presentation/http/middleware"
)

// SessionHandlers exposes filter sessions over HTTP.
type SessionHandlers struct {
	sessionService *services.FilterSessionService
	logger         *logging.ChanneledLogger
}

func NewSessionHandlers(sessionService *services.FilterSessionService, logger *logging.ChanneledLogger) *SessionHandlers {
	return &SessionHandlers{sessionService: sessionService, logger: logger}
}

// CreateSessionRequest is the body of POST /api/v1/sessions.
type CreateSessionRequest struct {
	Dashboard string `json:"dashboard" binding:"required"`
}

// SetFilterRequest is the body of PUT /api/v1/sessions/:id/filters/:field.
type SetFilterRequest struct {
	Value string `json:"value"`
}

// PostSession handles POST /api/v1/sessions.
func (h *SessionHandlers) PostSession(c *gin.Context) {
	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}
	dashboard, err := filters.ParseDashboard(req.Dashboard)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.sessionService.Create(dashboard)
	if err != nil {
		h.logger.Session().Warn("Filter session creation failed", "dashboard", dashboard, "error", err.Error())
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

// GetSession handles GET /api/v1/sessions/:id.
func (h *SessionHandlers) GetSession(c *gin.Context) {
	snap, err := h.sessionService.Snapshot(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// PutFilter handles PUT /api/v1/sessions/:id/filters/:field. With ?wait=true
// the response waits until every resolution the change started has landed.
func (h *SessionHandlers) PutFilter(c *gin.Context) {
	var req SetFilterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format"})
		return
	}

	snap, err := h.sessionService.SetFilter(c.Request.Context(), c.Param("id"), c.Param("field"), req.Value, wantWait(c))
	if errors.Is(err, filters.ErrInvalidValue) {
		if allowed, ok := allowedValues(c.Param("field")); ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "allowed": allowed})
			return
		}
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// PostReset handles POST /api/v1/sessions/:id/reset.
func (h *SessionHandlers) PostReset(c *gin.Context) {
	snap, err := h.sessionService.Reset(c.Request.Context(), c.Param("id"), wantWait(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// PostRefresh handles POST /api/v1/sessions/:id/refresh.
func (h *SessionHandlers) PostRefresh(c *gin.Context) {
	snap, err := h.sessionService.Refresh(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// GetEvents handles GET /api/v1/sessions/:id/events?limit=.
func (h *SessionHandlers) GetEvents(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		limit = n
	}

	result, err := h.sessionService.Events(c.Param("id"), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// DeleteSession handles DELETE /api/v1/sessions/:id.
func (h *SessionHandlers) DeleteSession(c *gin.Context) {
	id := c.Param("id")
	if !h.sessionService.Remove(id) {
		c.JSON(http.StatusNotFound, gin.H{"error": "filter session not found"})
		return
	}
	dashboard := ""
	if claims, ok := middleware.GetSessionClaims(c); ok {
		dashboard = claims.Dashboard
	}
	h.logger.Session().Info("Filter session closed by client", "sessionId", logging.MaskSessionID(id), "dashboard", dashboard)
	c.JSON(http.StatusOK, gin.H{"success": true, "closedAt": time.Now().UTC()})
}

func wantWait(c *gin.Context) bool {
	wait, _ := strconv.ParseBool(c.Query("wait"))
	return wait
}

func allowedValues(name string) ([]string, bool) {
	field, err := filters.ParseField(name)
	if err != nil {
		return nil, false
	}
	return filters.EnumValues(field)
}
