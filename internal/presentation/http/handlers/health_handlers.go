package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/woodland-analytics/woodland-dash/internal/application/services"
	"github.com/woodland-analytics/woodland-dash/internal/infrastructure/observability/performance"
)

// HealthHandlers reports liveness and metadata readiness.
type HealthHandlers struct {
	metadataService *services.MetadataService
	sessionService  *services.FilterSessionService
	perfTracker     *performance.Tracker
	started         time.Time
}

func NewHealthHandlers(metadataService *services.MetadataService, sessionService *services.FilterSessionService, perfTracker *performance.Tracker) *HealthHandlers {
	return &HealthHandlers{
		metadataService: metadataService,
		sessionService:  sessionService,
		perfTracker:     perfTracker,
		started:         time.Now(),
	}
}

// GetHealth handles GET /api/v1/health. It always answers 200; readiness is
// reported in the body.
func (h *HealthHandlers) GetHealth(c *gin.Context) {
	status := h.metadataService.Status()
	state := "ok"
	if !status.Loaded {
		state = "loading"
	}
	c.JSON(http.StatusOK, gin.H{
		"status":       state,
		"metadata":     status,
		"liveSessions": h.sessionService.Count(),
		"performance":  h.perfTracker.Health(),
		"uptime":       time.Since(h.started).Round(time.Second).String(),
	})
}
