package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/woodland-analytics/woodland-dash/internal/application/services"
	"github.com/woodland-analytics/woodland-dash/internal/domain/filters"
	"github.com/woodland-analytics/woodland-dash/internal/infrastructure/observability/logging"
)

// DashboardHandlers serves aggregated dashboard payloads.
type DashboardHandlers struct {
	dashboardService *services.DashboardService
	sessionService   *services.FilterSessionService
	logger           *logging.ChanneledLogger
}

func NewDashboardHandlers(dashboardService *services.DashboardService, sessionService *services.FilterSessionService, logger *logging.ChanneledLogger) *DashboardHandlers {
	return &DashboardHandlers{
		dashboardService: dashboardService,
		sessionService:   sessionService,
		logger:           logger,
	}
}

// GetDashboard handles GET /api/v1/dashboards/:kind with the filter state
// encoded in the query. Omitted dimensions are the wildcard.
func (h *DashboardHandlers) GetDashboard(c *gin.Context) {
	kind, err := filters.ParseDashboard(c.Param("kind"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	state, err := filters.ParseQuery(c.Request.URL.Query())
	if err != nil {
		respondError(c, err)
		return
	}

	var payload any
	switch kind {
	case filters.DashboardSales:
		payload = h.dashboardService.Sales(c.Request.Context(), state, time.Time{})
	default:
		payload = h.dashboardService.Consumption(c.Request.Context(), state, time.Time{})
	}
	c.JSON(http.StatusOK, gin.H{"dashboard": kind, "filters": state, "data": payload})
}

// GetSessionDashboard handles GET /api/v1/sessions/:id/dashboard using the
// session's current filters and refresh stamp.
func (h *DashboardHandlers) GetSessionDashboard(c *gin.Context) {
	snap, err := h.sessionService.Snapshot(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	payload := h.dashboardService.ForSnapshot(c.Request.Context(), snap)
	c.JSON(http.StatusOK, gin.H{"dashboard": snap.Dashboard, "snapshot": snap, "data": payload})
}
