package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/woodland-analytics/woodland-dash/internal/application/services"
	"github.com/woodland-analytics/woodland-dash/internal/domain/filters"
	"github.com/woodland-analytics/woodland-dash/internal/infrastructure/observability/logging"
)

// FilterHandlers serves filter metadata and stateless option lookups.
type FilterHandlers struct {
	metadataService *services.MetadataService
	scopedOptions   *services.ScopedOptionsService
	logger          *logging.ChanneledLogger
}

func NewFilterHandlers(metadataService *services.MetadataService, scopedOptions *services.ScopedOptionsService, logger *logging.ChanneledLogger) *FilterHandlers {
	return &FilterHandlers{
		metadataService: metadataService,
		scopedOptions:   scopedOptions,
		logger:          logger,
	}
}

// GetMetadata handles GET /api/v1/filters.
func (h *FilterHandlers) GetMetadata(c *gin.Context) {
	md := h.metadataService.Metadata()
	if md == nil {
		h.respondLoading(c)
		return
	}
	c.JSON(http.StatusOK, md)
}

func (h *FilterHandlers) respondLoading(c *gin.Context) {
	status := h.metadataService.Status()
	c.JSON(http.StatusServiceUnavailable, gin.H{
		"status":   "loading",
		"attempts": status.Attempts,
		"error":    status.LastError,
	})
}

// GetOptions handles GET /api/v1/filters/options/:field?value=. The field is
// the dependent field's wire name (rawMaterial, sku, store, product) or its
// plural metadata key.
func (h *FilterHandlers) GetOptions(c *gin.Context) {
	field, err := dependentField(c.Param("field"))
	if err != nil {
		respondError(c, err)
		return
	}

	result, err := h.scopedOptions.Lookup(c.Request.Context(), field, c.Query("value"))
	if errors.Is(err, services.ErrMetadataLoading) {
		h.respondLoading(c)
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func dependentField(name string) (filters.Field, error) {
	for _, f := range filters.DimensionFields {
		if f.MetadataKey() == name {
			return f, nil
		}
	}
	return filters.ParseField(name)
}
