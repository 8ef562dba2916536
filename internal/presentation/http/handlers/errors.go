// Package handlers provides HTTP request handlers for the presentation layer.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/woodland-analytics/woodland-dash/internal/application/services"
	"github.com/woodland-analytics/woodland-dash/internal/domain/filters"
	"github.com/woodland-analytics/woodland-dash/internal/infrastructure/caching/stores"
	"github.com/woodland-analytics/woodland-dash/internal/infrastructure/security"
)

// statusFor maps service and domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, filters.ErrUnknownField), errors.Is(err, filters.ErrInvalidValue):
		return http.StatusBadRequest
	case errors.Is(err, stores.ErrSessionNotFound), errors.Is(err, filters.ErrSessionClosed):
		return http.StatusNotFound
	case errors.Is(err, stores.ErrSessionLimit):
		return http.StatusTooManyRequests
	case errors.Is(err, security.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, services.ErrAuditDisabled):
		return http.StatusNotImplemented
	case errors.Is(err, services.ErrSysopDisabled):
		return http.StatusForbidden
	case errors.Is(err, services.ErrMetadataLoading):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func respondError(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
}
