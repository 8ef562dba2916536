package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/woodland-analytics/woodland-dash/internal/application/services"
	"github.com/woodland-analytics/woodland-dash/internal/infrastructure/observability/logging"
	"github.com/woodland-analytics/woodland-dash/internal/infrastructure/security"
)

const sessionClaimsKey = "sessionClaims"

// BearerToken extracts the token from the Authorization header, falling back
// to the token query parameter used by WebSocket clients.
func BearerToken(c *gin.Context) string {
	if header := c.GetHeader("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(header[len("Bearer "):])
	}
	return c.Query("token")
}

// SessionAuthMiddleware requires a session token issued for the :id route
// parameter.
func SessionAuthMiddleware(auth *services.AuthService, logger *logging.ChanneledLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := c.Param("id")
		token := BearerToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "session token required"})
			return
		}

		claims, err := auth.ValidateSessionToken(token, sessionID)
		if err != nil {
			logger.Auth().Debug("Rejected session token",
				"sessionId", logging.MaskSessionID(sessionID),
				"path", c.FullPath(),
				"error", err.Error())
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid session token"})
			return
		}

		c.Set(sessionClaimsKey, claims)
		c.Next()
	}
}

// GetSessionClaims returns the claims stored by SessionAuthMiddleware.
func GetSessionClaims(c *gin.Context) (*security.SessionClaims, bool) {
	v, ok := c.Get(sessionClaimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*security.SessionClaims)
	return claims, ok
}

// SysOpAuthMiddleware protects SysOp endpoints with a sysop bearer token.
func SysOpAuthMiddleware(auth *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := BearerToken(c)
		if token == "" || auth.ValidateSysopToken(token) != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		c.Next()
	}
}
