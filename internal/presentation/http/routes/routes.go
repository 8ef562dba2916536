// Package routes provides HTTP route configuration for the presentation layer.
package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/woodland-analytics/woodland-dash/internal/application/container"
	"github.com/woodland-analytics/woodland-dash/internal/presentation/http/handlers"
	"github.com/woodland-analytics/woodland-dash/internal/presentation/http/middleware"
)

// SetupRoutes configures all HTTP routes and middleware with dependency injection.
func SetupRoutes(container *container.Container, allowedOrigins []string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if gin.Mode() != gin.ReleaseMode {
		r.Use(gin.Logger())
	}

	r.Use(middleware.CORSMiddleware(allowedOrigins))
	r.Use(middleware.PerformanceMiddleware(container.PerfTracker))

	// Initialize handlers
	healthHandlers := handlers.NewHealthHandlers(container.MetadataService, container.FilterSessionService, container.PerfTracker)
	filterHandlers := handlers.NewFilterHandlers(container.MetadataService, container.ScopedOptionsService, container.Logger)
	sessionHandlers := handlers.NewSessionHandlers(container.FilterSessionService, container.Logger)
	dashboardHandlers := handlers.NewDashboardHandlers(container.DashboardService, container.FilterSessionService, container.Logger)
	wsHandlers := handlers.NewWebSocketHandlers(container.FilterSessionService, container.Broadcaster, allowedOrigins, container.Logger)
	sysopHandlers := handlers.NewSysOpHandlers(container)

	sysopAPI := r.Group("/api/sysop")
	{
		sysopAPI.POST("/login", sysopHandlers.Login)

		// SysOp Authenticated endpoints
		authed := sysopAPI.Group("")
		authed.Use(middleware.SysOpAuthMiddleware(container.AuthService))
		{
			authed.GET("/sessions", sysopHandlers.GetSessions)
			authed.GET("/performance", sysopHandlers.GetPerformance)
			authed.GET("/logs/levels", sysopHandlers.GetLogLevels)
			authed.POST("/logs/levels", sysopHandlers.SetLogLevel)
			authed.GET("/logs/stream", sysopHandlers.StreamLogs)
		}
	}

	api := r.Group("/api/v1")
	{
		api.GET("/health", healthHandlers.GetHealth)

		api.GET("/filters", filterHandlers.GetMetadata)
		api.GET("/filters/options/:field", filterHandlers.GetOptions)

		api.GET("/dashboards/:kind", dashboardHandlers.GetDashboard)

		api.POST("/sessions", sessionHandlers.PostSession)

		// Session routes require the session's bearer handle
		session := api.Group("/sessions/:id")
		session.Use(middleware.SessionAuthMiddleware(container.AuthService, container.Logger))
		{
			session.GET("", sessionHandlers.GetSession)
			session.DELETE("", sessionHandlers.DeleteSession)
			session.PUT("/filters/:field", sessionHandlers.PutFilter)
			session.POST("/reset", sessionHandlers.PostReset)
			session.POST("/refresh", sessionHandlers.PostRefresh)
			session.GET("/dashboard", dashboardHandlers.GetSessionDashboard)
			session.GET("/events", sessionHandlers.GetEvents)
			session.GET("/ws", wsHandlers.GetStream)
		}
	}

	return r
}
