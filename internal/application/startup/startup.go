// Package startup prepares the application server
package startup

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/woodland-analytics/woodland-dash/internal/application/container"
	"github.com/woodland-analytics/woodland-dash/internal/application/services"
	"github.com/woodland-analytics/woodland-dash/internal/domain/events"
	"github.com/woodland-analytics/woodland-dash/internal/infrastructure/backend"
	"github.com/woodland-analytics/woodland-dash/internal/infrastructure/caching/cleanup"
	"github.com/woodland-analytics/woodland-dash/internal/infrastructure/caching/manager"
	schema "github.com/woodland-analytics/woodland-dash/internal/infrastructure/database"
	"github.com/woodland-analytics/woodland-dash/internal/infrastructure/messaging"
	"github.com/woodland-analytics/woodland-dash/internal/infrastructure/observability/logging"
	"github.com/woodland-analytics/woodland-dash/internal/infrastructure/observability/performance"
	"github.com/woodland-analytics/woodland-dash/internal/infrastructure/persistence/database"
	eventsrepo "github.com/woodland-analytics/woodland-dash/internal/infrastructure/persistence/events"
	"github.com/woodland-analytics/woodland-dash/internal/infrastructure/security"
	"github.com/woodland-analytics/woodland-dash/internal/presentation/http/server"
	"github.com/woodland-analytics/woodland-dash/pkg/config"
)

const shutdownTimeout = 30 * time.Second

// Initialize performs the complete startup sequence and blocks until a
// shutdown signal arrives.
func Initialize() error {
	setupLogging()

	start := time.Now().UTC()

	ctx, cancelBackgroundTasks := context.WithCancel(context.Background())
	defer cancelBackgroundTasks()

	log.Println("\033[32m" + `

 ██╗    ██╗ ██████╗  ██████╗ ██████╗ ██╗      █████╗ ███╗   ██╗██████╗
 ██║    ██║██╔═══██╗██╔═══██╗██╔══██╗██║     ██╔══██╗████╗  ██║██╔══██╗
 ██║ █╗ ██║██║   ██║██║   ██║██║  ██║██║     ███████║██╔██╗ ██║██║  ██║
 ██║███╗██║██║   ██║██║   ██║██║  ██║██║     ██╔══██║██║╚██╗██║██║  ██║
 ╚███╔███╔╝╚██████╔╝╚██████╔╝██████╔╝███████╗██║  ██║██║ ╚████║██████╔╝
  ╚══╝╚══╝  ╚═════╝  ╚═════╝ ╚═════╝ ╚══════╝╚═╝  ╚═╝╚═╝  ╚═══╝╚═════╝
` + "\033[97m" + `
  forecasting dashboard gateway
` + "\033[0m")

	// Step 1: Channeled logger and log streaming
	log.Println("Initializing logger...")
	logBroadcaster := logging.GetBroadcaster()
	logger, err := logging.NewChanneledLogger(loggerConfig())
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Close()
	logger.Startup().Info("Logger initialized - switching to channeled logging",
		"directory", config.LogDirectory,
		"toFile", config.LogToFile,
		"level", config.LogLevel)

	perfTracker := performance.NewTracker(&performance.TrackerConfig{
		MaxMarkers:   performance.DefaultTrackerConfig().MaxMarkers,
		MaxAlerts:    performance.DefaultTrackerConfig().MaxAlerts,
		EnableAlerts: true,
		OnAlert: func(alert *performance.PerformanceAlert) {
			logger.Alert().Warn(alert.Message,
				"operation", alert.Operation,
				"severity", alert.Severity,
				"threshold", alert.Threshold,
				"actual", alert.Actual)
		},
	}, performance.DefaultAlertThresholds(config.SlowOperationThreshold))

	// Step 2: Audit database
	var auditDB *database.DB
	var auditRepo events.Repository
	if config.AuditEnabled {
		logger.Startup().Info("Opening audit database...")
		stepStart := time.Now()
		auditDB, err = database.Open(database.OptionsFromConfig(), logger)
		if err != nil {
			return fmt.Errorf("failed to open audit database: %w", err)
		}
		defer func() {
			if err := auditDB.Close(); err != nil {
				logger.Shutdown().Error("Error closing audit database", "error", err.Error())
			}
		}()
		if err := schema.NewTableCreator().CreateSchema(auditDB.DB); err != nil {
			return fmt.Errorf("failed to create audit schema: %w", err)
		}
		auditRepo = eventsrepo.NewSQLFilterEventRepository(auditDB, logger)
		logger.LogStartupPhase("audit_database", time.Since(stepStart), true, map[string]any{"driver": auditDB.Driver})
	} else {
		logger.Startup().Info("Audit trail disabled")
	}

	// Step 3: Analytics backend client
	logger.Startup().Info("Configuring analytics backend client...", "baseURL", config.BackendBaseURL)
	backendClient := backend.NewClient(config.BackendBaseURL, config.BackendTimeout, logger, perfTracker)

	// Step 4: Dependency injection container
	logger.Startup().Info("Initializing dependency injection container...")
	jwtSecret := config.SessionJWTSecret
	if jwtSecret == "" {
		jwtSecret, err = security.GenerateSecureKey(64)
		if err != nil {
			return fmt.Errorf("failed to generate session secret: %w", err)
		}
		logger.Startup().Warn("SESSION_JWT_SECRET not set, using a generated secret; session tokens will not survive a restart")
	}

	broadcaster := messaging.NewSessionBroadcaster(config.WSHeartbeatInterval, logger)
	cacheManager := manager.NewManager(config.MaxSessions, logger)

	appContainer, err := container.NewContainer(container.Dependencies{
		Logger:         logger,
		LogBroadcaster: logBroadcaster,
		PerfTracker:    perfTracker,
		CacheManager:   cacheManager,
		BackendClient:  backendClient,
		Broadcaster:    broadcaster,
		AuditDB:        auditDB,
		AuditRepo:      auditRepo,
	}, container.Settings{
		Retry: services.RetryConfig{
			MaxAttempts:     config.MetadataRetryMaxAttempts,
			InitialInterval: config.MetadataRetryInitialInterval,
			MaxInterval:     config.MetadataRetryMaxInterval,
		},
		RefreshFor:       config.RefreshIndicatorDuration,
		DashboardTimeout: config.BackendTimeout,
		JWTSecret:        jwtSecret,
		TokenTTL:         config.SessionTokenTTL,
		SysopPassword:    config.SysopPassword,
	})
	if err != nil {
		return fmt.Errorf("failed to build container: %w", err)
	}
	logger.Startup().Info("Dependency injection container created with singleton services",
		"sysopEnabled", config.SysopPassword != "")

	// Step 5: Filter metadata
	logger.Startup().Info("Loading filter metadata...")
	stepStart := time.Now()
	if err := appContainer.MetadataService.Load(ctx); err != nil {
		started := appContainer.MetadataService.StartBackgroundRetry(ctx)
		logger.Startup().Warn("Filter metadata unavailable, filters disabled until it loads",
			"error", err.Error(),
			"backgroundRetry", started,
			"duration", time.Since(stepStart))
	} else {
		logger.Startup().Info("Filter metadata loaded", "duration", time.Since(stepStart))
	}

	// Step 6: Session cleanup worker
	logger.Startup().Info("Starting background cleanup worker...")
	cleanupWorker := cleanup.NewWorker(cacheManager, cleanup.NewConfig(), logger)
	cleanupWorker.OnEvict = appContainer.FilterSessionService.Evicted
	go cleanupWorker.Start(ctx)

	// Step 7: WebSocket hub and audit writer
	logger.Startup().Info("Starting WebSocket hub...")
	go broadcaster.Run(ctx)
	auditDone := make(chan struct{})
	go func() {
		defer close(auditDone)
		appContainer.FilterSessionService.RunAuditWriter(ctx)
	}()

	// Step 8: HTTP server
	logger.Startup().Info("Starting HTTP server...")
	stepStart = time.Now()
	httpServer := server.New(config.Port, appContainer)
	logger.Startup().Info("HTTP server initialized", "port", config.Port, "duration", time.Since(stepStart))

	gracefulShutdown := make(chan os.Signal, 1)
	signal.Notify(gracefulShutdown, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.System().Info("Starting HTTP server", "address", ":"+config.Port)
		if err := httpServer.Start(); err != nil {
			logger.System().Error("HTTP server failed", "error", err.Error())
			gracefulShutdown <- syscall.SIGTERM
		}
	}()

	logger.Startup().Info("Application startup complete",
		"totalDuration", time.Since(start),
		"metadataLoaded", appContainer.MetadataService.Metadata() != nil,
		"port", config.Port)

	<-gracefulShutdown
	logger.Shutdown().Info("Shutdown signal received, starting graceful shutdown...")
	shutdownStart := time.Now()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	logger.Shutdown().Info("Stopping HTTP server...")
	if err := httpServer.Stop(shutdownCtx); err != nil {
		logger.Shutdown().Error("Error during server shutdown", "error", err.Error())
	} else {
		logger.Shutdown().Info("HTTP server stopped successfully")
	}

	closed := cacheManager.CloseAll()
	logger.Shutdown().Info("Filter sessions closed", "count", closed)

	cancelBackgroundTasks()
	select {
	case <-auditDone:
	case <-shutdownCtx.Done():
		logger.Shutdown().Warn("Audit writer did not drain before the shutdown deadline")
	}
	logger.Perf().Info("Performance summary", "overall", perfTracker.GetOverallStats())
	logBroadcaster.Shutdown()

	logger.Shutdown().Info("Application shutdown complete",
		"totalUptime", time.Since(start),
		"shutdownDuration", time.Since(shutdownStart))

	return nil
}

func loggerConfig() *logging.LoggerConfig {
	cfg := logging.DefaultLoggerConfig()
	cfg.OutputToFile = config.LogToFile
	cfg.LogDirectory = config.LogDirectory
	cfg.JSONFormat = config.LogJSON
	if level, err := logging.ParseLevel(config.LogLevel); err == nil {
		cfg.DefaultLevel = level
	} else {
		log.Printf("Ignoring LOG_LEVEL: %v", err)
	}
	return cfg
}

// setupLogging configures application logging
func setupLogging() {
	if os.Getenv("GIN_MODE") == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	log.SetFlags(log.LstdFlags | log.Lshortfile)
}
