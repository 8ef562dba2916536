// Package container provides dependency injection for all singleton services
package container

import (
	"time"

	"github.com/woodland-analytics/woodland-dash/internal/application/services"
	"github.com/woodland-analytics/woodland-dash/internal/domain/events"
	"github.com/woodland-analytics/woodland-dash/internal/infrastructure/backend"
	"github.com/woodland-analytics/woodland-dash/internal/infrastructure/caching"
	"github.com/woodland-analytics/woodland-dash/internal/infrastructure/caching/manager"
	"github.com/woodland-analytics/woodland-dash/internal/infrastructure/messaging"
	"github.com/woodland-analytics/woodland-dash/internal/infrastructure/observability/logging"
	"github.com/woodland-analytics/woodland-dash/internal/infrastructure/observability/performance"
	"github.com/woodland-analytics/woodland-dash/internal/infrastructure/persistence/database"
)

// Container holds all singleton services and infrastructure dependencies
type Container struct {
	// Application Services
	MetadataService      *services.MetadataService
	FilterSessionService *services.FilterSessionService
	DashboardService     *services.DashboardService
	ScopedOptionsService *services.ScopedOptionsService
	AuthService          *services.AuthService

	// Infrastructure Dependencies
	Logger         *logging.ChanneledLogger
	LogBroadcaster *logging.LogBroadcaster
	PerfTracker    *performance.Tracker
	CacheManager   *manager.Manager
	WarmingLock    *caching.WarmingLock
	BackendClient  *backend.Client
	Broadcaster    *messaging.SessionBroadcaster

	// Audit trail; both nil when disabled
	AuditDB   *database.DB
	AuditRepo events.Repository
}

// Dependencies are the infrastructure pieces built before the container.
type Dependencies struct {
	Logger         *logging.ChanneledLogger
	LogBroadcaster *logging.LogBroadcaster
	PerfTracker    *performance.Tracker
	CacheManager   *manager.Manager
	BackendClient  *backend.Client
	Broadcaster    *messaging.SessionBroadcaster
	AuditDB        *database.DB
	AuditRepo      events.Repository
}

// Settings carries the tunables the services need.
type Settings struct {
	Retry            services.RetryConfig
	RefreshFor       time.Duration
	DashboardTimeout time.Duration
	JWTSecret        string
	TokenTTL         time.Duration
	SysopPassword    string
}

// NewContainer creates and wires all singleton services
func NewContainer(deps Dependencies, settings Settings) (*Container, error) {
	authService, err := services.NewAuthService(
		settings.JWTSecret,
		settings.TokenTTL,
		settings.SysopPassword,
		deps.Logger,
		deps.PerfTracker,
	)
	if err != nil {
		return nil, err
	}

	lock := caching.NewWarmingLock()
	metadataService := services.NewMetadataService(deps.BackendClient, lock, settings.Retry, deps.Logger, deps.PerfTracker)

	sessionDeps := services.FilterSessionDeps{
		Cache:      deps.CacheManager,
		Metadata:   metadataService,
		Fetcher:    deps.BackendClient,
		Auth:       authService,
		Audit:      deps.AuditRepo,
		RefreshFor: settings.RefreshFor,
	}
	// A typed nil pointer would defeat the service's nil checks.
	if deps.Broadcaster != nil {
		sessionDeps.Publisher = deps.Broadcaster
	}

	return &Container{
		MetadataService:      metadataService,
		FilterSessionService: services.NewFilterSessionService(sessionDeps, deps.Logger, deps.PerfTracker),
		DashboardService:     services.NewDashboardService(deps.BackendClient, settings.DashboardTimeout, deps.Logger, deps.PerfTracker),
		ScopedOptionsService: services.NewScopedOptionsService(deps.BackendClient, metadataService, deps.Logger),
		AuthService:          authService,

		Logger:         deps.Logger,
		LogBroadcaster: deps.LogBroadcaster,
		PerfTracker:    deps.PerfTracker,
		CacheManager:   deps.CacheManager,
		WarmingLock:    lock,
		BackendClient:  deps.BackendClient,
		Broadcaster:    deps.Broadcaster,
		AuditDB:        deps.AuditDB,
		AuditRepo:      deps.AuditRepo,
	}, nil
}
