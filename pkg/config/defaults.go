// Package config provides centralized default values for woodland-dash
package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

var envLoaded sync.Once

// loadEnvFile reads .env once. Variables already present in the process
// environment win over the file.
func loadEnvFile() {
	envLoaded.Do(func() {
		if _, err := os.Stat(".env"); err != nil {
			return
		}
		log.Println("Loading configuration overrides from .env file...")
		if err := godotenv.Load(".env"); err != nil {
			log.Printf("Failed to parse .env file: %v", err)
		}
	})
}

func getEnvInt(key string, defaultValue int) int {
	if valStr := os.Getenv(key); valStr != "" {
		if val, err := strconv.Atoi(valStr); err == nil {
			if val != defaultValue {
				log.Printf("Config override: %s=%d (default: %d)", key, val, defaultValue)
			}
			return val
		}
	}
	return defaultValue
}

func getEnvString(key string, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		if val != defaultValue {
			log.Printf("Config override: %s=%s (default: %s)", key, val, defaultValue)
		}
		return val
	}
	return defaultValue
}

// getEnvSecret behaves like getEnvString but never echoes the value.
func getEnvSecret(key string) string {
	val := os.Getenv(key)
	if val != "" {
		log.Printf("Config override: %s=**** (set)", key)
	}
	return val
}

func getEnvBool(key string, defaultValue bool) bool {
	if valStr := os.Getenv(key); valStr != "" {
		if val, err := strconv.ParseBool(valStr); err == nil {
			if val != defaultValue {
				log.Printf("Config override: %s=%t (default: %t)", key, val, defaultValue)
			}
			return val
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if valStr := os.Getenv(key); valStr != "" {
		if val, err := time.ParseDuration(valStr); err == nil {
			if val != defaultValue {
				log.Printf("Config override: %s=%s (default: %s)", key, val, defaultValue)
			}
			return val
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	valStr := os.Getenv(key)
	if valStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	log.Printf("Config override: %s=%v (default: %v)", key, out, defaultValue)
	return out
}

var (
	// Server Configuration
	Port               string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration
	ServerIdleTimeout  time.Duration
	CORSAllowedOrigins []string

	// Analytics backend
	BackendBaseURL string
	BackendTimeout time.Duration

	// Metadata loading
	MetadataRetryMaxAttempts     int
	MetadataRetryInitialInterval time.Duration
	MetadataRetryMaxInterval     time.Duration

	// Filter sessions
	RefreshIndicatorDuration time.Duration
	SessionTTL               time.Duration
	SessionCleanupInterval   time.Duration
	SessionCleanupVerbose    bool
	MaxSessions              int
	SessionJWTSecret         string
	SessionTokenTTL          time.Duration
	WSHeartbeatInterval      time.Duration

	// SysOp
	SysopPassword string

	// Audit trail
	AuditEnabled   bool
	AuditDBPath    string
	TursoDatabase  string
	TursoAuthToken string

	// Database Pool
	DBMaxOpenConns int
	DBMaxIdleConns int

	// Logging
	LogDirectory string
	LogToFile    bool
	LogJSON      bool
	LogLevel     string

	// Performance
	SlowOperationThreshold time.Duration
	SlowQueryThreshold     time.Duration
)

func init() {
	loadEnvFile()

	// Server Configuration
	Port = getEnvString("PORT", "8080")
	ServerReadTimeout = getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second)
	ServerWriteTimeout = getEnvDuration("SERVER_WRITE_TIMEOUT", 30*time.Second)
	ServerIdleTimeout = getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second)
	CORSAllowedOrigins = getEnvList("CORS_ALLOWED_ORIGINS", []string{
		"http://localhost:5173",
		"http://localhost:8080",
		"http://127.0.0.1:5173",
		"http://127.0.0.1:8080",
	})

	// Analytics backend
	BackendBaseURL = strings.TrimRight(getEnvString("BACKEND_BASE_URL", "http://localhost:5000/api"), "/")
	BackendTimeout = getEnvDuration("BACKEND_TIMEOUT", 20*time.Second)

	// Metadata loading
	MetadataRetryMaxAttempts = getEnvInt("METADATA_RETRY_MAX_ATTEMPTS", 8)
	MetadataRetryInitialInterval = getEnvDuration("METADATA_RETRY_INITIAL_INTERVAL", 2*time.Second)
	MetadataRetryMaxInterval = getEnvDuration("METADATA_RETRY_MAX_INTERVAL", time.Minute)

	// Filter sessions
	RefreshIndicatorDuration = getEnvDuration("REFRESH_INDICATOR_DURATION", 1500*time.Millisecond)
	SessionTTL = getEnvDuration("SESSION_TTL", 2*time.Hour)
	SessionCleanupInterval = getEnvDuration("SESSION_CLEANUP_INTERVAL", 5*time.Minute)
	SessionCleanupVerbose = getEnvBool("SESSION_CLEANUP_VERBOSE", false)
	MaxSessions = getEnvInt("MAX_SESSIONS", 5000)
	SessionJWTSecret = getEnvSecret("SESSION_JWT_SECRET")
	SessionTokenTTL = getEnvDuration("SESSION_TOKEN_TTL", 24*time.Hour)
	WSHeartbeatInterval = getEnvDuration("WS_HEARTBEAT_INTERVAL", 30*time.Second)

	// SysOp
	SysopPassword = getEnvSecret("SYSOP_PASSWORD")

	// Audit trail
	AuditEnabled = getEnvBool("AUDIT_ENABLED", true)
	AuditDBPath = getEnvString("AUDIT_DB_PATH", "./db/filter_events.db")
	TursoDatabase = getEnvString("TURSO_DATABASE_URL", "")
	TursoAuthToken = getEnvSecret("TURSO_AUTH_TOKEN")

	// Database Pool
	DBMaxOpenConns = getEnvInt("DB_MAX_OPEN_CONNS", 10)
	DBMaxIdleConns = getEnvInt("DB_MAX_IDLE_CONNS", 3)

	// Logging
	LogDirectory = getEnvString("LOG_DIRECTORY", "logs")
	LogToFile = getEnvBool("LOG_TO_FILE", true)
	LogJSON = getEnvBool("LOG_JSON", true)
	LogLevel = getEnvString("LOG_LEVEL", "INFO")

	// Performance
	SlowOperationThreshold = getEnvDuration("SLOW_OPERATION_THRESHOLD", 2*time.Second)
	SlowQueryThreshold = getEnvDuration("SLOW_QUERY_THRESHOLD", 100*time.Millisecond)
}
