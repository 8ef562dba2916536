// Package logging provides structured logging channels for the filter gateway
// with per-session context and runtime-adjustable levels.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Channel represents a logical logging channel for one system component.
type Channel string

const (
	// System channels
	ChannelSystem   Channel = "system"
	ChannelStartup  Channel = "startup"
	ChannelShutdown Channel = "shutdown"

	// Domain channels
	ChannelAuth      Channel = "auth"      // session tokens and sysop login
	ChannelFilters   Channel = "filters"   // filter changes, resolution, invalidation
	ChannelMetadata  Channel = "metadata"  // filter metadata loading and retry
	ChannelDashboard Channel = "dashboard" // dashboard payload fetches
	ChannelSession   Channel = "session"   // session lifecycle

	// Infrastructure channels
	ChannelBackend   Channel = "backend" // analytics backend HTTP calls
	ChannelCache     Channel = "cache"
	ChannelDatabase  Channel = "database"
	ChannelWebSocket Channel = "websocket"

	// Performance and monitoring channels
	ChannelPerf      Channel = "performance"
	ChannelSlowQuery Channel = "slow-query"
	ChannelAlert     Channel = "alert"

	ChannelDebug Channel = "debug"
)

// AllChannels lists every channel in display order.
var AllChannels = []Channel{
	ChannelSystem, ChannelStartup, ChannelShutdown,
	ChannelAuth, ChannelFilters, ChannelMetadata, ChannelDashboard, ChannelSession,
	ChannelBackend, ChannelCache, ChannelDatabase, ChannelWebSocket,
	ChannelPerf, ChannelSlowQuery, ChannelAlert,
	ChannelDebug,
}

// LogLevel represents the severity level of log messages.
type LogLevel string

const (
	LevelDebug LogLevel = "DEBUG"
	LevelInfo  LogLevel = "INFO"
	LevelWarn  LogLevel = "WARN"
	LevelError LogLevel = "ERROR"
)

// ParseLevel maps a level name to its slog level.
func ParseLevel(name string) (slog.Level, error) {
	switch LogLevel(strings.ToUpper(strings.TrimSpace(name))) {
	case LevelDebug:
		return slog.LevelDebug, nil
	case LevelInfo:
		return slog.LevelInfo, nil
	case LevelWarn:
		return slog.LevelWarn, nil
	case LevelError:
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", name)
}

// ChanneledLogger provides structured logging with multiple channels.
type ChanneledLogger struct {
	mu       sync.RWMutex
	channels map[Channel]*slog.Logger
	files    map[Channel]*os.File
	config   *LoggerConfig
}

// LoggerConfig contains configuration options for the channeled logger.
type LoggerConfig struct {
	OutputToFile    bool   `json:"outputToFile"`
	OutputToConsole bool   `json:"outputToConsole"`
	LogDirectory    string `json:"logDirectory"`

	JSONFormat    bool `json:"jsonFormat"`
	IncludeSource bool `json:"includeSource"`

	// Broadcast copies every line to the log broadcaster for SSE clients.
	Broadcast bool `json:"broadcast"`

	DefaultLevel  slog.Level             `json:"defaultLevel"`
	ChannelLevels map[Channel]slog.Level `json:"channelLevels"`

	// Console overrides stdout, mostly for tests.
	Console io.Writer `json:"-"`
}

// DefaultLoggerConfig returns a sensible default configuration.
func DefaultLoggerConfig() *LoggerConfig {
	return &LoggerConfig{
		OutputToFile:    true,
		OutputToConsole: true,
		LogDirectory:    "logs",
		JSONFormat:      true,
		IncludeSource:   false,
		Broadcast:       true,
		DefaultLevel:    slog.LevelInfo,
		ChannelLevels:   make(map[Channel]slog.Level),
	}
}

// NewChanneledLogger creates a new channeled logger with the given configuration.
func NewChanneledLogger(config *LoggerConfig) (*ChanneledLogger, error) {
	if config == nil {
		config = DefaultLoggerConfig()
	}
	if config.ChannelLevels == nil {
		config.ChannelLevels = make(map[Channel]slog.Level)
	}

	logger := &ChanneledLogger{
		channels: make(map[Channel]*slog.Logger),
		files:    make(map[Channel]*os.File),
		config:   config,
	}

	if config.OutputToFile {
		if err := os.MkdirAll(config.LogDirectory, 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
	}

	logger.mu.Lock()
	defer logger.mu.Unlock()
	for _, channel := range AllChannels {
		channelLogger, err := logger.createChannelLoggerLocked(channel)
		if err != nil {
			return nil, fmt.Errorf("failed to create logger for channel %s: %w", channel, err)
		}
		logger.channels[channel] = channelLogger
	}

	return logger, nil
}

// NewDiscardLogger returns a logger that writes nowhere. Useful in tests.
func NewDiscardLogger() *ChanneledLogger {
	logger, _ := NewChanneledLogger(&LoggerConfig{
		Console:       io.Discard,
		DefaultLevel:  slog.LevelError + 4,
		ChannelLevels: make(map[Channel]slog.Level),
	})
	return logger
}

// createChannelLoggerLocked builds the slog.Logger for one channel. Callers
// hold cl.mu for writing.
func (cl *ChanneledLogger) createChannelLoggerLocked(channel Channel) (*slog.Logger, error) {
	level := cl.config.DefaultLevel
	if channelLevel, exists := cl.config.ChannelLevels[channel]; exists {
		level = channelLevel
	}

	var writers []io.Writer

	if cl.config.Console != nil {
		writers = append(writers, cl.config.Console)
	} else if cl.config.OutputToConsole {
		writers = append(writers, os.Stdout)
	}

	if cl.config.OutputToFile {
		file, ok := cl.files[channel]
		if !ok {
			path := filepath.Join(cl.config.LogDirectory, fmt.Sprintf("%s.log", channel))
			var err error
			file, err = os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
			if err != nil {
				return nil, fmt.Errorf("failed to open log file %s: %w", path, err)
			}
			cl.files[channel] = file
		}
		writers = append(writers, file)
	}

	if cl.config.Broadcast {
		writers = append(writers, NewSSEWriter())
	}

	var writer io.Writer
	switch len(writers) {
	case 0:
		writer = io.Discard
	case 1:
		writer = writers[0]
	default:
		writer = io.MultiWriter(writers...)
	}

	handlerOpts := &slog.HandlerOptions{
		Level:     level,
		AddSource: cl.config.IncludeSource,
	}

	var handler slog.Handler
	if cl.config.JSONFormat {
		handler = slog.NewJSONHandler(writer, handlerOpts)
	} else {
		handler = slog.NewTextHandler(writer, handlerOpts)
	}

	return slog.New(handler).With(slog.String("channel", string(channel))), nil
}

func (cl *ChanneledLogger) System() *slog.Logger    { return cl.GetChannel(ChannelSystem) }
func (cl *ChanneledLogger) Startup() *slog.Logger   { return cl.GetChannel(ChannelStartup) }
func (cl *ChanneledLogger) Shutdown() *slog.Logger  { return cl.GetChannel(ChannelShutdown) }
func (cl *ChanneledLogger) Auth() *slog.Logger      { return cl.GetChannel(ChannelAuth) }
func (cl *ChanneledLogger) Filters() *slog.Logger   { return cl.GetChannel(ChannelFilters) }
func (cl *ChanneledLogger) Metadata() *slog.Logger  { return cl.GetChannel(ChannelMetadata) }
func (cl *ChanneledLogger) Dashboard() *slog.Logger { return cl.GetChannel(ChannelDashboard) }
func (cl *ChanneledLogger) Session() *slog.Logger   { return cl.GetChannel(ChannelSession) }
func (cl *ChanneledLogger) Backend() *slog.Logger   { return cl.GetChannel(ChannelBackend) }
func (cl *ChanneledLogger) Cache() *slog.Logger     { return cl.GetChannel(ChannelCache) }
func (cl *ChanneledLogger) Database() *slog.Logger  { return cl.GetChannel(ChannelDatabase) }
func (cl *ChanneledLogger) WebSocket() *slog.Logger { return cl.GetChannel(ChannelWebSocket) }
func (cl *ChanneledLogger) Perf() *slog.Logger      { return cl.GetChannel(ChannelPerf) }
func (cl *ChanneledLogger) SlowQuery() *slog.Logger { return cl.GetChannel(ChannelSlowQuery) }
func (cl *ChanneledLogger) Alert() *slog.Logger     { return cl.GetChannel(ChannelAlert) }
func (cl *ChanneledLogger) Debug() *slog.Logger     { return cl.GetChannel(ChannelDebug) }

// GetChannel returns a logger for a specific channel, falling back to system.
func (cl *ChanneledLogger) GetChannel(channel Channel) *slog.Logger {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	if logger, exists := cl.channels[channel]; exists {
		return logger
	}
	return cl.channels[ChannelSystem]
}

// WithSession returns a channel logger carrying a masked session id.
func (cl *ChanneledLogger) WithSession(channel Channel, sessionID string) *slog.Logger {
	return cl.GetChannel(channel).With(slog.String("sessionId", MaskSessionID(sessionID)))
}

// LogSlowQuery logs a slow database query.
func (cl *ChanneledLogger) LogSlowQuery(query string, duration time.Duration, sessionID string) {
	cl.SlowQuery().Warn("Slow query detected",
		slog.String("query", sanitizeQuery(query)),
		slog.Duration("duration", duration),
		slog.String("sessionId", MaskSessionID(sessionID)),
	)
}

// LogAuthOperation logs authentication operations.
func (cl *ChanneledLogger) LogAuthOperation(operation, subject string, success bool, metadata map[string]any) {
	logger := cl.Auth().With(
		slog.String("operation", operation),
		slog.String("subject", MaskSessionID(subject)),
		slog.Bool("success", success),
	)
	for key, value := range metadata {
		logger = logger.With(slog.Any(key, value))
	}

	if success {
		logger.Info("Authentication operation completed")
	} else {
		logger.Warn("Authentication operation failed")
	}
}

// LogError logs an error with operation and session context.
func (cl *ChanneledLogger) LogError(channel Channel, operation string, err error, sessionID string, metadata map[string]any) {
	logger := cl.GetChannel(channel).With(
		slog.String("operation", operation),
		slog.String("error", err.Error()),
	)
	if sessionID != "" {
		logger = logger.With(slog.String("sessionId", MaskSessionID(sessionID)))
	}
	for key, value := range metadata {
		logger = logger.With(slog.Any(key, value))
	}

	logger.Error("Operation failed")
}

// LogStartupPhase logs one numbered startup step.
func (cl *ChanneledLogger) LogStartupPhase(phase string, duration time.Duration, success bool, metadata map[string]any) {
	logger := cl.Startup().With(
		slog.String("phase", phase),
		slog.Duration("duration", duration),
		slog.Bool("success", success),
	)
	for key, value := range metadata {
		logger = logger.With(slog.Any(key, value))
	}

	if success {
		logger.Info("Startup phase completed")
	} else {
		logger.Error("Startup phase failed")
	}
}

func sanitizeQuery(query string) string {
	query = strings.Join(strings.Fields(query), " ")
	if len(query) > 500 {
		query = query[:500] + "..."
	}
	return query
}

// MaskSessionID partially masks ids for logs.
func MaskSessionID(sessionID string) string {
	if sessionID == "" {
		return ""
	}
	if len(sessionID) <= 8 {
		return "********"
	}
	return sessionID[:4] + "****" + sessionID[len(sessionID)-4:]
}

// Close closes the per-channel log files.
func (cl *ChanneledLogger) Close() error {
	cl.System().Info("Channeled logger shutting down")

	cl.mu.Lock()
	defer cl.mu.Unlock()
	var firstErr error
	for channel, file := range cl.files {
		if err := file.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close log file for %s: %w", channel, err)
		}
		delete(cl.files, channel)
	}
	return firstErr
}

// SetChannelLevel changes the level of one channel at runtime.
func (cl *ChanneledLogger) SetChannelLevel(channel Channel, level slog.Level) error {
	cl.mu.Lock()
	if _, exists := cl.channels[channel]; !exists {
		cl.mu.Unlock()
		return fmt.Errorf("channel %s does not exist", channel)
	}

	previous, hadPrevious := cl.config.ChannelLevels[channel]
	cl.config.ChannelLevels[channel] = level

	newLogger, err := cl.createChannelLoggerLocked(channel)
	if err != nil {
		if hadPrevious {
			cl.config.ChannelLevels[channel] = previous
		} else {
			delete(cl.config.ChannelLevels, channel)
		}
		cl.mu.Unlock()
		cl.System().Error("Failed to recreate logger for channel on level change", "channel", channel, "error", err)
		return fmt.Errorf("failed to recreate logger for channel %s: %w", channel, err)
	}
	cl.channels[channel] = newLogger
	cl.mu.Unlock()

	cl.System().Info("Channel log level updated dynamically",
		slog.String("channel", string(channel)),
		slog.String("level", level.String()),
	)
	return nil
}

// GetChannelLevels returns the current log level of every channel.
func (cl *ChanneledLogger) GetChannelLevels() map[string]string {
	cl.mu.RLock()
	defer cl.mu.RUnlock()

	levels := make(map[string]string, len(cl.channels))
	for channel := range cl.channels {
		if level, ok := cl.config.ChannelLevels[channel]; ok {
			levels[string(channel)] = level.String()
		} else {
			levels[string(channel)] = cl.config.DefaultLevel.String()
		}
	}
	return levels
}
