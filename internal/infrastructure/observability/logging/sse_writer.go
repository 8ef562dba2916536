package logging

import (
	"log/slog"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// SSEWriter is an io.Writer that turns JSON log lines into LogEntry values
// for the broadcaster.
type SSEWriter struct {
	broadcaster *LogBroadcaster
}

// NewSSEWriter creates a writer feeding the process-wide broadcaster.
func NewSSEWriter() *SSEWriter {
	return &SSEWriter{broadcaster: GetBroadcaster()}
}

// NewSSEWriterFor creates a writer feeding a specific broadcaster.
func NewSSEWriterFor(b *LogBroadcaster) *SSEWriter {
	return &SSEWriter{broadcaster: b}
}

// Write never fails; unparseable lines are forwarded as plain system messages.
func (w *SSEWriter) Write(p []byte) (int, error) {
	w.broadcaster.SubmitLog(parseLogLine(p))
	return len(p), nil
}

func parseLogLine(p []byte) LogEntry {
	if !gjson.ValidBytes(p) {
		return LogEntry{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Level:     slog.LevelInfo.String(),
			Channel:   string(ChannelSystem),
			Message:   strings.TrimSpace(string(p)),
		}
	}

	fields := gjson.GetManyBytes(p, "time", "level", "channel", "msg", "sessionId")
	return LogEntry{
		Timestamp: fields[0].String(),
		Level:     fields[1].String(),
		Channel:   fields[2].String(),
		Message:   fields[3].String(),
		SessionID: fields[4].String(),
	}
}
