package logging

import (
	"bytes"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) Lines() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var lines []string
	for _, l := range bytes.Split(bytes.TrimSpace(b.buf.Bytes()), []byte("\n")) {
		if len(l) > 0 {
			lines = append(lines, string(l))
		}
	}
	return lines
}

func newTestLogger(t *testing.T, out *syncBuffer) *ChanneledLogger {
	t.Helper()
	logger, err := NewChanneledLogger(&LoggerConfig{
		Console:      out,
		JSONFormat:   true,
		DefaultLevel: slog.LevelInfo,
	})
	require.NoError(t, err)
	return logger
}

func TestChannelLoggerTagsChannel(t *testing.T) {
	out := &syncBuffer{}
	logger := newTestLogger(t, out)

	logger.Filters().Info("Filter changed", "field", "product")

	lines := out.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, "filters", gjson.Get(lines[0], "channel").String())
	assert.Equal(t, "product", gjson.Get(lines[0], "field").String())
}

func TestSetChannelLevel(t *testing.T) {
	out := &syncBuffer{}
	logger := newTestLogger(t, out)

	logger.Backend().Debug("hidden")
	require.NoError(t, logger.SetChannelLevel(ChannelBackend, slog.LevelDebug))
	logger.Backend().Debug("visible")

	var messages []string
	for _, l := range out.Lines() {
		messages = append(messages, gjson.Get(l, "msg").String())
	}
	assert.NotContains(t, messages, "hidden")
	assert.Contains(t, messages, "visible")

	levels := logger.GetChannelLevels()
	assert.Equal(t, "DEBUG", levels["backend"])
	assert.Equal(t, "INFO", levels["filters"])
	assert.Len(t, levels, len(AllChannels))

	assert.Error(t, logger.SetChannelLevel(Channel("nope"), slog.LevelDebug))
}

func TestLogErrorMasksSession(t *testing.T) {
	out := &syncBuffer{}
	logger := newTestLogger(t, out)

	logger.LogError(ChannelBackend, "FetchOptions", errors.New("timeout"), "01HZY3ABCDEFGHJKMNPQRS", map[string]any{"chain": "product->rawMaterial"})

	lines := out.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, "timeout", gjson.Get(lines[0], "error").String())
	assert.Equal(t, "01HZ****PQRS", gjson.Get(lines[0], "sessionId").String())
	assert.Equal(t, "product->rawMaterial", gjson.Get(lines[0], "chain").String())
}

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel("warn")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, level)

	_, err = ParseLevel("TRACE")
	assert.Error(t, err)
}

func TestParseLogLine(t *testing.T) {
	entry := parseLogLine([]byte(`{"time":"2026-01-02T03:04:05Z","level":"WARN","msg":"Slow query detected","channel":"slow-query","sessionId":"01HZ****PQRS"}`))
	assert.Equal(t, LogEntry{
		Timestamp: "2026-01-02T03:04:05Z",
		Level:     "WARN",
		Channel:   "slow-query",
		Message:   "Slow query detected",
		SessionID: "01HZ****PQRS",
	}, entry)

	plain := parseLogLine([]byte("time=now level=INFO msg=hello\n"))
	assert.Equal(t, "system", plain.Channel)
	assert.Equal(t, "time=now level=INFO msg=hello", plain.Message)
}

func TestBroadcasterFiltersByChannelAndLevel(t *testing.T) {
	b := NewLogBroadcaster()
	go b.Run()
	defer b.Shutdown()

	warnings := b.NewClient(AppliedFilters{Channel: "all", Level: slog.LevelWarn})
	backendOnly := b.NewClient(AppliedFilters{Channel: ChannelBackend, Level: slog.LevelDebug})
	b.RegisterClient(warnings)
	b.RegisterClient(backendOnly)
	require.Eventually(t, func() bool { return b.ClientCount() == 2 }, time.Second, 5*time.Millisecond)

	writer := NewSSEWriterFor(b)
	_, _ = writer.Write([]byte(`{"level":"INFO","channel":"backend","msg":"fetched"}`))
	_, _ = writer.Write([]byte(`{"level":"ERROR","channel":"filters","msg":"failed"}`))

	received := func(c *Client) string {
		select {
		case msg := <-c.Channel:
			return gjson.GetBytes(msg, "message").String()
		case <-time.After(time.Second):
			return ""
		}
	}
	assert.Equal(t, "failed", received(warnings))
	assert.Equal(t, "fetched", received(backendOnly))

	b.UnregisterClient(backendOnly)
	_, open := <-backendOnly.Channel
	assert.False(t, open)
}
