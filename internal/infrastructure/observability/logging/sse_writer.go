// Package logging provides the custom io.Writer for SSE log streaming.
package logging

import (
	"encoding/json"
)

// SSEWriter is a custom io.Writer that intercepts JSON log records
// and forwards them to the LogBroadcaster.
type SSEWriter struct {
	broadcaster *LogBroadcaster
}

// NewSSEWriter creates a new writer that sends log data to the shared broadcaster.
func NewSSEWriter() *SSEWriter {
	return &SSEWriter{broadcaster: GetBroadcaster()}
}

// NewSSEWriterFor creates a writer bound to a specific broadcaster.
func NewSSEWriterFor(b *LogBroadcaster) *SSEWriter {
	return &SSEWriter{broadcaster: b}
}

// Write receives one JSON log record, extracts the fields the stream needs,
// and submits them. Unparseable records are dropped.
func (w *SSEWriter) Write(p []byte) (n int, err error) {
	var rawLog map[string]any
	if err := json.Unmarshal(p, &rawLog); err != nil {
		return len(p), nil
	}

	w.broadcaster.SubmitLog(LogEntry{
		Timestamp: getString(rawLog, "time"),
		Level:     getString(rawLog, "level"),
		Channel:   getString(rawLog, "channel"),
		Message:   getString(rawLog, "msg"),
		RenderID:  getString(rawLog, "renderId"),
	})

	return len(p), nil
}

func getString(data map[string]any, key string) string {
	if val, ok := data[key]; ok {
		if strVal, ok := val.(string); ok {
			return strVal
		}
	}
	return ""
}
