package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"sync"
)

// NopLogger returns a logger that discards all output.
// Use this in tests to avoid log noise.
func NopLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// LogRecorder captures JSON log entries so tests can assert on them
type LogRecorder struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

// NewLogRecorder creates an empty LogRecorder
func NewLogRecorder() *LogRecorder {
	return &LogRecorder{}
}

// Logger returns a logger writing into the recorder at debug level
func (r *LogRecorder) Logger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(r, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func (r *LogRecorder) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.buf.Write(p)
}

// Entries decodes every recorded entry
func (r *LogRecorder) Entries() []map[string]any {
	r.mu.Lock()
	defer r.mu.Unlock()

	var entries []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(r.buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err == nil {
			entries = append(entries, entry)
		}
	}
	return entries
}

// Find returns the first entry with the given message, or nil
func (r *LogRecorder) Find(msg string) map[string]any {
	for _, entry := range r.Entries() {
		if entry[slog.MessageKey] == msg {
			return entry
		}
	}
	return nil
}
