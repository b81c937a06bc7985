package notify

import (
	"net/http"
	"time"

	"github.com/mcoot/gaminghub/internal/model"
)

const (
	// Time between keepalive comments
	pingPeriod = 30 * time.Second

	// Buffer size for outgoing messages
	sendBufferSize = 64
)

// Client represents a connected SSE stream
type Client struct {
	send        chan []byte
	connectedAt time.Time
}

// NewClient creates a new SSE client
func NewClient() *Client {
	return &Client{
		send:        make(chan []byte, sendBufferSize),
		connectedAt: time.Now(),
	}
}

// Serve streams the player's events until the request ends or the hub closes
func (m *HubManager) Serve(w http.ResponseWriter, r *http.Request, playerID model.PlayerID) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	// Streams outlive the server's write timeout
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	client := NewClient()
	hub := m.GetOrCreateHub(playerID)
	if !hub.Register(client) {
		// Lost a race with cleanup; a fresh hub takes over
		hub = m.GetOrCreateHub(playerID)
		if !hub.Register(client) {
			http.Error(w, "Stream unavailable", http.StatusServiceUnavailable)
			return
		}
	}
	defer hub.Unregister(client)

	_, _ = w.Write(formatMessage("connected", `{"status":"connected"}`))
	flusher.Flush()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case message, ok := <-client.send:
			if !ok {
				// Hub closed the channel
				return
			}
			if _, err := w.Write(message); err != nil {
				return
			}
			flusher.Flush()

		case <-ticker.C:
			if _, err := w.Write([]byte(": keepalive\n\n")); err != nil {
				return
			}
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}
