// Package notify streams per-player economy events over server-sent events.
package notify

import (
	"encoding/json"
	"log/slog"
	"strings"
	"sync"

	"github.com/mcoot/gaminghub/internal/model"
)

// Notifier receives events produced by the economy services
type Notifier interface {
	Publish(event model.Event)
}

// Nop discards every event
type Nop struct{}

func (Nop) Publish(model.Event) {}

// HubManager manages one hub per connected player
type HubManager struct {
	hubs   map[model.PlayerID]*Hub
	mu     sync.RWMutex
	logger *slog.Logger
}

// Ensure HubManager implements Notifier
var _ Notifier = (*HubManager)(nil)

// NewHubManager creates a new HubManager
func NewHubManager(logger *slog.Logger) *HubManager {
	return &HubManager{
		hubs:   make(map[model.PlayerID]*Hub),
		logger: logger.With(slog.String("component", "notify")),
	}
}

// Publish sends the event to every open stream of its player.
// Players without a stream are skipped.
func (m *HubManager) Publish(event model.Event) {
	hub := m.GetHub(event.PlayerID)
	if hub == nil {
		return
	}

	data, err := json.Marshal(event)
	if err != nil {
		m.logger.Error("failed to encode event",
			slog.String("event_type", string(event.Type)),
			slog.String("error", err.Error()))
		return
	}
	hub.BroadcastEvent(string(event.Type), string(data))
}

// GetOrCreateHub returns the hub for a player, creating one if it doesn't exist
func (m *HubManager) GetOrCreateHub(playerID model.PlayerID) *Hub {
	m.mu.Lock()
	defer m.mu.Unlock()

	if hub, ok := m.hubs[playerID]; ok {
		return hub
	}

	hub := NewHub(playerID, m.logger)
	m.hubs[playerID] = hub
	go hub.Run()
	return hub
}

// GetHub returns the hub for a player, or nil if it doesn't exist
func (m *HubManager) GetHub(playerID model.PlayerID) *Hub {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.hubs[playerID]
}

// HubCount returns the number of live hubs
func (m *HubManager) HubCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.hubs)
}

// CleanupEmptyHubs removes hubs with no clients
func (m *HubManager) CleanupEmptyHubs() {
	m.mu.Lock()
	defer m.mu.Unlock()

	removedCount := 0
	for id, hub := range m.hubs {
		if hub.ClientCount() == 0 {
			hub.Close()
			delete(m.hubs, id)
			removedCount++
		}
	}
	if removedCount > 0 {
		m.logger.Info("empty hubs cleaned up", slog.Int("removed", removedCount))
	}
}

// CloseAll shuts down every hub, disconnecting their clients
func (m *HubManager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, hub := range m.hubs {
		hub.Close()
		delete(m.hubs, id)
	}
}

// formatMessage formats an SSE message with event name and data.
// Each line of data gets its own "data: " prefix.
func formatMessage(eventName, data string) []byte {
	var b strings.Builder
	b.WriteString("event: ")
	b.WriteString(eventName)
	b.WriteString("\n")
	for _, line := range splitLines(data) {
		b.WriteString("data: ")
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString("\n")
	return []byte(b.String())
}

// splitLines splits on \n, dropping \r
func splitLines(s string) []string {
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.TrimSuffix(s, "\n")
	return strings.Split(s, "\n")
}
