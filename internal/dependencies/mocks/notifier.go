package mocks

import (
	"sync"

	"github.com/mcoot/gaminghub/internal/model"
)

// MockNotifier records published events for assertions
type MockNotifier struct {
	mu     sync.Mutex
	events []model.Event
}

// NewMockNotifier creates an empty MockNotifier
func NewMockNotifier() *MockNotifier {
	return &MockNotifier{}
}

// Publish records the event
func (n *MockNotifier) Publish(event model.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

// Events returns a copy of everything published so far
func (n *MockNotifier) Events() []model.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]model.Event, len(n.events))
	copy(out, n.events)
	return out
}

// EventsOfType returns the recorded events with the given type
func (n *MockNotifier) EventsOfType(t model.EventType) []model.Event {
	var out []model.Event
	for _, e := range n.Events() {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// Reset forgets all recorded events
func (n *MockNotifier) Reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = nil
}
