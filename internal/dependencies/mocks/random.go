package mocks

import (
	"fmt"
	"sync"

	"github.com/mcoot/gaminghub/internal/dependencies/random"
)

// MockRandom is a mock implementation of Random for testing
type MockRandom struct {
	mu sync.Mutex

	// IntnResults is a queue of results to return from Intn
	IntnResults []int
	intnIndex   int
	intnCalls   int

	// IDResults is a queue of results to return from NewID
	IDResults []string
	idIndex   int
	idCounter int
}

// Ensure MockRandom implements Random
var _ random.Random = (*MockRandom)(nil)

// NewMockRandom creates a new MockRandom
func NewMockRandom() *MockRandom {
	return &MockRandom{}
}

// Intn returns the next queued result, or 0 if none remaining.
// Queued values are reduced modulo n.
func (r *MockRandom) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.intnCalls++
	if r.intnIndex >= len(r.IntnResults) || n <= 0 {
		return 0
	}
	result := r.IntnResults[r.intnIndex]
	r.intnIndex++
	return result % n
}

// NewID returns the next queued ID, or a sequential "id-N" once the queue is empty
func (r *MockRandom) NewID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.idIndex < len(r.IDResults) {
		result := r.IDResults[r.idIndex]
		r.idIndex++
		return result
	}
	r.idCounter++
	return fmt.Sprintf("id-%d", r.idCounter)
}

// QueueIntn adds values to the Intn result queue
func (r *MockRandom) QueueIntn(values ...int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.IntnResults = append(r.IntnResults, values...)
}

// QueueID adds values to the NewID result queue
func (r *MockRandom) QueueID(values ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.IDResults = append(r.IDResults, values...)
}

// IntnCalls reports how many times Intn has been called
func (r *MockRandom) IntnCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.intnCalls
}

// Reset clears all queued results
func (r *MockRandom) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.IntnResults = nil
	r.intnIndex = 0
	r.intnCalls = 0
	r.IDResults = nil
	r.idIndex = 0
	r.idCounter = 0
}
