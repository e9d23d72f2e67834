package events

import (
	"context"
	"sync"
)

// MockPublisher is a mock implementation of Publisher for testing.
type MockPublisher struct {
	mu          sync.RWMutex
	batchEvents []*BatchEvent
	runEvents   []*RunEvent
	publishErr  error
	closed      bool
}

// NewMockPublisher creates a new mock publisher for testing.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{
		batchEvents: make([]*BatchEvent, 0),
		runEvents:   make([]*RunEvent, 0),
	}
}

// PublishBatch records the event and returns any configured error.
func (m *MockPublisher) PublishBatch(ctx context.Context, event *BatchEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.publishErr != nil {
		return m.publishErr
	}
	m.batchEvents = append(m.batchEvents, event)
	return nil
}

// PublishRun records the event and returns any configured error.
func (m *MockPublisher) PublishRun(ctx context.Context, event *RunEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.publishErr != nil {
		return m.publishErr
	}
	m.runEvents = append(m.runEvents, event)
	return nil
}

// Close marks the publisher as closed.
func (m *MockPublisher) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// BatchEvents returns all published batch events (for testing).
func (m *MockPublisher) BatchEvents() []*BatchEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()

	events := make([]*BatchEvent, len(m.batchEvents))
	copy(events, m.batchEvents)
	return events
}

// RunEvents returns all published run events (for testing).
func (m *MockPublisher) RunEvents() []*RunEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()

	events := make([]*RunEvent, len(m.runEvents))
	copy(events, m.runEvents)
	return events
}

// SetPublishError configures the mock to return an error on publish.
func (m *MockPublisher) SetPublishError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.publishErr = err
}

// IsClosed returns whether the publisher has been closed.
func (m *MockPublisher) IsClosed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}
