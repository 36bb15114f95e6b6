package mocks

import (
	"context"
	"sync"

	"github.com/xenwatch/identity-notify-service/internal/core/ports"
)

// MockNotificationPublisher implements ports.NotificationPublisher without a
// broker.
type MockNotificationPublisher struct {
	mu sync.RWMutex

	PublishedEvents  []ports.NotificationCreatedEvent
	PublishError     error
	PublishCallCount int
}

var _ ports.NotificationPublisher = (*MockNotificationPublisher)(nil)

func NewMockNotificationPublisher() *MockNotificationPublisher {
	return &MockNotificationPublisher{}
}

func (m *MockNotificationPublisher) PublishNotificationCreated(ctx context.Context, evt ports.NotificationCreatedEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.PublishCallCount++
	if m.PublishError != nil {
		return m.PublishError
	}
	m.PublishedEvents = append(m.PublishedEvents, evt)
	return nil
}

// GetPublishedEvents returns a copy of the captured events.
func (m *MockNotificationPublisher) GetPublishedEvents() []ports.NotificationCreatedEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	events := make([]ports.NotificationCreatedEvent, len(m.PublishedEvents))
	copy(events, m.PublishedEvents)
	return events
}

func (m *MockNotificationPublisher) GetPublishCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.PublishCallCount
}
