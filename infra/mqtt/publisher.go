package mqtt

import (
	"fmt"
	"sync"
)

// Publisher sends build notifications to a broker topic.
type Publisher interface {
	Publish(topic string, payload []byte) error
	Disconnect()
}

// MockPublisher records published payloads per topic, for tests.
type MockPublisher struct {
	mu         sync.Mutex
	Messages   map[string][][]byte
	FailTopics map[string]bool
}

// NewMockPublisher creates a new MockPublisher.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{
		Messages:   make(map[string][][]byte),
		FailTopics: make(map[string]bool),
	}
}

// Publish records the payload or fails if the topic is configured to fail.
func (m *MockPublisher) Publish(topic string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailTopics[topic] {
		return fmt.Errorf("publish failed")
	}
	m.Messages[topic] = append(m.Messages[topic], payload)
	return nil
}

// Disconnect is a no-op.
func (m *MockPublisher) Disconnect() {}

// Published returns the payloads recorded for a topic.
func (m *MockPublisher) Published(topic string) [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]byte(nil), m.Messages[topic]...)
}
