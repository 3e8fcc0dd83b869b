package nats

import (
	"context"
	"sync"

	"github.com/nats-io/nats.go"
)

// MockPublisher records session events in memory.
type MockPublisher struct {
	mu       sync.RWMutex
	events   []*SessionEvent
	attempts int
	err      error
	closed   bool
}

func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

// PublishSessionEvent records event unless a failure is configured or the
// publisher was closed. Failed attempts are still counted.
func (m *MockPublisher) PublishSessionEvent(ctx context.Context, event *SessionEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.attempts++
	switch {
	case m.closed:
		return nats.ErrConnectionClosed
	case m.err != nil:
		return m.err
	}
	m.events = append(m.events, event)
	return nil
}

func (m *MockPublisher) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Events returns the recorded events in publish order.
func (m *MockPublisher) Events() []*SessionEvent {
	return m.filter(func(*SessionEvent) bool { return true })
}

// EventsOfType returns the recorded events of one type.
func (m *MockPublisher) EventsOfType(eventType SessionEventType) []*SessionEvent {
	return m.filter(func(e *SessionEvent) bool { return e.Type == eventType })
}

// EventsForKey returns the recorded events about one wallet public key.
func (m *MockPublisher) EventsForKey(publicKey string) []*SessionEvent {
	return m.filter(func(e *SessionEvent) bool { return e.PublicKey == publicKey })
}

// Attempts counts every publish call, including failed ones.
func (m *MockPublisher) Attempts() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.attempts
}

// FailWith makes every later publish return err. A nil err clears it.
func (m *MockPublisher) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *MockPublisher) Closed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}

// Reset forgets events, attempts and failures and reopens the publisher.
func (m *MockPublisher) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = nil
	m.attempts = 0
	m.err = nil
	m.closed = false
}

func (m *MockPublisher) filter(keep func(*SessionEvent) bool) []*SessionEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*SessionEvent
	for _, e := range m.events {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}
