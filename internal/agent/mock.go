package agent

import (
	"context"
	"sync"

	"doorbell-signal/internal/transport"
)

// MockNotifier records display/close calls for test assertions.
type MockNotifier struct {
	mu       sync.Mutex
	displays []Notification
	closes   []string
	err      error // if set, Display returns this error
}

func NewMockNotifier() *MockNotifier { return &MockNotifier{} }

func (m *MockNotifier) Display(_ context.Context, n Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.displays = append(m.displays, n)
	return nil
}

func (m *MockNotifier) Close(_ context.Context, tag string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closes = append(m.closes, tag)
	return nil
}

// Displays returns a copy of all displayed notifications.
func (m *MockNotifier) Displays() []Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Notification, len(m.displays))
	copy(out, m.displays)
	return out
}

// Closes returns the tags closed so far.
func (m *MockNotifier) Closes() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.closes))
	copy(out, m.closes)
	return out
}

// SetError makes subsequent Display calls fail. Pass nil to clear.
func (m *MockNotifier) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// MockBroker records broadcasts and window-open requests with a configurable
// receiver count.
type MockBroker struct {
	mu        sync.Mutex
	receivers int
	broadcast []transport.RouteMessage
	opened    []transport.RouteMessage
	err       error
}

func NewMockBroker(receivers int) *MockBroker {
	return &MockBroker{receivers: receivers}
}

func (m *MockBroker) Broadcast(_ context.Context, msg transport.RouteMessage) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	m.broadcast = append(m.broadcast, msg)
	return m.receivers, nil
}

func (m *MockBroker) OpenWindow(_ context.Context, msg transport.RouteMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.opened = append(m.opened, msg)
	return nil
}

func (m *MockBroker) Broadcasts() []transport.RouteMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]transport.RouteMessage, len(m.broadcast))
	copy(out, m.broadcast)
	return out
}

func (m *MockBroker) Opened() []transport.RouteMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]transport.RouteMessage, len(m.opened))
	copy(out, m.opened)
	return out
}

func (m *MockBroker) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}
