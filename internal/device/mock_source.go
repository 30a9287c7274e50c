package device

import (
	"time"
)

// MockSource 模拟信号源（用于测试）
type MockSource struct {
	filter *tokenFilter
	events chan TriggerEvent
}

// NewMockSource 创建模拟信号源
func NewMockSource(statusTokens []string, debounce time.Duration) *MockSource {
	return &MockSource{
		filter: newTokenFilter(statusTokens, debounce),
		events: make(chan TriggerEvent, 16),
	}
}

func (m *MockSource) Start() error {
	return nil
}

func (m *MockSource) Stop() {
	close(m.events)
}

func (m *MockSource) Events() <-chan TriggerEvent {
	return m.events
}

func (m *MockSource) State() ConnState {
	return StateConnected
}

// Inject 模拟设备发出一个令牌，经过与真实信号源相同的过滤防抖
func (m *MockSource) Inject(token string) bool {
	now := time.Now()
	if !m.filter.Accept(token, now) {
		return false
	}
	m.events <- TriggerEvent{RawToken: token, ReceivedAt: now}
	return true
}
