package printer

import "sync"

// MockSink 模拟输出端（用于测试和演示）
type MockSink struct {
	mu     sync.Mutex
	jobs   [][]byte
	errs   []error
	closed bool
}

// NewMockSink 创建模拟输出端
func NewMockSink() *MockSink {
	return &MockSink{}
}

// FailWith 预置接下来若干作业的返回错误，按顺序消费
func (m *MockSink) FailWith(errs ...error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs = append(m.errs, errs...)
}

func (m *MockSink) Write(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.errs) > 0 {
		err := m.errs[0]
		m.errs = m.errs[1:]
		if err != nil {
			return err
		}
	}

	job := make([]byte, len(data))
	copy(job, data)
	m.jobs = append(m.jobs, job)
	return nil
}

func (m *MockSink) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Jobs 返回成功写入的作业副本
func (m *MockSink) Jobs() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.jobs))
	copy(out, m.jobs)
	return out
}
