package device

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/tarm/serial"
	"github.com/wfunc/parking-gate/internal/config"
	"github.com/wfunc/parking-gate/internal/errors"
	"github.com/wfunc/parking-gate/internal/logger"
	"go.uber.org/zap"
)

// SerialPortExists 检查串口设备是否存在
func SerialPortExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// SerialSource 串口信号源
// 按行读取设备输出，经过滤防抖后投递触发事件。
// 设备拔出或读取失败自动进入重连循环，按配置的退避序列重试。
type SerialSource struct {
	cfg    config.DeviceConfig
	filter *tokenFilter

	port           *serial.Port
	state          ConnState
	lastDevicePath string
	devDir         string
	pending        string // 未组装成整行的残留字节，仅读取循环访问

	events chan TriggerEvent
	stopCh chan struct{}
	wg     sync.WaitGroup
	mu     sync.RWMutex
	logger *zap.Logger
}

// NewSerialSource 创建串口信号源
func NewSerialSource(cfg config.DeviceConfig, debounce time.Duration) *SerialSource {
	return &SerialSource{
		cfg:    cfg,
		filter: newTokenFilter(cfg.StatusTokens, debounce),
		state:  StateDisconnected,
		devDir: "/dev",
		events: make(chan TriggerEvent, 16),
		stopCh: make(chan struct{}),
		logger: logger.GetModuleLogger("device"),
	}
}

// Start 连接设备并启动读取循环
// 初始连接失败不算致命，后台重连循环会继续尝试。
func (s *SerialSource) Start() error {
	if err := s.connect(); err != nil {
		s.logger.Warn("初始连接失败，将在后台重试", zap.Error(err))
	}

	s.wg.Add(1)
	go s.readLoop()
	return nil
}

// Stop 停止读取并关闭事件通道
func (s *SerialSource) Stop() {
	close(s.stopCh)
	s.wg.Wait()

	s.mu.Lock()
	if s.port != nil {
		s.port.Close()
		s.port = nil
	}
	s.state = StateDisconnected
	s.mu.Unlock()

	close(s.events)
}

// Events 返回触发事件通道
func (s *SerialSource) Events() <-chan TriggerEvent {
	return s.events
}

// State 返回当前连接状态
func (s *SerialSource) State() ConnState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// connect 查找并打开串口设备
func (s *SerialSource) connect() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = StateConnecting

	device := s.findDevice()
	if device == "" {
		s.state = StateDisconnected
		return errors.Newf(errors.ErrDeviceUnavailable,
			"未找到匹配 %s 的设备", s.cfg.PortPattern)
	}

	port, err := serial.OpenPort(&serial.Config{
		Name:        device,
		Baud:        s.cfg.BaudRate,
		ReadTimeout: s.cfg.ReadTimeout,
	})
	if err != nil {
		s.state = StateDisconnected
		return errors.Wrap(err, errors.ErrSerialPortOpen, device)
	}

	s.port = port
	s.lastDevicePath = device
	s.state = StateConnected

	s.logger.Info("串口连接成功",
		zap.String("device", device),
		zap.Int("baud_rate", s.cfg.BaudRate))
	return nil
}

// findDevice 查找设备
// 优先尝试上次成功的路径，其次按模式扫描编号0-9，
// 最后回退到配置的固定端口。
func (s *SerialSource) findDevice() string {
	if s.lastDevicePath != "" && SerialPortExists(s.lastDevicePath) {
		return s.lastDevicePath
	}

	if s.cfg.PortPattern != "" {
		for i := 0; i < 10; i++ {
			device := fmt.Sprintf("%s/%s%d", s.devDir, s.cfg.PortPattern, i)
			if SerialPortExists(device) {
				s.logger.Info("找到设备", zap.String("device", device))
				return device
			}
		}
	}

	if s.cfg.Port != "" && SerialPortExists(s.cfg.Port) {
		return s.cfg.Port
	}
	return ""
}

// readLoop 读取循环
// 读超时和EOF是空闲的正常表现（串口读超时在Linux上以零字节读
// 返回，部分USB-CDC设备空闲时也周期性返回EOF），不触发重连；
// 只有断线类I/O错误才关端口并按退避序列重连。
func (s *SerialSource) readLoop() {
	defer s.wg.Done()

	buf := make([]byte, 256)
	for {
		select {
		case <-s.stopCh:
			return
		default:
		}

		s.mu.RLock()
		port := s.port
		s.mu.RUnlock()

		if port == nil {
			if !s.waitAndReconnect() {
				return
			}
			continue
		}

		n, err := port.Read(buf)
		if err != nil {
			if isIdleReadError(err) {
				continue
			}
			if isDisconnectError(err) {
				s.logger.Error("检测到串口断线",
					zap.String("device", s.lastDevicePath),
					zap.Error(err))
				s.disconnect()
				s.pending = ""
				if !s.waitAndReconnect() {
					return
				}
				continue
			}
			s.logger.Debug("串口读取错误", zap.Error(err))
			time.Sleep(10 * time.Millisecond)
			continue
		}
		if n == 0 {
			continue
		}
		s.consume(string(buf[:n]), time.Now())
	}
}

// consume 组装完整行并投递触发事件，半行数据留到下次读取
func (s *SerialSource) consume(chunk string, now time.Time) {
	s.pending += chunk
	for {
		idx := strings.IndexByte(s.pending, '\n')
		if idx < 0 {
			return
		}
		line := strings.TrimRight(s.pending[:idx], "\r")
		s.pending = s.pending[idx+1:]

		if !s.filter.Accept(line, now) {
			continue
		}
		s.emit(TriggerEvent{RawToken: strings.TrimSpace(line), ReceivedAt: now})
	}
}

// isIdleReadError EOF和读超时表示暂无数据，继续轮询即可
func isIdleReadError(err error) bool {
	errStr := err.Error()
	return strings.Contains(errStr, "EOF") ||
		strings.Contains(strings.ToLower(errStr), "timeout")
}

// isDisconnectError 识别需要重连的断线类错误
func isDisconnectError(err error) bool {
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "input/output error") ||
		strings.Contains(errStr, "device not configured") ||
		strings.Contains(errStr, "broken pipe") ||
		strings.Contains(errStr, "no such file")
}

// emit 投递事件，通道满时丢弃最旧的未消费触发
func (s *SerialSource) emit(event TriggerEvent) {
	select {
	case s.events <- event:
	default:
		select {
		case dropped := <-s.events:
			s.logger.Warn("事件积压，丢弃最旧触发",
				zap.String("raw_token", dropped.RawToken))
		default:
		}
		s.events <- event
	}
}

func (s *SerialSource) disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.port != nil {
		s.port.Close()
		s.port = nil
	}
	if s.state == StateConnected {
		s.state = StateLost
		s.logger.Warn("串口连接丢失", zap.String("device", s.lastDevicePath))
	}
}

// waitAndReconnect 按退避序列重连，返回false表示收到停止信号
func (s *SerialSource) waitAndReconnect() bool {
	delays := s.cfg.RetryDelays
	if len(delays) == 0 {
		delays = []time.Duration{time.Second, 2 * time.Second, 5 * time.Second}
	}

	for attempt := 0; ; attempt++ {
		idx := attempt
		if idx >= len(delays) {
			idx = len(delays) - 1
		}

		select {
		case <-s.stopCh:
			return false
		case <-time.After(delays[idx]):
		}

		if err := s.connect(); err == nil {
			return true
		}

		s.logger.Warn("重连失败，等待重试",
			zap.Int("retry", attempt+1),
			zap.Duration("next_delay", delays[idx]))
	}
}
