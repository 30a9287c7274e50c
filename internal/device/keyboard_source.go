package device

import (
	"bufio"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/wfunc/parking-gate/internal/logger"
	"go.uber.org/zap"
)

// KeyboardSource 键盘信号源
// 无硬件环境下从标准输入按行读取令牌，用于联调和演示。
// 与串口信号源走同一套过滤防抖逻辑。
type KeyboardSource struct {
	reader io.Reader
	filter *tokenFilter
	events chan TriggerEvent
	stopCh chan struct{}
	wg     sync.WaitGroup
	logger *zap.Logger
}

// NewKeyboardSource 创建键盘信号源，reader为nil时使用标准输入
func NewKeyboardSource(reader io.Reader, statusTokens []string, debounce time.Duration) *KeyboardSource {
	if reader == nil {
		reader = os.Stdin
	}
	return &KeyboardSource{
		reader: reader,
		filter: newTokenFilter(statusTokens, debounce),
		events: make(chan TriggerEvent, 16),
		stopCh: make(chan struct{}),
		logger: logger.GetModuleLogger("device"),
	}
}

// Start 启动读取循环
func (k *KeyboardSource) Start() error {
	k.logger.Info("键盘模拟模式已启动，输入车牌后回车触发签发")

	k.wg.Add(1)
	go k.readLoop()
	return nil
}

// Stop 停止读取并关闭事件通道
// 标准输入无法中断，循环在下一行输入或EOF时退出。
func (k *KeyboardSource) Stop() {
	close(k.stopCh)

	done := make(chan struct{})
	go func() {
		k.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
	}

	close(k.events)
}

// Events 返回触发事件通道
func (k *KeyboardSource) Events() <-chan TriggerEvent {
	return k.events
}

// State 键盘源始终视为已连接
func (k *KeyboardSource) State() ConnState {
	return StateConnected
}

func (k *KeyboardSource) readLoop() {
	defer k.wg.Done()

	scanner := bufio.NewScanner(k.reader)
	for scanner.Scan() {
		select {
		case <-k.stopCh:
			return
		default:
		}

		now := time.Now()
		token := strings.TrimSpace(scanner.Text())
		if !k.filter.Accept(token, now) {
			continue
		}

		select {
		case k.events <- TriggerEvent{RawToken: token, ReceivedAt: now}:
		case <-k.stopCh:
			return
		}
	}

	if err := scanner.Err(); err != nil {
		k.logger.Error("读取输入失败", zap.Error(err))
	}
}
