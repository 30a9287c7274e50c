package device

import (
	"strings"
	"sync"
	"time"

	"github.com/wfunc/parking-gate/internal/logger"
)

// TriggerEvent 一次有效的入场触发
// RawToken保留设备原始内容，由流水线决定是否作为车牌使用。
type TriggerEvent struct {
	RawToken   string    `json:"raw_token"`
	ReceivedAt time.Time `json:"received_at"`
}

// ConnState 信号源连接状态
type ConnState string

const (
	StateDisconnected ConnState = "disconnected"
	StateConnecting   ConnState = "connecting"
	StateConnected    ConnState = "connected"
	StateLost         ConnState = "lost"
)

// TriggerSource 入场信号源接口
// Events通道在Stop后关闭；实现负责过滤与防抖，
// 流水线收到的每个事件都是应当签发的触发。
type TriggerSource interface {
	Start() error
	Stop()
	Events() <-chan TriggerEvent
	State() ConnState
}

// tokenFilter 令牌过滤与防抖
// 状态/保活令牌直接丢弃；防抖窗口内的重复触发丢弃并记录。
type tokenFilter struct {
	statusTokens map[string]struct{}
	debounce     time.Duration
	lastEmit     time.Time
	mu           sync.Mutex
}

func newTokenFilter(statusTokens []string, debounce time.Duration) *tokenFilter {
	set := make(map[string]struct{}, len(statusTokens))
	for _, t := range statusTokens {
		set[strings.ToUpper(t)] = struct{}{}
	}
	return &tokenFilter{
		statusTokens: set,
		debounce:     debounce,
	}
}

// Accept 判断令牌是否应当成为触发事件
// 接受与丢弃都会记录日志，丢弃原因可追溯。
func (f *tokenFilter) Accept(token string, now time.Time) bool {
	token = strings.TrimSpace(token)
	if token == "" {
		return false
	}

	if _, ok := f.statusTokens[strings.ToUpper(token)]; ok {
		logger.LogSerialEvent(token, false, "status_token")
		return false
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.lastEmit.IsZero() && now.Sub(f.lastEmit) < f.debounce {
		logger.LogSerialEvent(token, false, "debounce")
		return false
	}
	f.lastEmit = now

	logger.LogSerialEvent(token, true, "")
	return true
}
