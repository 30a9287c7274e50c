package device

import (
	stderrors "errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wfunc/parking-gate/internal/config"
)

var testStatusTokens = []string{"READY", "STATUS", "PRESS"}

func TestFilterDiscardsStatusTokens(t *testing.T) {
	f := newTokenFilter(testStatusTokens, 0)
	now := time.Now()

	assert.False(t, f.Accept("READY", now))
	assert.False(t, f.Accept("ready", now), "状态令牌匹配不区分大小写")
	assert.False(t, f.Accept("  STATUS  ", now))
	assert.True(t, f.Accept("B1234XYZ", now))
}

func TestFilterDiscardsEmptyTokens(t *testing.T) {
	f := newTokenFilter(testStatusTokens, 0)
	now := time.Now()

	assert.False(t, f.Accept("", now))
	assert.False(t, f.Accept("   ", now))
	assert.False(t, f.Accept("\t\r", now))
}

// 防抖窗口内只接受第一个触发
func TestFilterDebounce(t *testing.T) {
	f := newTokenFilter(nil, 500*time.Millisecond)
	base := time.Now()

	assert.True(t, f.Accept("1", base))
	assert.False(t, f.Accept("1", base.Add(100*time.Millisecond)))
	assert.False(t, f.Accept("B1234XYZ", base.Add(499*time.Millisecond)),
		"防抖按时间窗口计，与令牌内容无关")
	assert.True(t, f.Accept("1", base.Add(500*time.Millisecond)))
}

func TestFilterDebounceIgnoresStatusTokens(t *testing.T) {
	f := newTokenFilter(testStatusTokens, 500*time.Millisecond)
	base := time.Now()

	// 状态令牌不占用防抖窗口
	assert.False(t, f.Accept("READY", base))
	assert.True(t, f.Accept("B1234XYZ", base.Add(10*time.Millisecond)))
}

func TestKeyboardSourceEmitsFilteredEvents(t *testing.T) {
	input := strings.NewReader("READY\nB1234XYZ\n\nD5678AB\n")
	src := NewKeyboardSource(input, testStatusTokens, 0)
	require.NoError(t, src.Start())

	first := <-src.Events()
	assert.Equal(t, "B1234XYZ", first.RawToken)
	assert.False(t, first.ReceivedAt.IsZero())

	second := <-src.Events()
	assert.Equal(t, "D5678AB", second.RawToken)

	src.Stop()
	_, open := <-src.Events()
	assert.False(t, open, "Stop后事件通道关闭")
}

func TestMockSourceInject(t *testing.T) {
	src := NewMockSource(testStatusTokens, 500*time.Millisecond)
	require.NoError(t, src.Start())

	assert.True(t, src.Inject("1"))
	assert.False(t, src.Inject("1"), "防抖窗口内第二次注入被拒")
	assert.False(t, src.Inject("READY"))

	event := <-src.Events()
	assert.Equal(t, "1", event.RawToken)
	assert.Equal(t, StateConnected, src.State())
}

func TestSerialSourceFindDevice(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ttyUSB2"), nil, 0644))

	src := NewSerialSource(config.DeviceConfig{PortPattern: "ttyUSB"}, 0)
	src.devDir = dir

	assert.Equal(t, filepath.Join(dir, "ttyUSB2"), src.findDevice())
}

func TestSerialSourcePrefersLastDevice(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ttyUSB0"), nil, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ttyUSB3"), nil, 0644))

	src := NewSerialSource(config.DeviceConfig{PortPattern: "ttyUSB"}, 0)
	src.devDir = dir
	src.lastDevicePath = filepath.Join(dir, "ttyUSB3")

	assert.Equal(t, filepath.Join(dir, "ttyUSB3"), src.findDevice())

	// 上次的设备消失后回退到扫描
	require.NoError(t, os.Remove(filepath.Join(dir, "ttyUSB3")))
	assert.Equal(t, filepath.Join(dir, "ttyUSB0"), src.findDevice())
}

func TestSerialSourceFindDeviceNoMatch(t *testing.T) {
	src := NewSerialSource(config.DeviceConfig{PortPattern: "ttyUSB"}, 0)
	src.devDir = t.TempDir()

	assert.Equal(t, "", src.findDevice())
	assert.Equal(t, StateDisconnected, src.State())
}

// 半行数据留到下次读取组装，状态令牌在组装后被过滤
func TestSerialSourceConsumeAssemblesChunks(t *testing.T) {
	src := NewSerialSource(config.DeviceConfig{StatusTokens: testStatusTokens}, 0)
	now := time.Now()

	src.consume("B12", now)
	select {
	case e := <-src.events:
		t.Fatalf("半行不应产生事件: %q", e.RawToken)
	default:
	}

	src.consume("34XYZ\nREADY\nD56", now)
	event := <-src.events
	assert.Equal(t, "B1234XYZ", event.RawToken)

	src.consume("78AB\r\n", now)
	event = <-src.events
	assert.Equal(t, "D5678AB", event.RawToken, "CRLF行尾同样被剥离")
}

// 读超时和空闲EOF不触发重连，只有断线类错误才重连
func TestSerialReadErrorClassification(t *testing.T) {
	assert.True(t, isIdleReadError(io.EOF))
	assert.True(t, isIdleReadError(stderrors.New("read timeout")))
	assert.False(t, isIdleReadError(stderrors.New("input/output error")))

	assert.True(t, isDisconnectError(stderrors.New("read /dev/ttyUSB0: input/output error")))
	assert.True(t, isDisconnectError(stderrors.New("device not configured")))
	assert.False(t, isDisconnectError(io.EOF))
}
