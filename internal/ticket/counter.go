package ticket

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/wfunc/parking-gate/internal/errors"
	"github.com/wfunc/parking-gate/internal/logger"
	"go.uber.org/zap"
)

// Counter 崩溃安全的单调计数器
// 每次Next()都先持久化新值再返回，保证进程崩溃后票号不回退、不重用。
type Counter struct {
	path   string
	value  int64
	loaded bool
	mu     sync.Mutex
	logger *zap.Logger
}

// NewCounter 创建计数器
func NewCounter(path string) *Counter {
	return &Counter{
		path:   path,
		logger: logger.GetModuleLogger("ticket"),
	}
}

// Next 返回下一个计数值
// 新值在返回之前已落盘（写临时文件后原子改名）。
func (c *Counter) Next() (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.loaded {
		if err := c.load(); err != nil {
			return 0, err
		}
	}

	next := c.value + 1
	if err := c.persist(next); err != nil {
		return 0, err
	}
	c.value = next

	return next, nil
}

// Current 返回当前计数值（0表示尚未签发过离线票）
func (c *Counter) Current() (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.loaded {
		if err := c.load(); err != nil {
			return 0, err
		}
	}
	return c.value, nil
}

// load 从文件加载计数值
// 文件缺失视为首次运行（从0开始）；内容无法解析视为损坏，
// 必须显式失败，绝不能静默归零导致票号重用。
func (c *Counter) load() error {
	data, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			c.logger.Info("计数器文件不存在，首次运行从0开始",
				zap.String("path", c.path))
			c.value = 0
			c.loaded = true
			return nil
		}
		return errors.Wrap(err, errors.ErrCounterRead, c.path)
	}

	text := strings.TrimSpace(string(data))
	value, err := strconv.ParseInt(text, 10, 64)
	if err != nil || value < 0 {
		c.logger.Error("计数器文件内容无法解析，拒绝归零",
			zap.String("path", c.path),
			zap.String("content", text))
		return errors.Newf(errors.ErrCounterCorrupt,
			"计数器文件 %s 内容 %q 无法解析", c.path, text)
	}

	c.value = value
	c.loaded = true
	return nil
}

// persist 原子写入计数值
func (c *Counter) persist(value int64) error {
	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(err, errors.ErrCounterWrite, dir)
	}

	// 写临时文件后原子改名，避免崩溃留下截断的状态
	tmp, err := os.CreateTemp(dir, ".counter-*")
	if err != nil {
		return errors.Wrap(err, errors.ErrCounterWrite, c.path)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.WriteString(fmt.Sprintf("%d\n", value)); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return errors.Wrap(err, errors.ErrCounterWrite, c.path)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return errors.Wrap(err, errors.ErrCounterWrite, c.path)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return errors.Wrap(err, errors.ErrCounterWrite, c.path)
	}

	if err := os.Rename(tmpPath, c.path); err != nil {
		os.Remove(tmpPath)
		return errors.Wrap(err, errors.ErrCounterWrite, c.path)
	}

	return nil
}
