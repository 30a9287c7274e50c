package printer

import (
	stderrors "errors"
	"os"
	"strings"
	"syscall"

	"github.com/wfunc/parking-gate/internal/errors"
	"github.com/wfunc/parking-gate/internal/logger"
	"go.uber.org/zap"
)

// SpoolSink 打印机设备文件输出端
// 每个作业独立打开设备写入后立即关闭，不持有常驻句柄，
// 打印机重新上电后下一个作业自然恢复。
type SpoolSink struct {
	device string
	logger *zap.Logger
}

// NewSpoolSink 创建设备文件输出端（如 /dev/usb/lp0）
func NewSpoolSink(device string) *SpoolSink {
	return &SpoolSink{
		device: device,
		logger: logger.GetModuleLogger("printer"),
	}
}

// Write 原子写入一个作业
func (s *SpoolSink) Write(data []byte) error {
	f, err := os.OpenFile(s.device, os.O_WRONLY, 0)
	if err != nil {
		return s.classify(err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return s.classify(err)
	}
	return nil
}

// Close 无常驻句柄，无需清理
func (s *SpoolSink) Close() error {
	return nil
}

// classify 把系统错误映射到打印机错误类别
func (s *SpoolSink) classify(err error) error {
	var errno syscall.Errno
	if stderrors.As(err, &errno) {
		switch errno {
		case syscall.ENOENT, syscall.ENODEV, syscall.ENXIO:
			return errors.Wrap(err, errors.ErrPrinterOffline, s.device)
		case syscall.EBUSY, syscall.EAGAIN:
			return errors.Wrap(err, errors.ErrPrinterBusy, s.device)
		case syscall.ENOSPC:
			return errors.Wrap(err, errors.ErrPrinterOutOfPaper, s.device)
		case syscall.EPIPE, syscall.EIO:
			return errors.Wrap(err, errors.ErrPrinterJammed, s.device)
		}
	}
	if os.IsNotExist(err) {
		return errors.Wrap(err, errors.ErrPrinterOffline, s.device)
	}
	if strings.Contains(strings.ToLower(err.Error()), "permission denied") {
		s.logger.Error("设备权限不足", zap.String("device", s.device))
	}
	return errors.Wrap(err, errors.ErrPrinterUnknown, s.device)
}
