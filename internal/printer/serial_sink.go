package printer

import (
	"github.com/tarm/serial"
	"github.com/wfunc/parking-gate/internal/errors"
	"github.com/wfunc/parking-gate/internal/logger"
	"go.uber.org/zap"
)

// SerialSink 串口打印机输出端
// 与设备文件输出端相同的原子作业语义：端口按作业开关。
type SerialSink struct {
	port   string
	baud   int
	logger *zap.Logger
}

// NewSerialSink 创建串口打印输出端
func NewSerialSink(port string, baud int) *SerialSink {
	return &SerialSink{
		port:   port,
		baud:   baud,
		logger: logger.GetModuleLogger("printer"),
	}
}

// Write 原子写入一个作业
func (s *SerialSink) Write(data []byte) error {
	p, err := serial.OpenPort(&serial.Config{
		Name: s.port,
		Baud: s.baud,
	})
	if err != nil {
		return errors.Wrap(err, errors.ErrPrinterOffline, s.port)
	}
	defer p.Close()

	n, err := p.Write(data)
	if err != nil {
		return errors.Wrap(err, errors.ErrPrinterUnknown, s.port)
	}
	if n < len(data) {
		s.logger.Error("作业写入不完整",
			zap.Int("written", n),
			zap.Int("total", len(data)))
		return errors.Newf(errors.ErrPrinterUnknown,
			"作业写入不完整: %d/%d", n, len(data))
	}
	return nil
}

// Close 无常驻句柄，无需清理
func (s *SerialSink) Close() error {
	return nil
}
