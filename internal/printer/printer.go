package printer

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wfunc/parking-gate/internal/errors"
	"github.com/wfunc/parking-gate/internal/logger"
	"go.uber.org/zap"
)

// Sink 打印输出端
// Write必须是原子作业：句柄在作业内打开、写完即关，
// 无论成败都不能把句柄留给下一个作业。
type Sink interface {
	Write(data []byte) error
	Close() error
}

// Printer 打印作业管理器
// 作业串行执行；Busy类瞬时错误等待后重试一次，其余错误原样上抛。
type Printer struct {
	sink       Sink
	retryDelay time.Duration
	mu         sync.Mutex
	lastError  error
	jobCount   int64
	logger     *zap.Logger
}

// NewPrinter 创建打印管理器
func NewPrinter(sink Sink, retryDelay time.Duration) *Printer {
	if retryDelay <= 0 {
		retryDelay = time.Second
	}
	return &Printer{
		sink:       sink,
		retryDelay: retryDelay,
		logger:     logger.GetModuleLogger("printer"),
	}
}

// Submit 提交一个打印作业
// ticketID仅用于日志关联，作业内容由调用方编码完成。
func (p *Printer) Submit(ticketID string, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	jobID := uuid.NewString()
	err := p.sink.Write(data)
	if err != nil && errors.GetCode(err) == errors.ErrPrinterBusy {
		p.logger.Warn("打印机忙，等待后重试一次",
			zap.String("job_id", jobID),
			zap.Duration("delay", p.retryDelay))
		time.Sleep(p.retryDelay)
		err = p.sink.Write(data)
	}

	p.jobCount++
	p.lastError = err
	logger.LogPrintJob(jobID, ticketID, len(data), err)
	return err
}

// LastError 返回最近一次作业的错误（nil表示成功）
func (p *Printer) LastError() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastError
}

// JobCount 返回累计提交的作业数
func (p *Printer) JobCount() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.jobCount
}

// Close 关闭输出端
func (p *Printer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sink.Close()
}
