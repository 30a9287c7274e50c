package queue

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/wfunc/parking-gate/internal/errors"
	"github.com/wfunc/parking-gate/internal/logger"
	"github.com/wfunc/parking-gate/internal/models"
	"github.com/wfunc/parking-gate/internal/repository"
	"go.uber.org/zap"
)

// Syncer 把离线票补报给远端服务
// 实现必须幂等：同一张票重复提交不可产生副作用。
type Syncer interface {
	Sync(ctx context.Context, ticket models.Ticket) error
}

// 重试退避参数
const (
	baseBackoff = 5 * time.Second
	maxBackoff  = 5 * time.Minute
)

// Options 离线队列配置
type Options struct {
	FlushInterval time.Duration // 周期性同步间隔
	MaxRetryAge   time.Duration // 超龄告警阈值，0表示不告警
}

// OfflineQueue 磁盘持久化的离线票队列
// 条目在同步成功前一直保留在队列文件中；每次变更都原子落盘。
type OfflineQueue struct {
	path    string
	syncer  Syncer
	repo    repository.TicketRepository
	opts    Options
	entries []models.OfflineQueueEntry
	mu      sync.Mutex
	kickCh  chan struct{}
	stopCh  chan struct{}
	wg      sync.WaitGroup
	logger  *zap.Logger
}

// NewOfflineQueue 创建离线队列并加载既有条目
// 队列文件损坏视为存储故障，显式失败而不是清空重来。
func NewOfflineQueue(path string, syncer Syncer, repo repository.TicketRepository, opts Options) (*OfflineQueue, error) {
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = 30 * time.Second
	}
	q := &OfflineQueue{
		path:   path,
		syncer: syncer,
		repo:   repo,
		opts:   opts,
		kickCh: make(chan struct{}, 1),
		stopCh: make(chan struct{}),
		logger: logger.GetModuleLogger("queue"),
	}
	if err := q.load(); err != nil {
		return nil, err
	}
	return q, nil
}

// Enqueue 入队并立即落盘
// 返回nil即代表条目已持久化，崩溃后不会丢失。
func (q *OfflineQueue) Enqueue(ticket models.Ticket) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.entries = append(q.entries, models.OfflineQueueEntry{
		Ticket:     ticket,
		EnqueuedAt: time.Now(),
	})
	if err := q.persist(); err != nil {
		// 回滚内存状态，保持与磁盘一致
		q.entries = q.entries[:len(q.entries)-1]
		return err
	}

	q.logger.Info("离线票入队",
		zap.String("ticket_id", ticket.TicketID),
		zap.Int("pending", len(q.entries)))
	return nil
}

// Pending 返回待同步条目数
func (q *OfflineQueue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Snapshot 返回当前队列条目副本（供运维接口查看）
func (q *OfflineQueue) Snapshot() []models.OfflineQueueEntry {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]models.OfflineQueueEntry, len(q.entries))
	copy(out, q.entries)
	return out
}

// Kick 触发一次立即同步（非阻塞）
func (q *OfflineQueue) Kick() {
	select {
	case q.kickCh <- struct{}{}:
	default:
	}
}

// Start 启动后台同步循环
func (q *OfflineQueue) Start() {
	q.wg.Add(1)
	go q.run()
}

// Close 停止同步循环并等待当前一轮结束
func (q *OfflineQueue) Close() {
	close(q.stopCh)
	q.wg.Wait()
}

func (q *OfflineQueue) run() {
	defer q.wg.Done()

	ticker := time.NewTicker(q.opts.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-q.stopCh:
			return
		case <-ticker.C:
			q.FlushOnce(context.Background())
		case <-q.kickCh:
			q.FlushOnce(context.Background())
		}
	}
}

// FlushOnce 对到期的条目各尝试一次同步，返回本轮成功数
func (q *OfflineQueue) FlushOnce(ctx context.Context) int {
	q.mu.Lock()
	pending := make([]models.OfflineQueueEntry, len(q.entries))
	copy(pending, q.entries)
	q.mu.Unlock()

	if len(pending) == 0 {
		return 0
	}

	now := time.Now()
	synced := 0
	for _, entry := range pending {
		if !entry.LastAttempt.IsZero() && now.Sub(entry.LastAttempt) < backoffFor(entry.RetryCount) {
			continue
		}
		if q.opts.MaxRetryAge > 0 && now.Sub(entry.EnqueuedAt) > q.opts.MaxRetryAge {
			q.logger.Warn("离线票滞留超龄，需要人工关注",
				zap.String("ticket_id", entry.Ticket.TicketID),
				zap.Time("enqueued_at", entry.EnqueuedAt),
				zap.Int("retry_count", entry.RetryCount))
		}

		err := q.syncer.Sync(ctx, entry.Ticket)
		logger.LogSyncAttempt(entry.Ticket.TicketID, entry.RetryCount+1, err)

		switch {
		case err == nil:
			q.remove(entry.Ticket.TicketID)
			q.markSynced(ctx, entry.Ticket.TicketID)
			synced++
		case errors.IsRetryable(err):
			q.bumpRetry(entry.Ticket.TicketID)
		default:
			// 被服务端拒绝的票不自动丢弃，保留在队列里供运维查看处理，
			// 退避封顶后低频重试，不会卡住其他条目
			q.logger.Warn("离线票被服务端拒绝，保留待人工处理",
				zap.String("ticket_id", entry.Ticket.TicketID),
				zap.Int("retry_count", entry.RetryCount+1),
				zap.Error(err))
			q.bumpRetry(entry.Ticket.TicketID)
		}

		select {
		case <-ctx.Done():
			return synced
		case <-q.stopCh:
			return synced
		default:
		}
	}
	return synced
}

// backoffFor 指数退避：5s, 10s, 20s, ... 封顶5分钟
func backoffFor(retryCount int) time.Duration {
	d := baseBackoff
	for i := 0; i < retryCount && d < maxBackoff; i++ {
		d *= 2
	}
	if d > maxBackoff {
		d = maxBackoff
	}
	return d
}

func (q *OfflineQueue) remove(ticketID string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, e := range q.entries {
		if e.Ticket.TicketID == ticketID {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			break
		}
	}
	if err := q.persist(); err != nil {
		q.logger.Error("队列文件写入失败", zap.Error(err))
	}
}

func (q *OfflineQueue) bumpRetry(ticketID string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i := range q.entries {
		if q.entries[i].Ticket.TicketID == ticketID {
			q.entries[i].RetryCount++
			q.entries[i].LastAttempt = time.Now()
			break
		}
	}
	if err := q.persist(); err != nil {
		q.logger.Error("队列文件写入失败", zap.Error(err))
	}
}

func (q *OfflineQueue) markSynced(ctx context.Context, ticketID string) {
	if q.repo == nil {
		return
	}
	if err := q.repo.MarkSynced(ctx, ticketID); err != nil {
		q.logger.Error("更新同步状态失败",
			zap.String("ticket_id", ticketID),
			zap.Error(err))
	}
}

// load 从队列文件恢复条目
func (q *OfflineQueue) load() error {
	data, err := os.ReadFile(q.path)
	if err != nil {
		if os.IsNotExist(err) {
			q.entries = nil
			return nil
		}
		return errors.Wrap(err, errors.ErrQueueRead, q.path)
	}

	var entries []models.OfflineQueueEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return errors.Wrap(err, errors.ErrQueueRead, q.path)
	}
	q.entries = entries

	if len(entries) > 0 {
		q.logger.Info("恢复离线队列",
			zap.Int("pending", len(entries)),
			zap.String("path", q.path))
	}
	return nil
}

// persist 原子写入队列文件，调用方持锁
func (q *OfflineQueue) persist() error {
	dir := filepath.Dir(q.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(err, errors.ErrQueueWrite, dir)
	}

	data, err := json.MarshalIndent(q.entries, "", "  ")
	if err != nil {
		return errors.Wrap(err, errors.ErrQueueWrite, q.path)
	}

	tmp, err := os.CreateTemp(dir, ".queue-*")
	if err != nil {
		return errors.Wrap(err, errors.ErrQueueWrite, q.path)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return errors.Wrap(err, errors.ErrQueueWrite, q.path)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return errors.Wrap(err, errors.ErrQueueWrite, q.path)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return errors.Wrap(err, errors.ErrQueueWrite, q.path)
	}

	if err := os.Rename(tmpPath, q.path); err != nil {
		os.Remove(tmpPath)
		return errors.Wrap(err, errors.ErrQueueWrite, q.path)
	}
	return nil
}
