package ticket

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/wfunc/parking-gate/internal/errors"
	"github.com/wfunc/parking-gate/internal/logger"
	"github.com/wfunc/parking-gate/internal/models"
	"github.com/wfunc/parking-gate/internal/repository"
	"go.uber.org/zap"
)

// Enqueuer 离线队列入队接口，由queue包实现
type Enqueuer interface {
	Enqueue(ticket models.Ticket) error
}

// Issuer 入场票签发器
// 优先走远端服务；远端失败时回退到本地离线签发并入队待同步。
// 同一时刻只处理一次签发，由调用方的流水线保证串行。
type Issuer struct {
	client        *Client
	counter       *Counter
	queue         Enqueuer
	repo          repository.TicketRepository
	gateID        string
	offlinePrefix string
	offlineDigits int
	mu            sync.Mutex
	logger        *zap.Logger
}

// IssuerOptions 签发器配置
type IssuerOptions struct {
	GateID        string
	OfflinePrefix string
	OfflineDigits int
}

// NewIssuer 创建签发器
// repo可为nil（不落库），queue不可为nil。
func NewIssuer(client *Client, counter *Counter, queue Enqueuer, repo repository.TicketRepository, opts IssuerOptions) *Issuer {
	if opts.OfflinePrefix == "" {
		opts.OfflinePrefix = "OFF"
	}
	if opts.OfflineDigits <= 0 {
		opts.OfflineDigits = 6
	}
	return &Issuer{
		client:        client,
		counter:       counter,
		queue:         queue,
		repo:          repo,
		gateID:        opts.GateID,
		offlinePrefix: opts.OfflinePrefix,
		offlineDigits: opts.OfflineDigits,
		logger:        logger.GetModuleLogger("issuer"),
	}
}

// Issue 签发一张入场票
// 远端任何失败（超时、拒绝连接、非2xx、响应格式错误、success=false）
// 都回退离线签发，车辆不能因服务端故障被拦在闸口。
// 离线票在返回前已入队并落盘，保证至少一次同步。
func (i *Issuer) Issue(ctx context.Context, plate string, vehicle models.VehicleType) (*models.Ticket, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	start := time.Now()
	ticketID, issuedAt, err := i.client.Issue(ctx, plate, vehicle)
	if err == nil {
		ticket := &models.Ticket{
			TicketID:    ticketID,
			Plate:       plate,
			VehicleType: vehicle,
			IssuedAt:    issuedAt,
			Origin:      models.OriginServer,
			Synced:      true,
			GateID:      i.gateID,
		}
		i.record(ctx, ticket)
		logger.LogTicketIssued(ticket.TicketID, plate, string(ticket.Origin), time.Since(start))
		return ticket, nil
	}

	if errors.IsRetryable(err) {
		i.logger.Warn("远端不可达，回退离线签发",
			zap.String("plate", plate),
			zap.Error(err))
	} else {
		i.logger.Error("服务端拒绝或响应异常，回退离线签发",
			zap.String("plate", plate),
			zap.Int32("code", int32(errors.GetCode(err))),
			zap.Error(err))
	}
	return i.issueOffline(ctx, plate, vehicle, start)
}

// issueOffline 本地离线签发
func (i *Issuer) issueOffline(ctx context.Context, plate string, vehicle models.VehicleType, start time.Time) (*models.Ticket, error) {
	seq, err := i.counter.Next()
	if err != nil {
		return nil, err
	}

	ticket := &models.Ticket{
		TicketID:    fmt.Sprintf("%s%0*d", i.offlinePrefix, i.offlineDigits, seq),
		Plate:       plate,
		VehicleType: vehicle,
		IssuedAt:    time.Now(),
		Origin:      models.OriginOffline,
		Synced:      false,
		GateID:      i.gateID,
	}

	// 先入队落盘再返回，崩溃不会丢失待同步票
	if err := i.queue.Enqueue(*ticket); err != nil {
		return nil, err
	}

	i.record(ctx, ticket)
	logger.LogTicketIssued(ticket.TicketID, plate, string(ticket.Origin), time.Since(start))
	return ticket, nil
}

// record 落库，失败只记日志不影响签发
func (i *Issuer) record(ctx context.Context, ticket *models.Ticket) {
	if i.repo == nil {
		return
	}
	if err := i.repo.Create(ctx, ticket); err != nil {
		i.logger.Error("票据落库失败",
			zap.String("ticket_id", ticket.TicketID),
			zap.Error(err))
	}
}
