package gate

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/wfunc/parking-gate/internal/config"
	"github.com/wfunc/parking-gate/internal/device"
	"github.com/wfunc/parking-gate/internal/errors"
	"github.com/wfunc/parking-gate/internal/escpos"
	"github.com/wfunc/parking-gate/internal/logger"
	"github.com/wfunc/parking-gate/internal/models"
	"github.com/wfunc/parking-gate/internal/printer"
	"github.com/wfunc/parking-gate/internal/queue"
	"github.com/wfunc/parking-gate/internal/repository"
	"github.com/wfunc/parking-gate/internal/ticket"
	"github.com/wfunc/parking-gate/internal/utils"
	"go.uber.org/zap"
)

// Event 闸口运行事件，推送给运维端
type Event struct {
	ID      string      `json:"id"`
	Type    string      `json:"type"`
	Time    time.Time   `json:"time"`
	Payload interface{} `json:"payload,omitempty"`
}

// 事件类型
const (
	EventTicketIssued = "ticket_issued"
	EventPrintFailed  = "print_failed"
	EventQueueSynced  = "queue_synced"
)

// Notifier 事件订阅端，由运维接口层实现
type Notifier interface {
	Publish(event Event)
}

// Outcome 一次触发的处理结果
// 签发成功但打印失败时Ticket非空且PrintErr非空，
// 票已生效，需人工补打或放行。
type Outcome struct {
	Ticket      *models.Ticket   `json:"ticket"`
	Plate       string           `json:"plate"`
	Synthesized bool             `json:"synthesized"`
	Printed     bool             `json:"printed"`
	TextOnly    bool             `json:"text_only"`
	PrintErr    string           `json:"print_err,omitempty"`
	FeeEstimate *models.FeeQuote `json:"fee_estimate,omitempty"`
}

// Gate 入场闸口流水线
// 单循环消费触发事件，签发与打印全程串行：
// 一次触发完整走完 签发→编码→打印 才处理下一次。
type Gate struct {
	cfg     *config.Config
	source  device.TriggerSource
	issuer  *ticket.Issuer
	queue   *queue.OfflineQueue
	printer *printer.Printer
	repo    repository.TicketRepository
	fee     *ticket.FeeCalculator

	notifier Notifier
	receipt  escpos.ReceiptOptions
	vehicle  models.VehicleType
	triggers map[string]struct{}

	mu      sync.Mutex
	started time.Time
	wg      sync.WaitGroup
	logger  *zap.Logger
}

// Options 流水线依赖
type Options struct {
	Config   *config.Config
	Source   device.TriggerSource
	Issuer   *ticket.Issuer
	Queue    *queue.OfflineQueue
	Printer  *printer.Printer
	Repo     repository.TicketRepository
	Fee      *ticket.FeeCalculator
	Notifier Notifier
}

// New 创建闸口流水线
func New(opts Options) *Gate {
	cfg := opts.Config

	sym, ok := escpos.ParseSymbology(cfg.Printer.Barcode.Symbology)
	if !ok {
		sym = escpos.Code39
	}
	vehicle, ok := models.ParseVehicleType(cfg.Gate.DefaultVehicle)
	if !ok {
		vehicle = models.VehicleCar
	}

	triggers := make(map[string]struct{}, len(cfg.Device.TriggerTokens))
	for _, t := range cfg.Device.TriggerTokens {
		triggers[strings.ToUpper(t)] = struct{}{}
	}

	return &Gate{
		cfg:      cfg,
		source:   opts.Source,
		issuer:   opts.Issuer,
		queue:    opts.Queue,
		printer:  opts.Printer,
		repo:     opts.Repo,
		fee:      opts.Fee,
		notifier: opts.Notifier,
		receipt: escpos.ReceiptOptions{
			Header:     []string{cfg.Printer.Header},
			Footer:     cfg.Printer.Footer,
			FeedLines:  byte(cfg.Printer.FeedLines),
			FullCut:    cfg.Printer.FullCut,
			Symbology:  sym,
			MaxBarcode: cfg.Printer.Barcode.MaxLength,
		},
		vehicle:  vehicle,
		triggers: triggers,
		logger:   logger.GetModuleLogger("gate"),
	}
}

// Start 启动信号源和处理循环
func (g *Gate) Start() error {
	if err := g.source.Start(); err != nil {
		return err
	}
	g.queue.Start()
	g.started = time.Now()

	g.wg.Add(1)
	go g.run()

	g.logger.Info("闸口流水线已启动",
		zap.String("gate_id", g.cfg.Gate.ID),
		zap.String("source", g.cfg.Device.Source))
	return nil
}

// Stop 优雅停机
// 先停信号源让处理循环排空，再停队列同步，最后关打印机。
func (g *Gate) Stop() {
	g.source.Stop()
	g.wg.Wait()
	g.queue.Close()
	if err := g.printer.Close(); err != nil {
		g.logger.Error("关闭打印机失败", zap.Error(err))
	}
	g.logger.Info("闸口流水线已停止")
}

// run 主循环：事件通道关闭即退出
func (g *Gate) run() {
	defer g.wg.Done()

	for event := range g.source.Events() {
		outcome, err := g.Handle(context.Background(), event.RawToken)
		if err != nil {
			g.logger.Error("触发处理失败",
				zap.String("raw_token", event.RawToken),
				zap.Error(err))
			continue
		}
		g.publish(EventTicketIssued, outcome)
		if !outcome.Printed {
			g.publish(EventPrintFailed, outcome)
		}
	}
}

// Handle 处理一次触发：签发、编码、打印
// 签发失败整体失败；打印失败不回滚签发，结果里如实上报。
func (g *Gate) Handle(ctx context.Context, rawToken string) (*Outcome, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	plate, synthesized := g.resolvePlate(rawToken)

	tkt, err := g.issuer.Issue(ctx, plate, g.vehicle)
	if err != nil {
		return nil, err
	}

	outcome := &Outcome{
		Ticket:      tkt,
		Plate:       plate,
		Synthesized: synthesized,
	}
	if g.fee != nil {
		// 入场即给出首小时预估，随事件推送给运维端
		quote := g.fee.Calculate(tkt.VehicleType, 0)
		outcome.FeeEstimate = &quote
	}
	g.print(ctx, tkt, outcome)
	return outcome, nil
}

// print 编码并提交打印作业
// 条码编码失败降级为纯文本小票；完整小票打印失败时
// 再用纯文本小票补打一次，仍失败才上报打印失败。
func (g *Gate) print(ctx context.Context, tkt *models.Ticket, outcome *Outcome) {
	data, err := escpos.EncodeReceipt(tkt, g.receipt)
	if err != nil {
		g.logger.Warn("条码编码失败，降级为纯文本小票",
			zap.String("ticket_id", tkt.TicketID),
			zap.Error(err))
		data = escpos.EncodeTextReceipt(tkt, g.receipt)
		outcome.TextOnly = true
	}

	err = g.printer.Submit(tkt.TicketID, data)
	if err != nil && !outcome.TextOnly {
		g.logger.Warn("小票打印失败，降级为纯文本补打",
			zap.String("ticket_id", tkt.TicketID),
			zap.Int32("code", int32(errors.GetCode(err))),
			zap.Error(err))
		outcome.TextOnly = true
		err = g.printer.Submit(tkt.TicketID, escpos.EncodeTextReceipt(tkt, g.receipt))
	}
	if err != nil {
		outcome.PrintErr = err.Error()
		g.logger.Error("票已签发但打印失败，需人工处理",
			zap.String("ticket_id", tkt.TicketID),
			zap.String("plate", tkt.Plate),
			zap.Int32("code", int32(errors.GetCode(err))),
			zap.Error(err))
		return
	}

	outcome.Printed = true
	if g.repo != nil {
		if err := g.repo.MarkPrinted(ctx, tkt.TicketID); err != nil {
			g.logger.Error("更新打印状态失败",
				zap.String("ticket_id", tkt.TicketID),
				zap.Error(err))
		}
	}
}

// resolvePlate 从原始令牌解析车牌
// 显式触发令牌和短令牌（按钮类信号）没有车牌信息，合成临时车牌；
// 超长令牌截断到配置上限。
func (g *Gate) resolvePlate(rawToken string) (string, bool) {
	token := strings.ToUpper(strings.TrimSpace(rawToken))

	if _, ok := g.triggers[token]; ok {
		return utils.GeneratePlateNumber(), true
	}
	if len(token) < g.cfg.Gate.MinPlateLength {
		return utils.GeneratePlateNumber(), true
	}
	if max := g.cfg.Gate.MaxPlateLength; max > 0 && len(token) > max {
		token = token[:max]
	}
	return token, false
}

// Status 运行状态快照
type Status struct {
	GateID       string           `json:"gate_id"`
	Uptime       string           `json:"uptime"`
	SourceState  device.ConnState `json:"source_state"`
	QueuePending int              `json:"queue_pending"`
	PrintJobs    int64            `json:"print_jobs"`
	LastPrintErr string           `json:"last_print_err,omitempty"`
}

// GetStatus 返回当前运行状态
func (g *Gate) GetStatus() Status {
	s := Status{
		GateID:       g.cfg.Gate.ID,
		Uptime:       time.Since(g.started).Round(time.Second).String(),
		SourceState:  g.source.State(),
		QueuePending: g.queue.Pending(),
		PrintJobs:    g.printer.JobCount(),
	}
	if err := g.printer.LastError(); err != nil {
		s.LastPrintErr = err.Error()
	}
	return s
}

// FlushQueue 触发一次离线队列同步并返回本轮同步数
func (g *Gate) FlushQueue(ctx context.Context) int {
	synced := g.queue.FlushOnce(ctx)
	if synced > 0 {
		g.publish(EventQueueSynced, map[string]int{"synced": synced})
	}
	return synced
}

// QueueSnapshot 返回离线队列快照
func (g *Gate) QueueSnapshot() []models.OfflineQueueEntry {
	return g.queue.Snapshot()
}

func (g *Gate) publish(eventType string, payload interface{}) {
	if g.notifier == nil {
		return
	}
	g.notifier.Publish(Event{
		ID:      uuid.NewString(),
		Type:    eventType,
		Time:    time.Now(),
		Payload: payload,
	})
}
