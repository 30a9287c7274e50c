package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/wfunc/parking-gate/internal/api"
	"github.com/wfunc/parking-gate/internal/config"
	"github.com/wfunc/parking-gate/internal/database"
	"github.com/wfunc/parking-gate/internal/device"
	"github.com/wfunc/parking-gate/internal/errors"
	"github.com/wfunc/parking-gate/internal/gate"
	"github.com/wfunc/parking-gate/internal/logger"
	"github.com/wfunc/parking-gate/internal/printer"
	"github.com/wfunc/parking-gate/internal/queue"
	"github.com/wfunc/parking-gate/internal/repository"
	"github.com/wfunc/parking-gate/internal/ticket"
	"github.com/wfunc/parking-gate/internal/utils"
	"github.com/wfunc/parking-gate/internal/websocket"
	"go.uber.org/zap"
)

// 版本信息
var (
	Version   = "1.0.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// Server 闸口服务实例
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	gate       *gate.Gate
	hub        *websocket.Hub
	httpServer *http.Server

	ticketRepo repository.TicketRepository
	operRepo   repository.OperatorRepository
}

func main() {
	var (
		configPath  = flag.String("config", "", "配置文件路径")
		showVersion = flag.Bool("version", false, "显示版本信息")
	)
	flag.Parse()

	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	if err := config.Init(*configPath); err != nil {
		fmt.Printf("加载配置失败: %v\n", err)
		os.Exit(1)
	}
	cfg := config.Get()

	if err := logger.Init(&cfg.Log); err != nil {
		fmt.Printf("初始化日志失败: %v\n", err)
		os.Exit(1)
	}

	server := NewServer(cfg)
	if err := server.Start(); err != nil {
		logger.Fatal("闸口服务启动失败", zap.Error(err))
	}

	server.WaitForShutdown()

	if err := server.Shutdown(); err != nil {
		logger.Error("闸口服务关闭失败", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("闸口服务已安全关闭")
}

// NewServer 创建服务实例
func NewServer(cfg *config.Config) *Server {
	return &Server{
		cfg:    cfg,
		logger: logger.GetLogger(),
	}
}

// Start 启动服务
func (s *Server) Start() error {
	s.logger.Info("正在启动停车闸口服务...",
		zap.String("version", Version),
		zap.String("gate_id", s.cfg.Gate.ID))

	if err := s.initDatabase(); err != nil {
		return err
	}
	if err := s.initPipeline(); err != nil {
		return err
	}
	s.startHTTPServer()

	config.Watch(func(newCfg *config.Config) {
		s.logger.Info("配置已更新，部分变更需重启生效")
		s.cfg = newCfg
	})

	s.logger.Info("闸口服务启动成功",
		zap.String("http", fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)),
		zap.String("issuer", s.cfg.Issuer.BaseURL),
		zap.String("source", s.cfg.Device.Source))
	return nil
}

// initDatabase 初始化数据库
func (s *Server) initDatabase() error {
	if err := database.Init(&s.cfg.Database); err != nil {
		return errors.Wrap(err, errors.ErrDatabaseConnect, "初始化数据库连接失败")
	}
	if s.cfg.Database.AutoMigrate {
		if err := database.AutoMigrate(); err != nil {
			return errors.Wrap(err, errors.ErrDatabaseConnect, "数据库迁移失败")
		}
	}

	db := database.GetDB()
	s.ticketRepo = repository.NewTicketRepository(db)
	s.operRepo = repository.NewOperatorRepository(db)
	return nil
}

// initPipeline 组装签发流水线
func (s *Server) initPipeline() error {
	cfg := s.cfg

	counter := ticket.NewCounter(cfg.Storage.CounterFile)
	client := ticket.NewClient(cfg.Issuer.BaseURL, cfg.Issuer.Timeout, cfg.Issuer.MaxRetries)

	q, err := queue.NewOfflineQueue(cfg.Storage.QueueFile, client, s.ticketRepo, queue.Options{
		FlushInterval: cfg.Gate.FlushInterval,
		MaxRetryAge:   cfg.Gate.MaxRetryAge,
	})
	if err != nil {
		return err
	}

	issuer := ticket.NewIssuer(client, counter, q, s.ticketRepo, ticket.IssuerOptions{
		GateID:        cfg.Gate.ID,
		OfflinePrefix: cfg.Issuer.OfflinePrefix,
		OfflineDigits: cfg.Issuer.OfflineDigits,
	})

	source, err := s.buildSource()
	if err != nil {
		return err
	}
	sink, err := s.buildSink()
	if err != nil {
		return err
	}

	s.hub = websocket.NewHub()
	go s.hub.Run()

	s.gate = gate.New(gate.Options{
		Config:   cfg,
		Source:   source,
		Issuer:   issuer,
		Queue:    q,
		Printer:  printer.NewPrinter(sink, cfg.Printer.RetryDelay),
		Repo:     s.ticketRepo,
		Fee:      ticket.NewFeeCalculator(cfg.Fee.BaseRate),
		Notifier: s.hub,
	})
	return s.gate.Start()
}

// buildSource 按配置创建触发信号源
func (s *Server) buildSource() (device.TriggerSource, error) {
	cfg := s.cfg
	switch cfg.Device.Source {
	case "serial":
		return device.NewSerialSource(cfg.Device, cfg.Gate.Debounce), nil
	case "keyboard":
		return device.NewKeyboardSource(nil, cfg.Device.StatusTokens, cfg.Gate.Debounce), nil
	case "mock":
		return device.NewMockSource(cfg.Device.StatusTokens, cfg.Gate.Debounce), nil
	default:
		return nil, errors.Newf(errors.ErrConfigValidate,
			"未知的信号源类型: %s", cfg.Device.Source)
	}
}

// buildSink 按配置创建打印输出端
func (s *Server) buildSink() (printer.Sink, error) {
	cfg := s.cfg
	switch cfg.Printer.Sink {
	case "spool":
		return printer.NewSpoolSink(cfg.Printer.Device), nil
	case "serial":
		return printer.NewSerialSink(cfg.Printer.Port, cfg.Printer.BaudRate), nil
	case "mock":
		return printer.NewMockSink(), nil
	default:
		return nil, errors.Newf(errors.ErrConfigValidate,
			"未知的打印输出类型: %s", cfg.Printer.Sink)
	}
}

// startHTTPServer 启动运维API
func (s *Server) startHTTPServer() {
	jwt := utils.NewJWTManager(s.cfg.Security.JWT.Secret,
		time.Duration(s.cfg.Security.JWT.ExpireHours)*time.Hour)

	router := api.NewRouter(api.Deps{
		Config:     s.cfg,
		Gate:       s.gate,
		Hub:        s.hub,
		TicketRepo: s.ticketRepo,
		OperRepo:   s.operRepo,
		Fee:        ticket.NewFeeCalculator(s.cfg.Fee.BaseRate),
		JWT:        jwt,
		Logger:     s.logger,
	})

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port),
		Handler:      router.Engine(),
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP服务异常退出", zap.Error(err))
		}
	}()
}

// WaitForShutdown 等待退出信号
func (s *Server) WaitForShutdown() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT,
	)

	sig := <-sigCh
	s.logger.Info("收到退出信号", zap.String("signal", sig.String()))
}

// Shutdown 优雅关闭
// 顺序：停HTTP→停流水线（排空在途作业）→停推送→关数据库。
func (s *Server) Shutdown() error {
	s.logger.Info("正在优雅关闭闸口服务...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("HTTP服务关闭超时", zap.Error(err))
		}
	}

	if s.gate != nil {
		s.gate.Stop()
	}
	if s.hub != nil {
		s.hub.Stop()
	}

	if err := database.Close(); err != nil {
		s.logger.Error("关闭数据库失败", zap.Error(err))
	}
	if err := logger.Sync(); err != nil {
		fmt.Printf("同步日志失败: %v\n", err)
	}
	return nil
}

// printVersion 打印版本信息
func printVersion() {
	fmt.Printf("停车闸口服务\n")
	fmt.Printf("版本: %s\n", Version)
	fmt.Printf("构建时间: %s\n", BuildTime)
	fmt.Printf("Git提交: %s\n", GitCommit)
	fmt.Printf("Go版本: %s\n", runtime.Version())
	fmt.Printf("操作系统: %s/%s\n", runtime.GOOS, runtime.GOARCH)
}
