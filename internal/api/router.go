package api

import (
	"github.com/gin-gonic/gin"
	"github.com/wfunc/parking-gate/internal/config"
	"github.com/wfunc/parking-gate/internal/gate"
	"github.com/wfunc/parking-gate/internal/middleware"
	"github.com/wfunc/parking-gate/internal/repository"
	"github.com/wfunc/parking-gate/internal/ticket"
	"github.com/wfunc/parking-gate/internal/utils"
	"github.com/wfunc/parking-gate/internal/websocket"
	"go.uber.org/zap"
)

// Router 运维接口路由器
type Router struct {
	engine         *gin.Engine
	authHandler    *AuthHandler
	gateHandler    *GateHandler
	ticketHandler  *TicketHandler
	wsHandler      *WebSocketHandler
	authMiddleware *middleware.AuthMiddleware
	log            *zap.Logger
}

// Deps 路由依赖
type Deps struct {
	Config     *config.Config
	Gate       *gate.Gate
	Hub        *websocket.Hub
	TicketRepo repository.TicketRepository
	OperRepo   repository.OperatorRepository
	Fee        *ticket.FeeCalculator
	JWT        *utils.JWTManager
	Logger     *zap.Logger
}

// NewRouter 创建路由器
func NewRouter(deps Deps) *Router {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(gin.Logger())

	router := &Router{
		engine:         engine,
		authHandler:    NewAuthHandler(deps.OperRepo, deps.JWT),
		gateHandler:    NewGateHandler(deps.Gate),
		ticketHandler:  NewTicketHandler(deps.TicketRepo, deps.Fee),
		wsHandler:      NewWebSocketHandler(deps.Hub),
		authMiddleware: middleware.NewAuthMiddleware(deps.JWT),
		log:            deps.Logger,
	}

	router.setupRoutes()
	return router
}

// setupRoutes 设置路由
func (r *Router) setupRoutes() {
	// 健康检查
	r.engine.GET("/health", r.healthCheck)

	v1 := r.engine.Group("/api/v1")
	{
		// 认证相关路由（不需要认证）
		auth := v1.Group("/auth")
		{
			auth.POST("/login", r.authHandler.Login)
		}

		// 闸口运维路由（需要认证）
		authed := v1.Group("")
		authed.Use(r.authMiddleware.RequireAuth())
		{
			authed.GET("/status", r.gateHandler.GetStatus)
			authed.POST("/gate/trigger", r.gateHandler.Trigger)
			authed.GET("/queue", r.gateHandler.GetQueue)
			authed.POST("/queue/flush", r.gateHandler.FlushQueue)

			authed.GET("/tickets", r.ticketHandler.ListTickets)
			authed.GET("/tickets/:ticket_id", r.ticketHandler.GetTicket)
			authed.GET("/tickets/:ticket_id/fee", r.ticketHandler.QuoteFee)
		}
	}

	// 事件推送（令牌经query参数校验）
	r.engine.GET("/ws", r.authMiddleware.RequireAuth(), r.wsHandler.Serve)
}

// healthCheck 健康检查
func (r *Router) healthCheck(c *gin.Context) {
	c.JSON(200, gin.H{
		"status":  "ok",
		"service": "parking-gate",
	})
}

// Engine 返回Gin引擎
func (r *Router) Engine() *gin.Engine {
	return r.engine
}

// ErrorResponse 错误响应
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}
