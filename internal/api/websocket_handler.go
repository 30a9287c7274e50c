package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	gorilla "github.com/gorilla/websocket"
	"github.com/wfunc/parking-gate/internal/logger"
	"github.com/wfunc/parking-gate/internal/websocket"
	"go.uber.org/zap"
)

// WebSocketHandler 事件推送处理器
type WebSocketHandler struct {
	hub      *websocket.Hub
	upgrader gorilla.Upgrader
}

// NewWebSocketHandler 创建事件推送处理器
func NewWebSocketHandler(hub *websocket.Hub) *WebSocketHandler {
	return &WebSocketHandler{
		hub: hub,
		upgrader: gorilla.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// 运维端部署在内网，放开同源检查
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Serve 升级连接并注册到Hub
func (h *WebSocketHandler) Serve(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.GetModuleLogger("websocket").Error("WebSocket升级失败",
			zap.Error(err))
		return
	}

	client := websocket.NewClient(h.hub, conn)
	h.hub.Register(client)
}
