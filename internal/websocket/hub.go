package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/wfunc/parking-gate/internal/gate"
	"github.com/wfunc/parking-gate/internal/logger"
	"go.uber.org/zap"
)

// Hub WebSocket连接管理中心
// 闸口流水线的事件经Publish进入广播通道，推送给所有在线运维端。
type Hub struct {
	clients   map[string]*Client
	clientsMu sync.RWMutex

	broadcast  chan gate.Event
	register   chan *Client
	unregister chan *Client
	stopCh     chan struct{}

	logger *zap.Logger
}

// Client WebSocket客户端
type Client struct {
	ID   string
	Hub  *Hub
	Conn *websocket.Conn
	Send chan []byte
}

// NewHub 创建Hub
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		broadcast:  make(chan gate.Event, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		stopCh:     make(chan struct{}),
		logger:     logger.GetModuleLogger("websocket"),
	}
}

// Publish 实现闸口事件订阅端，通道满时丢弃（推送尽力而为）
func (h *Hub) Publish(event gate.Event) {
	select {
	case h.broadcast <- event:
	default:
		h.logger.Warn("事件广播积压，丢弃事件",
			zap.String("type", event.Type))
	}
}

// Run 运行Hub
func (h *Hub) Run() {
	go h.runHeartbeat()

	for {
		select {
		case <-h.stopCh:
			return
		case client := <-h.register:
			h.registerClient(client)
		case client := <-h.unregister:
			h.unregisterClient(client)
		case event := <-h.broadcast:
			h.broadcastEvent(event)
		}
	}
}

// Stop 停止Hub并断开所有客户端
func (h *Hub) Stop() {
	close(h.stopCh)

	h.clientsMu.Lock()
	defer h.clientsMu.Unlock()
	for _, client := range h.clients {
		close(client.Send)
		client.Conn.Close()
	}
	h.clients = make(map[string]*Client)
}

// ClientCount 返回在线客户端数
func (h *Hub) ClientCount() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients)
}

// Register 注册客户端
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister 注销客户端
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

func (h *Hub) registerClient(client *Client) {
	h.clientsMu.Lock()
	h.clients[client.ID] = client
	h.clientsMu.Unlock()

	h.logger.Info("WebSocket客户端连接",
		zap.String("client_id", client.ID),
		zap.Int("total", h.ClientCount()))
}

func (h *Hub) unregisterClient(client *Client) {
	h.clientsMu.Lock()
	if _, ok := h.clients[client.ID]; ok {
		delete(h.clients, client.ID)
		close(client.Send)
	}
	h.clientsMu.Unlock()

	h.logger.Info("WebSocket客户端断开",
		zap.String("client_id", client.ID))
}

func (h *Hub) broadcastEvent(event gate.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("事件序列化失败", zap.Error(err))
		return
	}

	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	for _, client := range h.clients {
		select {
		case client.Send <- data:
		default:
			// 发送通道满说明客户端已僵死，交给写循环清理
		}
	}
}

// runHeartbeat 心跳检测
func (h *Hub) runHeartbeat() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-h.stopCh:
			return
		case <-ticker.C:
			h.clientsMu.RLock()
			for _, client := range h.clients {
				if err := client.Conn.WriteControl(websocket.PingMessage,
					nil, time.Now().Add(5*time.Second)); err != nil {
					h.logger.Debug("心跳发送失败",
						zap.String("client_id", client.ID))
				}
			}
			h.clientsMu.RUnlock()
		}
	}
}
