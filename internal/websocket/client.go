package websocket

import (
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	maxMsgSize = 1024
)

// NewClient 创建客户端并启动读写循环
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	client := &Client{
		ID:   uuid.NewString(),
		Hub:  hub,
		Conn: conn,
		Send: make(chan []byte, 64),
	}

	go client.writeLoop()
	go client.readLoop()
	return client
}

// writeLoop 把广播消息写给客户端
func (c *Client) writeLoop() {
	defer c.Conn.Close()

	for data := range c.Send {
		c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
			c.Hub.logger.Debug("客户端写入失败",
				zap.String("client_id", c.ID),
				zap.Error(err))
			return
		}
	}
}

// readLoop 只消费控制帧，事件流是单向推送
func (c *Client) readLoop() {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMsgSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			return
		}
	}
}
