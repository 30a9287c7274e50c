package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/wfunc/parking-gate/internal/gate"
)

// GateHandler 闸口运维处理器
type GateHandler struct {
	gate *gate.Gate
}

// NewGateHandler 创建闸口处理器
func NewGateHandler(g *gate.Gate) *GateHandler {
	return &GateHandler{gate: g}
}

// GetStatus 运行状态
func (h *GateHandler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.gate.GetStatus())
}

// TriggerRequest 手动触发请求
type TriggerRequest struct {
	Token string `json:"token"` // 可选车牌，留空合成临时车牌
}

// Trigger 手动触发一次签发（硬件故障时人工放行用）
func (h *GateHandler) Trigger(c *gin.Context) {
	var req TriggerRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    "INVALID_REQUEST",
			Message: "请求参数错误",
			Details: err.Error(),
		})
		return
	}

	outcome, err := h.gate.Handle(c.Request.Context(), req.Token)
	if err != nil {
		c.JSON(http.StatusBadGateway, ErrorResponse{
			Code:    "ISSUE_FAILED",
			Message: "签发失败",
			Details: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, outcome)
}

// GetQueue 离线队列快照
func (h *GateHandler) GetQueue(c *gin.Context) {
	entries := h.gate.QueueSnapshot()
	c.JSON(http.StatusOK, gin.H{
		"pending": len(entries),
		"entries": entries,
	})
}

// FlushQueue 触发一次离线队列同步
func (h *GateHandler) FlushQueue(c *gin.Context) {
	synced := h.gate.FlushQueue(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{
		"synced":  synced,
		"pending": h.gate.GetStatus().QueuePending,
	})
}
