package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wfunc/parking-gate/internal/models"
	"github.com/wfunc/parking-gate/internal/repository"
	"github.com/wfunc/parking-gate/internal/ticket"
)

// TicketHandler 票据查询处理器
type TicketHandler struct {
	tickets repository.TicketRepository
	fee     *ticket.FeeCalculator
}

// NewTicketHandler 创建票据处理器
func NewTicketHandler(tickets repository.TicketRepository, fee *ticket.FeeCalculator) *TicketHandler {
	return &TicketHandler{
		tickets: tickets,
		fee:     fee,
	}
}

// ListTickets 分页查询票据
func (h *TicketHandler) ListTickets(c *gin.Context) {
	query := &repository.TicketQuery{
		Plate:  c.Query("plate"),
		Origin: models.TicketOrigin(c.Query("origin")),
	}
	if v := c.Query("synced"); v != "" {
		synced := v == "true"
		query.Synced = &synced
	}
	if v := c.Query("page"); v != "" {
		query.Page, _ = strconv.Atoi(v)
	}
	if v := c.Query("page_size"); v != "" {
		query.PageSize, _ = strconv.Atoi(v)
	}

	tickets, total, err := h.tickets.Query(c.Request.Context(), query)
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Code:    "QUERY_FAILED",
			Message: "查询票据失败",
			Details: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"total":   total,
		"tickets": tickets,
	})
}

// GetTicket 按票号查询单张票据
func (h *TicketHandler) GetTicket(c *gin.Context) {
	tkt, err := h.tickets.FindByTicketID(c.Request.Context(), c.Param("ticket_id"))
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Code:    "TICKET_NOT_FOUND",
			Message: "票据不存在",
		})
		return
	}
	c.JSON(http.StatusOK, tkt)
}

// QuoteFee 出场费用试算
// 按签发时间到当前时刻的停留时长计费，只报价不扣费。
func (h *TicketHandler) QuoteFee(c *gin.Context) {
	tkt, err := h.tickets.FindByTicketID(c.Request.Context(), c.Param("ticket_id"))
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Code:    "TICKET_NOT_FOUND",
			Message: "票据不存在",
		})
		return
	}

	quote := h.fee.QuoteSince(tkt.VehicleType, tkt.IssuedAt, time.Now())
	c.JSON(http.StatusOK, gin.H{
		"ticket_id": tkt.TicketID,
		"plate":     tkt.Plate,
		"issued_at": tkt.IssuedAt,
		"quote":     quote,
	})
}
