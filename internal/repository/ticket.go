package repository

import (
	"context"
	"time"

	"github.com/wfunc/parking-gate/internal/models"
	"gorm.io/gorm"
)

// TicketQuery 票据查询条件
type TicketQuery struct {
	Plate     string              `json:"plate"`
	Origin    models.TicketOrigin `json:"origin"`
	Synced    *bool               `json:"synced"`
	StartTime *time.Time          `json:"start_time"`
	EndTime   *time.Time          `json:"end_time"`
	Page      int                 `json:"page"`
	PageSize  int                 `json:"page_size"`
}

// TicketRepository 票据仓储接口
type TicketRepository interface {
	Create(ctx context.Context, ticket *models.Ticket) error
	FindByTicketID(ctx context.Context, ticketID string) (*models.Ticket, error)
	Query(ctx context.Context, query *TicketQuery) ([]*models.Ticket, int64, error)
	MarkSynced(ctx context.Context, ticketID string) error
	MarkPrinted(ctx context.Context, ticketID string) error
	CountUnsynced(ctx context.Context) (int64, error)
}

// ticketRepo 票据仓储实现
type ticketRepo struct {
	*BaseRepo
}

// NewTicketRepository 创建票据仓储
func NewTicketRepository(db *gorm.DB) TicketRepository {
	return &ticketRepo{BaseRepo: NewBaseRepo(db)}
}

// Create 创建票据记录
func (r *ticketRepo) Create(ctx context.Context, ticket *models.Ticket) error {
	return r.db.WithContext(ctx).Create(ticket).Error
}

// FindByTicketID 根据票号查找票据
func (r *ticketRepo) FindByTicketID(ctx context.Context, ticketID string) (*models.Ticket, error) {
	var ticket models.Ticket
	err := r.db.WithContext(ctx).
		Where("ticket_id = ?", ticketID).
		First(&ticket).Error
	if err != nil {
		return nil, err
	}
	return &ticket, nil
}

// Query 查询票据
func (r *ticketRepo) Query(ctx context.Context, query *TicketQuery) ([]*models.Ticket, int64, error) {
	db := r.db.WithContext(ctx).Model(&models.Ticket{})

	// 构建查询条件
	if query.Plate != "" {
		db = db.Where("plate LIKE ?", "%"+query.Plate+"%")
	}
	if query.Origin != "" {
		db = db.Where("origin = ?", query.Origin)
	}
	if query.Synced != nil {
		db = db.Where("synced = ?", *query.Synced)
	}
	if query.StartTime != nil {
		db = db.Where("issued_at >= ?", *query.StartTime)
	}
	if query.EndTime != nil {
		db = db.Where("issued_at <= ?", *query.EndTime)
	}

	// 统计总数
	var total int64
	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	// 分页查询
	p := NewPagination(query.Page, query.PageSize)
	var tickets []*models.Ticket
	err := db.Order("issued_at DESC").
		Scopes(Paginate(p)).
		Find(&tickets).Error

	return tickets, total, err
}

// MarkSynced 标记票据已同步
func (r *ticketRepo) MarkSynced(ctx context.Context, ticketID string) error {
	return r.db.WithContext(ctx).
		Model(&models.Ticket{}).
		Where("ticket_id = ?", ticketID).
		Update("synced", true).Error
}

// MarkPrinted 标记票据已打印
func (r *ticketRepo) MarkPrinted(ctx context.Context, ticketID string) error {
	return r.db.WithContext(ctx).
		Model(&models.Ticket{}).
		Where("ticket_id = ?", ticketID).
		Update("printed", true).Error
}

// CountUnsynced 统计未同步票据数量
func (r *ticketRepo) CountUnsynced(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Ticket{}).
		Where("origin = ? AND synced = ?", models.OriginOffline, false).
		Count(&count).Error
	return count, err
}
