package repository

import (
	"context"
	"time"

	"github.com/wfunc/parking-gate/internal/models"
	"gorm.io/gorm"
)

// OperatorRepository 操作员仓储接口
type OperatorRepository interface {
	Create(ctx context.Context, operator *models.Operator) error
	FindByUsername(ctx context.Context, username string) (*models.Operator, error)
	UpdateLastLogin(ctx context.Context, id uint) error
}

// operatorRepo 操作员仓储实现
type operatorRepo struct {
	*BaseRepo
}

// NewOperatorRepository 创建操作员仓储
func NewOperatorRepository(db *gorm.DB) OperatorRepository {
	return &operatorRepo{BaseRepo: NewBaseRepo(db)}
}

// Create 创建操作员
func (r *operatorRepo) Create(ctx context.Context, operator *models.Operator) error {
	return r.db.WithContext(ctx).Create(operator).Error
}

// FindByUsername 根据用户名查找操作员
func (r *operatorRepo) FindByUsername(ctx context.Context, username string) (*models.Operator, error) {
	var operator models.Operator
	err := r.db.WithContext(ctx).
		Where("username = ?", username).
		First(&operator).Error
	if err != nil {
		return nil, err
	}
	return &operator, nil
}

// UpdateLastLogin 更新最后登录时间
func (r *operatorRepo) UpdateLastLogin(ctx context.Context, id uint) error {
	now := time.Now()
	return r.db.WithContext(ctx).
		Model(&models.Operator{}).
		Where("id = ?", id).
		Update("last_login_at", &now).Error
}
