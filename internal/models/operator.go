package models

import (
	"time"

	"gorm.io/gorm"
)

// Operator 操作员账号
// 仅用于本机操作员API的认证，与服务端账号体系无关
type Operator struct {
	ID        uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	Username    string     `gorm:"uniqueIndex;size:50;not null" json:"username"`
	Password    string     `gorm:"size:255;not null" json:"-"`
	Role        string     `gorm:"size:20;default:'operator'" json:"role"` // admin, operator
	LastLoginAt *time.Time `json:"last_login_at,omitempty"`
}

// TableName 指定表名
func (Operator) TableName() string {
	return "operators"
}
