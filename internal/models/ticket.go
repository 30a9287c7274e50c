package models

import (
	"time"

	"gorm.io/gorm"
)

// VehicleType 车辆类型
type VehicleType string

const (
	VehicleCar        VehicleType = "car"
	VehicleMotorcycle VehicleType = "motorcycle"
	VehicleTruck      VehicleType = "truck"
)

// ParseVehicleType 解析车辆类型字符串，未知类型返回false
func ParseVehicleType(s string) (VehicleType, bool) {
	switch VehicleType(s) {
	case VehicleCar, VehicleMotorcycle, VehicleTruck:
		return VehicleType(s), true
	}
	return VehicleCar, false
}

// APIKind 返回远程签发接口使用的车辆类别
// 服务端只区分 Motor / Mobil，卡车按 Mobil 上报
func (v VehicleType) APIKind() string {
	if v == VehicleMotorcycle {
		return "Motor"
	}
	return "Mobil"
}

// TicketOrigin 票据来源
type TicketOrigin string

const (
	OriginServer  TicketOrigin = "server"
	OriginOffline TicketOrigin = "offline"
)

// Ticket 停车票据
// 票号全局唯一：服务端票号使用服务端命名空间，离线票号使用保留前缀
// 加单调计数器，互不冲突。票据本子系统永不删除。
type Ticket struct {
	ID        uint           `gorm:"primaryKey;autoIncrement" json:"-"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	TicketID    string       `gorm:"type:varchar(64);uniqueIndex;not null" json:"ticket_id"`
	Plate       string       `gorm:"type:varchar(16);index;not null" json:"plate"`
	VehicleType VehicleType  `gorm:"type:varchar(16);not null" json:"vehicle_type"`
	IssuedAt    time.Time    `gorm:"index;not null" json:"issued_at"`
	Origin      TicketOrigin `gorm:"type:varchar(16);index;not null" json:"origin"`
	Synced      bool         `gorm:"index;default:false" json:"synced"`
	GateID      string       `gorm:"type:varchar(32);index" json:"gate_id"`
	Printed     bool         `gorm:"default:false" json:"printed"`
}

// TableName 指定表名
func (Ticket) TableName() string {
	return "tickets"
}

// FeeQuote 费用报价（纯派生值，不持久化）
type FeeQuote struct {
	VehicleType   VehicleType `json:"vehicle_type"`
	DurationHours float64     `json:"duration_hours"`
	BilledHours   int64       `json:"billed_hours"`
	Amount        int64       `json:"amount"`
}

// OfflineQueueEntry 离线队列条目
// 票据同步成功前一直保留在队列文件中，永不静默丢弃
type OfflineQueueEntry struct {
	Ticket      Ticket    `json:"ticket"`
	RetryCount  int       `json:"retry_count"`
	LastAttempt time.Time `json:"last_attempt"`
	EnqueuedAt  time.Time `json:"enqueued_at"`
}
