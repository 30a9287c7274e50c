package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/wfunc/parking-gate/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// TestDB 创建内存测试数据库
func TestDB(t *testing.T) *gorm.DB {
	t.Helper()

	// 使用内存数据库进行测试（更快，不需要文件系统）
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// 自动迁移所有模型
	err = db.AutoMigrate(
		&models.Ticket{},
		&models.Operator{},
	)
	require.NoError(t, err)

	return db
}

// CreateTestTicket 创建测试票据
func CreateTestTicket(ticketID, plate string, origin models.TicketOrigin) *models.Ticket {
	return &models.Ticket{
		TicketID:    ticketID,
		Plate:       plate,
		VehicleType: models.VehicleMotorcycle,
		IssuedAt:    time.Now(),
		Origin:      origin,
		GateID:      "gate-1",
	}
}
