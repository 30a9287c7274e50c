package ticket

import (
	"math"
	"time"

	"github.com/wfunc/parking-gate/internal/logger"
	"github.com/wfunc/parking-gate/internal/models"
	"go.uber.org/zap"
)

// 车型费率系数（以轿车为基准1.0）
var vehicleMultipliers = map[models.VehicleType]float64{
	models.VehicleMotorcycle: 0.5,
	models.VehicleCar:        1.0,
	models.VehicleTruck:      2.0,
}

// FeeCalculator 停车费计算器
// 纯函数式：不读时钟、不做IO，时长由调用方给定。
type FeeCalculator struct {
	baseRate int64
	logger   *zap.Logger
}

// NewFeeCalculator 创建费用计算器，baseRate为轿车每小时费率
func NewFeeCalculator(baseRate int64) *FeeCalculator {
	return &FeeCalculator{
		baseRate: baseRate,
		logger:   logger.GetModuleLogger("fee"),
	}
}

// Calculate 计算停车费
// 不足一小时按一小时计；零时长或负时长按一小时计。
// 未知车型按轿车费率计并记录告警。
func (f *FeeCalculator) Calculate(vehicle models.VehicleType, duration time.Duration) models.FeeQuote {
	multiplier, ok := vehicleMultipliers[vehicle]
	if !ok {
		f.logger.Warn("未知车型，按轿车费率计费",
			zap.String("vehicle", string(vehicle)))
		vehicle = models.VehicleCar
		multiplier = vehicleMultipliers[models.VehicleCar]
	}

	hours := int64(math.Ceil(duration.Hours()))
	if hours < 1 {
		hours = 1
	}

	amount := int64(math.Round(float64(hours*f.baseRate) * multiplier))

	return models.FeeQuote{
		VehicleType:   vehicle,
		DurationHours: duration.Hours(),
		BilledHours:   hours,
		Amount:        amount,
	}
}

// QuoteSince 根据入场时间计算到now为止的停车费
func (f *FeeCalculator) QuoteSince(vehicle models.VehicleType, entry, now time.Time) models.FeeQuote {
	return f.Calculate(vehicle, now.Sub(entry))
}
