package ticket

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/wfunc/parking-gate/internal/models"
)

func TestFeeRoundsUpToFullHour(t *testing.T) {
	f := NewFeeCalculator(5000)

	tests := []struct {
		name     string
		duration time.Duration
		want     int64
		billed   int64
	}{
		{"零时长按一小时", 0, 5000, 1},
		{"一分钟按一小时", time.Minute, 5000, 1},
		{"整一小时", time.Hour, 5000, 1},
		{"超过一小时一秒", time.Hour + time.Second, 10000, 2},
		{"两个半小时", 2*time.Hour + 30*time.Minute, 15000, 3},
		{"过夜十小时", 10 * time.Hour, 50000, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			quote := f.Calculate(models.VehicleCar, tt.duration)
			assert.Equal(t, tt.want, quote.Amount)
			assert.Equal(t, tt.billed, quote.BilledHours)
		})
	}
}

func TestFeeVehicleMultipliers(t *testing.T) {
	f := NewFeeCalculator(5000)

	car := f.Calculate(models.VehicleCar, 3*time.Hour)
	moto := f.Calculate(models.VehicleMotorcycle, 3*time.Hour)
	truck := f.Calculate(models.VehicleTruck, 3*time.Hour)

	assert.Equal(t, int64(15000), car.Amount)
	assert.Equal(t, int64(7500), moto.Amount)
	assert.Equal(t, int64(30000), truck.Amount)

	// 摩托车恒为轿车的一半，卡车恒为两倍
	assert.Equal(t, car.Amount, moto.Amount*2)
	assert.Equal(t, car.Amount*2, truck.Amount)
}

func TestFeeUnknownVehicleFallsBackToCar(t *testing.T) {
	f := NewFeeCalculator(5000)

	quote := f.Calculate(models.VehicleType("becak"), 2*time.Hour)
	assert.Equal(t, models.VehicleCar, quote.VehicleType)
	assert.Equal(t, int64(10000), quote.Amount)
}

// 费用随时长单调不减
func TestFeeMonotonicity(t *testing.T) {
	f := NewFeeCalculator(5000)

	prev := int64(0)
	for minutes := 0; minutes <= 24*60; minutes += 17 {
		quote := f.Calculate(models.VehicleCar, time.Duration(minutes)*time.Minute)
		assert.GreaterOrEqual(t, quote.Amount, prev,
			"fee decreased at %d minutes", minutes)
		prev = quote.Amount
	}
}

func TestFeeNegativeDurationBillsOneHour(t *testing.T) {
	f := NewFeeCalculator(5000)

	quote := f.Calculate(models.VehicleCar, -time.Hour)
	assert.Equal(t, int64(5000), quote.Amount)
	assert.Equal(t, int64(1), quote.BilledHours)
}

func TestQuoteSince(t *testing.T) {
	f := NewFeeCalculator(5000)

	entry := time.Date(2024, 3, 1, 8, 0, 0, 0, time.Local)
	now := time.Date(2024, 3, 1, 10, 30, 0, 0, time.Local)

	quote := f.QuoteSince(models.VehicleMotorcycle, entry, now)
	assert.Equal(t, int64(3), quote.BilledHours)
	assert.Equal(t, int64(7500), quote.Amount)
}
