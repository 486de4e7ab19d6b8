package features

import (
	"testing"
	"time"

	"github.com/poorman/synapsestrike-auto/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func mkCandle(market string, openTime time.Time, price float64) model.Candle {
	return model.Candle{
		Market: market, OpenTime: openTime, UnitMin: 5,
		Open: decimal.NewFromFloat(price), High: decimal.NewFromFloat(price + 1),
		Low: decimal.NewFromFloat(price - 1), Close: decimal.NewFromFloat(price),
		Volume: decimal.NewFromFloat(10),
	}
}

func TestCandleProcessor_ReordersOutOfOrderBatch(t *testing.T) {
	base := time.Now()
	raw := []model.Candle{
		mkCandle("KRW-BTC", base.Add(10*time.Minute), 101),
		mkCandle("KRW-BTC", base, 100),
		mkCandle("KRW-BTC", base.Add(5*time.Minute), 100.5),
	}

	p := NewCandleProcessor(5)
	processed, result := p.Process("KRW-BTC", raw)

	assert.True(t, sortedAscending(processed))
	assert.Equal(t, 3, result.Total)
	assert.Equal(t, 0, result.GapsDetected)
}

func TestCandleProcessor_InvalidCandleLowersQuality(t *testing.T) {
	base := time.Now()
	bad := mkCandle("KRW-BTC", base, 100)
	bad.High = decimal.NewFromFloat(50) // high < low, violates invariant

	raw := []model.Candle{bad, mkCandle("KRW-BTC", base.Add(5*time.Minute), 100)}

	p := NewCandleProcessor(5)
	_, result := p.Process("KRW-BTC", raw)

	assert.Equal(t, 1, result.Errors)
	assert.False(t, result.IsValid)
}

func sortedAscending(candles []model.Candle) bool {
	for i := 1; i < len(candles); i++ {
		if candles[i].OpenTime.Before(candles[i-1].OpenTime) {
			return false
		}
	}
	return true
}
