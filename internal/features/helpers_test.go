package features

import (
	"testing"
	"time"

	"github.com/poorman/synapsestrike-auto/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func oneCandle(t *testing.T, high, low, open, close float64) []model.Candle {
	t.Helper()
	return []model.Candle{{
		Market:   "KRW-BTC",
		OpenTime: time.Now(),
		UnitMin:  5,
		Open:     decimal.NewFromFloat(open),
		High:     decimal.NewFromFloat(high),
		Low:      decimal.NewFromFloat(low),
		Close:    decimal.NewFromFloat(close),
		Volume:   decimal.NewFromFloat(10),
	}}
}

func TestSessionVWAP_Scenario(t *testing.T) {
	now := time.Now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	prices := []float64{100, 105, 110}
	volumes := []float64{10, 20, 30}

	candles := make([]model.Candle, 0, 3)
	for i, p := range prices {
		candles = append(candles, model.Candle{
			Market: "KRW-BTC", OpenTime: dayStart.Add(time.Duration(i) * 5 * time.Minute), UnitMin: 5,
			Open: decimal.NewFromFloat(p), High: decimal.NewFromFloat(p), Low: decimal.NewFromFloat(p),
			Close: decimal.NewFromFloat(p), Volume: decimal.NewFromFloat(volumes[i]),
		})
	}

	vwap := SessionVWAP(candles, dayStart)
	assert.InDelta(t, 106.6667, vwap, 0.001)
}

// TestSessionVWAP_UsesClosePrice catches a regression to typical price
// ((high+low+close)/3): with wide high/low bands that differ from close,
// only a close-price-weighted VWAP lands on this expected value.
func TestSessionVWAP_UsesClosePrice(t *testing.T) {
	now := time.Now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	candles := []model.Candle{
		{
			Market: "KRW-BTC", OpenTime: dayStart, UnitMin: 5,
			Open: decimal.NewFromFloat(100), High: decimal.NewFromFloat(140), Low: decimal.NewFromFloat(90),
			Close: decimal.NewFromFloat(100), Volume: decimal.NewFromFloat(10),
		},
		{
			Market: "KRW-BTC", OpenTime: dayStart.Add(5 * time.Minute), UnitMin: 5,
			Open: decimal.NewFromFloat(110), High: decimal.NewFromFloat(150), Low: decimal.NewFromFloat(100),
			Close: decimal.NewFromFloat(110), Volume: decimal.NewFromFloat(20),
		},
	}

	vwap := SessionVWAP(candles, dayStart)
	assert.InDelta(t, 106.6667, vwap, 0.001)
}
