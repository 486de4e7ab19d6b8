package features

import (
	"math"
	"testing"

	"github.com/poorman/synapsestrike-auto/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestRVOL_ExactScenario(t *testing.T) {
	volumes := make([]float64, 0, 21)
	for i := 0; i < 20; i++ {
		volumes = append(volumes, 100)
	}
	volumes = append(volumes, 200)

	assert.Equal(t, 2.0, RVOL(volumes, 20))
}

func TestRVOL_InsufficientData(t *testing.T) {
	assert.Equal(t, 1.0, RVOL([]float64{100, 200}, 20))
}

func TestRVOL_ZeroMean(t *testing.T) {
	volumes := make([]float64, 21)
	volumes[20] = 500
	assert.Equal(t, 1.0, RVOL(volumes, 20))
}

func TestReturnOverK(t *testing.T) {
	prices := []float64{100, 105, 110}
	r := ReturnOverK(prices, 2)
	assert.InDelta(t, 0.10, r, 0.001)
}

func TestRelativeStrength_Scenario(t *testing.T) {
	symbol := []float64{100, 105, 110}
	reference := []float64{1000, 1025, 1050}
	rs := RelativeStrength(symbol, reference, 10, 5)
	assert.InDelta(t, 0.05, rs, 0.01)
}

func TestNormalizeRVOL_Clip(t *testing.T) {
	assert.Equal(t, 0.0, NormalizeRVOL(0.5))
	assert.Equal(t, 3.0, NormalizeRVOL(10))
	assert.InDelta(t, 1.0, NormalizeRVOL(2.0), 1e-9)
}

func TestScore_Scenario(t *testing.T) {
	weights := config.ScoreWeightsConfig{RS: 0.4, RVOL: 0.3, Trend: 0.2, Depth: 0.1}
	score := Score(weights, 0.02, 2.0, 1, 0.5)
	assert.InDelta(t, 0.858, score, 0.0005)
}

func TestSpreadBP_MissingBookIsInfinite(t *testing.T) {
	assert.True(t, math.IsInf(SpreadBP(nil), 1))
}

func TestDepthScore_MissingBookIsZero(t *testing.T) {
	assert.Equal(t, 0.0, DepthScore(nil, 5))
}

func TestATR14_SingleCandleIsHighMinusLow(t *testing.T) {
	candles := oneCandle(t, 110, 95, 100, 105)
	atr := ATR14(candles)
	assert.InDelta(t, 15, atr, 1e-9)
}

func TestTrend(t *testing.T) {
	assert.Equal(t, 1, Trend(110, 100, 120, 105))
	assert.Equal(t, 0, Trend(90, 100, 120, 105))
	assert.Equal(t, 0, Trend(110, 100, 90, 105))
}
