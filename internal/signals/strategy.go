// Package signals implements the three entry strategies (ORB, sVWAP
// Pullback, Liquidity Sweep Reversal) and the Signal Manager that
// aggregates, prioritizes, and resolves conflicts between them.
package signals

import (
	"time"

	"github.com/poorman/synapsestrike-auto/internal/model"
)

// Abstain is returned by a strategy when it declines to emit a signal
// for a reason worth recording, distinguishing "no setup" from an
// error (SPEC_FULL.md's "explicit result sums" redesign note).
type Abstain struct {
	Reason string
}

// GenerateInput bundles everything a strategy needs to evaluate one
// market on one tick. All strategies see the same snapshot.
type GenerateInput struct {
	Market        string
	Candles       []model.Candle
	CurrentPrice  float64
	CurrentVolume float64
	Features      model.FeatureVector
	Now           time.Time
}

// Strategy is the shared contract every entry strategy implements.
type Strategy interface {
	Name() string
	ActiveNow(now time.Time) bool
	Generate(in GenerateInput) (*model.Signal, Abstain, error)
	Validate(sig model.Signal) bool
}

func lastN(values []float64, n int) []float64 {
	if n > len(values) {
		n = len(values)
	}
	return values[len(values)-n:]
}

func meanOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func closes(candles []model.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i], _ = c.Close.Float64()
	}
	return out
}

func volumes(candles []model.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i], _ = c.Volume.Float64()
	}
	return out
}

func highs(candles []model.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i], _ = c.High.Float64()
	}
	return out
}

func lows(candles []model.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i], _ = c.Low.Float64()
	}
	return out
}

func maxOf(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

func minOf(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}
