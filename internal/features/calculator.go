package features

import (
	"math"
	"time"

	"github.com/poorman/synapsestrike-auto/internal/config"
	"github.com/poorman/synapsestrike-auto/internal/model"
)

// Calculator computes the Feature Vector from aligned candle arrays plus
// a reference series for relative strength. Pure functions: no state,
// no I/O.
type Calculator struct {
	cfg config.ScannerConfig
}

func NewCalculator(cfg config.ScannerConfig) *Calculator {
	return &Calculator{cfg: cfg}
}

// RVOL: v[n-1] / mean(v[n-1-W .. n-2]). Neutral (1.0) if insufficient
// data, non-positive mean, or a non-finite result.
func RVOL(volumes []float64, window int) float64 {
	n := len(volumes)
	if n < window+1 {
		return 1.0
	}
	sum := 0.0
	for _, v := range volumes[n-1-window : n-1] {
		sum += v
	}
	mean := sum / float64(window)
	if mean <= 0 {
		return 1.0
	}
	r := volumes[n-1] / mean
	if math.IsNaN(r) || math.IsInf(r, 0) || r < 0 {
		return 1.0
	}
	return r
}

// ReturnOverK: (p[n-1] - p[n-1-K]) / p[n-1-K]; 0 if insufficient data or
// base <= 0.
func ReturnOverK(prices []float64, k int) float64 {
	n := len(prices)
	if n < k+1 {
		return 0
	}
	base := prices[n-1-k]
	if base <= 0 {
		return 0
	}
	return (prices[n-1] - base) / base
}

// RelativeStrength: RS = return_K(symbol) - return_K(reference), where
// K = floor(windowMinutes / candleMinutes).
func RelativeStrength(symbolPrices, referencePrices []float64, windowMinutes, candleMinutes int) float64 {
	if candleMinutes <= 0 {
		return 0
	}
	k := windowMinutes / candleMinutes
	return ReturnOverK(symbolPrices, k) - ReturnOverK(referencePrices, k)
}

// SessionVWAP: sum(close*volume)/sum(volume) over candles since the
// start of the trading day. Falls back to last price when total
// volume is zero.
func SessionVWAP(candles []model.Candle, dayStart time.Time) float64 {
	var pv, v float64
	for _, c := range candles {
		if c.OpenTime.Before(dayStart) {
			continue
		}
		cl, _ := c.Close.Float64()
		vol, _ := c.Volume.Float64()
		pv += cl * vol
		v += vol
	}
	if v <= 0 {
		if len(candles) == 0 {
			return 0
		}
		last, _ := candles[len(candles)-1].Close.Float64()
		return last
	}
	return pv / v
}

// EMA: standard exponential moving average, smoothing 2/(period+1),
// seeded by the first sample.
func EMA(prices []float64, period int) float64 {
	if len(prices) == 0 {
		return 0
	}
	alpha := 2.0 / (float64(period) + 1.0)
	ema := prices[0]
	for _, p := range prices[1:] {
		ema = alpha*p + (1-alpha)*ema
	}
	return ema
}

// ATR14: true range per candle, mean of the last 14. Fewer than 15
// candles uses whatever exists; a single candle returns H-L.
func ATR14(candles []model.Candle) float64 {
	return ATR(candles, 14)
}

// ATR computes the N-period simple-mean average true range (not
// Wilder's smoothing).
func ATR(candles []model.Candle, period int) float64 {
	if len(candles) == 0 {
		return 0
	}
	if len(candles) == 1 {
		h, _ := candles[0].High.Float64()
		l, _ := candles[0].Low.Float64()
		return h - l
	}

	trueRanges := make([]float64, len(candles))
	for i, c := range candles {
		h, _ := c.High.Float64()
		l, _ := c.Low.Float64()
		if i == 0 {
			trueRanges[i] = h - l
			continue
		}
		prevClose, _ := candles[i-1].Close.Float64()
		tr := math.Max(h-l, math.Max(math.Abs(h-prevClose), math.Abs(l-prevClose)))
		trueRanges[i] = tr
	}

	n := len(trueRanges)
	window := period
	if window > n {
		window = n
	}
	sum := 0.0
	for _, tr := range trueRanges[n-window:] {
		sum += tr
	}
	return sum / float64(window)
}

// Trend: 1 iff ema20 > ema50 AND lastClose > svwap, else 0.
func Trend(ema20, ema50, lastClose, svwap float64) int {
	if ema20 > ema50 && lastClose > svwap {
		return 1
	}
	return 0
}

// NormalizeRVOL: clip((rvol-1)/1, 0, 3).
func NormalizeRVOL(rvol float64) float64 {
	v := (rvol - 1) / 1
	if v < 0 {
		return 0
	}
	if v > 3 {
		return 3
	}
	return v
}

// DepthScore: min(log(1+total)/10, 1) over summed bid+ask sizes. A
// missing snapshot scores 0.
func DepthScore(ob *model.OrderbookSnapshot, levels int) float64 {
	if ob == nil {
		return 0
	}
	total := 0.0
	for i, lvl := range ob.Bids {
		if i >= levels {
			break
		}
		s, _ := lvl.Size.Float64()
		total += s
	}
	for i, lvl := range ob.Asks {
		if i >= levels {
			break
		}
		s, _ := lvl.Size.Float64()
		total += s
	}
	score := math.Log(1+total) / 10
	if score > 1 {
		return 1
	}
	if score < 0 {
		return 0
	}
	return score
}

// SpreadBP: (bestAsk-bestBid)/mid*10000. Missing or degenerate book
// returns +Inf, a hard-filter failure.
func SpreadBP(ob *model.OrderbookSnapshot) float64 {
	if ob == nil || !ob.Valid() {
		return math.Inf(1)
	}
	bid, _ := ob.Bids[0].Price.Float64()
	ask, _ := ob.Asks[0].Price.Float64()
	mid := (bid + ask) / 2
	if mid <= 0 {
		return math.Inf(1)
	}
	return (ask - bid) / mid * 10000
}

// Score: weighted composite. Weights must sum to 1 (enforced at config
// validation).
func Score(weights config.ScoreWeightsConfig, rs, rvolZ float64, trend int, depth float64) float64 {
	return weights.RS*rs + weights.RVOL*rvolZ + weights.Trend*float64(trend) + weights.Depth*depth
}

// Input bundles everything CalculateAll needs for one market at one
// scan tick.
type Input struct {
	Market         string
	Candles        []model.Candle
	ReferenceClose []float64
	Orderbook      *model.OrderbookSnapshot
	Now            time.Time
}

// CalculateAll orchestrates every pure function above into one
// FeatureVector. Returns false if there isn't enough candle data to
// compute a meaningful vector.
func (c *Calculator) CalculateAll(in Input) (model.FeatureVector, bool) {
	if len(in.Candles) == 0 {
		return model.FeatureVector{}, false
	}

	closes := make([]float64, len(in.Candles))
	volumes := make([]float64, len(in.Candles))
	for i, cd := range in.Candles {
		closes[i], _ = cd.Close.Float64()
		volumes[i], _ = cd.Volume.Float64()
	}

	dayStart := time.Date(in.Now.Year(), in.Now.Month(), in.Now.Day(), 0, 0, 0, 0, in.Now.Location())

	rvol := RVOL(volumes, c.cfg.RVOLWindow)
	rs := RelativeStrength(closes, in.ReferenceClose, c.cfg.RSWindowMinutes, c.cfg.CandleUnitMin)
	svwap := SessionVWAP(in.Candles, dayStart)
	ema20 := EMA(closes, c.cfg.Trend.EMAFast)
	ema50 := EMA(closes, c.cfg.Trend.EMASlow)
	atr14 := ATR14(in.Candles)
	lastClose := closes[len(closes)-1]
	trend := Trend(ema20, ema50, lastClose, svwap)
	rvolZ := NormalizeRVOL(rvol)
	depth := DepthScore(in.Orderbook, c.cfg.DepthLevels)
	spread := SpreadBP(in.Orderbook)
	score := Score(c.cfg.ScoreWeights, rs, rvolZ, trend, depth)

	return model.FeatureVector{
		Market: in.Market, Timestamp: in.Now,
		RVOL: rvol, RelStrength: rs, SVWAP: svwap,
		ATR14: atr14, EMA20: ema20, EMA50: ema50, Trend: trend,
		RVOLZ: rvolZ, DepthScore: depth, SpreadBP: spread, FinalScore: score,
		Price: lastClose, Volume: volumes[len(volumes)-1], SampleCount: len(in.Candles),
	}, true
}

// Validate applies the scanner's hard filters: rvol >= threshold AND
// spread_bp <= max AND trend == 1 AND score >= min_score.
func (c *Calculator) Validate(f model.FeatureVector) (bool, []string) {
	var failed []string
	if f.RVOL < c.cfg.RVOLThreshold {
		failed = append(failed, "rvol_below_threshold")
	}
	if f.SpreadBP > c.cfg.SpreadBPMax {
		failed = append(failed, "spread_too_wide")
	}
	if f.Trend != 1 {
		failed = append(failed, "trend_not_up")
	}
	if f.FinalScore < c.cfg.MinScore {
		failed = append(failed, "score_below_minimum")
	}
	return len(failed) == 0, failed
}
