package signals

import (
	"time"

	"github.com/poorman/synapsestrike-auto/internal/config"
	"github.com/poorman/synapsestrike-auto/internal/model"
	"github.com/poorman/synapsestrike-auto/internal/timeutil"
)

// ORB implements the Opening Range Breakout strategy: active
// 10:00-13:00, entries trigger on a breakout of the opening box
// (default 09:00-10:00) confirmed by volume.
type ORB struct {
	cfg          config.ORBConfig
	boxWindow    timeutil.Window
	activeWindow timeutil.Window
}

func NewORB(cfg config.ORBConfig) (*ORB, error) {
	box, err := timeutil.ParseWindow(cfg.BoxWindow)
	if err != nil {
		return nil, err
	}
	active, err := timeutil.ParseWindow(cfg.ActiveWindow)
	if err != nil {
		return nil, err
	}
	return &ORB{cfg: cfg, boxWindow: box, activeWindow: active}, nil
}

func (o *ORB) Name() string { return "orb" }

func (o *ORB) ActiveNow(now time.Time) bool {
	return o.cfg.Use && o.activeWindow.Contains(now)
}

type orbBox struct {
	high, low, rangeSize float64
}

func (o *ORB) calculateBox(in GenerateInput) (orbBox, bool) {
	var inBox []model.Candle
	for _, c := range in.Candles {
		if o.boxWindow.Contains(c.OpenTime) {
			inBox = append(inBox, c)
		}
	}
	if len(inBox) == 0 {
		return orbBox{}, false
	}
	h := highs(inBox)
	l := lows(inBox)
	high := maxOf(h)
	low := minOf(l)
	return orbBox{high: high, low: low, rangeSize: high - low}, true
}

func (o *ORB) Generate(in GenerateInput) (*model.Signal, Abstain, error) {
	box, ok := o.calculateBox(in)
	if !ok {
		return nil, Abstain{Reason: "no opening box candles"}, nil
	}

	vols := volumes(in.Candles)
	recent := lastN(vols, o.cfg.VolumeLookback)
	avgVol := meanOf(recent)
	volRatio := 1.0
	if avgVol > 0 {
		volRatio = in.CurrentVolume / avgVol
	}
	volumeConfirmed := volRatio >= o.cfg.VolumeSpikeMult

	atr := in.Features.ATR14
	longLevel := box.high + o.cfg.BreakoutATRMult*atr
	shortLevel := box.low - o.cfg.BreakoutATRMult*atr

	var kind model.SignalKind
	switch {
	case in.CurrentPrice >= longLevel && volumeConfirmed:
		kind = model.SignalORBLong
	case in.CurrentPrice <= shortLevel && volumeConfirmed:
		kind = model.SignalORBShort
	default:
		return nil, Abstain{Reason: "no breakout"}, nil
	}

	entry := in.CurrentPrice
	var stop, target float64
	if kind == model.SignalORBLong {
		stop = box.low - 0.5*atr
		target = entry + maxOf([]float64{box.rangeSize, 1.5 * atr})
	} else {
		stop = box.high + 0.5*atr
		target = entry - maxOf([]float64{box.rangeSize, 1.5 * atr})
	}

	risk := abs(entry - stop)
	reward := abs(target - entry)
	rr := 0.0
	if risk > 0 {
		rr = reward / risk
	}

	trendAligned := (kind == model.SignalORBLong && in.Features.Trend == 1) ||
		(kind == model.SignalORBShort && in.Features.Trend == 0)
	trendScore := 0.1
	if trendAligned {
		trendScore = 0.3
	}
	confidence := minOf([]float64{volRatio / 3, 0.4}) + minOf([]float64{box.rangeSize / (2 * atr), 0.3}) + trendScore

	sig := &model.Signal{
		Kind: kind, Market: in.Market, Strategy: o.Name(), Priority: model.PriorityHigh,
		EntryPrice: entry, StopLoss: stop, TakeProfit: target,
		Risk: risk, Reward: reward, RRRatio: rr, ConfidenceScore: confidence, Timestamp: in.Now,
		ORB: &model.ORBContext{BoxHigh: box.high, BoxLow: box.low, RangeSize: box.rangeSize, VolRatio: volRatio},
	}
	return sig, Abstain{}, nil
}

func (o *ORB) Validate(sig model.Signal) bool {
	if sig.ConfidenceScore < 0.6 || sig.RRRatio < 1.0 {
		return false
	}
	if sig.ORB == nil || sig.ORB.VolRatio < o.cfg.VolumeSpikeMult {
		return false
	}
	return true
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
