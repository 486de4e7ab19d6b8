package signals

import (
	"time"

	"github.com/poorman/synapsestrike-auto/internal/config"
	"github.com/poorman/synapsestrike-auto/internal/model"
	"github.com/poorman/synapsestrike-auto/internal/timeutil"
)

const svwapPullbackLookback = 20

// SVWAPPullback implements the session-VWAP pullback strategy: entries
// trigger when price pulls back into the sVWAP zone after a directional
// move, confirmed by EMA alignment and volume.
type SVWAPPullback struct {
	cfg     config.SVWAPPullbackConfig
	windows []timeutil.Window
}

func NewSVWAPPullback(cfg config.SVWAPPullbackConfig) (*SVWAPPullback, error) {
	windows := make([]timeutil.Window, 0, len(cfg.ActiveWindows))
	for _, ws := range cfg.ActiveWindows {
		w, err := timeutil.ParseWindow(ws)
		if err != nil {
			return nil, err
		}
		windows = append(windows, w)
	}
	return &SVWAPPullback{cfg: cfg, windows: windows}, nil
}

func (s *SVWAPPullback) Name() string { return "svwap_pullback" }

func (s *SVWAPPullback) ActiveNow(now time.Time) bool {
	if !s.cfg.Use {
		return false
	}
	for _, w := range s.windows {
		if w.Contains(now) {
			return true
		}
	}
	return false
}

func (s *SVWAPPullback) Generate(in GenerateInput) (*model.Signal, Abstain, error) {
	atr := in.Features.ATR14
	svwap := in.Features.SVWAP
	halfWidth := s.cfg.ZoneATRMult * atr
	upper := svwap + halfWidth
	lower := svwap - halfWidth
	inZone := in.CurrentPrice >= lower && in.CurrentPrice <= upper
	if !inZone {
		return nil, Abstain{Reason: "price outside sVWAP zone"}, nil
	}

	cl := closes(in.Candles)
	window := lastN(cl, svwapPullbackLookback)
	if len(window) < 2 {
		return nil, Abstain{Reason: "insufficient candles for pullback window"}, nil
	}
	recentHigh := maxOf(window)
	recentLow := minOf(window)

	highPullbackPct := 0.0
	if recentHigh > 0 {
		highPullbackPct = (recentHigh - in.CurrentPrice) / recentHigh * 100
	}
	lowPullbackPct := 0.0
	if recentLow > 0 {
		lowPullbackPct = (in.CurrentPrice - recentLow) / recentLow * 100
	}

	pullbackFrom := "low"
	pullbackPct := lowPullbackPct
	if highPullbackPct > lowPullbackPct {
		pullbackFrom = "high"
		pullbackPct = highPullbackPct
	}

	validPullback := pullbackPct >= s.cfg.MinPullbackPct && pullbackPct <= s.cfg.MaxPullbackPct
	if !validPullback {
		return nil, Abstain{Reason: "pullback outside valid range"}, nil
	}

	vwapPosition := "at_vwap"
	switch {
	case in.CurrentPrice < lower:
		vwapPosition = "below_vwap"
	case in.CurrentPrice > upper:
		vwapPosition = "above_vwap"
	}

	var kind model.SignalKind
	switch {
	case pullbackFrom == "low" && (vwapPosition == "below_vwap" || vwapPosition == "at_vwap"):
		kind = model.SignalSVWAPLong
	case pullbackFrom == "high" && (vwapPosition == "above_vwap" || vwapPosition == "at_vwap"):
		kind = model.SignalSVWAPShort
	default:
		return nil, Abstain{Reason: "direction rules not satisfied"}, nil
	}

	emaAligned := true
	if s.cfg.RequireEMAAlignment {
		if kind == model.SignalSVWAPLong {
			emaAligned = in.Features.EMA20 > in.Features.EMA50
		} else {
			emaAligned = in.Features.EMA20 < in.Features.EMA50
		}
		if !emaAligned {
			return nil, Abstain{Reason: "ema alignment required"}, nil
		}
	}

	volRatio := 1.0
	vols := volumes(in.Candles)
	recentVol := meanOf(lastN(vols, svwapPullbackLookback))
	if recentVol > 0 {
		volRatio = in.CurrentVolume / recentVol
	}
	volumeConfirmed := volRatio >= 1.2

	entry := in.CurrentPrice
	var stop, target float64
	if kind == model.SignalSVWAPLong {
		stop = recentLow - 0.5*atr
		target = entry + maxOf([]float64{(recentHigh - entry) * 1.2, 2 * atr})
	} else {
		stop = recentHigh + 0.5*atr
		target = entry - maxOf([]float64{(entry - recentLow) * 1.2, 2 * atr})
	}

	risk := abs(entry - stop)
	reward := abs(target - entry)
	rr := 0.0
	if risk > 0 {
		rr = reward / risk
	}

	pullbackScore := clip(0.3*(1-abs(pullbackPct-1.0)/1.5), 0.1, 0.3)
	emaScore := 0.1
	if emaAligned {
		emaScore = 0.3
	}
	volScore := 0.05
	if volumeConfirmed {
		volScore = 0.2
	}
	zoneDistance := 0.0
	if !inZone && halfWidth > 0 {
		zoneDistance = minOf([]float64{abs(in.CurrentPrice-svwap) / halfWidth, 1})
	}
	zoneScore := 0.2 * (1 - zoneDistance)

	confidence := pullbackScore + emaScore + volScore + zoneScore

	sig := &model.Signal{
		Kind: kind, Market: in.Market, Strategy: s.Name(), Priority: model.PriorityMedium,
		EntryPrice: entry, StopLoss: stop, TakeProfit: target,
		Risk: risk, Reward: reward, RRRatio: rr, ConfidenceScore: confidence, Timestamp: in.Now,
		SVWAP: &model.SVWAPContext{
			PullbackPct: pullbackPct, PullbackFrom: pullbackFrom,
			VWAPPosition: vwapPosition, EMAAligned: emaAligned,
		},
	}
	return sig, Abstain{}, nil
}

func (s *SVWAPPullback) Validate(sig model.Signal) bool {
	if sig.ConfidenceScore < 0.5 || sig.RRRatio < 1.0 {
		return false
	}
	if sig.SVWAP == nil {
		return false
	}
	if sig.SVWAP.PullbackPct < s.cfg.MinPullbackPct || sig.SVWAP.PullbackPct > s.cfg.MaxPullbackPct {
		return false
	}
	if s.cfg.RequireEMAAlignment && !sig.SVWAP.EMAAligned {
		return false
	}
	return true
}

func clip(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
