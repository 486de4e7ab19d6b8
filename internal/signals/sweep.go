package signals

import (
	"time"

	"github.com/poorman/synapsestrike-auto/internal/config"
	"github.com/poorman/synapsestrike-auto/internal/model"
	"github.com/poorman/synapsestrike-auto/internal/timeutil"
)

const swingBuffer = 5

type swingLevel struct {
	price    float64
	kind     string // "high" | "low"
	strength int
	at       time.Time
}

type sweepEvent struct {
	swing       swingLevel
	penetration float64
	detectedAt  time.Time
	recovered   bool
	recoveredAt time.Time
	volumeRatio float64
	ready       bool
}

// Sweep implements the Liquidity Sweep Reversal strategy. It is the
// ONLY strategy holding per-market transient state; all writes are
// serialized under the orchestrator's single tick (SPEC_FULL.md §4.4.3).
type Sweep struct {
	cfg     config.SweepReversalConfig
	windows []timeutil.Window

	active map[string][]sweepEvent
}

func NewSweep(cfg config.SweepReversalConfig) (*Sweep, error) {
	windows := make([]timeutil.Window, 0, len(cfg.ActiveWindows))
	for _, ws := range cfg.ActiveWindows {
		w, err := timeutil.ParseWindow(ws)
		if err != nil {
			return nil, err
		}
		windows = append(windows, w)
	}
	return &Sweep{cfg: cfg, windows: windows, active: make(map[string][]sweepEvent)}, nil
}

func (s *Sweep) Name() string { return "sweep_reversal" }

func (s *Sweep) ActiveNow(now time.Time) bool {
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

func (s *Sweep) identifySwingLevels(candles []model.Candle) []swingLevel {
	recent := candles
	if s.cfg.SwingLookback > 0 && len(recent) > s.cfg.SwingLookback {
		recent = recent[len(recent)-s.cfg.SwingLookback:]
	}
	n := len(recent)
	if n <= 2*swingBuffer {
		return nil
	}
	h := highs(recent)
	l := lows(recent)

	var levels []swingLevel
	for i := swingBuffer; i < n-swingBuffer; i++ {
		isHigh := true
		isLow := true
		strengthHigh, strengthLow := 0, 0
		for j := i - swingBuffer; j <= i+swingBuffer; j++ {
			if j == i {
				continue
			}
			if h[j] >= h[i] {
				isHigh = false
			} else {
				strengthHigh++
			}
			if l[j] <= l[i] {
				isLow = false
			} else {
				strengthLow++
			}
		}
		if isHigh {
			levels = append(levels, swingLevel{price: h[i], kind: "high", strength: strengthHigh, at: recent[i].OpenTime})
		}
		if isLow {
			levels = append(levels, swingLevel{price: l[i], kind: "low", strength: strengthLow, at: recent[i].OpenTime})
		}
	}

	if len(levels) == 0 {
		return nil
	}

	strengths := make([]float64, len(levels))
	for i, lv := range levels {
		strengths[i] = float64(lv.strength)
	}
	median := percentile50(strengths)

	var kept []swingLevel
	for _, lv := range levels {
		if float64(lv.strength) >= median {
			kept = append(kept, lv)
		}
	}
	if len(kept) > 10 {
		kept = kept[len(kept)-10:]
	}
	return kept
}

func percentile50(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j-1] > sorted[j]; j-- {
			sorted[j-1], sorted[j] = sorted[j], sorted[j-1]
		}
	}
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

func (s *Sweep) detectNewEvents(market string, in GenerateInput, levels []swingLevel, atr float64) {
	threshold := s.cfg.PenetrationATRMult * atr
	existing := s.active[market]

	for _, lv := range levels {
		var penetrated bool
		var penetration float64
		if lv.kind == "high" && in.CurrentPrice > lv.price+threshold {
			penetrated = true
			penetration = in.CurrentPrice - lv.price
		}
		if lv.kind == "low" && in.CurrentPrice < lv.price-threshold {
			penetrated = true
			penetration = lv.price - in.CurrentPrice
		}
		if !penetrated {
			continue
		}

		if s.hasRecentEvent(existing, lv.price, in.Now) {
			continue
		}

		existing = append(existing, sweepEvent{
			swing: lv, penetration: penetration, detectedAt: in.Now,
		})
	}
	s.active[market] = existing
}

func (s *Sweep) hasRecentEvent(events []sweepEvent, price float64, now time.Time) bool {
	for _, e := range events {
		if !e.recovered && abs(e.swing.price-price) < 1e-9 && now.Sub(e.detectedAt) < 30*time.Minute {
			return true
		}
	}
	return false
}

func (s *Sweep) updateEvents(market string, in GenerateInput) {
	events := s.active[market]
	recoveryLimit := time.Duration(s.cfg.RecoveryTimeMinutes) * time.Minute
	maxAge := time.Duration(s.cfg.MaxAgeHours) * time.Hour

	vols := volumes(in.Candles)
	recentVolMean := meanOf(lastN(vols, 10))

	kept := events[:0]
	for _, e := range events {
		age := in.Now.Sub(e.detectedAt)
		if age > maxAge {
			continue
		}
		if !e.recovered {
			if age > recoveryLimit {
				continue
			}
			recovered := (e.swing.kind == "high" && in.CurrentPrice < e.swing.price) ||
				(e.swing.kind == "low" && in.CurrentPrice > e.swing.price)
			if recovered {
				e.recovered = true
				e.recoveredAt = in.Now
				ratio := 1.0
				if recentVolMean > 0 {
					ratio = in.CurrentVolume / recentVolMean
				}
				e.volumeRatio = ratio
				e.ready = ratio >= s.cfg.VolumeSpikeMult
			}
		}
		kept = append(kept, e)
	}
	s.active[market] = kept
}

func (s *Sweep) Generate(in GenerateInput) (*model.Signal, Abstain, error) {
	atr := in.Features.ATR14
	levels := s.identifySwingLevels(in.Candles)

	s.detectNewEvents(in.Market, in, levels, atr)
	s.updateEvents(in.Market, in)

	events := s.active[in.Market]
	var best *sweepEvent
	for i := range events {
		if !events[i].ready {
			continue
		}
		if best == nil || events[i].volumeRatio > best.volumeRatio {
			best = &events[i]
		}
	}
	if best == nil {
		return nil, Abstain{Reason: "no ready sweep event"}, nil
	}

	var kind model.SignalKind
	if best.swing.kind == "low" {
		kind = model.SignalSweepLong
	} else {
		kind = model.SignalSweepShort
	}

	entry := in.CurrentPrice
	var stop, target float64
	targetDist := maxOf([]float64{2 * atr, best.penetration * 2})
	if kind == model.SignalSweepLong {
		stop = best.swing.price - 0.5*atr
		target = entry + targetDist
	} else {
		stop = best.swing.price + 0.5*atr
		target = entry - targetDist
	}

	risk := abs(entry - stop)
	reward := abs(target - entry)
	rr := 0.0
	if risk > 0 {
		rr = reward / risk
	}

	timeToRecovery := best.recoveredAt.Sub(best.detectedAt)
	recoveryLimit := time.Duration(s.cfg.RecoveryTimeMinutes) * time.Minute
	recoveryRatio := 1.0
	if recoveryLimit > 0 {
		recoveryRatio = minOf([]float64{float64(timeToRecovery) / float64(recoveryLimit), 1})
	}
	recoveryScore := 0.3 * (1 - recoveryRatio)
	volumeScore := minOf([]float64{best.volumeRatio / 4, 0.3})
	strengthScore := minOf([]float64{float64(best.swing.strength) / 10, 0.2})
	penetrationRatio := 0.0
	if atr > 0 {
		penetrationRatio = minOf([]float64{(best.penetration / atr) / 0.1, 1})
	}
	penetrationScore := 0.2 * (1 - penetrationRatio)

	confidence := recoveryScore + volumeScore + strengthScore + penetrationScore

	sig := &model.Signal{
		Kind: kind, Market: in.Market, Strategy: s.Name(), Priority: model.PriorityLow,
		EntryPrice: entry, StopLoss: stop, TakeProfit: target,
		Risk: risk, Reward: reward, RRRatio: rr, ConfidenceScore: confidence, Timestamp: in.Now,
		Sweep: &model.SweepContext{
			SwingPrice: best.swing.price, PenetrationDist: best.penetration,
			VolumeRatio: best.volumeRatio, SwingStrength: best.swing.strength,
			TimeToRecovery: timeToRecovery,
		},
	}

	// consumed: drop this event so it is not emitted again next tick
	s.removeEvent(in.Market, best)

	return sig, Abstain{}, nil
}

func (s *Sweep) removeEvent(market string, target *sweepEvent) {
	events := s.active[market]
	for i := range events {
		if &events[i] == target {
			s.active[market] = append(events[:i], events[i+1:]...)
			return
		}
	}
}

func (s *Sweep) Validate(sig model.Signal) bool {
	if sig.ConfidenceScore < 0.7 || sig.RRRatio < 1.5 {
		return false
	}
	if sig.Sweep == nil {
		return false
	}
	recoveryLimit := time.Duration(s.cfg.RecoveryTimeMinutes) * time.Minute
	return sig.Sweep.TimeToRecovery <= time.Duration(0.8*float64(recoveryLimit))
}

// CleanupOldSweeps drops events older than max_age_hours for every
// tracked market; the orchestrator runs it at most once per hour.
func (s *Sweep) CleanupOldSweeps(now time.Time) {
	maxAge := time.Duration(s.cfg.MaxAgeHours) * time.Hour
	for market, events := range s.active {
		kept := events[:0]
		for _, e := range events {
			if now.Sub(e.detectedAt) <= maxAge {
				kept = append(kept, e)
			}
		}
		s.active[market] = kept
	}
}
