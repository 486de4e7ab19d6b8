package model

import "time"

// SignalKind tags which strategy produced a Signal and in which direction.
type SignalKind string

const (
	SignalORBLong     SignalKind = "orb_long"
	SignalORBShort    SignalKind = "orb_short"
	SignalSVWAPLong   SignalKind = "svwap_long"
	SignalSVWAPShort  SignalKind = "svwap_short"
	SignalSweepLong   SignalKind = "sweep_long"
	SignalSweepShort  SignalKind = "sweep_short"
)

// Priority is a strategy's static conflict-resolution rank. Lower value
// wins (HIGH beats MEDIUM beats LOW).
type Priority int

const (
	PriorityHigh   Priority = 1
	PriorityMedium Priority = 2
	PriorityLow    Priority = 3
)

// ORBContext carries the ORB-specific fields that ride along a Signal of
// kind SignalORBLong/SignalORBShort.
type ORBContext struct {
	BoxHigh   float64 `json:"box_high"`
	BoxLow    float64 `json:"box_low"`
	RangeSize float64 `json:"range_size"`
	VolRatio  float64 `json:"vol_ratio"`
}

// SVWAPContext carries the sVWAP-pullback-specific fields.
type SVWAPContext struct {
	PullbackPct  float64 `json:"pullback_pct"`
	PullbackFrom string  `json:"pullback_from"` // "high" | "low"
	VWAPPosition string  `json:"vwap_position"` // "above_vwap" | "at_vwap" | "below_vwap"
	EMAAligned   bool    `json:"ema_aligned"`
}

// SweepContext carries the liquidity-sweep-specific fields.
type SweepContext struct {
	SwingPrice        float64       `json:"swing_price"`
	PenetrationDist   float64       `json:"penetration_distance"`
	VolumeRatio       float64       `json:"volume_ratio"`
	SwingStrength     int           `json:"swing_strength"`
	TimeToRecovery    time.Duration `json:"time_to_recovery"`
}

// Signal is the tagged variant emitted by a strategy: a common prefix the
// Signal Manager and Executor consume, plus per-variant context nested
// under exactly one of ORB/SVWAP/Sweep depending on Kind.
type Signal struct {
	Kind            SignalKind `json:"kind"`
	Market          string     `json:"market"`
	Strategy        string     `json:"strategy"`
	Priority        Priority   `json:"priority"`
	EntryPrice      float64    `json:"entry_price"`
	StopLoss        float64    `json:"stop_loss"`
	TakeProfit      float64    `json:"take_profit"`
	Risk            float64    `json:"risk"`
	Reward          float64    `json:"reward"`
	RRRatio         float64    `json:"rr_ratio"`
	ConfidenceScore float64    `json:"confidence_score"`
	Timestamp       time.Time  `json:"timestamp"`

	ORB   *ORBContext   `json:"orb,omitempty"`
	SVWAP *SVWAPContext `json:"svwap,omitempty"`
	Sweep *SweepContext `json:"sweep,omitempty"`
}

// Direction returns "long" or "short" based on Kind.
func (s Signal) Direction() string {
	switch s.Kind {
	case SignalORBLong, SignalSVWAPLong, SignalSweepLong:
		return "long"
	default:
		return "short"
	}
}

// IsLong reports whether the signal is a long-side entry.
func (s Signal) IsLong() bool { return s.Direction() == "long" }
