// Package config holds the statically validated configuration record for
// the trading system. Every field is enumerated; invalid values fail at
// Load, never at first use (SPEC_FULL.md, "Dynamic-typed config objects
// with deep defaults").
package config

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

type ExchangeConfig struct {
	BaseURL             string  `yaml:"base_url"`
	WebsocketURL        string  `yaml:"websocket_url"`
	TimeoutSeconds      int     `yaml:"timeout_seconds"`
	MaxRetries          int     `yaml:"max_retries"`
	RetryBackoff        float64 `yaml:"retry_backoff"`
	MaxConcurrentFetch  int     `yaml:"max_concurrent_requests"`
}

type SymbolsConfig struct {
	Core                   []string `yaml:"core"`
	ExcludeWarning         bool     `yaml:"exclude_warning"`
	ExcludeNewlyListedDays int      `yaml:"exclude_newly_listed_days"`
	MinVolumeKRW           int64    `yaml:"min_volume_krw"`
	MaxMarketsToScan       int      `yaml:"max_markets_to_scan"`
	PriorityMarkets        []string `yaml:"priority_markets"`
}

type TrendConfig struct {
	UseVWAP bool `yaml:"use_vwap"`
	EMAFast int  `yaml:"ema_fast"`
	EMASlow int  `yaml:"ema_slow"`
}

type ScoreWeightsConfig struct {
	RS    float64 `yaml:"rs"`
	RVOL  float64 `yaml:"rvol"`
	Trend float64 `yaml:"trend"`
	Depth float64 `yaml:"depth"`
}

func (w ScoreWeightsConfig) sum() float64 { return w.RS + w.RVOL + w.Trend + w.Depth }

type ScannerConfig struct {
	CandleUnitMin      int                `yaml:"candle_unit"`
	CandleCount        int                `yaml:"candle_count"`
	RVOLThreshold      float64            `yaml:"rvol_threshold"`
	RVOLWindow         int                `yaml:"rvol_window"`
	SpreadBPMax        float64            `yaml:"spread_bp_max"`
	RSWindowMinutes    int                `yaml:"rs_window_minutes"`
	RSReferenceSymbol  string             `yaml:"rs_reference_symbol"`
	Trend              TrendConfig        `yaml:"trend"`
	DepthLevels        int                `yaml:"depth_levels"`
	ScoreWeights       ScoreWeightsConfig `yaml:"score_weights"`
	CandidateCount     int                `yaml:"candidate_count"`
	MinScore           float64            `yaml:"min_score"`
}

type ORBConfig struct {
	Use              bool    `yaml:"use"`
	BoxWindow        string  `yaml:"box_window"`
	BreakoutATRMult  float64 `yaml:"breakout_atr_mult"`
	VolumeSpikeMult  float64 `yaml:"volume_spike_mult"`
	VolumeLookback   int     `yaml:"volume_lookback"`
	ActiveWindow     string  `yaml:"active_window"`
}

type SVWAPPullbackConfig struct {
	Use                 bool    `yaml:"use"`
	ZoneATRMult         float64 `yaml:"zone_atr_mult"`
	RequireEMAAlignment bool    `yaml:"require_ema_alignment"`
	MinPullbackPct      float64 `yaml:"min_pullback_pct"`
	MaxPullbackPct      float64 `yaml:"max_pullback_pct"`
	ActiveWindows       []string `yaml:"active_windows"`
}

type SweepReversalConfig struct {
	Use                 bool    `yaml:"use"`
	SwingLookback       int     `yaml:"swing_lookback"`
	PenetrationATRMult  float64 `yaml:"penetration_atr_mult"`
	RecoveryTimeMinutes int     `yaml:"recovery_time_minutes"`
	VolumeSpikeMult     float64 `yaml:"volume_spike_mult"`
	MaxAgeHours         int     `yaml:"max_age_hours"`
	ActiveWindows       []string `yaml:"active_windows"`
}

type SignalsConfig struct {
	ORB           ORBConfig           `yaml:"orb"`
	SVWAPPullback SVWAPPullbackConfig `yaml:"svwap_pullback"`
	SweepReversal SweepReversalConfig `yaml:"sweep_reversal"`
}

type RiskConfig struct {
	PerTradeRiskPct                float64 `yaml:"per_trade_risk_pct"`
	MinPositionKRW                 float64 `yaml:"min_position_krw"`
	MaxPositionKRW                 float64 `yaml:"max_position_krw"`
	DailyDrawdownStopPct           float64 `yaml:"daily_drawdown_stop_pct"`
	SameSymbolConsecutiveLossStop  int     `yaml:"same_symbol_consecutive_losses_stop"`
	MinRiskRewardRatio             float64 `yaml:"min_risk_reward_ratio"`
	TargetRiskRewardRatio          float64 `yaml:"target_risk_reward_ratio"`
}

type PaperModeConfig struct {
	SimulateSlippage bool    `yaml:"simulate_slippage"`
	SlippageBPMin    int     `yaml:"slippage_bp_min"`
	SlippageBPMax    int     `yaml:"slippage_bp_max"`
	FillProbability  float64 `yaml:"fill_probability"`
	FillDelayMinMS   int     `yaml:"fill_delay_min_ms"`
	FillDelayMaxMS   int     `yaml:"fill_delay_max_ms"`
}

type OrdersConfig struct {
	SlippageBPMax      float64         `yaml:"slippage_bp_max"`
	DefaultOrderType   string          `yaml:"order_type"`
	DefaultTIF         string          `yaml:"time_in_force"`
	MinOrderKRW        float64         `yaml:"min_order_krw"`
	MaxOrderKRW        float64         `yaml:"max_order_krw"`
	FillTimeoutSeconds int             `yaml:"fill_timeout_seconds"`
	Paper              PaperModeConfig `yaml:"paper_mode"`
}

type RuntimeConfig struct {
	SessionWindows               []string `yaml:"session_windows"`
	Timezone                     string   `yaml:"timezone"`
	ScanIntervalMinutes          int      `yaml:"scan_interval_minutes"`
	SignalCheckIntervalSeconds   int      `yaml:"signal_check_interval_seconds"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type Config struct {
	Exchange ExchangeConfig `yaml:"exchange"`
	Symbols  SymbolsConfig  `yaml:"symbols"`
	Scanner  ScannerConfig  `yaml:"scanner"`
	Signals  SignalsConfig  `yaml:"signals"`
	Risk     RiskConfig     `yaml:"risk"`
	Orders   OrdersConfig   `yaml:"orders"`
	Runtime  RuntimeConfig  `yaml:"runtime"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// Defaults mirrors the original system's configs/config.yaml defaults.
func Defaults() Config {
	return Config{
		Exchange: ExchangeConfig{
			BaseURL: "https://api.upbit.com", WebsocketURL: "wss://api.upbit.com/websocket/v1",
			TimeoutSeconds: 30, MaxRetries: 3, RetryBackoff: 3.0, MaxConcurrentFetch: 3,
		},
		Symbols: SymbolsConfig{
			Core:                   []string{"KRW-BTC", "KRW-ETH", "KRW-SOL"},
			ExcludeWarning:         true,
			ExcludeNewlyListedDays: 7,
			MinVolumeKRW:           5_000_000_000,
			MaxMarketsToScan:       50,
			PriorityMarkets:        []string{"KRW-BTC", "KRW-ETH", "KRW-SOL", "KRW-ADA", "KRW-DOT", "KRW-XRP"},
		},
		Scanner: ScannerConfig{
			CandleUnitMin: 5, CandleCount: 200,
			RVOLThreshold: 2.0, RVOLWindow: 20,
			SpreadBPMax: 5, RSWindowMinutes: 60, RSReferenceSymbol: "KRW-BTC",
			Trend:       TrendConfig{UseVWAP: true, EMAFast: 20, EMASlow: 50},
			DepthLevels: 5,
			ScoreWeights: ScoreWeightsConfig{RS: 0.4, RVOL: 0.3, Trend: 0.2, Depth: 0.1},
			CandidateCount: 3, MinScore: 0.5,
		},
		Signals: SignalsConfig{
			ORB: ORBConfig{Use: true, BoxWindow: "09:00-10:00", ActiveWindow: "10:00-13:00",
				BreakoutATRMult: 0.1, VolumeSpikeMult: 1.5, VolumeLookback: 20},
			SVWAPPullback: SVWAPPullbackConfig{Use: true, ZoneATRMult: 0.25, RequireEMAAlignment: true,
				MinPullbackPct: 0.5, MaxPullbackPct: 2.0, ActiveWindows: []string{"09:10-13:00", "17:10-19:00"}},
			SweepReversal: SweepReversalConfig{Use: false, SwingLookback: 50, PenetrationATRMult: 0.05,
				RecoveryTimeMinutes: 15, VolumeSpikeMult: 2.0, MaxAgeHours: 2,
				ActiveWindows: []string{"10:30-12:30", "17:30-18:30"}},
		},
		Risk: RiskConfig{
			PerTradeRiskPct: 0.004, MinPositionKRW: 10_000, MaxPositionKRW: 500_000,
			DailyDrawdownStopPct: 0.01, SameSymbolConsecutiveLossStop: 2,
			MinRiskRewardRatio: 1.0, TargetRiskRewardRatio: 1.5,
		},
		Orders: OrdersConfig{
			SlippageBPMax: 5, DefaultOrderType: "limit", DefaultTIF: "IOC",
			MinOrderKRW: 5_000, MaxOrderKRW: 1_000_000, FillTimeoutSeconds: 300,
			Paper: PaperModeConfig{SimulateSlippage: true, SlippageBPMin: 0, SlippageBPMax: 3,
				FillProbability: 0.95, FillDelayMinMS: 100, FillDelayMaxMS: 500},
		},
		Runtime: RuntimeConfig{
			SessionWindows:             []string{"09:10-13:00", "17:10-19:00"},
			Timezone:                   "Asia/Seoul",
			ScanIntervalMinutes:        5,
			SignalCheckIntervalSeconds: 30,
		},
		Logging: LoggingConfig{Level: "info", Format: "json"},
	}
}

// Load reads YAML from path, overlays it onto Defaults(), and validates
// the result. An empty path returns the validated defaults.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if path == "" {
		return cfg, cfg.Validate()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate enforces every numeric range and cross-field constraint the
// original system's Pydantic models specify. It fails fast at load time.
func (c Config) Validate() error {
	var errs []string
	check := func(ok bool, msg string) {
		if !ok {
			errs = append(errs, msg)
		}
	}

	check(c.Scanner.RVOLThreshold >= 1.5 && c.Scanner.RVOLThreshold <= 3.0, "scanner.rvol_threshold out of [1.5, 3.0]")
	check(c.Scanner.SpreadBPMax >= 1 && c.Scanner.SpreadBPMax <= 100, "scanner.spread_bp_max out of [1, 100]")
	check(c.Scanner.CandidateCount >= 2 && c.Scanner.CandidateCount <= 5, "scanner.candidate_count out of [2, 5]")
	check(c.Scanner.MinScore >= 0 && c.Scanner.MinScore <= 1, "scanner.min_score out of [0, 1]")

	sum := c.Scanner.ScoreWeights.sum()
	check(math.Abs(sum-1.0) <= 0.01, fmt.Sprintf("scanner.score_weights must sum to 1.0 +/- 0.01, got %.4f", sum))

	check(c.Risk.PerTradeRiskPct >= 0.001 && c.Risk.PerTradeRiskPct <= 0.01, "risk.per_trade_risk_pct out of [0.001, 0.01]")
	check(c.Risk.DailyDrawdownStopPct >= 0.005 && c.Risk.DailyDrawdownStopPct <= 0.05, "risk.daily_drawdown_stop_pct out of [0.005, 0.05]")
	check(c.Risk.SameSymbolConsecutiveLossStop >= 1 && c.Risk.SameSymbolConsecutiveLossStop <= 5, "risk.same_symbol_consecutive_losses_stop out of [1, 5]")
	check(c.Risk.MinRiskRewardRatio >= 0.5 && c.Risk.MinRiskRewardRatio <= 3.0, "risk.min_risk_reward_ratio out of [0.5, 3.0]")
	check(c.Risk.MinPositionKRW <= c.Risk.MaxPositionKRW, "risk.min_position_krw must not exceed max_position_krw")

	check(c.Orders.Paper.FillProbability >= 0.5 && c.Orders.Paper.FillProbability <= 1.0, "orders.paper_mode.fill_probability out of [0.5, 1.0]")
	check(c.Orders.FillTimeoutSeconds >= 30 && c.Orders.FillTimeoutSeconds <= 3600, "orders.fill_timeout_seconds out of [30, 3600]")
	check(c.Orders.SlippageBPMax >= 1, "orders.slippage_bp_max must be positive")

	check(c.Runtime.ScanIntervalMinutes >= 1, "runtime.scan_interval_minutes must be positive")
	check(c.Runtime.SignalCheckIntervalSeconds >= 1, "runtime.signal_check_interval_seconds must be positive")
	check(c.Runtime.Timezone != "", "runtime.timezone must be set")

	if len(errs) > 0 {
		msg := errs[0]
		for _, e := range errs[1:] {
			msg += "; " + e
		}
		return fmt.Errorf("config invalid: %s", msg)
	}
	return nil
}
