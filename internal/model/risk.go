package model

// TradeRisk is the sized, per-signal risk computation handed from the
// Risk Guard to the Order Executor. Immutable once computed.
type TradeRisk struct {
	Market      string  `json:"market"`
	Entry       float64 `json:"entry"`
	Stop        float64 `json:"stop"`
	Size        float64 `json:"size"`
	RiskKRW     float64 `json:"risk_krw"`
	RiskPct     float64 `json:"risk_pct"`
	RewardKRW   float64 `json:"reward_krw"`
	RR          float64 `json:"rr"`
	MaxNotional float64 `json:"max_notional"`
	Clamped     bool    `json:"clamped"`
}

// RiskAssessment is the outcome of assess_trade_risk: an allow/reject
// decision plus the sizing that would apply if allowed. A rejection is a
// normal decision, not an error (SPEC_FULL.md §7).
type RiskAssessment struct {
	IsAllowed        bool      `json:"is_allowed"`
	RejectionReasons []string  `json:"rejection_reasons,omitempty"`
	Warnings         []string  `json:"warnings,omitempty"`
	TradeRisk        TradeRisk `json:"trade_risk"`
}

// DailyRisk is the single active per-trading-date risk record.
type DailyRisk struct {
	Date              string  `json:"date"`
	StartingBalance   float64 `json:"starting_balance"`
	CurrentBalance    float64 `json:"current_balance"`
	DailyPnL          float64 `json:"daily_pnl"`
	DailyPnLPct       float64 `json:"daily_pnl_pct"`
	MaxDailyLoss      float64 `json:"max_daily_loss"`
	TradesToday       int     `json:"trades_today"`
	LosingTradesToday int     `json:"losing_trades_today"`
	WinningTrades     int     `json:"winning_trades"`
	DDLHit            bool    `json:"ddl_hit"`
	DDLAlerted        bool    `json:"ddl_alerted"`
}

// MarketRisk is the per-market consecutive-loss cooldown record, one per
// market ever traded.
type MarketRisk struct {
	Market             string `json:"market"`
	ConsecutiveLosses  int    `json:"consecutive_losses"`
	LastLossDate       string `json:"last_loss_date,omitempty"`
	TotalTrades        int    `json:"total_trades"`
	TotalLosses        int    `json:"total_losses"`
	Banned             bool   `json:"banned"`
	BanExpiryDate      string `json:"ban_expiry_date,omitempty"`
}
