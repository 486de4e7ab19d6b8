// Package risk implements the Risk Guard: a stateful gatekeeper over
// account balance, daily P&L, and per-market consecutive-loss cooldown.
// It sizes positions and approves or rejects trades.
package risk

import (
	"fmt"
	"time"

	"github.com/poorman/synapsestrike-auto/internal/config"
	"github.com/poorman/synapsestrike-auto/internal/logger"
	"github.com/poorman/synapsestrike-auto/internal/model"
	"github.com/poorman/synapsestrike-auto/internal/notify"
	"github.com/poorman/synapsestrike-auto/metrics"
)

const dateLayout = "2006-01-02"

// Guard holds the full mutable risk state: current balance, the single
// active DailyRisk record, and a MarketRisk per market ever traded.
type Guard struct {
	cfg     config.RiskConfig
	log     *logger.Logger
	notif   notify.Notifier

	balance float64
	daily   model.DailyRisk
	markets map[string]*model.MarketRisk
}

func NewGuard(cfg config.RiskConfig, log *logger.Logger, notif notify.Notifier) *Guard {
	return &Guard{cfg: cfg, log: log, notif: notif, markets: make(map[string]*model.MarketRisk)}
}

// UpdateAccountBalance rolls over to a new DailyRisk if today differs
// from the stored daily date; otherwise recomputes daily P&L in place.
// Calling this twice with the same balance on the same day is
// idempotent.
func (g *Guard) UpdateAccountBalance(balance float64, today time.Time) {
	date := today.Format(dateLayout)
	g.balance = balance

	if g.daily.Date != date {
		g.daily = model.DailyRisk{
			Date: date, StartingBalance: balance, CurrentBalance: balance,
			MaxDailyLoss: balance * g.cfg.DailyDrawdownStopPct,
		}
		return
	}

	g.daily.CurrentBalance = balance
	g.daily.DailyPnL = balance - g.daily.StartingBalance
	if g.daily.StartingBalance != 0 {
		g.daily.DailyPnLPct = g.daily.DailyPnL / g.daily.StartingBalance
	}

	if g.daily.DailyPnLPct <= -g.cfg.DailyDrawdownStopPct {
		if !g.daily.DDLHit {
			g.daily.DDLHit = true
		}
		if !g.daily.DDLAlerted {
			g.daily.DDLAlerted = true
			if g.log != nil {
				g.log.Critical("daily drawdown limit hit", map[string]interface{}{
					"daily_pnl_pct": g.daily.DailyPnLPct, "balance": balance,
				})
			}
			if g.notif != nil {
				_ = g.notif.SendCritical(noCtx(), "Daily Drawdown Limit Hit",
					fmt.Sprintf("daily_pnl_pct=%.2f%% balance=%.0f", g.daily.DailyPnLPct*100, balance))
			}
		}
	}
}

// CalculatePositionSize sizes a position given entry/stop and a risk
// percent, clamping notional to [min_position_krw, max_position_krw].
func (g *Guard) CalculatePositionSize(entry, stop, riskPct float64) model.TradeRisk {
	riskPerUnit := absf(entry - stop)
	if riskPerUnit == 0 {
		return model.TradeRisk{Market: "", Entry: entry, Stop: stop}
	}

	maxRisk := g.balance * riskPct
	qty := maxRisk / riskPerUnit

	notional := qty * entry
	clamped := false
	if notional < g.cfg.MinPositionKRW {
		qty = g.cfg.MinPositionKRW / entry
		clamped = true
	} else if notional > g.cfg.MaxPositionKRW {
		qty = g.cfg.MaxPositionKRW / entry
		clamped = true
	}

	actualRisk := qty * riskPerUnit

	return model.TradeRisk{
		Entry: entry, Stop: stop, Size: qty,
		RiskKRW: actualRisk, RiskPct: riskPct,
		MaxNotional: g.cfg.MaxPositionKRW, Clamped: clamped,
	}
}

// AssessTradeRisk rejects with a reason if DDL is hit, the market is
// banned and not yet expired, balance <= 0, or rr is below the minimum.
// An expired ban is auto-cleared (consecutive losses reset) as a side
// effect of assessment.
func (g *Guard) AssessTradeRisk(market string, sig model.Signal, today time.Time) model.RiskAssessment {
	mr := g.marketRisk(market)

	if mr.Banned && mr.BanExpiryDate != "" {
		if expiry, err := time.Parse(dateLayout, mr.BanExpiryDate); err == nil {
			if !today.Before(expiry) {
				mr.Banned = false
				mr.BanExpiryDate = ""
				mr.ConsecutiveLosses = 0
			}
		}
	}

	var reasons, warnings []string
	if g.daily.DDLHit {
		reasons = append(reasons, "daily_drawdown_limit_hit")
	}
	if mr.Banned {
		reasons = append(reasons, "market_banned")
	}
	if g.balance <= 0 {
		reasons = append(reasons, "balance_non_positive")
	}
	if sig.RRRatio < g.cfg.MinRiskRewardRatio {
		reasons = append(reasons, "risk_reward_below_minimum")
	}

	tradeRisk := g.CalculatePositionSize(sig.EntryPrice, sig.StopLoss, g.cfg.PerTradeRiskPct)
	tradeRisk.Market = market
	tradeRisk.RewardKRW = tradeRisk.Size * absf(sig.TakeProfit-sig.EntryPrice)
	tradeRisk.RR = sig.RRRatio
	if tradeRisk.Clamped {
		warnings = append(warnings, "position_size_clamped")
	}
	if mr.ConsecutiveLosses >= 1 {
		warnings = append(warnings, "consecutive_losses_present")
	}

	if len(reasons) > 0 {
		metrics.RecordSignalRejected(sig.Strategy, reasons[0])
	}

	return model.RiskAssessment{
		IsAllowed:        len(reasons) == 0,
		RejectionReasons: reasons,
		Warnings:         warnings,
		TradeRisk:        tradeRisk,
	}
}

// RecordTradeResult updates the MarketRisk cooldown state and folds the
// realized P&L back into the account balance. Two consecutive losses
// for the same market ban it for one day.
func (g *Guard) RecordTradeResult(market string, isWinning bool, pnl float64, today time.Time) {
	g.daily.TradesToday++
	mr := g.marketRisk(market)
	mr.TotalTrades++

	if isWinning {
		mr.ConsecutiveLosses = 0
	} else {
		g.daily.LosingTradesToday++
		mr.TotalLosses++
		mr.ConsecutiveLosses++
		mr.LastLossDate = today.Format(dateLayout)

		if mr.ConsecutiveLosses >= g.cfg.SameSymbolConsecutiveLossStop {
			mr.Banned = true
			mr.BanExpiryDate = today.AddDate(0, 0, 1).Format(dateLayout)
			if g.log != nil {
				g.log.Warnf("market %s banned after %d consecutive losses, expires %s", market, mr.ConsecutiveLosses, mr.BanExpiryDate)
			}
			if g.notif != nil {
				_ = g.notif.SendCritical(noCtx(), "Market Banned", fmt.Sprintf("%s banned until %s", market, mr.BanExpiryDate))
			}
		}
	}

	g.UpdateAccountBalance(g.balance+pnl, today)
}

func (g *Guard) marketRisk(market string) *model.MarketRisk {
	mr, ok := g.markets[market]
	if !ok {
		mr = &model.MarketRisk{Market: market}
		g.markets[market] = mr
	}
	return mr
}

// RiskStatus is a read-only snapshot for the status endpoint and
// orchestrator state refresh.
type RiskStatus struct {
	Balance       float64
	Daily         model.DailyRisk
	BannedMarkets []string
}

func (g *Guard) GetRiskStatus() RiskStatus {
	var banned []string
	for m, mr := range g.markets {
		if mr.Banned {
			banned = append(banned, m)
		}
	}
	metrics.RecordRiskStatus(g.daily.DailyPnLPct, g.daily.DDLHit, len(banned))
	return RiskStatus{Balance: g.balance, Daily: g.daily, BannedMarkets: banned}
}

// ResetDailyRisk clears today's counters without touching balance.
// Nothing in the repository calls it.
func (g *Guard) ResetDailyRisk(today time.Time) {
	g.daily = model.DailyRisk{
		Date: today.Format(dateLayout), StartingBalance: g.balance, CurrentBalance: g.balance,
		MaxDailyLoss: g.balance * g.cfg.DailyDrawdownStopPct,
	}
}

// ClearMarketBans clears every expired ban and returns how many were
// cleared. Idempotent: a second call clears zero.
func (g *Guard) ClearMarketBans(today time.Time) int {
	cleared := 0
	for _, mr := range g.markets {
		if !mr.Banned || mr.BanExpiryDate == "" {
			continue
		}
		expiry, err := time.Parse(dateLayout, mr.BanExpiryDate)
		if err != nil {
			continue
		}
		if !today.Before(expiry) {
			mr.Banned = false
			mr.BanExpiryDate = ""
			mr.ConsecutiveLosses = 0
			cleared++
		}
	}
	return cleared
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
