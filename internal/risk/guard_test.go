package risk

import (
	"testing"
	"time"

	"github.com/poorman/synapsestrike-auto/internal/config"
	"github.com/poorman/synapsestrike-auto/internal/model"
	"github.com/poorman/synapsestrike-auto/internal/notify"
	"github.com/stretchr/testify/assert"
)

func newTestGuard() *Guard {
	cfg := config.Defaults().Risk
	return NewGuard(cfg, nil, notify.NoOp())
}

func TestPositionSizing_Scenario(t *testing.T) {
	g := newTestGuard()
	today := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	g.UpdateAccountBalance(1_000_000, today)

	tr := g.CalculatePositionSize(50_000, 49_000, 0.01)

	assert.InDelta(t, 10, tr.Size, 0.001)
	assert.InDelta(t, 10_000, tr.RiskKRW, 0.001)
}

func TestDDL_Scenario(t *testing.T) {
	g := newTestGuard()
	today := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	g.UpdateAccountBalance(1_000_000, today)
	g.UpdateAccountBalance(940_000, today)

	assert.InDelta(t, -0.06, g.daily.DailyPnLPct, 0.001)
	assert.True(t, g.daily.DDLHit)

	sig := model.Signal{EntryPrice: 100, StopLoss: 99, TakeProfit: 102, RRRatio: 2.0}
	assessment := g.AssessTradeRisk("KRW-BTC", sig, today)

	assert.False(t, assessment.IsAllowed)
	assert.Contains(t, assessment.RejectionReasons, "daily_drawdown_limit_hit")
}

func TestConsecutiveLossBan_Scenario(t *testing.T) {
	g := newTestGuard()
	day1 := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	g.UpdateAccountBalance(1_000_000, day1)

	g.RecordTradeResult("KRW-BTC", false, -1_000, day1)
	g.RecordTradeResult("KRW-BTC", false, -1_000, day1)

	mr := g.marketRisk("KRW-BTC")
	assert.True(t, mr.Banned)
	assert.Equal(t, "2026-01-02", mr.BanExpiryDate)

	sig := model.Signal{EntryPrice: 100, StopLoss: 99, TakeProfit: 103, RRRatio: 3.0}
	assessment := g.AssessTradeRisk("KRW-BTC", sig, day1)
	assert.False(t, assessment.IsAllowed)

	day2 := day1.AddDate(0, 0, 1)
	assessment2 := g.AssessTradeRisk("KRW-BTC", sig, day2)
	assert.True(t, assessment2.IsAllowed)
	assert.Equal(t, 0, mr.ConsecutiveLosses)
}

func TestUpdateAccountBalance_IdempotentSameDay(t *testing.T) {
	g := newTestGuard()
	today := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	g.UpdateAccountBalance(1_000_000, today)
	g.UpdateAccountBalance(1_050_000, today)
	first := g.daily

	g.UpdateAccountBalance(1_050_000, today)
	assert.Equal(t, first, g.daily)
}

func TestClearMarketBans_IdempotentSecondCallClearsNone(t *testing.T) {
	g := newTestGuard()
	day1 := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	g.UpdateAccountBalance(1_000_000, day1)
	g.RecordTradeResult("KRW-BTC", false, -1, day1)
	g.RecordTradeResult("KRW-BTC", false, -1, day1)

	day2 := day1.AddDate(0, 0, 1)
	cleared := g.ClearMarketBans(day2)
	assert.Equal(t, 1, cleared)

	clearedAgain := g.ClearMarketBans(day2)
	assert.Equal(t, 0, clearedAgain)
}
