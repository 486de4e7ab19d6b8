package engine

import (
	"context"
	"testing"
	"time"

	"github.com/poorman/synapsestrike-auto/internal/config"
	"github.com/poorman/synapsestrike-auto/internal/exec"
	"github.com/poorman/synapsestrike-auto/internal/model"
	"github.com/poorman/synapsestrike-auto/internal/notify"
	"github.com/poorman/synapsestrike-auto/internal/risk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func longPosition() model.Position {
	return model.Position{
		Market: "KRW-BTC", Side: model.SideBuy, EntryPrice: 50_000, Quantity: 1.0,
		StopLossPrice: 49_000, TakeProfitPrice: 52_000,
	}
}

func TestExitReason_Long(t *testing.T) {
	pos := longPosition()
	assert.Equal(t, "stop_loss", exitReason(pos, 48_999))
	assert.Equal(t, "take_profit", exitReason(pos, 52_001))
	assert.Equal(t, "", exitReason(pos, 50_500))
}

func TestExitReason_Short(t *testing.T) {
	pos := longPosition()
	pos.Side = model.SideSell
	pos.StopLossPrice = 51_000
	pos.TakeProfitPrice = 48_000

	assert.Equal(t, "stop_loss", exitReason(pos, 51_001))
	assert.Equal(t, "take_profit", exitReason(pos, 47_999))
	assert.Equal(t, "", exitReason(pos, 50_000))
}

func TestPositionPnL(t *testing.T) {
	pos := longPosition()
	assert.InDelta(t, 2_000, positionPnL(pos, 52_000), 1e-9)

	pos.Side = model.SideSell
	assert.InDelta(t, -2_000, positionPnL(pos, 52_000), 1e-9)
}

func newTestSystem(t *testing.T) *System {
	t.Helper()
	cfg := config.Defaults()
	guard := risk.NewGuard(cfg.Risk, nil, notify.NoOp())
	guard.UpdateAccountBalance(1_000_000, time.Now())

	paper := exec.NewPaper(cfg.Orders, nil)
	return New(cfg, nil, nil, nil, guard, paper, nil, nil, notify.NoOp(), nil, true)
}

func TestShouldTrade_RespectsPause(t *testing.T) {
	sys := newTestSystem(t)
	sys.cfg.Runtime.SessionWindows = []string{"00:00-23:59"}

	now := time.Now()
	require.True(t, sys.shouldTrade(now))

	sys.PauseTemporarily(time.Hour)
	assert.False(t, sys.shouldTrade(now))

	sys.Resume()
	assert.True(t, sys.shouldTrade(now))
}

func TestShouldTrade_HaltsOnDDL(t *testing.T) {
	sys := newTestSystem(t)
	sys.cfg.Runtime.SessionWindows = []string{"00:00-23:59"}

	now := time.Now()
	require.True(t, sys.shouldTrade(now))

	sys.guard.UpdateAccountBalance(1_000_000*(1-sys.cfg.Risk.DailyDrawdownStopPct-0.001), now)
	assert.False(t, sys.shouldTrade(now))
}

func TestClosePosition_RemovesTrackedPosition(t *testing.T) {
	sys := newTestSystem(t)
	pos := longPosition()
	sys.positions[pos.Market] = pos

	sys.closePosition(context.Background(), pos, "take_profit", 52_000, time.Now())

	sys.mu.Lock()
	_, stillOpen := sys.positions[pos.Market]
	sys.mu.Unlock()
	assert.False(t, stillOpen)
}

func TestSystemStatus_ReflectsOpenPositions(t *testing.T) {
	sys := newTestSystem(t)
	sys.startedAt = time.Now()
	sys.running = true
	sys.positions["KRW-BTC"] = longPosition()

	status := sys.SystemStatus()
	assert.Equal(t, "paper", status.Mode)
	assert.True(t, status.Running)
	assert.Equal(t, 1, status.OpenPositions)
}
