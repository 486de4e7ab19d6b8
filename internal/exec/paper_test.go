package exec

import (
	"context"
	"testing"
	"time"

	"github.com/poorman/synapsestrike-auto/internal/config"
	"github.com/poorman/synapsestrike-auto/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPaperConfig() config.OrdersConfig {
	cfg := config.Defaults().Orders
	cfg.Paper.FillDelayMinMS = 0
	cfg.Paper.FillDelayMaxMS = 1
	return cfg
}

func TestPaper_ExecuteSignal_FillsAndOpensPosition(t *testing.T) {
	cfg := fastPaperConfig()
	cfg.Paper.FillProbability = 1.0
	p := NewPaper(cfg, nil)

	sig := model.Signal{
		Kind: model.SignalORBLong, Market: "KRW-BTC", EntryPrice: 50_000,
		StopLoss: 49_000, TakeProfit: 52_000, Timestamp: time.Now(),
	}

	pos, result, err := p.ExecuteSignal(context.Background(), sig, 1.5)
	require.NoError(t, err)
	require.NotNil(t, pos)
	require.NotNil(t, result)

	assert.Equal(t, model.OrderFilled, result.Status)
	assert.Equal(t, model.SideBuy, pos.Side)
	assert.InDelta(t, 1.5, pos.Quantity, 1e-9)
	assert.Greater(t, result.Commission, 0.0)
}

func TestPaper_ExecuteSignal_MissedFillReturnsNilPosition(t *testing.T) {
	cfg := fastPaperConfig()
	cfg.Paper.FillProbability = 0.0
	p := NewPaper(cfg, nil)

	sig := model.Signal{Kind: model.SignalORBShort, Market: "KRW-BTC", EntryPrice: 50_000, StopLoss: 51_000, TakeProfit: 48_000}

	pos, result, err := p.ExecuteSignal(context.Background(), sig, 1.0)
	require.NoError(t, err)
	assert.Nil(t, pos)
	assert.Equal(t, model.OrderExpired, result.Status)
}

func TestPaper_ClosePosition_SellsLongPosition(t *testing.T) {
	cfg := fastPaperConfig()
	cfg.Paper.FillProbability = 1.0
	cfg.Paper.SimulateSlippage = false
	p := NewPaper(cfg, nil)

	pos := model.Position{Market: "KRW-BTC", Side: model.SideBuy, Quantity: 2.0, EntryPrice: 50_000}
	result, err := p.ClosePosition(context.Background(), pos, "take_profit")
	require.NoError(t, err)
	assert.Equal(t, model.SideSell, result.Side)
	assert.Equal(t, model.OrderFilled, result.Status)
}
