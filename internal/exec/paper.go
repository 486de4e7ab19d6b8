package exec

import (
	"context"
	"math/rand"
	"time"

	"github.com/poorman/synapsestrike-auto/internal/config"
	"github.com/poorman/synapsestrike-auto/internal/logger"
	"github.com/poorman/synapsestrike-auto/internal/model"
)

// paperCommissionRate mirrors Upbit's maker/taker fee used by the
// simulation (0.05%).
const paperCommissionRate = 0.0005

// Paper executes signals against a local fill simulation instead of the
// venue: delay, fill-probability, and slippage are all rolled per order,
// matching the original system's paper-mode order simulator.
type Paper struct {
	cfg config.OrdersConfig
	log *logger.Logger
	rnd *rand.Rand
}

func NewPaper(cfg config.OrdersConfig, log *logger.Logger) *Paper {
	return &Paper{cfg: cfg, log: log, rnd: rand.New(rand.NewSource(1))}
}

func (p *Paper) ExecuteSignal(ctx context.Context, sig model.Signal, riskSize float64) (*model.Position, *model.OrderResult, error) {
	req := model.OrderRequest{
		OrderID: newOrderID(), Market: sig.Market, Side: sideFor(sig),
		Type: model.OrderLimit, Quantity: riskSize, LimitPrice: &sig.EntryPrice, TIF: tif,
		SignalKind: sig.Kind,
	}

	result := p.simulateFill(ctx, req)
	if p.log != nil {
		p.log.Infof("paper order %s: %s qty=%.6f filled=%.6f price=%.2f", result.OrderID, result.Status, req.Quantity, result.FilledQuantity, result.FilledPrice)
	}

	if result.Status != model.OrderFilled {
		return nil, result, nil
	}

	pos := &model.Position{
		Market: sig.Market, Side: req.Side, EntryPrice: result.FilledPrice, Quantity: result.FilledQuantity,
		EntryTime: result.FilledAt, EntryOrderID: result.OrderID,
		StopLossPrice: sig.StopLoss, TakeProfitPrice: sig.TakeProfit, Active: true,
	}
	return pos, result, nil
}

func (p *Paper) ClosePosition(ctx context.Context, pos model.Position, reason string) (*model.OrderResult, error) {
	req := model.OrderRequest{
		OrderID: newOrderID(), Market: pos.Market, Side: exitSideFor(pos),
		Type: model.OrderMarket, Quantity: pos.Quantity, TIF: tif,
	}

	result := p.simulateFill(ctx, req)
	if p.log != nil {
		p.log.Infof("paper close %s (%s): %s price=%.2f", pos.Market, reason, result.Status, result.FilledPrice)
	}
	return result, nil
}

// simulateFill applies the configured delay, fill-probability roll, and
// slippage/commission model. The caller's context is honored for
// cancellation during the simulated delay only.
func (p *Paper) simulateFill(ctx context.Context, req model.OrderRequest) *model.OrderResult {
	submitted := time.Now()

	delayMS := p.cfg.Paper.FillDelayMinMS
	if spread := p.cfg.Paper.FillDelayMaxMS - p.cfg.Paper.FillDelayMinMS; spread > 0 {
		delayMS += p.rnd.Intn(spread)
	}
	select {
	case <-ctx.Done():
	case <-time.After(time.Duration(delayMS) * time.Millisecond):
	}

	result := &model.OrderResult{
		OrderID: req.OrderID, Market: req.Market, Side: req.Side,
		RequestedQuantity: req.Quantity, SubmittedAt: submitted, IsPaper: true,
	}
	if req.LimitPrice != nil {
		result.RequestedPrice = *req.LimitPrice
	}

	if p.rnd.Float64() >= p.cfg.Paper.FillProbability {
		result.Status = model.OrderExpired
		return result
	}

	fillPrice := result.RequestedPrice
	slippageBP := 0.0
	if p.cfg.Paper.SimulateSlippage && fillPrice > 0 {
		lo, hi := float64(p.cfg.Paper.SlippageBPMin), float64(p.cfg.Paper.SlippageBPMax)
		slippageBP = lo + p.rnd.Float64()*(hi-lo)
		if req.Side == model.SideBuy {
			fillPrice *= 1 + slippageBP/10000
		} else {
			fillPrice *= 1 - slippageBP/10000
		}
	}

	result.Status = model.OrderFilled
	result.FilledQuantity = req.Quantity
	result.FilledPrice = fillPrice
	result.SlippageBP = slippageBP
	result.Commission = req.Quantity * fillPrice * paperCommissionRate
	result.FilledAt = time.Now()
	return result
}
