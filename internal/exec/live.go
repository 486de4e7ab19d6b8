package exec

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/poorman/synapsestrike-auto/internal/config"
	"github.com/poorman/synapsestrike-auto/internal/gateway"
	"github.com/poorman/synapsestrike-auto/internal/logger"
	"github.com/poorman/synapsestrike-auto/internal/model"
)

// Live executes signals against the venue gateway: submit, then poll
// until filled, cancelled, or the configured timeout elapses.
type Live struct {
	gw      gateway.Gateway
	cfg     config.OrdersConfig
	log     *logger.Logger
	pollGap time.Duration
}

func NewLive(gw gateway.Gateway, cfg config.OrdersConfig, log *logger.Logger) *Live {
	return &Live{gw: gw, cfg: cfg, log: log, pollGap: time.Second}
}

func (l *Live) ExecuteSignal(ctx context.Context, sig model.Signal, riskSize float64) (*model.Position, *model.OrderResult, error) {
	req := model.OrderRequest{
		OrderID: newOrderID(), Market: sig.Market, Side: sideFor(sig),
		Type: model.OrderLimit, Quantity: riskSize, LimitPrice: &sig.EntryPrice, TIF: tif,
		SignalKind: sig.Kind,
	}

	result, err := l.submitAndWait(ctx, req)
	if err != nil {
		return nil, result, err
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

func (l *Live) ClosePosition(ctx context.Context, pos model.Position, reason string) (*model.OrderResult, error) {
	req := model.OrderRequest{
		OrderID: newOrderID(), Market: pos.Market, Side: exitSideFor(pos),
		Type: model.OrderMarket, Quantity: pos.Quantity, TIF: tif,
	}
	if l.log != nil {
		l.log.Infof("closing %s position in %s: %s", pos.Side, pos.Market, reason)
	}
	return l.submitAndWait(ctx, req)
}

// submitAndWait places req, then polls GetOrder until it reaches a
// terminal state or the fill timeout elapses, at which point the order is
// cancelled and surfaced as OrderExpired. A 401/403 from PlaceOrder
// surfaces immediately as model.ErrGatewayAuth via the gateway layer.
func (l *Live) submitAndWait(ctx context.Context, req model.OrderRequest) (*model.OrderResult, error) {
	submitted, err := l.gw.PlaceOrder(ctx, req)
	if err != nil {
		rejected := &model.OrderResult{
			OrderID: req.OrderID, Market: req.Market, Side: req.Side,
			Status: model.OrderRejected, RequestedQuantity: req.Quantity, Error: err.Error(),
		}
		return rejected, fmt.Errorf("exec: place order: %w", err)
	}

	deadline := time.Now().Add(time.Duration(l.cfg.FillTimeoutSeconds) * time.Second)
	for {
		status, err := l.gw.GetOrder(ctx, submitted.OrderID)
		if err != nil {
			rejected := &model.OrderResult{
				OrderID: submitted.OrderID, Market: req.Market, Side: req.Side,
				Status: model.OrderRejected, RequestedQuantity: req.Quantity, Error: err.Error(),
			}
			return rejected, fmt.Errorf("exec: poll order %s: %w", submitted.OrderID, err)
		}
		if status.Status.Terminal() || status.Status == model.OrderCancelled {
			status.RequestedQuantity = req.Quantity
			status.Market = req.Market
			status.Side = req.Side
			if status.Status == model.OrderFilled {
				status.SlippageBP = slippageFrom(req, status)
				if status.SlippageBP > l.cfg.SlippageBPMax && l.log != nil {
					l.log.Warnf("order %s in %s slippage %.2fbp exceeds cap %.2fbp", status.OrderID, req.Market, status.SlippageBP, l.cfg.SlippageBPMax)
				}
			}
			return status, nil
		}

		if time.Now().After(deadline) {
			_ = l.gw.CancelOrder(ctx, submitted.OrderID)
			return &model.OrderResult{
				OrderID: submitted.OrderID, Market: req.Market, Side: req.Side,
				Status: model.OrderExpired, RequestedQuantity: req.Quantity,
			}, nil
		}

		select {
		case <-ctx.Done():
			rejected := &model.OrderResult{
				OrderID: submitted.OrderID, Market: req.Market, Side: req.Side,
				Status: model.OrderRejected, RequestedQuantity: req.Quantity, Error: ctx.Err().Error(),
			}
			return rejected, model.Wrap(model.ErrOrderTimeout, "submitAndWait", ctx.Err())
		case <-time.After(l.pollGap):
		}
	}
}

// slippageFrom compares the order's requested limit price against its
// filled price, in basis points.
func slippageFrom(req model.OrderRequest, result *model.OrderResult) float64 {
	if req.LimitPrice == nil || *req.LimitPrice == 0 || result.FilledPrice == 0 {
		return 0
	}
	return math.Abs(result.FilledPrice-*req.LimitPrice) / *req.LimitPrice * 10000
}
