// Package gateway is the exchange collaborator: market list, candles,
// ticker, orderbook, account balances, and order placement/query/cancel.
// It is explicitly out of CORE scope per SPEC_FULL.md — the core only
// depends on the Gateway interface below.
package gateway

import (
	"context"
	"time"

	"github.com/poorman/synapsestrike-auto/internal/model"
)

// MarketInfo is one row of the venue's market-list response.
type MarketInfo struct {
	Market        string
	WarningStatus string // "NONE" when clean
}

// Ticker is a snapshot trade price/volume for one market.
type Ticker struct {
	Market          string
	TradePrice      float64
	AccTradeVolume  float64
}

// Account is one currency balance row from the authenticated accounts
// endpoint.
type Account struct {
	Currency string
	Balance  float64
}

// Gateway is the contract the Scanner, Strategies' live data needs, and
// Order Executor's live backend consume. A concrete implementation owns
// its own connection pool and must be safe under parallel fan-out
// (SPEC_FULL.md §5, shared resources).
type Gateway interface {
	GetMarkets(ctx context.Context) ([]MarketInfo, error)
	GetCandles(ctx context.Context, market string, unitMinutes, count int) ([]model.Candle, error)
	GetMultipleCandles(ctx context.Context, markets []string, unitMinutes, count int) (map[string][]model.Candle, error)
	GetTickers(ctx context.Context, markets []string) ([]Ticker, error)
	GetOrderbook(ctx context.Context, markets []string) ([]model.OrderbookSnapshot, error)
	GetAccounts(ctx context.Context) ([]Account, error)

	PlaceOrder(ctx context.Context, req model.OrderRequest) (*model.OrderResult, error)
	GetOrder(ctx context.Context, orderID string) (*model.OrderResult, error)
	CancelOrder(ctx context.Context, orderID string) error
}

// pollInterval is a one-second order-state polling interval. Nothing reads
// it; the live executor uses its own pollGap of the same length.
const pollInterval = 1 * time.Second
