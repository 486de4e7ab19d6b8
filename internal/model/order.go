package model

import "time"

// OrderSide is buy or sell.
type OrderSide string

const (
	SideBuy  OrderSide = "buy"
	SideSell OrderSide = "sell"
)

// OrderType is the requested order style; StopLoss/TakeProfit are mapped
// to venue limit orders by the gateway's REST client since the venue has no native
// bracket support (SPEC_FULL.md, Live backend).
type OrderType string

const (
	OrderMarket     OrderType = "market"
	OrderLimit      OrderType = "limit"
	OrderStopLoss   OrderType = "stop-loss"
	OrderTakeProfit OrderType = "take-profit"
)

// TimeInForce constrains how long an order rests before cancellation.
type TimeInForce string

const (
	TIFIOC TimeInForce = "IOC"
	TIFFOK TimeInForce = "FOK"
	TIFGTC TimeInForce = "GTC"
)

// OrderStatus is the lifecycle state of an OrderResult. Once Filled or
// Rejected it is terminal.
type OrderStatus string

const (
	OrderPending         OrderStatus = "pending"
	OrderSubmitted       OrderStatus = "submitted"
	OrderFilled          OrderStatus = "filled"
	OrderPartiallyFilled OrderStatus = "partially_filled"
	OrderCancelled       OrderStatus = "cancelled"
	OrderRejected        OrderStatus = "rejected"
	OrderExpired         OrderStatus = "expired"
)

func (s OrderStatus) Terminal() bool {
	return s == OrderFilled || s == OrderRejected
}

// OrderRequest is constructed transiently by the executor for each venue
// call; it is never persisted directly, only its OrderResult is.
type OrderRequest struct {
	OrderID     string      `json:"order_id"`
	Market      string      `json:"market"`
	Side        OrderSide   `json:"side"`
	Type        OrderType   `json:"type"`
	Quantity    float64     `json:"quantity"`
	LimitPrice  *float64    `json:"limit_price,omitempty"`
	TIF         TimeInForce `json:"tif"`
	SignalKind  SignalKind  `json:"signal_kind,omitempty"`
}

// OrderResult is persisted on every state transition.
type OrderResult struct {
	OrderID           string      `json:"order_id"`
	Market            string      `json:"market"`
	Side              OrderSide   `json:"side"`
	Status            OrderStatus `json:"status"`
	RequestedQuantity float64     `json:"requested_quantity"`
	FilledQuantity    float64     `json:"filled_quantity"`
	RequestedPrice    float64     `json:"requested_price"`
	FilledPrice       float64     `json:"filled_price"`
	Commission        float64     `json:"commission"`
	SlippageBP        float64     `json:"slippage_bp"`
	SubmittedAt       time.Time   `json:"submitted_at"`
	FilledAt          time.Time   `json:"filled_at,omitempty"`
	IsPaper           bool        `json:"is_paper"`
	Error             string      `json:"error,omitempty"`
}

// Position tracks an open or closed market exposure. At most one active
// Position per market at any time.
type Position struct {
	Market            string    `json:"market"`
	Side              OrderSide `json:"side"`
	EntryPrice        float64   `json:"entry_price"`
	Quantity          float64   `json:"quantity"`
	EntryTime         time.Time `json:"entry_time"`
	EntryOrderID      string    `json:"entry_order_id"`
	StopLossPrice     float64   `json:"stop_loss_price"`
	TakeProfitPrice   float64   `json:"take_profit_price"`
	StopOrderID       string    `json:"stop_order_id,omitempty"`
	TakeProfitOrderID string    `json:"take_profit_order_id,omitempty"`
	UnrealizedPnL     float64   `json:"unrealized_pnl"`
	RealizedPnL       float64   `json:"realized_pnl"`
	Active            bool      `json:"active"`
	ExitPrice         float64   `json:"exit_price,omitempty"`
	ExitTime          time.Time `json:"exit_time,omitempty"`
	ExitReason        string    `json:"exit_reason,omitempty"`
}
