package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/poorman/synapsestrike-auto/internal/logger"
	"github.com/poorman/synapsestrike-auto/internal/model"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

// REST is the concrete venue Gateway, grounded on the teacher's
// alpaca_trader.go doRequest pattern: a shared *http.Client, bearer
// auth headers, and fmt.Errorf(...: %w) wrapping, extended with a
// token-bucket limiter and exponential-backoff retry for transient
// failures (SPEC_FULL.md §6's rate-limiting contract).
type REST struct {
	baseURL    string
	accessKey  string
	secretKey  string
	client     *http.Client
	limiter    *rate.Limiter
	maxRetries int
	backoff    float64
	log        *logger.Logger
}

func NewREST(baseURL, accessKey, secretKey string, timeout time.Duration, maxRetries int, backoff float64, log *logger.Logger) *REST {
	return &REST{
		baseURL:    strings.TrimRight(baseURL, "/"),
		accessKey:  accessKey,
		secretKey:  secretKey,
		client:     &http.Client{Timeout: timeout},
		limiter:    newLimiter(600),
		maxRetries: maxRetries,
		backoff:    backoff,
		log:        log,
	}
}

func (r *REST) doRequest(ctx context.Context, method, path string, params url.Values, authenticated bool, out interface{}) error {
	var lastErr error

	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		if err := waitForSlot(ctx, r.limiter); err != nil {
			return model.Wrap(model.ErrGatewayTransient, "doRequest", err)
		}

		fullURL := r.baseURL + path
		if method == http.MethodGet && len(params) > 0 {
			fullURL += "?" + params.Encode()
		}

		req, err := http.NewRequestWithContext(ctx, method, fullURL, nil)
		if err != nil {
			return fmt.Errorf("gateway: build request: %w", err)
		}

		if authenticated {
			token, err := BuildAuthToken(r.accessKey, r.secretKey, params)
			if err != nil {
				return fmt.Errorf("gateway: build auth token: %w", err)
			}
			req.Header.Set("Authorization", "Bearer "+token)
		}

		resp, err := r.client.Do(req)
		if err != nil {
			lastErr = model.Wrap(model.ErrGatewayTransient, path, err)
			r.sleepBackoff(ctx, attempt)
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			lastErr = model.Wrap(model.ErrGatewayTransient, path, readErr)
			r.sleepBackoff(ctx, attempt)
			continue
		}

		switch {
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return model.Wrap(model.ErrGatewayAuth, path, fmt.Errorf("status %d: %s", resp.StatusCode, body))
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			lastErr = model.Wrap(model.ErrGatewayTransient, path, fmt.Errorf("status %d: %s", resp.StatusCode, body))
			r.sleepBackoff(ctx, attempt)
			continue
		case resp.StatusCode >= 400:
			return model.Wrap(model.ErrGatewayReject, path, fmt.Errorf("status %d: %s", resp.StatusCode, body))
		}

		if out != nil {
			if err := json.Unmarshal(body, out); err != nil {
				return fmt.Errorf("gateway: decode %s response: %w", path, err)
			}
		}
		return nil
	}

	return lastErr
}

func (r *REST) sleepBackoff(ctx context.Context, attempt int) {
	delay := time.Duration(math.Pow(2, float64(attempt)) * r.backoff * float64(time.Second))
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

type marketResp struct {
	Market        string `json:"market"`
	MarketWarning string `json:"market_warning"`
}

func (r *REST) GetMarkets(ctx context.Context) ([]MarketInfo, error) {
	var raw []marketResp
	params := url.Values{"isDetails": {"true"}}
	if err := r.doRequest(ctx, http.MethodGet, "/v1/market/all", params, false, &raw); err != nil {
		return nil, err
	}
	out := make([]MarketInfo, len(raw))
	for i, m := range raw {
		out[i] = MarketInfo{Market: m.Market, WarningStatus: m.MarketWarning}
	}
	return out, nil
}

type candleResp struct {
	CandleDateTimeKST string  `json:"candle_date_time_kst"`
	OpeningPrice      float64 `json:"opening_price"`
	HighPrice         float64 `json:"high_price"`
	LowPrice          float64 `json:"low_price"`
	TradePrice        float64 `json:"trade_price"`
	CandleAccTradeVol float64 `json:"candle_acc_trade_volume"`
}

func (r *REST) GetCandles(ctx context.Context, market string, unitMinutes, count int) ([]model.Candle, error) {
	var raw []candleResp
	path := fmt.Sprintf("/v1/candles/minutes/%d", unitMinutes)
	params := url.Values{"market": {market}, "count": {strconv.Itoa(count)}}
	if err := r.doRequest(ctx, http.MethodGet, path, params, false, &raw); err != nil {
		return nil, err
	}

	out := make([]model.Candle, 0, len(raw))
	for _, c := range raw {
		ts, err := time.ParseInLocation("2006-01-02T15:04:05", c.CandleDateTimeKST, time.UTC)
		if err != nil {
			continue
		}
		out = append(out, model.Candle{
			Market: market, OpenTime: ts, UnitMin: unitMinutes,
			Open:   decimalFromFloat(c.OpeningPrice),
			High:   decimalFromFloat(c.HighPrice),
			Low:    decimalFromFloat(c.LowPrice),
			Close:  decimalFromFloat(c.TradePrice),
			Volume: decimalFromFloat(c.CandleAccTradeVol),
		})
	}
	return out, nil
}

func (r *REST) GetMultipleCandles(ctx context.Context, markets []string, unitMinutes, count int) (map[string][]model.Candle, error) {
	out := make(map[string][]model.Candle, len(markets))
	for _, m := range markets {
		candles, err := r.GetCandles(ctx, m, unitMinutes, count)
		if err != nil {
			if r.log != nil {
				r.log.Warnf("candle fetch failed for %s: %v", m, err)
			}
			continue
		}
		out[m] = candles
	}
	return out, nil
}

type tickerResp struct {
	Market         string  `json:"market"`
	TradePrice     float64 `json:"trade_price"`
	AccTradeVolume float64 `json:"acc_trade_volume_24h"`
}

func (r *REST) GetTickers(ctx context.Context, markets []string) ([]Ticker, error) {
	var raw []tickerResp
	params := url.Values{"markets": {strings.Join(markets, ",")}}
	if err := r.doRequest(ctx, http.MethodGet, "/v1/ticker", params, false, &raw); err != nil {
		return nil, err
	}
	out := make([]Ticker, len(raw))
	for i, t := range raw {
		out[i] = Ticker{Market: t.Market, TradePrice: t.TradePrice, AccTradeVolume: t.AccTradeVolume}
	}
	return out, nil
}

type orderbookUnit struct {
	AskPrice float64 `json:"ask_price"`
	BidPrice float64 `json:"bid_price"`
	AskSize  float64 `json:"ask_size"`
	BidSize  float64 `json:"bid_size"`
}

type orderbookResp struct {
	Market         string          `json:"market"`
	OrderbookUnits []orderbookUnit `json:"orderbook_units"`
}

func (r *REST) GetOrderbook(ctx context.Context, markets []string) ([]model.OrderbookSnapshot, error) {
	var raw []orderbookResp
	params := url.Values{"markets": {strings.Join(markets, ",")}}
	if err := r.doRequest(ctx, http.MethodGet, "/v1/orderbook", params, false, &raw); err != nil {
		return nil, err
	}

	out := make([]model.OrderbookSnapshot, len(raw))
	for i, ob := range raw {
		snap := model.OrderbookSnapshot{Market: ob.Market, Taken: time.Now()}
		for _, u := range ob.OrderbookUnits {
			snap.Bids = append(snap.Bids, model.PriceLevel{Price: decimalFromFloat(u.BidPrice), Size: decimalFromFloat(u.BidSize)})
			snap.Asks = append(snap.Asks, model.PriceLevel{Price: decimalFromFloat(u.AskPrice), Size: decimalFromFloat(u.AskSize)})
		}
		out[i] = snap
	}
	return out, nil
}

type accountResp struct {
	Currency string `json:"currency"`
	Balance  string `json:"balance"`
}

func (r *REST) GetAccounts(ctx context.Context) ([]Account, error) {
	var raw []accountResp
	if err := r.doRequest(ctx, http.MethodGet, "/v1/accounts", nil, true, &raw); err != nil {
		return nil, err
	}
	out := make([]Account, 0, len(raw))
	for _, a := range raw {
		bal, _ := strconv.ParseFloat(a.Balance, 64)
		out = append(out, Account{Currency: a.Currency, Balance: bal})
	}
	return out, nil
}

func (r *REST) PlaceOrder(ctx context.Context, req model.OrderRequest) (*model.OrderResult, error) {
	params := url.Values{
		"market": {req.Market}, "side": {string(req.Side)},
		"volume": {strconv.FormatFloat(req.Quantity, 'f', -1, 64)},
		"ord_type": {venueOrderType(req.Type)},
	}
	if req.LimitPrice != nil {
		params.Set("price", strconv.FormatFloat(*req.LimitPrice, 'f', -1, 64))
	}

	var raw map[string]interface{}
	if err := r.doRequest(ctx, http.MethodPost, "/v1/orders", params, true, &raw); err != nil {
		return nil, err
	}

	return &model.OrderResult{
		OrderID: stringField(raw, "uuid"), Market: req.Market, Side: req.Side,
		Status: model.OrderPending, RequestedQuantity: req.Quantity, SubmittedAt: time.Now(),
	}, nil
}

func (r *REST) GetOrder(ctx context.Context, orderID string) (*model.OrderResult, error) {
	var raw map[string]interface{}
	params := url.Values{"uuid": {orderID}}
	if err := r.doRequest(ctx, http.MethodGet, "/v1/order", params, true, &raw); err != nil {
		return nil, err
	}
	state, _ := raw["state"].(string)
	result := &model.OrderResult{OrderID: orderID}
	switch state {
	case "done":
		result.Status = model.OrderFilled
	case "cancel":
		result.Status = model.OrderCancelled
	default:
		result.Status = model.OrderSubmitted
	}
	return result, nil
}

func (r *REST) CancelOrder(ctx context.Context, orderID string) error {
	params := url.Values{"uuid": {orderID}}
	return r.doRequest(ctx, http.MethodDelete, "/v1/order", params, true, nil)
}

func venueOrderType(t model.OrderType) string {
	switch t {
	case model.OrderMarket:
		return "market"
	default:
		// stop-loss / take-profit have no venue-native equivalent; posted
		// as limits (SPEC_FULL.md §4.7 Live backend).
		return "limit"
	}
}

func stringField(m map[string]interface{}, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func decimalFromFloat(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}
