package scanner

import (
	"context"
	"testing"
	"time"

	"github.com/poorman/synapsestrike-auto/internal/config"
	"github.com/poorman/synapsestrike-auto/internal/gateway"
	"github.com/poorman/synapsestrike-auto/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeGateway is a minimal in-memory gateway.Gateway used to drive the
// Scanner without any network I/O.
type fakeGateway struct {
	markets    []gateway.MarketInfo
	candles    map[string][]model.Candle
	orderbooks map[string]model.OrderbookSnapshot
}

func (f *fakeGateway) GetMarkets(context.Context) ([]gateway.MarketInfo, error) {
	return f.markets, nil
}

func (f *fakeGateway) GetCandles(_ context.Context, market string, _, _ int) ([]model.Candle, error) {
	return f.candles[market], nil
}

func (f *fakeGateway) GetMultipleCandles(_ context.Context, markets []string, unit, count int) (map[string][]model.Candle, error) {
	out := make(map[string][]model.Candle, len(markets))
	for _, m := range markets {
		out[m] = f.candles[m]
	}
	return out, nil
}

func (f *fakeGateway) GetTickers(context.Context, []string) ([]gateway.Ticker, error) { return nil, nil }

func (f *fakeGateway) GetOrderbook(_ context.Context, markets []string) ([]model.OrderbookSnapshot, error) {
	out := make([]model.OrderbookSnapshot, 0, len(markets))
	for _, m := range markets {
		if ob, ok := f.orderbooks[m]; ok {
			out = append(out, ob)
		}
	}
	return out, nil
}

func (f *fakeGateway) GetAccounts(context.Context) ([]gateway.Account, error) { return nil, nil }

func (f *fakeGateway) PlaceOrder(context.Context, model.OrderRequest) (*model.OrderResult, error) {
	return nil, nil
}
func (f *fakeGateway) GetOrder(context.Context, string) (*model.OrderResult, error) { return nil, nil }
func (f *fakeGateway) CancelOrder(context.Context, string) error                    { return nil }

func syntheticCandles(n int, base float64) []model.Candle {
	out := make([]model.Candle, n)
	t := time.Now().Add(-time.Duration(n) * 5 * time.Minute)
	for i := 0; i < n; i++ {
		price := base + float64(i%5)
		out[i] = model.Candle{
			Market:     "KRW-TEST",
			OpenTime:   t.Add(time.Duration(i) * 5 * time.Minute),
			Open:       decimal.NewFromFloat(price),
			High:       decimal.NewFromFloat(price + 1),
			Low:        decimal.NewFromFloat(price - 1),
			Close:      decimal.NewFromFloat(price),
			Volume:     decimal.NewFromFloat(100 + float64(i)),
		}
	}
	return out
}

func TestGetTradableMarkets_FiltersAndPrioritizes(t *testing.T) {
	cfg := config.Defaults()
	cfg.Symbols.ExcludeWarning = true
	cfg.Symbols.MaxMarketsToScan = 3
	cfg.Symbols.PriorityMarkets = []string{"KRW-ETH"}

	fg := &fakeGateway{markets: []gateway.MarketInfo{
		{Market: "KRW-BTC", WarningStatus: "NONE"},
		{Market: "KRW-ETH", WarningStatus: "NONE"},
		{Market: "KRW-XRP", WarningStatus: "CAUTION"},
		{Market: "KRW-SOL", WarningStatus: "NONE"},
		{Market: "BTC-ETH", WarningStatus: "NONE"}, // not KRW-quoted
	}}

	s := New(cfg, fg, nil)
	markets, err := s.GetTradableMarkets(context.Background())
	require.NoError(t, err)

	assert.Contains(t, markets, "KRW-ETH")
	assert.Equal(t, "KRW-ETH", markets[0], "priority market must come first")
	assert.NotContains(t, markets, "KRW-XRP", "warning markets must be excluded")
	assert.NotContains(t, markets, "BTC-ETH", "non-KRW markets must be excluded")
	assert.LessOrEqual(t, len(markets), 3)
}

func TestScanMarkets_RanksAndTruncatesCandidates(t *testing.T) {
	cfg := config.Defaults()
	cfg.Symbols.MaxMarketsToScan = 10
	cfg.Scanner.CandidateCount = 2
	cfg.Scanner.MinScore = -1 // accept everything with enough candles for this test

	markets := []string{"KRW-BTC", "KRW-ETH", "KRW-SOL"}
	candles := map[string][]model.Candle{
		"KRW-BTC":           syntheticCandles(210, 50_000_000),
		"KRW-ETH":           syntheticCandles(210, 3_000_000),
		"KRW-SOL":           syntheticCandles(210, 200_000),
		cfg.Scanner.RSReferenceSymbol: syntheticCandles(210, 50_000_000),
	}

	var infos []gateway.MarketInfo
	for _, m := range markets {
		infos = append(infos, gateway.MarketInfo{Market: m, WarningStatus: "NONE"})
	}

	fg := &fakeGateway{markets: infos, candles: candles, orderbooks: map[string]model.OrderbookSnapshot{}}
	s := New(cfg, fg, nil)

	result, err := s.ScanMarkets(context.Background(), cfg.Scanner, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 3, result.TotalMarkets)
	assert.LessOrEqual(t, len(result.Candidates), cfg.Scanner.CandidateCount)

	for i := 1; i < len(result.Candidates); i++ {
		assert.GreaterOrEqual(t, result.Candidates[i-1].FinalScore, result.Candidates[i].FinalScore, "candidates must be sorted by score descending")
	}
}
