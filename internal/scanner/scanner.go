// Package scanner selects the tradable market universe each cycle, fans
// out candle/orderbook fetches concurrently, computes features, and
// ranks the result down to a handful of candidates (SPEC_FULL.md §3).
package scanner

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/poorman/synapsestrike-auto/internal/config"
	"github.com/poorman/synapsestrike-auto/internal/features"
	"github.com/poorman/synapsestrike-auto/internal/gateway"
	"github.com/poorman/synapsestrike-auto/internal/logger"
	"github.com/poorman/synapsestrike-auto/internal/model"
	"github.com/poorman/synapsestrike-auto/metrics"
)

// Result is one completed scan: the ranked candidates plus the funnel
// counts used for both logging and the scanner_* metrics.
type Result struct {
	Candidates       []model.FeatureVector
	TotalMarkets     int
	ProcessedMarkets int
	FilteredMarkets  int
	ScanDuration     time.Duration
	Timestamp        time.Time
}

// Scanner drives market selection, fan-out fetch, and candidate ranking.
type Scanner struct {
	symbolsCfg config.SymbolsConfig
	calc       *features.Calculator
	processor  *features.CandleProcessor
	gw         gateway.Gateway
	log        *logger.Logger

	maxConcurrentFetch int
}

func New(cfg config.Config, gw gateway.Gateway, log *logger.Logger) *Scanner {
	return &Scanner{
		symbolsCfg:         cfg.Symbols,
		calc:               features.NewCalculator(cfg.Scanner),
		processor:          features.NewCandleProcessor(cfg.Scanner.CandleUnitMin),
		gw:                 gw,
		log:                log,
		maxConcurrentFetch: cfg.Exchange.MaxConcurrentFetch,
	}
}

// GetTradableMarkets filters the venue's market list to KRW pairs,
// excludes warning markets, and caps the set to MaxMarketsToScan with
// priority markets always included first.
func (s *Scanner) GetTradableMarkets(ctx context.Context) ([]string, error) {
	all, err := s.gw.GetMarkets(ctx)
	if err != nil {
		return nil, err
	}

	priority := map[string]bool{}
	for _, m := range s.symbolsCfg.PriorityMarkets {
		priority[m] = true
	}

	var priorityFound, rest []string
	for _, m := range all {
		if !strings.HasPrefix(m.Market, "KRW-") {
			continue
		}
		if s.symbolsCfg.ExcludeWarning && m.WarningStatus != "" && m.WarningStatus != "NONE" {
			continue
		}
		if priority[m.Market] {
			priorityFound = append(priorityFound, m.Market)
		} else {
			rest = append(rest, m.Market)
		}
	}

	final := append([]string{}, priorityFound...)
	if remaining := s.symbolsCfg.MaxMarketsToScan - len(priorityFound); remaining > 0 {
		sort.Strings(rest)
		if remaining > len(rest) {
			remaining = len(rest)
		}
		final = append(final, rest[:remaining]...)
	}

	if s.log != nil {
		s.log.Infof("market filtering complete: %d total, %d priority, %d final", len(all), len(priorityFound), len(final))
	}
	return final, nil
}

type marketData struct {
	candles   []model.Candle
	orderbook *model.OrderbookSnapshot
}

// fetchMarketData fans candle and orderbook requests out across at most
// maxConcurrentFetch goroutines, plus a single shared reference-symbol
// candle fetch for relative-strength scoring.
func (s *Scanner) fetchMarketData(ctx context.Context, markets []string, scannerCfg config.ScannerConfig) (map[string]marketData, []model.Candle) {
	refCandles, err := s.gw.GetCandles(ctx, scannerCfg.RSReferenceSymbol, scannerCfg.CandleUnitMin, scannerCfg.CandleCount)
	if err != nil && s.log != nil {
		s.log.Warnf("reference candle fetch failed for %s: %v", scannerCfg.RSReferenceSymbol, err)
	}

	orderbooks, err := s.gw.GetOrderbook(ctx, markets)
	if err != nil && s.log != nil {
		s.log.Warnf("orderbook fetch failed: %v", err)
	}
	obByMarket := make(map[string]model.OrderbookSnapshot, len(orderbooks))
	for _, ob := range orderbooks {
		obByMarket[ob.Market] = ob
	}

	concurrency := s.maxConcurrentFetch
	if concurrency <= 0 {
		concurrency = 3
	}
	sem := make(chan struct{}, concurrency)

	var mu sync.Mutex
	var wg sync.WaitGroup
	out := make(map[string]marketData, len(markets))

	for _, m := range markets {
		m := m
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			candles, err := s.gw.GetCandles(ctx, m, scannerCfg.CandleUnitMin, scannerCfg.CandleCount)
			if err != nil {
				if s.log != nil {
					s.log.Warnf("candle fetch failed for %s: %v", m, err)
				}
				return
			}

			data := marketData{candles: candles}
			if ob, ok := obByMarket[m]; ok {
				data.orderbook = &ob
			}

			mu.Lock()
			out[m] = data
			mu.Unlock()
		}()
	}
	wg.Wait()

	return out, refCandles
}

// ScanMarkets performs one full scan: universe selection, fan-out fetch,
// feature computation, hard-filter, and ranking to top CandidateCount.
func (s *Scanner) ScanMarkets(ctx context.Context, scannerCfg config.ScannerConfig, now time.Time) (Result, error) {
	start := time.Now()

	markets, err := s.GetTradableMarkets(ctx)
	if err != nil {
		return Result{}, err
	}
	if len(markets) == 0 {
		if s.log != nil {
			s.log.Warnf("no tradable markets found")
		}
		return Result{ScanDuration: time.Since(start), Timestamp: now}, nil
	}

	data, refCandles := s.fetchMarketData(ctx, markets, scannerCfg)

	var processed []model.FeatureVector
	for market, md := range data {
		candles, validation := s.processor.Process(market, md.candles)
		if !validation.IsValid {
			if s.log != nil {
				s.log.Debugf("skipping %s: data quality invalid (score=%.2f)", market, validation.QualityScore)
			}
			continue
		}

		refCloses := make([]float64, len(refCandles))
		for i, c := range refCandles {
			refCloses[i], _ = c.Close.Float64()
		}

		in := features.Input{Market: market, Candles: candles, ReferenceClose: refCloses, Orderbook: md.orderbook, Now: now}
		fv, ok := s.calc.CalculateAll(in)
		if !ok {
			continue
		}
		processed = append(processed, fv)
	}

	var filtered []model.FeatureVector
	for _, fv := range processed {
		if ok, reasons := s.calc.Validate(fv); ok {
			filtered = append(filtered, fv)
		} else if s.log != nil {
			s.log.Debugf("filtered out %s: %s", fv.Market, strings.Join(reasons, ", "))
		}
	}

	sort.Slice(filtered, func(i, j int) bool { return filtered[i].FinalScore > filtered[j].FinalScore })

	candidateCount := scannerCfg.CandidateCount
	if candidateCount > len(filtered) {
		candidateCount = len(filtered)
	}
	top := append([]model.FeatureVector{}, filtered[:candidateCount]...)

	result := Result{
		Candidates: top, TotalMarkets: len(markets), ProcessedMarkets: len(processed),
		FilteredMarkets: len(filtered), ScanDuration: time.Since(start), Timestamp: now,
	}
	if s.log != nil {
		s.log.Infof("scan complete: %d markets, %d processed, %d filtered, %d candidates (%.2fs)",
			result.TotalMarkets, result.ProcessedMarkets, result.FilteredMarkets, len(top), result.ScanDuration.Seconds())
	}
	metrics.RecordScan(result.ScanDuration.Seconds(), result.TotalMarkets, len(top))
	return result, nil
}
