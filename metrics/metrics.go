package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Registry is the custom prometheus registry for synapsestrike-auto metrics.
	Registry = prometheus.NewRegistry()

	mu sync.RWMutex

	// ============================================
	// Scanner Metrics
	// ============================================

	ScanDuration = promauto.With(Registry).NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "synapsestrike",
			Subsystem: "scanner",
			Name:      "scan_duration_seconds",
			Help:      "Duration of one full market scan",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
		},
	)

	MarketsScanned = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: "synapsestrike",
			Subsystem: "scanner",
			Name:      "markets_scanned",
			Help:      "Number of markets evaluated in the last scan",
		},
	)

	CandidatesFound = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: "synapsestrike",
			Subsystem: "scanner",
			Name:      "candidates_found",
			Help:      "Number of ranked candidates produced by the last scan",
		},
	)

	// ============================================
	// Signal Metrics
	// ============================================

	SignalsGenerated = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "synapsestrike",
			Subsystem: "signals",
			Name:      "generated_total",
			Help:      "Total signals generated, by strategy",
		},
		[]string{"strategy"},
	)

	SignalsRejected = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "synapsestrike",
			Subsystem: "signals",
			Name:      "rejected_total",
			Help:      "Total signals rejected by validation or risk assessment",
		},
		[]string{"strategy", "reason"},
	)

	// ============================================
	// Risk Metrics
	// ============================================

	DailyDrawdownPct = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: "synapsestrike",
			Subsystem: "risk",
			Name:      "daily_drawdown_pct",
			Help:      "Current daily P&L as a percentage of starting balance",
		},
	)

	DailyDrawdownLimitHit = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: "synapsestrike",
			Subsystem: "risk",
			Name:      "daily_drawdown_limit_hit",
			Help:      "Whether the daily drawdown limit has been hit (1) or not (0)",
		},
	)

	MarketsBanned = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: "synapsestrike",
			Subsystem: "risk",
			Name:      "markets_banned",
			Help:      "Number of markets currently under a consecutive-loss ban",
		},
	)

	// ============================================
	// Order / Position Metrics
	// ============================================

	OrderFillLatency = promauto.With(Registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "synapsestrike",
			Subsystem: "orders",
			Name:      "fill_latency_seconds",
			Help:      "Time from order submission to terminal fill state",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"market", "is_paper"},
	)

	OrdersTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "synapsestrike",
			Subsystem: "orders",
			Name:      "total",
			Help:      "Total orders submitted, by terminal status",
		},
		[]string{"status", "is_paper"},
	)

	SlippageBP = promauto.With(Registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "synapsestrike",
			Subsystem: "orders",
			Name:      "slippage_bp",
			Help:      "Observed slippage in basis points for filled orders",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
		},
		[]string{"market"},
	)

	PositionsOpen = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: "synapsestrike",
			Subsystem: "position",
			Name:      "open_count",
			Help:      "Number of currently open positions",
		},
	)

	PositionUnrealizedPnL = promauto.With(Registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "synapsestrike",
			Subsystem: "position",
			Name:      "unrealized_pnl_krw",
			Help:      "Unrealized P&L per open position in KRW",
		},
		[]string{"market", "side"},
	)

	// ============================================
	// System Metrics
	// ============================================

	SystemUptime = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: "synapsestrike",
			Subsystem: "system",
			Name:      "uptime_seconds",
			Help:      "System uptime in seconds",
		},
	)

	TradingPaused = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: "synapsestrike",
			Subsystem: "system",
			Name:      "trading_paused",
			Help:      "Whether the trading loop is currently paused (1) or active (0)",
		},
	)
)

// RecordScan folds one completed scan's results into the scanner gauges.
func RecordScan(durationSeconds float64, marketsScanned, candidatesFound int) {
	mu.Lock()
	defer mu.Unlock()

	ScanDuration.Observe(durationSeconds)
	MarketsScanned.Set(float64(marketsScanned))
	CandidatesFound.Set(float64(candidatesFound))
}

// RecordSignalGenerated increments the per-strategy signal counter.
func RecordSignalGenerated(strategy string) {
	SignalsGenerated.WithLabelValues(strategy).Inc()
}

// RecordSignalRejected increments the per-strategy, per-reason rejection counter.
func RecordSignalRejected(strategy, reason string) {
	SignalsRejected.WithLabelValues(strategy, reason).Inc()
}

// RecordRiskStatus updates the drawdown and ban gauges from a risk snapshot.
func RecordRiskStatus(dailyPnLPct float64, ddlHit bool, bannedMarkets int) {
	mu.Lock()
	defer mu.Unlock()

	DailyDrawdownPct.Set(dailyPnLPct)
	if ddlHit {
		DailyDrawdownLimitHit.Set(1)
	} else {
		DailyDrawdownLimitHit.Set(0)
	}
	MarketsBanned.Set(float64(bannedMarkets))
}

// RecordOrder folds a terminal OrderResult into the fill-latency, count, and
// slippage metrics.
func RecordOrder(market, status string, isPaper bool, fillLatencySeconds, slippageBP float64) {
	paperLabel := "false"
	if isPaper {
		paperLabel = "true"
	}
	OrdersTotal.WithLabelValues(status, paperLabel).Inc()
	if status == "filled" {
		OrderFillLatency.WithLabelValues(market, paperLabel).Observe(fillLatencySeconds)
		SlippageBP.WithLabelValues(market).Observe(slippageBP)
	}
}

// UpdatePositionMetrics refreshes the open-position gauges for one market.
func UpdatePositionMetrics(market, side string, unrealizedPnL float64) {
	PositionUnrealizedPnL.WithLabelValues(market, side).Set(unrealizedPnL)
}

// ClearPositionMetrics removes a closed position's gauge series.
func ClearPositionMetrics(market, side string) {
	PositionUnrealizedPnL.DeleteLabelValues(market, side)
}

// SetPositionsOpen sets the count of currently open positions.
func SetPositionsOpen(count int) {
	PositionsOpen.Set(float64(count))
}

// SetTradingPaused records whether the trading loop is paused.
func SetTradingPaused(paused bool) {
	val := 0.0
	if paused {
		val = 1.0
	}
	TradingPaused.Set(val)
}

// Init registers the standard go/process collectors alongside the
// domain-specific ones above.
func Init() {
	Registry.MustRegister(prometheus.NewGoCollector())
	Registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
}
