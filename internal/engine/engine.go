// Package engine is the Trading System Orchestrator: it wires the
// Scanner, Signal Manager, Risk Guard, and Order Executor into one
// cooperative tick loop (SPEC_FULL.md §5).
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/poorman/synapsestrike-auto/api"
	"github.com/poorman/synapsestrike-auto/internal/config"
	"github.com/poorman/synapsestrike-auto/internal/exec"
	"github.com/poorman/synapsestrike-auto/internal/gateway"
	"github.com/poorman/synapsestrike-auto/internal/logger"
	"github.com/poorman/synapsestrike-auto/internal/model"
	"github.com/poorman/synapsestrike-auto/internal/notify"
	"github.com/poorman/synapsestrike-auto/internal/risk"
	"github.com/poorman/synapsestrike-auto/internal/scanner"
	"github.com/poorman/synapsestrike-auto/internal/signals"
	"github.com/poorman/synapsestrike-auto/internal/timeutil"
	"github.com/poorman/synapsestrike-auto/metrics"
	"github.com/poorman/synapsestrike-auto/store"
)

// fallbackPaperBalance seeds the paper account when the gateway has no
// real account to query (pure paper mode with no credentials).
const fallbackPaperBalance = 1_000_000

// riskStatusLogInterval is how often the idle loop emits a risk-status
// event even with nothing else happening.
const riskStatusLogInterval = 10 * time.Minute

// sweepCleanupInterval is how often the signal manager prunes expired
// liquidity-sweep events for every tracked market, including markets not
// seen in a recent scan.
const sweepCleanupInterval = 1 * time.Hour

// System owns every collaborator and the mutable TradingState for one
// run. Not safe for concurrent use from outside RunTradingLoop; Pause/
// Resume/Stop/SystemStatus are the only methods meant to be called
// from another goroutine (e.g. the status API), and they take mu.
type System struct {
	cfg      config.Config
	gw       gateway.Gateway
	scan     *scanner.Scanner
	manager  *signals.Manager
	guard    *risk.Guard
	executor exec.Executor
	fileStore *store.FileStore
	journal  *store.TradeJournal
	notif    notify.Notifier
	log      *logger.Logger
	isPaper  bool

	mu         sync.Mutex
	positions  map[string]model.Position
	orders     map[string]model.OrderResult
	startedAt  time.Time
	running    bool
	paused     bool
	pauseUntil time.Time
	lastScanAt time.Time
	lastRiskLog time.Time
	lastSweepCleanup time.Time
}

// New wires a System from its already-constructed collaborators. The
// caller picks isPaper's executor (exec.NewPaper vs exec.NewLive) and
// passes it in as executor.
func New(cfg config.Config, gw gateway.Gateway, scan *scanner.Scanner, manager *signals.Manager, guard *risk.Guard, executor exec.Executor, fileStore *store.FileStore, journal *store.TradeJournal, notif notify.Notifier, log *logger.Logger, isPaper bool) *System {
	return &System{
		cfg: cfg, gw: gw, scan: scan, manager: manager, guard: guard, executor: executor,
		fileStore: fileStore, journal: journal, notif: notif, log: log, isPaper: isPaper,
		positions: make(map[string]model.Position), orders: make(map[string]model.OrderResult),
	}
}

// Initialize loads any persisted state and establishes the starting
// account balance: the gateway's real balance in live mode, or the
// fallback paper balance when no account can be queried.
func (s *System) Initialize(ctx context.Context) error {
	if s.fileStore != nil {
		state, err := s.fileStore.Load()
		if err != nil {
			return fmt.Errorf("engine: load persisted state: %w", err)
		}
		s.orders = state.Orders
		s.positions = state.Positions
	}

	balance := fallbackPaperBalance
	if accounts, err := s.gw.GetAccounts(ctx); err == nil {
		for _, a := range accounts {
			if a.Currency == "KRW" {
				balance = int(a.Balance)
				break
			}
		}
	} else if s.log != nil {
		s.log.Warnf("account balance fetch failed, falling back to paper balance %.0f: %v", float64(fallbackPaperBalance), err)
	}

	s.guard.UpdateAccountBalance(float64(balance), timeutil.Now())
	s.startedAt = time.Now()
	s.running = true

	if s.notif != nil {
		_ = s.notif.SendSystemStatus(ctx, "started", 0)
	}
	if s.log != nil {
		s.log.Infof("system initialized: mode=%s balance=%d", s.modeName(), balance)
	}
	return nil
}

func (s *System) modeName() string {
	if s.isPaper {
		return "paper"
	}
	return "live"
}

// RunTradingLoop drives the cooperative tick loop at
// signal_check_interval_seconds until ctx is cancelled or Stop is called.
func (s *System) RunTradingLoop(ctx context.Context) error {
	interval := time.Duration(s.cfg.Runtime.SignalCheckIntervalSeconds) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.cleanup(context.Background())
			return ctx.Err()
		case <-ticker.C:
			s.mu.Lock()
			running := s.running
			s.mu.Unlock()
			if !running {
				s.cleanup(context.Background())
				return nil
			}
			if err := s.tradingCycle(ctx); err != nil && s.log != nil {
				s.log.Errorf("trading cycle failed: %v", err)
			}
		}
	}
}

// tradingCycle is one iteration: should-trade check, optional scan,
// per-candidate signal processing, position management, and a
// periodic risk-status log. When trading is gated off, open positions
// are still managed and the risk-status log still runs.
func (s *System) tradingCycle(ctx context.Context) error {
	now := timeutil.Now()

	if !s.shouldTrade(now) {
		s.managePositions(ctx, now)
		s.monitorRisk(now)
		return nil
	}

	if s.shouldScan(now) {
		result, err := s.scan.ScanMarkets(ctx, s.cfg.Scanner, now)
		if err != nil {
			return fmt.Errorf("scan: %w", err)
		}
		s.mu.Lock()
		s.lastScanAt = now
		s.mu.Unlock()

		for _, candidate := range result.Candidates {
			if err := s.processMarket(ctx, candidate, now); err != nil && s.log != nil {
				s.log.Warnf("process %s failed: %v", candidate.Market, err)
			}
		}
	}

	s.managePositions(ctx, now)
	s.monitorRisk(now)
	s.cleanupSweeps(now)
	return nil
}

// cleanupSweeps prunes expired liquidity-sweep state at most once per
// sweepCleanupInterval.
func (s *System) cleanupSweeps(now time.Time) {
	s.mu.Lock()
	due := now.Sub(s.lastSweepCleanup) >= sweepCleanupInterval
	if due {
		s.lastSweepCleanup = now
	}
	s.mu.Unlock()
	if !due || s.manager == nil {
		return
	}
	s.manager.CleanupSweeps(now)
}

func (s *System) shouldScan(now time.Time) bool {
	interval := time.Duration(s.cfg.Runtime.ScanIntervalMinutes) * time.Minute
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastScanAt) >= interval
}

// shouldTrade enforces the operator pause flag, the session windows, and
// the daily-drawdown-limit halt.
func (s *System) shouldTrade(now time.Time) bool {
	s.mu.Lock()
	paused := s.paused && now.Before(s.pauseUntil)
	s.mu.Unlock()
	if paused {
		return false
	}
	if !timeutil.InAnyWindow(now, s.cfg.Runtime.SessionWindows) {
		return false
	}
	if s.guard.GetRiskStatus().Daily.DDLHit {
		return false
	}
	return true
}

// processMarket skips markets that are banned or already hold an open
// position, fetches fresh candles (price and volume come from the scan's
// feature vector), and runs the Signal Manager pipeline. A resulting signal that clears risk assessment is
// executed immediately.
func (s *System) processMarket(ctx context.Context, fv model.FeatureVector, now time.Time) error {
	s.mu.Lock()
	_, hasPosition := s.positions[fv.Market]
	s.mu.Unlock()
	if hasPosition {
		return nil
	}

	for _, banned := range s.guard.GetRiskStatus().BannedMarkets {
		if banned == fv.Market {
			return nil
		}
	}

	candles, err := s.gw.GetCandles(ctx, fv.Market, s.cfg.Scanner.CandleUnitMin, s.cfg.Scanner.CandleCount)
	if err != nil {
		return fmt.Errorf("candles: %w", err)
	}

	in := signals.GenerateInput{
		Market: fv.Market, Candles: candles, CurrentPrice: fv.Price,
		CurrentVolume: fv.Volume, Features: fv, Now: now,
	}

	best := s.manager.GetBestSignal(in)
	if best == nil {
		return nil
	}

	assessment := s.guard.AssessTradeRisk(fv.Market, best.Signal, now)
	if !assessment.IsAllowed {
		if s.log != nil {
			s.log.Debugf("signal for %s rejected: %v", fv.Market, assessment.RejectionReasons)
		}
		return nil
	}

	return s.executeTrade(ctx, best.Signal, assessment.TradeRisk.Size)
}

func (s *System) executeTrade(ctx context.Context, sig model.Signal, size float64) error {
	pos, result, err := s.executor.ExecuteSignal(ctx, sig, size)

	s.mu.Lock()
	if result != nil {
		s.orders[result.OrderID] = *result
	}
	if pos != nil {
		s.positions[pos.Market] = *pos
	}
	openCount := len(s.positions)
	s.mu.Unlock()

	s.persist()
	if result != nil {
		metrics.RecordOrder(result.Market, string(result.Status), s.isPaper, result.FilledAt.Sub(result.SubmittedAt).Seconds(), result.SlippageBP)
	}
	if pos != nil {
		metrics.SetPositionsOpen(openCount)
		metrics.UpdatePositionMetrics(pos.Market, string(pos.Side), 0)
	}

	if err != nil {
		return fmt.Errorf("execute signal: %w", err)
	}

	if s.log != nil && pos != nil {
		s.log.Infof("opened %s position in %s at %.2f (strategy=%s)", pos.Side, pos.Market, pos.EntryPrice, sig.Strategy)
	}
	return nil
}

// managePositions closes any open position whose current price has
// crossed the signal-derived stop loss or take profit. The signal that
// opened the position is the sole authority on exit levels — no
// independent percentage-based tripwire is layered on top.
func (s *System) managePositions(ctx context.Context, now time.Time) {
	s.mu.Lock()
	open := make([]model.Position, 0, len(s.positions))
	for _, p := range s.positions {
		open = append(open, p)
	}
	s.mu.Unlock()
	if len(open) == 0 {
		return
	}

	markets := make([]string, len(open))
	for i, p := range open {
		markets[i] = p.Market
	}
	tickers, err := s.gw.GetTickers(ctx, markets)
	if err != nil {
		if s.log != nil {
			s.log.Warnf("ticker fetch for position management failed: %v", err)
		}
		return
	}
	priceByMarket := make(map[string]float64, len(tickers))
	for _, t := range tickers {
		priceByMarket[t.Market] = t.TradePrice
	}

	for _, pos := range open {
		price, ok := priceByMarket[pos.Market]
		if !ok {
			continue
		}
		metrics.UpdatePositionMetrics(pos.Market, string(pos.Side), positionPnL(pos, price))

		reason := exitReason(pos, price)
		if reason == "" {
			continue
		}
		s.closePosition(ctx, pos, reason, price, now)
	}
}

func exitReason(pos model.Position, price float64) string {
	if pos.Side == model.SideBuy {
		if price <= pos.StopLossPrice {
			return "stop_loss"
		}
		if price >= pos.TakeProfitPrice {
			return "take_profit"
		}
		return ""
	}
	if price >= pos.StopLossPrice {
		return "stop_loss"
	}
	if price <= pos.TakeProfitPrice {
		return "take_profit"
	}
	return ""
}

func (s *System) closePosition(ctx context.Context, pos model.Position, reason string, currentPrice float64, now time.Time) {
	result, err := s.executor.ClosePosition(ctx, pos, reason)
	if result != nil {
		s.mu.Lock()
		s.orders[result.OrderID] = *result
		s.mu.Unlock()
		s.persist()
		metrics.RecordOrder(result.Market, string(result.Status), s.isPaper, result.FilledAt.Sub(result.SubmittedAt).Seconds(), result.SlippageBP)
	}
	if err != nil {
		if s.log != nil {
			s.log.Errorf("close %s failed: %v", pos.Market, err)
		}
		return
	}

	exitPrice := result.FilledPrice
	if exitPrice == 0 {
		exitPrice = currentPrice
	}
	pnl := positionPnL(pos, exitPrice) - result.Commission
	isWin := pnl > 0

	s.guard.RecordTradeResult(pos.Market, isWin, pnl, now)

	s.mu.Lock()
	delete(s.positions, pos.Market)
	openCount := len(s.positions)
	s.mu.Unlock()
	s.persist()
	metrics.ClearPositionMetrics(pos.Market, string(pos.Side))
	metrics.SetPositionsOpen(openCount)

	if s.journal != nil {
		_ = s.journal.RecordTrade(store.JournalEntry{
			Market: pos.Market, Side: string(pos.Side), EntryPrice: pos.EntryPrice, ExitPrice: exitPrice,
			Quantity: pos.Quantity, RealizedPnL: pnl, Commission: result.Commission, ExitReason: reason,
			EntryTime: pos.EntryTime, ExitTime: now, IsPaper: s.isPaper,
		})
	}
	if s.log != nil {
		s.log.Infof("closed %s position in %s: reason=%s pnl=%.0f", pos.Side, pos.Market, reason, pnl)
	}
}

func positionPnL(pos model.Position, exitPrice float64) float64 {
	if pos.Side == model.SideBuy {
		return (exitPrice - pos.EntryPrice) * pos.Quantity
	}
	return (pos.EntryPrice - exitPrice) * pos.Quantity
}

// monitorRisk logs the current risk snapshot at most once per
// riskStatusLogInterval, mirroring the periodic health log the original
// system emits during idle ticks.
func (s *System) monitorRisk(now time.Time) {
	s.mu.Lock()
	due := now.Sub(s.lastRiskLog) >= riskStatusLogInterval
	if due {
		s.lastRiskLog = now
	}
	s.mu.Unlock()
	if !due {
		return
	}

	status := s.guard.GetRiskStatus()
	if s.log != nil {
		s.log.Infof("risk status: balance=%.0f daily_pnl_pct=%.2f%% banned=%v", status.Balance, status.Daily.DailyPnLPct*100, status.BannedMarkets)
	}
}

func (s *System) persist() {
	if s.fileStore == nil {
		return
	}
	s.mu.Lock()
	orders := copyOrders(s.orders)
	positions := copyPositions(s.positions)
	s.mu.Unlock()

	if err := s.fileStore.SaveOrders(orders); err != nil && s.log != nil {
		s.log.Errorf("persist orders: %v", err)
	}
	if err := s.fileStore.SavePositions(positions); err != nil && s.log != nil {
		s.log.Errorf("persist positions: %v", err)
	}
}

func copyOrders(in map[string]model.OrderResult) map[string]model.OrderResult {
	out := make(map[string]model.OrderResult, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func copyPositions(in map[string]model.Position) map[string]model.Position {
	out := make(map[string]model.Position, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// Stop ends the trading loop gracefully after the current cycle.
func (s *System) Stop() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

// PauseTemporarily suspends new entries for the given duration; open
// positions continue to be managed.
func (s *System) PauseTemporarily(d time.Duration) {
	s.mu.Lock()
	s.paused = true
	s.pauseUntil = time.Now().Add(d)
	s.mu.Unlock()
	metrics.SetTradingPaused(true)
}

func (s *System) Resume() {
	s.mu.Lock()
	s.paused = false
	s.mu.Unlock()
	metrics.SetTradingPaused(false)
}

// cleanup writes the final persisted state and a session summary report,
// mirroring the original system's end-of-run artifact.
func (s *System) cleanup(ctx context.Context) {
	s.persist()
	if err := s.writeSessionSummary(); err != nil && s.log != nil {
		s.log.Errorf("write session summary: %v", err)
	}
	if s.notif != nil {
		uptime := time.Since(s.startedAt).Minutes()
		_ = s.notif.SendSystemStatus(ctx, "stopped", uptime)
	}
}

// sessionSummary is the JSON shape written to
// runtime/reports/trading_summary_<stamp>.json at shutdown.
type sessionSummary struct {
	Mode          string              `json:"mode"`
	StartedAt     time.Time           `json:"started_at"`
	StoppedAt     time.Time           `json:"stopped_at"`
	UptimeMinutes float64             `json:"uptime_minutes"`
	FinalBalance  float64             `json:"final_balance"`
	OpenPositions int                 `json:"open_positions"`
	RiskStatus    risk.RiskStatus     `json:"risk_status"`
}

func (s *System) writeSessionSummary() error {
	stopped := time.Now()
	s.mu.Lock()
	openCount := len(s.positions)
	s.mu.Unlock()

	summary := sessionSummary{
		Mode: s.modeName(), StartedAt: s.startedAt, StoppedAt: stopped,
		UptimeMinutes: stopped.Sub(s.startedAt).Minutes(),
		FinalBalance:  s.guard.GetRiskStatus().Balance,
		OpenPositions: openCount,
		RiskStatus:    s.guard.GetRiskStatus(),
	}

	dir := filepath.Join("runtime", "reports")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("engine: create reports dir: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("trading_summary_%s.json", stopped.UTC().Format("20060102T150405Z")))
	raw, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("engine: marshal session summary: %w", err)
	}
	return os.WriteFile(path, raw, 0o644)
}

// SystemStatus satisfies api.StatusProvider for the read-only status
// endpoint.
func (s *System) SystemStatus() api.SystemStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	metrics.SystemUptime.Set(time.Since(s.startedAt).Seconds())
	return api.SystemStatus{
		Mode: s.modeName(), Running: s.running, Paused: s.paused && time.Now().Before(s.pauseUntil),
		StartedAt: s.startedAt, UptimeMinutes: time.Since(s.startedAt).Minutes(),
		OpenPositions: len(s.positions), LastScanAt: s.lastScanAt,
	}
}

// RiskStatus satisfies api.StatusProvider for the read-only risk endpoint.
func (s *System) RiskStatus() risk.RiskStatus {
	return s.guard.GetRiskStatus()
}
