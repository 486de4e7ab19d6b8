package signals

import (
	"math"
	"sort"
	"time"

	"github.com/poorman/synapsestrike-auto/internal/model"
	"github.com/poorman/synapsestrike-auto/metrics"
)

const (
	signalHistoryWindow = 60 * time.Minute
	signalHistoryCap    = 1000
	conflictTimingGap   = 5 * time.Minute
	conflictPriceBand   = 0.01
)

// Context wraps an emitted Signal with the bookkeeping the Manager needs
// to resolve conflicts and rank candidates.
type Context struct {
	Signal   model.Signal
	IsValid  bool
}

// Manager aggregates the three strategies' outputs, detects conflicts,
// prioritizes, and selects the best valid signal per market per tick.
type Manager struct {
	strategies []Strategy
	history    map[string][]Context
}

func NewManager(strategies ...Strategy) *Manager {
	return &Manager{strategies: strategies, history: make(map[string][]Context)}
}

// GenerateSignals invokes every active, enabled strategy for the market
// and returns their contexts, tagging validity. Strategy errors are
// recorded but never abort the others (result-sum, no exception
// swallowing).
func (m *Manager) GenerateSignals(in GenerateInput) []Context {
	var out []Context
	for _, strat := range m.strategies {
		if !strat.ActiveNow(in.Now) {
			continue
		}
		sig, abstain, err := strat.Generate(in)
		if err != nil {
			metrics.RecordSignalRejected(strat.Name(), "error")
			continue
		}
		if sig == nil {
			_ = abstain
			continue
		}
		valid := strat.Validate(*sig)
		if valid {
			metrics.RecordSignalGenerated(strat.Name())
		} else {
			metrics.RecordSignalRejected(strat.Name(), "invalid")
		}
		out = append(out, Context{Signal: *sig, IsValid: valid})
	}

	m.history[in.Market] = append(m.history[in.Market], out...)
	m.cleanupOldSignals(in.Market, in.Now)

	return out
}

// sweepCleaner is implemented by Sweep to prune its per-market event
// history on a schedule independent of signal generation — a market
// that goes untouched for a while (banned, filtered out of the scan)
// never hits the inline per-call prune in updateEvents.
type sweepCleaner interface {
	CleanupOldSweeps(now time.Time)
}

// CleanupSweeps runs periodic maintenance on any strategy that needs it.
func (m *Manager) CleanupSweeps(now time.Time) {
	for _, strat := range m.strategies {
		if sc, ok := strat.(sweepCleaner); ok {
			sc.CleanupOldSweeps(now)
		}
	}
}

func (m *Manager) cleanupOldSignals(market string, now time.Time) {
	hist := m.history[market]
	cutoff := now.Add(-signalHistoryWindow)
	kept := hist[:0]
	for _, c := range hist {
		if c.Signal.Timestamp.After(cutoff) {
			kept = append(kept, c)
		}
	}
	if len(kept) > signalHistoryCap {
		kept = kept[len(kept)-signalHistoryCap:]
	}
	m.history[market] = kept
}

type conflictPair struct{ i, j int }

// DetectConflicts reports pairs whose directions oppose or whose entries
// sit within a 1% price band of each other.
func DetectConflicts(contexts []Context) []conflictPair {
	var pairs []conflictPair
	for i := 0; i < len(contexts); i++ {
		for j := i + 1; j < len(contexts); j++ {
			if contexts[i].Signal.Market != contexts[j].Signal.Market {
				continue
			}
			directionConflict := contexts[i].Signal.Direction() != contexts[j].Signal.Direction()
			overlap := pricesOverlap(contexts[i].Signal.EntryPrice, contexts[j].Signal.EntryPrice)
			if directionConflict || overlap {
				pairs = append(pairs, conflictPair{i, j})
			}
		}
	}
	return pairs
}

func pricesOverlap(a, b float64) bool {
	if a == 0 {
		return false
	}
	return math.Abs(a-b)/a <= conflictPriceBand
}

// ResolveConflicts gathers every context that appears in any conflict
// pair into a single group and keeps only that group's highest-priority
// (ties by confidence) member, if it is valid; non-conflicted contexts
// pass through unchanged.
func ResolveConflicts(contexts []Context) []Context {
	pairs := DetectConflicts(contexts)
	if len(pairs) == 0 {
		return contexts
	}

	conflicted := make(map[int]bool)
	for _, p := range pairs {
		conflicted[p.i] = true
		conflicted[p.j] = true
	}

	var result []Context
	for i, c := range contexts {
		if !conflicted[i] {
			result = append(result, c)
		}
	}

	var group []Context
	for i := range contexts {
		if conflicted[i] {
			group = append(group, contexts[i])
		}
	}
	if len(group) > 0 {
		sort.SliceStable(group, func(i, j int) bool {
			if group[i].Signal.Priority != group[j].Signal.Priority {
				return group[i].Signal.Priority < group[j].Signal.Priority
			}
			return group[i].Signal.ConfidenceScore > group[j].Signal.ConfidenceScore
		})
		if group[0].IsValid {
			result = append(result, group[0])
		}
	}

	return result
}

// prioritize orders candidates by priority asc, confidence desc,
// timestamp asc.
func prioritize(contexts []Context) []Context {
	sorted := append([]Context(nil), contexts...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i].Signal, sorted[j].Signal
		if a.Priority != b.Priority {
			return a.Priority < b.Priority
		}
		if a.ConfidenceScore != b.ConfidenceScore {
			return a.ConfidenceScore > b.ConfidenceScore
		}
		return a.Timestamp.Before(b.Timestamp)
	})
	return sorted
}

// GetBestSignal runs the full pipeline for one market/tick: generate,
// filter valid, resolve conflicts, order, return the head (or nil).
func (m *Manager) GetBestSignal(in GenerateInput) *Context {
	contexts := m.GenerateSignals(in)

	var valid []Context
	for _, c := range contexts {
		if c.IsValid {
			valid = append(valid, c)
		}
	}
	if len(valid) == 0 {
		return nil
	}

	resolved := ResolveConflicts(valid)
	if len(resolved) == 0 {
		return nil
	}

	ordered := prioritize(resolved)
	return &ordered[0]
}
