package signals

import (
	"testing"
	"time"

	"github.com/poorman/synapsestrike-auto/internal/model"
	"github.com/stretchr/testify/assert"
)

func TestResolveConflicts_PicksHighestPriority(t *testing.T) {
	now := time.Now()
	orbLong := Context{
		Signal: model.Signal{
			Kind: model.SignalORBLong, Market: "KRW-BTC", Priority: model.PriorityHigh,
			EntryPrice: 100, ConfidenceScore: 0.7, Timestamp: now,
		},
		IsValid: true,
	}
	svwapShort := Context{
		Signal: model.Signal{
			Kind: model.SignalSVWAPShort, Market: "KRW-BTC", Priority: model.PriorityMedium,
			EntryPrice: 100, ConfidenceScore: 0.9, Timestamp: now,
		},
		IsValid: true,
	}

	resolved := ResolveConflicts([]Context{orbLong, svwapShort})

	assert.Len(t, resolved, 1)
	assert.Equal(t, model.SignalORBLong, resolved[0].Signal.Kind)
}

func TestResolveConflicts_NonConflictedPassThrough(t *testing.T) {
	now := time.Now()
	btc := Context{Signal: model.Signal{Kind: model.SignalORBLong, Market: "KRW-BTC", EntryPrice: 100, Priority: model.PriorityHigh, Timestamp: now}, IsValid: true}
	eth := Context{Signal: model.Signal{Kind: model.SignalORBLong, Market: "KRW-ETH", EntryPrice: 200, Priority: model.PriorityHigh, Timestamp: now}, IsValid: true}

	resolved := ResolveConflicts([]Context{btc, eth})

	assert.Len(t, resolved, 2)
}

func TestDetectConflicts_PriceOverlapWithinOnePercent(t *testing.T) {
	now := time.Now()
	a := Context{Signal: model.Signal{Market: "KRW-BTC", Kind: model.SignalORBLong, EntryPrice: 100, Timestamp: now}}
	b := Context{Signal: model.Signal{Market: "KRW-BTC", Kind: model.SignalORBLong, EntryPrice: 100.5, Timestamp: now}}

	pairs := DetectConflicts([]Context{a, b})
	assert.Len(t, pairs, 1)
}
