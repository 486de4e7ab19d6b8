// Package exec is the Order Executor: turns a Signal Manager decision into
// a submitted order and, on fill, an open Position. Two backends share one
// contract — Paper simulates fills locally, Live drives the venue gateway.
package exec

import (
	"context"

	"github.com/google/uuid"
	"github.com/poorman/synapsestrike-auto/internal/model"
)

// Executor is the shared contract the orchestrator drives. A Position
// returned by ExecuteSignal may be nil if the order did not fill (expired,
// rejected, or the paper fill-probability roll missed).
type Executor interface {
	ExecuteSignal(ctx context.Context, sig model.Signal, riskSize float64) (*model.Position, *model.OrderResult, error)
	ClosePosition(ctx context.Context, pos model.Position, reason string) (*model.OrderResult, error)
}

// tif is the time-in-force every market entry/exit order carries; both
// backends use IOC so a resting order never silently outlives a tick.
const tif = model.TIFIOC

func sideFor(sig model.Signal) model.OrderSide {
	if sig.IsLong() {
		return model.SideBuy
	}
	return model.SideSell
}

func exitSideFor(pos model.Position) model.OrderSide {
	if pos.Side == model.SideBuy {
		return model.SideSell
	}
	return model.SideBuy
}

func newOrderID() string {
	return uuid.NewString()
}
