package strategy

import (
	"context"
	"time"

	"github.com/yourusername/quantbench/internal/models"
)

// Strategy is the capability the engine invokes once per bar. Evaluate may
// return zero or more signals; the engine applies them in emission order.
type Strategy interface {
	Name() string
	Evaluate(ctx context.Context, bar BarContext) ([]Signal, error)
	Parameters() map[string]interface{}
}

// Signal is a requested fill emitted by a strategy for the current bar.
type Signal struct {
	Symbol string      `json:"symbol"`
	Side   models.Side `json:"side"`
	Price  float64     `json:"price"`
	Size   float64     `json:"size"`
	Reason string      `json:"reason,omitempty"`
}

// BarContext is the read-only view of the simulation a strategy sees for
// one bar. History contains candles up to and including the current bar,
// never beyond it. Positions and Cash are snapshots; mutating them has no
// effect on the ledger.
type BarContext struct {
	Timestamp  time.Time
	Index      int
	Bars       map[string]models.Candle
	History    map[string][]models.Candle
	Indicators map[string]map[string]float64
	Positions  map[string]models.Position
	Cash       float64
}

// Factory constructs a strategy from a concrete parameter set. The
// optimizer uses factories to rebuild the strategy for every combination.
type Factory func(params map[string]interface{}) (Strategy, error)
