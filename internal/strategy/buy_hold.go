package strategy

import (
	"context"

	"github.com/yourusername/quantbench/internal/models"
)

// BuyHoldStrategy buys a fixed size of every symbol on the first bar and
// never trades again.
type BuyHoldStrategy struct {
	BaseStrategy
}

// NewBuyHold builds the strategy from a parameter map. Recognized
// parameters: size (default 1).
func NewBuyHold(params map[string]interface{}) (Strategy, error) {
	size, err := FloatParam(params, "size", 1)
	if err != nil {
		return nil, err
	}
	return &BuyHoldStrategy{BaseStrategy: BaseStrategy{DefaultSize: size}}, nil
}

// Name returns the strategy name.
func (s *BuyHoldStrategy) Name() string {
	return "buy_hold"
}

// Parameters returns the strategy parameters.
func (s *BuyHoldStrategy) Parameters() map[string]interface{} {
	return map[string]interface{}{"size": s.DefaultSize}
}

// Evaluate emits one buy per symbol on bar zero.
func (s *BuyHoldStrategy) Evaluate(ctx context.Context, bar BarContext) ([]Signal, error) {
	_ = ctx
	if bar.Index != 0 {
		return nil, nil
	}
	var signals []Signal
	for _, symbol := range sortedSymbols(bar.Bars) {
		signals = append(signals, Signal{
			Symbol: symbol,
			Side:   models.SideBuy,
			Price:  bar.Bars[symbol].Close,
			Size:   s.OrderSize(),
			Reason: "initial allocation",
		})
	}
	return signals, nil
}
