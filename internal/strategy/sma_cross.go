package strategy

import (
	"context"
	"fmt"
	"math"

	"github.com/yourusername/quantbench/internal/models"
)

// SMACrossStrategy buys when the fast moving average of closes crosses
// above the slow one and exits the full position on the opposite cross.
type SMACrossStrategy struct {
	BaseStrategy
	FastPeriod int
	SlowPeriod int
}

// NewSMACross builds the strategy from a parameter map. Recognized
// parameters: fast (default 10), slow (default 30), size (default 1).
func NewSMACross(params map[string]interface{}) (Strategy, error) {
	fast, err := IntParam(params, "fast", 10)
	if err != nil {
		return nil, err
	}
	slow, err := IntParam(params, "slow", 30)
	if err != nil {
		return nil, err
	}
	size, err := FloatParam(params, "size", 1)
	if err != nil {
		return nil, err
	}
	if fast <= 0 || slow <= 0 {
		return nil, fmt.Errorf("sma_cross: periods must be positive (fast=%d slow=%d)", fast, slow)
	}
	if fast >= slow {
		return nil, fmt.Errorf("sma_cross: fast period %d must be below slow period %d", fast, slow)
	}
	return &SMACrossStrategy{
		BaseStrategy: BaseStrategy{DefaultSize: size},
		FastPeriod:   fast,
		SlowPeriod:   slow,
	}, nil
}

// Name returns the strategy name.
func (s *SMACrossStrategy) Name() string {
	return "sma_cross"
}

// Parameters returns the strategy parameters.
func (s *SMACrossStrategy) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"fast": s.FastPeriod,
		"slow": s.SlowPeriod,
		"size": s.DefaultSize,
	}
}

// Evaluate emits at most one signal per symbol per bar.
func (s *SMACrossStrategy) Evaluate(ctx context.Context, bar BarContext) ([]Signal, error) {
	_ = ctx
	var signals []Signal
	for _, symbol := range sortedSymbols(bar.History) {
		history := bar.History[symbol]
		closes := make([]float64, len(history))
		for i, candle := range history {
			closes[i] = candle.Close
		}

		end := len(closes) - 1
		fastNow := windowMean(closes, s.FastPeriod, end)
		slowNow := windowMean(closes, s.SlowPeriod, end)
		fastPrev := windowMean(closes, s.FastPeriod, end-1)
		slowPrev := windowMean(closes, s.SlowPeriod, end-1)
		if math.IsNaN(fastNow) || math.IsNaN(slowNow) || math.IsNaN(fastPrev) || math.IsNaN(slowPrev) {
			continue
		}

		_, holding := bar.Positions[symbol]
		price := closes[end]

		if fastPrev <= slowPrev && fastNow > slowNow && !holding {
			signals = append(signals, Signal{
				Symbol: symbol,
				Side:   models.SideBuy,
				Price:  price,
				Size:   s.OrderSize(),
				Reason: "fast SMA crossed above slow SMA",
			})
		} else if fastPrev >= slowPrev && fastNow < slowNow && holding {
			signals = append(signals, Signal{
				Symbol: symbol,
				Side:   models.SideSell,
				Price:  price,
				Size:   bar.Positions[symbol].NetSize,
				Reason: "fast SMA crossed below slow SMA",
			})
		}
	}
	return signals, nil
}
