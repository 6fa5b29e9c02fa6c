package backtest

import "github.com/yourusername/quantbench/internal/models"

// CostModel converts a requested fill into an effective price and a
// commission charge. Slippage moves the price against the taker; commission
// is a fraction of trade notional.
type CostModel struct {
	CommissionRate float64
	SlippageRate   float64
}

// NewCostModel validates the rates and returns a cost model.
func NewCostModel(commissionRate, slippageRate float64) (CostModel, error) {
	if commissionRate < 0 {
		return CostModel{}, NewConfigurationError("commission rate must not be negative, got %v", commissionRate)
	}
	if slippageRate < 0 {
		return CostModel{}, NewConfigurationError("slippage rate must not be negative, got %v", slippageRate)
	}
	return CostModel{CommissionRate: commissionRate, SlippageRate: slippageRate}, nil
}

// EffectivePrice applies slippage to the requested price: buys fill above,
// sells fill below.
func (c CostModel) EffectivePrice(side models.Side, price float64) (float64, error) {
	if price < 0 {
		return 0, NewConfigurationError("price must not be negative, got %v", price)
	}
	switch side {
	case models.SideBuy:
		return price * (1 + c.SlippageRate), nil
	case models.SideSell:
		return price * (1 - c.SlippageRate), nil
	}
	return 0, NewConfigurationError("unknown side %q", string(side))
}

// Commission returns the fee charged on the given trade notional.
func (c CostModel) Commission(cost float64) (float64, error) {
	if cost < 0 {
		return 0, NewConfigurationError("cost must not be negative, got %v", cost)
	}
	return cost * c.CommissionRate, nil
}
