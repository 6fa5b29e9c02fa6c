package backtest

import (
	"time"

	"github.com/yourusername/quantbench/internal/indicator"
	"github.com/yourusername/quantbench/internal/models"
	"github.com/yourusername/quantbench/internal/strategy"
)

// Default cost rates applied when a config leaves them unset.
const (
	DefaultCommissionRate = 0.001
	DefaultSlippageRate   = 0.001
)

// BacktestConfig describes one simulation run. It is treated as immutable
// once the run starts.
//
// Either Strategy or StrategyFactory must be set. When StrategyFactory is
// set the strategy is rebuilt from Params before the run, which is how the
// optimizer derives per-combination configs.
type BacktestConfig struct {
	Strategy        strategy.Strategy
	StrategyFactory strategy.Factory
	Symbols         []string
	Timeframe       models.Timeframe
	StartDate       time.Time
	EndDate         time.Time
	InitialCapital  float64
	CommissionRate  float64
	SlippageRate    float64
	IndicatorSpecs  []indicator.Spec
	Params          map[string]interface{}
}

// Validate checks the config before a run starts. All violations are
// configuration errors; the run never transitions to running.
func (c BacktestConfig) Validate() error {
	if c.Strategy == nil && c.StrategyFactory == nil {
		return NewConfigurationError("a strategy or strategy factory is required")
	}
	if len(c.Symbols) == 0 {
		return NewConfigurationError("at least one symbol is required")
	}
	seen := make(map[string]bool, len(c.Symbols))
	for _, symbol := range c.Symbols {
		if symbol == "" {
			return NewConfigurationError("symbols must not be empty strings")
		}
		if seen[symbol] {
			return NewConfigurationError("duplicate symbol %q", symbol)
		}
		seen[symbol] = true
	}
	if !c.Timeframe.Valid() {
		return NewConfigurationError("unknown timeframe %q", string(c.Timeframe))
	}
	if c.StartDate.IsZero() || c.EndDate.IsZero() || !c.StartDate.Before(c.EndDate) {
		return NewConfigurationError("start date must be before end date")
	}
	if c.InitialCapital <= 0 {
		return NewConfigurationError("initial capital must be positive, got %v", c.InitialCapital)
	}
	if c.CommissionRate < 0 {
		return NewConfigurationError("commission rate must not be negative, got %v", c.CommissionRate)
	}
	if c.SlippageRate < 0 {
		return NewConfigurationError("slippage rate must not be negative, got %v", c.SlippageRate)
	}
	return nil
}

// WithParams returns a copy of the config with Params replaced. Used by the
// optimizer to derive one config per grid combination.
func (c BacktestConfig) WithParams(params map[string]interface{}) BacktestConfig {
	derived := c
	derived.Params = params
	return derived
}

// BuildStrategy resolves the strategy for this run.
func (c BacktestConfig) BuildStrategy() (strategy.Strategy, error) {
	if c.StrategyFactory != nil {
		strat, err := c.StrategyFactory(c.Params)
		if err != nil {
			return nil, &Error{Kind: KindConfiguration, Message: "failed to build strategy from parameters", Err: err}
		}
		return strat, nil
	}
	return c.Strategy, nil
}
