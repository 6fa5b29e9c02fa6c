package backtest

import (
	"errors"
	"testing"
	"time"

	"github.com/yourusername/quantbench/internal/models"
	"github.com/yourusername/quantbench/internal/strategy"
)

func validConfig() BacktestConfig {
	return BacktestConfig{
		Strategy:       &scriptedStrategy{},
		Symbols:        []string{"BTC-USD"},
		Timeframe:      models.Timeframe1h,
		StartDate:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:        time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		InitialCapital: 10000,
	}
}

func TestConfigValidate(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*BacktestConfig)
	}{
		{"no strategy", func(c *BacktestConfig) { c.Strategy = nil }},
		{"no symbols", func(c *BacktestConfig) { c.Symbols = nil }},
		{"empty symbol", func(c *BacktestConfig) { c.Symbols = []string{""} }},
		{"duplicate symbol", func(c *BacktestConfig) { c.Symbols = []string{"BTC-USD", "BTC-USD"} }},
		{"bad timeframe", func(c *BacktestConfig) { c.Timeframe = models.Timeframe("2w") }},
		{"zero start", func(c *BacktestConfig) { c.StartDate = time.Time{} }},
		{"start after end", func(c *BacktestConfig) { c.StartDate = c.EndDate.Add(time.Hour) }},
		{"start equals end", func(c *BacktestConfig) { c.StartDate = c.EndDate }},
		{"zero capital", func(c *BacktestConfig) { c.InitialCapital = 0 }},
		{"negative commission", func(c *BacktestConfig) { c.CommissionRate = -0.001 }},
		{"negative slippage", func(c *BacktestConfig) { c.SlippageRate = -0.001 }},
	}
	for _, tc := range cases {
		cfg := validConfig()
		tc.mutate(&cfg)
		if err := cfg.Validate(); !IsKind(err, KindConfiguration) {
			t.Fatalf("%s: expected configuration error, got %v", tc.name, err)
		}
	}
}

func TestConfigWithParamsCopies(t *testing.T) {
	base := validConfig()
	derived := base.WithParams(map[string]interface{}{"fast": 5.0})

	if base.Params != nil {
		t.Fatalf("base config mutated: %v", base.Params)
	}
	if derived.Params["fast"] != 5.0 {
		t.Fatalf("derived params missing, got %v", derived.Params)
	}
	if derived.InitialCapital != base.InitialCapital || derived.Timeframe != base.Timeframe {
		t.Fatalf("derived config lost base fields")
	}
}

func TestConfigBuildStrategy(t *testing.T) {
	fixed := &scriptedStrategy{}
	cfg := validConfig()
	cfg.Strategy = fixed
	strat, err := cfg.BuildStrategy()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strat != strategy.Strategy(fixed) {
		t.Fatalf("expected the configured strategy instance back")
	}

	// A factory takes precedence and sees the config params.
	var seen map[string]interface{}
	cfg.StrategyFactory = func(params map[string]interface{}) (strategy.Strategy, error) {
		seen = params
		return &scriptedStrategy{}, nil
	}
	cfg.Params = map[string]interface{}{"fast": 5.0}
	if _, err := cfg.BuildStrategy(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seen["fast"] != 5.0 {
		t.Fatalf("factory did not receive params, got %v", seen)
	}

	cfg.StrategyFactory = func(params map[string]interface{}) (strategy.Strategy, error) {
		return nil, errors.New("bad params")
	}
	if _, err := cfg.BuildStrategy(); !IsKind(err, KindConfiguration) {
		t.Fatalf("expected configuration error from failing factory, got %v", err)
	}
}
