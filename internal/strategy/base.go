package strategy

import (
	"fmt"
	"math"
)

// BaseStrategy provides shared parameter and sizing helpers for strategies.
type BaseStrategy struct {
	DefaultSize float64
}

// FloatParam reads a numeric parameter, accepting the types a JSON or YAML
// decoded parameter map may carry.
func FloatParam(params map[string]interface{}, name string, fallback float64) (float64, error) {
	raw, ok := params[name]
	if !ok || raw == nil {
		return fallback, nil
	}
	switch v := raw.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	}
	return 0, fmt.Errorf("parameter %q: expected a number, got %T", name, raw)
}

// IntParam reads an integral parameter.
func IntParam(params map[string]interface{}, name string, fallback int) (int, error) {
	v, err := FloatParam(params, name, float64(fallback))
	if err != nil {
		return 0, err
	}
	if v != math.Trunc(v) {
		return 0, fmt.Errorf("parameter %q: expected an integer, got %v", name, v)
	}
	return int(v), nil
}

// OrderSize returns the configured order size, falling back to one unit.
func (b BaseStrategy) OrderSize() float64 {
	if b.DefaultSize > 0 {
		return b.DefaultSize
	}
	return 1
}

// windowMean averages the closing values in [end-period+1, end]. Returns
// NaN while the window has not filled yet.
func windowMean(values []float64, period, end int) float64 {
	if period <= 0 || end+1 < period {
		return math.NaN()
	}
	sum := 0.0
	for i := end - period + 1; i <= end; i++ {
		sum += values[i]
	}
	return sum / float64(period)
}
