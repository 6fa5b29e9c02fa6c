// Package indicator computes technical indicator series from candle data.
// Every series is aligned 1:1 with its input candles; positions before the
// indicator warms up hold NaN.
package indicator

import (
	"fmt"
	"math"

	"github.com/yourusername/quantbench/internal/models"
)

// Spec requests one indicator series by name. Name is how strategies look
// the series up in their per-bar context.
type Spec struct {
	Name   string                 `json:"name"`
	Type   string                 `json:"type"`
	Params map[string]interface{} `json:"params"`
}

// Supported indicator types.
const (
	TypeSMA = "sma"
	TypeEMA = "ema"
	TypeRSI = "rsi"
)

// Engine calculates indicator series. Stateless; safe for reuse across
// backtests.
type Engine struct{}

// NewEngine returns an indicator engine.
func NewEngine() *Engine {
	return &Engine{}
}

// Calculate produces the indicator series for the given candles.
func (e *Engine) Calculate(indicatorType string, params map[string]interface{}, candles []models.Candle) ([]float64, error) {
	period, err := periodParam(params)
	if err != nil {
		return nil, err
	}
	closes := make([]float64, len(candles))
	for i, candle := range candles {
		closes[i] = candle.Close
	}

	switch indicatorType {
	case TypeSMA:
		return SMA(closes, period), nil
	case TypeEMA:
		return EMA(closes, period), nil
	case TypeRSI:
		return RSI(closes, period), nil
	}
	return nil, fmt.Errorf("unknown indicator type %q", indicatorType)
}

// SMA computes the simple moving average of values over period.
func SMA(values []float64, period int) []float64 {
	out := nanSeries(len(values))
	if period <= 0 {
		return out
	}
	sum := 0.0
	for i, v := range values {
		sum += v
		if i >= period {
			sum -= values[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}
	return out
}

// EMA computes the exponential moving average of values over period,
// seeded with the SMA of the first period values.
func EMA(values []float64, period int) []float64 {
	out := nanSeries(len(values))
	if period <= 0 || len(values) < period {
		return out
	}
	seed := 0.0
	for i := 0; i < period; i++ {
		seed += values[i]
	}
	prev := seed / float64(period)
	out[period-1] = prev

	multiplier := 2.0 / float64(period+1)
	for i := period; i < len(values); i++ {
		prev = (values[i]-prev)*multiplier + prev
		out[i] = prev
	}
	return out
}

// RSI computes the relative strength index over period using Wilder's
// smoothing.
func RSI(values []float64, period int) []float64 {
	out := nanSeries(len(values))
	if period <= 0 || len(values) <= period {
		return out
	}

	avgGain := 0.0
	avgLoss := 0.0
	for i := 1; i <= period; i++ {
		change := values[i] - values[i-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss -= change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)
	out[period] = rsiValue(avgGain, avgLoss)

	for i := period + 1; i < len(values); i++ {
		change := values[i] - values[i-1]
		gain := 0.0
		loss := 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
		out[i] = rsiValue(avgGain, avgLoss)
	}
	return out
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

func nanSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

func periodParam(params map[string]interface{}) (int, error) {
	raw, ok := params["period"]
	if !ok {
		return 0, fmt.Errorf("indicator params: period is required")
	}
	switch v := raw.(type) {
	case int:
		if v > 0 {
			return v, nil
		}
	case float64:
		if v > 0 && v == math.Trunc(v) {
			return int(v), nil
		}
	}
	return 0, fmt.Errorf("indicator params: period must be a positive integer, got %v", raw)
}
