// Package models defines the core market data and trading types shared
// across the backtesting engine.
package models

import (
	"fmt"
	"time"
)

// Timeframe identifies the bar interval of a candle series.
type Timeframe string

// Supported timeframes.
const (
	Timeframe1m  Timeframe = "1m"
	Timeframe5m  Timeframe = "5m"
	Timeframe15m Timeframe = "15m"
	Timeframe1h  Timeframe = "1h"
	Timeframe4h  Timeframe = "4h"
	Timeframe1d  Timeframe = "1d"
)

// Duration returns the bar interval as a time.Duration.
func (t Timeframe) Duration() (time.Duration, error) {
	switch t {
	case Timeframe1m:
		return time.Minute, nil
	case Timeframe5m:
		return 5 * time.Minute, nil
	case Timeframe15m:
		return 15 * time.Minute, nil
	case Timeframe1h:
		return time.Hour, nil
	case Timeframe4h:
		return 4 * time.Hour, nil
	case Timeframe1d:
		return 24 * time.Hour, nil
	}
	return 0, fmt.Errorf("unknown timeframe %q", string(t))
}

// BarsPerYear returns the number of bars in a calendar year for this
// timeframe, assuming markets that trade around the clock. Used to
// annualize per-bar return statistics.
func (t Timeframe) BarsPerYear() float64 {
	d, err := t.Duration()
	if err != nil {
		return 0
	}
	return float64(365*24*time.Hour) / float64(d)
}

// Valid reports whether the timeframe is one of the supported intervals.
func (t Timeframe) Valid() bool {
	_, err := t.Duration()
	return err == nil
}

// Candle is one OHLCV sample for a symbol at a fixed time step.
type Candle struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}
