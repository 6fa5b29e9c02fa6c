package backtest

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"
)

// EquityPoint represents the total portfolio value at one instant.
type EquityPoint struct {
	Timestamp  time.Time `json:"timestamp"`
	TotalValue float64   `json:"total_value"`
}

// EquityCurve is the time series of portfolio values over a backtest. It
// holds one point before the first bar and one after every processed bar.
type EquityCurve []EquityPoint

// Returns calculates per-bar returns from the curve.
func (e EquityCurve) Returns() []float64 {
	if len(e) < 2 {
		return []float64{}
	}
	returns := make([]float64, 0, len(e)-1)
	for i := 1; i < len(e); i++ {
		prev := e[i-1].TotalValue
		if prev == 0 {
			returns = append(returns, 0)
			continue
		}
		returns = append(returns, e[i].TotalValue/prev-1)
	}
	return returns
}

// Final returns the last recorded portfolio value, or 0 for an empty curve.
func (e EquityCurve) Final() float64 {
	if len(e) == 0 {
		return 0
	}
	return e[len(e)-1].TotalValue
}

// ToCSV exports the curve as a CSV string.
func (e EquityCurve) ToCSV() string {
	var buf bytes.Buffer
	buf.WriteString("timestamp,total_value\n")
	for _, point := range e {
		buf.WriteString(point.Timestamp.Format(time.RFC3339))
		buf.WriteString(",")
		buf.WriteString(strconv.FormatFloat(point.TotalValue, 'f', 6, 64))
		buf.WriteString("\n")
	}
	return buf.String()
}

// ToJSON exports the curve as a JSON string.
func (e EquityCurve) ToJSON() string {
	data, _ := json.Marshal(e)
	return string(data)
}
