package models

import "time"

// Side is the direction of a signal or fill.
type Side string

// Trade sides.
const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Valid reports whether the side is buy or sell.
func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

// Trade records a simulated fill. Clipped is set when the filled size is
// smaller than the requested size because of insufficient cash or position.
type Trade struct {
	Symbol      string    `json:"symbol"`
	Side        Side      `json:"side"`
	Price       float64   `json:"price"`
	Size        float64   `json:"size"`
	Cost        float64   `json:"cost"`
	Commission  float64   `json:"commission"`
	RealizedPnL float64   `json:"realized_pnl"`
	Timestamp   time.Time `json:"timestamp"`
	Clipped     bool      `json:"clipped"`
}

// Position is the aggregated net holding of a single symbol. A symbol has
// at most one live position; buys fold into the volume-weighted average
// entry price and sells reduce the net size.
type Position struct {
	Symbol        string  `json:"symbol"`
	NetSize       float64 `json:"net_size"`
	AvgEntryPrice float64 `json:"avg_entry_price"`
}

// MarketValue returns the position value at the given price.
func (p Position) MarketValue(price float64) float64 {
	return p.NetSize * price
}
