package backtest

import (
	"math"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yourusername/quantbench/internal/models"
)

// Ledger owns the simulated cash account and per-symbol positions of one
// backtest run. Fills that would overdraw cash or oversell a position are
// clipped or rejected instead of failing the run; cash and net sizes never
// go negative.
type Ledger struct {
	cash           float64
	commissionRate float64
	positions      map[string]*models.Position
	trades         []models.Trade
	equity         EquityCurve
	logger         *logrus.Logger
}

// NewLedger initializes a ledger with the starting cash balance.
func NewLedger(initialCash, commissionRate float64, logger *logrus.Logger) *Ledger {
	if logger == nil {
		logger = logrus.New()
	}
	return &Ledger{
		cash:           initialCash,
		commissionRate: commissionRate,
		positions:      make(map[string]*models.Position),
		logger:         logger,
	}
}

// Cash returns the current cash balance.
func (l *Ledger) Cash() float64 {
	return l.cash
}

// Positions returns a snapshot of the open positions.
func (l *Ledger) Positions() map[string]models.Position {
	snapshot := make(map[string]models.Position, len(l.positions))
	for symbol, pos := range l.positions {
		snapshot[symbol] = *pos
	}
	return snapshot
}

// Trades returns the trade log in fill order.
func (l *Ledger) Trades() []models.Trade {
	return l.trades
}

// Equity returns the equity curve recorded so far.
func (l *Ledger) Equity() EquityCurve {
	return l.equity
}

// ApplyBuy executes a buy fill. If cash cannot cover the requested size the
// fill is clipped to the largest affordable whole size; if not even one unit
// is affordable the signal is rejected and no trade is recorded. Returns the
// recorded trade, or nil when rejected.
func (l *Ledger) ApplyBuy(symbol string, size, effectivePrice, commission float64, ts time.Time) *models.Trade {
	cost := size * effectivePrice
	clipped := false

	if cost+commission > l.cash {
		size = math.Floor(l.cash / (effectivePrice * (1 + l.commissionRate)))
		if size <= 0 {
			l.logger.WithFields(logrus.Fields{
				"symbol": symbol,
				"price":  effectivePrice,
				"cash":   l.cash,
			}).Debug("Buy rejected: insufficient cash for a single unit")
			return nil
		}
		cost = size * effectivePrice
		commission = cost * l.commissionRate
		clipped = true
	}

	pos, ok := l.positions[symbol]
	if !ok {
		pos = &models.Position{Symbol: symbol}
		l.positions[symbol] = pos
	}
	total := pos.NetSize + size
	pos.AvgEntryPrice = (pos.AvgEntryPrice*pos.NetSize + cost) / total
	pos.NetSize = total
	l.cash -= cost + commission

	trade := models.Trade{
		Symbol:     symbol,
		Side:       models.SideBuy,
		Price:      effectivePrice,
		Size:       size,
		Cost:       cost,
		Commission: commission,
		Timestamp:  ts,
		Clipped:    clipped,
	}
	l.trades = append(l.trades, trade)
	return &l.trades[len(l.trades)-1]
}

// ApplySell executes a sell fill, clipping the size to the held position.
// Selling with no open position is rejected and no trade is recorded.
// Returns the recorded trade, or nil when rejected.
func (l *Ledger) ApplySell(symbol string, size, effectivePrice, commission float64, ts time.Time) *models.Trade {
	pos, ok := l.positions[symbol]
	if !ok {
		l.logger.WithField("symbol", symbol).Debug("Sell rejected: no open position")
		return nil
	}

	clipped := false
	if size > pos.NetSize {
		size = pos.NetSize
		commission = size * effectivePrice * l.commissionRate
		clipped = true
	}

	proceeds := size * effectivePrice
	realized := (effectivePrice - pos.AvgEntryPrice) * size
	l.cash += proceeds - commission
	pos.NetSize -= size
	if pos.NetSize <= 1e-9 {
		delete(l.positions, symbol)
	}

	trade := models.Trade{
		Symbol:      symbol,
		Side:        models.SideSell,
		Price:       effectivePrice,
		Size:        size,
		Cost:        proceeds,
		Commission:  commission,
		RealizedPnL: realized,
		Timestamp:   ts,
		Clipped:     clipped,
	}
	l.trades = append(l.trades, trade)
	return &l.trades[len(l.trades)-1]
}

// MarkToMarket values the portfolio at the given closing prices, appends an
// equity point and returns the total value. Positions without a close price
// are valued at their entry price.
func (l *Ledger) MarkToMarket(ts time.Time, closes map[string]float64) float64 {
	total := l.cash
	for symbol, pos := range l.positions {
		price, ok := closes[symbol]
		if !ok {
			price = pos.AvgEntryPrice
		}
		total += pos.MarketValue(price)
	}
	l.equity = append(l.equity, EquityPoint{Timestamp: ts, TotalValue: total})
	return total
}
