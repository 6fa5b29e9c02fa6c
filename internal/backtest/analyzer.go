package backtest

import (
	"encoding/json"
	"math"

	"github.com/yourusername/quantbench/internal/models"
)

// Metrics summarizes the performance of a completed backtest.
//
// ProfitFactor is nil when undefined (no sells, or no gains and no losses)
// and +Inf when there are gains but no losses.
type Metrics struct {
	TotalReturn   float64  `json:"total_return"`
	SharpeRatio   float64  `json:"sharpe_ratio"`
	MaxDrawdown   float64  `json:"max_drawdown"`
	WinRate       float64  `json:"win_rate"`
	ProfitFactor  *float64 `json:"profit_factor"`
	TotalTrades   int      `json:"total_trades"`
	ClosingTrades int      `json:"closing_trades"`
	WinningTrades int      `json:"winning_trades"`
	LosingTrades  int      `json:"losing_trades"`
	GrossProfit   float64  `json:"gross_profit"`
	GrossLoss     float64  `json:"gross_loss"`
	FinalValue    float64  `json:"final_value"`
}

// ComputeMetrics derives performance metrics from a completed trade log and
// equity curve. Pure function of its inputs; it fails only on malformed
// input.
func ComputeMetrics(trades []models.Trade, equity EquityCurve, initialCapital, barsPerYear float64) (Metrics, error) {
	if initialCapital <= 0 {
		return Metrics{}, NewConfigurationError("initial capital must be positive, got %v", initialCapital)
	}
	if len(equity) == 0 {
		return Metrics{}, NewConfigurationError("equity curve is empty")
	}

	metrics := Metrics{
		TotalTrades: len(trades),
		FinalValue:  equity.Final(),
	}
	metrics.TotalReturn = equity.Final()/initialCapital - 1

	returns := equity.Returns()
	metrics.SharpeRatio = sharpeRatio(returns, barsPerYear)
	metrics.MaxDrawdown = maxDrawdown(equity)

	wins, losses, grossProfit, grossLoss, sells := closedTradeStats(trades)
	metrics.ClosingTrades = sells
	metrics.WinningTrades = wins
	metrics.LosingTrades = losses
	metrics.GrossProfit = grossProfit
	metrics.GrossLoss = grossLoss
	if sells > 0 {
		metrics.WinRate = float64(wins) / float64(sells)
	}
	metrics.ProfitFactor = profitFactor(grossProfit, grossLoss, sells)

	return metrics, nil
}

// MarshalJSON renders an infinite profit factor as null; IEEE infinity has
// no JSON representation.
func (m Metrics) MarshalJSON() ([]byte, error) {
	type alias Metrics
	out := alias(m)
	if out.ProfitFactor != nil && math.IsInf(*out.ProfitFactor, 0) {
		out.ProfitFactor = nil
	}
	return json.Marshal(out)
}

func sharpeRatio(returns []float64, barsPerYear float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	mean := average(returns)
	std := stddev(returns)
	if std == 0 {
		return 0
	}
	return mean / std * math.Sqrt(barsPerYear)
}

func maxDrawdown(equity EquityCurve) float64 {
	maxDD := 0.0
	peak := 0.0
	for _, point := range equity {
		if point.TotalValue > peak {
			peak = point.TotalValue
		}
		if peak == 0 {
			continue
		}
		drawdown := (peak - point.TotalValue) / peak
		if drawdown > maxDD {
			maxDD = drawdown
		}
	}
	return maxDD
}

// closedTradeStats pairs each sell with the position it closed via the
// realized PnL recorded on the trade.
func closedTradeStats(trades []models.Trade) (wins, losses int, grossProfit, grossLoss float64, sells int) {
	for _, trade := range trades {
		if trade.Side != models.SideSell {
			continue
		}
		sells++
		if trade.RealizedPnL > 0 {
			wins++
			grossProfit += trade.RealizedPnL
		} else if trade.RealizedPnL < 0 {
			losses++
			grossLoss += math.Abs(trade.RealizedPnL)
		}
	}
	return wins, losses, grossProfit, grossLoss, sells
}

func profitFactor(grossProfit, grossLoss float64, sells int) *float64 {
	if sells == 0 {
		return nil
	}
	if grossLoss == 0 {
		if grossProfit == 0 {
			return nil
		}
		pf := math.Inf(1)
		return &pf
	}
	pf := grossProfit / grossLoss
	return &pf
}

func average(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func stddev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	mean := average(values)
	variance := 0.0
	for _, v := range values {
		diff := v - mean
		variance += diff * diff
	}
	variance /= float64(len(values))
	return math.Sqrt(variance)
}
