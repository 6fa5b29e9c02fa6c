package backtest

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
)

// GenerateConsoleReport formats a backtest result for terminal output
func GenerateConsoleReport(result *Result) string {
	m := result.Metrics
	var builder strings.Builder
	builder.WriteString("Backtest Report\n")
	builder.WriteString("================\n")
	builder.WriteString(fmt.Sprintf("Status: %s\n", result.Status))
	builder.WriteString(fmt.Sprintf("Final Value: %.2f\n", m.FinalValue))
	builder.WriteString(fmt.Sprintf("Total Return: %.2f%%\n", m.TotalReturn*100))
	builder.WriteString(fmt.Sprintf("Sharpe Ratio: %.2f\n", m.SharpeRatio))
	builder.WriteString(fmt.Sprintf("Max Drawdown: %.2f%%\n", m.MaxDrawdown*100))
	builder.WriteString(fmt.Sprintf("Win Rate: %.2f%%\n", m.WinRate*100))
	builder.WriteString(fmt.Sprintf("Profit Factor: %s\n", formatProfitFactor(m.ProfitFactor)))
	builder.WriteString(fmt.Sprintf("Trades: %d (%d closing, %d won, %d lost)\n",
		m.TotalTrades, m.ClosingTrades, m.WinningTrades, m.LosingTrades))
	return builder.String()
}

// GenerateOptimizationReport formats a ranked sweep for terminal output
func GenerateOptimizationReport(result *OptimizationResult) string {
	var builder strings.Builder
	builder.WriteString("Optimization Report\n")
	builder.WriteString("===================\n")
	builder.WriteString(fmt.Sprintf("Combinations: %d (%d cached, %d failed)\n",
		result.TotalCombos, result.CachedCombos, len(result.Failed)))
	for i, combo := range result.Results {
		builder.WriteString(fmt.Sprintf("%2d. sharpe=%.3f return=%.2f%% params=%s\n",
			i+1, combo.Result.Metrics.SharpeRatio, combo.Result.Metrics.TotalReturn*100, formatParams(combo.Params)))
	}
	return builder.String()
}

// GenerateCSVExport exports key metrics for spreadsheets
func GenerateCSVExport(result *Result, outputPath string) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	m := result.Metrics
	csv := "metric,value\n" +
		fmt.Sprintf("final_value,%.4f\n", m.FinalValue) +
		fmt.Sprintf("total_return,%.4f\n", m.TotalReturn) +
		fmt.Sprintf("sharpe_ratio,%.4f\n", m.SharpeRatio) +
		fmt.Sprintf("max_drawdown,%.4f\n", m.MaxDrawdown) +
		fmt.Sprintf("win_rate,%.4f\n", m.WinRate) +
		fmt.Sprintf("profit_factor,%s\n", formatProfitFactor(m.ProfitFactor)) +
		fmt.Sprintf("total_trades,%d\n", m.TotalTrades) +
		fmt.Sprintf("winning_trades,%d\n", m.WinningTrades) +
		fmt.Sprintf("losing_trades,%d\n", m.LosingTrades)
	return os.WriteFile(outputPath, []byte(csv), 0o644)
}

// GenerateJSONExport writes the full result, trades and equity curve
// included, as indented JSON
func GenerateJSONExport(result *Result, outputPath string) error {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(outputPath, data, 0o644)
}

func formatProfitFactor(pf *float64) string {
	if pf == nil {
		return "n/a"
	}
	if math.IsInf(*pf, 1) {
		return "inf"
	}
	return fmt.Sprintf("%.2f", *pf)
}

func formatParams(params map[string]interface{}) string {
	data, err := json.Marshal(params)
	if err != nil {
		return fmt.Sprintf("%v", params)
	}
	return string(data)
}
