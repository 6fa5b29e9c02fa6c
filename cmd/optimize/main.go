// Package main provides the entry point for the strategy optimization CLI.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/yourusername/quantbench/internal/backtest"
	"github.com/yourusername/quantbench/internal/config"
	"github.com/yourusername/quantbench/internal/logger"
	"github.com/yourusername/quantbench/internal/marketdata"
	"github.com/yourusername/quantbench/internal/models"
	"github.com/yourusername/quantbench/internal/repository"
	"github.com/yourusername/quantbench/internal/service"
)

// Build information - set via ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

var (
	configFile   string
	strategyName string
	symbols      []string
	timeframe    string
	startDate    string
	endDate      string
	capital      float64
	paramSpecs   []string
	csvFiles     []string
	topResults   int
	appLogger    *logrus.Logger
	cfg          *config.Config
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "./config/config.yaml", "Path to configuration file")
	rootCmd.Flags().StringVarP(&strategyName, "strategy", "s", "sma_cross", "Strategy to optimize")
	rootCmd.Flags().StringSliceVar(&symbols, "symbols", nil, "Symbols to backtest, e.g. BTC-USD,ETH-USD")
	rootCmd.Flags().StringVar(&timeframe, "timeframe", "1d", "Candle timeframe: 1m, 5m, 15m, 1h, 4h, 1d")
	rootCmd.Flags().StringVar(&startDate, "start-date", "", "Start date (YYYY-MM-DD)")
	rootCmd.Flags().StringVar(&endDate, "end-date", "", "End date (YYYY-MM-DD)")
	rootCmd.Flags().Float64Var(&capital, "capital", 0, "Initial capital (0 uses configured default)")
	rootCmd.Flags().StringArrayVarP(&paramSpecs, "param", "p", nil,
		"Parameter sweep, repeatable: name=min:max:step or name=v1|v2|v3")
	rootCmd.Flags().StringSliceVar(&csvFiles, "csv", nil, "Load candles from CSV instead of the API: symbol=path")
	rootCmd.Flags().IntVar(&topResults, "top", 0, "Number of top combinations to report (0 uses configured default)")
}

var rootCmd = &cobra.Command{
	Use:   "optimize",
	Short: "Sweep strategy parameter grids and rank the results",
	Long: `Runs a backtest per parameter combination over the configured grid,
ranks combinations by Sharpe ratio and reports the best performers.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		appLogger = logger.NewLogger(os.Getenv("QUANTBENCH_LOG_LEVEL"))
		loaded, err := config.LoadWithDefaults(configFile)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		cfg = loaded
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOptimization(cmd.Context())
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Error: %v", err)
	}
}

func runOptimization(ctx context.Context) error {
	if len(symbols) == 0 {
		return fmt.Errorf("at least one symbol is required, use --symbols")
	}
	if len(paramSpecs) == 0 {
		return fmt.Errorf("at least one --param sweep is required")
	}

	specs, err := parseParamSpecs(paramSpecs)
	if err != nil {
		return err
	}
	start, end, err := parseDateRange(startDate, endDate)
	if err != nil {
		return err
	}
	provider, err := buildProvider(models.Timeframe(timeframe))
	if err != nil {
		return err
	}

	repo := repository.NewMemoryBacktestRepository()
	svc := service.NewBacktestService(cfg, provider, repo, nil, appLogger)
	defer svc.Close()

	result, err := svc.OptimizeStrategy(ctx, service.OptimizeRequest{
		BacktestRequest: service.BacktestRequest{
			StrategyName:   strategyName,
			Symbols:        symbols,
			Timeframe:      models.Timeframe(timeframe),
			StartDate:      start,
			EndDate:        end,
			InitialCapital: capital,
		},
		ParameterSpecs: specs,
		TopResults:     topResults,
	})
	if err != nil {
		return err
	}

	fmt.Print(backtest.GenerateOptimizationReport(result))
	return nil
}

// parseParamSpecs parses sweep definitions of the form name=min:max:step or
// name=v1|v2|v3.
func parseParamSpecs(raw []string) ([]backtest.ParameterSpec, error) {
	specs := make([]backtest.ParameterSpec, 0, len(raw))
	for _, entry := range raw {
		name, def, found := strings.Cut(entry, "=")
		if !found || name == "" {
			return nil, fmt.Errorf("invalid --param entry %q, expected name=min:max:step or name=v1|v2", entry)
		}

		if strings.Contains(def, "|") {
			var values []interface{}
			for _, v := range strings.Split(def, "|") {
				parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
				if err != nil {
					return nil, fmt.Errorf("parameter %s: invalid value %q", name, v)
				}
				values = append(values, parsed)
			}
			specs = append(specs, backtest.ParameterSpec{Name: name, Range: backtest.ParameterRange{Values: values}})
			continue
		}

		parts := strings.Split(def, ":")
		if len(parts) != 3 {
			return nil, fmt.Errorf("parameter %s: expected min:max:step, got %q", name, def)
		}
		bounds := make([]float64, 3)
		for i, p := range parts {
			parsed, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
			if err != nil {
				return nil, fmt.Errorf("parameter %s: invalid number %q", name, p)
			}
			bounds[i] = parsed
		}
		specs = append(specs, backtest.ParameterSpec{
			Name:  name,
			Range: backtest.ParameterRange{Min: bounds[0], Max: bounds[1], Step: bounds[2]},
		})
	}
	return specs, nil
}

func parseDateRange(startStr, endStr string) (time.Time, time.Time, error) {
	if startStr == "" || endStr == "" {
		return time.Time{}, time.Time{}, fmt.Errorf("both --start-date and --end-date are required (YYYY-MM-DD)")
	}
	start, err := time.Parse("2006-01-02", startStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid start date: %w", err)
	}
	end, err := time.Parse("2006-01-02", endStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid end date: %w", err)
	}
	return start, end, nil
}

func buildProvider(tf models.Timeframe) (marketdata.Provider, error) {
	if len(csvFiles) > 0 {
		provider := marketdata.NewMemoryProvider()
		for _, pair := range csvFiles {
			symbol, path, found := strings.Cut(pair, "=")
			if !found {
				return nil, fmt.Errorf("invalid --csv entry %q, expected symbol=path", pair)
			}
			if err := provider.LoadCSV(filepath.Clean(path), symbol, tf); err != nil {
				return nil, fmt.Errorf("failed to load candles: %w", err)
			}
		}
		return provider, nil
	}

	httpClient := marketdata.NewRateLimitedHTTPClient(marketdata.HTTPClientConfig{
		Timeout:           time.Duration(cfg.MarketData.TimeoutSeconds) * time.Second,
		MaxRetries:        cfg.MarketData.RetryAttempts,
		RetryWaitMin:      100 * time.Millisecond,
		RetryWaitMax:      10 * time.Second,
		RateLimit:         cfg.MarketData.RequestsPerSecond,
		CircuitBreakerMax: 5,
	}, log.New(os.Stderr, "http ", log.LstdFlags))
	return marketdata.NewRESTProvider(httpClient, cfg.MarketData.BaseURL, cfg.MarketData.APIKey, log.New(os.Stderr, "marketdata ", log.LstdFlags)), nil
}
