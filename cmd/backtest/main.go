// Package main provides the entry point for the backtesting CLI tool.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yourusername/quantbench/internal/backtest"
	"github.com/yourusername/quantbench/internal/config"
	"github.com/yourusername/quantbench/internal/logger"
	"github.com/yourusername/quantbench/internal/marketdata"
	"github.com/yourusername/quantbench/internal/models"
	"github.com/yourusername/quantbench/internal/repository"
	"github.com/yourusername/quantbench/internal/service"
)

func main() {
	var (
		configPath   = flag.String("config", "config/config.yaml", "Path to config file")
		strategyName = flag.String("strategy", "sma_cross", "Strategy name to test")
		symbols      = flag.String("symbols", "", "Comma-separated symbols, e.g. BTC-USD,ETH-USD")
		timeframe    = flag.String("timeframe", "1d", "Candle timeframe: 1m, 5m, 15m, 1h, 4h, 1d")
		startDate    = flag.String("start-date", "", "Start date (YYYY-MM-DD)")
		endDate      = flag.String("end-date", "", "End date (YYYY-MM-DD)")
		capital      = flag.Float64("capital", 0, "Initial capital (0 uses configured default)")
		csvFiles     = flag.String("csv", "", "Load candles from CSV instead of the API: symbol=path[,symbol=path]")
		output       = flag.String("output", "", "Write full result JSON to this path")
	)
	flag.Parse()

	appLogger := newLogger()
	ctx := context.Background()

	cfg := loadConfigWithSecrets(*configPath, appLogger)
	tf := models.Timeframe(*timeframe)

	symbolList := splitNonEmpty(*symbols)
	if len(symbolList) == 0 {
		appLogger.Fatal("At least one symbol is required, use -symbols")
	}

	provider := buildProvider(cfg, *csvFiles, tf, appLogger)
	start, end := parseDateRange(*startDate, *endDate, appLogger)

	repo := repository.NewMemoryBacktestRepository()
	svc := service.NewBacktestService(cfg, provider, repo, nil, appLogger)
	defer svc.Close()

	result, err := svc.RunBacktest(ctx, service.BacktestRequest{
		StrategyName:   *strategyName,
		Symbols:        symbolList,
		Timeframe:      tf,
		StartDate:      start,
		EndDate:        end,
		InitialCapital: *capital,
	})
	if err != nil {
		appLogger.Fatalf("Backtest failed: %v", err)
	}

	fmt.Print(backtest.GenerateConsoleReport(result))

	if *output != "" {
		if err := backtest.GenerateJSONExport(result, *output); err != nil {
			appLogger.Fatalf("Failed to write result: %v", err)
		}
		appLogger.WithField("path", *output).Info("Result written")
	}
}

func newLogger() *logrus.Logger {
	return logger.NewLogger(os.Getenv("QUANTBENCH_LOG_LEVEL"))
}

func loadConfigWithSecrets(path string, appLogger *logrus.Logger) *config.Config {
	cfg, err := config.LoadWithDefaults(path)
	if err != nil {
		appLogger.Fatalf("Failed to load config: %v", err)
	}
	if os.Getenv("AWS_SECRETS_ENABLED") == "true" {
		region := os.Getenv("AWS_REGION")
		secretName := os.Getenv("AWS_SECRET_NAME")
		if region == "" || secretName == "" {
			appLogger.Fatal("AWS_REGION and AWS_SECRET_NAME environment variables must be set when AWS_SECRETS_ENABLED is true")
		}
		if err := config.LoadSecretsFromAWS(cfg, region, secretName); err != nil {
			appLogger.Fatalf("Failed to load secrets: %v", err)
		}
	}
	return cfg
}

func buildProvider(cfg *config.Config, csvFiles string, tf models.Timeframe, appLogger *logrus.Logger) marketdata.Provider {
	if csvFiles != "" {
		provider := marketdata.NewMemoryProvider()
		for _, pair := range splitNonEmpty(csvFiles) {
			symbol, path, found := strings.Cut(pair, "=")
			if !found {
				appLogger.Fatalf("Invalid -csv entry %q, expected symbol=path", pair)
			}
			if err := provider.LoadCSV(filepath.Clean(path), symbol, tf); err != nil {
				appLogger.Fatalf("Failed to load candles: %v", err)
			}
		}
		return provider
	}

	httpClient := marketdata.NewRateLimitedHTTPClient(marketdata.HTTPClientConfig{
		Timeout:           time.Duration(cfg.MarketData.TimeoutSeconds) * time.Second,
		MaxRetries:        cfg.MarketData.RetryAttempts,
		RetryWaitMin:      100 * time.Millisecond,
		RetryWaitMax:      10 * time.Second,
		RateLimit:         cfg.MarketData.RequestsPerSecond,
		CircuitBreakerMax: 5,
	}, log.New(os.Stderr, "http ", log.LstdFlags))
	return marketdata.NewRESTProvider(httpClient, cfg.MarketData.BaseURL, cfg.MarketData.APIKey, log.New(os.Stderr, "marketdata ", log.LstdFlags))
}

func parseDateRange(startStr, endStr string, appLogger *logrus.Logger) (time.Time, time.Time) {
	if startStr == "" || endStr == "" {
		appLogger.Fatal("Both -start-date and -end-date are required (YYYY-MM-DD)")
	}
	start, err := time.Parse("2006-01-02", startStr)
	if err != nil {
		appLogger.Fatalf("Invalid start date: %v", err)
	}
	end, err := time.Parse("2006-01-02", endStr)
	if err != nil {
		appLogger.Fatalf("Invalid end date: %v", err)
	}
	return start, end
}

func splitNonEmpty(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
