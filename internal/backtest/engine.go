package backtest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/yourusername/quantbench/internal/indicator"
	"github.com/yourusername/quantbench/internal/marketdata"
	"github.com/yourusername/quantbench/internal/metrics"
	"github.com/yourusername/quantbench/internal/models"
	"github.com/yourusername/quantbench/internal/progress"
	"github.com/yourusername/quantbench/internal/strategy"
)

// Status is the lifecycle state of a backtest run.
type Status string

// Run states. A run moves pending -> running -> completed or failed and
// never leaves a terminal state.
const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Result is the outcome of a completed or failed backtest.
type Result struct {
	Trades  []models.Trade `json:"trades"`
	Equity  EquityCurve    `json:"equity"`
	Metrics Metrics        `json:"metrics"`
	Status  Status         `json:"status"`
	Error   string         `json:"error,omitempty"`
}

// Engine runs one backtest to completion: it validates the config, fetches
// aligned candle and indicator series, replays the bar loop through the
// ledger and hands the outcome to the analyzer. An engine is single-use.
type Engine struct {
	id         uuid.UUID
	config     BacktestConfig
	provider   marketdata.Provider
	indicators *indicator.Engine
	sink       progress.Sink
	logger     *logrus.Logger

	mu      sync.RWMutex
	status  Status
	percent float64
	started time.Time
}

// NewEngine wires an engine for a single run. Config validation happens in
// Run, at the pending to running transition.
func NewEngine(id uuid.UUID, cfg BacktestConfig, provider marketdata.Provider, sink progress.Sink, logger *logrus.Logger) (*Engine, error) {
	if provider == nil {
		return nil, fmt.Errorf("market data provider is required")
	}
	if sink == nil {
		sink = progress.NopSink{}
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Engine{
		id:         id,
		config:     cfg,
		provider:   provider,
		indicators: indicator.NewEngine(),
		sink:       sink,
		logger:     logger,
		status:     StatusPending,
	}, nil
}

// ID returns the backtest identifier.
func (e *Engine) ID() uuid.UUID {
	return e.id
}

// Status returns the current lifecycle state.
func (e *Engine) Status() Status {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.status
}

// Progress returns the completed percentage of the bar loop, 0 to 100.
func (e *Engine) Progress() float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.percent
}

// Run executes the backtest. Cancellation through ctx is honored at the
// next bar boundary, never mid-bar. On a strategy failure the partial trade
// log and equity curve are discarded.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	if err := e.transition(StatusPending, StatusRunning); err != nil {
		return nil, err
	}
	e.started = time.Now()

	if err := e.config.Validate(); err != nil {
		return e.fail(err)
	}
	strat, err := e.config.BuildStrategy()
	if err != nil {
		return e.fail(err)
	}
	costs, err := NewCostModel(e.config.CommissionRate, e.config.SlippageRate)
	if err != nil {
		return e.fail(err)
	}

	e.logger.WithFields(logrus.Fields{
		"backtest_id": e.id,
		"strategy":    strat.Name(),
		"symbols":     e.config.Symbols,
		"start":       e.config.StartDate,
		"end":         e.config.EndDate,
	}).Info("Starting backtest run")

	candles, barCount, err := e.fetchSeries(ctx)
	if err != nil {
		return e.fail(err)
	}
	indicators, err := e.computeIndicators(candles, barCount)
	if err != nil {
		return e.fail(err)
	}

	ledger := NewLedger(e.config.InitialCapital, e.config.CommissionRate, e.logger)
	ledger.MarkToMarket(e.config.StartDate, nil)

	for i := 0; i < barCount; i++ {
		if ctx.Err() != nil {
			return e.fail(NewCancelledError("backtest cancelled at bar boundary"))
		}

		barCtx := e.buildBarContext(i, candles, indicators, ledger)
		signals, err := strat.Evaluate(ctx, barCtx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return e.fail(NewCancelledError("backtest cancelled during strategy evaluation"))
			}
			return e.fail(NewStrategyExecutionError(fmt.Sprintf("strategy %s failed on bar %d", strat.Name(), i), err))
		}

		for _, signal := range signals {
			if err := e.applySignal(ledger, costs, signal, barCtx); err != nil {
				return e.fail(err)
			}
		}

		closes := make(map[string]float64, len(e.config.Symbols))
		for _, symbol := range e.config.Symbols {
			closes[symbol] = candles[symbol][i].Close
		}
		ledger.MarkToMarket(candles[e.config.Symbols[0]][i].Timestamp, closes)

		percent := float64(i+1) / float64(barCount) * 100
		e.setProgress(percent)
		e.sink.Report(e.id, percent)
	}

	runMetrics, err := ComputeMetrics(ledger.Trades(), ledger.Equity(), e.config.InitialCapital, e.config.Timeframe.BarsPerYear())
	if err != nil {
		return e.fail(err)
	}

	e.setStatus(StatusCompleted)
	metrics.RecordBacktestRun(string(StatusCompleted), time.Since(e.started).Seconds())
	e.logger.WithFields(logrus.Fields{
		"backtest_id":  e.id,
		"trades":       len(ledger.Trades()),
		"total_return": runMetrics.TotalReturn,
		"sharpe_ratio": runMetrics.SharpeRatio,
	}).Info("Backtest completed")

	return &Result{
		Trades:  ledger.Trades(),
		Equity:  ledger.Equity(),
		Metrics: runMetrics,
		Status:  StatusCompleted,
	}, nil
}

// fetchSeries loads one candle series per symbol and verifies that all
// series are index-aligned.
func (e *Engine) fetchSeries(ctx context.Context) (map[string][]models.Candle, int, error) {
	candles := make(map[string][]models.Candle, len(e.config.Symbols))
	barCount := -1
	for _, symbol := range e.config.Symbols {
		series, err := e.provider.GetCandles(ctx, symbol, e.config.Timeframe, e.config.StartDate, e.config.EndDate)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, 0, NewCancelledError("backtest cancelled during data fetch")
			}
			return nil, 0, NewDataUnavailableError(fmt.Sprintf("failed to fetch candles for %s", symbol), err)
		}
		if len(series) == 0 {
			return nil, 0, NewDataUnavailableError(fmt.Sprintf("no candles for %s in the requested range", symbol), nil)
		}
		if barCount >= 0 && len(series) != barCount {
			return nil, 0, NewDataUnavailableError(
				fmt.Sprintf("misaligned series: %s has %d bars, expected %d", symbol, len(series), barCount), nil)
		}
		barCount = len(series)
		candles[symbol] = series
	}
	return candles, barCount, nil
}

// computeIndicators produces every requested indicator series per symbol,
// aligned 1:1 with the candles.
func (e *Engine) computeIndicators(candles map[string][]models.Candle, barCount int) (map[string]map[string][]float64, error) {
	out := make(map[string]map[string][]float64, len(e.config.Symbols))
	for _, symbol := range e.config.Symbols {
		out[symbol] = make(map[string][]float64, len(e.config.IndicatorSpecs))
		for _, spec := range e.config.IndicatorSpecs {
			series, err := e.indicators.Calculate(spec.Type, spec.Params, candles[symbol])
			if err != nil {
				return nil, NewDataUnavailableError(fmt.Sprintf("indicator %s failed for %s", spec.Name, symbol), err)
			}
			if len(series) != barCount {
				return nil, NewDataUnavailableError(
					fmt.Sprintf("indicator %s for %s returned %d values, expected %d", spec.Name, symbol, len(series), barCount), nil)
			}
			out[symbol][spec.Name] = series
		}
	}
	return out, nil
}

// buildBarContext assembles the read-only view the strategy sees for bar i.
func (e *Engine) buildBarContext(i int, candles map[string][]models.Candle, indicators map[string]map[string][]float64, ledger *Ledger) strategy.BarContext {
	bars := make(map[string]models.Candle, len(e.config.Symbols))
	history := make(map[string][]models.Candle, len(e.config.Symbols))
	values := make(map[string]map[string]float64, len(e.config.Symbols))
	for _, symbol := range e.config.Symbols {
		bars[symbol] = candles[symbol][i]
		history[symbol] = candles[symbol][:i+1]
		values[symbol] = make(map[string]float64, len(indicators[symbol]))
		for name, series := range indicators[symbol] {
			values[symbol][name] = series[i]
		}
	}
	return strategy.BarContext{
		Timestamp:  bars[e.config.Symbols[0]].Timestamp,
		Index:      i,
		Bars:       bars,
		History:    history,
		Indicators: values,
		Positions:  ledger.Positions(),
		Cash:       ledger.Cash(),
	}
}

// applySignal routes one signal through the cost model and the ledger.
// Invalid signals are rejected as diagnostics; cost model failures abort
// the run.
func (e *Engine) applySignal(ledger *Ledger, costs CostModel, signal strategy.Signal, barCtx strategy.BarContext) error {
	if !signal.Side.Valid() || signal.Size <= 0 || signal.Symbol == "" {
		e.logger.WithFields(logrus.Fields{
			"backtest_id": e.id,
			"symbol":      signal.Symbol,
			"side":        signal.Side,
			"size":        signal.Size,
		}).Warn("Ignoring malformed signal")
		return nil
	}

	effectivePrice, err := costs.EffectivePrice(signal.Side, signal.Price)
	if err != nil {
		return err
	}
	commission, err := costs.Commission(signal.Size * effectivePrice)
	if err != nil {
		return err
	}

	var trade *models.Trade
	switch signal.Side {
	case models.SideBuy:
		trade = ledger.ApplyBuy(signal.Symbol, signal.Size, effectivePrice, commission, barCtx.Timestamp)
	case models.SideSell:
		trade = ledger.ApplySell(signal.Symbol, signal.Size, effectivePrice, commission, barCtx.Timestamp)
	}
	if trade != nil && trade.Clipped {
		e.logger.WithFields(logrus.Fields{
			"backtest_id": e.id,
			"symbol":      trade.Symbol,
			"side":        trade.Side,
			"requested":   signal.Size,
			"filled":      trade.Size,
		}).Debug("Signal clipped")
	}
	return nil
}

func (e *Engine) transition(from, to Status) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.status != from {
		return fmt.Errorf("invalid state transition: backtest is %s, expected %s", e.status, from)
	}
	e.status = to
	return nil
}

func (e *Engine) setStatus(status Status) {
	e.mu.Lock()
	e.status = status
	e.mu.Unlock()
}

func (e *Engine) setProgress(percent float64) {
	e.mu.Lock()
	e.percent = percent
	e.mu.Unlock()
}

func (e *Engine) fail(err error) (*Result, error) {
	e.setStatus(StatusFailed)
	metrics.RecordBacktestRun(string(StatusFailed), time.Since(e.started).Seconds())
	e.logger.WithFields(logrus.Fields{
		"backtest_id": e.id,
		"error":       err,
	}).Error("Backtest failed")
	return nil, err
}
