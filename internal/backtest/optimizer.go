package backtest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
	"github.com/yourusername/quantbench/internal/marketdata"
	"github.com/yourusername/quantbench/internal/metrics"
	"github.com/yourusername/quantbench/internal/progress"
)

// Optimizer defaults.
const (
	DefaultCacheTTL   = 24 * time.Hour
	DefaultTopResults = 10
)

// OptimizationRequest describes one grid search over a base config.
type OptimizationRequest struct {
	BaseConfig      BacktestConfig
	Specs           []ParameterSpec
	MaxCombinations int
	TopResults      int
}

// ComboResult is the outcome of one parameter combination. Result carries
// the full backtest outcome, trades and equity curve included, whether it
// came from a fresh run or the cache.
type ComboResult struct {
	Params map[string]interface{} `json:"params"`
	Result *Result                `json:"result"`
}

// FailedCombo records a combination whose run failed. Failures never abort
// the sweep.
type FailedCombo struct {
	Params map[string]interface{} `json:"params"`
	Error  string                 `json:"error"`
}

// OptimizationResult is the outcome of a full grid search. Results are
// ranked by Sharpe ratio, best first, and truncated to the requested top N.
type OptimizationResult struct {
	ID           uuid.UUID     `json:"id"`
	Results      []ComboResult `json:"results"`
	Failed       []FailedCombo `json:"failed,omitempty"`
	TotalCombos  int           `json:"total_combos"`
	CachedCombos int           `json:"cached_combos"`
	StartedAt    time.Time     `json:"started_at"`
	FinishedAt   time.Time     `json:"finished_at"`
}

// Optimizer sweeps a strategy's parameter grid, submitting one backtest per
// combination to the shared test queue so sweeps serialize with directly
// submitted runs. Completed combinations are cached by content hash so a
// re-run of the same search within the TTL skips the simulation entirely.
type Optimizer struct {
	provider interface {
		NewRunner(id uuid.UUID, cfg BacktestConfig) (Runner, error)
	}
	queue  *TestQueue
	cache  *gocache.Cache
	logger *logrus.Logger
}

// EngineFactory builds engines for optimizer runs against a fixed market
// data provider and progress sink.
type EngineFactory struct {
	Provider marketdata.Provider
	Sink     progress.Sink
	Logger   *logrus.Logger
}

// NewRunner implements the optimizer's runner provider.
func (f EngineFactory) NewRunner(id uuid.UUID, cfg BacktestConfig) (Runner, error) {
	return NewEngine(id, cfg, f.Provider, f.Sink, f.Logger)
}

// NewOptimizer creates an optimizer that runs combinations through queue,
// with the given result cache TTL. A non-positive ttl falls back to
// DefaultCacheTTL. The optimizer shares the queue, it does not own it.
func NewOptimizer(factory EngineFactory, queue *TestQueue, ttl time.Duration, logger *logrus.Logger) *Optimizer {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Optimizer{
		provider: factory,
		queue:    queue,
		cache:    gocache.New(ttl, ttl/2),
		logger:   logger,
	}
}

// Run executes the grid search. The grid is expanded and size-checked before
// any backtest starts; a too-large space is a configuration error. Each
// combination runs sequentially in lexicographic order. Cancellation is
// honored between combinations and propagates into the running engine.
func (o *Optimizer) Run(ctx context.Context, req OptimizationRequest) (*OptimizationResult, error) {
	grid, err := NewParameterGrid(req.Specs, req.MaxCombinations)
	if err != nil {
		return nil, err
	}
	if req.BaseConfig.StrategyFactory == nil {
		return nil, NewConfigurationError("optimization requires a strategy factory")
	}
	topN := req.TopResults
	if topN <= 0 {
		topN = DefaultTopResults
	}

	metrics.RecordOptimizationSweep()
	result := &OptimizationResult{
		ID:          uuid.New(),
		TotalCombos: grid.Total(),
		StartedAt:   time.Now().UTC(),
	}
	o.logger.WithFields(logrus.Fields{
		"optimization_id": result.ID,
		"combinations":    grid.Total(),
	}).Info("Starting optimization sweep")

	for i := 0; i < grid.Total(); i++ {
		if ctx.Err() != nil {
			return nil, NewCancelledError(fmt.Sprintf("optimization cancelled after %d of %d combinations", i, grid.Total()))
		}

		combo := grid.At(i)
		key, err := comboKey(req.BaseConfig, combo)
		if err != nil {
			return nil, err
		}

		if cached, ok := o.cache.Get(key); ok {
			metrics.RecordCacheHit()
			result.CachedCombos++
			result.Results = append(result.Results, ComboResult{Params: combo, Result: cached.(*Result)})
			continue
		}
		metrics.RecordCacheMiss()

		runner, err := o.provider.NewRunner(uuid.New(), req.BaseConfig.WithParams(combo))
		if err != nil {
			return nil, err
		}
		run, err := o.runQueued(ctx, runner)
		if err != nil {
			if IsKind(err, KindCancelled) {
				return nil, err
			}
			o.logger.WithFields(logrus.Fields{
				"optimization_id": result.ID,
				"params":          combo,
				"error":           err,
			}).Warn("Combination failed")
			result.Failed = append(result.Failed, FailedCombo{Params: combo, Error: err.Error()})
			continue
		}

		o.cache.SetDefault(key, run)
		result.Results = append(result.Results, ComboResult{Params: combo, Result: run})
	}

	sort.SliceStable(result.Results, func(a, b int) bool {
		return result.Results[a].Result.Metrics.SharpeRatio > result.Results[b].Result.Metrics.SharpeRatio
	})
	if len(result.Results) > topN {
		result.Results = result.Results[:topN]
	}
	result.FinishedAt = time.Now().UTC()

	o.logger.WithFields(logrus.Fields{
		"optimization_id": result.ID,
		"succeeded":       grid.Total() - len(result.Failed) - result.CachedCombos,
		"cached":          result.CachedCombos,
		"failed":          len(result.Failed),
	}).Info("Optimization sweep finished")
	return result, nil
}

// runQueued submits one combination run to the shared queue and waits for
// its terminal state. Sweep cancellation cancels the pending or running
// entry, which stops at the next bar boundary.
func (o *Optimizer) runQueued(ctx context.Context, runner Runner) (*Result, error) {
	entry := o.queue.Submit(runner)
	if entry == nil {
		return nil, NewCancelledError("queue shut down during optimization sweep")
	}
	select {
	case <-entry.Done:
		return entry.Result, entry.Err
	case <-ctx.Done():
		o.queue.Cancel(entry.ID)
		<-entry.Done
		return entry.Result, entry.Err
	}
}

// comboKey hashes the combination together with the base config's identity
// fields. json.Marshal sorts map keys, so equal combinations always hash
// identically.
func comboKey(cfg BacktestConfig, combo map[string]interface{}) (string, error) {
	payload := struct {
		Symbols   []string               `json:"symbols"`
		Timeframe string                 `json:"timeframe"`
		Start     int64                  `json:"start"`
		End       int64                  `json:"end"`
		Capital   float64                `json:"capital"`
		Params    map[string]interface{} `json:"params"`
	}{
		Symbols:   cfg.Symbols,
		Timeframe: string(cfg.Timeframe),
		Start:     cfg.StartDate.Unix(),
		End:       cfg.EndDate.Unix(),
		Capital:   cfg.InitialCapital,
		Params:    combo,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to hash combination: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
