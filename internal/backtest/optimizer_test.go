package backtest

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	"github.com/yourusername/quantbench/internal/marketdata"
	"github.com/yourusername/quantbench/internal/models"
	"github.com/yourusername/quantbench/internal/strategy"
)

// stubFactory produces runners that delegate to a fixed function, bypassing
// the engine entirely.
type stubFactory struct {
	run func(cfg BacktestConfig) (*Result, error)
}

func (f stubFactory) NewRunner(id uuid.UUID, cfg BacktestConfig) (Runner, error) {
	return stubRunner{id: id, cfg: cfg, run: f.run}, nil
}

type stubRunner struct {
	id  uuid.UUID
	cfg BacktestConfig
	run func(cfg BacktestConfig) (*Result, error)
}

func (r stubRunner) ID() uuid.UUID { return r.id }

func (r stubRunner) Run(ctx context.Context) (*Result, error) {
	if ctx.Err() != nil {
		return nil, NewCancelledError("backtest cancelled at bar boundary")
	}
	return r.run(r.cfg)
}

func newStubOptimizer(t *testing.T, run func(cfg BacktestConfig) (*Result, error)) *Optimizer {
	t.Helper()
	queue := NewTestQueue(quietLogger())
	t.Cleanup(queue.Close)
	return &Optimizer{
		provider: stubFactory{run: run},
		queue:    queue,
		cache:    gocache.New(time.Hour, time.Hour),
		logger:   quietLogger(),
	}
}

func noopFactory(params map[string]interface{}) (strategy.Strategy, error) {
	return &scriptedStrategy{}, nil
}

func optimizerBaseConfig() BacktestConfig {
	return BacktestConfig{
		StrategyFactory: noopFactory,
		Symbols:         []string{"BTC-USD"},
		Timeframe:       models.Timeframe1d,
		StartDate:       time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:         time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
		InitialCapital:  10000,
	}
}

func TestOptimizerRanksBySharpeAndTruncates(t *testing.T) {
	optimizer := newStubOptimizer(t, func(cfg BacktestConfig) (*Result, error) {
		// Higher parameter value, higher Sharpe ratio.
		return &Result{Metrics: Metrics{SharpeRatio: cfg.Params["x"].(float64)}, Status: StatusCompleted}, nil
	})

	result, err := optimizer.Run(context.Background(), OptimizationRequest{
		BaseConfig: optimizerBaseConfig(),
		Specs: []ParameterSpec{
			{Name: "x", Range: ParameterRange{Min: 1, Max: 5, Step: 1}},
		},
		TopResults: 3,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.TotalCombos != 5 {
		t.Fatalf("expected 5 combinations, got %d", result.TotalCombos)
	}
	if len(result.Results) != 3 {
		t.Fatalf("expected top 3 results, got %d", len(result.Results))
	}
	for i, want := range []float64{5, 4, 3} {
		if result.Results[i].Result.Metrics.SharpeRatio != want {
			t.Fatalf("rank %d: expected sharpe %v, got %v", i, want, result.Results[i].Result.Metrics.SharpeRatio)
		}
	}
}

func TestOptimizerFailedComboDoesNotAbortSweep(t *testing.T) {
	optimizer := newStubOptimizer(t, func(cfg BacktestConfig) (*Result, error) {
		if cfg.Params["x"].(float64) == 2 {
			return nil, NewDataUnavailableError("no candles for BTC-USD in the requested range", nil)
		}
		return &Result{Metrics: Metrics{SharpeRatio: 1}, Status: StatusCompleted}, nil
	})

	result, err := optimizer.Run(context.Background(), OptimizationRequest{
		BaseConfig: optimizerBaseConfig(),
		Specs: []ParameterSpec{
			{Name: "x", Range: ParameterRange{Min: 1, Max: 3, Step: 1}},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Results) != 2 {
		t.Fatalf("expected 2 successful combos, got %d", len(result.Results))
	}
	if len(result.Failed) != 1 || result.Failed[0].Params["x"] != 2.0 {
		t.Fatalf("unexpected failed combos: %+v", result.Failed)
	}
}

func TestOptimizerCancellationAborts(t *testing.T) {
	optimizer := newStubOptimizer(t, func(cfg BacktestConfig) (*Result, error) {
		return &Result{Status: StatusCompleted}, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := optimizer.Run(ctx, OptimizationRequest{
		BaseConfig: optimizerBaseConfig(),
		Specs: []ParameterSpec{
			{Name: "x", Range: ParameterRange{Min: 1, Max: 3, Step: 1}},
		},
	})
	if !IsKind(err, KindCancelled) {
		t.Fatalf("expected cancelled error, got %v", err)
	}
}

func TestOptimizerRequiresStrategyFactory(t *testing.T) {
	optimizer := newStubOptimizer(t, func(cfg BacktestConfig) (*Result, error) {
		return &Result{Status: StatusCompleted}, nil
	})
	base := optimizerBaseConfig()
	base.StrategyFactory = nil

	_, err := optimizer.Run(context.Background(), OptimizationRequest{
		BaseConfig: base,
		Specs: []ParameterSpec{
			{Name: "x", Range: ParameterRange{Min: 1, Max: 2, Step: 1}},
		},
	})
	if !IsKind(err, KindConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

// countingProvider counts candle fetches so cache hits are observable as the
// absence of provider traffic.
type countingProvider struct {
	inner *marketdata.MemoryProvider
	calls int
}

func (p *countingProvider) Name() string { return p.inner.Name() }

func (p *countingProvider) GetCandles(ctx context.Context, symbol string, timeframe models.Timeframe, start, end time.Time) ([]models.Candle, error) {
	p.calls++
	return p.inner.GetCandles(ctx, symbol, timeframe, start, end)
}

func TestOptimizerCachesCompletedCombos(t *testing.T) {
	inner := marketdata.NewMemoryProvider()
	inner.Add("BTC-USD", models.Timeframe1d, dailyCandles("BTC-USD", 100, 110, 120))
	provider := &countingProvider{inner: inner}

	queue := NewTestQueue(quietLogger())
	t.Cleanup(queue.Close)
	optimizer := NewOptimizer(EngineFactory{Provider: provider, Logger: quietLogger()}, queue, time.Hour, quietLogger())
	request := OptimizationRequest{
		BaseConfig: optimizerBaseConfig(),
		Specs: []ParameterSpec{
			{Name: "x", Range: ParameterRange{Min: 1, Max: 3, Step: 1}},
		},
	}

	first, err := optimizer.Run(context.Background(), request)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.CachedCombos != 0 {
		t.Fatalf("expected no cache hits on first sweep, got %d", first.CachedCombos)
	}
	fetches := provider.calls
	if fetches == 0 {
		t.Fatalf("expected candle fetches on first sweep")
	}

	second, err := optimizer.Run(context.Background(), request)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second.CachedCombos != 3 {
		t.Fatalf("expected all 3 combos cached on second sweep, got %d", second.CachedCombos)
	}
	if provider.calls != fetches {
		t.Fatalf("expected no additional fetches on cached sweep, got %d extra", provider.calls-fetches)
	}
	// Cached combos still carry the full backtest outcome, not just metrics.
	for _, combo := range second.Results {
		if combo.Result == nil || len(combo.Result.Equity) != 4 {
			t.Fatalf("expected full cached result with 4 equity points, got %+v", combo.Result)
		}
	}
}

func TestOptimizerSerializesWithQueuedRuns(t *testing.T) {
	queue := NewTestQueue(quietLogger())
	t.Cleanup(queue.Close)

	// Occupy the queue's single running slot before the sweep starts.
	gate := make(chan struct{})
	blocker := &fakeRunner{id: uuid.New(), release: gate}
	blockerEntry := queue.Submit(blocker)

	optimizer := &Optimizer{
		provider: stubFactory{run: func(cfg BacktestConfig) (*Result, error) {
			return &Result{Metrics: Metrics{SharpeRatio: 1}, Status: StatusCompleted}, nil
		}},
		queue:  queue,
		cache:  gocache.New(time.Hour, time.Hour),
		logger: quietLogger(),
	}

	done := make(chan struct{})
	var result *OptimizationResult
	var sweepErr error
	go func() {
		result, sweepErr = optimizer.Run(context.Background(), OptimizationRequest{
			BaseConfig: optimizerBaseConfig(),
			Specs: []ParameterSpec{
				{Name: "x", Range: ParameterRange{Min: 1, Max: 3, Step: 1}},
			},
		})
		close(done)
	}()

	select {
	case <-done:
		t.Fatalf("sweep finished while another run held the queue slot")
	case <-time.After(100 * time.Millisecond):
	}

	close(gate)
	waitDone(t, blockerEntry)
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for sweep after the slot was released")
	}
	if sweepErr != nil {
		t.Fatalf("unexpected error: %v", sweepErr)
	}
	if len(result.Results) != 3 {
		t.Fatalf("expected 3 successful combos, got %d", len(result.Results))
	}
}
