// Package service wires the backtest engine, queue, optimizer and
// persistence into one facade the CLIs and the scheduler call into.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/yourusername/quantbench/internal/backtest"
	"github.com/yourusername/quantbench/internal/config"
	"github.com/yourusername/quantbench/internal/indicator"
	"github.com/yourusername/quantbench/internal/logger"
	"github.com/yourusername/quantbench/internal/marketdata"
	"github.com/yourusername/quantbench/internal/models"
	"github.com/yourusername/quantbench/internal/progress"
	"github.com/yourusername/quantbench/internal/repository"
	"github.com/yourusername/quantbench/internal/strategy"
)

// BacktestRequest describes one backtest submission.
type BacktestRequest struct {
	StrategyName   string                 `json:"strategy_name"`
	Symbols        []string               `json:"symbols"`
	Timeframe      models.Timeframe       `json:"timeframe"`
	StartDate      time.Time              `json:"start_date"`
	EndDate        time.Time              `json:"end_date"`
	InitialCapital float64                `json:"initial_capital"`
	CommissionRate *float64               `json:"commission_rate,omitempty"`
	SlippageRate   *float64               `json:"slippage_rate,omitempty"`
	Params         map[string]interface{} `json:"params,omitempty"`
	IndicatorSpecs []indicator.Spec       `json:"indicator_specs,omitempty"`
}

// OptimizeRequest describes one grid search submission.
type OptimizeRequest struct {
	BacktestRequest
	ParameterSpecs []backtest.ParameterSpec `json:"parameter_specs"`
	TopResults     int                      `json:"top_results,omitempty"`
}

// BacktestService is the application facade. It owns the sequential test
// queue, the optimizer and its result cache, and persists run lifecycle and
// results through the repository.
type BacktestService struct {
	cfg       *config.Config
	provider  marketdata.Provider
	repo      repository.BacktestRepository
	queue     *backtest.TestQueue
	optimizer *backtest.Optimizer
	sink      progress.Sink
	runLogger *logger.RunLogger
	logger    *logrus.Logger

	mu      sync.RWMutex
	engines map[uuid.UUID]*backtest.Engine
}

// NewBacktestService wires the service. The sink receives live progress
// updates in addition to the repository persistence this service does
// itself; pass nil when no streaming is needed.
func NewBacktestService(cfg *config.Config, provider marketdata.Provider, repo repository.BacktestRepository, sink progress.Sink, log *logrus.Logger) *BacktestService {
	if log == nil {
		log = logrus.New()
	}
	if sink == nil {
		sink = progress.NopSink{}
	}
	svc := &BacktestService{
		cfg:       cfg,
		provider:  provider,
		repo:      repo,
		queue:     backtest.NewTestQueue(log),
		sink:      sink,
		runLogger: logger.NewRunLogger(log),
		logger:    log,
		engines:   make(map[uuid.UUID]*backtest.Engine),
	}
	svc.optimizer = backtest.NewOptimizer(backtest.EngineFactory{
		Provider: provider,
		Sink:     progress.NopSink{},
		Logger:   log,
	}, svc.queue, cfg.CacheTTL(), log)
	return svc
}

// CreateBacktest validates the request and persists a pending run record.
// The run does not execute until Submit is called.
func (s *BacktestService) CreateBacktest(ctx context.Context, req BacktestRequest) (*models.BacktestRun, error) {
	cfg, err := s.buildConfig(req)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	paramsJSON, err := json.Marshal(req.Params)
	if err != nil {
		return nil, fmt.Errorf("failed to encode parameters: %w", err)
	}

	run := &models.BacktestRun{
		ID:             uuid.New(),
		StrategyName:   req.StrategyName,
		Symbols:        req.Symbols,
		Timeframe:      req.Timeframe,
		StartDate:      req.StartDate,
		EndDate:        req.EndDate,
		InitialCapital: cfg.InitialCapital,
		ParamsJSON:     paramsJSON,
		Status:         string(backtest.StatusPending),
	}
	if err := s.repo.Create(ctx, run); err != nil {
		return nil, err
	}
	return run, nil
}

// Submit enqueues a previously created run for execution and returns its
// queue entry. The run executes when it reaches the head of the queue.
func (s *BacktestService) Submit(ctx context.Context, id uuid.UUID) (*backtest.QueueEntry, error) {
	run, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if run.Status != string(backtest.StatusPending) {
		return nil, fmt.Errorf("backtest %s is %s, only pending runs can be submitted", id, run.Status)
	}

	req, err := s.requestFromRun(run)
	if err != nil {
		return nil, err
	}
	cfg, err := s.buildConfig(req)
	if err != nil {
		return nil, err
	}

	engine, err := backtest.NewEngine(id, cfg, s.provider, progress.MultiSink{s.sink, s.persistSink()}, s.logger)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.engines[id] = engine
	s.mu.Unlock()

	entry := s.queue.Submit(&trackedRun{service: s, engine: engine})
	if entry == nil {
		s.mu.Lock()
		delete(s.engines, id)
		s.mu.Unlock()
		return nil, fmt.Errorf("queue is shut down")
	}
	s.runLogger.LogRunQueued(id, run.StrategyName, run.Symbols, s.queue.Depth())
	return entry, nil
}

// RunBacktest creates, enqueues and waits for one backtest. Convenience
// wrapper used by the CLI and the scheduler.
func (s *BacktestService) RunBacktest(ctx context.Context, req BacktestRequest) (*backtest.Result, error) {
	run, err := s.CreateBacktest(ctx, req)
	if err != nil {
		return nil, err
	}
	entry, err := s.Submit(ctx, run.ID)
	if err != nil {
		return nil, err
	}

	select {
	case <-entry.Done:
		return entry.Result, entry.Err
	case <-ctx.Done():
		s.queue.Cancel(run.ID)
		<-entry.Done
		return entry.Result, entry.Err
	}
}

// OptimizeStrategy runs a grid search over the request's parameter specs.
func (s *BacktestService) OptimizeStrategy(ctx context.Context, req OptimizeRequest) (*backtest.OptimizationResult, error) {
	cfg, err := s.buildConfig(req.BacktestRequest)
	if err != nil {
		return nil, err
	}
	started := time.Now()
	result, err := s.optimizer.Run(ctx, backtest.OptimizationRequest{
		BaseConfig:      cfg,
		Specs:           req.ParameterSpecs,
		MaxCombinations: s.cfg.Optimization.MaxCombinations,
		TopResults:      firstPositive(req.TopResults, s.cfg.Optimization.TopResults),
	})
	if err != nil {
		return nil, err
	}
	s.runLogger.LogOptimizationSweep(result.ID, result.TotalCombos, result.CachedCombos, len(result.Failed),
		float64(time.Since(started).Milliseconds()))
	return result, nil
}

// GetProgress returns the current status and completion percentage of a run.
// Live runs report from the in-memory engine; finished runs from the store.
func (s *BacktestService) GetProgress(ctx context.Context, id uuid.UUID) (string, float64, error) {
	s.mu.RLock()
	engine, live := s.engines[id]
	s.mu.RUnlock()
	if live {
		return string(engine.Status()), engine.Progress(), nil
	}

	run, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return "", 0, err
	}
	return run.Status, run.Progress, nil
}

// GetResult returns the persisted result of a finished run.
func (s *BacktestService) GetResult(ctx context.Context, id uuid.UUID) (*backtest.Result, error) {
	run, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(run.ResultJSON) == 0 {
		return nil, fmt.Errorf("backtest %s has no result, status is %s", id, run.Status)
	}
	var result backtest.Result
	if err := json.Unmarshal(run.ResultJSON, &result); err != nil {
		return nil, fmt.Errorf("failed to decode stored result: %w", err)
	}
	return &result, nil
}

// Cancel cancels a pending or running backtest.
func (s *BacktestService) Cancel(ctx context.Context, id uuid.UUID) error {
	if !s.queue.Cancel(id) {
		return fmt.Errorf("backtest %s is not pending or running", id)
	}
	return nil
}

// Close shuts the queue down after the current run finishes.
func (s *BacktestService) Close() {
	s.queue.Close()
}

// trackedRun wraps an engine so the service can persist lifecycle changes
// around the queue worker's Run call.
type trackedRun struct {
	service *BacktestService
	engine  *backtest.Engine
}

func (t *trackedRun) ID() uuid.UUID {
	return t.engine.ID()
}

func (t *trackedRun) Run(ctx context.Context) (*backtest.Result, error) {
	s := t.service
	id := t.engine.ID()
	started := time.Now()

	if err := s.repo.UpdateStatus(ctx, id, string(backtest.StatusRunning), 0, ""); err != nil {
		s.logger.WithError(err).Warn("Failed to persist running status")
	}

	result, err := t.engine.Run(ctx)

	s.mu.Lock()
	delete(s.engines, id)
	s.mu.Unlock()

	if err != nil {
		s.runLogger.LogRunFailed(id, string(backtest.StatusFailed), err)
		if updateErr := s.repo.UpdateStatus(context.Background(), id, string(backtest.StatusFailed), t.engine.Progress(), err.Error()); updateErr != nil {
			s.logger.WithError(updateErr).Warn("Failed to persist failed status")
		}
		return nil, err
	}

	resultJSON, marshalErr := json.Marshal(result)
	if marshalErr != nil {
		s.logger.WithError(marshalErr).Warn("Failed to encode result for persistence")
	} else if saveErr := s.repo.SaveResult(context.Background(), id, resultJSON); saveErr != nil {
		s.logger.WithError(saveErr).Warn("Failed to persist result")
	}
	if updateErr := s.repo.UpdateStatus(context.Background(), id, string(backtest.StatusCompleted), 100, ""); updateErr != nil {
		s.logger.WithError(updateErr).Warn("Failed to persist completed status")
	}

	s.runLogger.LogRunCompleted(id, result.Metrics.TotalTrades, result.Metrics.TotalReturn,
		result.Metrics.SharpeRatio, float64(time.Since(started).Milliseconds()))
	return result, nil
}

// persistSink persists progress updates, throttled to whole percent steps
// so the store is not hammered once per bar.
func (s *BacktestService) persistSink() progress.Sink {
	return &repoSink{service: s, last: make(map[uuid.UUID]float64)}
}

type repoSink struct {
	service *BacktestService
	mu      sync.Mutex
	last    map[uuid.UUID]float64
}

func (r *repoSink) Report(id uuid.UUID, percent float64) {
	r.mu.Lock()
	if percent-r.last[id] < 1 && percent < 100 {
		r.mu.Unlock()
		return
	}
	r.last[id] = percent
	if percent >= 100 {
		delete(r.last, id)
	}
	r.mu.Unlock()

	if err := r.service.repo.UpdateStatus(context.Background(), id, string(backtest.StatusRunning), percent, ""); err != nil {
		r.service.logger.WithError(err).Debug("Failed to persist progress")
	}
}

func (s *BacktestService) buildConfig(req BacktestRequest) (backtest.BacktestConfig, error) {
	factory, err := strategy.FactoryFor(req.StrategyName)
	if err != nil {
		return backtest.BacktestConfig{}, backtest.NewConfigurationError("%v", err)
	}

	cfg := backtest.BacktestConfig{
		StrategyFactory: factory,
		Symbols:         req.Symbols,
		Timeframe:       req.Timeframe,
		StartDate:       req.StartDate,
		EndDate:         req.EndDate,
		InitialCapital:  req.InitialCapital,
		CommissionRate:  s.cfg.Backtest.CommissionRate,
		SlippageRate:    s.cfg.Backtest.SlippageRate,
		IndicatorSpecs:  req.IndicatorSpecs,
		Params:          req.Params,
	}
	if cfg.InitialCapital == 0 {
		cfg.InitialCapital = s.cfg.Backtest.InitialCapital
	}
	if req.CommissionRate != nil {
		cfg.CommissionRate = *req.CommissionRate
	}
	if req.SlippageRate != nil {
		cfg.SlippageRate = *req.SlippageRate
	}
	return cfg, nil
}

func (s *BacktestService) requestFromRun(run *models.BacktestRun) (BacktestRequest, error) {
	var params map[string]interface{}
	if len(run.ParamsJSON) > 0 {
		if err := json.Unmarshal(run.ParamsJSON, &params); err != nil {
			return BacktestRequest{}, fmt.Errorf("failed to decode stored parameters: %w", err)
		}
	}
	return BacktestRequest{
		StrategyName:   run.StrategyName,
		Symbols:        run.Symbols,
		Timeframe:      run.Timeframe,
		StartDate:      run.StartDate,
		EndDate:        run.EndDate,
		InitialCapital: run.InitialCapital,
		Params:         params,
	}, nil
}

func firstPositive(values ...int) int {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}
