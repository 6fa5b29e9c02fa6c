package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/yourusername/quantbench/internal/models"
)

// MemoryBacktestRepository implements BacktestRepository in memory. Used by
// the CLIs and by tests where no database is available.
type MemoryBacktestRepository struct {
	mu   sync.RWMutex
	runs map[uuid.UUID]*models.BacktestRun
}

// NewMemoryBacktestRepository creates an empty in-memory repository
func NewMemoryBacktestRepository() *MemoryBacktestRepository {
	return &MemoryBacktestRepository{runs: make(map[uuid.UUID]*models.BacktestRun)}
}

// Create inserts a new backtest run record
func (r *MemoryBacktestRepository) Create(ctx context.Context, run *models.BacktestRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.runs[run.ID]; exists {
		return fmt.Errorf("backtest run %s already exists", run.ID)
	}
	now := time.Now().UTC()
	if run.CreatedAt.IsZero() {
		run.CreatedAt = now
	}
	run.UpdatedAt = now
	copied := *run
	r.runs[run.ID] = &copied
	return nil
}

// GetByID retrieves a backtest run by ID
func (r *MemoryBacktestRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.BacktestRun, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	run, ok := r.runs[id]
	if !ok {
		return nil, fmt.Errorf("backtest run %s not found", id)
	}
	copied := *run
	return &copied, nil
}

// UpdateStatus updates the lifecycle state and progress of a run
func (r *MemoryBacktestRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string, progress float64, errMsg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[id]
	if !ok {
		return fmt.Errorf("backtest run %s not found", id)
	}
	run.Status = status
	run.Progress = progress
	run.Error = errMsg
	run.UpdatedAt = time.Now().UTC()
	return nil
}

// SaveResult stores the full result document for a completed run
func (r *MemoryBacktestRepository) SaveResult(ctx context.Context, id uuid.UUID, resultJSON []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[id]
	if !ok {
		return fmt.Errorf("backtest run %s not found", id)
	}
	run.ResultJSON = resultJSON
	run.UpdatedAt = time.Now().UTC()
	return nil
}

// GetLatest retrieves the most recent backtest runs
func (r *MemoryBacktestRepository) GetLatest(ctx context.Context, limit int) ([]*models.BacktestRun, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	runs := make([]*models.BacktestRun, 0, len(r.runs))
	for _, run := range r.runs {
		copied := *run
		runs = append(runs, &copied)
	}
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].CreatedAt.After(runs[j].CreatedAt)
	})
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

// GetByStrategy retrieves recent runs of one strategy
func (r *MemoryBacktestRepository) GetByStrategy(ctx context.Context, strategyName string, limit int) ([]*models.BacktestRun, error) {
	all, err := r.GetLatest(ctx, 0)
	if err != nil {
		return nil, err
	}
	var runs []*models.BacktestRun
	for _, run := range all {
		if run.StrategyName == strategyName {
			runs = append(runs, run)
		}
	}
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

// Delete removes a backtest run record
func (r *MemoryBacktestRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.runs[id]; !ok {
		return fmt.Errorf("backtest run %s not found", id)
	}
	delete(r.runs, id)
	return nil
}
