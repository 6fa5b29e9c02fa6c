// Package repository provides data access for persisted backtest runs.
package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/yourusername/quantbench/internal/models"
)

// BacktestRepository defines the interface for backtest run persistence
type BacktestRepository interface {
	Create(ctx context.Context, run *models.BacktestRun) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.BacktestRun, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string, progress float64, errMsg string) error
	SaveResult(ctx context.Context, id uuid.UUID, resultJSON []byte) error
	GetLatest(ctx context.Context, limit int) ([]*models.BacktestRun, error)
	GetByStrategy(ctx context.Context, strategyName string, limit int) ([]*models.BacktestRun, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
