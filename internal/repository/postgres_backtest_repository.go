package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/yourusername/quantbench/internal/database"
	"github.com/yourusername/quantbench/internal/models"
)

const errScanBacktestRun = "failed to scan backtest run: %w"

const backtestRunColumns = `
	id, strategy_name, symbols, timeframe, start_date, end_date,
	initial_capital, params, status, progress, error, result, created_at, updated_at
`

// PostgresBacktestRepository implements BacktestRepository for PostgreSQL
type PostgresBacktestRepository struct {
	db *database.DB
}

// NewPostgresBacktestRepository creates a new backtest run repository
func NewPostgresBacktestRepository(db *database.DB) BacktestRepository {
	return &PostgresBacktestRepository{db: db}
}

// Create inserts a new backtest run record
func (r *PostgresBacktestRepository) Create(ctx context.Context, run *models.BacktestRun) error {
	query := `
		INSERT INTO backtest_runs (
			id, strategy_name, symbols, timeframe, start_date, end_date,
			initial_capital, params, status, progress, error, result, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
	`

	now := time.Now().UTC()
	if run.CreatedAt.IsZero() {
		run.CreatedAt = now
	}
	run.UpdatedAt = now

	_, err := r.db.GetPool().Exec(ctx, query,
		run.ID, run.StrategyName, run.Symbols, string(run.Timeframe), run.StartDate, run.EndDate,
		run.InitialCapital, run.ParamsJSON, run.Status, run.Progress, run.Error, run.ResultJSON,
		run.CreatedAt, run.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create backtest run: %w", err)
	}
	return nil
}

// GetByID retrieves a backtest run by ID
func (r *PostgresBacktestRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.BacktestRun, error) {
	query := `SELECT ` + backtestRunColumns + ` FROM backtest_runs WHERE id = $1`
	row := r.db.GetPool().QueryRow(ctx, query, id)
	run, err := scanBacktestRun(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("backtest run %s not found", id)
		}
		return nil, err
	}
	return run, nil
}

// UpdateStatus updates the lifecycle state and progress of a run
func (r *PostgresBacktestRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string, progress float64, errMsg string) error {
	query := `
		UPDATE backtest_runs
		SET status = $2, progress = $3, error = $4, updated_at = $5
		WHERE id = $1
	`
	tag, err := r.db.GetPool().Exec(ctx, query, id, status, progress, errMsg, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to update backtest run status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("backtest run %s not found", id)
	}
	return nil
}

// SaveResult stores the full result document for a completed run
func (r *PostgresBacktestRepository) SaveResult(ctx context.Context, id uuid.UUID, resultJSON []byte) error {
	query := `
		UPDATE backtest_runs
		SET result = $2, updated_at = $3
		WHERE id = $1
	`
	tag, err := r.db.GetPool().Exec(ctx, query, id, resultJSON, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save backtest result: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("backtest run %s not found", id)
	}
	return nil
}

// GetLatest retrieves the most recent backtest runs
func (r *PostgresBacktestRepository) GetLatest(ctx context.Context, limit int) ([]*models.BacktestRun, error) {
	query := `SELECT ` + backtestRunColumns + ` FROM backtest_runs ORDER BY created_at DESC LIMIT $1`
	rows, err := r.db.GetPool().Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query latest backtest runs: %w", err)
	}
	defer rows.Close()
	return scanBacktestRuns(rows)
}

// GetByStrategy retrieves recent runs of one strategy
func (r *PostgresBacktestRepository) GetByStrategy(ctx context.Context, strategyName string, limit int) ([]*models.BacktestRun, error) {
	query := `
		SELECT ` + backtestRunColumns + `
		FROM backtest_runs WHERE strategy_name = $1
		ORDER BY created_at DESC LIMIT $2
	`
	rows, err := r.db.GetPool().Query(ctx, query, strategyName, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query backtest runs by strategy: %w", err)
	}
	defer rows.Close()
	return scanBacktestRuns(rows)
}

// Delete removes a backtest run record
func (r *PostgresBacktestRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.GetPool().Exec(ctx, `DELETE FROM backtest_runs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete backtest run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("backtest run %s not found", id)
	}
	return nil
}

func scanBacktestRun(row pgx.Row) (*models.BacktestRun, error) {
	run := &models.BacktestRun{}
	var timeframe string
	if err := row.Scan(
		&run.ID, &run.StrategyName, &run.Symbols, &timeframe, &run.StartDate, &run.EndDate,
		&run.InitialCapital, &run.ParamsJSON, &run.Status, &run.Progress, &run.Error, &run.ResultJSON,
		&run.CreatedAt, &run.UpdatedAt,
	); err != nil {
		return nil, fmt.Errorf(errScanBacktestRun, err)
	}
	run.Timeframe = models.Timeframe(timeframe)
	return run, nil
}

func scanBacktestRuns(rows pgx.Rows) ([]*models.BacktestRun, error) {
	var runs []*models.BacktestRun
	for rows.Next() {
		run, err := scanBacktestRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
