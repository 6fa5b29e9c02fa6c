package repository

import (
	"fmt"

	"github.com/yourusername/quantbench/internal/database"
)

// Repositories holds all repository implementations
type Repositories struct {
	Backtest BacktestRepository
}

// NewRepositories creates and returns all repository implementations
func NewRepositories(db *database.DB) (*Repositories, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	return &Repositories{
		Backtest: NewPostgresBacktestRepository(db),
	}, nil
}
