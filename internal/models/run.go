package models

import (
	"time"

	"github.com/google/uuid"
)

// BacktestRun is the persisted record of one backtest request and its
// lifecycle. ParamsJSON and ResultJSON hold the raw request parameters and
// the full result document as JSON.
type BacktestRun struct {
	ID             uuid.UUID `json:"id"`
	StrategyName   string    `json:"strategy_name"`
	Symbols        []string  `json:"symbols"`
	Timeframe      Timeframe `json:"timeframe"`
	StartDate      time.Time `json:"start_date"`
	EndDate        time.Time `json:"end_date"`
	InitialCapital float64   `json:"initial_capital"`
	ParamsJSON     []byte    `json:"params_json,omitempty"`
	Status         string    `json:"status"`
	Progress       float64   `json:"progress"`
	Error          string    `json:"error,omitempty"`
	ResultJSON     []byte    `json:"result_json,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}
