// Package marketdata fetches historical candle series from external
// providers.
package marketdata

import (
	"context"
	"time"

	"github.com/yourusername/quantbench/internal/models"
)

// Provider is the interface for historical candle retrieval. The engine
// makes one call per symbol per backtest; implementations must return
// candles in ascending timestamp order.
type Provider interface {
	GetCandles(ctx context.Context, symbol string, timeframe models.Timeframe, start, end time.Time) ([]models.Candle, error)
	Name() string
}

// ProviderError classifies a failed provider operation.
type ProviderError struct {
	Provider string
	Code     string
	Message  string
	Err      error
}

func (e ProviderError) Error() string {
	if e.Err != nil {
		return e.Provider + ": " + e.Code + ": " + e.Message + " (" + e.Err.Error() + ")"
	}
	return e.Provider + ": " + e.Code + ": " + e.Message
}

func (e ProviderError) Unwrap() error {
	return e.Err
}

// Common error codes.
const (
	ErrCodeRateLimitExceeded = "rate_limit_exceeded"
	ErrCodeNotFound          = "not_found"
	ErrCodeInvalidData       = "invalid_data"
	ErrCodeNetworkError      = "network_error"
	ErrCodeServerError       = "server_error"
)

// NewProviderError creates a provider error.
func NewProviderError(provider, code, message string, err error) ProviderError {
	return ProviderError{Provider: provider, Code: code, Message: message, Err: err}
}
