package marketdata

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/yourusername/quantbench/internal/models"
)

// MemoryProvider serves candles from in-memory series. Used by tests and by
// the CLI when running against local CSV fixtures.
type MemoryProvider struct {
	series map[string][]models.Candle
}

// NewMemoryProvider returns an empty in-memory provider.
func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{series: make(map[string][]models.Candle)}
}

// Name returns the provider name.
func (p *MemoryProvider) Name() string {
	return "memory"
}

// Add registers a candle series for a symbol and timeframe.
func (p *MemoryProvider) Add(symbol string, timeframe models.Timeframe, candles []models.Candle) {
	p.series[seriesKey(symbol, timeframe)] = candles
}

// GetCandles returns the registered candles within [start, end].
func (p *MemoryProvider) GetCandles(ctx context.Context, symbol string, timeframe models.Timeframe, start, end time.Time) ([]models.Candle, error) {
	_ = ctx
	candles, ok := p.series[seriesKey(symbol, timeframe)]
	if !ok {
		return nil, NewProviderError(p.Name(), ErrCodeNotFound, fmt.Sprintf("no series for symbol %s timeframe %s", symbol, timeframe), nil)
	}
	var out []models.Candle
	for _, candle := range candles {
		if candle.Timestamp.Before(start) || candle.Timestamp.After(end) {
			continue
		}
		out = append(out, candle)
	}
	return out, nil
}

// LoadCSV reads a candle series from a CSV file with the header
// timestamp,open,high,low,close,volume (RFC 3339 timestamps) and registers
// it under the given symbol and timeframe.
func (p *MemoryProvider) LoadCSV(path, symbol string, timeframe models.Timeframe) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open candle file: %w", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return fmt.Errorf("failed to read candle file %s: %w", path, err)
	}
	if len(rows) < 2 {
		return fmt.Errorf("candle file %s has no data rows", path)
	}

	candles := make([]models.Candle, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if len(row) != 6 {
			return fmt.Errorf("candle file %s row %d: expected 6 columns, got %d", path, i+2, len(row))
		}
		ts, err := time.Parse(time.RFC3339, row[0])
		if err != nil {
			return fmt.Errorf("candle file %s row %d: %w", path, i+2, err)
		}
		fields := make([]float64, 5)
		for j := 0; j < 5; j++ {
			fields[j], err = strconv.ParseFloat(row[j+1], 64)
			if err != nil {
				return fmt.Errorf("candle file %s row %d: %w", path, i+2, err)
			}
		}
		candles = append(candles, models.Candle{
			Timestamp: ts,
			Open:      fields[0],
			High:      fields[1],
			Low:       fields[2],
			Close:     fields[3],
			Volume:    fields[4],
		})
	}
	p.Add(symbol, timeframe, candles)
	return nil
}

func seriesKey(symbol string, timeframe models.Timeframe) string {
	return symbol + "|" + string(timeframe)
}
