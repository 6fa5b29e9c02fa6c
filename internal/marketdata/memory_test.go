package marketdata

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/yourusername/quantbench/internal/models"
)

func hourlyCandles(start time.Time, closes ...float64) []models.Candle {
	candles := make([]models.Candle, 0, len(closes))
	for i, c := range closes {
		candles = append(candles, models.Candle{
			Timestamp: start.Add(time.Duration(i) * time.Hour),
			Open:      c, High: c, Low: c, Close: c,
			Volume: 100,
		})
	}
	return candles
}

func TestMemoryProviderRangeFilter(t *testing.T) {
	provider := NewMemoryProvider()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	provider.Add("BTC-USD", models.Timeframe1h, hourlyCandles(start, 1, 2, 3, 4, 5))

	got, err := provider.GetCandles(context.Background(), "BTC-USD", models.Timeframe1h,
		start.Add(time.Hour), start.Add(3*time.Hour))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 candles in range, got %d", len(got))
	}
	if got[0].Close != 2 || got[2].Close != 4 {
		t.Fatalf("unexpected window: %v", got)
	}
}

func TestMemoryProviderUnknownSeries(t *testing.T) {
	provider := NewMemoryProvider()
	_, err := provider.GetCandles(context.Background(), "BTC-USD", models.Timeframe1h,
		time.Now().Add(-time.Hour), time.Now())
	if err == nil {
		t.Fatalf("expected error for unknown series")
	}
	var perr ProviderError
	if !errors.As(err, &perr) || perr.Code != ErrCodeNotFound {
		t.Fatalf("expected not_found provider error, got %v", err)
	}
}

func TestMemoryProviderSeriesAreTimeframeScoped(t *testing.T) {
	provider := NewMemoryProvider()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	provider.Add("BTC-USD", models.Timeframe1h, hourlyCandles(start, 1, 2))

	if _, err := provider.GetCandles(context.Background(), "BTC-USD", models.Timeframe1d, start, start.Add(24*time.Hour)); err == nil {
		t.Fatalf("expected error for unregistered timeframe")
	}
}

func TestLoadCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "candles.csv")
	content := "timestamp,open,high,low,close,volume\n" +
		"2024-01-01T00:00:00Z,100,105,99,104,1200\n" +
		"2024-01-01T01:00:00Z,104,110,103,108,900\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}

	provider := NewMemoryProvider()
	if err := provider.LoadCSV(path, "BTC-USD", models.Timeframe1h); err != nil {
		t.Fatalf("load failed: %v", err)
	}

	got, err := provider.GetCandles(context.Background(), "BTC-USD", models.Timeframe1h,
		time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 candles, got %d", len(got))
	}
	if got[0].Open != 100 || got[0].Close != 104 || got[0].Volume != 1200 {
		t.Fatalf("unexpected candle %+v", got[0])
	}
	if !got[1].Timestamp.Equal(time.Date(2024, 1, 1, 1, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected timestamp %v", got[1].Timestamp)
	}
}

func TestLoadCSVRejectsMalformedFiles(t *testing.T) {
	dir := t.TempDir()
	provider := NewMemoryProvider()

	if err := provider.LoadCSV(filepath.Join(dir, "missing.csv"), "BTC-USD", models.Timeframe1h); err == nil {
		t.Fatalf("expected error for missing file")
	}

	headerOnly := filepath.Join(dir, "header.csv")
	if err := os.WriteFile(headerOnly, []byte("timestamp,open,high,low,close,volume\n"), 0o644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}
	if err := provider.LoadCSV(headerOnly, "BTC-USD", models.Timeframe1h); err == nil {
		t.Fatalf("expected error for file without data rows")
	}

	badTimestamp := filepath.Join(dir, "badts.csv")
	if err := os.WriteFile(badTimestamp, []byte("timestamp,open,high,low,close,volume\nnot-a-time,1,1,1,1,1\n"), 0o644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}
	if err := provider.LoadCSV(badTimestamp, "BTC-USD", models.Timeframe1h); err == nil {
		t.Fatalf("expected error for bad timestamp")
	}

	badNumber := filepath.Join(dir, "badnum.csv")
	if err := os.WriteFile(badNumber, []byte("timestamp,open,high,low,close,volume\n2024-01-01T00:00:00Z,1,1,1,x,1\n"), 0o644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}
	if err := provider.LoadCSV(badNumber, "BTC-USD", models.Timeframe1h); err == nil {
		t.Fatalf("expected error for bad numeric field")
	}
}
