package strategy

import (
	"context"
	"testing"
	"time"

	"github.com/yourusername/quantbench/internal/models"
)

func barContextFor(symbol string, closes []float64, index int, position *models.Position) BarContext {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	history := make([]models.Candle, 0, index+1)
	for i := 0; i <= index; i++ {
		c := closes[i]
		history = append(history, models.Candle{
			Timestamp: start.Add(time.Duration(i) * time.Hour),
			Open:      c, High: c, Low: c, Close: c,
		})
	}
	positions := map[string]models.Position{}
	if position != nil {
		positions[symbol] = *position
	}
	return BarContext{
		Timestamp: history[index].Timestamp,
		Index:     index,
		Bars:      map[string]models.Candle{symbol: history[index]},
		History:   map[string][]models.Candle{symbol: history},
		Positions: positions,
		Cash:      10000,
	}
}

func TestSMACrossBuySignal(t *testing.T) {
	strat, err := NewSMACross(map[string]interface{}{"fast": 2, "slow": 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	closes := []float64{10, 9, 8, 12}

	// Warmup bars produce no signals.
	for i := 0; i < 3; i++ {
		signals, err := strat.Evaluate(context.Background(), barContextFor("BTC-USD", closes, i, nil))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(signals) != 0 {
			t.Fatalf("expected no signal on warmup bar %d, got %v", i, signals)
		}
	}

	// Fast mean 10 crosses above slow mean 9.67 at bar 3.
	signals, err := strat.Evaluate(context.Background(), barContextFor("BTC-USD", closes, 3, nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(signals) != 1 {
		t.Fatalf("expected one buy signal, got %v", signals)
	}
	sig := signals[0]
	if sig.Side != models.SideBuy || sig.Symbol != "BTC-USD" || sig.Price != 12 || sig.Size != 1 {
		t.Fatalf("unexpected signal %+v", sig)
	}
}

func TestSMACrossNoRebuyWhileHolding(t *testing.T) {
	strat, err := NewSMACross(map[string]interface{}{"fast": 2, "slow": 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	closes := []float64{10, 9, 8, 12}
	holding := &models.Position{Symbol: "BTC-USD", NetSize: 1, AvgEntryPrice: 9}
	signals, err := strat.Evaluate(context.Background(), barContextFor("BTC-USD", closes, 3, holding))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(signals) != 0 {
		t.Fatalf("expected no signal while holding, got %v", signals)
	}
}

func TestSMACrossSellSignalExitsFullPosition(t *testing.T) {
	strat, err := NewSMACross(map[string]interface{}{"fast": 2, "slow": 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Fast mean drops below the slow mean at the last bar.
	closes := []float64{10, 9, 8, 12, 14, 7}
	holding := &models.Position{Symbol: "BTC-USD", NetSize: 2.5, AvgEntryPrice: 12}
	signals, err := strat.Evaluate(context.Background(), barContextFor("BTC-USD", closes, 5, holding))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(signals) != 1 {
		t.Fatalf("expected one sell signal, got %v", signals)
	}
	sig := signals[0]
	if sig.Side != models.SideSell || sig.Size != 2.5 || sig.Price != 7 {
		t.Fatalf("unexpected signal %+v", sig)
	}

	// No position, no exit.
	signals, err = strat.Evaluate(context.Background(), barContextFor("BTC-USD", closes, 5, nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(signals) != 0 {
		t.Fatalf("expected no signal without a position, got %v", signals)
	}
}

func TestNewSMACrossValidation(t *testing.T) {
	if _, err := NewSMACross(map[string]interface{}{"fast": 30, "slow": 10}); err == nil {
		t.Fatalf("expected error for fast >= slow")
	}
	if _, err := NewSMACross(map[string]interface{}{"fast": 10, "slow": 10}); err == nil {
		t.Fatalf("expected error for equal periods")
	}
	if _, err := NewSMACross(map[string]interface{}{"fast": 0, "slow": 10}); err == nil {
		t.Fatalf("expected error for zero fast period")
	}
	if _, err := NewSMACross(map[string]interface{}{"fast": 2.5, "slow": 10}); err == nil {
		t.Fatalf("expected error for fractional period")
	}

	strat, err := NewSMACross(nil)
	if err != nil {
		t.Fatalf("unexpected error with defaults: %v", err)
	}
	params := strat.Parameters()
	if params["fast"] != 10 || params["slow"] != 30 {
		t.Fatalf("unexpected defaults: %v", params)
	}
}

func TestBuyHoldBuysOnceOnFirstBar(t *testing.T) {
	strat, err := NewBuyHold(map[string]interface{}{"size": 2.0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	closes := []float64{100, 110}
	signals, err := strat.Evaluate(context.Background(), barContextFor("BTC-USD", closes, 0, nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(signals) != 1 {
		t.Fatalf("expected one signal on bar zero, got %v", signals)
	}
	sig := signals[0]
	if sig.Side != models.SideBuy || sig.Size != 2 || sig.Price != 100 {
		t.Fatalf("unexpected signal %+v", sig)
	}

	signals, err = strat.Evaluate(context.Background(), barContextFor("BTC-USD", closes, 1, nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(signals) != 0 {
		t.Fatalf("expected no signals after bar zero, got %v", signals)
	}
}

func TestRegistry(t *testing.T) {
	if _, err := New("martingale", nil); err == nil {
		t.Fatalf("expected error for unknown strategy")
	}
	if _, err := FactoryFor("martingale"); err == nil {
		t.Fatalf("expected error for unknown factory")
	}

	strat, err := New("sma_cross", map[string]interface{}{"fast": 5, "slow": 20})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strat.Name() != "sma_cross" {
		t.Fatalf("unexpected strategy %q", strat.Name())
	}

	factory, err := FactoryFor("buy_hold")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strat, err = factory(nil); err != nil || strat.Name() != "buy_hold" {
		t.Fatalf("factory returned %v, %v", strat, err)
	}
}

func TestParamHelpers(t *testing.T) {
	params := map[string]interface{}{"f": 1.5, "i": 3, "s": "nope"}

	if v, err := FloatParam(params, "f", 0); err != nil || v != 1.5 {
		t.Fatalf("FloatParam: got %v, %v", v, err)
	}
	if v, err := FloatParam(params, "i", 0); err != nil || v != 3 {
		t.Fatalf("FloatParam from int: got %v, %v", v, err)
	}
	if v, err := FloatParam(params, "missing", 7); err != nil || v != 7 {
		t.Fatalf("FloatParam fallback: got %v, %v", v, err)
	}
	if _, err := FloatParam(params, "s", 0); err == nil {
		t.Fatalf("expected error for string parameter")
	}

	if v, err := IntParam(params, "i", 0); err != nil || v != 3 {
		t.Fatalf("IntParam: got %v, %v", v, err)
	}
	if _, err := IntParam(params, "f", 0); err == nil {
		t.Fatalf("expected error for fractional int parameter")
	}
}
