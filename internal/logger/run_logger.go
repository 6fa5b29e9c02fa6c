// Package logger provides backtest run logging.
package logger

import (
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// RunLogger provides dedicated logging for backtest run lifecycle events.
type RunLogger struct {
	*logrus.Entry
}

// NewRunLogger creates a new run logger.
func NewRunLogger(baseLogger *logrus.Logger) *RunLogger {
	return &RunLogger{
		Entry: baseLogger.WithField("component", "backtest"),
	}
}

// LogRunQueued logs a backtest entering the queue.
func (rl *RunLogger) LogRunQueued(id uuid.UUID, strategyName string, symbols []string, queueDepth int) {
	rl.WithFields(logrus.Fields{
		"backtest_id":   id,
		"strategy_name": strategyName,
		"symbols":       symbols,
		"queue_depth":   queueDepth,
	}).Info("Backtest queued")
}

// LogRunStarted logs the start of a backtest run.
func (rl *RunLogger) LogRunStarted(id uuid.UUID, strategyName string, start, end time.Time, initialCapital float64) {
	rl.WithFields(logrus.Fields{
		"backtest_id":     id,
		"strategy_name":   strategyName,
		"start_date":      start,
		"end_date":        end,
		"initial_capital": initialCapital,
	}).Info("Backtest started")
}

// LogRunCompleted logs a successful backtest run.
func (rl *RunLogger) LogRunCompleted(id uuid.UUID, totalTrades int, totalReturn, sharpeRatio float64, durationMs float64) {
	rl.WithFields(logrus.Fields{
		"backtest_id":  id,
		"total_trades": totalTrades,
		"total_return": totalReturn,
		"sharpe_ratio": sharpeRatio,
		"duration_ms":  durationMs,
	}).Info("Backtest completed")
}

// LogRunFailed logs a failed backtest run.
func (rl *RunLogger) LogRunFailed(id uuid.UUID, status string, err error) {
	rl.WithFields(logrus.Fields{
		"backtest_id": id,
		"status":      status,
		"error":       err,
	}).Error("Backtest failed")
}

// LogOptimizationSweep logs the completion of an optimization sweep.
func (rl *RunLogger) LogOptimizationSweep(id uuid.UUID, totalCombos, cached, failed int, durationMs float64) {
	rl.WithFields(logrus.Fields{
		"optimization_id": id,
		"total_combos":    totalCombos,
		"cached_combos":   cached,
		"failed_combos":   failed,
		"duration_ms":     durationMs,
	}).Info("Optimization sweep completed")
}
