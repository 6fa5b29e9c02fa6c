// Package progress delivers backtest progress updates to interested
// listeners. Reporting is fire-and-forget: a slow or absent listener never
// blocks the bar loop.
package progress

import (
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Sink receives progress updates for a running backtest.
type Sink interface {
	Report(id uuid.UUID, percent float64)
}

// NopSink discards all updates.
type NopSink struct{}

// Report implements Sink.
func (NopSink) Report(uuid.UUID, float64) {}

// LogSink writes progress updates to the logger at debug level.
type LogSink struct {
	Logger *logrus.Logger
}

// Report implements Sink.
func (s LogSink) Report(id uuid.UUID, percent float64) {
	if s.Logger == nil {
		return
	}
	s.Logger.WithFields(logrus.Fields{
		"backtest_id": id,
		"percent":     percent,
	}).Debug("Backtest progress")
}

// MultiSink fans updates out to several sinks.
type MultiSink []Sink

// Report implements Sink.
func (m MultiSink) Report(id uuid.UUID, percent float64) {
	for _, sink := range m {
		sink.Report(id, percent)
	}
}
