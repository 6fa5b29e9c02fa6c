package metrics

import (
	"net/http"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
)

func TestMetricsRegistry(t *testing.T) {
	InitRegistry()
	registry := GetRegistry()

	assert.NotNil(t, registry)
	assert.IsType(t, &prometheus.Registry{}, registry)
}

func TestRecordBacktestRun(t *testing.T) {
	InitRegistry()

	assert.NotPanics(t, func() {
		RecordBacktestRun("completed", 1.5)
	})
	assert.NotPanics(t, func() {
		RecordBacktestRun("failed", 0.1)
	})
}

func TestRecordOptimizationSweep(t *testing.T) {
	InitRegistry()

	assert.NotPanics(t, func() {
		RecordOptimizationSweep()
	})
}

func TestCacheCounters(t *testing.T) {
	InitRegistry()

	assert.NotPanics(t, func() {
		RecordCacheHit()
		RecordCacheMiss()
	})
}

func TestRecordSignal(t *testing.T) {
	InitRegistry()

	assert.NotPanics(t, func() {
		RecordSignal("buy")
		RecordSignal("sell")
	})
}

func TestUpdateQueueDepth(t *testing.T) {
	InitRegistry()

	tests := []struct {
		name  string
		depth float64
	}{
		{name: "empty queue", depth: 0},
		{name: "busy queue", depth: 25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				UpdateQueueDepth(tt.depth)
			})
		})
	}
}

func TestUpdateRunningBacktests(t *testing.T) {
	InitRegistry()

	assert.NotPanics(t, func() {
		UpdateRunningBacktests(1)
		UpdateRunningBacktests(0)
	})
}

func TestObserveCandleFetch(t *testing.T) {
	InitRegistry()

	assert.NotPanics(t, func() {
		ObserveCandleFetch("rest", 0.25)
	})
}

func TestMetricsHandler(t *testing.T) {
	InitRegistry()

	handler := Handler()
	assert.NotNil(t, handler)
	assert.Implements(t, (*http.Handler)(nil), handler)
}

func BenchmarkRecordCacheHit(b *testing.B) {
	InitRegistry()

	for i := 0; i < b.N; i++ {
		RecordCacheHit()
	}
}

func BenchmarkUpdateQueueDepth(b *testing.B) {
	InitRegistry()

	for i := 0; i < b.N; i++ {
		UpdateQueueDepth(10)
	}
}
