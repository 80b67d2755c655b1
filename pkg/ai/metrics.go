package ai

import (
	"math"
	"sync"
)

// MetricsTracker accumulates ModelMetrics across concurrent requests.
// Backends embed it to satisfy ResetMetrics and GetMetrics.
type MetricsTracker struct {
	mu      sync.Mutex
	metrics ModelMetrics
}

// ResetMetrics clears all accumulated token and timing metrics to zero.
func (t *MetricsTracker) ResetMetrics() {
	t.mu.Lock()
	t.metrics = ModelMetrics{}
	t.mu.Unlock()
}

// GetMetrics returns the accumulated metrics since the last reset.
func (t *MetricsTracker) GetMetrics() ModelMetrics {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.metrics
}

// AddMetrics adds m to the running totals.
func (t *MetricsTracker) AddMetrics(m ModelMetrics) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.metrics.InputTokens += m.InputTokens
	t.metrics.OutputTokens += m.OutputTokens
	t.metrics.TotalTokens += m.TotalTokens
	t.metrics.DurationMs += m.DurationMs

	if t.metrics.DurationMs > 0 {
		tokensPerSecond := (float64(t.metrics.TotalTokens) * 1000.0) / float64(t.metrics.DurationMs)
		t.metrics.TokenPerSecond = float32(math.Round(tokensPerSecond*100) / 100)
	}
}
