package tools

import (
	"time"

	"github.com/dyike/StockAnalyzer/internal/metrics"
)

func observe(name string, start time.Time, outcome string) {
	metrics.ToolDuration.WithLabelValues(name, outcome).Observe(time.Since(start).Seconds())
}
