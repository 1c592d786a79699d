package metrics

import (
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// DefaultRegistry backs the /metrics endpoint.
var DefaultRegistry = prometheus.NewRegistry()

func init() {
	DefaultRegistry.MustRegister(
		JobTotal, JobDuration, JobsRunning,
		TurnTotal, ToolDuration, LLMTokensTotal,
		HTTPRequests,
	)
}

// JobTotal counts jobs by final status.
var JobTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "stockanalyzer_job_total",
		Help: "Analysis jobs by final status.",
	},
	[]string{"status"}, // completed | failed
)

var JobDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "stockanalyzer_job_duration_seconds",
		Help:    "Wall time of analysis jobs in seconds.",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
	},
	[]string{"status"},
)

var JobsRunning = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "stockanalyzer_jobs_running",
		Help: "Jobs currently executing the agent pipeline.",
	},
)

// TurnTotal counts conversation turns by participant.
var TurnTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "stockanalyzer_turn_total",
		Help: "Conversation turns taken, by participant.",
	},
	[]string{"participant"},
)

var ToolDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "stockanalyzer_tool_duration_seconds",
		Help:    "Tool call latency in seconds.",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"tool", "outcome"},
)

var LLMTokensTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "stockanalyzer_llm_tokens_total",
		Help: "LLM tokens consumed.",
	},
	[]string{"direction"}, // input | output
)

var HTTPRequests = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "stockanalyzer_http_requests_total",
		Help: "HTTP requests by route and status code.",
	},
	[]string{"route", "code"},
)

// WritePrometheus writes the registry in text exposition format.
func WritePrometheus(w io.Writer) error {
	families, err := DefaultRegistry.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}
