// Package metrics provides Prometheus metrics export for the decision
// pipeline and its LLM gateway.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusExporter exports pipeline and LLM metrics in Prometheus format.
// It satisfies the Recorder interfaces of both the llm and pipeline packages.
type PrometheusExporter struct {
	registry *prometheus.Registry

	// Pipeline metrics
	pipelineRuns    *prometheus.CounterVec
	pipelineLatency *prometheus.HistogramVec

	// Per-agent metrics
	agentRuns    *prometheus.CounterVec
	agentLatency *prometheus.HistogramVec

	// LLM call metrics
	llmCalls          *prometheus.CounterVec
	llmLatency        *prometheus.HistogramVec
	llmRetryExhausted prometheus.Counter
}

// Config configures the Prometheus exporter.
type Config struct {
	// Registry to use (if nil, creates a new one)
	Registry *prometheus.Registry

	// Buckets for latency histograms (in seconds)
	LatencyBuckets []float64
}

// DefaultConfig returns default Prometheus configuration.
func DefaultConfig() Config {
	return Config{
		LatencyBuckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
	}
}

// NewPrometheusExporter creates a new Prometheus metrics exporter.
func NewPrometheusExporter(cfg Config) *PrometheusExporter {
	if len(cfg.LatencyBuckets) == 0 {
		cfg.LatencyBuckets = DefaultConfig().LatencyBuckets
	}

	registry := cfg.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	e := &PrometheusExporter{registry: registry}

	e.pipelineRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "decisionflow",
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Total number of pipeline executions",
		},
		[]string{"outcome"},
	)

	e.pipelineLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "decisionflow",
			Subsystem: "pipeline",
			Name:      "latency_seconds",
			Help:      "End-to-end pipeline latency in seconds",
			Buckets:   cfg.LatencyBuckets,
		},
		[]string{"outcome"},
	)

	e.agentRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "decisionflow",
			Subsystem: "agent",
			Name:      "runs_total",
			Help:      "Total number of agent step executions",
		},
		[]string{"agent", "outcome"},
	)

	e.agentLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "decisionflow",
			Subsystem: "agent",
			Name:      "latency_seconds",
			Help:      "Per-agent step latency in seconds",
			Buckets:   cfg.LatencyBuckets,
		},
		[]string{"agent"},
	)

	e.llmCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "decisionflow",
			Subsystem: "llm",
			Name:      "calls_total",
			Help:      "Total number of LLM completion calls",
		},
		[]string{"outcome"},
	)

	e.llmLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "decisionflow",
			Subsystem: "llm",
			Name:      "latency_seconds",
			Help:      "LLM completion latency in seconds",
			Buckets:   cfg.LatencyBuckets,
		},
		[]string{"outcome"},
	)

	e.llmRetryExhausted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "decisionflow",
			Subsystem: "llm",
			Name:      "retry_exhausted_total",
			Help:      "Total number of LLM calls that failed after all retries",
		},
	)

	registry.MustRegister(
		e.pipelineRuns,
		e.pipelineLatency,
		e.agentRuns,
		e.agentLatency,
		e.llmCalls,
		e.llmLatency,
		e.llmRetryExhausted,
	)

	return e
}

// ObservePipelineRun records one pipeline execution outcome.
func (e *PrometheusExporter) ObservePipelineRun(outcome string, duration time.Duration) {
	e.pipelineRuns.WithLabelValues(outcome).Inc()
	e.pipelineLatency.WithLabelValues(outcome).Observe(duration.Seconds())
}

// ObserveAgent records one agent step outcome.
func (e *PrometheusExporter) ObserveAgent(agent, outcome string, duration time.Duration) {
	e.agentRuns.WithLabelValues(agent, outcome).Inc()
	e.agentLatency.WithLabelValues(agent).Observe(duration.Seconds())
}

// ObserveLLMCall records one LLM completion attempt outcome.
func (e *PrometheusExporter) ObserveLLMCall(outcome string, duration time.Duration) {
	e.llmCalls.WithLabelValues(outcome).Inc()
	e.llmLatency.WithLabelValues(outcome).Observe(duration.Seconds())
}

// ObserveLLMRetryExhausted records a call that failed after all retries.
func (e *PrometheusExporter) ObserveLLMRetryExhausted() {
	e.llmRetryExhausted.Inc()
}

// Handler returns the HTTP handler for the metrics endpoint.
func (e *PrometheusExporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying Prometheus registry.
func (e *PrometheusExporter) Registry() *prometheus.Registry {
	return e.registry
}
