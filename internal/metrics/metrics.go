// Package metrics holds the Prometheus collectors shared by the pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ledgermind"

var (
	// stageSeconds measures each engine stage. Labels: stage (plan, execute, compose, validate)
	stageSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "engine",
		Name:      "stage_seconds",
		Help:      "Duration of each pipeline stage",
		Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60},
	}, []string{"stage"})

	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "engine",
		Name:      "runs_total",
		Help:      "Pipeline runs by outcome",
	}, []string{"outcome"})

	// toolCallsTotal counts tool invocations. Labels: tool, status (ok, error)
	toolCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "tools",
		Name:      "calls_total",
		Help:      "Tool invocations by tool and status",
	}, []string{"tool", "status"})

	// fallbacksTotal counts deterministic fallbacks. Labels: stage (plan, answer), reason
	fallbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "engine",
		Name:      "fallbacks_total",
		Help:      "Deterministic fallbacks taken by stage and reason",
	}, []string{"stage", "reason"})

	issuesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "validator",
		Name:      "issues_total",
		Help:      "Validation issues by code and severity",
	}, []string{"code", "severity"})

	// llmCallsTotal counts model calls. Labels: provider, status (ok, empty, error, rate_limited)
	llmCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "llm",
		Name:      "calls_total",
		Help:      "Model calls by provider and status",
	}, []string{"provider", "status"})

	llmLatencySeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "llm",
		Name:      "latency_seconds",
		Help:      "Model call latency",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
	}, []string{"provider"})
)

func ObserveStage(stage string, seconds float64) {
	stageSeconds.WithLabelValues(stage).Observe(seconds)
}

func RecordRun(outcome string) {
	runsTotal.WithLabelValues(outcome).Inc()
}

// RecordToolCall counts one tool invocation.
func RecordToolCall(tool string, ok bool) {
	status := "ok"
	if !ok {
		status = "error"
	}
	toolCallsTotal.WithLabelValues(tool, status).Inc()
}

func RecordFallback(stage, reason string) {
	fallbacksTotal.WithLabelValues(stage, reason).Inc()
}

func RecordIssue(code, severity string) {
	issuesTotal.WithLabelValues(code, severity).Inc()
}

// RecordLLMCall records a model call and, when seconds > 0, its latency.
func RecordLLMCall(provider, status string, seconds float64) {
	llmCallsTotal.WithLabelValues(provider, status).Inc()
	if seconds > 0 {
		llmLatencySeconds.WithLabelValues(provider).Observe(seconds)
	}
}
