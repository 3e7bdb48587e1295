// Package metrics provides optional Prometheus instrumentation for the
// consolidation engine.
//
// All record methods are safe on a nil receiver, so components accept a
// *Metrics without guarding every call site; a nil handle disables
// instrumentation entirely.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics owns a private registry with every engine series registered.
type Metrics struct {
	registry *prometheus.Registry

	gateDecisions *prometheus.CounterVec
	llmRequests   *prometheus.CounterVec
	llmLatency    *prometheus.HistogramVec
	extractions   *prometheus.CounterVec
	sleepCycles   *prometheus.CounterVec
	phaseLatency  *prometheus.HistogramVec
	invalidated   prometheus.Counter
	merged        prometheus.Counter
	pruned        prometheus.Counter
}

// New creates a Metrics with its own registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		gateDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "graphmem",
			Name:      "gate_decisions_total",
			Help:      "Attention gate decisions by profile and rejection reason ('' = accepted).",
		}, []string{"profile", "reason"}),
		llmRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "graphmem",
			Name:      "llm_requests_total",
			Help:      "LLM calls by kind and outcome.",
		}, []string{"kind", "outcome"}),
		llmLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "graphmem",
			Name:      "llm_request_seconds",
			Help:      "LLM call latency by kind.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"kind"}),
		extractions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "graphmem",
			Name:      "extractions_total",
			Help:      "Background extraction outcomes.",
		}, []string{"outcome"}),
		sleepCycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "graphmem",
			Name:      "sleep_cycle_runs_total",
			Help:      "Sleep cycle runs by result.",
		}, []string{"result"}),
		phaseLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "graphmem",
			Name:      "sleep_cycle_phase_seconds",
			Help:      "Sleep cycle phase latency.",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 5, 15, 60, 300, 900},
		}, []string{"phase"}),
		invalidated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "graphmem",
			Name:      "memories_invalidated_total",
			Help:      "Memories soft-deleted by dedup and conflict resolution.",
		}),
		merged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "graphmem",
			Name:      "memories_merged_total",
			Help:      "Memories folded into cluster survivors.",
		}),
		pruned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "graphmem",
			Name:      "memories_pruned_total",
			Help:      "Memories hard-deleted by decay and noise cleanup.",
		}),
	}

	m.registry.MustRegister(
		m.gateDecisions, m.llmRequests, m.llmLatency, m.extractions,
		m.sleepCycles, m.phaseLatency, m.invalidated, m.merged, m.pruned,
	)
	return m
}

// Registry exposes the underlying registry for scraping, typically via
// promhttp.HandlerFor.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RecordGate counts one gate decision. An empty reason means accepted.
func (m *Metrics) RecordGate(profile, reason string) {
	if m == nil {
		return
	}
	m.gateDecisions.WithLabelValues(profile, reason).Inc()
}

// RecordLLMRequest counts one LLM call and observes its latency.
func (m *Metrics) RecordLLMRequest(kind, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.llmRequests.WithLabelValues(kind, outcome).Inc()
	m.llmLatency.WithLabelValues(kind).Observe(seconds)
}

// RecordExtraction counts one background extraction outcome.
func (m *Metrics) RecordExtraction(outcome string) {
	if m == nil {
		return
	}
	m.extractions.WithLabelValues(outcome).Inc()
}

// RecordSleepCycle counts one sleep cycle run.
func (m *Metrics) RecordSleepCycle(result string) {
	if m == nil {
		return
	}
	m.sleepCycles.WithLabelValues(result).Inc()
}

// RecordPhase observes one phase duration.
func (m *Metrics) RecordPhase(phase string, seconds float64) {
	if m == nil {
		return
	}
	m.phaseLatency.WithLabelValues(phase).Observe(seconds)
}

// AddInvalidated counts memories soft-deleted by consolidation.
func (m *Metrics) AddInvalidated(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.invalidated.Add(float64(n))
}

// AddMerged counts memories folded into survivors.
func (m *Metrics) AddMerged(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.merged.Add(float64(n))
}

// AddPruned counts memories hard-deleted.
func (m *Metrics) AddPruned(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.pruned.Add(float64(n))
}
