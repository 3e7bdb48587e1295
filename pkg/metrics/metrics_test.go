package metrics_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftlab/graphmem/pkg/metrics"
)

func TestNilMetricsAreSafe(t *testing.T) {
	var m *metrics.Metrics
	assert.NotPanics(t, func() {
		m.RecordGate("user", "")
		m.RecordLLMRequest("extract", "ok", 0.1)
		m.RecordExtraction("complete")
		m.RecordSleepCycle("completed")
		m.RecordPhase("dedup", 1.2)
		m.AddInvalidated(3)
		m.AddMerged(2)
		m.AddPruned(1)
	})
	assert.Nil(t, m.Registry())
}

func TestCountersAccumulate(t *testing.T) {
	m := metrics.New()
	require.NotNil(t, m.Registry())

	m.RecordGate("user", "noise_pattern")
	m.RecordGate("user", "noise_pattern")
	m.AddPruned(4)
	m.AddPruned(0)

	families, err := m.Registry().Gather()
	require.NoError(t, err)

	byName := map[string]float64{}
	for _, fam := range families {
		for _, metric := range fam.GetMetric() {
			if metric.GetCounter() != nil {
				byName[fam.GetName()] += metric.GetCounter().GetValue()
			}
		}
	}
	assert.Equal(t, 2.0, byName["graphmem_gate_decisions_total"])
	assert.Equal(t, 4.0, byName["graphmem_memories_pruned_total"])

	n, err := testutil.GatherAndCount(m.Registry(), "graphmem_memories_pruned_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
