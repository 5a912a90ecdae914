package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistersOnGivenRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.AnalysesTotal.WithLabelValues(OutcomeFallback).Inc()
	m.OverdueTasks.Set(3)

	n, err := testutil.GatherAndCount(reg, "taskpilot_analysis_analyses_total", "taskpilot_tasks_overdue")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 3.0, testutil.ToFloat64(m.OverdueTasks))
}

func TestNewWithNilRegistryCanRepeat(t *testing.T) {
	assert.NotPanics(t, func() {
		New(nil)
		New(nil)
	})
}
