package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCronJobMetricsByOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronJobMetrics(reg)
	m.ObserveRun("payment-status", JobOutcomeSuccess, 250*time.Millisecond)
	m.ObserveRun("payment-status", JobOutcomeFailure, time.Second)
	m.ObserveRun("payment-status", JobOutcomeSkipped, time.Hour)

	mfs, err := reg.Gather()
	require.NoError(t, err)

	runs := findMetricFamily(mfs, "gamestore_cron_job_runs_total")
	require.NotNil(t, runs)
	for _, outcome := range []string{JobOutcomeSuccess, JobOutcomeFailure, JobOutcomeSkipped} {
		metric := findMetric(runs, map[string]string{"job": "payment-status", "outcome": outcome})
		require.NotNil(t, metric, outcome)
		assert.Equal(t, 1.0, metric.GetCounter().GetValue(), outcome)
	}

	hist := findMetric(findMetricFamily(mfs, "gamestore_cron_job_duration_seconds"), map[string]string{"job": "payment-status"})
	require.NotNil(t, hist)
	assert.Equal(t, uint64(2), hist.GetHistogram().GetSampleCount(), "skipped sweeps are not timed")
	assert.InDelta(t, 1.25, hist.GetHistogram().GetSampleSum(), 0.001)

	last := findMetric(findMetricFamily(mfs, "gamestore_cron_job_last_success_timestamp_seconds"), map[string]string{"job": "payment-status"})
	require.NotNil(t, last)
	assert.Greater(t, last.GetGauge().GetValue(), 0.0)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

// findMetric returns the series in mf whose labels include every pair in want.
func findMetric(mf *dto.MetricFamily, want map[string]string) *dto.Metric {
	if mf == nil {
		return nil
	}
	for _, metric := range mf.GetMetric() {
		matched := 0
		for _, lp := range metric.GetLabel() {
			if v, ok := want[lp.GetName()]; ok && v == lp.GetValue() {
				matched++
			}
		}
		if matched == len(want) {
			return metric
		}
	}
	return nil
}
