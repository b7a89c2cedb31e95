package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestWebhookMetricsCountsByOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWebhookMetrics(reg)
	m.Observe("stripe", WebhookOutcomeProcessed)
	m.Observe("stripe", WebhookOutcomeDuplicate)
	m.Observe("stripe", WebhookOutcomeDuplicate)

	mfs, err := reg.Gather()
	require.NoError(t, err)

	mf := findMetricFamily(mfs, "gamestore_webhook_events_total")
	require.NotNil(t, mf)
	duplicates := findMetric(mf, map[string]string{"provider": "stripe", "outcome": WebhookOutcomeDuplicate})
	require.NotNil(t, duplicates)
	require.Equal(t, float64(2), duplicates.GetCounter().GetValue())
}

func TestCarrierMetricsSplitsSuccessAndError(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCarrierMetrics(reg)
	m.ObserveCall("buy_shipment", nil)
	m.ObserveCall("buy_shipment", errors.New("503"))
	m.IncRetry("buy_shipment")

	mfs, err := reg.Gather()
	require.NoError(t, err)

	retries := findMetric(findMetricFamily(mfs, "gamestore_carrier_retries_total"), map[string]string{"operation": "buy_shipment"})
	require.NotNil(t, retries)
	require.Equal(t, float64(1), retries.GetCounter().GetValue())

	mf := findMetricFamily(mfs, "gamestore_carrier_calls_total")
	require.NotNil(t, mf)
	require.Len(t, mf.GetMetric(), 2)
}

func TestNilRegistererIsSafe(t *testing.T) {
	NewCronJobMetrics(nil).ObserveRun("payment-status", JobOutcomeSuccess, time.Second)
	NewWebhookMetrics(nil).Observe("stripe", WebhookOutcomeFailed)
	NewCarrierMetrics(nil).ObserveCall("get_shipment", nil)
	var nilMetrics *CarrierMetrics
	nilMetrics.IncRetry("get_label")
}
