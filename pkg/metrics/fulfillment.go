package metrics

import "github.com/prometheus/client_golang/prometheus"

// Webhook outcomes.
const (
	WebhookOutcomeProcessed = "processed"
	WebhookOutcomeDuplicate = "duplicate"
	WebhookOutcomeIgnored   = "ignored"
	WebhookOutcomeRejected  = "rejected"
	WebhookOutcomeFailed    = "failed"
)

// WebhookMetrics counts inbound payment notifications.
type WebhookMetrics struct {
	events *prometheus.CounterVec
}

func NewWebhookMetrics(reg prometheus.Registerer) *WebhookMetrics {
	if reg == nil {
		return &WebhookMetrics{}
	}
	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gamestore_webhook_events_total",
		Help: "Inbound webhook deliveries by provider and outcome.",
	}, []string{"provider", "outcome"})
	reg.MustRegister(events)
	return &WebhookMetrics{events: events}
}

func (w *WebhookMetrics) Observe(provider, outcome string) {
	if w == nil || w.events == nil {
		return
	}
	w.events.WithLabelValues(normalizeLabel(provider), normalizeLabel(outcome)).Inc()
}

// CarrierMetrics counts carrier API calls and retries.
type CarrierMetrics struct {
	calls   *prometheus.CounterVec
	retries *prometheus.CounterVec
}

func NewCarrierMetrics(reg prometheus.Registerer) *CarrierMetrics {
	if reg == nil {
		return &CarrierMetrics{}
	}
	calls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gamestore_carrier_calls_total",
		Help: "Carrier API calls by operation and outcome.",
	}, []string{"operation", "outcome"})
	retries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gamestore_carrier_retries_total",
		Help: "Carrier API retries after a retryable failure.",
	}, []string{"operation"})
	reg.MustRegister(calls, retries)
	return &CarrierMetrics{calls: calls, retries: retries}
}

// ObserveCall records one finished call; err == nil counts as success.
func (c *CarrierMetrics) ObserveCall(operation string, err error) {
	if c == nil || c.calls == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	c.calls.WithLabelValues(normalizeLabel(operation), outcome).Inc()
}

func (c *CarrierMetrics) IncRetry(operation string) {
	if c == nil || c.retries == nil {
		return
	}
	c.retries.WithLabelValues(normalizeLabel(operation)).Inc()
}
