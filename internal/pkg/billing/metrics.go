package billing

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the billing Prometheus collectors. A nil *Metrics records
// nothing.
type Metrics struct {
	CheckoutsTotal         *prometheus.CounterVec
	WebhooksTotal          *prometheus.CounterVec
	GatewayRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers the billing collectors
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		CheckoutsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "billfox_checkouts_total",
				Help: "Checkout initiations by provider, method and result",
			},
			[]string{"provider", "method", "result"},
		),
		WebhooksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "billfox_webhooks_total",
				Help: "Inbound provider webhooks by provider and result",
			},
			[]string{"provider", "result"},
		),
		GatewayRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "billfox_gateway_request_duration_seconds",
				Help:    "Latency of outbound payment provider calls",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}

	registry.MustRegister(
		m.CheckoutsTotal,
		m.WebhooksTotal,
		m.GatewayRequestDuration,
	)
	return m
}

func (m *Metrics) observeCheckout(provider Provider, method Method, result string) {
	if m == nil {
		return
	}
	m.CheckoutsTotal.WithLabelValues(string(provider), string(method), result).Inc()
}

func (m *Metrics) observeWebhook(provider Provider, result string) {
	if m == nil {
		return
	}
	m.WebhooksTotal.WithLabelValues(string(provider), result).Inc()
}

func (m *Metrics) observeGatewayRequest(operation string, started time.Time) {
	if m == nil {
		return
	}
	m.GatewayRequestDuration.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}
