package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "enxoval"

// PaymentMetrics counts gateway calls and webhook outcomes.
type PaymentMetrics struct {
	gatewayCalls  *prometheus.CounterVec
	webhookEvents *prometheus.CounterVec
	transitions   *prometheus.CounterVec
}

// NewPaymentMetrics registers payment metrics. A nil registerer yields a
// no-op recorder.
func NewPaymentMetrics(reg prometheus.Registerer) *PaymentMetrics {
	if reg == nil {
		return &PaymentMetrics{}
	}
	gatewayCalls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "gateway_calls_total",
		Help:      "Mercado Pago API calls by operation and outcome.",
	}, []string{"operation", "outcome"})
	webhookEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "webhook_events_total",
		Help:      "Webhook notifications by result.",
	}, []string{"result"})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "order_transitions_total",
		Help:      "Order status transitions by target status and source.",
	}, []string{"status", "source"})
	reg.MustRegister(gatewayCalls, webhookEvents, transitions)
	return &PaymentMetrics{
		gatewayCalls:  gatewayCalls,
		webhookEvents: webhookEvents,
		transitions:   transitions,
	}
}

func (p *PaymentMetrics) GatewayCall(operation string, err error) {
	if p == nil || p.gatewayCalls == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	p.gatewayCalls.WithLabelValues(normalizeLabel(operation), outcome).Inc()
}

func (p *PaymentMetrics) WebhookEvent(result string) {
	if p == nil || p.webhookEvents == nil {
		return
	}
	p.webhookEvents.WithLabelValues(normalizeLabel(result)).Inc()
}

func (p *PaymentMetrics) Transition(status, source string) {
	if p == nil || p.transitions == nil {
		return
	}
	p.transitions.WithLabelValues(normalizeLabel(status), normalizeLabel(source)).Inc()
}
