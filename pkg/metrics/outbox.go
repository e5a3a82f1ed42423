package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Outbox delivery results.
const (
	DeliveryPublished    = "published"
	DeliveryRetried      = "retried"
	DeliveryDeadLettered = "dead_lettered"
)

// OutboxMetrics counts publisher deliveries per event type.
type OutboxMetrics struct {
	deliveries *prometheus.CounterVec
}

func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	deliveries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "outbox",
		Name:      "deliveries_total",
		Help:      "Outbox rows handled by the publisher, by event type and result.",
	}, []string{"event_type", "result"})
	reg.MustRegister(deliveries)
	return &OutboxMetrics{deliveries: deliveries}
}

func (m *OutboxMetrics) Delivery(eventType, result string) {
	if m == nil || m.deliveries == nil {
		return
	}
	m.deliveries.WithLabelValues(labelOrUnknown(eventType), labelOrUnknown(result)).Inc()
}
