package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Seat commit sources.
const (
	SourcePayment        = "payment"
	SourcePromo          = "promo"
	SourceReconciliation = "reconciliation"
)

// SalesMetrics tracks seat commits and payment notification outcomes.
type SalesMetrics struct {
	committed     *prometheus.CounterVec
	oversell      *prometheus.CounterVec
	notifications *prometheus.CounterVec
}

// NewSalesMetrics registers the sales metrics on reg. A nil registerer yields no-op metrics.
func NewSalesMetrics(reg prometheus.Registerer) *SalesMetrics {
	if reg == nil {
		return &SalesMetrics{}
	}
	committed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "seats_committed_total",
		Help:      "Seats irrevocably sold, by seat type and path.",
	}, []string{"seat_type", "source"})
	oversell := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "seat_oversell_flags_total",
		Help:      "Paid completions that found the seat type sold out and were flagged for reconciliation.",
	}, []string{"seat_type"})
	notifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "payment_notifications_total",
		Help:      "Payment gateway notifications by outcome.",
	}, []string{"outcome"})
	reg.MustRegister(committed, oversell, notifications)
	return &SalesMetrics{committed: committed, oversell: oversell, notifications: notifications}
}

func (m *SalesMetrics) SeatCommitted(seatType, source string) {
	if m == nil || m.committed == nil {
		return
	}
	m.committed.WithLabelValues(labelOrUnknown(seatType), labelOrUnknown(source)).Inc()
}

func (m *SalesMetrics) OversellFlagged(seatType string) {
	if m == nil || m.oversell == nil {
		return
	}
	m.oversell.WithLabelValues(labelOrUnknown(seatType)).Inc()
}

func (m *SalesMetrics) Notification(outcome string) {
	if m == nil || m.notifications == nil {
		return
	}
	m.notifications.WithLabelValues(labelOrUnknown(outcome)).Inc()
}
