package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the storefront counters. A nil *Metrics records nothing.
type Metrics struct {
	SyncWrites    *prometheus.CounterVec
	Rollbacks     prometheus.Counter
	FeeQuotes     *prometheus.CounterVec
	Checkouts     *prometheus.CounterVec
	Notifications *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SyncWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: "cart",
			Name:      "sync_writes_total",
			Help:      "Remote cart writes issued by the sync controller.",
		}, []string{"op", "result"}),
		Rollbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: "cart",
			Name:      "rollbacks_total",
			Help:      "Optimistic cart mutations reverted after a failed write.",
		}),
		FeeQuotes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: "delivery",
			Name:      "fee_quotes_total",
			Help:      "Delivery fee quotes by kind.",
		}, []string{"kind"}),
		Checkouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: "checkout",
			Name:      "attempts_total",
			Help:      "Checkout attempts by outcome.",
		}, []string{"outcome"}),
		Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront",
			Subsystem: "notify",
			Name:      "dispatch_total",
			Help:      "Order notification attempts by target and result.",
		}, []string{"target", "result"}),
	}
	reg.MustRegister(m.SyncWrites, m.Rollbacks, m.FeeQuotes, m.Checkouts, m.Notifications)
	return m
}

func (m *Metrics) SyncWrite(op, result string) {
	if m == nil {
		return
	}
	m.SyncWrites.WithLabelValues(op, result).Inc()
}

func (m *Metrics) Rollback() {
	if m == nil {
		return
	}
	m.Rollbacks.Inc()
}

func (m *Metrics) FeeQuote(kind string) {
	if m == nil {
		return
	}
	m.FeeQuotes.WithLabelValues(kind).Inc()
}

func (m *Metrics) Checkout(outcome string) {
	if m == nil {
		return
	}
	m.Checkouts.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Notification(target string, delivered bool) {
	if m == nil {
		return
	}
	result := "delivered"
	if !delivered {
		result = "failed"
	}
	m.Notifications.WithLabelValues(target, result).Inc()
}

func Handler() http.Handler {
	return promhttp.Handler()
}
