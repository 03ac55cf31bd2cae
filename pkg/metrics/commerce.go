package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Checkout outcomes used as the outcome label.
const (
	OutcomeSuccess           = "success"
	OutcomeInsufficientStock = "insufficient_stock"
	OutcomeUnavailable       = "product_unavailable"
	OutcomeInvalid           = "invalid"
	OutcomeError             = "error"
)

// CheckoutMetrics tracks checkout attempts by outcome and their latency.
type CheckoutMetrics struct {
	attempts *prometheus.CounterVec
	duration prometheus.Histogram
}

func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	attempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkout_attempts_total",
		Help: "Checkout attempts partitioned by outcome.",
	}, []string{"outcome"})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "checkout_duration_seconds",
		Help:    "Duration of the checkout transaction in seconds.",
		Buckets: prometheus.DefBuckets,
	})
	reg.MustRegister(attempts, duration)
	return &CheckoutMetrics{attempts: attempts, duration: duration}
}

// Observe records one attempt with its outcome and duration.
func (c *CheckoutMetrics) Observe(outcome string, d time.Duration) {
	if c == nil || c.attempts == nil {
		return
	}
	c.attempts.WithLabelValues(normalizeLabel(outcome)).Inc()
	c.duration.Observe(d.Seconds())
}

// StockMetrics tracks reservation conflicts and low-stock signals.
type StockMetrics struct {
	conflicts *prometheus.CounterVec
	lowStock  prometheus.Counter
}

func NewStockMetrics(reg prometheus.Registerer) *StockMetrics {
	if reg == nil {
		return &StockMetrics{}
	}
	conflicts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stock_reservation_conflicts_total",
		Help: "Reservations rejected because stock was insufficient.",
	}, []string{"tenant"})
	lowStock := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "low_stock_events_total",
		Help: "Low-stock events emitted to the outbox.",
	})
	reg.MustRegister(conflicts, lowStock)
	return &StockMetrics{conflicts: conflicts, lowStock: lowStock}
}

func (s *StockMetrics) IncConflict(tenant string) {
	if s == nil || s.conflicts == nil {
		return
	}
	s.conflicts.WithLabelValues(normalizeLabel(tenant)).Inc()
}

func (s *StockMetrics) IncLowStock() {
	if s == nil || s.lowStock == nil {
		return
	}
	s.lowStock.Inc()
}
