package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SettlementMetrics records checkout settlement outcomes and latency.
type SettlementMetrics struct {
	duration *prometheus.HistogramVec
	success  *prometheus.CounterVec
	failure  *prometheus.CounterVec
	stockHit prometheus.Counter
}

// NewSettlementMetrics registers the settlement metrics on the provided registerer.
func NewSettlementMetrics(reg prometheus.Registerer) *SettlementMetrics {
	if reg == nil {
		return &SettlementMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "settlement_duration_seconds",
		Help:    "Duration of checkout settlement transactions in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"tier"})
	success := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_success",
		Help: "Successfully settled orders.",
	}, []string{"tier"})
	failure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_failure",
		Help: "Failed settlement attempts.",
	}, []string{"tier"})
	stockHit := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "settlement_stock_conflicts",
		Help: "Settlement attempts rejected for insufficient stock.",
	})
	reg.MustRegister(duration, success, failure, stockHit)
	return &SettlementMetrics{
		duration: duration,
		success:  success,
		failure:  failure,
		stockHit: stockHit,
	}
}

// ObserveDuration records the settlement duration for the given tier.
func (s *SettlementMetrics) ObserveDuration(tier string, duration time.Duration) {
	if s == nil || s.duration == nil {
		return
	}
	s.duration.WithLabelValues(normalizeLabel(tier)).Observe(duration.Seconds())
}

// IncSuccess increments the success counter for the given tier.
func (s *SettlementMetrics) IncSuccess(tier string) {
	if s == nil || s.success == nil {
		return
	}
	s.success.WithLabelValues(normalizeLabel(tier)).Inc()
}

// IncFailure increments the failure counter for the given tier.
func (s *SettlementMetrics) IncFailure(tier string) {
	if s == nil || s.failure == nil {
		return
	}
	s.failure.WithLabelValues(normalizeLabel(tier)).Inc()
}

// IncStockConflict counts an attempt rejected by the stock re-check.
func (s *SettlementMetrics) IncStockConflict() {
	if s == nil || s.stockHit == nil {
		return
	}
	s.stockHit.Inc()
}

// TierLabel maps the wholesale flag onto the metric label value.
func TierLabel(wholesale bool) string {
	if wholesale {
		return "wholesale"
	}
	return "retail"
}

func normalizeLabel(tier string) string {
	if tier == "" {
		return "unknown"
	}
	return tier
}
