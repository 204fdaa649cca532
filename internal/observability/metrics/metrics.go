// Package metrics exposes prometheus instruments for the scheduling core.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// CommitLatencyMetric is the fully qualified name of the commit latency
// histogram, shared with the admin dashboard snapshot reader.
const CommitLatencyMetric = "clinagenda_booking_commit_latency_seconds"

// BookingMetrics exposes counters/histograms for the booking flow.
type BookingMetrics struct {
	availabilityTotal *prometheus.CounterVec
	commitsTotal      *prometheus.CounterVec
	commitLatency     prometheus.Histogram
	transitionsTotal  *prometheus.CounterVec
}

// NewBookingMetrics registers booking instruments on reg (defaulting to the
// global registerer).
func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		availabilityTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinagenda",
			Subsystem: "booking",
			Name:      "availability_requests_total",
			Help:      "Total availability queries",
		}, []string{"cache"}),
		commitsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinagenda",
			Subsystem: "booking",
			Name:      "commits_total",
			Help:      "Total booking commit attempts",
		}, []string{"outcome"}),
		commitLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "clinagenda",
			Subsystem: "booking",
			Name:      "commit_latency_seconds",
			Help:      "Latency of booking commit attempts",
			Buckets:   prometheus.DefBuckets,
		}),
		transitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinagenda",
			Subsystem: "booking",
			Name:      "transitions_total",
			Help:      "Total appointment lifecycle transitions",
		}, []string{"action", "outcome"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.availabilityTotal, m.commitsTotal, m.commitLatency, m.transitionsTotal)
	return m
}

// ObserveAvailability counts one availability query; cacheState is "hit",
// "miss" or "bypass".
func (m *BookingMetrics) ObserveAvailability(cacheState string) {
	if m == nil {
		return
	}
	m.availabilityTotal.WithLabelValues(cacheState).Inc()
}

// ObserveCommit records one commit attempt and its latency.
func (m *BookingMetrics) ObserveCommit(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.commitsTotal.WithLabelValues(outcome).Inc()
	m.commitLatency.Observe(seconds)
}

// ObserveTransition counts one lifecycle transition attempt.
func (m *BookingMetrics) ObserveTransition(action, outcome string) {
	if m == nil {
		return
	}
	m.transitionsTotal.WithLabelValues(action, outcome).Inc()
}
