package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "heybo"

// Metrics contains all engine-level metrics.
type Metrics struct {
	// Session metrics
	SessionsCreated  *prometheus.CounterVec
	SessionsExpired  prometheus.Counter
	SessionsExtended prometheus.Counter
	SessionConflicts prometheus.Counter
	CartBackups      prometheus.Counter

	// Error metrics
	ErrorsTotal  *prometheus.CounterVec
	ErrorRetries *prometheus.CounterVec

	// Flow metrics
	StepTransitions  *prometheus.CounterVec
	CartCASConflicts prometheus.Counter

	// Recommendation metrics
	RecommendSource  *prometheus.CounterVec
	RecommendLatency prometheus.Histogram

	// Rating metrics
	RatingsSubmitted *prometheus.CounterVec
}

// New creates all engine metrics, unregistered.
func New() *Metrics {
	return &Metrics{
		SessionsCreated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "session",
				Name:      "created_total",
				Help:      "Sessions created, by user type",
			},
			[]string{"user_type"},
		),
		SessionsExpired: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "session",
				Name:      "expired_total",
				Help:      "Sessions that reached expiry without renewal",
			},
		),
		SessionsExtended: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "session",
				Name:      "extended_total",
				Help:      "Activity-driven session extensions",
			},
		),
		SessionConflicts: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "session",
				Name:      "conflicts_total",
				Help:      "Cross-device session conflicts detected",
			},
		),
		CartBackups: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "session",
				Name:      "cart_backups_total",
				Help:      "Cart snapshots written during session expiry",
			},
		),
		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "errors",
				Name:      "total",
				Help:      "Error states created, by category and severity",
			},
			[]string{"category", "severity"},
		),
		ErrorRetries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "errors",
				Name:      "retries_total",
				Help:      "Retry attempts gated by the recovery manager, by category and outcome",
			},
			[]string{"category", "outcome"},
		),
		StepTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "flow",
				Name:      "transitions_total",
				Help:      "Step transitions, by origin and destination",
			},
			[]string{"from", "to"},
		),
		CartCASConflicts: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "cart",
				Name:      "cas_conflicts_total",
				Help:      "Cart mutations refused due to version conflicts",
			},
		),
		RecommendSource: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "recommend",
				Name:      "source_total",
				Help:      "Recommendation results served, by source tier",
			},
			[]string{"source"},
		),
		RecommendLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "recommend",
				Name:      "resolve_duration_seconds",
				Help:      "End-to-end fallback chain resolution time",
				Buckets:   prometheus.DefBuckets,
			},
		),
		RatingsSubmitted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "rating",
				Name:      "submitted_total",
				Help:      "Rating submissions, by status",
			},
			[]string{"status"},
		),
	}
}

// Register registers every metric with reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.SessionsCreated, m.SessionsExpired, m.SessionsExtended,
		m.SessionConflicts, m.CartBackups,
		m.ErrorsTotal, m.ErrorRetries,
		m.StepTransitions, m.CartCASConflicts,
		m.RecommendSource, m.RecommendLatency,
		m.RatingsSubmitted,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Nil-safe recording helpers. Components hold a possibly-nil *Metrics.

// IncSessionCreated records a session creation.
func (m *Metrics) IncSessionCreated(userType string) {
	if m == nil {
		return
	}
	m.SessionsCreated.WithLabelValues(userType).Inc()
}

// IncSessionExpired records a session expiry.
func (m *Metrics) IncSessionExpired() {
	if m == nil {
		return
	}
	m.SessionsExpired.Inc()
}

// IncSessionExtended records an activity-driven extension.
func (m *Metrics) IncSessionExtended() {
	if m == nil {
		return
	}
	m.SessionsExtended.Inc()
}

// IncSessionConflict records a cross-device conflict.
func (m *Metrics) IncSessionConflict() {
	if m == nil {
		return
	}
	m.SessionConflicts.Inc()
}

// IncCartBackup records an expiry-time cart snapshot.
func (m *Metrics) IncCartBackup() {
	if m == nil {
		return
	}
	m.CartBackups.Inc()
}

// IncError records a new error state.
func (m *Metrics) IncError(category, severity string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(category, severity).Inc()
}

// IncErrorRetry records a gated retry attempt and its outcome.
func (m *Metrics) IncErrorRetry(category, outcome string) {
	if m == nil {
		return
	}
	m.ErrorRetries.WithLabelValues(category, outcome).Inc()
}

// IncStepTransition records a flow transition.
func (m *Metrics) IncStepTransition(from, to string) {
	if m == nil {
		return
	}
	m.StepTransitions.WithLabelValues(from, to).Inc()
}

// IncCartCASConflict records a refused cart mutation.
func (m *Metrics) IncCartCASConflict() {
	if m == nil {
		return
	}
	m.CartCASConflicts.Inc()
}

// ObserveRecommendation records a served result and its resolution time.
func (m *Metrics) ObserveRecommendation(source string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.RecommendSource.WithLabelValues(source).Inc()
	m.RecommendLatency.Observe(elapsed.Seconds())
}

// IncRatingSubmitted records a rating submission outcome.
func (m *Metrics) IncRatingSubmitted(status string) {
	if m == nil {
		return
	}
	m.RatingsSubmitted.WithLabelValues(status).Inc()
}
