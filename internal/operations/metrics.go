package operations

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for the operations counter
const (
	OutcomeCompleted = "completed"
	OutcomeCancelled = "cancelled"
	OutcomeDropped   = "dropped"
)

// Metrics exposes queue activity to Prometheus. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	queued     *prometheus.GaugeVec
	running    *prometheus.GaugeVec
	inFlight   *prometheus.GaugeVec
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		queued: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "photo_pipeline",
			Name:      "queue_depth",
			Help:      "Operations waiting in a phase queue.",
		}, []string{"phase"}),
		running: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "photo_pipeline",
			Name:      "operations_running",
			Help:      "Operations currently executing per phase.",
		}, []string{"phase"}),
		inFlight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "photo_pipeline",
			Name:      "operations_in_flight",
			Help:      "Rows with a submitted and not yet finished operation per phase.",
		}, []string{"phase"}),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "photo_pipeline",
			Name:      "operations_total",
			Help:      "Operations leaving a queue, by phase and outcome.",
		}, []string{"phase", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "photo_pipeline",
			Name:      "operation_duration_seconds",
			Help:      "Wall time of executed operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"phase"}),
	}

	if reg != nil {
		reg.MustRegister(m.queued, m.running, m.inFlight, m.operations, m.duration)
	}
	return m
}

func (m *Metrics) setQueued(phase Phase, n int) {
	if m == nil {
		return
	}
	m.queued.WithLabelValues(string(phase)).Set(float64(n))
}

func (m *Metrics) addRunning(phase Phase, delta float64) {
	if m == nil {
		return
	}
	m.running.WithLabelValues(string(phase)).Add(delta)
}

func (m *Metrics) setInFlight(phase Phase, n int) {
	if m == nil {
		return
	}
	m.inFlight.WithLabelValues(string(phase)).Set(float64(n))
}

func (m *Metrics) observe(phase Phase, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(string(phase), outcome).Inc()
	if outcome == OutcomeCompleted {
		m.duration.WithLabelValues(string(phase)).Observe(elapsed.Seconds())
	}
}
