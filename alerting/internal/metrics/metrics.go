package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns its registry so every process (and every test) gets a fresh
// set of collectors. All methods are safe on a nil receiver.
type Metrics struct {
	registry *prometheus.Registry

	// Counters
	alertsCreated      *prometheus.CounterVec // Has labels: severity, source
	duplicatesDropped  *prometheus.CounterVec // Has labels: source
	statusTransitions  *prometheus.CounterVec // Has labels: from, to
	pollFailures       *prometheus.CounterVec // Has labels: source
	ackRelayFailures   prometheus.Counter
	slackNotifications *prometheus.CounterVec // Has labels: status (success/failure/skipped)

	// Gauges
	pendingAlerts       prometheus.Gauge
	circuitBreakerState prometheus.Gauge
	webcamFPS           prometheus.Gauge

	// Histograms
	alertProcessingTime prometheus.Histogram
}

func NewMetrics() *Metrics {

	m := &Metrics{
		registry: prometheus.NewRegistry(),
		alertsCreated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "weaponwatch_alerts_created_total",
				Help: "Total number of alerts created",
			},
			[]string{"severity", "source"},
		),
		duplicatesDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "weaponwatch_duplicates_dropped_total",
				Help: "Candidates dropped because the alert already exists",
			},
			[]string{"source"},
		),
		statusTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "weaponwatch_status_transitions_total",
				Help: "Alert lifecycle transitions",
			},
			[]string{"from", "to"},
		),
		pollFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "weaponwatch_poll_failures_total",
				Help: "Failed polls per detection source",
			},
			[]string{"source"},
		),
		ackRelayFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "weaponwatch_ack_relay_failures_total",
				Help: "Acknowledgements applied locally after the remote relay failed",
			},
		),
		slackNotifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "slack_notifications_sent_total",
				Help: "Total number of notification sent to Slack",
			},
			[]string{"status"},
		),
		pendingAlerts: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "weaponwatch_pending_alerts",
				Help: "Current number of pending alerts",
			},
		),

		circuitBreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "weaponwatch_circuit_breaker_state",
			Help: "Circuit breaker state (0=CLOSED, 1=OPEN, 2=HALF_OPEN)",
		},
		),

		webcamFPS: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "weaponwatch_webcam_fps",
			Help: "Frames sampled by the webcam loop in the last whole second",
		}),

		alertProcessingTime: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "weaponwatch_alert_processing_duration_seconds",
				Help:    "Time taken to ingest a candidate in seconds",
				Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
			},
		),
	}

	m.registry.MustRegister(
		m.alertsCreated,
		m.duplicatesDropped,
		m.statusTransitions,
		m.pollFailures,
		m.ackRelayFailures,
		m.slackNotifications,
		m.pendingAlerts,
		m.circuitBreakerState,
		m.webcamFPS,
		m.alertProcessingTime,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the Prometheus HTTP handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) IncAlertsCreated(severity, source string) {
	if m == nil {
		return
	}
	m.alertsCreated.WithLabelValues(severity, source).Inc()
}

func (m *Metrics) IncDuplicatesDropped(source string) {
	if m == nil {
		return
	}
	m.duplicatesDropped.WithLabelValues(source).Inc()
}

func (m *Metrics) IncStatusTransition(from, to string) {
	if m == nil {
		return
	}
	m.statusTransitions.WithLabelValues(from, to).Inc()
}

func (m *Metrics) IncPollFailures(source string) {
	if m == nil {
		return
	}
	m.pollFailures.WithLabelValues(source).Inc()
}

func (m *Metrics) IncAckRelayFailures() {
	if m == nil {
		return
	}
	m.ackRelayFailures.Inc()
}

func (m *Metrics) IncSlackNotifications(status string) {
	if m == nil {
		return
	}
	m.slackNotifications.WithLabelValues(status).Inc()
}

func (m *Metrics) SetPendingAlerts(count float64) {
	if m == nil {
		return
	}
	m.pendingAlerts.Set(count)
}

func (m *Metrics) SetCircuitBreakerState(state float64) {
	if m == nil {
		return
	}
	m.circuitBreakerState.Set(state)
}

func (m *Metrics) SetWebcamFPS(fps float64) {
	if m == nil {
		return
	}
	m.webcamFPS.Set(fps)
}

func (m *Metrics) SetAlertProcessingTime(seconds float64) {
	if m == nil {
		return
	}
	m.alertProcessingTime.Observe(seconds)
}
