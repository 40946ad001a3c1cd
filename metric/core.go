package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Namespace prefixes every metric exported by the bridge.
const Namespace = "semstreams_fix"

// Group outcome labels for GroupsTotal.
const (
	GroupSent    = "sent"
	GroupSkipped = "skipped"
	GroupFailed  = "failed"
)

// Metrics holds the bridge-level metrics
type Metrics struct {
	GroupsTotal      *prometheus.CounterVec
	ControlRequests  *prometheus.CounterVec
	Running          prometheus.Gauge
	SessionLoggedOn  *prometheus.GaugeVec
	EchoPublished    *prometheus.CounterVec
	EchoDropped      prometheus.Counter
	TeardownFailures prometheus.Counter
	SendDuration     prometheus.Histogram

	NATSConnected  prometheus.Gauge
	NATSRTT        prometheus.Gauge
	NATSReconnects prometheus.Counter
}

// NewMetrics creates the bridge metrics, unregistered
func NewMetrics() *Metrics {
	return &Metrics{
		GroupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "groups_total",
				Help:      "Inbound message groups by outcome (sent, skipped, failed)",
			},
			[]string{"status"},
		),

		ControlRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "control_requests_total",
				Help:      "Control surface requests by operation and status",
			},
			[]string{"operation", "status"},
		),

		Running: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Name:      "running",
				Help:      "FIX sessions opened by the controller (0=stopped, 1=running)",
			},
		),

		SessionLoggedOn: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Name:      "session_logged_on",
				Help:      "FIX session logon state by alias (0=logged out, 1=logged on)",
			},
			[]string{"alias"},
		),

		EchoPublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "echo_published_total",
				Help:      "FIX messages echoed to NATS by direction",
			},
			[]string{"direction"},
		),

		EchoDropped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "echo_dropped_total",
				Help:      "FIX messages not echoed because the echo queue was full",
			},
		),

		TeardownFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "teardown_failures_total",
				Help:      "Resources that failed to release during shutdown",
			},
		),

		SendDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "send_duration_seconds",
				Help:      "Time to parse and send one FIX message",
				Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
			},
		),

		NATSConnected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Subsystem: "nats",
				Name:      "connected",
				Help:      "NATS connection status (0=disconnected, 1=connected)",
			},
		),

		NATSRTT: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Subsystem: "nats",
				Name:      "rtt_milliseconds",
				Help:      "NATS round-trip time in milliseconds",
			},
		),

		NATSReconnects: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Subsystem: "nats",
				Name:      "reconnects_total",
				Help:      "Total number of NATS reconnections",
			},
		),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.GroupsTotal,
		m.ControlRequests,
		m.Running,
		m.SessionLoggedOn,
		m.EchoPublished,
		m.EchoDropped,
		m.TeardownFailures,
		m.SendDuration,
		m.NATSConnected,
		m.NATSRTT,
		m.NATSReconnects,
	}
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// RecordGroup counts one inbound group outcome
func (m *Metrics) RecordGroup(status string) {
	m.GroupsTotal.WithLabelValues(status).Inc()
}

// RecordControl counts one control request
func (m *Metrics) RecordControl(operation, status string) {
	m.ControlRequests.WithLabelValues(operation, status).Inc()
}

// RecordRunning sets the controller state gauge
func (m *Metrics) RecordRunning(running bool) {
	m.Running.Set(boolValue(running))
}

// RecordLogon sets the logon gauge for a session alias
func (m *Metrics) RecordLogon(alias string, loggedOn bool) {
	m.SessionLoggedOn.WithLabelValues(alias).Set(boolValue(loggedOn))
}

// RecordEcho counts one echoed FIX message
func (m *Metrics) RecordEcho(direction string) {
	m.EchoPublished.WithLabelValues(direction).Inc()
}

// RecordEchoDropped counts one echo lost to a full queue
func (m *Metrics) RecordEchoDropped() {
	m.EchoDropped.Inc()
}

// RecordTeardownFailure counts one resource release failure
func (m *Metrics) RecordTeardownFailure() {
	m.TeardownFailures.Inc()
}

// RecordSend observes parse plus send time
func (m *Metrics) RecordSend(d time.Duration) {
	m.SendDuration.Observe(d.Seconds())
}

// RecordNATSStatus updates NATS connection status
func (m *Metrics) RecordNATSStatus(connected bool) {
	m.NATSConnected.Set(boolValue(connected))
}

// RecordNATSRTT updates NATS round-trip time
func (m *Metrics) RecordNATSRTT(rtt time.Duration) {
	m.NATSRTT.Set(float64(rtt.Milliseconds()))
}

// RecordNATSReconnect increments reconnection counter
func (m *Metrics) RecordNATSReconnect() {
	m.NATSReconnects.Inc()
}
