package livelog

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "livelog"

// metrics holds the Prometheus collectors for a Server. A nil *metrics records
// nothing, so servers created without WithMetrics pay no cost.
type metrics struct {
	sessionsIssued  *prometheus.CounterVec
	binds           *prometheus.CounterVec
	messagesPushed  *prometheus.CounterVec
	messagesDropped *prometheus.CounterVec
	writeErrors     *prometheus.CounterVec
	liveStreams     prometheus.Gauge
}

func newMetrics(reg prometheus.Registerer) *metrics {
	factory := promauto.With(reg)

	return &metrics{
		sessionsIssued: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "sessions_issued_total",
			Help:      "Total number of session tokens issued by page loads",
		}, []string{"channel"}),

		binds: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "binds_total",
			Help:      "Stream bind attempts by result (accepted or rejected)",
		}, []string{"channel", "result"}),

		messagesPushed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "messages_pushed_total",
			Help:      "Messages written to a live stream",
		}, []string{"channel"}),

		messagesDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "messages_dropped_total",
			Help:      "Messages pushed while no stream was live, or lost to a write failure",
		}, []string{"channel"}),

		writeErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "write_errors_total",
			Help:      "Write failures that tore down a live stream",
		}, []string{"channel"}),

		liveStreams: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "live_streams",
			Help:      "Number of channels with a live stream",
		}),
	}
}

func (m *metrics) sessionIssued(channel string) {
	if m != nil {
		m.sessionsIssued.WithLabelValues(channel).Inc()
	}
}

func (m *metrics) bind(channel string, accepted bool) {
	if m == nil {
		return
	}
	result := "rejected"
	if accepted {
		result = "accepted"
	}
	m.binds.WithLabelValues(channel, result).Inc()
}

func (m *metrics) pushed(channel string) {
	if m != nil {
		m.messagesPushed.WithLabelValues(channel).Inc()
	}
}

func (m *metrics) dropped(channel string) {
	if m != nil {
		m.messagesDropped.WithLabelValues(channel).Inc()
	}
}

func (m *metrics) writeError(channel string) {
	if m != nil {
		m.writeErrors.WithLabelValues(channel).Inc()
	}
}

func (m *metrics) streamUp() {
	if m != nil {
		m.liveStreams.Inc()
	}
}

func (m *metrics) streamDown() {
	if m != nil {
		m.liveStreams.Dec()
	}
}
