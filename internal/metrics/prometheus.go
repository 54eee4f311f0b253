package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the TTS streaming service
type Metrics struct {
	// Session metrics
	ActiveSessions      prometheus.Gauge
	SessionsCreated     prometheus.Counter
	SessionsClosed      prometheus.Counter
	SessionDuration     prometheus.Histogram
	AdmissionsRejected  prometheus.Counter
	KeepaliveTimeouts   prometheus.Counter

	// Message metrics
	MessagesReceived prometheus.Counter
	DecodeErrors     prometheus.Counter

	// Synthesis metrics
	SynthesisRequests prometheus.Counter
	SynthesisFailures prometheus.Counter
	SynthesisDuration prometheus.Histogram
	SynthesisStopped  prometheus.Counter

	// Audio streaming metrics
	ChunksSent prometheus.Counter
	BytesSent  prometheus.Counter

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPErrors          *prometheus.CounterVec
}

// NewMetrics creates all metrics and registers them with the default
// Prometheus registry
func NewMetrics() *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer)
}

// NewMetricsWith creates all metrics against the given registerer
func NewMetricsWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		// Session metrics
		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "tonev_active_sessions",
			Help: "Current number of active streaming sessions",
		}),
		SessionsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "tonev_sessions_created_total",
			Help: "Total number of sessions admitted",
		}),
		SessionsClosed: factory.NewCounter(prometheus.CounterOpts{
			Name: "tonev_sessions_closed_total",
			Help: "Total number of sessions closed",
		}),
		SessionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "tonev_session_duration_seconds",
			Help:    "Lifetime of closed sessions in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~1 hour
		}),
		AdmissionsRejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "tonev_admissions_rejected_total",
			Help: "Total number of connections rejected at capacity",
		}),
		KeepaliveTimeouts: factory.NewCounter(prometheus.CounterOpts{
			Name: "tonev_keepalive_timeouts_total",
			Help: "Total number of sessions closed by keepalive timeout",
		}),

		// Message metrics
		MessagesReceived: factory.NewCounter(prometheus.CounterOpts{
			Name: "tonev_messages_received_total",
			Help: "Total number of inbound WebSocket frames",
		}),
		DecodeErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "tonev_decode_errors_total",
			Help: "Total number of malformed inbound frames",
		}),

		// Synthesis metrics
		SynthesisRequests: factory.NewCounter(prometheus.CounterOpts{
			Name: "tonev_synthesis_requests_total",
			Help: "Total number of synthesis requests dispatched",
		}),
		SynthesisFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "tonev_synthesis_failures_total",
			Help: "Total number of failed synthesis requests",
		}),
		SynthesisDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "tonev_synthesis_duration_seconds",
			Help:    "Duration of synthesis streaming operations",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~2 minutes
		}),
		SynthesisStopped: factory.NewCounter(prometheus.CounterOpts{
			Name: "tonev_synthesis_stopped_total",
			Help: "Total number of synthesis operations cancelled by stop requests",
		}),

		// Audio streaming metrics
		ChunksSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "tonev_audio_chunks_sent_total",
			Help: "Total number of binary audio frames sent",
		}),
		BytesSent: factory.NewCounter(prometheus.CounterOpts{
			Name: "tonev_audio_bytes_sent_total",
			Help: "Total number of audio bytes sent",
		}),

		// HTTP API metrics
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tonev_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status_code"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tonev_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		HTTPErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tonev_http_errors_total",
			Help: "Total number of HTTP errors",
		}, []string{"method", "endpoint", "error_type"}),
	}
}

// SetActiveSessions sets the current number of active sessions
func (m *Metrics) SetActiveSessions(count int) {
	m.ActiveSessions.Set(float64(count))
}

// RecordSessionCreated increments the sessions created counter
func (m *Metrics) RecordSessionCreated() {
	m.SessionsCreated.Inc()
}

// RecordSessionClosed increments the sessions closed counter and records duration
func (m *Metrics) RecordSessionClosed(durationSeconds float64) {
	m.SessionsClosed.Inc()
	m.SessionDuration.Observe(durationSeconds)
}

// RecordAdmissionRejected increments the rejected admissions counter
func (m *Metrics) RecordAdmissionRejected() {
	m.AdmissionsRejected.Inc()
}

// RecordKeepaliveTimeout increments the keepalive timeouts counter
func (m *Metrics) RecordKeepaliveTimeout() {
	m.KeepaliveTimeouts.Inc()
}

// RecordMessageReceived increments the inbound message counter
func (m *Metrics) RecordMessageReceived() {
	m.MessagesReceived.Inc()
}

// RecordDecodeError increments the decode errors counter
func (m *Metrics) RecordDecodeError() {
	m.DecodeErrors.Inc()
}

// RecordSynthesisRequest increments the synthesis requests counter
func (m *Metrics) RecordSynthesisRequest() {
	m.SynthesisRequests.Inc()
}

// RecordSynthesisFailure increments the synthesis failures counter
func (m *Metrics) RecordSynthesisFailure() {
	m.SynthesisFailures.Inc()
}

// RecordSynthesisComplete records the duration of a finished streaming operation
func (m *Metrics) RecordSynthesisComplete(durationSeconds float64) {
	m.SynthesisDuration.Observe(durationSeconds)
}

// RecordSynthesisStopped increments the stopped synthesis counter
func (m *Metrics) RecordSynthesisStopped() {
	m.SynthesisStopped.Inc()
}

// RecordChunkSent records one outbound binary audio frame
func (m *Metrics) RecordChunkSent(sizeBytes int) {
	m.ChunksSent.Inc()
	m.BytesSent.Add(float64(sizeBytes))
}

// RecordHTTPRequest records an HTTP request with its outcome
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, durationSeconds float64) {
	m.HTTPRequests.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(durationSeconds)
}

// RecordHTTPError records an HTTP error by type
func (m *Metrics) RecordHTTPError(method, endpoint, errorType string) {
	m.HTTPErrors.WithLabelValues(method, endpoint, errorType).Inc()
}
