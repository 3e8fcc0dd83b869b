package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for the application.
// Following the explicit dependency injection pattern, this struct
// is passed to all components that need to record metrics.
type Metrics struct {
	// Solana RPC Metrics
	solanaRPCCallsTotal   *prometheus.CounterVec
	solanaRPCCallDuration *prometheus.HistogramVec

	// Program client metrics
	programBindsTotal        *prometheus.CounterVec
	programInstructionsBuilt *prometheus.CounterVec
	programTransactionsSent  *prometheus.CounterVec

	// Session metrics
	activeSessions prometheus.Gauge
	sessionEvents  *prometheus.CounterVec

	// HTTP Metrics
	httpRequestDuration *prometheus.HistogramVec
	httpRequestsTotal   *prometheus.CounterVec

	// NATS Metrics
	natsMessagesPublished *prometheus.CounterVec
	natsPublishDuration   *prometheus.HistogramVec
}

// NewMetrics creates a new Metrics instance and registers all collectors.
// If registry is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		solanaRPCCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solana_rpc_calls_total",
				Help: "Total number of Solana RPC calls by method and status",
			},
			[]string{"method", "status", "endpoint"},
		),
		solanaRPCCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "solana_rpc_call_duration_seconds",
				Help:    "Duration of Solana RPC calls in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"method", "endpoint"},
		),

		programBindsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "program_client_binds_total",
				Help: "Program client handle lookups by outcome (hit, built, not_ready)",
			},
			[]string{"outcome", "reason"},
		),
		programInstructionsBuilt: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "program_instructions_built_total",
				Help: "Total number of program instructions built",
			},
			[]string{"instruction", "status"},
		),
		programTransactionsSent: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "program_transactions_sent_total",
				Help: "Total number of transactions sent to the program",
			},
			[]string{"status"},
		),

		activeSessions: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "wallet_sessions_active",
				Help: "Number of browser sessions with a connected wallet",
			},
		),
		sessionEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wallet_session_events_total",
				Help: "Total number of wallet connect/disconnect events",
			},
			[]string{"event_type"},
		),

		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
			},
			[]string{"handler", "method", "status"},
		),
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"handler", "method", "status"},
		),

		natsMessagesPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nats_messages_published_total",
				Help: "Total number of NATS messages published",
			},
			[]string{"subject", "status"},
		),
		natsPublishDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "nats_publish_duration_seconds",
				Help:    "Duration of NATS publish operations in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
			},
			[]string{"subject"},
		),
	}
}

// Solana RPC metric helpers

// RecordRPCCall records a Solana RPC call with duration.
func (m *Metrics) RecordRPCCall(method, status, endpoint string, duration float64) {
	m.solanaRPCCallsTotal.WithLabelValues(method, status, endpoint).Inc()
	m.solanaRPCCallDuration.WithLabelValues(method, endpoint).Observe(duration)
}

// Program client metric helpers

// RecordProgramBind records the outcome of a handle lookup.
// outcome is one of "hit", "built" or "not_ready"; reason says why a handle was rebuilt.
func (m *Metrics) RecordProgramBind(outcome, reason string) {
	m.programBindsTotal.WithLabelValues(outcome, reason).Inc()
}

// RecordInstructionBuilt records an instruction build attempt.
func (m *Metrics) RecordInstructionBuilt(instruction string, err error) {
	m.programInstructionsBuilt.WithLabelValues(instruction, errStatus(err)).Inc()
}

// RecordTransactionSent records a transaction submission.
func (m *Metrics) RecordTransactionSent(err error) {
	m.programTransactionsSent.WithLabelValues(errStatus(err)).Inc()
}

// Session metric helpers

// RecordSessionEvent records a wallet connect or disconnect and adjusts the active gauge.
func (m *Metrics) RecordSessionEvent(eventType string) {
	m.sessionEvents.WithLabelValues(eventType).Inc()
	switch eventType {
	case "connected":
		m.activeSessions.Inc()
	case "disconnected", "expired":
		m.activeSessions.Dec()
	}
}

// HTTP metric helpers

// RecordHTTPRequest records an HTTP request with duration.
func (m *Metrics) RecordHTTPRequest(handler, method string, statusCode int, duration float64) {
	status := statusCodeToString(statusCode)
	m.httpRequestDuration.WithLabelValues(handler, method, status).Observe(duration)
	m.httpRequestsTotal.WithLabelValues(handler, method, status).Inc()
}

// NATS metric helpers

// RecordNATSPublish records a NATS publish operation.
func (m *Metrics) RecordNATSPublish(subject, status string, duration float64) {
	m.natsMessagesPublished.WithLabelValues(subject, status).Inc()
	m.natsPublishDuration.WithLabelValues(subject).Observe(duration)
}

// Helper functions

func errStatus(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

func statusCodeToString(code int) string {
	// Group status codes by class
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500 && code < 600:
		return "5xx"
	default:
		return "unknown"
	}
}
