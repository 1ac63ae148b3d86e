package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "ryverlive"

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total admin HTTP requests.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Admin HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)
	framesReceived = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "frames_received_total",
			Help:      "Inbound frames by message type.",
		},
		[]string{"type"},
	)
	framesDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "frames_dropped_total",
			Help:      "Inbound frames dropped by reason.",
		},
		[]string{"reason"},
	)
	calls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "calls_total",
			Help:      "Ack-correlated calls by type and outcome.",
		},
		[]string{"type", "outcome"},
	)
	callDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "call_duration_seconds",
			Help:      "Time from send to ack for resolved calls.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"type"},
	)
	connectionLosses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "connection_losses_total",
			Help:      "Detected connection losses.",
		},
	)
	reconnects = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "reconnect_attempts_total",
			Help:      "Reconnect attempts by result.",
		},
		[]string{"success"},
	)
	handlerPanics = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "handler_panics_total",
			Help:      "Recovered handler panics by discriminator.",
		},
		[]string{"discriminator"},
	)
	pendingCalls = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "pending_calls",
			Help:      "Calls currently awaiting an ack.",
		},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests, httpDuration,
			framesReceived, framesDropped,
			calls, callDuration,
			connectionLosses, reconnects,
			handlerPanics, pendingCalls,
		)
	})
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}

func RecordFrameReceived(msgType string) {
	RegisterMetrics()
	framesReceived.WithLabelValues(msgType).Inc()
}

func RecordFrameDropped(reason string) {
	RegisterMetrics()
	framesDropped.WithLabelValues(reason).Inc()
}

func RecordCall(msgType, outcome string, duration time.Duration) {
	RegisterMetrics()
	calls.WithLabelValues(msgType, outcome).Inc()
	if outcome == "ok" {
		callDuration.WithLabelValues(msgType).Observe(duration.Seconds())
	}
}

func RecordConnectionLoss() {
	RegisterMetrics()
	connectionLosses.Inc()
}

func RecordReconnect(success bool) {
	RegisterMetrics()
	reconnects.WithLabelValues(strconv.FormatBool(success)).Inc()
}

func RecordHandlerPanic(discriminator string) {
	RegisterMetrics()
	handlerPanics.WithLabelValues(discriminator).Inc()
}

func SetPendingCalls(n int) {
	RegisterMetrics()
	pendingCalls.Set(float64(n))
}
