package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "lvctl"

// Call outcomes recorded by RecordCall.
const (
	OutcomeOK      = "ok"
	OutcomeFault   = "fault"
	OutcomeFailed  = "failed"
	OutcomeTimeout = "timeout"
	OutcomeBusy    = "busy"
)

var (
	registerOnce sync.Once

	callsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "client",
			Name:      "calls_total",
			Help:      "VI host calls by command and outcome.",
		},
		[]string{"command", "outcome"},
	)
	callDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "client",
			Name:      "call_duration_seconds",
			Help:      "VI host call duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"command", "outcome"},
	)
	hostStarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "host",
			Name:      "starts_total",
			Help:      "Host start attempts by result.",
		},
		[]string{"result"},
	)
	hostStartDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "host",
			Name:      "start_duration_seconds",
			Help:      "Time from start request until the host listens.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 900},
		},
	)
	stubRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stub",
			Name:      "requests_total",
			Help:      "Requests served by the stub host.",
		},
		[]string{"command", "faulted"},
	)
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
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			callsTotal, callDuration,
			hostStarts, hostStartDuration,
			stubRequests,
			httpRequests, httpDuration,
		)
	})
}

func RecordCall(command, outcome string, duration time.Duration) {
	RegisterMetrics()
	callsTotal.WithLabelValues(command, outcome).Inc()
	callDuration.WithLabelValues(command, outcome).Observe(duration.Seconds())
}

// RecordHostStart counts a start attempt; duration is observed only for
// successful starts.
func RecordHostStart(result string, duration time.Duration) {
	RegisterMetrics()
	hostStarts.WithLabelValues(result).Inc()
	if result == "listening" || result == "adopted" {
		hostStartDuration.Observe(duration.Seconds())
	}
}

func RecordStubRequest(command string, faulted bool) {
	RegisterMetrics()
	stubRequests.WithLabelValues(command, strconv.FormatBool(faulted)).Inc()
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}
