package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the policy API.
// Pass to components that need to record metrics.
type Metrics struct {
	OperationsTotal   *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
	SyncFailuresTotal prometheus.Counter
}

// NewMetrics creates and registers all metrics with the given registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		OperationsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "openpap",
				Name:      "operations_total",
				Help:      "Total policy operations processed",
			},
			[]string{"op", "status"}, // op=create/update/..., status=HTTP code
		),
		OperationDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "openpap",
				Name:      "operation_duration_seconds",
				Help:      "Policy operation duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"op"},
		),
		SyncFailuresTotal: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: "openpap",
				Name:      "engine_sync_failures_total",
				Help:      "Total decision engine sync failures surfaced to callers",
			},
		),
	}
}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// instrument wraps a handler with per-operation counters and latency.
func (h *PolicyAPIHandler) instrument(op string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next(rec, r)

		h.metrics.OperationsTotal.WithLabelValues(op, strconv.Itoa(rec.status)).Inc()
		h.metrics.OperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}
}
