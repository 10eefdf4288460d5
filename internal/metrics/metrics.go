package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "archivist"

// Registry owns the service's Prometheus collectors. It embeds the
// underlying registry so it can be handed to promhttp as a Gatherer.
type Registry struct {
	*prometheus.Registry

	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
	httpInFlight  prometheus.Gauge
	operations    *prometheus.CounterVec
	opDuration    *prometheus.HistogramVec
	reconcile     *prometheus.CounterVec
	rejected      *prometheus.CounterVec
	alertFailures *prometheus.CounterVec
}

// NewRegistry creates a registry with runtime collectors and all service
// metrics registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	r := &Registry{
		Registry: reg,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route and status class",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_in_flight",
			Help:      "HTTP requests currently being served",
		}),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Archive and unarchive runs by result",
		}, []string{"operation", "backend", "result"}),
		opDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Archive and unarchive run duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 30, 120, 600},
		}, []string{"operation", "backend"}),
		reconcile: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconciliation_required_total",
			Help:      "Runs that changed storage but failed to report the new status",
		}, []string{"operation", "backend"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_rejected_total",
			Help:      "Inbound requests rejected before any side effect",
		}, []string{"reason"}),
		alertFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alert_failures_total",
			Help:      "Reconciliation alerts a notifier failed to deliver",
		}, []string{"notifier"}),
	}

	reg.MustRegister(
		r.httpRequests,
		r.httpDuration,
		r.httpInFlight,
		r.operations,
		r.opDuration,
		r.reconcile,
		r.rejected,
		r.alertFailures,
	)
	return r
}

// RecordRequest records one served HTTP request.
func (r *Registry) RecordRequest(method, route string, status int, seconds float64) {
	r.httpRequests.WithLabelValues(method, route, statusClass(status)).Inc()
	r.httpDuration.WithLabelValues(method, route).Observe(seconds)
}

func (r *Registry) InFlightInc() { r.httpInFlight.Inc() }

func (r *Registry) InFlightDec() { r.httpInFlight.Dec() }

// RecordOperation records a finished coordinator run. result is an outcome
// or an error code.
func (r *Registry) RecordOperation(operation, backend, result string, seconds float64) {
	r.operations.WithLabelValues(operation, backend, result).Inc()
	r.opDuration.WithLabelValues(operation, backend).Observe(seconds)
}

// RecordReconciliationRequired counts a run left with stale status.
func (r *Registry) RecordReconciliationRequired(operation, backend string) {
	r.reconcile.WithLabelValues(operation, backend).Inc()
}

// RecordRejected counts a request refused by the router.
func (r *Registry) RecordRejected(reason string) {
	r.rejected.WithLabelValues(reason).Inc()
}

// RecordAlertFailure counts an alert the named notifier could not deliver.
func (r *Registry) RecordAlertFailure(notifier string) {
	r.alertFailures.WithLabelValues(notifier).Inc()
}

// statusClass collapses a status code to "2xx", "4xx" and so on.
func statusClass(status int) string {
	if status < 100 || status > 599 {
		return "unknown"
	}
	return strconv.Itoa(status/100) + "xx"
}
