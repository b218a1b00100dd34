// Package metrics exposes Prometheus collectors for the proposal service.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "proposalkeeper"

type Metrics struct {
	registry *prometheus.Registry

	proposalsCreated prometheus.Counter
	proposalsDeleted *prometheus.CounterVec
	statusChanges    *prometheus.CounterVec
	uploadsRejected  *prometheus.CounterVec
	signIns          *prometheus.CounterVec
	requestDurations *prometheus.HistogramVec
}

// New registers all collectors, plus Go runtime and process collectors, on a
// fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		proposalsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "proposals_created_total",
			Help:      "Proposals submitted.",
		}),
		proposalsDeleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "proposals_deleted_total",
			Help:      "Proposals deleted, by actor (owner or admin).",
		}, []string{"actor"}),
		statusChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "proposal_status_changes_total",
			Help:      "Admin status changes, by target status.",
		}, []string{"status"}),
		uploadsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_rejected_total",
			Help:      "Document uploads refused, by reason.",
		}, []string{"reason"}),
		signIns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sign_ins_total",
			Help:      "Sign-in attempts, by result.",
		}, []string{"result"}),
		requestDurations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "code"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.proposalsCreated,
		m.proposalsDeleted,
		m.statusChanges,
		m.uploadsRejected,
		m.signIns,
		m.requestDurations,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ProposalCreated() {
	if m == nil {
		return
	}
	m.proposalsCreated.Inc()
}

func (m *Metrics) ProposalDeleted(actor string) {
	if m == nil {
		return
	}
	m.proposalsDeleted.WithLabelValues(actor).Inc()
}

func (m *Metrics) StatusChanged(status string) {
	if m == nil {
		return
	}
	m.statusChanges.WithLabelValues(status).Inc()
}

func (m *Metrics) UploadRejected(reason string) {
	if m == nil {
		return
	}
	m.uploadsRejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) SignIn(ok bool) {
	if m == nil {
		return
	}
	result := "failure"
	if ok {
		result = "success"
	}
	m.signIns.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveRequest(method, route string, code int, d time.Duration) {
	if m == nil {
		return
	}
	m.requestDurations.WithLabelValues(method, route, strconv.Itoa(code)).Observe(d.Seconds())
}
