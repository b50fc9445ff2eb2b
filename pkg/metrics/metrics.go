package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	claimedOutcomeLabel = "outcome"
	classLabel          = "class"
	statusLabel         = "status"
)

var (
	// JobsSubmittedTotal counts accepted submissions partitioned by job class.
	JobsSubmittedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reviewqueue_jobs_submitted_total",
			Help: "Number of review jobs accepted for queueing partitioned by class.",
		}, []string{classLabel})

	// JobClaimsTotal counts claim calls partitioned by outcome: claimed, empty or error.
	JobClaimsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reviewqueue_job_claims_total",
			Help: "Number of claim calls partitioned by outcome.",
		}, []string{claimedOutcomeLabel})

	// JobsCompletedTotal counts completions partitioned by terminal status.
	JobsCompletedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reviewqueue_jobs_completed_total",
			Help: "Number of completed review jobs partitioned by terminal status.",
		}, []string{statusLabel})

	// QueueDepth reports the number of jobs per state, refreshed periodically
	// by the metrics server.
	QueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "reviewqueue_queue_depth",
			Help: "Number of review jobs per state.",
		}, []string{statusLabel})
)

const (
	ClaimOutcomeClaimed = "claimed"
	ClaimOutcomeEmpty   = "empty"
	ClaimOutcomeError   = "error"
)

type PrometheusMetricsHandler struct {
	registry *prometheus.Registry
}

func NewPrometheusMetricsHandler() *PrometheusMetricsHandler {
	h := &PrometheusMetricsHandler{registry: prometheus.DefaultRegisterer.(*prometheus.Registry)}

	h.registry.MustRegister(JobsSubmittedTotal)
	h.registry.MustRegister(JobClaimsTotal)
	h.registry.MustRegister(JobsCompletedTotal)
	h.registry.MustRegister(QueueDepth)

	return h
}

func (h *PrometheusMetricsHandler) Handler() http.Handler {
	return promhttp.HandlerFor(h.registry, promhttp.HandlerOpts{Registry: h.registry})
}
