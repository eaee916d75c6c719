package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Request outcomes recorded by RequestsTotal.
const (
	OutcomeSuccess      = "success"
	OutcomeClientError  = "client_error"
	OutcomeServerError  = "server_error"
	OutcomeNetworkError = "network_error"
)

type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	Retries         prometheus.Counter
	RequestSeconds  prometheus.Histogram
	PagesFetched    prometheus.Counter
	FeaturesFetched prometheus.Counter
}

// NewMetrics registers the client collectors on reg. A nil reg gets a private registry,
// so several clients can live in one process without duplicate registration panics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	return &Metrics{
		RequestsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "sgu_http_requests_total",
			Help: "Total number of HTTP attempts against the SGU API, by outcome.",
		}, []string{"outcome"}),
		Retries: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "sgu_http_retries_total",
			Help: "Total number of retried HTTP attempts.",
		}),
		RequestSeconds: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "sgu_http_request_duration_seconds",
			Help:    "Duration of single HTTP attempts against the SGU API.",
			Buckets: prometheus.DefBuckets,
		}),
		PagesFetched: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "sgu_pages_fetched_total",
			Help: "Total number of result pages fetched by the paginator.",
		}),
		FeaturesFetched: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "sgu_features_fetched_total",
			Help: "Total number of features returned by aggregated queries.",
		}),
	}
}
