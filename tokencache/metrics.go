package tokencache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	// lookups counts cache reads by result (hit, miss).
	lookups *prometheus.CounterVec
	// providerCalls counts provider invocations by outcome (success, error).
	providerCalls *prometheus.CounterVec
	// coalesced counts callers that joined an in-flight fetch.
	coalesced prometheus.Counter
	// providerDuration tracks provider call latency.
	providerDuration prometheus.Histogram
	// errors counts failures returned to callers by auth0err kind.
	errors *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	f := promauto.With(reg)
	return &metrics{
		lookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tokencache_lookups_total",
			Help: "Total number of token cache lookups",
		}, []string{"result"}),
		providerCalls: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tokencache_provider_calls_total",
			Help: "Total number of token provider calls",
		}, []string{"outcome"}),
		coalesced: f.NewCounter(prometheus.CounterOpts{
			Name: "tokencache_coalesced_total",
			Help: "Total number of fetches that joined an in-flight provider call",
		}),
		providerDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "tokencache_provider_duration_seconds",
			Help:    "Histogram of token provider call latency in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		errors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tokencache_errors_total",
			Help: "Total number of fetch failures by error kind",
		}, []string{"kind"}),
	}
}
