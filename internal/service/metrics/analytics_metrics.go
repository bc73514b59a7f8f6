package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	AnalyticsLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "riskpulse",
			Subsystem: "analytics",
			Name:      "latency_seconds",
			Help:      "Latency of analytics endpoints",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	AnalyticsErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "riskpulse",
			Subsystem: "analytics",
			Name:      "errors_total",
			Help:      "Errors by analytics endpoint and code",
		},
		[]string{"endpoint", "code"},
	)

	CacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "riskpulse",
			Subsystem: "analytics",
			Name:      "cache_hits_total",
			Help:      "Analytics responses served from cache",
		},
		[]string{"endpoint"},
	)
)

func Register() {
	once.Do(func() {
		prometheus.MustRegister(AnalyticsLatency, AnalyticsErrors, CacheHits)
	})
}

// Observe records one analytics call. code is empty on success.
func Observe(endpoint string, start time.Time, code string) {
	AnalyticsLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	if code != "" {
		AnalyticsErrors.WithLabelValues(endpoint, code).Inc()
	}
}
