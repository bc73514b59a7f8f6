package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics and the training metrics using Prometheus.
type Recorder struct {
	messagesSent *prometheus.CounterVec
	errorsTotal  *prometheus.CounterVec
	riskScores   prometheus.Histogram
	latency      *prometheus.HistogramVec
	trainings    *prometheus.CounterVec
	trainingDur  prometheus.Histogram
}

// New creates a recorder registered with the default Prometheus registry.
func New() *Recorder { return NewWithRegisterer(prometheus.DefaultRegisterer) }

// NewWithRegisterer creates a recorder registered with reg.
func NewWithRegisterer(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		messagesSent: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "riskpulse_messages_sent_total",
				Help: "Total number of transactions sent to backend",
			},
			[]string{"backend"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "riskpulse_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		riskScores: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "riskpulse_ingested_risk_score",
				Help:    "Risk scores of ingested transactions",
				Buckets: prometheus.LinearBuckets(10, 10, 10),
			},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "riskpulse_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		trainings: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "riskpulse_training_runs_total",
				Help: "Model training runs by outcome",
			},
			[]string{"outcome"},
		),
		trainingDur: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "riskpulse_training_duration_seconds",
				Help:    "Duration of model training runs",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
			},
		),
	}
}

// RecordMessageSent records a transaction sent to a backend.
func (r *Recorder) RecordMessageSent(backend string) {
	r.messagesSent.WithLabelValues(backend).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordRiskScore observes the risk score of an ingested transaction.
func (r *Recorder) RecordRiskScore(score float64) {
	r.riskScores.Observe(score)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// RecordTraining records a training run outcome and its duration.
func (r *Recorder) RecordTraining(outcome string, seconds float64) {
	r.trainings.WithLabelValues(outcome).Inc()
	r.trainingDur.Observe(seconds)
}
