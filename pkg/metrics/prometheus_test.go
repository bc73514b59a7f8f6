package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorderCounts(t *testing.T) {
	r := NewWithRegisterer(prometheus.NewRegistry())

	r.RecordMessageSent("kafka")
	r.RecordMessageSent("kafka")
	r.RecordError("stream")
	r.RecordTraining("ok", 1.5)
	r.RecordTraining("timeout_error", 120)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.messagesSent.WithLabelValues("kafka")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.errorsTotal.WithLabelValues("stream")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.trainings.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.trainings.WithLabelValues("timeout_error")))
}

func TestRecordersUseSeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		NewWithRegisterer(prometheus.NewRegistry())
		NewWithRegisterer(prometheus.NewRegistry())
	})
}
