package queue

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"RiskPulse/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingJob struct {
	calls    atomic.Int32
	failures int32
}

func (j *countingJob) Name() string { return "counting" }
func (j *countingJob) Type() string { return "count" }
func (j *countingJob) Handle(ctx context.Context, payload interface{}) error {
	n := j.calls.Add(1)
	if n <= j.failures {
		return errors.New("boom")
	}
	return nil
}

func TestLocalQueueRunsAndRetries(t *testing.T) {
	q := NewLocalQueue(logger.Nop(), &QueueConfig{Workers: 1, RetryLimit: 2, RetryDelay: 10 * time.Millisecond})
	job := &countingJob{failures: 2}
	q.RegisterJob(job)
	require.NoError(t, q.Start())
	defer q.Stop(context.Background())

	require.NoError(t, q.Enqueue(context.Background(), "count", nil))
	assert.Eventually(t, func() bool { return job.calls.Load() == 3 }, time.Second, 5*time.Millisecond)
}

func TestLocalQueueRejects(t *testing.T) {
	q := NewLocalQueue(logger.Nop(), nil)
	assert.Error(t, q.Enqueue(context.Background(), "count", nil), "not running")

	require.NoError(t, q.Start())
	defer q.Stop(context.Background())
	assert.Error(t, q.Enqueue(context.Background(), "unknown", nil))
}

func TestParsePayload(t *testing.T) {
	type payload struct {
		Reason string `json:"reason"`
	}
	got, err := ParsePayload[payload](map[string]interface{}{"reason": "manual"})
	require.NoError(t, err)
	assert.Equal(t, "manual", got.Reason)

	_, err = ParsePayload[payload](42)
	assert.Error(t, err)
}
