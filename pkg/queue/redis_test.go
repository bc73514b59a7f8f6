package queue

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type trainPayload struct {
	Reason string    `json:"reason"`
	At     time.Time `json:"at"`
}

func TestEnvelopePayloadParsesBackIntoJobType(t *testing.T) {
	at := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	raw, err := newEnvelope("risk.train", trainPayload{Reason: "api", At: at})
	require.NoError(t, err)

	var env envelope
	require.NoError(t, json.Unmarshal(raw, &env))
	assert.Equal(t, "risk.train", env.Type)
	assert.NotEmpty(t, env.ID)
	assert.Zero(t, env.Attempts)

	got, err := ParsePayload[trainPayload](env.Payload)
	require.NoError(t, err)
	assert.Equal(t, "api", got.Reason)
	assert.True(t, at.Equal(got.At))
}

func TestRedisQueueKeysUsePrefix(t *testing.T) {
	q := NewRedisQueue(nil, nil, nil, WithKeyPrefix("riskpulse:queue:node-a"))
	assert.Equal(t, "riskpulse:queue:node-a:pending", q.pendingKey())
	assert.Equal(t, "riskpulse:queue:node-a:dlq", q.deadLetterKey())
	assert.Equal(t, 1, q.config.Workers)

	q = NewRedisQueue(nil, nil, nil, WithKeyPrefix(""))
	assert.Equal(t, DefaultKeyPrefix+":retry", q.retryKey())
}
