package logger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu      sync.Mutex
	topics  []string
	batches [][]AggregatedLogEntry
}

func (p *recordingPublisher) PublishMessage(_ context.Context, topic string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	p.batches = append(p.batches, payload.([]AggregatedLogEntry))
	return nil
}

func (p *recordingPublisher) snapshot() [][]AggregatedLogEntry {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([][]AggregatedLogEntry(nil), p.batches...)
}

func TestCollectorAggregatesDuplicates(t *testing.T) {
	pub := &recordingPublisher{}
	c := NewLogCollector(&CollectionConfig{FlushInterval: time.Hour, MaxEntries: 10, Topic: "logs", Source: "node-1", Publisher: pub})

	for i := 0; i < 3; i++ {
		c.AddLog("error", "store failed", map[string]interface{}{"n": i}, "repo.go:10")
	}
	c.AddLog("warn", "slow query", nil, "repo.go:20")
	c.Close()

	batches := pub.snapshot()
	require.Len(t, batches, 1)
	require.Len(t, batches[0], 2)
	assert.Equal(t, []string{"logs"}, pub.topics)

	first := batches[0][0]
	assert.Equal(t, "store failed", first.Message)
	assert.Equal(t, 3, first.Count)
	assert.Equal(t, "node-1", first.Source)
	assert.Equal(t, 0, first.Fields["n"])
	assert.Equal(t, 1, batches[0][1].Count)
}

func TestCollectorFlushesAtMaxEntries(t *testing.T) {
	pub := &recordingPublisher{}
	c := NewLogCollector(&CollectionConfig{FlushInterval: time.Hour, MaxEntries: 2, Publisher: pub})
	c.AddLog("error", "a", nil, "x.go:1")
	c.AddLog("error", "b", nil, "x.go:2")

	require.Eventually(t, func() bool { return len(pub.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
	c.Close()
	assert.Len(t, pub.snapshot(), 1)
}

func TestLoggerForwardsWarningsAndErrors(t *testing.T) {
	pub := &recordingPublisher{}
	l := Nop()
	l.AddCollector(&CollectionConfig{FlushInterval: time.Hour, Publisher: pub})

	l.Info("ignored")
	l.Warn("careful", String("k", "v"))
	l.Error("failed")
	l.RemoveCollector()

	batches := pub.snapshot()
	require.Len(t, batches, 1)
	require.Len(t, batches[0], 2)
	assert.Equal(t, "warn", batches[0][0].Level)
	assert.Equal(t, "v", batches[0][0].Fields["k"])
	assert.Equal(t, "error", batches[0][1].Level)
}
