package middleware

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"RiskPulse/internal/domain/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopMetrics struct {
	mu     sync.Mutex
	errors map[string]int
}

func (m *nopMetrics) RecordMessageSent(string)      {}
func (m *nopMetrics) RecordLatency(string, float64) {}
func (m *nopMetrics) RecordRiskScore(float64)       {}
func (m *nopMetrics) RecordError(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.errors == nil {
		m.errors = map[string]int{}
	}
	m.errors[kind]++
}

func (m *nopMetrics) count(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errors[kind]
}

type recordingProc struct {
	mu      sync.Mutex
	batches [][]*models.TransactionRecord
	fail    int
}

func (p *recordingProc) ProcessBatch(_ context.Context, txs []*models.TransactionRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail > 0 {
		p.fail--
		return errors.New("downstream unavailable")
	}
	p.batches = append(p.batches, txs)
	return nil
}

func (p *recordingProc) ids() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, b := range p.batches {
		for _, t := range b {
			out = append(out, t.ID)
		}
	}
	return out
}

func tx(id string) *models.TransactionRecord {
	return &models.TransactionRecord{ID: id, Timestamp: time.Now(), Amount: decimal.NewFromInt(10)}
}

func TestPipelineRejectsInvalid(t *testing.T) {
	m := &nopMetrics{}
	p := NewRealtimePipeline(&recordingProc{}, m)

	err := p.Process(context.Background(), &models.TransactionRecord{ID: "x"})
	assert.ErrorIs(t, err, models.ErrMalformedInput)
	assert.Equal(t, 1, m.count("pipeline_validate"))
}

func TestPipelineDropsDuplicatesAndFlushesOnStop(t *testing.T) {
	m := &nopMetrics{}
	proc := &recordingProc{}
	p := NewRealtimePipeline(proc, m, WithBatch(100, time.Hour))
	p.Start(context.Background())

	for _, id := range []string{"a", "b", "a", "c"} {
		require.NoError(t, p.Process(context.Background(), tx(id)))
	}
	p.Stop()

	assert.Equal(t, []string{"a", "b", "c"}, proc.ids())
	assert.Equal(t, 1, m.count("pipeline_duplicate"))
}

func TestPipelineFlushesFullBatches(t *testing.T) {
	proc := &recordingProc{}
	p := NewRealtimePipeline(proc, &nopMetrics{}, WithBatch(2, time.Hour))
	p.Start(context.Background())
	defer p.Stop()

	for _, id := range []string{"a", "b"} {
		require.NoError(t, p.Process(context.Background(), tx(id)))
	}
	assert.Eventually(t, func() bool { return len(proc.ids()) == 2 }, time.Second, 5*time.Millisecond)
}

func TestPipelineRetriesFailedBatch(t *testing.T) {
	m := &nopMetrics{}
	proc := &recordingProc{fail: 1}
	p := NewRealtimePipeline(proc, m, WithBatch(1, time.Hour), WithMaxRetries(2))
	p.Start(context.Background())

	require.NoError(t, p.Process(context.Background(), tx("a")))
	assert.Eventually(t, func() bool { return len(proc.ids()) == 1 }, 2*time.Second, 10*time.Millisecond)
	p.Stop()
	assert.Equal(t, 1, m.count("pipeline_flush"))
	assert.Zero(t, m.count("pipeline_drop"))
}

func TestPipelineBufferFull(t *testing.T) {
	p := NewRealtimePipeline(&recordingProc{}, &nopMetrics{}, WithBufferSize(1))

	require.NoError(t, p.Process(context.Background(), tx("a")))
	assert.ErrorIs(t, p.Process(context.Background(), tx("b")), ErrBufferFull)
}

func TestDedupWindowForgetsOldest(t *testing.T) {
	p := NewRealtimePipeline(&recordingProc{}, &nopMetrics{}, WithDedupWindow(2))

	assert.True(t, p.remember("a"))
	assert.True(t, p.remember("b"))
	assert.False(t, p.remember("a"))
	assert.True(t, p.remember("c"))
	assert.True(t, p.remember("a"))
}
