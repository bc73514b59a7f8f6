package usecase

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"RiskPulse/internal/domain/models"
	mid "RiskPulse/internal/middleware"
	pkgkafka "RiskPulse/pkg/kafka"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKafkaHandlerStoresTransaction(t *testing.T) {
	store := &memStorage{}
	m := newCountingMetrics()
	h := NewKafkaTransactionsHandler("transactions", store, m)
	assert.Equal(t, "transactions", h.Topic())

	msg := `{"id":"t1","timestamp":"2024-03-01T10:00:00Z","amount":"99.90","risk_score":55}`
	require.NoError(t, h.Handle(context.Background(), []byte(msg)))
	require.Equal(t, 1, store.count())
	assert.Equal(t, "t1", store.stored[0].ID)
	assert.True(t, decimal.RequireFromString("99.9").Equal(store.stored[0].Amount))
	assert.Equal(t, 1, m.sent["clickhouse"])
	assert.Equal(t, []float64{55}, m.risks)
}

func TestKafkaHandlerRejectsBadMessages(t *testing.T) {
	store := &memStorage{}
	m := newCountingMetrics()
	h := NewKafkaTransactionsHandler("transactions", store, m)

	err := h.Handle(context.Background(), []byte("{"))
	assert.ErrorIs(t, err, models.ErrMalformedInput)
	assert.ErrorIs(t, err, pkgkafka.ErrPermanent)
	err = h.Handle(context.Background(), []byte(`{"id":"t1","amount":"1"}`))
	assert.ErrorIs(t, err, models.ErrMalformedInput)
	err = h.Handle(context.Background(), []byte(`{"id":"t1","timestamp":"2024-03-01T10:00:00Z","amount":"1","risk_score":120}`))
	assert.ErrorIs(t, err, models.ErrMalformedInput)

	assert.Zero(t, store.count())
	assert.Equal(t, 1, m.errors["consumer_unmarshal"])
	assert.Equal(t, 2, m.errors["consumer_invalid"])
}

func TestKafkaHandlerStoreFailure(t *testing.T) {
	store := &memStorage{err: errors.New("insert failed")}
	m := newCountingMetrics()
	h := NewKafkaTransactionsHandler("transactions", store, m)

	err := h.Handle(context.Background(), []byte(`{"id":"t1","timestamp":"2024-03-01T10:00:00Z","amount":"1"}`))
	assert.Error(t, err)
	assert.NotErrorIs(t, err, pkgkafka.ErrPermanent)
	assert.Equal(t, 1, m.errors["consumer_store"])
}

func TestProcessorRoutesByBackend(t *testing.T) {
	tx := &models.TransactionRecord{ID: "t1", Timestamp: testNow, Amount: decimal.NewFromInt(3)}

	pub, store := &memStorage{}, &memStorage{}
	m := newCountingMetrics()
	require.NoError(t, NewTransactionProcessor(pub, store, m, "kafka").Process(context.Background(), tx))
	assert.Equal(t, 1, pub.count())
	assert.Zero(t, store.count())
	assert.Equal(t, 1, m.sent["kafka"])

	require.NoError(t, NewTransactionProcessor(nil, store, m, "clickhouse").Process(context.Background(), tx))
	assert.Equal(t, 1, store.count())

	err := NewTransactionProcessor(pub, store, m, "s3").Process(context.Background(), tx)
	assert.Error(t, err)
	assert.Equal(t, 1, m.errors["process_batch"])

	assert.Error(t, NewTransactionProcessor(pub, store, m, "kafka").Process(context.Background(), nil))
}

// chanStream is a TransactionStream fed by the test.
type chanStream struct {
	sessions   chan chan *models.TransactionRecord
	errs       chan error
	reconnects atomic.Int32
	closed     atomic.Bool
}

func (s *chanStream) Connect(context.Context) error   { return nil }
func (s *chanStream) Subscribe(context.Context) error { return nil }
func (s *chanStream) Reconnect(context.Context) error { s.reconnects.Add(1); return nil }
func (s *chanStream) IsConnected() bool               { return !s.closed.Load() }
func (s *chanStream) Close() error                    { s.closed.Store(true); return nil }

func (s *chanStream) Read(context.Context) (<-chan *models.TransactionRecord, <-chan error) {
	return <-s.sessions, s.errs
}

func TestCollectorForwardsAndReconnects(t *testing.T) {
	first := make(chan *models.TransactionRecord, 4)
	second := make(chan *models.TransactionRecord, 4)
	stream := &chanStream{sessions: make(chan chan *models.TransactionRecord, 2), errs: make(chan error)}
	stream.sessions <- first
	stream.sessions <- second

	store := &memStorage{}
	m := newCountingMetrics()
	proc := NewTransactionProcessor(nil, store, m, "clickhouse")
	pipe := mid.NewRealtimePipeline(proc, m, mid.WithBatch(1, 10*time.Millisecond))
	c := NewTransactionCollector(stream, proc, m, pipe)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, c.Start(ctx))

	first <- &models.TransactionRecord{ID: "a", Timestamp: testNow, Amount: decimal.NewFromInt(1)}
	first <- &models.TransactionRecord{ID: "a", Timestamp: testNow, Amount: decimal.NewFromInt(1)}
	close(first)
	second <- &models.TransactionRecord{ID: "b", Timestamp: testNow, Amount: decimal.NewFromInt(2)}

	assert.Eventually(t, func() bool { return store.count() == 2 }, time.Second, 5*time.Millisecond)
	assert.Same(t, proc, c.Processor())

	cancel()
	require.NoError(t, c.Shutdown(context.Background()))
	assert.False(t, c.IsConnected())
	assert.Equal(t, int32(1), stream.reconnects.Load())
}
