package repository

import (
	"context"

	"RiskPulse/internal/domain/models"
)

// TransactionStream is an upstream feed of transaction records.
type TransactionStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.TransactionRecord, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// Publisher forwards transactions to the message bus.
type Publisher interface {
	Publish(ctx context.Context, t *models.TransactionRecord) error
	PublishBatch(ctx context.Context, txs []*models.TransactionRecord) error
	Close() error
}

// Storage is the write side of the transaction store.
type Storage interface {
	Store(ctx context.Context, t *models.TransactionRecord) error
	StoreBatch(ctx context.Context, txs []*models.TransactionRecord) error
	Health(ctx context.Context) error // ping
	Close() error
}

// Metrics records ingest throughput and failures.
type Metrics interface {
	RecordMessageSent(backend string)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
	RecordRiskScore(score float64)
}
