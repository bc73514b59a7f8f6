package usecase

import (
	"context"
	"fmt"
	"time"

	"RiskPulse/internal/domain/models"
	drepo "RiskPulse/internal/domain/repository"
)

// TransactionProcessor routes transactions to the configured backend.
type TransactionProcessor struct {
	pub     drepo.Publisher
	store   drepo.Storage
	metrics drepo.Metrics
	backend string
}

// NewTransactionProcessor creates a new TransactionProcessor instance.
func NewTransactionProcessor(
	pub drepo.Publisher,
	store drepo.Storage,
	metrics drepo.Metrics,
	backend string,
) *TransactionProcessor {
	return &TransactionProcessor{
		pub:     pub,
		store:   store,
		metrics: metrics,
		backend: backend,
	}
}

// Process routes a single transaction.
func (p *TransactionProcessor) Process(ctx context.Context, t *models.TransactionRecord) error {
	if t == nil {
		return fmt.Errorf("transaction is nil")
	}
	return p.ProcessBatch(ctx, []*models.TransactionRecord{t})
}

// ProcessBatch routes multiple transactions in one call.
func (p *TransactionProcessor) ProcessBatch(ctx context.Context, txs []*models.TransactionRecord) error {
	if len(txs) == 0 {
		return nil
	}

	start := time.Now()
	var err error

	switch p.backend {
	case "kafka":
		if p.pub == nil {
			err = fmt.Errorf("kafka backend without publisher")
			break
		}
		err = p.pub.PublishBatch(ctx, txs)
	case "clickhouse":
		if p.store == nil {
			err = fmt.Errorf("clickhouse backend without storage")
			break
		}
		err = p.store.StoreBatch(ctx, txs)
	default:
		err = fmt.Errorf("unknown backend: %s", p.backend)
	}

	if err != nil {
		p.metrics.RecordError("process_batch")
		return fmt.Errorf("process batch: %w", err)
	}

	for _, t := range txs {
		p.metrics.RecordMessageSent(p.backend)
		if t.RiskScore != nil {
			p.metrics.RecordRiskScore(*t.RiskScore)
		}
	}
	p.metrics.RecordLatency("process_batch", time.Since(start).Seconds())

	return nil
}

// Close closes underlying resources if available.
func (p *TransactionProcessor) Close() {
	if p.pub != nil {
		_ = p.pub.Close()
	}
	if p.store != nil {
		_ = p.store.Close()
	}
}
