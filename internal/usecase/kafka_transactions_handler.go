package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"RiskPulse/internal/domain/models"
	domrepo "RiskPulse/internal/domain/repository"
	pkgkafka "RiskPulse/pkg/kafka"
)

// KafkaTransactionsHandler consumes transaction messages and writes them to storage.
type KafkaTransactionsHandler struct {
	topic   string
	storage domrepo.Storage
	metrics domrepo.Metrics
}

func NewKafkaTransactionsHandler(topic string, storage domrepo.Storage, metrics domrepo.Metrics) *KafkaTransactionsHandler {
	return &KafkaTransactionsHandler{topic: topic, storage: storage, metrics: metrics}
}

func (h *KafkaTransactionsHandler) Topic() string { return h.topic }

// Handle stores one JSON encoded TransactionRecord. Invalid records fail
// permanently so the consumer routes them to the DLQ without retrying.
func (h *KafkaTransactionsHandler) Handle(ctx context.Context, b []byte) error {
	var t models.TransactionRecord
	if err := json.Unmarshal(b, &t); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return pkgkafka.Permanent(fmt.Errorf("%w: %v", models.ErrMalformedInput, err))
	}
	if err := t.Validate(); err != nil {
		h.metrics.RecordError("consumer_invalid")
		return pkgkafka.Permanent(err)
	}
	h.metrics.RecordLatency("ingest_e2e_seconds", time.Since(t.Timestamp).Seconds())

	start := time.Now()
	err := h.storage.Store(ctx, &t)
	h.metrics.RecordLatency("ch_insert_seconds", time.Since(start).Seconds())
	if err != nil {
		h.metrics.RecordError("consumer_store")
		return err
	}
	h.metrics.RecordMessageSent("clickhouse")
	if t.RiskScore != nil {
		h.metrics.RecordRiskScore(*t.RiskScore)
	}
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaTransactionsHandler)(nil)
