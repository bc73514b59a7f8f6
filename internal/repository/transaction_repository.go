package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"RiskPulse/internal/domain/models"
	"RiskPulse/internal/domain/repository"
	pkgkafka "RiskPulse/pkg/kafka"
)

const insertChunkSize = 2000

// SchemaStatements returns the DDL for the transactions table in database db.
func SchemaStatements(db string) []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", db),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.transactions (
            id String,
            ts DateTime64(3, 'UTC'),
            amount Decimal64(2),
            risk_score Nullable(Float64),
            description String
        ) ENGINE = ReplacingMergeTree ORDER BY (ts, id)`, db),
	}
}

// ClickHouseStorage implements Storage for ClickHouse.
type ClickHouseStorage struct {
	db    *sql.DB
	table string
}

// NewClickHouseStorage creates ClickHouse storage.
func NewClickHouseStorage(db *sql.DB, table string) repository.Storage {
	return &ClickHouseStorage{db: db, table: table}
}

func (s *ClickHouseStorage) Store(ctx context.Context, t *models.TransactionRecord) error {
	return s.StoreBatch(ctx, []*models.TransactionRecord{t})
}

func (s *ClickHouseStorage) StoreBatch(ctx context.Context, txs []*models.TransactionRecord) error {
	for start := 0; start < len(txs); start += insertChunkSize {
		end := start + insertChunkSize
		if end > len(txs) {
			end = len(txs)
		}
		q, args := buildInsert(s.table, txs[start:end])
		if q == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("insert transactions: %w", err)
		}
	}
	return nil
}

// buildInsert renders a multi-row insert, skipping records without id or timestamp.
// It returns an empty query when nothing is left to insert.
func buildInsert(table string, txs []*models.TransactionRecord) (string, []interface{}) {
	values := make([]string, 0, len(txs))
	args := make([]interface{}, 0, len(txs)*5)
	for _, t := range txs {
		if t == nil || t.ID == "" || t.Timestamp.IsZero() {
			continue
		}
		var risk interface{}
		if t.RiskScore != nil {
			risk = *t.RiskScore
		}
		values = append(values, "(?, ?, toDecimal64(?, 2), ?, ?)")
		args = append(args, t.ID, t.Timestamp.UTC(), t.Amount.StringFixed(2), risk, t.Description)
	}
	if len(values) == 0 {
		return "", nil
	}
	q := fmt.Sprintf("INSERT INTO %s (id, ts, amount, risk_score, description) VALUES %s", table, strings.Join(values, ","))
	return q, args
}

func (s *ClickHouseStorage) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close is a no-op; the connection pool belongs to the ClickHouse client.
func (s *ClickHouseStorage) Close() error { return nil }

// KafkaPublisher implements Publisher for Kafka.
type KafkaPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaPublisher creates Kafka publisher.
func NewKafkaPublisher(producer *pkgkafka.Producer, topic string) repository.Publisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

func (p *KafkaPublisher) Publish(ctx context.Context, t *models.TransactionRecord) error {
	return p.producer.Publish(ctx, p.topic, []byte(t.ID), t)
}

func (p *KafkaPublisher) PublishBatch(ctx context.Context, txs []*models.TransactionRecord) error {
	if len(txs) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, 0, len(txs))
	for _, t := range txs {
		if t == nil {
			continue
		}
		msgs = append(msgs, pkgkafka.Message{Key: []byte(t.ID), Value: t})
	}
	return p.producer.PublishBatch(ctx, p.topic, msgs)
}

func (p *KafkaPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
