package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/segmentio/kafka-go"
)

// Header keys set on every produced message.
const (
	HeaderContentType = "content-type"
	HeaderProducer    = "producer"
)

// Message is a record to publish. Value is sent as-is when it is []byte or
// string and JSON-encoded otherwise.
type Message struct {
	Key     []byte
	Value   interface{}
	Headers map[string]string
}

// Producer wraps a kafka-go writer.
type Producer struct {
	writer   *kafka.Writer
	comp     string
	clientID string
}

// NewProducer creates a new Kafka producer. Topics are set per message.
func NewProducer(opts ...ProducerOption) (*Producer, error) {
	cfg := defaultProducerConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("brokers are required")
	}

	bal := kafka.Balancer(&kafka.LeastBytes{})
	if cfg.HashByKey {
		bal = &kafka.Hash{}
	}
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               bal,
		RequiredAcks:           kafka.RequiredAcks(cfg.RequiredAcks),
		Compression:            parseCompression(cfg.Compression),
		MaxAttempts:            cfg.MaxAttempts,
		WriteTimeout:           cfg.WriteTimeout,
		ReadTimeout:            cfg.ReadTimeout,
		BatchSize:              cfg.BatchSize,
		BatchBytes:             int64(cfg.BatchBytes),
		BatchTimeout:           cfg.BatchTimeout,
		Async:                  cfg.Async,
		AllowAutoTopicCreation: false,
	}

	registerProducerMetrics()
	return &Producer{writer: writer, comp: strings.ToLower(cfg.Compression), clientID: cfg.ClientID}, nil
}

// Publish sends a single message to topic.
func (p *Producer) Publish(ctx context.Context, topic string, key []byte, value interface{}) error {
	return p.PublishBatch(ctx, topic, []Message{{Key: key, Value: value}})
}

// PublishMessage sends payload without a key. It lets the producer serve as
// the log collector's sink.
func (p *Producer) PublishMessage(ctx context.Context, topic string, payload interface{}) error {
	return p.Publish(ctx, topic, nil, payload)
}

// PublishBatch encodes and writes messages in one call. Nothing is written
// when any value fails to encode.
func (p *Producer) PublishBatch(ctx context.Context, topic string, messages []Message) error {
	if len(messages) == 0 {
		return nil
	}

	start := time.Now()
	now := start.UTC()
	out := make([]kafka.Message, 0, len(messages))
	var size int64
	for i, m := range messages {
		v, ctype, err := encode(m.Value)
		if err != nil {
			return fmt.Errorf("encode message %d: %w", i, err)
		}
		out = append(out, kafka.Message{
			Topic:   topic,
			Key:     m.Key,
			Value:   v,
			Time:    now,
			Headers: p.headers(ctype, m.Headers),
		})
		size += int64(len(v))
	}

	err := p.writer.WriteMessages(ctx, out...)
	observeProduce(topic, p.comp, size, len(out), time.Since(start), err)
	if err != nil {
		return fmt.Errorf("write %d messages to %s: %w", len(out), topic, err)
	}
	return nil
}

func (p *Producer) headers(ctype string, extra map[string]string) []kafka.Header {
	h := make([]kafka.Header, 0, 2+len(extra))
	h = append(h,
		kafka.Header{Key: HeaderContentType, Value: []byte(ctype)},
		kafka.Header{Key: HeaderProducer, Value: []byte(p.clientID)},
	)
	for k, v := range extra {
		h = append(h, kafka.Header{Key: k, Value: []byte(v)})
	}
	return h
}

// Close flushes pending writes and closes the producer.
func (p *Producer) Close() error {
	if p.writer != nil {
		return p.writer.Close()
	}
	return nil
}

func encode(value interface{}) ([]byte, string, error) {
	switch v := value.(type) {
	case []byte:
		return v, "application/octet-stream", nil
	case string:
		return []byte(v), "text/plain", nil
	case json.RawMessage:
		return v, "application/json", nil
	default:
		b, err := json.Marshal(value)
		if err != nil {
			return nil, "", err
		}
		return b, "application/json", nil
	}
}

func parseCompression(s string) kafka.Compression {
	switch strings.ToLower(s) {
	case "gzip":
		return kafka.Gzip
	case "lz4":
		return kafka.Lz4
	case "zstd":
		return kafka.Zstd
	case "none", "":
		return 0
	default:
		return kafka.Snappy
	}
}

var (
	producerOnce     sync.Once
	producerMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "riskpulse",
			Subsystem: "kafka_producer",
			Name:      "messages_total",
			Help:      "Messages written to Kafka by result",
		},
		[]string{"topic", "compression", "result"},
	)
	producerBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "riskpulse",
			Subsystem: "kafka_producer",
			Name:      "bytes_total",
			Help:      "Payload bytes written to Kafka",
		},
		[]string{"topic"},
	)
	producerLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "riskpulse",
			Subsystem: "kafka_producer",
			Name:      "write_seconds",
			Help:      "Latency of a batch write",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"topic"},
	)
)

func registerProducerMetrics() {
	producerOnce.Do(func() {
		prometheus.MustRegister(producerMessages, producerBytes, producerLatency)
	})
}

func observeProduce(topic, comp string, size int64, count int, dur time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	producerMessages.WithLabelValues(topic, comp, result).Add(float64(count))
	if err == nil {
		producerBytes.WithLabelValues(topic).Add(float64(size))
	}
	producerLatency.WithLabelValues(topic).Observe(dur.Seconds())
}
