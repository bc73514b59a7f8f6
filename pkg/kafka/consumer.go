package kafka

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"sync"
	"time"

	applogger "RiskPulse/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/segmentio/kafka-go"
)

// MessageHandler handles messages from a specific topic.
type MessageHandler interface {
	Topic() string
	Handle(context.Context, []byte) error
}

// DLQ header keys.
const (
	HeaderSourceTopic = "source_topic"
	HeaderError       = "error"
	HeaderAttempts    = "attempts"
)

// Consumer reads registered topics in a consumer group and fans messages out
// to a worker pool. At most one message per partition is in flight, so
// offsets commit in order.
type Consumer struct {
	cfg      *ConsumerConfig
	l        *applogger.Logger
	hook     ConsumerHook
	handlers map[string]MessageHandler
	readers  map[string]*kafka.Reader
	dlq      *kafka.Writer
	msgs     chan kafka.Message

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	cancel   context.CancelFunc
	wg       sync.WaitGroup
	started  bool
	stopOnce sync.Once
}

// NewConsumer creates a new Kafka consumer.
func NewConsumer(opts ...ConsumerOption) (*Consumer, error) {
	cfg := defaultConsumerConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("brokers are required")
	}

	c := &Consumer{
		cfg:      cfg,
		l:        applogger.Nop(),
		hook:     NoopHook{},
		handlers: make(map[string]MessageHandler),
		readers:  make(map[string]*kafka.Reader),
		locks:    make(map[string]*sync.Mutex),
	}
	if cfg.DLQTopic != "" {
		c.dlq = &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.DLQTopic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireAll,
		}
	}
	registerConsumerMetrics()
	return c, nil
}

// SetLogger sets the consumer logger.
func (c *Consumer) SetLogger(l *applogger.Logger) {
	if l != nil {
		c.l = l
	}
}

// WithConsumerHook sets a hook implementation for lifecycle events.
func (c *Consumer) WithConsumerHook(h ConsumerHook) {
	if h != nil {
		c.hook = h
	}
}

// RegisterHandler registers a handler for its topic. It must be called
// before Start; a second handler for the same topic is ignored.
func (c *Consumer) RegisterHandler(h MessageHandler) {
	topic := h.Topic()
	if _, ok := c.handlers[topic]; ok {
		c.l.Warn("kafka handler already registered", applogger.String("topic", topic))
		return
	}
	c.handlers[topic] = h
}

// Start creates one reader per registered topic and starts the workers.
// It returns immediately; Stop or cancelling ctx ends consumption.
func (c *Consumer) Start(ctx context.Context) error {
	if c.started {
		return errors.New("consumer already started")
	}
	if len(c.handlers) == 0 {
		return errors.New("no handlers registered")
	}
	c.started = true

	ctx, c.cancel = context.WithCancel(ctx)
	c.msgs = make(chan kafka.Message, c.cfg.BufferSize)

	for topic := range c.handlers {
		c.readers[topic] = kafka.NewReader(kafka.ReaderConfig{
			Brokers:     c.cfg.Brokers,
			Topic:       topic,
			GroupID:     c.cfg.GroupID,
			MinBytes:    c.cfg.MinBytes,
			MaxBytes:    c.cfg.MaxBytes,
			StartOffset: c.cfg.StartOffset,
		})
	}

	var readers sync.WaitGroup
	for topic, r := range c.readers {
		readers.Add(1)
		go c.read(ctx, &readers, topic, r)
	}
	for i := 0; i < c.cfg.WorkerCount; i++ {
		c.wg.Add(1)
		go c.work(ctx)
	}
	// workers drain until every reader has stopped
	go func() {
		readers.Wait()
		close(c.msgs)
	}()

	c.l.Info("kafka consumer started",
		applogger.String("group", c.cfg.GroupID),
		applogger.Int("topics", len(c.readers)),
		applogger.Int("workers", c.cfg.WorkerCount),
	)
	return nil
}

// Stop cancels consumption, waits for in-flight messages and closes readers.
func (c *Consumer) Stop(ctx context.Context) error {
	var err error
	c.stopOnce.Do(func() {
		if !c.started {
			return
		}
		c.cancel()

		done := make(chan struct{})
		go func() {
			c.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			err = fmt.Errorf("timeout waiting for consumer to stop: %w", ctx.Err())
		}

		for topic, r := range c.readers {
			if cerr := r.Close(); cerr != nil {
				c.l.Warn("kafka reader close error", applogger.String("topic", topic), applogger.Error(cerr))
			}
		}
		if c.dlq != nil {
			if cerr := c.dlq.Close(); cerr != nil {
				c.l.Warn("kafka dlq close error", applogger.Error(cerr))
			}
		}
		c.l.Info("kafka consumer stopped")
	})
	return err
}

func (c *Consumer) read(ctx context.Context, wg *sync.WaitGroup, topic string, r *kafka.Reader) {
	defer wg.Done()
	for {
		m, err := r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.l.Warn("kafka fetch error", applogger.String("topic", topic), applogger.Error(err))
			select {
			case <-time.After(c.cfg.BackoffMin):
			case <-ctx.Done():
				return
			}
			continue
		}

		// blocking send applies backpressure to the fetch loop
		select {
		case c.msgs <- m:
			consumerQueueDepth.WithLabelValues(topic).Set(float64(len(c.msgs)))
		case <-ctx.Done():
			return
		}
	}
}

func (c *Consumer) work(ctx context.Context) {
	defer c.wg.Done()
	for m := range c.msgs {
		c.process(ctx, m)
	}
}

func (c *Consumer) process(ctx context.Context, m kafka.Message) {
	h, ok := c.handlers[m.Topic]
	if !ok {
		return
	}
	start := time.Now()

	lock := c.partitionLock(m.Topic, m.Partition)
	lock.Lock()
	defer lock.Unlock()

	attempts, err := c.handleWithRetry(ctx, h, m)
	if err != nil && ctx.Err() != nil {
		// shutting down; leave the offset uncommitted for redelivery
		return
	}

	result := "ok"
	if err != nil {
		result = "failed"
		c.hook.OnError(ctx, m.Topic, m, m.Value, err)
		c.l.Error("kafka message failed",
			applogger.String("topic", m.Topic),
			applogger.Int("partition", m.Partition),
			applogger.Int64("offset", m.Offset),
			applogger.Int("attempts", attempts),
			applogger.Error(err),
		)
		if !c.deadLetter(m, attempts, err) {
			consumerHandled.WithLabelValues(m.Topic, "uncommitted").Inc()
			return
		}
		result = "dead_lettered"
	}

	if cerr := c.commit(ctx, c.readers[m.Topic], m); cerr != nil {
		c.l.Error("kafka commit failed", applogger.String("topic", m.Topic), applogger.Error(cerr))
	}
	consumerHandled.WithLabelValues(m.Topic, result).Inc()
	consumerLatency.WithLabelValues(m.Topic).Observe(time.Since(start).Seconds())
}

// handleWithRetry runs the hooks and handler up to RetryMax+1 times.
func (c *Consumer) handleWithRetry(ctx context.Context, h MessageHandler, m kafka.Message) (int, error) {
	var err error
	attempts := 0
	for {
		attempts++
		err = c.handleOnce(ctx, h, m)
		if err == nil || attempts > c.cfg.RetryMax || errors.Is(err, ErrPermanent) {
			return attempts, err
		}
		select {
		case <-time.After(backoffWithJitter(c.cfg.BackoffMin, c.cfg.BackoffMax, attempts)):
		case <-ctx.Done():
			return attempts, err
		}
	}
}

func (c *Consumer) handleOnce(ctx context.Context, h MessageHandler, m kafka.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	hctx, hm, data, err := c.hook.BeforeHandle(ctx, m.Topic, m, m.Value)
	if err != nil {
		return err
	}
	err = h.Handle(hctx, data)
	c.hook.AfterHandle(hctx, m.Topic, hm, data, err)
	return err
}

// deadLetter reports whether the message may be committed.
func (c *Consumer) deadLetter(m kafka.Message, attempts int, cause error) bool {
	if c.dlq == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := c.dlq.WriteMessages(ctx, kafka.Message{
		Key:   m.Key,
		Value: m.Value,
		Headers: append(m.Headers,
			kafka.Header{Key: HeaderSourceTopic, Value: []byte(m.Topic)},
			kafka.Header{Key: HeaderError, Value: []byte(cause.Error())},
			kafka.Header{Key: HeaderAttempts, Value: []byte(strconv.Itoa(attempts))},
		),
	})
	if err != nil {
		c.l.Error("kafka dlq write failed", applogger.String("topic", c.cfg.DLQTopic), applogger.Error(err))
		return false
	}
	return true
}

func (c *Consumer) commit(ctx context.Context, r *kafka.Reader, m kafka.Message) error {
	var err error
	for attempt := 1; attempt <= 3; attempt++ {
		cctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err = r.CommitMessages(cctx, m)
		cancel()
		if err == nil {
			return nil
		}
		select {
		case <-time.After(backoffWithJitter(50*time.Millisecond, 500*time.Millisecond, attempt)):
		case <-ctx.Done():
			return err
		}
	}
	return err
}

func (c *Consumer) partitionLock(topic string, partition int) *sync.Mutex {
	key := topic + "/" + strconv.Itoa(partition)
	c.locksMu.Lock()
	defer c.locksMu.Unlock()
	l, ok := c.locks[key]
	if !ok {
		l = &sync.Mutex{}
		c.locks[key] = l
	}
	return l
}

// backoffWithJitter doubles min per attempt up to max and subtracts up to
// half of it at random.
func backoffWithJitter(min, max time.Duration, attempt int) time.Duration {
	if min <= 0 {
		min = 50 * time.Millisecond
	}
	if max < min {
		max = min
	}
	if attempt < 1 {
		attempt = 1
	}
	d := max
	if attempt < 32 {
		if exp := min << uint(attempt-1); exp > 0 && exp < max {
			d = exp
		}
	}
	if half := int64(d) / 2; half > 0 {
		d -= time.Duration(rand.Int63n(half))
	}
	return d
}

var (
	consumerOnce sync.Once

	consumerQueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "riskpulse",
			Subsystem: "kafka_consumer",
			Name:      "queue_depth",
			Help:      "Messages fetched and waiting for a worker",
		},
		[]string{"topic"},
	)
	consumerHandled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "riskpulse",
			Subsystem: "kafka_consumer",
			Name:      "messages_total",
			Help:      "Messages handled by result",
		},
		[]string{"topic", "result"},
	)
	consumerLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "riskpulse",
			Subsystem: "kafka_consumer",
			Name:      "handle_seconds",
			Help:      "Handling time per message including retries",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"topic"},
	)
)

func registerConsumerMetrics() {
	consumerOnce.Do(func() {
		prometheus.MustRegister(consumerQueueDepth, consumerHandled, consumerLatency)
	})
}
