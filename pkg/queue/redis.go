package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"RiskPulse/pkg/logger"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultKeyPrefix namespaces queue keys. Instances that must not share work
// override it with WithKeyPrefix.
const DefaultKeyPrefix = "riskpulse:queue"

const (
	popTimeout      = time.Second
	retryPollPeriod = time.Second
	maxDeadLetters  = 1000
)

// envelope is the stored form of a Message. The payload stays raw JSON until
// a job parses it with ParsePayload.
type envelope struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Payload    json.RawMessage `json:"payload"`
	Attempts   int             `json:"attempts"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
	LastError  string          `json:"last_error,omitempty"`
}

// RedisQueue is a Dispatcher on Redis lists. A worker moves a message from
// the pending list to a processing list while it runs, so messages in flight
// during a crash are requeued by the next Start. Failures are parked in a
// sorted set until their retry time, then in a capped dead letter list.
type RedisQueue struct {
	logger    *logger.Logger
	config    *QueueConfig
	client    *redis.Client
	keyPrefix string

	mu        sync.RWMutex
	jobs      map[string]Job
	isRunning bool
	wg        sync.WaitGroup
	ctx       context.Context
	cancel    context.CancelFunc
}

// RedisQueueOption configures RedisQueue.
type RedisQueueOption func(*RedisQueue)

// WithKeyPrefix sets custom key prefix.
func WithKeyPrefix(prefix string) RedisQueueOption {
	return func(r *RedisQueue) {
		if prefix != "" {
			r.keyPrefix = prefix
		}
	}
}

// NewRedisQueue creates a queue that both accepts and runs messages.
func NewRedisQueue(lgr *logger.Logger, config *QueueConfig, client *redis.Client, opts ...RedisQueueOption) *RedisQueue {
	if config == nil {
		config = &QueueConfig{}
	}
	if config.Workers <= 0 {
		config.Workers = 1
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = 10 * time.Second
	}
	rq := &RedisQueue{
		logger:    lgr,
		config:    config,
		client:    client,
		keyPrefix: DefaultKeyPrefix,
		jobs:      make(map[string]Job),
	}
	for _, opt := range opts {
		opt(rq)
	}
	return rq
}

func (r *RedisQueue) RegisterJob(job Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.jobs[job.Type()]; exists {
		r.logger.Warn("job already registered", logger.String("job", job.Name()))
		return
	}
	r.jobs[job.Type()] = job
	r.logger.Info("job registered", logger.String("job", job.Name()), logger.String("type", job.Type()))
}

// Start pings Redis, requeues messages left in processing and starts the workers.
func (r *RedisQueue) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.isRunning {
		return fmt.Errorf("queue already running")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	recovered, err := r.recoverInFlight(ctx)
	if err != nil {
		return fmt.Errorf("recover in-flight messages: %w", err)
	}

	r.ctx, r.cancel = context.WithCancel(context.Background())
	r.isRunning = true
	for i := 0; i < r.config.Workers; i++ {
		r.wg.Add(1)
		go r.worker(i)
	}
	r.wg.Add(1)
	go r.promoteRetries()

	r.logger.Info("redis queue started",
		logger.Int("workers", r.config.Workers),
		logger.String("addr", r.client.Options().Addr),
		logger.String("prefix", r.keyPrefix),
		logger.Int("recovered", recovered))
	return nil
}

// Stop cancels the workers and waits for running jobs until ctx expires.
func (r *RedisQueue) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.isRunning {
		r.mu.Unlock()
		return nil
	}
	r.isRunning = false
	r.cancel()
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		r.logger.Warn("timeout waiting for queue workers", logger.Error(ctx.Err()))
		return fmt.Errorf("timeout: %w", ctx.Err())
	case <-done:
		r.logger.Info("redis queue stopped")
		return nil
	}
}

// Enqueue stores a message for a registered job type.
func (r *RedisQueue) Enqueue(ctx context.Context, msgType string, payload interface{}) error {
	r.mu.RLock()
	running := r.isRunning
	_, known := r.jobs[msgType]
	r.mu.RUnlock()
	if !running {
		return fmt.Errorf("queue not running")
	}
	if !known {
		return fmt.Errorf("no job registered for type: %s", msgType)
	}

	raw, err := newEnvelope(msgType, payload)
	if err != nil {
		return err
	}
	if err := r.client.LPush(ctx, r.pendingKey(), raw).Err(); err != nil {
		return fmt.Errorf("lpush: %w", err)
	}
	return nil
}

func (r *RedisQueue) PublishMessage(ctx context.Context, msgType string, payload interface{}) error {
	return r.Enqueue(ctx, msgType, payload)
}

// DeadLetterCount returns the number of messages parked in the dead letter list.
func (r *RedisQueue) DeadLetterCount(ctx context.Context) (int64, error) {
	return r.client.LLen(ctx, r.deadLetterKey()).Result()
}

func newEnvelope(msgType string, payload interface{}) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return json.Marshal(envelope{
		ID:         uuid.NewString(),
		Type:       msgType,
		Payload:    body,
		EnqueuedAt: time.Now().UTC(),
	})
}

func (r *RedisQueue) recoverInFlight(ctx context.Context) (int, error) {
	n := 0
	for {
		err := r.client.LMove(ctx, r.processingKey(), r.pendingKey(), "RIGHT", "RIGHT").Err()
		if errors.Is(err, redis.Nil) {
			return n, nil
		}
		if err != nil {
			return n, err
		}
		n++
	}
}

func (r *RedisQueue) worker(id int) {
	defer r.wg.Done()
	r.logger.Debug("queue worker started", logger.Int("worker_id", id))
	for r.ctx.Err() == nil {
		raw, err := r.client.BLMove(r.ctx, r.pendingKey(), r.processingKey(), "RIGHT", "LEFT", popTimeout).Result()
		switch {
		case err == nil:
			r.process(raw)
		case errors.Is(err, redis.Nil), r.ctx.Err() != nil:
		default:
			r.logger.Error("blmove error", logger.Error(err))
			select {
			case <-r.ctx.Done():
			case <-time.After(time.Second):
			}
		}
	}
}

// process runs one message and always removes it from the processing list,
// rescheduling or dead-lettering it on failure.
func (r *RedisQueue) process(raw string) {
	defer func() {
		if err := r.client.LRem(context.Background(), r.processingKey(), 1, raw).Err(); err != nil {
			r.logger.Error("lrem processing", logger.Error(err))
		}
	}()

	var msg envelope
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		r.logger.Error("unmarshal message", logger.Error(err))
		r.deadLetter(raw)
		return
	}

	r.mu.RLock()
	job, ok := r.jobs[msg.Type]
	r.mu.RUnlock()
	if !ok {
		r.logger.Error("no job found", logger.String("type", msg.Type), logger.String("id", msg.ID))
		r.deadLetter(raw)
		return
	}

	start := time.Now()
	err := job.Handle(r.ctx, msg.Payload)
	r.logger.Debug("message handled",
		logger.String("id", msg.ID),
		logger.String("job", job.Name()),
		logger.Duration("elapsed_ms", time.Since(start)),
		logger.Bool("ok", err == nil))
	if err == nil {
		return
	}
	if errors.Is(err, context.Canceled) && r.ctx.Err() != nil {
		// shutting down: hand the message back untouched
		if perr := r.client.RPush(context.Background(), r.pendingKey(), raw).Err(); perr != nil {
			r.logger.Error("requeue on shutdown", logger.String("id", msg.ID), logger.Error(perr))
		}
		return
	}

	msg.Attempts++
	msg.LastError = err.Error()
	r.logger.Error("message processing error",
		logger.String("id", msg.ID),
		logger.String("job", job.Name()),
		logger.Int("attempt", msg.Attempts),
		logger.Error(err))

	next, merr := json.Marshal(msg)
	if merr != nil {
		r.logger.Error("marshal retry", logger.Error(merr))
		return
	}
	if msg.Attempts > r.config.RetryLimit {
		r.logger.Error("max retries reached", logger.String("id", msg.ID), logger.String("job", job.Name()))
		r.deadLetter(string(next))
		return
	}
	retryAt := time.Now().Add(r.config.RetryDelay)
	if zerr := r.client.ZAdd(context.Background(), r.retryKey(), redis.Z{
		Score:  float64(retryAt.UnixMilli()),
		Member: next,
	}).Err(); zerr != nil {
		r.logger.Error("zadd retry", logger.Error(zerr))
	}
}

func (r *RedisQueue) deadLetter(raw string) {
	ctx := context.Background()
	pipe := r.client.TxPipeline()
	pipe.LPush(ctx, r.deadLetterKey(), raw)
	pipe.LTrim(ctx, r.deadLetterKey(), 0, maxDeadLetters-1)
	if _, err := pipe.Exec(ctx); err != nil {
		r.logger.Error("dead letter", logger.Error(err))
	}
}

// promoteRetries moves due retries back to the pending list. ZRem decides
// which instance of a racing pair wins a message.
func (r *RedisQueue) promoteRetries() {
	defer r.wg.Done()
	ticker := time.NewTicker(retryPollPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
		}

		due, err := r.client.ZRangeByScore(r.ctx, r.retryKey(), &redis.ZRangeBy{
			Min: "-inf",
			Max: strconv.FormatInt(time.Now().UnixMilli(), 10),
		}).Result()
		if err != nil {
			if r.ctx.Err() == nil {
				r.logger.Error("fetch retry messages", logger.Error(err))
			}
			continue
		}
		for _, raw := range due {
			removed, err := r.client.ZRem(r.ctx, r.retryKey(), raw).Result()
			if err != nil || removed == 0 {
				continue
			}
			if err := r.client.LPush(r.ctx, r.pendingKey(), raw).Err(); err != nil {
				r.logger.Error("move retry to queue", logger.Error(err))
			}
		}
	}
}

func (r *RedisQueue) pendingKey() string    { return r.keyPrefix + ":pending" }
func (r *RedisQueue) processingKey() string { return r.keyPrefix + ":processing" }
func (r *RedisQueue) retryKey() string      { return r.keyPrefix + ":retry" }
func (r *RedisQueue) deadLetterKey() string { return r.keyPrefix + ":dlq" }
