package middleware

import (
	"context"
	"errors"
	"sync"
	"time"

	"RiskPulse/internal/domain/models"
	domrepo "RiskPulse/internal/domain/repository"
)

// ErrBufferFull is returned by Process when the pipeline cannot accept more records.
var ErrBufferFull = errors.New("pipeline buffer full")

// BatchProc is the minimal processor interface the pipeline needs.
type BatchProc interface {
	ProcessBatch(ctx context.Context, txs []*models.TransactionRecord) error
}

// RealtimePipeline sits between the upstream feed and the backend.
// It validates, drops duplicate ids, batches and retries failed flushes.
type RealtimePipeline struct {
	proc       BatchProc
	metrics    domrepo.Metrics
	bufSize    int
	batchSize  int
	flushEvery time.Duration
	maxRetries int
	dedupSize  int

	in      chan *models.TransactionRecord
	stopCh  chan struct{}
	done    chan struct{}
	started bool
	mu      sync.Mutex

	seen  map[string]struct{}
	order []string // ring of remembered ids, oldest at next
	next  int
}

type PipelineOption func(*RealtimePipeline)

// WithBufferSize sets how many records may wait for a flush.
func WithBufferSize(n int) PipelineOption {
	return func(p *RealtimePipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

// WithBatch sets the flush size and interval.
func WithBatch(size int, every time.Duration) PipelineOption {
	return func(p *RealtimePipeline) {
		if size > 0 {
			p.batchSize = size
		}
		if every > 0 {
			p.flushEvery = every
		}
	}
}

// WithDedupWindow sets how many recent ids are remembered for de-duplication.
func WithDedupWindow(n int) PipelineOption {
	return func(p *RealtimePipeline) {
		if n > 0 {
			p.dedupSize = n
		}
	}
}

// WithMaxRetries sets how often a failed batch is retried before it is dropped.
func WithMaxRetries(n int) PipelineOption {
	return func(p *RealtimePipeline) {
		if n >= 0 {
			p.maxRetries = n
		}
	}
}

// NewRealtimePipeline creates a new pipeline.
func NewRealtimePipeline(proc BatchProc, metrics domrepo.Metrics, opts ...PipelineOption) *RealtimePipeline {
	p := &RealtimePipeline{
		proc:       proc,
		metrics:    metrics,
		bufSize:    1000,
		batchSize:  100,
		flushEvery: time.Second,
		maxRetries: 3,
		dedupSize:  10000,
		stopCh:     make(chan struct{}),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.in = make(chan *models.TransactionRecord, p.bufSize)
	p.seen = make(map[string]struct{}, p.dedupSize)
	p.order = make([]string, p.dedupSize)
	return p
}

// Start launches the background batcher.
func (p *RealtimePipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go p.run(ctx)
}

// Stop flushes pending records and stops the batcher.
func (p *RealtimePipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.mu.Unlock()
	close(p.stopCh)
	<-p.done
}

// Process validates and de-duplicates t, then queues it for the next batch.
// Duplicates are dropped without error.
func (p *RealtimePipeline) Process(ctx context.Context, t *models.TransactionRecord) error {
	if err := t.Validate(); err != nil {
		p.metrics.RecordError("pipeline_validate")
		return err
	}
	if !p.remember(t.ID) {
		p.metrics.RecordError("pipeline_duplicate")
		return nil
	}
	select {
	case p.in <- t:
		p.metrics.RecordLatency("pipeline_buffer_depth", float64(len(p.in)))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		p.metrics.RecordError("pipeline_buffer_full")
		return ErrBufferFull
	}
}

func (p *RealtimePipeline) run(ctx context.Context) {
	defer close(p.done)
	ticker := time.NewTicker(p.flushEvery)
	defer ticker.Stop()

	batch := make([]*models.TransactionRecord, 0, p.batchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		p.flush(ctx, batch)
		batch = make([]*models.TransactionRecord, 0, p.batchSize)
	}

	for {
		select {
		case <-p.stopCh:
			for {
				select {
				case t := <-p.in:
					batch = append(batch, t)
				default:
					flush()
					return
				}
			}
		case <-ctx.Done():
			flush()
			return
		case t := <-p.in:
			batch = append(batch, t)
			if len(batch) >= p.batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

func (p *RealtimePipeline) flush(ctx context.Context, batch []*models.TransactionRecord) {
	start := time.Now()
	backoff := 50 * time.Millisecond
	for attempt := 0; ; attempt++ {
		err := p.proc.ProcessBatch(ctx, batch)
		if err == nil {
			p.metrics.RecordLatency("pipeline_flush", time.Since(start).Seconds())
			return
		}
		p.metrics.RecordError("pipeline_flush")
		if attempt >= p.maxRetries || ctx.Err() != nil {
			p.metrics.RecordError("pipeline_drop")
			return
		}
		time.Sleep(backoff)
		if backoff < 2*time.Second {
			backoff *= 2
		}
	}
}

// remember records id and reports whether it was new.
func (p *RealtimePipeline) remember(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.seen[id]; ok {
		return false
	}
	if old := p.order[p.next]; old != "" {
		delete(p.seen, old)
	}
	p.order[p.next] = id
	p.next = (p.next + 1) % len(p.order)
	p.seen[id] = struct{}{}
	return true
}
